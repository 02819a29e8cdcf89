// Package config holds the tunables spec.md leaves policy-defined:
// per-bucket-policy load ratios, hash table growth shift, memory pool
// chunk sizing, and the select-equaler-max-count threshold (spec.md
// §4.4, §4.9). Loadable from YAML, following aristanetworks/goarista's
// use of gopkg.in/yaml.v2 for its own config files.
package config

import (
	"os"

	"gopkg.in/yaml.v2"
)

// PoolParams is a memory-pool parameter set (spec.md §4.1): block count
// per chunk, cached-free-blocks count, and whether the pool serves one
// fixed size (static) or parameterizes size at construction (dynamic).
type PoolParams struct {
	BlocksPerChunk int  `yaml:"blocks_per_chunk"`
	CachedFree     int  `yaml:"cached_free"`
	Dynamic        bool `yaml:"dynamic"`
}

// LoadRatios holds the policy-defined capacity(bucketCount, maxCount)
// ratio named per bucket policy in spec.md §4.4.
type LoadRatios struct {
	Open8     float64 `yaml:"open8"`      // 13/14
	OpenN1    float64 `yaml:"open_n1"`    // 5/6
	Open2N2   float64 `yaml:"open2n2"`    // 5/6 default, same family as OpenN1
	LimPScale float64 `yaml:"lim_p_scale"` // max_count/8 * 5
}

// Config is the full set of tunables for the hash containers and table.
// Only MaxCodeParam and LogVertexCount are read by this module (by
// table.NewDynTable and table.NewTable). The Pool, Load, growth-shift
// and SelectEqualerMaxCount fields are not read anywhere: hashtable,
// bucket and table use their own package constants and zero-valued
// PoolParams instead.
type Config struct {
	Pool LoadPoolSet `yaml:"pool"`
	Load LoadRatios  `yaml:"load"`

	// GrowthShift is the default doubling shift: bucket_count <<= GrowthShift.
	GrowthShift uint8 `yaml:"growth_shift"`
	// SmallTableGrowthShift is the shift for a table still below
	// SmallTableThreshold buckets, so low-max_count policies amortize
	// growth better early on (spec.md §4.4). hashtable does not read
	// it; its growthShift uses the same values as package constants.
	SmallTableGrowthShift uint8 `yaml:"small_table_growth_shift"`
	SmallTableThreshold   int   `yaml:"small_table_threshold"`

	// SelectEqualerMaxCount is the number of equality predicates
	// considered for index matching before folding the rest into the
	// row-filter predicate (spec.md §4.9 step 2). table.Select does not
	// read it; it uses its own constant selectEqualerMaxCount (4).
	SelectEqualerMaxCount int `yaml:"select_equaler_max_count"`

	// MaxCodeParam bounds the column-list perfect-hash salt retry loop
	// (spec.md §4.6 step 5) before TooManyCollisions is raised.
	MaxCodeParam uint8 `yaml:"max_code_param"`
	// LogVertexCount is log2(V) in the column-list two-coloring graph
	// (spec.md §4.6: "V = 2^log_vertex_count, typically 256").
	LogVertexCount uint8 `yaml:"log_vertex_count"`
}

// LoadPoolSet names the pool parameter sets used by the different
// payload classes: bucket payload pools and the table's row pool.
type LoadPoolSet struct {
	Bucket PoolParams `yaml:"bucket"`
	Row    PoolParams `yaml:"row"`
}

// Default returns the tunables matching the concrete values spec.md
// names in §4.4.
func Default() Config {
	return Config{
		Pool: LoadPoolSet{
			Bucket: PoolParams{BlocksPerChunk: 256, CachedFree: 64, Dynamic: false},
			Row:    PoolParams{BlocksPerChunk: 1024, CachedFree: 128, Dynamic: false},
		},
		Load: LoadRatios{
			Open8:     13.0 / 14.0,
			OpenN1:    5.0 / 6.0,
			Open2N2:   5.0 / 6.0,
			LimPScale: 5.0 / 8.0,
		},
		GrowthShift:           1,
		SmallTableGrowthShift: 2,
		SmallTableThreshold:   16,
		SelectEqualerMaxCount: 8,
		MaxCodeParam:          255,
		LogVertexCount:        8,
	}
}

// Load reads a Config from a YAML file, starting from Default() so an
// omitted field keeps its default rather than zeroing out.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}
