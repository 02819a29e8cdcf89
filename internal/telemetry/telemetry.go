// Package telemetry wraps the prometheus metrics the hash table, the
// memory pool, and the data table publish about their own structural
// events (rehash/drain progress, pool chunk counts, index violations).
// Metrics are entirely optional: a nil *Metrics (or one built with
// NewNop) simply skips every increment, so these containers stay usable
// as plain embeddable data structures. Grounded on
// github.com/prometheus/client_golang, used directly by both
// aristanetworks/goarista and grafana/tempo.
package telemetry

import "github.com/prometheus/client_golang/prometheus"

// Metrics is the full set of counters/gauges one table or hash table
// instance reports, under a caller-supplied label set.
type Metrics struct {
	enabled bool

	PoolChunksAllocated prometheus.Counter
	PoolChunksFreed     prometheus.Counter
	PoolBlocksInUse     prometheus.Gauge

	RehashStarted prometheus.Counter
	DrainSteps    prometheus.Counter

	RowCount             prometheus.Gauge
	UniqueIndexViolation prometheus.Counter
	MultiIndexViolation  prometheus.Counter
}

// NewNop returns a Metrics whose methods are all safe, cheap no-ops.
func NewNop() *Metrics {
	return &Metrics{enabled: false}
}

// New registers a labeled set of metrics against reg. Pass nil to get
// the equivalent of NewNop.
func New(reg prometheus.Registerer, namespace, subsystem string) *Metrics {
	if reg == nil {
		return NewNop()
	}
	m := &Metrics{
		enabled: true,
		PoolChunksAllocated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: subsystem, Name: "pool_chunks_allocated_total",
			Help: "Memory pool chunks allocated from the Go allocator.",
		}),
		PoolChunksFreed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: subsystem, Name: "pool_chunks_freed_total",
			Help: "Empty memory pool chunks dropped so the Go allocator can reclaim them.",
		}),
		PoolBlocksInUse: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: subsystem, Name: "pool_blocks_in_use",
			Help: "Blocks currently allocated out of the memory pool.",
		}),
		RehashStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: subsystem, Name: "rehash_started_total",
			Help: "Incremental hash table growths started.",
		}),
		DrainSteps: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: subsystem, Name: "drain_steps_total",
			Help: "Incremental drain steps executed against an older bucket array.",
		}),
		RowCount: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: subsystem, Name: "row_count",
			Help: "Current row count of a data table.",
		}),
		UniqueIndexViolation: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: subsystem, Name: "unique_index_violations_total",
			Help: "Mutations rejected by a unique-hash index.",
		}),
		MultiIndexViolation: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: subsystem, Name: "multi_index_violations_total",
			Help: "Mutations rejected while updating a multi-hash index.",
		}),
	}
	for _, c := range []prometheus.Collector{
		m.PoolChunksAllocated, m.PoolChunksFreed, m.PoolBlocksInUse,
		m.RehashStarted, m.DrainSteps, m.RowCount,
		m.UniqueIndexViolation, m.MultiIndexViolation,
	} {
		reg.MustRegister(c)
	}
	return m
}

func (m *Metrics) incr(c prometheus.Counter) {
	if m == nil || !m.enabled || c == nil {
		return
	}
	c.Inc()
}

func (m *Metrics) set(g prometheus.Gauge, v float64) {
	if m == nil || !m.enabled || g == nil {
		return
	}
	g.Set(v)
}

// IncPoolChunksAllocated records a new chunk allocation.
func (m *Metrics) IncPoolChunksAllocated() { m.incr(m.PoolChunksAllocated) }

// IncPoolChunksFreed records a chunk fully returned to the allocator.
func (m *Metrics) IncPoolChunksFreed() { m.incr(m.PoolChunksFreed) }

// SetPoolBlocksInUse reports the pool's current live-block count.
func (m *Metrics) SetPoolBlocksInUse(n int) { m.set(m.PoolBlocksInUse, float64(n)) }

// IncRehashStarted records a new bucket-array growth.
func (m *Metrics) IncRehashStarted() { m.incr(m.RehashStarted) }

// IncDrainSteps records an incremental drain step.
func (m *Metrics) IncDrainSteps() { m.incr(m.DrainSteps) }

// SetRowCount reports a table's current row count.
func (m *Metrics) SetRowCount(n int) { m.set(m.RowCount, float64(n)) }

// IncUniqueIndexViolation records a unique-hash index rejection.
func (m *Metrics) IncUniqueIndexViolation() { m.incr(m.UniqueIndexViolation) }

// IncMultiIndexViolation records a multi-hash index rejection.
func (m *Metrics) IncMultiIndexViolation() { m.incr(m.MultiIndexViolation) }
