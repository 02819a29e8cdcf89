// Command momoexample drives the momo containers end to end: a
// DynTable of inventory rows with a unique-hash index and a secondary
// multi-hash index, plus a hashmap.Map used as a small lookup cache in
// front of it. It exists to give the library a runnable smoke path, the
// way the pack's own cmd/ programs wire a library's public API into a
// flag-driven main().
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/aristanetworks/glog"

	"github.com/morzhovets/momo/columnlist"
	"github.com/morzhovets/momo/hashmap"
	"github.com/morzhovets/momo/internal/config"
	"github.com/morzhovets/momo/internal/telemetry"
	"github.com/morzhovets/momo/table"
)

type skuTag struct{}
type warehouseTag struct{}
type quantityTag struct{}

var (
	skuCol       = columnlist.NewStringColumn[skuTag]("sku", 32)
	warehouseCol = columnlist.NewStringColumn[warehouseTag]("warehouse", 16)
	quantityCol  = columnlist.NewColumn[quantityTag, int64]("quantity")
)

func main() {
	seed := flag.Int("seed-rows", 5, "number of inventory rows to seed")
	lookupSKU := flag.String("lookup", "SKU-0002", "sku to look up after seeding")
	flag.Parse()

	if err := run(*seed, *lookupSKU); err != nil {
		glog.Error(err)
		os.Exit(1)
	}
}

func run(seedRows int, lookupSKU string) error {
	cfg := config.Default()
	metrics := telemetry.NewNop()

	inv, err := table.NewDynTable([]columnlist.ColumnDeclarer{skuCol, warehouseCol, quantityCol}, cfg, metrics)
	if err != nil {
		return fmt.Errorf("building inventory table: %w", err)
	}
	bySKU, err := inv.AddUniqueHashIndex("by_sku", skuCol)
	if err != nil {
		return fmt.Errorf("adding unique index: %w", err)
	}
	byWarehouse, err := inv.AddMultiHashIndex("by_warehouse", warehouseCol)
	if err != nil {
		return fmt.Errorf("adding multi-hash index: %w", err)
	}

	warehouses := []string{"east", "west", "central"}
	for i := 0; i < seedRows; i++ {
		sku := fmt.Sprintf("SKU-%04d", i)
		warehouse := warehouses[i%len(warehouses)]
		r := inv.NewRow(
			table.Assign(inv, skuCol, sku),
			table.Assign(inv, warehouseCol, warehouse),
			table.Assign(inv, quantityCol, int64(10*(i+1))),
		)
		if _, err := inv.AddRow(r); err != nil {
			return fmt.Errorf("seeding row %d: %w", i, err)
		}
	}
	glog.Infof("seeded %d inventory rows", inv.Len())

	// A cache of sku -> quantity in front of the table, demonstrating
	// the standalone hash map alongside the table's own indexes.
	quantities := hashmap.NewStringMap[int64](metrics)
	sel, err := inv.Select(nil, nil)
	if err != nil {
		return fmt.Errorf("selecting all rows: %w", err)
	}
	for i := 0; i < sel.Len(); i++ {
		ref := sel.At(i)
		sku, err := table.Get(ref, skuCol)
		if err != nil {
			return fmt.Errorf("reading sku: %w", err)
		}
		qty, err := table.Get(ref, quantityCol)
		if err != nil {
			return fmt.Errorf("reading quantity: %w", err)
		}
		if err := quantities.Put(sku, qty); err != nil {
			return fmt.Errorf("caching %s: %w", sku, err)
		}
	}
	glog.Infof("cached %d quantities", quantities.Len())

	ref, found, err := inv.FindByUniqueHash(bySKU, []uint64{skuCol.Code()}, [][]byte{table.Eq(skuCol, lookupSKU).Value})
	if err != nil {
		return fmt.Errorf("looking up %s: %w", lookupSKU, err)
	}
	if !found {
		glog.Infof("sku %s not found", lookupSKU)
	} else {
		warehouse, err := table.Get(ref, warehouseCol)
		if err != nil {
			return fmt.Errorf("reading warehouse: %w", err)
		}
		qty, err := table.Get(ref, quantityCol)
		if err != nil {
			return fmt.Errorf("reading quantity: %w", err)
		}
		glog.Infof("found %s in %s with quantity %d", lookupSKU, warehouse, qty)

		if err := table.UpdateColumnValue(inv, ref, quantityCol, qty+1); err != nil {
			return fmt.Errorf("bumping quantity: %w", err)
		}
		glog.Infof("bumped %s quantity by 1", lookupSKU)
	}

	eastSel, err := inv.FindByMultiHash(byWarehouse, []uint64{warehouseCol.Code()}, [][]byte{table.Eq(warehouseCol, "east").Value})
	if err != nil {
		return fmt.Errorf("looking up warehouse east: %w", err)
	}
	glog.Infof("warehouse east holds %d rows", eastSel.Len())

	clone, err := inv.Clone()
	if err != nil {
		return fmt.Errorf("cloning table: %w", err)
	}
	glog.Infof("clone holds %d rows independent of the source", clone.Len())

	return nil
}
