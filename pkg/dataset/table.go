package dataset

import (
	"fmt"
	"sync"

	"github.com/orneryd/runedb/pkg/record"
)

// TableDataset stores positional rows under a fixed column list. Rows
// are converted to records by zipping values against the column names
// at query time, so the evaluator sees the same shape as every other
// backend.
type TableDataset struct {
	name    string
	columns []string

	mu   sync.RWMutex
	rows [][]any
}

// NewTableDataset creates a table dataset with the given columns.
func NewTableDataset(name string, columns []string) *TableDataset {
	return &TableDataset{
		name:    name,
		columns: append([]string(nil), columns...),
	}
}

// Name returns the dataset's catalog name.
func (d *TableDataset) Name() string { return d.name }

// Columns returns the column list in declaration order.
func (d *TableDataset) Columns() []string {
	return append([]string(nil), d.columns...)
}

// InsertRow appends a positional row. The row must have exactly one
// value per column.
func (d *TableDataset) InsertRow(row []any) error {
	if len(row) != len(d.columns) {
		return fmt.Errorf("got %d values for %d columns: %w", len(row), len(d.columns), ErrRowWidth)
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	d.rows = append(d.rows, append([]any(nil), row...))
	return nil
}

// Insert adds a record by mapping its fields onto the columns.
// Missing columns become nil; fields outside the column list are
// rejected because they would be silently dropped.
func (d *TableDataset) Insert(rec record.Record) error {
	row := make([]any, len(d.columns))
	matched := 0
	for i, col := range d.columns {
		if v, present := rec[col]; present {
			row[i] = v
			matched++
		}
	}
	if matched != len(rec) {
		return fmt.Errorf("record has fields outside columns %v: %w", d.columns, ErrRowWidth)
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	d.rows = append(d.rows, row)
	return nil
}

// Select converts the rows to records in insertion order and evaluates
// the query pipeline.
func (d *TableDataset) Select(q *record.Query) ([]record.Record, error) {
	d.mu.RLock()
	records := make([]record.Record, len(d.rows))
	for i, row := range d.rows {
		rec := make(record.Record, len(d.columns))
		for j, col := range d.columns {
			rec[col] = row[j]
		}
		records[i] = rec
	}
	d.mu.RUnlock()

	return record.Apply(records, q), nil
}

// DeleteWhere removes every row matching the filter and reports how
// many were removed.
func (d *TableDataset) DeleteWhere(f *record.Filter) int {
	d.mu.Lock()
	defer d.mu.Unlock()

	kept := d.rows[:0]
	removed := 0
	for _, row := range d.rows {
		rec := make(record.Record, len(d.columns))
		for j, col := range d.columns {
			rec[col] = row[j]
		}
		if f.Matches(rec) {
			removed++
			continue
		}
		kept = append(kept, row)
	}
	d.rows = kept
	return removed
}
