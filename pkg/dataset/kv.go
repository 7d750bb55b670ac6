package dataset

import (
	"sort"
	"sync"

	"github.com/orneryd/runedb/pkg/record"
)

// KVDataset is a flat key/value store. Queries see each entry as a
// two-field record {key, value}, entering the pipeline in sorted key
// order so results are deterministic without an order_by.
type KVDataset struct {
	name string

	mu    sync.RWMutex
	store map[string]any
}

// NewKVDataset creates an empty key/value dataset.
func NewKVDataset(name string) *KVDataset {
	return &KVDataset{name: name, store: make(map[string]any)}
}

// Name returns the dataset's catalog name.
func (d *KVDataset) Name() string { return d.name }

// Set stores a value under a key, replacing any previous value.
func (d *KVDataset) Set(key string, value any) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.store[key] = value
}

// Get returns the value for a key and whether it was present.
func (d *KVDataset) Get(key string) (any, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	v, ok := d.store[key]
	return v, ok
}

// Delete removes a key. Removing an absent key is a no-op.
func (d *KVDataset) Delete(key string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.store, key)
}

// Keys returns the stored keys in sorted order.
func (d *KVDataset) Keys() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	keys := make([]string, 0, len(d.store))
	for k := range d.store {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Insert stores a record's "key" field under its "value" field.
// Records without a string key are ignored.
func (d *KVDataset) Insert(rec record.Record) error {
	key, ok := rec.Field("key").(string)
	if !ok {
		return nil
	}
	d.Set(key, rec.Field("value"))
	return nil
}

// Select materializes entries as {key, value} records in sorted key
// order and evaluates the query pipeline.
func (d *KVDataset) Select(q *record.Query) ([]record.Record, error) {
	d.mu.RLock()
	keys := make([]string, 0, len(d.store))
	for k := range d.store {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	records := make([]record.Record, len(keys))
	for i, k := range keys {
		records[i] = record.Record{"key": k, "value": d.store[k]}
	}
	d.mu.RUnlock()

	return record.Apply(records, q), nil
}
