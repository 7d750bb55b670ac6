// Package dataset provides the dataset catalog: named collections of
// records behind a uniform query surface.
//
// Three backend shapes are supported:
//   - graph: records stored as nodes in a graph.Engine
//   - table: positional rows under a fixed column list
//   - kvs:   a flat key/value store
//
// Whatever the backend, reads go through the same path: the backend
// materializes its rows as record.Record values and the generic
// evaluator in pkg/record runs the filter/select/order/offset/limit
// pipeline. The backends own storage shape only, never query
// semantics.
package dataset

import (
	"errors"
	"fmt"
	"sync"

	"github.com/orneryd/runedb/pkg/record"
)

// Common errors.
var (
	ErrDatasetNotFound    = errors.New("dataset not found")
	ErrDatasetExists      = errors.New("dataset already exists")
	ErrUnknownDatasetType = errors.New("unknown dataset type")
	ErrUnsupportedAction  = errors.New("unsupported action")
	ErrRowWidth           = errors.New("row length does not match columns")
)

// Request actions.
const (
	ActionInsert        = "insert"
	ActionSelect        = "select"
	ActionBatch         = "batch"
	ActionCreateDataset = "create_dataset"
)

// Dataset types accepted by create_dataset.
const (
	TypeGraph = "graph"
	TypeTable = "table"
	TypeKVS   = "kvs"
)

// Request is one catalog operation. Which fields matter depends on
// Action:
//
//	insert:         Dataset, Objects
//	select:         Dataset, Query
//	batch:          Queries
//	create_dataset: Name, Type, Columns (table only)
type Request struct {
	Action  string
	Dataset string

	// create_dataset
	Name    string
	Type    string
	Columns []string

	// insert
	Objects []record.Record

	// select
	Query record.Query

	// batch
	Queries []*Request
}

// Result is the outcome of one request. Exactly one of the payload
// fields is populated, matching the request action.
type Result struct {
	Records     []record.Record // select
	InsertedIDs []string        // insert
	Created     string          // create_dataset
	Batch       []*Result       // batch
}

// Dataset is one named record collection.
type Dataset interface {
	// Name returns the dataset's catalog name.
	Name() string

	// Insert adds one record.
	Insert(rec record.Record) error

	// Select materializes the backend's rows as records and runs the
	// query pipeline over them.
	Select(q *record.Query) ([]record.Record, error)
}

// Engine is the dataset catalog. It routes requests to datasets by
// name and handles the catalog-level actions (create_dataset, batch)
// itself.
//
// Thread-safe; datasets guard their own state.
type Engine struct {
	mu       sync.RWMutex
	datasets map[string]Dataset
}

// NewEngine creates an empty catalog.
func NewEngine() *Engine {
	return &Engine{datasets: make(map[string]Dataset)}
}

// CreateDataset creates and registers a dataset. The columns argument
// applies to table datasets and is ignored otherwise. Fails with
// ErrDatasetExists if the name is taken.
func (e *Engine) CreateDataset(name, dtype string, columns []string) (Dataset, error) {
	var ds Dataset
	switch dtype {
	case TypeGraph, "":
		ds = NewGraphDataset(name)
	case TypeTable:
		ds = NewTableDataset(name, columns)
	case TypeKVS:
		ds = NewKVDataset(name)
	default:
		return nil, fmt.Errorf("%q: %w", dtype, ErrUnknownDatasetType)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if _, exists := e.datasets[name]; exists {
		return nil, fmt.Errorf("dataset %q: %w", name, ErrDatasetExists)
	}
	e.datasets[name] = ds
	return ds, nil
}

// Dataset looks up a registered dataset by name.
func (e *Engine) Dataset(name string) (Dataset, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	ds, exists := e.datasets[name]
	if !exists {
		return nil, fmt.Errorf("dataset %q: %w", name, ErrDatasetNotFound)
	}
	return ds, nil
}

// DatasetNames lists the registered dataset names in unspecified
// order.
func (e *Engine) DatasetNames() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	names := make([]string, 0, len(e.datasets))
	for name := range e.datasets {
		names = append(names, name)
	}
	return names
}

// Execute runs one request against the catalog.
//
// Batch requests run sub-requests sequentially with no rollback: the
// first failure stops the batch and the results of preceding
// sub-requests remain applied.
func (e *Engine) Execute(req *Request) (*Result, error) {
	if req == nil {
		return nil, fmt.Errorf("nil request: %w", ErrUnsupportedAction)
	}

	switch req.Action {
	case ActionBatch:
		res := &Result{}
		for _, sub := range req.Queries {
			subRes, err := e.Execute(sub)
			if err != nil {
				return nil, err
			}
			res.Batch = append(res.Batch, subRes)
		}
		return res, nil

	case ActionCreateDataset:
		if _, err := e.CreateDataset(req.Name, req.Type, req.Columns); err != nil {
			return nil, err
		}
		return &Result{Created: req.Name}, nil

	case ActionInsert:
		ds, err := e.Dataset(req.Dataset)
		if err != nil {
			return nil, err
		}
		res := &Result{InsertedIDs: make([]string, 0, len(req.Objects))}
		for _, obj := range req.Objects {
			if err := ds.Insert(obj); err != nil {
				return nil, err
			}
			id, _ := obj.Field("id").(string)
			res.InsertedIDs = append(res.InsertedIDs, id)
		}
		return res, nil

	case ActionSelect:
		ds, err := e.Dataset(req.Dataset)
		if err != nil {
			return nil, err
		}
		records, err := ds.Select(&req.Query)
		if err != nil {
			return nil, err
		}
		return &Result{Records: records}, nil
	}

	return nil, fmt.Errorf("%q: %w", req.Action, ErrUnsupportedAction)
}
