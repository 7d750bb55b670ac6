// Package runedb is the embedded database facade: it wires the RuneQL
// parser, the parse cache, and a graph engine into a single Execute
// entry point.
//
// Example Usage:
//
//	db, err := runedb.Open(config.Default())
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer db.Close()
//
//	db.Execute("CREATE (alice:Person {name: 'Alice', age: 30})")
//	res, err := db.Execute("MATCH (n:Person) WHERE n.age > 18 RETURN n.name")
//	for _, row := range res.Rows {
//		fmt.Println(row["n.name"])
//	}
package runedb

import (
	"errors"
	"fmt"
	"sync"

	"github.com/orneryd/runedb/pkg/cache"
	"github.com/orneryd/runedb/pkg/config"
	"github.com/orneryd/runedb/pkg/graph"
	"github.com/orneryd/runedb/pkg/record"
	"github.com/orneryd/runedb/pkg/runeql"
)

// Common errors.
var (
	ErrClosed = errors.New("database closed")

	// ErrHasEdges is returned by plain DELETE on a node that still has
	// incident edges. Use DETACH DELETE to cascade.
	ErrHasEdges = errors.New("cannot delete node with relationships, use DETACH DELETE")

	// ErrUnboundVariable is returned when SET, DELETE, or RETURN
	// references a variable no prior clause bound.
	ErrUnboundVariable = errors.New("unbound variable")
)

// DB is an embedded RuneDB instance.
//
// Thread-safe: Execute may be called concurrently; the underlying
// engines serialize their own mutations.
type DB struct {
	cfg    *config.Config
	engine graph.Engine
	parser *runeql.Parser
	cache  *cache.ParseCache

	mu     sync.RWMutex
	closed bool
}

// Result is the outcome of one executed query.
type Result struct {
	// Rows holds RETURN projections, one record per result row, keyed
	// by the RETURN items as written.
	Rows []record.Record

	// Mutation counters.
	NodesCreated  int
	EdgesCreated  int
	PropertiesSet int
	NodesDeleted  int
	EdgesDeleted  int
}

// Stats is a snapshot of database state.
type Stats struct {
	NodeCount  int64
	EdgeCount  int64
	ParseCache cache.Stats
}

// Open creates a DB from configuration. A nil config uses the
// defaults (in-memory engine, permissive parser).
func Open(cfg *config.Config) (*DB, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var engine graph.Engine
	switch cfg.Storage.Engine {
	case config.EngineBadger:
		var err error
		engine, err = graph.NewBadgerEngineWithOptions(graph.BadgerOptions{
			DataDir:    cfg.Storage.DataDir,
			SyncWrites: cfg.Storage.SyncWrites,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to open storage: %w", err)
		}
	default:
		engine = graph.NewMemoryEngine()
	}

	return newDB(cfg, engine), nil
}

// OpenMemory creates an in-memory DB with default settings. Useful for
// tests and embedding.
func OpenMemory() *DB {
	return newDB(config.Default(), graph.NewMemoryEngine())
}

func newDB(cfg *config.Config, engine graph.Engine) *DB {
	var opts []runeql.Option
	if cfg.Query.StrictTokens {
		opts = append(opts, runeql.WithStrictTokens())
	}
	if cfg.Query.StrictClauses {
		opts = append(opts, runeql.WithStrictClauses())
	}

	return &DB{
		cfg:    cfg,
		engine: engine,
		parser: runeql.NewParser(opts...),
		cache:  cache.NewParseCache(cfg.Query.CacheSize, cfg.Query.CacheTTL),
	}
}

// Engine exposes the underlying graph engine for direct access and
// traversal.
func (db *DB) Engine() graph.Engine { return db.engine }

// Execute parses and runs one RuneQL query. Clauses apply in the order
// written; the returned Result carries RETURN rows and mutation
// counters.
func (db *DB) Execute(query string) (*Result, error) {
	db.mu.RLock()
	if db.closed {
		db.mu.RUnlock()
		return nil, ErrClosed
	}
	db.mu.RUnlock()

	q, err := db.parse(query)
	if err != nil {
		return nil, err
	}

	exec := &executor{engine: db.engine, result: &Result{}}
	for _, clause := range q.Clauses {
		if err := exec.apply(clause); err != nil {
			return nil, err
		}
	}
	return exec.result, nil
}

// parse returns the cached AST for the query text, parsing on miss.
func (db *DB) parse(query string) (*runeql.Query, error) {
	key := db.cache.Key(query)
	if q, ok := db.cache.Get(key); ok {
		return q, nil
	}

	q, err := db.parser.Parse(query)
	if err != nil {
		return nil, err
	}
	db.cache.Put(key, q)
	return q, nil
}

// Stats returns node/edge counts and parse cache statistics.
func (db *DB) Stats() (Stats, error) {
	nodes, err := db.engine.NodeCount()
	if err != nil {
		return Stats{}, err
	}
	edges, err := db.engine.EdgeCount()
	if err != nil {
		return Stats{}, err
	}
	return Stats{
		NodeCount:  nodes,
		EdgeCount:  edges,
		ParseCache: db.cache.Stats(),
	}, nil
}

// Close releases the underlying engine. Execute fails with ErrClosed
// afterwards.
func (db *DB) Close() error {
	db.mu.Lock()
	defer db.mu.Unlock()
	if db.closed {
		return nil
	}
	db.closed = true
	return db.engine.Close()
}
