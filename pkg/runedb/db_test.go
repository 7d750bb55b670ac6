package runedb

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orneryd/runedb/pkg/config"
	"github.com/orneryd/runedb/pkg/graph"
	"github.com/orneryd/runedb/pkg/record"
)

func seedPeople(t *testing.T, db *DB) {
	t.Helper()
	_, err := db.Execute("CREATE (alice:Person {name: 'Alice', age: 30})")
	require.NoError(t, err)
	_, err = db.Execute("CREATE (bob:Person {name: 'Bob', age: 17})")
	require.NoError(t, err)
	_, err = db.Execute("CREATE (hq:Place {name: 'HQ'})")
	require.NoError(t, err)
}

func TestExecuteCreate(t *testing.T) {
	db := OpenMemory()
	defer db.Close()

	res, err := db.Execute("CREATE (n:Person {name: 'Alice', age: 30})")
	require.NoError(t, err)
	assert.Equal(t, 1, res.NodesCreated)
	assert.Equal(t, 0, res.EdgesCreated)

	stats, err := db.Stats()
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.NodeCount)
}

func TestExecuteCreatePath(t *testing.T) {
	db := OpenMemory()
	defer db.Close()

	res, err := db.Execute("CREATE (a:Person {name: 'Alice'})-[r:KNOWS {since: 2020}]->(b:Person {name: 'Bob'})")
	require.NoError(t, err)
	assert.Equal(t, 2, res.NodesCreated)
	assert.Equal(t, 1, res.EdgesCreated)

	edges, err := db.Engine().AllEdges()
	require.NoError(t, err)
	require.Len(t, edges, 1)
	assert.Equal(t, "KNOWS", edges[0].Type)
	assert.Equal(t, int64(2020), edges[0].Properties["since"])

	// The stored direction follows the arrow.
	source, err := db.Engine().GetNode(edges[0].Source)
	require.NoError(t, err)
	assert.Equal(t, "Alice", source.Properties["name"])
}

func TestExecuteCreateIncomingArrow(t *testing.T) {
	db := OpenMemory()
	defer db.Close()

	_, err := db.Execute("CREATE (a:Person {name: 'Alice'})<-[r:KNOWS]-(b:Person {name: 'Bob'})")
	require.NoError(t, err)

	edges, err := db.Engine().AllEdges()
	require.NoError(t, err)
	require.Len(t, edges, 1)

	source, err := db.Engine().GetNode(edges[0].Source)
	require.NoError(t, err)
	assert.Equal(t, "Bob", source.Properties["name"], "incoming arrow should store Bob as the source")
}

func TestExecuteMatchReturn(t *testing.T) {
	db := OpenMemory()
	defer db.Close()
	seedPeople(t, db)

	res, err := db.Execute("MATCH (n:Person) RETURN n.name")
	require.NoError(t, err)
	require.Len(t, res.Rows, 2)

	names := make(map[any]bool)
	for _, row := range res.Rows {
		names[row["n.name"]] = true
	}
	assert.True(t, names["Alice"])
	assert.True(t, names["Bob"])
}

func TestExecuteMatchWithPropertyConstraint(t *testing.T) {
	db := OpenMemory()
	defer db.Close()
	seedPeople(t, db)

	res, err := db.Execute("MATCH (n:Person {name: 'Alice'}) RETURN n")
	require.NoError(t, err)
	require.Len(t, res.Rows, 1)

	node, ok := res.Rows[0]["n"].(record.Record)
	require.True(t, ok, "whole-variable projection should be a record, got %T", res.Rows[0]["n"])
	assert.Equal(t, int64(30), node.Field("age"))
	assert.Equal(t, []string{"Person"}, node.Field("labels"))
}

func TestExecuteWhere(t *testing.T) {
	db := OpenMemory()
	defer db.Close()
	seedPeople(t, db)

	res, err := db.Execute("MATCH (n:Person) WHERE n.age > 18 RETURN n.name")
	require.NoError(t, err)
	require.Len(t, res.Rows, 1)
	assert.Equal(t, "Alice", res.Rows[0]["n.name"])

	// Missing fields read as nil and never match ordering comparisons.
	res, err = db.Execute("MATCH (n) WHERE n.age > 0 RETURN n.name")
	require.NoError(t, err)
	assert.Len(t, res.Rows, 2, "the ageless Place node must not match")
}

func TestExecuteMatchPath(t *testing.T) {
	db := OpenMemory()
	defer db.Close()

	_, err := db.Execute("CREATE (a:Person {name: 'Alice'})-[:KNOWS]->(b:Person {name: 'Bob'})")
	require.NoError(t, err)
	_, err = db.Execute("CREATE (c:Person {name: 'Carol'})")
	require.NoError(t, err)

	res, err := db.Execute("MATCH (a:Person)-[r:KNOWS]->(b:Person) RETURN a.name, b.name")
	require.NoError(t, err)
	require.Len(t, res.Rows, 1)
	assert.Equal(t, "Alice", res.Rows[0]["a.name"])
	assert.Equal(t, "Bob", res.Rows[0]["b.name"])

	// Reversed direction matches the same edge from the other side.
	res, err = db.Execute("MATCH (b:Person)<-[r:KNOWS]-(a:Person) RETURN a.name, b.name")
	require.NoError(t, err)
	require.Len(t, res.Rows, 1)
	assert.Equal(t, "Alice", res.Rows[0]["a.name"])

	// Undirected matches both orientations.
	res, err = db.Execute("MATCH (x:Person)-[r:KNOWS]-(y:Person) RETURN x.name")
	require.NoError(t, err)
	assert.Len(t, res.Rows, 2)

	// Type mismatch matches nothing.
	res, err = db.Execute("MATCH (a)-[r:HATES]->(b) RETURN a")
	require.NoError(t, err)
	assert.Empty(t, res.Rows)
}

func TestExecuteSet(t *testing.T) {
	db := OpenMemory()
	defer db.Close()
	seedPeople(t, db)

	res, err := db.Execute("MATCH (n:Person {name: 'Bob'}) SET n.age = 18 RETURN n.age")
	require.NoError(t, err)
	assert.Equal(t, 1, res.PropertiesSet)
	require.Len(t, res.Rows, 1)
	assert.Equal(t, int64(18), res.Rows[0]["n.age"])

	// The write is visible to later queries.
	res, err = db.Execute("MATCH (n:Person) WHERE n.age >= 18 RETURN n.name")
	require.NoError(t, err)
	assert.Len(t, res.Rows, 2)
}

func TestExecuteDeleteRequiresDetach(t *testing.T) {
	db := OpenMemory()
	defer db.Close()

	_, err := db.Execute("CREATE (a:Person {name: 'Alice'})-[:KNOWS]->(b:Person {name: 'Bob'})")
	require.NoError(t, err)

	// Plain DELETE on a connected node fails.
	_, err = db.Execute("MATCH (n:Person {name: 'Alice'}) DELETE n")
	require.ErrorIs(t, err, ErrHasEdges)

	stats, _ := db.Stats()
	assert.Equal(t, int64(2), stats.NodeCount, "failed delete must not remove anything")

	// DETACH DELETE cascades.
	res, err := db.Execute("MATCH (n:Person {name: 'Alice'}) DETACH DELETE n")
	require.NoError(t, err)
	assert.Equal(t, 1, res.NodesDeleted)
	assert.Equal(t, 1, res.EdgesDeleted)

	stats, _ = db.Stats()
	assert.Equal(t, int64(1), stats.NodeCount)
	assert.Equal(t, int64(0), stats.EdgeCount)
}

func TestExecuteDeleteUnconnectedNode(t *testing.T) {
	db := OpenMemory()
	defer db.Close()
	seedPeople(t, db)

	res, err := db.Execute("MATCH (n:Place) DELETE n")
	require.NoError(t, err)
	assert.Equal(t, 1, res.NodesDeleted)
}

func TestExecuteOptionalMatch(t *testing.T) {
	db := OpenMemory()
	defer db.Close()
	seedPeople(t, db)

	// No Robot nodes exist; the row survives with nil bindings.
	res, err := db.Execute("OPTIONAL MATCH (n:Robot) RETURN n")
	require.NoError(t, err)
	require.Len(t, res.Rows, 1)
	assert.Nil(t, res.Rows[0]["n"])

	// A plain MATCH for the same pattern yields nothing.
	res, err = db.Execute("MATCH (n:Robot) RETURN n")
	require.NoError(t, err)
	assert.Empty(t, res.Rows)
}

func TestExecuteReturnDistinctAndLimit(t *testing.T) {
	db := OpenMemory()
	defer db.Close()

	for i := 0; i < 3; i++ {
		_, err := db.Execute("CREATE (n:Item {kind: 'widget'})")
		require.NoError(t, err)
	}

	res, err := db.Execute("MATCH (n:Item) RETURN DISTINCT n.kind")
	require.NoError(t, err)
	assert.Len(t, res.Rows, 1)

	res, err = db.Execute("MATCH (n:Item) RETURN n.kind LIMIT 2")
	require.NoError(t, err)
	assert.Len(t, res.Rows, 2)
}

func TestExecuteMatchCreateUsesBinding(t *testing.T) {
	db := OpenMemory()
	defer db.Close()
	seedPeople(t, db)

	// CREATE reuses the matched node instead of creating a duplicate.
	res, err := db.Execute("MATCH (a:Person {name: 'Alice'}) CREATE (a)-[:WORKS_AT]->(p:Place {name: 'Office'})")
	require.NoError(t, err)
	assert.Equal(t, 1, res.NodesCreated)
	assert.Equal(t, 1, res.EdgesCreated)

	res, err = db.Execute("MATCH (a:Person)-[r:WORKS_AT]->(p:Place) RETURN a.name, p.name")
	require.NoError(t, err)
	require.Len(t, res.Rows, 1)
	assert.Equal(t, "Alice", res.Rows[0]["a.name"])
	assert.Equal(t, "Office", res.Rows[0]["p.name"])
}

func TestExecuteEmptyMatchSuppressesLaterClauses(t *testing.T) {
	db := OpenMemory()
	defer db.Close()

	// The MATCH binds no rows, so the CREATE has nothing to run for.
	res, err := db.Execute("MATCH (n:Nope) CREATE (m:Thing)")
	require.NoError(t, err)
	assert.Equal(t, 0, res.NodesCreated)

	stats, err := db.Stats()
	require.NoError(t, err)
	assert.Equal(t, int64(0), stats.NodeCount)

	// A standalone CREATE still executes exactly once.
	res, err = db.Execute("CREATE (m:Thing)")
	require.NoError(t, err)
	assert.Equal(t, 1, res.NodesCreated)
}

func TestExecuteReturnUnboundVariable(t *testing.T) {
	db := OpenMemory()
	defer db.Close()
	seedPeople(t, db)

	_, err := db.Execute("MATCH (n:Person) RETURN ghost")
	require.ErrorIs(t, err, ErrUnboundVariable)
}

func TestExecuteParseErrorsSurface(t *testing.T) {
	db := OpenMemory()
	defer db.Close()

	_, err := db.Execute("MATCH (n:Person RETURN n")
	require.Error(t, err)
}

func TestParseCacheReuse(t *testing.T) {
	db := OpenMemory()
	defer db.Close()
	seedPeople(t, db)

	query := "MATCH (n:Person) RETURN n.name"
	_, err := db.Execute(query)
	require.NoError(t, err)
	_, err = db.Execute(query)
	require.NoError(t, err)

	stats, err := db.Stats()
	require.NoError(t, err)
	assert.GreaterOrEqual(t, stats.ParseCache.Hits, uint64(1))
}

func TestOpenBadgerBacked(t *testing.T) {
	cfg := config.Default()
	cfg.Storage.Engine = config.EngineBadger
	cfg.Storage.DataDir = t.TempDir()

	db, err := Open(cfg)
	require.NoError(t, err)

	_, err = db.Execute("CREATE (n:Persisted {name: 'Kept'})")
	require.NoError(t, err)
	require.NoError(t, db.Close())

	// Reopen and verify the data survived.
	db, err = Open(cfg)
	require.NoError(t, err)
	defer db.Close()

	res, err := db.Execute("MATCH (n:Persisted) RETURN n.name")
	require.NoError(t, err)
	require.Len(t, res.Rows, 1)
	assert.Equal(t, "Kept", res.Rows[0]["n.name"])
}

func TestOpenRejectsInvalidConfig(t *testing.T) {
	cfg := config.Default()
	cfg.Storage.Engine = "flatfile"
	_, err := Open(cfg)
	require.Error(t, err)
}

func TestClosedDBRejectsExecute(t *testing.T) {
	db := OpenMemory()
	require.NoError(t, db.Close())

	_, err := db.Execute("MATCH (n) RETURN n")
	require.ErrorIs(t, err, ErrClosed)
}

func TestEngineAccessor(t *testing.T) {
	db := OpenMemory()
	defer db.Close()

	err := db.Engine().AddNode(&graph.Node{ID: "direct"})
	require.NoError(t, err)

	res, err := db.Execute("MATCH (n) RETURN n")
	require.NoError(t, err)
	assert.Len(t, res.Rows, 1)
}
