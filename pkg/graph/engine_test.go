// Tests for the graph store implementations. Every test runs against
// both MemoryEngine and the in-memory BadgerEngine through the shared
// Engine interface, so the referential-integrity guarantees are
// checked uniformly.
package graph

import (
	"errors"
	"testing"
)

func engines(t *testing.T) map[string]Engine {
	t.Helper()

	badgerEngine, err := NewBadgerEngineInMemory()
	if err != nil {
		t.Fatalf("Failed to open in-memory badger engine: %v", err)
	}

	return map[string]Engine{
		"memory": NewMemoryEngine(),
		"badger": badgerEngine,
	}
}

func mustAddNode(t *testing.T, e Engine, id NodeID, labels []string, props map[string]any) {
	t.Helper()
	err := e.AddNode(&Node{ID: id, Labels: labels, Properties: props})
	if err != nil {
		t.Fatalf("AddNode(%s) failed: %v", id, err)
	}
}

func mustAddEdge(t *testing.T, e Engine, id EdgeID, source, target NodeID, typ string) {
	t.Helper()
	err := e.AddEdge(&Edge{ID: id, Source: source, Target: target, Type: typ})
	if err != nil {
		t.Fatalf("AddEdge(%s) failed: %v", id, err)
	}
}

func TestNodeLifecycle(t *testing.T) {
	for name, engine := range engines(t) {
		t.Run(name, func(t *testing.T) {
			defer engine.Close()

			mustAddNode(t, engine, "alice", []string{"Person"}, map[string]any{"name": "Alice", "age": int64(30)})

			node, err := engine.GetNode("alice")
			if err != nil {
				t.Fatalf("GetNode failed: %v", err)
			}
			if !node.HasLabel("Person") {
				t.Errorf("Expected Person label, got %v", node.Labels)
			}
			if v, _ := node.Property("name"); v != "Alice" {
				t.Errorf("Expected name Alice, got %v", v)
			}

			// Duplicate ID is rejected.
			err = engine.AddNode(&Node{ID: "alice"})
			if !errors.Is(err, ErrAlreadyExists) {
				t.Errorf("Expected ErrAlreadyExists, got %v", err)
			}

			// Update replaces labels and properties.
			node.Labels = []string{"Person", "Admin"}
			node.SetProperty("age", int64(31))
			if err := engine.UpdateNode(node); err != nil {
				t.Fatalf("UpdateNode failed: %v", err)
			}

			updated, err := engine.GetNode("alice")
			if err != nil {
				t.Fatalf("GetNode after update failed: %v", err)
			}
			if !updated.HasLabel("Admin") {
				t.Errorf("Expected Admin label after update, got %v", updated.Labels)
			}

			// Remove reports existence.
			existed, err := engine.RemoveNode("alice")
			if err != nil {
				t.Fatalf("RemoveNode failed: %v", err)
			}
			if !existed {
				t.Error("Expected RemoveNode to report the node existed")
			}

			_, err = engine.GetNode("alice")
			if !errors.Is(err, ErrNotFound) {
				t.Errorf("Expected ErrNotFound after removal, got %v", err)
			}

			// Removing again is a no-op, not an error.
			existed, err = engine.RemoveNode("alice")
			if err != nil {
				t.Fatalf("Second RemoveNode failed: %v", err)
			}
			if existed {
				t.Error("Expected second RemoveNode to report absence")
			}
		})
	}
}

func TestEdgeRequiresEndpoints(t *testing.T) {
	for name, engine := range engines(t) {
		t.Run(name, func(t *testing.T) {
			defer engine.Close()

			mustAddNode(t, engine, "alice", nil, nil)

			// Target missing: rejected, store unchanged.
			err := engine.AddEdge(&Edge{ID: "e1", Source: "alice", Target: "bob", Type: "KNOWS"})
			if !errors.Is(err, ErrMissingEndpoint) {
				t.Fatalf("Expected ErrMissingEndpoint, got %v", err)
			}

			_, err = engine.GetEdge("e1")
			if !errors.Is(err, ErrNotFound) {
				t.Errorf("Failed edge add must not persist: got %v", err)
			}
			count, _ := engine.EdgeCount()
			if count != 0 {
				t.Errorf("Expected 0 edges after failed add, got %d", count)
			}

			edges, err := engine.IncidentEdges("alice")
			if err != nil {
				t.Fatalf("IncidentEdges failed: %v", err)
			}
			if len(edges) != 0 {
				t.Errorf("Adjacency must be untouched by failed add, got %d edges", len(edges))
			}

			// Source missing is equally rejected.
			err = engine.AddEdge(&Edge{ID: "e2", Source: "bob", Target: "alice", Type: "KNOWS"})
			if !errors.Is(err, ErrMissingEndpoint) {
				t.Errorf("Expected ErrMissingEndpoint for missing source, got %v", err)
			}
		})
	}
}

func TestRemoveNodeCascadesEdges(t *testing.T) {
	for name, engine := range engines(t) {
		t.Run(name, func(t *testing.T) {
			defer engine.Close()

			mustAddNode(t, engine, "a", nil, nil)
			mustAddNode(t, engine, "b", nil, nil)
			mustAddNode(t, engine, "c", nil, nil)
			mustAddEdge(t, engine, "ab", "a", "b", "KNOWS")
			mustAddEdge(t, engine, "cb", "c", "b", "KNOWS")
			mustAddEdge(t, engine, "ac", "a", "c", "KNOWS")

			// Removing b must remove both of its incident edges and
			// leave the a-c edge alone.
			existed, err := engine.RemoveNode("b")
			if err != nil {
				t.Fatalf("RemoveNode failed: %v", err)
			}
			if !existed {
				t.Fatal("Expected node b to exist")
			}

			for _, id := range []EdgeID{"ab", "cb"} {
				if _, err := engine.GetEdge(id); !errors.Is(err, ErrNotFound) {
					t.Errorf("Edge %s should be cascaded away, got %v", id, err)
				}
			}
			if _, err := engine.GetEdge("ac"); err != nil {
				t.Errorf("Edge ac should survive, got %v", err)
			}

			// Surviving nodes must not list removed edges.
			for _, id := range []NodeID{"a", "c"} {
				edges, err := engine.IncidentEdges(id)
				if err != nil {
					t.Fatalf("IncidentEdges(%s) failed: %v", id, err)
				}
				if len(edges) != 1 || edges[0].ID != "ac" {
					t.Errorf("Node %s should have exactly edge ac, got %v", id, edges)
				}
			}

			count, _ := engine.EdgeCount()
			if count != 1 {
				t.Errorf("Expected 1 edge after cascade, got %d", count)
			}
		})
	}
}

func TestRemoveEdgeLeavesNodes(t *testing.T) {
	for name, engine := range engines(t) {
		t.Run(name, func(t *testing.T) {
			defer engine.Close()

			mustAddNode(t, engine, "a", nil, nil)
			mustAddNode(t, engine, "b", nil, nil)
			mustAddEdge(t, engine, "ab", "a", "b", "KNOWS")

			existed, err := engine.RemoveEdge("ab")
			if err != nil {
				t.Fatalf("RemoveEdge failed: %v", err)
			}
			if !existed {
				t.Error("Expected edge to exist")
			}

			for _, id := range []NodeID{"a", "b"} {
				if _, err := engine.GetNode(id); err != nil {
					t.Errorf("Node %s should survive edge removal, got %v", id, err)
				}
				edges, _ := engine.IncidentEdges(id)
				if len(edges) != 0 {
					t.Errorf("Node %s should have no incident edges, got %v", id, edges)
				}
			}
		})
	}
}

func TestNeighborsBothDirections(t *testing.T) {
	for name, engine := range engines(t) {
		t.Run(name, func(t *testing.T) {
			defer engine.Close()

			mustAddNode(t, engine, "hub", nil, nil)
			mustAddNode(t, engine, "out", nil, nil)
			mustAddNode(t, engine, "in", nil, nil)
			mustAddEdge(t, engine, "e-out", "hub", "out", "LINKS")
			mustAddEdge(t, engine, "e-in", "in", "hub", "LINKS")

			neighbors, err := engine.Neighbors("hub")
			if err != nil {
				t.Fatalf("Neighbors failed: %v", err)
			}

			found := make(map[NodeID]bool)
			for _, n := range neighbors {
				found[n.ID] = true
			}
			if !found["out"] || !found["in"] || len(found) != 2 {
				t.Errorf("Expected neighbors {out, in}, got %v", found)
			}

			_, err = engine.Neighbors("missing")
			if !errors.Is(err, ErrNotFound) {
				t.Errorf("Expected ErrNotFound for unknown node, got %v", err)
			}
		})
	}
}

func TestFindNodes(t *testing.T) {
	for name, engine := range engines(t) {
		t.Run(name, func(t *testing.T) {
			defer engine.Close()

			mustAddNode(t, engine, "alice", []string{"Person", "Admin"}, map[string]any{"age": int64(30)})
			mustAddNode(t, engine, "bob", []string{"Person"}, map[string]any{"age": int64(25)})
			mustAddNode(t, engine, "hq", []string{"Place"}, nil)

			people, err := engine.FindNodesByLabel("Person")
			if err != nil {
				t.Fatalf("FindNodesByLabel failed: %v", err)
			}
			if len(people) != 2 {
				t.Errorf("Expected 2 Person nodes, got %d", len(people))
			}

			admins, _ := engine.FindNodesByLabel("Admin")
			if len(admins) != 1 || admins[0].ID != "alice" {
				t.Errorf("Expected exactly alice for Admin, got %v", admins)
			}

			none, err := engine.FindNodesByLabel("Robot")
			if err != nil {
				t.Fatalf("FindNodesByLabel for absent label failed: %v", err)
			}
			if len(none) != 0 {
				t.Errorf("Expected no Robot nodes, got %d", len(none))
			}

			// Property match coerces across numeric representations;
			// the badger engine round-trips int64 through JSON float64.
			byAge, err := engine.FindNodesByProperty("age", int64(30))
			if err != nil {
				t.Fatalf("FindNodesByProperty failed: %v", err)
			}
			if len(byAge) != 1 || byAge[0].ID != "alice" {
				t.Errorf("Expected alice for age=30, got %v", byAge)
			}
		})
	}
}

func TestLabelIndexFollowsUpdates(t *testing.T) {
	for name, engine := range engines(t) {
		t.Run(name, func(t *testing.T) {
			defer engine.Close()

			mustAddNode(t, engine, "n1", []string{"Draft"}, nil)

			node, _ := engine.GetNode("n1")
			node.Labels = []string{"Published"}
			if err := engine.UpdateNode(node); err != nil {
				t.Fatalf("UpdateNode failed: %v", err)
			}

			drafts, _ := engine.FindNodesByLabel("Draft")
			if len(drafts) != 0 {
				t.Errorf("Old label should be unindexed, got %v", drafts)
			}
			published, _ := engine.FindNodesByLabel("Published")
			if len(published) != 1 {
				t.Errorf("New label should be indexed, got %v", published)
			}
		})
	}
}

func TestCounts(t *testing.T) {
	for name, engine := range engines(t) {
		t.Run(name, func(t *testing.T) {
			defer engine.Close()

			mustAddNode(t, engine, "a", nil, nil)
			mustAddNode(t, engine, "b", nil, nil)
			mustAddEdge(t, engine, "ab", "a", "b", "LINKS")

			nodeCount, err := engine.NodeCount()
			if err != nil || nodeCount != 2 {
				t.Errorf("Expected 2 nodes, got %d (err %v)", nodeCount, err)
			}
			edgeCount, err := engine.EdgeCount()
			if err != nil || edgeCount != 1 {
				t.Errorf("Expected 1 edge, got %d (err %v)", edgeCount, err)
			}
		})
	}
}

func TestClosedEngineRejectsOperations(t *testing.T) {
	for name, engine := range engines(t) {
		t.Run(name, func(t *testing.T) {
			if err := engine.Close(); err != nil {
				t.Fatalf("Close failed: %v", err)
			}

			if err := engine.AddNode(&Node{ID: "x"}); !errors.Is(err, ErrStorageClosed) {
				t.Errorf("Expected ErrStorageClosed, got %v", err)
			}
			if _, err := engine.GetNode("x"); !errors.Is(err, ErrStorageClosed) {
				t.Errorf("Expected ErrStorageClosed, got %v", err)
			}
		})
	}
}

func TestMemoryEngineCopiesOnRead(t *testing.T) {
	engine := NewMemoryEngine()
	defer engine.Close()

	mustAddNode(t, engine, "n", nil, map[string]any{"k": "v"})

	node, _ := engine.GetNode("n")
	node.SetProperty("k", "mutated")

	fresh, _ := engine.GetNode("n")
	if v, _ := fresh.Property("k"); v != "v" {
		t.Errorf("Stored node must be isolated from caller mutation, got %v", v)
	}
}

func TestBadgerPersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()

	engine, err := NewBadgerEngine(dir)
	if err != nil {
		t.Fatalf("Failed to open badger engine: %v", err)
	}
	mustAddNode(t, engine, "alice", []string{"Person"}, map[string]any{"name": "Alice"})
	mustAddNode(t, engine, "bob", []string{"Person"}, nil)
	mustAddEdge(t, engine, "ab", "alice", "bob", "KNOWS")
	if err := engine.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	reopened, err := NewBadgerEngine(dir)
	if err != nil {
		t.Fatalf("Failed to reopen badger engine: %v", err)
	}
	defer reopened.Close()

	node, err := reopened.GetNode("alice")
	if err != nil {
		t.Fatalf("GetNode after reopen failed: %v", err)
	}
	if v, _ := node.Property("name"); v != "Alice" {
		t.Errorf("Expected persisted name Alice, got %v", v)
	}

	edge, err := reopened.GetEdge("ab")
	if err != nil {
		t.Fatalf("GetEdge after reopen failed: %v", err)
	}
	if edge.Source != "alice" || edge.Target != "bob" {
		t.Errorf("Edge endpoints mangled: %v -> %v", edge.Source, edge.Target)
	}
}

func TestGeneratedIDsAreUnique(t *testing.T) {
	seen := make(map[NodeID]struct{})
	for i := 0; i < 100; i++ {
		id := NewNodeID()
		if _, dup := seen[id]; dup {
			t.Fatalf("Duplicate generated ID %s", id)
		}
		seen[id] = struct{}{}
	}
}
