package cache

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/orneryd/runedb/pkg/runeql"
)

func parsed(t *testing.T, text string) *runeql.Query {
	t.Helper()
	q, err := runeql.NewParser().Parse(text)
	if err != nil {
		t.Fatalf("Parse(%q) failed: %v", text, err)
	}
	return q
}

func TestParseCacheHitMiss(t *testing.T) {
	c := NewParseCache(10, 0)

	text := "MATCH (n) RETURN n"
	key := c.Key(text)

	if _, ok := c.Get(key); ok {
		t.Fatal("Expected miss on empty cache")
	}

	q := parsed(t, text)
	c.Put(key, q)

	got, ok := c.Get(key)
	if !ok {
		t.Fatal("Expected hit after Put")
	}
	if got != q {
		t.Error("Expected the cached AST back, got a different value")
	}

	stats := c.Stats()
	if stats.Hits != 1 || stats.Misses != 1 {
		t.Errorf("Expected 1 hit / 1 miss, got %d / %d", stats.Hits, stats.Misses)
	}
	if stats.HitRate != 50 {
		t.Errorf("Expected 50%% hit rate, got %v", stats.HitRate)
	}
}

func TestParseCacheKeyStability(t *testing.T) {
	c := NewParseCache(10, 0)

	if c.Key("MATCH (n) RETURN n") != c.Key("MATCH (n) RETURN n") {
		t.Error("Same text must hash to the same key")
	}
	if c.Key("MATCH (n) RETURN n") == c.Key("MATCH (m) RETURN m") {
		t.Error("Different text should not collide on these inputs")
	}
}

func TestParseCacheLRUEviction(t *testing.T) {
	c := NewParseCache(3, 0)
	q := parsed(t, "MATCH (n) RETURN n")

	keys := make([]uint64, 4)
	for i := range keys {
		keys[i] = c.Key(fmt.Sprintf("MATCH (n%d) RETURN n%d", i, i))
	}

	c.Put(keys[0], q)
	c.Put(keys[1], q)
	c.Put(keys[2], q)

	// Touch key 0 so key 1 is the oldest.
	c.Get(keys[0])

	c.Put(keys[3], q)

	if c.Len() != 3 {
		t.Errorf("Expected 3 entries, got %d", c.Len())
	}
	if _, ok := c.Get(keys[1]); ok {
		t.Error("Expected key 1 to be evicted as least recently used")
	}
	if _, ok := c.Get(keys[0]); !ok {
		t.Error("Expected recently used key 0 to survive")
	}
}

func TestParseCacheTTLExpiry(t *testing.T) {
	c := NewParseCache(10, 10*time.Millisecond)
	q := parsed(t, "MATCH (n) RETURN n")

	key := c.Key("MATCH (n) RETURN n")
	c.Put(key, q)

	if _, ok := c.Get(key); !ok {
		t.Fatal("Expected hit before expiry")
	}

	time.Sleep(20 * time.Millisecond)

	if _, ok := c.Get(key); ok {
		t.Error("Expected miss after TTL expiry")
	}
	if c.Len() != 0 {
		t.Errorf("Expired entry should be removed, got %d entries", c.Len())
	}
}

func TestParseCacheConcurrentGetPut(t *testing.T) {
	c := NewParseCache(4, time.Minute)
	q := parsed(t, "MATCH (n) RETURN n")
	key := c.Key("MATCH (n) RETURN n")

	// Readers race with in-place refreshes of the same entry; run
	// under -race to catch unlocked entry reads.
	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				c.Put(key, q)
			}
		}()
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				if got, ok := c.Get(key); ok && got == nil {
					t.Error("Hit returned a nil query")
					return
				}
			}
		}()
	}
	wg.Wait()

	if got, ok := c.Get(key); !ok || got != q {
		t.Errorf("Expected the cached AST after concurrent access, got %v, %v", got, ok)
	}
}

func TestParseCacheClearAndRemove(t *testing.T) {
	c := NewParseCache(10, 0)
	q := parsed(t, "MATCH (n) RETURN n")

	k1 := c.Key("a")
	k2 := c.Key("b")
	c.Put(k1, q)
	c.Put(k2, q)

	c.Remove(k1)
	if _, ok := c.Get(k1); ok {
		t.Error("Expected removed key to miss")
	}
	if c.Len() != 1 {
		t.Errorf("Expected 1 entry after remove, got %d", c.Len())
	}

	c.Clear()
	if c.Len() != 0 {
		t.Errorf("Expected empty cache after clear, got %d", c.Len())
	}
}
