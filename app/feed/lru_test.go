package feed

import (
	"fmt"
	"testing"
)

func TestLRUCache_EvictsOldest(t *testing.T) {
	c := newLRUCache(2)

	c.set("a", true)
	c.set("b", false)
	c.set("c", true) // evicts a

	if c.len() != 2 {
		t.Errorf("Expected capacity-bounded length 2, got %d", c.len())
	}
	if _, ok := c.get("a"); ok {
		t.Errorf("Oldest key should have been evicted")
	}
	if v, ok := c.get("b"); !ok || v != false {
		t.Errorf("Key b should survive with its value, got %v %v", v, ok)
	}
	if v, ok := c.get("c"); !ok || v != true {
		t.Errorf("Key c should survive with its value, got %v %v", v, ok)
	}
}

func TestLRUCache_GetRefreshesRecency(t *testing.T) {
	c := newLRUCache(2)

	c.set("a", true)
	c.set("b", true)
	c.get("a")       // a is now most recent
	c.set("c", true) // evicts b

	if _, ok := c.get("a"); !ok {
		t.Errorf("Recently read key should survive eviction")
	}
	if _, ok := c.get("b"); ok {
		t.Errorf("Least recently used key should be evicted")
	}
}

func TestLRUCache_UpdateExistingKey(t *testing.T) {
	c := newLRUCache(2)

	c.set("a", true)
	c.set("a", false)

	if c.len() != 1 {
		t.Errorf("Updating a key must not grow the cache, got %d", c.len())
	}
	if v, _ := c.get("a"); v != false {
		t.Errorf("Value should be updated, got %v", v)
	}
}

func TestLRUCache_Concurrency(t *testing.T) {
	c := newLRUCache(16)

	done := make(chan struct{})
	for i := 0; i < 4; i++ {
		go func(n int) {
			defer func() { done <- struct{}{} }()
			for j := 0; j < 100; j++ {
				key := fmt.Sprintf("key-%d", (n+j)%32)
				c.set(key, j%2 == 0)
				c.get(key)
			}
		}(i)
	}
	for i := 0; i < 4; i++ {
		<-done
	}

	if c.len() > 16 {
		t.Errorf("Cache exceeded its capacity: %d", c.len())
	}
}
