package embedding

import "testing"

func TestQueryCache_GetSet(t *testing.T) {
	c := NewQueryCache(2)
	if _, ok := c.Get("missing"); ok {
		t.Error("empty cache should miss")
	}
	c.Set("a", []float32{1})
	c.Set("b", []float32{2})
	if v, ok := c.Get("a"); !ok || v[0] != 1 {
		t.Errorf("get a = %v, %v", v, ok)
	}
}

func TestQueryCache_EvictsOldest(t *testing.T) {
	c := NewQueryCache(2)
	c.Set("a", []float32{1})
	c.Set("b", []float32{2})
	// Touch "a" so "b" is the LRU entry.
	c.Get("a")
	c.Set("c", []float32{3})
	if _, ok := c.Get("b"); ok {
		t.Error("b should have been evicted")
	}
	if _, ok := c.Get("a"); !ok {
		t.Error("a should survive (recently used)")
	}
	if c.Len() != 2 {
		t.Errorf("len = %d, want 2", c.Len())
	}
}

func TestQueryCache_UpdateExisting(t *testing.T) {
	c := NewQueryCache(2)
	c.Set("a", []float32{1})
	c.Set("a", []float32{9})
	if v, _ := c.Get("a"); v[0] != 9 {
		t.Errorf("updated value = %v", v)
	}
	if c.Len() != 1 {
		t.Errorf("len = %d, want 1", c.Len())
	}
}
