package cmap

import (
	"fmt"
	"sync"
	"testing"
)

func TestNew(t *testing.T) {
	m := New[int]()
	if m.ShardCount() != DefaultShardCount {
		t.Errorf("shard count = %d, want %d", m.ShardCount(), DefaultShardCount)
	}
}

func TestNewWithShards(t *testing.T) {
	tests := []struct {
		input    int
		expected int
	}{
		{0, DefaultShardCount},
		{-1, DefaultShardCount},
		{3, DefaultShardCount}, // not a power of 2
		{1, 1},
		{8, 8},
		{64, 64},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("shards=%d", tt.input), func(t *testing.T) {
			m := NewWithShards[int](tt.input)
			if m.ShardCount() != tt.expected {
				t.Errorf("NewWithShards(%d) shard count = %d, want %d",
					tt.input, m.ShardCount(), tt.expected)
			}
		})
	}
}

func TestSetGetDelete(t *testing.T) {
	m := New[int]()

	m.Set("a", 1)
	m.Set("b", 2)

	if v, ok := m.Get("a"); !ok || v != 1 {
		t.Errorf("Get(a) = (%d, %v), want (1, true)", v, ok)
	}
	if m.Count() != 2 {
		t.Errorf("Count() = %d, want 2", m.Count())
	}

	m.Delete("a")
	if _, ok := m.Get("a"); ok {
		t.Error("Get(a) found deleted key")
	}
}

func TestGetOrSet(t *testing.T) {
	m := New[string]()

	v, existed := m.GetOrSet("k", "first")
	if existed || v != "first" {
		t.Errorf("GetOrSet = (%q, %v), want (first, false)", v, existed)
	}

	v, existed = m.GetOrSet("k", "second")
	if !existed || v != "first" {
		t.Errorf("GetOrSet = (%q, %v), want (first, true)", v, existed)
	}
}

func TestPop(t *testing.T) {
	m := New[int]()
	m.Set("k", 9)

	if v, ok := m.Pop("k"); !ok || v != 9 {
		t.Errorf("Pop = (%d, %v), want (9, true)", v, ok)
	}
	if _, ok := m.Pop("k"); ok {
		t.Error("second Pop found the key")
	}
}

func TestRangeStops(t *testing.T) {
	m := New[int]()
	for i := 0; i < 10; i++ {
		m.Set(fmt.Sprintf("k%d", i), i)
	}

	visited := 0
	m.Range(func(string, int) bool {
		visited++
		return visited < 3
	})
	if visited != 3 {
		t.Errorf("visited %d entries, want 3", visited)
	}
}

func TestKeysValues(t *testing.T) {
	m := New[int]()
	m.Set("x", 1)
	m.Set("y", 2)

	if got := len(m.Keys()); got != 2 {
		t.Errorf("len(Keys()) = %d, want 2", got)
	}
	if got := len(m.Values()); got != 2 {
		t.Errorf("len(Values()) = %d, want 2", got)
	}
}

func TestConcurrentAccess(t *testing.T) {
	m := New[int]()
	var wg sync.WaitGroup

	for g := 0; g < 16; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				key := fmt.Sprintf("g%d-k%d", g, i%20)
				m.Set(key, i)
				m.Get(key)
				if i%7 == 0 {
					m.Delete(key)
				}
			}
		}(g)
	}
	wg.Wait()
}
