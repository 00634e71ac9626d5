package cache_test

import (
	"sync"
	"testing"
	"time"

	"github.com/boddenberg/doc-intake-bfa-go/internal/infra/cache"
)

func TestCache_SetAndGet(t *testing.T) {
	c := cache.New[string](5 * time.Minute)

	c.Set("key1", "value1")
	val, ok := c.Get("key1")
	if !ok {
		t.Fatal("expected key to exist")
	}
	if val != "value1" {
		t.Errorf("expected 'value1', got '%s'", val)
	}
}

func TestCache_GetMiss(t *testing.T) {
	c := cache.New[string](5 * time.Minute)

	_, ok := c.Get("nonexistent")
	if ok {
		t.Fatal("expected cache miss for nonexistent key")
	}
}

func TestCache_Expiration(t *testing.T) {
	c := cache.New[string](50 * time.Millisecond)

	c.Set("key1", "value1")
	time.Sleep(100 * time.Millisecond)

	_, ok := c.Get("key1")
	if ok {
		t.Fatal("expected cache entry to be expired")
	}
}

func TestCache_Delete(t *testing.T) {
	c := cache.New[string](5 * time.Minute)

	c.Set("key1", "value1")
	c.Delete("key1")

	_, ok := c.Get("key1")
	if ok {
		t.Fatal("expected key to be deleted")
	}
}

func TestCache_TouchExtendsExpiry(t *testing.T) {
	c := cache.New[string](80 * time.Millisecond)
	defer c.Close()

	c.Set("ws", "v")
	time.Sleep(50 * time.Millisecond)
	if _, ok := c.Touch("ws"); !ok {
		t.Fatal("expected entry before expiry")
	}
	time.Sleep(50 * time.Millisecond)

	if _, ok := c.Get("ws"); !ok {
		t.Fatal("expected touched entry to survive past the original TTL")
	}
}

func TestCache_EvictHookOnExpiry(t *testing.T) {
	var mu sync.Mutex
	evicted := map[string]int{}
	c := cache.New[int](20*time.Millisecond, cache.WithEvict(func(key string, v int) {
		mu.Lock()
		evicted[key] = v
		mu.Unlock()
	}))
	defer c.Close()

	c.Set("a", 1)

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		mu.Lock()
		_, ok := evicted["a"]
		mu.Unlock()
		if ok {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("expected eviction hook to fire for expired entry")
}

func TestCache_EvictHookOnDeleteAndClose(t *testing.T) {
	var got []string
	c := cache.New[int](time.Minute, cache.WithEvict(func(key string, _ int) {
		got = append(got, key)
	}))

	c.Set("a", 1)
	c.Set("b", 2)
	c.Delete("a")
	c.Delete("missing")
	c.Close()
	c.Close()

	if len(got) != 2 || got[0] != "a" || got[1] != "b" {
		t.Errorf("expected evictions [a b], got %v", got)
	}
	if c.Len() != 0 {
		t.Errorf("expected empty cache after Close, got %d", c.Len())
	}
}
