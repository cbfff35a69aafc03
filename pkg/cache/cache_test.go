package cache

import (
	"testing"
	"time"
)

func TestSetGet(t *testing.T) {
	c := NewTTLCache[string, int](time.Minute)
	c.Set("a", 1)

	v, ok := c.Get("a")
	if !ok || v != 1 {
		t.Fatalf("got %d %v, want 1 true", v, ok)
	}
	if _, ok := c.Get("missing"); ok {
		t.Fatalf("missing key should not be found")
	}
}

func TestExpiry(t *testing.T) {
	c := NewTTLCache[string, int](time.Minute)
	c.SetWithTTL("a", 1, 10*time.Millisecond)
	time.Sleep(20 * time.Millisecond)

	if _, ok := c.Get("a"); ok {
		t.Fatalf("expired entry should not be found")
	}
	// 惰性删除后条目消失
	if got := c.Size(); got != 0 {
		t.Fatalf("size %d after lazy eviction, want 0", got)
	}
}

func TestNoExpiryWhenTTLZero(t *testing.T) {
	c := NewTTLCache[string, int](0)
	c.Set("a", 1)
	time.Sleep(10 * time.Millisecond)
	if _, ok := c.Get("a"); !ok {
		t.Fatalf("zero-ttl entry should never expire")
	}
}

func TestDelete(t *testing.T) {
	c := NewTTLCache[string, int](time.Minute)
	c.Set("a", 1)
	c.Delete("a")
	if _, ok := c.Get("a"); ok {
		t.Fatalf("deleted entry should not be found")
	}
}
