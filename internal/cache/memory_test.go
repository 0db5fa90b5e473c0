package cache

import (
	"errors"
	"testing"
	"time"
)

func TestSetGetDelete(t *testing.T) {
	c := NewMemoryCache[string](0)
	defer c.Close()

	if _, ok := c.Get("missing"); ok {
		t.Error("Expected miss")
	}

	c.Set("a", "1")
	if v, ok := c.Get("a"); !ok || v != "1" {
		t.Errorf("Expected 1, got %q (%v)", v, ok)
	}

	c.Delete("a")
	if _, ok := c.Get("a"); ok {
		t.Error("Expected deleted key to miss")
	}

	c.Set("b", "2")
	c.Clear()
	if c.Size() != 0 {
		t.Errorf("Expected empty cache, got %d", c.Size())
	}
}

func TestExpiration(t *testing.T) {
	c := NewMemoryCache[int](time.Minute)
	defer c.Close()

	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }

	c.Set("k", 7)
	now = now.Add(30 * time.Second)
	if v, ok := c.Get("k"); !ok || v != 7 {
		t.Errorf("Expected live entry, got %d (%v)", v, ok)
	}

	now = now.Add(31 * time.Second)
	if _, ok := c.Get("k"); ok {
		t.Error("Expected entry to expire")
	}

	c.removeExpired()
	if c.Size() != 0 {
		t.Errorf("Expected expired entry to be removed, got %d", c.Size())
	}
}

func TestGetOrCompute(t *testing.T) {
	c := NewResponseCache(0)
	defer c.Close()

	calls := 0
	compute := func() ([]byte, error) {
		calls++
		return []byte(`[1,2,0]`), nil
	}

	for i := 0; i < 3; i++ {
		v, err := c.GetOrCompute("rankings", compute)
		if err != nil {
			t.Fatalf("GetOrCompute failed: %v", err)
		}
		if string(v) != `[1,2,0]` {
			t.Errorf("Unexpected value %s", v)
		}
	}
	if calls != 1 {
		t.Errorf("Expected one computation, got %d", calls)
	}

	failure := errors.New("boom")
	if _, err := c.GetOrCompute("broken", func() ([]byte, error) { return nil, failure }); !errors.Is(err, failure) {
		t.Errorf("Expected compute error, got %v", err)
	}
	if _, ok := c.Get("broken"); ok {
		t.Error("Errors must not be cached")
	}
}

func TestCloseIsIdempotent(t *testing.T) {
	c := NewMemoryCache[int](time.Millisecond)
	c.Close()
	c.Close()
}
