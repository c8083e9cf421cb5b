package background

import (
	"fmt"
	"sync"
	"testing"
)

func TestConditionCache_PutGet(t *testing.T) {
	c := NewConditionCache()

	if _, ok := c.Get("Heavy rain"); ok {
		t.Error("empty cache should miss")
	}

	c.Put("Heavy rain", "https://example.com/rain.jpeg")
	url, ok := c.Get("Heavy rain")
	if !ok || url != "https://example.com/rain.jpeg" {
		t.Errorf("Get = (%q, %v)", url, ok)
	}

	// Keys are case-insensitive
	url, ok = c.Get("HEAVY RAIN")
	if !ok || url != "https://example.com/rain.jpeg" {
		t.Errorf("case-insensitive Get = (%q, %v)", url, ok)
	}
}

func TestConditionCache_LastWriteWins(t *testing.T) {
	c := NewConditionCache()

	c.Put("Sunny", "https://example.com/a.jpeg")
	c.Put("Sunny", "https://example.com/b.jpeg")

	url, _ := c.Get("Sunny")
	if url != "https://example.com/b.jpeg" {
		t.Errorf("Get = %q, want last write", url)
	}
	if c.Len() != 1 {
		t.Errorf("Len = %d, want 1", c.Len())
	}
}

func TestConditionCache_ConcurrentAccess(t *testing.T) {
	c := NewConditionCache()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			condition := fmt.Sprintf("condition-%d", n%5)
			c.Put(condition, fmt.Sprintf("https://example.com/%d.jpeg", n))
			c.Get(condition)
		}(i)
	}
	wg.Wait()

	if c.Len() != 5 {
		t.Errorf("Len = %d, want 5", c.Len())
	}
}
