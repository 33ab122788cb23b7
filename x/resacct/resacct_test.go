package resacct

import (
	"sync"
	"testing"
)

func TestBalance(t *testing.T) {
	var c Counter
	c.Add(3)
	c.Release(1)
	if got := c.Snapshot(); got != 2 {
		t.Fatalf("Snapshot = %d, want 2", got)
	}
	c.Release(2)
	if got := c.Snapshot(); got != 0 {
		t.Fatalf("Snapshot = %d, want 0", got)
	}
}

func TestOverReleaseGoesNegative(t *testing.T) {
	var c Counter
	c.Release(1)
	if got := c.Snapshot(); got != -1 {
		t.Fatalf("Snapshot = %d, want -1 (double-free must not be hidden)", got)
	}
}

func TestConcurrentAddRelease(t *testing.T) {
	var c Counter
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 1000; j++ {
				c.Add(1)
				c.Release(1)
			}
		}()
	}
	wg.Wait()
	if got := c.Snapshot(); got != 0 {
		t.Fatalf("Snapshot = %d after balanced concurrent use", got)
	}
}
