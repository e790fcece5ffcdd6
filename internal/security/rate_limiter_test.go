package security

import (
	"sync"
	"testing"
	"time"
)

func TestRateLimiter(t *testing.T) {
	t.Run("DisabledAlwaysAllows", func(t *testing.T) {
		limiter := NewRateLimiter(false, 1, 1, time.Minute)
		for i := 0; i < 100; i++ {
			if !limiter.Allow("1.2.3.4") {
				t.Fatal("Disabled limiter rejected a request")
			}
		}
	})

	t.Run("BurstThenReject", func(t *testing.T) {
		limiter := NewRateLimiter(true, 60, 3, time.Minute)
		allowed := 0
		for i := 0; i < 10; i++ {
			if limiter.Allow("1.2.3.4") {
				allowed++
			}
		}
		if allowed != 3 {
			t.Errorf("Expected burst of 3 allowed, got %d", allowed)
		}
	})

	t.Run("ClientsIndependent", func(t *testing.T) {
		limiter := NewRateLimiter(true, 60, 1, time.Minute)
		if !limiter.Allow("1.1.1.1") {
			t.Error("First client rejected")
		}
		if !limiter.Allow("2.2.2.2") {
			t.Error("Second client should have its own bucket")
		}
	})

	t.Run("ConcurrentAllowSameClient", func(t *testing.T) {
		// Concurrent calls for one IP all touch the same bucket's
		// last-seen timestamp while the cleanup sweep reads it.
		limiter := NewRateLimiter(true, 6000, 100, time.Minute)

		var wg sync.WaitGroup
		for i := 0; i < 8; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for j := 0; j < 100; j++ {
					limiter.Allow("9.9.9.9")
				}
			}()
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				limiter.CleanupOldBuckets()
			}
		}()
		wg.Wait()

		if removed := limiter.CleanupOldBuckets(); removed != 0 {
			t.Errorf("Fresh bucket swept: removed %d", removed)
		}
	})

	t.Run("Cleanup", func(t *testing.T) {
		limiter := NewRateLimiter(true, 60, 1, time.Nanosecond)
		limiter.Allow("1.1.1.1")
		limiter.Allow("2.2.2.2")
		time.Sleep(time.Millisecond)
		if removed := limiter.CleanupOldBuckets(); removed != 2 {
			t.Errorf("Expected 2 buckets removed, got %d", removed)
		}
	})
}
