package tracker

import (
	"sync"
	"testing"
)

func TestTracker(t *testing.T) {
	tr := New()
	provider := "overpass"

	if stats := tr.Snapshot(); len(stats) != 0 {
		t.Errorf("Expected empty stats, got %d", len(stats))
	}

	tr.TrackCacheHit(provider)
	tr.TrackCacheMiss(provider)
	tr.TrackAPISuccess(provider)
	tr.TrackAPIFailure(provider)
	tr.TrackAPIZero(provider)

	pStats, ok := tr.Snapshot()[provider]
	if !ok {
		t.Fatalf("Expected stats for provider %s", provider)
	}
	want := ProviderStats{CacheHits: 1, CacheMisses: 1, APISuccess: 1, APIFailures: 1, APIZeroResult: 1}
	if pStats != want {
		t.Errorf("got %+v, want %+v", pStats, want)
	}
}

func TestTracker_Concurrent(t *testing.T) {
	tr := New()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tr.TrackAPISuccess("ollama")
			tr.TrackCacheHit("embed")
		}()
	}
	wg.Wait()

	stats := tr.Snapshot()
	if stats["ollama"].APISuccess != 50 {
		t.Errorf("expected 50 successes, got %d", stats["ollama"].APISuccess)
	}
	if stats["embed"].CacheHits != 50 {
		t.Errorf("expected 50 cache hits, got %d", stats["embed"].CacheHits)
	}
}
