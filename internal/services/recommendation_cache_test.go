package services

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/tbourn/carlog-backend/internal/domain"
)

func newTestCache(store *memStore) *RecommendationCache {
	c := NewRecommendationCache(store, store)
	clock := time.Date(2024, time.March, 1, 12, 0, 0, 0, time.UTC)
	var mu sync.Mutex
	c.Now = func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		clock = clock.Add(time.Second)
		return clock
	}
	nop := zerolog.Nop()
	c.Log = &nop
	return c
}

// countingCompute returns a ComputeFunc answering text and the call counter.
func countingCompute(text string) (ComputeFunc, *atomic.Int32) {
	var n atomic.Int32
	return func(ctx context.Context) (Computation, error) {
		n.Add(1)
		return Computation{Text: text, Prompt: "prompt", RawResponse: text, Model: "gpt-test"}, nil
	}, &n
}

func TestRecommendationCache_HitAfterMiss(t *testing.T) {
	store := newMemStore()
	c := newTestCache(store)
	compute, calls := countingCompute("change oil")
	fp := domain.Fingerprint{Mileage: 50000, MaintenanceCount: 5}

	text, cached, err := c.GetOrCompute(context.Background(), "v1", fp, compute)
	if err != nil || cached || text != "change oil" {
		t.Fatalf("first: text=%q cached=%v err=%v", text, cached, err)
	}
	text, cached, err = c.GetOrCompute(context.Background(), "v1", fp, compute)
	if err != nil || !cached || text != "change oil" {
		t.Fatalf("second: text=%q cached=%v err=%v", text, cached, err)
	}
	if calls.Load() != 1 {
		t.Fatalf("compute calls = %d, want 1", calls.Load())
	}

	fp.Mileage = 50500
	_, cached, err = c.GetOrCompute(context.Background(), "v1", fp, compute)
	if err != nil || cached {
		t.Fatalf("changed mileage: cached=%v err=%v", cached, err)
	}
	if calls.Load() != 2 {
		t.Fatalf("compute calls = %d, want 2", calls.Load())
	}
	if len(store.recs) != 2 || len(store.logs) != 2 {
		t.Fatalf("recs=%d logs=%d, want 2 each", len(store.recs), len(store.logs))
	}
}

func TestRecommendationCache_ReturnsNewestMatch(t *testing.T) {
	store := newMemStore()
	fp := domain.Fingerprint{Mileage: 100, MaintenanceCount: 1}
	base := time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)
	store.recs = []domain.RecommendationCacheEntry{
		{VehicleID: "v1", RecommendationText: "old", MileageAtGeneration: 100, MaintenanceCountAtGeneration: 1, CreatedAt: base},
		{VehicleID: "v1", RecommendationText: "new", MileageAtGeneration: 100, MaintenanceCountAtGeneration: 1, CreatedAt: base.Add(time.Hour)},
		{VehicleID: "v2", RecommendationText: "other", MileageAtGeneration: 100, MaintenanceCountAtGeneration: 1, CreatedAt: base.Add(2 * time.Hour)},
	}
	compute, calls := countingCompute("fresh")

	text, cached, err := newTestCache(store).GetOrCompute(context.Background(), "v1", fp, compute)
	if err != nil || !cached || text != "new" {
		t.Fatalf("text=%q cached=%v err=%v", text, cached, err)
	}
	if calls.Load() != 0 {
		t.Fatalf("compute must not run on a hit")
	}
}

func TestRecommendationCache_ComputeFailureNotCached(t *testing.T) {
	store := newMemStore()
	c := newTestCache(store)
	fp := domain.Fingerprint{Mileage: 1, MaintenanceCount: 0}
	boom := errors.New("rate limited")

	_, _, err := c.GetOrCompute(context.Background(), "v1", fp, func(ctx context.Context) (Computation, error) {
		return Computation{Prompt: "p"}, boom
	})
	if !errors.Is(err, ErrComputeFailed) || !errors.Is(err, boom) {
		t.Fatalf("err = %v, want ErrComputeFailed wrapping cause", err)
	}
	if len(store.recs) != 0 {
		t.Fatalf("nothing may be cached on failure")
	}
	if len(store.logs) != 1 {
		t.Fatalf("the failed provider call should still be audited, logs=%d", len(store.logs))
	}

	compute, calls := countingCompute("ok")
	if _, cached, err := c.GetOrCompute(context.Background(), "v1", fp, compute); err != nil || cached || calls.Load() != 1 {
		t.Fatalf("retry: cached=%v err=%v calls=%d", cached, err, calls.Load())
	}
}

func TestRecommendationCache_AuditFailureSwallowed(t *testing.T) {
	store := newMemStore()
	store.appendErr = errors.New("audit table missing")
	compute, _ := countingCompute("rotate tires")

	text, cached, err := newTestCache(store).GetOrCompute(context.Background(), "v1", domain.Fingerprint{}, compute)
	if err != nil || cached || text != "rotate tires" {
		t.Fatalf("text=%q cached=%v err=%v", text, cached, err)
	}
	if len(store.recs) != 1 {
		t.Fatalf("entry should be cached despite audit failure")
	}
}

func TestRecommendationCache_NoAuditWithoutProviderCall(t *testing.T) {
	store := newMemStore()
	_, _, err := newTestCache(store).GetOrCompute(context.Background(), "v1", domain.Fingerprint{}, func(ctx context.Context) (Computation, error) {
		return Computation{}, ErrNoRecommendationProvider
	})
	if !errors.Is(err, ErrNoRecommendationProvider) {
		t.Fatalf("err = %v", err)
	}
	if len(store.logs) != 0 {
		t.Fatalf("no provider call was made; audit must stay empty")
	}
}

func TestRecommendationCache_PersistFailureStillReturnsText(t *testing.T) {
	store := newMemStore()
	store.createErr = errors.New("disk full")
	compute, _ := countingCompute("brakes")

	text, cached, err := newTestCache(store).GetOrCompute(context.Background(), "v1", domain.Fingerprint{}, compute)
	if err != nil || cached || text != "brakes" {
		t.Fatalf("text=%q cached=%v err=%v", text, cached, err)
	}
}

func TestRecommendationCache_LookupFailureComputes(t *testing.T) {
	store := newMemStore()
	store.lookupErr = errors.New("read timeout")
	compute, calls := countingCompute("coolant")

	text, cached, err := newTestCache(store).GetOrCompute(context.Background(), "v1", domain.Fingerprint{}, compute)
	if err != nil || cached || text != "coolant" || calls.Load() != 1 {
		t.Fatalf("text=%q cached=%v err=%v calls=%d", text, cached, err, calls.Load())
	}
}

func TestRecommendationCache_ConcurrentSingleCompute(t *testing.T) {
	store := newMemStore()
	c := newTestCache(store)
	fp := domain.Fingerprint{Mileage: 42000, MaintenanceCount: 3}

	var calls atomic.Int32
	release := make(chan struct{})
	compute := func(ctx context.Context) (Computation, error) {
		calls.Add(1)
		<-release
		return Computation{Text: "spark plugs", Prompt: "p", RawResponse: "r"}, nil
	}

	const n = 16
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			text, _, err := c.GetOrCompute(context.Background(), "v1", fp, compute)
			if err == nil && text != "spark plugs" {
				err = errors.New("unexpected text " + text)
			}
			errs <- err
		}()
	}
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()
	close(errs)

	for err := range errs {
		if err != nil {
			t.Fatalf("GetOrCompute: %v", err)
		}
	}
	if calls.Load() != 1 {
		t.Fatalf("compute calls = %d, want 1", calls.Load())
	}
	if len(store.recs) != 1 {
		t.Fatalf("cached entries = %d, want 1", len(store.recs))
	}
}

func TestRecommendationCache_JoinedCallerSurvivesLeaderCancel(t *testing.T) {
	store := newMemStore()
	c := newTestCache(store)
	fp := domain.Fingerprint{Mileage: 61000, MaintenanceCount: 2}

	entered := make(chan struct{})
	release := make(chan struct{})
	compute := func(ctx context.Context) (Computation, error) {
		close(entered)
		select {
		case <-release:
		case <-ctx.Done():
			return Computation{}, ctx.Err()
		}
		return Computation{Text: "brake fluid", Prompt: "p", RawResponse: "r"}, nil
	}

	ctxA, cancelA := context.WithCancel(context.Background())
	errA := make(chan error, 1)
	go func() {
		_, _, err := c.GetOrCompute(ctxA, "v1", fp, compute)
		errA <- err
	}()
	<-entered

	type result struct {
		text string
		err  error
	}
	resB := make(chan result, 1)
	go func() {
		text, _, err := c.GetOrCompute(context.Background(), "v1", fp, compute)
		resB <- result{text, err}
	}()
	time.Sleep(20 * time.Millisecond)

	cancelA()
	if err := <-errA; !errors.Is(err, context.Canceled) {
		t.Fatalf("cancelled caller err = %v, want context.Canceled", err)
	}
	close(release)

	got := <-resB
	if got.err != nil || got.text != "brake fluid" {
		t.Fatalf("joined caller text=%q err=%v", got.text, got.err)
	}
	if len(store.recs) != 1 {
		t.Fatalf("cached entries = %d, want 1", len(store.recs))
	}
}

func TestRecommendationCache_ComputeTimeout(t *testing.T) {
	c := newTestCache(newMemStore())
	c.Timeout = 10 * time.Millisecond
	compute := func(ctx context.Context) (Computation, error) {
		<-ctx.Done()
		return Computation{}, ctx.Err()
	}
	_, _, err := c.GetOrCompute(context.Background(), "v1", domain.Fingerprint{Mileage: 1}, compute)
	if !errors.Is(err, ErrComputeFailed) || !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("err = %v, want ErrComputeFailed wrapping DeadlineExceeded", err)
	}
}

func TestRecommendationCache_VehicleLocksReleased(t *testing.T) {
	c := newTestCache(newMemStore())
	compute, _ := countingCompute("tyres")
	for i := 0; i < 5; i++ {
		vid := "v" + string(rune('a'+i))
		if _, _, err := c.GetOrCompute(context.Background(), vid, domain.Fingerprint{Mileage: i}, compute); err != nil {
			t.Fatalf("GetOrCompute(%s): %v", vid, err)
		}
	}
	c.mu.Lock()
	n := len(c.locks)
	c.mu.Unlock()
	if n != 0 {
		t.Fatalf("vehicle locks retained = %d, want 0", n)
	}
}
