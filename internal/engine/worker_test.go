package engine

import (
	"context"
	"io"
	"log/slog"
	"sort"
	"sync/atomic"
	"testing"
	"time"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestRunPool_CollectsKeptResults(t *testing.T) {
	jobs := make([]int, 100)
	for i := range jobs {
		jobs[i] = i
	}

	got := runPool(context.Background(), discardLogger(), "test", 8, jobs,
		func(_ context.Context, j int) (int, bool) {
			return j * 2, j%2 == 0
		})

	sort.Ints(got)
	if len(got) != 50 {
		t.Fatalf("len = %d, want 50", len(got))
	}
	for i, v := range got {
		if v != i*4 {
			t.Fatalf("got[%d] = %d, want %d", i, v, i*4)
		}
	}
}

func TestRunPool_BoundsConcurrency(t *testing.T) {
	const workers = 3
	var active, peak atomic.Int32

	jobs := make([]int, 30)
	runPool(context.Background(), discardLogger(), "test", workers, jobs,
		func(_ context.Context, _ int) (struct{}, bool) {
			n := active.Add(1)
			for {
				p := peak.Load()
				if n <= p || peak.CompareAndSwap(p, n) {
					break
				}
			}
			time.Sleep(2 * time.Millisecond)
			active.Add(-1)
			return struct{}{}, true
		})

	if p := peak.Load(); p > workers {
		t.Errorf("peak concurrency = %d, want <= %d", p, workers)
	}
}

func TestRunPool_RecoversFromPanic(t *testing.T) {
	got := runPool(context.Background(), discardLogger(), "test", 2, []string{"ok-1", "boom", "ok-2"},
		func(_ context.Context, j string) (string, bool) {
			if j == "boom" {
				panic("probe exploded")
			}
			return j, true
		})

	sort.Strings(got)
	if len(got) != 2 || got[0] != "ok-1" || got[1] != "ok-2" {
		t.Errorf("results = %v, want [ok-1 ok-2]", got)
	}
}

func TestRunPool_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var calls atomic.Int32
	done := make(chan []int, 1)
	go func() {
		done <- runPool(ctx, discardLogger(), "test", 4, make([]int, 1000),
			func(_ context.Context, j int) (int, bool) {
				calls.Add(1)
				return j, true
			})
	}()

	select {
	case got := <-done:
		if len(got) != 0 || calls.Load() != 0 {
			t.Errorf("results = %d, calls = %d; want none", len(got), calls.Load())
		}
	case <-time.After(5 * time.Second):
		t.Fatal("runPool did not return after cancellation")
	}
}

func TestRunPool_ManyResultsDoNotDeadlock(t *testing.T) {
	// More results than the pool's buffers hold.
	jobs := make([]int, 500)
	done := make(chan int, 1)
	go func() {
		done <- len(runPool(context.Background(), discardLogger(), "test", 1, jobs,
			func(_ context.Context, j int) (int, bool) { return j, true }))
	}()

	select {
	case n := <-done:
		if n != 500 {
			t.Errorf("results = %d, want 500", n)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("runPool deadlocked")
	}
}

func TestRunPool_Empty(t *testing.T) {
	got := runPool(context.Background(), discardLogger(), "test", 4, nil,
		func(_ context.Context, j int) (int, bool) { return j, true })
	if got != nil {
		t.Errorf("results = %v, want nil", got)
	}
}
