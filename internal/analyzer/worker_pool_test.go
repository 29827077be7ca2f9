package analyzer

import (
	"runtime"
	"sync"
	"sync/atomic"
	"testing"
)

func TestNewWorkerPool_ZeroWorkers(t *testing.T) {
	pool := NewWorkerPool(0)
	if pool.Workers() != runtime.NumCPU() {
		t.Errorf("Expected %d workers, got %d", runtime.NumCPU(), pool.Workers())
	}
}

func TestWorkerPool_Run(t *testing.T) {
	pool := NewWorkerPool(2)
	defer pool.Close()

	var counter atomic.Int64
	jobs := make([]func(), 10)
	for i := range jobs {
		jobs[i] = func() { counter.Add(1) }
	}

	if err := pool.Run(jobs); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if counter.Load() != 10 {
		t.Errorf("Expected counter to be 10, got %d", counter.Load())
	}

	stats := pool.Stats()
	if stats.SubmittedJobs != 10 {
		t.Errorf("Expected 10 submitted jobs, got %d", stats.SubmittedJobs)
	}
}

func TestWorkerPool_ConcurrentRuns(t *testing.T) {
	pool := NewWorkerPool(3)
	defer pool.Close()

	var wg sync.WaitGroup
	results := make([]int64, 4)
	for r := 0; r < 4; r++ {
		wg.Add(1)
		go func(r int) {
			defer wg.Done()
			var sum atomic.Int64
			jobs := make([]func(), 5)
			for i := range jobs {
				v := int64(i + 1)
				jobs[i] = func() { sum.Add(v) }
			}
			_ = pool.Run(jobs)
			results[r] = sum.Load()
		}(r)
	}
	wg.Wait()

	for r, got := range results {
		if got != 15 {
			t.Errorf("Run %d: expected sum 15, got %d", r, got)
		}
	}
}

func TestWorkerPool_PanicIsReported(t *testing.T) {
	pool := NewWorkerPool(2)
	defer pool.Close()

	var ran atomic.Int64
	err := pool.Run([]func(){
		func() { panic("bad strip") },
		func() { ran.Add(1) },
	})
	if err == nil {
		t.Fatal("Expected panic to be reported as error")
	}
	if ran.Load() != 1 {
		t.Errorf("Expected other job to run, got %d", ran.Load())
	}

	// workers survive the panic
	if err := pool.Run([]func(){func() { ran.Add(1) }}); err != nil {
		t.Errorf("Unexpected error after panic: %v", err)
	}
}

func TestWorkerPool_ClosedRunsInline(t *testing.T) {
	pool := NewWorkerPool(2)
	pool.Close()
	pool.Close()

	if pool.Submit(func() {}) {
		t.Error("Expected Submit to fail on a closed pool")
	}

	done := false
	if err := pool.Run([]func(){func() { done = true }}); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if !done {
		t.Error("Expected job to run inline")
	}
}

func TestSplitRows(t *testing.T) {
	tests := []struct {
		name       string
		start, end int
		parts      int
		wantSpans  int
	}{
		{"even", 0, 10, 5, 5},
		{"uneven", 1, 9, 3, 3},
		{"more parts than rows", 0, 2, 8, 2},
		{"empty", 3, 3, 4, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			spans := splitRows(tt.start, tt.end, tt.parts)
			if len(spans) != tt.wantSpans {
				t.Fatalf("Expected %d spans, got %d", tt.wantSpans, len(spans))
			}
			covered := 0
			next := tt.start
			for _, s := range spans {
				if s.start != next {
					t.Errorf("Expected span to start at %d, got %d", next, s.start)
				}
				covered += s.end - s.start
				next = s.end
			}
			if covered != tt.end-tt.start {
				t.Errorf("Expected %d rows covered, got %d", tt.end-tt.start, covered)
			}
		})
	}
}
