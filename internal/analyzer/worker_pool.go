package analyzer

import (
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"
)

// WorkerPool runs CPU-bound pixel passes on a fixed set of goroutines
type WorkerPool struct {
	workers  int
	jobQueue chan func()
	wg       sync.WaitGroup
	once     sync.Once
	mu       sync.RWMutex
	closed   bool

	submitted atomic.Int64
	completed atomic.Int64
}

// PoolStats is a snapshot of pool activity
type PoolStats struct {
	Workers       int   `json:"workers"`
	SubmittedJobs int64 `json:"submitted_jobs"`
	CompletedJobs int64 `json:"completed_jobs"`
}

// NewWorkerPool creates a new worker pool with the specified number of workers
func NewWorkerPool(workers int) *WorkerPool {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	return &WorkerPool{
		workers:  workers,
		jobQueue: make(chan func(), workers*2),
	}
}

// Start launches the workers; later calls are no-ops
func (wp *WorkerPool) Start() {
	wp.once.Do(func() {
		for i := 0; i < wp.workers; i++ {
			wp.wg.Add(1)
			go wp.worker()
		}
	})
}

func (wp *WorkerPool) worker() {
	defer wp.wg.Done()
	for job := range wp.jobQueue {
		job()
		wp.completed.Add(1)
	}
}

// Workers returns the number of workers
func (wp *WorkerPool) Workers() int {
	return wp.workers
}

// Submit queues a job. It reports false once the pool is closed.
func (wp *WorkerPool) Submit(job func()) bool {
	wp.mu.RLock()
	defer wp.mu.RUnlock()
	if wp.closed {
		return false
	}
	wp.Start()
	wp.submitted.Add(1)
	wp.jobQueue <- job
	return true
}

// Run executes jobs on the pool and waits for all of them. A panicking job
// does not take down its worker; the first panic is returned as an error.
// Jobs run inline when the pool is closed.
func (wp *WorkerPool) Run(jobs []func()) error {
	var (
		wg       sync.WaitGroup
		panicMu  sync.Mutex
		firstErr error
	)

	for _, job := range jobs {
		job := job
		wrapped := func() {
			defer wg.Done()
			defer func() {
				if r := recover(); r != nil {
					panicMu.Lock()
					if firstErr == nil {
						firstErr = fmt.Errorf("worker job panicked: %v", r)
					}
					panicMu.Unlock()
				}
			}()
			job()
		}

		wg.Add(1)
		if !wp.Submit(wrapped) {
			wrapped()
		}
	}

	wg.Wait()
	return firstErr
}

// Stats returns current counters
func (wp *WorkerPool) Stats() PoolStats {
	return PoolStats{
		Workers:       wp.workers,
		SubmittedJobs: wp.submitted.Load(),
		CompletedJobs: wp.completed.Load(),
	}
}

// Close stops accepting jobs and waits for queued jobs to finish
func (wp *WorkerPool) Close() {
	wp.mu.Lock()
	if wp.closed {
		wp.mu.Unlock()
		return
	}
	wp.closed = true
	close(wp.jobQueue)
	wp.mu.Unlock()
	wp.wg.Wait()
}

// rowSpan is a half-open range of rows handled by one job
type rowSpan struct {
	start, end int
}

// splitRows divides [start, end) into at most parts contiguous strips
func splitRows(start, end, parts int) []rowSpan {
	n := end - start
	if n <= 0 {
		return nil
	}
	if parts <= 0 || parts > n {
		parts = n
	}
	per := (n + parts - 1) / parts
	spans := make([]rowSpan, 0, parts)
	for s := start; s < end; s += per {
		e := s + per
		if e > end {
			e = end
		}
		spans = append(spans, rowSpan{s, e})
	}
	return spans
}
