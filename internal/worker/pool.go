// Package worker runs best-effort background jobs on a bounded pool.
package worker

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Job is a unit of best-effort work. Its error is logged, never returned.
type Job func(ctx context.Context) error

type jobWrapper struct {
	name string
	fn   Job
}

// Dispatcher runs submitted jobs on a fixed number of goroutines.
// It must be closed to drain pending work.
type Dispatcher struct {
	jobs    chan jobWrapper
	wg      sync.WaitGroup
	timeout time.Duration
	logger  *slog.Logger

	mu     sync.RWMutex
	closed bool
}

// NewDispatcher starts workerCount workers with a queue of bufferSize.
// Each job runs under its own context bounded by timeout (0 = none).
func NewDispatcher(workerCount, bufferSize int, timeout time.Duration, logger *slog.Logger) *Dispatcher {
	if workerCount < 1 {
		workerCount = 1
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	d := &Dispatcher{
		jobs:    make(chan jobWrapper, bufferSize),
		timeout: timeout,
		logger:  logger,
	}

	d.wg.Add(workerCount)
	for i := 0; i < workerCount; i++ {
		go d.worker()
	}
	return d
}

func (d *Dispatcher) worker() {
	defer d.wg.Done()
	for job := range d.jobs {
		d.run(job)
	}
}

func (d *Dispatcher) run(job jobWrapper) {
	ctx := context.Background()
	if d.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.timeout)
		defer cancel()
	}

	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("background job panicked", "job", job.name, "panic", r)
		}
	}()

	if err := job.fn(ctx); err != nil {
		d.logger.Warn("background job failed", "job", job.name, "error", err)
	}
}

// Submit queues fn. After Close the job runs inline so it is never lost.
func (d *Dispatcher) Submit(name string, fn Job) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		d.run(jobWrapper{name: name, fn: fn})
		return
	}
	d.jobs <- jobWrapper{name: name, fn: fn}
}

// Close stops accepting jobs and waits for queued ones to finish.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	close(d.jobs)
	d.mu.Unlock()

	d.wg.Wait()
}
