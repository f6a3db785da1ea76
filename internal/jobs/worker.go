package jobs

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/schoolledger/ledger-api/pkg/logger"
)

// Job is a unit of background work
type Job func(ctx context.Context) error

// Worker runs queued jobs on a fixed pool of goroutines and owns the
// schedulers for periodic maintenance jobs.
type Worker struct {
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	queue   chan Job
	stats   WorkerStats
	statsMu sync.RWMutex
	closing sync.Once
}

// WorkerStats holds counters about processed jobs. CompletedJobs counts every
// finished job; FailedJobs is the subset that returned an error or panicked.
type WorkerStats struct {
	Workers       int   `json:"workers"`
	ActiveJobs    int   `json:"active_jobs"`
	CompletedJobs int64 `json:"completed_jobs"`
	FailedJobs    int64 `json:"failed_jobs"`
	QueueLength   int   `json:"queue_length"`
	Scheduled     int   `json:"scheduled"`
}

// NewWorker starts numWorkers goroutines reading from the job queue
func NewWorker(numWorkers int) *Worker {
	if numWorkers < 1 {
		numWorkers = 1
	}
	ctx, cancel := context.WithCancel(context.Background())
	w := &Worker{
		ctx:    ctx,
		cancel: cancel,
		queue:  make(chan Job, 100),
	}
	w.stats.Workers = numWorkers

	for i := 0; i < numWorkers; i++ {
		w.wg.Add(1)
		go w.process(i)
	}
	return w
}

// Enqueue adds a job to the queue. When the queue is full the job runs on
// the caller's goroutine.
func (w *Worker) Enqueue(name string, job Job) {
	select {
	case <-w.ctx.Done():
		logger.Warn("[Worker] shutting down, job dropped", "job", name)
	case w.queue <- namedJob(name, job):
	default:
		logger.Warn("[Worker] queue full, running job inline", "job", name)
		w.run(name, job)
	}
}

func namedJob(name string, job Job) Job {
	return func(ctx context.Context) error {
		if err := job(ctx); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
		return nil
	}
}

func (w *Worker) process(workerID int) {
	defer w.wg.Done()
	for {
		select {
		case <-w.ctx.Done():
			return
		case job, ok := <-w.queue:
			if !ok {
				return
			}
			w.run(fmt.Sprintf("queue-%d", workerID), job)
		}
	}
}

// ScheduleEvery runs job at fixed intervals until Shutdown. The first run
// happens after one interval, not at startup.
func (w *Worker) ScheduleEvery(name string, interval time.Duration, job Job) {
	w.statsMu.Lock()
	w.stats.Scheduled++
	w.statsMu.Unlock()

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-w.ctx.Done():
				return
			case <-ticker.C:
				w.run(name, job)
			}
		}
	}()
	logger.Info("[Scheduler] job scheduled", "job", name, "interval", interval.String())
}

func (w *Worker) run(name string, job Job) {
	w.trackJobStart()
	start := time.Now()
	failed := false
	defer func() {
		if r := recover(); r != nil {
			logger.Error("[Worker] job panic", "job", name, "panic", fmt.Sprint(r))
			failed = true
		}
		w.trackJobEnd(failed)
	}()

	if err := job(w.ctx); err != nil {
		logger.Error("[Worker] job failed", "job", name, "error", err)
		failed = true
		return
	}
	logger.Debug("[Worker] job completed", "job", name, "duration", time.Since(start).String())
}

// Shutdown stops the schedulers, drains nothing further from the queue and
// waits for running jobs to return.
func (w *Worker) Shutdown() {
	w.closing.Do(func() {
		w.cancel()
		w.wg.Wait()
	})
}

// Context is cancelled when the worker shuts down
func (w *Worker) Context() context.Context {
	return w.ctx
}

// GetStats returns a copy of the current counters
func (w *Worker) GetStats() WorkerStats {
	w.statsMu.RLock()
	defer w.statsMu.RUnlock()
	stats := w.stats
	stats.QueueLength = len(w.queue)
	return stats
}

func (w *Worker) trackJobStart() {
	w.statsMu.Lock()
	defer w.statsMu.Unlock()
	w.stats.ActiveJobs++
}

func (w *Worker) trackJobEnd(failed bool) {
	w.statsMu.Lock()
	defer w.statsMu.Unlock()
	w.stats.ActiveJobs--
	w.stats.CompletedJobs++
	if failed {
		w.stats.FailedJobs++
	}
}
