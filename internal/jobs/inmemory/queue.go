// Package inmemory provides a channel-backed job queue and store for
// single-process deployments and tests. Swapping in a real broker means
// implementing jobs.Publisher and jobs.Consumer against it.
package inmemory

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jfields/txsentry/internal/jobs"
)

// ErrQueueClosed is returned by Publish after Stop or Close.
var ErrQueueClosed = errors.New("job queue is closed")

const (
	defaultWorkers    = 4
	defaultMaxRetries = 3
)

// Queue is an in-memory publisher/consumer pair sharing one buffered
// channel. Safe for concurrent use.
type Queue struct {
	jobCh   chan *jobs.Job
	closeCh chan struct{}
	wg      sync.WaitGroup
	mu      sync.RWMutex
	store   jobs.Store
	workers int
	closed  bool
}

// NewQueue creates a queue. bufferSize bounds how many jobs may sit
// pending before Publish blocks; workers bounds handler concurrency
// (<=0 means the default).
func NewQueue(bufferSize, workers int, store jobs.Store) *Queue {
	if workers <= 0 {
		workers = defaultWorkers
	}
	return &Queue{
		jobCh:   make(chan *jobs.Job, bufferSize),
		closeCh: make(chan struct{}),
		store:   store,
		workers: workers,
	}
}

// Publish enqueues a job, filling in ID, status, timestamps and retry
// budget when absent.
func (q *Queue) Publish(ctx context.Context, job *jobs.Job) error {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		return ErrQueueClosed
	}

	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	if job.Status == "" {
		job.Status = jobs.StatusPending
	}
	if job.CreatedAt.IsZero() {
		job.CreatedAt = time.Now().UTC()
	}
	if job.MaxRetries == 0 {
		job.MaxRetries = defaultMaxRetries
	}
	if q.store != nil {
		if err := q.store.Save(ctx, job); err != nil {
			return err
		}
	}

	select {
	case q.jobCh <- job:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-q.closeCh:
		return ErrQueueClosed
	}
}

// Start launches the worker pool. It returns immediately; workers run
// until ctx is cancelled or Stop is called.
func (q *Queue) Start(ctx context.Context, handler jobs.Handler) error {
	q.mu.RLock()
	if q.closed {
		q.mu.RUnlock()
		return ErrQueueClosed
	}
	q.mu.RUnlock()

	for i := 0; i < q.workers; i++ {
		q.wg.Add(1)
		go q.worker(ctx, handler)
	}
	return nil
}

func (q *Queue) worker(ctx context.Context, handler jobs.Handler) {
	defer q.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case <-q.closeCh:
			return
		case job := <-q.jobCh:
			if job == nil {
				return
			}
			q.run(ctx, job, handler)
		}
	}
}

func (q *Queue) run(ctx context.Context, job *jobs.Job, handler jobs.Handler) {
	now := time.Now().UTC()
	job.Status = jobs.StatusRunning
	job.StartedAt = &now
	q.save(ctx, job)

	err := handler(ctx, job)

	done := time.Now().UTC()
	job.CompletedAt = &done

	if err == nil {
		job.Status = jobs.StatusCompleted
		job.Error = ""
		q.save(ctx, job)
		return
	}

	job.Error = err.Error()
	if job.RetryCount >= job.MaxRetries {
		job.Status = jobs.StatusFailed
		q.save(ctx, job)
		return
	}

	job.RetryCount++
	job.Status = jobs.StatusRetrying
	q.save(ctx, job)

	// Linear backoff is enough for an in-process queue; the retry count
	// is small and bounded.
	backoff := time.Duration(job.RetryCount) * time.Second
	time.AfterFunc(backoff, func() {
		job.Status = jobs.StatusPending
		job.StartedAt = nil
		job.CompletedAt = nil
		_ = q.Publish(ctx, job)
	})
}

func (q *Queue) save(ctx context.Context, job *jobs.Job) {
	if q.store != nil {
		_ = q.store.Save(ctx, job)
	}
}

// Stop closes the queue and waits for in-flight jobs, bounded by ctx.
func (q *Queue) Stop(ctx context.Context) error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return nil
	}
	q.closed = true
	close(q.closeCh)
	q.mu.Unlock()

	done := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close implements jobs.Publisher.
func (q *Queue) Close() error {
	return q.Stop(context.Background())
}

var (
	_ jobs.Publisher = (*Queue)(nil)
	_ jobs.Consumer  = (*Queue)(nil)
)
