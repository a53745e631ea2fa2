package inmemory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/dvloznov/sie-import/internal/jobs"
	"github.com/dvloznov/sie-import/internal/logger"
	"github.com/google/uuid"
)

// DefaultRetryBackoff is the delay before the first retry; it doubles per attempt.
const DefaultRetryBackoff = time.Second

// maxRetryBackoff caps the doubling.
const maxRetryBackoff = 5 * time.Minute

// Queue runs import jobs on a fixed pool of goroutines fed by a buffered
// channel. Jobs live only in this process.
type Queue struct {
	pending chan *jobs.ImportFileJob
	done    chan struct{}
	store   jobs.JobStore
	workers int

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup

	// RetryBackoff is the delay before the first retry.
	RetryBackoff time.Duration
}

// NewQueue creates a queue holding up to bufferSize waiting jobs and running
// workers of them at a time. store may be nil.
func NewQueue(bufferSize, workers int, store jobs.JobStore) *Queue {
	if workers < 1 {
		workers = 1
	}
	return &Queue{
		pending:      make(chan *jobs.ImportFileJob, bufferSize),
		done:         make(chan struct{}),
		store:        store,
		workers:      workers,
		RetryBackoff: DefaultRetryBackoff,
	}
}

func (q *Queue) isClosed() bool {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.closed
}

// PublishImportFile fills in ID, status, creation time and retry budget,
// records the job and waits for room in the buffer.
func (q *Queue) PublishImportFile(ctx context.Context, job *jobs.ImportFileJob) error {
	if q.isClosed() {
		return jobs.ErrQueueClosed
	}

	if job.JobID == "" {
		job.JobID = uuid.NewString()
	}
	if job.Status == "" {
		job.Status = jobs.JobStatusPending
	}
	if job.CreatedAt.IsZero() {
		job.CreatedAt = time.Now()
	}
	if job.MaxRetries == 0 {
		job.MaxRetries = jobs.DefaultMaxRetries
	}

	if q.store != nil {
		if err := q.store.SaveJob(ctx, job); err != nil {
			return fmt.Errorf("PublishImportFile: saving job: %w", err)
		}
	}
	return q.enqueue(ctx, job)
}

func (q *Queue) enqueue(ctx context.Context, job *jobs.ImportFileJob) error {
	select {
	case q.pending <- job:
		return nil
	case <-q.done:
		return jobs.ErrQueueClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Start launches the workers and returns.
func (q *Queue) Start(ctx context.Context, handler jobs.JobHandler) error {
	if q.isClosed() {
		return jobs.ErrQueueClosed
	}

	q.wg.Add(q.workers)
	for i := 0; i < q.workers; i++ {
		go func() {
			defer q.wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case <-q.done:
					return
				case job := <-q.pending:
					q.run(ctx, job, handler)
				}
			}
		}()
	}
	return nil
}

// run executes one attempt and either finishes the job or schedules a retry.
func (q *Queue) run(ctx context.Context, job *jobs.ImportFileJob, handler jobs.JobHandler) {
	log := logger.FromContext(ctx).With().
		Str("job_id", job.JobID).
		Str("tenant_id", job.TenantID).
		Int("attempt", job.RetryCount+1).
		Logger()

	started := time.Now()
	job.Status = jobs.JobStatusRunning
	job.StartedAt = &started
	job.CompletedAt = nil
	q.save(ctx, job)

	err := handler(ctx, job)

	finished := time.Now()
	job.CompletedAt = &finished

	switch {
	case err == nil:
		job.Status = jobs.JobStatusCompleted
		job.Error = ""
		q.save(ctx, job)
		log.Info().Dur("duration", finished.Sub(started)).Msg("Job completed")

	case job.RetryCount >= job.MaxRetries:
		job.Status = jobs.JobStatusFailed
		job.Error = err.Error()
		q.save(ctx, job)
		log.Error().Err(err).Msg("Job failed, no retries left")

	default:
		job.RetryCount++
		job.Status = jobs.JobStatusRetrying
		job.Error = err.Error()
		q.save(ctx, job)

		delay := retryDelay(q.RetryBackoff, job.RetryCount)
		log.Warn().Err(err).Dur("backoff", delay).Msg("Job failed, retrying")
		time.AfterFunc(delay, func() { q.retry(ctx, job) })
	}
}

func (q *Queue) retry(ctx context.Context, job *jobs.ImportFileJob) {
	job.Status = jobs.JobStatusPending
	job.StartedAt = nil
	job.CompletedAt = nil
	q.save(ctx, job)

	if err := q.enqueue(ctx, job); err != nil {
		job.Status = jobs.JobStatusFailed
		job.Error = fmt.Sprintf("re-enqueue: %v", err)
		q.save(context.Background(), job)
	}
}

// retryDelay is base doubled for every earlier retry, capped at maxRetryBackoff.
func retryDelay(base time.Duration, retry int) time.Duration {
	d := base
	for i := 1; i < retry; i++ {
		d *= 2
		if d >= maxRetryBackoff {
			return maxRetryBackoff
		}
	}
	return d
}

func (q *Queue) save(ctx context.Context, job *jobs.ImportFileJob) {
	if q.store == nil {
		return
	}
	if err := q.store.SaveJob(ctx, job); err != nil {
		log := logger.FromContext(ctx)
		log.Warn().Err(err).Str("job_id", job.JobID).Msg("Failed to save job state")
	}
}

// Stop rejects new jobs and waits for running ones, or for ctx.
// Jobs still buffered are dropped.
func (q *Queue) Stop(ctx context.Context) error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return nil
	}
	q.closed = true
	close(q.done)
	q.mu.Unlock()

	finished := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(finished)
	}()

	select {
	case <-finished:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (q *Queue) Close() error {
	return q.Stop(context.Background())
}

var (
	_ jobs.Publisher = (*Queue)(nil)
	_ jobs.Consumer  = (*Queue)(nil)
)
