// Package scheduler runs background maintenance jobs on a small worker pool
// with per-job timeouts and bounded retries.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// JobStatus represents the status of a scheduled job
type JobStatus string

const (
	JobStatusPending JobStatus = "PENDING"
	JobStatusRunning JobStatus = "RUNNING"
	JobStatusSuccess JobStatus = "SUCCESS"
	JobStatusFailed  JobStatus = "FAILED"
)

// Task is the work a job performs
type Task func(ctx context.Context) error

// Job is one execution of a named task
type Job struct {
	ID          uuid.UUID
	Name        string
	Status      JobStatus
	Error       string
	StartedAt   *time.Time
	CompletedAt *time.Time
	RetryCount  int
	MaxRetries  int
	NextRetryAt *time.Time

	task Task
	// done is closed once the job reaches a final state
	done chan struct{}
}

// NewJob creates a pending job for task
func NewJob(name string, task Task, maxRetries int) *Job {
	return &Job{
		ID:         uuid.New(),
		Name:       name,
		Status:     JobStatusPending,
		MaxRetries: maxRetries,
		task:       task,
		done:       make(chan struct{}),
	}
}

// Start marks the job as running
func (j *Job) Start(now time.Time) {
	j.Status = JobStatusRunning
	j.StartedAt = &now
	j.Error = ""
}

// Complete marks the job as successful
func (j *Job) Complete(now time.Time) {
	j.Status = JobStatusSuccess
	j.CompletedAt = &now
}

// Fail marks the job as failed
func (j *Job) Fail(now time.Time, err string) {
	j.Status = JobStatusFailed
	j.CompletedAt = &now
	j.Error = err
}

// ShouldRetry returns true if the job should be retried
func (j *Job) ShouldRetry() bool {
	return j.Status == JobStatusFailed && j.RetryCount < j.MaxRetries
}

// ScheduleRetry puts the job back to pending, runnable after delay
func (j *Job) ScheduleRetry(now time.Time, delay time.Duration) {
	j.RetryCount++
	j.Status = JobStatusPending
	next := now.Add(delay)
	j.NextRetryAt = &next
	j.Error = ""
}

// Done is closed when the job succeeded or exhausted its retries
func (j *Job) Done() <-chan struct{} {
	return j.done
}

// Config holds scheduler configuration
type Config struct {
	Workers       int
	JobTimeout    time.Duration
	RetryAttempts int
	RetryDelay    time.Duration
	QueueSize     int
}

// DefaultConfig returns default scheduler configuration
func DefaultConfig() Config {
	return Config{
		Workers:       2,
		JobTimeout:    10 * time.Minute,
		RetryAttempts: 2,
		RetryDelay:    time.Minute,
		QueueSize:     32,
	}
}

func (c Config) validate() error {
	if c.Workers <= 0 || c.JobTimeout <= 0 || c.RetryAttempts < 0 || c.RetryDelay < 0 {
		return ErrInvalidConfig
	}
	return nil
}

// Scheduler executes submitted jobs on a fixed pool of workers
type Scheduler struct {
	config Config
	logger *zap.Logger
	now    func() time.Time

	jobs      chan *Job
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	mu        sync.Mutex
	isRunning bool
}

// NewScheduler creates a new scheduler instance
func NewScheduler(config Config, logger *zap.Logger) (*Scheduler, error) {
	if err := config.validate(); err != nil {
		return nil, err
	}
	if config.QueueSize <= 0 {
		config.QueueSize = DefaultConfig().QueueSize
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scheduler{
		config: config,
		logger: logger,
		now:    time.Now,
		jobs:   make(chan *Job, config.QueueSize),
	}, nil
}

// Start launches the workers
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.isRunning {
		return nil
	}
	s.isRunning = true

	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	for i := 0; i < s.config.Workers; i++ {
		s.wg.Add(1)
		go s.worker(ctx, i)
	}

	s.logger.Info("maintenance scheduler started",
		zap.Int("workers", s.config.Workers),
		zap.Duration("job_timeout", s.config.JobTimeout),
	)
	return nil
}

// Stop cancels running jobs and waits for the workers, bounded by ctx
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return nil
	}
	s.isRunning = false
	s.cancel()
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("maintenance scheduler stopped")
		return nil
	case <-ctx.Done():
		s.logger.Warn("maintenance scheduler stop timed out")
		return ctx.Err()
	}
}

// Submit queues job for execution
func (s *Scheduler) Submit(job *Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.isRunning {
		return ErrSchedulerNotRunning
	}

	select {
	case s.jobs <- job:
		s.logger.Debug("job submitted", zap.String("job_id", job.ID.String()), zap.String("job", job.Name))
		return nil
	default:
		return ErrJobQueueFull
	}
}

func (s *Scheduler) worker(ctx context.Context, workerID int) {
	defer s.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case job := <-s.jobs:
			s.process(ctx, job, workerID)
		}
	}
}

func (s *Scheduler) process(ctx context.Context, job *Job, workerID int) {
	if job.NextRetryAt != nil {
		wait := job.NextRetryAt.Sub(s.now())
		if wait > 0 {
			select {
			case <-ctx.Done():
				return
			case <-time.After(wait):
			}
		}
	}

	log := s.logger.With(
		zap.Int("worker_id", workerID),
		zap.String("job_id", job.ID.String()),
		zap.String("job", job.Name),
	)
	job.Start(s.now())
	log.Info("running job", zap.Int("attempt", job.RetryCount+1))

	err := s.run(ctx, job)
	if err == nil {
		job.Complete(s.now())
		log.Info("job completed", zap.Duration("took", job.CompletedAt.Sub(*job.StartedAt)))
		close(job.done)
		return
	}

	job.Fail(s.now(), err.Error())
	log.Error("job failed", zap.Error(err))
	if !job.ShouldRetry() || ctx.Err() != nil {
		close(job.done)
		return
	}

	job.ScheduleRetry(s.now(), s.config.RetryDelay)
	select {
	case s.jobs <- job:
		log.Info("job scheduled for retry", zap.Int("retry_count", job.RetryCount), zap.Int("max_retries", job.MaxRetries))
	default:
		log.Warn("failed to re-queue job for retry")
		close(job.done)
	}
}

// run executes the task under the job timeout, turning panics into errors
func (s *Scheduler) run(ctx context.Context, job *Job) (err error) {
	jobCtx, cancel := context.WithTimeout(ctx, s.config.JobTimeout)
	defer cancel()
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("job panicked: %v", r)
		}
	}()
	return job.task(jobCtx)
}
