package scheduler

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

type periodicTask struct {
	name     string
	interval time.Duration
	task     Task
}

// IntervalTrigger submits each registered task to the scheduler on its own
// interval. A task whose previous job has not finished is skipped for that tick.
type IntervalTrigger struct {
	scheduler *Scheduler
	logger    *zap.Logger
	tasks     []periodicTask

	cancel    context.CancelFunc
	wg        sync.WaitGroup
	mu        sync.Mutex
	isRunning bool
	inFlight  map[string]*Job
}

// NewIntervalTrigger creates a trigger feeding scheduler
func NewIntervalTrigger(scheduler *Scheduler, logger *zap.Logger) *IntervalTrigger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &IntervalTrigger{
		scheduler: scheduler,
		logger:    logger,
		inFlight:  make(map[string]*Job),
	}
}

// Every registers task to run every interval. Non-positive intervals disable it.
func (t *IntervalTrigger) Every(name string, interval time.Duration, task Task) *IntervalTrigger {
	if interval <= 0 {
		t.logger.Info("periodic job disabled", zap.String("job", name))
		return t
	}
	t.tasks = append(t.tasks, periodicTask{name: name, interval: interval, task: task})
	return t
}

// Start launches one ticker loop per registered task
func (t *IntervalTrigger) Start(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.isRunning {
		return nil
	}
	t.isRunning = true

	ctx, cancel := context.WithCancel(ctx)
	t.cancel = cancel
	for _, pt := range t.tasks {
		t.wg.Add(1)
		go t.loop(ctx, pt)
		t.logger.Info("periodic job registered", zap.String("job", pt.name), zap.Duration("interval", pt.interval))
	}
	return nil
}

// Stop stops the ticker loops. Jobs already submitted are left to the scheduler.
func (t *IntervalTrigger) Stop(ctx context.Context) error {
	t.mu.Lock()
	if !t.isRunning {
		t.mu.Unlock()
		return nil
	}
	t.isRunning = false
	t.cancel()
	t.mu.Unlock()

	done := make(chan struct{})
	go func() {
		t.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (t *IntervalTrigger) loop(ctx context.Context, pt periodicTask) {
	defer t.wg.Done()

	ticker := time.NewTicker(pt.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			t.fire(pt)
		}
	}
}

// fire submits a new job for pt unless the previous one is still running
func (t *IntervalTrigger) fire(pt periodicTask) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if prev, ok := t.inFlight[pt.name]; ok {
		select {
		case <-prev.Done():
		default:
			t.logger.Debug("previous run still in flight, skipping tick", zap.String("job", pt.name))
			return
		}
	}

	job := NewJob(pt.name, pt.task, t.scheduler.config.RetryAttempts)
	if err := t.scheduler.Submit(job); err != nil {
		t.logger.Warn("failed to submit periodic job", zap.String("job", pt.name), zap.Error(err))
		return
	}
	t.inFlight[pt.name] = job
}
