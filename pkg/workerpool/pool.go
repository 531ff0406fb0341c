// Package workerpool provides a bounded worker pool for controlled concurrency.
// The dashboard uses it to fan out the independent per-tab fetches of every
// open patient screen without one goroutine per request per tab.
package workerpool

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// ErrStopped is returned by Submit after Stop
var ErrStopped = errors.New("pool is shutting down")

// ErrQueueFull is returned by Submit when the queue has no room
var ErrQueueFull = errors.New("task queue is full")

// Task represents a unit of work to be processed
type Task struct {
	ID      string
	Context context.Context
	Run     func(ctx context.Context) error
	// Done is called with Run's result from the worker goroutine
	Done func(err error)
}

// Config holds worker pool configuration
type Config struct {
	// Workers is the number of concurrent workers
	Workers int
	// QueueSize is the size of the task queue
	QueueSize int
	// GracefulShutdownTimeout is the timeout for graceful shutdown
	GracefulShutdownTimeout time.Duration
}

// DefaultConfig returns defaults sized for a ward of concurrent screens
func DefaultConfig() Config {
	return Config{
		Workers:                 6,
		QueueSize:               512,
		GracefulShutdownTimeout: 10 * time.Second,
	}
}

// Pool manages a pool of workers for concurrent task processing
type Pool struct {
	config Config
	logger *zap.Logger

	taskChan chan *Task
	wg       sync.WaitGroup

	ctx     context.Context
	cancel  context.CancelFunc
	stopped atomic.Bool
	mu      sync.RWMutex

	// Metrics
	tasksSubmitted int64
	tasksCompleted int64
	tasksFailed    int64
	activeWorkers  int64
	queueDepth     int64
}

// New creates a new worker pool
func New(cfg Config, logger *zap.Logger) *Pool {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Workers <= 0 {
		cfg.Workers = DefaultConfig().Workers
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = DefaultConfig().QueueSize
	}
	if cfg.GracefulShutdownTimeout <= 0 {
		cfg.GracefulShutdownTimeout = DefaultConfig().GracefulShutdownTimeout
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Pool{
		config:   cfg,
		logger:   logger,
		taskChan: make(chan *Task, cfg.QueueSize),
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Start launches all workers
func (p *Pool) Start() {
	for i := 0; i < p.config.Workers; i++ {
		p.wg.Add(1)
		go p.worker(i)
	}
	p.logger.Info("worker pool started",
		zap.Int("workers", p.config.Workers),
		zap.Int("queue_size", p.config.QueueSize))
}

// Submit adds a task to the queue
func (p *Pool) Submit(task *Task) error {
	if task == nil || task.Run == nil {
		return fmt.Errorf("task has nothing to run")
	}

	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.stopped.Load() {
		return ErrStopped
	}

	select {
	case p.taskChan <- task:
		atomic.AddInt64(&p.tasksSubmitted, 1)
		atomic.AddInt64(&p.queueDepth, 1)
		return nil
	default:
		return ErrQueueFull
	}
}

// RunAll submits every task and returns a channel closed once all of them
// finished. Tasks the pool cannot accept run on their own goroutine instead.
func (p *Pool) RunAll(ctx context.Context, tasks ...*Task) <-chan struct{} {
	var group sync.WaitGroup
	for _, t := range tasks {
		t := t
		if t.Context == nil {
			t.Context = ctx
		}
		done := t.Done
		group.Add(1)
		t.Done = func(err error) {
			defer group.Done()
			if done != nil {
				done(err)
			}
		}
		if err := p.Submit(t); err != nil {
			p.logger.Debug("running task outside pool",
				zap.String("task_id", t.ID),
				zap.Error(err))
			go p.process(-1, t)
		}
	}

	finished := make(chan struct{})
	go func() {
		group.Wait()
		close(finished)
	}()
	return finished
}

// Stop gracefully shuts down the pool
func (p *Pool) Stop() error {
	p.mu.Lock()
	if p.stopped.Swap(true) {
		p.mu.Unlock()
		return nil
	}
	p.logger.Info("stopping worker pool")
	close(p.taskChan)
	p.mu.Unlock()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.logger.Info("worker pool stopped gracefully")
	case <-time.After(p.config.GracefulShutdownTimeout):
		p.logger.Warn("worker pool shutdown timed out")
	}
	p.cancel()
	return nil
}

// worker is the main worker goroutine
func (p *Pool) worker(id int) {
	defer p.wg.Done()

	p.logger.Debug("worker started", zap.Int("worker_id", id))
	atomic.AddInt64(&p.activeWorkers, 1)
	defer atomic.AddInt64(&p.activeWorkers, -1)

	for task := range p.taskChan {
		atomic.AddInt64(&p.queueDepth, -1)
		p.process(id, task)
	}

	p.logger.Debug("worker stopped", zap.Int("worker_id", id))
}

func (p *Pool) process(workerID int, task *Task) {
	ctx := task.Context
	if ctx == nil {
		ctx = p.ctx
	}

	var err error
	if ctxErr := ctx.Err(); ctxErr != nil {
		err = ctxErr
	} else {
		err = p.run(ctx, task)
	}

	if err == nil {
		atomic.AddInt64(&p.tasksCompleted, 1)
	} else {
		atomic.AddInt64(&p.tasksFailed, 1)
		p.logger.Debug("task failed",
			zap.String("task_id", task.ID),
			zap.Int("worker_id", workerID),
			zap.Error(err))
	}
	if task.Done != nil {
		task.Done(err)
	}
}

func (p *Pool) run(ctx context.Context, task *Task) (err error) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("task panicked",
				zap.String("task_id", task.ID),
				zap.Any("panic", r))
			err = fmt.Errorf("task %s panicked: %v", task.ID, r)
		}
	}()
	return task.Run(ctx)
}

// Stats returns current pool statistics
type Stats struct {
	TasksSubmitted int64
	TasksCompleted int64
	TasksFailed    int64
	ActiveWorkers  int64
	QueueDepth     int64
	QueueCapacity  int
	Workers        int
}

// Stats returns current pool statistics
func (p *Pool) Stats() Stats {
	return Stats{
		TasksSubmitted: atomic.LoadInt64(&p.tasksSubmitted),
		TasksCompleted: atomic.LoadInt64(&p.tasksCompleted),
		TasksFailed:    atomic.LoadInt64(&p.tasksFailed),
		ActiveWorkers:  atomic.LoadInt64(&p.activeWorkers),
		QueueDepth:     atomic.LoadInt64(&p.queueDepth),
		QueueCapacity:  p.config.QueueSize,
		Workers:        p.config.Workers,
	}
}

// IsHealthy returns true if the pool is operating normally
func (p *Pool) IsHealthy() bool {
	stats := p.Stats()
	return !p.stopped.Load() && float64(stats.QueueDepth)/float64(stats.QueueCapacity) < 0.9
}
