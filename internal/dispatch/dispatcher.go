// Package dispatch runs best-effort side effects off the request path.
package dispatch

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

// Task is a named unit of fire-and-forget work
type Task struct {
	Name string
	Run  func(ctx context.Context) error
}

// Executor accepts tasks without blocking. Submit reports whether the task was accepted.
type Executor interface {
	Submit(task Task) bool
}

// Config sizes a Dispatcher
type Config struct {
	Workers     int
	BufferSize  int
	TaskTimeout time.Duration
}

// Dispatcher is a bounded worker pool. Tasks submitted while the buffer is
// full are dropped and counted. Failures are logged, never returned.
type Dispatcher struct {
	cfg    Config
	logger *zap.Logger

	tasks   chan Task
	done    chan struct{}
	wg      sync.WaitGroup
	dropped atomic.Uint64
	failed  atomic.Uint64

	// mu orders sends against Close so nothing is enqueued after workers drain
	mu     sync.RWMutex
	closed bool
}

// New starts a dispatcher with cfg.Workers goroutines
func New(cfg Config, logger *zap.Logger) *Dispatcher {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = 1
	}
	if cfg.TaskTimeout <= 0 {
		cfg.TaskTimeout = 10 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	d := &Dispatcher{
		cfg:    cfg,
		logger: logger,
		tasks:  make(chan Task, cfg.BufferSize),
		done:   make(chan struct{}),
	}

	d.wg.Add(cfg.Workers)
	for range cfg.Workers {
		go d.worker()
	}

	return d
}

// Submit enqueues task unless the dispatcher is closed or its buffer is full
func (d *Dispatcher) Submit(task Task) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed {
		d.dropped.Add(1)
		return false
	}

	select {
	case d.tasks <- task:
		return true
	default:
		d.dropped.Add(1)
		d.logger.Warn("Dispatch queue full, dropping task", zap.String("task", task.Name))
		return false
	}
}

// Close stops accepting tasks and waits for queued ones to finish or ctx to end
func (d *Dispatcher) Close(ctx context.Context) error {
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		close(d.done)
	}
	d.mu.Unlock()

	finished := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(finished)
	}()

	select {
	case <-finished:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("dispatcher drain interrupted: %w", ctx.Err())
	}
}

// Dropped returns how many tasks were rejected
func (d *Dispatcher) Dropped() uint64 {
	return d.dropped.Load()
}

// Failed returns how many tasks returned an error or panicked
func (d *Dispatcher) Failed() uint64 {
	return d.failed.Load()
}

// RegisterMetrics exposes the drop and failure counts as observable counters
func (d *Dispatcher) RegisterMetrics(meter metric.Meter) error {
	dropped, err := meter.Int64ObservableCounter("aths_dispatch_dropped_total",
		metric.WithDescription("Best-effort tasks dropped because the queue was full or closed"))
	if err != nil {
		return fmt.Errorf("failed to create dropped counter: %w", err)
	}

	failed, err := meter.Int64ObservableCounter("aths_dispatch_failed_total",
		metric.WithDescription("Best-effort tasks that returned an error"))
	if err != nil {
		return fmt.Errorf("failed to create failed counter: %w", err)
	}

	_, err = meter.RegisterCallback(func(_ context.Context, o metric.Observer) error {
		o.ObserveInt64(dropped, int64(d.Dropped()))
		o.ObserveInt64(failed, int64(d.Failed()))
		return nil
	}, dropped, failed)
	if err != nil {
		return fmt.Errorf("failed to register dispatch metrics: %w", err)
	}

	return nil
}

func (d *Dispatcher) worker() {
	defer d.wg.Done()

	for {
		select {
		case task := <-d.tasks:
			d.run(task)
		case <-d.done:
			for {
				select {
				case task := <-d.tasks:
					d.run(task)
				default:
					return
				}
			}
		}
	}
}

func (d *Dispatcher) run(task Task) {
	ctx, cancel := context.WithTimeout(context.Background(), d.cfg.TaskTimeout)
	defer cancel()

	if err := runSafely(ctx, task); err != nil {
		d.failed.Add(1)
		d.logger.Warn("Best-effort task failed", zap.String("task", task.Name), zap.Error(err))
	}
}

func runSafely(ctx context.Context, task Task) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return task.Run(ctx)
}

// Inline runs each task on the caller's goroutine before Submit returns.
// Errors go to Logger when set. Used in tests and tooling.
type Inline struct {
	Logger  *zap.Logger
	Timeout time.Duration
}

func (e Inline) Submit(task Task) bool {
	ctx := context.Background()
	if e.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.Timeout)
		defer cancel()
	}

	if err := runSafely(ctx, task); err != nil && e.Logger != nil {
		e.Logger.Warn("Best-effort task failed", zap.String("task", task.Name), zap.Error(err))
	}
	return true
}

var (
	_ Executor = (*Dispatcher)(nil)
	_ Executor = Inline{}
)
