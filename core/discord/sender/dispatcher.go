// Package sender runs best-effort Discord calls after the interaction
// response has been written.
package sender

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"github.com/m3rciful/questionbot/core/idgen"
	"github.com/m3rciful/questionbot/core/logger"
)

var (
	// ErrQueueClosed is returned when enqueue is attempted after dispatcher stop.
	ErrQueueClosed = errors.New("discord sender: queue closed")
	// ErrQueueFull indicates the queue is saturated and the job was not accepted.
	ErrQueueFull = errors.New("discord sender: queue full")
)

// Options controls the behaviour of the dispatcher.
type Options struct {
	QueueSize int
	Workers   int
	// JobTimeout bounds a single job.
	JobTimeout time.Duration
}

type job struct {
	ctx    context.Context
	id     string
	action string
	run    func(context.Context) error
}

// Dispatcher executes deferred jobs on a fixed worker pool. Jobs are not
// retried; a failure is logged and counted.
type Dispatcher struct {
	opts Options
	jobs chan job

	mu     sync.RWMutex
	closed bool
	once   sync.Once
	wg     sync.WaitGroup
	errs   atomic.Uint64
}

// NewDispatcher starts a dispatcher with sane defaults if options are zeroed.
func NewDispatcher(opts Options) *Dispatcher {
	if opts.QueueSize <= 0 {
		opts.QueueSize = 256
	}
	if opts.Workers <= 0 {
		opts.Workers = 4
	}
	if opts.JobTimeout <= 0 {
		opts.JobTimeout = 15 * time.Second
	}

	d := &Dispatcher{
		opts: opts,
		jobs: make(chan job, opts.QueueSize),
	}

	d.wg.Add(opts.Workers)
	for i := 0; i < opts.Workers; i++ {
		go d.worker()
	}

	logger.Info(context.Background(), "discord.sender", "dispatcher.start",
		slog.Int("workers", opts.Workers),
		slog.Int("queue", opts.QueueSize),
	)
	return d
}

// Enqueue schedules run for asynchronous execution. The job keeps ctx's values
// but not its cancellation, so it outlives the request that scheduled it.
func (d *Dispatcher) Enqueue(ctx context.Context, action string, run func(context.Context) error) error {
	if run == nil {
		return errors.New("discord sender: nil run function")
	}
	j := d.newJob(ctx, action, run)

	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return ErrQueueClosed
	}
	select {
	case d.jobs <- j:
		return nil
	default:
		return ErrQueueFull
	}
}

// Go schedules run like Enqueue; when the queue is full or closed the job runs
// on the calling goroutine instead of being dropped.
func (d *Dispatcher) Go(ctx context.Context, action string, run func(context.Context) error) {
	if run == nil {
		return
	}
	err := d.Enqueue(ctx, action, run)
	if err == nil {
		return
	}
	logger.Warn(ctx, "discord.sender", "job.inline",
		slog.String("op", action),
		slog.String("cause", err.Error()),
	)
	d.handleJob(d.newJob(ctx, action, run))
}

// ErrorCount returns the number of failed jobs.
func (d *Dispatcher) ErrorCount() uint64 {
	return d.errs.Load()
}

// Close stops accepting jobs and waits for queued jobs to finish.
func (d *Dispatcher) Close() {
	d.once.Do(func() {
		d.mu.Lock()
		d.closed = true
		close(d.jobs)
		d.mu.Unlock()
		d.wg.Wait()
		logger.Info(context.Background(), "discord.sender", "dispatcher.stop",
			slog.Uint64("count", d.errs.Load()),
		)
	})
}

func (d *Dispatcher) newJob(ctx context.Context, action string, run func(context.Context) error) job {
	if ctx == nil {
		ctx = context.Background()
	}
	return job{
		ctx:    context.WithoutCancel(ctx),
		id:     idgen.MustGenerate("job-"),
		action: action,
		run:    run,
	}
}

func (d *Dispatcher) worker() {
	defer d.wg.Done()
	for j := range d.jobs {
		d.handleJob(j)
	}
}

func (d *Dispatcher) handleJob(j job) {
	ctx, cancel := context.WithTimeout(j.ctx, d.opts.JobTimeout)
	defer cancel()

	start := time.Now()
	err := runSafe(ctx, j.run)
	if err != nil {
		d.errs.Add(1)
		logger.Warn(j.ctx, "discord.sender", "job.fail",
			slog.String("status", "fail"),
			slog.String("job_id", j.id),
			slog.String("op", j.action),
			slog.Duration("duration", logger.Took(start)),
			logger.ErrAttr(err),
		)
		return
	}
	logger.Debug(j.ctx, "discord.sender", "job.done",
		slog.String("status", "ok"),
		slog.String("job_id", j.id),
		slog.String("op", j.action),
		slog.Duration("duration", logger.Took(start)),
	)
}

func runSafe(ctx context.Context, run func(context.Context) error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error(ctx, "discord.sender", "job.panic",
				slog.Any("err", r),
				slog.String("stack", string(debug.Stack())),
			)
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return run(ctx)
}
