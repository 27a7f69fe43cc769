package workerpool

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"strings"
	"sync"

	"verdant/internal/logging"
)

const (
	// DefaultSize is used when configuration is missing or malformed.
	DefaultSize = 4
	// MaxSize caps configured pools. Outbound classification calls are
	// provider rate-limited; more workers only move the queue upstream.
	MaxSize = 10
)

// ErrClosed is returned by Submit after Close.
var ErrClosed = errors.New("worker pool closed")

// ParseSize interprets a configured pool size. Malformed or non-positive
// values fall back to fallback, values above max are capped. Configuration
// keeps the field as a string precisely so bad input degrades here instead of
// failing the whole config decode.
func ParseSize(raw string, fallback, max int) int {
	if fallback <= 0 {
		fallback = DefaultSize
	}
	if max <= 0 {
		max = MaxSize
	}
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || n <= 0 {
		return fallback
	}
	if n > max {
		return max
	}
	return n
}

// Task is one unit of work.
type Task func()

// Pool runs tasks on a fixed set of workers. Workers start lazily on the
// first Submit; an idle pool costs nothing. The task channel is unbuffered,
// so at most Size tasks execute at once and Submit blocks while every worker
// is busy.
type Pool struct {
	size   int
	logger *slog.Logger

	start     sync.Once
	closeOnce sync.Once
	tasks     chan Task
	quit      chan struct{}
	done      sync.WaitGroup
}

// Option configures a Pool.
type Option func(*Pool)

// WithLogger attaches a logger for lifecycle events.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pool) {
		if logger != nil {
			p.logger = logging.NewComponentLogger(logger, "workerpool")
		}
	}
}

// New builds a pool with the given worker count, clamped to [1, MaxSize].
func New(size int, opts ...Option) *Pool {
	if size < 1 {
		size = DefaultSize
	}
	if size > MaxSize {
		size = MaxSize
	}
	p := &Pool{
		size:   size,
		logger: logging.NewNop(),
		tasks:  make(chan Task),
		quit:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Size returns the worker count.
func (p *Pool) Size() int { return p.size }

// Submit hands task to a worker, blocking while all workers are busy. That
// blocking is the backpressure bound on concurrent outbound calls. It returns
// ctx's error if the context ends first, and ErrClosed after Close.
func (p *Pool) Submit(ctx context.Context, task Task) error {
	if task == nil {
		return errors.New("nil task")
	}
	select {
	case <-p.quit:
		return ErrClosed
	default:
	}
	p.start.Do(p.startWorkers)

	select {
	case p.tasks <- task:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-p.quit:
		return ErrClosed
	}
}

// Close stops accepting work and waits for in-flight tasks to finish. Safe to
// call more than once.
func (p *Pool) Close() {
	p.closeOnce.Do(func() { close(p.quit) })
	p.done.Wait()
}

func (p *Pool) startWorkers() {
	p.logger.Debug("starting worker pool", logging.Int("workers", p.size))
	p.done.Add(p.size)
	for i := 0; i < p.size; i++ {
		go p.worker()
	}
}

func (p *Pool) worker() {
	defer p.done.Done()
	for {
		select {
		case <-p.quit:
			return
		case task := <-p.tasks:
			task()
		}
	}
}
