// Package supervisor runs named goroutines under one cancellable context,
// recovering panics and optionally restarting failed loops with backoff.
package supervisor

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	logx "growthbot/pkg/logx"
)

// PanicError is returned in place of a recovered panic.
type PanicError struct {
	Task  string
	Value any
	Stack string
}

func (e *PanicError) Error() string { return fmt.Sprintf("panic in %s: %v", e.Task, e.Value) }

// Supervisor owns a context shared by every goroutine it starts.
type Supervisor struct {
	ctx    context.Context
	cancel context.CancelFunc

	log         logx.Logger
	cancelOnErr bool

	wg       sync.WaitGroup
	active   atomic.Int64
	started  atomic.Uint64
	firstErr atomic.Pointer[error]

	mu    sync.Mutex
	tasks map[string]*taskStats
}

type Option func(*Supervisor)

func WithLogger(log logx.Logger) Option { return func(s *Supervisor) { s.log = log } }

// WithCancelOnError cancels the shared context on the first task error.
func WithCancelOnError(enabled bool) Option { return func(s *Supervisor) { s.cancelOnErr = enabled } }

func New(parent context.Context, opts ...Option) *Supervisor {
	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := context.WithCancel(parent)
	s := &Supervisor{ctx: ctx, cancel: cancel, tasks: map[string]*taskStats{}}
	for _, o := range opts {
		o(s)
	}
	return s
}

func (s *Supervisor) Context() context.Context { return s.ctx }

// Cancel cancels the shared context without waiting.
func (s *Supervisor) Cancel() { s.cancel() }

// Err returns the first recorded task error, if any.
func (s *Supervisor) Err() error {
	if p := s.firstErr.Load(); p != nil {
		return *p
	}
	return nil
}

func (s *Supervisor) recordErr(err error) {
	if err == nil {
		return
	}
	s.firstErr.CompareAndSwap(nil, &err)
	if s.cancelOnErr {
		s.cancel()
	}
}

// Go runs fn once. A panic is recovered and recorded like an error.
// context.Canceled is a clean exit.
func (s *Supervisor) Go(name string, fn func(ctx context.Context) error) {
	if fn == nil {
		return
	}
	s.spawn(func() {
		t0 := s.noteStart(name, false)
		err := guard(s.ctx, name, fn)
		if errors.Is(err, context.Canceled) {
			err = nil
		}
		s.noteStop(name, t0, err)
		if err != nil {
			s.logFailure(name, err)
			s.recordErr(fmt.Errorf("%s: %w", name, err))
		}
	})
}

// Go0 is Go for functions without an error result.
func (s *Supervisor) Go0(name string, fn func(ctx context.Context)) {
	if fn == nil {
		return
	}
	s.Go(name, func(ctx context.Context) error { fn(ctx); return nil })
}

// GoRestart runs fn and restarts it after an error or panic, with jittered
// exponential backoff, until the context is cancelled.
func (s *Supervisor) GoRestart(name string, fn func(ctx context.Context) error, opts ...RestartOption) {
	if fn == nil {
		return
	}
	cfg := defaultRestart()
	for _, o := range opts {
		o(&cfg)
	}
	s.spawn(func() { s.restartLoop(name, fn, cfg) })
}

func (s *Supervisor) restartLoop(name string, fn func(ctx context.Context) error, cfg restartConfig) {
	backoff := cfg.min
	for restarts := 0; ; restarts++ {
		if s.ctx.Err() != nil {
			return
		}
		t0 := s.noteStart(name, restarts > 0)
		err := guard(s.ctx, name, fn)

		if s.ctx.Err() != nil || errors.Is(err, context.Canceled) {
			s.noteStop(name, t0, nil)
			return
		}
		if err == nil {
			if cfg.stopOnCleanExit {
				s.noteStop(name, t0, nil)
				return
			}
			err = errors.New("exited")
		}
		s.noteStop(name, t0, err)
		s.logFailure(name, err)
		if cfg.publishFirstErr {
			s.recordErr(fmt.Errorf("%s: %w", name, err))
		}

		if cfg.maxRestarts > 0 && restarts >= cfg.maxRestarts {
			s.log.Error("task gave up", logx.String("task", name), logx.Int("restarts", restarts), logx.Err(err))
			if cfg.fatalOnFinalErr {
				s.recordErr(fmt.Errorf("%s: %w", name, err))
			}
			return
		}

		// a long healthy run resets the backoff
		if time.Since(t0) >= 30*time.Second {
			backoff = cfg.min
		}
		wait := jitter(backoff)
		s.log.Warn("task restarting", logx.String("task", name), logx.Duration("backoff", wait), logx.Err(err))

		timer := time.NewTimer(wait)
		select {
		case <-s.ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
		backoff = min(backoff*2, cfg.max)
	}
}

func (s *Supervisor) spawn(body func()) {
	s.started.Add(1)
	s.active.Add(1)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer s.active.Add(-1)
		body()
	}()
}

func (s *Supervisor) logFailure(name string, err error) {
	var pe *PanicError
	if errors.As(err, &pe) {
		s.log.Error("task panicked", logx.String("task", name), logx.Any("panic", pe.Value), logx.String("stack", pe.Stack))
		return
	}
	s.log.Warn("task failed", logx.String("task", name), logx.Err(err))
}

// guard calls fn, turning a panic into *PanicError.
func guard(ctx context.Context, name string, fn func(ctx context.Context) error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &PanicError{Task: name, Value: r, Stack: string(debug.Stack())}
		}
	}()
	return fn(ctx)
}

func jitter(d time.Duration) time.Duration {
	if j := int64(d) / 5; j > 0 {
		d += time.Duration(time.Now().UnixNano() % (j + 1))
	}
	return d
}

// Stop cancels the context and waits for all tasks.
func (s *Supervisor) Stop(ctx context.Context) error {
	s.cancel()
	return s.Wait(ctx)
}

// Wait blocks until every task has returned or ctx is done.
func (s *Supervisor) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return s.Err()
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ---- restart options ----

type RestartOption func(*restartConfig)

type restartConfig struct {
	min, max        time.Duration
	maxRestarts     int // 0 = unlimited
	stopOnCleanExit bool
	fatalOnFinalErr bool
	publishFirstErr bool
}

func defaultRestart() restartConfig {
	return restartConfig{min: 250 * time.Millisecond, max: 30 * time.Second, stopOnCleanExit: true}
}

func WithRestartBackoff(lo, hi time.Duration) RestartOption {
	return func(c *restartConfig) {
		if lo > 0 {
			c.min = lo
		}
		if hi >= c.min {
			c.max = hi
		}
	}
}

// WithMaxRestarts bounds restarts; the first run does not count.
func WithMaxRestarts(n int) RestartOption { return func(c *restartConfig) { c.maxRestarts = n } }

func WithFatalOnFinalError(enabled bool) RestartOption {
	return func(c *restartConfig) { c.fatalOnFinalErr = enabled }
}

// WithPublishFirstError records the first failure in Err while still restarting.
func WithPublishFirstError(enabled bool) RestartOption {
	return func(c *restartConfig) { c.publishFirstErr = enabled }
}

func WithStopOnCleanExit(enabled bool) RestartOption {
	return func(c *restartConfig) { c.stopOnCleanExit = enabled }
}
