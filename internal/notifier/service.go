package notifier

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"growthbot/internal/eventbus"
	rtsup "growthbot/internal/runtime/supervisor"
	kit "growthbot/internal/transport"
	logx "growthbot/pkg/logx"
)

const historySize = 100

// Sender is the part of the chat adapter the notifier needs.
type Sender interface {
	SendText(ctx context.Context, to kit.ChatTarget, text string, opt *kit.SendOptions) (kit.MessageRef, error)
}

type job struct {
	n      Notification
	target kit.ChatTarget
}

// Service is safe for concurrent use.
type Service struct {
	log    logx.Logger
	sender Sender
	bus    eventbus.Bus

	mu       sync.Mutex
	cfg      Config
	limiter  *rate.Limiter
	queue    chan job
	sup      *rtsup.Supervisor
	inflight sync.WaitGroup // Post calls between the running check and the enqueue

	hmu     sync.Mutex
	history []HistoryItem
}

func New(cfg Config, sender Sender, bus eventbus.Bus, log logx.Logger) *Service {
	s := &Service{
		log:    log.With(logx.String("comp", "notifier")),
		sender: sender,
		bus:    bus,
	}
	s.Apply(cfg)
	return s
}

// Apply swaps rate and retry settings. Worker and queue sizes take effect on
// the next Start.
func (s *Service) Apply(cfg Config) {
	cfg = cfg.withDefaults()
	s.mu.Lock()
	s.cfg = cfg
	s.limiter = rate.NewLimiter(rate.Limit(cfg.RatePerSec), cfg.RatePerSec)
	s.mu.Unlock()
}

// Start launches the workers. Calling Start on a running service is a no-op.
func (s *Service) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.queue != nil {
		return
	}
	cfg := s.cfg
	q := make(chan job, cfg.QueueSize)
	sup := rtsup.New(ctx, rtsup.WithLogger(s.log))
	for i := 0; i < cfg.Workers; i++ {
		sup.GoRestart(fmt.Sprintf("notifier.worker.%d", i), func(c context.Context) error {
			s.work(c, q)
			return nil
		}, rtsup.WithPublishFirstError(true))
	}
	s.queue, s.sup = q, sup
	s.log.Info("notifier started", logx.Int("workers", cfg.Workers), logx.Int("queue", cfg.QueueSize))
}

// Stop refuses new posts and drains the queue until ctx expires, then
// cancels whatever is still sending.
func (s *Service) Stop(ctx context.Context) {
	s.mu.Lock()
	q, sup := s.queue, s.sup
	s.queue, s.sup = nil, nil
	s.mu.Unlock()
	if q == nil {
		return
	}

	s.inflight.Wait()
	close(q)
	if err := sup.Wait(ctx); err != nil && ctx.Err() != nil {
		s.log.Warn("notifier drain timed out", logx.Int("pending", len(q)))
	}
	sup.Cancel()
}

// Post validates the destination and enqueues n. The error covers only
// validation and enqueue; delivery outcomes go to the log and the bus.
func (s *Service) Post(ctx context.Context, n Notification) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	target, err := kit.ParseChatTarget(n.Destination)
	if err != nil {
		err = fmt.Errorf("%w: %v", ErrBadDestination, err)
		s.log.Warn("notification rejected", logx.String("destination", n.Destination), logx.Err(err))
		s.publish(eventbus.TypeNotifierFailed, n, 0, err)
		return err
	}

	s.mu.Lock()
	q := s.queue
	if q == nil {
		s.mu.Unlock()
		s.publish(eventbus.TypeNotifierDrop, n, 0, ErrStopped)
		return ErrStopped
	}
	s.inflight.Add(1)
	s.mu.Unlock()
	defer s.inflight.Done()

	select {
	case q <- job{n: n, target: target}:
		s.publish(eventbus.TypeNotifierQueued, n, 0, nil)
		return nil
	default:
		s.log.Warn("notification dropped", logx.String("destination", n.Destination), logx.Err(ErrQueueFull))
		s.publish(eventbus.TypeNotifierDrop, n, 0, ErrQueueFull)
		return ErrQueueFull
	}
}

// History returns recently delivered notifications, oldest first.
func (s *Service) History() []HistoryItem {
	s.hmu.Lock()
	defer s.hmu.Unlock()
	return append([]HistoryItem(nil), s.history...)
}

func (s *Service) work(ctx context.Context, q <-chan job) {
	for {
		select {
		case <-ctx.Done():
			return
		case j, ok := <-q:
			if !ok {
				return
			}
			s.deliver(ctx, j)
		}
	}
}

func (s *Service) deliver(ctx context.Context, j job) {
	s.mu.Lock()
	cfg, lim := s.cfg, s.limiter
	s.mu.Unlock()

	text := j.n.Render()
	opts := &kit.SendOptions{ParseMode: "HTML"}
	attempts := 1 + cfg.RetryMax

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err := lim.Wait(ctx); err != nil {
			return
		}
		callCtx, cancel := context.WithTimeout(ctx, cfg.SendTimeout)
		_, err := s.sender.SendText(callCtx, j.target, text, opts)
		cancel()
		if err == nil {
			s.remember(j.n)
			s.publish(eventbus.TypeNotifierSent, j.n, attempt, nil)
			return
		}
		lastErr = err
		s.log.Debug("send failed", logx.String("destination", j.n.Destination), logx.Int("attempt", attempt), logx.Err(err))
		if attempt == attempts {
			break
		}

		timer := time.NewTimer(backoff(cfg, attempt))
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
	}

	s.log.Warn("notification failed",
		logx.String("destination", j.n.Destination),
		logx.String("title", j.n.Title),
		logx.Int("attempts", attempts),
		logx.Err(lastErr),
	)
	s.publish(eventbus.TypeNotifierFailed, j.n, attempts, lastErr)
}

func (s *Service) remember(n Notification) {
	s.hmu.Lock()
	s.history = append(s.history, HistoryItem{At: time.Now(), Destination: n.Destination, Title: n.Title})
	if len(s.history) > historySize {
		s.history = s.history[len(s.history)-historySize:]
	}
	s.hmu.Unlock()
}

func (s *Service) publish(typ string, n Notification, attempts int, err error) {
	if s.bus == nil {
		return
	}
	ev := Event{Destination: n.Destination, Title: n.Title, Attempts: attempts, At: time.Now(), Meta: n.Meta}
	if err != nil {
		ev.Error = err.Error()
	}
	s.bus.Publish(eventbus.Event{Type: typ, Time: ev.At, Data: ev})
}

// backoff is the delay after the given failed attempt: base*2^(attempt-1),
// capped, with ±30% jitter.
func backoff(cfg Config, attempt int) time.Duration {
	d := cfg.RetryBase
	for i := 1; i < attempt && d < cfg.RetryMaxDelay; i++ {
		d *= 2
	}
	d = time.Duration(float64(d) * (0.7 + rand.Float64()*0.6))
	return min(d, cfg.RetryMaxDelay)
}
