package scheduler

import (
	"context"
	"fmt"
	"runtime/debug"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	logx "growthbot/pkg/logx"
)

const DefaultSchedule = "5m"

// Job is one run. Its error is logged; it never stops the loop.
type Job func(ctx context.Context) error

type Config struct {
	Schedule   string // see ParseSchedule; empty means DefaultSchedule
	Timezone   string // IANA name for cron schedules; empty means local
	RunOnStart bool   // run immediately instead of waiting one period
}

// RunInfo describes the most recent run.
type RunInfo struct {
	Started  time.Time     `json:"started"`
	Finished time.Time     `json:"finished"`
	Took     time.Duration `json:"took"`
	Manual   bool          `json:"manual,omitempty"`
	Err      string        `json:"err,omitempty"`
}

type Snapshot struct {
	Name     string        `json:"name"`
	Kind     string        `json:"kind"`
	Schedule string        `json:"schedule"`
	Every    time.Duration `json:"every,omitempty"`
	Next     time.Time     `json:"next"`
	Running  bool          `json:"running"`
	Runs     uint64        `json:"runs"`
	Last     *RunInfo      `json:"last,omitempty"`
}

// Service runs a Job on a schedule, one run at a time.
type Service struct {
	name string
	job  Job
	log  logx.Logger

	spec    ParsedSpec
	sched   cron.Schedule // cron mode only
	loc     *time.Location
	onStart bool

	trigger chan struct{}

	mu      sync.Mutex
	next    time.Time
	running bool
	runs    uint64
	last    *RunInfo
}

func New(name string, cfg Config, job Job, log logx.Logger) (*Service, error) {
	if job == nil {
		return nil, fmt.Errorf("scheduler %s: job required", name)
	}
	raw := strings.TrimSpace(cfg.Schedule)
	if raw == "" {
		raw = DefaultSchedule
	}
	spec, err := ParseSchedule(raw)
	if err != nil {
		return nil, fmt.Errorf("scheduler %s: %w", name, err)
	}
	loc := time.Local
	if tz := strings.TrimSpace(cfg.Timezone); tz != "" {
		if loc, err = time.LoadLocation(tz); err != nil {
			return nil, fmt.Errorf("scheduler %s: timezone: %w", name, err)
		}
	}
	s := &Service{
		name:    name,
		job:     job,
		log:     log.With(logx.String("comp", "scheduler"), logx.String("schedule", name)),
		spec:    spec,
		loc:     loc,
		onStart: cfg.RunOnStart,
		trigger: make(chan struct{}, 1),
	}
	if spec.Kind == SpecCron {
		if s.sched, err = cronParser.Parse(spec.Cron); err != nil {
			return nil, fmt.Errorf("scheduler %s: %w", name, err)
		}
	}
	return s, nil
}

// Run loops until ctx is cancelled and returns ctx.Err().
func (s *Service) Run(ctx context.Context) error {
	wait := s.delay(time.Now())
	if s.onStart {
		wait = 0
	}
	s.setNext(time.Now().Add(wait))
	s.log.Info("scheduler started", logx.String("kind", s.spec.Kind.String()), logx.Time("next", time.Now().Add(wait)))

	timer := time.NewTimer(wait)
	defer timer.Stop()

	for {
		manual := false
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
		case <-s.trigger:
			manual = true
		}

		s.runOnce(ctx, manual)
		if ctx.Err() != nil {
			return ctx.Err()
		}

		now := time.Now()
		wait = s.delay(now)
		s.setNext(now.Add(wait))
		timer.Reset(wait)
	}
}

// RunNow asks the loop for an immediate run. It returns false when a
// request is already pending.
func (s *Service) RunNow() bool {
	select {
	case s.trigger <- struct{}{}:
		return true
	default:
		return false
	}
}

func (s *Service) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := Snapshot{
		Name:     s.name,
		Kind:     s.spec.Kind.String(),
		Schedule: s.spec.Cron,
		Every:    s.spec.Every,
		Next:     s.next,
		Running:  s.running,
		Runs:     s.runs,
	}
	if s.spec.Kind == SpecInterval {
		snap.Schedule = s.spec.Every.String()
	}
	if s.last != nil {
		cp := *s.last
		snap.Last = &cp
	}
	return snap
}

// delay is the time from now until the next scheduled run.
func (s *Service) delay(now time.Time) time.Duration {
	if s.spec.Kind == SpecInterval {
		return s.spec.Every
	}
	next := s.sched.Next(now.In(s.loc))
	if d := next.Sub(now); d > 0 {
		return d
	}
	return 0
}

func (s *Service) setNext(t time.Time) {
	s.mu.Lock()
	s.next = t
	s.mu.Unlock()
}

func (s *Service) runOnce(ctx context.Context, manual bool) {
	info := RunInfo{Started: time.Now(), Manual: manual}
	s.mu.Lock()
	s.running = true
	s.mu.Unlock()

	err := s.call(ctx)

	info.Finished = time.Now()
	info.Took = info.Finished.Sub(info.Started)
	if err != nil {
		info.Err = err.Error()
		s.log.Warn("run failed", logx.Bool("manual", manual), logx.Duration("took", info.Took), logx.Err(err))
	} else {
		s.log.Debug("run finished", logx.Bool("manual", manual), logx.Duration("took", info.Took))
	}

	s.mu.Lock()
	s.running = false
	s.runs++
	s.last = &info
	s.mu.Unlock()
}

func (s *Service) call(ctx context.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Error("run panicked", logx.Any("panic", r), logx.String("stack", string(debug.Stack())))
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return s.job(ctx)
}
