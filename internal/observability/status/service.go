// Package status serves a small read-only JSON API about the tracker.
package status

import (
	"context"
	"crypto/subtle"
	"errors"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"growthbot/internal/notifier"
	rtsup "growthbot/internal/runtime/supervisor"
	"growthbot/internal/social"
	"growthbot/internal/task/scheduler"
	"growthbot/internal/tracker"
	logx "growthbot/pkg/logx"
)

const DefaultAddr = "127.0.0.1:8089"

type Config struct {
	Enabled bool
	Addr    string
	Token   string
}

var ErrInsecureBind = errors.New("status: non-loopback addr requires a token")

// Check rejects an enabled server bound beyond loopback without a token.
func (c Config) Check() error {
	if c.Enabled && c.Token == "" && !isLoopbackAddr(c.addr()) {
		return ErrInsecureBind
	}
	return nil
}

func (c Config) addr() string {
	if a := strings.TrimSpace(c.Addr); a != "" {
		return a
	}
	return DefaultAddr
}

// Tracker is the read side of the tracker service.
type Tracker interface {
	Groups() social.Registry
	Reports() []tracker.SweepReport
	Running() bool
}

type Schedule interface {
	Snapshot() scheduler.Snapshot
}

type History interface {
	History() []notifier.HistoryItem
}

type Deps struct {
	Tracker  Tracker
	Schedule Schedule // optional
	History  History  // optional
}

type Service struct {
	log     logx.Logger
	deps    Deps
	started time.Time

	mu  sync.Mutex
	cfg Config
	sup *rtsup.Supervisor
}

func New(cfg Config, deps Deps, log logx.Logger) *Service {
	return &Service{
		log:     log.With(logx.String("comp", "status")),
		deps:    deps,
		cfg:     cfg,
		started: time.Now(),
	}
}

func (s *Service) Enabled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cfg.Enabled
}

// Handler builds the fiber app. Exposed for tests (app.Test).
func (s *Service) Handler(token string) *fiber.App {
	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
		ReadTimeout:           5 * time.Second,
		WriteTimeout:          10 * time.Second,
		IdleTimeout:           60 * time.Second,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			var fe *fiber.Error
			if errors.As(err, &fe) {
				code = fe.Code
			}
			if code >= 500 {
				s.log.Warn("status request failed", logx.String("path", c.Path()), logx.Err(err))
			}
			return c.Status(code).JSON(fiber.Map{"error": err.Error()})
		},
	})
	app.Use(recover.New())
	if token != "" {
		app.Use(bearer(token))
	}

	app.Get("/healthz", s.healthz)
	api := app.Group("/api")
	api.Get("/groups", s.groups)
	api.Get("/groups/:group", s.group)
	api.Get("/sweeps", s.sweeps)
	api.Get("/notifications", s.notifications)
	return app
}

func bearer(token string) fiber.Handler {
	want := []byte("Bearer " + token)
	return func(c *fiber.Ctx) error {
		got := []byte(c.Get(fiber.HeaderAuthorization))
		if subtle.ConstantTimeCompare(got, want) != 1 {
			return fiber.ErrUnauthorized
		}
		return c.Next()
	}
}

func (s *Service) healthz(c *fiber.Ctx) error {
	body := fiber.Map{
		"status":        "ok",
		"uptime":        time.Since(s.started).Round(time.Second).String(),
		"sweep_running": s.deps.Tracker.Running(),
	}
	if reps := s.deps.Tracker.Reports(); len(reps) > 0 {
		body["last_sweep"] = reps[len(reps)-1].Finished
	}
	if s.deps.Schedule != nil {
		body["next_sweep"] = s.deps.Schedule.Snapshot().Next
	}
	return c.JSON(body)
}

type groupView struct {
	Group    string           `json:"group"`
	Accounts []social.Account `json:"accounts"`
}

func (s *Service) groups(c *fiber.Ctx) error {
	reg := s.deps.Tracker.Groups()
	out := make([]groupView, 0, len(reg))
	for _, g := range reg.Groups() {
		out = append(out, view(g, reg[g]))
	}
	return c.JSON(out)
}

func (s *Service) group(c *fiber.Ctx) error {
	g := c.Params("group")
	accs, ok := s.deps.Tracker.Groups()[g]
	if !ok {
		return fiber.NewError(fiber.StatusNotFound, "unknown group "+g)
	}
	return c.JSON(view(g, accs))
}

func view(group string, accs []*social.Account) groupView {
	v := groupView{Group: group, Accounts: make([]social.Account, 0, len(accs))}
	for _, a := range accs {
		v.Accounts = append(v.Accounts, *a)
	}
	return v
}

func (s *Service) sweeps(c *fiber.Ctx) error {
	body := fiber.Map{
		"running": s.deps.Tracker.Running(),
		"reports": s.deps.Tracker.Reports(),
	}
	if s.deps.Schedule != nil {
		body["schedule"] = s.deps.Schedule.Snapshot()
	}
	return c.JSON(body)
}

func (s *Service) notifications(c *fiber.Ctx) error {
	if s.deps.History == nil {
		return c.JSON([]notifier.HistoryItem{})
	}
	return c.JSON(s.deps.History.History())
}

// Reconfigure applies cfg, restarting the listener when the address or
// token changed. Safe during hot reload.
func (s *Service) Reconfigure(ctx context.Context, cfg Config) {
	s.mu.Lock()
	prev, running := s.cfg, s.sup != nil
	s.cfg = cfg
	s.mu.Unlock()

	switch {
	case !cfg.Enabled:
		if running {
			s.Stop(ctx)
		}
	case !running:
		s.Start(ctx)
	case prev.Addr != cfg.Addr || prev.Token != cfg.Token:
		s.Stop(ctx)
		s.Start(ctx)
	}
}

// Start is idempotent. Serve failures restart with backoff and never stop
// the app.
func (s *Service) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sup != nil || !s.cfg.Enabled {
		return
	}
	sup := rtsup.New(ctx, rtsup.WithLogger(s.log), rtsup.WithCancelOnError(false))
	sup.GoRestart("status.serve", s.serve,
		rtsup.WithRestartBackoff(500*time.Millisecond, 10*time.Second),
		rtsup.WithPublishFirstError(true),
	)
	s.sup = sup
}

func (s *Service) Stop(ctx context.Context) {
	s.mu.Lock()
	sup := s.sup
	s.sup = nil
	s.mu.Unlock()
	if sup == nil {
		return
	}
	sup.Cancel()
	if err := sup.Wait(ctx); err != nil && ctx.Err() != nil {
		s.log.Warn("status stop timed out", logx.Err(err))
	}
	s.log.Info("status server stopped")
}

func (s *Service) serve(ctx context.Context) error {
	s.mu.Lock()
	cfg := s.cfg
	s.mu.Unlock()

	addr := cfg.addr()
	if err := cfg.Check(); err != nil {
		s.log.Error("status server refused to start", logx.String("addr", addr), logx.Err(err))
		return err
	}

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	app := s.Handler(cfg.Token)
	stop := context.AfterFunc(ctx, func() {
		sctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = app.ShutdownWithContext(sctx)
	})
	defer stop()

	s.log.Info("status server listening", logx.String("addr", ln.Addr().String()))
	err = app.Listener(ln)
	if ctx.Err() != nil {
		return nil
	}
	return err
}

func isLoopbackAddr(addr string) bool {
	h, _, err := net.SplitHostPort(addr)
	if err != nil {
		return false
	}
	if strings.EqualFold(h, "localhost") {
		return true
	}
	ip := net.ParseIP(h)
	return ip != nil && ip.IsLoopback()
}
