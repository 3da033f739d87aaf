// Package tracker owns the registry of tracked accounts: the chat-facing
// mutators (add, remove, list, drop group) and the periodic sweep that turns
// fetched counts into growth notifications.
package tracker

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"growthbot/internal/eventbus"
	"growthbot/internal/notifier"
	"growthbot/internal/platform"
	"growthbot/internal/social"
	"growthbot/internal/storage"
	logx "growthbot/pkg/logx"
)

const (
	saveTimeout   = 10 * time.Second
	reportHistory = 20
)

var ErrSweepRunning = errors.New("sweep already running")

// Sink accepts growth notifications. Post failures are logged, never
// rolled back into tracker state.
type Sink interface {
	Post(ctx context.Context, n notifier.Notification) error
}

type Options struct {
	Store    storage.Store
	Sink     Sink
	Bus      eventbus.Bus
	Fetchers []platform.Fetcher
	Log      logx.Logger
}

// Service is safe for concurrent use. mu guards reg and every Save; it is
// never held across a network fetch.
type Service struct {
	log   logx.Logger
	store storage.Store
	sink  Sink
	bus   eventbus.Bus

	fmu      sync.RWMutex
	fetchers map[social.Platform]platform.Fetcher

	mu  sync.Mutex
	reg social.Registry

	sweeping atomic.Bool
	sweepSeq atomic.Uint64

	rmu     sync.Mutex
	reports []SweepReport
}

func New(opts Options) *Service {
	s := &Service{
		log:      opts.Log.With(logx.String("comp", "tracker")),
		store:    opts.Store,
		sink:     opts.Sink,
		bus:      opts.Bus,
		fetchers: map[social.Platform]platform.Fetcher{},
		reg:      social.Registry{},
	}
	for _, f := range opts.Fetchers {
		if f != nil {
			s.fetchers[f.Platform()] = f
		}
	}
	return s
}

// SetFetcher registers f for p, replacing any previous one. A nil f disables p.
func (s *Service) SetFetcher(p social.Platform, f platform.Fetcher) {
	s.fmu.Lock()
	defer s.fmu.Unlock()
	if f == nil {
		delete(s.fetchers, p)
		return
	}
	s.fetchers[p] = f
}

func (s *Service) fetcher(p social.Platform) (platform.Fetcher, bool) {
	s.fmu.RLock()
	defer s.fmu.RUnlock()
	f, ok := s.fetchers[p]
	return f, ok
}

// Enabled reports whether p has a fetcher.
func (s *Service) Enabled(p social.Platform) bool {
	_, ok := s.fetcher(p)
	return ok
}

// Load replaces the in-memory registry with the stored one. On a load error
// the registry starts empty and the error is returned for the caller to log;
// it is not fatal.
func (s *Service) Load(ctx context.Context) error {
	reg, err := s.store.Load(ctx)
	if reg == nil {
		reg = social.Registry{}
	}
	s.mu.Lock()
	s.reg = reg
	s.mu.Unlock()

	if err != nil {
		s.log.Warn("state load failed; starting empty", logx.Err(err))
		return err
	}
	s.log.Info("state loaded", logx.Int("groups", len(reg)), logx.Int("accounts", reg.Len()))
	return nil
}

// Add resolves rawURL with one seed fetch and appends the account to group.
// Nothing is written when the seed fetch fails.
func (s *Service) Add(ctx context.Context, group, rawURL, destination string) (social.Account, error) {
	group = strings.TrimSpace(group)
	destination = strings.TrimSpace(destination)
	if group == "" {
		return social.Account{}, &social.ValidationError{Field: "group", Reason: "group required"}
	}
	if destination == "" {
		return social.Account{}, &social.ValidationError{Field: "destination", Reason: "destination channel required"}
	}
	ref, err := social.ParseAccountURL(rawURL)
	if err != nil {
		return social.Account{}, err
	}
	f, ok := s.fetcher(ref.Platform)
	if !ok {
		return social.Account{}, fmt.Errorf("%s: %w", ref.Platform, social.ErrPlatformDisabled)
	}

	acc, _, err := f.Resolve(ctx, ref)
	if err != nil {
		s.log.Info("seed fetch failed", logx.String("group", group), logx.String("url", rawURL), logx.Err(err))
		return social.Account{}, err
	}
	acc.Destination = destination

	s.mu.Lock()
	stored := acc
	s.reg[group] = append(s.reg[group], &stored)
	s.saveLocked(ctx, "add")
	s.mu.Unlock()

	s.log.Info("account added",
		logx.String("group", group),
		logx.String("platform", string(acc.Platform)),
		logx.String("account", acc.Name),
		logx.Int64("count", acc.LastCount),
	)
	return acc, nil
}

// Remove deletes the account at 1-based position index. An emptied group is
// pruned.
func (s *Service) Remove(ctx context.Context, group string, index int) (social.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	accs := s.reg[group]
	if index < 1 || index > len(accs) {
		reason := "no tracked accounts"
		if len(accs) > 0 {
			reason = fmt.Sprintf("index must be between 1 and %d", len(accs))
		}
		return social.Account{}, &social.ValidationError{Field: "index", Reason: reason}
	}
	removed := *accs[index-1]
	accs = append(accs[:index-1:index-1], accs[index:]...)
	if len(accs) == 0 {
		delete(s.reg, group)
	} else {
		s.reg[group] = accs
	}
	s.saveLocked(ctx, "remove")

	s.log.Info("account removed", logx.String("group", group), logx.Int("index", index), logx.String("account", removed.Name))
	return removed, nil
}

// List returns copies of group's accounts in display order.
func (s *Service) List(group string) []social.Account {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]social.Account, 0, len(s.reg[group]))
	for _, a := range s.reg[group] {
		out = append(out, *a)
	}
	return out
}

// DropGroup forgets every account of group, e.g. after the bot left the chat.
func (s *Service) DropGroup(ctx context.Context, group string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := len(s.reg[group])
	if n == 0 {
		return 0
	}
	delete(s.reg, group)
	s.saveLocked(ctx, "drop_group")
	s.log.Info("group dropped", logx.String("group", group), logx.Int("accounts", n))
	return n
}

// Groups returns a deep copy of the registry.
func (s *Service) Groups() social.Registry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reg.Clone()
}

// saveLocked persists the registry. A failure is logged and left for the
// next mutation to retry. Caller holds mu.
func (s *Service) saveLocked(ctx context.Context, op string) {
	sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), saveTimeout)
	defer cancel()
	if err := s.store.Save(sctx, s.reg); err != nil {
		s.log.Error("state save failed", logx.String("op", op), logx.Err(err))
	}
}
