package tracker

import (
	"context"
	"errors"
	"time"

	"growthbot/internal/eventbus"
	"growthbot/internal/platform"
	"growthbot/internal/social"
	logx "growthbot/pkg/logx"
)

// SweepReport summarizes one pass over the registry.
type SweepReport struct {
	ID        uint64        `json:"id"`
	Started   time.Time     `json:"started"`
	Finished  time.Time     `json:"finished"`
	Took      time.Duration `json:"took"`
	Accounts  int           `json:"accounts"`
	Fetched   int           `json:"fetched"`
	Skipped   int           `json:"skipped"`
	Failed    int           `json:"failed"`
	Growth    int           `json:"growth"`
	Cancelled bool          `json:"cancelled,omitempty"`
}

// FetchFailure is the Data of tracker.fetch_failed events.
type FetchFailure struct {
	Group    string          `json:"group"`
	Platform social.Platform `json:"platform"`
	Account  string          `json:"account"`
	Kind     string          `json:"kind"`
	Error    string          `json:"error"`
}

type sweepItem struct {
	group string
	acc   *social.Account
	view  social.Account
}

// Sweep checks every tracked account once. Per-account failures are logged
// and counted; they never abort the sweep. Only one sweep runs at a time.
// Cancellation is observed between accounts.
func (s *Service) Sweep(ctx context.Context) (SweepReport, error) {
	if !s.sweeping.CompareAndSwap(false, true) {
		return SweepReport{}, ErrSweepRunning
	}
	defer s.sweeping.Store(false)

	rep := SweepReport{ID: s.sweepSeq.Add(1), Started: time.Now()}
	items := s.snapshot()
	rep.Accounts = len(items)

	for _, it := range items {
		if ctx.Err() != nil {
			rep.Cancelled = true
			break
		}
		s.check(ctx, it, &rep)
	}

	rep.Finished = time.Now()
	rep.Took = rep.Finished.Sub(rep.Started)
	s.remember(rep)
	s.publish(eventbus.TypeSweepCompleted, rep)

	log := s.log.With(
		logx.Uint64("sweep", rep.ID),
		logx.Int("accounts", rep.Accounts),
		logx.Int("fetched", rep.Fetched),
		logx.Int("skipped", rep.Skipped),
		logx.Int("failed", rep.Failed),
		logx.Int("growth", rep.Growth),
		logx.Duration("took", rep.Took),
	)
	if rep.Cancelled {
		log.Info("sweep cancelled")
		return rep, ctx.Err()
	}
	log.Info("sweep completed")
	return rep, nil
}

// Running reports whether a sweep is in progress.
func (s *Service) Running() bool { return s.sweeping.Load() }

// Reports returns recent sweep reports, oldest first.
func (s *Service) Reports() []SweepReport {
	s.rmu.Lock()
	defer s.rmu.Unlock()
	return append([]SweepReport(nil), s.reports...)
}

func (s *Service) snapshot() []sweepItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	var items []sweepItem
	for _, g := range s.reg.Groups() {
		for _, a := range s.reg[g] {
			items = append(items, sweepItem{group: g, acc: a, view: *a})
		}
	}
	return items
}

func (s *Service) check(ctx context.Context, it sweepItem, rep *SweepReport) {
	f, ok := s.fetcher(it.view.Platform)
	if !ok {
		rep.Skipped++
		s.log.Debug("platform disabled; skipping", logx.String("group", it.group), logx.String("platform", string(it.view.Platform)))
		return
	}

	snap, err := f.Fetch(ctx, &it.view)
	if err != nil {
		if ctx.Err() != nil && errors.Is(err, ctx.Err()) {
			return
		}
		rep.Failed++
		s.fetchFailed(it, err)
		return
	}
	rep.Fetched++

	ev, grew := s.commit(ctx, it, snap)
	if !grew {
		return
	}
	rep.Growth++
	s.log.Info("growth detected",
		logx.String("group", ev.Group),
		logx.String("platform", string(ev.Platform)),
		logx.String("account", ev.Name),
		logx.Int64("previous", ev.Previous),
		logx.Int64("current", ev.Current),
	)
	s.publish(eventbus.TypeGrowth, ev)
	if s.sink == nil {
		return
	}
	if err := s.sink.Post(ctx, Notification(ev)); err != nil {
		s.log.Warn("growth notification not queued", logx.String("destination", ev.Destination), logx.Err(err))
	}
}

// commit applies the diff under the lock, provided the account was not
// removed while its fetch was in flight, and saves on growth.
func (s *Service) commit(ctx context.Context, it sweepItem, snap platform.Snapshot) (GrowthEvent, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.containsLocked(it.group, it.acc) {
		s.log.Debug("account removed during fetch", logx.String("group", it.group), logx.String("account", it.view.Name))
		return GrowthEvent{}, false
	}
	ev, grew := Apply(it.acc, snap.Count)
	if !grew {
		return GrowthEvent{}, false
	}
	if snap.DisplayName != "" && snap.DisplayName != it.acc.Name {
		it.acc.Name = snap.DisplayName
		ev.Name = snap.DisplayName
	}
	ev.Group = it.group
	s.saveLocked(ctx, "sweep")
	return ev, true
}

func (s *Service) containsLocked(group string, acc *social.Account) bool {
	for _, a := range s.reg[group] {
		if a == acc {
			return true
		}
	}
	return false
}

func (s *Service) fetchFailed(it sweepItem, err error) {
	kind := errorKind(err)
	s.log.Warn("fetch failed",
		logx.String("group", it.group),
		logx.String("platform", string(it.view.Platform)),
		logx.String("account", it.view.Identifier()),
		logx.String("kind", kind),
		logx.Err(err),
	)
	s.publish(eventbus.TypeFetchFailed, FetchFailure{
		Group:    it.group,
		Platform: it.view.Platform,
		Account:  it.view.Identifier(),
		Kind:     kind,
		Error:    err.Error(),
	})
}

func errorKind(err error) string {
	switch {
	case errors.Is(err, social.ErrNotFound):
		return "not_found"
	case errors.Is(err, social.ErrParse):
		return "parse"
	case errors.Is(err, social.ErrTimeout):
		return "timeout"
	case errors.Is(err, social.ErrProvider):
		return "provider"
	default:
		return "unknown"
	}
}

func (s *Service) remember(rep SweepReport) {
	s.rmu.Lock()
	s.reports = append(s.reports, rep)
	if len(s.reports) > reportHistory {
		s.reports = s.reports[len(s.reports)-reportHistory:]
	}
	s.rmu.Unlock()
}

func (s *Service) publish(typ string, data any) {
	if s.bus != nil {
		s.bus.Publish(eventbus.Event{Type: typ, Data: data})
	}
}
