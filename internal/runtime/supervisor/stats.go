package supervisor

import (
	"errors"
	"sort"
	"time"

	logx "growthbot/pkg/logx"
)

type taskStats struct {
	active   int64
	started  uint64
	restarts uint64
	panics   uint64
	lastErr  string
	lastAt   time.Time
	lastRun  time.Duration
}

// TaskSnapshot is the observable state of one named task.
type TaskSnapshot struct {
	Name        string        `json:"name"`
	Active      int64         `json:"active"`
	Started     uint64        `json:"started"`
	Restarts    uint64        `json:"restarts"`
	Panics      uint64        `json:"panics"`
	LastErr     string        `json:"last_err,omitempty"`
	LastStartAt time.Time     `json:"last_start_at"`
	LastRuntime time.Duration `json:"last_runtime"`
}

type Snapshot struct {
	Active     int64          `json:"active"`
	Started    uint64         `json:"started"`
	FirstError string         `json:"first_error,omitempty"`
	Tasks      []TaskSnapshot `json:"tasks"`
}

func (s *Supervisor) Snapshot() Snapshot {
	if s == nil {
		return Snapshot{}
	}
	out := Snapshot{Active: s.active.Load(), Started: s.started.Load()}
	if err := s.Err(); err != nil {
		out.FirstError = err.Error()
	}
	s.mu.Lock()
	for name, t := range s.tasks {
		out.Tasks = append(out.Tasks, TaskSnapshot{
			Name:        name,
			Active:      t.active,
			Started:     t.started,
			Restarts:    t.restarts,
			Panics:      t.panics,
			LastErr:     t.lastErr,
			LastStartAt: t.lastAt,
			LastRuntime: t.lastRun,
		})
	}
	s.mu.Unlock()
	sort.Slice(out.Tasks, func(i, j int) bool { return out.Tasks[i].Name < out.Tasks[j].Name })
	return out
}

func (s *Supervisor) stats(name string) *taskStats {
	t := s.tasks[name]
	if t == nil {
		t = &taskStats{}
		s.tasks[name] = t
	}
	return t
}

func (s *Supervisor) noteStart(name string, restart bool) time.Time {
	now := time.Now()
	s.mu.Lock()
	t := s.stats(name)
	t.active++
	t.started++
	if restart {
		t.restarts++
	}
	t.lastAt = now
	s.mu.Unlock()
	s.log.Debug("task started", logx.String("task", name))
	return now
}

func (s *Supervisor) noteStop(name string, startedAt time.Time, err error) {
	s.mu.Lock()
	t := s.stats(name)
	if t.active > 0 {
		t.active--
	}
	t.lastRun = time.Since(startedAt)
	if err != nil {
		t.lastErr = err.Error()
		var pe *PanicError
		if errors.As(err, &pe) {
			t.panics++
		}
	}
	s.mu.Unlock()
}
