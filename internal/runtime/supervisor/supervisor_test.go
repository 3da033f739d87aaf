package supervisor

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func waitCtx(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func TestGoRecoversPanic(t *testing.T) {
	t.Parallel()
	s := New(context.Background())
	s.Go("boom", func(context.Context) error { panic("kaboom") })

	err := s.Wait(waitCtx(t))
	var pe *PanicError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, "boom", pe.Task)
	assert.Equal(t, "kaboom", pe.Value)

	snap := s.Snapshot()
	require.Len(t, snap.Tasks, 1)
	assert.EqualValues(t, 1, snap.Tasks[0].Panics)
	assert.Zero(t, snap.Active)
}

func TestGoCanceledIsClean(t *testing.T) {
	t.Parallel()
	s := New(context.Background())
	s.Go("loop", func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})
	require.NoError(t, s.Stop(waitCtx(t)))
}

func TestCancelOnError(t *testing.T) {
	t.Parallel()
	s := New(context.Background(), WithCancelOnError(true))
	s.Go("other", func(ctx context.Context) error {
		<-ctx.Done()
		return nil
	})
	s.Go("fail", func(context.Context) error { return errors.New("bad") })

	err := s.Wait(waitCtx(t))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "fail: bad")
}

func TestGoRestartRestartsUntilSuccess(t *testing.T) {
	t.Parallel()
	s := New(context.Background())
	var runs atomic.Int32
	s.GoRestart("flaky", func(context.Context) error {
		if runs.Add(1) < 3 {
			panic("not yet")
		}
		return nil
	}, WithRestartBackoff(time.Millisecond, 5*time.Millisecond))

	require.NoError(t, s.Wait(waitCtx(t)))
	assert.EqualValues(t, 3, runs.Load())

	snap := s.Snapshot()
	require.Len(t, snap.Tasks, 1)
	assert.EqualValues(t, 2, snap.Tasks[0].Restarts)
	assert.EqualValues(t, 2, snap.Tasks[0].Panics)
}

func TestGoRestartGivesUp(t *testing.T) {
	t.Parallel()
	s := New(context.Background())
	var runs atomic.Int32
	s.GoRestart("dead", func(context.Context) error {
		runs.Add(1)
		return errors.New("nope")
	}, WithRestartBackoff(time.Millisecond, time.Millisecond), WithMaxRestarts(2), WithFatalOnFinalError(true))

	err := s.Wait(waitCtx(t))
	require.Error(t, err)
	assert.EqualValues(t, 3, runs.Load())
}

func TestGoRestartStopsOnCancel(t *testing.T) {
	t.Parallel()
	s := New(context.Background())
	s.GoRestart("poller", func(ctx context.Context) error {
		<-ctx.Done()
		return errors.New("stopped")
	})
	time.Sleep(10 * time.Millisecond)
	require.NoError(t, s.Stop(waitCtx(t)))
}
