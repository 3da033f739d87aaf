package youtube

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/googleapi"

	"growthbot/internal/social"
	logx "growthbot/pkg/logx"
)

type fakeLookup struct {
	mu       sync.Mutex
	byID     map[string]channel
	byHandle map[string]channel
	err      error
	block    bool
	calls    []string
}

func (f *fakeLookup) lookup(ctx context.Context, id, handle string) ([]channel, error) {
	f.mu.Lock()
	f.calls = append(f.calls, id+"|"+handle)
	err, block := f.err, f.block
	f.mu.Unlock()

	if block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if err != nil {
		return nil, err
	}
	if id != "" {
		if ch, ok := f.byID[id]; ok {
			return []channel{ch}, nil
		}
		return nil, nil
	}
	if ch, ok := f.byHandle[handle]; ok {
		return []channel{ch}, nil
	}
	return nil, nil
}

func newTestFetcher(api *fakeLookup) *Fetcher {
	return newFetcher(api, Config{Timeout: time.Second, RatePerSec: 100}, logx.Nop())
}

func TestNewWithoutKeyIsDisabled(t *testing.T) {
	t.Parallel()
	_, err := New(context.Background(), Config{APIKey: "  "}, logx.Nop())
	assert.ErrorIs(t, err, social.ErrPlatformDisabled)
}

func TestFetchReadsSubscribers(t *testing.T) {
	t.Parallel()
	api := &fakeLookup{byID: map[string]channel{"UC1": {ID: "UC1", Title: "Nexus", Subscribers: 1500}}}
	f := newTestFetcher(api)

	snap, err := f.Fetch(context.Background(), &social.Account{Platform: social.YouTube, ChannelID: "UC1"})
	require.NoError(t, err)
	assert.EqualValues(t, 1500, snap.Count)
	assert.Equal(t, "Nexus", snap.DisplayName)
}

func TestFetchErrorKinds(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	acc := &social.Account{Platform: social.YouTube, ChannelID: "UCgone"}

	_, err := newTestFetcher(&fakeLookup{}).Fetch(ctx, acc)
	assert.ErrorIs(t, err, social.ErrNotFound)

	quota := &googleapi.Error{Code: http.StatusForbidden, Message: "quotaExceeded"}
	_, err = newTestFetcher(&fakeLookup{err: quota}).Fetch(ctx, acc)
	assert.ErrorIs(t, err, social.ErrProvider)
	var gerr *googleapi.Error
	assert.ErrorAs(t, err, &gerr)

	_, err = newTestFetcher(&fakeLookup{err: &googleapi.Error{Code: http.StatusNotFound}}).Fetch(ctx, acc)
	assert.ErrorIs(t, err, social.ErrNotFound)

	_, err = newTestFetcher(&fakeLookup{err: errors.New("connection reset")}).Fetch(ctx, acc)
	assert.ErrorIs(t, err, social.ErrProvider)

	_, err = newTestFetcher(&fakeLookup{}).Fetch(ctx, &social.Account{Platform: social.YouTube})
	assert.ErrorIs(t, err, social.ErrNotFound)
}

func TestFetchTimeout(t *testing.T) {
	t.Parallel()
	f := newFetcher(&fakeLookup{block: true}, Config{Timeout: 20 * time.Millisecond, RatePerSec: 100}, logx.Nop())
	_, err := f.Fetch(context.Background(), &social.Account{Platform: social.YouTube, ChannelID: "UC1"})
	assert.ErrorIs(t, err, social.ErrTimeout)
}

func TestResolveByHandle(t *testing.T) {
	t.Parallel()
	api := &fakeLookup{byHandle: map[string]channel{"@nexus": {ID: "UCnexus", Title: "Nexus Esports", Subscribers: 42}}}
	f := newTestFetcher(api)

	acc, snap, err := f.Resolve(context.Background(), social.AccountRef{Platform: social.YouTube, Handle: "nexus"})
	require.NoError(t, err)
	assert.Equal(t, "UCnexus", acc.ChannelID)
	assert.Equal(t, "https://www.youtube.com/channel/UCnexus", acc.URL)
	assert.Equal(t, "Nexus Esports", acc.Name)
	assert.EqualValues(t, 42, acc.LastCount)
	assert.EqualValues(t, 42, snap.Count)
	assert.Equal(t, []string{"|@nexus"}, api.calls)
}

func TestResolveByChannelID(t *testing.T) {
	t.Parallel()
	api := &fakeLookup{byID: map[string]channel{"UC1": {ID: "UC1", Title: "One", Subscribers: 7}}}
	acc, _, err := newTestFetcher(api).Resolve(context.Background(), social.AccountRef{Platform: social.YouTube, ChannelID: "UC1"})
	require.NoError(t, err)
	assert.Equal(t, "UC1", acc.ChannelID)
	assert.Equal(t, "One", acc.Name)
}

func TestResolveUnknownHandle(t *testing.T) {
	t.Parallel()
	_, _, err := newTestFetcher(&fakeLookup{}).Resolve(context.Background(), social.AccountRef{Platform: social.YouTube, Handle: "nobody"})
	assert.ErrorIs(t, err, social.ErrNotFound)
}
