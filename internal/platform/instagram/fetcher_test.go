package instagram

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"growthbot/internal/social"
	logx "growthbot/pkg/logx"
)

func profileServer(t *testing.T, pages map[string]string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("User-Agent") != DefaultUserAgent {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		body, ok := pages[r.URL.Path]
		if !ok {
			http.NotFound(w, r)
			return
		}
		if body == "500" {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func page(desc string) string {
	return `<html><head><meta property="og:description" content="` + desc + `"></head></html>`
}

func newTestFetcher(srv *httptest.Server) *Fetcher {
	return New(Config{BaseURL: srv.URL, Timeout: 2 * time.Second}, logx.Nop())
}

func TestFetchSendsDesktopUserAgent(t *testing.T) {
	t.Parallel()
	srv := profileServer(t, map[string]string{"/nexus/": page("45K Followers, 12 Following")})
	f := newTestFetcher(srv)

	acc := &social.Account{Platform: social.Instagram, URL: social.InstagramProfileURL("nexus"), Name: "nexus"}
	snap, err := f.Fetch(context.Background(), acc)
	require.NoError(t, err)
	assert.EqualValues(t, 45_000, snap.Count)
}

func TestFetchErrorKinds(t *testing.T) {
	t.Parallel()
	srv := profileServer(t, map[string]string{
		"/notag/":    `<html><head></head></html>`,
		"/nomark/":   page("12 Following"),
		"/badcount/": page("lots Followers"),
		"/broken/":   "500",
	})
	f := newTestFetcher(srv)
	ctx := context.Background()
	fetch := func(user string) error {
		_, err := f.Fetch(ctx, &social.Account{Platform: social.Instagram, URL: social.InstagramProfileURL(user), Name: user})
		return err
	}

	assert.ErrorIs(t, fetch("missing"), social.ErrNotFound)
	assert.ErrorIs(t, fetch("notag"), social.ErrParse)
	assert.ErrorIs(t, fetch("nomark"), social.ErrParse)
	err := fetch("badcount")
	assert.ErrorIs(t, err, social.ErrParse)
	assert.ErrorIs(t, err, ErrCountFormat)
	assert.ErrorIs(t, fetch("broken"), social.ErrProvider)
}

func TestResolveSeedsCanonicalAccount(t *testing.T) {
	t.Parallel()
	srv := profileServer(t, map[string]string{"/nexus.gg/": page("1.2M Followers, 1 Following")})
	f := newTestFetcher(srv)

	acc, snap, err := f.Resolve(context.Background(), social.AccountRef{Platform: social.Instagram, Username: "nexus.gg"})
	require.NoError(t, err)
	assert.Equal(t, "https://www.instagram.com/nexus.gg/", acc.URL)
	assert.Equal(t, "nexus.gg", acc.Name)
	assert.EqualValues(t, 1_200_000, acc.LastCount)
	assert.EqualValues(t, 1_200_000, snap.Count)
}

func TestResolveToleratesBadCountToken(t *testing.T) {
	t.Parallel()
	srv := profileServer(t, map[string]string{"/odd/": page("lots Followers")})
	f := newTestFetcher(srv)

	acc, _, err := f.Resolve(context.Background(), social.AccountRef{Platform: social.Instagram, Username: "odd"})
	require.NoError(t, err)
	assert.Zero(t, acc.LastCount)
}

func TestResolveFailsWithoutMarker(t *testing.T) {
	t.Parallel()
	srv := profileServer(t, map[string]string{"/quiet/": page("12 Following")})
	f := newTestFetcher(srv)

	_, _, err := f.Resolve(context.Background(), social.AccountRef{Platform: social.Instagram, Username: "quiet"})
	assert.ErrorIs(t, err, social.ErrParse)
}

func TestFetchTimeout(t *testing.T) {
	t.Parallel()
	block := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-block:
		case <-r.Context().Done():
		}
	}))
	t.Cleanup(func() { close(block); srv.Close() })

	f := New(Config{BaseURL: srv.URL, Timeout: 50 * time.Millisecond}, logx.Nop())
	_, err := f.Fetch(context.Background(), &social.Account{Platform: social.Instagram, URL: social.InstagramProfileURL("slow"), Name: "slow"})
	assert.ErrorIs(t, err, social.ErrTimeout)
}
