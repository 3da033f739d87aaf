// Package instagram reads public follower counts from Instagram profile pages.
package instagram

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"growthbot/internal/platform"
	"growthbot/internal/social"
	logx "growthbot/pkg/logx"
)

const (
	DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36"
	DefaultTimeout   = 10 * time.Second
	DefaultBaseURL   = "https://www.instagram.com"

	maxPageBytes = 4 << 20
)

type Config struct {
	UserAgent   string
	Timeout     time.Duration
	MinInterval time.Duration // minimum spacing between page requests; 0 disables pacing
	BaseURL     string        // tests only
}

// Fetcher scrapes og:description from profile pages.
type Fetcher struct {
	log     logx.Logger
	client  *http.Client
	ua      string
	base    string
	limiter *rate.Limiter
}

var _ platform.Fetcher = (*Fetcher)(nil)

func New(cfg Config, log logx.Logger) *Fetcher {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if strings.TrimSpace(cfg.UserAgent) == "" {
		cfg.UserAgent = DefaultUserAgent
	}
	if strings.TrimSpace(cfg.BaseURL) == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	f := &Fetcher{
		log:    log.With(logx.String("comp", "instagram")),
		client: &http.Client{Timeout: cfg.Timeout},
		ua:     cfg.UserAgent,
		base:   strings.TrimRight(cfg.BaseURL, "/"),
	}
	if cfg.MinInterval > 0 {
		f.limiter = rate.NewLimiter(rate.Every(cfg.MinInterval), 1)
	}
	return f
}

func (f *Fetcher) Platform() social.Platform { return social.Instagram }

// Fetch reads the current follower count. Any failure to extract a number,
// including an unrecognized count token, is an ErrParse fetch error.
func (f *Fetcher) Fetch(ctx context.Context, a *social.Account) (platform.Snapshot, error) {
	username := a.Identifier()
	if username == "" {
		return platform.Snapshot{}, social.NewFetchError(social.Instagram, social.ErrNotFound, errors.New("empty username"))
	}
	desc, err := f.description(ctx, username)
	if err != nil {
		return platform.Snapshot{}, err
	}
	n, err := ParseFollowers(desc)
	if err != nil {
		return platform.Snapshot{}, social.NewFetchError(social.Instagram, social.ErrParse, err)
	}
	return platform.Snapshot{Count: n}, nil
}

// Resolve seeds a new account. An unrecognized count token is tolerated and
// seeds 0; a missing tag or marker fails the add.
func (f *Fetcher) Resolve(ctx context.Context, ref social.AccountRef) (social.Account, platform.Snapshot, error) {
	username := strings.TrimSpace(ref.Username)
	if username == "" {
		return social.Account{}, platform.Snapshot{}, &social.ValidationError{Field: "url", Reason: "missing Instagram username"}
	}
	desc, err := f.description(ctx, username)
	if err != nil {
		return social.Account{}, platform.Snapshot{}, err
	}
	n, err := ParseFollowers(desc)
	switch {
	case errors.Is(err, ErrCountFormat):
		f.log.Warn("follower count not parsable; seeding 0", logx.String("username", username), logx.Err(err))
		n = 0
	case err != nil:
		return social.Account{}, platform.Snapshot{}, social.NewFetchError(social.Instagram, social.ErrParse, err)
	}

	acc := social.Account{
		Platform:  social.Instagram,
		URL:       social.InstagramProfileURL(username),
		Name:      username,
		LastCount: n,
	}
	return acc, platform.Snapshot{Count: n, DisplayName: username}, nil
}

func (f *Fetcher) description(ctx context.Context, username string) (string, error) {
	if f.limiter != nil {
		if err := f.limiter.Wait(ctx); err != nil {
			return "", social.NetworkError(social.Instagram, err)
		}
	}

	url := f.base + "/" + username + "/"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", social.NewFetchError(social.Instagram, social.ErrProvider, err)
	}
	req.Header.Set("User-Agent", f.ua)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")

	start := time.Now()
	resp, err := f.client.Do(req)
	if err != nil {
		return "", social.NetworkError(social.Instagram, err)
	}
	defer resp.Body.Close()

	f.log.Debug("profile page fetched",
		logx.String("username", username),
		logx.Int("status", resp.StatusCode),
		logx.Duration("took", time.Since(start)),
	)

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return "", social.NewFetchError(social.Instagram, social.ErrNotFound, fmt.Errorf("profile %q", username))
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return "", social.NewFetchError(social.Instagram, social.ErrProvider, fmt.Errorf("http status %d", resp.StatusCode))
	}

	desc, err := ogDescription(io.LimitReader(resp.Body, maxPageBytes))
	if errors.Is(err, ErrNoDescription) {
		return "", social.NewFetchError(social.Instagram, social.ErrParse, err)
	}
	if err != nil {
		return "", social.NetworkError(social.Instagram, err)
	}
	return desc, nil
}
