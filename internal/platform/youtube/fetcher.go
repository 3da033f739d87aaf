// Package youtube reads subscriber counts through the YouTube Data API v3.
package youtube

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/time/rate"
	"google.golang.org/api/option"

	"growthbot/internal/platform"
	"growthbot/internal/social"
	logx "growthbot/pkg/logx"
)

const (
	DefaultTimeout    = 15 * time.Second
	DefaultRatePerSec = 2.0
)

type Config struct {
	APIKey     string
	Timeout    time.Duration
	RatePerSec float64
}

type Fetcher struct {
	log     logx.Logger
	api     channelLookup
	timeout time.Duration
	limiter *rate.Limiter
}

var _ platform.Fetcher = (*Fetcher)(nil)

// New builds a fetcher backed by the Data API. Without an API key it returns
// social.ErrPlatformDisabled and the caller leaves YouTube unregistered.
func New(ctx context.Context, cfg Config, log logx.Logger, opts ...option.ClientOption) (*Fetcher, error) {
	key := strings.TrimSpace(cfg.APIKey)
	if key == "" {
		return nil, fmt.Errorf("youtube: %w: no api key", social.ErrPlatformDisabled)
	}
	api, err := newDataAPI(ctx, key, opts...)
	if err != nil {
		return nil, fmt.Errorf("youtube: init client: %w", err)
	}
	return newFetcher(api, cfg, log), nil
}

func newFetcher(api channelLookup, cfg Config, log logx.Logger) *Fetcher {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.RatePerSec <= 0 {
		cfg.RatePerSec = DefaultRatePerSec
	}
	burst := int(cfg.RatePerSec)
	if burst < 1 {
		burst = 1
	}
	return &Fetcher{
		log:     log.With(logx.String("comp", "youtube")),
		api:     api,
		timeout: cfg.Timeout,
		limiter: rate.NewLimiter(rate.Limit(cfg.RatePerSec), burst),
	}
}

func (f *Fetcher) Platform() social.Platform { return social.YouTube }

func (f *Fetcher) Fetch(ctx context.Context, a *social.Account) (platform.Snapshot, error) {
	id := strings.TrimSpace(a.ChannelID)
	if id == "" {
		return platform.Snapshot{}, social.NewFetchError(social.YouTube, social.ErrNotFound, errors.New("account has no channel id"))
	}
	ch, err := f.channel(ctx, id, "")
	if err != nil {
		return platform.Snapshot{}, err
	}
	if ch.Hidden {
		f.log.Debug("subscriber count hidden", logx.String("channel_id", id))
	}
	return platform.Snapshot{Count: ch.Subscribers, DisplayName: ch.Title}, nil
}

// Resolve accepts a channel id or a handle. Handles are looked up once here;
// the stored account always carries the channel id.
func (f *Fetcher) Resolve(ctx context.Context, ref social.AccountRef) (social.Account, platform.Snapshot, error) {
	id := strings.TrimSpace(ref.ChannelID)
	handle := strings.TrimPrefix(strings.TrimSpace(ref.Handle), "@")
	if id == "" && handle == "" {
		return social.Account{}, platform.Snapshot{}, &social.ValidationError{Field: "url", Reason: "missing YouTube channel id or handle"}
	}
	if handle != "" && id == "" {
		handle = "@" + handle
	}
	ch, err := f.channel(ctx, id, handle)
	if err != nil {
		return social.Account{}, platform.Snapshot{}, err
	}
	if ch.ID == "" {
		ch.ID = id
	}
	acc := social.Account{
		Platform:  social.YouTube,
		URL:       social.YouTubeChannelURL(ch.ID),
		ChannelID: ch.ID,
		Name:      ch.Title,
		LastCount: ch.Subscribers,
	}
	if acc.Name == "" {
		acc.Name = ch.ID
	}
	return acc, platform.Snapshot{Count: ch.Subscribers, DisplayName: ch.Title}, nil
}

func (f *Fetcher) channel(ctx context.Context, id, handle string) (channel, error) {
	if err := f.limiter.Wait(ctx); err != nil {
		return channel{}, social.NetworkError(social.YouTube, err)
	}
	cctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	start := time.Now()
	items, err := f.api.lookup(cctx, id, handle)
	if err != nil {
		return channel{}, classify(err)
	}
	f.log.Debug("channels.list",
		logx.String("id", id),
		logx.String("handle", handle),
		logx.Int("items", len(items)),
		logx.Duration("took", time.Since(start)),
	)
	if len(items) == 0 {
		key := id
		if key == "" {
			key = handle
		}
		return channel{}, social.NewFetchError(social.YouTube, social.ErrNotFound, fmt.Errorf("channel %q", key))
	}
	return items[0], nil
}
