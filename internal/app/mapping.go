package app

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"growthbot/internal/config"
	"growthbot/internal/notifier"
	"growthbot/internal/observability/status"
	"growthbot/internal/platform"
	"growthbot/internal/platform/instagram"
	"growthbot/internal/platform/youtube"
	"growthbot/internal/social"
	"growthbot/internal/storage"
	"growthbot/internal/task/scheduler"
	kit "growthbot/internal/transport"
	logx "growthbot/pkg/logx"
)

// Config values reaching these mappers have passed Validate, so duration
// fields parse cleanly and MustDuration is safe.

func mapLogConfig(cfg *config.Config) logx.Config {
	return logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
		Chat: logx.ChatConfig{
			Enabled:    cfg.Logging.Telegram.Enabled,
			MinLevel:   cfg.Logging.Telegram.MinLevel,
			RatePerSec: cfg.Logging.Telegram.RatePerSec,
		},
	}
}

// logTarget returns the chat receiving log lines; zero disables the sink.
func logTarget(cfg *config.Config) kit.ChatTarget {
	if strings.TrimSpace(cfg.Telegram.LogChat) == "" {
		return kit.ChatTarget{}
	}
	to, err := kit.ParseChatTarget(cfg.Telegram.LogChat)
	if err != nil {
		return kit.ChatTarget{}
	}
	return to
}

func mapStorageConfig(cfg *config.Config) storage.Config {
	sc := cfg.Storage
	return storage.Config{
		Driver:      sc.Driver,
		Path:        sc.Path,
		BusyTimeout: config.MustDuration(sc.BusyTimeout),
		URI:         sc.MongoURI,
		Database:    sc.Database,
		Collection:  sc.Collection,
	}
}

func mapNotifierConfig(cfg *config.Config) notifier.Config {
	nc := cfg.Notifier
	return notifier.Config{
		Workers:       nc.Workers,
		QueueSize:     nc.QueueSize,
		RatePerSec:    nc.RatePerSec,
		RetryMax:      nc.RetryMax,
		RetryBase:     config.MustDuration(nc.RetryBase),
		RetryMaxDelay: config.MustDuration(nc.RetryMaxDelay),
		SendTimeout:   config.MustDuration(nc.SendTimeout),
	}
}

func mapSchedulerConfig(cfg *config.Config) scheduler.Config {
	return scheduler.Config{
		Schedule:   cfg.Tracker.Schedule,
		Timezone:   cfg.Tracker.Timezone,
		RunOnStart: cfg.Tracker.RunsOnStart(),
	}
}

func mapStatusConfig(cfg *config.Config) status.Config {
	return status.Config{
		Enabled: cfg.Status.Enabled,
		Addr:    cfg.Status.Addr,
		Token:   cfg.Status.Token,
	}
}

// buildFetchers returns one entry per platform. A nil entry means the
// platform is disabled (YouTube without an API key).
func buildFetchers(ctx context.Context, cfg *config.Config, log logx.Logger) (map[social.Platform]platform.Fetcher, error) {
	out := map[social.Platform]platform.Fetcher{}

	out[social.Instagram] = instagram.New(instagram.Config{
		UserAgent:   cfg.Instagram.UserAgent,
		Timeout:     config.MustDuration(cfg.Instagram.Timeout),
		MinInterval: config.MustDuration(cfg.Instagram.MinInterval),
	}, log)

	yt, err := youtube.New(ctx, youtube.Config{
		APIKey:     cfg.YouTube.APIKey,
		Timeout:    config.MustDuration(cfg.YouTube.Timeout),
		RatePerSec: cfg.YouTube.RatePerSec,
	}, log)
	switch {
	case errors.Is(err, social.ErrPlatformDisabled):
		log.Warn("youtube api key not set; youtube tracking disabled")
		out[social.YouTube] = nil
	case err != nil:
		return nil, fmt.Errorf("youtube: %w", err)
	default:
		out[social.YouTube] = yt
	}
	return out, nil
}
