package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"growthbot/internal/task/scheduler"
	kit "growthbot/internal/transport"
)

var validLevels = map[string]bool{"trace": true, "debug": true, "info": true, "warn": true, "error": true}

// Validate reports every problem found, joined. Call ApplyDefaults first.
func (c *Config) Validate() error {
	var errs []error
	add := func(format string, args ...any) { errs = append(errs, fmt.Errorf(format, args...)) }

	if strings.TrimSpace(c.Telegram.Token) == "" {
		add("telegram.token: required (or set %s)", EnvTelegramToken)
	}
	for i, id := range c.Telegram.OwnerUserIDs {
		if id <= 0 {
			add("telegram.owner_user_ids[%d]: must be a positive user id", i)
		}
	}
	if c.Logging.Telegram.Enabled {
		if _, err := kit.ParseChatTarget(c.Telegram.LogChat); err != nil {
			add("telegram.log_chat: %v", err)
		}
	}
	if !validLevels[strings.ToLower(c.Logging.Level)] {
		add("logging.level: unknown level %q", c.Logging.Level)
	}
	if lvl := c.Logging.Telegram.MinLevel; lvl != "" && !validLevels[strings.ToLower(lvl)] {
		add("logging.telegram.min_level: unknown level %q", lvl)
	}
	if c.Logging.File.Enabled && strings.TrimSpace(c.Logging.File.Path) == "" {
		add("logging.file.path: required when file logging is enabled")
	}

	if _, err := scheduler.ParseSchedule(c.Tracker.Schedule); err != nil {
		add("tracker.schedule: %v", err)
	}
	if tz := strings.TrimSpace(c.Tracker.Timezone); tz != "" {
		if _, err := time.LoadLocation(tz); err != nil {
			add("tracker.timezone: %v", err)
		}
	}

	switch strings.ToLower(c.Storage.Driver) {
	case "file", "json", "sqlite", "sqlite3":
		if strings.TrimSpace(c.Storage.Path) == "" {
			add("storage.path: required for driver %q", c.Storage.Driver)
		}
	case "mongo", "mongodb":
		if strings.TrimSpace(c.Storage.MongoURI) == "" {
			add("storage.mongo_uri: required for driver %q (or set %s)", c.Storage.Driver, EnvStorageMongo)
		}
	default:
		add("storage.driver: unknown driver %q", c.Storage.Driver)
	}

	if c.YouTube.RatePerSec < 0 {
		add("youtube.rate_per_sec: must be >= 0")
	}
	for _, n := range []struct {
		path string
		v    int
	}{
		{"notifier.workers", c.Notifier.Workers},
		{"notifier.queue_size", c.Notifier.QueueSize},
		{"notifier.rate_per_sec", c.Notifier.RatePerSec},
		{"notifier.retry_max", c.Notifier.RetryMax},
		{"logging.telegram.rate_per_sec", c.Logging.Telegram.RatePerSec},
	} {
		if n.v < 0 {
			add("%s: must be >= 0", n.path)
		}
	}

	for _, d := range []struct{ path, raw string }{
		{"telegram.poll_timeout", c.Telegram.PollTimeout},
		{"storage.busy_timeout", c.Storage.BusyTimeout},
		{"youtube.timeout", c.YouTube.Timeout},
		{"instagram.timeout", c.Instagram.Timeout},
		{"instagram.min_interval", c.Instagram.MinInterval},
		{"notifier.retry_base", c.Notifier.RetryBase},
		{"notifier.retry_max_delay", c.Notifier.RetryMaxDelay},
		{"notifier.send_timeout", c.Notifier.SendTimeout},
	} {
		if _, err := ParseDurationField(d.path, d.raw); err != nil {
			errs = append(errs, err)
		}
	}

	if c.Status.Enabled && strings.TrimSpace(c.Status.Addr) == "" {
		add("status.addr: required when status is enabled")
	}
	return errors.Join(errs...)
}
