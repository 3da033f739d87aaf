package config

// Config is the on-disk configuration (JSON or YAML). Unknown keys are
// rejected. Duration fields are Go duration strings ("10s", "5m").
type Config struct {
	Telegram  TelegramConfig  `json:"telegram"`
	Logging   LoggingConfig   `json:"logging"`
	Tracker   TrackerConfig   `json:"tracker"`
	Storage   StorageConfig   `json:"storage"`
	YouTube   YouTubeConfig   `json:"youtube"`
	Instagram InstagramConfig `json:"instagram"`
	Notifier  NotifierConfig  `json:"notifier"`
	Status    StatusConfig    `json:"status"`
}

type TelegramConfig struct {
	// Token may be left empty and supplied via TELEGRAM_TOKEN.
	Token        string  `json:"token"`
	OwnerUserIDs []int64 `json:"owner_user_ids"`
	// LogChat receives warn+ log lines when logging.telegram is enabled.
	// Format: "<chat_id>" or "<chat_id>/<thread_id>".
	LogChat     string `json:"log_chat,omitempty"`
	PollTimeout string `json:"poll_timeout,omitempty"`
}

type LoggingConfig struct {
	Level    string          `json:"level"`
	Console  bool            `json:"console"`
	File     LoggingFile     `json:"file"`
	Telegram LoggingTelegram `json:"telegram"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

type LoggingTelegram struct {
	Enabled    bool   `json:"enabled"`
	MinLevel   string `json:"min_level"`
	RatePerSec int    `json:"rate_per_sec"`
}

// TrackerConfig controls the sweep trigger.
type TrackerConfig struct {
	Schedule string `json:"schedule"`           // default "5m"
	Timezone string `json:"timezone,omitempty"` // cron schedules only
	// RunOnStart defaults to true: the first sweep runs right after startup.
	RunOnStart *bool `json:"run_on_start,omitempty"`
}

func (t TrackerConfig) RunsOnStart() bool { return t.RunOnStart == nil || *t.RunOnStart }

// StorageConfig selects the state backend.
//
//	"storage": { "driver": "file", "path": "./social_trackers.json" }
//	"storage": { "driver": "sqlite", "path": "./data/growth.db", "busy_timeout": "5s" }
//	"storage": { "driver": "mongo", "mongo_uri": "mongodb://localhost:27017", "database": "growthbot" }
type StorageConfig struct {
	Driver      string `json:"driver"`
	Path        string `json:"path,omitempty"`
	BusyTimeout string `json:"busy_timeout,omitempty"`
	MongoURI    string `json:"mongo_uri,omitempty"`
	Database    string `json:"database,omitempty"`
	Collection  string `json:"collection,omitempty"`
}

// YouTubeConfig: without an API key (here or YOUTUBE_API_KEY) YouTube
// tracking is disabled.
type YouTubeConfig struct {
	APIKey     string  `json:"api_key,omitempty"`
	Timeout    string  `json:"timeout,omitempty"`
	RatePerSec float64 `json:"rate_per_sec,omitempty"`
}

type InstagramConfig struct {
	UserAgent   string `json:"user_agent,omitempty"`
	Timeout     string `json:"timeout,omitempty"`
	MinInterval string `json:"min_interval,omitempty"`
}

type NotifierConfig struct {
	Workers       int    `json:"workers,omitempty"`
	QueueSize     int    `json:"queue_size,omitempty"`
	RatePerSec    int    `json:"rate_per_sec,omitempty"`
	RetryMax      int    `json:"retry_max,omitempty"`
	RetryBase     string `json:"retry_base,omitempty"`
	RetryMaxDelay string `json:"retry_max_delay,omitempty"`
	SendTimeout   string `json:"send_timeout,omitempty"`
}

// StatusConfig controls the read-only HTTP status API. A non-loopback
// address requires Token (sent as "Authorization: Bearer <token>").
type StatusConfig struct {
	Enabled bool   `json:"enabled"`
	Addr    string `json:"addr,omitempty"`
	Token   string `json:"token,omitempty"`
}

const (
	DefaultStoragePath = "./social_trackers.json"
	DefaultStatusAddr  = "127.0.0.1:8089"
	DefaultSchedule    = "5m"
)

// ApplyDefaults fills empty fields that have a non-zero default.
func (c *Config) ApplyDefaults() {
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Tracker.Schedule == "" {
		c.Tracker.Schedule = DefaultSchedule
	}
	if c.Storage.Driver == "" {
		c.Storage.Driver = "file"
	}
	if c.Storage.Driver == "file" && c.Storage.Path == "" {
		c.Storage.Path = DefaultStoragePath
	}
	if c.Status.Addr == "" {
		c.Status.Addr = DefaultStatusAddr
	}
}
