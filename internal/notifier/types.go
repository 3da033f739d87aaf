package notifier

import (
	"errors"
	"time"
)

var (
	ErrQueueFull      = errors.New("notifier queue full")
	ErrStopped        = errors.New("notifier stopped")
	ErrBadDestination = errors.New("invalid destination")
)

type Config struct {
	Workers       int
	QueueSize     int
	RatePerSec    int
	RetryMax      int
	RetryBase     time.Duration
	RetryMaxDelay time.Duration
	SendTimeout   time.Duration
}

func (c Config) withDefaults() Config {
	if c.Workers <= 0 {
		c.Workers = 2
	}
	if c.QueueSize <= 0 {
		c.QueueSize = 256
	}
	if c.RatePerSec <= 0 {
		c.RatePerSec = 3
	}
	if c.RetryMax < 0 {
		c.RetryMax = 0
	}
	if c.RetryBase <= 0 {
		c.RetryBase = 500 * time.Millisecond
	}
	if c.RetryMaxDelay <= 0 {
		c.RetryMaxDelay = 10 * time.Second
	}
	if c.SendTimeout <= 0 {
		c.SendTimeout = 10 * time.Second
	}
	return c
}

// Notification is one outbound message. Meta is copied into bus events.
type Notification struct {
	Destination string
	Title       string
	Body        string
	URL         string
	Meta        map[string]string
}

type HistoryItem struct {
	At          time.Time `json:"at"`
	Destination string    `json:"destination"`
	Title       string    `json:"title"`
}

// Event is the Data of notifier.* bus events.
type Event struct {
	Destination string            `json:"destination"`
	Title       string            `json:"title"`
	Attempts    int               `json:"attempts,omitempty"`
	At          time.Time         `json:"at"`
	Error       string            `json:"error,omitempty"`
	Meta        map[string]string `json:"meta,omitempty"`
}
