package storage

import (
	"context"
	"errors"
	"time"

	"growthbot/internal/social"
)

var ErrClosed = errors.New("storage closed")

// Store is the MetricStore: load once at startup, save after every mutation.
//
// Load returns an empty registry (never nil) together with any error, so a
// caller can degrade to empty state on a corrupt backend.
type Store interface {
	Load(ctx context.Context) (social.Registry, error)
	Save(ctx context.Context, reg social.Registry) error
	Close() error
}

// Config configures storage.
//
// Driver values:
//   - "file" (default): Path is the JSON state file
//   - "sqlite": Path is the database file
//   - "mongo": URI + Database (+ optional Collection)
type Config struct {
	Driver      string
	Path        string
	BusyTimeout time.Duration // sqlite only; 0 means default

	URI        string // mongo only
	Database   string // mongo only
	Collection string // mongo only; default "tracker_groups"
}
