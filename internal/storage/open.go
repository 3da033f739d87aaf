package storage

import (
	"context"
	"errors"
	"strings"

	logx "growthbot/pkg/logx"
)

// Open initializes the configured store. An empty driver means "file".
func Open(ctx context.Context, cfg Config, log logx.Logger) (Store, error) {
	if log.IsZero() {
		log = logx.Nop()
	}
	switch driver := strings.ToLower(strings.TrimSpace(cfg.Driver)); driver {
	case "", "file", "json":
		return openFile(cfg, log)
	case "sqlite", "sqlite3":
		return openSQLite(ctx, cfg, log)
	case "mongo", "mongodb":
		return openMongo(ctx, cfg, log)
	default:
		return nil, errors.New("unknown storage driver: " + driver)
	}
}
