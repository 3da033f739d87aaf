package storage

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"growthbot/internal/social"
	logx "growthbot/pkg/logx"

	_ "modernc.org/sqlite"
)

//go:embed migrations.sql
var migrationsFS embed.FS

type sqliteStore struct {
	db  *sql.DB
	log logx.Logger
}

func openSQLite(ctx context.Context, cfg Config, log logx.Logger) (Store, error) {
	if strings.TrimSpace(cfg.Path) == "" {
		return nil, errors.New("sqlite path is required")
	}
	path := cfg.Path
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// single writer
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if cfg.BusyTimeout > 0 {
		_, _ = db.ExecContext(ctx, fmt.Sprintf("PRAGMA busy_timeout = %d", cfg.BusyTimeout.Milliseconds()))
	}
	_, _ = db.ExecContext(ctx, "PRAGMA journal_mode = WAL")
	_, _ = db.ExecContext(ctx, "PRAGMA synchronous = NORMAL")

	st := &sqliteStore{db: db, log: log}
	if err := st.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return st, nil
}

func (s *sqliteStore) migrate(ctx context.Context) error {
	b, err := migrationsFS.ReadFile("migrations.sql")
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, string(b))
	return err
}

func (s *sqliteStore) Load(ctx context.Context) (social.Registry, error) {
	if s == nil || s.db == nil {
		return social.Registry{}, ErrClosed
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT group_id, platform, url, channel_id, account_name, last_count, post_channel
		   FROM tracked_accounts
		  ORDER BY group_id, position`)
	if err != nil {
		return social.Registry{}, &social.PersistenceError{Op: "load", Err: err}
	}
	defer rows.Close()

	reg := social.Registry{}
	for rows.Next() {
		var (
			group     string
			platform  string
			channelID sql.NullString
			a         social.Account
		)
		if err := rows.Scan(&group, &platform, &a.URL, &channelID, &a.Name, &a.LastCount, &a.Destination); err != nil {
			return social.Registry{}, &social.PersistenceError{Op: "load", Err: err}
		}
		a.Platform = social.Platform(platform)
		a.ChannelID = channelID.String
		reg[group] = append(reg[group], &a)
	}
	if err := rows.Err(); err != nil {
		return social.Registry{}, &social.PersistenceError{Op: "load", Err: err}
	}
	reg.Normalize()
	return reg, nil
}

// Save replaces the table contents in one transaction.
func (s *sqliteStore) Save(ctx context.Context, reg social.Registry) error {
	if s == nil || s.db == nil {
		return ErrClosed
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return &social.PersistenceError{Op: "save", Err: err}
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM tracked_accounts`); err != nil {
		return &social.PersistenceError{Op: "save", Err: err}
	}
	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO tracked_accounts(group_id, position, platform, url, channel_id, account_name, last_count, post_channel)
		 VALUES(?,?,?,?,?,?,?,?)`)
	if err != nil {
		return &social.PersistenceError{Op: "save", Err: err}
	}
	defer stmt.Close()

	for _, group := range reg.Groups() {
		for i, a := range reg[group] {
			if a == nil {
				continue
			}
			if _, err := stmt.ExecContext(ctx, group, i, string(a.Platform), a.URL, nullStr(a.ChannelID), a.Name, a.LastCount, a.Destination); err != nil {
				return &social.PersistenceError{Op: "save", Err: err}
			}
		}
	}
	if err := tx.Commit(); err != nil {
		return &social.PersistenceError{Op: "save", Err: err}
	}
	return nil
}

func (s *sqliteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func nullStr(v string) any {
	if strings.TrimSpace(v) == "" {
		return nil
	}
	return v
}
