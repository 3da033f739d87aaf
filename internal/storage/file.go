package storage

import (
	"context"
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"growthbot/internal/social"
	logx "growthbot/pkg/logx"
)

const defaultStatePath = "./social_trackers.json"

// fileStore keeps the whole registry in one JSON file:
//
//	{"<group>": [{"platform": "youtube", "url": "...", ...}, ...]}
//
// Save writes a sibling temp file and renames it over the original, so a
// crash mid-write leaves the previous state intact.
type fileStore struct {
	log  logx.Logger
	path string

	mu sync.Mutex
}

func openFile(cfg Config, log logx.Logger) (Store, error) {
	path := strings.TrimSpace(cfg.Path)
	if path == "" {
		path = defaultStatePath
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	return &fileStore{log: log, path: path}, nil
}

// NewFile opens a file-backed store at path.
func NewFile(path string, log logx.Logger) (Store, error) {
	if log.IsZero() {
		log = logx.Nop()
	}
	return openFile(Config{Driver: "file", Path: path}, log)
}

func (s *fileStore) Load(ctx context.Context) (social.Registry, error) {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()

	b, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		s.log.Info("state file not found; starting empty", logx.String("path", s.path))
		return social.Registry{}, nil
	}
	if err != nil {
		return social.Registry{}, &social.PersistenceError{Op: "load", Err: err}
	}
	if len(strings.TrimSpace(string(b))) == 0 {
		return social.Registry{}, nil
	}

	reg := social.Registry{}
	if err := json.Unmarshal(b, &reg); err != nil {
		return social.Registry{}, &social.PersistenceError{Op: "load", Err: err}
	}
	reg.Normalize()
	return reg, nil
}

func (s *fileStore) Save(ctx context.Context, reg social.Registry) error {
	_ = ctx
	if reg == nil {
		reg = social.Registry{}
	}
	b, err := json.MarshalIndent(reg, "", "  ")
	if err != nil {
		return &social.PersistenceError{Op: "save", Err: err}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tmp, err := os.CreateTemp(filepath.Dir(s.path), filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return &social.PersistenceError{Op: "save", Err: err}
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(b); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return &social.PersistenceError{Op: "save", Err: err}
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return &social.PersistenceError{Op: "save", Err: err}
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return &social.PersistenceError{Op: "save", Err: err}
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		_ = os.Remove(tmpName)
		return &social.PersistenceError{Op: "save", Err: err}
	}
	return nil
}

func (s *fileStore) Close() error { return nil }
