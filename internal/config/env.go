package config

import (
	"errors"
	"io/fs"
	"os"
	"strings"

	"github.com/joho/godotenv"
)

// Environment variables that override the file.
const (
	EnvTelegramToken = "TELEGRAM_TOKEN"
	EnvYouTubeAPIKey = "YOUTUBE_API_KEY"
	EnvStorageMongo  = "MONGO_URI"
)

// LoadDotEnv loads KEY=VALUE pairs from the given files (".env" when none)
// into the process environment. Variables already set are kept. Missing
// files are ignored; unreadable or malformed ones are errors.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if _, err := os.Stat(f); errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err := godotenv.Load(f); err != nil {
			return err
		}
	}
	return nil
}

// ApplyEnv copies non-empty secrets from getenv over cfg.
func ApplyEnv(cfg *Config, getenv func(string) string) {
	if getenv == nil {
		return
	}
	if v := strings.TrimSpace(getenv(EnvTelegramToken)); v != "" {
		cfg.Telegram.Token = v
	}
	if v := strings.TrimSpace(getenv(EnvYouTubeAPIKey)); v != "" {
		cfg.YouTube.APIKey = v
	}
	if v := strings.TrimSpace(getenv(EnvStorageMongo)); v != "" {
		cfg.Storage.MongoURI = v
	}
}
