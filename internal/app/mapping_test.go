package app

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"growthbot/internal/config"
	"growthbot/internal/social"
	kit "growthbot/internal/transport"
	logx "growthbot/pkg/logx"
)

func testConfig() *config.Config {
	cfg := &config.Config{}
	cfg.Telegram.Token = "t"
	cfg.ApplyDefaults()
	return cfg
}

func TestLogTarget(t *testing.T) {
	cfg := testConfig()
	assert.Equal(t, kit.ChatTarget{}, logTarget(cfg))

	cfg.Telegram.LogChat = "-1001/7"
	assert.Equal(t, kit.ChatTarget{ChatID: -1001, ThreadID: 7}, logTarget(cfg))

	cfg.Telegram.LogChat = "nope"
	assert.Equal(t, kit.ChatTarget{}, logTarget(cfg))
}

func TestMapNotifierConfigParsesDurations(t *testing.T) {
	cfg := testConfig()
	cfg.Notifier.Workers = 4
	cfg.Notifier.RetryBase = "250ms"
	cfg.Notifier.SendTimeout = "3s"

	nc := mapNotifierConfig(cfg)
	assert.Equal(t, 4, nc.Workers)
	assert.Equal(t, 250*time.Millisecond, nc.RetryBase)
	assert.Equal(t, 3*time.Second, nc.SendTimeout)
	assert.Zero(t, nc.RetryMaxDelay)
}

func TestMapSchedulerConfigRunsOnStartByDefault(t *testing.T) {
	cfg := testConfig()
	sc := mapSchedulerConfig(cfg)
	assert.Equal(t, config.DefaultSchedule, sc.Schedule)
	assert.True(t, sc.RunOnStart)

	off := false
	cfg.Tracker.RunOnStart = &off
	assert.False(t, mapSchedulerConfig(cfg).RunOnStart)
}

func TestMapStorageConfig(t *testing.T) {
	cfg := testConfig()
	cfg.Storage = config.StorageConfig{Driver: "mongo", MongoURI: "mongodb://db", Database: "growth", BusyTimeout: "2s"}
	sc := mapStorageConfig(cfg)
	assert.Equal(t, "mongo", sc.Driver)
	assert.Equal(t, "mongodb://db", sc.URI)
	assert.Equal(t, "growth", sc.Database)
	assert.Equal(t, 2*time.Second, sc.BusyTimeout)
}

func TestBuildFetchersWithoutYouTubeKey(t *testing.T) {
	fetchers, err := buildFetchers(context.Background(), testConfig(), logx.Nop())
	require.NoError(t, err)

	require.Contains(t, fetchers, social.YouTube)
	assert.Nil(t, fetchers[social.YouTube])
	require.NotNil(t, fetchers[social.Instagram])
	assert.Equal(t, social.Instagram, fetchers[social.Instagram].Platform())
}
