package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"growthbot/internal/social"
	logx "growthbot/pkg/logx"
)

func sampleRegistry() social.Registry {
	return social.Registry{
		"-1001": {
			{Platform: social.YouTube, URL: social.YouTubeChannelURL("UC1"), ChannelID: "UC1", Name: "Nexus", LastCount: 1200, Destination: "-1001"},
			{Platform: social.Instagram, URL: social.InstagramProfileURL("nexus"), Name: "nexus", LastCount: 45000, Destination: "-1001/7"},
		},
		"-1002": {
			{Platform: social.Instagram, URL: social.InstagramProfileURL("other"), Name: "other", LastCount: 3, Destination: "-1002"},
		},
	}
}

func TestFileStoreRoundTrip(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "state", "trackers.json")

	st, err := Open(ctx, Config{Driver: "file", Path: path}, logx.Nop())
	require.NoError(t, err)
	defer st.Close()

	want := sampleRegistry()
	require.NoError(t, st.Save(ctx, want))

	got, err := st.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, want, got)

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp file left behind")
}

func TestFileStoreWritesPersistedFieldNames(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "trackers.json")
	st, err := NewFile(path, logx.Logger{})
	require.NoError(t, err)

	require.NoError(t, st.Save(ctx, sampleRegistry()))
	b, err := os.ReadFile(path)
	require.NoError(t, err)
	for _, key := range []string{`"platform"`, `"url"`, `"channel_id"`, `"account_name"`, `"last_count"`, `"post_channel"`} {
		assert.Contains(t, string(b), key)
	}
}

func TestFileStoreMissingFileIsEmpty(t *testing.T) {
	t.Parallel()
	st, err := NewFile(filepath.Join(t.TempDir(), "nope.json"), logx.Nop())
	require.NoError(t, err)

	reg, err := st.Load(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, reg)
	assert.Empty(t, reg)
}

func TestFileStoreCorruptFileDegradesToEmpty(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "trackers.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))
	st, err := NewFile(path, logx.Nop())
	require.NoError(t, err)

	reg, err := st.Load(context.Background())
	require.Error(t, err)
	var pe *social.PersistenceError
	assert.ErrorAs(t, err, &pe)
	assert.NotNil(t, reg)
	assert.Empty(t, reg)
}

func TestFileStoreSaveEmptyRemovesGroups(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	st, err := NewFile(filepath.Join(t.TempDir(), "trackers.json"), logx.Nop())
	require.NoError(t, err)

	require.NoError(t, st.Save(ctx, sampleRegistry()))
	require.NoError(t, st.Save(ctx, social.Registry{}))
	reg, err := st.Load(ctx)
	require.NoError(t, err)
	assert.Empty(t, reg)
}

func TestOpenUnknownDriver(t *testing.T) {
	t.Parallel()
	_, err := Open(context.Background(), Config{Driver: "etcd"}, logx.Nop())
	assert.Error(t, err)
}
