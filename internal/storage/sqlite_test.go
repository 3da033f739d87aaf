package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"growthbot/internal/social"
	logx "growthbot/pkg/logx"
)

func TestSQLiteStoreRoundTrip(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "growth.db")

	st, err := Open(ctx, Config{Driver: "sqlite", Path: path, BusyTimeout: time.Second}, logx.Nop())
	require.NoError(t, err)

	want := sampleRegistry()
	require.NoError(t, st.Save(ctx, want))

	// later saves replace, not append
	want["-1001"][0].LastCount = 1300
	delete(want, "-1002")
	require.NoError(t, st.Save(ctx, want))
	require.NoError(t, st.Close())

	st, err = Open(ctx, Config{Driver: "sqlite", Path: path}, logx.Nop())
	require.NoError(t, err)
	defer st.Close()

	got, err := st.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestSQLiteRequiresPath(t *testing.T) {
	t.Parallel()
	_, err := Open(context.Background(), Config{Driver: "sqlite"}, logx.Nop())
	assert.Error(t, err)
}

func TestSQLiteKeepsOrderWithinGroup(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	st, err := Open(ctx, Config{Driver: "sqlite", Path: filepath.Join(t.TempDir(), "g.db")}, logx.Nop())
	require.NoError(t, err)
	defer st.Close()

	reg := social.Registry{"g": {
		{Platform: social.Instagram, URL: social.InstagramProfileURL("z"), Name: "z", Destination: "1"},
		{Platform: social.Instagram, URL: social.InstagramProfileURL("a"), Name: "a", Destination: "1"},
	}}
	require.NoError(t, st.Save(ctx, reg))
	got, err := st.Load(ctx)
	require.NoError(t, err)
	require.Len(t, got["g"], 2)
	assert.Equal(t, "z", got["g"][0].Name)
	assert.Equal(t, "a", got["g"][1].Name)
}
