package social

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAccountURL(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		raw  string
		want AccountRef
	}{
		{name: "channel", raw: "https://www.youtube.com/channel/UCabc123", want: AccountRef{Platform: YouTube, ChannelID: "UCabc123"}},
		{name: "channel with query", raw: "youtube.com/channel/UCabc123?si=xyz", want: AccountRef{Platform: YouTube, ChannelID: "UCabc123"}},
		{name: "channel subpage", raw: "https://youtube.com/channel/UCabc123/videos", want: AccountRef{Platform: YouTube, ChannelID: "UCabc123"}},
		{name: "handle", raw: "https://www.youtube.com/@NexusEsports/featured", want: AccountRef{Platform: YouTube, Handle: "NexusEsports"}},
		{name: "instagram", raw: "https://www.instagram.com/nexus.esports/", want: AccountRef{Platform: Instagram, Username: "nexus.esports"}},
		{name: "instagram query", raw: "instagram.com/nexus?igsh=abc", want: AccountRef{Platform: Instagram, Username: "nexus"}},
		{name: "mixed case host", raw: "https://WWW.Instagram.com/Nexus", want: AccountRef{Platform: Instagram, Username: "Nexus"}},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseAccountURL(tt.raw)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseAccountURLInvalid(t *testing.T) {
	t.Parallel()
	for _, raw := range []string{
		"",
		"https://example.com/someone",
		"https://www.youtube.com/watch?v=abc",
		"https://www.youtube.com/channel/",
		"https://www.instagram.com/",
	} {
		_, err := ParseAccountURL(raw)
		require.Error(t, err, raw)
		assert.True(t, IsValidation(err), raw)
	}
}

func TestAccountIdentifier(t *testing.T) {
	t.Parallel()
	yt := &Account{Platform: YouTube, ChannelID: "UC1", URL: YouTubeChannelURL("UC1")}
	assert.Equal(t, "UC1", yt.Identifier())

	ig := &Account{Platform: Instagram, Name: "shown", URL: InstagramProfileURL("user.name")}
	assert.Equal(t, "user.name", ig.Identifier())
}

func TestRegistryNormalizePrunesEmptyGroups(t *testing.T) {
	t.Parallel()
	r := Registry{
		"1": {},
		"2": {nil},
		"3": {{Platform: Instagram, LastCount: -5}},
	}
	r.Normalize()
	require.Len(t, r, 1)
	assert.EqualValues(t, 0, r["3"][0].LastCount)
}

func TestRegistryCloneIsDeep(t *testing.T) {
	t.Parallel()
	r := Registry{"1": {{Platform: YouTube, LastCount: 10}}}
	cp := r.Clone()
	cp["1"][0].LastCount = 99
	assert.EqualValues(t, 10, r["1"][0].LastCount)
}

func TestFetchErrorMatchesKindAndCause(t *testing.T) {
	t.Parallel()
	cause := assert.AnError
	err := NewFetchError(Instagram, ErrParse, cause)
	assert.ErrorIs(t, err, ErrParse)
	assert.ErrorIs(t, err, cause)
	assert.NotErrorIs(t, err, ErrNotFound)
}
