package tracker

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"growthbot/internal/social"
)

func TestApplyIgnoresEqualOrLower(t *testing.T) {
	t.Parallel()
	for _, fetched := range []int64{0, 99, 100} {
		a := &social.Account{Platform: social.Instagram, Name: "n", LastCount: 100}
		before := *a
		_, grew := Apply(a, fetched)
		assert.False(t, grew, fetched)
		assert.Equal(t, before, *a, fetched)
	}
}

func TestApplyRecordsGrowth(t *testing.T) {
	t.Parallel()
	a := &social.Account{Platform: social.YouTube, Name: "Nexus", URL: "u", Destination: "-1", LastCount: 1200}
	ev, grew := Apply(a, 1500)
	require.True(t, grew)
	assert.EqualValues(t, 1500, a.LastCount)
	assert.EqualValues(t, 300, ev.Growth)
	assert.EqualValues(t, 1200, ev.Previous)
	assert.EqualValues(t, 1500, ev.Current)
	assert.Equal(t, "-1", ev.Destination)
}

func TestApplySameCountTwiceNotifiesOnce(t *testing.T) {
	t.Parallel()
	a := &social.Account{Platform: social.Instagram, LastCount: 10}
	_, first := Apply(a, 11)
	_, second := Apply(a, 11)
	assert.True(t, first)
	assert.False(t, second)
	assert.EqualValues(t, 11, a.LastCount)
}

func TestApplyNil(t *testing.T) {
	t.Parallel()
	_, grew := Apply(nil, 5)
	assert.False(t, grew)
}

func TestNotificationFormatting(t *testing.T) {
	t.Parallel()
	yt := Notification(GrowthEvent{Platform: social.YouTube, Name: "Nexus & Co", URL: "https://www.youtube.com/channel/UC1", Destination: "-100", Current: 12345, Growth: 1000})
	assert.Equal(t, "🎉 YouTube Milestone Reached!", yt.Title)
	assert.Equal(t, "<b>Nexus &amp; Co</b> just hit <b>12,345 subscribers</b>!\n<code>+1,000</code> since last update", yt.Body)
	assert.Equal(t, "-100", yt.Destination)
	assert.Equal(t, "https://www.youtube.com/channel/UC1", yt.URL)

	ig := Notification(GrowthEvent{Platform: social.Instagram, Name: "nexus", Current: 1200000, Growth: 5})
	assert.Equal(t, "📸 Instagram Growth!", ig.Title)
	assert.Contains(t, ig.Body, "<b>1,200,000 followers</b>")
	assert.Contains(t, ig.Body, "<code>+5</code>")
}
