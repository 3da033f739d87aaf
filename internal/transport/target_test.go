package transport

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseChatTarget(t *testing.T) {
	t.Parallel()
	tests := []struct {
		raw  string
		want ChatTarget
	}{
		{raw: "-1001234", want: ChatTarget{ChatID: -1001234}},
		{raw: " 42 ", want: ChatTarget{ChatID: 42}},
		{raw: "-1001234/17", want: ChatTarget{ChatID: -1001234, ThreadID: 17}},
	}
	for _, tt := range tests {
		got, err := ParseChatTarget(tt.raw)
		require.NoError(t, err, tt.raw)
		assert.Equal(t, tt.want, got)
		assert.Equal(t, tt.want, mustParse(t, got.String()))
	}
}

func TestParseChatTargetInvalid(t *testing.T) {
	t.Parallel()
	for _, raw := range []string{"", "abc", "0", "12/x", "12/-3"} {
		_, err := ParseChatTarget(raw)
		assert.Error(t, err, raw)
	}
}

func TestChatTargetGroupIDIgnoresThread(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "-100", ChatTarget{ChatID: -100, ThreadID: 5}.GroupID())
}

func mustParse(t *testing.T, s string) ChatTarget {
	t.Helper()
	ct, err := ParseChatTarget(s)
	require.NoError(t, err)
	return ct
}
