package router

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSplitCommand(t *testing.T) {
	tests := []struct {
		in   string
		name string
		args []string
		ok   bool
	}{
		{"/track_list", "track_list", []string{}, true},
		{"/Track_Add@GrowthBot https://youtube.com/@nexus -1001/7", "track_add", []string{"https://youtube.com/@nexus", "-1001/7"}, true},
		{"  /track_remove   2  ", "track_remove", []string{"2"}, true},
		{`/track_add "https://instagram.com/a b"`, "track_add", []string{"https://instagram.com/a b"}, true},
		{"hello /help", "", nil, false},
		{"/", "", nil, false},
		{"/@bot", "", nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			name, args, ok := splitCommand(tt.in)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.name, name)
			if tt.ok {
				assert.Equal(t, tt.args, args)
			}
		})
	}
}

func TestTokenize(t *testing.T) {
	assert.Equal(t, []string{"a", "b c", `d"e`, ""}, tokenize(`a 'b c' d\"e ""`))
	assert.Nil(t, tokenize("   "))
}

func TestParseIndex(t *testing.T) {
	for in, want := range map[string]int{"1": 1, " 12 ": 12, "#3": 3} {
		got, ok := parseIndex(in)
		assert.True(t, ok, in)
		assert.Equal(t, want, got, in)
	}
	for _, in := range []string{"0", "-1", "two", ""} {
		_, ok := parseIndex(in)
		assert.False(t, ok, in)
	}
}

func TestNewReqIDUnique(t *testing.T) {
	seen := map[string]bool{}
	for i := 0; i < 100; i++ {
		id := newReqID()
		assert.False(t, seen[id], id)
		seen[id] = true
	}
}
