package router

import (
	"strconv"
	"strings"
	"sync/atomic"
	"time"
)

var ridSeq atomic.Uint64

// newReqID is short and unique per process: base36 time plus a sequence.
func newReqID() string {
	n := ridSeq.Add(1)
	return strconv.FormatInt(time.Now().UnixMilli(), 36) + "-" + strconv.FormatUint(n, 36)
}

// splitCommand parses "/cmd@bot arg1 "arg 2"" into ("cmd", [arg1, arg 2]).
// ok is false when text is not a command.
func splitCommand(text string) (name string, args []string, ok bool) {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "/") {
		return "", nil, false
	}
	parts := tokenize(text)
	if len(parts) == 0 {
		return "", nil, false
	}
	name = strings.TrimPrefix(parts[0], "/")
	if i := strings.IndexByte(name, '@'); i >= 0 {
		name = name[:i]
	}
	name = strings.ToLower(name)
	if name == "" {
		return "", nil, false
	}
	return name, parts[1:], true
}

// tokenize splits on whitespace, honoring single or double quotes and
// backslash escapes.
func tokenize(s string) []string {
	var (
		out   []string
		buf   strings.Builder
		quote byte
		esc   bool
		have  bool
	)
	flush := func() {
		if have {
			out = append(out, buf.String())
			buf.Reset()
			have = false
		}
	}
	for i := 0; i < len(s); i++ {
		ch := s[i]
		switch {
		case esc:
			buf.WriteByte(ch)
			esc, have = false, true
		case ch == '\\':
			esc = true
		case quote != 0:
			if ch == quote {
				quote = 0
			} else {
				buf.WriteByte(ch)
			}
		case ch == '"' || ch == '\'':
			quote, have = ch, true
		case ch == ' ' || ch == '\t' || ch == '\n' || ch == '\r':
			flush()
		default:
			buf.WriteByte(ch)
			have = true
		}
	}
	flush()
	return out
}

// parseIndex parses a 1-based list position.
func parseIndex(raw string) (int, bool) {
	n, err := strconv.Atoi(strings.TrimPrefix(strings.TrimSpace(raw), "#"))
	if err != nil || n < 1 {
		return 0, false
	}
	return n, true
}
