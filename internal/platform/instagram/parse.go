package instagram

import (
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"golang.org/x/net/html"
)

const followersMarker = " Followers"

var (
	// ErrNoDescription means the page has no og:description meta tag.
	ErrNoDescription = errors.New("og:description meta tag not found")
	// ErrNoFollowers means the description does not mention followers.
	ErrNoFollowers = errors.New("follower count not present in description")
	// ErrCountFormat means the follower token was found but is not a number.
	ErrCountFormat = errors.New("unrecognized follower count")
)

// ParseFollowers extracts the follower count from an og:description value
// such as "1.2M Followers, 300 Following, 12 Posts - ...".
//
// The token right before " Followers" is read as: <n>K (thousands),
// <n>M (millions), or an integer with optional comma grouping.
// Fractional results are truncated.
func ParseFollowers(description string) (int64, error) {
	i := strings.Index(description, followersMarker)
	if i < 0 {
		return 0, ErrNoFollowers
	}
	head := description[:i]
	tok := head
	if j := strings.LastIndexByte(head, ' '); j >= 0 {
		tok = head[j+1:]
	}

	switch {
	case strings.HasSuffix(tok, "K"):
		return scaled(tok, strings.TrimSuffix(tok, "K"), 1_000)
	case strings.HasSuffix(tok, "M"):
		return scaled(tok, strings.TrimSuffix(tok, "M"), 1_000_000)
	}
	n, err := strconv.ParseInt(strings.ReplaceAll(tok, ",", ""), 10, 64)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("%w: %q", ErrCountFormat, tok)
	}
	return n, nil
}

func scaled(tok, num string, mul float64) (int64, error) {
	f, err := strconv.ParseFloat(num, 64)
	if err != nil || f < 0 || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("%w: %q", ErrCountFormat, tok)
	}
	v := f * mul
	if v >= math.MaxInt64 {
		return 0, fmt.Errorf("%w: %q", ErrCountFormat, tok)
	}
	return int64(v), nil
}

// ogDescription scans an HTML document for <meta property="og:description">
// and returns its content attribute. Scanning stops at the first match.
func ogDescription(r io.Reader) (string, error) {
	z := html.NewTokenizer(r)
	for {
		switch z.Next() {
		case html.ErrorToken:
			if err := z.Err(); err != nil && !errors.Is(err, io.EOF) {
				return "", err
			}
			return "", ErrNoDescription
		case html.StartTagToken, html.SelfClosingTagToken:
			name, hasAttr := z.TagName()
			if string(name) != "meta" || !hasAttr {
				continue
			}
			var property, content string
			var isContent bool
			for more := true; more; {
				var key, val []byte
				key, val, more = z.TagAttr()
				switch string(key) {
				case "property":
					property = string(val)
				case "content":
					content, isContent = string(val), true
				}
			}
			if property == "og:description" && isContent {
				return content, nil
			}
		}
	}
}
