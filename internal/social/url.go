package social

import (
	"strings"
)

// AccountRef is what a user-supplied profile URL points at.
// Exactly one of ChannelID, Handle (YouTube) or Username (Instagram) is set.
type AccountRef struct {
	Platform  Platform
	ChannelID string
	Handle    string
	Username  string
}

// ParseAccountURL infers the platform from a profile URL and extracts the
// account key. The scheme and "www." are optional.
func ParseAccountURL(raw string) (AccountRef, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return AccountRef{}, &ValidationError{Field: "url", Reason: "profile URL required"}
	}
	low := strings.ToLower(s)

	switch {
	case strings.Contains(low, "youtube.com/channel/"):
		id := segmentAfter(s, low, "youtube.com/channel/")
		if id == "" {
			return AccountRef{}, &ValidationError{Field: "url", Reason: "missing YouTube channel id"}
		}
		return AccountRef{Platform: YouTube, ChannelID: id}, nil

	case strings.Contains(low, "youtube.com/@"):
		handle := segmentAfter(s, low, "youtube.com/@")
		if handle == "" {
			return AccountRef{}, &ValidationError{Field: "url", Reason: "missing YouTube handle"}
		}
		return AccountRef{Platform: YouTube, Handle: handle}, nil

	case strings.Contains(low, "youtube.com"):
		return AccountRef{}, &ValidationError{Field: "url", Reason: "use a youtube.com/channel/<id> or youtube.com/@<handle> URL"}

	case strings.Contains(low, "instagram.com/"):
		user := segmentAfter(s, low, "instagram.com/")
		if user == "" {
			return AccountRef{}, &ValidationError{Field: "url", Reason: "missing Instagram username"}
		}
		return AccountRef{Platform: Instagram, Username: user}, nil
	}
	return AccountRef{}, &ValidationError{Field: "url", Reason: "unsupported profile URL " + s}
}

// segmentAfter returns the path segment following marker, cut at "/", "?" or "#".
// Matching is case-insensitive; the returned segment keeps its original case.
func segmentAfter(s, low, marker string) string {
	i := strings.Index(low, marker)
	if i < 0 || i+len(marker) > len(s) {
		return ""
	}
	rest := s[i+len(marker):]
	if j := strings.IndexAny(rest, "/?#"); j >= 0 {
		rest = rest[:j]
	}
	return strings.TrimSpace(rest)
}

func YouTubeChannelURL(channelID string) string {
	return "https://www.youtube.com/channel/" + channelID
}

func InstagramProfileURL(username string) string {
	return "https://www.instagram.com/" + username + "/"
}
