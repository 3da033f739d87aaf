package social

import (
	"sort"
	"strings"
)

type Platform string

const (
	YouTube   Platform = "youtube"
	Instagram Platform = "instagram"
)

// Platforms lists every supported platform in display order.
var Platforms = []Platform{YouTube, Instagram}

func ParsePlatform(s string) (Platform, error) {
	p := Platform(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Platforms {
		if p == known {
			return p, nil
		}
	}
	return "", &ValidationError{Field: "platform", Reason: "unsupported platform " + s}
}

// Title is the human-facing platform name.
func (p Platform) Title() string {
	switch p {
	case YouTube:
		return "YouTube"
	case Instagram:
		return "Instagram"
	default:
		return string(p)
	}
}

// Metric names what the platform counts.
func (p Platform) Metric() string {
	if p == YouTube {
		return "subscribers"
	}
	return "followers"
}

// Account is one tracked profile. Field names follow the persisted format.
type Account struct {
	Platform    Platform `json:"platform" bson:"platform"`
	URL         string   `json:"url" bson:"url"`
	ChannelID   string   `json:"channel_id,omitempty" bson:"channel_id,omitempty"`
	Name        string   `json:"account_name" bson:"account_name"`
	LastCount   int64    `json:"last_count" bson:"last_count"`
	Destination string   `json:"post_channel" bson:"post_channel"`
}

// Identifier is the platform-side key: the channel id for YouTube, the
// username for Instagram.
func (a *Account) Identifier() string {
	if a.Platform == YouTube {
		return a.ChannelID
	}
	if ref, err := ParseAccountURL(a.URL); err == nil && ref.Username != "" {
		return ref.Username
	}
	return a.Name
}

func (a *Account) Clone() *Account {
	if a == nil {
		return nil
	}
	cp := *a
	return &cp
}

// Registry maps a group id to its tracked accounts in insertion order.
type Registry map[string][]*Account

// Clone returns a deep copy.
func (r Registry) Clone() Registry {
	out := make(Registry, len(r))
	for g, accs := range r {
		cp := make([]*Account, 0, len(accs))
		for _, a := range accs {
			cp = append(cp, a.Clone())
		}
		out[g] = cp
	}
	return out
}

// Normalize drops nil entries and empty groups and clamps negative counts.
func (r Registry) Normalize() {
	for g, accs := range r {
		kept := accs[:0]
		for _, a := range accs {
			if a == nil {
				continue
			}
			if a.LastCount < 0 {
				a.LastCount = 0
			}
			kept = append(kept, a)
		}
		if len(kept) == 0 {
			delete(r, g)
			continue
		}
		r[g] = kept
	}
}

// Groups returns the group ids sorted, so sweeps visit them deterministically.
func (r Registry) Groups() []string {
	out := make([]string, 0, len(r))
	for g := range r {
		out = append(out, g)
	}
	sort.Strings(out)
	return out
}

// Len counts accounts across all groups.
func (r Registry) Len() int {
	n := 0
	for _, accs := range r {
		n += len(accs)
	}
	return n
}
