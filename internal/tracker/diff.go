package tracker

import (
	"time"

	"growthbot/internal/social"
)

// GrowthEvent describes one detected increase.
type GrowthEvent struct {
	Group       string          `json:"group"`
	Platform    social.Platform `json:"platform"`
	Name        string          `json:"account_name"`
	URL         string          `json:"url"`
	Destination string          `json:"post_channel"`
	Previous    int64           `json:"previous"`
	Current     int64           `json:"current"`
	Growth      int64           `json:"growth"`
	At          time.Time       `json:"at"`
}

// Apply compares a fetched count with the stored one. Only a strict increase
// mutates a: LastCount becomes fetched and the event is returned with true.
// Equal or lower counts leave a untouched.
func Apply(a *social.Account, fetched int64) (GrowthEvent, bool) {
	if a == nil || fetched <= a.LastCount {
		return GrowthEvent{}, false
	}
	ev := GrowthEvent{
		Platform:    a.Platform,
		Name:        a.Name,
		URL:         a.URL,
		Destination: a.Destination,
		Previous:    a.LastCount,
		Current:     fetched,
		Growth:      fetched - a.LastCount,
		At:          time.Now(),
	}
	a.LastCount = fetched
	return ev, true
}
