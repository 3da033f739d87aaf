package tracker

import (
	"fmt"
	"html"

	"github.com/dustin/go-humanize"

	"growthbot/internal/notifier"
	"growthbot/internal/social"
)

// Notification renders ev for the sink. Counts use thousands separators.
func Notification(ev GrowthEvent) notifier.Notification {
	name := html.EscapeString(ev.Name)
	total := humanize.Comma(ev.Current)
	delta := humanize.Comma(ev.Growth)

	var title, body string
	switch ev.Platform {
	case social.YouTube:
		title = "🎉 YouTube Milestone Reached!"
		body = fmt.Sprintf("<b>%s</b> just hit <b>%s subscribers</b>!\n<code>+%s</code> since last update", name, total, delta)
	default:
		title = "📸 Instagram Growth!"
		body = fmt.Sprintf("<b>%s</b> now has <b>%s followers</b>!\n<code>+%s</code> since last update", name, total, delta)
	}
	return notifier.Notification{
		Destination: ev.Destination,
		Title:       title,
		Body:        body,
		URL:         ev.URL,
		Meta: map[string]string{
			"group":    ev.Group,
			"platform": string(ev.Platform),
			"growth":   delta,
		},
	}
}
