package notifier

import (
	"html"
	"strings"
)

// Render formats n as Telegram HTML. Title and URL are escaped here; Body is
// expected to be HTML already.
func (n Notification) Render() string {
	var b strings.Builder
	if t := strings.TrimSpace(n.Title); t != "" {
		b.WriteString("<b>")
		b.WriteString(html.EscapeString(t))
		b.WriteString("</b>\n")
	}
	b.WriteString(strings.TrimSpace(n.Body))
	if u := strings.TrimSpace(n.URL); u != "" {
		b.WriteString("\n")
		b.WriteString(`<a href="`)
		b.WriteString(html.EscapeString(u))
		b.WriteString(`">`)
		b.WriteString(html.EscapeString(u))
		b.WriteString("</a>")
	}
	return b.String()
}
