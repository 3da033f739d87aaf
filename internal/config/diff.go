package config

import (
	"reflect"
)

// Sections whose changes only take effect after a restart.
var restartSections = map[string]bool{"storage": true, "tracker": true, "telegram.token": true}

// ChangedSections lists the top-level sections that differ between a and b,
// in config order. The Telegram token is reported as "telegram.token" and
// never by value.
func ChangedSections(a, b *Config) []string {
	if a == nil {
		a = &Config{}
	}
	if b == nil {
		b = &Config{}
	}
	var out []string
	if a.Telegram.Token != b.Telegram.Token {
		out = append(out, "telegram.token")
	}
	ta, tb := a.Telegram, b.Telegram
	ta.Token, tb.Token = "", ""
	pairs := []struct {
		name string
		x, y any
	}{
		{"telegram", ta, tb},
		{"logging", a.Logging, b.Logging},
		{"tracker", a.Tracker, b.Tracker},
		{"storage", a.Storage, b.Storage},
		{"youtube", a.YouTube, b.YouTube},
		{"instagram", a.Instagram, b.Instagram},
		{"notifier", a.Notifier, b.Notifier},
		{"status", a.Status, b.Status},
	}
	for _, p := range pairs {
		if !reflect.DeepEqual(p.x, p.y) {
			out = append(out, p.name)
		}
	}
	return out
}

// NeedsRestart reports which of the changed sections cannot be applied live.
func NeedsRestart(changed []string) []string {
	var out []string
	for _, s := range changed {
		if restartSections[s] {
			out = append(out, s)
		}
	}
	return out
}
