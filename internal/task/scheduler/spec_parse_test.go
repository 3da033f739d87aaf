package scheduler

import (
	"testing"
	"time"
)

func TestParseScheduleVariants(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name     string
		raw      string
		kind     SpecKind
		source   string
		duration time.Duration
	}{
		{name: "default sweep", raw: "5m", kind: SpecInterval, source: "duration", duration: 5 * time.Minute},
		{name: "seconds", raw: "300s", kind: SpecInterval, source: "duration", duration: 300 * time.Second},
		{name: "hhmm", raw: "00:05", kind: SpecInterval, source: "hhmm", duration: 5 * time.Minute},
		{name: "prefixed interval", raw: "interval:45s", kind: SpecInterval, source: "duration", duration: 45 * time.Second},
		{name: "every prefix", raw: "every:01:30", kind: SpecInterval, source: "hhmm", duration: 90 * time.Minute},
		{name: "cron", raw: "*/5 * * * *", kind: SpecCron, source: "cron"},
		{name: "cron with seconds", raw: "0 */5 * * * *", kind: SpecCron, source: "cron"},
		{name: "descriptor", raw: "@every 5m", kind: SpecCron, source: "cron"},
		{name: "prefixed cron", raw: "cron:0 0 * * *", kind: SpecCron, source: "cron"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseSchedule(tt.raw)
			if err != nil {
				t.Fatalf("ParseSchedule(%q) error: %v", tt.raw, err)
			}
			if got.Kind != tt.kind {
				t.Fatalf("Kind = %v, want %v", got.Kind, tt.kind)
			}
			if got.Source != tt.source {
				t.Fatalf("Source = %s, want %s", got.Source, tt.source)
			}
			if tt.kind == SpecInterval && got.Every != tt.duration {
				t.Fatalf("Every = %v, want %v", got.Every, tt.duration)
			}
		})
	}
}

func TestParseScheduleInvalid(t *testing.T) {
	t.Parallel()
	for _, raw := range []string{"", "not-a-schedule", "0s", "-5m", "00:00", "01:75", "cron:", "cron:61 * * * *", "* * *"} {
		if _, err := ParseSchedule(raw); err == nil {
			t.Fatalf("ParseSchedule(%q): expected error", raw)
		}
	}
}

func TestParseHHMM(t *testing.T) {
	t.Parallel()
	h, m, err := parseHHMM("23:15")
	if err != nil {
		t.Fatalf("parseHHMM error: %v", err)
	}
	if h != 23 || m != 15 {
		t.Fatalf("unexpected result: %d:%d", h, m)
	}
	if _, _, err := parseHHMM("1:60"); err == nil {
		t.Fatal("expected error for minutes > 59")
	}
}
