package scheduler

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

type SpecKind int

const (
	SpecCron SpecKind = iota
	SpecInterval
)

func (k SpecKind) String() string {
	if k == SpecCron {
		return "cron"
	}
	return "interval"
}

// ParsedSpec is a normalized schedule string.
type ParsedSpec struct {
	Kind   SpecKind
	Cron   string
	Every  time.Duration
	Source string // "cron" | "duration" | "hhmm"
}

var (
	reHHMM = regexp.MustCompile(`^\s*(\d{1,3}):(\d{2})\s*$`)

	cronParser = cron.NewParser(cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
)

// ParseSchedule accepts:
//   - cron: "*/5 * * * *", "@hourly", "@every 5m", or anything prefixed "cron:"
//   - interval: "5m", "2h30m", "00:05" (HH:MM), or prefixed "interval:"/"every:"
//
// Cron expressions are validated here so a bad config fails at load time.
func ParseSchedule(raw string) (ParsedSpec, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return ParsedSpec{}, fmt.Errorf("schedule required")
	}
	low := strings.ToLower(s)

	switch {
	case strings.HasPrefix(low, "cron:"):
		return cronSpec(strings.TrimSpace(s[len("cron:"):]))
	case strings.HasPrefix(low, "interval:"):
		return intervalSpec(s[len("interval:"):])
	case strings.HasPrefix(low, "every:"):
		return intervalSpec(s[len("every:"):])
	case strings.ContainsAny(s, " \t") || strings.HasPrefix(s, "@"):
		return cronSpec(s)
	}

	if spec, err := intervalSpec(s); err == nil {
		return spec, nil
	}
	return ParsedSpec{}, fmt.Errorf("invalid schedule %q (use a duration like '5m', HH:MM like '00:05', or cron like '*/5 * * * *')", raw)
}

func cronSpec(expr string) (ParsedSpec, error) {
	if expr == "" {
		return ParsedSpec{}, fmt.Errorf("cron expression required")
	}
	if _, err := cronParser.Parse(expr); err != nil {
		return ParsedSpec{}, fmt.Errorf("invalid cron %q: %w", expr, err)
	}
	return ParsedSpec{Kind: SpecCron, Cron: expr, Source: "cron"}, nil
}

func intervalSpec(v string) (ParsedSpec, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return ParsedSpec{}, fmt.Errorf("interval required")
	}
	if reHHMM.MatchString(v) {
		h, m, err := parseHHMM(v)
		if err != nil {
			return ParsedSpec{}, err
		}
		d := time.Duration(h)*time.Hour + time.Duration(m)*time.Minute
		if d <= 0 {
			return ParsedSpec{}, fmt.Errorf("interval must be > 0")
		}
		return ParsedSpec{Kind: SpecInterval, Every: d, Source: "hhmm"}, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return ParsedSpec{}, fmt.Errorf("invalid interval %q", v)
	}
	if d <= 0 {
		return ParsedSpec{}, fmt.Errorf("interval must be > 0")
	}
	return ParsedSpec{Kind: SpecInterval, Every: d, Source: "duration"}, nil
}

// parseHHMM reads "H:MM" up to "999:59".
func parseHHMM(v string) (int, int, error) {
	m := reHHMM.FindStringSubmatch(v)
	if len(m) != 3 {
		return 0, 0, fmt.Errorf("invalid HH:MM %q", v)
	}
	h, _ := strconv.Atoi(m[1])
	mm, _ := strconv.Atoi(m[2])
	if mm > 59 {
		return 0, 0, fmt.Errorf("invalid minutes in %q", v)
	}
	return h, mm, nil
}
