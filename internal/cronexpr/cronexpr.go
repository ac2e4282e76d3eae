// Package cronexpr wraps a standard 5-field cron expression parser with
// IANA timezone handling so the scheduler can ask "what's the next instant
// this expression fires, interpreted in this timezone" without embedding
// the parsing library's API directly in scheduling logic.
package cronexpr

import (
	"fmt"
	"strings"
	"time"

	robcron "github.com/robfig/cron/v3"
)

var parser = robcron.NewParser(
	robcron.Minute | robcron.Hour | robcron.Dom | robcron.Month | robcron.Dow | robcron.Descriptor,
)

// Schedule is a parsed cron expression, reusable across Next calls.
type Schedule struct {
	raw   string
	inner robcron.Schedule
}

// Parse validates expr and returns a reusable Schedule, or an error
// describing why the expression is unparseable.
func Parse(expr string) (*Schedule, error) {
	trimmed := strings.TrimSpace(expr)
	if trimmed == "" {
		return nil, fmt.Errorf("cron expression is empty")
	}
	s, err := parser.Parse(trimmed)
	if err != nil {
		return nil, fmt.Errorf("invalid cron expression %q: %w", trimmed, err)
	}
	return &Schedule{raw: trimmed, inner: s}, nil
}

// Next returns the next fire instant strictly after ref, in ref's location.
func (s *Schedule) Next(ref time.Time) time.Time {
	return s.inner.Next(ref)
}

func (s *Schedule) String() string { return s.raw }

// Location resolves an IANA timezone name. An empty name or "Local" maps to
// the process-local zone.
func Location(name string) (*time.Location, error) {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" || strings.EqualFold(trimmed, "local") {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(trimmed)
	if err != nil {
		return nil, fmt.Errorf("load timezone %q: %w", trimmed, err)
	}
	return loc, nil
}

// NextAfter parses expr, resolves tz, and returns the next fire instant
// after ref — a convenience wrapping Parse+Location+Next for one-shot
// evaluation (the common case outside a held Schedule).
func NextAfter(expr, tz string, ref time.Time) (time.Time, error) {
	loc, err := Location(tz)
	if err != nil {
		return time.Time{}, err
	}
	sched, err := Parse(expr)
	if err != nil {
		return time.Time{}, err
	}
	return sched.Next(ref.In(loc)).UTC(), nil
}
