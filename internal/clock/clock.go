// Package clock supplies wall-clock time in the bot's target timezone.
package clock

import (
	"fmt"
	"strings"
	"sync"
	"time"
	_ "time/tzdata"
)

// DefaultTimezone is the zone all boss and event times are interpreted in.
const DefaultTimezone = "Europe/Warsaw"

type Clock interface {
	Now() time.Time
	Location() *time.Location
}

// LoadLocation resolves name, falling back to DefaultTimezone when empty.
func LoadLocation(name string) (*time.Location, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		name = DefaultTimezone
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("clock: timezone %q: %w", name, err)
	}
	return loc, nil
}

type Real struct {
	loc *time.Location
}

func NewReal(loc *time.Location) Real {
	if loc == nil {
		loc = time.Local
	}
	return Real{loc: loc}
}

func (r Real) Now() time.Time { return time.Now().In(r.loc) }

func (r Real) Location() *time.Location { return r.loc }

// Manual is a settable clock for tests and simulations.
type Manual struct {
	mu  sync.Mutex
	now time.Time
	loc *time.Location
}

func NewManual(now time.Time) *Manual {
	loc := now.Location()
	return &Manual{now: now, loc: loc}
}

func (m *Manual) Now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now
}

func (m *Manual) Location() *time.Location { return m.loc }

func (m *Manual) Set(t time.Time) {
	m.mu.Lock()
	m.now = t.In(m.loc)
	m.mu.Unlock()
}

// Advance moves the clock forward by d and returns the new time.
func (m *Manual) Advance(d time.Duration) time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = m.now.Add(d)
	return m.now
}

// DateKey formats t's calendar date in loc.
func DateKey(t time.Time, loc *time.Location) string {
	return t.In(loc).Format("2006-01-02")
}

// MinuteKey formats t at minute resolution in loc.
func MinuteKey(t time.Time, loc *time.Location) string {
	return t.In(loc).Format("2006-01-02T15:04")
}

// FormatHM renders t as HH:MM in loc.
func FormatHM(t time.Time, loc *time.Location) string {
	return t.In(loc).Format("15:04")
}

// FloorMinutes is floor(d / 1m), rounding toward negative infinity.
func FloorMinutes(d time.Duration) int64 {
	ms := d.Milliseconds()
	q := ms / 60000
	if ms%60000 != 0 && ms < 0 {
		q--
	}
	return q
}
