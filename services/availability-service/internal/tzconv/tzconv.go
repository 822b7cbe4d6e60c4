// Package tzconv converts between host wall-clock times and absolute instants.
//
// All conversions defer to the IANA database shipped with the Go runtime; nothing here keeps
// its own offset table.
package tzconv

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// DisplayLayout is the short time label shown to guests, e.g. "2:00 PM".
const DisplayLayout = "3:04 PM"

var ErrInvalidTimezone = errors.New("invalid timezone")

// Load resolves an IANA identifier. Empty strings and "Local" are rejected so that a host's
// frame of reference never silently becomes the server's.
func Load(tz string) (*time.Location, error) {
	tz = strings.TrimSpace(tz)
	if tz == "" || tz == "Local" {
		return nil, fmt.Errorf("%w: %q", ErrInvalidTimezone, tz)
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrInvalidTimezone, tz)
	}
	return loc, nil
}

func IsValidTimezone(tz string) bool {
	_, err := Load(tz)
	return err == nil
}

// WallClockToUTC returns the instant at which the given wall clock occurs in tz.
//
// The wall clock is first read as if it were UTC. The offset tz observes at that guess is
// subtracted to get a candidate; if tz observes a different offset at the candidate itself
// (the guess fell on the other side of a transition) the candidate is recomputed with that
// offset, provided it reproduces the requested wall clock. Hour 24 means midnight of the next day.
func WallClockToUTC(year int, month time.Month, day, hour, minute int, tz string) (time.Time, error) {
	loc, err := Load(tz)
	if err != nil {
		return time.Time{}, err
	}

	guess := time.Date(year, month, day, hour, minute, 0, 0, time.UTC)
	candidate := guess.Add(-offsetAt(guess, loc))

	second := guess.Add(-offsetAt(candidate, loc))
	if !second.Equal(candidate) && sameWallClock(second.In(loc), guess) {
		return second, nil
	}
	return candidate, nil
}

// offsetAt is how far tz's wall clock runs ahead of UTC at instant t.
func offsetAt(t time.Time, loc *time.Location) time.Duration {
	local := t.In(loc)
	observed := time.Date(local.Year(), local.Month(), local.Day(), local.Hour(), local.Minute(), local.Second(), local.Nanosecond(), time.UTC)
	return observed.Sub(t)
}

func sameWallClock(local, wall time.Time) bool {
	return local.Year() == wall.Year() && local.Month() == wall.Month() && local.Day() == wall.Day() &&
		local.Hour() == wall.Hour() && local.Minute() == wall.Minute()
}

// FormatTimeInTimezone renders t for display. Invalid zones fall back to UTC.
// The result is never used for comparison or storage.
func FormatTimeInTimezone(t time.Time, tz string) string {
	loc, err := Load(tz)
	if err != nil {
		loc = time.UTC
	}
	return t.In(loc).Format(DisplayLayout)
}

// Weekday returns the lowercase weekday name of t as observed in tz.
func Weekday(t time.Time, tz string) (string, error) {
	loc, err := Load(tz)
	if err != nil {
		return "", err
	}
	return strings.ToLower(t.In(loc).Weekday().String()), nil
}

// FormatUTCInstant is the canonical ISO-8601 form used for slot identity.
func FormatUTCInstant(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05.000Z")
}
