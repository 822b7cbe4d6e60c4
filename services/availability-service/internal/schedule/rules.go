package schedule

import (
	"fmt"
	"strconv"
	"strings"
)

const (
	DefaultTimezone   = "UTC"
	DefaultMinNotice  = 1440
	DefaultMaxAdvance = 60
)

var Weekdays = []string{"sunday", "monday", "tuesday", "wednesday", "thursday", "friday", "saturday"}

// Block is one working-hour range on a day, in the host's wall clock.
type Block struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// WeeklyHours maps a lowercase weekday name to its blocks. A missing key, a null value and an
// empty list all mean the day is unavailable.
type WeeklyHours map[string][]Block

// Rules is a host's availability configuration.
type Rules struct {
	Timezone    string      `json:"timezone"`
	WeeklyHours WeeklyHours `json:"weekly_hours"`
	// MinNotice is in minutes.
	MinNotice int `json:"min_notice"`
	// MaxAdvance is in days.
	MaxAdvance int `json:"max_advance"`
}

func DefaultRules() Rules {
	workday := []Block{{Start: "09:00", End: "17:00"}}
	return Rules{
		Timezone: DefaultTimezone,
		WeeklyHours: WeeklyHours{
			"monday":    workday,
			"tuesday":   workday,
			"wednesday": workday,
			"thursday":  workday,
			"friday":    workday,
			"saturday":  nil,
			"sunday":    nil,
		},
		MinNotice:  DefaultMinNotice,
		MaxAdvance: DefaultMaxAdvance,
	}
}

// Normalize lower-cases weekday keys, fills an empty timezone and clamps negative windows.
// A nil WeeklyHours means the host never configured hours; an empty non-nil map is kept as is.
func (r Rules) Normalize() Rules {
	def := DefaultRules()
	out := r
	out.Timezone = strings.TrimSpace(out.Timezone)
	if out.Timezone == "" {
		out.Timezone = def.Timezone
	}
	if out.MinNotice < 0 {
		out.MinNotice = 0
	}
	// Zero is a real setting: nothing beyond today.
	if out.MaxAdvance < 0 {
		out.MaxAdvance = def.MaxAdvance
	}
	if out.WeeklyHours == nil {
		out.WeeklyHours = def.WeeklyHours
		return out
	}
	hours := make(WeeklyHours, len(out.WeeklyHours))
	for day, blocks := range out.WeeklyHours {
		hours[strings.ToLower(strings.TrimSpace(day))] = blocks
	}
	out.WeeklyHours = hours
	return out
}

// ParseClock parses "HH:MM". "24:00" is accepted as an end-of-day marker.
func ParseClock(raw string) (hour, minute int, err error) {
	parts := strings.Split(strings.TrimSpace(raw), ":")
	if len(parts) != 2 || len(parts[0]) == 0 || len(parts[1]) != 2 {
		return 0, 0, fmt.Errorf("invalid clock %q: want HH:MM", raw)
	}
	hour, err = strconv.Atoi(parts[0])
	if err != nil {
		return 0, 0, fmt.Errorf("invalid clock %q: %w", raw, err)
	}
	minute, err = strconv.Atoi(parts[1])
	if err != nil {
		return 0, 0, fmt.Errorf("invalid clock %q: %w", raw, err)
	}
	if minute < 0 || minute > 59 || hour < 0 || hour > 24 || (hour == 24 && minute != 0) {
		return 0, 0, fmt.Errorf("invalid clock %q: out of range", raw)
	}
	return hour, minute, nil
}
