// Package schedule resolves a host's working-hour blocks for a calendar day.
package schedule

import (
	"time"

	"github.com/md-rashed-zaman/meetbook/services/availability-service/internal/tzconv"
)

// Day is a calendar date seen from the host's timezone.
type Day struct {
	Year  int
	Month time.Month
	Date  int

	// Weekday is the lowercase weekday name observed in the host timezone.
	Weekday string
	// Midnight and NextMidnight are the UTC instants of host-local 00:00 on this day and the next.
	Midnight     time.Time
	NextMidnight time.Time
	Blocks       []Block
}

// Resolve picks the blocks that apply on date. Only date's year, month and day are used,
// interpreted in rules.Timezone.
func Resolve(rules Rules, date time.Time) (Day, error) {
	y, m, d := date.Date()
	midnight, err := tzconv.WallClockToUTC(y, m, d, 0, 0, rules.Timezone)
	if err != nil {
		return Day{}, err
	}
	ny, nm, nd := time.Date(y, m, d+1, 0, 0, 0, 0, time.UTC).Date()
	next, err := tzconv.WallClockToUTC(ny, nm, nd, 0, 0, rules.Timezone)
	if err != nil {
		return Day{}, err
	}
	weekday, err := tzconv.Weekday(midnight, rules.Timezone)
	if err != nil {
		return Day{}, err
	}

	return Day{
		Year:         y,
		Month:        m,
		Date:         d,
		Weekday:      weekday,
		Midnight:     midnight,
		NextMidnight: next,
		Blocks:       rules.WeeklyHours[weekday],
	}, nil
}

// Available reports whether the day has any working hours at all.
func (d Day) Available() bool {
	return len(d.Blocks) > 0
}
