package availability

import (
	"sort"
	"time"

	"github.com/md-rashed-zaman/meetbook/services/availability-service/internal/model"
	"github.com/md-rashed-zaman/meetbook/services/availability-service/internal/tzconv"
)

// Policy carries the booking-window and buffer settings for one computation.
type Policy struct {
	Now          time.Time
	MinNotice    time.Duration
	MaxAdvance   time.Duration
	BufferBefore time.Duration
	BufferAfter  time.Duration
}

// BeyondMaxAdvance reports whether a day starting at dayStart is too far out to offer at all.
func (p Policy) BeyondMaxAdvance(dayStart time.Time) bool {
	return dayStart.After(p.Now.Add(p.MaxAdvance))
}

// Excluded reports whether a slot starting at start must not be listed: it is in the past or
// inside the minimum notice window.
func (p Policy) Excluded(start time.Time) bool {
	return start.Before(p.Now) || start.Before(p.Now.Add(p.MinNotice))
}

// Conflicts reports whether slot, padded by the buffers, overlaps any busy period.
func (p Policy) Conflicts(slot Interval, busy []model.BusyPeriod) bool {
	return overlapsAny(slot.Start.Add(-p.BufferBefore), slot.End.Add(p.BufferAfter), busy)
}

// Apply drops excluded candidates, marks conflicting ones unavailable and stamps the rest for
// display in displayTZ. The result is ordered by instant with duplicate starts removed.
func (p Policy) Apply(candidates []Interval, busy []model.BusyPeriod, displayTZ string) []model.TimeSlot {
	sorted := make([]Interval, len(candidates))
	copy(sorted, candidates)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Start.Before(sorted[j].Start) })

	out := make([]model.TimeSlot, 0, len(sorted))
	var last time.Time
	for i, c := range sorted {
		if i > 0 && c.Start.Equal(last) {
			continue
		}
		last = c.Start
		if p.Excluded(c.Start) {
			continue
		}
		out = append(out, model.TimeSlot{
			DisplayTime: tzconv.FormatTimeInTimezone(c.Start, displayTZ),
			Available:   !p.Conflicts(c, busy),
			UTCInstant:  tzconv.FormatUTCInstant(c.Start),
		})
	}
	return out
}

func overlapsAny(start, end time.Time, busy []model.BusyPeriod) bool {
	for _, b := range busy {
		// Half-open intervals: [start,end) overlaps [b.Start,b.End) iff start < b.End && b.Start < end.
		if start.Before(b.End) && b.Start.Before(end) {
			return true
		}
	}
	return false
}
