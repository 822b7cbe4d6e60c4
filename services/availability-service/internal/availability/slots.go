package availability

import (
	"fmt"
	"time"

	"github.com/md-rashed-zaman/meetbook/services/availability-service/internal/schedule"
	"github.com/md-rashed-zaman/meetbook/services/availability-service/internal/tzconv"
)

// MaxSlotInterval is the common grid for meetings of 30 minutes or longer.
const MaxSlotInterval = 30 * time.Minute

type Interval struct {
	Start time.Time
	End   time.Time
}

// SlotInterval is the step between offered start times: the meeting duration, capped at 30 minutes.
func SlotInterval(duration time.Duration) time.Duration {
	if duration < MaxSlotInterval {
		return duration
	}
	return MaxSlotInterval
}

// BlockWindow converts a working-hour block on day to absolute instants using the host timezone.
func BlockWindow(day schedule.Day, block schedule.Block, tz string) (Interval, error) {
	sh, sm, err := schedule.ParseClock(block.Start)
	if err != nil {
		return Interval{}, err
	}
	eh, em, err := schedule.ParseClock(block.End)
	if err != nil {
		return Interval{}, err
	}
	start, err := tzconv.WallClockToUTC(day.Year, day.Month, day.Date, sh, sm, tz)
	if err != nil {
		return Interval{}, err
	}
	end, err := tzconv.WallClockToUTC(day.Year, day.Month, day.Date, eh, em, tz)
	if err != nil {
		return Interval{}, err
	}
	if !end.After(start) {
		return Interval{}, fmt.Errorf("block %s-%s ends before it starts", block.Start, block.End)
	}
	return Interval{Start: start, End: end}, nil
}

// Candidates returns every [t, t+duration) within window, with t advancing by step from
// window.Start. A slot never runs past window.End.
func Candidates(window Interval, duration, step time.Duration) []Interval {
	if duration <= 0 || step <= 0 {
		return nil
	}
	if !window.End.After(window.Start) {
		return nil
	}

	var slots []Interval
	for t := window.Start; !t.Add(duration).After(window.End); t = t.Add(step) {
		slots = append(slots, Interval{Start: t, End: t.Add(duration)})
	}
	return slots
}
