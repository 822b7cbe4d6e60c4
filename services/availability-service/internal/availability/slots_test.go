package availability

import (
	"testing"
	"time"

	"github.com/md-rashed-zaman/meetbook/services/availability-service/internal/schedule"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var june1 = time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)

func TestSlotInterval(t *testing.T) {
	cases := map[int]int{10: 10, 15: 15, 20: 20, 30: 30, 45: 30, 60: 30, 90: 30}
	for durationMins, wantMins := range cases {
		got := SlotInterval(time.Duration(durationMins) * time.Minute)
		assert.Equal(t, time.Duration(wantMins)*time.Minute, got, "duration %d", durationMins)
	}
}

func TestCandidates_Basic(t *testing.T) {
	window := Interval{Start: june1.Add(9 * time.Hour), End: june1.Add(12 * time.Hour)}

	slots := Candidates(window, 30*time.Minute, SlotInterval(30*time.Minute))
	require.Len(t, slots, 6)
	assert.True(t, slots[0].Start.Equal(june1.Add(9*time.Hour)))
	assert.True(t, slots[5].Start.Equal(june1.Add(11*time.Hour+30*time.Minute)))
	for i := 1; i < len(slots); i++ {
		assert.Equal(t, 30*time.Minute, slots[i].Start.Sub(slots[i-1].Start), "slot %d", i)
	}
}

func TestCandidates_NoOverflowPastBlockEnd(t *testing.T) {
	window := Interval{Start: june1.Add(9 * time.Hour), End: june1.Add(12 * time.Hour)}

	slots := Candidates(window, 60*time.Minute, SlotInterval(60*time.Minute))
	// 09:00, 09:30, 10:00, 10:30, 11:00. 11:30+60m would end at 12:30.
	require.Len(t, slots, 5)
	assert.True(t, slots[4].Start.Equal(june1.Add(11*time.Hour)))
	assert.True(t, slots[4].End.Equal(window.End))
}

func TestCandidates_FifteenMinuteGrid(t *testing.T) {
	window := Interval{Start: june1.Add(9 * time.Hour), End: june1.Add(10 * time.Hour)}

	assert.Len(t, Candidates(window, 15*time.Minute, SlotInterval(15*time.Minute)), 4)
}

func TestCandidates_DurationLongerThanBlock(t *testing.T) {
	window := Interval{Start: june1.Add(9 * time.Hour), End: june1.Add(9*time.Hour + 45*time.Minute)}

	assert.Empty(t, Candidates(window, 60*time.Minute, 30*time.Minute))
	assert.Nil(t, Candidates(window, 0, 30*time.Minute))
}

func TestBlockWindow_HostTimezone(t *testing.T) {
	rules := schedule.Rules{Timezone: "America/New_York", WeeklyHours: schedule.WeeklyHours{}}
	day, err := schedule.Resolve(rules, june1)
	require.NoError(t, err)

	win, err := BlockWindow(day, schedule.Block{Start: "09:00", End: "12:00"}, rules.Timezone)
	require.NoError(t, err)
	assert.True(t, win.Start.Equal(time.Date(2026, 6, 1, 13, 0, 0, 0, time.UTC)), "start %s", win.Start)
	assert.True(t, win.End.Equal(time.Date(2026, 6, 1, 16, 0, 0, 0, time.UTC)), "end %s", win.End)
}

func TestBlockWindow_EndOfDay(t *testing.T) {
	rules := schedule.Rules{Timezone: "UTC", WeeklyHours: schedule.WeeklyHours{}}
	day, err := schedule.Resolve(rules, june1)
	require.NoError(t, err)

	win, err := BlockWindow(day, schedule.Block{Start: "22:00", End: "24:00"}, rules.Timezone)
	require.NoError(t, err)
	assert.Equal(t, 2*time.Hour, win.End.Sub(win.Start))

	_, err = BlockWindow(day, schedule.Block{Start: "12:00", End: "09:00"}, rules.Timezone)
	assert.Error(t, err, "inverted block")
	_, err = BlockWindow(day, schedule.Block{Start: "nine", End: "10:00"}, rules.Timezone)
	assert.Error(t, err, "malformed block")
}
