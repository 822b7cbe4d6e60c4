package engine

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/md-rashed-zaman/meetbook/services/availability-service/internal/busy"
	"github.com/md-rashed-zaman/meetbook/services/availability-service/internal/model"
	"github.com/md-rashed-zaman/meetbook/services/availability-service/internal/schedule"
	"github.com/md-rashed-zaman/meetbook/services/availability-service/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	hostID = "7b0c5c1e-4f7e-4a43-9d8c-2f0c9a1d1a01"
	typeID = "a3f1d2c4-1111-4a43-9d8c-2f0c9a1d1a02"
)

// monday is 2026-06-01.
var monday = time.Date(2026, time.June, 1, 0, 0, 0, 0, time.UTC)

type memMeetingTypes map[string]model.MeetingType

func (m memMeetingTypes) Get(ctx context.Context, id string) (model.MeetingType, error) {
	mt, ok := m[id]
	if !ok {
		return model.MeetingType{}, storage.ErrNotFound
	}
	return mt, nil
}

type memRules struct {
	rules schedule.Rules
	found bool
	err   error
}

func (m memRules) Get(ctx context.Context, hostID string) (schedule.Rules, bool, error) {
	return m.rules, m.found, m.err
}

type memCalendar struct {
	periods []model.BusyPeriod
	err     error
	calls   atomic.Int32
}

func (m *memCalendar) ListBusy(ctx context.Context, hostID string, start, end time.Time) ([]model.BusyPeriod, error) {
	m.calls.Add(1)
	return m.periods, m.err
}

type memBookings struct {
	periods []model.BusyPeriod
	err     error
	calls   atomic.Int32
}

func (m *memBookings) ListConfirmed(ctx context.Context, hostID string, start, end time.Time) ([]model.BusyPeriod, error) {
	m.calls.Add(1)
	var out []model.BusyPeriod
	for _, p := range m.periods {
		if p.Start.Before(end) && p.End.After(start) {
			out = append(out, p)
		}
	}
	return out, m.err
}

type fixture struct {
	meetingType model.MeetingType
	rules       memRules
	calendar    *memCalendar
	bookings    *memBookings
	now         time.Time
	logs        *bytes.Buffer
}

func newFixture() *fixture {
	return &fixture{
		meetingType: model.MeetingType{ID: typeID, HostID: hostID, Name: "Intro call", Duration: 30, Active: true},
		rules: memRules{found: true, rules: schedule.Rules{
			Timezone:    "UTC",
			WeeklyHours: schedule.WeeklyHours{"monday": {{Start: "09:00", End: "12:00"}}},
			MinNotice:   0,
			MaxAdvance:  60,
		}},
		calendar: &memCalendar{},
		bookings: &memBookings{},
		now:      monday.Add(-7 * 24 * time.Hour),
		logs:     &bytes.Buffer{},
	}
}

func (f *fixture) engine() *Engine {
	logger := slog.New(slog.NewTextHandler(f.logs, nil))
	agg := busy.NewAggregator(f.calendar, f.bookings, logger)
	return New(memMeetingTypes{typeID: f.meetingType}, f.rules, agg, logger, WithClock(func() time.Time { return f.now }))
}

func (f *fixture) compute(t *testing.T, date time.Time, viewerTZ string) []model.TimeSlot {
	t.Helper()
	slots, err := f.engine().ComputeAvailability(context.Background(), hostID, typeID, date, viewerTZ)
	require.NoError(t, err)
	require.NotNil(t, slots)
	return slots
}

func instants(slots []model.TimeSlot) []string {
	out := make([]string, 0, len(slots))
	for _, s := range slots {
		out = append(out, s.UTCInstant)
	}
	return out
}

func TestCompute_MorningBlockAllFree(t *testing.T) {
	f := newFixture()
	slots := f.compute(t, monday, "")

	assert.Equal(t, []string{
		"2026-06-01T09:00:00.000Z",
		"2026-06-01T09:30:00.000Z",
		"2026-06-01T10:00:00.000Z",
		"2026-06-01T10:30:00.000Z",
		"2026-06-01T11:00:00.000Z",
		"2026-06-01T11:30:00.000Z",
	}, instants(slots))
	for _, s := range slots {
		assert.True(t, s.Available, s.UTCInstant)
	}
	assert.Equal(t, "9:00 AM", slots[0].DisplayTime)
}

func TestCompute_ConfirmedBookingMarksSlotTaken(t *testing.T) {
	f := newFixture()
	f.bookings.periods = []model.BusyPeriod{{Start: monday.Add(9*time.Hour + 30*time.Minute), End: monday.Add(10 * time.Hour)}}

	slots := f.compute(t, monday, "")
	require.Len(t, slots, 6)
	for _, s := range slots {
		if s.UTCInstant == "2026-06-01T09:30:00.000Z" {
			assert.False(t, s.Available)
			continue
		}
		assert.True(t, s.Available, s.UTCInstant)
	}
}

func TestCompute_BuffersBlockNeighbours(t *testing.T) {
	f := newFixture()
	f.meetingType.BufferBefore = 15
	f.meetingType.BufferAfter = 15
	f.bookings.periods = []model.BusyPeriod{{Start: monday.Add(10 * time.Hour), End: monday.Add(10*time.Hour + 30*time.Minute)}}

	slots := f.compute(t, monday, "")
	taken := map[string]bool{}
	for _, s := range slots {
		if !s.Available {
			taken[s.UTCInstant] = true
		}
	}
	assert.True(t, taken["2026-06-01T09:30:00.000Z"])
	assert.True(t, taken["2026-06-01T10:00:00.000Z"])
	assert.True(t, taken["2026-06-01T10:30:00.000Z"])
	assert.False(t, taken["2026-06-01T09:00:00.000Z"])
	assert.False(t, taken["2026-06-01T11:00:00.000Z"])
}

func TestCompute_HostInNewYorkSummer(t *testing.T) {
	f := newFixture()
	f.rules.rules.Timezone = "America/New_York"

	slots := f.compute(t, monday, "UTC")
	require.NotEmpty(t, slots)
	assert.Equal(t, "2026-06-01T13:00:00.000Z", slots[0].UTCInstant)
	assert.Equal(t, "1:00 PM", slots[0].DisplayTime)

	hostView := f.compute(t, monday, "")
	assert.Equal(t, "9:00 AM", hostView[0].DisplayTime)
}

func TestCompute_HourLongMeetingStaysInsideBlock(t *testing.T) {
	f := newFixture()
	f.meetingType.Duration = 60

	slots := f.compute(t, monday, "")
	assert.Equal(t, []string{
		"2026-06-01T09:00:00.000Z",
		"2026-06-01T09:30:00.000Z",
		"2026-06-01T10:00:00.000Z",
		"2026-06-01T10:30:00.000Z",
		"2026-06-01T11:00:00.000Z",
	}, instants(slots))
}

func TestCompute_ViewerTimezoneOnlyChangesLabels(t *testing.T) {
	f := newFixture()
	f.rules.rules.Timezone = "Europe/Berlin"
	f.rules.rules.WeeklyHours["monday"] = []schedule.Block{{Start: "08:00", End: "12:00"}, {Start: "13:00", End: "17:30"}}
	f.bookings.periods = []model.BusyPeriod{{Start: monday.Add(9 * time.Hour), End: monday.Add(10 * time.Hour)}}

	tokyo := f.compute(t, monday, "Asia/Tokyo")
	la := f.compute(t, monday, "America/Los_Angeles")

	require.Equal(t, instants(tokyo), instants(la))
	for i := range tokyo {
		assert.Equal(t, tokyo[i].Available, la[i].Available)
		assert.NotEqual(t, tokyo[i].DisplayTime, la[i].DisplayTime)
	}
}

func TestCompute_InstantsStrictlyIncreaseAcrossBlocks(t *testing.T) {
	f := newFixture()
	f.meetingType.Duration = 15
	f.rules.rules.WeeklyHours["monday"] = []schedule.Block{{Start: "14:00", End: "15:00"}, {Start: "09:00", End: "10:00"}}

	slots := f.compute(t, monday, "")
	require.Len(t, slots, 8)
	for i := 1; i < len(slots); i++ {
		assert.Less(t, slots[i-1].UTCInstant, slots[i].UTCInstant)
	}
	assert.Equal(t, "2026-06-01T09:00:00.000Z", slots[0].UTCInstant)
	assert.Equal(t, "2026-06-01T09:15:00.000Z", slots[1].UTCInstant)
}

func TestCompute_UnavailableDaySkipsBusyFetch(t *testing.T) {
	f := newFixture()
	f.rules.rules.WeeklyHours["tuesday"] = nil

	slots := f.compute(t, monday.Add(24*time.Hour), "")
	assert.Empty(t, slots)
	assert.Zero(t, f.calendar.calls.Load())
	assert.Zero(t, f.bookings.calls.Load())

	slots = f.compute(t, monday.Add(2*24*time.Hour), "")
	assert.Empty(t, slots)
}

func TestCompute_MaxAdvance(t *testing.T) {
	f := newFixture()
	f.rules.rules.MaxAdvance = 5

	assert.Empty(t, f.compute(t, monday, ""))
	assert.Zero(t, f.bookings.calls.Load())

	f.rules.rules.MaxAdvance = 7
	assert.Len(t, f.compute(t, monday, ""), 6)
}

func TestCompute_ZeroMaxAdvanceOffersTodayOnly(t *testing.T) {
	f := newFixture()
	f.rules.rules.MaxAdvance = 0

	f.now = monday.Add(-24 * time.Hour)
	assert.Empty(t, f.compute(t, monday, ""))
	assert.Zero(t, f.bookings.calls.Load())

	f.now = monday
	assert.Len(t, f.compute(t, monday, ""), 6)
}

func TestCompute_MinNoticeExcludesSoonSlots(t *testing.T) {
	f := newFixture()
	f.now = monday.Add(8 * time.Hour)
	f.rules.rules.MinNotice = 120

	slots := f.compute(t, monday, "")
	assert.Equal(t, []string{
		"2026-06-01T10:00:00.000Z",
		"2026-06-01T10:30:00.000Z",
		"2026-06-01T11:00:00.000Z",
		"2026-06-01T11:30:00.000Z",
	}, instants(slots))

	f.now = monday.Add(13 * time.Hour)
	assert.Empty(t, f.compute(t, monday, ""))
}

func TestCompute_MeetingTypeNotOffered(t *testing.T) {
	f := newFixture()
	e := f.engine()

	slots, err := e.ComputeAvailability(context.Background(), hostID, "missing", monday, "")
	require.NoError(t, err)
	assert.NotNil(t, slots)
	assert.Empty(t, slots)

	slots, err = e.ComputeAvailability(context.Background(), "someone-else", typeID, monday, "")
	require.NoError(t, err)
	assert.Empty(t, slots)

	f.meetingType.Active = false
	assert.Empty(t, f.compute(t, monday, ""))
}

func TestCompute_CalendarFailureFallsBackToBookings(t *testing.T) {
	f := newFixture()
	f.calendar.err = errors.New("google: 401 unauthorized")
	f.bookings.periods = []model.BusyPeriod{{Start: monday.Add(11 * time.Hour), End: monday.Add(11*time.Hour + 30*time.Minute)}}

	slots := f.compute(t, monday, "")
	require.Len(t, slots, 6)
	assert.False(t, slots[4].Available)
	assert.True(t, slots[0].Available)
	assert.Contains(t, f.logs.String(), "external calendar unavailable")
}

func TestCompute_CalendarEventsBlockSlots(t *testing.T) {
	f := newFixture()
	f.calendar.periods = []model.BusyPeriod{{Start: monday.Add(9 * time.Hour), End: monday.Add(9*time.Hour + 45*time.Minute)}}

	slots := f.compute(t, monday, "")
	assert.False(t, slots[0].Available)
	assert.False(t, slots[1].Available)
	assert.True(t, slots[2].Available)
}

func TestCompute_CoreStoreFailuresAreReturned(t *testing.T) {
	f := newFixture()
	f.bookings.err = errors.New("connection refused")
	_, err := f.engine().ComputeAvailability(context.Background(), hostID, typeID, monday, "")
	require.Error(t, err)

	f = newFixture()
	f.rules.err = errors.New("connection refused")
	_, err = f.engine().ComputeAvailability(context.Background(), hostID, typeID, monday, "")
	require.Error(t, err)
}

func TestCompute_InvalidViewerTimezoneUsesHostZone(t *testing.T) {
	f := newFixture()
	f.rules.rules.Timezone = "Asia/Kolkata"

	slots := f.compute(t, monday, "Not/AZone")
	require.NotEmpty(t, slots)
	assert.Equal(t, "9:00 AM", slots[0].DisplayTime)
	assert.Equal(t, "2026-06-01T03:30:00.000Z", slots[0].UTCInstant)
}

func TestCompute_DefaultRulesWhenHostHasNone(t *testing.T) {
	f := newFixture()
	f.rules = memRules{}

	slots := f.compute(t, monday, "")
	require.Len(t, slots, 16)
	assert.Equal(t, "2026-06-01T09:00:00.000Z", slots[0].UTCInstant)
	assert.Equal(t, "2026-06-01T16:30:00.000Z", slots[15].UTCInstant)

	assert.Empty(t, f.compute(t, monday.Add(5*24*time.Hour), ""))
}

func TestCompute_UnknownHostTimezoneUsesUTC(t *testing.T) {
	f := newFixture()
	f.rules.rules.Timezone = "Atlantis/Capital"

	slots := f.compute(t, monday, "")
	require.NotEmpty(t, slots)
	assert.Equal(t, "2026-06-01T09:00:00.000Z", slots[0].UTCInstant)
	assert.Contains(t, f.logs.String(), "host timezone invalid")
}

func TestCompute_IgnoresTimeOfDayOnDate(t *testing.T) {
	f := newFixture()
	loc, err := time.LoadLocation("Pacific/Honolulu")
	require.NoError(t, err)

	slots := f.compute(t, time.Date(2026, time.June, 1, 23, 45, 0, 0, loc), "")
	assert.Equal(t, "2026-06-01T09:00:00.000Z", slots[0].UTCInstant)
}

func TestCompute_LargerBuffersOnlyRemoveAvailability(t *testing.T) {
	f := newFixture()
	f.rules.rules.WeeklyHours["monday"] = []schedule.Block{{Start: "08:00", End: "18:00"}}
	f.bookings.periods = []model.BusyPeriod{
		{Start: monday.Add(10*time.Hour + 10*time.Minute), End: monday.Add(10*time.Hour + 50*time.Minute)},
		{Start: monday.Add(15 * time.Hour), End: monday.Add(16 * time.Hour)},
	}

	prev := f.compute(t, monday, "")
	for _, buf := range []int{5, 10, 20, 45, 90} {
		f.meetingType.BufferBefore = buf
		f.meetingType.BufferAfter = buf / 3
		cur := f.compute(t, monday, "")
		require.Equal(t, instants(prev), instants(cur))
		for i := range cur {
			if cur[i].Available {
				assert.True(t, prev[i].Available, "buffer %d freed %s", buf, cur[i].UTCInstant)
			}
		}
		prev = cur
	}
}
