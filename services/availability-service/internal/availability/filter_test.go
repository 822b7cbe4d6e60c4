package availability

import (
	"testing"
	"time"

	"github.com/md-rashed-zaman/meetbook/services/availability-service/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func morningCandidates() []Interval {
	return Candidates(Interval{Start: june1.Add(9 * time.Hour), End: june1.Add(12 * time.Hour)}, 30*time.Minute, 30*time.Minute)
}

func TestPolicy_ExcludesPastAndMinNotice(t *testing.T) {
	now := june1.Add(9*time.Hour + 10*time.Minute)
	p := Policy{Now: now, MinNotice: 60 * time.Minute, MaxAdvance: 60 * 24 * time.Hour}

	slots := p.Apply(morningCandidates(), nil, "UTC")

	// 09:00 is past; 09:30, 10:00 are inside the hour of notice (before 10:10).
	require.Len(t, slots, 3)
	assert.Equal(t, "2026-06-01T10:30:00.000Z", slots[0].UTCInstant)
}

func TestPolicy_MarksBookedSlotUnavailable(t *testing.T) {
	p := Policy{Now: june1.Add(-48 * time.Hour), MaxAdvance: 60 * 24 * time.Hour}
	busy := []model.BusyPeriod{{Start: june1.Add(9*time.Hour + 30*time.Minute), End: june1.Add(10 * time.Hour)}}

	slots := p.Apply(morningCandidates(), busy, "UTC")
	require.Len(t, slots, 6)
	for _, s := range slots {
		assert.Equal(t, s.UTCInstant != "2026-06-01T09:30:00.000Z", s.Available, s.UTCInstant)
	}
}

func TestPolicy_BuffersWidenConflicts(t *testing.T) {
	busy := []model.BusyPeriod{{Start: june1.Add(10 * time.Hour), End: june1.Add(10*time.Hour + 30*time.Minute)}}
	p := Policy{
		Now:          june1.Add(-48 * time.Hour),
		MaxAdvance:   60 * 24 * time.Hour,
		BufferBefore: 15 * time.Minute,
		BufferAfter:  15 * time.Minute,
	}
	slot := func(h, m int) Interval {
		start := june1.Add(time.Duration(h)*time.Hour + time.Duration(m)*time.Minute)
		return Interval{Start: start, End: start.Add(30 * time.Minute)}
	}

	assert.True(t, p.Conflicts(slot(9, 30), busy), "buffered 09:15-10:15")
	assert.True(t, p.Conflicts(slot(10, 0), busy), "buffered 09:45-10:45")
	assert.True(t, p.Conflicts(slot(10, 30), busy), "buffered 10:15-11:15")
	assert.False(t, p.Conflicts(slot(9, 0), busy), "buffered 08:45-09:45")
}

func TestPolicy_AdjacentBusyDoesNotConflict(t *testing.T) {
	busy := []model.BusyPeriod{{Start: june1.Add(10 * time.Hour), End: june1.Add(11 * time.Hour)}}
	p := Policy{Now: june1.Add(-48 * time.Hour)}

	before := Interval{Start: june1.Add(9*time.Hour + 30*time.Minute), End: june1.Add(10 * time.Hour)}
	after := Interval{Start: june1.Add(11 * time.Hour), End: june1.Add(11*time.Hour + 30*time.Minute)}
	assert.False(t, p.Conflicts(before, busy))
	assert.False(t, p.Conflicts(after, busy))
}

func TestPolicy_LargerBuffersNeverFreeSlots(t *testing.T) {
	busy := []model.BusyPeriod{
		{Start: june1.Add(9*time.Hour + 40*time.Minute), End: june1.Add(10 * time.Hour)},
		{Start: june1.Add(14 * time.Hour), End: june1.Add(15 * time.Hour)},
	}
	candidates := Candidates(Interval{Start: june1.Add(8 * time.Hour), End: june1.Add(17 * time.Hour)}, 30*time.Minute, 30*time.Minute)

	prev := Policy{Now: june1.Add(-48 * time.Hour)}.Apply(candidates, busy, "UTC")
	for buf := 5; buf <= 90; buf += 5 {
		p := Policy{Now: june1.Add(-48 * time.Hour), BufferBefore: time.Duration(buf) * time.Minute, BufferAfter: time.Duration(buf/2) * time.Minute}
		cur := p.Apply(candidates, busy, "UTC")
		require.Len(t, cur, len(prev), "buffers must not change the slot count")
		for i := range cur {
			assert.False(t, cur[i].Available && !prev[i].Available, "buffer %d freed slot %s", buf, cur[i].UTCInstant)
		}
		prev = cur
	}
}

func TestPolicy_BeyondMaxAdvance(t *testing.T) {
	now := june1.Add(12 * time.Hour)
	p := Policy{Now: now, MaxAdvance: 60 * 24 * time.Hour}

	assert.False(t, p.BeyondMaxAdvance(now.Add(59*24*time.Hour)))
	assert.False(t, p.BeyondMaxAdvance(now.Add(60*24*time.Hour)), "exactly max advance is offered")
	assert.True(t, p.BeyondMaxAdvance(now.Add(60*24*time.Hour+time.Minute)))
}

func TestPolicy_ApplyOrdersAndDedupes(t *testing.T) {
	p := Policy{Now: june1.Add(-48 * time.Hour)}
	afternoon := Candidates(Interval{Start: june1.Add(13 * time.Hour), End: june1.Add(14 * time.Hour)}, 30*time.Minute, 30*time.Minute)
	morning := Candidates(Interval{Start: june1.Add(9 * time.Hour), End: june1.Add(10 * time.Hour)}, 30*time.Minute, 30*time.Minute)
	overlap := Candidates(Interval{Start: june1.Add(9*time.Hour + 30*time.Minute), End: june1.Add(10*time.Hour + 30*time.Minute)}, 30*time.Minute, 30*time.Minute)

	var all []Interval
	all = append(all, afternoon...)
	all = append(all, morning...)
	all = append(all, overlap...)
	slots := p.Apply(all, nil, "America/New_York")

	got := make([]string, 0, len(slots))
	for _, s := range slots {
		got = append(got, s.UTCInstant)
	}
	assert.Equal(t, []string{
		"2026-06-01T09:00:00.000Z",
		"2026-06-01T09:30:00.000Z",
		"2026-06-01T10:00:00.000Z",
		"2026-06-01T13:00:00.000Z",
		"2026-06-01T13:30:00.000Z",
	}, got)
	assert.Equal(t, "5:00 AM", slots[0].DisplayTime)
}
