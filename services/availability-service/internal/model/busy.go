package model

import "time"

const (
	SourceCalendar = "calendar"
	SourceBooking  = "booking"
)

// BusyPeriod is a half-open interval [Start, End) during which the host is committed.
type BusyPeriod struct {
	Start  time.Time
	End    time.Time
	Source string
}

// TimeSlot is one offered start time. UTCInstant is the slot's identity; DisplayTime is a label.
type TimeSlot struct {
	DisplayTime string `json:"display_time"`
	Available   bool   `json:"available"`
	UTCInstant  string `json:"utc_instant"`
}
