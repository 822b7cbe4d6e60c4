package model

import "time"

const (
	BookingStatusConfirmed = "confirmed"
	BookingStatusCancelled = "cancelled"
)

// Booking is the local projection of a booking owned by the booking write path.
type Booking struct {
	ID            string
	HostID        string
	MeetingTypeID string
	StartTime     time.Time
	EndTime       time.Time
	Status        string
	UpdatedAt     time.Time
}
