package model

import "time"

type MeetingType struct {
	ID     string
	HostID string
	Name   string
	// Duration, BufferBefore and BufferAfter are minutes.
	Duration     int
	BufferBefore int
	BufferAfter  int
	Active       bool
}

func (m MeetingType) DurationLength() time.Duration {
	return time.Duration(m.Duration) * time.Minute
}

func (m MeetingType) BeforeBuffer() time.Duration {
	if m.BufferBefore < 0 {
		return 0
	}
	return time.Duration(m.BufferBefore) * time.Minute
}

func (m MeetingType) AfterBuffer() time.Duration {
	if m.BufferAfter < 0 {
		return 0
	}
	return time.Duration(m.BufferAfter) * time.Minute
}
