package model

import "time"

const (
	ProviderGoogle = "google"
	ProviderCalDAV = "caldav"
)

// CalendarConnection links a host to the external calendar whose events block their time.
type CalendarConnection struct {
	HostID     string
	Provider   string
	CalendarID string

	// Google
	AccessToken  string
	RefreshToken string
	TokenExpiry  time.Time

	// CalDAV
	Endpoint string
	Username string
	Password string
}
