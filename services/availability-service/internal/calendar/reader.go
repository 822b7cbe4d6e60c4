// Package calendar reads busy time from a host's external calendar.
package calendar

import (
	"context"
	"errors"
	"time"

	"github.com/md-rashed-zaman/meetbook/services/availability-service/internal/model"
)

var ErrProviderUnsupported = errors.New("calendar provider unsupported")

// Reader lists the busy periods of one connected calendar in [start, end).
type Reader interface {
	ListBusy(ctx context.Context, conn model.CalendarConnection, start, end time.Time) ([]model.BusyPeriod, error)
}

// clip trims p to [start, end) and reports whether anything is left.
func clip(p model.BusyPeriod, start, end time.Time) (model.BusyPeriod, bool) {
	if p.Start.Before(start) {
		p.Start = start
	}
	if p.End.After(end) {
		p.End = end
	}
	return p, p.End.After(p.Start)
}
