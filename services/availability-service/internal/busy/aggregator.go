// Package busy collects the periods during which a host is already committed.
package busy

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/md-rashed-zaman/meetbook/services/availability-service/internal/model"
	"github.com/md-rashed-zaman/meetbook/services/availability-service/internal/schedule"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
)

// CalendarReader lists busy periods from the host's external calendar.
type CalendarReader interface {
	ListBusy(ctx context.Context, hostID string, start, end time.Time) ([]model.BusyPeriod, error)
}

// BookingLister lists the platform's confirmed bookings for a host.
type BookingLister interface {
	ListConfirmed(ctx context.Context, hostID string, start, end time.Time) ([]model.BusyPeriod, error)
}

type Aggregator struct {
	calendar CalendarReader
	bookings BookingLister
	logger   *slog.Logger
}

func NewAggregator(calendar CalendarReader, bookings BookingLister, logger *slog.Logger) *Aggregator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Aggregator{calendar: calendar, bookings: bookings, logger: logger}
}

// Window is the span fetched for day: host midnight plus 24 hours, stretched to the next
// host midnight when the day is longer than that.
func Window(day schedule.Day) (time.Time, time.Time) {
	start := day.Midnight
	end := start.Add(24 * time.Hour)
	if day.NextMidnight.After(end) {
		end = day.NextMidnight
	}
	return start, end
}

// Collect reads both sources concurrently and returns their union, unsorted and unmerged.
// A calendar failure is logged and treated as no calendar events; a booking store failure is returned.
func (a *Aggregator) Collect(ctx context.Context, hostID string, start, end time.Time) ([]model.BusyPeriod, error) {
	ctx, span := otel.Tracer("availability").Start(ctx, "availability.busy",
		trace.WithAttributes(
			attribute.String("host.id", hostID),
			attribute.String("window.start", start.UTC().Format(time.RFC3339)),
			attribute.String("window.end", end.UTC().Format(time.RFC3339)),
		),
	)
	defer span.End()

	var calendarBusy, bookingBusy []model.BusyPeriod
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		periods, err := a.listCalendar(gctx, hostID, start, end)
		calendarBusy = a.busyOrEmpty(hostID, periods, err)
		return nil
	})
	g.Go(func() error {
		if a.bookings == nil {
			return nil
		}
		periods, err := a.bookings.ListConfirmed(gctx, hostID, start, end)
		if err != nil {
			return fmt.Errorf("list confirmed bookings: %w", err)
		}
		bookingBusy = stamp(periods, model.SourceBooking)
		return nil
	})
	if err := g.Wait(); err != nil {
		span.RecordError(err)
		return nil, err
	}

	out := make([]model.BusyPeriod, 0, len(calendarBusy)+len(bookingBusy))
	out = append(out, calendarBusy...)
	out = append(out, bookingBusy...)
	span.SetAttributes(attribute.Int("busy.count", len(out)))
	return out, nil
}

func (a *Aggregator) listCalendar(ctx context.Context, hostID string, start, end time.Time) ([]model.BusyPeriod, error) {
	if a.calendar == nil {
		return nil, nil
	}
	return a.calendar.ListBusy(ctx, hostID, start, end)
}

// busyOrEmpty maps an external calendar result to the periods used for conflict checks.
// Any error becomes an empty list.
func (a *Aggregator) busyOrEmpty(hostID string, periods []model.BusyPeriod, err error) []model.BusyPeriod {
	if err != nil {
		a.logger.Warn("external calendar unavailable; continuing without it", "host_id", hostID, "err", err)
		return []model.BusyPeriod{}
	}
	return stamp(periods, model.SourceCalendar)
}

func stamp(periods []model.BusyPeriod, source string) []model.BusyPeriod {
	out := make([]model.BusyPeriod, 0, len(periods))
	for _, p := range periods {
		if !p.End.After(p.Start) {
			continue
		}
		p.Source = source
		out = append(out, p)
	}
	return out
}
