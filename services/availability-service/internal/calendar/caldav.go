package calendar

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/emersion/go-ical"
	"github.com/emersion/go-webdav"
	"github.com/emersion/go-webdav/caldav"
	"github.com/md-rashed-zaman/meetbook/services/availability-service/internal/model"
)

// CalDAVReader reads VEVENTs from a CalDAV collection (iCloud, Fastmail, Nextcloud and the like).
type CalDAVReader struct {
	timeout time.Duration
	logger  *slog.Logger
}

func NewCalDAVReader(timeout time.Duration, logger *slog.Logger) *CalDAVReader {
	if logger == nil {
		logger = slog.Default()
	}
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &CalDAVReader{timeout: timeout, logger: logger}
}

func (c *CalDAVReader) ListBusy(ctx context.Context, conn model.CalendarConnection, start, end time.Time) ([]model.BusyPeriod, error) {
	httpClient := &http.Client{Timeout: c.timeout}
	client, err := caldav.NewClient(webdav.HTTPClientWithBasicAuth(httpClient, conn.Username, conn.Password), conn.Endpoint)
	if err != nil {
		return nil, fmt.Errorf("create caldav client: %w", err)
	}

	calPath, err := c.calendarPath(ctx, client, conn)
	if err != nil {
		return nil, err
	}

	query := &caldav.CalendarQuery{
		CompRequest: caldav.CalendarCompRequest{
			Name:  ical.CompCalendar,
			Props: []string{ical.PropVersion},
			Comps: []caldav.CalendarCompRequest{
				{
					Name:  ical.CompEvent,
					Props: []string{ical.PropUID, ical.PropDateTimeStart, ical.PropDateTimeEnd, ical.PropDuration, ical.PropStatus, ical.PropTransparency},
				},
			},
		},
		CompFilter: caldav.CompFilter{
			Name: ical.CompCalendar,
			Comps: []caldav.CompFilter{
				{
					Name:  ical.CompEvent,
					Start: start,
					End:   end,
				},
			},
		},
	}

	objects, err := client.QueryCalendar(ctx, calPath, query)
	if err != nil {
		return nil, fmt.Errorf("query calendar: %w", err)
	}
	return caldavBusy(objects, start, end), nil
}

func (c *CalDAVReader) calendarPath(ctx context.Context, client *caldav.Client, conn model.CalendarConnection) (string, error) {
	if conn.CalendarID != "" {
		return conn.CalendarID, nil
	}

	principal, err := client.FindCurrentUserPrincipal(ctx)
	if err != nil {
		return "", fmt.Errorf("find principal: %w", err)
	}
	homeSet, err := client.FindCalendarHomeSet(ctx, principal)
	if err != nil {
		return "", fmt.Errorf("find calendar home set: %w", err)
	}
	cals, err := client.FindCalendars(ctx, homeSet)
	if err != nil {
		return "", fmt.Errorf("find calendars: %w", err)
	}
	if len(cals) == 0 {
		return "", fmt.Errorf("no calendars found")
	}
	return cals[0].Path, nil
}

func caldavBusy(objects []caldav.CalendarObject, start, end time.Time) []model.BusyPeriod {
	var out []model.BusyPeriod
	for _, obj := range objects {
		if obj.Data == nil {
			continue
		}
		for _, child := range obj.Data.Children {
			if child.Name != ical.CompEvent {
				continue
			}
			p, ok := eventBusy(child)
			if !ok {
				continue
			}
			if p, ok = clip(p, start, end); ok {
				out = append(out, p)
			}
		}
	}
	return out
}

// eventBusy reads one VEVENT. Transparent and cancelled events do not block time.
func eventBusy(comp *ical.Component) (model.BusyPeriod, bool) {
	if prop := comp.Props.Get(ical.PropTransparency); prop != nil && strings.EqualFold(prop.Value, "TRANSPARENT") {
		return model.BusyPeriod{}, false
	}
	if prop := comp.Props.Get(ical.PropStatus); prop != nil && strings.EqualFold(prop.Value, "CANCELLED") {
		return model.BusyPeriod{}, false
	}

	event := &ical.Event{Component: comp}
	s, err := event.DateTimeStart(time.UTC)
	if err != nil || s.IsZero() {
		return model.BusyPeriod{}, false
	}
	e, err := event.DateTimeEnd(time.UTC)
	if err != nil {
		return model.BusyPeriod{}, false
	}
	if e.IsZero() {
		// A date-only DTSTART with no end covers that whole day.
		if prop := comp.Props.Get(ical.PropDateTimeStart); prop != nil && prop.ValueType() == ical.ValueDate {
			e = s.AddDate(0, 0, 1)
		}
	}
	if !e.After(s) {
		return model.BusyPeriod{}, false
	}
	return model.BusyPeriod{Start: s, End: e, Source: model.SourceCalendar}, true
}
