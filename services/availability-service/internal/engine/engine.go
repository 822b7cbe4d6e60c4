// Package engine computes the bookable slots a host offers for one meeting type on one day.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/md-rashed-zaman/meetbook/services/availability-service/internal/availability"
	"github.com/md-rashed-zaman/meetbook/services/availability-service/internal/busy"
	"github.com/md-rashed-zaman/meetbook/services/availability-service/internal/model"
	"github.com/md-rashed-zaman/meetbook/services/availability-service/internal/schedule"
	"github.com/md-rashed-zaman/meetbook/services/availability-service/internal/storage"
	"github.com/md-rashed-zaman/meetbook/services/availability-service/internal/tzconv"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

type MeetingTypeStore interface {
	Get(ctx context.Context, id string) (model.MeetingType, error)
}

type RulesStore interface {
	Get(ctx context.Context, hostID string) (schedule.Rules, bool, error)
}

// BusySource returns every busy period for a host in [start, end).
type BusySource interface {
	Collect(ctx context.Context, hostID string, start, end time.Time) ([]model.BusyPeriod, error)
}

type Engine struct {
	meetingTypes MeetingTypeStore
	rules        RulesStore
	busy         BusySource
	logger       *slog.Logger
	now          func() time.Time
}

type Option func(*Engine)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

func New(meetingTypes MeetingTypeStore, rules RulesStore, busySource BusySource, logger *slog.Logger, opts ...Option) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	e := &Engine{
		meetingTypes: meetingTypes,
		rules:        rules,
		busy:         busySource,
		logger:       logger,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// ComputeAvailability lists the slots hostID offers for meetingTypeID on date. Only date's
// year, month and day are used. Slots are labelled in viewerTZ when it is a valid zone and in
// the host's zone otherwise.
//
// An unknown meeting type yields an empty list. An error is returned only when a core store
// (meeting types, rules, bookings) cannot be read.
func (e *Engine) ComputeAvailability(ctx context.Context, hostID, meetingTypeID string, date time.Time, viewerTZ string) ([]model.TimeSlot, error) {
	ctx, span := otel.Tracer("availability").Start(ctx, "availability.compute",
		trace.WithAttributes(
			attribute.String("host.id", hostID),
			attribute.String("meeting_type.id", meetingTypeID),
			attribute.String("date", date.Format(time.DateOnly)),
		),
	)
	defer span.End()

	slots, err := e.compute(ctx, hostID, meetingTypeID, date, viewerTZ)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	span.SetAttributes(attribute.Int("slots.count", len(slots)))
	return slots, nil
}

func (e *Engine) compute(ctx context.Context, hostID, meetingTypeID string, date time.Time, viewerTZ string) ([]model.TimeSlot, error) {
	none := []model.TimeSlot{}

	mt, err := e.meetingTypes.Get(ctx, meetingTypeID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return none, nil
		}
		return nil, fmt.Errorf("get meeting type: %w", err)
	}
	if !mt.Active || mt.HostID != hostID || mt.Duration <= 0 {
		return none, nil
	}

	rules, err := e.hostRules(ctx, hostID)
	if err != nil {
		return nil, err
	}

	displayTZ := rules.Timezone
	if tzconv.IsValidTimezone(viewerTZ) {
		displayTZ = viewerTZ
	}

	day, err := schedule.Resolve(rules, date)
	if err != nil {
		return nil, fmt.Errorf("resolve schedule: %w", err)
	}

	policy := availability.Policy{
		Now:          e.now(),
		MinNotice:    time.Duration(rules.MinNotice) * time.Minute,
		MaxAdvance:   time.Duration(rules.MaxAdvance) * 24 * time.Hour,
		BufferBefore: mt.BeforeBuffer(),
		BufferAfter:  mt.AfterBuffer(),
	}
	if policy.BeyondMaxAdvance(day.Midnight) {
		return none, nil
	}
	if !day.Available() {
		return none, nil
	}

	start, end := busy.Window(day)
	periods, err := e.busy.Collect(ctx, hostID, start, end)
	if err != nil {
		return nil, err
	}

	duration := mt.DurationLength()
	step := availability.SlotInterval(duration)
	var candidates []availability.Interval
	for _, block := range day.Blocks {
		window, err := availability.BlockWindow(day, block, rules.Timezone)
		if err != nil {
			e.logger.Warn("skipping invalid working-hour block", "host_id", hostID, "weekday", day.Weekday, "start", block.Start, "end", block.End, "err", err)
			continue
		}
		candidates = append(candidates, availability.Candidates(window, duration, step)...)
	}

	return policy.Apply(candidates, periods, displayTZ), nil
}

// hostRules loads the host's rules, falling back to defaults. A stored zone the runtime does
// not know is replaced with UTC.
func (e *Engine) hostRules(ctx context.Context, hostID string) (schedule.Rules, error) {
	rules, found, err := e.rules.Get(ctx, hostID)
	if err != nil {
		return schedule.Rules{}, fmt.Errorf("get availability rules: %w", err)
	}
	if !found {
		rules = schedule.DefaultRules()
	}
	rules = rules.Normalize()
	if !tzconv.IsValidTimezone(rules.Timezone) {
		e.logger.Warn("host timezone invalid; using UTC", "host_id", hostID, "timezone", rules.Timezone)
		rules.Timezone = schedule.DefaultTimezone
	}
	return rules, nil
}
