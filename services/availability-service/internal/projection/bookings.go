// Package projection keeps the local bookings table in step with booking events.
package projection

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	otelx "github.com/md-rashed-zaman/meetbook/libs/otel"
	"github.com/md-rashed-zaman/meetbook/services/availability-service/internal/model"
	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel/trace"
)

type BookingStore interface {
	Upsert(ctx context.Context, b model.Booking) (bool, error)
}

// BookingEvent is the payload of booking.confirmed.v1 and booking.cancelled.v1.
type BookingEvent struct {
	BookingID     string `json:"booking_id"`
	HostID        string `json:"host_id"`
	MeetingTypeID string `json:"meeting_type_id"`
	StartTime     string `json:"start_time"`
	EndTime       string `json:"end_time"`
	OccurredAt    string `json:"occurred_at"`
	Traceparent   string `json:"traceparent,omitempty"`
	Tracestate    string `json:"tracestate,omitempty"`
}

type Handler struct {
	store  BookingStore
	logger *slog.Logger
}

func NewHandler(store BookingStore, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{store: store, logger: logger}
}

// Confirmed handles booking.confirmed.v1.
func (h *Handler) Confirmed(ctx context.Context, msg kafka.Message) error {
	return h.apply(ctx, msg, model.BookingStatusConfirmed)
}

// Cancelled handles booking.cancelled.v1.
func (h *Handler) Cancelled(ctx context.Context, msg kafka.Message) error {
	return h.apply(ctx, msg, model.BookingStatusCancelled)
}

// apply writes the event. Malformed payloads are logged and dropped; store failures are
// returned and the consumer retries the message before committing its offset.
func (h *Handler) apply(ctx context.Context, msg kafka.Message, status string) error {
	var payload BookingEvent
	if err := json.Unmarshal(msg.Value, &payload); err != nil {
		h.logger.Error("invalid booking event", "topic", msg.Topic, "err", err)
		return nil
	}
	if !trace.SpanContextFromContext(ctx).IsValid() {
		ctx = otelx.ContextWithTraceContext(ctx, payload.Traceparent, payload.Tracestate)
	}

	booking, ok := h.parse(payload, status, msg.Time)
	if !ok {
		return nil
	}

	changed, err := h.store.Upsert(ctx, booking)
	if err != nil {
		return err
	}
	if !changed {
		h.logger.Info("stale booking event ignored", "booking_id", booking.ID, "status", status)
		return nil
	}
	h.logger.Info("booking projected", "booking_id", booking.ID, "host_id", booking.HostID, "status", status)
	return nil
}

func (h *Handler) parse(payload BookingEvent, status string, received time.Time) (model.Booking, bool) {
	payload.BookingID = strings.TrimSpace(payload.BookingID)
	payload.HostID = strings.TrimSpace(payload.HostID)
	payload.MeetingTypeID = strings.TrimSpace(payload.MeetingTypeID)

	if _, err := uuid.Parse(payload.BookingID); err != nil {
		h.logger.Error("invalid booking_id", "booking_id", payload.BookingID)
		return model.Booking{}, false
	}
	if _, err := uuid.Parse(payload.HostID); err != nil {
		h.logger.Error("invalid host_id", "booking_id", payload.BookingID, "host_id", payload.HostID)
		return model.Booking{}, false
	}
	if payload.MeetingTypeID != "" {
		if _, err := uuid.Parse(payload.MeetingTypeID); err != nil {
			h.logger.Error("invalid meeting_type_id", "booking_id", payload.BookingID)
			return model.Booking{}, false
		}
	}

	start, err := time.Parse(time.RFC3339, payload.StartTime)
	if err != nil {
		h.logger.Error("invalid start_time", "booking_id", payload.BookingID, "err", err)
		return model.Booking{}, false
	}
	end, err := time.Parse(time.RFC3339, payload.EndTime)
	if err != nil {
		h.logger.Error("invalid end_time", "booking_id", payload.BookingID, "err", err)
		return model.Booking{}, false
	}
	if !end.After(start) {
		h.logger.Error("booking ends before it starts", "booking_id", payload.BookingID)
		return model.Booking{}, false
	}

	occurred := received
	if payload.OccurredAt != "" {
		if t, err := time.Parse(time.RFC3339, payload.OccurredAt); err == nil {
			occurred = t
		}
	}
	if occurred.IsZero() {
		occurred = time.Now()
	}

	return model.Booking{
		ID:            payload.BookingID,
		HostID:        payload.HostID,
		MeetingTypeID: payload.MeetingTypeID,
		StartTime:     start.UTC(),
		EndTime:       end.UTC(),
		Status:        status,
		UpdatedAt:     occurred.UTC(),
	}, true
}
