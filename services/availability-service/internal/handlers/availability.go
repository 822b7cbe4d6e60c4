package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/md-rashed-zaman/meetbook/services/availability-service/internal/model"
	"github.com/md-rashed-zaman/meetbook/services/availability-service/internal/tzconv"
)

type Computer interface {
	ComputeAvailability(ctx context.Context, hostID, meetingTypeID string, date time.Time, viewerTZ string) ([]model.TimeSlot, error)
}

type AvailabilityHandler struct {
	engine Computer
	logger *slog.Logger
}

func NewAvailabilityHandler(engine Computer, logger *slog.Logger) *AvailabilityHandler {
	return &AvailabilityHandler{engine: engine, logger: logger}
}

type availabilityResponse struct {
	HostID        string           `json:"host_id"`
	MeetingTypeID string           `json:"meeting_type_id"`
	Date          string           `json:"date"`
	Timezone      string           `json:"timezone,omitempty"`
	Slots         []model.TimeSlot `json:"slots"`
}

// Slots serves GET /api/v1/public/availability?host_id=&meeting_type_id=&date=YYYY-MM-DD&timezone=
func (h *AvailabilityHandler) Slots(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	q := r.URL.Query()
	hostID := strings.TrimSpace(q.Get("host_id"))
	meetingTypeID := strings.TrimSpace(q.Get("meeting_type_id"))
	dateStr := strings.TrimSpace(q.Get("date"))
	viewerTZ := strings.TrimSpace(q.Get("timezone"))
	if hostID == "" || meetingTypeID == "" || dateStr == "" {
		http.Error(w, "host_id, meeting_type_id, and date are required", http.StatusBadRequest)
		return
	}
	if _, err := uuid.Parse(hostID); err != nil {
		http.Error(w, "invalid host_id", http.StatusBadRequest)
		return
	}
	if _, err := uuid.Parse(meetingTypeID); err != nil {
		http.Error(w, "invalid meeting_type_id", http.StatusBadRequest)
		return
	}
	date, err := time.Parse(time.DateOnly, dateStr)
	if err != nil {
		http.Error(w, "invalid date (want YYYY-MM-DD)", http.StatusBadRequest)
		return
	}

	slots, err := h.engine.ComputeAvailability(r.Context(), hostID, meetingTypeID, date, viewerTZ)
	if err != nil {
		h.logger.Error("availability computation failed", "host_id", hostID, "meeting_type_id", meetingTypeID, "date", dateStr, "err", err)
		http.Error(w, "failed to compute availability", http.StatusInternalServerError)
		return
	}
	if slots == nil {
		slots = []model.TimeSlot{}
	}

	resp := availabilityResponse{
		HostID:        hostID,
		MeetingTypeID: meetingTypeID,
		Date:          dateStr,
		Slots:         slots,
	}
	// An unusable zone was ignored for the labels, so it is not echoed back.
	if tzconv.IsValidTimezone(viewerTZ) {
		resp.Timezone = viewerTZ
	}
	body, err := json.Marshal(resp)
	if err != nil {
		http.Error(w, "failed to build response", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}
