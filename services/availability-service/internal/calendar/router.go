package calendar

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/md-rashed-zaman/meetbook/services/availability-service/internal/model"
	"github.com/md-rashed-zaman/meetbook/services/availability-service/internal/storage"
)

type ConnectionStore interface {
	Get(ctx context.Context, hostID string) (model.CalendarConnection, error)
}

// Router dispatches a host's busy lookup to the reader for the provider they connected.
type Router struct {
	connections ConnectionStore
	readers     map[string]Reader
	timeout     time.Duration
	logger      *slog.Logger
}

func NewRouter(connections ConnectionStore, timeout time.Duration, logger *slog.Logger) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	return &Router{
		connections: connections,
		readers:     map[string]Reader{},
		timeout:     timeout,
		logger:      logger,
	}
}

// Register installs the reader used for provider.
func (r *Router) Register(provider string, reader Reader) {
	r.readers[provider] = reader
}

// ListBusy returns nothing for a host with no connected calendar.
func (r *Router) ListBusy(ctx context.Context, hostID string, start, end time.Time) ([]model.BusyPeriod, error) {
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	conn, err := r.connections.Get(ctx, hostID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("load calendar connection: %w", err)
	}

	reader, ok := r.readers[conn.Provider]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrProviderUnsupported, conn.Provider)
	}

	periods, err := reader.ListBusy(ctx, conn, start, end)
	if err != nil {
		return nil, fmt.Errorf("%s calendar: %w", conn.Provider, err)
	}
	r.logger.Debug("external calendar read", "host_id", hostID, "provider", conn.Provider, "busy", len(periods))
	return periods, nil
}
