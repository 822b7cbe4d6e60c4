package calendar

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/md-rashed-zaman/meetbook/services/availability-service/internal/model"
	"github.com/sony/gobreaker/v2"
)

type BreakerConfig struct {
	// Failures is the number of consecutive failures that opens the circuit.
	Failures uint32
	// Cooldown is how long the circuit stays open before a trial request.
	Cooldown time.Duration
}

// BreakerReader stops calling a failing calendar for a while so that slot requests do not
// each wait out its timeout. Circuits are kept per host: one host's revoked token or dead
// server never cuts off another host's calendar.
type BreakerReader struct {
	name     string
	next     Reader
	settings gobreaker.Settings

	mu       sync.Mutex
	breakers map[string]*gobreaker.CircuitBreaker[[]model.BusyPeriod]
}

func NewBreakerReader(name string, next Reader, cfg BreakerConfig, logger *slog.Logger) *BreakerReader {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Failures == 0 {
		cfg.Failures = 5
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = 30 * time.Second
	}
	settings := gobreaker.Settings{
		MaxRequests: 1,
		Timeout:     cfg.Cooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.Failures
		},
		IsExcluded: func(err error) bool {
			// The caller giving up says nothing about the calendar.
			return errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("calendar circuit breaker state changed",
				"breaker", name,
				"from", from.String(),
				"to", to.String(),
			)
		},
	}
	return &BreakerReader{
		name:     name,
		next:     next,
		settings: settings,
		breakers: map[string]*gobreaker.CircuitBreaker[[]model.BusyPeriod]{},
	}
}

func (b *BreakerReader) ListBusy(ctx context.Context, conn model.CalendarConnection, start, end time.Time) ([]model.BusyPeriod, error) {
	return b.breaker(conn.HostID).Execute(func() ([]model.BusyPeriod, error) {
		return b.next.ListBusy(ctx, conn, start, end)
	})
}

// State reports the circuit of one host. Hosts never seen are closed.
func (b *BreakerReader) State(hostID string) gobreaker.State {
	b.mu.Lock()
	cb, ok := b.breakers[hostID]
	b.mu.Unlock()
	if !ok {
		return gobreaker.StateClosed
	}
	return cb.State()
}

func (b *BreakerReader) breaker(hostID string) *gobreaker.CircuitBreaker[[]model.BusyPeriod] {
	b.mu.Lock()
	defer b.mu.Unlock()
	cb, ok := b.breakers[hostID]
	if !ok {
		settings := b.settings
		settings.Name = b.name + ":" + hostID
		cb = gobreaker.NewCircuitBreaker[[]model.BusyPeriod](settings)
		b.breakers[hostID] = cb
	}
	return cb
}
