package httpx

import (
	"context"
	"encoding/json"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"
)

// Decision is the outcome of one limiter check.
type Decision struct {
	Allowed   bool
	Limit     int
	Remaining int
	// ResetIn is how long until the current window closes.
	ResetIn time.Duration
}

// Limiter counts requests per key in fixed windows.
type Limiter interface {
	Allow(ctx context.Context, key string) (Decision, error)
}

// RateLimitOptions configures RateLimit.
type RateLimitOptions struct {
	// Scope namespaces keys so separate routes keep separate budgets.
	Scope string
	// FailOpen lets requests through when the limiter itself errors.
	FailOpen bool
	Logger   *slog.Logger
}

// RateLimit rejects callers that exhaust their window with 429 and a Retry-After hint.
func RateLimit(l Limiter, opts RateLimitOptions) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := ClientIP(r)
			if opts.Scope != "" {
				key = opts.Scope + ":" + key
			}
			d, err := l.Allow(r.Context(), key)
			if err != nil {
				if opts.Logger != nil {
					opts.Logger.Warn("rate limiter error", "err", err, "fail_open", opts.FailOpen)
				}
				if opts.FailOpen {
					next.ServeHTTP(w, r)
					return
				}
				writeJSONError(w, http.StatusServiceUnavailable, "rate limiter unavailable")
				return
			}

			h := w.Header()
			h.Set("X-RateLimit-Limit", strconv.Itoa(d.Limit))
			h.Set("X-RateLimit-Remaining", strconv.Itoa(max(d.Remaining, 0)))
			if !d.Allowed {
				secs := int((d.ResetIn + time.Second - 1) / time.Second)
				h.Set("Retry-After", strconv.Itoa(max(secs, 1)))
				writeJSONError(w, http.StatusTooManyRequests, "rate limit exceeded")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// MemoryLimiter is a per-process fixed-window limiter.
type MemoryLimiter struct {
	limit  int
	window time.Duration
	now    func() time.Time

	mu        sync.Mutex
	windows   map[string]*window
	lastSweep time.Time
}

type window struct {
	count int
	reset time.Time
}

func NewMemoryLimiter(limit int, every time.Duration) *MemoryLimiter {
	if limit <= 0 {
		limit = 60
	}
	if every <= 0 {
		every = time.Minute
	}
	return &MemoryLimiter{
		limit:   limit,
		window:  every,
		now:     time.Now,
		windows: map[string]*window{},
	}
}

func (m *MemoryLimiter) Allow(_ context.Context, key string) (Decision, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	m.sweep(now)

	w := m.windows[key]
	if w == nil || !now.Before(w.reset) {
		w = &window{reset: now.Add(m.window)}
		m.windows[key] = w
	}
	w.count++
	return Decision{
		Allowed:   w.count <= m.limit,
		Limit:     m.limit,
		Remaining: m.limit - w.count,
		ResetIn:   w.reset.Sub(now),
	}, nil
}

// sweep drops closed windows at most once per window length.
func (m *MemoryLimiter) sweep(now time.Time) {
	if now.Sub(m.lastSweep) < m.window {
		return
	}
	m.lastSweep = now
	for k, w := range m.windows {
		if !now.Before(w.reset) {
			delete(m.windows, k)
		}
	}
}

// ClientIP prefers the first X-Forwarded-For hop and falls back to the peer address.
func ClientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err == nil {
		return host
	}
	return r.RemoteAddr
}

func writeJSONError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
