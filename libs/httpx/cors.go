package httpx

import (
	"net/http"
	"strconv"
	"strings"
	"time"
)

// CORSPolicy defines the CORS headers to emit for matching origins.
type CORSPolicy struct {
	AllowedOrigins   []string
	AllowedMethods   []string
	AllowedHeaders   []string
	ExposedHeaders   []string
	AllowCredentials bool
	MaxAge           time.Duration
}

type compiledCORS struct {
	origins     []string
	wildcard    bool
	credentials bool
	methods     string
	headers     string
	exposed     string
	maxAge      string
}

// WithCORS answers preflights and decorates responses for allowed origins.
// An empty AllowedOrigins disables it.
func WithCORS(policy CORSPolicy) Middleware {
	if len(policy.AllowedOrigins) == 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	c := compileCORS(policy)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			if origin == "" {
				next.ServeHTTP(w, r)
				return
			}
			h := w.Header()
			h.Add("Vary", "Origin")

			allowed, ok := c.allow(origin)
			if !ok {
				next.ServeHTTP(w, r)
				return
			}
			h.Set("Access-Control-Allow-Origin", allowed)
			if c.credentials {
				h.Set("Access-Control-Allow-Credentials", "true")
			}
			if c.exposed != "" {
				h.Set("Access-Control-Expose-Headers", c.exposed)
			}

			if r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != "" {
				h.Add("Vary", "Access-Control-Request-Method")
				h.Add("Vary", "Access-Control-Request-Headers")
				if c.methods != "" {
					h.Set("Access-Control-Allow-Methods", c.methods)
				}
				if c.headers != "" {
					h.Set("Access-Control-Allow-Headers", c.headers)
				}
				if c.maxAge != "" {
					h.Set("Access-Control-Max-Age", c.maxAge)
				}
				w.WriteHeader(http.StatusNoContent)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func compileCORS(p CORSPolicy) compiledCORS {
	c := compiledCORS{
		credentials: p.AllowCredentials,
		methods:     strings.Join(trimAll(p.AllowedMethods), ", "),
		headers:     strings.Join(trimAll(p.AllowedHeaders), ", "),
		exposed:     strings.Join(trimAll(p.ExposedHeaders), ", "),
	}
	for _, o := range trimAll(p.AllowedOrigins) {
		if o == "*" {
			c.wildcard = true
			continue
		}
		c.origins = append(c.origins, o)
	}
	if secs := int(p.MaxAge.Seconds()); secs > 0 {
		c.maxAge = strconv.Itoa(secs)
	}
	return c
}

// allow returns the Access-Control-Allow-Origin value for origin. A wildcard policy echoes the
// origin when credentials are allowed, since browsers reject "*" with credentials.
func (c compiledCORS) allow(origin string) (string, bool) {
	for _, o := range c.origins {
		if strings.EqualFold(o, origin) {
			return origin, true
		}
	}
	if c.wildcard {
		if c.credentials {
			return origin, true
		}
		return "*", true
	}
	return "", false
}

func trimAll(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
