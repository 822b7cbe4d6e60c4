package calendar

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/md-rashed-zaman/meetbook/services/availability-service/internal/model"
	"golang.org/x/oauth2"
)

const (
	DefaultGoogleBaseURL  = "https://www.googleapis.com/calendar/v3"
	DefaultGoogleTokenURL = "https://oauth2.googleapis.com/token"
	googleAuthURL         = "https://accounts.google.com/o/oauth2/auth"
)

// TokenStore persists access tokens refreshed while reading.
type TokenStore interface {
	SaveToken(ctx context.Context, hostID, accessToken, refreshToken string, expiry time.Time) error
}

type GoogleConfig struct {
	ClientID     string
	ClientSecret string
	TokenURL     string
	BaseURL      string
	Timeout      time.Duration
}

type GoogleReader struct {
	oauth   oauth2.Config
	baseURL string
	timeout time.Duration
	tokens  TokenStore
	logger  *slog.Logger
}

func NewGoogleReader(cfg GoogleConfig, tokens TokenStore, logger *slog.Logger) *GoogleReader {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.TokenURL == "" {
		cfg.TokenURL = DefaultGoogleTokenURL
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultGoogleBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	return &GoogleReader{
		oauth: oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			Endpoint: oauth2.Endpoint{
				AuthURL:  googleAuthURL,
				TokenURL: cfg.TokenURL,
			},
		},
		baseURL: cfg.BaseURL,
		timeout: cfg.Timeout,
		tokens:  tokens,
		logger:  logger,
	}
}

type googleEventList struct {
	TimeZone      string        `json:"timeZone"`
	NextPageToken string        `json:"nextPageToken"`
	Items         []googleEvent `json:"items"`
}

type googleEvent struct {
	ID           string     `json:"id"`
	Status       string     `json:"status"`
	Transparency string     `json:"transparency"`
	Start        googleTime `json:"start"`
	End          googleTime `json:"end"`
}

type googleTime struct {
	DateTime string `json:"dateTime"`
	Date     string `json:"date"`
	TimeZone string `json:"timeZone"`
}

func (g *GoogleReader) ListBusy(ctx context.Context, conn model.CalendarConnection, start, end time.Time) ([]model.BusyPeriod, error) {
	stored := &oauth2.Token{
		AccessToken:  conn.AccessToken,
		RefreshToken: conn.RefreshToken,
		TokenType:    "Bearer",
		Expiry:       conn.TokenExpiry,
	}
	source := g.oauth.TokenSource(ctx, stored)
	client := &http.Client{
		Timeout:   g.timeout,
		Transport: &oauth2.Transport{Source: source, Base: http.DefaultTransport},
	}

	calendarID := conn.CalendarID
	if calendarID == "" {
		calendarID = "primary"
	}

	var out []model.BusyPeriod
	pageToken := ""
	for {
		page, err := g.listPage(ctx, client, calendarID, start, end, pageToken)
		if err != nil {
			return nil, err
		}
		out = append(out, googleBusy(page, start, end)...)
		if page.NextPageToken == "" {
			break
		}
		pageToken = page.NextPageToken
	}

	g.persistRefreshed(ctx, conn.HostID, stored, source)
	return out, nil
}

func (g *GoogleReader) listPage(ctx context.Context, client *http.Client, calendarID string, start, end time.Time, pageToken string) (googleEventList, error) {
	query := url.Values{}
	query.Set("timeMin", start.UTC().Format(time.RFC3339))
	query.Set("timeMax", end.UTC().Format(time.RFC3339))
	query.Set("singleEvents", "true")
	query.Set("orderBy", "startTime")
	query.Set("maxResults", "250")
	if pageToken != "" {
		query.Set("pageToken", pageToken)
	}
	listURL := fmt.Sprintf("%s/calendars/%s/events?%s", g.baseURL, url.PathEscape(calendarID), query.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, listURL, nil)
	if err != nil {
		return googleEventList{}, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return googleEventList{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return googleEventList{}, fmt.Errorf("list events failed: status=%d body=%s", resp.StatusCode, string(body))
	}

	var page googleEventList
	if err := json.NewDecoder(resp.Body).Decode(&page); err != nil {
		return googleEventList{}, fmt.Errorf("decode events: %w", err)
	}
	return page, nil
}

// googleBusy keeps events that block time. Cancelled and "free" events are skipped.
// All-day events are read in the calendar's own zone.
func googleBusy(page googleEventList, start, end time.Time) []model.BusyPeriod {
	calLoc := time.UTC
	if page.TimeZone != "" {
		if loc, err := time.LoadLocation(page.TimeZone); err == nil {
			calLoc = loc
		}
	}

	out := make([]model.BusyPeriod, 0, len(page.Items))
	for _, item := range page.Items {
		if item.Status == "cancelled" || item.Transparency == "transparent" {
			continue
		}
		s, ok := item.Start.instant(calLoc)
		if !ok {
			continue
		}
		e, ok := item.End.instant(calLoc)
		if !ok {
			continue
		}
		if p, ok := clip(model.BusyPeriod{Start: s, End: e, Source: model.SourceCalendar}, start, end); ok {
			out = append(out, p)
		}
	}
	return out
}

func (t googleTime) instant(calLoc *time.Location) (time.Time, bool) {
	if t.DateTime != "" {
		v, err := time.Parse(time.RFC3339, t.DateTime)
		return v, err == nil
	}
	if t.Date != "" {
		loc := calLoc
		if t.TimeZone != "" {
			if l, err := time.LoadLocation(t.TimeZone); err == nil {
				loc = l
			}
		}
		v, err := time.ParseInLocation(time.DateOnly, t.Date, loc)
		return v, err == nil
	}
	return time.Time{}, false
}

func (g *GoogleReader) persistRefreshed(ctx context.Context, hostID string, stored *oauth2.Token, source oauth2.TokenSource) {
	if g.tokens == nil {
		return
	}
	current, err := source.Token()
	if err != nil || current.AccessToken == stored.AccessToken {
		return
	}
	if err := g.tokens.SaveToken(ctx, hostID, current.AccessToken, current.RefreshToken, current.Expiry); err != nil {
		g.logger.Warn("failed to persist refreshed calendar token", "host_id", hostID, "err", err)
	}
}
