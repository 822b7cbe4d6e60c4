package storage

import (
	"context"
	"time"

	"github.com/md-rashed-zaman/meetbook/libs/db"
	"github.com/md-rashed-zaman/meetbook/services/availability-service/internal/model"
)

type CalendarConnectionRepository struct {
	pool *db.Pool
}

func NewCalendarConnectionRepository(pool *db.Pool) *CalendarConnectionRepository {
	return &CalendarConnectionRepository{pool: pool}
}

func (r *CalendarConnectionRepository) Get(ctx context.Context, hostID string) (model.CalendarConnection, error) {
	var (
		c      model.CalendarConnection
		expiry *time.Time
	)
	err := r.pool.QueryRow(ctx, `
		SELECT host_id::text, provider, calendar_id,
			COALESCE(access_token, ''), COALESCE(refresh_token, ''), token_expiry,
			COALESCE(endpoint, ''), COALESCE(username, ''), COALESCE(password, '')
		FROM host_calendar_connections
		WHERE host_id = $1
	`, hostID).Scan(&c.HostID, &c.Provider, &c.CalendarID,
		&c.AccessToken, &c.RefreshToken, &expiry,
		&c.Endpoint, &c.Username, &c.Password)
	if err != nil {
		if IsInvalidID(err) {
			return model.CalendarConnection{}, ErrNotFound
		}
		return model.CalendarConnection{}, notFound(err)
	}
	if expiry != nil {
		c.TokenExpiry = *expiry
	}
	return c, nil
}

// SaveToken persists a refreshed OAuth access token.
func (r *CalendarConnectionRepository) SaveToken(ctx context.Context, hostID, accessToken, refreshToken string, expiry time.Time) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE host_calendar_connections
		SET access_token = $2,
			refresh_token = COALESCE(NULLIF($3, ''), refresh_token),
			token_expiry = $4,
			updated_at = now()
		WHERE host_id = $1
	`, hostID, accessToken, refreshToken, expiry)
	return err
}
