package storage

import (
	"context"
	"time"

	"github.com/md-rashed-zaman/meetbook/libs/db"
	"github.com/md-rashed-zaman/meetbook/services/availability-service/internal/model"
)

// BookingRepository reads and maintains the local projection of bookings.
type BookingRepository struct {
	pool *db.Pool
}

func NewBookingRepository(pool *db.Pool) *BookingRepository {
	return &BookingRepository{pool: pool}
}

// ListConfirmed returns confirmed bookings overlapping [start, end). Cancelled bookings do not block.
func (r *BookingRepository) ListConfirmed(ctx context.Context, hostID string, start, end time.Time) ([]model.BusyPeriod, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT start_time, end_time
		FROM bookings
		WHERE host_id = $1
			AND status = 'confirmed'
			AND start_time < $3
			AND end_time > $2
		ORDER BY start_time ASC
	`, hostID, start, end)
	if err != nil {
		if IsInvalidID(err) {
			return nil, nil
		}
		return nil, err
	}
	defer rows.Close()

	var out []model.BusyPeriod
	for rows.Next() {
		var p model.BusyPeriod
		if err := rows.Scan(&p.Start, &p.End); err != nil {
			return nil, err
		}
		p.Source = model.SourceBooking
		out = append(out, p)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return out, nil
}

// Upsert stores b unless a newer version of the same booking is already present.
// It reports whether the row changed.
func (r *BookingRepository) Upsert(ctx context.Context, b model.Booking) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		INSERT INTO bookings (id, host_id, meeting_type_id, start_time, end_time, status, updated_at)
		VALUES ($1, $2, NULLIF($3, '')::uuid, $4, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE
		SET host_id = EXCLUDED.host_id,
			meeting_type_id = COALESCE(EXCLUDED.meeting_type_id, bookings.meeting_type_id),
			start_time = EXCLUDED.start_time,
			end_time = EXCLUDED.end_time,
			status = EXCLUDED.status,
			updated_at = EXCLUDED.updated_at
		WHERE bookings.updated_at <= EXCLUDED.updated_at
	`, b.ID, b.HostID, b.MeetingTypeID, b.StartTime, b.EndTime, b.Status, b.UpdatedAt)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}
