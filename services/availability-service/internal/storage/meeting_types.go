package storage

import (
	"context"

	"github.com/md-rashed-zaman/meetbook/libs/db"
	"github.com/md-rashed-zaman/meetbook/services/availability-service/internal/model"
)

type MeetingTypeRepository struct {
	pool *db.Pool
}

func NewMeetingTypeRepository(pool *db.Pool) *MeetingTypeRepository {
	return &MeetingTypeRepository{pool: pool}
}

func (r *MeetingTypeRepository) Get(ctx context.Context, id string) (model.MeetingType, error) {
	var mt model.MeetingType
	err := r.pool.QueryRow(ctx, `
		SELECT id::text, host_id::text, name, duration_minutes, buffer_before_minutes, buffer_after_minutes, is_active
		FROM meeting_types
		WHERE id = $1
	`, id).Scan(&mt.ID, &mt.HostID, &mt.Name, &mt.Duration, &mt.BufferBefore, &mt.BufferAfter, &mt.Active)
	if err != nil {
		if IsInvalidID(err) {
			return model.MeetingType{}, ErrNotFound
		}
		return model.MeetingType{}, notFound(err)
	}
	return mt, nil
}
