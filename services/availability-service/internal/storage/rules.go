package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/md-rashed-zaman/meetbook/libs/db"
	"github.com/md-rashed-zaman/meetbook/services/availability-service/internal/schedule"
)

type RulesRepository struct {
	pool *db.Pool
}

func NewRulesRepository(pool *db.Pool) *RulesRepository {
	return &RulesRepository{pool: pool}
}

// Get returns the host's stored rules. found is false when the host never saved any.
func (r *RulesRepository) Get(ctx context.Context, hostID string) (schedule.Rules, bool, error) {
	var (
		rules schedule.Rules
		hours []byte
	)
	err := r.pool.QueryRow(ctx, `
		SELECT timezone, weekly_hours, min_notice_minutes, max_advance_days
		FROM availability_rules
		WHERE host_id = $1
	`, hostID).Scan(&rules.Timezone, &hours, &rules.MinNotice, &rules.MaxAdvance)
	if err != nil {
		if err = notFound(err); errors.Is(err, ErrNotFound) || IsInvalidID(err) {
			return schedule.Rules{}, false, nil
		}
		return schedule.Rules{}, false, err
	}
	if len(hours) > 0 && string(hours) != "null" {
		if err := json.Unmarshal(hours, &rules.WeeklyHours); err != nil {
			return schedule.Rules{}, false, fmt.Errorf("decode weekly_hours for host %s: %w", hostID, err)
		}
	}
	return rules, true, nil
}
