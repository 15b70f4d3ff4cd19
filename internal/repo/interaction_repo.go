// Package repo — Interaction repository.
//
// Interactions are append-only: there is no update or delete path, only
// inserts and aggregate reads used by the dashboard-facing API (out of scope
// here) and by tests.
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/rmacedo/go-bot-relay/internal/domain"
)

// CreateInteraction appends one interaction record with a generated UUID and
// UTC timestamp.
func CreateInteraction(ctx context.Context, db *gorm.DB, rec *domain.Interaction) error {
	rec.ID = uuid.NewString()
	rec.CreatedAt = time.Now().UTC()
	return db.WithContext(ctx).Create(rec).Error
}

// CountInteractions returns the number of interactions recorded for a bot.
func CountInteractions(ctx context.Context, db *gorm.DB, botID string) (int64, error) {
	var n int64
	err := db.WithContext(ctx).
		Model(&domain.Interaction{}).
		Where("bot_id = ?", botID).
		Count(&n).Error
	return n, err
}

// CountDistinctUsers returns how many distinct end users have interacted with
// a bot. Feeds the total_users statistic.
func CountDistinctUsers(ctx context.Context, db *gorm.DB, botID string) (int64, error) {
	var n int64
	err := db.WithContext(ctx).
		Model(&domain.Interaction{}).
		Where("bot_id = ?", botID).
		Distinct("user_id").
		Count(&n).Error
	return n, err
}
