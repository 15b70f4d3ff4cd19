// Package repo — aggregate/statistics queries.
//
// Small aggregate reads over the bots table, used by health/ops tooling and
// tests. Each function is context-aware and safe to call from services or
// handlers.
package repo

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/rmacedo/go-bot-relay/internal/domain"
)

// BotStats returns aggregate metadata for the bot fleet: the total number of
// active bots and the most recent activity timestamp among them.
//
// When no bots are active, count is 0 and lastActivity is nil.
func BotStats(ctx context.Context, db *gorm.DB) (count int64, lastActivity *time.Time, err error) {
	q := db.WithContext(ctx).Model(&domain.Bot{}).Where("is_active = ?", true)

	if err = q.Count(&count).Error; err != nil {
		return 0, nil, err
	}
	if count == 0 {
		return 0, nil, nil
	}

	// Get latest last_activity (avoid MAX() -> TEXT in SQLite)
	var row struct {
		LastActivity *time.Time
	}
	if err = q.Select("last_activity").
		Where("last_activity IS NOT NULL").
		Order("last_activity DESC").
		Limit(1).
		Scan(&row).Error; err != nil {
		return 0, nil, err
	}
	return count, row.LastActivity, nil
}
