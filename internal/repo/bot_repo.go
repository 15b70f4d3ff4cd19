// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the Bot model.
//
// All functions are context-aware and accept a *gorm.DB handle, making them
// safe for use within transactions or connection-scoped operations.
// They follow the "thin repository" approach: no business logic, only CRUD
// persistence and query composition — with one deliberate exception:
// UpdateBotFields enforces the media invariant (a media_url change clears any
// captured media_file_id) because that rule must hold on every write path.
//
// Error semantics:
//   - When a bot is not found, functions return gorm.ErrRecordNotFound
//     (also exported here as ErrNotFound for convenience).
//   - On DB errors (constraint violations, connectivity issues, etc.),
//     the raw gorm error is propagated.
package repo

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/rmacedo/go-bot-relay/internal/domain"
)

// ErrNotFound is returned when a requested record does not exist.
// It aliases gorm.ErrRecordNotFound for convenience and consistency
// across the service layer and handlers.
var ErrNotFound = gorm.ErrRecordNotFound

// CreateBot inserts a new bot row.
func CreateBot(ctx context.Context, db *gorm.DB, b *domain.Bot) error {
	now := time.Now().UTC()
	b.CreatedAt = now
	b.UpdatedAt = now
	return db.WithContext(ctx).Create(b).Error
}

// GetBot fetches a bot by its Telegram bot id, or ErrNotFound.
func GetBot(ctx context.Context, db *gorm.DB, botID string) (*domain.Bot, error) {
	var b domain.Bot
	err := db.WithContext(ctx).Where("bot_id = ?", botID).First(&b).Error
	if err != nil {
		return nil, err
	}
	return &b, nil
}

// GetBotByToken fetches a bot by its API token, or ErrNotFound. Used during
// registration to reject duplicate tokens.
func GetBotByToken(ctx context.Context, db *gorm.DB, token string) (*domain.Bot, error) {
	var b domain.Bot
	err := db.WithContext(ctx).Where("token = ?", token).First(&b).Error
	if err != nil {
		return nil, err
	}
	return &b, nil
}

// ListActiveBots returns all bots with is_active set, newest first.
func ListActiveBots(ctx context.Context, db *gorm.DB) ([]domain.Bot, error) {
	var out []domain.Bot
	err := db.WithContext(ctx).
		Where("is_active = ?", true).
		Order("created_at DESC").
		Find(&out).Error
	return out, err
}

// UpdateBotFields applies a partial update to a bot row.
//
// Invariant: when the update changes media_url, any previously captured
// media_file_id and its processed flag are cleared in the same write, so the
// next send re-uploads and re-captures. Callers that pass media_file_id
// explicitly (the capture path) are not affected.
//
// Returns ErrNotFound when no row matched.
func UpdateBotFields(ctx context.Context, db *gorm.DB, botID string, fields map[string]any) error {
	if _, ok := fields["media_url"]; ok {
		if _, set := fields["media_file_id"]; !set {
			fields["media_file_id"] = ""
			fields["media_file_processed"] = false
		}
	}
	fields["updated_at"] = time.Now().UTC()

	res := db.WithContext(ctx).
		Model(&domain.Bot{}).
		Where("bot_id = ?", botID).
		Updates(fields)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteBot soft-deletes a bot row. Returns ErrNotFound when absent.
func DeleteBot(ctx context.Context, db *gorm.DB, botID string) error {
	res := db.WithContext(ctx).Where("bot_id = ?", botID).Delete(&domain.Bot{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// IncrementStat atomically bumps a counter column (e.g. "total_messages",
// "total_users") on a bot row and refreshes last_activity.
func IncrementStat(ctx context.Context, db *gorm.DB, botID, field string) error {
	now := time.Now().UTC()
	return db.WithContext(ctx).
		Model(&domain.Bot{}).
		Where("bot_id = ?", botID).
		Updates(map[string]any{
			field:           gorm.Expr(field+" + ?", 1),
			"last_activity": &now,
		}).Error
}

// RecordLastError stores the most recent processing failure on the bot row.
// Best-effort: callers typically ignore the returned error beyond logging.
func RecordLastError(ctx context.Context, db *gorm.DB, botID, msg string) error {
	return db.WithContext(ctx).
		Model(&domain.Bot{}).
		Where("bot_id = ?", botID).
		Update("last_error", msg).Error
}
