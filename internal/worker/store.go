// Package worker — persistence and asset adapters.
//
// GormStore adapts the repository free functions to the Store interface the
// pool depends on, keeping the pool decoupled from the concrete repo package.
// LocalAssetStore removes transient uploads from the local uploads directory
// after their platform file identifier has been captured.
package worker

import (
	"context"
	"net/url"
	"os"
	"path"
	"path/filepath"

	"gorm.io/gorm"

	"github.com/rmacedo/go-bot-relay/internal/domain"
	"github.com/rmacedo/go-bot-relay/internal/repo"
)

// GormStore implements Store on top of the GORM repositories.
type GormStore struct {
	DB *gorm.DB
}

// CreateInteraction proxies repo.CreateInteraction.
func (s GormStore) CreateInteraction(ctx context.Context, rec *domain.Interaction) error {
	return repo.CreateInteraction(ctx, s.DB, rec)
}

// UpdateBotFields proxies repo.UpdateBotFields.
func (s GormStore) UpdateBotFields(ctx context.Context, botID string, fields map[string]any) error {
	return repo.UpdateBotFields(ctx, s.DB, botID, fields)
}

// IncrementStat proxies repo.IncrementStat.
func (s GormStore) IncrementStat(ctx context.Context, botID, field string) error {
	return repo.IncrementStat(ctx, s.DB, botID, field)
}

// RecordLastError proxies repo.RecordLastError.
func (s GormStore) RecordLastError(ctx context.Context, botID, msg string) error {
	return repo.RecordLastError(ctx, s.DB, botID, msg)
}

// LocalAssetStore deletes uploaded media files from a local directory once
// they are no longer needed. The file name is the last path segment of the
// media URL; query strings are ignored.
type LocalAssetStore struct {
	// Dir is the uploads directory, e.g. "static/uploads".
	Dir string
}

// Remove deletes the asset behind mediaURL. A file that is already gone is
// not an error.
func (a LocalAssetStore) Remove(mediaURL string) error {
	u, err := url.Parse(mediaURL)
	if err != nil {
		return err
	}
	name := path.Base(u.Path)
	if name == "." || name == "/" || name == "" {
		return nil
	}
	err = os.Remove(filepath.Join(a.Dir, name))
	if os.IsNotExist(err) {
		return nil
	}
	return err
}
