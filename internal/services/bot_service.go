// Package services – BotService
//
// This file implements the BotService, which manages the lifecycle of
// registered bots: token validation and registration, webhook setup and
// teardown, and configuration updates.
//
// The cache-consistency contract lives here: every mutation invalidates the
// bot's cached configuration snapshot strictly AFTER the database write
// commits. Invalidate-before-write (or no invalidation) opens a stale-read
// window where a worker could deliver with an outdated snapshot; the ordering
// is covered by regression tests.
package services

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"strconv"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/rmacedo/go-bot-relay/internal/domain"
	"github.com/rmacedo/go-bot-relay/internal/telegram"
)

// BotRepo defines the repository contract required by BotService.
type BotRepo interface {
	// CreateBot inserts a new bot row.
	CreateBot(ctx context.Context, db *gorm.DB, b *domain.Bot) error

	// GetBot fetches a bot by id, or repo.ErrNotFound.
	GetBot(ctx context.Context, db *gorm.DB, botID string) (*domain.Bot, error)

	// GetBotByToken fetches a bot by API token, or repo.ErrNotFound.
	GetBotByToken(ctx context.Context, db *gorm.DB, token string) (*domain.Bot, error)

	// UpdateBotFields applies a partial update to a bot row.
	UpdateBotFields(ctx context.Context, db *gorm.DB, botID string, fields map[string]any) error

	// DeleteBot removes a bot row.
	DeleteBot(ctx context.Context, db *gorm.DB, botID string) error
}

// Platform is the slice of the messaging platform client the service needs
// for credential validation and webhook management.
type Platform interface {
	GetMe(ctx context.Context, token string) (*telegram.User, error)
	SetWebhook(ctx context.Context, token, url, secret string) error
	DeleteWebhook(ctx context.Context, token string) error
}

// ConfigInvalidator drops a bot's cached configuration snapshot.
type ConfigInvalidator interface {
	Invalidate(botID string) int
}

// ConfigReader is the read-through side of the configuration cache. Get
// returns (nil, nil) for unknown bots.
type ConfigReader interface {
	Get(ctx context.Context, botID string) (*domain.Bot, error)
}

// Configs is the full cache surface the service consumes.
type Configs interface {
	ConfigReader
	ConfigInvalidator
}

// BotService provides bot lifecycle operations: registration, removal, and
// configuration updates with cache invalidation.
type BotService struct {
	// DB is the GORM handle used for persistence.
	DB *gorm.DB
	// Repo is the bot repository used by this service.
	Repo BotRepo
	// Platform performs credential validation and webhook calls.
	Platform Platform
	// Cache is read through for config lookups and invalidated after every
	// committed mutation.
	Cache Configs

	// PublicBaseURL is the externally reachable base of this deployment
	// (e.g. "https://relay.example.com"). When empty, webhooks are not
	// registered and bots run in local mode.
	PublicBaseURL string
	// WebhookPath is the ingress route prefix, default "/webhook".
	WebhookPath string
}

// NewBotService constructs a BotService with the default webhook path.
func NewBotService(db *gorm.DB, r BotRepo, p Platform, c Configs, publicBaseURL string) *BotService {
	return &BotService{
		DB:            db,
		Repo:          r,
		Platform:      p,
		Cache:         c,
		PublicBaseURL: publicBaseURL,
		WebhookPath:   "/webhook",
	}
}

// Register validates token against the platform, rejects duplicates,
// generates a webhook secret, registers the webhook when a public base URL is
// configured, and persists the bot.
func (s *BotService) Register(ctx context.Context, token string) (*domain.Bot, error) {
	ident, err := s.Platform.GetMe(ctx, token)
	if err != nil {
		var apiErr *telegram.APIError
		if errors.As(err, &apiErr) {
			return nil, ErrInvalidToken
		}
		return nil, err
	}

	if existing, err := s.Repo.GetBotByToken(ctx, s.DB, token); err == nil && existing != nil {
		return nil, ErrDuplicateBot
	} else if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	secret, err := newWebhookSecret()
	if err != nil {
		return nil, err
	}

	botID := strconv.FormatInt(ident.ID, 10)
	webhookActive := false
	if s.PublicBaseURL != "" {
		url := s.PublicBaseURL + s.WebhookPath + "/" + botID
		if err := s.Platform.SetWebhook(ctx, token, url, secret); err != nil {
			// Registration still succeeds in local mode; the webhook can be
			// retried once the deployment is reachable.
			log.Warn().Err(err).Str("bot_id", botID).Msg("webhook registration failed")
		} else {
			webhookActive = true
		}
	}

	b := &domain.Bot{
		BotID:         botID,
		Token:         token,
		Username:      ident.Username,
		WebhookSecret: secret,
		WebhookActive: webhookActive,
		IsActive:      true,
		MediaType:     "photo",
	}
	if err := s.Repo.CreateBot(ctx, s.DB, b); err != nil {
		return nil, err
	}
	return b, nil
}

// Remove deregisters the bot's webhook, deletes the row, and invalidates the
// cache entry. A webhook deregistration failure is logged, not fatal: the row
// is the source of truth.
func (s *BotService) Remove(ctx context.Context, botID string) error {
	b, err := s.Repo.GetBot(ctx, s.DB, botID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrBotNotFound
		}
		return err
	}

	if err := s.Platform.DeleteWebhook(ctx, b.Token); err != nil {
		log.Warn().Err(err).Str("bot_id", botID).Msg("webhook deregistration failed")
	}
	if err := s.Repo.DeleteBot(ctx, s.DB, botID); err != nil {
		return err
	}
	s.Cache.Invalidate(botID)
	return nil
}

// UpdateConfig applies a partial configuration update and then invalidates
// the cached snapshot. The media invariant (URL change clears the captured
// file_id) is enforced by the repository on the same write.
func (s *BotService) UpdateConfig(ctx context.Context, botID string, fields map[string]any) error {
	if err := s.Repo.UpdateBotFields(ctx, s.DB, botID, fields); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrBotNotFound
		}
		return err
	}
	// Invalidate only after the write committed.
	s.Cache.Invalidate(botID)
	return nil
}

// Config returns the bot's configuration snapshot through the read-through
// cache, or ErrBotNotFound.
func (s *BotService) Config(ctx context.Context, botID string) (*domain.Bot, error) {
	b, err := s.Cache.Get(ctx, botID)
	if err != nil {
		return nil, err
	}
	if b == nil {
		return nil, ErrBotNotFound
	}
	return b, nil
}

// newWebhookSecret returns a 32-byte URL-safe random secret for webhook
// authentication.
func newWebhookSecret() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
