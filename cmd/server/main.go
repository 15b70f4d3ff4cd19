// Command server runs the bot relay: the webhook HTTP ingress and the
// update-processing worker pool in one process, sharing the in-memory queue,
// config cache, and per-bot rate limiter.
//
// Shutdown is cooperative: on SIGINT/SIGTERM the HTTP server stops accepting
// work, the queue rejects further pushes, workers finish the envelopes they
// already popped, and anything still buffered is lost (the queue is not
// durable; the platform re-delivers unacknowledged updates).
//
// A one-shot registration mode is available for operators:
//
//	server -register <bot-token>
//
// validates the token, registers the webhook (when PUBLIC_BASE_URL is set),
// stores the bot, and exits.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/rmacedo/go-bot-relay/internal/cache"
	"github.com/rmacedo/go-bot-relay/internal/config"
	"github.com/rmacedo/go-bot-relay/internal/domain"
	httpapi "github.com/rmacedo/go-bot-relay/internal/http"
	"github.com/rmacedo/go-bot-relay/internal/observability"
	"github.com/rmacedo/go-bot-relay/internal/queue"
	"github.com/rmacedo/go-bot-relay/internal/ratelimit"
	"github.com/rmacedo/go-bot-relay/internal/repo"
	"github.com/rmacedo/go-bot-relay/internal/services"
	"github.com/rmacedo/go-bot-relay/internal/sysutil"
	"github.com/rmacedo/go-bot-relay/internal/telegram"
	"github.com/rmacedo/go-bot-relay/internal/worker"
)

// version is stamped at build time via -ldflags.
var version = "dev"

// repoShim adapts the repository free functions to the services.BotRepo
// interface expected by BotService.
type repoShim struct{}

func (repoShim) CreateBot(ctx context.Context, db *gorm.DB, b *domain.Bot) error {
	return repo.CreateBot(ctx, db, b)
}

func (repoShim) GetBot(ctx context.Context, db *gorm.DB, botID string) (*domain.Bot, error) {
	return repo.GetBot(ctx, db, botID)
}

func (repoShim) GetBotByToken(ctx context.Context, db *gorm.DB, token string) (*domain.Bot, error) {
	return repo.GetBotByToken(ctx, db, token)
}

func (repoShim) UpdateBotFields(ctx context.Context, db *gorm.DB, botID string, fields map[string]any) error {
	return repo.UpdateBotFields(ctx, db, botID, fields)
}

func (repoShim) DeleteBot(ctx context.Context, db *gorm.DB, botID string) error {
	return repo.DeleteBot(ctx, db, botID)
}

func main() {
	registerToken := flag.String("register", "", "register a bot by token and exit")
	flag.Parse()

	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	cfg := config.MustLoad()

	sysutil.SetLogLevel(cfg.LogLevel)
	if cfg.LogPretty {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}
	gin.SetMode(cfg.GinMode)

	if err := run(cfg, *registerToken); err != nil {
		log.Fatal().Err(err).Msg("server exited")
	}
}

func run(cfg config.Config, registerToken string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownOTel, err := observability.SetupOTel(ctx, cfg.OTEL, version)
	if err != nil {
		return fmt.Errorf("otel setup: %w", err)
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownOTel(sctx); err != nil {
			log.Warn().Err(err).Msg("otel shutdown failed")
		}
	}()

	db, err := repo.OpenSQLite(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	if err := repo.AutoMigrate(db); err != nil {
		return fmt.Errorf("migrate database: %w", err)
	}

	tg := telegram.NewClient(cfg.TelegramAPIURL, nil)
	configs := cache.New(func(ctx context.Context, botID string) (*domain.Bot, error) {
		bot, err := repo.GetBot(ctx, db, botID)
		if errors.Is(err, repo.ErrNotFound) {
			return nil, nil
		}
		return bot, err
	}, cfg.CacheTTL)

	if registerToken != "" {
		svc := services.NewBotService(db, repoShim{}, tg, configs, cfg.PublicBaseURL)
		bot, err := svc.Register(ctx, registerToken)
		if err != nil {
			return fmt.Errorf("register bot: %w", err)
		}
		log.Info().Str("bot_id", bot.BotID).Str("username", bot.Username).
			Bool("webhook_active", bot.WebhookActive).Msg("bot registered")
		return nil
	}

	q := queue.New(cfg.QueueSize)
	limiter := ratelimit.New(cfg.RateLimitPerBot)

	pool := worker.New(
		cfg.WorkerCount,
		q,
		limiter,
		configs,
		worker.GormStore{DB: db},
		tg,
		worker.LocalAssetStore{Dir: cfg.UploadsPath},
	)
	pool.Start(ctx)

	r := gin.New()
	httpapi.RegisterRoutes(r, db, q, cfg)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
		MaxHeaderBytes:    cfg.MaxHeaderBytes,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("port", cfg.Port).Int("workers", cfg.WorkerCount).Msg("relay listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down")

	// Stop ingress first so nothing new is queued, then let workers drain
	// what they already popped.
	sctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(sctx); err != nil {
		log.Warn().Err(err).Msg("http shutdown failed")
	}
	q.Close()
	pool.Wait()

	if n := q.Len(); n > 0 {
		log.Warn().Int("lost", n).Msg("queued updates discarded at shutdown")
	}
	log.Info().Msg("relay stopped")
	return nil
}
