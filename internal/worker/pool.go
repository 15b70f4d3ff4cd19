// Package worker implements the concurrent consumer side of the relay: a
// fixed-size pool of workers that dequeue update envelopes, rate-limit them
// per bot, load the bot's configuration through the read-through cache, and
// deliver the configured reply.
//
// Failure isolation is the governing rule here: any error while processing
// one envelope is recorded on the bot's last_error field and the loop moves
// on. Nothing a single bad update can do is allowed to halt the pool.
//
// Within one envelope, side effects are strictly sequential: media send →
// message send(s) → statistics update. Across envelopes (and bots) there is
// no ordering guarantee beyond the queue's global FIFO.
package worker

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/rmacedo/go-bot-relay/internal/domain"
	"github.com/rmacedo/go-bot-relay/internal/queue"
	"github.com/rmacedo/go-bot-relay/internal/telegram"
)

// processTimeout bounds the work on one envelope, covering every outbound
// platform and store call it makes.
const processTimeout = 60 * time.Second

// Delivery is the slice of the platform client the pool needs to send
// replies.
type Delivery interface {
	SendMessage(ctx context.Context, token, chatID, text string, kb *telegram.InlineKeyboardMarkup) (*telegram.Message, error)
	SendPhoto(ctx context.Context, token, chatID, photo string) (*telegram.Message, error)
	SendVideo(ctx context.Context, token, chatID, video string) (*telegram.Message, error)
	AnswerCallbackQuery(ctx context.Context, token, callbackID, text string, showAlert bool) error
}

// Configs is the read-through configuration cache consumed by workers.
// Get returns (nil, nil) for unknown bots.
type Configs interface {
	Get(ctx context.Context, botID string) (*domain.Bot, error)
	Invalidate(botID string) int
}

// Limiter gates per-bot throughput. False means the event is dropped.
type Limiter interface {
	IsAllowed(botID string) bool
}

// Store is the persistence surface the pool writes through: interaction
// records, partial bot updates (file_id capture), statistics, and the
// last-error marker.
type Store interface {
	CreateInteraction(ctx context.Context, rec *domain.Interaction) error
	UpdateBotFields(ctx context.Context, botID string, fields map[string]any) error
	IncrementStat(ctx context.Context, botID, field string) error
	RecordLastError(ctx context.Context, botID, msg string) error
}

// Assets removes transient media sources once the platform file identifier
// has been captured.
type Assets interface {
	Remove(mediaURL string) error
}

// Pool is the fixed-size worker pool. Construct with New, run with Start,
// and Wait for drain after cancelling the start context.
type Pool struct {
	Queue    *queue.UpdateQueue
	Limiter  Limiter
	Configs  Configs
	Store    Store
	Delivery Delivery
	Assets   Assets

	// Workers is the pool size; values < 1 are coerced to 1 in Start.
	Workers int

	wg sync.WaitGroup
}

// New constructs a Pool with n workers over the given collaborators.
func New(n int, q *queue.UpdateQueue, lim Limiter, cfgs Configs, st Store, d Delivery, a Assets) *Pool {
	return &Pool{
		Queue:    q,
		Limiter:  lim,
		Configs:  cfgs,
		Store:    st,
		Delivery: d,
		Assets:   a,
		Workers:  n,
	}
}

// Start launches the workers. Each worker blocks on the queue until ctx is
// cancelled; envelopes already popped are processed to completion (processing
// uses a detached context), envelopes still queued at shutdown are lost.
func (p *Pool) Start(ctx context.Context) {
	n := p.Workers
	if n < 1 {
		n = 1
	}
	for i := 0; i < n; i++ {
		p.wg.Add(1)
		go p.run(ctx, i)
	}
}

// Wait blocks until every worker has exited.
func (p *Pool) Wait() { p.wg.Wait() }

// run is one worker's loop.
func (p *Pool) run(ctx context.Context, id int) {
	defer p.wg.Done()
	lg := log.With().Int("worker", id).Logger()
	lg.Info().Msg("worker started")

	for {
		env, ok := p.Queue.Pop(ctx)
		if !ok {
			lg.Info().Msg("worker stopped")
			return
		}
		queueDepth.Set(float64(p.Queue.Len()))

		// Finish in-flight work even when shutdown fires mid-envelope.
		pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), processTimeout)
		p.process(pctx, lg, env)
		cancel()
	}
}

// process handles one envelope end to end. Errors never escape: they are
// recorded on the bot and counted, and the worker moves on.
func (p *Pool) process(ctx context.Context, lg zerolog.Logger, env queue.UpdateEnvelope) {
	lg = lg.With().Str("bot_id", env.BotID).Logger()

	defer func() {
		if r := recover(); r != nil {
			msg := fmt.Sprintf("panic: %v", r)
			lg.Error().Str("panic", msg).Msg("update processing panicked")
			_ = p.Store.RecordLastError(ctx, env.BotID, msg)
			updatesProcessed.WithLabelValues(resultError).Inc()
		}
	}()

	ev := telegram.ExtractEvent(env.RawUpdate)
	if ev.Kind == telegram.EventNone {
		updatesProcessed.WithLabelValues(resultSkipped).Inc()
		return
	}

	if !p.Limiter.IsAllowed(env.BotID) {
		// Deliberate throughput protection: exceeders are dropped, not queued.
		lg.Warn().Msg("rate limit exceeded, dropping update")
		updatesProcessed.WithLabelValues(resultDropped).Inc()
		return
	}

	if err := p.handle(ctx, lg, env.BotID, ev); err != nil {
		lg.Error().Err(err).Msg("update processing failed")
		if rerr := p.Store.RecordLastError(ctx, env.BotID, err.Error()); rerr != nil {
			lg.Error().Err(rerr).Msg("recording last error failed")
		}
		updatesProcessed.WithLabelValues(resultError).Inc()
		return
	}

	processingLatency.Observe(time.Since(env.EnqueuedAt).Seconds())
	updatesProcessed.WithLabelValues(resultOK).Inc()
}

// handle runs the event pipeline for one extracted event: config load,
// interaction record, dispatch, statistics.
func (p *Pool) handle(ctx context.Context, lg zerolog.Logger, botID string, ev telegram.ExtractedEvent) error {
	bot, err := p.Configs.Get(ctx, botID)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if bot == nil {
		lg.Warn().Msg("no configuration for bot, skipping")
		return nil
	}

	if err := p.recordInteraction(ctx, botID, ev); err != nil {
		return fmt.Errorf("record interaction: %w", err)
	}

	switch {
	case ev.Kind == telegram.EventMessage && ev.Text == "/start":
		if err := p.handleStart(ctx, lg, bot, ev); err != nil {
			return err
		}
	case ev.Kind == telegram.EventCallback && strings.HasPrefix(ev.CallbackData, PlanCallbackPrefix):
		p.handlePlanCallback(ctx, lg, bot, ev)
	default:
		lg.Debug().Str("kind", string(ev.Kind)).Msg("no handler for event")
	}

	if err := p.Store.IncrementStat(ctx, botID, "total_messages"); err != nil {
		return fmt.Errorf("increment stats: %w", err)
	}
	return nil
}

// recordInteraction appends the interaction row for this event.
func (p *Pool) recordInteraction(ctx context.Context, botID string, ev telegram.ExtractedEvent) error {
	rec := &domain.Interaction{
		BotID:        botID,
		UserID:       ev.UserID,
		Username:     ev.Username,
		FirstName:    ev.FirstName,
		CallbackData: ev.CallbackData,
		MessageText:  ev.Text,
	}
	if ev.IsCommand() {
		rec.Command = ev.Text
	}
	return p.Store.CreateInteraction(ctx, rec)
}

// handleStart delivers the configured reply: media first (memoized), then the
// composed message sequence. Platform failures on individual sends degrade to
// logged no-ops; only store failures propagate.
func (p *Pool) handleStart(ctx context.Context, lg zerolog.Logger, bot *domain.Bot, ev telegram.ExtractedEvent) error {
	if bot.MediaFileID != "" || bot.MediaURL != "" {
		if err := p.sendMedia(ctx, lg, bot, ev.ChatID); err != nil {
			return err
		}
	}

	for _, out := range Compose(bot) {
		if _, err := p.Delivery.SendMessage(ctx, bot.Token, ev.ChatID, out.Text, out.Keyboard); err != nil {
			lg.Error().Err(err).Msg("send message failed")
		}
	}
	return nil
}

// sendMedia delivers the bot's media, memoizing the platform file identifier:
// the first send goes by URL and captures the returned file_id, which is
// persisted, the cache invalidated, and the transient source asset removed;
// every later send reuses the file_id, which the platform serves without
// re-uploading.
func (p *Pool) sendMedia(ctx context.Context, lg zerolog.Logger, bot *domain.Bot, chatID string) error {
	if bot.MediaFileID != "" {
		if _, err := p.sendMediaRef(ctx, bot, chatID, bot.MediaFileID); err != nil {
			lg.Error().Err(err).Msg("send media by file_id failed")
		}
		return nil
	}

	msg, err := p.sendMediaRef(ctx, bot, chatID, bot.MediaURL)
	if err != nil {
		lg.Error().Err(err).Msg("send media by url failed")
		return nil
	}

	fileID := msg.MediaFileID(bot.MediaType)
	if fileID == "" {
		lg.Warn().Msg("media response carried no file_id")
		return nil
	}

	// Persist the captured identifier, then invalidate so the next config
	// read sees it. Order matters: invalidating first would let a concurrent
	// reader re-cache the stale row.
	err = p.Store.UpdateBotFields(ctx, bot.BotID, map[string]any{
		"media_file_id":        fileID,
		"media_file_processed": true,
	})
	if err != nil {
		return fmt.Errorf("persist media file_id: %w", err)
	}
	p.Configs.Invalidate(bot.BotID)

	if p.Assets != nil {
		if err := p.Assets.Remove(bot.MediaURL); err != nil {
			lg.Warn().Err(err).Msg("removing transient media asset failed")
		}
	}
	lg.Info().Msg("media file_id captured")
	return nil
}

// sendMediaRef sends media by URL or file_id, branching on media type.
func (p *Pool) sendMediaRef(ctx context.Context, bot *domain.Bot, chatID, ref string) (*telegram.Message, error) {
	if bot.MediaType == "video" {
		return p.Delivery.SendVideo(ctx, bot.Token, chatID, ref)
	}
	return p.Delivery.SendPhoto(ctx, bot.Token, chatID, ref)
}

// handlePlanCallback acknowledges a plan selection and sends the plan's
// details. An out-of-range index is logged and produces no user-facing
// output; platform failures degrade to logged no-ops.
func (p *Pool) handlePlanCallback(ctx context.Context, lg zerolog.Logger, bot *domain.Bot, ev telegram.ExtractedEvent) {
	idx, ok := parsePlanIndex(ev.CallbackData)
	if !ok || idx >= len(bot.Plans) {
		lg.Warn().Str("callback_data", ev.CallbackData).Msg("plan index out of range")
		return
	}

	if err := p.Delivery.AnswerCallbackQuery(ctx, bot.Token, ev.CallbackID, "Plan selected!", false); err != nil {
		lg.Error().Err(err).Msg("answer callback failed")
	}
	if _, err := p.Delivery.SendMessage(ctx, bot.Token, ev.ChatID, planDetails(bot.Plans[idx]), nil); err != nil {
		lg.Error().Err(err).Msg("send plan details failed")
	}
}
