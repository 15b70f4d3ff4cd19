package worker

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/rmacedo/go-bot-relay/internal/domain"
	"github.com/rmacedo/go-bot-relay/internal/queue"
	"github.com/rmacedo/go-bot-relay/internal/telegram"
)

// --- fakes ------------------------------------------------------------------

type sentMedia struct {
	kind string // "photo" or "video"
	ref  string
}

type fakeDelivery struct {
	mu       sync.Mutex
	messages []string
	media    []sentMedia
	answers  []string

	mediaResp *telegram.Message
	mediaErr  error
	msgErr    error
	panicOn   string // panic when sending a message containing this text
}

func (d *fakeDelivery) SendMessage(_ context.Context, _, _, text string, _ *telegram.InlineKeyboardMarkup) (*telegram.Message, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.panicOn != "" && text == d.panicOn {
		panic("delivery exploded")
	}
	d.messages = append(d.messages, text)
	return &telegram.Message{MessageID: 1}, d.msgErr
}

func (d *fakeDelivery) SendPhoto(_ context.Context, _, _, photo string) (*telegram.Message, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.media = append(d.media, sentMedia{kind: "photo", ref: photo})
	return d.mediaResp, d.mediaErr
}

func (d *fakeDelivery) SendVideo(_ context.Context, _, _, video string) (*telegram.Message, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.media = append(d.media, sentMedia{kind: "video", ref: video})
	return d.mediaResp, d.mediaErr
}

func (d *fakeDelivery) AnswerCallbackQuery(_ context.Context, _, callbackID, _ string, _ bool) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.answers = append(d.answers, callbackID)
	return nil
}

type fakeConfigs struct {
	mu            sync.Mutex
	bots          map[string]*domain.Bot
	err           error
	invalidations []string
}

func (c *fakeConfigs) Get(_ context.Context, botID string) (*domain.Bot, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return nil, c.err
	}
	return c.bots[botID], nil
}

func (c *fakeConfigs) Invalidate(botID string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.invalidations = append(c.invalidations, botID)
	return 1
}

type fakeStore struct {
	mu           sync.Mutex
	interactions []*domain.Interaction
	fieldUpdates []map[string]any
	stats        []string
	lastErrors   []string

	interactionErr error
	updateErr      error
}

func (s *fakeStore) CreateInteraction(_ context.Context, rec *domain.Interaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.interactionErr != nil {
		return s.interactionErr
	}
	s.interactions = append(s.interactions, rec)
	return nil
}

func (s *fakeStore) UpdateBotFields(_ context.Context, _ string, fields map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.updateErr != nil {
		return s.updateErr
	}
	s.fieldUpdates = append(s.fieldUpdates, fields)
	return nil
}

func (s *fakeStore) IncrementStat(_ context.Context, _, field string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stats = append(s.stats, field)
	return nil
}

func (s *fakeStore) RecordLastError(_ context.Context, _, msg string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastErrors = append(s.lastErrors, msg)
	return nil
}

type fakeAssets struct {
	mu      sync.Mutex
	removed []string
}

func (a *fakeAssets) Remove(mediaURL string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.removed = append(a.removed, mediaURL)
	return nil
}

type allowAll struct{}

func (allowAll) IsAllowed(string) bool { return true }

type denyAll struct{}

func (denyAll) IsAllowed(string) bool { return false }

// --- helpers ----------------------------------------------------------------

func startEnvelope(botID string) queue.UpdateEnvelope {
	return queue.UpdateEnvelope{
		BotID: botID,
		RawUpdate: json.RawMessage(`{
			"update_id": 1,
			"message": {
				"message_id": 10,
				"from": {"id": 500, "username": "alice", "first_name": "Alice"},
				"chat": {"id": 500},
				"text": "/start"
			}
		}`),
		EnqueuedAt: time.Now().UTC(),
	}
}

func callbackEnvelope(botID, data string) queue.UpdateEnvelope {
	raw := `{
		"update_id": 2,
		"callback_query": {
			"id": "cb-9",
			"from": {"id": 500, "username": "alice"},
			"message": {"message_id": 11, "chat": {"id": 500}},
			"data": "` + data + `"
		}
	}`
	return queue.UpdateEnvelope{BotID: botID, RawUpdate: json.RawMessage(raw), EnqueuedAt: time.Now().UTC()}
}

func newTestPool(cfgs *fakeConfigs, st *fakeStore, d *fakeDelivery, a *fakeAssets) *Pool {
	return New(1, queue.New(8), allowAll{}, cfgs, st, d, a)
}

// --- tests ------------------------------------------------------------------

func TestProcessStartDeliversComposedSequence(t *testing.T) {
	cfgs := &fakeConfigs{bots: map[string]*domain.Bot{
		"b1": {BotID: "b1", Token: "tok", Message1: "hi", Message2: "choose",
			Plans: domain.PlanList{{Name: "Gold", Price: 10, DurationDays: 30}}},
	}}
	st := &fakeStore{}
	d := &fakeDelivery{}
	p := newTestPool(cfgs, st, d, &fakeAssets{})

	p.process(context.Background(), zerolog.Nop(), startEnvelope("b1"))

	if len(d.messages) != 2 || d.messages[0] != "hi" || d.messages[1] != "choose" {
		t.Fatalf("unexpected sends: %v", d.messages)
	}
	if len(st.interactions) != 1 || st.interactions[0].Command != "/start" {
		t.Fatalf("interaction not recorded: %+v", st.interactions)
	}
	if len(st.stats) != 1 || st.stats[0] != "total_messages" {
		t.Fatalf("stats not incremented: %v", st.stats)
	}
	if len(st.lastErrors) != 0 {
		t.Fatalf("unexpected errors recorded: %v", st.lastErrors)
	}
}

// First media send goes by URL and captures the returned file identifier; the
// persisted identifier is reused on every later send and the source asset is
// removed. Exactly one upload ever happens per configured URL.
func TestMediaMemoization(t *testing.T) {
	bot := &domain.Bot{
		BotID: "b1", Token: "tok", MediaURL: "https://relay.example/static/uploads/b1.jpg",
		MediaType: "photo", Message1: "hi",
	}
	cfgs := &fakeConfigs{bots: map[string]*domain.Bot{"b1": bot}}
	st := &fakeStore{}
	a := &fakeAssets{}
	d := &fakeDelivery{mediaResp: &telegram.Message{
		MessageID: 7,
		Photo:     []telegram.PhotoSize{{FileID: "small"}, {FileID: "big"}},
	}}
	p := newTestPool(cfgs, st, d, a)

	p.process(context.Background(), zerolog.Nop(), startEnvelope("b1"))

	if len(d.media) != 1 || d.media[0].ref != bot.MediaURL {
		t.Fatalf("first send must go by URL: %+v", d.media)
	}
	if len(st.fieldUpdates) != 1 {
		t.Fatalf("file_id not persisted: %+v", st.fieldUpdates)
	}
	if st.fieldUpdates[0]["media_file_id"] != "big" || st.fieldUpdates[0]["media_file_processed"] != true {
		t.Fatalf("unexpected persisted fields: %v", st.fieldUpdates[0])
	}
	if len(cfgs.invalidations) != 1 || cfgs.invalidations[0] != "b1" {
		t.Fatalf("cache not invalidated after persist: %v", cfgs.invalidations)
	}
	if len(a.removed) != 1 || a.removed[0] != bot.MediaURL {
		t.Fatalf("transient asset not removed: %v", a.removed)
	}

	// The committed write lands in the store; subsequent reads see the file_id.
	cfgs.bots["b1"] = &domain.Bot{
		BotID: "b1", Token: "tok", MediaFileID: "big", MediaFileProcessed: true,
		MediaType: "photo", Message1: "hi",
	}
	p.process(context.Background(), zerolog.Nop(), startEnvelope("b1"))

	if len(d.media) != 2 || d.media[1].ref != "big" {
		t.Fatalf("second send must reuse the file_id: %+v", d.media)
	}
	if len(st.fieldUpdates) != 1 {
		t.Fatalf("reuse path must not persist again: %+v", st.fieldUpdates)
	}
}

func TestMediaSendFailureDoesNotPersist(t *testing.T) {
	bot := &domain.Bot{BotID: "b1", Token: "tok", MediaURL: "https://x/a.jpg", Message1: "hi"}
	cfgs := &fakeConfigs{bots: map[string]*domain.Bot{"b1": bot}}
	st := &fakeStore{}
	d := &fakeDelivery{mediaErr: errors.New("telegram down")}
	p := newTestPool(cfgs, st, d, &fakeAssets{})

	p.process(context.Background(), zerolog.Nop(), startEnvelope("b1"))

	if len(st.fieldUpdates) != 0 {
		t.Fatalf("failed upload must not persist a file_id: %+v", st.fieldUpdates)
	}
	// Text delivery still happens; media failure is non-fatal.
	if len(d.messages) != 1 {
		t.Fatalf("text sequence skipped after media failure: %v", d.messages)
	}
}

func TestMediaResponseWithoutFileID(t *testing.T) {
	bot := &domain.Bot{BotID: "b1", Token: "tok", MediaURL: "https://x/a.jpg", MediaType: "photo"}
	cfgs := &fakeConfigs{bots: map[string]*domain.Bot{"b1": bot}}
	st := &fakeStore{}
	d := &fakeDelivery{mediaResp: &telegram.Message{MessageID: 7}}
	p := newTestPool(cfgs, st, d, &fakeAssets{})

	p.process(context.Background(), zerolog.Nop(), startEnvelope("b1"))

	if len(st.fieldUpdates) != 0 {
		t.Fatalf("persisted a file_id the platform never returned: %+v", st.fieldUpdates)
	}
}

func TestMediaVideoBranch(t *testing.T) {
	bot := &domain.Bot{BotID: "b1", Token: "tok", MediaURL: "https://x/a.mp4", MediaType: "video"}
	cfgs := &fakeConfigs{bots: map[string]*domain.Bot{"b1": bot}}
	d := &fakeDelivery{mediaResp: &telegram.Message{MessageID: 7, Video: &telegram.Video{FileID: "vid"}}}
	st := &fakeStore{}
	p := newTestPool(cfgs, st, d, &fakeAssets{})

	p.process(context.Background(), zerolog.Nop(), startEnvelope("b1"))

	if len(d.media) != 1 || d.media[0].kind != "video" {
		t.Fatalf("video media must use the video send path: %+v", d.media)
	}
	if len(st.fieldUpdates) != 1 || st.fieldUpdates[0]["media_file_id"] != "vid" {
		t.Fatalf("video file_id not captured: %+v", st.fieldUpdates)
	}
}

func TestProcessRateLimitedDrop(t *testing.T) {
	cfgs := &fakeConfigs{bots: map[string]*domain.Bot{"b1": {BotID: "b1", Message1: "hi"}}}
	st := &fakeStore{}
	d := &fakeDelivery{}
	p := New(1, queue.New(8), denyAll{}, cfgs, st, d, nil)

	p.process(context.Background(), zerolog.Nop(), startEnvelope("b1"))

	if len(d.messages) != 0 || len(st.interactions) != 0 || len(st.stats) != 0 {
		t.Fatalf("dropped update produced side effects: msgs=%v interactions=%v stats=%v",
			d.messages, st.interactions, st.stats)
	}
	if len(st.lastErrors) != 0 {
		t.Fatalf("a drop is not an error: %v", st.lastErrors)
	}
}

func TestProcessUnsupportedUpdateSkipped(t *testing.T) {
	st := &fakeStore{}
	d := &fakeDelivery{}
	p := newTestPool(&fakeConfigs{}, st, d, nil)

	env := queue.UpdateEnvelope{BotID: "b1", RawUpdate: json.RawMessage(`{"update_id":3}`)}
	p.process(context.Background(), zerolog.Nop(), env)

	if len(d.messages) != 0 || len(st.interactions) != 0 || len(st.lastErrors) != 0 {
		t.Fatalf("skip produced side effects")
	}
}

func TestProcessUnknownBotSkipped(t *testing.T) {
	st := &fakeStore{}
	p := newTestPool(&fakeConfigs{bots: map[string]*domain.Bot{}}, st, &fakeDelivery{}, nil)

	p.process(context.Background(), zerolog.Nop(), startEnvelope("ghost"))

	if len(st.lastErrors) != 0 {
		t.Fatalf("unknown bot must be a silent skip, got errors %v", st.lastErrors)
	}
}

func TestProcessStoreFailureRecorded(t *testing.T) {
	cfgs := &fakeConfigs{bots: map[string]*domain.Bot{"b1": {BotID: "b1", Message1: "hi"}}}
	st := &fakeStore{interactionErr: errors.New("disk full")}
	p := newTestPool(cfgs, st, &fakeDelivery{}, nil)

	p.process(context.Background(), zerolog.Nop(), startEnvelope("b1"))

	if len(st.lastErrors) != 1 {
		t.Fatalf("store failure not recorded: %v", st.lastErrors)
	}

	// The next envelope still processes: failures stay isolated per update.
	st.interactionErr = nil
	p.process(context.Background(), zerolog.Nop(), startEnvelope("b1"))
	if len(st.interactions) != 1 {
		t.Fatalf("worker did not recover after a failed envelope")
	}
}

func TestProcessPanicIsolated(t *testing.T) {
	cfgs := &fakeConfigs{bots: map[string]*domain.Bot{"b1": {BotID: "b1", Token: "tok", Message1: "boom"}}}
	st := &fakeStore{}
	d := &fakeDelivery{panicOn: "boom"}
	p := newTestPool(cfgs, st, d, nil)

	p.process(context.Background(), zerolog.Nop(), startEnvelope("b1"))

	if len(st.lastErrors) != 1 {
		t.Fatalf("panic not recorded as last error: %v", st.lastErrors)
	}
}

func TestPlanCallbackInRange(t *testing.T) {
	cfgs := &fakeConfigs{bots: map[string]*domain.Bot{
		"b1": {BotID: "b1", Token: "tok", Plans: domain.PlanList{
			{Name: "Gold", Price: 10, DurationDays: 30},
			{Freeform: "legacy"},
		}},
	}}
	st := &fakeStore{}
	d := &fakeDelivery{}
	p := newTestPool(cfgs, st, d, nil)

	p.process(context.Background(), zerolog.Nop(), callbackEnvelope("b1", "buy_plan_1"))

	if len(d.answers) != 1 || d.answers[0] != "cb-9" {
		t.Fatalf("callback not acknowledged: %v", d.answers)
	}
	if len(d.messages) != 1 || d.messages[0] != "✅ You selected: legacy" {
		t.Fatalf("plan details not sent: %v", d.messages)
	}
	if len(st.interactions) != 1 || st.interactions[0].CallbackData != "buy_plan_1" {
		t.Fatalf("callback interaction not recorded: %+v", st.interactions)
	}
}

func TestPlanCallbackOutOfRange(t *testing.T) {
	cfgs := &fakeConfigs{bots: map[string]*domain.Bot{
		"b1": {BotID: "b1", Token: "tok", Plans: domain.PlanList{{Name: "Only", Price: 1}}},
	}}
	st := &fakeStore{}
	d := &fakeDelivery{}
	p := newTestPool(cfgs, st, d, nil)

	p.process(context.Background(), zerolog.Nop(), callbackEnvelope("b1", "buy_plan_5"))

	if len(d.answers) != 0 || len(d.messages) != 0 {
		t.Fatalf("out-of-range plan produced user-facing output: answers=%v msgs=%v", d.answers, d.messages)
	}
	if len(st.lastErrors) != 0 {
		t.Fatalf("out-of-range plan is not an error: %v", st.lastErrors)
	}
}

func TestPoolStartDrainsQueueAndStops(t *testing.T) {
	cfgs := &fakeConfigs{bots: map[string]*domain.Bot{"b1": {BotID: "b1", Token: "tok", Message1: "hi"}}}
	st := &fakeStore{}
	d := &fakeDelivery{}
	q := queue.New(8)
	p := New(2, q, allowAll{}, cfgs, st, d, nil)

	for i := 0; i < 4; i++ {
		if err := q.Push(startEnvelope("b1")); err != nil {
			t.Fatalf("push: %v", err)
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	p.Start(ctx)

	deadline := time.After(2 * time.Second)
	for {
		d.mu.Lock()
		n := len(d.messages)
		d.mu.Unlock()
		if n == 4 {
			break
		}
		select {
		case <-deadline:
			t.Fatalf("pool delivered %d of 4 messages before deadline", n)
		case <-time.After(5 * time.Millisecond):
		}
	}

	cancel()
	done := make(chan struct{})
	go func() { p.Wait(); close(done) }()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("pool did not stop after cancel")
	}
}
