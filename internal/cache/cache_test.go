package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rmacedo/go-bot-relay/internal/domain"
)

// fakeStore is a mutable backing store the loader reads from, so tests can
// simulate writes landing underneath the cache.
type fakeStore struct {
	bots  map[string]*domain.Bot
	loads int
	err   error
}

func (s *fakeStore) load(_ context.Context, botID string) (*domain.Bot, error) {
	s.loads++
	if s.err != nil {
		return nil, s.err
	}
	return s.bots[botID], nil
}

func TestGetReadThrough(t *testing.T) {
	st := &fakeStore{bots: map[string]*domain.Bot{
		"b1": {BotID: "b1", Message1: "hello"},
	}}
	c := New(st.load, time.Minute)

	for i := 0; i < 3; i++ {
		bot, err := c.Get(context.Background(), "b1")
		if err != nil {
			t.Fatalf("get: %v", err)
		}
		if bot == nil || bot.Message1 != "hello" {
			t.Fatalf("unexpected bot: %+v", bot)
		}
	}
	if st.loads != 1 {
		t.Fatalf("want 1 loader hit, got %d", st.loads)
	}
}

func TestGetExpiredEntryReloads(t *testing.T) {
	st := &fakeStore{bots: map[string]*domain.Bot{"b1": {BotID: "b1"}}}
	c := New(st.load, 10*time.Millisecond)

	if _, err := c.Get(context.Background(), "b1"); err != nil {
		t.Fatalf("get: %v", err)
	}
	time.Sleep(20 * time.Millisecond)
	if _, err := c.Get(context.Background(), "b1"); err != nil {
		t.Fatalf("get after expiry: %v", err)
	}
	if st.loads != 2 {
		t.Fatalf("want 2 loader hits across TTL boundary, got %d", st.loads)
	}
}

// A write followed by Invalidate must be visible to the very next Get. This is
// the consistency contract every mutation path relies on.
func TestInvalidateAfterWriteNoStaleRead(t *testing.T) {
	st := &fakeStore{bots: map[string]*domain.Bot{
		"b1": {BotID: "b1", Message1: "v1"},
	}}
	c := New(st.load, time.Hour)

	bot, err := c.Get(context.Background(), "b1")
	if err != nil || bot.Message1 != "v1" {
		t.Fatalf("warm read: %+v, %v", bot, err)
	}

	// Commit the write, then invalidate — in that order.
	st.bots["b1"] = &domain.Bot{BotID: "b1", Message1: "v2"}
	if n := c.Invalidate("b1"); n != 1 {
		t.Fatalf("invalidate removed %d entries, want 1", n)
	}

	bot, err = c.Get(context.Background(), "b1")
	if err != nil {
		t.Fatalf("get after invalidate: %v", err)
	}
	if bot.Message1 != "v2" {
		t.Fatalf("stale read after invalidate: got %q, want v2", bot.Message1)
	}
}

func TestInvalidateMissingKey(t *testing.T) {
	c := New(func(context.Context, string) (*domain.Bot, error) { return nil, nil }, time.Minute)
	if n := c.Invalidate("nope"); n != 0 {
		t.Fatalf("want 0 removals, got %d", n)
	}
}

func TestGetAbsentBotNotNegativelyCached(t *testing.T) {
	st := &fakeStore{bots: map[string]*domain.Bot{}}
	c := New(st.load, time.Minute)

	bot, err := c.Get(context.Background(), "new")
	if err != nil || bot != nil {
		t.Fatalf("absent bot: %+v, %v", bot, err)
	}

	// Bot shows up (registration committed elsewhere): next Get must see it.
	st.bots["new"] = &domain.Bot{BotID: "new"}
	bot, err = c.Get(context.Background(), "new")
	if err != nil || bot == nil {
		t.Fatalf("bot invisible after registration: %+v, %v", bot, err)
	}
	if c.Len() != 1 {
		t.Fatalf("want 1 resident entry, got %d", c.Len())
	}
}

func TestGetLoaderError(t *testing.T) {
	boom := errors.New("db down")
	st := &fakeStore{err: boom}
	c := New(st.load, time.Minute)

	if _, err := c.Get(context.Background(), "b1"); !errors.Is(err, boom) {
		t.Fatalf("want loader error, got %v", err)
	}
	if c.Len() != 0 {
		t.Fatalf("errors must not populate the cache")
	}
}
