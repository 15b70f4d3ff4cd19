package queue

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"testing"
	"time"
)

func env(botID string, n int) UpdateEnvelope {
	return UpdateEnvelope{
		BotID:      botID,
		RawUpdate:  json.RawMessage(`{"update_id":` + strconv.Itoa(n) + `}`),
		EnqueuedAt: time.Now().UTC(),
	}
}

func TestPushPopFIFO(t *testing.T) {
	q := New(8)
	for i := 0; i < 5; i++ {
		if err := q.Push(env("b1", i)); err != nil {
			t.Fatalf("push %d: %v", i, err)
		}
	}
	if q.Len() != 5 {
		t.Fatalf("len = %d, want 5", q.Len())
	}
	for i := 0; i < 5; i++ {
		got, ok := q.Pop(context.Background())
		if !ok {
			t.Fatalf("pop %d returned no envelope", i)
		}
		want := `{"update_id":` + strconv.Itoa(i) + `}`
		if string(got.RawUpdate) != want {
			t.Fatalf("pop %d out of order: got %s, want %s", i, got.RawUpdate, want)
		}
	}
}

func TestPushFullFailsFast(t *testing.T) {
	q := New(2)
	if err := q.Push(env("b1", 0)); err != nil {
		t.Fatalf("push: %v", err)
	}
	if err := q.Push(env("b1", 1)); err != nil {
		t.Fatalf("push: %v", err)
	}

	start := time.Now()
	err := q.Push(env("b1", 2))
	if !errors.Is(err, ErrFull) {
		t.Fatalf("push on full queue: got %v, want ErrFull", err)
	}
	if elapsed := time.Since(start); elapsed > 50*time.Millisecond {
		t.Fatalf("push on full queue blocked for %v", elapsed)
	}
}

func TestPopBlocksUntilPush(t *testing.T) {
	q := New(4)
	done := make(chan UpdateEnvelope, 1)
	go func() {
		e, ok := q.Pop(context.Background())
		if ok {
			done <- e
		}
	}()

	time.Sleep(10 * time.Millisecond)
	if err := q.Push(env("b1", 7)); err != nil {
		t.Fatalf("push: %v", err)
	}

	select {
	case e := <-done:
		if e.BotID != "b1" {
			t.Fatalf("unexpected envelope: %+v", e)
		}
	case <-time.After(time.Second):
		t.Fatalf("pop never woke up after push")
	}
}

func TestPopCancelled(t *testing.T) {
	q := New(4)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, ok := q.Pop(ctx); ok {
		t.Fatalf("pop on cancelled context returned an envelope")
	}
}

func TestCloseRejectsPushKeepsBuffered(t *testing.T) {
	q := New(4)
	if err := q.Push(env("b1", 0)); err != nil {
		t.Fatalf("push: %v", err)
	}

	q.Close()
	q.Close() // idempotent

	if err := q.Push(env("b1", 1)); !errors.Is(err, ErrClosed) {
		t.Fatalf("push after close: got %v, want ErrClosed", err)
	}
	if _, ok := q.TryPop(); !ok {
		t.Fatalf("buffered envelope lost on close")
	}
	if _, ok := q.TryPop(); ok {
		t.Fatalf("phantom envelope after drain")
	}
}
