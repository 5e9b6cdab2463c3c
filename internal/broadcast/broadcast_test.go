package broadcast

import (
	"context"
	"errors"
	"sync"
	"testing"

	kit "herald/internal/transport"
	logx "herald/pkg/logx"
)

type fakeAdapter struct {
	mu      sync.Mutex
	sent    []int64
	failFor map[int64]bool
}

func (f *fakeAdapter) Start(ctx context.Context, out chan<- kit.Update) error { return nil }
func (f *fakeAdapter) Stop(ctx context.Context) error                         { return nil }

func (f *fakeAdapter) SendText(ctx context.Context, to kit.ChatTarget, text string, opt *kit.SendOptions) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, to.ChatID)
	if f.failFor[to.ChatID] {
		return errors.New("send failed")
	}
	return nil
}

func (f *fakeAdapter) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

func newTestEngine(ad kit.Adapter) *Engine {
	// High rate so the limiter never delays the test.
	return New(Config{RatePerSec: 1000}, ad, logx.Nop())
}

func TestBroadcastCompleteness(t *testing.T) {
	t.Parallel()
	ad := &fakeAdapter{failFor: map[int64]bool{2: true, 4: true}}
	e := newTestEngine(ad)

	targets := []int64{1, 2, 3, 4, 5}
	sum := e.Broadcast(context.Background(), "hello", targets)

	if sum.Sent != 3 || sum.Failed != 2 {
		t.Fatalf("summary = (%d, %d), want (3, 2)", sum.Sent, sum.Failed)
	}
	if got := ad.calls(); got != len(targets) {
		t.Fatalf("gateway calls = %d, want exactly %d (no early termination, no retry)", got, len(targets))
	}
	if len(sum.Failures) != 2 {
		t.Fatalf("recorded failures = %d, want 2", len(sum.Failures))
	}
	for _, d := range sum.Failures {
		if !ad.failFor[d.ChatID] {
			t.Fatalf("unexpected failure recorded for chat %d", d.ChatID)
		}
		if d.Err == nil {
			t.Fatal("failure recorded with nil error")
		}
	}
}

func TestBroadcastEmptySet(t *testing.T) {
	t.Parallel()
	ad := &fakeAdapter{}
	e := newTestEngine(ad)

	sum := e.Broadcast(context.Background(), "hello", nil)
	if sum.Sent != 0 || sum.Failed != 0 {
		t.Fatalf("summary = (%d, %d), want (0, 0)", sum.Sent, sum.Failed)
	}
	if got := ad.calls(); got != 0 {
		t.Fatalf("gateway calls = %d, want 0 for empty subscriber set", got)
	}
}

func TestBroadcastAllFail(t *testing.T) {
	t.Parallel()
	ad := &fakeAdapter{failFor: map[int64]bool{1: true, 2: true}}
	e := newTestEngine(ad)

	sum := e.Broadcast(context.Background(), "hello", []int64{1, 2})
	if sum.Sent != 0 || sum.Failed != 2 {
		t.Fatalf("summary = (%d, %d), want (0, 2)", sum.Sent, sum.Failed)
	}
}
