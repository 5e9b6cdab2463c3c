package telegram

import (
	"context"
	"strings"
	"testing"
	"time"

	kit "herald/internal/transport"
	logx "herald/pkg/logx"
)

// newIdleAdapter builds an adapter without dialing Telegram. The internal
// goroutines nil-check the bot, so the lifecycle is exercisable offline.
func newIdleAdapter() *Adapter {
	a := &Adapter{log: logx.Nop()}
	var nilOut chan<- kit.Update
	a.out.Store(nilOut)
	return a
}

func TestAdapterStopReleasesWithinGrace(t *testing.T) {
	t.Parallel()
	a := newIdleAdapter()

	out := make(chan kit.Update, 1)
	if err := a.Start(context.Background(), out); err != nil {
		t.Fatalf("Start: %v", err)
	}

	// The stop_on_cancel goroutine is the only owner of the gateway stop
	// call; Stop just cancels and waits, so it must return promptly.
	done := make(chan error, 1)
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		done <- a.Stop(ctx)
	}()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Stop: %v", err)
		}
	case <-time.After(4 * time.Second):
		t.Fatal("Stop did not release within the grace window")
	}

	// Stop is idempotent once shut down.
	if err := a.Stop(context.Background()); err != nil {
		t.Fatalf("second Stop: %v", err)
	}
}

func TestAdapterSendUpdateDropsWhenFull(t *testing.T) {
	t.Parallel()
	a := newIdleAdapter()

	out := make(chan kit.Update, 1)
	a.out.Store((chan<- kit.Update)(out))

	up := kit.Update{Kind: kit.UpdateRegister, Register: &kit.Register{ChatID: 1}}
	a.sendUpdate(up)
	a.sendUpdate(up) // channel full: dropped, never blocks

	if got := len(out); got != 1 {
		t.Fatalf("delivered updates = %d, want 1", got)
	}
	if a.droppedUpdates != 1 {
		t.Fatalf("dropped counter = %d, want 1", a.droppedUpdates)
	}
}

func TestSplitTelegramText(t *testing.T) {
	t.Parallel()
	short := "hello"
	if got := splitTelegramText(short, 10); len(got) != 1 || got[0] != short {
		t.Fatalf("short text = %v, want single unchanged chunk", got)
	}

	long := strings.Repeat("line one\n", 50)
	chunks := splitTelegramText(long, 100)
	if len(chunks) < 2 {
		t.Fatalf("chunks = %d, want a split for text over the limit", len(chunks))
	}
	var rejoined []string
	for _, c := range chunks {
		if len([]rune(c)) > 100 {
			t.Fatalf("chunk exceeds limit: %d runes", len([]rune(c)))
		}
		rejoined = append(rejoined, c)
	}
	// Newline-preferring split keeps every line intact.
	for _, line := range strings.Split(strings.Join(rejoined, "\n"), "\n") {
		if line != "" && line != "line one" {
			t.Fatalf("split broke a line: %q", line)
		}
	}
}
