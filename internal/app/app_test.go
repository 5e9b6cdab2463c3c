package app

import (
	"context"
	"sort"
	"sync"
	"testing"
	"time"

	"herald/internal/broadcast"
	"herald/internal/config"
	"herald/internal/poller"
	"herald/internal/store"
	kit "herald/internal/transport"
	logx "herald/pkg/logx"
)

type sentText struct {
	chatID int64
	text   string
	opt    *kit.SendOptions
}

type fakeAdapter struct {
	mu   sync.Mutex
	sent []sentText
}

func (f *fakeAdapter) Start(ctx context.Context, out chan<- kit.Update) error { return nil }
func (f *fakeAdapter) Stop(ctx context.Context) error                         { return nil }

func (f *fakeAdapter) SendText(ctx context.Context, to kit.ChatTarget, text string, opt *kit.SendOptions) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, sentText{chatID: to.ChatID, text: text, opt: opt})
	return nil
}

func (f *fakeAdapter) deliveries() []sentText {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]sentText(nil), f.sent...)
}

// newTestApp wires a full daemon against a fake gateway and a temp data dir.
// The real constructor dials Telegram, so the object is assembled directly.
func newTestApp(t *testing.T) (*App, *fakeAdapter) {
	t.Helper()
	dir := t.TempDir()
	cfg := &config.Config{}
	cfg.Data.Dir = dir

	log := logx.Nop()
	subs := store.OpenSubscribers(cfg.SubscribersPath(), log)
	last := store.NewLastMessage(cfg.LastMessagePath(), log)
	mailbox := store.NewMailbox(cfg.MailboxPath(), log)

	ad := &fakeAdapter{}
	engine := broadcast.New(broadcast.Config{RatePerSec: 1000}, ad, log)
	poll := poller.New(poller.Config{Interval: 10 * time.Millisecond},
		mailbox, last, subs, engine, nil, log)

	a := &App{
		cfg:     cfg,
		log:     log,
		subs:    subs,
		last:    last,
		mailbox: mailbox,
		adapter: ad,
		engine:  engine,
		poll:    poll,
		updates: make(chan kit.Update, 64),
	}
	return a, ad
}

func waitFor(t *testing.T, d time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(d)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met in time")
}

func TestDaemonLifecycle(t *testing.T) {
	t.Parallel()
	a, ad := newTestApp(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := a.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer func() {
		stopCtx, stopCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer stopCancel()
		if err := a.Stop(stopCtx); err != nil {
			t.Fatalf("Stop: %v", err)
		}
	}()

	// First subscriber on a fresh daemon gets the default greeting.
	a.updates <- kit.Update{Kind: kit.UpdateRegister, Register: &kit.Register{ChatID: 42, FromUsername: "alice"}}
	waitFor(t, 2*time.Second, func() bool { return len(ad.deliveries()) == 1 })

	got := ad.deliveries()
	if got[0].chatID != 42 || got[0].text != store.DefaultGreeting {
		t.Fatalf("greeting = (%d, %q), want (42, default greeting)", got[0].chatID, got[0].text)
	}
	if got[0].opt == nil || got[0].opt.ParseMode != "HTML" || !got[0].opt.DisablePreview {
		t.Fatalf("send options = %+v, want HTML with preview disabled", got[0].opt)
	}
	if !a.subs.Contains(42) {
		t.Fatal("chat 42 not registered")
	}

	// An operator enqueue reaches the live subscriber on the next poll tick.
	if err := a.mailbox.Enqueue("Hello <b>world</b>"); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	waitFor(t, 2*time.Second, func() bool { return len(ad.deliveries()) == 2 })

	got = ad.deliveries()
	if got[1].chatID != 42 || got[1].text != "Hello <b>world</b>" {
		t.Fatalf("broadcast = (%d, %q)", got[1].chatID, got[1].text)
	}

	// A later subscriber catches up via the last-message record.
	a.updates <- kit.Update{Kind: kit.UpdateRegister, Register: &kit.Register{ChatID: 7, FromUsername: "bob"}}
	waitFor(t, 2*time.Second, func() bool { return len(ad.deliveries()) == 3 })

	got = ad.deliveries()
	if got[2].chatID != 7 || got[2].text != "Hello <b>world</b>" {
		t.Fatalf("catch-up = (%d, %q), want last broadcast", got[2].chatID, got[2].text)
	}

	ids := a.subs.IDs()
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	if len(ids) != 2 || ids[0] != 7 || ids[1] != 42 {
		t.Fatalf("subscriber set = %v, want [7 42]", ids)
	}
}

func TestRegisterIdempotentAcrossUpdates(t *testing.T) {
	t.Parallel()
	a, ad := newTestApp(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := a.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer func() {
		stopCtx, stopCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer stopCancel()
		_ = a.Stop(stopCtx)
	}()

	for i := 0; i < 3; i++ {
		a.updates <- kit.Update{Kind: kit.UpdateRegister, Register: &kit.Register{ChatID: 99}}
	}
	waitFor(t, 2*time.Second, func() bool { return len(ad.deliveries()) == 3 })

	// Every /start gets a reply, but the set stays a set.
	if n := a.subs.Len(); n != 1 {
		t.Fatalf("subscriber count = %d, want 1", n)
	}
}
