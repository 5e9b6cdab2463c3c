// Package poller runs the mailbox consumption loop: detect a pending entry,
// persist it as the last message, broadcast it, all on a fixed interval.
package poller

import (
	"context"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"herald/internal/broadcast"
	"herald/internal/storage"
	"herald/internal/store"
	logx "herald/pkg/logx"
)

type Config struct {
	// Interval between mailbox checks. <=0 falls back to 1s.
	Interval time.Duration
}

// Broadcaster is the slice of the broadcast engine the poller needs.
type Broadcaster interface {
	Broadcast(ctx context.Context, text string, targets []int64) broadcast.Summary
}

// Targets yields the current recipient snapshot.
type Targets interface {
	IDs() []int64
}

// Poller is the mailbox's single consumer. Exactly one instance runs per
// daemon, which is what keeps the single-slot hand-off race-free.
type Poller struct {
	log logx.Logger
	cfg Config

	mailbox *store.Mailbox
	last    *store.LastMessage
	subs    Targets
	engine  Broadcaster
	audit   storage.Store // may be nil
}

func New(cfg Config, mailbox *store.Mailbox, last *store.LastMessage, subs Targets, engine Broadcaster, audit storage.Store, log logx.Logger) *Poller {
	if log.IsZero() {
		log = logx.Nop()
	}
	if cfg.Interval <= 0 {
		cfg.Interval = time.Second
	}
	return &Poller{
		log:     log,
		cfg:     cfg,
		mailbox: mailbox,
		last:    last,
		subs:    subs,
		engine:  engine,
		audit:   audit,
	}
}

// Run polls the mailbox until ctx is cancelled. Cancellation is honored at
// the wait boundary only: a cycle that already picked up a message finishes
// its broadcast.
//
// The interval tick is the correctness guarantee; an fsnotify watch on the
// mailbox directory merely wakes the loop early when the marker lands. Lost
// events cost at most one interval of latency.
func (p *Poller) Run(ctx context.Context) error {
	ticker := time.NewTicker(p.cfg.Interval)
	defer ticker.Stop()

	events, errs, closeWatch := p.watchMailbox()
	defer closeWatch()

	base := filepath.Base(p.mailbox.Path())

	p.log.Info("poll loop started", logx.Duration("interval", p.cfg.Interval))
	for {
		select {
		case <-ctx.Done():
			p.log.Info("poll loop stopped")
			return nil
		case <-ticker.C:
		case ev, ok := <-events:
			if !ok {
				events = nil
				continue
			}
			if !strings.EqualFold(filepath.Base(ev.Name), base) {
				continue
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) == 0 {
				continue
			}
		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			if err != nil {
				p.log.Warn("mailbox watch error", logx.Err(err))
			}
			continue
		}

		p.cycle(ctx)
	}
}

// watchMailbox sets up the optional fsnotify wake-up. Failure to establish
// the watch is not fatal: the loop degrades to pure interval polling.
func (p *Poller) watchMailbox() (<-chan fsnotify.Event, <-chan error, func()) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		p.log.Warn("mailbox watch unavailable; polling only", logx.Err(err))
		return nil, nil, func() {}
	}
	dir := filepath.Dir(p.mailbox.Path())
	if err := w.Add(dir); err != nil {
		p.log.Warn("mailbox watch add failed; polling only", logx.String("dir", dir), logx.Err(err))
		_ = w.Close()
		return nil, nil, func() {}
	}
	p.log.Debug("mailbox watcher started", logx.String("dir", dir))
	return w.Events, w.Errors, func() { _ = w.Close() }
}

// cycle performs one mailbox check. All failures inside a cycle are logged
// and swallowed; only cancellation stops the loop.
func (p *Poller) cycle(ctx context.Context) {
	text, ok := p.mailbox.TakePending()
	if !ok {
		return
	}

	p.log.Info("pending message detected", logx.String("preview", preview(text, 50)))

	// Persist before broadcasting so late registrants see this message even
	// if the process dies mid-sweep.
	if err := p.last.Write(text); err != nil {
		p.log.Error("last message write failed; broadcasting anyway", logx.Err(err))
	}

	start := time.Now()
	sum := p.engine.Broadcast(ctx, text, p.subs.IDs())

	if p.audit != nil {
		e := storage.AuditEntry{
			At:     start,
			Action: storage.ActionBroadcast,
			OK:     sum.Sent,
			Fail:   sum.Failed,
			TookMS: time.Since(start).Milliseconds(),
		}
		if err := p.audit.AppendAudit(ctx, e); err != nil {
			p.log.Warn("audit append failed", logx.Err(err))
		}
	}
}

func preview(s string, maxN int) string {
	rs := []rune(s)
	if len(rs) <= maxN {
		return s
	}
	return string(rs[:maxN]) + "..."
}
