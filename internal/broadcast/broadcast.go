// Package broadcast delivers one message to every registered subscriber.
//
// Delivery is best-effort and at-least-once: each recipient is attempted
// exactly once per broadcast, failures are recorded and never abort the
// sweep, and nothing is retried here.
package broadcast

import (
	"context"
	"time"

	"golang.org/x/time/rate"

	kit "herald/internal/transport"
	logx "herald/pkg/logx"
)

type Config struct {
	// RatePerSec paces outgoing sends client-side. <=0 falls back to 10.
	RatePerSec int
}

// Delivery is the outcome of a single recipient send.
type Delivery struct {
	ChatID int64
	Err    error
}

// Summary aggregates per-recipient outcomes of one broadcast.
type Summary struct {
	Sent   int
	Failed int

	// Failures holds the failed deliveries (capped; counts stay exact).
	Failures []Delivery
}

const maxRecordedFailures = 200

type Engine struct {
	log     logx.Logger
	adapter kit.Adapter
	limiter *rate.Limiter
}

func New(cfg Config, adapter kit.Adapter, log logx.Logger) *Engine {
	if log.IsZero() {
		log = logx.Nop()
	}
	rps := cfg.RatePerSec
	if rps <= 0 {
		rps = 10
	}
	return &Engine{
		log:     log,
		adapter: adapter,
		limiter: rate.NewLimiter(rate.Limit(rps), rps),
	}
}

// sendOptions renders rich text and suppresses link previews on every
// broadcast and registration reply.
func sendOptions() *kit.SendOptions {
	return &kit.SendOptions{ParseMode: "HTML", DisablePreview: true}
}

// SendTo delivers text to a single recipient (registration replies).
func (e *Engine) SendTo(ctx context.Context, chatID int64, text string) error {
	return e.adapter.SendText(ctx, kit.ChatTarget{ChatID: chatID}, text, sendOptions())
}

// Broadcast sends text to every target independently. A failed delivery is
// counted and the sweep continues with the next target; order across targets
// is unspecified.
func (e *Engine) Broadcast(ctx context.Context, text string, targets []int64) Summary {
	var sum Summary
	if len(targets) == 0 {
		e.log.Warn("no subscribers to send message to")
		return sum
	}

	start := time.Now()
	for _, chatID := range targets {
		if err := e.sendOne(ctx, chatID, text); err != nil {
			sum.Failed++
			if len(sum.Failures) < maxRecordedFailures {
				sum.Failures = append(sum.Failures, Delivery{ChatID: chatID, Err: err})
			}
			e.log.Warn("broadcast send failed", logx.Int64("chat_id", chatID), logx.Err(err))
			continue
		}
		sum.Sent++
		e.log.Debug("broadcast send ok", logx.Int64("chat_id", chatID))
	}

	fields := []logx.Field{
		logx.Int("sent", sum.Sent),
		logx.Int("failed", sum.Failed),
		logx.Duration("took", time.Since(start)),
	}
	if sum.Failed > 0 {
		e.log.Warn("broadcast finished with failures", fields...)
	} else {
		e.log.Info("broadcast finished", fields...)
	}
	return sum
}

func (e *Engine) sendOne(ctx context.Context, chatID int64, text string) error {
	if e.limiter != nil {
		if err := e.limiter.Wait(ctx); err != nil {
			return err
		}
	}
	return e.adapter.SendText(ctx, kit.ChatTarget{ChatID: chatID}, text, sendOptions())
}
