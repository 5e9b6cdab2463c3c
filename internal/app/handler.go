package app

import (
	"context"
	"time"

	"herald/internal/storage"
	kit "herald/internal/transport"
	logx "herald/pkg/logx"
)

// dispatchLoop consumes gateway updates until the context ends. Registration
// events for different senders may interleave freely; there is no ordering
// contract between them.
func (a *App) dispatchLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case up, ok := <-a.updates:
			if !ok {
				return
			}
			switch up.Kind {
			case kit.UpdateRegister:
				if up.Register != nil {
					a.handleRegister(ctx, up.Register)
				}
			default:
				a.log.Debug("ignoring update", logx.String("kind", string(up.Kind)))
			}
		}
	}
}

// handleRegister registers the sender and replies with the last broadcast
// message (or the default greeting). A failed reply is logged but never rolls
// back the registration; a failed durable register sends no reply at all.
func (a *App) handleRegister(ctx context.Context, reg *kit.Register) {
	added, err := a.subs.Register(reg.ChatID)
	if err != nil {
		a.log.Error("subscriber register failed", logx.Int64("chat_id", reg.ChatID), logx.Err(err))
		return
	}
	if added {
		a.log.Info("new subscriber added", logx.Int64("chat_id", reg.ChatID), logx.String("username", reg.FromUsername))
		if a.audit != nil {
			e := storage.AuditEntry{
				At:     time.Now(),
				Action: storage.ActionRegister,
				ChatID: reg.ChatID,
				OK:     1,
			}
			if aerr := a.audit.AppendAudit(ctx, e); aerr != nil {
				a.log.Warn("audit append failed", logx.Err(aerr))
			}
		}
	}

	if err := a.engine.SendTo(ctx, reg.ChatID, a.last.Read()); err != nil {
		a.log.Warn("registration reply failed", logx.Int64("chat_id", reg.ChatID), logx.Err(err))
		return
	}
	a.log.Info("user subscribed", logx.Int64("chat_id", reg.ChatID), logx.Bool("new", added))
}
