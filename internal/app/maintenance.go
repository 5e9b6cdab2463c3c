package app

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"

	logx "herald/pkg/logx"
)

// startMaintenance schedules the audit retention prune. Runs only when the
// audit store is enabled and a retention window is configured.
func (a *App) startMaintenance() {
	if a.audit == nil || a.retention <= 0 {
		return
	}

	spec := a.cfg.PruneSchedule()
	c := cron.New()
	_, err := c.AddFunc(spec, func() {
		cutoff := time.Now().Add(-a.retention)
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		n, err := a.audit.PruneAudit(ctx, cutoff)
		if err != nil {
			a.log.Warn("audit prune failed", logx.Err(err))
			return
		}
		a.log.Info("audit pruned", logx.Any("dropped", n), logx.Time("cutoff", cutoff))
	})
	if err != nil {
		a.log.Warn("invalid prune schedule; audit retention disabled", logx.String("spec", spec), logx.Err(err))
		return
	}

	c.Start()
	a.stopCron = func() {
		stopCtx := c.Stop()
		select {
		case <-stopCtx.Done():
		case <-time.After(2 * time.Second):
		}
	}
	a.log.Info("audit retention scheduled", logx.String("spec", spec), logx.Duration("retention", a.retention))
}
