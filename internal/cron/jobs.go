package cron

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/flemzord/brandai/internal/provider"
)

// Tester is the subset of chat.Router needed by the probe job.
type Tester interface {
	TestDue(ctx context.Context, credentials map[provider.ID]string) map[provider.ID]bool
}

// DefaultProbeSchedule is used when ProbeJob.ScheduleExpr is empty.
const DefaultProbeSchedule = "@every 1m"

// ProbeJob tests every provider whose health board entry is due. Providers
// in cooldown are skipped until their backoff expires.
type ProbeJob struct {
	Tester       Tester
	Logger       *slog.Logger
	ScheduleExpr string // empty = DefaultProbeSchedule
}

// Compile-time interface check.
var _ Job = (*ProbeJob)(nil)

// Name implements Job.
func (j *ProbeJob) Name() string { return "provider_probe" }

// Schedule implements Job.
func (j *ProbeJob) Schedule() string {
	if j.ScheduleExpr != "" {
		return j.ScheduleExpr
	}
	return DefaultProbeSchedule
}

// Run probes the due providers using their configured credentials.
func (j *ProbeJob) Run(ctx context.Context) error {
	if ctx.Err() != nil {
		return fmt.Errorf("cron: provider probe cancelled: %w", ctx.Err())
	}
	results := j.Tester.TestDue(ctx, nil)

	var down []provider.ID
	for id, ok := range results {
		if !ok {
			down = append(down, id)
		}
	}
	if len(down) > 0 {
		j.Logger.Warn("cron: providers unreachable", "providers", down, "probed", len(results))
	} else {
		j.Logger.Debug("cron: providers probed", "probed", len(results))
	}
	return nil
}
