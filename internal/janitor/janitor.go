// Package janitor prunes old conversation history on a cron schedule.
package janitor

import (
	"context"
	"fmt"
	"time"

	"github.com/adhocore/gronx"
	"go.uber.org/zap"
)

const (
	DefaultSchedule  = "0 4 * * *"
	DefaultRetention = 30 * 24 * time.Hour
)

// Pruner deletes history older than the given age.
type Pruner interface {
	PruneOlderThan(ctx context.Context, age time.Duration) (int64, error)
}

type Janitor struct {
	pruner    Pruner
	schedule  string
	retention time.Duration
	logger    *zap.Logger

	now   func() time.Time
	after func(d time.Duration) <-chan time.Time
}

func New(pruner Pruner, schedule string, retention time.Duration, logger *zap.Logger) (*Janitor, error) {
	if schedule == "" {
		schedule = DefaultSchedule
	}
	if retention <= 0 {
		retention = DefaultRetention
	}
	if !gronx.New().IsValid(schedule) {
		return nil, fmt.Errorf("invalid cron schedule %q", schedule)
	}

	return &Janitor{
		pruner:    pruner,
		schedule:  schedule,
		retention: retention,
		logger:    logger,
		now:       time.Now,
		after:     time.After,
	}, nil
}

// Run prunes at every tick of the schedule until ctx is cancelled.
func (j *Janitor) Run(ctx context.Context) error {
	j.logger.Info("Janitor started",
		zap.String("schedule", j.schedule),
		zap.Duration("retention", j.retention))

	for {
		next, err := gronx.NextTickAfter(j.schedule, j.now(), false)
		if err != nil {
			return fmt.Errorf("compute next tick: %w", err)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-j.after(next.Sub(j.now())):
			j.RunOnce(ctx)
		}
	}
}

// RunOnce deletes every message older than the retention window.
func (j *Janitor) RunOnce(ctx context.Context) {
	removed, err := j.pruner.PruneOlderThan(ctx, j.retention)
	if err != nil {
		j.logger.Error("Failed to prune history", zap.Error(err))
		return
	}
	j.logger.Info("History pruned", zap.Int64("removed", removed))
}
