package bot

import (
	"context"
	"errors"
	"time"

	"github.com/xaenox/mimic-bot/internal/style"
	"go.uber.org/zap"
)

// maybeLearn refreshes the style profile when the learning interval has
// elapsed or the own-message count hits a batch boundary.
func (o *Orchestrator) maybeLearn(ctx context.Context) {
	settings := o.auth.Settings()
	if !settings.AutoLearn {
		return
	}

	interval := defaultLearningInterval
	if settings.AutoLearningInterval > 0 {
		interval = time.Duration(settings.AutoLearningInterval) * time.Millisecond
	}

	count, err := o.memory.CountOwnMessages(ctx)
	if err != nil {
		o.logger.Error("Failed to count own messages", zap.Error(err))
		return
	}
	profile, err := o.memory.GetStyleProfile(ctx)
	if err != nil {
		o.logger.Error("Failed to get style profile", zap.Error(err))
		return
	}

	elapsed := o.now().Sub(profile.UpdatedAt)
	batchDue := count > 0 && count%o.opts.LearnBatch == 0
	if elapsed <= interval && !batchDue {
		return
	}

	o.logger.Info("Refreshing style profile",
		zap.Int64("own_messages", count),
		zap.Duration("since_last", elapsed))

	if _, err := o.learner.Analyze(ctx); err != nil {
		if errors.Is(err, style.ErrInsufficientData) {
			return
		}
		o.logger.Error("Style analysis failed", zap.Error(err))
	}
}
