// Package worker rebuilds cached insights when the queue reports a change.
package worker

import (
	"context"

	"go.uber.org/zap"

	"membership/internal/queue"
)

// Refresher recomputes cached snapshots.
type Refresher interface {
	Refresh(ctx context.Context) error
}

// Run consumes q until ctx is done. Stale notifications that piled up while a
// refresh was running are folded into one. Failures are logged and skipped.
func Run(ctx context.Context, q queue.Queue, r Refresher, log *zap.Logger) error {
	if log == nil {
		log = zap.NewNop()
	}
	log = log.Named("worker")

	messages, err := q.Consume(ctx)
	if err != nil {
		return err
	}
	log.Info("worker started")
	for msg := range messages {
		if msg.Type != queue.TypeInsightsStale {
			log.Warn("skipping unknown message", zap.String("type", msg.Type))
			continue
		}
		folded := drain(messages)
		if err := r.Refresh(ctx); err != nil {
			if ctx.Err() != nil {
				break
			}
			log.Error("refresh failed", zap.String("reason", msg.Reason), zap.Error(err))
			continue
		}
		log.Info("insights refreshed", zap.String("reason", msg.Reason), zap.Int("folded", folded))
	}
	log.Info("worker stopped")
	return nil
}

// drain discards whatever is immediately available and reports how much.
func drain(messages <-chan queue.Message) int {
	n := 0
	for {
		select {
		case _, ok := <-messages:
			if !ok {
				return n
			}
			n++
		default:
			return n
		}
	}
}
