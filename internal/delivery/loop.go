package delivery

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
)

// RunLoop triggers a run immediately and then on every interval tick until
// ctx is cancelled. Run errors (discovery failures) are logged and the loop
// keeps going; the next tick is the retry policy.
func (d *Deliverer) RunLoop(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		return errors.New("delivery: interval must be > 0")
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	d.logger.Info("delivery loop started", zap.Duration("interval", interval))

	d.tick(ctx)

	for {
		select {
		case <-ctx.Done():
			d.logger.Info("delivery loop stopping")
			return nil
		case <-ticker.C:
			d.tick(ctx)
		}
	}
}

func (d *Deliverer) tick(ctx context.Context) {
	if _, err := d.Run(ctx); err != nil && ctx.Err() == nil {
		d.logger.Error("delivery run failed", zap.Error(err))
	}
}
