package purge

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Purger removes expired messages and reports how many it removed.
type Purger interface {
	Purge(ctx context.Context) (int64, error)
}

// Sweeper calls a Purger on a fixed interval. It needs no coordination with
// other sweepers; concurrent purges are safe.
type Sweeper struct {
	purger   Purger
	interval time.Duration
	log      *zap.Logger
}

func NewSweeper(p Purger, interval time.Duration, log *zap.Logger) *Sweeper {
	if log == nil {
		log = zap.NewNop()
	}
	return &Sweeper{purger: p, interval: interval, log: log}
}

// Run sweeps once immediately and then every interval until ctx is done.
// Purge failures are logged and the loop carries on.
func (s *Sweeper) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.sweep(ctx)
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

func (s *Sweeper) sweep(ctx context.Context) {
	removed, err := s.purger.Purge(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		s.log.Error("purge failed", zap.Error(err))
		return
	}
	if removed > 0 {
		s.log.Info("purged expired messages", zap.Int64("removed", removed))
	}
}
