package scheduler

import (
	"context"
	"time"

	"leadrouter_backend/platform/logger"
)

const defaultAutoCloseSweepInterval = 15 * time.Minute

// ContractSweeper closes every contract whose auto-close time has passed.
type ContractSweeper interface {
	CloseDueContracts(ctx context.Context) (int, error)
}

// AutoCloseSweeper periodically closes due contracts. It backs up the per
// contract tasks for deployments that run without Redis or lost a task.
type AutoCloseSweeper struct {
	sweeper  ContractSweeper
	log      *logger.Logger
	interval time.Duration
}

func NewAutoCloseSweeper(sweeper ContractSweeper, log *logger.Logger, interval time.Duration) *AutoCloseSweeper {
	if interval <= 0 {
		interval = defaultAutoCloseSweepInterval
	}
	return &AutoCloseSweeper{
		sweeper:  sweeper,
		log:      log,
		interval: interval,
	}
}

func (s *AutoCloseSweeper) Run(ctx context.Context) {
	if s == nil || s.sweeper == nil {
		return
	}

	s.sweep(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

func (s *AutoCloseSweeper) sweep(ctx context.Context) {
	closed, err := s.sweeper.CloseDueContracts(ctx)
	if err != nil {
		if ctx.Err() == nil {
			s.log.Warn("auto-close sweep failed", "error", err, "closed", closed)
		}
		return
	}

	if closed > 0 {
		s.log.Info("auto-close sweep closed contracts", "closed", closed)
	}
}
