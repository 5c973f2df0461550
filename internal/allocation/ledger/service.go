// Package ledger keeps contract counters consistent. Every mutation locks the
// contract row for the lifetime of its transaction.
package ledger

import (
	"context"
	"sync/atomic"
	"time"

	"leadrouter_backend/internal/allocation/domain"
	"leadrouter_backend/internal/allocation/repository"
	"leadrouter_backend/platform/logger"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

const (
	// DefaultAutoCloseGrace is how long a complete contract stays open for returns.
	DefaultAutoCloseGrace = 7 * 24 * time.Hour

	sweepBatchSize   = 100
	sweepConcurrency = 4
)

// AutoCloseScheduler defers the close of a contract to a background worker.
type AutoCloseScheduler interface {
	ScheduleAutoClose(ctx context.Context, contractID uuid.UUID, at time.Time) error
}

// Config holds the ledger settings.
type Config struct {
	AutoCloseGrace time.Duration
}

// Service mutates contract counters.
type Service struct {
	repo      repository.Repository
	cfg       Config
	scheduler AutoCloseScheduler
	log       *logger.Logger
	now       func() time.Time
}

// New creates a ledger. scheduler may be nil, in which case only the periodic
// sweep closes contracts.
func New(repo repository.Repository, cfg Config, scheduler AutoCloseScheduler, log *logger.Logger) *Service {
	if cfg.AutoCloseGrace <= 0 {
		cfg.AutoCloseGrace = DefaultAutoCloseGrace
	}
	return &Service{repo: repo, cfg: cfg, scheduler: scheduler, log: log, now: time.Now}
}

// WithClock replaces the time source.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// Now returns the ledger's current time.
func (s *Service) Now() time.Time {
	return s.now()
}

// Delivery is the committed effect of one delivered lead.
type Delivery struct {
	Contract domain.Contract
	Outcome  domain.DeliveryOutcome
}

// IncrementDelivered counts one delivered lead against the contract.
func (s *Service) IncrementDelivered(ctx context.Context, contractID uuid.UUID) (domain.Contract, error) {
	var delivery Delivery
	err := s.repo.InTx(ctx, func(tx repository.Tx) error {
		var err error
		delivery, err = s.IncrementDeliveredTx(ctx, tx, contractID)
		return err
	})
	if err != nil {
		return domain.Contract{}, err
	}

	s.AfterDelivery(ctx, delivery)
	return delivery.Contract, nil
}

// IncrementDeliveredTx is IncrementDelivered inside the caller's transaction.
// Callers must pass the result to AfterDelivery once the transaction commits.
func (s *Service) IncrementDeliveredTx(ctx context.Context, tx repository.Tx, contractID uuid.UUID) (Delivery, error) {
	contract, err := tx.LockContract(ctx, contractID)
	if err != nil {
		return Delivery{}, err
	}

	outcome, err := contract.RegisterDelivery(s.now(), s.cfg.AutoCloseGrace)
	if err != nil {
		return Delivery{}, err
	}
	if err := tx.UpdateContract(ctx, contract); err != nil {
		return Delivery{}, err
	}
	return Delivery{Contract: contract, Outcome: outcome}, nil
}

// AfterDelivery logs the delivery and schedules the deferred close. A failed
// enqueue is only logged; the periodic sweep closes the contract later.
func (s *Service) AfterDelivery(ctx context.Context, d Delivery) {
	c := d.Contract
	switch d.Outcome {
	case domain.DeliveryCompleted:
		s.logContract(ctx, "contract_completed", c)
	case domain.DeliveryAutoCloseScheduled:
		s.logContract(ctx, "contract_auto_close_scheduled", c)
		if s.scheduler != nil && c.AutoCloseAt != nil {
			if err := s.scheduler.ScheduleAutoClose(ctx, c.ID, *c.AutoCloseAt); err != nil {
				s.log.WithContext(ctx).Warn("failed to schedule contract auto-close",
					"contract_id", c.ID.String(), "error", err)
			}
		}
	default:
		s.logContract(ctx, "lead_delivered", c)
	}
}

// ProcessReturn consumes one unit of warranty allowance. It reports false,
// without changing anything, when the allowance is exhausted.
func (s *Service) ProcessReturn(ctx context.Context, contractID, leadID uuid.UUID) (bool, error) {
	var (
		contract domain.Contract
		accepted bool
	)
	err := s.repo.InTx(ctx, func(tx repository.Tx) error {
		var err error
		contract, accepted, err = s.ProcessReturnTx(ctx, tx, contractID)
		return err
	})
	if err != nil {
		return false, err
	}

	if accepted {
		s.log.WithContext(ctx).Info("lead return processed", "contract_id", contractID.String(), "lead_id", leadID.String())
		s.logReturn(ctx, contract)
	}
	return accepted, nil
}

// ProcessReturnTx is ProcessReturn inside the caller's transaction.
func (s *Service) ProcessReturnTx(ctx context.Context, tx repository.Tx, contractID uuid.UUID) (domain.Contract, bool, error) {
	contract, err := tx.LockContract(ctx, contractID)
	if err != nil {
		return domain.Contract{}, false, err
	}
	if !contract.RegisterReturn(s.now()) {
		return contract, false, nil
	}
	if err := tx.UpdateContract(ctx, contract); err != nil {
		return domain.Contract{}, false, err
	}
	return contract, true, nil
}

func (s *Service) logReturn(ctx context.Context, c domain.Contract) {
	if c.IsActive {
		s.logContract(ctx, "warranty_return_registered", c)
		return
	}
	s.logContract(ctx, "contract_completed", c)
}

// CloseIfDue completes the contract when its grace period is over. It reports
// whether the contract was closed by this call.
func (s *Service) CloseIfDue(ctx context.Context, contractID uuid.UUID) (bool, error) {
	var (
		contract domain.Contract
		closed   bool
	)
	err := s.repo.InTx(ctx, func(tx repository.Tx) error {
		var err error
		contract, err = tx.LockContract(ctx, contractID)
		if err != nil {
			return err
		}
		now := s.now()
		if !contract.AutoCloseDue(now) {
			return nil
		}
		contract.Complete(now)
		closed = true
		return tx.UpdateContract(ctx, contract)
	})
	if err != nil {
		return false, err
	}

	if closed {
		s.logContract(ctx, "contract_auto_closed", contract)
	}
	return closed, nil
}

// CloseDueContracts closes every active contract whose auto-close time has
// passed and returns how many were closed. Failures on individual contracts
// are logged and retried on the next sweep.
func (s *Service) CloseDueContracts(ctx context.Context) (int, error) {
	var total int
	for {
		ids, err := s.repo.ListDueContractIDs(ctx, s.now(), sweepBatchSize)
		if err != nil {
			return total, err
		}
		if len(ids) == 0 {
			return total, nil
		}

		var closed atomic.Int64
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(sweepConcurrency)
		for _, id := range ids {
			id := id
			g.Go(func() error {
				ok, err := s.CloseIfDue(gctx, id)
				if err != nil {
					if ctxErr := gctx.Err(); ctxErr != nil {
						return ctxErr
					}
					s.log.WithContext(gctx).Warn("auto-close failed", "contract_id", id.String(), "error", err)
					return nil
				}
				if ok {
					closed.Add(1)
				}
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return total + int(closed.Load()), err
		}

		total += int(closed.Load())
		if len(ids) < sweepBatchSize || closed.Load() == 0 {
			return total, nil
		}
	}
}

func (s *Service) logContract(ctx context.Context, event string, c domain.Contract) {
	s.log.WithContext(ctx).ContractEvent(event, c.ID.String(), c.LeadsDelivered, c.LeadsContracted, c.LeadsWarrantyUsed, c.IsActive)
}
