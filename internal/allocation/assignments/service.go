// Package assignments creates deliveries of leads to stores and tracks the
// store-side status of each delivery.
package assignments

import (
	"context"
	"strings"

	"leadrouter_backend/internal/allocation/domain"
	"leadrouter_backend/internal/allocation/ledger"
	"leadrouter_backend/internal/allocation/matching"
	"leadrouter_backend/internal/allocation/repository"
	"leadrouter_backend/platform/apperr"
	"leadrouter_backend/platform/logger"

	"github.com/google/uuid"
)

// Config holds the assignment settings.
type Config struct {
	RestrictionMonths int
}

// Service manages assignment records.
type Service struct {
	repo   repository.Repository
	ledger *ledger.Service
	cfg    Config
	log    *logger.Logger
}

// New creates an assignment service. It shares the ledger's clock.
func New(repo repository.Repository, ledgerSvc *ledger.Service, cfg Config, log *logger.Logger) *Service {
	if cfg.RestrictionMonths < 1 {
		cfg.RestrictionMonths = matching.DefaultRestrictionMonths
	}
	return &Service{repo: repo, ledger: ledgerSvc, cfg: cfg, log: log}
}

// Create delivers the lead to the store. The lead must lie inside the radius
// of an active store location. The store's own active contract pays for the
// delivery, else its company's. The exclusivity window is re-checked
// under the contract lock so two concurrent deliveries cannot both pass it.
func (s *Service) Create(ctx context.Context, leadID, storeID uuid.UUID) (domain.Assignment, error) {
	const op = "assignments.Create"

	var (
		assignment domain.Assignment
		delivery   ledger.Delivery
	)
	err := s.repo.InTx(ctx, func(tx repository.Tx) error {
		now := s.ledger.Now()

		lead, err := tx.GetLead(ctx, leadID)
		if err != nil {
			return err
		}
		store, err := tx.GetStore(ctx, storeID)
		if err != nil {
			return err
		}
		if !store.Receivable() {
			return apperr.BusinessRule("store is not receiving leads").WithOp(op)
		}

		if _, placed := lead.Point(); !placed {
			return apperr.BusinessRule("lead has no coordinates").WithOp(op)
		}
		covered, err := tx.StoreCoversLead(ctx, lead.ID, store.ID)
		if err != nil {
			return err
		}
		if !covered {
			return apperr.BusinessRule("lead is outside the store's coverage area").WithOp(op)
		}

		// A complete contract keeps receiving until it closes; the ledger
		// pushes auto-close out on every delivery.
		contract, err := tx.LockActiveContractForStore(ctx, store)
		if err != nil {
			if apperr.Is(err, apperr.KindNotFound) {
				return apperr.BusinessRule("store has no active contract").WithOp(op)
			}
			return err
		}

		sent, err := tx.SentToStore(ctx, lead.ID, store.ID, matching.WindowStart(now, s.cfg.RestrictionMonths))
		if err != nil {
			return err
		}
		if sent {
			return apperr.BusinessRule("lead was already sent to this store within the restriction period").WithOp(op)
		}

		assignment = domain.NewAssignment(lead.ID, store.ID, contract.ID, false, now)
		if err := tx.InsertAssignment(ctx, assignment); err != nil {
			return err
		}
		if lead.Status == domain.LeadStatusNew {
			if err := tx.SetLeadStatus(ctx, lead.ID, domain.LeadStatusSent, now); err != nil {
				return err
			}
		}

		delivery, err = s.ledger.IncrementDeliveredTx(ctx, tx, contract.ID)
		return err
	})
	if err != nil {
		return domain.Assignment{}, err
	}

	s.log.WithContext(ctx).AssignmentEvent("lead_assigned", assignment.ID.String(), leadID.String(), storeID.String(), false)
	s.ledger.AfterDelivery(ctx, delivery)
	return assignment, nil
}

// UpdateStatus sets any known status. Transitions are not restricted.
func (s *Service) UpdateStatus(ctx context.Context, id uuid.UUID, status domain.AssignmentStatus, notes *string) (domain.Assignment, error) {
	if !status.Valid() {
		return domain.Assignment{}, apperr.Validation("invalid assignment status").WithOp("assignments.UpdateStatus")
	}
	if notes != nil {
		trimmed := strings.TrimSpace(*notes)
		notes = &trimmed
	}

	var updated domain.Assignment
	err := s.repo.InTx(ctx, func(tx repository.Tx) error {
		if err := tx.UpdateAssignmentStatus(ctx, id, status, notes, s.ledger.Now()); err != nil {
			return err
		}
		var err error
		updated, err = tx.GetAssignment(ctx, id)
		return err
	})
	if err != nil {
		return domain.Assignment{}, err
	}

	s.log.WithContext(ctx).Info("assignment status updated", "assignment_id", id.String(), "status", string(status))
	return updated, nil
}

// Get returns one assignment.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (domain.Assignment, error) {
	return s.repo.GetAssignment(ctx, id)
}

// ListForLead returns the deliveries of a lead, oldest first.
func (s *Service) ListForLead(ctx context.Context, leadID uuid.UUID) ([]domain.Assignment, error) {
	if _, err := s.repo.GetLead(ctx, leadID); err != nil {
		return nil, err
	}
	items, err := s.repo.ListAssignmentsForLead(ctx, leadID)
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []domain.Assignment{}
	}
	return items, nil
}
