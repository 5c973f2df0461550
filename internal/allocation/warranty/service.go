// Package warranty runs the lead-return workflow: a store disputes a delivered
// lead, an analyst decides, and an approved claim is settled with a
// replacement lead. Each step is a single transaction; rows are locked in
// warranty then contract order.
package warranty

import (
	"context"
	"errors"

	"leadrouter_backend/internal/allocation/domain"
	"leadrouter_backend/internal/allocation/ledger"
	"leadrouter_backend/internal/allocation/matching"
	"leadrouter_backend/internal/allocation/repository"
	"leadrouter_backend/platform/apperr"
	"leadrouter_backend/platform/logger"

	"github.com/google/uuid"
)

const msgWarrantyLimit = "contract has reached its warranty limit"

// Config holds the workflow settings.
type Config struct {
	RestrictionMonths int
}

// Service drives warranty claims.
type Service struct {
	repo   repository.Repository
	ledger *ledger.Service
	cfg    Config
	log    *logger.Logger
}

// New creates a warranty workflow sharing the ledger's clock.
func New(repo repository.Repository, ledgerSvc *ledger.Service, cfg Config, log *logger.Logger) *Service {
	if cfg.RestrictionMonths < 1 {
		cfg.RestrictionMonths = matching.DefaultRestrictionMonths
	}
	return &Service{repo: repo, ledger: ledgerSvc, cfg: cfg, log: log}
}

// Replacement is the outcome of settling a claim with a new lead.
type Replacement struct {
	Warranty   domain.Warranty
	Assignment domain.Assignment
}

// Get returns one claim.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (domain.Warranty, error) {
	return s.repo.GetWarranty(ctx, id)
}

// OpenClaim disputes an assignment. An assignment has at most one open claim.
func (s *Service) OpenClaim(ctx context.Context, assignmentID uuid.UUID, reason string) (domain.Warranty, error) {
	var claim domain.Warranty
	err := s.repo.InTx(ctx, func(tx repository.Tx) error {
		now := s.ledger.Now()
		assignment, err := tx.GetAssignment(ctx, assignmentID)
		if err != nil {
			return err
		}
		if assignment.Status == domain.AssignmentWarrantyReplaced {
			return apperr.BusinessRule("assignment was already replaced").WithOp("warranty.OpenClaim")
		}

		claim, err = domain.NewWarranty(assignment.ID, reason, now)
		if err != nil {
			return err
		}
		if err := tx.InsertWarranty(ctx, claim); err != nil {
			return err
		}
		return tx.UpdateAssignmentStatus(ctx, assignment.ID, claim.Status.AssignmentStatus(), nil, now)
	})
	if err != nil {
		return domain.Warranty{}, err
	}

	s.log.WithContext(ctx).WarrantyEvent("warranty_opened", claim.ID.String(), string(claim.Status), true, "")
	return claim, nil
}

// Approve accepts a pending claim and consumes one unit of the originating
// contract's warranty allowance. At the limit nothing changes and a business
// rule error is returned.
func (s *Service) Approve(ctx context.Context, warrantyID, analystID uuid.UUID, notes string) (domain.Warranty, error) {
	var claim domain.Warranty
	err := s.repo.InTx(ctx, func(tx repository.Tx) error {
		var err error
		claim, err = s.approveTx(ctx, tx, warrantyID, analystID, notes)
		return err
	})
	if err != nil {
		s.logRefusal(ctx, "warranty_approval_refused", warrantyID, err)
		return domain.Warranty{}, err
	}

	s.log.WithContext(ctx).WarrantyEvent("warranty_approved", claim.ID.String(), string(claim.Status), true, "")
	return claim, nil
}

func (s *Service) approveTx(ctx context.Context, tx repository.Tx, warrantyID, analystID uuid.UUID, notes string) (domain.Warranty, error) {
	now := s.ledger.Now()
	claim, err := tx.LockWarranty(ctx, warrantyID)
	if err != nil {
		return domain.Warranty{}, err
	}
	if err := claim.Decide(domain.WarrantyWaitingReplacement, analystID, notes, now); err != nil {
		return domain.Warranty{}, err
	}

	assignment, err := tx.GetAssignment(ctx, claim.AssignmentID)
	if err != nil {
		return domain.Warranty{}, err
	}
	_, accepted, err := s.ledger.ProcessReturnTx(ctx, tx, assignment.ContractID)
	if err != nil {
		return domain.Warranty{}, err
	}
	if !accepted {
		return domain.Warranty{}, apperr.BusinessRule(msgWarrantyLimit).WithOp("warranty.Approve")
	}

	if err := tx.UpdateWarranty(ctx, claim); err != nil {
		return domain.Warranty{}, err
	}
	if err := tx.UpdateAssignmentStatus(ctx, assignment.ID, claim.Status.AssignmentStatus(), nil, now); err != nil {
		return domain.Warranty{}, err
	}
	return claim, nil
}

// Reject closes a pending claim without touching the contract.
func (s *Service) Reject(ctx context.Context, warrantyID, analystID uuid.UUID, notes string) (domain.Warranty, error) {
	var claim domain.Warranty
	err := s.repo.InTx(ctx, func(tx repository.Tx) error {
		now := s.ledger.Now()
		var err error
		claim, err = tx.LockWarranty(ctx, warrantyID)
		if err != nil {
			return err
		}
		if err := claim.Decide(domain.WarrantyRejected, analystID, notes, now); err != nil {
			return err
		}
		if err := tx.UpdateWarranty(ctx, claim); err != nil {
			return err
		}
		return tx.UpdateAssignmentStatus(ctx, claim.AssignmentID, claim.Status.AssignmentStatus(), nil, now)
	})
	if err != nil {
		s.logRefusal(ctx, "warranty_rejection_refused", warrantyID, err)
		return domain.Warranty{}, err
	}

	s.log.WithContext(ctx).WarrantyEvent("warranty_rejected", claim.ID.String(), string(claim.Status), true, "")
	return claim, nil
}

// AssignReplacement delivers newLeadID to the disputed store under the same
// contract. The replacement does not count against the delivery quota.
func (s *Service) AssignReplacement(ctx context.Context, warrantyID, newLeadID uuid.UUID) (Replacement, error) {
	var out Replacement
	err := s.repo.InTx(ctx, func(tx repository.Tx) error {
		var err error
		out, err = s.assignReplacementTx(ctx, tx, warrantyID, newLeadID)
		return err
	})
	if err != nil {
		s.logRefusal(ctx, "warranty_replacement_refused", warrantyID, err)
		return Replacement{}, err
	}

	s.logReplacement(ctx, out)
	return out, nil
}

func (s *Service) assignReplacementTx(ctx context.Context, tx repository.Tx, warrantyID, newLeadID uuid.UUID) (Replacement, error) {
	const op = "warranty.AssignReplacement"
	now := s.ledger.Now()

	claim, err := tx.LockWarranty(ctx, warrantyID)
	if err != nil {
		return Replacement{}, err
	}
	if !claim.Status.AwaitingReplacement() {
		return Replacement{}, apperr.BusinessRule("warranty claim is not awaiting a replacement").WithOp(op)
	}

	original, err := tx.GetAssignment(ctx, claim.AssignmentID)
	if err != nil {
		return Replacement{}, err
	}
	if newLeadID == original.LeadID {
		return Replacement{}, apperr.BusinessRule("replacement lead must differ from the returned lead").WithOp(op)
	}
	lead, err := tx.GetLead(ctx, newLeadID)
	if err != nil {
		return Replacement{}, err
	}

	sent, err := tx.SentToStore(ctx, lead.ID, original.StoreID, matching.WindowStart(now, s.cfg.RestrictionMonths))
	if err != nil {
		return Replacement{}, err
	}
	if sent {
		return Replacement{}, apperr.BusinessRule("replacement lead was already sent to this store within the restriction period").WithOp(op)
	}

	replacement := domain.NewAssignment(lead.ID, original.StoreID, original.ContractID, true, now)
	if err := tx.InsertAssignment(ctx, replacement); err != nil {
		return Replacement{}, err
	}
	if lead.Status == domain.LeadStatusNew {
		if err := tx.SetLeadStatus(ctx, lead.ID, domain.LeadStatusSent, now); err != nil {
			return Replacement{}, err
		}
	}

	if err := claim.MarkReplaced(lead.ID, now); err != nil {
		return Replacement{}, err
	}
	if err := tx.UpdateWarranty(ctx, claim); err != nil {
		return Replacement{}, err
	}
	if err := tx.UpdateAssignmentStatus(ctx, original.ID, claim.Status.AssignmentStatus(), nil, now); err != nil {
		return Replacement{}, err
	}
	return Replacement{Warranty: claim, Assignment: replacement}, nil
}

// ApproveWithReplacement approves the claim and delivers the replacement in
// one transaction. Either every step commits or none does.
func (s *Service) ApproveWithReplacement(ctx context.Context, warrantyID, analystID uuid.UUID, notes string, newLeadID uuid.UUID) (Replacement, error) {
	var out Replacement
	err := s.repo.InTx(ctx, func(tx repository.Tx) error {
		if _, err := s.approveTx(ctx, tx, warrantyID, analystID, notes); err != nil {
			return err
		}
		var err error
		out, err = s.assignReplacementTx(ctx, tx, warrantyID, newLeadID)
		return err
	})
	if err != nil {
		s.logRefusal(ctx, "warranty_approval_refused", warrantyID, err)
		return Replacement{}, err
	}

	s.log.WithContext(ctx).WarrantyEvent("warranty_approved", warrantyID.String(), string(domain.WarrantyWaitingReplacement), true, "")
	s.logReplacement(ctx, out)
	return out, nil
}

func (s *Service) logReplacement(ctx context.Context, r Replacement) {
	log := s.log.WithContext(ctx)
	log.WarrantyEvent("warranty_replaced", r.Warranty.ID.String(), string(r.Warranty.Status), true, "")
	a := r.Assignment
	log.AssignmentEvent("replacement_assigned", a.ID.String(), a.LeadID.String(), a.StoreID.String(), true)
}

func (s *Service) logRefusal(ctx context.Context, event string, warrantyID uuid.UUID, err error) {
	if !apperr.Is(err, apperr.KindBusinessRule) {
		return
	}
	msg := err.Error()
	var appErr *apperr.Error
	if errors.As(err, &appErr) {
		msg = appErr.Message
	}
	s.log.WithContext(ctx).WarrantyEvent(event, warrantyID.String(), "", false, msg)
}
