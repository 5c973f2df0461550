package domain

import (
	"strings"
	"time"

	"leadrouter_backend/platform/apperr"

	"github.com/google/uuid"
)

// WarrantyStatus is the state of a lead-return claim.
type WarrantyStatus string

const (
	WarrantyPending            WarrantyStatus = "pending"
	WarrantyApproved           WarrantyStatus = "approved"
	WarrantyRejected           WarrantyStatus = "rejected"
	WarrantyWaitingReplacement WarrantyStatus = "waiting_replacement"
	WarrantyReplaced           WarrantyStatus = "replaced"
)

// Valid reports whether s is a known warranty status.
func (s WarrantyStatus) Valid() bool {
	switch s {
	case WarrantyPending, WarrantyApproved, WarrantyRejected, WarrantyWaitingReplacement, WarrantyReplaced:
		return true
	}
	return false
}

// Terminal reports whether no further transition is possible.
func (s WarrantyStatus) Terminal() bool {
	return s == WarrantyRejected || s == WarrantyReplaced
}

// AwaitingReplacement reports whether the allowance was consumed and no
// replacement lead has been delivered yet.
func (s WarrantyStatus) AwaitingReplacement() bool {
	return s == WarrantyWaitingReplacement || s == WarrantyApproved
}

// AssignmentStatus mirrors the warranty state onto the disputed assignment.
func (s WarrantyStatus) AssignmentStatus() AssignmentStatus {
	switch s {
	case WarrantyApproved:
		return AssignmentWarrantyApproved
	case WarrantyRejected:
		return AssignmentWarrantyRejected
	case WarrantyWaitingReplacement:
		return AssignmentWarrantyWaitingReplacement
	case WarrantyReplaced:
		return AssignmentWarrantyReplaced
	default:
		return AssignmentWarrantyPending
	}
}

// Warranty is a store's claim that a delivered lead was unusable.
type Warranty struct {
	ID            uuid.UUID
	AssignmentID  uuid.UUID
	NewLeadID     *uuid.UUID
	Status        WarrantyStatus
	ReturnReason  string
	AnalysisNotes *string
	AnalyzedBy    *uuid.UUID
	AnalyzedAt    *time.Time
	ReplacedAt    *time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
	DeletedAt     *time.Time
}

// NewWarranty opens a pending claim for an assignment.
func NewWarranty(assignmentID uuid.UUID, reason string, now time.Time) (Warranty, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return Warranty{}, apperr.Validation("return reason is required").WithOp("warranty.open")
	}
	return Warranty{
		ID:           uuid.New(),
		AssignmentID: assignmentID,
		Status:       WarrantyPending,
		ReturnReason: reason,
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}

// Decide records an analyst decision on a pending claim.
func (w *Warranty) Decide(status WarrantyStatus, analystID uuid.UUID, notes string, now time.Time) error {
	if w.Status != WarrantyPending {
		return apperr.BusinessRule("warranty claim was already decided").WithOp("warranty.decide")
	}
	if status != WarrantyWaitingReplacement && status != WarrantyRejected && status != WarrantyApproved {
		return apperr.Validation("invalid warranty decision").WithOp("warranty.decide")
	}

	w.Status = status
	analyst := analystID
	w.AnalyzedBy = &analyst
	analyzedAt := now
	w.AnalyzedAt = &analyzedAt
	if n := strings.TrimSpace(notes); n != "" {
		w.AnalysisNotes = &n
	}
	w.UpdatedAt = now
	return nil
}

// MarkReplaced records the replacement lead.
func (w *Warranty) MarkReplaced(newLeadID uuid.UUID, now time.Time) error {
	if !w.Status.AwaitingReplacement() {
		return apperr.BusinessRule("warranty claim is not awaiting a replacement").WithOp("warranty.replace")
	}
	id := newLeadID
	w.NewLeadID = &id
	replacedAt := now
	w.ReplacedAt = &replacedAt
	w.Status = WarrantyReplaced
	w.UpdatedAt = now
	return nil
}
