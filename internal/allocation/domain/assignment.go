package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// AssignmentStatus is the store-side state of a delivered lead.
type AssignmentStatus string

const (
	AssignmentNew                        AssignmentStatus = "new"
	AssignmentContacted                  AssignmentStatus = "contacted"
	AssignmentConverted                  AssignmentStatus = "converted"
	AssignmentNotInterested              AssignmentStatus = "not_interested"
	AssignmentInvalid                    AssignmentStatus = "invalid"
	AssignmentWarrantyPending            AssignmentStatus = "warranty_pending"
	AssignmentWarrantyApproved           AssignmentStatus = "warranty_approved"
	AssignmentWarrantyRejected           AssignmentStatus = "warranty_rejected"
	AssignmentWarrantyWaitingReplacement AssignmentStatus = "warranty_waiting_replacement"
	AssignmentWarrantyReplaced           AssignmentStatus = "warranty_replaced"
)

// AssignmentStatuses lists every accepted assignment status.
var AssignmentStatuses = []AssignmentStatus{
	AssignmentNew,
	AssignmentContacted,
	AssignmentConverted,
	AssignmentNotInterested,
	AssignmentInvalid,
	AssignmentWarrantyPending,
	AssignmentWarrantyApproved,
	AssignmentWarrantyRejected,
	AssignmentWarrantyWaitingReplacement,
	AssignmentWarrantyReplaced,
}

// Valid reports enumeration membership. Any valid status may follow any other.
func (s AssignmentStatus) Valid() bool {
	for _, known := range AssignmentStatuses {
		if s == known {
			return true
		}
	}
	return false
}

// InWarranty reports whether the status belongs to a warranty return.
func (s AssignmentStatus) InWarranty() bool {
	return strings.HasPrefix(string(s), "warranty_")
}

// Assignment records one delivery of a lead to a store under a contract.
// CreatedAt anchors the exclusivity window.
type Assignment struct {
	ID         uuid.UUID
	LeadID     uuid.UUID
	StoreID    uuid.UUID
	ContractID uuid.UUID
	Status     AssignmentStatus
	Notes      *string
	IsWarranty bool

	// Stage timestamps record the first time each stage was reached.
	SentAt      *time.Time
	ContactedAt *time.Time
	ConvertedAt *time.Time
	ReturnedAt  *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
	DeletedAt   *time.Time
}

// NewAssignment builds a fresh delivery record in status new.
func NewAssignment(leadID, storeID, contractID uuid.UUID, isWarranty bool, now time.Time) Assignment {
	return Assignment{
		ID:         uuid.New(),
		LeadID:     leadID,
		StoreID:    storeID,
		ContractID: contractID,
		Status:     AssignmentNew,
		IsWarranty: isWarranty,
		SentAt:     &now,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

// SetStatus moves the assignment to status and stamps the matching stage.
// A stage already stamped keeps its first timestamp.
func (a *Assignment) SetStatus(status AssignmentStatus, now time.Time) {
	a.Status = status
	a.UpdatedAt = now
	switch {
	case status == AssignmentContacted:
		stampOnce(&a.ContactedAt, now)
	case status == AssignmentConverted:
		stampOnce(&a.ConvertedAt, now)
	case status.InWarranty():
		stampOnce(&a.ReturnedAt, now)
	}
}

func stampOnce(field **time.Time, now time.Time) {
	if *field == nil {
		t := now
		*field = &t
	}
}
