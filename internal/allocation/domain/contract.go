package domain

import (
	"time"

	"leadrouter_backend/platform/apperr"

	"github.com/google/uuid"
)

// DefaultWarrantyPercentage applies when a contract is registered without one.
const DefaultWarrantyPercentage = 30

// OwnerType tags who a contract belongs to.
type OwnerType string

const (
	OwnerTypeCompany OwnerType = "company"
	OwnerTypeStore   OwnerType = "store"
)

// OwnerRef identifies the owner of a contract: either a company or one store.
type OwnerRef struct {
	Type OwnerType
	ID   uuid.UUID
}

// OwnerCompany references a company-wide contract owner.
func OwnerCompany(id uuid.UUID) OwnerRef { return OwnerRef{Type: OwnerTypeCompany, ID: id} }

// OwnerStore references a single-store contract owner.
func OwnerStore(id uuid.UUID) OwnerRef { return OwnerRef{Type: OwnerTypeStore, ID: id} }

// Valid reports whether the tag is known and the id is set.
func (o OwnerRef) Valid() bool {
	return (o.Type == OwnerTypeCompany || o.Type == OwnerTypeStore) && o.ID != uuid.Nil
}

// Contract tracks the delivery quota and warranty allowance sold to an owner.
type Contract struct {
	ID                 uuid.UUID
	Owner              OwnerRef
	StartDate          time.Time
	EndDate            time.Time
	LeadPrice          float64
	LeadsContracted    int
	LeadsDelivered     int
	LeadsReturned      int
	LeadsWarrantyUsed  int
	WarrantyPercentage int
	IsActive           bool
	CompletedAt        *time.Time
	AutoCloseAt        *time.Time
	CreatedAt          time.Time
	UpdatedAt          time.Time
	DeletedAt          *time.Time
}

// WarrantyAllowance is ceil(contracted * pct / 100).
func (c Contract) WarrantyAllowance() int {
	if c.LeadsContracted <= 0 || c.WarrantyPercentage <= 0 {
		return 0
	}
	return (c.LeadsContracted*c.WarrantyPercentage + 99) / 100
}

// AvailableWarrantyLeads is the number of returns still allowed.
func (c Contract) AvailableWarrantyLeads() int {
	available := c.WarrantyAllowance() - c.LeadsWarrantyUsed
	if available < 0 {
		return 0
	}
	return available
}

// HasReachedWarrantyLimit reports whether no further returns are allowed.
func (c Contract) HasReachedWarrantyLimit() bool {
	return c.AvailableWarrantyLeads() == 0
}

// IsComplete reports whether the delivery quota has been met.
func (c Contract) IsComplete() bool {
	return c.LeadsDelivered >= c.LeadsContracted
}

// RemainingLeads is max(0, contracted - delivered).
func (c Contract) RemainingLeads() int {
	remaining := c.LeadsContracted - c.LeadsDelivered
	if remaining < 0 {
		return 0
	}
	return remaining
}

// WarrantyUsagePercentage is warranty_used / contracted * 100, or 0 for an empty quota.
func (c Contract) WarrantyUsagePercentage() float64 {
	if c.LeadsContracted == 0 {
		return 0
	}
	return float64(c.LeadsWarrantyUsed) / float64(c.LeadsContracted) * 100
}

// AutoCloseDue reports whether the grace period of an active contract has run out.
func (c Contract) AutoCloseDue(now time.Time) bool {
	return c.IsActive && c.DeletedAt == nil && c.AutoCloseAt != nil && !c.AutoCloseAt.After(now)
}

// Validate rejects contracts that must never be persisted.
func (c Contract) Validate() error {
	const op = "contract.validate"
	if !c.Owner.Valid() {
		return apperr.Validation("contract owner must be a company or a store").WithOp(op)
	}
	if c.StartDate.IsZero() || c.EndDate.IsZero() {
		return apperr.Validation("start and end dates are required").WithOp(op)
	}
	if c.StartDate.After(c.EndDate) {
		return apperr.Validation("start date must not be after end date").WithOp(op)
	}
	if c.LeadsContracted <= 0 {
		return apperr.Validation("leads contracted must be positive").WithOp(op)
	}
	if c.LeadPrice < 0 {
		return apperr.Validation("lead price must not be negative").WithOp(op)
	}
	if c.WarrantyPercentage < 0 || c.WarrantyPercentage > 100 {
		return apperr.Validation("warranty percentage must be between 0 and 100").WithOp(op)
	}
	if c.LeadsDelivered < 0 || c.LeadsReturned < 0 || c.LeadsWarrantyUsed < 0 {
		return apperr.Validation("contract counters must not be negative").WithOp(op)
	}
	if c.LeadsWarrantyUsed > c.WarrantyAllowance() {
		return apperr.Validation("warranty usage exceeds the contract allowance").WithOp(op)
	}
	return nil
}

// Complete deactivates the contract and clears any pending auto-close.
func (c *Contract) Complete(now time.Time) {
	c.IsActive = false
	completed := now
	c.CompletedAt = &completed
	c.AutoCloseAt = nil
	c.UpdatedAt = now
}

// DeliveryOutcome describes what a delivery did to the contract.
type DeliveryOutcome int

const (
	// DeliveryCounted means the quota is not yet met.
	DeliveryCounted DeliveryOutcome = iota
	// DeliveryCompleted means the quota was met with no warranty left, so the contract closed.
	DeliveryCompleted
	// DeliveryAutoCloseScheduled means the quota was met and the contract closes after the grace period.
	DeliveryAutoCloseScheduled
)

// RegisterDelivery counts one delivered lead and evaluates completion.
func (c *Contract) RegisterDelivery(now time.Time, grace time.Duration) (DeliveryOutcome, error) {
	if !c.IsActive || c.DeletedAt != nil {
		return DeliveryCounted, apperr.BusinessRule("contract is not active").WithOp("contract.deliver")
	}

	c.LeadsDelivered++
	c.UpdatedAt = now

	if !c.IsComplete() {
		return DeliveryCounted, nil
	}
	if c.AvailableWarrantyLeads() == 0 {
		c.Complete(now)
		return DeliveryCompleted, nil
	}

	closeAt := now.Add(grace)
	c.AutoCloseAt = &closeAt
	return DeliveryAutoCloseScheduled, nil
}

// RegisterReturn consumes one unit of warranty allowance. It reports false and
// leaves the contract untouched when the allowance is exhausted.
func (c *Contract) RegisterReturn(now time.Time) bool {
	if c.AvailableWarrantyLeads() == 0 {
		return false
	}

	c.LeadsReturned++
	c.LeadsWarrantyUsed++
	c.UpdatedAt = now

	if c.AvailableWarrantyLeads() == 0 && c.IsComplete() && c.IsActive {
		c.Complete(now)
	}
	return true
}
