package allocationtest

import (
	"context"
	"time"

	"leadrouter_backend/internal/allocation/domain"
	"leadrouter_backend/internal/allocation/repository"
	"leadrouter_backend/platform/apperr"

	"github.com/google/uuid"
)

// txView applies writes to the transaction's working copy.
type txView struct {
	view
	repo *Repo
}

var _ repository.Tx = (*txView)(nil)

func (t *txView) fail(method string) error {
	return t.repo.takeFailure(method)
}

func (t *txView) LockContract(_ context.Context, id uuid.UUID) (domain.Contract, error) {
	if err := t.fail("LockContract"); err != nil {
		return domain.Contract{}, err
	}
	return t.GetContract(context.Background(), id)
}

func (t *txView) LockActiveContractForStore(_ context.Context, store domain.Store) (domain.Contract, error) {
	if err := t.fail("LockActiveContractForStore"); err != nil {
		return domain.Contract{}, err
	}
	if c, ok := t.activeContract(domain.OwnerStore(store.ID)); ok {
		return c, nil
	}
	if c, ok := t.activeContract(domain.OwnerCompany(store.CompanyID)); ok {
		return c, nil
	}
	return domain.Contract{}, apperr.NotFound("store has no active contract")
}

func (t *txView) checkContract(c domain.Contract) error {
	if c.LeadsDelivered < 0 || c.LeadsReturned < 0 || c.LeadsWarrantyUsed < 0 ||
		c.LeadsWarrantyUsed > c.WarrantyAllowance() {
		return apperr.Validation("value violates contracts checks")
	}
	if !c.IsActive || c.DeletedAt != nil {
		return nil
	}
	for id, other := range t.st.contracts {
		if id != c.ID && other.Owner == c.Owner && other.IsActive && other.DeletedAt == nil {
			return apperr.Conflict("owner already has an active contract")
		}
	}
	return nil
}

func (t *txView) InsertContract(_ context.Context, c domain.Contract) error {
	if err := t.fail("InsertContract"); err != nil {
		return err
	}
	if err := t.checkContract(c); err != nil {
		return err
	}
	c.UpdatedAt = c.CreatedAt
	t.st.contracts[c.ID] = c
	return nil
}

func (t *txView) UpdateContract(_ context.Context, c domain.Contract) error {
	if err := t.fail("UpdateContract"); err != nil {
		return err
	}
	stored, ok := t.st.contracts[c.ID]
	if !ok || stored.DeletedAt != nil {
		return apperr.NotFound("contract not found")
	}
	if err := t.checkContract(c); err != nil {
		return err
	}
	stored.LeadsDelivered = c.LeadsDelivered
	stored.LeadsReturned = c.LeadsReturned
	stored.LeadsWarrantyUsed = c.LeadsWarrantyUsed
	stored.IsActive = c.IsActive
	stored.CompletedAt = c.CompletedAt
	stored.AutoCloseAt = c.AutoCloseAt
	stored.UpdatedAt = c.UpdatedAt
	t.st.contracts[c.ID] = stored
	return nil
}

func (t *txView) SoftDeleteContract(_ context.Context, id uuid.UUID, now time.Time) error {
	c, ok := t.st.contracts[id]
	if !ok || c.DeletedAt != nil {
		return apperr.NotFound("contract not found")
	}
	c.DeletedAt = &now
	c.IsActive = false
	c.AutoCloseAt = nil
	c.UpdatedAt = now
	t.st.contracts[id] = c
	return nil
}

func (t *txView) InsertLead(_ context.Context, lead domain.Lead) error {
	if err := t.fail("InsertLead"); err != nil {
		return err
	}
	lead.UpdatedAt = lead.CreatedAt
	t.st.leads[lead.ID] = lead
	return nil
}

func (t *txView) UpdateLead(_ context.Context, lead domain.Lead) error {
	if err := t.fail("UpdateLead"); err != nil {
		return err
	}
	stored, ok := t.st.leads[lead.ID]
	if !ok || stored.DeletedAt != nil {
		return apperr.NotFound("lead not found")
	}
	lead.Status = stored.Status
	lead.IsActive = stored.IsActive
	lead.CreatedAt = stored.CreatedAt
	t.st.leads[lead.ID] = lead
	return nil
}

func (t *txView) SetLeadStatus(_ context.Context, id uuid.UUID, status domain.LeadStatus, now time.Time) error {
	if err := t.fail("SetLeadStatus"); err != nil {
		return err
	}
	lead, ok := t.st.leads[id]
	if !ok || lead.DeletedAt != nil {
		return apperr.NotFound("lead not found")
	}
	lead.Status = status
	lead.UpdatedAt = now
	t.st.leads[id] = lead
	return nil
}

func (t *txView) InsertPhoneRecord(_ context.Context, rec domain.PhoneRecord) error {
	if err := t.fail("InsertPhoneRecord"); err != nil {
		return err
	}
	if _, ok := t.st.leads[rec.LeadID]; !ok {
		return apperr.Validation("referenced record does not exist")
	}
	t.st.phones[rec.ID] = rec
	return nil
}

func (t *txView) UpdatePhoneNormalized(_ context.Context, id uuid.UUID, normalized string) error {
	rec, ok := t.st.phones[id]
	if !ok {
		return nil
	}
	rec.Normalized = normalized
	t.st.phones[id] = rec
	return nil
}

func (t *txView) InsertCompany(_ context.Context, c domain.Company) error {
	t.st.companies[c.ID] = c
	return nil
}

func (t *txView) InsertStore(_ context.Context, s domain.Store) error {
	if co, ok := t.st.companies[s.CompanyID]; !ok || co.DeletedAt != nil {
		return apperr.Validation("referenced record does not exist")
	}
	t.st.stores[s.ID] = s
	return nil
}

func (t *txView) LockStore(ctx context.Context, id uuid.UUID) (domain.Store, error) {
	if err := t.fail("LockStore"); err != nil {
		return domain.Store{}, err
	}
	return t.GetStore(ctx, id)
}

func (t *txView) SoftDeleteStore(_ context.Context, id uuid.UUID, now time.Time) error {
	s, ok := t.st.stores[id]
	if !ok || s.DeletedAt != nil {
		return apperr.NotFound("store not found")
	}
	s.DeletedAt = &now
	s.IsActive = false
	s.UpdatedAt = now
	t.st.stores[id] = s

	for locID, loc := range t.st.locations {
		if loc.StoreID == id && loc.DeletedAt == nil {
			loc.DeletedAt = &now
			loc.IsActive = false
			loc.IsMain = false
			loc.UpdatedAt = now
			t.st.locations[locID] = loc
		}
	}
	return nil
}

func (t *txView) checkSingleMain(loc domain.StoreLocation) error {
	if !loc.IsMain || loc.DeletedAt != nil {
		return nil
	}
	for id, other := range t.st.locations {
		if id != loc.ID && other.StoreID == loc.StoreID && other.IsMain && other.DeletedAt == nil {
			return apperr.Conflict("store already has a main location")
		}
	}
	return nil
}

func (t *txView) InsertLocation(_ context.Context, loc domain.StoreLocation) error {
	if err := t.fail("InsertLocation"); err != nil {
		return err
	}
	if err := t.checkSingleMain(loc); err != nil {
		return err
	}
	t.st.locations[loc.ID] = loc
	return nil
}

func (t *txView) UpdateLocation(_ context.Context, loc domain.StoreLocation) error {
	stored, ok := t.st.locations[loc.ID]
	if !ok || stored.DeletedAt != nil {
		return apperr.NotFound("store location not found")
	}
	if err := t.checkSingleMain(loc); err != nil {
		return err
	}
	loc.CreatedAt = stored.CreatedAt
	t.st.locations[loc.ID] = loc
	return nil
}

func (t *txView) ClearMainLocation(_ context.Context, storeID, exceptID uuid.UUID, now time.Time) error {
	for id, loc := range t.st.locations {
		if loc.StoreID == storeID && id != exceptID && loc.IsMain && loc.DeletedAt == nil {
			loc.IsMain = false
			loc.UpdatedAt = now
			t.st.locations[id] = loc
		}
	}
	return nil
}

func (t *txView) SoftDeleteLocation(_ context.Context, id uuid.UUID, now time.Time) error {
	loc, ok := t.st.locations[id]
	if !ok || loc.DeletedAt != nil {
		return apperr.NotFound("store location not found")
	}
	loc.DeletedAt = &now
	loc.IsActive = false
	loc.IsMain = false
	loc.UpdatedAt = now
	t.st.locations[id] = loc
	return nil
}

func (t *txView) InsertAssignment(_ context.Context, a domain.Assignment) error {
	if err := t.fail("InsertAssignment"); err != nil {
		return err
	}
	_, leadOK := t.st.leads[a.LeadID]
	_, storeOK := t.st.stores[a.StoreID]
	_, contractOK := t.st.contracts[a.ContractID]
	if !leadOK || !storeOK || !contractOK {
		return apperr.Validation("referenced record does not exist")
	}
	t.st.assignments[a.ID] = a
	return nil
}

func (t *txView) UpdateAssignmentStatus(_ context.Context, id uuid.UUID, status domain.AssignmentStatus, notes *string, now time.Time) error {
	if err := t.fail("UpdateAssignmentStatus"); err != nil {
		return err
	}
	a, ok := t.st.assignments[id]
	if !ok || a.DeletedAt != nil {
		return apperr.NotFound("assignment not found")
	}
	a.SetStatus(status, now)
	if notes != nil {
		n := *notes
		a.Notes = &n
	}
	t.st.assignments[id] = a
	return nil
}

func (t *txView) InsertWarranty(_ context.Context, w domain.Warranty) error {
	if err := t.fail("InsertWarranty"); err != nil {
		return err
	}
	if _, ok := t.st.assignments[w.AssignmentID]; !ok {
		return apperr.Validation("referenced record does not exist")
	}
	for _, other := range t.st.warranties {
		if other.AssignmentID == w.AssignmentID && other.DeletedAt == nil && !other.Status.Terminal() {
			return apperr.Conflict("assignment already has an open warranty claim")
		}
	}
	t.st.warranties[w.ID] = w
	return nil
}

func (t *txView) LockWarranty(ctx context.Context, id uuid.UUID) (domain.Warranty, error) {
	if err := t.fail("LockWarranty"); err != nil {
		return domain.Warranty{}, err
	}
	return t.GetWarranty(ctx, id)
}

func (t *txView) UpdateWarranty(_ context.Context, w domain.Warranty) error {
	if err := t.fail("UpdateWarranty"); err != nil {
		return err
	}
	stored, ok := t.st.warranties[w.ID]
	if !ok || stored.DeletedAt != nil {
		return apperr.NotFound("warranty not found")
	}
	w.AssignmentID = stored.AssignmentID
	w.ReturnReason = stored.ReturnReason
	w.CreatedAt = stored.CreatedAt
	t.st.warranties[w.ID] = w
	return nil
}
