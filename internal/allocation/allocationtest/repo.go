// Package allocationtest provides an in-memory allocation repository for
// service tests. Transactions work on a copy of the state that replaces the
// live state only when the callback succeeds, so failed operations leave no
// trace. Transactions are serialized, which stands in for row locks.
package allocationtest

import (
	"bytes"
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"leadrouter_backend/internal/allocation/domain"
	"leadrouter_backend/internal/allocation/repository"
	"leadrouter_backend/platform/apperr"
	"leadrouter_backend/platform/geo"

	"github.com/google/uuid"
)

// DefaultSegmentID is the seeded default segment.
var DefaultSegmentID = uuid.MustParse("00000000-0000-0000-0000-000000000001")

type state struct {
	leads       map[uuid.UUID]domain.Lead
	phones      map[uuid.UUID]domain.PhoneRecord
	companies   map[uuid.UUID]domain.Company
	stores      map[uuid.UUID]domain.Store
	locations   map[uuid.UUID]domain.StoreLocation
	contracts   map[uuid.UUID]domain.Contract
	assignments map[uuid.UUID]domain.Assignment
	warranties  map[uuid.UUID]domain.Warranty
}

func newState() *state {
	return &state{
		leads:       map[uuid.UUID]domain.Lead{},
		phones:      map[uuid.UUID]domain.PhoneRecord{},
		companies:   map[uuid.UUID]domain.Company{},
		stores:      map[uuid.UUID]domain.Store{},
		locations:   map[uuid.UUID]domain.StoreLocation{},
		contracts:   map[uuid.UUID]domain.Contract{},
		assignments: map[uuid.UUID]domain.Assignment{},
		warranties:  map[uuid.UUID]domain.Warranty{},
	}
}

func cloneMap[V any](in map[uuid.UUID]V) map[uuid.UUID]V {
	out := make(map[uuid.UUID]V, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

func (s *state) clone() *state {
	return &state{
		leads:       cloneMap(s.leads),
		phones:      cloneMap(s.phones),
		companies:   cloneMap(s.companies),
		stores:      cloneMap(s.stores),
		locations:   cloneMap(s.locations),
		contracts:   cloneMap(s.contracts),
		assignments: cloneMap(s.assignments),
		warranties:  cloneMap(s.warranties),
	}
}

// Repo is an in-memory repository.Repository.
type Repo struct {
	txMu sync.Mutex
	mu   sync.Mutex
	st   *state

	failures map[string]error

	// Commits counts successful transactions.
	Commits int
	// Rollbacks counts transactions whose callback failed.
	Rollbacks int
}

// New returns an empty repository.
func New() *Repo {
	return &Repo{st: newState(), failures: map[string]error{}}
}

var _ repository.Repository = (*Repo)(nil)

// FailOn makes the next call of the named Tx method fail with err.
func (r *Repo) FailOn(method string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failures[method] = err
}

func (r *Repo) takeFailure(method string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	err, ok := r.failures[method]
	if ok {
		delete(r.failures, method)
	}
	return err
}

func (r *Repo) view() *view {
	r.mu.Lock()
	defer r.mu.Unlock()
	return &view{st: r.st}
}

// InTx runs fn against a copy of the state and publishes it on success.
func (r *Repo) InTx(ctx context.Context, fn func(tx repository.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.txMu.Lock()
	defer r.txMu.Unlock()

	r.mu.Lock()
	working := r.st.clone()
	r.mu.Unlock()

	tx := &txView{view: view{st: working}, repo: r}
	if err := fn(tx); err != nil {
		r.mu.Lock()
		r.Rollbacks++
		r.mu.Unlock()
		return err
	}

	r.mu.Lock()
	r.st = working
	r.Commits++
	r.mu.Unlock()
	return nil
}

// Snapshot accessors used by assertions.

// Contract returns the stored contract, including tombstoned rows.
func (r *Repo) Contract(id uuid.UUID) domain.Contract {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.st.contracts[id]
}

// Lead returns the stored lead, including tombstoned rows.
func (r *Repo) Lead(id uuid.UUID) domain.Lead {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.st.leads[id]
}

// Warranty returns the stored warranty.
func (r *Repo) Warranty(id uuid.UUID) domain.Warranty {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.st.warranties[id]
}

// Assignment returns the stored assignment.
func (r *Repo) Assignment(id uuid.UUID) domain.Assignment {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.st.assignments[id]
}

// Assignments returns all stored assignments ordered by creation.
func (r *Repo) Assignments() []domain.Assignment {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]domain.Assignment, 0, len(r.st.assignments))
	for _, a := range r.st.assignments {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return bytes.Compare(out[i].ID[:], out[j].ID[:]) < 0
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

// Locations returns all stored locations of a store, including tombstoned ones.
func (r *Repo) Locations(storeID uuid.UUID) []domain.StoreLocation {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.StoreLocation
	for _, l := range r.st.locations {
		if l.StoreID == storeID {
			out = append(out, l)
		}
	}
	return out
}

// PhoneRecords returns the phone history of a lead.
func (r *Repo) PhoneRecords(leadID uuid.UUID) []domain.PhoneRecord {
	return r.view().phonesOf(leadID)
}

// Queries outside a transaction read the last committed state.

func (r *Repo) GetLead(ctx context.Context, id uuid.UUID) (domain.Lead, error) {
	return r.view().GetLead(ctx, id)
}
func (r *Repo) ListLeadPhones(ctx context.Context, leadID uuid.UUID) ([]domain.PhoneRecord, error) {
	return r.view().ListLeadPhones(ctx, leadID)
}
func (r *Repo) FindLeadByExternalID(ctx context.Context, externalID string, source *string) (domain.Lead, error) {
	return r.view().FindLeadByExternalID(ctx, externalID, source)
}
func (r *Repo) FindLeadByEmail(ctx context.Context, email string) (domain.Lead, error) {
	return r.view().FindLeadByEmail(ctx, email)
}
func (r *Repo) FindLeadByPhone(ctx context.Context, phoneOriginal string) (domain.Lead, error) {
	return r.view().FindLeadByPhone(ctx, phoneOriginal)
}
func (r *Repo) DefaultSegmentID(ctx context.Context) (uuid.UUID, error) {
	return r.view().DefaultSegmentID(ctx)
}
func (r *Repo) ListPhoneRecords(ctx context.Context, after uuid.UUID, limit int) ([]domain.PhoneRecord, error) {
	return r.view().ListPhoneRecords(ctx, after, limit)
}
func (r *Repo) ListUnplacedLeads(ctx context.Context, after uuid.UUID, limit int) ([]domain.Lead, error) {
	return r.view().ListUnplacedLeads(ctx, after, limit)
}
func (r *Repo) ListLeads(ctx context.Context, params repository.LeadListParams) (repository.LeadListResult, error) {
	return r.view().ListLeads(ctx, params)
}
func (r *Repo) GetCompany(ctx context.Context, id uuid.UUID) (domain.Company, error) {
	return r.view().GetCompany(ctx, id)
}
func (r *Repo) GetStore(ctx context.Context, id uuid.UUID) (domain.Store, error) {
	return r.view().GetStore(ctx, id)
}
func (r *Repo) GetLocation(ctx context.Context, id uuid.UUID) (domain.StoreLocation, error) {
	return r.view().GetLocation(ctx, id)
}
func (r *Repo) ListStoreLocations(ctx context.Context, storeID uuid.UUID) ([]domain.StoreLocation, error) {
	return r.view().ListStoreLocations(ctx, storeID)
}
func (r *Repo) GetContract(ctx context.Context, id uuid.UUID) (domain.Contract, error) {
	return r.view().GetContract(ctx, id)
}
func (r *Repo) GetActiveContractForOwner(ctx context.Context, owner domain.OwnerRef) (domain.Contract, error) {
	return r.view().GetActiveContractForOwner(ctx, owner)
}
func (r *Repo) ListDueContractIDs(ctx context.Context, now time.Time, limit int) ([]uuid.UUID, error) {
	return r.view().ListDueContractIDs(ctx, now, limit)
}
func (r *Repo) GetAssignment(ctx context.Context, id uuid.UUID) (domain.Assignment, error) {
	return r.view().GetAssignment(ctx, id)
}
func (r *Repo) ListAssignmentsForLead(ctx context.Context, leadID uuid.UUID) ([]domain.Assignment, error) {
	return r.view().ListAssignmentsForLead(ctx, leadID)
}
func (r *Repo) GetWarranty(ctx context.Context, id uuid.UUID) (domain.Warranty, error) {
	return r.view().GetWarranty(ctx, id)
}
func (r *Repo) FindStoresForLead(ctx context.Context, q repository.StoreMatchQuery) ([]domain.StoreMatch, error) {
	return r.view().FindStoresForLead(ctx, q)
}
func (r *Repo) FindLeadsForStore(ctx context.Context, q repository.LeadMatchQuery) ([]domain.LeadMatch, error) {
	return r.view().FindLeadsForStore(ctx, q)
}
func (r *Repo) SentToStore(ctx context.Context, leadID, storeID uuid.UUID, since time.Time) (bool, error) {
	return r.view().SentToStore(ctx, leadID, storeID, since)
}
func (r *Repo) SentToCompany(ctx context.Context, leadID, companyID uuid.UUID, since time.Time) (bool, error) {
	return r.view().SentToCompany(ctx, leadID, companyID, since)
}
func (r *Repo) StoreCoversLead(ctx context.Context, leadID, storeID uuid.UUID) (bool, error) {
	return r.view().StoreCoversLead(ctx, leadID, storeID)
}

// view implements repository.Queries over one state.
type view struct {
	st *state
}

func (v *view) GetLead(_ context.Context, id uuid.UUID) (domain.Lead, error) {
	l, ok := v.st.leads[id]
	if !ok || l.DeletedAt != nil {
		return domain.Lead{}, apperr.NotFound("lead not found")
	}
	return l, nil
}

func (v *view) phonesOf(leadID uuid.UUID) []domain.PhoneRecord {
	var out []domain.PhoneRecord
	for _, p := range v.st.phones {
		if p.LeadID == leadID {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return bytes.Compare(out[i].ID[:], out[j].ID[:]) < 0
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

func (v *view) ListLeadPhones(_ context.Context, leadID uuid.UUID) ([]domain.PhoneRecord, error) {
	return v.phonesOf(leadID), nil
}

func (v *view) newestLead(match func(domain.Lead) bool) (domain.Lead, error) {
	var found *domain.Lead
	for _, l := range v.st.leads {
		if l.DeletedAt != nil || !match(l) {
			continue
		}
		if found == nil || l.CreatedAt.After(found.CreatedAt) {
			candidate := l
			found = &candidate
		}
	}
	if found == nil {
		return domain.Lead{}, apperr.NotFound("lead not found")
	}
	return *found, nil
}

func (v *view) FindLeadByExternalID(_ context.Context, externalID string, source *string) (domain.Lead, error) {
	return v.newestLead(func(l domain.Lead) bool {
		if l.ExternalID == nil || *l.ExternalID != externalID {
			return false
		}
		return source == nil || (l.ExternalSource != nil && *l.ExternalSource == *source)
	})
}

func (v *view) FindLeadByEmail(_ context.Context, email string) (domain.Lead, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	return v.newestLead(func(l domain.Lead) bool {
		return l.Email != nil && strings.ToLower(*l.Email) == email
	})
}

func (v *view) FindLeadByPhone(_ context.Context, phoneOriginal string) (domain.Lead, error) {
	phoneOriginal = strings.TrimSpace(phoneOriginal)
	owners := map[uuid.UUID]bool{}
	for _, p := range v.st.phones {
		if p.Original == phoneOriginal {
			owners[p.LeadID] = true
		}
	}
	return v.newestLead(func(l domain.Lead) bool { return owners[l.ID] })
}

func (v *view) DefaultSegmentID(context.Context) (uuid.UUID, error) {
	return DefaultSegmentID, nil
}

func (v *view) ListPhoneRecords(_ context.Context, after uuid.UUID, limit int) ([]domain.PhoneRecord, error) {
	if limit < 1 {
		limit = 500
	}
	var out []domain.PhoneRecord
	for _, p := range v.st.phones {
		if bytes.Compare(p.ID[:], after[:]) > 0 {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return bytes.Compare(out[i].ID[:], out[j].ID[:]) < 0 })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (v *view) ListUnplacedLeads(_ context.Context, after uuid.UUID, limit int) ([]domain.Lead, error) {
	if limit < 1 {
		limit = 100
	}
	var out []domain.Lead
	for _, l := range v.st.leads {
		if bytes.Compare(l.ID[:], after[:]) <= 0 || l.DeletedAt != nil || !l.HasAddress() {
			continue
		}
		if _, placed := l.Point(); placed {
			continue
		}
		out = append(out, l)
	}
	sort.Slice(out, func(i, j int) bool { return bytes.Compare(out[i].ID[:], out[j].ID[:]) < 0 })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// ListLeads mirrors listLeadsBase: live leads filtered by segment, name
// substring (case-insensitive), raw or normalized phone substring and
// activity, newest first.
func (v *view) ListLeads(_ context.Context, params repository.LeadListParams) (repository.LeadListResult, error) {
	page, pageSize, offset := repository.PageBounds(params.Page, params.PageSize)
	name := strings.ToLower(strings.TrimSpace(params.Name))
	rawPhone := strings.TrimSpace(params.Phone)

	var matched []domain.Lead
	for _, l := range v.st.leads {
		if l.DeletedAt != nil {
			continue
		}
		if params.SegmentID != nil && (l.SegmentID == nil || *l.SegmentID != *params.SegmentID) {
			continue
		}
		if name != "" && !strings.Contains(strings.ToLower(l.Name), name) {
			continue
		}
		if rawPhone != "" && !strings.Contains(l.Phone, rawPhone) && !v.normalizedPhoneContains(l.ID, params.NormalizedPhone) {
			continue
		}
		if params.IsActive != nil && l.IsActive != *params.IsActive {
			continue
		}
		matched = append(matched, l)
	}
	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].CreatedAt.After(matched[j].CreatedAt)
		}
		return bytes.Compare(matched[i].ID[:], matched[j].ID[:]) > 0
	})

	items := make([]domain.Lead, 0, pageSize)
	if offset < len(matched) {
		end := offset + pageSize
		if end > len(matched) {
			end = len(matched)
		}
		items = append(items, matched[offset:end]...)
	}
	return repository.LeadListResult{
		Items:      items,
		Total:      len(matched),
		Page:       page,
		PageSize:   pageSize,
		TotalPages: repository.TotalPages(len(matched), pageSize),
	}, nil
}

func (v *view) normalizedPhoneContains(leadID uuid.UUID, digits string) bool {
	if digits == "" {
		return false
	}
	for _, p := range v.st.phones {
		if p.LeadID == leadID && strings.Contains(p.Normalized, digits) {
			return true
		}
	}
	return false
}

func (v *view) GetCompany(_ context.Context, id uuid.UUID) (domain.Company, error) {
	c, ok := v.st.companies[id]
	if !ok || c.DeletedAt != nil {
		return domain.Company{}, apperr.NotFound("company not found")
	}
	return c, nil
}

func (v *view) GetStore(_ context.Context, id uuid.UUID) (domain.Store, error) {
	s, ok := v.st.stores[id]
	if !ok || s.DeletedAt != nil {
		return domain.Store{}, apperr.NotFound("store not found")
	}
	return s, nil
}

func (v *view) GetLocation(_ context.Context, id uuid.UUID) (domain.StoreLocation, error) {
	l, ok := v.st.locations[id]
	if !ok || l.DeletedAt != nil {
		return domain.StoreLocation{}, apperr.NotFound("store location not found")
	}
	return l, nil
}

func (v *view) ListStoreLocations(_ context.Context, storeID uuid.UUID) ([]domain.StoreLocation, error) {
	var out []domain.StoreLocation
	for _, l := range v.st.locations {
		if l.StoreID == storeID && l.DeletedAt == nil {
			out = append(out, l)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].IsMain != out[j].IsMain {
			return out[i].IsMain
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (v *view) GetContract(_ context.Context, id uuid.UUID) (domain.Contract, error) {
	c, ok := v.st.contracts[id]
	if !ok || c.DeletedAt != nil {
		return domain.Contract{}, apperr.NotFound("contract not found")
	}
	return c, nil
}

func (v *view) activeContract(owner domain.OwnerRef) (domain.Contract, bool) {
	for _, c := range v.st.contracts {
		if c.Owner == owner && c.IsActive && c.DeletedAt == nil {
			return c, true
		}
	}
	return domain.Contract{}, false
}

func (v *view) GetActiveContractForOwner(_ context.Context, owner domain.OwnerRef) (domain.Contract, error) {
	c, ok := v.activeContract(owner)
	if !ok {
		return domain.Contract{}, apperr.NotFound("contract not found")
	}
	return c, nil
}

func (v *view) ListDueContractIDs(_ context.Context, now time.Time, limit int) ([]uuid.UUID, error) {
	if limit < 1 {
		limit = 100
	}
	var due []domain.Contract
	for _, c := range v.st.contracts {
		if c.AutoCloseDue(now) {
			due = append(due, c)
		}
	}
	sort.Slice(due, func(i, j int) bool { return due[i].AutoCloseAt.Before(*due[j].AutoCloseAt) })
	ids := make([]uuid.UUID, 0, len(due))
	for i, c := range due {
		if i == limit {
			break
		}
		ids = append(ids, c.ID)
	}
	return ids, nil
}

func (v *view) GetAssignment(_ context.Context, id uuid.UUID) (domain.Assignment, error) {
	a, ok := v.st.assignments[id]
	if !ok || a.DeletedAt != nil {
		return domain.Assignment{}, apperr.NotFound("assignment not found")
	}
	return a, nil
}

func (v *view) ListAssignmentsForLead(_ context.Context, leadID uuid.UUID) ([]domain.Assignment, error) {
	var out []domain.Assignment
	for _, a := range v.st.assignments {
		if a.LeadID == leadID && a.DeletedAt == nil {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (v *view) GetWarranty(_ context.Context, id uuid.UUID) (domain.Warranty, error) {
	w, ok := v.st.warranties[id]
	if !ok || w.DeletedAt != nil {
		return domain.Warranty{}, apperr.NotFound("warranty not found")
	}
	return w, nil
}

// The matching methods below mirror the SQL in repository/matching.go and
// must change with it:
//
//	findStoresForLeadQuery
//	  target CTE (live lead with coordinates)      -> lead.Point()
//	  earth_box(target.pos, $2) @> location        -> geo.BoxAround(point, q.MaxRadiusKm)
//	  earth_distance(...) <= sl.coverage_radius    -> StoreLocation.Covers
//	  sl/s/co is_active AND deleted_at IS NULL     -> loc.IsActive, Store.Receivable, company checks
//	  EXISTS active contract (store or company)    -> storeHasContract
//	  NOT EXISTS sharedPhoneHistory, same store    -> sentTo(..., a.StoreID == storeID)
//	  ORDER BY distance_km, s.id                   -> sort by DistanceKm, StoreID bytes
//	findLeadsForStoreQuery
//	  l.status = 'new' AND is_active, live         -> Lead.Matchable
//	  coverage CTE + earth_box + earth_distance    -> BoxAround per location, Covers
//	  NOT EXISTS lead_stores in same company       -> assignedWithinCompany (no time bound)
//	  ORDER BY distance_km, l.id LIMIT $3          -> sort, then q.Limit
//	sharedPhoneHistory
//	  ls.deleted_at IS NULL, created_at >= since   -> sentTo skips tombstoned and older rows
//	  ls.lead_id = $1 OR shared phone_normalized   -> sentTo phone key set (empty keys ignored)
//	storeCoversLeadQuery                           -> StoreCoversLead
func (v *view) storeHasContract(s domain.Store) bool {
	if _, ok := v.activeContract(domain.OwnerStore(s.ID)); ok {
		return true
	}
	_, ok := v.activeContract(domain.OwnerCompany(s.CompanyID))
	return ok
}

func (v *view) FindStoresForLead(_ context.Context, q repository.StoreMatchQuery) ([]domain.StoreMatch, error) {
	matches := make([]domain.StoreMatch, 0)
	lead, ok := v.st.leads[q.LeadID]
	if !ok || lead.DeletedAt != nil {
		return matches, nil
	}
	point, ok := lead.Point()
	if !ok {
		return matches, nil
	}
	box := geo.BoxAround(point, q.MaxRadiusKm)

	best := map[uuid.UUID]float64{}
	for _, loc := range v.st.locations {
		if !loc.IsActive || loc.DeletedAt != nil || !box.Contains(loc.Point()) {
			continue
		}
		d, covered := loc.Covers(point)
		if !covered {
			continue
		}
		if prev, seen := best[loc.StoreID]; !seen || d < prev {
			best[loc.StoreID] = d
		}
	}

	for storeID, d := range best {
		s, ok := v.st.stores[storeID]
		if !ok || !s.Receivable() {
			continue
		}
		co, ok := v.st.companies[s.CompanyID]
		if !ok || !co.IsActive || co.DeletedAt != nil {
			continue
		}
		if !v.storeHasContract(s) {
			continue
		}
		if v.sentTo(q.LeadID, q.Since, func(a domain.Assignment) bool { return a.StoreID == storeID }) {
			continue
		}
		matches = append(matches, domain.StoreMatch{StoreID: s.ID, CompanyID: s.CompanyID, StoreName: s.Name, DistanceKm: d})
	}

	sort.Slice(matches, func(i, j int) bool {
		if matches[i].DistanceKm != matches[j].DistanceKm {
			return matches[i].DistanceKm < matches[j].DistanceKm
		}
		return bytes.Compare(matches[i].StoreID[:], matches[j].StoreID[:]) < 0
	})
	return matches, nil
}

func (v *view) FindLeadsForStore(_ context.Context, q repository.LeadMatchQuery) ([]domain.LeadMatch, error) {
	matches := make([]domain.LeadMatch, 0)
	store, ok := v.st.stores[q.StoreID]
	if !ok || store.DeletedAt != nil {
		return matches, nil
	}

	var locations []domain.StoreLocation
	for _, loc := range v.st.locations {
		if loc.StoreID == store.ID && loc.IsActive && loc.DeletedAt == nil {
			locations = append(locations, loc)
		}
	}

	for _, lead := range v.st.leads {
		if !lead.Matchable() {
			continue
		}
		point, ok := lead.Point()
		if !ok {
			continue
		}
		best, found := 0.0, false
		for _, loc := range locations {
			if !geo.BoxAround(loc.Point(), q.MaxRadiusKm).Contains(point) {
				continue
			}
			if d, covered := loc.Covers(point); covered && (!found || d < best) {
				best, found = d, true
			}
		}
		if !found || v.assignedWithinCompany(lead.ID, store.CompanyID) {
			continue
		}
		matches = append(matches, domain.LeadMatch{LeadID: lead.ID, LeadName: lead.Name, DistanceKm: best})
	}

	sort.Slice(matches, func(i, j int) bool {
		if matches[i].DistanceKm != matches[j].DistanceKm {
			return matches[i].DistanceKm < matches[j].DistanceKm
		}
		return bytes.Compare(matches[i].LeadID[:], matches[j].LeadID[:]) < 0
	})
	if q.Limit > 0 && len(matches) > q.Limit {
		matches = matches[:q.Limit]
	}
	return matches, nil
}

func (v *view) assignedWithinCompany(leadID, companyID uuid.UUID) bool {
	for _, a := range v.st.assignments {
		if a.LeadID != leadID || a.DeletedAt != nil {
			continue
		}
		if s, ok := v.st.stores[a.StoreID]; ok && s.CompanyID == companyID {
			return true
		}
	}
	return false
}

// sentTo mirrors the shared phone history used by the SQL queries.
func (v *view) sentTo(leadID uuid.UUID, since time.Time, scope func(domain.Assignment) bool) bool {
	keys := map[string]bool{}
	for _, p := range v.st.phones {
		if p.LeadID == leadID && p.Normalized != "" {
			keys[p.Normalized] = true
		}
	}

	for _, a := range v.st.assignments {
		if a.DeletedAt != nil || a.CreatedAt.Before(since) || !scope(a) {
			continue
		}
		if a.LeadID == leadID {
			return true
		}
		for _, p := range v.st.phones {
			if p.LeadID == a.LeadID && keys[p.Normalized] {
				return true
			}
		}
	}
	return false
}

func (v *view) SentToStore(_ context.Context, leadID, storeID uuid.UUID, since time.Time) (bool, error) {
	return v.sentTo(leadID, since, func(a domain.Assignment) bool { return a.StoreID == storeID }), nil
}

func (v *view) SentToCompany(_ context.Context, leadID, companyID uuid.UUID, since time.Time) (bool, error) {
	return v.sentTo(leadID, since, func(a domain.Assignment) bool {
		s, ok := v.st.stores[a.StoreID]
		return ok && s.CompanyID == companyID
	}), nil
}

// StoreCoversLead mirrors storeCoversLeadQuery.
func (v *view) StoreCoversLead(_ context.Context, leadID, storeID uuid.UUID) (bool, error) {
	lead, ok := v.st.leads[leadID]
	if !ok || lead.DeletedAt != nil {
		return false, nil
	}
	point, ok := lead.Point()
	if !ok {
		return false, nil
	}
	for _, loc := range v.st.locations {
		if loc.StoreID != storeID || !loc.IsActive || loc.DeletedAt != nil {
			continue
		}
		if _, covered := loc.Covers(point); covered {
			return true, nil
		}
	}
	return false, nil
}
