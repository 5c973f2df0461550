package allocationtest

import (
	"time"

	"leadrouter_backend/internal/allocation/domain"
	"leadrouter_backend/platform/geo"

	"github.com/google/uuid"
)

// Seeding bypasses transactions and constraint checks so tests can arrange
// any state, including states services would never produce.

// Clock is a settable time source.
type Clock struct {
	now time.Time
}

// NewClock starts a clock at t.
func NewClock(t time.Time) *Clock { return &Clock{now: t} }

// Now returns the current fake time.
func (c *Clock) Now() time.Time { return c.now }

// Advance moves the clock forward.
func (c *Clock) Advance(d time.Duration) { c.now = c.now.Add(d) }

// Set moves the clock to t.
func (c *Clock) Set(t time.Time) { c.now = t }

// SeedCompany stores an active company.
func (r *Repo) SeedCompany(name string, now time.Time) domain.Company {
	c := domain.Company{ID: uuid.New(), Name: name, IsActive: true, CreatedAt: now, UpdatedAt: now}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.st.companies[c.ID] = c
	return c
}

// PutCompany stores c as is.
func (r *Repo) PutCompany(c domain.Company) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.st.companies[c.ID] = c
}

// SeedStore stores an active store with one main location of the given radius.
func (r *Repo) SeedStore(companyID uuid.UUID, name string, at geo.Point, radiusKm float64, now time.Time) (domain.Store, domain.StoreLocation) {
	s := domain.Store{ID: uuid.New(), CompanyID: companyID, Name: name, IsActive: true, CreatedAt: now, UpdatedAt: now}
	loc := domain.StoreLocation{
		ID:               uuid.New(),
		StoreID:          s.ID,
		Name:             name,
		Latitude:         at.Lat,
		Longitude:        at.Lon,
		CoverageRadiusKm: radiusKm,
		IsMain:           true,
		IsActive:         true,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.st.stores[s.ID] = s
	r.st.locations[loc.ID] = loc
	return s, loc
}

// PutStore stores s as is.
func (r *Repo) PutStore(s domain.Store) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.st.stores[s.ID] = s
}

// PutLocation stores loc as is.
func (r *Repo) PutLocation(loc domain.StoreLocation) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.st.locations[loc.ID] = loc
}

// SeedContract stores an active contract for owner.
func (r *Repo) SeedContract(owner domain.OwnerRef, contracted, warrantyPct int, now time.Time) domain.Contract {
	c := domain.Contract{
		ID:                 uuid.New(),
		Owner:              owner,
		StartDate:          now.AddDate(0, -1, 0),
		EndDate:            now.AddDate(1, 0, 0),
		LeadPrice:          25,
		LeadsContracted:    contracted,
		WarrantyPercentage: warrantyPct,
		IsActive:           true,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	r.PutContract(c)
	return c
}

// PutContract stores c as is.
func (r *Repo) PutContract(c domain.Contract) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.st.contracts[c.ID] = c
}

// SeedLead stores a new lead at p with one phone record.
func (r *Repo) SeedLead(name, rawPhone string, p *geo.Point, now time.Time) domain.Lead {
	segment := DefaultSegmentID
	lead := domain.Lead{
		ID:        uuid.New(),
		SegmentID: &segment,
		Name:      name,
		Phone:     rawPhone,
		Status:    domain.LeadStatusNew,
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if p != nil {
		lat, lon := p.Lat, p.Lon
		lead.Latitude, lead.Longitude = &lat, &lon
	}
	r.PutLead(lead)
	r.PutPhoneRecord(domain.NewPhoneRecord(lead.ID, rawPhone, now))
	return lead
}

// PutLead stores lead as is.
func (r *Repo) PutLead(lead domain.Lead) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.st.leads[lead.ID] = lead
}

// PutPhoneRecord stores rec as is.
func (r *Repo) PutPhoneRecord(rec domain.PhoneRecord) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.st.phones[rec.ID] = rec
}

// SeedAssignment stores a delivery created at the given time.
func (r *Repo) SeedAssignment(leadID, storeID, contractID uuid.UUID, at time.Time) domain.Assignment {
	a := domain.NewAssignment(leadID, storeID, contractID, false, at)
	r.PutAssignment(a)
	return a
}

// PutAssignment stores a as is.
func (r *Repo) PutAssignment(a domain.Assignment) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.st.assignments[a.ID] = a
}

// PutWarranty stores w as is.
func (r *Repo) PutWarranty(w domain.Warranty) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.st.warranties[w.ID] = w
}
