package repository

import (
	"context"
	"time"

	"leadrouter_backend/internal/allocation/domain"

	"github.com/google/uuid"
)

// StoreMatchQuery selects stores eligible for a lead.
type StoreMatchQuery struct {
	LeadID uuid.UUID
	// Since is the start of the exclusivity window.
	Since time.Time
	// MaxRadiusKm bounds the index prefilter. Locations with a larger radius
	// are only matched up to this distance.
	MaxRadiusKm float64
}

// LeadMatchQuery selects new leads eligible for a store.
type LeadMatchQuery struct {
	StoreID     uuid.UUID
	MaxRadiusKm float64
	// Limit caps the result size. Zero means no limit.
	Limit int
}

// LeadListParams filters and pages the lead listing. Zero values mean no filter.
type LeadListParams struct {
	SegmentID *uuid.UUID
	// Name matches a case-insensitive substring of the lead name.
	Name string
	// Phone matches a substring of the raw phone; NormalizedPhone a substring
	// of any normalized phone in the lead's history.
	Phone           string
	NormalizedPhone string
	IsActive        *bool
	Page            int
	PageSize        int
}

// LeadListResult is one page of leads, newest first.
type LeadListResult struct {
	Items      []domain.Lead
	Total      int
	Page       int
	PageSize   int
	TotalPages int
}

const (
	DefaultLeadPageSize = 20
	MaxLeadPageSize     = 100
)

// PageBounds clamps page and pageSize and returns the row offset.
func PageBounds(page, pageSize int) (int, int, int) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = DefaultLeadPageSize
	}
	if pageSize > MaxLeadPageSize {
		pageSize = MaxLeadPageSize
	}
	return page, pageSize, (page - 1) * pageSize
}

// TotalPages is the page count for total rows.
func TotalPages(total, pageSize int) int {
	if pageSize < 1 {
		return 0
	}
	return (total + pageSize - 1) / pageSize
}

// LeadReader reads leads and their phone history.
type LeadReader interface {
	GetLead(ctx context.Context, id uuid.UUID) (domain.Lead, error)
	ListLeadPhones(ctx context.Context, leadID uuid.UUID) ([]domain.PhoneRecord, error)
	FindLeadByExternalID(ctx context.Context, externalID string, externalSource *string) (domain.Lead, error)
	FindLeadByEmail(ctx context.Context, email string) (domain.Lead, error)
	FindLeadByPhone(ctx context.Context, phoneOriginal string) (domain.Lead, error)
	DefaultSegmentID(ctx context.Context) (uuid.UUID, error)
	ListPhoneRecords(ctx context.Context, after uuid.UUID, limit int) ([]domain.PhoneRecord, error)
	// ListUnplacedLeads pages through live leads that have an address but no
	// coordinates, ordered by id.
	ListUnplacedLeads(ctx context.Context, after uuid.UUID, limit int) ([]domain.Lead, error)
	ListLeads(ctx context.Context, params LeadListParams) (LeadListResult, error)
}

// NetworkReader reads companies, stores and their locations.
type NetworkReader interface {
	GetCompany(ctx context.Context, id uuid.UUID) (domain.Company, error)
	GetStore(ctx context.Context, id uuid.UUID) (domain.Store, error)
	GetLocation(ctx context.Context, id uuid.UUID) (domain.StoreLocation, error)
	ListStoreLocations(ctx context.Context, storeID uuid.UUID) ([]domain.StoreLocation, error)
}

// ContractReader reads contracts.
type ContractReader interface {
	GetContract(ctx context.Context, id uuid.UUID) (domain.Contract, error)
	GetActiveContractForOwner(ctx context.Context, owner domain.OwnerRef) (domain.Contract, error)
	ListDueContractIDs(ctx context.Context, now time.Time, limit int) ([]uuid.UUID, error)
}

// AssignmentReader reads deliveries and warranty claims.
type AssignmentReader interface {
	GetAssignment(ctx context.Context, id uuid.UUID) (domain.Assignment, error)
	ListAssignmentsForLead(ctx context.Context, leadID uuid.UUID) ([]domain.Assignment, error)
	GetWarranty(ctx context.Context, id uuid.UUID) (domain.Warranty, error)
}

// MatchReader runs the eligibility and exclusivity queries.
type MatchReader interface {
	FindStoresForLead(ctx context.Context, q StoreMatchQuery) ([]domain.StoreMatch, error)
	FindLeadsForStore(ctx context.Context, q LeadMatchQuery) ([]domain.LeadMatch, error)
	// SentToStore reports whether a lead sharing a normalized phone with leadID
	// (or leadID itself) was assigned to the store at or after since.
	SentToStore(ctx context.Context, leadID, storeID uuid.UUID, since time.Time) (bool, error)
	// SentToCompany is SentToStore across every store of the company.
	SentToCompany(ctx context.Context, leadID, companyID uuid.UUID, since time.Time) (bool, error)
	// StoreCoversLead reports whether an active location of the store has the
	// lead inside its coverage radius. Unplaced leads are never covered.
	StoreCoversLead(ctx context.Context, leadID, storeID uuid.UUID) (bool, error)
}

// Queries are reads available both on the pool and inside a transaction.
type Queries interface {
	LeadReader
	NetworkReader
	ContractReader
	AssignmentReader
	MatchReader
}

// Tx is the set of operations that must run inside one transaction.
// Lock* methods take a row lock held until commit or rollback.
type Tx interface {
	Queries

	LockContract(ctx context.Context, id uuid.UUID) (domain.Contract, error)
	// LockActiveContractForStore resolves the contract that pays for deliveries
	// to the store: its own active contract first, else its company's.
	LockActiveContractForStore(ctx context.Context, store domain.Store) (domain.Contract, error)
	InsertContract(ctx context.Context, c domain.Contract) error
	UpdateContract(ctx context.Context, c domain.Contract) error
	SoftDeleteContract(ctx context.Context, id uuid.UUID, now time.Time) error

	InsertLead(ctx context.Context, lead domain.Lead) error
	UpdateLead(ctx context.Context, lead domain.Lead) error
	SetLeadStatus(ctx context.Context, id uuid.UUID, status domain.LeadStatus, now time.Time) error
	InsertPhoneRecord(ctx context.Context, rec domain.PhoneRecord) error
	UpdatePhoneNormalized(ctx context.Context, id uuid.UUID, normalized string) error

	InsertCompany(ctx context.Context, c domain.Company) error
	InsertStore(ctx context.Context, s domain.Store) error
	LockStore(ctx context.Context, id uuid.UUID) (domain.Store, error)
	SoftDeleteStore(ctx context.Context, id uuid.UUID, now time.Time) error
	InsertLocation(ctx context.Context, loc domain.StoreLocation) error
	UpdateLocation(ctx context.Context, loc domain.StoreLocation) error
	ClearMainLocation(ctx context.Context, storeID, exceptID uuid.UUID, now time.Time) error
	SoftDeleteLocation(ctx context.Context, id uuid.UUID, now time.Time) error

	InsertAssignment(ctx context.Context, a domain.Assignment) error
	UpdateAssignmentStatus(ctx context.Context, id uuid.UUID, status domain.AssignmentStatus, notes *string, now time.Time) error

	InsertWarranty(ctx context.Context, w domain.Warranty) error
	LockWarranty(ctx context.Context, id uuid.UUID) (domain.Warranty, error)
	UpdateWarranty(ctx context.Context, w domain.Warranty) error
}

// Repository is the allocation store.
type Repository interface {
	Queries
	// InTx runs fn in a transaction that commits only when fn returns nil.
	InTx(ctx context.Context, fn func(tx Tx) error) error
}
