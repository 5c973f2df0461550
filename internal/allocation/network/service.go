// Package network manages the store network that receives leads: companies,
// their stores, the coverage circles of each store, and the contracts that
// pay for deliveries.
package network

import (
	"context"
	"strings"
	"time"

	"leadrouter_backend/internal/allocation/domain"
	"leadrouter_backend/internal/allocation/repository"
	"leadrouter_backend/platform/apperr"
	"leadrouter_backend/platform/logger"

	"github.com/google/uuid"
)

// Config holds the network settings.
type Config struct {
	DefaultWarrantyPercentage int
	Radius                    domain.RadiusBounds
}

// Service manages companies, stores, locations and contracts.
type Service struct {
	repo repository.Repository
	cfg  Config
	log  *logger.Logger
	now  func() time.Time
}

// New creates a network service.
func New(repo repository.Repository, cfg Config, log *logger.Logger) *Service {
	if cfg.DefaultWarrantyPercentage < 0 {
		cfg.DefaultWarrantyPercentage = domain.DefaultWarrantyPercentage
	}
	return &Service{repo: repo, cfg: cfg, log: log, now: time.Now}
}

// WithClock replaces the time source.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// CreateCompany registers an active company.
func (s *Service) CreateCompany(ctx context.Context, name string) (domain.Company, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return domain.Company{}, apperr.Validation("company name is required").WithOp("network.CreateCompany")
	}

	now := s.now()
	company := domain.Company{ID: uuid.New(), Name: name, IsActive: true, CreatedAt: now, UpdatedAt: now}
	if err := s.repo.InTx(ctx, func(tx repository.Tx) error {
		return tx.InsertCompany(ctx, company)
	}); err != nil {
		return domain.Company{}, err
	}

	s.log.WithContext(ctx).Info("company created", "company_id", company.ID.String())
	return company, nil
}

// CreateStore registers an active store under an existing company.
func (s *Service) CreateStore(ctx context.Context, companyID uuid.UUID, name string) (domain.Store, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return domain.Store{}, apperr.Validation("store name is required").WithOp("network.CreateStore")
	}

	now := s.now()
	store := domain.Store{ID: uuid.New(), CompanyID: companyID, Name: name, IsActive: true, CreatedAt: now, UpdatedAt: now}
	err := s.repo.InTx(ctx, func(tx repository.Tx) error {
		if _, err := tx.GetCompany(ctx, companyID); err != nil {
			return err
		}
		return tx.InsertStore(ctx, store)
	})
	if err != nil {
		return domain.Store{}, err
	}

	s.log.WithContext(ctx).Info("store created", "store_id", store.ID.String(), "company_id", companyID.String())
	return store, nil
}

// GetStore returns one store.
func (s *Service) GetStore(ctx context.Context, id uuid.UUID) (domain.Store, error) {
	return s.repo.GetStore(ctx, id)
}

// DeleteStore tombstones a store and its locations. Past assignments keep
// counting for exclusivity.
func (s *Service) DeleteStore(ctx context.Context, id uuid.UUID) error {
	err := s.repo.InTx(ctx, func(tx repository.Tx) error {
		if _, err := tx.LockStore(ctx, id); err != nil {
			return err
		}
		return tx.SoftDeleteStore(ctx, id, s.now())
	})
	if err != nil {
		return err
	}
	s.log.WithContext(ctx).Info("store deleted", "store_id", id.String())
	return nil
}

// LocationInput creates a location when ID is nil and replaces one otherwise.
type LocationInput struct {
	ID               *uuid.UUID
	StoreID          uuid.UUID
	Name             string
	Latitude         float64
	Longitude        float64
	CoverageRadiusKm float64
	IsMain           bool
	IsActive         *bool
}

// SaveLocation writes a coverage circle. The store row is locked so that
// setting the main flag and clearing it elsewhere happen together. The first
// location of a store always becomes its main location.
func (s *Service) SaveLocation(ctx context.Context, in LocationInput) (domain.StoreLocation, error) {
	const op = "network.SaveLocation"

	var loc domain.StoreLocation
	err := s.repo.InTx(ctx, func(tx repository.Tx) error {
		now := s.now()
		if _, err := tx.LockStore(ctx, in.StoreID); err != nil {
			return err
		}

		existing, err := tx.ListStoreLocations(ctx, in.StoreID)
		if err != nil {
			return err
		}

		loc = domain.StoreLocation{ID: uuid.New(), StoreID: in.StoreID, IsActive: true, CreatedAt: now}
		if in.ID != nil {
			loc, err = tx.GetLocation(ctx, *in.ID)
			if err != nil {
				return err
			}
			if loc.StoreID != in.StoreID {
				return apperr.NotFound("store location not found").WithOp(op)
			}
		}

		loc.Name = in.Name
		loc.Latitude = in.Latitude
		loc.Longitude = in.Longitude
		loc.CoverageRadiusKm = in.CoverageRadiusKm
		loc.IsMain = in.IsMain || len(existing) == 0 || (in.ID != nil && onlyLocation(existing, *in.ID))
		if in.IsActive != nil {
			loc.IsActive = *in.IsActive
		}
		loc.UpdatedAt = now

		if err := loc.Validate(s.cfg.Radius); err != nil {
			return err
		}
		if loc.IsMain {
			if err := tx.ClearMainLocation(ctx, in.StoreID, loc.ID, now); err != nil {
				return err
			}
		}
		if in.ID == nil {
			return tx.InsertLocation(ctx, loc)
		}
		return tx.UpdateLocation(ctx, loc)
	})
	if err != nil {
		return domain.StoreLocation{}, err
	}

	s.log.WithContext(ctx).Info("store location saved",
		"location_id", loc.ID.String(),
		"store_id", loc.StoreID.String(),
		"radius_km", loc.CoverageRadiusKm,
		"is_main", loc.IsMain,
	)
	return loc, nil
}

func onlyLocation(locs []domain.StoreLocation, id uuid.UUID) bool {
	return len(locs) == 1 && locs[0].ID == id
}

// ListStoreLocations returns the live locations of a store, main first.
func (s *Service) ListStoreLocations(ctx context.Context, storeID uuid.UUID) ([]domain.StoreLocation, error) {
	if _, err := s.repo.GetStore(ctx, storeID); err != nil {
		return nil, err
	}
	locs, err := s.repo.ListStoreLocations(ctx, storeID)
	if err != nil {
		return nil, err
	}
	if locs == nil {
		locs = []domain.StoreLocation{}
	}
	return locs, nil
}

// DeleteLocation tombstones a location.
func (s *Service) DeleteLocation(ctx context.Context, id uuid.UUID) error {
	err := s.repo.InTx(ctx, func(tx repository.Tx) error {
		loc, err := tx.GetLocation(ctx, id)
		if err != nil {
			return err
		}
		if _, err := tx.LockStore(ctx, loc.StoreID); err != nil {
			return err
		}
		return tx.SoftDeleteLocation(ctx, id, s.now())
	})
	if err != nil {
		return err
	}
	s.log.WithContext(ctx).Info("store location deleted", "location_id", id.String())
	return nil
}

// ContractInput registers a contract. A nil WarrantyPercentage takes the
// configured default.
type ContractInput struct {
	Owner              domain.OwnerRef
	StartDate          time.Time
	EndDate            time.Time
	LeadPrice          float64
	LeadsContracted    int
	WarrantyPercentage *int
}

// RegisterContract opens a contract for a company or a store. An owner has
// at most one active contract.
func (s *Service) RegisterContract(ctx context.Context, in ContractInput) (domain.Contract, error) {
	const op = "network.RegisterContract"

	now := s.now()
	pct := s.cfg.DefaultWarrantyPercentage
	if in.WarrantyPercentage != nil {
		pct = *in.WarrantyPercentage
	}
	contract := domain.Contract{
		ID:                 uuid.New(),
		Owner:              in.Owner,
		StartDate:          in.StartDate,
		EndDate:            in.EndDate,
		LeadPrice:          in.LeadPrice,
		LeadsContracted:    in.LeadsContracted,
		WarrantyPercentage: pct,
		IsActive:           true,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	if err := contract.Validate(); err != nil {
		return domain.Contract{}, err
	}

	err := s.repo.InTx(ctx, func(tx repository.Tx) error {
		if err := ownerExists(ctx, tx, in.Owner); err != nil {
			return err
		}
		_, err := tx.GetActiveContractForOwner(ctx, in.Owner)
		switch {
		case err == nil:
			return apperr.Conflict("owner already has an active contract").WithOp(op)
		case !apperr.Is(err, apperr.KindNotFound):
			return err
		}
		return tx.InsertContract(ctx, contract)
	})
	if err != nil {
		return domain.Contract{}, err
	}

	s.log.WithContext(ctx).ContractEvent("contract_registered", contract.ID.String(),
		contract.LeadsDelivered, contract.LeadsContracted, contract.LeadsWarrantyUsed, contract.IsActive)
	return contract, nil
}

func ownerExists(ctx context.Context, q repository.Queries, owner domain.OwnerRef) error {
	switch owner.Type {
	case domain.OwnerTypeCompany:
		_, err := q.GetCompany(ctx, owner.ID)
		return err
	case domain.OwnerTypeStore:
		_, err := q.GetStore(ctx, owner.ID)
		return err
	default:
		return apperr.Validation("contract owner must be a company or a store")
	}
}

// DeleteContract tombstones a contract. Assignments that reference it stay.
func (s *Service) DeleteContract(ctx context.Context, id uuid.UUID) error {
	err := s.repo.InTx(ctx, func(tx repository.Tx) error {
		if _, err := tx.LockContract(ctx, id); err != nil {
			return err
		}
		return tx.SoftDeleteContract(ctx, id, s.now())
	})
	if err != nil {
		return err
	}
	s.log.WithContext(ctx).Info("contract deleted", "contract_id", id.String())
	return nil
}

// ContractView is a contract together with its derived counters.
type ContractView struct {
	domain.Contract
	WarrantyAllowance       int
	AvailableWarrantyLeads  int
	RemainingLeads          int
	IsComplete              bool
	HasReachedWarrantyLimit bool
	WarrantyUsagePercentage float64
}

// NewContractView derives the read-only values of c.
func NewContractView(c domain.Contract) ContractView {
	return ContractView{
		Contract:                c,
		WarrantyAllowance:       c.WarrantyAllowance(),
		AvailableWarrantyLeads:  c.AvailableWarrantyLeads(),
		RemainingLeads:          c.RemainingLeads(),
		IsComplete:              c.IsComplete(),
		HasReachedWarrantyLimit: c.HasReachedWarrantyLimit(),
		WarrantyUsagePercentage: c.WarrantyUsagePercentage(),
	}
}

// GetContract returns one contract with its derived values.
func (s *Service) GetContract(ctx context.Context, id uuid.UUID) (ContractView, error) {
	c, err := s.repo.GetContract(ctx, id)
	if err != nil {
		return ContractView{}, err
	}
	return NewContractView(c), nil
}

// ActiveContract returns the active contract of owner.
func (s *Service) ActiveContract(ctx context.Context, owner domain.OwnerRef) (ContractView, error) {
	if !owner.Valid() {
		return ContractView{}, apperr.Validation("contract owner must be a company or a store").WithOp("network.ActiveContract")
	}
	c, err := s.repo.GetActiveContractForOwner(ctx, owner)
	if err != nil {
		return ContractView{}, err
	}
	return NewContractView(c), nil
}
