// Package matching ranks stores for a lead and leads for a store under the
// coverage, contract and exclusivity rules. All reads are lock free.
package matching

import (
	"context"
	"time"

	"leadrouter_backend/internal/allocation/domain"
	"leadrouter_backend/internal/allocation/repository"
	"leadrouter_backend/platform/apperr"

	"github.com/google/uuid"
)

const (
	// DefaultRestrictionMonths is the exclusivity window used when none is configured.
	DefaultRestrictionMonths = 3
	// DefaultMaxRadiusKm bounds the spatial prefilter.
	DefaultMaxRadiusKm = 200.0
)

// Config holds the matcher settings.
type Config struct {
	RestrictionMonths int
	MaxRadiusKm       float64
}

// Service answers eligibility questions.
type Service struct {
	repo repository.Queries
	cfg  Config
	now  func() time.Time
}

// New creates a matcher. Non-positive settings fall back to the defaults.
func New(repo repository.Queries, cfg Config) *Service {
	if cfg.RestrictionMonths < 1 {
		cfg.RestrictionMonths = DefaultRestrictionMonths
	}
	if cfg.MaxRadiusKm <= 0 {
		cfg.MaxRadiusKm = DefaultMaxRadiusKm
	}
	return &Service{repo: repo, cfg: cfg, now: time.Now}
}

// WithClock replaces the time source.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// WindowStart returns the earliest assignment time that still counts towards
// exclusivity when evaluated at now.
func WindowStart(now time.Time, months int) time.Time {
	return now.AddDate(0, -months, 0)
}

// Since returns the start of the current exclusivity window.
func (s *Service) Since() time.Time {
	return WindowStart(s.now(), s.cfg.RestrictionMonths)
}

// FindStoresForLead ranks the stores the lead may be delivered to, nearest
// first. A lead without coordinates matches nothing.
func (s *Service) FindStoresForLead(ctx context.Context, leadID uuid.UUID) ([]domain.StoreMatch, error) {
	lead, err := s.repo.GetLead(ctx, leadID)
	if err != nil {
		return nil, err
	}
	if _, ok := lead.Point(); !ok {
		return []domain.StoreMatch{}, nil
	}

	return s.repo.FindStoresForLead(ctx, repository.StoreMatchQuery{
		LeadID:      lead.ID,
		Since:       s.Since(),
		MaxRadiusKm: s.cfg.MaxRadiusKm,
	})
}

// FindLeadsForStore ranks new leads inside the store's coverage that no store
// of the same company has received. A limit of zero returns every match.
func (s *Service) FindLeadsForStore(ctx context.Context, storeID uuid.UUID, limit int) ([]domain.LeadMatch, error) {
	if limit < 0 {
		return nil, apperr.Validation("limit must not be negative").WithOp("matching.FindLeadsForStore")
	}
	if _, err := s.repo.GetStore(ctx, storeID); err != nil {
		return nil, err
	}

	return s.repo.FindLeadsForStore(ctx, repository.LeadMatchQuery{
		StoreID:     storeID,
		MaxRadiusKm: s.cfg.MaxRadiusKm,
		Limit:       limit,
	})
}

// HasBeenSentToStore reports whether the lead, or any lead sharing one of its
// phones, was delivered to the store inside the window.
func (s *Service) HasBeenSentToStore(ctx context.Context, leadID, storeID uuid.UUID) (bool, error) {
	return s.repo.SentToStore(ctx, leadID, storeID, s.Since())
}

// HasBeenSentToCompany is HasBeenSentToStore across every store of the company.
func (s *Service) HasBeenSentToCompany(ctx context.Context, leadID, companyID uuid.UUID) (bool, error) {
	return s.repo.SentToCompany(ctx, leadID, companyID, s.Since())
}
