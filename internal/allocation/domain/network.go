package domain

import (
	"fmt"
	"strings"
	"time"

	"leadrouter_backend/platform/apperr"
	"leadrouter_backend/platform/geo"

	"github.com/google/uuid"
)

// DefaultCoverageRadiusKm is used when a location is saved without a radius.
const DefaultCoverageRadiusKm = 10.0

// Company groups stores; company-wide exclusivity is evaluated across its stores.
type Company struct {
	ID        uuid.UUID
	Name      string
	IsActive  bool
	CreatedAt time.Time
	UpdatedAt time.Time
	DeletedAt *time.Time
}

// Store is a retail point that receives leads.
type Store struct {
	ID        uuid.UUID
	CompanyID uuid.UUID
	Name      string
	IsActive  bool
	CreatedAt time.Time
	UpdatedAt time.Time
	DeletedAt *time.Time
}

// Receivable reports whether the store may be offered leads.
func (s Store) Receivable() bool {
	return s.IsActive && s.DeletedAt == nil
}

// StoreLocation is a coverage circle belonging to a store.
type StoreLocation struct {
	ID               uuid.UUID
	StoreID          uuid.UUID
	Name             string
	Latitude         float64
	Longitude        float64
	CoverageRadiusKm float64
	IsMain           bool
	IsActive         bool
	CreatedAt        time.Time
	UpdatedAt        time.Time
	DeletedAt        *time.Time
}

// Point returns the location centre.
func (l StoreLocation) Point() geo.Point {
	return geo.Point{Lat: l.Latitude, Lon: l.Longitude}
}

// Covers reports whether p lies within the location's coverage radius.
func (l StoreLocation) Covers(p geo.Point) (float64, bool) {
	d := geo.DistanceKm(l.Point(), p)
	return d, d <= l.CoverageRadiusKm
}

// RadiusBounds constrains coverage radii.
type RadiusBounds struct {
	MinKm float64
	MaxKm float64
}

// Validate checks a location before it is written. A zero radius falls back
// to the default, which itself never drops below the minimum.
func (l *StoreLocation) Validate(bounds RadiusBounds) error {
	if l.CoverageRadiusKm == 0 {
		l.CoverageRadiusKm = DefaultCoverageRadiusKm
		if bounds.MinKm > l.CoverageRadiusKm {
			l.CoverageRadiusKm = bounds.MinKm
		}
	}
	if !l.Point().Valid() {
		return apperr.Validation("coordinates out of range").WithOp("location.validate")
	}
	if l.CoverageRadiusKm < bounds.MinKm {
		return apperr.BusinessRule(fmt.Sprintf("coverage radius must be at least %g km", bounds.MinKm)).
			WithOp("location.validate")
	}
	if bounds.MaxKm > 0 && l.CoverageRadiusKm > bounds.MaxKm {
		return apperr.Validation(fmt.Sprintf("coverage radius must not exceed %g km", bounds.MaxKm)).
			WithOp("location.validate")
	}
	l.Name = strings.TrimSpace(l.Name)
	return nil
}
