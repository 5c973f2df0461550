package domain

import "github.com/google/uuid"

// StoreMatch is a store eligible for a lead, with the distance to its nearest
// qualifying location.
type StoreMatch struct {
	StoreID    uuid.UUID
	CompanyID  uuid.UUID
	StoreName  string
	DistanceKm float64
}

// LeadMatch is a lead eligible for a store, with the distance to the store's
// nearest covering location.
type LeadMatch struct {
	LeadID     uuid.UUID
	LeadName   string
	DistanceKm float64
}
