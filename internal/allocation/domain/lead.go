// Package domain holds the allocation entities and the pure rules that act on
// them. Nothing here touches the database; services load rows, apply these
// rules and persist the result inside one transaction.
package domain

import (
	"strings"
	"time"

	"leadrouter_backend/platform/apperr"
	"leadrouter_backend/platform/geo"
	"leadrouter_backend/platform/phone"

	"github.com/google/uuid"
)

// LeadStatus is the lifecycle state of a lead.
type LeadStatus string

const (
	LeadStatusNew      LeadStatus = "new"
	LeadStatusPending  LeadStatus = "pending"
	LeadStatusApproved LeadStatus = "approved"
	LeadStatusRejected LeadStatus = "rejected"
	LeadStatusArchived LeadStatus = "archived"
	LeadStatusSent     LeadStatus = "sent"
)

// Valid reports whether s is a known lead status.
func (s LeadStatus) Valid() bool {
	switch s {
	case LeadStatusNew, LeadStatusPending, LeadStatusApproved, LeadStatusRejected, LeadStatusArchived, LeadStatusSent:
		return true
	}
	return false
}

// Lead is a sales contact waiting to be delivered to stores.
type Lead struct {
	ID             uuid.UUID
	SegmentID      *uuid.UUID
	Name           string
	Email          *string
	Phone          string
	ZipCode        *string
	City           *string
	State          *string
	Address        *string
	Latitude       *float64
	Longitude      *float64
	ExternalID     *string
	ExternalSource *string
	Status         LeadStatus
	IsActive       bool
	CreatedAt      time.Time
	UpdatedAt      time.Time
	DeletedAt      *time.Time
}

// Point returns the lead coordinates when both are present.
func (l Lead) Point() (geo.Point, bool) {
	if l.Latitude == nil || l.Longitude == nil {
		return geo.Point{}, false
	}
	return geo.Point{Lat: *l.Latitude, Lon: *l.Longitude}, true
}

// Matchable reports whether the lead may still be offered to stores.
func (l Lead) Matchable() bool {
	return l.Status == LeadStatusNew && l.IsActive && l.DeletedAt == nil
}

// HasAddress reports whether the lead carries enough address text to geocode.
func (l Lead) HasAddress() bool {
	for _, part := range []*string{l.Address, l.City, l.ZipCode} {
		if part != nil && strings.TrimSpace(*part) != "" {
			return true
		}
	}
	return false
}

// PhoneRecord keeps the raw phone next to its exclusivity key.
type PhoneRecord struct {
	ID         uuid.UUID
	LeadID     uuid.UUID
	Original   string
	Normalized string
	CreatedAt  time.Time
}

// NewPhoneRecord derives the normalized key from the raw phone.
func NewPhoneRecord(leadID uuid.UUID, raw string, now time.Time) PhoneRecord {
	return PhoneRecord{
		ID:         uuid.New(),
		LeadID:     leadID,
		Original:   strings.TrimSpace(raw),
		Normalized: phone.Normalize(raw),
		CreatedAt:  now,
	}
}

// LeadFields is the structured payload of a lead event. Nil fields are absent.
type LeadFields struct {
	Name           *string
	Email          *string
	Phone          *string
	ZipCode        *string
	City           *string
	State          *string
	Address        *string
	Latitude       *float64
	Longitude      *float64
	ExternalID     *string
	ExternalSource *string
	SegmentID      *uuid.UUID
}

// NewLead builds a fresh lead and its first phone record from event fields.
// The phone must be a possible number for region.
func NewLead(fields LeadFields, region string, now time.Time) (Lead, PhoneRecord, error) {
	if fields.Phone == nil {
		return Lead{}, PhoneRecord{}, apperr.Validation("phone is required").WithOp("lead.new")
	}
	if err := phone.Validate(*fields.Phone, region); err != nil {
		return Lead{}, PhoneRecord{}, err
	}
	if err := validateCoordinates(fields.Latitude, fields.Longitude); err != nil {
		return Lead{}, PhoneRecord{}, err
	}

	lead := Lead{
		ID:        uuid.New(),
		Status:    LeadStatusNew,
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	lead.apply(fields)

	return lead, NewPhoneRecord(lead.ID, lead.Phone, now), nil
}

// ApplyUpdate patches the provided fields onto the lead. When the phone
// changes, the returned record must be appended to the lead's phone history.
func (l *Lead) ApplyUpdate(fields LeadFields, region string, now time.Time) (*PhoneRecord, error) {
	if fields.Phone != nil {
		if err := phone.Validate(*fields.Phone, region); err != nil {
			return nil, err
		}
	}
	lat, lon := l.Latitude, l.Longitude
	if fields.Latitude != nil {
		lat = fields.Latitude
	}
	if fields.Longitude != nil {
		lon = fields.Longitude
	}
	if err := validateCoordinates(lat, lon); err != nil {
		return nil, err
	}

	previous := phone.Normalize(l.Phone)
	l.apply(fields)
	l.UpdatedAt = now

	if fields.Phone == nil || phone.Normalize(*fields.Phone) == previous {
		return nil, nil
	}
	rec := NewPhoneRecord(l.ID, *fields.Phone, now)
	return &rec, nil
}

func (l *Lead) apply(f LeadFields) {
	if f.Name != nil {
		l.Name = strings.TrimSpace(*f.Name)
	}
	if f.Email != nil {
		l.Email = trimmed(f.Email)
	}
	if f.Phone != nil {
		l.Phone = strings.TrimSpace(*f.Phone)
	}
	if f.ZipCode != nil {
		l.ZipCode = trimmed(f.ZipCode)
	}
	if f.City != nil {
		l.City = trimmed(f.City)
	}
	if f.State != nil {
		l.State = trimmed(f.State)
	}
	if f.Address != nil {
		l.Address = trimmed(f.Address)
	}
	if f.Latitude != nil {
		l.Latitude = f.Latitude
	}
	if f.Longitude != nil {
		l.Longitude = f.Longitude
	}
	if f.ExternalID != nil {
		l.ExternalID = trimmed(f.ExternalID)
	}
	if f.ExternalSource != nil {
		l.ExternalSource = trimmed(f.ExternalSource)
	}
	if f.SegmentID != nil {
		id := *f.SegmentID
		l.SegmentID = &id
	}
}

func validateCoordinates(lat, lon *float64) error {
	if (lat == nil) != (lon == nil) {
		return apperr.Validation("latitude and longitude must be provided together")
	}
	if lat == nil {
		return nil
	}
	if !(geo.Point{Lat: *lat, Lon: *lon}).Valid() {
		return apperr.Validation("coordinates out of range")
	}
	return nil
}

func trimmed(s *string) *string {
	v := strings.TrimSpace(*s)
	if v == "" {
		return nil
	}
	return &v
}
