package intake

import (
	"context"

	"leadrouter_backend/internal/allocation/domain"
	"leadrouter_backend/internal/allocation/repository"
	"leadrouter_backend/platform/phone"

	"github.com/google/uuid"
)

// LeadDetail is a lead with its phone history, oldest first.
type LeadDetail struct {
	Lead   domain.Lead
	Phones []domain.PhoneRecord
}

// ListFilter narrows the lead listing. Zero values mean no filter.
type ListFilter struct {
	SegmentID *uuid.UUID
	Name      string
	Phone     string
	IsActive  *bool
	Page      int
	PageSize  int
}

// Get returns a live lead with its phone history.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (LeadDetail, error) {
	lead, err := s.repo.GetLead(ctx, id)
	if err != nil {
		return LeadDetail{}, err
	}
	phones, err := s.repo.ListLeadPhones(ctx, id)
	if err != nil {
		return LeadDetail{}, err
	}
	if phones == nil {
		phones = []domain.PhoneRecord{}
	}
	return LeadDetail{Lead: lead, Phones: phones}, nil
}

// List pages through live leads, newest first. The phone filter matches the
// raw phone as typed or, by digits, any normalized phone the lead ever had.
func (s *Service) List(ctx context.Context, f ListFilter) (repository.LeadListResult, error) {
	return s.repo.ListLeads(ctx, repository.LeadListParams{
		SegmentID:       f.SegmentID,
		Name:            f.Name,
		Phone:           f.Phone,
		NormalizedPhone: phone.Normalize(f.Phone),
		IsActive:        f.IsActive,
		Page:            f.Page,
		PageSize:        f.PageSize,
	})
}
