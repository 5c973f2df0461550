// Package transport holds the HTTP request and response shapes of the
// allocation API.
package transport

import (
	"time"

	"leadrouter_backend/internal/allocation/domain"
	"leadrouter_backend/internal/allocation/network"
	"leadrouter_backend/platform/validator"

	"github.com/google/uuid"
)

const (
	TagAssignmentStatus = "assignmentstatus"
	TagOwnerType        = "ownertype"
)

// RegisterValidations adds the allocation enum tags to val.
func RegisterValidations(val *validator.Validator) error {
	if err := val.RegisterEnum(TagAssignmentStatus, func(s string) bool {
		return domain.AssignmentStatus(s).Valid()
	}); err != nil {
		return err
	}
	return val.RegisterEnum(TagOwnerType, func(s string) bool {
		return s == string(domain.OwnerTypeCompany) || s == string(domain.OwnerTypeStore)
	})
}

type LeadFields struct {
	Name           *string    `json:"name,omitempty" validate:"omitempty,max=200"`
	Email          *string    `json:"email,omitempty" validate:"omitempty,email,max=254"`
	Phone          *string    `json:"phone,omitempty" validate:"omitempty,leadphone"`
	ZipCode        *string    `json:"zipCode,omitempty" validate:"omitempty,max=20"`
	City           *string    `json:"city,omitempty" validate:"omitempty,max=120"`
	State          *string    `json:"state,omitempty" validate:"omitempty,max=60"`
	Address        *string    `json:"address,omitempty" validate:"omitempty,max=300"`
	Latitude       *float64   `json:"latitude,omitempty" validate:"omitempty,gte=-90,lte=90"`
	Longitude      *float64   `json:"longitude,omitempty" validate:"omitempty,gte=-180,lte=180"`
	ExternalID     *string    `json:"externalId,omitempty" validate:"omitempty,max=120"`
	ExternalSource *string    `json:"externalSource,omitempty" validate:"omitempty,max=60"`
	SegmentID      *uuid.UUID `json:"segmentId,omitempty"`
}

type LeadEventRequest struct {
	Kind   string     `json:"kind" validate:"required,oneof=created updated"`
	Fields LeadFields `json:"fields"`
}

func (f LeadFields) Domain() domain.LeadFields {
	return domain.LeadFields{
		Name:           f.Name,
		Email:          f.Email,
		Phone:          f.Phone,
		ZipCode:        f.ZipCode,
		City:           f.City,
		State:          f.State,
		Address:        f.Address,
		Latitude:       f.Latitude,
		Longitude:      f.Longitude,
		ExternalID:     f.ExternalID,
		ExternalSource: f.ExternalSource,
		SegmentID:      f.SegmentID,
	}
}

type LeadEventResponse struct {
	LeadID       uuid.UUID `json:"leadId"`
	Status       string    `json:"status"`
	Created      bool      `json:"created"`
	PhoneChanged bool      `json:"phoneChanged"`
	Geocoded     bool      `json:"geocoded"`
}

type ListLeadsRequest struct {
	SegmentID string `form:"segmentId" validate:"omitempty,uuid"`
	Name      string `form:"name" validate:"omitempty,max=200"`
	Phone     string `form:"phone" validate:"omitempty,max=40"`
	IsActive  *bool  `form:"isActive"`
	Page      int    `form:"page" validate:"omitempty,min=1"`
	PageSize  int    `form:"pageSize" validate:"omitempty,min=1,max=100"`
}

type LeadResponse struct {
	ID             uuid.UUID  `json:"id"`
	SegmentID      *uuid.UUID `json:"segmentId,omitempty"`
	Name           string     `json:"name"`
	Email          *string    `json:"email,omitempty"`
	Phone          string     `json:"phone"`
	ZipCode        *string    `json:"zipCode,omitempty"`
	City           *string    `json:"city,omitempty"`
	State          *string    `json:"state,omitempty"`
	Address        *string    `json:"address,omitempty"`
	Latitude       *float64   `json:"latitude,omitempty"`
	Longitude      *float64   `json:"longitude,omitempty"`
	ExternalID     *string    `json:"externalId,omitempty"`
	ExternalSource *string    `json:"externalSource,omitempty"`
	Status         string     `json:"status"`
	IsActive       bool       `json:"isActive"`
	CreatedAt      time.Time  `json:"createdAt"`
	UpdatedAt      time.Time  `json:"updatedAt"`
}

type PhoneRecordResponse struct {
	Original   string    `json:"original"`
	Normalized string    `json:"normalized"`
	CreatedAt  time.Time `json:"createdAt"`
}

type LeadDetailResponse struct {
	LeadResponse
	Phones []PhoneRecordResponse `json:"phones"`
}

type ListLeadsResponse struct {
	Items      []LeadResponse `json:"items"`
	Total      int            `json:"total"`
	Page       int            `json:"page"`
	PageSize   int            `json:"pageSize"`
	TotalPages int            `json:"totalPages"`
}

type StoreMatchResponse struct {
	StoreID    uuid.UUID `json:"storeId"`
	CompanyID  uuid.UUID `json:"companyId"`
	StoreName  string    `json:"storeName"`
	DistanceKm float64   `json:"distanceKm"`
}

type LeadMatchResponse struct {
	LeadID     uuid.UUID `json:"leadId"`
	LeadName   string    `json:"leadName"`
	DistanceKm float64   `json:"distanceKm"`
}

type EligibleLeadsRequest struct {
	Limit int `form:"limit" validate:"omitempty,min=1,max=500"`
}

type CreateAssignmentRequest struct {
	LeadID  uuid.UUID `json:"leadId" validate:"required"`
	StoreID uuid.UUID `json:"storeId" validate:"required"`
}

type UpdateAssignmentStatusRequest struct {
	Status string  `json:"status" validate:"required,assignmentstatus"`
	Notes  *string `json:"notes,omitempty" validate:"omitempty,max=2000"`
}

type AssignmentResponse struct {
	ID          uuid.UUID  `json:"id"`
	LeadID      uuid.UUID  `json:"leadId"`
	StoreID     uuid.UUID  `json:"storeId"`
	ContractID  uuid.UUID  `json:"contractId"`
	Status      string     `json:"status"`
	Notes       *string    `json:"notes,omitempty"`
	IsWarranty  bool       `json:"isWarranty"`
	SentAt      *time.Time `json:"sentAt,omitempty"`
	ContactedAt *time.Time `json:"contactedAt,omitempty"`
	ConvertedAt *time.Time `json:"convertedAt,omitempty"`
	ReturnedAt  *time.Time `json:"returnedAt,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
}

type OpenWarrantyRequest struct {
	AssignmentID uuid.UUID `json:"assignmentId" validate:"required"`
	Reason       string    `json:"reason" validate:"required,max=2000"`
}

type DecideWarrantyRequest struct {
	Notes string `json:"notes" validate:"max=2000"`
}

type ReplacementRequest struct {
	NewLeadID uuid.UUID `json:"newLeadId" validate:"required"`
}

type ApproveWithReplacementRequest struct {
	Notes     string    `json:"notes" validate:"max=2000"`
	NewLeadID uuid.UUID `json:"newLeadId" validate:"required"`
}

type WarrantyResponse struct {
	ID            uuid.UUID  `json:"id"`
	AssignmentID  uuid.UUID  `json:"assignmentId"`
	NewLeadID     *uuid.UUID `json:"newLeadId,omitempty"`
	Status        string     `json:"status"`
	ReturnReason  string     `json:"returnReason"`
	AnalysisNotes *string    `json:"analysisNotes,omitempty"`
	AnalyzedBy    *uuid.UUID `json:"analyzedBy,omitempty"`
	AnalyzedAt    *time.Time `json:"analyzedAt,omitempty"`
	ReplacedAt    *time.Time `json:"replacedAt,omitempty"`
	CreatedAt     time.Time  `json:"createdAt"`
}

type ReplacementResponse struct {
	Warranty   WarrantyResponse   `json:"warranty"`
	Assignment AssignmentResponse `json:"assignment"`
}

type CreateCompanyRequest struct {
	Name string `json:"name" validate:"required,max=200"`
}

type CompanyResponse struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	IsActive  bool      `json:"isActive"`
	CreatedAt time.Time `json:"createdAt"`
}

type CreateStoreRequest struct {
	CompanyID uuid.UUID `json:"companyId" validate:"required"`
	Name      string    `json:"name" validate:"required,max=200"`
}

type StoreResponse struct {
	ID        uuid.UUID `json:"id"`
	CompanyID uuid.UUID `json:"companyId"`
	Name      string    `json:"name"`
	IsActive  bool      `json:"isActive"`
	CreatedAt time.Time `json:"createdAt"`
}

type SaveLocationRequest struct {
	Name             string   `json:"name" validate:"max=200"`
	Latitude         *float64 `json:"latitude" validate:"required,gte=-90,lte=90"`
	Longitude        *float64 `json:"longitude" validate:"required,gte=-180,lte=180"`
	CoverageRadiusKm float64  `json:"coverageRadiusKm" validate:"gte=0"`
	IsMain           bool     `json:"isMain"`
	IsActive         *bool    `json:"isActive,omitempty"`
}

type LocationResponse struct {
	ID               uuid.UUID `json:"id"`
	StoreID          uuid.UUID `json:"storeId"`
	Name             string    `json:"name"`
	Latitude         float64   `json:"latitude"`
	Longitude        float64   `json:"longitude"`
	CoverageRadiusKm float64   `json:"coverageRadiusKm"`
	IsMain           bool      `json:"isMain"`
	IsActive         bool      `json:"isActive"`
}

type RegisterContractRequest struct {
	OwnerType          string    `json:"ownerType" validate:"required,ownertype"`
	OwnerID            uuid.UUID `json:"ownerId" validate:"required"`
	StartDate          time.Time `json:"startDate" validate:"required"`
	EndDate            time.Time `json:"endDate" validate:"required"`
	LeadPrice          float64   `json:"leadPrice" validate:"gte=0"`
	LeadsContracted    int       `json:"leadsContracted" validate:"required,min=1"`
	WarrantyPercentage *int      `json:"warrantyPercentage,omitempty" validate:"omitempty,min=0,max=100"`
}

func (r RegisterContractRequest) Input() network.ContractInput {
	return network.ContractInput{
		Owner:              domain.OwnerRef{Type: domain.OwnerType(r.OwnerType), ID: r.OwnerID},
		StartDate:          r.StartDate,
		EndDate:            r.EndDate,
		LeadPrice:          r.LeadPrice,
		LeadsContracted:    r.LeadsContracted,
		WarrantyPercentage: r.WarrantyPercentage,
	}
}

type ContractResponse struct {
	ID                      uuid.UUID  `json:"id"`
	OwnerType               string     `json:"ownerType"`
	OwnerID                 uuid.UUID  `json:"ownerId"`
	StartDate               time.Time  `json:"startDate"`
	EndDate                 time.Time  `json:"endDate"`
	LeadPrice               float64    `json:"leadPrice"`
	LeadsContracted         int        `json:"leadsContracted"`
	LeadsDelivered          int        `json:"leadsDelivered"`
	LeadsReturned           int        `json:"leadsReturned"`
	LeadsWarrantyUsed       int        `json:"leadsWarrantyUsed"`
	WarrantyPercentage      int        `json:"warrantyPercentage"`
	IsActive                bool       `json:"isActive"`
	CompletedAt             *time.Time `json:"completedAt,omitempty"`
	AutoCloseAt             *time.Time `json:"autoCloseAt,omitempty"`
	WarrantyAllowance       int        `json:"warrantyAllowance"`
	AvailableWarrantyLeads  int        `json:"availableWarrantyLeads"`
	RemainingLeads          int        `json:"remainingLeads"`
	IsComplete              bool       `json:"isComplete"`
	HasReachedWarrantyLimit bool       `json:"hasReachedWarrantyLimit"`
	WarrantyUsagePercentage float64    `json:"warrantyUsagePercentage"`
}

func ToLeadResponse(l domain.Lead) LeadResponse {
	return LeadResponse{
		ID:             l.ID,
		SegmentID:      l.SegmentID,
		Name:           l.Name,
		Email:          l.Email,
		Phone:          l.Phone,
		ZipCode:        l.ZipCode,
		City:           l.City,
		State:          l.State,
		Address:        l.Address,
		Latitude:       l.Latitude,
		Longitude:      l.Longitude,
		ExternalID:     l.ExternalID,
		ExternalSource: l.ExternalSource,
		Status:         string(l.Status),
		IsActive:       l.IsActive,
		CreatedAt:      l.CreatedAt,
		UpdatedAt:      l.UpdatedAt,
	}
}

func ToLeadDetailResponse(l domain.Lead, phones []domain.PhoneRecord) LeadDetailResponse {
	out := LeadDetailResponse{LeadResponse: ToLeadResponse(l), Phones: make([]PhoneRecordResponse, 0, len(phones))}
	for _, p := range phones {
		out.Phones = append(out.Phones, PhoneRecordResponse{Original: p.Original, Normalized: p.Normalized, CreatedAt: p.CreatedAt})
	}
	return out
}

func ToListLeadsResponse(items []domain.Lead, total, page, pageSize, totalPages int) ListLeadsResponse {
	out := ListLeadsResponse{
		Items:      make([]LeadResponse, 0, len(items)),
		Total:      total,
		Page:       page,
		PageSize:   pageSize,
		TotalPages: totalPages,
	}
	for _, l := range items {
		out.Items = append(out.Items, ToLeadResponse(l))
	}
	return out
}

func ToStoreMatches(matches []domain.StoreMatch) []StoreMatchResponse {
	out := make([]StoreMatchResponse, 0, len(matches))
	for _, m := range matches {
		out = append(out, StoreMatchResponse{StoreID: m.StoreID, CompanyID: m.CompanyID, StoreName: m.StoreName, DistanceKm: m.DistanceKm})
	}
	return out
}

func ToLeadMatches(matches []domain.LeadMatch) []LeadMatchResponse {
	out := make([]LeadMatchResponse, 0, len(matches))
	for _, m := range matches {
		out = append(out, LeadMatchResponse{LeadID: m.LeadID, LeadName: m.LeadName, DistanceKm: m.DistanceKm})
	}
	return out
}

func ToAssignmentResponse(a domain.Assignment) AssignmentResponse {
	return AssignmentResponse{
		ID:          a.ID,
		LeadID:      a.LeadID,
		StoreID:     a.StoreID,
		ContractID:  a.ContractID,
		Status:      string(a.Status),
		Notes:       a.Notes,
		IsWarranty:  a.IsWarranty,
		SentAt:      a.SentAt,
		ContactedAt: a.ContactedAt,
		ConvertedAt: a.ConvertedAt,
		ReturnedAt:  a.ReturnedAt,
		CreatedAt:   a.CreatedAt,
		UpdatedAt:   a.UpdatedAt,
	}
}

func ToAssignmentResponses(items []domain.Assignment) []AssignmentResponse {
	out := make([]AssignmentResponse, 0, len(items))
	for _, a := range items {
		out = append(out, ToAssignmentResponse(a))
	}
	return out
}

func ToWarrantyResponse(w domain.Warranty) WarrantyResponse {
	return WarrantyResponse{
		ID:            w.ID,
		AssignmentID:  w.AssignmentID,
		NewLeadID:     w.NewLeadID,
		Status:        string(w.Status),
		ReturnReason:  w.ReturnReason,
		AnalysisNotes: w.AnalysisNotes,
		AnalyzedBy:    w.AnalyzedBy,
		AnalyzedAt:    w.AnalyzedAt,
		ReplacedAt:    w.ReplacedAt,
		CreatedAt:     w.CreatedAt,
	}
}

func ToCompanyResponse(c domain.Company) CompanyResponse {
	return CompanyResponse{ID: c.ID, Name: c.Name, IsActive: c.IsActive, CreatedAt: c.CreatedAt}
}

func ToStoreResponse(s domain.Store) StoreResponse {
	return StoreResponse{ID: s.ID, CompanyID: s.CompanyID, Name: s.Name, IsActive: s.IsActive, CreatedAt: s.CreatedAt}
}

func ToLocationResponse(l domain.StoreLocation) LocationResponse {
	return LocationResponse{
		ID:               l.ID,
		StoreID:          l.StoreID,
		Name:             l.Name,
		Latitude:         l.Latitude,
		Longitude:        l.Longitude,
		CoverageRadiusKm: l.CoverageRadiusKm,
		IsMain:           l.IsMain,
		IsActive:         l.IsActive,
	}
}

func ToLocationResponses(items []domain.StoreLocation) []LocationResponse {
	out := make([]LocationResponse, 0, len(items))
	for _, l := range items {
		out = append(out, ToLocationResponse(l))
	}
	return out
}

func ToContractResponse(v network.ContractView) ContractResponse {
	return ContractResponse{
		ID:                      v.ID,
		OwnerType:               string(v.Owner.Type),
		OwnerID:                 v.Owner.ID,
		StartDate:               v.StartDate,
		EndDate:                 v.EndDate,
		LeadPrice:               v.LeadPrice,
		LeadsContracted:         v.LeadsContracted,
		LeadsDelivered:          v.LeadsDelivered,
		LeadsReturned:           v.LeadsReturned,
		LeadsWarrantyUsed:       v.LeadsWarrantyUsed,
		WarrantyPercentage:      v.WarrantyPercentage,
		IsActive:                v.IsActive,
		CompletedAt:             v.CompletedAt,
		AutoCloseAt:             v.AutoCloseAt,
		WarrantyAllowance:       v.WarrantyAllowance,
		AvailableWarrantyLeads:  v.AvailableWarrantyLeads,
		RemainingLeads:          v.RemainingLeads,
		IsComplete:              v.IsComplete,
		HasReachedWarrantyLimit: v.HasReachedWarrantyLimit,
		WarrantyUsagePercentage: v.WarrantyUsagePercentage,
	}
}
