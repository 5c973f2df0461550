package handler

import (
	"context"
	"net/http"

	"leadrouter_backend/internal/allocation/assignments"
	"leadrouter_backend/internal/allocation/domain"
	"leadrouter_backend/internal/allocation/intake"
	"leadrouter_backend/internal/allocation/matching"
	"leadrouter_backend/internal/allocation/network"
	"leadrouter_backend/internal/allocation/transport"
	"leadrouter_backend/internal/allocation/warranty"
	"leadrouter_backend/platform/httpkit"
	"leadrouter_backend/platform/validator"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	msgInvalidRequest   = "invalid request"
	msgValidationFailed = "validation failed"
)

// Services groups the allocation services served over HTTP.
type Services struct {
	Intake      *intake.Service
	Matching    *matching.Service
	Assignments *assignments.Service
	Warranty    *warranty.Service
	Network     *network.Service
}

// Handler handles HTTP requests for lead allocation.
type Handler struct {
	svc Services
	val *validator.Validator
}

// New creates a new allocation handler.
func New(svc Services, val *validator.Validator) *Handler {
	return &Handler{svc: svc, val: val}
}

// RegisterRoutes registers the operational routes on the authenticated group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/leads", h.ListLeads)
	rg.GET("/leads/:id", h.GetLead)
	rg.POST("/leads/events", h.ApplyLeadEvent)
	rg.GET("/leads/:id/eligible-stores", h.EligibleStores)
	rg.GET("/leads/:id/assignments", h.ListLeadAssignments)
	rg.GET("/stores/:id/eligible-leads", h.EligibleLeads)

	rg.POST("/assignments", h.CreateAssignment)
	rg.GET("/assignments/:id", h.GetAssignment)
	rg.PATCH("/assignments/:id/status", h.UpdateAssignmentStatus)

	rg.POST("/warranties", h.OpenWarranty)
	rg.GET("/warranties/:id", h.GetWarranty)

	decisions := rg.Group("/warranties/:id", httpkit.RequireRole(httpkit.RoleAdmin, httpkit.RoleAnalyst))
	decisions.POST("/approve", h.ApproveWarranty)
	decisions.POST("/reject", h.RejectWarranty)
	decisions.POST("/replacement", h.AssignReplacement)
	decisions.POST("/approve-with-replacement", h.ApproveWithReplacement)
}

// RegisterAdminRoutes registers network and contract management routes.
func (h *Handler) RegisterAdminRoutes(rg *gin.RouterGroup) {
	rg.POST("/companies", h.CreateCompany)

	rg.POST("/stores", h.CreateStore)
	rg.GET("/stores/:id", h.GetStore)
	rg.DELETE("/stores/:id", h.DeleteStore)
	rg.GET("/stores/:id/locations", h.ListLocations)
	rg.POST("/stores/:id/locations", h.CreateLocation)
	rg.PUT("/stores/:id/locations/:locationId", h.UpdateLocation)
	rg.DELETE("/locations/:id", h.DeleteLocation)

	rg.POST("/contracts", h.RegisterContract)
	rg.GET("/contracts/:id", h.GetContract)
	rg.DELETE("/contracts/:id", h.DeleteContract)
}

func (h *Handler) bindJSON(c *gin.Context, req interface{}) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return false
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, validator.FieldErrors(err))
		return false
	}
	return true
}

func (h *Handler) bindQuery(c *gin.Context, req interface{}) bool {
	if err := c.ShouldBindQuery(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return false
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, validator.FieldErrors(err))
		return false
	}
	return true
}

func pathID(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return uuid.Nil, false
	}
	return id, true
}

func (h *Handler) ApplyLeadEvent(c *gin.Context) {
	var req transport.LeadEventRequest
	if !h.bindJSON(c, &req) {
		return
	}

	res, err := h.svc.Intake.Apply(c.Request.Context(), intake.Event{Kind: intake.Kind(req.Kind), Fields: req.Fields.Domain()})
	if httpkit.HandleError(c, err) {
		return
	}

	status := http.StatusOK
	if res.Created {
		status = http.StatusCreated
	}
	httpkit.JSON(c, status, transport.LeadEventResponse{
		LeadID:       res.Lead.ID,
		Status:       string(res.Lead.Status),
		Created:      res.Created,
		PhoneChanged: res.PhoneChanged,
		Geocoded:     res.Geocoded,
	})
}

func (h *Handler) ListLeads(c *gin.Context) {
	var req transport.ListLeadsRequest
	if !h.bindQuery(c, &req) {
		return
	}
	filter := intake.ListFilter{
		Name:     req.Name,
		Phone:    req.Phone,
		IsActive: req.IsActive,
		Page:     req.Page,
		PageSize: req.PageSize,
	}
	if req.SegmentID != "" {
		segmentID := uuid.MustParse(req.SegmentID)
		filter.SegmentID = &segmentID
	}

	result, err := h.svc.Intake.List(c.Request.Context(), filter)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, transport.ToListLeadsResponse(result.Items, result.Total, result.Page, result.PageSize, result.TotalPages))
}

func (h *Handler) GetLead(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	detail, err := h.svc.Intake.Get(c.Request.Context(), id)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, transport.ToLeadDetailResponse(detail.Lead, detail.Phones))
}

func (h *Handler) EligibleStores(c *gin.Context) {
	leadID, ok := pathID(c, "id")
	if !ok {
		return
	}

	matches, err := h.svc.Matching.FindStoresForLead(c.Request.Context(), leadID)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, transport.ToStoreMatches(matches))
}

func (h *Handler) EligibleLeads(c *gin.Context) {
	storeID, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req transport.EligibleLeadsRequest
	if !h.bindQuery(c, &req) {
		return
	}

	matches, err := h.svc.Matching.FindLeadsForStore(c.Request.Context(), storeID, req.Limit)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, transport.ToLeadMatches(matches))
}

func (h *Handler) ListLeadAssignments(c *gin.Context) {
	leadID, ok := pathID(c, "id")
	if !ok {
		return
	}

	items, err := h.svc.Assignments.ListForLead(c.Request.Context(), leadID)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, transport.ToAssignmentResponses(items))
}

func (h *Handler) CreateAssignment(c *gin.Context) {
	var req transport.CreateAssignmentRequest
	if !h.bindJSON(c, &req) {
		return
	}

	a, err := h.svc.Assignments.Create(c.Request.Context(), req.LeadID, req.StoreID)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.JSON(c, http.StatusCreated, transport.ToAssignmentResponse(a))
}

func (h *Handler) GetAssignment(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	a, err := h.svc.Assignments.Get(c.Request.Context(), id)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, transport.ToAssignmentResponse(a))
}

func (h *Handler) UpdateAssignmentStatus(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req transport.UpdateAssignmentStatusRequest
	if !h.bindJSON(c, &req) {
		return
	}

	a, err := h.svc.Assignments.UpdateStatus(c.Request.Context(), id, domain.AssignmentStatus(req.Status), req.Notes)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, transport.ToAssignmentResponse(a))
}

func (h *Handler) OpenWarranty(c *gin.Context) {
	var req transport.OpenWarrantyRequest
	if !h.bindJSON(c, &req) {
		return
	}

	w, err := h.svc.Warranty.OpenClaim(c.Request.Context(), req.AssignmentID, req.Reason)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.JSON(c, http.StatusCreated, transport.ToWarrantyResponse(w))
}

func (h *Handler) GetWarranty(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	w, err := h.svc.Warranty.Get(c.Request.Context(), id)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, transport.ToWarrantyResponse(w))
}

func (h *Handler) ApproveWarranty(c *gin.Context) {
	h.decide(c, h.svc.Warranty.Approve)
}

func (h *Handler) RejectWarranty(c *gin.Context) {
	h.decide(c, h.svc.Warranty.Reject)
}

type decision func(ctx context.Context, warrantyID, analystID uuid.UUID, notes string) (domain.Warranty, error)

func (h *Handler) decide(c *gin.Context, fn decision) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req transport.DecideWarrantyRequest
	if c.Request.ContentLength != 0 && !h.bindJSON(c, &req) {
		return
	}
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}

	w, err := fn(c.Request.Context(), id, identity.UserID(), req.Notes)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, transport.ToWarrantyResponse(w))
}

func (h *Handler) AssignReplacement(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req transport.ReplacementRequest
	if !h.bindJSON(c, &req) {
		return
	}

	out, err := h.svc.Warranty.AssignReplacement(c.Request.Context(), id, req.NewLeadID)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, toReplacement(out))
}

func (h *Handler) ApproveWithReplacement(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req transport.ApproveWithReplacementRequest
	if !h.bindJSON(c, &req) {
		return
	}
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}

	out, err := h.svc.Warranty.ApproveWithReplacement(c.Request.Context(), id, identity.UserID(), req.Notes, req.NewLeadID)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, toReplacement(out))
}

func toReplacement(r warranty.Replacement) transport.ReplacementResponse {
	return transport.ReplacementResponse{
		Warranty:   transport.ToWarrantyResponse(r.Warranty),
		Assignment: transport.ToAssignmentResponse(r.Assignment),
	}
}
