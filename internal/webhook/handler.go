package webhook

import (
	"net/http"
	"time"

	"leadrouter_backend/internal/allocation/intake"
	"leadrouter_backend/internal/allocation/transport"
	"leadrouter_backend/platform/httpkit"
	"leadrouter_backend/platform/validator"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	msgInvalidRequest   = "invalid request"
	msgValidationFailed = "validation failed"
)

// Handler serves the source webhook and key management routes.
type Handler struct {
	svc *Service
	val *validator.Validator
}

// NewHandler creates a webhook handler.
func NewHandler(svc *Service, val *validator.Validator) *Handler {
	return &Handler{svc: svc, val: val}
}

// CreateKeyRequest is the request body for issuing a source key.
type CreateKeyRequest struct {
	Source string `json:"source" validate:"required,min=1,max=60"`
	Name   string `json:"name" validate:"required,min=1,max=100"`
}

// KeyResponse is returned when listing or creating keys.
type KeyResponse struct {
	ID        uuid.UUID `json:"id"`
	Source    string    `json:"source"`
	Name      string    `json:"name"`
	KeyPrefix string    `json:"keyPrefix"`
	IsActive  bool      `json:"isActive"`
	CreatedAt string    `json:"createdAt"`
}

// CreateKeyResponse includes the plaintext key, shown only once.
type CreateKeyResponse struct {
	KeyResponse
	Key string `json:"key"`
}

func toKeyResponse(k SourceKey) KeyResponse {
	return KeyResponse{
		ID:        k.ID,
		Source:    k.Source,
		Name:      k.Name,
		KeyPrefix: k.KeyPrefix,
		IsActive:  k.IsActive,
		CreatedAt: k.CreatedAt.Format(time.RFC3339),
	}
}

func (h *Handler) bindAndValidate(c *gin.Context, req interface{}) bool {
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

// HandleLeadEvent applies a lead event pushed by an upstream source.
// POST /api/v1/webhook/lead-events
func (h *Handler) HandleLeadEvent(c *gin.Context) {
	var req transport.LeadEventRequest
	if !h.bindAndValidate(c, &req) {
		return
	}

	source := c.GetString(contextSource)
	res, err := h.svc.Submit(c.Request.Context(), source, intake.Event{
		Kind:   intake.Kind(req.Kind),
		Fields: req.Fields.Domain(),
	})
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

// HandleCreateKey issues a new source key.
// POST /api/v1/admin/webhook/keys
func (h *Handler) HandleCreateKey(c *gin.Context) {
	var req CreateKeyRequest
	if !h.bindAndValidate(c, &req) {
		return
	}

	issued, err := h.svc.CreateKey(c.Request.Context(), req.Source, req.Name)
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.JSON(c, http.StatusCreated, CreateKeyResponse{
		KeyResponse: toKeyResponse(issued.SourceKey),
		Key:         issued.Plaintext,
	})
}

// HandleListKeys lists every source key.
// GET /api/v1/admin/webhook/keys
func (h *Handler) HandleListKeys(c *gin.Context) {
	keys, err := h.svc.ListKeys(c.Request.Context())
	if httpkit.HandleError(c, err) {
		return
	}

	out := make([]KeyResponse, 0, len(keys))
	for _, k := range keys {
		out = append(out, toKeyResponse(k))
	}
	httpkit.OK(c, out)
}

// HandleRevokeKey deactivates a source key.
// DELETE /api/v1/admin/webhook/keys/:keyId
func (h *Handler) HandleRevokeKey(c *gin.Context) {
	keyID, err := uuid.Parse(c.Param("keyId"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}

	if httpkit.HandleError(c, h.svc.RevokeKey(c.Request.Context(), keyID)) {
		return
	}
	c.Status(http.StatusNoContent)
}
