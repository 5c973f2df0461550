package webhook

import (
	apphttp "leadrouter_backend/internal/http"
	"leadrouter_backend/platform/validator"
)

// Module is the webhook module implementing http.Module.
type Module struct {
	handler *Handler
	keys    KeyStore
}

// NewModule creates the webhook module. The validator must already carry the
// lead field tags registered by the allocation module.
func NewModule(svc *Service, keys KeyStore, val *validator.Validator) *Module {
	return &Module{handler: NewHandler(svc, val), keys: keys}
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "webhook"
}

// RegisterRoutes mounts webhook routes on the provided router context.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	// Upstream sources authenticate with an API key, no JWT.
	source := ctx.V1.Group("/webhook")
	source.Use(APIKeyAuthMiddleware(m.keys))
	source.POST("/lead-events", m.handler.HandleLeadEvent)

	keys := ctx.Admin.Group("/webhook/keys")
	keys.POST("", m.handler.HandleCreateKey)
	keys.GET("", m.handler.HandleListKeys)
	keys.DELETE("/:keyId", m.handler.HandleRevokeKey)
}

var _ apphttp.Module = (*Module)(nil)
