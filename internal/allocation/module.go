// Package allocation provides the lead allocation bounded context module:
// lead intake, store matching, deliveries, contract accounting and the
// warranty workflow.
package allocation

import (
	"leadrouter_backend/internal/allocation/assignments"
	"leadrouter_backend/internal/allocation/domain"
	"leadrouter_backend/internal/allocation/handler"
	"leadrouter_backend/internal/allocation/intake"
	"leadrouter_backend/internal/allocation/ledger"
	"leadrouter_backend/internal/allocation/matching"
	"leadrouter_backend/internal/allocation/network"
	"leadrouter_backend/internal/allocation/repository"
	"leadrouter_backend/internal/allocation/transport"
	"leadrouter_backend/internal/allocation/warranty"
	apphttp "leadrouter_backend/internal/http"
	"leadrouter_backend/platform/config"
	"leadrouter_backend/platform/logger"
	"leadrouter_backend/platform/validator"
)

// Services are the allocation services, built once and shared by the HTTP
// module, the scheduler worker and the ops CLI.
type Services struct {
	Ledger      *ledger.Service
	Intake      *intake.Service
	Matching    *matching.Service
	Assignments *assignments.Service
	Warranty    *warranty.Service
	Network     *network.Service
}

// NewServices wires every allocation service on top of repo.
// scheduler and geocoder may be nil.
func NewServices(
	repo repository.Repository,
	cfg config.AllocationConfig,
	scheduler ledger.AutoCloseScheduler,
	geocoder intake.Geocoder,
	log *logger.Logger,
) Services {
	months := cfg.GetRestrictionPeriodMonths()
	ledgerSvc := ledger.New(repo, ledger.Config{AutoCloseGrace: cfg.GetContractAutoCloseGrace()}, scheduler, log)

	return Services{
		Ledger: ledgerSvc,
		Intake: intake.New(repo, geocoder, intake.Config{PhoneRegion: cfg.GetPhoneDefaultRegion()}, log),
		Matching: matching.New(repo, matching.Config{
			RestrictionMonths: months,
			MaxRadiusKm:       cfg.GetMaxCoverageRadiusKm(),
		}),
		Assignments: assignments.New(repo, ledgerSvc, assignments.Config{RestrictionMonths: months}, log),
		Warranty:    warranty.New(repo, ledgerSvc, warranty.Config{RestrictionMonths: months}, log),
		Network: network.New(repo, network.Config{
			DefaultWarrantyPercentage: cfg.GetDefaultWarrantyPercentage(),
			Radius: domain.RadiusBounds{
				MinKm: cfg.GetMinCoverageRadiusKm(),
				MaxKm: cfg.GetMaxCoverageRadiusKm(),
			},
		}, log),
	}
}

// Module is the allocation bounded context module implementing http.Module.
type Module struct {
	handler  *handler.Handler
	services Services
}

// NewModule creates the allocation module and registers its validation tags.
func NewModule(services Services, val *validator.Validator) (*Module, error) {
	if err := transport.RegisterValidations(val); err != nil {
		return nil, err
	}
	h := handler.New(handler.Services{
		Intake:      services.Intake,
		Matching:    services.Matching,
		Assignments: services.Assignments,
		Warranty:    services.Warranty,
		Network:     services.Network,
	}, val)
	return &Module{handler: h, services: services}, nil
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "allocation"
}

// Services returns the service layer for the other entry points.
func (m *Module) Services() Services {
	return m.services
}

// RegisterRoutes mounts allocation routes on the provided router context.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	m.handler.RegisterRoutes(ctx.Protected)
	m.handler.RegisterAdminRoutes(ctx.Admin)
}

// Compile-time check that Module implements http.Module
var _ apphttp.Module = (*Module)(nil)
