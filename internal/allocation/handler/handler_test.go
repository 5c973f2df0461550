package handler

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"leadrouter_backend/internal/allocation/allocationtest"
	"leadrouter_backend/internal/allocation/assignments"
	"leadrouter_backend/internal/allocation/domain"
	"leadrouter_backend/internal/allocation/intake"
	"leadrouter_backend/internal/allocation/ledger"
	"leadrouter_backend/internal/allocation/matching"
	"leadrouter_backend/internal/allocation/network"
	"leadrouter_backend/internal/allocation/transport"
	"leadrouter_backend/internal/allocation/warranty"
	"leadrouter_backend/platform/geo"
	"leadrouter_backend/platform/httpkit"
	"leadrouter_backend/platform/logger"
	"leadrouter_backend/platform/validator"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	t0       = time.Date(2026, 3, 9, 10, 0, 0, 0, time.UTC)
	saoPaulo = geo.Point{Lat: -23.5505, Lon: -46.6333}
	analyst  = uuid.MustParse("0b7c36a4-77e4-4b7e-9a55-3f1f3a5b9c01")
)

type harness struct {
	repo   *allocationtest.Repo
	engine *gin.Engine
}

// newHarness mounts the handler behind a fake auth middleware that grants
// the roles passed in the X-Test-Roles header.
func newHarness(t *testing.T) harness {
	t.Helper()
	gin.SetMode(gin.TestMode)

	repo := allocationtest.New()
	clock := allocationtest.NewClock(t0)
	log := logger.New("test")
	ledgerSvc := ledger.New(repo, ledger.Config{}, nil, log).WithClock(clock.Now)

	val := validator.New()
	require.NoError(t, transport.RegisterValidations(val))

	h := New(Services{
		Intake:      intake.New(repo, nil, intake.Config{}, log).WithClock(clock.Now),
		Matching:    matching.New(repo, matching.Config{}).WithClock(clock.Now),
		Assignments: assignments.New(repo, ledgerSvc, assignments.Config{}, log),
		Warranty:    warranty.New(repo, ledgerSvc, warranty.Config{}, log),
		Network: network.New(repo, network.Config{
			DefaultWarrantyPercentage: 30,
			Radius:                    domain.RadiusBounds{MinKm: 1, MaxKm: 200},
		}, log).WithClock(clock.Now),
	}, val)

	engine := gin.New()
	api := engine.Group("/api/v1", func(c *gin.Context) {
		c.Set(httpkit.ContextUserIDKey, analyst)
		var roles []string
		if r := c.GetHeader("X-Test-Roles"); r != "" {
			roles = append(roles, r)
		}
		c.Set(httpkit.ContextRolesKey, roles)
		c.Next()
	})
	h.RegisterRoutes(api)
	h.RegisterAdminRoutes(api.Group("/admin"))

	return harness{repo: repo, engine: engine}
}

func (h harness) do(t *testing.T, method, path string, body interface{}, role string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if role != "" {
		req.Header.Set("X-Test-Roles", role)
	}
	rec := httptest.NewRecorder()
	h.engine.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func (h harness) seedStore(contracted, pct int) (domain.Store, domain.Contract) {
	company := h.repo.SeedCompany("Rede", t0)
	store, _ := h.repo.SeedStore(company.ID, "Centro", saoPaulo, 10, t0)
	contract := h.repo.SeedContract(domain.OwnerStore(store.ID), contracted, pct, t0)
	return store, contract
}

func TestCreateAssignment(t *testing.T) {
	h := newHarness(t)
	store, contract := h.seedStore(10, 30)
	lead := h.repo.SeedLead("Maria", "(11) 98765-4321", &saoPaulo, t0)

	rec := h.do(t, http.MethodPost, "/api/v1/assignments", transport.CreateAssignmentRequest{LeadID: lead.ID, StoreID: store.ID}, "")
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	got := decode[transport.AssignmentResponse](t, rec)
	assert.Equal(t, contract.ID, got.ContractID)
	assert.Equal(t, "new", got.Status)
	assert.Equal(t, 1, h.repo.Contract(contract.ID).LeadsDelivered)

	rec = h.do(t, http.MethodPost, "/api/v1/assignments", transport.CreateAssignmentRequest{LeadID: lead.ID, StoreID: store.ID}, "")
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "business_rule", decode[httpkit.ErrorResponse](t, rec).Kind)
}

func TestCreateAssignmentRejectsBadInput(t *testing.T) {
	h := newHarness(t)

	rec := h.do(t, http.MethodPost, "/api/v1/assignments", map[string]string{"leadId": "nope"}, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = h.do(t, http.MethodPost, "/api/v1/assignments", map[string]string{}, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, msgValidationFailed, decode[httpkit.ErrorResponse](t, rec).Error)

	rec = h.do(t, http.MethodGet, "/api/v1/assignments/not-a-uuid", nil, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = h.do(t, http.MethodGet, "/api/v1/assignments/"+uuid.NewString(), nil, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestEligibleStores(t *testing.T) {
	h := newHarness(t)
	store, _ := h.seedStore(10, 30)
	lead := h.repo.SeedLead("Maria", "(11) 98765-4321", &saoPaulo, t0)
	rio := geo.Point{Lat: -22.9068, Lon: -43.1729}
	far := h.repo.SeedLead("Rio", "(21) 98765-4321", &rio, t0)

	rec := h.do(t, http.MethodGet, "/api/v1/leads/"+lead.ID.String()+"/eligible-stores", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	matches := decode[[]transport.StoreMatchResponse](t, rec)
	require.Len(t, matches, 1)
	assert.Equal(t, store.ID, matches[0].StoreID)
	assert.Zero(t, matches[0].DistanceKm)

	rec = h.do(t, http.MethodGet, "/api/v1/leads/"+far.ID.String()+"/eligible-stores", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, "[]", rec.Body.String())

	rec = h.do(t, http.MethodGet, "/api/v1/stores/"+store.ID.String()+"/eligible-leads?limit=0", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	leads := decode[[]transport.LeadMatchResponse](t, rec)
	require.Len(t, leads, 1)
	assert.Equal(t, lead.ID, leads[0].LeadID)

	rec = h.do(t, http.MethodGet, "/api/v1/stores/"+store.ID.String()+"/eligible-leads?limit=9999", nil, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestWarrantyDecisionsRequireRole(t *testing.T) {
	h := newHarness(t)
	store, contract := h.seedStore(10, 30)
	lead := h.repo.SeedLead("Maria", "(11) 98765-4321", &saoPaulo, t0)
	a := h.repo.SeedAssignment(lead.ID, store.ID, contract.ID, t0)

	rec := h.do(t, http.MethodPost, "/api/v1/warranties", transport.OpenWarrantyRequest{AssignmentID: a.ID, Reason: "número inexistente"}, "")
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	claim := decode[transport.WarrantyResponse](t, rec)
	assert.Equal(t, "pending", claim.Status)

	approve := "/api/v1/warranties/" + claim.ID.String() + "/approve"
	rec = h.do(t, http.MethodPost, approve, nil, "")
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = h.do(t, http.MethodPost, approve, nil, httpkit.RoleAnalyst)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	approved := decode[transport.WarrantyResponse](t, rec)
	assert.Equal(t, "waiting_replacement", approved.Status)
	require.NotNil(t, approved.AnalyzedBy)
	assert.Equal(t, analyst, *approved.AnalyzedBy)
	assert.Equal(t, 1, h.repo.Contract(contract.ID).LeadsWarrantyUsed)

	replacement := h.repo.SeedLead("Substituto", "(11) 93333-3333", &saoPaulo, t0)
	rec = h.do(t, http.MethodPost, "/api/v1/warranties/"+claim.ID.String()+"/replacement",
		transport.ReplacementRequest{NewLeadID: replacement.ID}, httpkit.RoleAdmin)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	out := decode[transport.ReplacementResponse](t, rec)
	assert.Equal(t, "replaced", out.Warranty.Status)
	assert.True(t, out.Assignment.IsWarranty)
}

func TestApproveAtWarrantyLimit(t *testing.T) {
	h := newHarness(t)
	store, contract := h.seedStore(10, 0)
	lead := h.repo.SeedLead("Maria", "(11) 98765-4321", &saoPaulo, t0)
	a := h.repo.SeedAssignment(lead.ID, store.ID, contract.ID, t0)

	rec := h.do(t, http.MethodPost, "/api/v1/warranties", transport.OpenWarrantyRequest{AssignmentID: a.ID, Reason: "duplicado"}, "")
	require.Equal(t, http.StatusCreated, rec.Code)
	claim := decode[transport.WarrantyResponse](t, rec)

	rec = h.do(t, http.MethodPost, "/api/v1/warranties/"+claim.ID.String()+"/approve", transport.DecideWarrantyRequest{Notes: "ok"}, httpkit.RoleAnalyst)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, domain.WarrantyPending, h.repo.Warranty(claim.ID).Status)
}

func TestApplyLeadEvent(t *testing.T) {
	h := newHarness(t)
	phone := "(11) 98765-4321"
	name := "Maria"

	rec := h.do(t, http.MethodPost, "/api/v1/leads/events", transport.LeadEventRequest{
		Kind:   "created",
		Fields: transport.LeadFields{Name: &name, Phone: &phone},
	}, "")
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decode[transport.LeadEventResponse](t, rec)
	assert.True(t, created.Created)
	assert.Equal(t, "new", created.Status)

	bad := "abc"
	rec = h.do(t, http.MethodPost, "/api/v1/leads/events", transport.LeadEventRequest{
		Kind:   "created",
		Fields: transport.LeadFields{Phone: &bad},
	}, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = h.do(t, http.MethodPost, "/api/v1/leads/events", transport.LeadEventRequest{Kind: "deleted"}, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUpdateAssignmentStatus(t *testing.T) {
	h := newHarness(t)
	store, contract := h.seedStore(10, 30)
	lead := h.repo.SeedLead("Maria", "(11) 98765-4321", &saoPaulo, t0)
	a := h.repo.SeedAssignment(lead.ID, store.ID, contract.ID, t0)
	path := "/api/v1/assignments/" + a.ID.String() + "/status"

	rec := h.do(t, http.MethodPatch, path, map[string]string{"status": "contacted", "notes": "ligou"}, "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, domain.AssignmentContacted, h.repo.Assignment(a.ID).Status)

	rec = h.do(t, http.MethodPatch, path, map[string]string{"status": "lost"}, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, map[string]interface{}{"status": "assignmentstatus"}, decode[httpkit.ErrorResponse](t, rec).Details)
}

func TestAdminContractLifecycle(t *testing.T) {
	h := newHarness(t)

	rec := h.do(t, http.MethodPost, "/api/v1/admin/companies", transport.CreateCompanyRequest{Name: "Rede Norte"}, "")
	require.Equal(t, http.StatusCreated, rec.Code)
	company := decode[transport.CompanyResponse](t, rec)

	rec = h.do(t, http.MethodPost, "/api/v1/admin/stores", transport.CreateStoreRequest{CompanyID: company.ID, Name: "Loja 1"}, "")
	require.Equal(t, http.StatusCreated, rec.Code)
	store := decode[transport.StoreResponse](t, rec)

	lat, lon := saoPaulo.Lat, saoPaulo.Lon
	rec = h.do(t, http.MethodPost, "/api/v1/admin/stores/"+store.ID.String()+"/locations",
		transport.SaveLocationRequest{Name: "Matriz", Latitude: &lat, Longitude: &lon}, "")
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	loc := decode[transport.LocationResponse](t, rec)
	assert.True(t, loc.IsMain)
	assert.Equal(t, domain.DefaultCoverageRadiusKm, loc.CoverageRadiusKm)

	req := transport.RegisterContractRequest{
		OwnerType:       "company",
		OwnerID:         company.ID,
		StartDate:       t0,
		EndDate:         t0.AddDate(1, 0, 0),
		LeadPrice:       20,
		LeadsContracted: 100,
	}
	rec = h.do(t, http.MethodPost, "/api/v1/admin/contracts", req, "")
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	contract := decode[transport.ContractResponse](t, rec)
	assert.Equal(t, 30, contract.WarrantyPercentage)
	assert.Equal(t, 30, contract.AvailableWarrantyLeads)
	assert.Equal(t, 100, contract.RemainingLeads)

	rec = h.do(t, http.MethodPost, "/api/v1/admin/contracts", req, "")
	assert.Equal(t, http.StatusConflict, rec.Code)

	req.OwnerType = "region"
	rec = h.do(t, http.MethodPost, "/api/v1/admin/contracts", req, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = h.do(t, http.MethodGet, "/api/v1/admin/contracts/"+contract.ID.String(), nil, "")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = h.do(t, http.MethodDelete, "/api/v1/admin/contracts/"+contract.ID.String(), nil, "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = h.do(t, http.MethodGet, "/api/v1/admin/contracts/"+contract.ID.String(), nil, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestLeadReads(t *testing.T) {
	h := newHarness(t)
	maria := h.repo.SeedLead("Maria Souza", "(11) 98765-4321", &saoPaulo, t0)
	joao := h.repo.SeedLead("João", "(21) 3333-4444", nil, t0.Add(time.Minute))
	inactive := h.repo.SeedLead("Marta", "(11) 95555-0000", &saoPaulo, t0.Add(2*time.Minute))
	inactive.IsActive = false
	h.repo.PutLead(inactive)

	rec := h.do(t, http.MethodGet, "/api/v1/leads?pageSize=2", nil, "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	page := decode[transport.ListLeadsResponse](t, rec)
	assert.Equal(t, 3, page.Total)
	assert.Equal(t, 2, page.TotalPages)
	require.Len(t, page.Items, 2)
	assert.Equal(t, inactive.ID, page.Items[0].ID)
	assert.Equal(t, joao.ID, page.Items[1].ID)

	rec = h.do(t, http.MethodGet, "/api/v1/leads?name=mar&isActive=true", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	page = decode[transport.ListLeadsResponse](t, rec)
	require.Len(t, page.Items, 1)
	assert.Equal(t, maria.ID, page.Items[0].ID)

	rec = h.do(t, http.MethodGet, "/api/v1/leads?phone=5511987654321", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	page = decode[transport.ListLeadsResponse](t, rec)
	require.Len(t, page.Items, 1)
	assert.Equal(t, maria.ID, page.Items[0].ID)

	rec = h.do(t, http.MethodGet, "/api/v1/leads?segmentId=nope", nil, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec = h.do(t, http.MethodGet, "/api/v1/leads?pageSize=500", nil, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = h.do(t, http.MethodGet, "/api/v1/leads/"+maria.ID.String(), nil, "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	detail := decode[transport.LeadDetailResponse](t, rec)
	assert.Equal(t, "Maria Souza", detail.Name)
	require.Len(t, detail.Phones, 1)
	assert.Equal(t, "11987654321", detail.Phones[0].Normalized)

	rec = h.do(t, http.MethodGet, "/api/v1/leads/"+uuid.NewString(), nil, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
