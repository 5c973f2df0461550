package warranty

import (
	"context"
	"testing"
	"time"

	"leadrouter_backend/internal/allocation/allocationtest"
	"leadrouter_backend/internal/allocation/assignments"
	"leadrouter_backend/internal/allocation/domain"
	"leadrouter_backend/internal/allocation/ledger"
	"leadrouter_backend/platform/apperr"
	"leadrouter_backend/platform/geo"
	"leadrouter_backend/platform/logger"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	t0       = time.Date(2026, 4, 6, 8, 30, 0, 0, time.UTC)
	saoPaulo = geo.Point{Lat: -23.5505, Lon: -46.6333}
	analyst  = uuid.MustParse("7b1d5a52-8c0f-4a38-9d39-0b4a0f7c2a11")
)

type fixture struct {
	repo        *allocationtest.Repo
	clock       *allocationtest.Clock
	svc         *Service
	assignments *assignments.Service
	store       domain.Store
	contract    domain.Contract
}

func newFixture(t *testing.T, contracted, pct int) fixture {
	t.Helper()
	repo := allocationtest.New()
	clock := allocationtest.NewClock(t0)
	log := logger.New("test")
	ledgerSvc := ledger.New(repo, ledger.Config{}, nil, log).WithClock(clock.Now)

	company := repo.SeedCompany("Rede", t0)
	store, _ := repo.SeedStore(company.ID, "Centro", saoPaulo, 10, t0)
	contract := repo.SeedContract(domain.OwnerStore(store.ID), contracted, pct, t0)

	return fixture{
		repo:        repo,
		clock:       clock,
		svc:         New(repo, ledgerSvc, Config{RestrictionMonths: 3}, log),
		assignments: assignments.New(repo, ledgerSvc, assignments.Config{RestrictionMonths: 3}, log),
		store:       store,
		contract:    contract,
	}
}

func (f fixture) deliver(t *testing.T, phone string) domain.Assignment {
	t.Helper()
	lead := f.repo.SeedLead("Lead "+phone, phone, &saoPaulo, f.clock.Now())
	a, err := f.assignments.Create(context.Background(), lead.ID, f.store.ID)
	require.NoError(t, err)
	return a
}

func (f fixture) claim(t *testing.T, a domain.Assignment) domain.Warranty {
	t.Helper()
	w, err := f.svc.OpenClaim(context.Background(), a.ID, "telefone inexistente")
	require.NoError(t, err)
	return w
}

func TestOpenClaim(t *testing.T) {
	f := newFixture(t, 10, 30)
	a := f.deliver(t, "(11) 98765-4321")

	w := f.claim(t, a)
	assert.Equal(t, domain.WarrantyPending, w.Status)
	assert.Equal(t, a.ID, w.AssignmentID)
	assert.Equal(t, domain.AssignmentWarrantyPending, f.repo.Assignment(a.ID).Status)

	_, err := f.svc.OpenClaim(context.Background(), a.ID, "de novo")
	assert.True(t, apperr.Is(err, apperr.KindConflict))

	_, err = f.svc.OpenClaim(context.Background(), a.ID, "   ")
	assert.True(t, apperr.Is(err, apperr.KindValidation))

	_, err = f.svc.OpenClaim(context.Background(), uuid.New(), "x")
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
}

func TestApproveConsumesAllowance(t *testing.T) {
	f := newFixture(t, 10, 30)
	a := f.deliver(t, "(11) 98765-4321")
	w := f.claim(t, a)

	approved, err := f.svc.Approve(context.Background(), w.ID, analyst, "  número desligado ")
	require.NoError(t, err)
	assert.Equal(t, domain.WarrantyWaitingReplacement, approved.Status)
	require.NotNil(t, approved.AnalyzedBy)
	assert.Equal(t, analyst, *approved.AnalyzedBy)
	require.NotNil(t, approved.AnalysisNotes)
	assert.Equal(t, "número desligado", *approved.AnalysisNotes)

	stored := f.repo.Contract(f.contract.ID)
	assert.Equal(t, 1, stored.LeadsReturned)
	assert.Equal(t, 1, stored.LeadsWarrantyUsed)
	assert.Equal(t, domain.AssignmentWarrantyWaitingReplacement, f.repo.Assignment(a.ID).Status)

	_, err = f.svc.Approve(context.Background(), w.ID, analyst, "")
	assert.True(t, apperr.Is(err, apperr.KindBusinessRule))
	assert.Equal(t, 1, f.repo.Contract(f.contract.ID).LeadsWarrantyUsed)
}

func TestApproveAtWarrantyLimitChangesNothing(t *testing.T) {
	f := newFixture(t, 10, 10)
	first := f.claim(t, f.deliver(t, "(11) 91111-1111"))
	second := f.claim(t, f.deliver(t, "(11) 92222-2222"))

	_, err := f.svc.Approve(context.Background(), first.ID, analyst, "")
	require.NoError(t, err)

	_, err = f.svc.Approve(context.Background(), second.ID, analyst, "")
	require.True(t, apperr.Is(err, apperr.KindBusinessRule))

	assert.Equal(t, domain.WarrantyPending, f.repo.Warranty(second.ID).Status)
	assert.Nil(t, f.repo.Warranty(second.ID).AnalyzedBy)
	assert.Equal(t, domain.AssignmentWarrantyPending, f.repo.Assignment(second.AssignmentID).Status)
	assert.Equal(t, 1, f.repo.Contract(f.contract.ID).LeadsWarrantyUsed)
}

func TestReject(t *testing.T) {
	f := newFixture(t, 10, 30)
	a := f.deliver(t, "(11) 98765-4321")
	w := f.claim(t, a)

	rejected, err := f.svc.Reject(context.Background(), w.ID, analyst, "contato válido")
	require.NoError(t, err)
	assert.Equal(t, domain.WarrantyRejected, rejected.Status)
	assert.Equal(t, domain.AssignmentWarrantyRejected, f.repo.Assignment(a.ID).Status)
	assert.Equal(t, 0, f.repo.Contract(f.contract.ID).LeadsWarrantyUsed)

	_, err = f.svc.Reject(context.Background(), w.ID, analyst, "")
	assert.True(t, apperr.Is(err, apperr.KindBusinessRule))

	again := f.claim(t, a)
	assert.Equal(t, domain.WarrantyPending, again.Status)
}

func TestAssignReplacement(t *testing.T) {
	f := newFixture(t, 10, 30)
	a := f.deliver(t, "(11) 98765-4321")
	w := f.claim(t, a)
	_, err := f.svc.Approve(context.Background(), w.ID, analyst, "")
	require.NoError(t, err)

	newLead := f.repo.SeedLead("Substituto", "(11) 93333-3333", &saoPaulo, t0)
	out, err := f.svc.AssignReplacement(context.Background(), w.ID, newLead.ID)
	require.NoError(t, err)

	assert.Equal(t, domain.WarrantyReplaced, out.Warranty.Status)
	require.NotNil(t, out.Warranty.NewLeadID)
	assert.Equal(t, newLead.ID, *out.Warranty.NewLeadID)
	assert.NotNil(t, out.Warranty.ReplacedAt)

	assert.True(t, out.Assignment.IsWarranty)
	assert.Equal(t, domain.AssignmentNew, out.Assignment.Status)
	assert.Equal(t, f.store.ID, out.Assignment.StoreID)
	assert.Equal(t, f.contract.ID, out.Assignment.ContractID)
	assert.Equal(t, domain.AssignmentWarrantyReplaced, f.repo.Assignment(a.ID).Status)
	assert.Equal(t, domain.LeadStatusSent, f.repo.Lead(newLead.ID).Status)
	assert.Equal(t, 1, f.repo.Contract(f.contract.ID).LeadsDelivered)

	_, err = f.svc.AssignReplacement(context.Background(), w.ID, newLead.ID)
	assert.True(t, apperr.Is(err, apperr.KindBusinessRule))
}

func TestAssignReplacementRequiresApproval(t *testing.T) {
	f := newFixture(t, 10, 30)
	w := f.claim(t, f.deliver(t, "(11) 98765-4321"))
	newLead := f.repo.SeedLead("Substituto", "(11) 93333-3333", &saoPaulo, t0)

	_, err := f.svc.AssignReplacement(context.Background(), w.ID, newLead.ID)
	assert.True(t, apperr.Is(err, apperr.KindBusinessRule))
	assert.Equal(t, domain.WarrantyPending, f.repo.Warranty(w.ID).Status)
}

func TestAssignReplacementAcceptsLegacyApprovedStatus(t *testing.T) {
	f := newFixture(t, 10, 30)
	w := f.claim(t, f.deliver(t, "(11) 98765-4321"))
	stored := f.repo.Warranty(w.ID)
	stored.Status = domain.WarrantyApproved
	f.repo.PutWarranty(stored)
	newLead := f.repo.SeedLead("Substituto", "(11) 93333-3333", &saoPaulo, t0)

	out, err := f.svc.AssignReplacement(context.Background(), w.ID, newLead.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.WarrantyReplaced, out.Warranty.Status)
}

func TestAssignReplacementRespectsExclusivity(t *testing.T) {
	f := newFixture(t, 10, 30)
	a := f.deliver(t, "(11) 98765-4321")
	w := f.claim(t, a)
	_, err := f.svc.Approve(context.Background(), w.ID, analyst, "")
	require.NoError(t, err)

	sameContact := f.repo.SeedLead("Mesmo contato", "+55 11 98765-4321", &saoPaulo, t0)
	_, err = f.svc.AssignReplacement(context.Background(), w.ID, sameContact.ID)
	assert.True(t, apperr.Is(err, apperr.KindBusinessRule))

	_, err = f.svc.AssignReplacement(context.Background(), w.ID, a.LeadID)
	assert.True(t, apperr.Is(err, apperr.KindBusinessRule))
	assert.Equal(t, domain.WarrantyWaitingReplacement, f.repo.Warranty(w.ID).Status)
}

func TestApproveWithReplacementIsAtomic(t *testing.T) {
	f := newFixture(t, 10, 30)
	a := f.deliver(t, "(11) 98765-4321")
	w := f.claim(t, a)

	_, err := f.svc.ApproveWithReplacement(context.Background(), w.ID, analyst, "", uuid.New())
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
	assert.Equal(t, domain.WarrantyPending, f.repo.Warranty(w.ID).Status)
	assert.Equal(t, 0, f.repo.Contract(f.contract.ID).LeadsWarrantyUsed)
	assert.Equal(t, domain.AssignmentWarrantyPending, f.repo.Assignment(a.ID).Status)

	newLead := f.repo.SeedLead("Substituto", "(11) 93333-3333", &saoPaulo, t0)
	out, err := f.svc.ApproveWithReplacement(context.Background(), w.ID, analyst, "ok", newLead.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.WarrantyReplaced, out.Warranty.Status)
	require.NotNil(t, out.Warranty.AnalyzedBy)
	assert.Equal(t, 1, f.repo.Contract(f.contract.ID).LeadsWarrantyUsed)
	assert.Equal(t, domain.AssignmentWarrantyReplaced, f.repo.Assignment(a.ID).Status)
}

func TestReturnsCompleteFinishedContract(t *testing.T) {
	f := newFixture(t, 2, 50)
	first := f.deliver(t, "(11) 91111-1111")
	f.deliver(t, "(11) 92222-2222")
	require.True(t, f.repo.Contract(f.contract.ID).IsActive)

	w := f.claim(t, first)
	_, err := f.svc.Approve(context.Background(), w.ID, analyst, "")
	require.NoError(t, err)

	stored := f.repo.Contract(f.contract.ID)
	assert.False(t, stored.IsActive)
	assert.NotNil(t, stored.CompletedAt)
}
