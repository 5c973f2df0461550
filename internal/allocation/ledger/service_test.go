package ledger

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"leadrouter_backend/internal/allocation/allocationtest"
	"leadrouter_backend/internal/allocation/domain"
	"leadrouter_backend/platform/apperr"
	"leadrouter_backend/platform/logger"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

type scheduled struct {
	contractID uuid.UUID
	at         time.Time
}

type recordingScheduler struct {
	mu    sync.Mutex
	calls []scheduled
	err   error
}

func (r *recordingScheduler) ScheduleAutoClose(_ context.Context, contractID uuid.UUID, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, scheduled{contractID: contractID, at: at})
	return r.err
}

func newLedger(t *testing.T) (*Service, *allocationtest.Repo, *allocationtest.Clock, *recordingScheduler) {
	t.Helper()
	repo := allocationtest.New()
	clock := allocationtest.NewClock(t0)
	sched := &recordingScheduler{}
	svc := New(repo, Config{AutoCloseGrace: 7 * 24 * time.Hour}, sched, logger.New("test")).WithClock(clock.Now)
	return svc, repo, clock, sched
}

func TestIncrementDeliveredCompletesWithoutWarranty(t *testing.T) {
	svc, repo, _, sched := newLedger(t)
	contract := repo.SeedContract(domain.OwnerCompany(uuid.New()), 3, 0, t0)

	for i := 0; i < 3; i++ {
		_, err := svc.IncrementDelivered(context.Background(), contract.ID)
		require.NoError(t, err)
	}

	stored := repo.Contract(contract.ID)
	assert.Equal(t, 3, stored.LeadsDelivered)
	assert.False(t, stored.IsActive)
	require.NotNil(t, stored.CompletedAt)
	assert.Nil(t, stored.AutoCloseAt)
	assert.Empty(t, sched.calls)
}

func TestIncrementDeliveredSchedulesAutoClose(t *testing.T) {
	svc, repo, _, sched := newLedger(t)
	contract := repo.SeedContract(domain.OwnerCompany(uuid.New()), 2, 30, t0)

	_, err := svc.IncrementDelivered(context.Background(), contract.ID)
	require.NoError(t, err)
	assert.Empty(t, sched.calls)

	updated, err := svc.IncrementDelivered(context.Background(), contract.ID)
	require.NoError(t, err)
	assert.True(t, updated.IsActive)
	require.NotNil(t, updated.AutoCloseAt)
	assert.Equal(t, t0.Add(7*24*time.Hour), *updated.AutoCloseAt)

	require.Len(t, sched.calls, 1)
	assert.Equal(t, contract.ID, sched.calls[0].contractID)
	assert.Equal(t, *updated.AutoCloseAt, sched.calls[0].at)
}

func TestIncrementDeliveredSurvivesSchedulerFailure(t *testing.T) {
	svc, repo, _, sched := newLedger(t)
	sched.err = errors.New("redis down")
	contract := repo.SeedContract(domain.OwnerCompany(uuid.New()), 1, 50, t0)

	_, err := svc.IncrementDelivered(context.Background(), contract.ID)
	require.NoError(t, err)
	assert.NotNil(t, repo.Contract(contract.ID).AutoCloseAt)
}

func TestIncrementDeliveredRejectsInactiveContract(t *testing.T) {
	svc, repo, _, _ := newLedger(t)
	contract := repo.SeedContract(domain.OwnerCompany(uuid.New()), 5, 30, t0)
	contract.IsActive = false
	repo.PutContract(contract)

	_, err := svc.IncrementDelivered(context.Background(), contract.ID)
	assert.True(t, apperr.Is(err, apperr.KindBusinessRule))
	assert.Equal(t, 0, repo.Contract(contract.ID).LeadsDelivered)
}

func TestIncrementDeliveredUnknownContract(t *testing.T) {
	svc, _, _, _ := newLedger(t)

	_, err := svc.IncrementDelivered(context.Background(), uuid.New())
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
}

func TestIncrementDeliveredRollsBackOnWriteFailure(t *testing.T) {
	svc, repo, _, _ := newLedger(t)
	contract := repo.SeedContract(domain.OwnerCompany(uuid.New()), 5, 30, t0)
	repo.FailOn("UpdateContract", apperr.Concurrency("lock timeout"))

	_, err := svc.IncrementDelivered(context.Background(), contract.ID)
	assert.True(t, apperr.Is(err, apperr.KindConcurrency))
	assert.Equal(t, 0, repo.Contract(contract.ID).LeadsDelivered)
	assert.Equal(t, 1, repo.Rollbacks)
}

func TestProcessReturnExhaustsAllowanceAndCompletes(t *testing.T) {
	svc, repo, _, _ := newLedger(t)
	contract := repo.SeedContract(domain.OwnerCompany(uuid.New()), 100, 30, t0)
	contract.LeadsDelivered = 100
	autoClose := t0.Add(48 * time.Hour)
	contract.AutoCloseAt = &autoClose
	repo.PutContract(contract)
	require.Equal(t, 30, contract.AvailableWarrantyLeads())

	for i := 0; i < 30; i++ {
		ok, err := svc.ProcessReturn(context.Background(), contract.ID, uuid.New())
		require.NoError(t, err)
		require.True(t, ok, "return %d", i+1)
	}

	stored := repo.Contract(contract.ID)
	assert.Equal(t, 30, stored.LeadsWarrantyUsed)
	assert.Equal(t, 30, stored.LeadsReturned)
	assert.False(t, stored.IsActive)
	assert.NotNil(t, stored.CompletedAt)
	assert.Nil(t, stored.AutoCloseAt)

	ok, err := svc.ProcessReturn(context.Background(), contract.ID, uuid.New())
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, 30, repo.Contract(contract.ID).LeadsWarrantyUsed)
}

func TestProcessReturnKeepsIncompleteContractActive(t *testing.T) {
	svc, repo, _, _ := newLedger(t)
	contract := repo.SeedContract(domain.OwnerCompany(uuid.New()), 10, 10, t0)

	ok, err := svc.ProcessReturn(context.Background(), contract.ID, uuid.New())
	require.NoError(t, err)
	assert.True(t, ok)

	stored := repo.Contract(contract.ID)
	assert.True(t, stored.IsActive)
	assert.True(t, stored.HasReachedWarrantyLimit())
}

func TestCloseIfDue(t *testing.T) {
	svc, repo, clock, _ := newLedger(t)
	contract := repo.SeedContract(domain.OwnerCompany(uuid.New()), 1, 30, t0)
	_, err := svc.IncrementDelivered(context.Background(), contract.ID)
	require.NoError(t, err)

	closed, err := svc.CloseIfDue(context.Background(), contract.ID)
	require.NoError(t, err)
	assert.False(t, closed)

	clock.Advance(7 * 24 * time.Hour)
	closed, err = svc.CloseIfDue(context.Background(), contract.ID)
	require.NoError(t, err)
	assert.True(t, closed)

	stored := repo.Contract(contract.ID)
	assert.False(t, stored.IsActive)
	assert.Nil(t, stored.AutoCloseAt)

	closed, err = svc.CloseIfDue(context.Background(), contract.ID)
	require.NoError(t, err)
	assert.False(t, closed)
}

func TestCloseDueContracts(t *testing.T) {
	svc, repo, clock, _ := newLedger(t)

	var due []uuid.UUID
	for i := 0; i < 5; i++ {
		c := repo.SeedContract(domain.OwnerCompany(uuid.New()), 1, 30, t0)
		_, err := svc.IncrementDelivered(context.Background(), c.ID)
		require.NoError(t, err)
		due = append(due, c.ID)
	}
	pending := repo.SeedContract(domain.OwnerCompany(uuid.New()), 10, 30, t0)

	clock.Advance(8 * 24 * time.Hour)
	closed, err := svc.CloseDueContracts(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 5, closed)

	for _, id := range due {
		assert.False(t, repo.Contract(id).IsActive)
	}
	assert.True(t, repo.Contract(pending.ID).IsActive)

	closed, err = svc.CloseDueContracts(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, closed)
}

func TestConcurrentDeliveriesNeverOvercount(t *testing.T) {
	svc, repo, _, _ := newLedger(t)
	contract := repo.SeedContract(domain.OwnerCompany(uuid.New()), 20, 0, t0)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = svc.IncrementDelivered(context.Background(), contract.ID)
		}()
	}
	wg.Wait()

	stored := repo.Contract(contract.ID)
	assert.Equal(t, 20, stored.LeadsDelivered)
	assert.False(t, stored.IsActive)
}
