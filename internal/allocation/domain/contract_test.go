package domain

import (
	"testing"
	"time"

	"leadrouter_backend/platform/apperr"

	"github.com/google/uuid"
)

var testNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func newContract(contracted, pct int) Contract {
	return Contract{
		ID:                 uuid.New(),
		Owner:              OwnerStore(uuid.New()),
		StartDate:          testNow,
		EndDate:            testNow.AddDate(0, 6, 0),
		LeadsContracted:    contracted,
		WarrantyPercentage: pct,
		IsActive:           true,
	}
}

func TestWarrantyAllowanceRoundsUp(t *testing.T) {
	cases := []struct {
		contracted, pct, want int
	}{
		{100, 30, 30},
		{10, 30, 3},
		{7, 30, 3},
		{1, 1, 1},
		{50, 0, 0},
	}
	for _, tc := range cases {
		c := newContract(tc.contracted, tc.pct)
		if got := c.AvailableWarrantyLeads(); got != tc.want {
			t.Errorf("contracted=%d pct=%d: expected %d, got %d", tc.contracted, tc.pct, tc.want, got)
		}
	}
}

func TestDeliveriesWithoutWarrantyCompleteContract(t *testing.T) {
	c := newContract(3, 0)
	for i := 0; i < 3; i++ {
		if _, err := c.RegisterDelivery(testNow, 7*24*time.Hour); err != nil {
			t.Fatalf("delivery %d: %v", i, err)
		}
	}

	if c.IsActive {
		t.Fatal("expected contract to be inactive")
	}
	if c.CompletedAt == nil || c.AutoCloseAt != nil {
		t.Fatalf("expected completed_at set and auto_close_at cleared, got %v / %v", c.CompletedAt, c.AutoCloseAt)
	}

	if _, err := c.RegisterDelivery(testNow, time.Hour); !apperr.Is(err, apperr.KindBusinessRule) {
		t.Fatalf("expected delivery on inactive contract to fail, got %v", err)
	}
}

func TestDeliveryWithWarrantyLeftSchedulesAutoClose(t *testing.T) {
	c := newContract(1, 30)
	outcome, err := c.RegisterDelivery(testNow, 7*24*time.Hour)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if outcome != DeliveryAutoCloseScheduled {
		t.Fatalf("expected auto-close outcome, got %v", outcome)
	}
	if !c.IsActive || c.AutoCloseAt == nil || !c.AutoCloseAt.Equal(testNow.Add(7*24*time.Hour)) {
		t.Fatalf("expected active contract closing in 7 days, got active=%v at=%v", c.IsActive, c.AutoCloseAt)
	}
	if c.AutoCloseDue(testNow.Add(24 * time.Hour)) {
		t.Fatal("auto-close must not be due before the grace period")
	}
	if !c.AutoCloseDue(testNow.Add(7 * 24 * time.Hour)) {
		t.Fatal("auto-close must be due once the grace period ends")
	}
}

func TestReturnsExhaustAllowanceAndComplete(t *testing.T) {
	c := newContract(100, 30)
	c.LeadsDelivered = 100

	for i := 0; i < 30; i++ {
		if !c.RegisterReturn(testNow) {
			t.Fatalf("return %d refused", i)
		}
	}

	if c.IsActive || c.CompletedAt == nil {
		t.Fatal("expected contract to complete when allowance is exhausted")
	}
	if c.RegisterReturn(testNow) {
		t.Fatal("expected return beyond allowance to be refused")
	}
	if c.LeadsWarrantyUsed != 30 || c.LeadsReturned != 30 {
		t.Fatalf("refused return must not mutate counters, got used=%d returned=%d", c.LeadsWarrantyUsed, c.LeadsReturned)
	}
}

func TestReturnOnIncompleteContractKeepsItActive(t *testing.T) {
	c := newContract(10, 10)
	c.LeadsDelivered = 4

	if !c.RegisterReturn(testNow) {
		t.Fatal("expected return to be accepted")
	}
	if !c.IsActive || !c.HasReachedWarrantyLimit() {
		t.Fatalf("expected active contract at its warranty limit, active=%v", c.IsActive)
	}
}

func TestContractValidate(t *testing.T) {
	valid := newContract(10, 30)
	if err := valid.Validate(); err != nil {
		t.Fatalf("expected valid contract, got %v", err)
	}

	cases := map[string]func(*Contract){
		"start after end":   func(c *Contract) { c.StartDate = c.EndDate.Add(time.Hour) },
		"zero contracted":   func(c *Contract) { c.LeadsContracted = 0 },
		"negative price":    func(c *Contract) { c.LeadPrice = -1 },
		"pct above 100":     func(c *Contract) { c.WarrantyPercentage = 101 },
		"missing owner":     func(c *Contract) { c.Owner = OwnerRef{} },
		"warranty over cap": func(c *Contract) { c.LeadsWarrantyUsed = 4 },
	}
	for name, mutate := range cases {
		c := newContract(10, 30)
		mutate(&c)
		if err := c.Validate(); !apperr.Is(err, apperr.KindValidation) {
			t.Errorf("%s: expected validation error, got %v", name, err)
		}
	}
}

func TestDerivedCounters(t *testing.T) {
	c := newContract(20, 30)
	c.LeadsDelivered = 25
	c.LeadsWarrantyUsed = 5

	if c.RemainingLeads() != 0 {
		t.Errorf("expected remaining 0, got %d", c.RemainingLeads())
	}
	if c.WarrantyUsagePercentage() != 25 {
		t.Errorf("expected 25%% usage, got %f", c.WarrantyUsagePercentage())
	}
	if (Contract{}).WarrantyUsagePercentage() != 0 {
		t.Error("expected 0% usage on empty contract")
	}
}
