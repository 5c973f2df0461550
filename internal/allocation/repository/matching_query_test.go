package repository

import (
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"leadrouter_backend/platform/apperr"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

func normalizeSQL(query string) string {
	return strings.Join(strings.Fields(strings.ToLower(query)), " ")
}

func requireFragments(t *testing.T, name, query string, fragments []string) {
	t.Helper()
	normalized := normalizeSQL(query)
	for _, fragment := range fragments {
		if !strings.Contains(normalized, normalizeSQL(fragment)) {
			t.Fatalf("%s: expected fragment %q", name, fragment)
		}
	}
}

func TestFindStoresForLeadQueryEnforcesEligibility(t *testing.T) {
	requireFragments(t, "find stores", findStoresForLeadQuery, []string{
		"earth_box(target.pos, $2::float8 * 1000.0) @> ll_to_earth(sl.latitude, sl.longitude)",
		"earth_distance(target.pos, ll_to_earth(sl.latitude, sl.longitude)) <= sl.coverage_radius * 1000.0",
		"sl.is_active and sl.deleted_at is null",
		"s.is_active and s.deleted_at is null",
		"c.is_active and c.deleted_at is null",
		"(c.owner_type = 'store' and c.owner_id = s.id)",
		"(c.owner_type = 'company' and c.owner_id = s.company_id)",
		"and not exists (",
		"ls.created_at >= $3::timestamptz",
		"and ls.store_id = s.id",
		"order by distance_km asc, s.id asc",
	})
}

func TestFindStoresForLeadQueryTakesNoLocks(t *testing.T) {
	if strings.Contains(normalizeSQL(findStoresForLeadQuery), "for update") {
		t.Fatal("eligibility reads must not lock rows")
	}
}

func TestExclusivityHistoryKeepsTombstonedLeads(t *testing.T) {
	history := normalizeSQL(sharedPhoneHistory)

	if strings.Contains(history, "join leads") {
		t.Fatal("exclusivity history must not filter on the lead row")
	}
	requireFragments(t, "history", sharedPhoneHistory, []string{
		"ls.deleted_at is null",
		"mine.phone_normalized = other.phone_normalized",
		"mine.phone_normalized <> ''",
		"ls.lead_id = $1",
	})
}

func TestFindLeadsForStoreQueryIsCompanyExclusive(t *testing.T) {
	requireFragments(t, "find leads", findLeadsForStoreQuery, []string{
		"l.status = 'new'",
		"l.is_active",
		"l.deleted_at is null",
		"earth_distance(coverage.pos, ll_to_earth(l.latitude, l.longitude)) <= coverage.coverage_radius * 1000.0",
		"sibling.company_id = (select company_id from target)",
		"order by distance_km asc, l.id asc",
	})

	if strings.Contains(normalizeSQL(findLeadsForStoreQuery), "created_at >=") {
		t.Fatal("company-wide exclusivity must not be time bounded")
	}
}

func TestSentToQueriesShareHistory(t *testing.T) {
	requireFragments(t, "sent to store", sentToStoreQuery, []string{"and ls.store_id = $2"})
	requireFragments(t, "sent to company", sentToCompanyQuery, []string{
		"ls.store_id in (select s.id from stores s where s.company_id = $2)",
	})
}

func TestLockActiveContractPrefersStoreOwner(t *testing.T) {
	requireFragments(t, "lock contract", lockActiveContractForStoreQuery, []string{
		"order by case c.owner_type when 'store' then 0 else 1 end",
		"limit 1",
		"for update of c",
	})
}

func TestLockTimeoutStatement(t *testing.T) {
	if got := lockTimeoutStatement(5 * time.Second); got != "SET LOCAL lock_timeout = '5000ms'" {
		t.Fatalf("unexpected statement %q", got)
	}
	if got := lockTimeoutStatement(time.Microsecond); got != "SET LOCAL lock_timeout = '1ms'" {
		t.Fatalf("expected a 1ms floor, got %q", got)
	}
}

func TestMapError(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want apperr.Kind
	}{
		{"no rows", pgx.ErrNoRows, apperr.KindNotFound},
		{"unique", &pgconn.PgError{Code: pgUniqueViolation, ConstraintName: "contracts_one_active_per_owner"}, apperr.KindConflict},
		{"check", &pgconn.PgError{Code: pgCheckViolation, ConstraintName: "contracts_warranty_cap_chk"}, apperr.KindValidation},
		{"lock timeout", &pgconn.PgError{Code: pgLockNotAvailable}, apperr.KindConcurrency},
		{"deadlock", fmt.Errorf("wrapped: %w", &pgconn.PgError{Code: pgDeadlockDetected}), apperr.KindConcurrency},
		{"serialization", &pgconn.PgError{Code: pgSerializationFailure}, apperr.KindConcurrency},
	}

	for _, tc := range cases {
		got := mapError("op", tc.err, contractNotFoundMsg)
		if !apperr.Is(got, tc.want) {
			t.Errorf("%s: expected %s, got %v", tc.name, tc.want, got)
		}
	}

	plain := errors.New("connection reset")
	if got := mapError("get lead", plain, leadNotFoundMsg); !errors.Is(got, plain) || apperr.GetKind(got) != apperr.KindUnknown {
		t.Fatalf("expected untyped wrap, got %v", got)
	}
	if mapError("op", nil, "") != nil {
		t.Fatal("nil must stay nil")
	}
}

func TestStoreCoversLeadQueryUsesLocationRadius(t *testing.T) {
	requireFragments(t, "store covers lead", storeCoversLeadQuery, []string{
		"sl.store_id = $2",
		"sl.is_active and sl.deleted_at is null",
		"<= sl.coverage_radius * 1000.0",
		"l.latitude is not null and l.longitude is not null",
	})
}
