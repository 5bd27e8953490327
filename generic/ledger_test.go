package generic_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/warp/workforce-engine/generic"
	"github.com/warp/workforce-engine/generic/store"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

func newTestLedger() generic.Ledger {
	return generic.NewLedger(store.NewMemory())
}

func days(n float64) generic.Amount {
	return generic.NewAmount(n, generic.UnitDays)
}

var t0 = time.Date(2025, time.January, 1, 8, 0, 0, 0, time.UTC)

// =============================================================================
// LEDGER TESTS
// =============================================================================

func TestLedger_BalanceSumsYearOnly(t *testing.T) {
	// GIVEN: A grant and a consumption in 2025, a carry-over in 2026
	// WHEN: Summing 2025
	// THEN: Only 2025 entries count

	ctx := context.Background()
	ledger := newTestLedger()

	entries := []generic.Transaction{
		{ID: "tx-1", EntityID: "staff-1", Year: 2025, Delta: days(21), Type: generic.TxGrant, CreatedAt: t0},
		{ID: "tx-2", EntityID: "staff-1", Year: 2025, Delta: days(-5), Type: generic.TxConsumption, CreatedAt: t0.Add(time.Hour)},
		{ID: "tx-3", EntityID: "staff-1", Year: 2026, Delta: days(16), Type: generic.TxReconciliation, CreatedAt: t0.Add(2 * time.Hour)},
	}
	for _, tx := range entries {
		if err := ledger.Append(ctx, tx); err != nil {
			t.Fatalf("append %s: %v", tx.ID, err)
		}
	}

	balance, err := ledger.Balance(ctx, "staff-1", 2025, generic.UnitDays)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !balance.Equal(days(16)) {
		t.Errorf("expected 16 days, got %v", balance)
	}

	txs, _ := ledger.Transactions(ctx, "staff-1", 2025)
	if len(txs) != 2 || txs[0].ID != "tx-1" || txs[1].ID != "tx-2" {
		t.Errorf("expected [tx-1 tx-2] in order, got %v", txs)
	}
}

func TestLedger_DuplicateIdempotencyKey_Rejected(t *testing.T) {
	ctx := context.Background()
	ledger := newTestLedger()

	tx := generic.Transaction{
		ID: "tx-1", EntityID: "staff-1", Year: 2026, Delta: days(3),
		Type: generic.TxReconciliation, IdempotencyKey: "carryover:staff-1:2025", CreatedAt: t0,
	}
	if err := ledger.Append(ctx, tx); err != nil {
		t.Fatalf("first append: %v", err)
	}

	tx.ID = "tx-2"
	err := ledger.Append(ctx, tx)
	if !errors.Is(err, generic.ErrDuplicateIdempotencyKey) {
		t.Fatalf("expected ErrDuplicateIdempotencyKey, got %v", err)
	}

	balance, _ := ledger.Balance(ctx, "staff-1", 2026, generic.UnitDays)
	if !balance.Equal(days(3)) {
		t.Errorf("retry must not double count, got %v", balance)
	}
}

// =============================================================================
// CALENDAR TESTS
// =============================================================================

func TestInclusiveDays(t *testing.T) {
	tests := []struct {
		name     string
		from, to generic.TimePoint
		want     int
	}{
		{"single day", generic.NewTimePoint(2025, 3, 10), generic.NewTimePoint(2025, 3, 10), 1},
		{"work week", generic.NewTimePoint(2025, 3, 10), generic.NewTimePoint(2025, 3, 14), 5},
		{"across month", generic.NewTimePoint(2025, 2, 27), generic.NewTimePoint(2025, 3, 2), 4},
		{"across year", generic.NewTimePoint(2025, 12, 30), generic.NewTimePoint(2026, 1, 2), 4},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := generic.InclusiveDays(tt.from, tt.to); got != tt.want {
				t.Errorf("InclusiveDays(%s, %s) = %d, want %d", tt.from, tt.to, got, tt.want)
			}
		})
	}
}

func TestPeriod_Overlaps(t *testing.T) {
	p := func(a, b int) generic.Period {
		return generic.Period{Start: generic.NewTimePoint(2025, 6, a), End: generic.NewTimePoint(2025, 6, b)}
	}

	tests := []struct {
		name string
		a, b generic.Period
		want bool
	}{
		{"identical", p(1, 5), p(1, 5), true},
		{"touching end", p(1, 3), p(3, 5), true},
		{"adjacent", p(1, 3), p(4, 5), false},
		{"contained", p(1, 10), p(4, 5), true},
		{"disjoint", p(1, 2), p(8, 9), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.a.Overlaps(tt.b); got != tt.want {
				t.Errorf("%s overlaps %s = %v, want %v", tt.a, tt.b, got, tt.want)
			}
			if got := tt.b.Overlaps(tt.a); got != tt.want {
				t.Errorf("overlap must be symmetric for %s and %s", tt.a, tt.b)
			}
		})
	}
}

func TestFakeClock_Advance(t *testing.T) {
	clock := generic.NewFakeClock(t0)
	clock.Advance(90 * time.Minute)
	if want := t0.Add(90 * time.Minute); !clock.Now().Equal(want) {
		t.Errorf("expected %v, got %v", want, clock.Now())
	}
}
