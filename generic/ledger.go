/*
ledger.go - Append-only transaction log

PURPOSE:
  The Ledger is the audit trail for every change to a yearly leave balance.
  The balance record is the fast path the workflow reads and updates under
  optimistic locking; the ledger records why it changed. Both are written
  in the same database transaction, so replaying a year's entries always
  reproduces the balance's remaining days.

CRITICAL INVARIANTS:
  1. APPEND-ONLY: No Update, No Delete. EVER.
  2. IMMUTABLE: Once written, transactions cannot be modified
  3. IDEMPOTENT: Same idempotency key = same transaction (no duplicates)
  4. RECONCILABLE: Sum(year) == total + carryOver - used for that year

EXAMPLE FLOW:
  1. Balance initialized with 21 days:   TxGrant +21
  2. Manager raises entitlement to 25:   TxAdjustment +4
  3. 5-day annual leave approved:        TxConsumption -5
  4. Year closes, 10 days carried over:  TxReconciliation +10 (next year)

  Ledger for the year: [+21, +4, -5] = 20 days remaining

SEE ALSO:
  - store.go: Low-level persistence interface
  - timeoff/ledger.go: Balance ledger that writes these entries
*/
package generic

import "context"

// =============================================================================
// LEDGER - Append-only transaction log
// =============================================================================

// Ledger records balance changes.
//
// INVARIANTS:
//   - Append-only: No Update, No Delete. EVER.
//   - Immutable: Once written, transactions cannot be modified.
type Ledger interface {
	// Append adds a transaction. Fails if idempotency key exists.
	// This is the ONLY write operation.
	Append(ctx context.Context, tx Transaction) error

	// Transactions returns all transactions for entity+year, chronologically.
	Transactions(ctx context.Context, entityID EntityID, year int) ([]Transaction, error)

	// Balance sums the deltas recorded for entity+year.
	Balance(ctx context.Context, entityID EntityID, year int, unit Unit) (Amount, error)
}

// =============================================================================
// DEFAULT LEDGER - Implementation using Store
// =============================================================================

type DefaultLedger struct {
	Store Store
}

func NewLedger(store Store) *DefaultLedger {
	return &DefaultLedger{Store: store}
}

func (l *DefaultLedger) Append(ctx context.Context, tx Transaction) error {
	if tx.IdempotencyKey != "" {
		exists, err := l.Store.Exists(ctx, tx.IdempotencyKey)
		if err != nil {
			return err
		}
		if exists {
			return ErrDuplicateIdempotencyKey
		}
	}
	return l.Store.Append(ctx, tx)
}

func (l *DefaultLedger) Transactions(ctx context.Context, entityID EntityID, year int) ([]Transaction, error) {
	return l.Store.Load(ctx, entityID, year)
}

func (l *DefaultLedger) Balance(ctx context.Context, entityID EntityID, year int, unit Unit) (Amount, error) {
	txs, err := l.Store.Load(ctx, entityID, year)
	if err != nil {
		return Amount{}, err
	}

	balance := NewAmount(0, unit)
	for _, tx := range txs {
		balance = balance.Add(tx.Delta)
	}
	return balance, nil
}
