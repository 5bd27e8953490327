/*
store.go - Persistence interface for ledger transactions

PURPOSE:
  Defines the interface between the ledger and the database. The Store
  handles persistence while maintaining append-only semantics. The SQLite
  store implements it both on its connection and inside a database
  transaction, so a balance update and its ledger entry commit together.

APPEND-ONLY CONTRACT:
  - Append(): Single transaction write
  - NO Update() or Delete() methods exist

IDEMPOTENCY:
  Writes may carry an idempotency key. If the key already exists, the
  write is rejected with ErrDuplicateIdempotencyKey. Year-end carry-over
  relies on this to run safely more than once.

IMPLEMENTATIONS:
  - store/sqlite/ledger.go: SQLite
  - generic/store/memory.go: In-memory for testing

SEE ALSO:
  - ledger.go: Higher-level interface using Store
*/
package generic

import "context"

// =============================================================================
// STORE - Interface for transaction persistence (append-only)
// =============================================================================

// Store handles persistence of transactions.
// IMPORTANT: Store is APPEND-ONLY. No Update, No Delete. Ever.
type Store interface {
	// Append persists a transaction. Returns ErrDuplicateIdempotencyKey if the key exists.
	Append(ctx context.Context, tx Transaction) error

	// Load returns all transactions for entity+year, oldest first.
	Load(ctx context.Context, entityID EntityID, year int) ([]Transaction, error)

	// Exists checks if idempotency key already exists.
	Exists(ctx context.Context, idempotencyKey string) (bool, error)
}
