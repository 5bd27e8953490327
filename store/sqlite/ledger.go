package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/warp/workforce-engine/generic"
)

// =============================================================================
// TRANSACTION STORE (generic.Store interface)
// =============================================================================

// Append adds a transaction to the ledger. There is no UPDATE or DELETE on
// this table anywhere in the package.
func (c *conn) Append(ctx context.Context, tx generic.Transaction) error {
	_, err := c.q.ExecContext(ctx, `
		INSERT INTO transactions
		(id, entity_id, year, delta_value, delta_unit, tx_type,
		 reference_id, reason, idempotency_key, created_by, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		tx.ID,
		tx.EntityID,
		tx.Year,
		tx.Delta.Value.String(),
		tx.Delta.Unit,
		tx.Type,
		nullString(tx.ReferenceID),
		tx.Reason,
		nullString(tx.IdempotencyKey),
		tx.CreatedBy,
		formatTime(tx.CreatedAt),
	)
	if isUniqueConstraintError(err) {
		return generic.ErrDuplicateIdempotencyKey
	}
	if err != nil {
		return fmt.Errorf("failed to append transaction: %w", err)
	}
	return nil
}

// Load returns the entries for entity+year, oldest first.
func (c *conn) Load(ctx context.Context, entityID generic.EntityID, year int) ([]generic.Transaction, error) {
	rows, err := c.q.QueryContext(ctx, `
		SELECT id, entity_id, year, delta_value, delta_unit, tx_type,
		       reference_id, reason, idempotency_key, created_by, created_at
		FROM transactions
		WHERE entity_id = ? AND year = ?
		ORDER BY created_at, rowid
	`, entityID, year)
	if err != nil {
		return nil, fmt.Errorf("failed to load transactions: %w", err)
	}
	defer rows.Close()

	var txs []generic.Transaction
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		txs = append(txs, tx)
	}
	return txs, rows.Err()
}

func (c *conn) Exists(ctx context.Context, idempotencyKey string) (bool, error) {
	var n int
	err := c.q.QueryRowContext(ctx, `SELECT COUNT(*) FROM transactions WHERE idempotency_key = ?`, idempotencyKey).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("failed to check idempotency key: %w", err)
	}
	return n > 0, nil
}

func scanTransaction(rows *sql.Rows) (generic.Transaction, error) {
	var (
		tx                         generic.Transaction
		deltaValue, unit, txType   string
		refID, reason, idempotency sql.NullString
		createdAt                  string
	)
	err := rows.Scan(&tx.ID, &tx.EntityID, &tx.Year, &deltaValue, &unit, &txType,
		&refID, &reason, &idempotency, &tx.CreatedBy, &createdAt)
	if err != nil {
		return tx, err
	}

	value, err := decimal.NewFromString(deltaValue)
	if err != nil {
		return tx, fmt.Errorf("transaction %s: bad delta %q: %w", tx.ID, deltaValue, err)
	}
	tx.Delta = generic.Amount{Value: value, Unit: generic.Unit(unit)}
	tx.Type = generic.TransactionType(txType)
	tx.ReferenceID = refID.String
	tx.Reason = reason.String
	tx.IdempotencyKey = idempotency.String
	if tx.CreatedAt, err = parseTime(createdAt); err != nil {
		return tx, err
	}
	return tx, nil
}
