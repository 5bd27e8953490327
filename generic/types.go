/*
Package generic provides the domain-agnostic building blocks of the workforce engine.

PURPOSE:
  Shifts and leave are two very different records, but they share the same
  plumbing: quantities of days or hours that must never drift through float
  rounding, calendar days, an append-only ledger for balance changes, a
  single error taxonomy, an injectable clock and one approval gate that
  decides who may move a record from one state to another.

KEY CONCEPTS IN THIS FILE (types.go):
  - Amount: A quantity with a unit (e.g., 5 days, 7.25 hours)
  - Transaction: An immutable ledger entry recording a balance change
  - EntityID / TransactionID: Type-safe identifiers

DESIGN PRINCIPLES:
  1. Immutability: Transactions are never modified
  2. Precision: Uses decimal.Decimal to avoid floating-point errors
  3. Auditability: Every transaction has reason, reference, and idempotency key

USAGE:
  amount := generic.NewAmount(5, generic.UnitDays)
  tx := generic.Transaction{
      EntityID: "staff-123",
      Year:     2025,
      Delta:    amount.Neg(),
      Type:     generic.TxConsumption,
  }

SEE ALSO:
  - errors.go: Error taxonomy shared by shift and timeoff
  - approval.go: Approval gate
  - ledger.go: Transaction persistence interface
*/
package generic

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// AMOUNT - Quantity with unit
// =============================================================================

type Amount struct {
	Value decimal.Decimal
	Unit  Unit
}

type Unit string

const (
	UnitDays  Unit = "days"
	UnitHours Unit = "hours"
)

func NewAmount(value float64, unit Unit) Amount {
	return Amount{Value: decimal.NewFromFloat(value), Unit: unit}
}

func NewAmountFromInt(value int, unit Unit) Amount {
	return Amount{Value: decimal.NewFromInt(int64(value)), Unit: unit}
}

func Days(n int) Amount { return NewAmountFromInt(n, UnitDays) }

func MustParseDecimal(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

func (a Amount) Zero() Amount                 { return Amount{Value: decimal.Zero, Unit: a.Unit} }
func (a Amount) Add(b Amount) Amount          { return Amount{Value: a.Value.Add(b.Value), Unit: a.Unit} }
func (a Amount) Sub(b Amount) Amount          { return Amount{Value: a.Value.Sub(b.Value), Unit: a.Unit} }
func (a Amount) Neg() Amount                  { return Amount{Value: a.Value.Neg(), Unit: a.Unit} }
func (a Amount) IsNegative() bool             { return a.Value.IsNegative() }
func (a Amount) IsZero() bool                 { return a.Value.IsZero() }
func (a Amount) IsPositive() bool             { return a.Value.IsPositive() }
func (a Amount) GreaterThan(b Amount) bool    { return a.Value.GreaterThan(b.Value) }
func (a Amount) LessThan(b Amount) bool       { return a.Value.LessThan(b.Value) }
func (a Amount) Equal(b Amount) bool          { return a.Value.Equal(b.Value) }
func (a Amount) String() string               { return a.Value.String() + " " + string(a.Unit) }

func (a Amount) Min(b Amount) Amount {
	if a.LessThan(b) {
		return a
	}
	return b
}

// Float64 is for presentation only; arithmetic stays in decimal.
func (a Amount) Float64() float64 {
	f, _ := a.Value.Float64()
	return f
}

// =============================================================================
// IDENTIFIERS
// =============================================================================

type EntityID string
type TransactionID string

// =============================================================================
// TRANSACTION - Atomic change to a yearly balance
// =============================================================================

type TransactionType string

const (
	TxGrant          TransactionType = "grant"          // Entitlement granted (initial allowance)
	TxConsumption    TransactionType = "consumption"    // Resource used (approved request)
	TxReconciliation TransactionType = "reconciliation" // Year-end carry-over
	TxAdjustment     TransactionType = "adjustment"     // Manager changed the entitlement
)

type Transaction struct {
	ID             TransactionID
	EntityID       EntityID
	Year           int
	Delta          Amount
	Type           TransactionType
	ReferenceID    string
	Reason         string
	IdempotencyKey string

	// Audit fields
	CreatedBy string
	CreatedAt time.Time
}
