/*
ledger.go - Annual leave balance ledger

PURPOSE:
  Owns every change to a yearly leave balance. The balance record is what
  the workflow reads; the generic ledger beside it records why each change
  happened. Each mutation updates the balance under optimistic locking and
  appends exactly one ledger entry in the same database transaction.

VALIDATE vs COMMIT:
  Validation (at submission) only checks remaining >= days; nothing is
  reserved, so two pending requests may both validate against the same
  days. Commit (at approval) deducts and re-checks, and refuses to leave
  the balance negative. Only the later of two competing approvals fails.

  ┌──────────────┬───────────────────────────┬────────────────────────────┐
  │ Operation    │ Balance change            │ Ledger entry               │
  ├──────────────┼───────────────────────────┼────────────────────────────┤
  │ init         │ total = default           │ TxGrant +default           │
  │ entitlement  │ total = days              │ TxAdjustment +(days-old)   │
  │ commit       │ used += days              │ TxConsumption -days        │
  │ carry-over   │ next.carryOver += n       │ TxReconciliation +n (next) │
  └──────────────┴───────────────────────────┴────────────────────────────┘

SEE ALSO:
  - request.go: Workflow that calls commit on approval and assignment
  - generic/ledger.go: Append-only log
*/
package timeoff

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/warp/workforce-engine/generic"
	"go.uber.org/zap"
)

// =============================================================================
// BALANCE LEDGER
// =============================================================================

type BalanceLedger struct {
	store              TxStore
	directory          generic.Directory
	defaultEntitlement generic.Amount
	log                *zap.Logger
}

// NewBalanceLedger creates a ledger that initializes balances with
// defaultDays (DefaultAnnualLeaveDays when <= 0).
func NewBalanceLedger(store TxStore, directory generic.Directory, defaultDays int, log *zap.Logger) *BalanceLedger {
	if defaultDays <= 0 {
		defaultDays = DefaultAnnualLeaveDays
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &BalanceLedger{
		store:              store,
		directory:          directory,
		defaultEntitlement: generic.Days(defaultDays),
		log:                log.Named("timeoff.ledger"),
	}
}

// GetOrInitBalance returns the balance for (staff, year), creating it with
// the default entitlement on first access. Concurrent first accesses create
// one record and one grant.
func (l *BalanceLedger) GetOrInitBalance(ctx context.Context, staffID string, year int, now time.Time) (*Balance, error) {
	b, err := l.store.GetBalance(ctx, staffID, year)
	if err == nil {
		return b, nil
	}
	if !generic.IsNotFound(err) {
		return nil, err
	}

	err = l.store.WithTx(ctx, func(st Store) error {
		b, err = l.getOrInit(ctx, st, staffID, year, now)
		return err
	})
	if err != nil {
		return nil, err
	}
	return b, nil
}

func (l *BalanceLedger) getOrInit(ctx context.Context, st Store, staffID string, year int, now time.Time) (*Balance, error) {
	b, err := st.GetBalance(ctx, staffID, year)
	if err == nil {
		return b, nil
	}
	if !generic.IsNotFound(err) {
		return nil, err
	}

	fresh := &Balance{
		StaffID:          staffID,
		Year:             year,
		TotalAnnualLeave: l.defaultEntitlement,
		UsedAnnualLeave:  generic.Days(0),
		CarryOver:        generic.Days(0),
		Version:          1,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	created, err := st.CreateBalanceIfAbsent(ctx, fresh)
	if err != nil {
		return nil, fmt.Errorf("init balance: %w", err)
	}
	if created {
		err := l.append(ctx, st, generic.Transaction{
			EntityID:       generic.EntityID(staffID),
			Year:           year,
			Delta:          l.defaultEntitlement,
			Type:           generic.TxGrant,
			Reason:         "default annual entitlement",
			IdempotencyKey: fmt.Sprintf("grant:%s:%d", staffID, year),
			CreatedBy:      "system",
			CreatedAt:      now,
		})
		if err != nil && !errors.Is(err, generic.ErrDuplicateIdempotencyKey) {
			return nil, err
		}
		l.log.Info("balance initialized", zap.String("staff", staffID), zap.Int("year", year))
	}
	return st.GetBalance(ctx, staffID, year)
}

// SetEntitlement overwrites the current year's total annual leave. Only the
// staff member's direct manager may call it. The new total may not drop
// below what has already been used.
func (l *BalanceLedger) SetEntitlement(ctx context.Context, manager generic.Actor, staffID string, days decimal.Decimal, now time.Time) (*Balance, error) {
	if days.IsNegative() {
		return nil, &generic.ValidationError{Field: "days", Message: "must not be negative"}
	}
	if err := l.authorizeManager(ctx, manager, staffID, "set annual leave"); err != nil {
		return nil, err
	}

	year := now.Year()
	var result *Balance
	err := l.store.WithTx(ctx, func(st Store) error {
		b, err := l.getOrInit(ctx, st, staffID, year, now)
		if err != nil {
			return err
		}

		total := generic.Amount{Value: days, Unit: generic.UnitDays}
		delta := total.Sub(b.TotalAnnualLeave)
		b.TotalAnnualLeave = total
		if b.Remaining().IsNegative() {
			return &generic.ValidationError{
				Field:   "days",
				Message: fmt.Sprintf("must be at least %s, %s days are already used", b.UsedAnnualLeave.Sub(b.CarryOver).Value, b.UsedAnnualLeave.Value),
			}
		}
		if delta.IsZero() {
			result = b
			return nil
		}

		b.UpdatedAt = now
		if err := st.UpdateBalance(ctx, b); err != nil {
			return balanceConflict(err, b)
		}
		if err := l.append(ctx, st, generic.Transaction{
			EntityID:  generic.EntityID(staffID),
			Year:      year,
			Delta:     delta,
			Type:      generic.TxAdjustment,
			Reason:    "annual leave set to " + days.String() + " days",
			CreatedBy: manager.ID,
			CreatedAt: now,
		}); err != nil {
			return err
		}
		result = b
		return nil
	})
	if err != nil {
		return nil, err
	}

	l.log.Info("entitlement set", zap.String("staff", staffID), zap.Int("year", year), zap.String("days", days.String()))
	return result, nil
}

// Validate checks that days fit in the remaining balance. Nothing is deducted.
func (l *BalanceLedger) Validate(b *Balance, days int) error {
	requested := generic.Days(days)
	if requested.GreaterThan(b.Remaining()) {
		return &generic.InsufficientBalanceError{
			EntityID:  generic.EntityID(b.StaffID),
			Year:      b.Year,
			Available: b.Remaining(),
			Requested: requested,
		}
	}
	return nil
}

// commit deducts days inside the caller's transaction. It re-reads the
// balance, refuses to go negative and records the consumption against
// referenceID. Committing the same reference twice is a conflict.
func (l *BalanceLedger) commit(ctx context.Context, st Store, staffID string, year, days int, referenceID, actorID string, now time.Time) (*Balance, error) {
	b, err := l.getOrInit(ctx, st, staffID, year, now)
	if err != nil {
		return nil, err
	}

	requested := generic.Days(days)
	available := b.Remaining()
	b.UsedAnnualLeave = b.UsedAnnualLeave.Add(requested)
	if b.Remaining().IsNegative() {
		return nil, &generic.InsufficientBalanceError{
			EntityID:  generic.EntityID(staffID),
			Year:      year,
			Available: available,
			Requested: requested,
			AtCommit:  true,
		}
	}

	b.UpdatedAt = now
	if err := st.UpdateBalance(ctx, b); err != nil {
		return nil, balanceConflict(err, b)
	}
	err = l.append(ctx, st, generic.Transaction{
		EntityID:       generic.EntityID(staffID),
		Year:           year,
		Delta:          requested.Neg(),
		Type:           generic.TxConsumption,
		ReferenceID:    referenceID,
		Reason:         "annual leave approved",
		IdempotencyKey: "consume:" + referenceID,
		CreatedBy:      actorID,
		CreatedAt:      now,
	})
	if errors.Is(err, generic.ErrDuplicateIdempotencyKey) {
		return nil, &generic.ConflictError{Resource: "leave request", ID: referenceID, Message: "already committed to the balance"}
	}
	if err != nil {
		return nil, err
	}
	return b, nil
}

// CarryOver moves up to maxDays of fromYear's remaining leave into the
// carry-over of the following year. Running it again for the same year is
// a no-op that returns the current next-year balance.
func (l *BalanceLedger) CarryOver(ctx context.Context, manager generic.Actor, staffID string, fromYear int, maxDays decimal.Decimal, now time.Time) (*Balance, error) {
	if maxDays.IsNegative() {
		return nil, &generic.ValidationError{Field: "maxDays", Message: "must not be negative"}
	}
	if err := l.authorizeManager(ctx, manager, staffID, "carry over leave"); err != nil {
		return nil, err
	}

	var result *Balance
	err := l.store.WithTx(ctx, func(st Store) error {
		from, err := l.getOrInit(ctx, st, staffID, fromYear, now)
		if err != nil {
			return err
		}
		next, err := l.getOrInit(ctx, st, staffID, fromYear+1, now)
		if err != nil {
			return err
		}

		amount := from.Remaining().Min(generic.Amount{Value: maxDays, Unit: generic.UnitDays})
		if !amount.IsPositive() {
			result = next
			return nil
		}

		err = l.append(ctx, st, generic.Transaction{
			EntityID:       generic.EntityID(staffID),
			Year:           fromYear + 1,
			Delta:          amount,
			Type:           generic.TxReconciliation,
			Reason:         fmt.Sprintf("carried over from %d", fromYear),
			IdempotencyKey: fmt.Sprintf("carryover:%s:%d", staffID, fromYear),
			CreatedBy:      manager.ID,
			CreatedAt:      now,
		})
		if errors.Is(err, generic.ErrDuplicateIdempotencyKey) {
			result = next
			return nil
		}
		if err != nil {
			return err
		}

		next.CarryOver = next.CarryOver.Add(amount)
		next.UpdatedAt = now
		if err := st.UpdateBalance(ctx, next); err != nil {
			return balanceConflict(err, next)
		}
		result = next
		return nil
	})
	if err != nil {
		return nil, err
	}

	l.log.Info("leave carried over",
		zap.String("staff", staffID), zap.Int("from", fromYear), zap.String("carryOver", result.CarryOver.Value.String()))
	return result, nil
}

// History returns the ledger entries for (staff, year), oldest first.
func (l *BalanceLedger) History(ctx context.Context, actor generic.Actor, staffID string, year int) ([]generic.Transaction, error) {
	if actor.ID != staffID {
		if err := l.authorizeManager(ctx, actor, staffID, "view leave history"); err != nil {
			return nil, err
		}
	}
	return generic.NewLedger(l.store).Transactions(ctx, generic.EntityID(staffID), year)
}

// =============================================================================
// HELPERS
// =============================================================================

func (l *BalanceLedger) authorizeManager(ctx context.Context, manager generic.Actor, staffID, action string) error {
	staff, err := l.directory.GetMember(ctx, staffID)
	if err != nil {
		return err
	}
	return generic.Authorize(manager, memberSubject(staff), generic.DirectManagerOnly.For(action))
}

func (l *BalanceLedger) append(ctx context.Context, st Store, tx generic.Transaction) error {
	if tx.ID == "" {
		tx.ID = generic.TransactionID(uuid.NewString())
	}
	return generic.NewLedger(st).Append(ctx, tx)
}

func memberSubject(m *generic.Member) generic.Subject {
	return generic.Subject{OrganizationID: m.OrganizationID, OwnerID: m.ID, ManagerID: m.ManagerID}
}

func balanceConflict(err error, b *Balance) error {
	if errors.Is(err, generic.ErrConcurrentModification) {
		return &generic.ConflictError{
			Resource: "leave balance",
			ID:       fmt.Sprintf("%s/%d", b.StaffID, b.Year),
			Message:  "modified concurrently, retry",
		}
	}
	return err
}
