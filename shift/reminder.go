package shift

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/warp/workforce-engine/generic"
	"github.com/warp/workforce-engine/notify"
	"go.uber.org/zap"
)

// =============================================================================
// REMINDER SWEEP - Notify staff of shifts starting soon
// =============================================================================

// ReminderLead is how far ahead of a shift start the reminder goes out.
const ReminderLead = time.Hour

// ReminderSweep notifies assignees of shifts starting within the lead time.
// Each shift is claimed with a conditional update on reminder_sent before
// its notification is sent, so overlapping or repeated runs never notify
// twice.
type ReminderSweep struct {
	engine *Engine
	Lead   time.Duration
	log    *zap.Logger
}

func NewReminderSweep(engine *Engine) *ReminderSweep {
	return &ReminderSweep{engine: engine, Lead: ReminderLead, log: engine.log.Named("reminders")}
}

type SweepResult struct {
	Scanned int
	Sent    int
}

// Run sends reminders for shifts starting in (now, now+Lead]. Failures on
// individual shifts are logged and returned joined; they do not stop the sweep.
func (r *ReminderSweep) Run(ctx context.Context, now time.Time) (SweepResult, error) {
	// Shift dates are local days; a one-day margin either side covers every
	// timezone offset.
	from := generic.DayOf(now.UTC()).AddDays(-1)
	to := generic.DayOf(now.UTC()).AddDays(1)

	candidates, err := r.engine.store.ListShifts(ctx, Filter{
		Statuses:        []Status{StatusAssigned},
		ReminderPending: true,
		From:            &from,
		To:              &to,
	})
	if err != nil {
		return SweepResult{}, fmt.Errorf("list reminder candidates: %w", err)
	}

	var (
		result SweepResult
		errs   []error
	)
	for i := range candidates {
		s := &candidates[i]
		result.Scanned++

		start, err := r.engine.Start(ctx, s)
		if err != nil {
			errs = append(errs, fmt.Errorf("shift %s: %w", s.ID, err))
			continue
		}
		if !start.After(now) || start.After(now.Add(r.Lead)) {
			continue
		}

		claimed, err := r.engine.store.MarkReminderSent(ctx, s.ID)
		if err != nil {
			errs = append(errs, fmt.Errorf("shift %s: %w", s.ID, err))
			continue
		}
		if !claimed {
			continue
		}

		notify.Dispatch(ctx, r.log, r.engine.notifier, notify.Notification{
			RecipientID: s.AssignedTo,
			Type:        notify.ShiftReminder,
			Title:       "Upcoming Shift Reminder",
			Message:     fmt.Sprintf("Reminder: You have a shift on %s from %s to %s", s.Date, s.StartTime, s.EndTime),
			RelatedID:   s.ID,
		})
		result.Sent++
	}

	if result.Sent > 0 || len(errs) > 0 {
		r.log.Info("reminder sweep finished",
			zap.Int("scanned", result.Scanned), zap.Int("sent", result.Sent), zap.Int("failed", len(errs)))
	}
	return result, errors.Join(errs...)
}
