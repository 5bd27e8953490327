// scheduler.go - Periodic shift reminder sweep
//
// PURPOSE:
//   Runs the reminder sweep on a cron schedule so staff are notified of
//   shifts starting within the next hour. The sweep itself is idempotent;
//   the scheduler only decides when it runs.
//
// DESIGN:
//   - robfig/cron with SkipIfStillRunning: a slow sweep is never overlapped
//   - Each run gets its own timeout context
//   - Failures are logged, never fatal
//
// USAGE:
//   scheduler, err := NewReminderScheduler(handler.Reminders, clock, "*/15 * * * *", log)
//   scheduler.Start()
//   // ... later
//   scheduler.Stop(ctx)
//
// SEE ALSO:
//   - shift/reminder.go: ReminderSweep
//   - handlers.go: RunReminders endpoint (manual trigger)
package api

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/warp/workforce-engine/generic"
	"github.com/warp/workforce-engine/shift"
	"go.uber.org/zap"
)

// sweepTimeout bounds one reminder run.
const sweepTimeout = 2 * time.Minute

// ReminderScheduler runs a ReminderSweep on a cron schedule.
type ReminderScheduler struct {
	sweep *shift.ReminderSweep
	clock generic.Clock
	cron  *cron.Cron
	log   *zap.Logger
}

// NewReminderScheduler parses schedule (standard five-field cron) and
// registers the sweep. Nothing runs until Start.
func NewReminderScheduler(sweep *shift.ReminderSweep, clock generic.Clock, schedule string, log *zap.Logger) (*ReminderScheduler, error) {
	rs := &ReminderScheduler{
		sweep: sweep,
		clock: clock,
		log:   log.Named("scheduler"),
	}
	rs.cron = cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	if _, err := rs.cron.AddFunc(schedule, rs.RunOnce); err != nil {
		return nil, fmt.Errorf("reminder schedule %q: %w", schedule, err)
	}
	return rs, nil
}

// Start begins running the sweep in the background.
func (rs *ReminderScheduler) Start() {
	rs.cron.Start()
	rs.log.Info("reminder scheduler started")
}

// Stop stops scheduling and waits for a running sweep to finish or ctx to end.
func (rs *ReminderScheduler) Stop(ctx context.Context) {
	select {
	case <-rs.cron.Stop().Done():
		rs.log.Info("reminder scheduler stopped")
	case <-ctx.Done():
		rs.log.Warn("reminder scheduler stop timed out")
	}
}

// RunOnce runs a single sweep at the current time.
func (rs *ReminderScheduler) RunOnce() {
	ctx, cancel := context.WithTimeout(context.Background(), sweepTimeout)
	defer cancel()

	res, err := rs.sweep.Run(ctx, rs.clock.Now())
	if err != nil {
		rs.log.Error("reminder sweep failed", zap.Error(err))
		return
	}
	if res.Sent > 0 {
		rs.log.Info("reminder sweep", zap.Int("scanned", res.Scanned), zap.Int("sent", res.Sent))
	}
}
