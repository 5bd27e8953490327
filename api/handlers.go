/*
handlers.go - HTTP handlers for the shift and leave engines

PURPOSE:
  Exposes the shift engine, the leave workflow and the notification inbox
  over REST. Handlers only translate: decode and validate the body, take
  the caller's Actor from the Identity middleware, call one engine
  operation with the current time, and render the result or the error.

ENDPOINTS:
  Shifts (shifts.go):
    POST   /api/shifts                    Create assigned shift (manager)
    POST   /api/shifts/open               Create open shift (manager)
    POST   /api/shifts/import             Upload .xlsx schedule (manager)
    POST   /api/shifts/reminders/run      Run the reminder sweep now (manager)
    GET    /api/shifts                    Organization shifts (manager)
    GET    /api/shifts/mine               Caller's shifts
    GET    /api/shifts/available          Open shifts to claim
    GET    /api/shifts/{id}               One shift
    PUT    /api/shifts/{id}               Partial update (manager)
    DELETE /api/shifts/{id}               Delete
    POST   /api/shifts/{id}/claim         Claim open shift (staff)
    POST   /api/shifts/{id}/clock-in      Clock in (assignee)
    POST   /api/shifts/{id}/clock-out     Clock out (assignee)
    POST   /api/shifts/{id}/complete      Mark completed
    POST   /api/shifts/{id}/review        Approve or reject (manager)
    POST   /api/shifts/{id}/cancel        Cancel (manager)
    POST   /api/shifts/{id}/missed        Mark missed (manager)

  Leave (leave.go):
    POST   /api/leave/requests                   Submit (staff)
    GET    /api/leave/requests/mine              Caller's requests
    GET    /api/leave/requests                   Team requests (manager)
    POST   /api/leave/requests/{id}/review       Approve/reject/modify (manager)
    POST   /api/leave/requests/{id}/cancel       Cancel pending (owner)
    POST   /api/leave/assign                     Assign approved leave (manager)
    GET    /api/leave/balance                    Caller's balance
    GET    /api/leave/balances                   Team balances (manager)
    PUT    /api/leave/balances/{staffId}         Set entitlement (manager)
    POST   /api/leave/balances/{staffId}/carry-over  Year carry-over (manager)
    GET    /api/leave/balances/{staffId}/history Ledger entries
    GET    /api/leave/report?year=               Approved days per staff (manager)
    GET    /api/leave/stats                      Request statistics

  Notifications (notifications.go):
    GET    /api/notifications             Inbox (?unread=true)
    POST   /api/notifications/{id}/read   Mark one read
    POST   /api/notifications/read-all    Mark all read

ERROR HANDLING:
  See errors.go. Engine errors map to 400/403/404/409; anything else is a
  logged 500.

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
*/
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/warp/workforce-engine/generic"
	"github.com/warp/workforce-engine/notify"
	"github.com/warp/workforce-engine/shift"
	"github.com/warp/workforce-engine/store/sqlite"
	"github.com/warp/workforce-engine/timeoff"
	"go.uber.org/zap"
)

// maxUploadBytes bounds spreadsheet uploads.
const maxUploadBytes = 10 << 20

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Options configures the engines a Handler builds.
type Options struct {
	DefaultTimezone    string
	DefaultAnnualLeave int
	Clock              generic.Clock
}

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store     *sqlite.Store
	Shifts    *shift.Engine
	Reminders *shift.ReminderSweep
	Ledger    *timeoff.BalanceLedger
	Leave     *timeoff.Workflow
	Inbox     *notify.InApp

	clock    generic.Clock
	validate *validator.Validate
	log      *zap.Logger
}

// NewHandler wires the engines over store. Notifications go to the in-app
// inbox in the same store.
func NewHandler(store *sqlite.Store, opts Options, log *zap.Logger) (*Handler, error) {
	if log == nil {
		log = zap.NewNop()
	}
	if opts.Clock == nil {
		opts.Clock = generic.RealClock()
	}

	inbox := notify.NewInApp(store)
	shifts, err := shift.NewEngine(store, store, inbox, shift.Config{DefaultTimezone: opts.DefaultTimezone}, log)
	if err != nil {
		return nil, err
	}
	ledger := timeoff.NewBalanceLedger(store, store, opts.DefaultAnnualLeave, log)

	return &Handler{
		Store:     store,
		Shifts:    shifts,
		Reminders: shift.NewReminderSweep(shifts),
		Ledger:    ledger,
		Leave:     timeoff.NewWorkflow(store, ledger, store, inbox, log),
		Inbox:     inbox,
		clock:     opts.Clock,
		validate:  newValidator(),
		log:       log.Named("api"),
	}, nil
}

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Health reports whether the database answers.
// GET /api/health
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	if err := h.Store.Ping(r.Context()); err != nil {
		h.log.Error("health check failed", zap.Error(err))
		writeError(w, http.StatusServiceUnavailable, CodeInternal, "database unavailable")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// =============================================================================
// HELPERS
// =============================================================================

// decode reads a JSON body into dst and runs its validator tags. An empty
// body decodes to the zero value, so optional-body endpoints accept it.
func (h *Handler) decode(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil && !errors.Is(err, io.EOF) {
		return &generic.ValidationError{Field: "body", Message: "invalid JSON: " + err.Error()}
	}
	if err := h.validate.Struct(dst); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
			return fieldError(fieldErrs[0])
		}
		return &generic.ValidationError{Message: err.Error()}
	}
	return nil
}

func fieldError(fe validator.FieldError) *generic.ValidationError {
	msg := "is invalid"
	switch fe.Tag() {
	case "required", "required_if":
		msg = "is required"
	case "oneof":
		msg = "must be one of: " + fe.Param()
	case "datetime":
		msg = "must match the format " + fe.Param()
	case "max":
		msg = "must be at most " + fe.Param() + " characters"
	case "min":
		msg = "must be at least " + fe.Param()
	case "timezone":
		msg = "must be an IANA timezone name"
	}
	return &generic.ValidationError{Field: fe.Field(), Message: msg}
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// parseDate parses a validated YYYY-MM-DD value.
func parseDate(field, value string) (generic.TimePoint, error) {
	tp, err := generic.ParseDate(value)
	if err != nil {
		return generic.TimePoint{}, &generic.ValidationError{Field: field, Message: "must be a date in YYYY-MM-DD format"}
	}
	return tp, nil
}

func parseOptionalDate(field string, value *string) (*generic.TimePoint, error) {
	if value == nil || *value == "" {
		return nil, nil
	}
	tp, err := parseDate(field, *value)
	if err != nil {
		return nil, err
	}
	return &tp, nil
}

// csvQuery splits a comma-separated query parameter.
func csvQuery(r *http.Request, name string) []string {
	var out []string
	for _, v := range strings.Split(r.URL.Query().Get(name), ",") {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

func yearQuery(r *http.Request, fallback int) (int, error) {
	raw := r.URL.Query().Get("year")
	if raw == "" {
		return fallback, nil
	}
	var year int
	if _, err := fmt.Sscanf(raw, "%d", &year); err != nil || year < 2000 || year > 9999 {
		return 0, &generic.ValidationError{Field: "year", Message: "must be a four-digit year"}
	}
	return year, nil
}
