/*
errors.go - Domain error to HTTP response mapping

PURPOSE:
  Every handler funnels failures through writeDomainError, which maps the
  generic error kinds to status codes and renders a uniform body:

    {"error": "...", "code": "FORBIDDEN", "details": {...}}

STATUS CODES:
  ErrValidation   -> 400 VALIDATION_ERROR
  ErrNotFound     -> 404 NOT_FOUND
  ErrForbidden    -> 403 FORBIDDEN (details carry the clock window, if any)
  ErrPrecondition -> 409 PRECONDITION_FAILED
  ErrConflict     -> 409 CONFLICT
  insufficient balance -> 400 at submission, 409 at approval, with balances
  anything else   -> 500 INTERNAL_ERROR (message hidden, error logged)
*/
package api

import (
	"errors"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/workforce-engine/generic"
	"go.uber.org/zap"
)

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code"`
	Details any    `json:"details,omitempty"`
}

const (
	CodeValidation          = "VALIDATION_ERROR"
	CodeNotFound            = "NOT_FOUND"
	CodeForbidden           = "FORBIDDEN"
	CodePrecondition        = "PRECONDITION_FAILED"
	CodeConflict            = "CONFLICT"
	CodeInsufficientBalance = "INSUFFICIENT_BALANCE"
	CodeUnauthenticated     = "UNAUTHENTICATED"
	CodeInternal            = "INTERNAL_ERROR"
)

type windowDetails struct {
	OpensAt           time.Time `json:"opensAt"`
	ClosesAt          time.Time `json:"closesAt"`
	RetryAfterSeconds int       `json:"retryAfterSeconds,omitempty"`
}

type balanceDetails struct {
	Available decimal.Decimal `json:"available"`
	Requested decimal.Decimal `json:"requested"`
	Shortfall decimal.Decimal `json:"shortfall"`
}

type fieldDetails struct {
	Field string `json:"field"`
}

// statusFor maps an error to its HTTP status and code.
func statusFor(err error) (int, string) {
	var insufficient *generic.InsufficientBalanceError
	switch {
	case errors.As(err, &insufficient):
		if insufficient.AtCommit {
			return http.StatusConflict, CodeInsufficientBalance
		}
		return http.StatusBadRequest, CodeInsufficientBalance
	case errors.Is(err, generic.ErrValidation):
		return http.StatusBadRequest, CodeValidation
	case errors.Is(err, generic.ErrNotFound):
		return http.StatusNotFound, CodeNotFound
	case errors.Is(err, generic.ErrForbidden):
		return http.StatusForbidden, CodeForbidden
	case errors.Is(err, generic.ErrPrecondition):
		return http.StatusConflict, CodePrecondition
	case errors.Is(err, generic.ErrConflict):
		return http.StatusConflict, CodeConflict
	default:
		return http.StatusInternalServerError, CodeInternal
	}
}

func detailsFor(err error) any {
	var (
		forbidden    *generic.ForbiddenError
		insufficient *generic.InsufficientBalanceError
		validation   *generic.ValidationError
	)
	switch {
	case errors.As(err, &forbidden) && forbidden.Window != nil:
		return windowDetails{
			OpensAt:           forbidden.Window.Opens,
			ClosesAt:          forbidden.Window.Closes,
			RetryAfterSeconds: retryAfterSeconds(forbidden.RetryAfter),
		}
	case errors.As(err, &insufficient):
		return balanceDetails{
			Available: insufficient.Available.Value,
			Requested: insufficient.Requested.Value,
			Shortfall: insufficient.Shortfall().Value,
		}
	case errors.As(err, &validation) && validation.Field != "":
		return fieldDetails{Field: validation.Field}
	}
	return nil
}

// writeDomainError renders err. Retryable window errors also set Retry-After.
func writeDomainError(w http.ResponseWriter, log *zap.Logger, err error) {
	status, code := statusFor(err)
	if status == http.StatusInternalServerError {
		log.Error("request failed", zap.Error(err))
		writeJSON(w, status, ErrorResponse{Error: "internal server error", Code: code})
		return
	}

	var forbidden *generic.ForbiddenError
	if errors.As(err, &forbidden) && forbidden.Retryable() {
		w.Header().Set("Retry-After", strconv.Itoa(retryAfterSeconds(forbidden.RetryAfter)))
	}
	writeJSON(w, status, ErrorResponse{Error: err.Error(), Code: code, Details: detailsFor(err)})
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, ErrorResponse{Error: message, Code: code})
}

func retryAfterSeconds(d time.Duration) int {
	return int(math.Ceil(d.Seconds()))
}
