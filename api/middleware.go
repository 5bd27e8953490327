package api

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/warp/workforce-engine/generic"
	"go.uber.org/zap"
)

// Identity headers set by the trusted upstream that authenticated the caller.
const (
	HeaderActorID        = "X-Actor-ID"
	HeaderActorRole      = "X-Actor-Role"
	HeaderOrganizationID = "X-Organization-ID"
)

type actorKey struct{}

// Identity builds the caller's Actor from the identity headers. Requests
// without a complete identity are refused with 401.
func Identity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		actor := generic.Actor{
			ID:             strings.TrimSpace(r.Header.Get(HeaderActorID)),
			Role:           generic.Role(strings.ToLower(strings.TrimSpace(r.Header.Get(HeaderActorRole)))),
			OrganizationID: strings.TrimSpace(r.Header.Get(HeaderOrganizationID)),
		}
		if actor.ID == "" || actor.OrganizationID == "" || !actor.Role.Valid() {
			writeError(w, http.StatusUnauthorized, CodeUnauthenticated, "missing or invalid identity headers")
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), actorKey{}, actor)))
	})
}

// actorFrom returns the Actor Identity stored on the request.
func actorFrom(r *http.Request) generic.Actor {
	actor, _ := r.Context().Value(actorKey{}).(generic.Actor)
	return actor
}

// RequestLogger logs one line per request with zap.
func RequestLogger(log *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			defer func() {
				log.Info("http request",
					zap.String("request_id", middleware.GetReqID(r.Context())),
					zap.String("method", r.Method),
					zap.String("path", r.URL.Path),
					zap.Int("status", ww.Status()),
					zap.Int("bytes", ww.BytesWritten()),
					zap.Duration("duration", time.Since(start)),
					zap.String("actor", r.Header.Get(HeaderActorID)),
				)
			}()
			next.ServeHTTP(ww, r)
		})
	}
}
