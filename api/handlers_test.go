package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/workforce-engine/api"
	"github.com/warp/workforce-engine/generic"
	"github.com/warp/workforce-engine/store/sqlite"
	"go.uber.org/zap/zaptest"
)

var (
	manager = generic.Actor{ID: "mgr-1", Role: generic.RoleManager, OrganizationID: "org-1"}
	alice   = generic.Actor{ID: "staff-1", Role: generic.RoleStaff, OrganizationID: "org-1"}
	bob     = generic.Actor{ID: "staff-2", Role: generic.RoleStaff, OrganizationID: "org-1"}
	nobody  = generic.Actor{}
)

// 07:00 UTC on the day of the test shifts.
var morning = time.Date(2025, time.June, 1, 7, 0, 0, 0, time.UTC)

type testServer struct {
	t       *testing.T
	store   *sqlite.Store
	handler *api.Handler
	router  http.Handler
	clock   *generic.FakeClock
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	ctx := context.Background()
	require.NoError(t, store.SaveOrganization(ctx, generic.Organization{ID: "org-1", Name: "Acme", Timezone: "UTC"}))
	require.NoError(t, store.SaveMember(ctx, generic.Member{ID: "mgr-1", Name: "Mary", Email: "mary@acme.test", Role: generic.RoleManager, OrganizationID: "org-1"}))
	require.NoError(t, store.SaveMember(ctx, generic.Member{ID: "staff-1", Name: "Alice", Email: "alice@acme.test", Role: generic.RoleStaff, OrganizationID: "org-1", ManagerID: "mgr-1"}))
	require.NoError(t, store.SaveMember(ctx, generic.Member{ID: "staff-2", Name: "Bob", Email: "bob@acme.test", Role: generic.RoleStaff, OrganizationID: "org-1", ManagerID: "mgr-1"}))

	log := zaptest.NewLogger(t)
	clock := generic.NewFakeClock(morning)
	h, err := api.NewHandler(store, api.Options{DefaultAnnualLeave: 21, Clock: clock}, log)
	require.NoError(t, err)

	return &testServer{
		t:       t,
		store:   store,
		handler: h,
		router:  api.NewRouter(h, api.RouterConfig{AllowedOrigins: []string{"http://localhost:3000"}, EnableReset: true}, log),
		clock:   clock,
	}
}

// do sends a JSON request as actor. A zero actor sends no identity headers.
func (ts *testServer) do(method, path string, actor generic.Actor, body any) *httptest.ResponseRecorder {
	ts.t.Helper()
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(ts.t, err)
		r = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, r)
	req.Header.Set("Content-Type", "application/json")
	setActor(req, actor)

	rec := httptest.NewRecorder()
	ts.router.ServeHTTP(rec, req)
	return rec
}

func setActor(req *http.Request, actor generic.Actor) {
	if actor.ID == "" {
		return
	}
	req.Header.Set(api.HeaderActorID, actor.ID)
	req.Header.Set(api.HeaderActorRole, string(actor.Role))
	req.Header.Set(api.HeaderOrganizationID, actor.OrganizationID)
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

// errorBody is api.ErrorResponse with the details decoded as a map.
type errorBody struct {
	Error   string         `json:"error"`
	Code    string         `json:"code"`
	Details map[string]any `json:"details"`
}

func requireStatus(t *testing.T, rec *httptest.ResponseRecorder, status int) {
	t.Helper()
	require.Equal(t, status, rec.Code, rec.Body.String())
}

// =============================================================================
// HEALTH / IDENTITY
// =============================================================================

func TestHealth_NoIdentityNeeded(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(http.MethodGet, "/api/health", nobody, nil)

	requireStatus(t, rec, http.StatusOK)
	assert.Equal(t, "ok", decode[map[string]string](t, rec)["status"])
}

func TestIdentity_Required(t *testing.T) {
	ts := newTestServer(t)

	tests := map[string]generic.Actor{
		"no headers":   nobody,
		"unknown role": {ID: "staff-1", Role: "owner", OrganizationID: "org-1"},
		"no org":       {ID: "staff-1", Role: generic.RoleStaff},
	}
	for name, actor := range tests {
		t.Run(name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/shifts/mine", nil)
			if actor.ID != "" {
				req.Header.Set(api.HeaderActorID, actor.ID)
				req.Header.Set(api.HeaderActorRole, string(actor.Role))
				req.Header.Set(api.HeaderOrganizationID, actor.OrganizationID)
			}
			rec := httptest.NewRecorder()
			ts.router.ServeHTTP(rec, req)

			requireStatus(t, rec, http.StatusUnauthorized)
			assert.Equal(t, api.CodeUnauthenticated, decode[errorBody](t, rec).Code)
		})
	}
}

func TestIdentity_RoleIsCaseInsensitive(t *testing.T) {
	ts := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/shifts", nil)
	req.Header.Set(api.HeaderActorID, "mgr-1")
	req.Header.Set(api.HeaderActorRole, "Manager")
	req.Header.Set(api.HeaderOrganizationID, "org-1")
	rec := httptest.NewRecorder()
	ts.router.ServeHTTP(rec, req)

	requireStatus(t, rec, http.StatusOK)
}

// =============================================================================
// ERROR MAPPING
// =============================================================================

func TestErrorMapping(t *testing.T) {
	ts := newTestServer(t)
	valid := api.CreateShiftRequest{
		Name: "Morning", AssignedTo: "staff-1", Date: "2025-06-01", StartTime: "09:00", EndTime: "17:00",
	}

	t.Run("validator tag names the JSON field", func(t *testing.T) {
		body := valid
		body.StartTime = "9am"
		rec := ts.do(http.MethodPost, "/api/shifts", manager, body)

		requireStatus(t, rec, http.StatusBadRequest)
		eb := decode[errorBody](t, rec)
		assert.Equal(t, api.CodeValidation, eb.Code)
		assert.Equal(t, "startTime", eb.Details["field"])
	})

	t.Run("malformed JSON", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/shifts", bytes.NewBufferString("{"))
		setActor(req, manager)
		rec := httptest.NewRecorder()
		ts.router.ServeHTTP(rec, req)

		requireStatus(t, rec, http.StatusBadRequest)
		assert.Equal(t, "body", decode[errorBody](t, rec).Details["field"])
	})

	t.Run("staff cannot create shifts", func(t *testing.T) {
		rec := ts.do(http.MethodPost, "/api/shifts", alice, valid)

		requireStatus(t, rec, http.StatusForbidden)
		assert.Equal(t, api.CodeForbidden, decode[errorBody](t, rec).Code)
	})

	t.Run("unknown shift", func(t *testing.T) {
		rec := ts.do(http.MethodGet, "/api/shifts/ghost", manager, nil)

		requireStatus(t, rec, http.StatusNotFound)
		assert.Equal(t, api.CodeNotFound, decode[errorBody](t, rec).Code)
	})

	t.Run("wrong state is 409", func(t *testing.T) {
		rec := ts.do(http.MethodPost, "/api/shifts", manager, valid)
		requireStatus(t, rec, http.StatusCreated)
		id := decode[api.ShiftDTO](t, rec).ID

		rec = ts.do(http.MethodPost, "/api/shifts/"+id+"/review", manager, api.ReviewShiftRequest{Decision: "approve"})

		requireStatus(t, rec, http.StatusConflict)
		assert.Equal(t, api.CodePrecondition, decode[errorBody](t, rec).Code)
	})

	t.Run("rejection needs a reason", func(t *testing.T) {
		rec := ts.do(http.MethodPost, "/api/shifts/any/review", manager, api.ReviewShiftRequest{Decision: "reject"})

		requireStatus(t, rec, http.StatusBadRequest)
		assert.Equal(t, "reason", decode[errorBody](t, rec).Details["field"])
	})
}

// =============================================================================
// ADMIN
// =============================================================================

func TestReset(t *testing.T) {
	ts := newTestServer(t)
	rec := ts.do(http.MethodPost, "/api/shifts/open", manager, api.CreateOpenShiftRequest{
		Date: "2025-06-01", StartTime: "09:00", EndTime: "17:00",
	})
	requireStatus(t, rec, http.StatusCreated)

	rec = ts.do(http.MethodPost, "/api/admin/reset", alice, nil)
	requireStatus(t, rec, http.StatusForbidden)

	rec = ts.do(http.MethodPost, "/api/admin/reset", manager, nil)
	requireStatus(t, rec, http.StatusOK)

	_, err := ts.store.GetMember(context.Background(), "mgr-1")
	assert.ErrorIs(t, err, generic.ErrNotFound)
}
