package httpapi

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gymcrm-calls/internal/audit"
	"gymcrm-calls/internal/auth"
	"gymcrm-calls/internal/calls"
	"gymcrm-calls/internal/config"
	"gymcrm-calls/internal/rbac"
	"gymcrm-calls/internal/reporting"
	"gymcrm-calls/internal/tenancy"
)

type fixture struct {
	router  *gin.Engine
	auth    *auth.Manager
	calls   *calls.MemoryRepo
	reports *reporting.MemoryRepo
	audit   *audit.MemoryRepo
	cache   *recordingCache
}

type recordingCache struct {
	phones []string
	err    error
}

func (r *recordingCache) Invalidate(_ context.Context, phone string) error {
	if r.err != nil {
		return r.err
	}
	r.phones = append(r.phones, phone)
	return nil
}

var callTime = time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

func newFixture(t *testing.T) *fixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	m, err := auth.NewManager(config.AuthConfig{JWTSecret: "test-secret"})
	require.NoError(t, err)

	tenants := tenancy.NewMemoryResolver()
	tenants.AddClient(tenancy.Client{ID: 42, Phone: "79161234567", DirectorID: 7})
	tenants.AddClient(tenancy.Client{ID: 99, Phone: "79990000000", DirectorID: 8})

	f := &fixture{
		auth:    m,
		calls:   calls.NewMemoryRepo(),
		reports: reporting.NewMemoryRepo(),
		audit:   audit.NewMemoryRepo(),
		cache:   &recordingCache{},
	}
	h := Handlers{
		Calls:       calls.NewService(f.calls, tenants, 1),
		Reports:     reporting.NewService(f.reports),
		Audit:       audit.NewService(f.audit),
		TenantCache: f.cache,
	}

	r := gin.New()
	v1 := r.Group("/v1")
	v1.Use(auth.RequireAccessToken(m))
	{
		cg := v1.Group("/calls")
		cg.Use(RequireDirectorAndAnyRole(rbac.RoleDirector, rbac.RoleManager)...)
		cg.GET("", h.ListCalls)
		cg.PATCH("/:id", h.AssignClient)
		cg.POST("/:id/link-client", h.LinkClient)

		rg := v1.Group("/reports")
		rg.Use(RequireDirectorAndAnyRole(rbac.RoleDirector)...)
		rg.GET("/calls", h.CallsReport)

		ag := v1.Group("/admin")
		ag.Use(rbac.RequireAnyRole(rbac.RoleAdmin))
		ag.DELETE("/tenant-cache/:phone", h.InvalidateGymLine)
	}
	f.router = r
	return f
}

func (f *fixture) token(t *testing.T, id auth.Identity) string {
	t.Helper()
	tok, err := f.auth.Issue(time.Now(), id, time.Hour)
	require.NoError(t, err)
	return tok
}

func (f *fixture) do(t *testing.T, method, path, body string, id auth.Identity) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+f.token(t, id))
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

var (
	director = auth.Identity{UserID: 1, DirectorID: 7, Role: rbac.RoleDirector}
	manager  = auth.Identity{UserID: 2, DirectorID: 7, Role: rbac.RoleManager}
	other    = auth.Identity{UserID: 3, DirectorID: 8, Role: rbac.RoleDirector}
)

func (f *fixture) seedCall(externalID, from string, directorID int64) calls.Call {
	return f.calls.Put(calls.Call{
		ExternalID: externalID,
		PhoneFrom:  from,
		PhoneTo:    "74950000001",
		CallTime:   callTime,
		Status:     calls.StatusAppeared,
		DirectorID: directorID,
	})
}

func TestListCalls(t *testing.T) {
	f := newFixture(t)
	f.seedCall("e1", "79161234567", 7)
	f.seedCall("e2", "79161234567", 8)

	w := f.do(t, http.MethodGet, "/v1/calls?page=1", "", manager)
	require.Equal(t, http.StatusOK, w.Code)

	var page calls.Page
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &page))
	assert.Equal(t, 1, page.Total)
	require.Len(t, page.Calls, 1)
	assert.Equal(t, "e1", page.Calls[0].ExternalID)
	assert.Equal(t, calls.PerPage, page.PerPage)
}

func TestListCalls_InvalidPage(t *testing.T) {
	f := newFixture(t)
	w := f.do(t, http.MethodGet, "/v1/calls?page=zero", "", director)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestListCalls_RequiresToken(t *testing.T) {
	f := newFixture(t)
	req := httptest.NewRequest(http.MethodGet, "/v1/calls", nil)
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestListCalls_AdminNeedsDirectorHeader(t *testing.T) {
	f := newFixture(t)
	f.seedCall("e1", "79161234567", 7)
	admin := auth.Identity{UserID: 9, Role: rbac.RoleAdmin}

	w := f.do(t, http.MethodGet, "/v1/calls", "", admin)
	assert.Equal(t, http.StatusForbidden, w.Code)

	req := httptest.NewRequest(http.MethodGet, "/v1/calls", nil)
	req.Header.Set("Authorization", "Bearer "+f.token(t, admin))
	req.Header.Set(rbac.HeaderDirectorOverride, "7")
	w = httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"external_id":"e1"`)
}

func TestAssignClient(t *testing.T) {
	f := newFixture(t)
	c := f.seedCall("e1", "79161234567", 7)

	w := f.do(t, http.MethodPatch, "/v1/calls/"+itoa(c.ID), `{"client_id":42}`, director)
	require.Equal(t, http.StatusOK, w.Code)

	got, _ := f.calls.Get("e1")
	require.NotNil(t, got.ClientID)
	assert.Equal(t, int64(42), *got.ClientID)

	events := f.audit.Events()
	require.Len(t, events, 1)
	assert.Equal(t, audit.EventTypeCallClientAssigned, events[0].Type)
	assert.Equal(t, int64(7), events[0].DirectorID)
	assert.Equal(t, int64(1), events[0].ActorUserID)

	w = f.do(t, http.MethodPatch, "/v1/calls/"+itoa(c.ID), `{"client_id":null}`, director)
	require.Equal(t, http.StatusOK, w.Code)
	got, _ = f.calls.Get("e1")
	assert.Nil(t, got.ClientID)
}

func TestAssignClient_Errors(t *testing.T) {
	f := newFixture(t)
	c := f.seedCall("e1", "79161234567", 7)
	id := itoa(c.ID)

	cases := []struct {
		name string
		path string
		body string
		as   auth.Identity
		want int
	}{
		{"bad id", "/v1/calls/abc", `{"client_id":42}`, director, http.StatusBadRequest},
		{"bad json", "/v1/calls/" + id, `{`, director, http.StatusBadRequest},
		{"negative client", "/v1/calls/" + id, `{"client_id":-1}`, director, http.StatusBadRequest},
		{"other tenant client", "/v1/calls/" + id, `{"client_id":99}`, director, http.StatusUnprocessableEntity},
		{"other tenant call", "/v1/calls/" + id, `{"client_id":99}`, other, http.StatusNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := f.do(t, http.MethodPatch, tc.path, tc.body, tc.as)
			assert.Equal(t, tc.want, w.Code)
		})
	}
	assert.Empty(t, f.audit.Events())
}

func TestLinkClient(t *testing.T) {
	f := newFixture(t)
	c := f.seedCall("e1", "79161234567", 7)
	f.seedCall("e2", "79161234567", 7)
	f.seedCall("e3", "79160000000", 7)

	w := f.do(t, http.MethodPost, "/v1/calls/"+itoa(c.ID)+"/link-client", `{"client_id":42}`, manager)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok","updated":2}`, w.Body.String())

	e3, _ := f.calls.Get("e3")
	assert.Nil(t, e3.ClientID)

	events := f.audit.Events()
	require.Len(t, events, 1)
	assert.Equal(t, audit.EventTypeClientCallsLinked, events[0].Type)
	assert.JSONEq(t, `{"updated_calls":2}`, events[0].Metadata)
}

func TestLinkClient_MissingCall(t *testing.T) {
	f := newFixture(t)
	w := f.do(t, http.MethodPost, "/v1/calls/404/link-client", `{"client_id":42}`, director)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = f.do(t, http.MethodPost, "/v1/calls/1/link-client", `{}`, director)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

type failingAudit struct{}

func (failingAudit) LogClientAssigned(context.Context, audit.Actor, int64, int64, *int64) error {
	return errors.New("audit down")
}

func (failingAudit) LogClientLinked(context.Context, audit.Actor, int64, int64, int64, int64) error {
	return errors.New("audit down")
}

func TestAssignClient_AuditFailureDoesNotBlock(t *testing.T) {
	gin.SetMode(gin.TestMode)
	repo := calls.NewMemoryRepo()
	c := repo.Put(calls.Call{ExternalID: "e1", DirectorID: 7, CallTime: callTime, Status: calls.StatusAppeared})
	tenants := tenancy.NewMemoryResolver()
	tenants.AddClient(tenancy.Client{ID: 42, Phone: "79161234567", DirectorID: 7})

	h := Handlers{Calls: calls.NewService(repo, tenants, 1), Audit: failingAudit{}}
	r := gin.New()
	r.PATCH("/calls/:id", func(c *gin.Context) {
		c.Request = c.Request.WithContext(auth.WithIdentity(c.Request.Context(), director))
		c.Next()
	}, h.AssignClient)

	req := httptest.NewRequest(http.MethodPatch, "/calls/"+itoa(c.ID), strings.NewReader(`{"client_id":42}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestCallsReport(t *testing.T) {
	f := newFixture(t)
	d := 30
	client := int64(42)
	f.reports.Calls = []calls.Call{
		{ID: 1, DirectorID: 7, CallTime: callTime, Status: calls.StatusAnswered, Duration: &d, ClientID: &client},
		{ID: 2, DirectorID: 7, CallTime: callTime.Add(time.Minute), Status: calls.StatusMissed},
		{ID: 3, DirectorID: 8, CallTime: callTime, Status: calls.StatusAnswered},
	}

	w := f.do(t, http.MethodGet, "/v1/reports/calls?from=2024-03-01T00:00:00Z&to=2024-03-02T00:00:00Z", "", director)
	require.Equal(t, http.StatusOK, w.Code)

	var out reporting.CallsSummary
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	assert.Equal(t, 2, out.TotalCalls)
	assert.Equal(t, 1, out.AnsweredCalls)
	assert.Equal(t, 1, out.MissedCalls)
	assert.Equal(t, 30, out.TotalDurationSeconds)
	assert.Equal(t, 1, out.CallsWithoutClient)
}

func TestCallsReport_Validation(t *testing.T) {
	f := newFixture(t)
	for _, q := range []string{
		"",
		"?from=yesterday&to=2024-03-02T00:00:00Z",
		"?from=2024-03-02T00:00:00Z&to=2024-03-01T00:00:00Z",
	} {
		w := f.do(t, http.MethodGet, "/v1/reports/calls"+q, "", director)
		assert.Equal(t, http.StatusBadRequest, w.Code, q)
	}
}

func TestCallsReport_ManagerForbidden(t *testing.T) {
	f := newFixture(t)
	w := f.do(t, http.MethodGet, "/v1/reports/calls?from=2024-03-01T00:00:00Z&to=2024-03-02T00:00:00Z", "", manager)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestInvalidateGymLine(t *testing.T) {
	f := newFixture(t)
	admin := auth.Identity{UserID: 9, Role: rbac.RoleAdmin}

	w := f.do(t, http.MethodDelete, "/v1/admin/tenant-cache/84950000001", "", admin)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []string{"84950000001"}, f.cache.phones)

	w = f.do(t, http.MethodDelete, "/v1/admin/tenant-cache/84950000001", "", director)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Len(t, f.cache.phones, 1)

	f.cache.err = errors.New("redis down")
	w = f.do(t, http.MethodDelete, "/v1/admin/tenant-cache/84950000001", "", admin)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func itoa(id int64) string { return strconv.FormatInt(id, 10) }
