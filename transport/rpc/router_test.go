package rpc

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"linkwithmentor/middleware/ratelimit"
	rlapp "linkwithmentor/middleware/ratelimit/application"
	rlinfra "linkwithmentor/middleware/ratelimit/infra"
	"linkwithmentor/service/application"
	"linkwithmentor/service/domain"
	"linkwithmentor/service/infra/memory"
)

func newServer(t *testing.T, max int, mws ...func(http.Handler) http.Handler) *httptest.Server {
	t.Helper()
	logger := logrus.New()
	logger.SetOutput(io.Discard)

	limiter, err := rlinfra.NewSlidingWindow(max, time.Minute)
	require.NoError(t, err)
	orch, err := application.New(application.Config{
		Store:   memory.New(),
		Limiter: rlapp.Service{Limiter: limiter, RetryAfter: 2500 * time.Millisecond},
		Logger:  logger,
	})
	require.NoError(t, err)

	srv := httptest.NewServer(NewRouter(Options{Dispatcher: orch, Logger: logger, Middlewares: mws}))
	t.Cleanup(srv.Close)
	return srv
}

func post(t *testing.T, srv *httptest.Server, op, auth, body string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(http.MethodPost, srv.URL+"/v1/"+op, strings.NewReader(body))
	require.NoError(t, err)
	if auth != "" {
		req.Header.Set("Authorization", auth)
	}
	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func TestRouter_CreateAndGetUser(t *testing.T) {
	srv := newServer(t, 100)

	resp := post(t, srv, "CreateUser", "Bearer t", `{"external_uid":"u1","email":"u1@x.com"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get(RequestIDHeader))
	created := decode[domain.User](t, resp)
	assert.Equal(t, "user", created.Role)

	resp = post(t, srv, "GetUser", "Bearer t", `{"external_uid":"u1"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	got := decode[domain.User](t, resp)
	assert.Equal(t, created.ID, got.ID)
}

func TestRouter_ErrorStatusMapping(t *testing.T) {
	srv := newServer(t, 100)
	post(t, srv, "CreateUser", "Bearer t", `{"external_uid":"u1","email":"u1@x.com"}`)

	cases := []struct {
		name, op, auth, body string
		status               int
		code                 string
	}{
		{"no credentials", "CreateUser", "", `{}`, http.StatusUnauthorized, "unauthenticated"},
		{"admin role", "CreateUser", "Bearer t", `{"external_uid":"m","email":"m@x","role":"mentor"}`, http.StatusForbidden, "permission_denied"},
		{"bad payload", "CreateUser", "Bearer t", `{"external_uid":`, http.StatusBadRequest, "invalid_argument"},
		{"missing user", "GetUser", "Bearer t", `{"external_uid":"ghost"}`, http.StatusNotFound, "not_found"},
		{"duplicate", "CreateUser", "Bearer t", `{"external_uid":"u1","email":"u1@x.com"}`, http.StatusConflict, "already_exists"},
		{"unknown op", "Nope", "Bearer t", `{}`, http.StatusNotFound, "not_found"},
	}
	for _, tc := range cases {
		resp := post(t, srv, tc.op, tc.auth, tc.body)
		assert.Equal(t, tc.status, resp.StatusCode, tc.name)
		body := decode[ErrorBody](t, resp)
		assert.Equal(t, tc.code, body.Code, tc.name)
	}
}

func TestRouter_RateLimitedSetsRetryAfter(t *testing.T) {
	srv := newServer(t, 1)

	resp := post(t, srv, "ListSessions", "Bearer t", `{"user_id":7}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = post(t, srv, "ListSessions", "Bearer t", `{"user_id":7}`)
	require.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	// a janela deslizante informa a espera real (1 min), não o RetryAfter fixo
	assert.Equal(t, "60", resp.Header.Get("Retry-After"))
	assert.Equal(t, "resource_exhausted", decode[ErrorBody](t, resp).Code)
}

func TestRouter_HealthReadyMetrics(t *testing.T) {
	srv := newServer(t, 100)

	resp, err := srv.Client().Get(srv.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, domain.StatusHealthy, decode[domain.HealthStatus](t, resp).Status)

	resp, err = srv.Client().Get(srv.URL + "/readyz")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = srv.Client().Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	m := decode[map[string]any](t, resp)
	assert.Equal(t, float64(3), m["total_requests"])
	assert.Contains(t, m, "success_rate")
}

func TestRouter_FloodGuardMiddleware(t *testing.T) {
	guard := ratelimit.Middleware(ratelimit.Options{
		Limiter: rlinfra.NewStore(0.0001, 1),
	})
	srv := newServer(t, 100, guard)

	resp := post(t, srv, "Ping", "", `{"message":"a"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "Pong: a", decode[domain.PingResponse](t, resp).Message)

	resp = post(t, srv, "Ping", "", `{"message":"b"}`)
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
}

func TestRetryAfterSeconds(t *testing.T) {
	assert.Equal(t, 1, retryAfterSeconds(100*time.Millisecond))
	assert.Equal(t, 3, retryAfterSeconds(2500*time.Millisecond))
	assert.Equal(t, 60, retryAfterSeconds(time.Minute))
}
