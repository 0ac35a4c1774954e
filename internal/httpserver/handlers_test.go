package httpserver

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"credauth/backend/internal/config"
	"credauth/backend/internal/infrastructure/memory"
	"credauth/backend/internal/infrastructure/password"
	"credauth/backend/internal/infrastructure/token"
	authusecase "credauth/backend/internal/usecase/auth"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

type stubPinger struct{ err error }

func (p stubPinger) Ping(context.Context) error { return p.err }

func newTestServer(t *testing.T) (*Server, *Metrics) {
	t.Helper()
	return newTestServerWithDatabase(t, nil)
}

func newTestServerWithDatabase(t *testing.T, db Pinger) (*Server, *Metrics) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc := authusecase.NewService(
		memory.NewUserRepository(),
		password.NewBcryptHasher(bcrypt.MinCost),
		token.NewJWTManager("access-secret-for-http-tests-0123", 15*time.Minute, "credauth"),
		token.NewJWTManager("refresh-secret-for-http-tests-012", 24*time.Hour, "credauth"),
		logger,
	)
	metrics := NewMetrics()
	cfg := config.Config{HTTPPort: "0", AllowedOrigins: []string{"*"}}
	return NewServer(cfg, svc, metrics, db, logger), metrics
}

func do(t *testing.T, srv *Server, method, path string, body any, header http.Header) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	for k, vals := range header {
		for _, v := range vals {
			req.Header.Add(k, v)
		}
	}
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func register(t *testing.T, srv *Server, email, pw string) map[string]any {
	t.Helper()
	rec := do(t, srv, http.MethodPost, "/auth/register", map[string]string{
		"email": email, "password": pw, "name": "Tester",
	}, nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return decode(t, rec)
}

func bearer(tok string) http.Header {
	return http.Header{"Authorization": []string{"Bearer " + tok}}
}

func TestHealth(t *testing.T) {
	srv, _ := newTestServer(t)
	rec := do(t, srv, http.MethodGet, "/health", nil, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", decode(t, rec)["status"])
}

func TestHealth_Database(t *testing.T) {
	tests := []struct {
		name       string
		pingErr    error
		wantCode   int
		wantStatus string
		wantDB     string
	}{
		{name: "reachable", wantCode: http.StatusOK, wantStatus: "ok", wantDB: "up"},
		{name: "unreachable", pingErr: errors.New("connection refused"), wantCode: http.StatusServiceUnavailable, wantStatus: "error", wantDB: "down"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, _ := newTestServerWithDatabase(t, stubPinger{err: tt.pingErr})
			rec := do(t, srv, http.MethodGet, "/health", nil, nil)
			assert.Equal(t, tt.wantCode, rec.Code)

			body := decode(t, rec)
			assert.Equal(t, tt.wantStatus, body["status"])
			checks, ok := body["checks"].(map[string]any)
			require.True(t, ok)
			assert.Equal(t, tt.wantDB, checks["database"])
		})
	}
}

func TestHealthPing(t *testing.T) {
	srv, _ := newTestServerWithDatabase(t, stubPinger{err: errors.New("down")})
	rec := do(t, srv, http.MethodGet, "/health/ping", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	body := decode(t, rec)
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, "pong", body["message"])
	assert.NotEmpty(t, body["timestamp"])
	assert.Contains(t, body, "uptime")

	rec = do(t, srv, http.MethodPost, "/health/ping", nil, nil)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestRegisterEndpoint(t *testing.T) {
	srv, _ := newTestServer(t)

	body := register(t, srv, "a@x.com", "Secret@123")
	user, ok := body["user"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "a@x.com", user["email"])
	assert.Equal(t, "Tester", user["name"])
	assert.NotContains(t, user, "passwordHash")
	assert.NotEmpty(t, body["accessToken"])
	assert.NotEmpty(t, body["refreshToken"])

	rec := do(t, srv, http.MethodPost, "/auth/register", map[string]string{"email": "a@x.com", "password": "other"}, nil)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = do(t, srv, http.MethodPost, "/auth/register", map[string]string{"email": "", "password": "x"}, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, srv, http.MethodPost, "/auth/register", map[string]string{"email": "b@x.com", "password": strings.Repeat("p", 73)}, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, srv, http.MethodGet, "/auth/register", nil, nil)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	assert.Equal(t, http.MethodPost, rec.Header().Get("Allow"))
}

func TestRegisterEndpoint_BadJSON(t *testing.T) {
	srv, _ := newTestServer(t)
	req := httptest.NewRequest(http.MethodPost, "/auth/register", strings.NewReader("{"))
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestLoginEndpoint(t *testing.T) {
	srv, _ := newTestServer(t)
	register(t, srv, "a@x.com", "Secret@123")

	rec := do(t, srv, http.MethodPost, "/auth/login", map[string]string{"email": "a@x.com", "password": "Secret@123"}, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.NotEmpty(t, body["accessToken"])
	assert.NotEmpty(t, body["refreshToken"])

	wrong := do(t, srv, http.MethodPost, "/auth/login", map[string]string{"email": "a@x.com", "password": "nope"}, nil)
	unknown := do(t, srv, http.MethodPost, "/auth/login", map[string]string{"email": "ghost@x.com", "password": "nope"}, nil)
	assert.Equal(t, http.StatusUnauthorized, wrong.Code)
	assert.Equal(t, http.StatusUnauthorized, unknown.Code)
	assert.JSONEq(t, wrong.Body.String(), unknown.Body.String())
}

func TestRefreshEndpoint(t *testing.T) {
	srv, _ := newTestServer(t)
	body := register(t, srv, "a@x.com", "Secret@123")
	refresh := body["refreshToken"].(string)

	rec := do(t, srv, http.MethodPost, "/auth/refresh", map[string]string{"refreshToken": refresh}, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	pair := decode(t, rec)
	assert.NotEmpty(t, pair["accessToken"])
	assert.NotEqual(t, refresh, pair["refreshToken"])

	rec = do(t, srv, http.MethodPost, "/auth/refresh", nil, bearer(refresh))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, srv, http.MethodPost, "/auth/refresh", map[string]string{"refreshToken": body["accessToken"].(string)}, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = do(t, srv, http.MethodPost, "/auth/refresh", map[string]string{"refreshToken": "garbage"}, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = do(t, srv, http.MethodPost, "/auth/refresh", nil, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestMeEndpoint(t *testing.T) {
	srv, _ := newTestServer(t)
	body := register(t, srv, "a@x.com", "Secret@123")

	rec := do(t, srv, http.MethodGet, "/auth/me", nil, bearer(body["accessToken"].(string)))
	require.Equal(t, http.StatusOK, rec.Code)
	user := decode(t, rec)["user"].(map[string]any)
	assert.Equal(t, "a@x.com", user["email"])

	rec = do(t, srv, http.MethodGet, "/auth/me", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = do(t, srv, http.MethodGet, "/auth/me", nil, bearer(body["refreshToken"].(string)))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestCORSPreflight(t *testing.T) {
	srv, _ := newTestServer(t)
	rec := do(t, srv, http.MethodOptions, "/auth/login", nil, http.Header{"Origin": []string{"https://app.example"}})
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "https://app.example", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestMetricsEndpoint(t *testing.T) {
	srv, _ := newTestServer(t)
	register(t, srv, "a@x.com", "Secret@123")
	do(t, srv, http.MethodPost, "/auth/login", map[string]string{"email": "a@x.com", "password": "bad"}, nil)

	rec := do(t, srv, http.MethodGet, "/metrics", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	out := rec.Body.String()
	assert.Contains(t, out, `credauth_auth_operations_total{operation="register",outcome="success"} 1`)
	assert.Contains(t, out, `credauth_auth_operations_total{operation="login",outcome="rejected"} 1`)
	assert.Contains(t, out, "credauth_http_requests_total")
}

func TestExtractBearerToken(t *testing.T) {
	assert.Equal(t, "abc", extractBearerToken("Bearer abc"))
	assert.Equal(t, "abc", extractBearerToken("bearer  abc "))
	assert.Empty(t, extractBearerToken("Basic abc"))
	assert.Empty(t, extractBearerToken("Bearer"))
	assert.Empty(t, extractBearerToken(""))
}

func TestErrorBodyCarriesCode(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := do(t, srv, http.MethodPost, "/auth/login", map[string]string{"email": "ghost@x.com", "password": "pw"}, nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, codeInvalidCredentials, body["code"])
	assert.Equal(t, "invalid credentials", body["error"])
	assert.Equal(t, "no-store", rec.Header().Get("Cache-Control"))
}

func TestRequestBodyLimit(t *testing.T) {
	srv, _ := newTestServer(t)
	huge := `{"email":"a@x.com","password":"` + strings.Repeat("p", maxBodyBytes) + `"}`

	for _, path := range []string{"/auth/register", "/auth/login", "/auth/refresh"} {
		req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(huge))
		rec := httptest.NewRecorder()
		srv.Handler().ServeHTTP(rec, req)
		assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code, path)
		assert.Equal(t, codePayloadTooLarge, decode(t, rec)["code"], path)
	}
}

func TestRequestID(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := do(t, srv, http.MethodGet, "/health", nil, nil)
	generated := rec.Header().Get(requestIDHeader)
	assert.Len(t, generated, 36)

	rec = do(t, srv, http.MethodGet, "/health", nil, http.Header{requestIDHeader: []string{"trace-abc"}})
	assert.Equal(t, "trace-abc", rec.Header().Get(requestIDHeader))

	rec = do(t, srv, http.MethodGet, "/health", nil, http.Header{requestIDHeader: []string{strings.Repeat("x", 200)}})
	assert.Len(t, rec.Header().Get(requestIDHeader), 36)
}

func TestRequestLogIncludesRequestID(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	handler := withRequestID(withLogging(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}), logger))

	req := httptest.NewRequest(http.MethodGet, "/missing", nil)
	req.Header.Set(requestIDHeader, "req-42")
	handler.ServeHTTP(httptest.NewRecorder(), req)

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "req-42", line["request_id"])
	assert.Equal(t, "WARN", line["level"])
	assert.EqualValues(t, http.StatusNotFound, line["status"])
}
