package router

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"

	"github.com/SweetModels/sweet-models-enterprise/internal/appctx"
	"github.com/SweetModels/sweet-models-enterprise/internal/cache"
	"github.com/SweetModels/sweet-models-enterprise/internal/config"
	"github.com/SweetModels/sweet-models-enterprise/internal/store"
)

func testSetup(t *testing.T) http.Handler {
	t.Helper()
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })
	mock.MatchExpectationsInOrder(false)

	gormDB, err := gorm.Open(mysql.New(mysql.Config{
		Conn:                      sqlDB,
		SkipInitializeWithVersion: true,
	}), &gorm.Config{})
	require.NoError(t, err)

	db := store.WrapGORM(gormDB)
	cfg := config.Load()
	cfg.RateLimitEnabled = false

	// A real cache.Client is needed here, not a zero-value one: every
	// request past the health endpoints runs through
	// middleware.EmergencyGate, which calls emergency.Gate.Check() and
	// in turn the cache. An unreachable Redis still answers with a
	// connection error rather than panicking, and the gate fails open
	// on any cache/DB error (spec §5's brief-staleness tolerance).
	cacheClient, err := cache.New(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { cacheClient.Close() })

	app := appctx.New(cfg, zerolog.Nop(), db, cacheClient)
	return NewRouter(app, zerolog.Nop())
}

func TestHealthEndpoints(t *testing.T) {
	r := testSetup(t)

	tests := []struct {
		name   string
		path   string
		status int
	}{
		{"healthz", "/healthz", http.StatusOK},
		{"ready", "/ready", http.StatusOK},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tc.path, nil)
			rw := httptest.NewRecorder()
			r.ServeHTTP(rw, req)
			if rw.Result().StatusCode != tc.status {
				t.Fatalf("expected %d for %s, got %d", tc.status, tc.path, rw.Result().StatusCode)
			}
		})
	}
}

func TestUnauthenticatedRouteReturns401(t *testing.T) {
	r := testSetup(t)

	req := httptest.NewRequest(http.MethodGet, "/v1/rates", nil)
	rw := httptest.NewRecorder()
	r.ServeHTTP(rw, req)

	if rw.Result().StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 for unauthenticated /v1/rates, got %d", rw.Result().StatusCode)
	}
}

func TestCORSPreflight(t *testing.T) {
	r := testSetup(t)

	req := httptest.NewRequest(http.MethodOptions, "/v1/rates", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", "GET")
	rw := httptest.NewRecorder()
	r.ServeHTTP(rw, req)

	if rw.Header().Get("Access-Control-Allow-Origin") == "" {
		t.Fatal("expected CORS Allow-Origin header on preflight response")
	}
}

func TestSecurityHeaders(t *testing.T) {
	r := testSetup(t)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rw := httptest.NewRecorder()
	r.ServeHTTP(rw, req)

	headers := []string{
		"X-Content-Type-Options",
		"X-Frame-Options",
		"Strict-Transport-Security",
	}
	for _, h := range headers {
		if rw.Header().Get(h) == "" {
			t.Fatalf("expected security header %s to be set", h)
		}
	}
}

func TestEmergencyGateOpenWhenNoFlagActive(t *testing.T) {
	r := testSetup(t)

	req := httptest.NewRequest(http.MethodGet, "/v1/rates", nil)
	req.Header.Set("Authorization", "Bearer test")
	req.Header.Set("X-User-Id", "11111111-1111-1111-1111-111111111111")
	req.Header.Set("X-User-Role", "ADMIN")
	rw := httptest.NewRecorder()
	r.ServeHTTP(rw, req)

	// With no emergency row present the gate stays open; this asserts the
	// request reaches past the gate and auth rather than failing closed
	// by default.
	if rw.Result().StatusCode == http.StatusServiceUnavailable {
		t.Fatal("expected emergency gate to stay open with no active flag")
	}
}
