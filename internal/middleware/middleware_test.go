package middleware

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dukerupert/motorworks/internal/domain"
)

func okHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func TestWithActor(t *testing.T) {
	userID := uuid.New()

	tests := []struct {
		name       string
		userHeader string
		roleHeader string
		wantStatus int
		wantActor  *domain.Actor
	}{
		{name: "anonymous", wantStatus: http.StatusOK},
		{
			name:       "customer by default",
			userHeader: userID.String(),
			wantStatus: http.StatusOK,
			wantActor:  &domain.Actor{UserID: userID, Role: domain.RoleCustomer},
		},
		{
			name:       "staff role",
			userHeader: userID.String(),
			roleHeader: "STAFF",
			wantStatus: http.StatusOK,
			wantActor:  &domain.Actor{UserID: userID, Role: domain.RoleStaff},
		},
		{
			name:       "unknown role is customer",
			userHeader: userID.String(),
			roleHeader: "root",
			wantStatus: http.StatusOK,
			wantActor:  &domain.Actor{UserID: userID, Role: domain.RoleCustomer},
		},
		{name: "malformed id", userHeader: "not-a-uuid", wantStatus: http.StatusBadRequest},
		{name: "nil id", userHeader: uuid.Nil.String(), wantStatus: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got *domain.Actor
			h := WithActor(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				got = domain.ActorFromContext(r.Context())
				w.WriteHeader(http.StatusOK)
			}))

			req := httptest.NewRequest(http.MethodGet, "/api/cart", nil)
			if tt.userHeader != "" {
				req.Header.Set(UserIDHeader, tt.userHeader)
			}
			if tt.roleHeader != "" {
				req.Header.Set(UserRoleHeader, tt.roleHeader)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, tt.wantActor, got)
		})
	}
}

func TestRequireStaff(t *testing.T) {
	h := WithActor(RequireStaff(http.HandlerFunc(okHandler)))

	tests := []struct {
		name   string
		role   string
		user   bool
		status int
	}{
		{name: "anonymous", status: http.StatusUnauthorized},
		{name: "customer", user: true, role: domain.RoleCustomer, status: http.StatusForbidden},
		{name: "staff", user: true, role: domain.RoleStaff, status: http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/orders/x/status", nil)
			if tt.user {
				req.Header.Set(UserIDHeader, uuid.NewString())
				req.Header.Set(UserRoleHeader, tt.role)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			assert.Equal(t, tt.status, rec.Code)
		})
	}
}

func TestRequireActor_JSONEnvelope(t *testing.T) {
	rec := httptest.NewRecorder()
	RequireActor(http.HandlerFunc(okHandler)).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	require.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var body struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, domain.EUNAUTHORIZED, body.Error.Code)
}

func TestRequestID(t *testing.T) {
	var seen string
	h := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = domain.RequestIDFromContext(r.Context())
	}))

	t.Run("generates when absent", func(t *testing.T) {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
		assert.NotEmpty(t, seen)
		assert.Equal(t, seen, rec.Header().Get(RequestIDHeader))
	})

	t.Run("propagates upstream id", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set(RequestIDHeader, "lb-123")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		assert.Equal(t, "lb-123", seen)
	})

	t.Run("replaces oversized id", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set(RequestIDHeader, strings.Repeat("x", 200))
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		assert.Len(t, seen, 36)
	})

	t.Run("replaces id with control characters", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set(RequestIDHeader, "abc\tdef")
		h.ServeHTTP(httptest.NewRecorder(), req)
		assert.NotEqual(t, "abc\tdef", seen)
	})
}

func TestWithRequestLogger(t *testing.T) {
	var buf bytes.Buffer
	base := slog.New(slog.NewJSONHandler(&buf, nil))
	userID := uuid.New()

	h := RequestID(WithActor(WithRequestLogger(base)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		domain.LoggerFromContext(r.Context()).Info("checked out")
	}))))

	req := httptest.NewRequest(http.MethodPost, "/api/orders", nil)
	req.Header.Set(RequestIDHeader, "lb-7")
	req.Header.Set(UserIDHeader, userID.String())
	h.ServeHTTP(httptest.NewRecorder(), req)

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "lb-7", line["request_id"])
	assert.Equal(t, "/api/orders", line["path"])
	actor, ok := line["actor"].(map[string]any)
	require.True(t, ok, "actor group missing: %s", buf.String())
	assert.Equal(t, userID.String(), actor["user_id"])
	assert.Equal(t, domain.RoleCustomer, actor["role"])
}

func TestRateLimiter(t *testing.T) {
	now := time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)
	rl := NewRateLimiter(RateLimiterConfig{
		RequestsPerSecond: 1,
		BurstSize:         2,
		Now:               func() time.Time { return now },
	})
	defer rl.Stop()

	assert.True(t, rl.Allow("a"))
	assert.True(t, rl.Allow("a"))
	assert.False(t, rl.Allow("a"), "burst exhausted")
	assert.True(t, rl.Allow("b"), "keys are independent")

	now = now.Add(time.Second)
	assert.True(t, rl.Allow("a"), "one token refilled")
	assert.False(t, rl.Allow("a"))
}

func TestRateLimiter_Middleware(t *testing.T) {
	rl := NewRateLimiter(RateLimiterConfig{RequestsPerSecond: 0.001, BurstSize: 1})
	defer rl.Stop()
	h := rl.Middleware(http.HandlerFunc(okHandler))

	req := httptest.NewRequest(http.MethodPost, "/api/payments", nil)
	req.RemoteAddr = "203.0.113.9:4242"

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "1000", rec.Header().Get("Retry-After"))
}

func TestRateLimiter_ForgetsIdleKeys(t *testing.T) {
	now := time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)
	rl := NewRateLimiter(RateLimiterConfig{
		RequestsPerSecond: 1,
		BurstSize:         1,
		IdleTTL:           time.Hour,
		Now:               func() time.Time { return now },
	})
	defer rl.Stop()

	rl.Allow("a")
	rl.forgetIdle(now.Add(30 * time.Minute))
	assert.Len(t, rl.visitors, 1)
	rl.forgetIdle(now.Add(2 * time.Hour))
	assert.Empty(t, rl.visitors)
}

func TestGetClientIP(t *testing.T) {
	var got string
	h := RealIP(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = GetClientIP(r)
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.0.0.1:5000"
	h.ServeHTTP(httptest.NewRecorder(), req)
	assert.Equal(t, "10.0.0.1", got)

	req.Header.Set("X-Real-IP", "198.51.100.2")
	h.ServeHTTP(httptest.NewRecorder(), req)
	assert.Equal(t, "198.51.100.2", got)
}

func TestMaxBodySize(t *testing.T) {
	h := MaxBodySize(8)(http.HandlerFunc(okHandler))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/", strings.NewReader("0123456789")))
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/", strings.NewReader("0123")))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestSecurityHeaders(t *testing.T) {
	h := SecurityHeaders(DefaultSecurityHeadersConfig())(http.HandlerFunc(okHandler))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, "DENY", rec.Header().Get("X-Frame-Options"))
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "no-store", rec.Header().Get("Cache-Control"))
	assert.Empty(t, rec.Header().Get("Strict-Transport-Security"), "plain HTTP gets no HSTS")

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Forwarded-Proto", "https")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, "max-age=31536000; includeSubDomains", rec.Header().Get("Strict-Transport-Security"))
}

func TestMetrics_UsesRoutePattern(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics("test", reg)

	mux := http.NewServeMux()
	mux.Handle("GET /api/orders/{id}", m.Middleware(http.HandlerFunc(okHandler)))

	for range 3 {
		mux.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/orders/"+uuid.NewString(), nil))
	}

	assert.Equal(t, float64(3), testutil.ToFloat64(m.requestsTotal.WithLabelValues("get", "/api/orders/{id}", "200")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.requestsTotal), "one series for all ids")
}
