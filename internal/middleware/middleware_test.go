package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"grocer/internal/auth"
	"grocer/internal/config"
	"grocer/internal/metrics"
	"grocer/internal/model"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testAuth = config.AuthConfig{JWTSecret: "test-secret", JWTIssuer: "grocer", TokenTTL: time.Hour}

func okHandler(called *bool) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*called = true
		w.WriteHeader(http.StatusOK)
	})
}

func TestCORS(t *testing.T) {
	handler := CORS(config.CORSConfig{AllowedOrigins: []string{"https://shop.example"}})

	tests := []struct {
		name          string
		method        string
		origin        string
		wantOrigin    string
		expectHandler bool
	}{
		{"preflight from allowed origin", http.MethodOptions, "https://shop.example", "https://shop.example", false},
		{"GET from allowed origin", http.MethodGet, "https://shop.example", "https://shop.example", true},
		{"GET from unknown origin", http.MethodGet, "https://evil.example", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			called := false
			req := httptest.NewRequest(tt.method, "/api/orders", nil)
			req.Header.Set("Origin", tt.origin)
			if tt.method == http.MethodOptions {
				req.Header.Set("Access-Control-Request-Method", http.MethodPost)
			}
			w := httptest.NewRecorder()

			handler(okHandler(&called)).ServeHTTP(w, req)

			assert.Equal(t, tt.expectHandler, called)
			assert.Equal(t, tt.wantOrigin, w.Header().Get("Access-Control-Allow-Origin"))
		})
	}
}

func TestAuth(t *testing.T) {
	logger := zerolog.Nop()
	userID := uuid.New()

	valid, err := auth.MintToken(testAuth, time.Now(), userID, model.RoleCourier)
	require.NoError(t, err)
	expired, err := auth.MintToken(testAuth, time.Now().Add(-2*time.Hour), userID, model.RoleCourier)
	require.NoError(t, err)
	foreign, err := auth.MintToken(config.AuthConfig{JWTSecret: "other", JWTIssuer: "grocer", TokenTTL: time.Hour}, time.Now(), userID, model.RoleAdmin)
	require.NoError(t, err)

	tests := []struct {
		name           string
		header         string
		expectedStatus int
		expectHandler  bool
	}{
		{"valid token", "Bearer " + valid, http.StatusOK, true},
		{"lowercase scheme", "bearer " + valid, http.StatusOK, true},
		{"missing header", "", http.StatusUnauthorized, false},
		{"missing scheme", valid, http.StatusUnauthorized, false},
		{"expired token", "Bearer " + expired, http.StatusUnauthorized, false},
		{"wrong secret", "Bearer " + foreign, http.StatusUnauthorized, false},
		{"garbage", "Bearer not-a-jwt", http.StatusUnauthorized, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got model.Actor
			called := false
			next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				called = true
				got, _ = ActorFromContext(r.Context())
				w.WriteHeader(http.StatusOK)
			})

			req := httptest.NewRequest(http.MethodGet, "/api/orders/mine", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()

			Auth(testAuth, logger)(next).ServeHTTP(w, req)

			assert.Equal(t, tt.expectedStatus, w.Code)
			assert.Equal(t, tt.expectHandler, called)
			if tt.expectHandler {
				assert.Equal(t, model.Actor{ID: userID, Role: model.RoleCourier}, got)
			} else {
				var body model.ErrorResponse
				require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
				assert.Equal(t, model.ErrCodeUnauthorised, body.Error)
			}
		})
	}
}

func TestRequireRole(t *testing.T) {
	tests := []struct {
		name           string
		actor          *model.Actor
		expectedStatus int
	}{
		{"allowed role", &model.Actor{ID: uuid.New(), Role: model.RoleAdmin}, http.StatusOK},
		{"second allowed role", &model.Actor{ID: uuid.New(), Role: model.RoleCashier}, http.StatusOK},
		{"other role", &model.Actor{ID: uuid.New(), Role: model.RoleCustomer}, http.StatusForbidden},
		{"no actor", nil, http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			called := false
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.actor != nil {
				req = req.WithContext(WithActor(req.Context(), *tt.actor))
			}
			w := httptest.NewRecorder()

			RequireRole(model.RoleAdmin, model.RoleCashier)(okHandler(&called)).ServeHTTP(w, req)

			assert.Equal(t, tt.expectedStatus, w.Code)
			assert.Equal(t, tt.expectedStatus == http.StatusOK, called)
		})
	}
}

func TestRequestID(t *testing.T) {
	var seen string
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = RequestIDFromContext(r.Context())
	})

	t.Run("generates id", func(t *testing.T) {
		w := httptest.NewRecorder()
		RequestID(next).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

		_, err := uuid.Parse(seen)
		assert.NoError(t, err)
		assert.Equal(t, seen, w.Header().Get(requestIDHeader))
	})

	t.Run("keeps caller id", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set(requestIDHeader, "abc-123")
		w := httptest.NewRecorder()
		RequestID(next).ServeHTTP(w, req)

		assert.Equal(t, "abc-123", seen)
		assert.Equal(t, "abc-123", w.Header().Get(requestIDHeader))
	})
}

func TestLogging(t *testing.T) {
	logger := zerolog.Nop()

	tests := []struct {
		name       string
		statusCode int
	}{
		{"Success response", http.StatusOK},
		{"Client error", http.StatusBadRequest},
		{"Server error", http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			testHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.statusCode)
			})

			req := httptest.NewRequest(http.MethodGet, "/test", nil)
			w := httptest.NewRecorder()

			Logging(logger)(testHandler).ServeHTTP(w, req)

			assert.Equal(t, tt.statusCode, w.Code)
		})
	}
}

func TestRecovery(t *testing.T) {
	logger := zerolog.Nop()

	t.Run("Handler panics", func(t *testing.T) {
		panicking := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			panic("test panic")
		})

		req := httptest.NewRequest(http.MethodGet, "/test", nil)
		req.Header.Set(requestIDHeader, "req-1")
		w := httptest.NewRecorder()

		RequestID(Recovery(logger)(panicking)).ServeHTTP(w, req)

		assert.Equal(t, http.StatusInternalServerError, w.Code)
		assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

		var body model.ErrorResponse
		require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
		assert.Equal(t, model.ErrCodeInternalError, body.Error)
		assert.Equal(t, "req-1", body.CorrelationID)
	})

	t.Run("Handler does not panic", func(t *testing.T) {
		called := false
		req := httptest.NewRequest(http.MethodGet, "/test", nil)
		w := httptest.NewRecorder()

		Recovery(logger)(okHandler(&called)).ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.True(t, called)
	})
}

func TestMetrics_RecordsRoutePattern(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)

	r := chi.NewRouter()
	r.Use(Metrics(m))
	r.Get("/api/orders/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/orders/"+uuid.NewString(), nil))
	require.Equal(t, http.StatusNotFound, w.Code)

	families, err := reg.Gather()
	require.NoError(t, err)

	var found bool
	for _, f := range families {
		if f.GetName() != "grocer_http_request_duration_seconds" {
			continue
		}
		for _, metric := range f.GetMetric() {
			labels := map[string]string{}
			for _, l := range metric.GetLabel() {
				labels[l.GetName()] = l.GetValue()
			}
			if labels["route"] == "/api/orders/{id}" && labels["status"] == "404" {
				found = true
				assert.Equal(t, uint64(1), metric.GetHistogram().GetSampleCount())
			}
		}
	}
	assert.True(t, found)
}
