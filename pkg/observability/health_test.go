package observability

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func probeOK(context.Context) error   { return nil }
func probeDown(context.Context) error { return errors.New("connection refused") }

func TestHealthChecker_Check(t *testing.T) {
	tests := []struct {
		name       string
		setup      func(h *HealthChecker)
		wantStatus string
	}{
		{
			name:       "no dependencies",
			setup:      func(h *HealthChecker) {},
			wantStatus: StatusHealthy,
		},
		{
			name: "all healthy",
			setup: func(h *HealthChecker) {
				h.AddCheck("database", true, probeOK)
				h.AddCheck("redis", false, probeOK)
			},
			wantStatus: StatusHealthy,
		},
		{
			name: "optional dependency down",
			setup: func(h *HealthChecker) {
				h.AddCheck("database", true, probeOK)
				h.AddCheck("redis", false, probeDown)
			},
			wantStatus: StatusDegraded,
		},
		{
			name: "critical dependency down",
			setup: func(h *HealthChecker) {
				h.AddCheck("database", true, probeDown)
				h.AddCheck("redis", false, probeDown)
			},
			wantStatus: StatusUnhealthy,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewHealthChecker("test")
			tt.setup(h)
			status := h.Check(context.Background())
			assert.Equal(t, tt.wantStatus, status.Status)
			assert.Equal(t, "test", status.Version)
		})
	}
}

func TestHealthChecker_Routes(t *testing.T) {
	h := NewHealthChecker("test")
	h.AddCheck("blobs", true, probeDown)

	router := mux.NewRouter()
	RegisterHealthRoutes(router, h)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health/live", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var status HealthStatus
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	assert.Equal(t, "connection refused", status.Dependencies["blobs"].Message)
}

func TestDatabaseCheck(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectPing()
	mock.ExpectQuery("SELECT 1").WillReturnRows(sqlmock.NewRows([]string{"?column?"}).AddRow(1))
	assert.NoError(t, DatabaseCheck(db)(context.Background()))

	mock.ExpectPing().WillReturnError(errors.New("down"))
	assert.Error(t, DatabaseCheck(db)(context.Background()))
}

func TestRedisCheck(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	assert.NoError(t, RedisCheck(client)(context.Background()))
	mr.SetError("down")
	assert.Error(t, RedisCheck(client)(context.Background()))
}
