package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/access-compliance/internal/config"
	"github.com/example/access-compliance/internal/logging"
)

const testAPIKey = "terminal-secret"

func testConfig(t *testing.T, dsn string) config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.SQLiteDSN = dsn
	cfg.Location = time.UTC
	cfg.Level = slog.LevelError
	cfg.Auth.APIKey = testAPIKey
	return cfg
}

func startService(t *testing.T, cfg config.Config) *httptest.Server {
	t.Helper()
	svc, err := newService(context.Background(), cfg, logging.New(slog.LevelError, io.Discard))
	require.NoError(t, err)

	server := httptest.NewServer(svc.handler)
	t.Cleanup(func() {
		server.Close()
		svc.Close()
	})
	return server
}

type apiClient struct {
	t      *testing.T
	server *httptest.Server
	key    string
}

func (c apiClient) do(method, path string, body any) (int, []byte) {
	c.t.Helper()

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(c.t, err)
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequest(method, c.server.URL+path, reader)
	require.NoError(c.t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.key != "" {
		req.Header.Set("X-Api-Key", c.key)
	}

	resp, err := c.server.Client().Do(req)
	require.NoError(c.t, err)
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	require.NoError(c.t, err)
	return resp.StatusCode, data
}

func decode[T any](t *testing.T, data []byte) T {
	t.Helper()
	var value T
	require.NoError(t, json.Unmarshal(data, &value), string(data))
	return value
}

type idBody struct {
	ID string `json:"id"`
}

func TestService_EndToEnd(t *testing.T) {
	server := startService(t, testConfig(t, filepath.Join(t.TempDir(), "compliance.db")))
	client := apiClient{t: t, server: server, key: testAPIKey}

	status, _ := apiClient{t: t, server: server}.do(http.MethodGet, "/healthz", nil)
	require.Equal(t, http.StatusNoContent, status)

	status, _ = apiClient{t: t, server: server}.do(http.MethodGet, "/api/timetracker/data", nil)
	require.Equal(t, http.StatusUnauthorized, status)

	status, body := client.do(http.MethodPost, "/api/employee/supervisors", map[string]any{
		"first_name":           "Jane",
		"last_name":            "Doe",
		"email":                "jane.doe@company.com",
		"notification_channel": "email",
	})
	require.Equal(t, http.StatusCreated, status, string(body))
	supervisor := decode[idBody](t, body)

	status, body = client.do(http.MethodPost, "/api/employee/schedules", map[string]any{
		"name":          "Day Shift",
		"selected_days": "1,2,3,4,5",
		"time_ranges":   "08:00-17:00",
	})
	require.Equal(t, http.StatusCreated, status, string(body))
	schedule := decode[idBody](t, body)

	status, body = client.do(http.MethodPost, "/api/employee", map[string]any{
		"first_name":       "Alice",
		"last_name":        "Johnson",
		"position":         "Developer",
		"supervisor_id":    supervisor.ID,
		"work_schedule_id": schedule.ID,
		"access_granted":   true,
	})
	require.Equal(t, http.StatusCreated, status, string(body))
	alice := decode[idBody](t, body)

	status, body = client.do(http.MethodPost, "/api/employee", map[string]any{
		"first_name": "Bob",
		"last_name":  "Smith",
	})
	require.Equal(t, http.StatusCreated, status, string(body))
	bob := decode[idBody](t, body)

	t.Run("card assignment", func(t *testing.T) {
		status, body := client.do(http.MethodPost, "/api/employee/assign-card", map[string]any{
			"employee_id":  alice.ID,
			"card_id":      " CARD-1 ",
			"grant_access": true,
		})
		require.Equal(t, http.StatusOK, status, string(body))
		assigned := decode[struct {
			Message string `json:"message"`
		}](t, body)
		assert.Equal(t, "Card CARD-1 successfully assigned to Alice Johnson", assigned.Message)

		status, body = client.do(http.MethodPost, "/api/employee/assign-card", map[string]any{
			"employee_id": bob.ID,
			"card_id":     "CARD-1",
		})
		require.Equal(t, http.StatusConflict, status, string(body))
		conflict := decode[struct {
			ErrorCode string `json:"error_code"`
			HolderID  string `json:"holder_id"`
		}](t, body)
		assert.Equal(t, "CARD_CONFLICT", conflict.ErrorCode)
		assert.Equal(t, alice.ID, conflict.HolderID)

		status, body = client.do(http.MethodGet, "/api/employee/unassigned", nil)
		require.Equal(t, http.StatusOK, status)
		unassigned := decode[[]idBody](t, body)
		require.Len(t, unassigned, 1)
		assert.Equal(t, bob.ID, unassigned[0].ID)
	})

	type ingestBody struct {
		AccessGranted   bool   `json:"access_granted"`
		EmployeeName    string `json:"employee_name"`
		AccessLevel     string `json:"access_level"`
		Status          string `json:"status"`
		TimestampSource string `json:"timestamp_source"`
		EventID         int64  `json:"event_id"`
	}

	t.Run("swipe ingestion", func(t *testing.T) {
		status, body := client.do(http.MethodPost, "/api/timetracker/data", map[string]any{
			"system_id":     "GATE-1",
			"action":        "LOGIN",
			"card_id":       "CARD-1",
			"timestamp_iso": "2024-01-02T08:00:00Z",
		})
		require.Equal(t, http.StatusOK, status, string(body))
		granted := decode[ingestBody](t, body)
		assert.True(t, granted.AccessGranted)
		assert.Equal(t, "Alice", granted.EmployeeName)
		assert.Equal(t, "Authorized", granted.AccessLevel)
		assert.Equal(t, "SUCCESS", granted.Status)
		assert.Equal(t, "device", granted.TimestampSource)

		status, body = client.do(http.MethodPost, "/api/timetracker/data", map[string]any{
			"system_id": "GATE-2",
			"action":    "LOGIN",
			"card_id":   "CARD-404",
		})
		require.Equal(t, http.StatusOK, status, string(body))
		unknown := decode[ingestBody](t, body)
		assert.False(t, unknown.AccessGranted)
		assert.Equal(t, "Unknown", unknown.AccessLevel)
		assert.Equal(t, "CARD_NOT_ASSIGNED", unknown.Status)
		assert.Equal(t, "server", unknown.TimestampSource)
		assert.Greater(t, unknown.EventID, granted.EventID)
	})

	t.Run("ledger views", func(t *testing.T) {
		status, body := client.do(http.MethodGet, "/api/timetracker/stats", nil)
		require.Equal(t, http.StatusOK, status)
		stats := decode[struct {
			TotalRecords int64   `json:"total_records"`
			LastSystemID *string `json:"last_system_id"`
		}](t, body)
		assert.EqualValues(t, 2, stats.TotalRecords)
		require.NotNil(t, stats.LastSystemID)
		assert.Equal(t, "GATE-2", *stats.LastSystemID)

		status, body = client.do(http.MethodGet, "/api/timetracker/data/system/GATE-1", nil)
		require.Equal(t, http.StatusOK, status)
		assert.Len(t, decode[[]map[string]any](t, body), 1)

		status, body = client.do(http.MethodGet, "/api/employee/card-status/CARD-1", nil)
		require.Equal(t, http.StatusOK, status)
		cardStatus := decode[struct {
			IsAssigned bool `json:"is_assigned"`
			LastEvent  *struct {
				SystemID string `json:"system_id"`
				Status   string `json:"status"`
			} `json:"last_event"`
		}](t, body)
		assert.True(t, cardStatus.IsAssigned)
		require.NotNil(t, cardStatus.LastEvent)
		assert.Equal(t, "GATE-1", cardStatus.LastEvent.SystemID)
		assert.Equal(t, "SUCCESS", cardStatus.LastEvent.Status)
	})

	t.Run("unassign and history", func(t *testing.T) {
		status, body := client.do(http.MethodDelete, "/api/employee/unassign-card/CARD-1", nil)
		require.Equal(t, http.StatusOK, status, string(body))

		status, _ = client.do(http.MethodDelete, "/api/employee/unassign-card/CARD-1", nil)
		require.Equal(t, http.StatusNotFound, status)

		status, body = client.do(http.MethodGet, "/api/employee/card-history/CARD-1", nil)
		require.Equal(t, http.StatusOK, status)
		history := decode[struct {
			Assignments []struct {
				EmployeeID   string  `json:"employee_id"`
				AssignedBy   string  `json:"assigned_by"`
				UnassignedBy *string `json:"unassigned_by"`
				Active       bool    `json:"active"`
			} `json:"assignments"`
		}](t, body)
		require.Len(t, history.Assignments, 1)
		assert.Equal(t, alice.ID, history.Assignments[0].EmployeeID)
		assert.Equal(t, "api-key", history.Assignments[0].AssignedBy)
		assert.False(t, history.Assignments[0].Active)
	})

	t.Run("clear ledger", func(t *testing.T) {
		status, _ := client.do(http.MethodDelete, "/api/timetracker/data", nil)
		require.Equal(t, http.StatusOK, status)

		status, _ = client.do(http.MethodGet, "/api/timetracker/data/latest", nil)
		require.Equal(t, http.StatusNotFound, status)
	})
}

func TestService_SeedDemoDataIsIdempotent(t *testing.T) {
	dsn := filepath.Join(t.TempDir(), "seeded.db")
	cfg := testConfig(t, dsn)
	cfg.SeedDemoData = true
	cfg.Auth.RequireAuth = false
	cfg.Auth.APIKey = ""

	for round := 0; round < 2; round++ {
		svc, err := newService(context.Background(), cfg, logging.New(slog.LevelError, io.Discard))
		require.NoError(t, err)

		recorder := httptest.NewRecorder()
		svc.handler.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/api/employee/supervisors", nil))
		require.Equal(t, http.StatusOK, recorder.Code)
		assert.Len(t, decode[[]idBody](t, recorder.Body.Bytes()), 2, "round %d", round)

		recorder = httptest.NewRecorder()
		svc.handler.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/api/employee/", nil))
		require.Equal(t, http.StatusOK, recorder.Code)
		assert.Len(t, decode[[]idBody](t, recorder.Body.Bytes()), 2, "round %d", round)

		svc.Close()
	}
}

func TestNewService_RedisUnavailable(t *testing.T) {
	cfg := testConfig(t, filepath.Join(t.TempDir(), "compliance.db"))
	cfg.Redis.Addr = "127.0.0.1:1"

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	svc, err := newService(ctx, cfg, logging.New(slog.LevelError, io.Discard))
	require.Error(t, err)
	assert.Nil(t, svc)
	assert.Contains(t, err.Error(), "connect redis")
}
