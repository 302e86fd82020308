// Package server provides the HTTP API for the reclaim service.
package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/hydroloop/reclaim/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testService creates a Service with an isolated controller for testing.
func testService(t *testing.T) *Service {
	t.Helper()

	cfg := config.Default()
	cfg.BatchSize = 10
	return NewWithObserver("test-version", cfg)
}

// doJSON performs a request with an optional JSON body and decodes the
// response into a generic map.
func doJSON(t *testing.T, svc *Service, method, path, body string) (int, map[string]any) {
	t.Helper()

	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, bytes.NewReader([]byte(body)))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	rec := httptest.NewRecorder()
	svc.Router().ServeHTTP(rec, req)

	var decoded map[string]any
	if len(rec.Body.Bytes()) > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &decoded))
	}
	return rec.Code, decoded
}

// fillBatch ingests count identical readings through the API.
func fillBatch(t *testing.T, svc *Service, count int, turbidity, tds float64) {
	t.Helper()
	for i := 0; i < count; i++ {
		body := fmt.Sprintf(`{"ph": 7.0, "turbidity": %v, "tds": %v}`, turbidity, tds)
		code, resp := doJSON(t, svc, http.MethodPost, "/api/ingest", body)
		require.Equal(t, http.StatusOK, code)
		require.Equal(t, "accepted", resp["status"])
	}
}

func TestHandleSessionStart(t *testing.T) {
	svc := testService(t)

	code, resp := doJSON(t, svc, http.MethodPost, "/api/session/start", "")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "started", resp["status"])
	assert.NotEmpty(t, resp["session_id"])
	assert.Equal(t, float64(10), resp["batch_size"])
}

func TestHandleIngest_AcceptedWhileCollecting(t *testing.T) {
	svc := testService(t)
	doJSON(t, svc, http.MethodPost, "/api/session/start", "")

	code, resp := doJSON(t, svc, http.MethodPost, "/api/ingest", `{"ph": 7.1, "turbidity": 4.2, "tds": 250}`)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "accepted", resp["status"])
	assert.Equal(t, float64(1), resp["collected"])
	assert.Equal(t, "COLLECTING", resp["phase"])
}

func TestHandleIngest_IgnoredWhenIdle(t *testing.T) {
	svc := testService(t)

	// No session started: ingest is a 200 no-op, never an error.
	code, resp := doJSON(t, svc, http.MethodPost, "/api/ingest", `{"ph": 7, "turbidity": 5, "tds": 300}`)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "ignored", resp["status"])
	assert.Equal(t, "not collecting", resp["reason"])
}

func TestHandleIngest_IgnoredWhenFull(t *testing.T) {
	svc := testService(t)
	doJSON(t, svc, http.MethodPost, "/api/session/start", "")
	fillBatch(t, svc, 10, 5, 300)

	code, resp := doJSON(t, svc, http.MethodPost, "/api/ingest", `{"ph": 7, "turbidity": 5, "tds": 300}`)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "ignored", resp["status"])
	assert.Equal(t, "batch already full", resp["reason"])
	assert.Equal(t, float64(10), resp["collected"])
}

func TestHandleIngest_InvalidInput(t *testing.T) {
	svc := testService(t)
	doJSON(t, svc, http.MethodPost, "/api/session/start", "")

	tests := []struct {
		name string
		body string
	}{
		{"wrong type", `{"ph": "seven", "turbidity": 5, "tds": 300}`},
		{"missing field", `{"ph": 7, "turbidity": 5}`},
		{"not json", `ph=7`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, resp := doJSON(t, svc, http.MethodPost, "/api/ingest", tt.body)
			assert.Equal(t, http.StatusBadRequest, code)
			assert.Equal(t, "invalid_input", resp["error"])
		})
	}
}

func TestHandleSessionStatus(t *testing.T) {
	svc := testService(t)

	code, resp := doJSON(t, svc, http.MethodGet, "/api/session/status", "")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, false, resp["active"])
	assert.Equal(t, "IDLE", resp["phase"])

	doJSON(t, svc, http.MethodPost, "/api/session/start", "")
	fillBatch(t, svc, 3, 5, 300)

	code, resp = doJSON(t, svc, http.MethodGet, "/api/session/status", "")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, true, resp["active"])
	assert.Equal(t, float64(3), resp["collected"])
	assert.Equal(t, "COLLECTING", resp["phase"])
}

func TestHandleSessionReadings(t *testing.T) {
	svc := testService(t)

	code, resp := doJSON(t, svc, http.MethodGet, "/api/session/readings", "")
	assert.Equal(t, http.StatusOK, code)
	readings, ok := resp["readings"].([]any)
	require.True(t, ok)
	assert.Empty(t, readings)
	assert.Nil(t, resp["average"])

	doJSON(t, svc, http.MethodPost, "/api/session/start", "")
	fillBatch(t, svc, 2, 10, 400)

	code, resp = doJSON(t, svc, http.MethodGet, "/api/session/readings", "")
	assert.Equal(t, http.StatusOK, code)
	readings, ok = resp["readings"].([]any)
	require.True(t, ok)
	assert.Len(t, readings, 2)

	avg, ok := resp["average"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, 10.0, avg["turbidity"])
	assert.Equal(t, 400.0, avg["tds"])
}

func TestHandleAnalyze_F4Scenario(t *testing.T) {
	svc := testService(t)
	doJSON(t, svc, http.MethodPost, "/api/session/start", "")
	fillBatch(t, svc, 10, 15, 1200)

	code, resp := doJSON(t, svc, http.MethodPost, "/api/analyze-water", "")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "F4", resp["bracket"])
	assert.Equal(t, false, resp["reusable"])
	assert.Equal(t, "B", resp["suggested_tank"])
	assert.Equal(t, "ultrafiltration", resp["filtration_method"])
	assert.NotEmpty(t, resp["decided_at"])

	avg, ok := resp["average"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, 15.0, avg["turbidity"])
	assert.Equal(t, 1200.0, avg["tds"])
}

func TestHandleAnalyze_F1Scenario(t *testing.T) {
	svc := testService(t)
	doJSON(t, svc, http.MethodPost, "/api/session/start", "")
	fillBatch(t, svc, 10, 5, 300)

	code, resp := doJSON(t, svc, http.MethodPost, "/api/analyze-water", "")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "F1", resp["bracket"])
	assert.Equal(t, true, resp["reusable"])
	assert.Equal(t, "A", resp["suggested_tank"])
}

func TestHandleAnalyze_InsufficientData(t *testing.T) {
	svc := testService(t)
	doJSON(t, svc, http.MethodPost, "/api/session/start", "")
	fillBatch(t, svc, 4, 5, 300)

	code, resp := doJSON(t, svc, http.MethodPost, "/api/analyze-water", "")
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "insufficient_data", resp["error"])
	assert.Equal(t, float64(10), resp["required"])
	assert.Equal(t, float64(4), resp["current"])
}

func TestHandleAnalyze_WrongPhase(t *testing.T) {
	svc := testService(t)

	code, resp := doJSON(t, svc, http.MethodPost, "/api/analyze-water", "")
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "invalid_phase", resp["error"])
}

func TestHandleAnalyze_SecondCallFails(t *testing.T) {
	svc := testService(t)
	doJSON(t, svc, http.MethodPost, "/api/session/start", "")
	fillBatch(t, svc, 10, 5, 300)

	code, _ := doJSON(t, svc, http.MethodPost, "/api/analyze-water", "")
	require.Equal(t, http.StatusOK, code)

	code, resp := doJSON(t, svc, http.MethodPost, "/api/analyze-water", "")
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "invalid_phase", resp["error"])
}

func TestHandleLatestPrediction(t *testing.T) {
	svc := testService(t)

	code, resp := doJSON(t, svc, http.MethodGet, "/api/prediction/latest", "")
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, "not_found", resp["error"])

	doJSON(t, svc, http.MethodPost, "/api/session/start", "")
	fillBatch(t, svc, 10, 5, 300)
	doJSON(t, svc, http.MethodPost, "/api/analyze-water", "")

	code, resp = doJSON(t, svc, http.MethodGet, "/api/prediction/latest", "")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "F1", resp["bracket"])
}

func TestHandleQueueCommand_PhaseGuard(t *testing.T) {
	svc := testService(t)

	// IDLE phase: non-STOP command rejected.
	code, resp := doJSON(t, svc, http.MethodPost, "/api/pump/command", `{"command": "START_PUMP_A"}`)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "invalid_phase", resp["error"])

	// ANALYZED phase: same command succeeds and advances the phase.
	doJSON(t, svc, http.MethodPost, "/api/session/start", "")
	fillBatch(t, svc, 10, 5, 300)
	doJSON(t, svc, http.MethodPost, "/api/analyze-water", "")

	code, resp = doJSON(t, svc, http.MethodPost, "/api/pump/command", `{"command": "START_PUMP_A"}`)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "queued", resp["status"])
	assert.Equal(t, "START_PUMP_A", resp["command"])
	assert.Equal(t, "TRANSFERRING_MAIN", resp["phase"])
}

func TestHandleQueueCommand_InvalidCommand(t *testing.T) {
	svc := testService(t)

	code, resp := doJSON(t, svc, http.MethodPost, "/api/pump/command", `{"command": "OPEN_VALVE"}`)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "invalid_command", resp["error"])
}

func TestHandleQueueCommand_StopAllFromTransferring(t *testing.T) {
	svc := testService(t)
	doJSON(t, svc, http.MethodPost, "/api/session/start", "")
	fillBatch(t, svc, 10, 5, 300)
	doJSON(t, svc, http.MethodPost, "/api/analyze-water", "")
	doJSON(t, svc, http.MethodPost, "/api/pump/command", `{"command": "START_PUMP_A"}`)

	code, resp := doJSON(t, svc, http.MethodPost, "/api/pump/command", `{"command": "STOP_ALL"}`)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "IDLE", resp["phase"])

	_, status := doJSON(t, svc, http.MethodGet, "/api/session/status", "")
	assert.Equal(t, "IDLE", status["phase"])
}

func TestHandleFetchCommand_ExactlyOnce(t *testing.T) {
	svc := testService(t)
	doJSON(t, svc, http.MethodPost, "/api/session/start", "")
	fillBatch(t, svc, 10, 5, 300)
	doJSON(t, svc, http.MethodPost, "/api/analyze-water", "")
	doJSON(t, svc, http.MethodPost, "/api/pump/command", `{"command": "START_PUMP_B"}`)

	code, resp := doJSON(t, svc, http.MethodGet, "/api/pump/command", "")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "START_PUMP_B", resp["command"])

	// Second poll sees null: delivery is exactly-once per issuance.
	code, resp = doJSON(t, svc, http.MethodGet, "/api/pump/command", "")
	assert.Equal(t, http.StatusOK, code)
	assert.Nil(t, resp["command"])
}

func TestHandleFetchCommand_EmptyPoll(t *testing.T) {
	svc := testService(t)

	code, resp := doJSON(t, svc, http.MethodGet, "/api/pump/command", "")
	assert.Equal(t, http.StatusOK, code)
	assert.Nil(t, resp["command"])
}

func TestHandleAcknowledge(t *testing.T) {
	svc := testService(t)
	doJSON(t, svc, http.MethodPost, "/api/session/start", "")
	fillBatch(t, svc, 10, 5, 300)
	doJSON(t, svc, http.MethodPost, "/api/analyze-water", "")
	doJSON(t, svc, http.MethodPost, "/api/pump/command", `{"command": "START_PUMP_A"}`)
	doJSON(t, svc, http.MethodGet, "/api/pump/command", "")

	code, resp := doJSON(t, svc, http.MethodPost, "/api/pump/ack", "")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "acknowledged", resp["status"])

	_, status := doJSON(t, svc, http.MethodGet, "/api/session/status", "")
	assert.Equal(t, "IDLE", status["phase"])
}

func TestHandleAcknowledge_NothingPending(t *testing.T) {
	svc := testService(t)

	code, resp := doJSON(t, svc, http.MethodPost, "/api/pump/ack", "")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "acknowledged", resp["status"])
}

func TestHandleSessionReset(t *testing.T) {
	svc := testService(t)
	doJSON(t, svc, http.MethodPost, "/api/session/start", "")
	fillBatch(t, svc, 5, 5, 300)

	code, resp := doJSON(t, svc, http.MethodPost, "/api/session/reset", "")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "reset", resp["status"])

	_, status := doJSON(t, svc, http.MethodGet, "/api/session/status", "")
	assert.Equal(t, "IDLE", status["phase"])
	assert.Equal(t, float64(0), status["collected"])
}

func TestHandleHealth_ReturnsVersion(t *testing.T) {
	svc := testService(t)

	code, resp := doJSON(t, svc, http.MethodGet, "/api/health", "")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "ready", resp["status"])
	assert.Equal(t, "test-version", resp["version"])
}

func TestHandleVersion(t *testing.T) {
	svc := testService(t)

	code, resp := doJSON(t, svc, http.MethodGet, "/api/version", "")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "test-version", resp["version"])
}

func TestHandleReady_NotReady(t *testing.T) {
	svc := testService(t)
	svc.ready.Store(false)

	code, _ := doJSON(t, svc, http.MethodGet, "/api/ready", "")
	assert.Equal(t, http.StatusServiceUnavailable, code)
}

func TestRequireReadyMiddleware_Blocks(t *testing.T) {
	svc := testService(t)
	svc.ready.Store(false)

	code, resp := doJSON(t, svc, http.MethodGet, "/api/session/status", "")
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Equal(t, "not_ready", resp["error"])

	// Liveness surface stays reachable.
	code, _ = doJSON(t, svc, http.MethodGet, "/api/health", "")
	assert.Equal(t, http.StatusOK, code)
}

func TestHandleStats(t *testing.T) {
	svc := testService(t)
	doJSON(t, svc, http.MethodPost, "/api/session/start", "")
	fillBatch(t, svc, 2, 5, 300)

	// One ignored ingest outside capacity rules: reset first so the
	// phase gate rejects it.
	doJSON(t, svc, http.MethodPost, "/api/session/reset", "")
	doJSON(t, svc, http.MethodPost, "/api/ingest", `{"ph": 7, "turbidity": 5, "tds": 300}`)

	code, resp := doJSON(t, svc, http.MethodGet, "/api/stats", "")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, float64(2), resp["ingest_accepted"])
	assert.Equal(t, float64(1), resp["ingest_ignored"])
	assert.GreaterOrEqual(t, resp["requests"].(float64), float64(5))
}
