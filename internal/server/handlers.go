package server

import (
	"errors"
	"net/http"
	"time"

	"github.com/hydroloop/reclaim/internal/session"
	"github.com/hydroloop/reclaim/pkg/models"
)

// ingestRequest uses pointers so missing fields are distinguishable
// from zero values; wrong JSON types fail decoding outright.
type ingestRequest struct {
	PH        *float64 `json:"ph"`
	Turbidity *float64 `json:"turbidity"`
	TDS       *float64 `json:"tds"`
}

type ingestResponse struct {
	Status    string       `json:"status"`
	Reason    string       `json:"reason,omitempty"`
	Collected int          `json:"collected"`
	Phase     models.Phase `json:"phase"`
}

// handleIngest accepts a sensor reading. Rejections while not
// collecting are reported as status "ignored" with 200, never as an
// error, so sensor firmware that cannot react to failures keeps
// working.
func (s *Service) handleIngest(w http.ResponseWriter, r *http.Request) {
	var req ingestRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.PH == nil || req.Turbidity == nil || req.TDS == nil {
		writeError(w, http.StatusBadRequest, "invalid_input", "ph, turbidity, and tds must all be numbers", nil)
		return
	}

	res := s.controller.IngestReading(models.SensorReading{
		PH:         *req.PH,
		Turbidity:  *req.Turbidity,
		TDS:        *req.TDS,
		CapturedAt: time.Now(),
	})
	s.metrics.RecordIngest(r.Context(), res.Accepted)

	status := "accepted"
	if !res.Accepted {
		status = "ignored"
	}
	writeJSON(w, http.StatusOK, ingestResponse{
		Status:    status,
		Reason:    res.Reason,
		Collected: res.Collected,
		Phase:     res.Phase,
	})
}

// handleSessionStart begins a new collection run.
func (s *Service) handleSessionStart(w http.ResponseWriter, r *http.Request) {
	info := s.controller.StartSession()
	writeJSON(w, http.StatusOK, map[string]any{
		"status":     "started",
		"session_id": info.SessionID,
		"batch_size": info.BatchSize,
	})
}

// handleSessionReset forces the controller back to IDLE.
func (s *Service) handleSessionReset(w http.ResponseWriter, r *http.Request) {
	s.controller.ResetSession()
	writeJSON(w, http.StatusOK, map[string]string{"status": "reset"})
}

// handleSessionStatus returns a read-only session snapshot.
func (s *Service) handleSessionStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.controller.Status())
}

type readingsResponse struct {
	Readings []models.SensorReading `json:"readings"`
	Average  *models.BatchAverage   `json:"average,omitempty"`
}

// handleSessionReadings returns the current batch with a running
// average when non-empty.
func (s *Service) handleSessionReadings(w http.ResponseWriter, r *http.Request) {
	readings, avg := s.controller.Readings()
	writeJSON(w, http.StatusOK, readingsResponse{Readings: readings, Average: avg})
}

// handleAnalyze runs the batch analysis. Fails with 400 when the phase
// is wrong or the batch is not exactly full.
func (s *Service) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	pred, err := s.controller.Analyze()
	if err != nil {
		s.writeControllerError(w, err)
		return
	}
	s.metrics.RecordAnalysis(r.Context())
	writeJSON(w, http.StatusOK, pred)
}

// handleLatestPrediction returns the most recent analysis result.
func (s *Service) handleLatestPrediction(w http.ResponseWriter, r *http.Request) {
	pred, err := s.controller.LatestPrediction()
	if err != nil {
		writeError(w, http.StatusNotFound, "not_found", "no prediction available yet", nil)
		return
	}
	writeJSON(w, http.StatusOK, pred)
}

type commandRequest struct {
	Command string `json:"command"`
}

// handleQueueCommand queues a pump command for actuator pickup.
func (s *Service) handleQueueCommand(w http.ResponseWriter, r *http.Request) {
	var req commandRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	cmd, ok := models.ParsePumpCommand(req.Command)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid_command", "unknown command: "+req.Command, nil)
		return
	}

	phase, err := s.controller.QueueCommand(cmd)
	if err != nil {
		s.writeControllerError(w, err)
		return
	}
	s.metrics.RecordCommandQueued(r.Context())
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "queued",
		"command": cmd,
		"phase":   phase,
	})
}

type fetchResponse struct {
	Command *models.PumpCommand `json:"command"`
}

// handleFetchCommand is the actuator poll endpoint. A queued command
// is handed out exactly once; all other polls see null.
func (s *Service) handleFetchCommand(w http.ResponseWriter, r *http.Request) {
	cmd, ok := s.controller.FetchCommand()
	if !ok {
		writeJSON(w, http.StatusOK, fetchResponse{Command: nil})
		return
	}
	s.metrics.RecordCommandFetched(r.Context())
	writeJSON(w, http.StatusOK, fetchResponse{Command: &cmd})
}

// handleAcknowledge clears the pending command and returns the phase
// to IDLE. Safe to call with nothing pending.
func (s *Service) handleAcknowledge(w http.ResponseWriter, r *http.Request) {
	s.controller.AcknowledgeCommand()
	s.metrics.RecordCommandAcked(r.Context())
	writeJSON(w, http.StatusOK, map[string]string{"status": "acknowledged"})
}

// handleStats returns service counters.
func (s *Service) handleStats(w http.ResponseWriter, r *http.Request) {
	snap := s.metrics.GetSnapshot()
	writeJSON(w, http.StatusOK, map[string]any{
		"requests":         snap.Requests,
		"ingest_accepted":  snap.IngestAccepted,
		"ingest_ignored":   snap.IngestIgnored,
		"analyses":         snap.Analyses,
		"commands_queued":  snap.CommandsQueued,
		"commands_fetched": snap.CommandsFetched,
		"commands_acked":   snap.CommandsAcked,
		"uptime_seconds":   int64(snap.Uptime.Seconds()),
		"sse_clients":      s.broadcast.ClientCount(),
	})
}

// handleHealth reports liveness with version and uptime.
func (s *Service) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := "ready"
	if !s.ready.Load() {
		status = "starting"
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":         status,
		"version":        s.version,
		"uptime_seconds": int64(time.Since(s.startTime).Seconds()),
	})
}

// handleReady reports readiness for load balancers.
func (s *Service) handleReady(w http.ResponseWriter, r *http.Request) {
	if !s.ready.Load() {
		writeError(w, http.StatusServiceUnavailable, "not_ready", "service is not ready", nil)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// handleVersion returns the build version.
func (s *Service) handleVersion(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"version": s.version})
}

// writeControllerError maps controller errors onto the HTTP error
// taxonomy.
func (s *Service) writeControllerError(w http.ResponseWriter, err error) {
	var ipe *session.InvalidPhaseError
	var ide *session.InsufficientDataError
	switch {
	case errors.As(err, &ipe):
		writeError(w, http.StatusBadRequest, "invalid_phase", ipe.Error(), nil)
	case errors.As(err, &ide):
		counts := [2]int{ide.Required, ide.Current}
		writeError(w, http.StatusBadRequest, "insufficient_data", ide.Error(), &counts)
	default:
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error(), nil)
	}
}
