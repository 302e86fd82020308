// Package session implements the single global session, its phase
// state machine, and the pump-command mailbox for the reclaim service.
//
// The controller is the only mutator of phase, batch, prediction, and
// pending command; every operation runs under one mutex so concurrent
// HTTP callers always observe a consistent combination of the four.
package session

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/hydroloop/reclaim/internal/analysis"
	"github.com/hydroloop/reclaim/pkg/models"
	"github.com/rs/zerolog/log"
)

// DefaultBatchSize is the number of readings collected per session when
// no batch size is configured.
const DefaultBatchSize = 10

// Ingest rejection reasons reported to the caller as a non-fatal no-op.
const (
	ReasonNotCollecting = "not collecting"
	ReasonBatchFull     = "batch already full"
)

// Snapshot is a read-only view of the session state.
type Snapshot struct {
	Active    bool         `json:"active"`
	Completed bool         `json:"completed"`
	Collected int          `json:"collected"`
	Phase     models.Phase `json:"phase"`
}

// IngestResult reports the outcome of an ingest attempt. A rejected
// reading is not an error: Accepted is false and Reason explains why.
type IngestResult struct {
	Accepted  bool
	Reason    string
	Collected int
	Phase     models.Phase
}

// StartInfo is returned by StartSession.
type StartInfo struct {
	SessionID string
	BatchSize int
}

// Controller owns the process-wide session. Construct with New; the
// zero value is not usable.
type Controller struct {
	mu sync.Mutex

	batchSize  int
	sessionID  string
	active     bool
	completed  bool
	startedAt  time.Time
	phase      models.Phase
	batch      []models.SensorReading
	prediction *models.PredictionResult
	box        mailbox

	// Ingest calls rejected outside COLLECTING are counted, not erred,
	// so a sensor pushing data between sessions never sees a failure.
	ignored atomic.Int64

	observer Observer
}

// New creates a Controller in the IDLE phase. batchSize values < 1
// fall back to DefaultBatchSize. The observer may be nil.
func New(batchSize int, observer Observer) *Controller {
	if batchSize < 1 {
		batchSize = DefaultBatchSize
	}
	return &Controller{
		batchSize: batchSize,
		phase:     models.PhaseIdle,
		batch:     make([]models.SensorReading, 0, batchSize),
		observer:  observer,
	}
}

// BatchSize returns the configured batch capacity.
func (c *Controller) BatchSize() int { return c.batchSize }

// StartSession begins a new collection run. Always succeeds: any
// in-flight batch, prediction, or pending command from a prior session
// is discarded.
func (c *Controller) StartSession() StartInfo {
	c.mu.Lock()
	c.sessionID = uuid.NewString()
	c.active = true
	c.completed = false
	c.startedAt = time.Now()
	c.phase = models.PhaseCollecting
	c.batch = c.batch[:0]
	c.prediction = nil
	c.box.clear()
	info := StartInfo{SessionID: c.sessionID, BatchSize: c.batchSize}
	ev := c.eventLocked(EventSessionStarted)
	c.mu.Unlock()

	log.Info().Str("sessionId", info.SessionID).Int("batchSize", info.BatchSize).Msg("Session started")
	c.notify(ev)
	return info
}

// ResetSession forces the controller back to IDLE from any phase,
// clearing batch, prediction, and pending command. The universal
// escape hatch; always succeeds.
func (c *Controller) ResetSession() {
	c.mu.Lock()
	id := c.sessionID
	c.sessionID = ""
	c.active = false
	c.completed = false
	c.startedAt = time.Time{}
	c.phase = models.PhaseIdle
	c.batch = c.batch[:0]
	c.prediction = nil
	c.box.clear()
	ev := c.eventLocked(EventSessionReset)
	c.mu.Unlock()

	log.Info().Str("sessionId", id).Msg("Session reset")
	c.notify(ev)
}

// IngestReading appends a reading to the batch. Accepted only while
// COLLECTING with spare capacity; otherwise a no-op whose Reason
// explains the rejection. The capacity check and the append happen
// under the same lock acquisition, so concurrent ingests can never
// overfill the batch.
func (c *Controller) IngestReading(r models.SensorReading) IngestResult {
	if r.CapturedAt.IsZero() {
		r.CapturedAt = time.Now()
	}

	c.mu.Lock()
	if c.phase != models.PhaseCollecting {
		res := IngestResult{Reason: ReasonNotCollecting, Collected: len(c.batch), Phase: c.phase}
		c.mu.Unlock()
		c.ignored.Add(1)
		return res
	}
	if len(c.batch) >= c.batchSize {
		res := IngestResult{Reason: ReasonBatchFull, Collected: len(c.batch), Phase: c.phase}
		c.mu.Unlock()
		c.ignored.Add(1)
		return res
	}
	c.batch = append(c.batch, r)
	res := IngestResult{Accepted: true, Collected: len(c.batch), Phase: c.phase}
	ev := c.eventLocked(EventReadingStored)
	c.mu.Unlock()

	log.Debug().Int("collected", res.Collected).Int("batchSize", c.batchSize).Msg("Reading stored")
	c.notify(ev)
	return res
}

// Status returns a read-only snapshot of the session.
func (c *Controller) Status() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Snapshot{
		Active:    c.active,
		Completed: c.completed,
		Collected: len(c.batch),
		Phase:     c.phase,
	}
}

// Readings returns a copy of the current batch and, when the batch is
// non-empty, the running average.
func (c *Controller) Readings() ([]models.SensorReading, *models.BatchAverage) {
	c.mu.Lock()
	defer c.mu.Unlock()

	readings := make([]models.SensorReading, len(c.batch))
	copy(readings, c.batch)

	if len(readings) == 0 {
		return readings, nil
	}
	avg, err := analysis.Average(readings)
	if err != nil {
		return readings, nil
	}
	return readings, &avg
}

// Analyze averages the full batch and derives the reuse decision.
// Requires phase COLLECTING and an exactly-full batch; the phase
// advance to ANALYZED makes a second call fail with InvalidPhaseError,
// so a batch is never decided twice.
func (c *Controller) Analyze() (models.PredictionResult, error) {
	c.mu.Lock()
	if c.phase != models.PhaseCollecting {
		err := &InvalidPhaseError{Op: "analyze", Current: c.phase}
		c.mu.Unlock()
		return models.PredictionResult{}, err
	}
	if len(c.batch) != c.batchSize {
		err := &InsufficientDataError{Required: c.batchSize, Current: len(c.batch)}
		c.mu.Unlock()
		return models.PredictionResult{}, err
	}

	avg, err := analysis.Average(c.batch)
	if err != nil {
		c.mu.Unlock()
		return models.PredictionResult{}, err
	}

	bracket, method := analysis.Classify(avg.Turbidity, avg.TDS)
	pred := models.PredictionResult{
		Bracket:          bracket,
		Reusable:         analysis.Reusable(bracket),
		SuggestedTank:    analysis.SuggestedTank(bracket),
		FiltrationMethod: method,
		DecidedAt:        time.Now(),
		Average:          avg,
	}

	c.prediction = &pred
	c.completed = true
	c.active = false
	c.phase = models.PhaseAnalyzed
	ev := c.eventLocked(EventBatchAnalyzed)
	c.mu.Unlock()

	log.Info().
		Str("bracket", string(pred.Bracket)).
		Bool("reusable", pred.Reusable).
		Str("tank", string(pred.SuggestedTank)).
		Float64("avgTurbidity", avg.Turbidity).
		Float64("avgTds", avg.TDS).
		Msg("Batch analyzed")
	c.notify(ev)
	return pred, nil
}

// LatestPrediction returns the most recent analysis result, or
// ErrNoPrediction when no batch has been analyzed yet.
func (c *Controller) LatestPrediction() (models.PredictionResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.prediction == nil {
		return models.PredictionResult{}, ErrNoPrediction
	}
	return *c.prediction, nil
}

// QueueCommand places a pump command in the mailbox and advances the
// phase. Non-STOP commands require phase ANALYZED; STOP_ALL is a
// safety override accepted from any phase and returns the phase to
// IDLE itself. Returns the resulting phase.
func (c *Controller) QueueCommand(cmd models.PumpCommand) (models.Phase, error) {
	next, ok := commandPhase(cmd)
	if !ok {
		return "", ErrInvalidCommand
	}

	c.mu.Lock()
	if cmd != models.CommandStopAll && c.phase != models.PhaseAnalyzed {
		err := &InvalidPhaseError{Op: "queue command", Current: c.phase}
		c.mu.Unlock()
		return "", err
	}
	c.box.queue(cmd)
	c.phase = next
	ev := c.eventLocked(EventCommandQueued)
	ev.Command = cmd
	c.mu.Unlock()

	log.Info().Str("command", string(cmd)).Str("phase", string(next)).Msg("Command queued")
	c.notify(ev)
	return next, nil
}

// FetchCommand hands the queued command to a polling actuator exactly
// once. Before a new command is queued, repeated polls return
// ("", false); the delivered flip happens atomically with the read, so
// racing polls see at most one winner.
func (c *Controller) FetchCommand() (models.PumpCommand, bool) {
	c.mu.Lock()
	cmd, ok := c.box.take()
	var ev Event
	if ok {
		ev = c.eventLocked(EventCommandFetched)
		ev.Command = cmd
	}
	c.mu.Unlock()

	if !ok {
		return "", false
	}
	log.Info().Str("command", string(cmd)).Msg("Command fetched by actuator")
	c.notify(ev)
	return cmd, true
}

// AcknowledgeCommand signals that the actuator finished the physical
// action: the mailbox is cleared and the phase returns to IDLE
// unconditionally. Acknowledging with nothing pending is a harmless
// no-op.
func (c *Controller) AcknowledgeCommand() {
	c.mu.Lock()
	hadPending := c.box.pending()
	c.box.clear()
	c.phase = models.PhaseIdle
	ev := c.eventLocked(EventCommandAcked)
	c.mu.Unlock()

	log.Info().Bool("hadPending", hadPending).Msg("Command acknowledged")
	c.notify(ev)
}

// IgnoredIngests returns how many ingest calls were rejected as
// no-ops.
func (c *Controller) IgnoredIngests() int64 {
	return c.ignored.Load()
}

// commandPhase returns the phase a queued command advances to.
func commandPhase(cmd models.PumpCommand) (models.Phase, bool) {
	switch cmd {
	case models.CommandStartPumpA, models.CommandStartPumpB:
		return models.PhaseTransferringMain, true
	case models.CommandStartPumpC:
		return models.PhasePostFiltration, true
	case models.CommandStopAll:
		return models.PhaseIdle, true
	}
	return "", false
}

// eventLocked builds an Event from the current state. Callers must
// hold c.mu.
func (c *Controller) eventLocked(t EventType) Event {
	ev := Event{
		Type:      t,
		SessionID: c.sessionID,
		Phase:     c.phase,
		Collected: len(c.batch),
		At:        time.Now(),
	}
	if t == EventBatchAnalyzed && c.prediction != nil {
		pred := *c.prediction
		ev.Prediction = &pred
	}
	return ev
}

// notify delivers an event to the observer, if any.
func (c *Controller) notify(ev Event) {
	if c.observer != nil {
		c.observer(ev)
	}
}
