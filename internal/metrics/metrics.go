// Package metrics tracks service counters for reclaimd. Counters are
// mirrored to OpenTelemetry instruments and kept in atomics so the
// /api/stats endpoint can serve a snapshot without an exporter.
package metrics

import (
	"context"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "github.com/hydroloop/reclaim"

// Service tracks usage counters.
type Service struct {
	startTime time.Time

	requests        atomic.Int64
	ingestAccepted  atomic.Int64
	ingestIgnored   atomic.Int64
	analyses        atomic.Int64
	commandsQueued  atomic.Int64
	commandsFetched atomic.Int64
	commandsAcked   atomic.Int64

	otelRequests        metric.Int64Counter
	otelIngestAccepted  metric.Int64Counter
	otelIngestIgnored   metric.Int64Counter
	otelAnalyses        metric.Int64Counter
	otelCommandsQueued  metric.Int64Counter
	otelCommandsFetched metric.Int64Counter
	otelCommandsAcked   metric.Int64Counter
}

// New creates a metrics service. Instrument creation errors are
// ignored; the noop meter provider returns usable instruments.
func New() *Service {
	meter := otel.Meter(meterName)

	m := &Service{startTime: time.Now()}
	m.otelRequests, _ = meter.Int64Counter("reclaim.http.requests",
		metric.WithDescription("Total HTTP requests handled"))
	m.otelIngestAccepted, _ = meter.Int64Counter("reclaim.ingest.accepted",
		metric.WithDescription("Sensor readings accepted into a batch"))
	m.otelIngestIgnored, _ = meter.Int64Counter("reclaim.ingest.ignored",
		metric.WithDescription("Sensor readings rejected as no-ops"))
	m.otelAnalyses, _ = meter.Int64Counter("reclaim.analyses",
		metric.WithDescription("Completed batch analyses"))
	m.otelCommandsQueued, _ = meter.Int64Counter("reclaim.commands.queued",
		metric.WithDescription("Pump commands queued"))
	m.otelCommandsFetched, _ = meter.Int64Counter("reclaim.commands.fetched",
		metric.WithDescription("Pump commands fetched by the actuator"))
	m.otelCommandsAcked, _ = meter.Int64Counter("reclaim.commands.acked",
		metric.WithDescription("Pump command acknowledgements"))
	return m
}

// RecordRequest counts one handled HTTP request.
func (m *Service) RecordRequest(ctx context.Context) {
	m.requests.Add(1)
	m.otelRequests.Add(ctx, 1)
}

// RecordIngest counts an ingest attempt by outcome.
func (m *Service) RecordIngest(ctx context.Context, accepted bool) {
	if accepted {
		m.ingestAccepted.Add(1)
		m.otelIngestAccepted.Add(ctx, 1)
		return
	}
	m.ingestIgnored.Add(1)
	m.otelIngestIgnored.Add(ctx, 1)
}

// RecordAnalysis counts a completed analysis.
func (m *Service) RecordAnalysis(ctx context.Context) {
	m.analyses.Add(1)
	m.otelAnalyses.Add(ctx, 1)
}

// RecordCommandQueued counts a queued pump command.
func (m *Service) RecordCommandQueued(ctx context.Context) {
	m.commandsQueued.Add(1)
	m.otelCommandsQueued.Add(ctx, 1)
}

// RecordCommandFetched counts an exactly-once command delivery.
func (m *Service) RecordCommandFetched(ctx context.Context) {
	m.commandsFetched.Add(1)
	m.otelCommandsFetched.Add(ctx, 1)
}

// RecordCommandAcked counts an acknowledgement.
func (m *Service) RecordCommandAcked(ctx context.Context) {
	m.commandsAcked.Add(1)
	m.otelCommandsAcked.Add(ctx, 1)
}

// Snapshot is a point-in-time view of the counters.
type Snapshot struct {
	Requests        int64         `json:"requests"`
	IngestAccepted  int64         `json:"ingest_accepted"`
	IngestIgnored   int64         `json:"ingest_ignored"`
	Analyses        int64         `json:"analyses"`
	CommandsQueued  int64         `json:"commands_queued"`
	CommandsFetched int64         `json:"commands_fetched"`
	CommandsAcked   int64         `json:"commands_acked"`
	Uptime          time.Duration `json:"uptime"`
}

// GetSnapshot returns current counter values.
func (m *Service) GetSnapshot() Snapshot {
	return Snapshot{
		Requests:        m.requests.Load(),
		IngestAccepted:  m.ingestAccepted.Load(),
		IngestIgnored:   m.ingestIgnored.Load(),
		Analyses:        m.analyses.Load(),
		CommandsQueued:  m.commandsQueued.Load(),
		CommandsFetched: m.commandsFetched.Load(),
		CommandsAcked:   m.commandsAcked.Load(),
		Uptime:          time.Since(m.startTime),
	}
}
