// Package mqttbridge feeds sensor readings published over MQTT into
// the session controller. The bridge is an alternative ingest path for
// sensor modules that speak MQTT instead of HTTP; readings pass
// through the exact same controller gate, so phase and capacity rules
// apply unchanged.
package mqttbridge

import (
	"time"

	json "github.com/goccy/go-json"
	"github.com/hydroloop/reclaim/internal/session"
	"github.com/hydroloop/reclaim/pkg/models"
	"github.com/rs/zerolog/log"
)

// Conn abstracts the broker connection for testing.
type Conn interface {
	// Subscribe registers a handler for raw payloads on the topic.
	Subscribe(topic string, handler func(payload []byte)) error

	// Close disconnects from the broker.
	Close()
}

// Bridge subscribes to a readings topic and ingests each payload.
type Bridge struct {
	conn  Conn
	ctrl  *session.Controller
	topic string
}

// New creates a bridge over an established connection.
func New(conn Conn, ctrl *session.Controller, topic string) *Bridge {
	return &Bridge{conn: conn, ctrl: ctrl, topic: topic}
}

// Start subscribes to the readings topic.
func (b *Bridge) Start() error {
	if err := b.conn.Subscribe(b.topic, b.handleMessage); err != nil {
		return err
	}
	log.Info().Str("topic", b.topic).Msg("MQTT ingest bridge subscribed")
	return nil
}

// Close disconnects from the broker.
func (b *Bridge) Close() {
	b.conn.Close()
}

// readingPayload mirrors the HTTP ingest body. Pointer fields make
// missing keys detectable.
type readingPayload struct {
	PH        *float64 `json:"ph"`
	Turbidity *float64 `json:"turbidity"`
	TDS       *float64 `json:"tds"`
}

// handleMessage parses one published reading and hands it to the
// controller. Malformed payloads are logged and dropped; a broken
// sensor must never take the service down.
func (b *Bridge) handleMessage(payload []byte) {
	var p readingPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		log.Warn().Err(err).Msg("Dropping malformed MQTT reading")
		return
	}
	if p.PH == nil || p.Turbidity == nil || p.TDS == nil {
		log.Warn().Msg("Dropping MQTT reading with missing fields")
		return
	}

	res := b.ctrl.IngestReading(models.SensorReading{
		PH:         *p.PH,
		Turbidity:  *p.Turbidity,
		TDS:        *p.TDS,
		CapturedAt: time.Now(),
	})
	if !res.Accepted {
		log.Debug().Str("reason", res.Reason).Msg("MQTT reading ignored")
	}
}
