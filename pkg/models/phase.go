package models

// Phase is the single authoritative state gating which operations are
// currently legal. Exactly one phase value exists at a time.
type Phase string

const (
	PhaseIdle             Phase = "IDLE"
	PhaseCollecting       Phase = "COLLECTING"
	PhaseAnalyzed         Phase = "ANALYZED"
	PhaseTransferringMain Phase = "TRANSFERRING_MAIN"
	PhasePostFiltration   Phase = "POST_FILTRATION"
	// PhaseComplete is declared by the phase model but not produced by
	// the current transition table: acknowledgement returns the session
	// to IDLE. Kept so the enum matches the documented state space.
	PhaseComplete Phase = "COMPLETE"
)

// String returns the wire representation of the phase.
func (p Phase) String() string { return string(p) }

// AwaitingAck reports whether the phase represents a dispatched pump
// run that still needs an actuator acknowledgement.
func (p Phase) AwaitingAck() bool {
	return p == PhaseTransferringMain || p == PhasePostFiltration
}
