package session

import "github.com/hydroloop/reclaim/pkg/models"

// mailboxState tracks where a queued command is in its delivery cycle.
type mailboxState int

const (
	mailboxEmpty mailboxState = iota
	mailboxQueued
	mailboxDelivered
)

// mailbox is a single-slot command mailbox with exactly-once-fetch
// semantics. At most one command is outstanding; the state field makes
// "queued but not fetched" and "fetched, awaiting ack" structurally
// distinct instead of relying on call order. Not safe for concurrent
// use on its own; the controller's lock serializes access.
type mailbox struct {
	state   mailboxState
	command models.PumpCommand
}

// queue places a command in the slot, replacing whatever was there.
// A replaced command that was already delivered is forgotten; the
// actuator's eventual ack clears the new one instead.
func (m *mailbox) queue(cmd models.PumpCommand) {
	m.state = mailboxQueued
	m.command = cmd
}

// take hands out the queued command exactly once. Subsequent calls
// return false until a new command is queued.
func (m *mailbox) take() (models.PumpCommand, bool) {
	if m.state != mailboxQueued {
		return "", false
	}
	m.state = mailboxDelivered
	return m.command, true
}

// clear empties the slot. Harmless when already empty.
func (m *mailbox) clear() {
	m.state = mailboxEmpty
	m.command = ""
}

// pending reports whether a command is outstanding (queued or
// delivered but not yet acknowledged).
func (m *mailbox) pending() bool {
	return m.state != mailboxEmpty
}
