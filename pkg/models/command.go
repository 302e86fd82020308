package models

// PumpCommand is an actuator instruction relayed through the one-slot
// command mailbox.
type PumpCommand string

const (
	CommandStartPumpA PumpCommand = "START_PUMP_A"
	CommandStartPumpB PumpCommand = "START_PUMP_B"
	CommandStartPumpC PumpCommand = "START_PUMP_C"
	CommandStopAll    PumpCommand = "STOP_ALL"
)

// String returns the wire representation of the command.
func (c PumpCommand) String() string { return string(c) }

// ParsePumpCommand validates a raw command string. Returns (command,
// true) for a known command and ("", false) otherwise.
func ParsePumpCommand(raw string) (PumpCommand, bool) {
	switch PumpCommand(raw) {
	case CommandStartPumpA, CommandStartPumpB, CommandStartPumpC, CommandStopAll:
		return PumpCommand(raw), true
	}
	return "", false
}
