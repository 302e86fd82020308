// Package models contains domain models for the reclaim service.
package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// TestParsePumpCommand tests validation of raw command strings.
func TestParsePumpCommand(t *testing.T) {
	tests := []struct {
		raw    string
		want   PumpCommand
		wantOK bool
	}{
		{"START_PUMP_A", CommandStartPumpA, true},
		{"START_PUMP_B", CommandStartPumpB, true},
		{"START_PUMP_C", CommandStartPumpC, true},
		{"STOP_ALL", CommandStopAll, true},
		{"start_pump_a", "", false},
		{"OPEN_VALVE", "", false},
		{"", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, ok := ParsePumpCommand(tt.raw)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

// TestPhase_AwaitingAck tests which phases carry a dispatch obligation.
func TestPhase_AwaitingAck(t *testing.T) {
	assert.True(t, PhaseTransferringMain.AwaitingAck())
	assert.True(t, PhasePostFiltration.AwaitingAck())
	assert.False(t, PhaseIdle.AwaitingAck())
	assert.False(t, PhaseCollecting.AwaitingAck())
	assert.False(t, PhaseAnalyzed.AwaitingAck())
	assert.False(t, PhaseComplete.AwaitingAck())
}
