package models

import "time"

// Bracket is the discrete filtration-severity classification derived
// from the batch-average turbidity and TDS.
type Bracket string

const (
	BracketF1 Bracket = "F1"
	BracketF2 Bracket = "F2"
	BracketF3 Bracket = "F3"
	BracketF4 Bracket = "F4"
	BracketF5 Bracket = "F5"
)

// Tank identifies the destination tank suggested by the classifier.
type Tank string

const (
	TankA Tank = "A" // reusable water
	TankB Tank = "B" // needs advanced treatment
)

// PredictionResult is the reuse/filtration decision produced once per
// completed batch. Overwritten by the next analysis; read-only to
// callers.
type PredictionResult struct {
	Bracket          Bracket      `json:"bracket"`
	Reusable         bool         `json:"reusable"`
	SuggestedTank    Tank         `json:"suggested_tank"`
	FiltrationMethod string       `json:"filtration_method"`
	DecidedAt        time.Time    `json:"decided_at"`
	Average          BatchAverage `json:"average"`
}
