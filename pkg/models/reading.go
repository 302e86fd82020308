// Package models contains domain models for the reclaim service.
package models

import "time"

// SensorReading is a single water-quality measurement pushed by the
// sensor module. Immutable once created; owned by the active batch.
type SensorReading struct {
	PH         float64   `json:"ph"`
	Turbidity  float64   `json:"turbidity"` // NTU
	TDS        float64   `json:"tds"`       // ppm
	CapturedAt time.Time `json:"captured_at"`
}

// BatchAverage holds the per-field arithmetic mean of a completed batch.
// PH and Turbidity are rounded to two decimal places, TDS to the
// nearest integer.
type BatchAverage struct {
	PH        float64 `json:"ph"`
	Turbidity float64 `json:"turbidity"`
	TDS       float64 `json:"tds"`
}
