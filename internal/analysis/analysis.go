// Package analysis implements batch aggregation and the filtration
// classifier for the reclaim service. All functions are pure.
package analysis

import (
	"errors"
	"math"

	"github.com/hydroloop/reclaim/pkg/models"
)

// ErrEmptyBatch is returned when an average is requested over zero
// readings. The controller guards against this; kept defensive.
var ErrEmptyBatch = errors.New("empty batch")

// Average computes the per-field arithmetic mean of a batch. PH and
// turbidity are rounded to two decimal places, TDS to the nearest
// integer.
func Average(batch []models.SensorReading) (models.BatchAverage, error) {
	if len(batch) == 0 {
		return models.BatchAverage{}, ErrEmptyBatch
	}

	var ph, turbidity, tds float64
	for _, r := range batch {
		ph += r.PH
		turbidity += r.Turbidity
		tds += r.TDS
	}

	n := float64(len(batch))
	return models.BatchAverage{
		PH:        round2(ph / n),
		Turbidity: round2(turbidity / n),
		TDS:       math.Round(tds / n),
	}, nil
}

// Classify maps a batch-average turbidity/TDS pair to a filtration
// bracket. Rules are evaluated in fixed descending-severity order and
// the first match wins. Thresholds are strict except the F4 floor,
// which is inclusive. PH is ingested and averaged but does not
// participate in bracket selection.
func Classify(avgTurbidity, avgTDS float64) (models.Bracket, string) {
	switch {
	case avgTDS > 1500:
		return models.BracketF5, "reverse osmosis"
	case avgTDS >= 1000:
		return models.BracketF4, "ultrafiltration"
	case avgTurbidity > 30:
		return models.BracketF3, "coagulation + sand"
	case avgTurbidity > 10:
		return models.BracketF2, "sand + carbon + cloth"
	default:
		return models.BracketF1, "sediment + carbon polishing"
	}
}

// Reusable reports whether water in the given bracket may bypass
// advanced treatment.
func Reusable(b models.Bracket) bool {
	return b == models.BracketF1 || b == models.BracketF2
}

// SuggestedTank returns the destination tank for a bracket: A for
// reusable water, B otherwise.
func SuggestedTank(b models.Bracket) models.Tank {
	if Reusable(b) {
		return models.TankA
	}
	return models.TankB
}

// round2 rounds to two decimal places.
func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
