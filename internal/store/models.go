package store

import "time"

// Threshold is a solved Peirce threshold keyed by (Observations, Outliers, Unknowns).
type Threshold struct {
	Observations float64
	Outliers     float64
	Unknowns     float64
	X2           float64
	Iterations   int
	Outcome      string // "converged", "clamped" or "degenerate"
	CreatedAt    time.Time
}
