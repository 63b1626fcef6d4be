package store

import "context"

// Store defines the interface for threshold cache operations
type Store interface {
	GetThreshold(ctx context.Context, observations, outliers, unknowns float64) (*Threshold, error)
	SaveThreshold(ctx context.Context, t *Threshold) error
	ListThresholds(ctx context.Context) ([]*Threshold, error)
	CountThresholds(ctx context.Context) (int, error)
	ClearThresholds(ctx context.Context) (int64, error)

	// Lifecycle
	Close() error
}
