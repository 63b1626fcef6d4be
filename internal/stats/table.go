package stats

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/peircecrit/peirce/internal/store"
)

// Cache is the part of the store used to memoize solutions.
type Cache interface {
	GetThreshold(ctx context.Context, observations, outliers, unknowns float64) (*store.Threshold, error)
	SaveThreshold(ctx context.Context, t *store.Threshold) error
}

// Observer receives lookup activity. metrics.Registry implements it.
type Observer interface {
	ObserveSolve(outcome string, iterations int)
	ObserveCache(hit bool)
}

// TableSpec lists the axes of a threshold table.
type TableSpec struct {
	Observations []float64
	Outliers     []float64
	Unknowns     []float64
}

// DefaultTableSpec is the sanity-check grid printed alongside published
// Peirce's criterion tables.
func DefaultTableSpec() TableSpec {
	return TableSpec{
		Observations: []float64{3, 5, 10, 16},
		Outliers:     []float64{1, 2},
		Unknowns:     []float64{1},
	}
}

// Table is a grid of solved thresholds
type Table struct {
	Rows []Row
}

// Row is one (N, n, m) combination of a table
type Row struct {
	Observations    float64
	Outliers        float64
	Unknowns        float64
	X2              float64
	R               float64
	TailProbability float64
	Iterations      int
	Outcome         Outcome
	Cached          bool
	Error           string // set when this combination failed to solve
}

// Lookup returns the threshold for (N, n, m), reading through cache when it
// is non-nil. The boolean reports a cache hit. Failed and degenerate solves
// are not cached.
func (s *Solver) Lookup(ctx context.Context, cache Cache, total, outliers, unknowns float64) (*store.Threshold, bool, error) {
	// N <= 1 answers 0 whatever n and m are, so those keys never reach the cache.
	if total <= 1 {
		cache = nil
	}

	if cache != nil {
		t, err := cache.GetThreshold(ctx, total, outliers, unknowns)
		if err == nil {
			s.observeCache(true)
			return t, true, nil
		}
		if !errors.Is(err, store.ErrNotFound) {
			return nil, false, fmt.Errorf("failed to read cache: %w", err)
		}
		s.observeCache(false)
	}

	sol, err := s.Solve(total, outliers, unknowns)
	if err != nil {
		s.observeFailure(err)
		return nil, false, err
	}
	if s.Observer != nil {
		s.Observer.ObserveSolve(string(sol.Outcome), sol.Iterations)
	}

	t := &store.Threshold{
		Observations: total,
		Outliers:     outliers,
		Unknowns:     unknowns,
		X2:           sol.X2,
		Iterations:   sol.Iterations,
		Outcome:      string(sol.Outcome),
	}

	if cache != nil {
		if err := cache.SaveThreshold(ctx, t); err != nil {
			return nil, false, fmt.Errorf("failed to write cache: %w", err)
		}
	}

	return t, false, nil
}

// BuildTable solves every valid combination of spec, in axis order.
// Combinations with outliers outside (0, observations) are skipped. A solver
// failure is recorded on its row; a cache failure aborts the table.
func (s *Solver) BuildTable(ctx context.Context, cache Cache, spec TableSpec) (*Table, error) {
	table := &Table{}

	for _, N := range spec.Observations {
		for _, n := range spec.Outliers {
			if n <= 0 || n >= N {
				continue
			}
			for _, m := range spec.Unknowns {
				if err := ctx.Err(); err != nil {
					return nil, err
				}

				row := Row{Observations: N, Outliers: n, Unknowns: m}

				t, hit, err := s.Lookup(ctx, cache, N, n, m)
				switch {
				case err == nil:
					row.Fill(t)
					row.Cached = hit
				case errors.Is(err, ErrInvalidParams), errors.Is(err, ErrNotConverged):
					row.Error = err.Error()
				default:
					return nil, err
				}

				table.Rows = append(table.Rows, row)
			}
		}
	}

	return table, nil
}

func (s *Solver) observeCache(hit bool) {
	if s.Observer != nil {
		s.Observer.ObserveCache(hit)
	}
}

func (s *Solver) observeFailure(err error) {
	if s.Observer == nil {
		return
	}
	switch {
	case errors.Is(err, ErrInvalidParams):
		s.Observer.ObserveSolve("invalid", 0)
	case errors.Is(err, ErrNotConverged):
		s.Observer.ObserveSolve("not_converged", 0)
	}
}

// Fill copies a solved threshold into the row and derives R and the tail probability.
func (r *Row) Fill(t *store.Threshold) {
	r.X2 = t.X2
	r.R = math.Sqrt(t.X2)
	r.TailProbability = TailProbability(r.R)
	r.Iterations = t.Iterations
	r.Outcome = Outcome(t.Outcome)
}
