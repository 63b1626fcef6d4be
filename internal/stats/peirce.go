package stats

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat/distuv"
)

var (
	// ErrInvalidParams is returned for (N, n, m) combinations outside the
	// domain of Peirce's criterion.
	ErrInvalidParams = errors.New("invalid parameters")

	// ErrNotConverged is returned when the fixed-point iteration does not
	// settle within the iteration bound or leaves the finite range.
	ErrNotConverged = errors.New("did not converge")
)

// DefaultMaxIterations bounds the fixed-point loop. Sane inputs settle in
// well under 50 iterations.
const DefaultMaxIterations = 1000

// ldivFloor replaces r^n when it underflows to zero so that Gould's
// equation A' never divides by zero.
const ldivFloor = 1e-6

// Outcome describes how a solve finished.
type Outcome string

// Solve outcomes. Converged is the normal fixed point, Clamped means x2 went
// negative and was set to 0, and Degenerate means N <= 1 so no threshold
// exists.
const (
	OutcomeConverged  Outcome = "converged"
	OutcomeClamped    Outcome = "clamped"
	OutcomeDegenerate Outcome = "degenerate"
)

// Solution is the result of one solve.
type Solution struct {
	X2         float64
	Iterations int
	Outcome    Outcome
}

// R returns the linear rejection ratio, the square root of X2.
func (s Solution) R() float64 {
	return math.Sqrt(s.X2)
}

// Solver runs Gould's fixed-point iteration for Peirce's criterion.
// The zero value is ready to use.
type Solver struct {
	// MaxIterations caps the loop. Zero means DefaultMaxIterations.
	MaxIterations int

	// Observer, when set, is told about cache lookups and fresh solves made
	// through Lookup and BuildTable. Solve itself never reports.
	Observer Observer
}

type phase int

const (
	phaseConverging phase = iota
	phaseConverged
	phaseClamped
)

// PeirceDeviation returns the squared threshold deviation for rejecting
// outliers out of total observations when the model has unknowns fitted
// parameters. Observations whose squared standardized residual exceeds the
// returned value may be rejected.
func PeirceDeviation(total, outliers, unknowns float64) (float64, error) {
	var s Solver
	sol, err := s.Solve(total, outliers, unknowns)
	if err != nil {
		return 0, err
	}
	return sol.X2, nil
}

// Solve computes x2 for N=total, n=outliers, m=unknowns.
//
// N <= 1 is not an error: the result is 0 with OutcomeDegenerate. For N > 1
// the inputs must be finite with 0 < n < N and m >= 0, otherwise
// ErrInvalidParams is returned.
func (s *Solver) Solve(total, outliers, unknowns float64) (Solution, error) {
	N, n, m := total, outliers, unknowns

	if N <= 1 {
		return Solution{Outcome: OutcomeDegenerate}, nil
	}
	if err := validate(N, n, m); err != nil {
		return Solution{}, err
	}

	maxIter := s.MaxIterations
	if maxIter <= 0 {
		maxIter = DefaultMaxIterations
	}

	// Nth root of Gould's equation B.
	q := math.Pow(n, n/N) * math.Pow(N-n, (N-n)/N) / N
	qN := math.Pow(q, N)
	tolerance := N * 2e-16

	var (
		x2    float64
		iter  int
		ratio = 1.0
		prev  = 0.0
		state = phaseConverging
	)

	for state == phaseConverging {
		iter++
		if iter > maxIter {
			return Solution{}, fmt.Errorf("%w: N=%g n=%g m=%g after %d iterations", ErrNotConverged, N, n, m, maxIter)
		}

		ldiv := math.Pow(ratio, n)
		if ldiv == 0 {
			ldiv = ldivFloor
		}
		// 1/(N-n)th root of Gould's equation A'.
		lambda := math.Pow(qN/ldiv, 1/(N-n))
		// Gould's equation C.
		x2 = 1 + (N-m-n)/n*(1-lambda*lambda)

		if x2 < 0 {
			x2 = 0
			state = phaseClamped
			continue
		}

		// Gould's equation D.
		prev, ratio = ratio, math.Exp((x2-1)/2)*math.Erfc(math.Sqrt(x2)/math.Sqrt2)
		if math.IsNaN(ratio) || math.IsInf(ratio, 0) {
			return Solution{}, fmt.Errorf("%w: N=%g n=%g m=%g: ratio left finite range at x2=%g", ErrNotConverged, N, n, m, x2)
		}
		if math.Abs(ratio-prev) <= tolerance {
			state = phaseConverged
		}
	}

	outcome := OutcomeConverged
	if state == phaseClamped {
		outcome = OutcomeClamped
	}
	return Solution{X2: x2, Iterations: iter, Outcome: outcome}, nil
}

func validate(N, n, m float64) error {
	for _, v := range []float64{N, n, m} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: N=%g n=%g m=%g must be finite", ErrInvalidParams, N, n, m)
		}
	}
	switch {
	case n <= 0:
		return fmt.Errorf("%w: outliers must be positive, got %g", ErrInvalidParams, n)
	case n >= N:
		return fmt.Errorf("%w: outliers (%g) must be fewer than observations (%g)", ErrInvalidParams, n, N)
	case m < 0:
		return fmt.Errorf("%w: unknowns must be non-negative, got %g", ErrInvalidParams, m)
	}
	return nil
}

// TailProbability returns the two-sided probability that a standard normal
// deviate falls outside [-r, r].
func TailProbability(r float64) float64 {
	if r <= 0 {
		return 1
	}
	return 2 * distuv.UnitNormal.Survival(r)
}
