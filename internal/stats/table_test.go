package stats_test

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/peircecrit/peirce/internal/stats"
	"github.com/peircecrit/peirce/internal/store"
	"github.com/peircecrit/peirce/internal/testutil"
)

type key struct{ N, n, m float64 }

// memCache is an in-memory Cache that counts writes.
type memCache struct {
	entries map[key]*store.Threshold
	saves   int
	readErr error
}

func newMemCache() *memCache {
	return &memCache{entries: make(map[key]*store.Threshold)}
}

func (c *memCache) GetThreshold(ctx context.Context, N, n, m float64) (*store.Threshold, error) {
	if c.readErr != nil {
		return nil, c.readErr
	}
	t, ok := c.entries[key{N, n, m}]
	if !ok {
		return nil, store.ErrNotFound
	}
	return t, nil
}

func (c *memCache) SaveThreshold(ctx context.Context, t *store.Threshold) error {
	c.saves++
	c.entries[key{t.Observations, t.Outliers, t.Unknowns}] = t
	return nil
}

func TestLookup_NilCache(t *testing.T) {
	var s stats.Solver

	th, hit, err := s.Lookup(context.Background(), nil, 10, 1, 1)
	if err != nil {
		t.Fatalf("Lookup failed: %v", err)
	}
	if hit {
		t.Error("expected miss without a cache")
	}
	if math.Abs(math.Sqrt(th.X2)-1.8777) > 1e-4 {
		t.Errorf("unexpected R %f", math.Sqrt(th.X2))
	}
}

func TestLookup_ReadsThrough(t *testing.T) {
	var s stats.Solver
	cache := newMemCache()
	ctx := context.Background()

	first, hit, err := s.Lookup(ctx, cache, 16, 2, 1)
	if err != nil {
		t.Fatalf("Lookup failed: %v", err)
	}
	if hit {
		t.Error("first lookup should miss")
	}
	if cache.saves != 1 {
		t.Errorf("expected 1 save, got %d", cache.saves)
	}

	second, hit, err := s.Lookup(ctx, cache, 16, 2, 1)
	if err != nil {
		t.Fatalf("Lookup failed: %v", err)
	}
	if !hit {
		t.Error("second lookup should hit")
	}
	if cache.saves != 1 {
		t.Errorf("hit should not save again, got %d saves", cache.saves)
	}
	if second.X2 != first.X2 {
		t.Errorf("cached x2 %f differs from solved %f", second.X2, first.X2)
	}
}

func TestLookup_ErrorsNotCached(t *testing.T) {
	var s stats.Solver
	cache := newMemCache()

	_, _, err := s.Lookup(context.Background(), cache, 5, 5, 1)
	if !errors.Is(err, stats.ErrInvalidParams) {
		t.Fatalf("expected ErrInvalidParams, got %v", err)
	}
	if cache.saves != 0 {
		t.Errorf("failed solve should not be cached, got %d saves", cache.saves)
	}
}

func TestLookup_CacheReadFailure(t *testing.T) {
	var s stats.Solver
	cache := newMemCache()
	cache.readErr = errors.New("disk on fire")

	_, _, err := s.Lookup(context.Background(), cache, 10, 1, 1)
	if err == nil {
		t.Fatal("expected cache read failure to surface")
	}
}

func TestBuildTable_DefaultGrid(t *testing.T) {
	var s stats.Solver

	table, err := s.BuildTable(context.Background(), nil, stats.DefaultTableSpec())
	if err != nil {
		t.Fatalf("BuildTable failed: %v", err)
	}

	if len(table.Rows) != 8 {
		t.Fatalf("expected 8 rows, got %d", len(table.Rows))
	}

	first := table.Rows[0]
	if first.Observations != 3 || first.Outliers != 1 || first.Unknowns != 1 {
		t.Errorf("unexpected first row key: %+v", first)
	}
	if math.Abs(first.R-1.2163) > 1e-4 {
		t.Errorf("first row R = %f, want 1.2163", first.R)
	}
	if math.Abs(first.R*first.R-first.X2) > 1e-12 {
		t.Errorf("R and X2 disagree: %f vs %f", first.R, first.X2)
	}
	if first.TailProbability <= 0 || first.TailProbability >= 1 {
		t.Errorf("tail probability %f out of (0, 1)", first.TailProbability)
	}

	for _, row := range table.Rows {
		if row.Error != "" {
			t.Errorf("row %+v failed: %s", row, row.Error)
		}
	}
}

func TestBuildTable_SkipsInvalidCombinations(t *testing.T) {
	var s stats.Solver

	spec := stats.TableSpec{
		Observations: []float64{2, 3},
		Outliers:     []float64{0, 1, 2, 3},
		Unknowns:     []float64{0},
	}

	table, err := s.BuildTable(context.Background(), nil, spec)
	if err != nil {
		t.Fatalf("BuildTable failed: %v", err)
	}

	// N=2: n=1. N=3: n=1, n=2.
	if len(table.Rows) != 3 {
		t.Fatalf("expected 3 rows, got %d", len(table.Rows))
	}
}

func TestBuildTable_RecordsRowErrors(t *testing.T) {
	var s stats.Solver

	spec := stats.TableSpec{
		Observations: []float64{3},
		Outliers:     []float64{2},
		Unknowns:     []float64{1, 2},
	}

	table, err := s.BuildTable(context.Background(), nil, spec)
	if err != nil {
		t.Fatalf("BuildTable failed: %v", err)
	}
	if len(table.Rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(table.Rows))
	}
	if table.Rows[0].Error != "" {
		t.Errorf("row (3,2,1) should solve, got %s", table.Rows[0].Error)
	}
	if table.Rows[1].Error == "" {
		t.Error("row (3,2,2) should carry an error")
	}
}

func TestBuildTable_CancelledContext(t *testing.T) {
	var s stats.Solver

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.BuildTable(ctx, nil, stats.DefaultTableSpec())
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestBuildTable_WithStore(t *testing.T) {
	var s stats.Solver
	st := testutil.SetupTestStore(t)
	ctx := context.Background()

	if _, err := s.BuildTable(ctx, st, stats.DefaultTableSpec()); err != nil {
		t.Fatalf("first BuildTable failed: %v", err)
	}

	table, err := s.BuildTable(ctx, st, stats.DefaultTableSpec())
	if err != nil {
		t.Fatalf("second BuildTable failed: %v", err)
	}
	for _, row := range table.Rows {
		if !row.Cached {
			t.Errorf("row (%g,%g,%g) should come from the cache", row.Observations, row.Outliers, row.Unknowns)
		}
	}

	count, err := st.CountThresholds(ctx)
	if err != nil {
		t.Fatalf("CountThresholds failed: %v", err)
	}
	if count != len(table.Rows) {
		t.Errorf("expected %d cached thresholds, got %d", len(table.Rows), count)
	}
}

func TestLookup_DegenerateSkipsCache(t *testing.T) {
	var s stats.Solver
	cache := newMemCache()
	ctx := context.Background()

	tests := []struct{ N, n, m float64 }{
		{1, 1, 1},
		{0, math.NaN(), 1},
		{math.Inf(-1), 1, 1},
		{-3, 2, math.NaN()},
	}

	for _, tt := range tests {
		th, hit, err := s.Lookup(ctx, cache, tt.N, tt.n, tt.m)
		if err != nil {
			t.Fatalf("Lookup(%g, %g, %g) failed: %v", tt.N, tt.n, tt.m, err)
		}
		if hit || th.X2 != 0 || th.Outcome != string(stats.OutcomeDegenerate) {
			t.Errorf("Lookup(%g, %g, %g) = %+v hit=%v, want uncached degenerate 0", tt.N, tt.n, tt.m, th, hit)
		}
	}

	if cache.saves != 0 {
		t.Errorf("expected no cache writes for degenerate input, got %d", cache.saves)
	}
}

func TestLookup_DegenerateWithStore(t *testing.T) {
	var s stats.Solver
	st := testutil.SetupTestStore(t)
	ctx := context.Background()

	if _, _, err := s.Lookup(ctx, st, 0, math.NaN(), 1); err != nil {
		t.Fatalf("Lookup with NaN outliers failed: %v", err)
	}
	if _, _, err := s.Lookup(ctx, st, math.Inf(-1), 1, 1); err != nil {
		t.Fatalf("Lookup with -Inf observations failed: %v", err)
	}

	thresholds, err := st.ListThresholds(ctx)
	if err != nil {
		t.Fatalf("ListThresholds failed: %v", err)
	}
	if len(thresholds) != 0 {
		t.Errorf("expected an empty cache, got %d thresholds", len(thresholds))
	}
}
