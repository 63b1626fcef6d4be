package cli

import (
	"context"
	"errors"
	"fmt"
	"math"
	"path/filepath"
	"strconv"

	"github.com/peircecrit/peirce/internal/config"
	"github.com/peircecrit/peirce/internal/stats"
	"github.com/peircecrit/peirce/internal/store"
)

var errCacheDisabled = errors.New("the threshold cache is disabled by --no-cache")

// withStore opens the database, executes the function, and handles cleanup.
func withStore(o *rootOptions, fn func(*store.SQLiteStore) error) error {
	if o.noCache {
		return errCacheDisabled
	}

	s, err := store.Open(o.cfg.DBPath)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer s.Close()

	return fn(s)
}

// withCache is withStore for commands that can also run uncached: with
// --no-cache fn receives a nil cache.
func withCache(o *rootOptions, fn func(stats.Cache) error) error {
	if o.noCache {
		return fn(nil)
	}
	return withStore(o, func(s *store.SQLiteStore) error {
		return fn(s)
	})
}

func (o *rootOptions) solver() *stats.Solver {
	return &stats.Solver{MaxIterations: o.cfg.Solver.MaxIterations}
}

// lookupRow solves (N, n, m) through cache and returns it as a table row.
func (o *rootOptions) lookupRow(ctx context.Context, cache stats.Cache, N, n, m float64) (stats.Row, error) {
	row := stats.Row{Observations: N, Outliers: n, Unknowns: m}

	t, hit, err := o.solver().Lookup(ctx, cache, N, n, m)
	if err != nil {
		return row, fmt.Errorf("N=%g n=%g m=%g: %w", N, n, m, err)
	}

	row.Fill(t)
	row.Cached = hit
	return row, nil
}

// tokenFilePath returns the admin token file, defaulting to one next to the database.
func tokenFilePath(cfg *config.Config) string {
	if cfg.Server.TokenFile != "" {
		return cfg.Server.TokenFile
	}
	return filepath.Join(filepath.Dir(cfg.DBPath), ".peirce-token")
}

func parseNumber(name, raw string) (float64, error) {
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("%s must be a finite number, got %q", name, raw)
	}
	return v, nil
}
