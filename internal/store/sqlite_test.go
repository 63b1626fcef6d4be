package store_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/peircecrit/peirce/internal/store"
	"github.com/peircecrit/peirce/internal/testutil"
)

func TestOpen_CreatesDatabase(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "peirce.db")

	s, err := store.Open(dbPath)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer s.Close()

	if err := s.DB().Ping(); err != nil {
		t.Errorf("database not reachable: %v", err)
	}
}

func TestOpen_Reopen(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "peirce.db")
	ctx := context.Background()

	s, err := store.Open(dbPath)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if err := s.SaveThreshold(ctx, &store.Threshold{Observations: 10, Outliers: 1, Unknowns: 1, X2: 3.5258, Iterations: 17, Outcome: "converged"}); err != nil {
		t.Fatalf("SaveThreshold failed: %v", err)
	}
	s.Close()

	s, err = store.Open(dbPath)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	defer s.Close()

	if _, err := s.GetThreshold(ctx, 10, 1, 1); err != nil {
		t.Errorf("threshold lost across reopen: %v", err)
	}
}

func TestSaveThreshold_RoundTrip(t *testing.T) {
	s := testutil.SetupTestStore(t)
	ctx := context.Background()

	in := &store.Threshold{
		Observations: 16,
		Outliers:     2,
		Unknowns:     1,
		X2:           3.2638440041468417,
		Iterations:   17,
		Outcome:      "converged",
	}
	if err := s.SaveThreshold(ctx, in); err != nil {
		t.Fatalf("SaveThreshold failed: %v", err)
	}
	if in.CreatedAt.IsZero() {
		t.Error("expected CreatedAt to be stamped")
	}

	got, err := s.GetThreshold(ctx, 16, 2, 1)
	if err != nil {
		t.Fatalf("GetThreshold failed: %v", err)
	}

	if got.X2 != in.X2 {
		t.Errorf("x2 = %v, want %v", got.X2, in.X2)
	}
	if got.Iterations != 17 {
		t.Errorf("iterations = %d, want 17", got.Iterations)
	}
	if got.Outcome != "converged" {
		t.Errorf("outcome = %s, want converged", got.Outcome)
	}
	if !got.CreatedAt.Equal(in.CreatedAt) {
		t.Errorf("created_at = %v, want %v", got.CreatedAt, in.CreatedAt)
	}
}

func TestSaveThreshold_Replaces(t *testing.T) {
	s := testutil.SetupTestStore(t)
	ctx := context.Background()

	if err := s.SaveThreshold(ctx, &store.Threshold{Observations: 5, Outliers: 1, Unknowns: 1, X2: 1, Outcome: "converged"}); err != nil {
		t.Fatalf("SaveThreshold failed: %v", err)
	}
	if err := s.SaveThreshold(ctx, &store.Threshold{Observations: 5, Outliers: 1, Unknowns: 1, X2: 2.2779, Outcome: "converged"}); err != nil {
		t.Fatalf("SaveThreshold failed: %v", err)
	}

	count, err := s.CountThresholds(ctx)
	if err != nil {
		t.Fatalf("CountThresholds failed: %v", err)
	}
	if count != 1 {
		t.Errorf("expected 1 row after replace, got %d", count)
	}

	got, err := s.GetThreshold(ctx, 5, 1, 1)
	if err != nil {
		t.Fatalf("GetThreshold failed: %v", err)
	}
	if got.X2 != 2.2779 {
		t.Errorf("expected replaced x2 2.2779, got %f", got.X2)
	}
}

func TestGetThreshold_NotFound(t *testing.T) {
	s := testutil.SetupTestStore(t)

	_, err := s.GetThreshold(context.Background(), 3, 1, 1)
	if err != store.ErrNotFound {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestListThresholds_Ordered(t *testing.T) {
	s := testutil.SetupTestStore(t)
	ctx := context.Background()

	keys := [][3]float64{{16, 1, 1}, {3, 1, 1}, {10, 2, 1}, {10, 1, 1}}
	for _, k := range keys {
		err := s.SaveThreshold(ctx, &store.Threshold{Observations: k[0], Outliers: k[1], Unknowns: k[2], X2: 1, Outcome: "converged", CreatedAt: time.Unix(1700000000, 0)})
		if err != nil {
			t.Fatalf("SaveThreshold failed: %v", err)
		}
	}

	list, err := s.ListThresholds(ctx)
	if err != nil {
		t.Fatalf("ListThresholds failed: %v", err)
	}
	if len(list) != 4 {
		t.Fatalf("expected 4 thresholds, got %d", len(list))
	}

	want := [][3]float64{{3, 1, 1}, {10, 1, 1}, {10, 2, 1}, {16, 1, 1}}
	for i, w := range want {
		got := list[i]
		if got.Observations != w[0] || got.Outliers != w[1] || got.Unknowns != w[2] {
			t.Errorf("row %d = (%g,%g,%g), want (%g,%g,%g)", i, got.Observations, got.Outliers, got.Unknowns, w[0], w[1], w[2])
		}
		if got.CreatedAt.Unix() != 1700000000 {
			t.Errorf("row %d created_at = %d, want 1700000000", i, got.CreatedAt.Unix())
		}
	}
}

func TestListThresholds_Empty(t *testing.T) {
	s := testutil.SetupTestStore(t)

	list, err := s.ListThresholds(context.Background())
	if err != nil {
		t.Fatalf("ListThresholds failed: %v", err)
	}
	if len(list) != 0 {
		t.Errorf("expected empty list, got %d", len(list))
	}
}

func TestClearThresholds(t *testing.T) {
	s := testutil.SetupTestStore(t)
	ctx := context.Background()

	for _, N := range []float64{3, 5, 10} {
		if err := s.SaveThreshold(ctx, &store.Threshold{Observations: N, Outliers: 1, Unknowns: 1, X2: 1, Outcome: "converged"}); err != nil {
			t.Fatalf("SaveThreshold failed: %v", err)
		}
	}

	removed, err := s.ClearThresholds(ctx)
	if err != nil {
		t.Fatalf("ClearThresholds failed: %v", err)
	}
	if removed != 3 {
		t.Errorf("expected 3 removed, got %d", removed)
	}

	count, err := s.CountThresholds(ctx)
	if err != nil {
		t.Fatalf("CountThresholds failed: %v", err)
	}
	if count != 0 {
		t.Errorf("expected empty cache, got %d", count)
	}
}
