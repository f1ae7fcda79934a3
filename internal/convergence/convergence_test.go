package convergence_test

import (
	"context"
	"errors"
	"testing"

	"github.com/krisarmstrong/netbench/internal/convergence"
)

func TestSearchFindsThreshold(t *testing.T) {
	t.Parallel()

	const threshold = 63.5
	pred := func(_ context.Context, rate float64) (bool, error) {
		return rate <= threshold, nil
	}

	result, err := convergence.Search(context.Background(), 0, 100, pred, convergence.Options{})
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if !result.Converged {
		t.Fatalf("expected Converged = true")
	}
	if diff := threshold - result.Best; diff < 0 || diff > 1 {
		t.Errorf("Best = %v, want within 1 of %v", result.Best, threshold)
	}
}

func TestSearchNeverPasses(t *testing.T) {
	t.Parallel()

	pred := func(_ context.Context, _ float64) (bool, error) { return false, nil }

	result, err := convergence.Search(context.Background(), 0, 100, pred, convergence.Options{})
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if result.Best != 0 {
		t.Errorf("Best = %v, want 0 when predicate never passes", result.Best)
	}
}

func TestSearchPropagatesPredicateError(t *testing.T) {
	t.Parallel()

	wantErr := errors.New("boom")
	pred := func(_ context.Context, _ float64) (bool, error) { return false, wantErr }

	_, err := convergence.Search(context.Background(), 0, 100, pred, convergence.Options{})
	if !errors.Is(err, wantErr) {
		t.Errorf("Search() error = %v, want %v", err, wantErr)
	}
}

func TestSearchCancelled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	pred := func(_ context.Context, _ float64) (bool, error) { return true, nil }

	result, err := convergence.Search(ctx, 0, 100, pred, convergence.Options{})
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if !result.Cancelled {
		t.Errorf("expected Cancelled = true for an already-done context")
	}
}

func TestSearchRespectsMaxIterations(t *testing.T) {
	t.Parallel()

	pred := func(_ context.Context, rate float64) (bool, error) { return rate <= 50, nil }

	result, err := convergence.Search(context.Background(), 0, 100, pred, convergence.Options{
		ResolutionPct: 0.0000001,
		MaxIterations: 3,
	})
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if result.Iterations > 3 {
		t.Errorf("Iterations = %d, want <= 3", result.Iterations)
	}
}
