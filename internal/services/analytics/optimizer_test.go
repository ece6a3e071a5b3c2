package analytics

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/optimize"
)

func TestSimplexSearchQuadratic(t *testing.T) {
	f := func(x []float64) float64 {
		return (x[0]-3)*(x[0]-3) + 10*(x[1]+1)*(x[1]+1)
	}
	s := simplexSearch{MaxIter: 2000, Restarts: 1, FTol: 1e-12, Step: 0.5}
	res, err := s.Minimize(f, []float64{0, 0})
	if err != nil {
		t.Fatalf("minimize: %v", err)
	}
	if !res.Converged {
		t.Fatalf("did not converge after %d iterations (%s)", res.Iterations, res.Status)
	}
	if math.Abs(res.X[0]-3) > 1e-3 || math.Abs(res.X[1]+1) > 1e-3 {
		t.Fatalf("unexpected minimum %v", res.X)
	}
}

func TestSimplexSearchReportsIterationLimit(t *testing.T) {
	f := func(x []float64) float64 { return x[0] }
	s := simplexSearch{MaxIter: 50, Restarts: 1, FTol: 1e-12, Step: 1}
	res, err := s.Minimize(f, []float64{0})
	if err != nil {
		t.Fatalf("minimize: %v", err)
	}
	if res.Converged {
		t.Fatalf("unbounded objective must not converge")
	}
	if res.Status != optimize.IterationLimit {
		t.Fatalf("status = %s, want %s", res.Status, optimize.IterationLimit)
	}
	if res.Iterations > 50 {
		t.Fatalf("iteration budget exceeded: %d", res.Iterations)
	}
}

func TestSimplexSearchInfeasibleStart(t *testing.T) {
	f := func(x []float64) float64 { return math.NaN() }
	s := simplexSearch{MaxIter: 100, FTol: 1e-9, Step: 0.5}
	res, err := s.Minimize(f, []float64{0, 0})
	if err == nil && res.Converged {
		t.Fatalf("NaN objective reported as converged: %+v", res)
	}
}

func TestImprovesKeepsConvergedResult(t *testing.T) {
	cur := searchResult{F: 10, Converged: true}
	cases := []struct {
		name string
		next searchResult
		want bool
	}{
		{"converged lower", searchResult{F: 9, Converged: true}, true},
		{"converged higher", searchResult{F: 11, Converged: true}, false},
		{"converged equal", searchResult{F: 10, Converged: true}, false},
		{"unconverged lower", searchResult{F: 1, Status: optimize.IterationLimit}, false},
	}
	for _, tc := range cases {
		if got := improves(cur, tc.next); got != tc.want {
			t.Errorf("%s: improves = %v, want %v", tc.name, got, tc.want)
		}
	}
}
