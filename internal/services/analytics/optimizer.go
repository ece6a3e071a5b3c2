package analytics

import (
	"math"

	"gonum.org/v1/gonum/optimize"
)

// flatIterations is how many consecutive simplex iterations without a relative
// improvement above the tolerance count as convergence.
const flatIterations = 100

// simplexSearch runs gonum's Nelder-Mead from x0 and then restarts from the
// best point with a smaller simplex. Nothing is randomised, so identical
// inputs give identical results.
type simplexSearch struct {
	MaxIter  int
	Restarts int
	FTol     float64
	Step     float64
}

type searchResult struct {
	X          []float64
	F          float64
	Iterations int
	Status     optimize.Status
	Converged  bool
}

// Minimize returns the first run's result unless a restart converges to a
// strictly lower objective. A restart that fails or does not converge is
// discarded and ends the search.
func (s simplexSearch) Minimize(f func([]float64) float64, x0 []float64) (searchResult, error) {
	problem := optimize.Problem{
		Func: func(x []float64) float64 {
			v := f(x)
			if math.IsNaN(v) {
				return math.Inf(1)
			}
			return v
		},
	}

	res, err := s.run(problem, x0, s.Step)
	if err != nil || !res.Converged {
		return res, err
	}

	total := res.Iterations
	step := s.Step
	for i := 0; i < s.Restarts; i++ {
		step /= 4
		next, err := s.run(problem, res.X, step)
		total += next.Iterations
		if err != nil || !improves(res, next) {
			break
		}
		res = next
	}
	res.Iterations = total
	return res, nil
}

// improves reports whether next should replace cur.
func improves(cur, next searchResult) bool {
	return next.Converged && next.F < cur.F
}

func (s simplexSearch) run(p optimize.Problem, x0 []float64, step float64) (searchResult, error) {
	settings := &optimize.Settings{
		MajorIterations: s.MaxIter,
		Converger: &optimize.FunctionConverge{
			Absolute:   1e-10,
			Relative:   s.FTol,
			Iterations: flatIterations,
		},
	}
	r, err := optimize.Minimize(p, x0, settings, &optimize.NelderMead{SimplexSize: step})
	if r == nil {
		return searchResult{F: math.Inf(1), Status: optimize.Failure}, err
	}
	out := searchResult{
		X:          r.X,
		F:          r.F,
		Iterations: r.Stats.MajorIterations,
		Status:     r.Status,
	}
	out.Converged = err == nil && r.Status != optimize.NotTerminated && !r.Status.Early()
	return out, err
}
