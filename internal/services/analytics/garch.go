package analytics

import (
	"fmt"
	"math"

	"NewsVol/internal/domain/models"
	domsvc "NewsVol/internal/domain/service"
	"NewsVol/internal/services/features"
)

const (
	ModelGARCH11 = "GARCH(1,1)"

	DefaultMinObservations = 30
	DefaultMaxIterations   = 5000

	// returns with a variance below this (in squared percent) are treated as constant
	minReturnVariance = 1e-12

	// maxPersistence bounds alpha+beta so every candidate is stationary.
	maxPersistence = 0.9999
	// log(omega) is clamped to keep omega finite and positive.
	maxLogOmega = 50.0
)

// GarchConfig tunes the fit.
type GarchConfig struct {
	MinObservations int
	MaxIterations   int
	Restarts        int
	Tolerance       float64
}

// GarchOption mutates GarchConfig.
type GarchOption func(*GarchConfig)

func WithMinObservations(n int) GarchOption {
	return func(c *GarchConfig) { c.MinObservations = n }
}

func WithMaxIterations(n int) GarchOption {
	return func(c *GarchConfig) { c.MaxIterations = n }
}

func WithTolerance(tol float64) GarchOption {
	return func(c *GarchConfig) { c.Tolerance = tol }
}

// GarchForecaster fits a constant-mean GARCH(1,1) by Gaussian maximum
// likelihood and projects the conditional variance forward. Each call refits
// from scratch; the forecaster holds configuration only.
type GarchForecaster struct {
	cfg GarchConfig
}

var _ domsvc.VolatilityForecaster = (*GarchForecaster)(nil)

func NewGarchForecaster(opts ...GarchOption) *GarchForecaster {
	cfg := GarchConfig{
		MinObservations: DefaultMinObservations,
		MaxIterations:   DefaultMaxIterations,
		Restarts:        1,
		Tolerance:       1e-9,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.MinObservations < 3 {
		cfg.MinObservations = 3
	}
	if cfg.MaxIterations <= 0 {
		cfg.MaxIterations = DefaultMaxIterations
	}
	if cfg.Tolerance <= 0 {
		cfg.Tolerance = 1e-9
	}
	return &GarchForecaster{cfg: cfg}
}

// Forecast returns horizon conditional variances in squared percent, starting
// the step after the last observed return.
func (g *GarchForecaster) Forecast(returns []float64, horizon int) (models.VolatilityForecast, error) {
	var out models.VolatilityForecast
	if horizon < 1 {
		return out, &models.InvalidInputError{Field: "horizon", Reason: "must be at least 1"}
	}
	for _, r := range returns {
		if math.IsNaN(r) || math.IsInf(r, 0) {
			return out, &models.InvalidInputError{Field: "returns", Reason: "contains a non-finite value"}
		}
	}
	if len(returns) < g.cfg.MinObservations {
		return out, &models.InsufficientDataError{What: "returns", Need: g.cfg.MinObservations, Got: len(returns)}
	}

	mu, variance := features.MeanVariance(returns)
	if variance < minReturnVariance {
		return out, &models.ModelFitError{Reason: "returns are near-constant"}
	}
	eps := make([]float64, len(returns))
	for i, r := range returns {
		eps[i] = r - mu
	}

	fit, iterations, err := g.fit(eps, variance)
	if err != nil {
		return out, err
	}
	fit.Mu = mu

	lastVar := conditionalVariances(eps, variance, fit)[len(eps)-1]
	last := eps[len(eps)-1]
	variances := make([]float64, horizon)
	variances[0] = fit.Omega + fit.Alpha*last*last + fit.Beta*lastVar
	for k := 1; k < horizon; k++ {
		variances[k] = fit.Omega + fit.Persistence()*variances[k-1]
	}
	for _, v := range variances {
		if v < 0 || math.IsNaN(v) || math.IsInf(v, 0) {
			return out, &models.ModelFitError{Reason: "forecast produced an invalid variance"}
		}
	}

	out = models.VolatilityForecast{
		Horizon:       horizon,
		Variances:     variances,
		Params:        fit,
		LogLikelihood: -negLogLikelihood(eps, variance, fit),
		Observations:  len(returns),
		Iterations:    iterations,
		Model:         ModelGARCH11,
	}
	return out, nil
}

// fit maximises the likelihood over an unconstrained parameterisation:
// omega = exp(a), persistence s = maxPersistence*logistic(b),
// alpha = s*logistic(c), beta = s*(1-logistic(c)). Any point maps to
// omega > 0, alpha, beta >= 0 and alpha+beta <= maxPersistence.
func (g *GarchForecaster) fit(eps []float64, backcast float64) (models.GarchParams, int, error) {
	start := models.GarchParams{Omega: 0.05 * backcast, Alpha: 0.10, Beta: 0.85}
	nll := func(x []float64) float64 {
		return negLogLikelihood(eps, backcast, fromUnconstrained(x))
	}

	search := simplexSearch{
		MaxIter:  g.cfg.MaxIterations,
		Restarts: g.cfg.Restarts,
		FTol:     g.cfg.Tolerance,
		Step:     0.5,
	}
	res, err := search.Minimize(nll, toUnconstrained(start))
	if err != nil {
		return models.GarchParams{}, res.Iterations, &models.ModelFitError{Reason: "optimizer failed", Iterations: res.Iterations, Err: err}
	}
	if !res.Converged {
		return models.GarchParams{}, res.Iterations, &models.ModelFitError{Reason: fmt.Sprintf("optimizer did not converge (%s)", res.Status), Iterations: res.Iterations}
	}
	if math.IsInf(res.F, 0) || math.IsNaN(res.F) {
		return models.GarchParams{}, res.Iterations, &models.ModelFitError{Reason: "likelihood is not finite", Iterations: res.Iterations}
	}

	p := fromUnconstrained(res.X)
	if !(p.Omega > 0) || math.IsInf(p.Omega, 0) || p.Alpha < 0 || p.Beta < 0 {
		return models.GarchParams{}, res.Iterations, &models.ModelFitError{Reason: "parameters left the admissible region", Iterations: res.Iterations}
	}
	if p.Persistence() >= 1 {
		return models.GarchParams{}, res.Iterations, &models.ModelFitError{Reason: "fitted model is not stationary (alpha+beta >= 1)", Iterations: res.Iterations}
	}
	return p, res.Iterations, nil
}

// negLogLikelihood is the Gaussian negative log-likelihood of the residuals,
// with sigma2[0] backcast to the sample variance.
func negLogLikelihood(eps []float64, backcast float64, p models.GarchParams) float64 {
	const log2Pi = 1.8378770664093453
	s2 := backcast
	total := 0.0
	for t, e := range eps {
		if t > 0 {
			prev := eps[t-1]
			s2 = p.Omega + p.Alpha*prev*prev + p.Beta*s2
		}
		if !(s2 > 0) || math.IsInf(s2, 0) {
			return math.Inf(1)
		}
		total += log2Pi + math.Log(s2) + e*e/s2
	}
	return 0.5 * total
}

// conditionalVariances returns sigma2[t] for every observation.
func conditionalVariances(eps []float64, backcast float64, p models.GarchParams) []float64 {
	out := make([]float64, len(eps))
	s2 := backcast
	for t := range eps {
		if t > 0 {
			prev := eps[t-1]
			s2 = p.Omega + p.Alpha*prev*prev + p.Beta*s2
		}
		out[t] = s2
	}
	return out
}

func fromUnconstrained(x []float64) models.GarchParams {
	s := maxPersistence * logistic(x[1])
	w := logistic(x[2])
	return models.GarchParams{
		Omega: math.Exp(math.Max(-maxLogOmega, math.Min(maxLogOmega, x[0]))),
		Alpha: s * w,
		Beta:  s * (1 - w),
	}
}

func toUnconstrained(p models.GarchParams) []float64 {
	s := p.Alpha + p.Beta
	return []float64{math.Log(p.Omega), logit(s / maxPersistence), logit(p.Alpha / s)}
}

func logistic(x float64) float64 { return 1 / (1 + math.Exp(-x)) }

func logit(p float64) float64 { return math.Log(p / (1 - p)) }
