package optimization

import (
	"fmt"
	"math"

	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/mat"
)

// MaxDiversificationOptimizer finds the weights maximizing the
// diversification ratio: the weighted sum of standalone asset volatilities
// divided by the portfolio volatility. The ratio is >= 1 for any long-only
// portfolio over imperfectly correlated assets.
type MaxDiversificationOptimizer struct {
	solver ConstraintSolver
	log    zerolog.Logger
}

// NewMaxDiversificationOptimizer creates a new max diversification optimizer.
func NewMaxDiversificationOptimizer(solver ConstraintSolver, log zerolog.Logger) *MaxDiversificationOptimizer {
	return &MaxDiversificationOptimizer{
		solver: solver,
		log:    log.With().Str("component", "max_diversification").Logger(),
	}
}

// Optimize minimizes the negative diversification ratio subject to full
// investment.
func (md *MaxDiversificationOptimizer) Optimize(covMatrix [][]float64, shortAllowed bool) ([]float64, error) {
	n := len(covMatrix)
	if n == 0 {
		return nil, fmt.Errorf("no assets provided")
	}
	sigma, err := covarianceToDense(covMatrix, n)
	if err != nil {
		return nil, err
	}

	assetVols := assetVolatilities(sigma)

	problem := Problem{
		N: n,
		Objective: func(w []float64) float64 {
			var weightedVols float64
			for i := range w {
				weightedVols += w[i] * assetVols[i]
			}
			vol := math.Sqrt(math.Max(portfolioVariance(w, sigma), 1e-12))
			return -weightedVols / vol
		},
		Equalities: []Equality{budgetConstraint()},
	}
	if !shortAllowed {
		problem.Bounds = LongOnlyBounds(n)
	}

	result := md.solver.Minimize(problem)
	if !result.Converged {
		return nil, fmt.Errorf("%w: max diversification: %s", ErrOptimizationFailed, result.Message)
	}

	if _, err := DiversificationRatio(result.Weights, sigma); err != nil {
		return nil, err
	}
	return result.Weights, nil
}

// DiversificationRatio computes (w·σ) / sqrt(w'Σw) where σ holds the
// standalone asset volatilities from the covariance diagonal.
func DiversificationRatio(weights []float64, sigma *mat.Dense) (float64, error) {
	vol, err := PortfolioVolatility(weights, sigma)
	if err != nil {
		return 0, err
	}
	if vol < volEpsilon {
		return 0, fmt.Errorf("%w: portfolio volatility %g makes the diversification ratio undefined", ErrDegenerateInput, vol)
	}

	assetVols := assetVolatilities(sigma)
	var weightedVols float64
	for i := range weights {
		weightedVols += weights[i] * assetVols[i]
	}
	return weightedVols / vol, nil
}

// assetVolatilities extracts sqrt(Σ_ii) per asset.
func assetVolatilities(sigma *mat.Dense) []float64 {
	n, _ := sigma.Dims()
	vols := make([]float64, n)
	for i := 0; i < n; i++ {
		vols[i] = math.Sqrt(math.Max(sigma.At(i, i), 0))
	}
	return vols
}
