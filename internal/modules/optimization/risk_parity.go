package optimization

import (
	"fmt"
	"math"

	"github.com/rs/zerolog"
)

// RiskParityOptimizer finds weights whose per-asset risk contributions match
// a target risk budget (equal risk contribution when the budget is uniform).
type RiskParityOptimizer struct {
	solver ConstraintSolver
	log    zerolog.Logger
}

// NewRiskParityOptimizer creates a new risk parity optimizer.
func NewRiskParityOptimizer(solver ConstraintSolver, log zerolog.Logger) *RiskParityOptimizer {
	return &RiskParityOptimizer{
		solver: solver,
		log:    log.With().Str("component", "risk_parity").Logger(),
	}
}

// Optimize minimizes Σ(RC_i − budget_i)² subject to full investment.
// A nil budget defaults to the uniform 1/n budget; an explicit budget must be
// non-negative and sum to 1.
func (rp *RiskParityOptimizer) Optimize(covMatrix [][]float64, budget []float64, shortAllowed bool) ([]float64, error) {
	n := len(covMatrix)
	if n == 0 {
		return nil, fmt.Errorf("no assets provided")
	}
	sigma, err := covarianceToDense(covMatrix, n)
	if err != nil {
		return nil, err
	}

	if budget == nil {
		budget = uniformWeights(n)
	} else {
		if len(budget) != n {
			return nil, fmt.Errorf("risk budget has length %d, expected %d", len(budget), n)
		}
		sum := 0.0
		for i, b := range budget {
			if b < 0 {
				return nil, fmt.Errorf("risk budget entry %d is negative (%g)", i, b)
			}
			sum += b
		}
		if math.Abs(sum-1.0) > 1e-6 {
			return nil, fmt.Errorf("risk budget sums to %g, expected 1", sum)
		}
	}

	problem := Problem{
		N: n,
		Objective: func(w []float64) float64 {
			// Fractional contributions w_i(Σw)_i / w'Σw sum to 1, matching
			// the budget normalization.
			variance := math.Max(portfolioVariance(w, sigma), 1e-12)
			var obj float64
			for i := 0; i < n; i++ {
				var marginal float64
				for j := 0; j < n; j++ {
					marginal += sigma.At(i, j) * w[j]
				}
				diff := w[i]*marginal/variance - budget[i]
				obj += diff * diff
			}
			return obj
		},
		Equalities: []Equality{budgetConstraint()},
	}
	if !shortAllowed {
		problem.Bounds = LongOnlyBounds(n)
	}

	result := rp.solver.Minimize(problem)
	if !result.Converged {
		return nil, fmt.Errorf("%w: risk parity: %s", ErrOptimizationFailed, result.Message)
	}

	// The converged point must support well-defined risk contributions.
	if _, err := RiskContributions(result.Weights, sigma); err != nil {
		return nil, err
	}
	return result.Weights, nil
}
