package optimization

import (
	"fmt"
	"math"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// DefaultFrontierPoints is the frontier grid size when the caller does not
// request one.
const DefaultFrontierPoints = 50

// MarkowitzOptimizer solves the mean-variance family: minimum variance
// portfolio, tangency (maximum Sharpe) portfolio, and the efficient frontier
// sweep between them.
type MarkowitzOptimizer struct {
	solver ConstraintSolver
	log    zerolog.Logger
}

// NewMarkowitzOptimizer creates a new mean-variance optimizer.
func NewMarkowitzOptimizer(solver ConstraintSolver, log zerolog.Logger) *MarkowitzOptimizer {
	return &MarkowitzOptimizer{
		solver: solver,
		log:    log.With().Str("component", "markowitz").Logger(),
	}
}

// FrontierPoint is one entry of the efficient frontier. Volatility is only
// meaningful when Feasible is true; infeasible points mark frontier targets
// whose sub-problem did not converge.
type FrontierPoint struct {
	TargetReturn float64 `json:"target_return"`
	Volatility   float64 `json:"volatility"`
	Feasible     bool    `json:"feasible"`
}

// FrontierOptions configures the efficient frontier sweep.
type FrontierOptions struct {
	// ReturnGrid is an explicit target-return grid. When nil, an evenly
	// spaced grid from the MVP return to the tangency return is derived.
	ReturnGrid []float64
	// Points is the derived grid size (default DefaultFrontierPoints).
	Points int
	// RiskFreeRate feeds the tangency solve that anchors the derived grid.
	RiskFreeRate float64
	ShortAllowed bool
	// Workers bounds the number of concurrent point solves. Values below 2
	// solve sequentially. Output ordering is by grid position either way.
	Workers int
}

// MinVariance finds the weights minimizing portfolio volatility subject to
// full investment.
func (mo *MarkowitzOptimizer) MinVariance(mu []float64, covMatrix [][]float64, shortAllowed bool) ([]float64, error) {
	n := len(mu)
	if n == 0 {
		return nil, fmt.Errorf("no assets provided")
	}
	sigma, err := covarianceToDense(covMatrix, n)
	if err != nil {
		return nil, err
	}

	problem := Problem{
		N: n,
		Objective: func(w []float64) float64 {
			return math.Sqrt(math.Max(portfolioVariance(w, sigma), 0))
		},
		Equalities: []Equality{budgetConstraint()},
	}
	if !shortAllowed {
		problem.Bounds = LongOnlyBounds(n)
	}

	result := mo.solver.Minimize(problem)
	if !result.Converged {
		return nil, fmt.Errorf("%w: min variance: %s", ErrOptimizationFailed, result.Message)
	}
	if _, err := PortfolioVolatility(result.Weights, sigma); err != nil {
		return nil, err
	}
	return result.Weights, nil
}

// Tangency finds the weights maximizing the Sharpe ratio
// (μ'w - rf) / sqrt(w'Σw) subject to full investment.
func (mo *MarkowitzOptimizer) Tangency(mu []float64, covMatrix [][]float64, riskFreeRate float64, shortAllowed bool) ([]float64, error) {
	n := len(mu)
	if n == 0 {
		return nil, fmt.Errorf("no assets provided")
	}
	sigma, err := covarianceToDense(covMatrix, n)
	if err != nil {
		return nil, err
	}

	problem := Problem{
		N: n,
		Objective: func(w []float64) float64 {
			ret := PortfolioReturn(w, mu)
			vol := math.Sqrt(math.Max(portfolioVariance(w, sigma), 1e-12))
			return -(ret - riskFreeRate) / vol
		},
		Equalities: []Equality{budgetConstraint()},
	}
	if !shortAllowed {
		problem.Bounds = LongOnlyBounds(n)
	}

	result := mo.solver.Minimize(problem)
	if !result.Converged {
		return nil, fmt.Errorf("%w: tangency: %s", ErrOptimizationFailed, result.Message)
	}

	vol, err := PortfolioVolatility(result.Weights, sigma)
	if err != nil {
		return nil, err
	}
	if vol < volEpsilon {
		return nil, fmt.Errorf("%w: tangency portfolio volatility %g makes the Sharpe ratio undefined", ErrDegenerateInput, vol)
	}
	return result.Weights, nil
}

// EfficientFrontier sweeps minimum-volatility solves across a target-return
// grid. Each point is solved independently from the uniform initial guess; a
// point whose sub-problem does not converge is recorded as infeasible rather
// than aborting the sweep.
func (mo *MarkowitzOptimizer) EfficientFrontier(mu []float64, covMatrix [][]float64, opts FrontierOptions) ([]FrontierPoint, error) {
	n := len(mu)
	if n == 0 {
		return nil, fmt.Errorf("no assets provided")
	}
	sigma, err := covarianceToDense(covMatrix, n)
	if err != nil {
		return nil, err
	}

	grid := opts.ReturnGrid
	if grid == nil {
		mvp, err := mo.MinVariance(mu, covMatrix, opts.ShortAllowed)
		if err != nil {
			return nil, fmt.Errorf("deriving frontier range: %w", err)
		}
		tan, err := mo.Tangency(mu, covMatrix, opts.RiskFreeRate, opts.ShortAllowed)
		if err != nil {
			return nil, fmt.Errorf("deriving frontier range: %w", err)
		}

		points := opts.Points
		if points <= 0 {
			points = DefaultFrontierPoints
		}
		grid = linspace(PortfolioReturn(mvp, mu), PortfolioReturn(tan, mu), points)
	}

	frontier := make([]FrontierPoint, len(grid))

	var g errgroup.Group
	workers := opts.Workers
	if workers < 1 {
		workers = 1
	}
	g.SetLimit(workers)

	for i, target := range grid {
		i, target := i, target
		g.Go(func() error {
			problem := Problem{
				N: n,
				Objective: func(w []float64) float64 {
					return math.Sqrt(math.Max(portfolioVariance(w, sigma), 0))
				},
				Equalities: []Equality{
					budgetConstraint(),
					targetReturnConstraint(mu, target),
				},
			}
			if !opts.ShortAllowed {
				problem.Bounds = LongOnlyBounds(n)
			}

			result := mo.solver.Minimize(problem)
			if !result.Converged {
				mo.log.Debug().Float64("target_return", target).Str("reason", result.Message).Msg("frontier point infeasible")
				frontier[i] = FrontierPoint{TargetReturn: target}
				return nil
			}

			vol, err := PortfolioVolatility(result.Weights, sigma)
			if err != nil {
				return err
			}
			frontier[i] = FrontierPoint{TargetReturn: target, Volatility: vol, Feasible: true}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return frontier, nil
}

// linspace builds count evenly spaced values from start to stop inclusive.
// A single-point request returns just start.
func linspace(start, stop float64, count int) []float64 {
	if count == 1 {
		return []float64{start}
	}
	grid := make([]float64, count)
	step := (stop - start) / float64(count-1)
	for i := range grid {
		grid[i] = start + float64(i)*step
	}
	return grid
}
