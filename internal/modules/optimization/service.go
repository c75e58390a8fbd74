package optimization

import (
	"fmt"
	"math"

	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/mat"

	"github.com/aristath/frontier/pkg/formulas"
)

// Strategy names reported by the service.
const (
	StrategyMinVariance        = "min_variance"
	StrategyTangency           = "tangency"
	StrategyRiskParity         = "risk_parity"
	StrategyMaxDiversification = "max_diversification"
)

// AssetStats is the upstream boundary with the data pipeline: annualized
// expected returns and covariance, aligned to the Assets ordering. The core
// borrows them read-only.
type AssetStats struct {
	Assets          []string    `json:"assets"`
	ExpectedReturns []float64   `json:"expected_returns"`
	Covariance      [][]float64 `json:"covariance"`
}

// Validate checks the asset/vector/matrix alignment and covariance symmetry.
func (a AssetStats) Validate() error {
	n := len(a.Assets)
	if n == 0 {
		return fmt.Errorf("no assets provided")
	}
	if len(a.ExpectedReturns) != n {
		return fmt.Errorf("expected returns length %d does not match asset count %d", len(a.ExpectedReturns), n)
	}
	if len(a.Covariance) != n {
		return fmt.Errorf("covariance matrix size %d does not match asset count %d", len(a.Covariance), n)
	}
	for i := range a.Covariance {
		if len(a.Covariance[i]) != n {
			return fmt.Errorf("covariance matrix row %d has size %d, expected %d", i, len(a.Covariance[i]), n)
		}
	}
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			if math.Abs(a.Covariance[i][j]-a.Covariance[j][i]) > 1e-8 {
				return fmt.Errorf("%w: covariance matrix is not symmetric at (%d,%d)", ErrNumeric, i, j)
			}
		}
	}
	return nil
}

// Options holds the scalar parameters of an optimization run.
type Options struct {
	RiskFreeRate   float64   `json:"risk_free_rate"`
	ShortAllowed   bool      `json:"short_allowed"`
	FrontierPoints int       `json:"frontier_points"`
	RiskBudget     []float64 `json:"risk_budget,omitempty"`
	SweepWorkers   int       `json:"sweep_workers,omitempty"`
}

// PortfolioStats summarizes a solved portfolio.
type PortfolioStats struct {
	ExpectedReturn       float64            `json:"expected_return"`
	Volatility           float64            `json:"volatility"`
	SharpeRatio          *float64           `json:"sharpe_ratio,omitempty"`
	DiversificationRatio float64            `json:"diversification_ratio"`
	RiskContributions    map[string]float64 `json:"risk_contributions"`
}

// Portfolio is one strategy's outcome. Weights and Stats are set only when
// the strategy converged; Error carries the diagnostic otherwise.
type Portfolio struct {
	Strategy string             `json:"strategy"`
	Weights  map[string]float64 `json:"weights,omitempty"`
	Stats    *PortfolioStats    `json:"stats,omitempty"`
	Error    string             `json:"error,omitempty"`
}

// Report is the outcome of a full optimization run.
type Report struct {
	Portfolios []Portfolio     `json:"portfolios"`
	Frontier   []FrontierPoint `json:"frontier"`
}

// Service runs the portfolio strategies over one set of asset statistics.
type Service struct {
	markowitz  *MarkowitzOptimizer
	riskParity *RiskParityOptimizer
	maxDiv     *MaxDiversificationOptimizer
	log        zerolog.Logger
}

// NewService wires the strategy optimizers onto a shared solver.
func NewService(log zerolog.Logger) *Service {
	solver := NewSolver(log)
	return &Service{
		markowitz:  NewMarkowitzOptimizer(solver, log),
		riskParity: NewRiskParityOptimizer(solver, log),
		maxDiv:     NewMaxDiversificationOptimizer(solver, log),
		log:        log.With().Str("service", "optimization").Logger(),
	}
}

// Run solves all four strategies plus the frontier sweep. A single strategy
// failing to converge is reported inside its portfolio entry; only malformed
// inputs fail the whole run.
func (s *Service) Run(stats AssetStats, opts Options) (*Report, error) {
	if err := stats.Validate(); err != nil {
		return nil, err
	}

	mu := stats.ExpectedReturns
	cov := stats.Covariance

	report := &Report{}

	mvp, err := s.markowitz.MinVariance(mu, cov, opts.ShortAllowed)
	report.Portfolios = append(report.Portfolios, s.buildPortfolio(StrategyMinVariance, stats, opts, mvp, err))

	tan, err := s.markowitz.Tangency(mu, cov, opts.RiskFreeRate, opts.ShortAllowed)
	report.Portfolios = append(report.Portfolios, s.buildPortfolio(StrategyTangency, stats, opts, tan, err))

	rpw, err := s.riskParity.Optimize(cov, opts.RiskBudget, opts.ShortAllowed)
	report.Portfolios = append(report.Portfolios, s.buildPortfolio(StrategyRiskParity, stats, opts, rpw, err))

	mdw, err := s.maxDiv.Optimize(cov, opts.ShortAllowed)
	report.Portfolios = append(report.Portfolios, s.buildPortfolio(StrategyMaxDiversification, stats, opts, mdw, err))

	frontier, err := s.Frontier(stats, opts)
	if err != nil {
		s.log.Warn().Err(err).Msg("frontier sweep failed")
	} else {
		report.Frontier = frontier
	}

	return report, nil
}

// Frontier runs only the efficient frontier sweep.
func (s *Service) Frontier(stats AssetStats, opts Options) ([]FrontierPoint, error) {
	if err := stats.Validate(); err != nil {
		return nil, err
	}
	return s.markowitz.EfficientFrontier(stats.ExpectedReturns, stats.Covariance, FrontierOptions{
		Points:       opts.FrontierPoints,
		RiskFreeRate: opts.RiskFreeRate,
		ShortAllowed: opts.ShortAllowed,
		Workers:      opts.SweepWorkers,
	})
}

func (s *Service) buildPortfolio(strategy string, stats AssetStats, opts Options, weights []float64, err error) Portfolio {
	if err != nil {
		s.log.Warn().Err(err).Str("strategy", strategy).Msg("strategy failed")
		return Portfolio{Strategy: strategy, Error: err.Error()}
	}

	named := make(map[string]float64, len(stats.Assets))
	for i, asset := range stats.Assets {
		named[asset] = weights[i]
	}

	portfolio := Portfolio{Strategy: strategy, Weights: named}

	sigma, covErr := covarianceToDense(stats.Covariance, len(stats.Assets))
	if covErr != nil {
		portfolio.Error = covErr.Error()
		return portfolio
	}

	st, statsErr := s.portfolioStats(stats, opts, weights, sigma)
	if statsErr != nil {
		s.log.Warn().Err(statsErr).Str("strategy", strategy).Msg("stats computation failed")
		portfolio.Error = statsErr.Error()
		return portfolio
	}
	portfolio.Stats = st
	return portfolio
}

func (s *Service) portfolioStats(stats AssetStats, opts Options, weights []float64, sigma *mat.Dense) (*PortfolioStats, error) {
	ret := PortfolioReturn(weights, stats.ExpectedReturns)
	vol, err := PortfolioVolatility(weights, sigma)
	if err != nil {
		return nil, err
	}

	divRatio, err := DiversificationRatio(weights, sigma)
	if err != nil {
		return nil, err
	}

	contributions, err := RiskContributions(weights, sigma)
	if err != nil {
		return nil, err
	}
	named := make(map[string]float64, len(stats.Assets))
	for i, asset := range stats.Assets {
		named[asset] = contributions[i]
	}

	return &PortfolioStats{
		ExpectedReturn:       ret,
		Volatility:           vol,
		SharpeRatio:          formulas.SharpeRatio(ret, vol, opts.RiskFreeRate),
		DiversificationRatio: divRatio,
		RiskContributions:    named,
	}, nil
}
