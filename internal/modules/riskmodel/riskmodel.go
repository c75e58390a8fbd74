// Package riskmodel derives the annualized statistics consumed by the
// optimization core from a cleaned, date-aligned daily-return matrix.
package riskmodel

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/aristath/frontier/pkg/formulas"
)

const (
	// DefaultTradingDays is the annualization factor for daily returns.
	DefaultTradingDays = 252

	// HighCorrelationThreshold marks asset pairs worth flagging to callers.
	HighCorrelationThreshold = 0.80
)

// CorrelationPair records two highly correlated assets.
type CorrelationPair struct {
	AssetA      string  `json:"asset_a"`
	AssetB      string  `json:"asset_b"`
	Correlation float64 `json:"correlation"`
}

// Model holds annualized expected returns and covariance aligned to Assets.
type Model struct {
	Assets           []string          `json:"assets"`
	ExpectedReturns  []float64         `json:"expected_returns"`
	Covariance       [][]float64       `json:"covariance"`
	Observations     int               `json:"observations"`
	HighCorrelations []CorrelationPair `json:"high_correlations,omitempty"`
}

// Builder computes risk models from return histories.
type Builder struct {
	tradingDays int
	log         zerolog.Logger
}

// NewBuilder creates a risk model builder. tradingDays <= 0 falls back to
// the default daily annualization factor.
func NewBuilder(tradingDays int, log zerolog.Logger) *Builder {
	if tradingDays <= 0 {
		tradingDays = DefaultTradingDays
	}
	return &Builder{
		tradingDays: tradingDays,
		log:         log.With().Str("component", "risk_model").Logger(),
	}
}

// Build computes the annualized expected-return vector and covariance matrix
// from a returns matrix with one row per observation day and one column per
// asset, aligned to the assets slice.
func (b *Builder) Build(assets []string, returns [][]float64) (*Model, error) {
	n := len(assets)
	if n == 0 {
		return nil, fmt.Errorf("no assets provided")
	}
	if len(returns) < 2 {
		return nil, fmt.Errorf("need at least 2 return observations, got %d", len(returns))
	}
	for i, row := range returns {
		if len(row) != n {
			return nil, fmt.Errorf("returns row %d has %d entries, expected %d", i, len(row), n)
		}
	}

	// Column-major series per asset
	series := make([][]float64, n)
	for j := 0; j < n; j++ {
		series[j] = make([]float64, len(returns))
		for i := range returns {
			series[j][i] = returns[i][j]
		}
	}

	factor := float64(b.tradingDays)

	mu := make([]float64, n)
	for j := 0; j < n; j++ {
		mu[j] = formulas.Mean(series[j]) * factor
	}

	cov := make([][]float64, n)
	for i := range cov {
		cov[i] = make([]float64, n)
	}
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			c := formulas.Covariance(series[i], series[j]) * factor
			cov[i][j] = c
			cov[j][i] = c
		}
	}

	var highCorr []CorrelationPair
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			corr := formulas.Correlation(series[i], series[j])
			if corr >= HighCorrelationThreshold {
				highCorr = append(highCorr, CorrelationPair{
					AssetA:      assets[i],
					AssetB:      assets[j],
					Correlation: corr,
				})
			}
		}
	}
	if len(highCorr) > 0 {
		b.log.Warn().Int("pairs", len(highCorr)).Msg("highly correlated asset pairs in universe")
	}

	return &Model{
		Assets:           assets,
		ExpectedReturns:  mu,
		Covariance:       cov,
		Observations:     len(returns),
		HighCorrelations: highCorr,
	}, nil
}
