package optimization

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func denseFromRows(rows [][]float64) *mat.Dense {
	n := len(rows)
	m := mat.NewDense(n, n, nil)
	for i := range rows {
		for j := range rows[i] {
			m.Set(i, j, rows[i][j])
		}
	}
	return m
}

func TestPortfolioReturn(t *testing.T) {
	mu := []float64{0.08, 0.12}
	weights := []float64{0.5, 0.5}

	assert.InDelta(t, 0.10, PortfolioReturn(weights, mu), 1e-12)
}

func TestPortfolioVolatility(t *testing.T) {
	sigma := denseFromRows([][]float64{
		{0.04, 0.0},
		{0.0, 0.09},
	})
	weights := []float64{0.5, 0.5}

	vol, err := PortfolioVolatility(weights, sigma)
	require.NoError(t, err)

	// 0.25*0.04 + 0.25*0.09 = 0.0325
	assert.InDelta(t, math.Sqrt(0.0325), vol, 1e-12)
}

func TestPortfolioVolatility_NonPSD(t *testing.T) {
	// Strongly indefinite matrix: w'Σw = -2 at uniform weights scaled up
	sigma := denseFromRows([][]float64{
		{1.0, -2.0},
		{-2.0, 1.0},
	})
	weights := []float64{1.0, 1.0}

	_, err := PortfolioVolatility(weights, sigma)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNumeric)
}

func TestMarginalRiskContributions(t *testing.T) {
	sigma := denseFromRows([][]float64{
		{0.04, 0.01},
		{0.01, 0.09},
	})
	weights := []float64{0.5, 0.5}

	marginal := MarginalRiskContributions(weights, sigma)
	assert.InDelta(t, 0.025, marginal[0], 1e-12)
	assert.InDelta(t, 0.050, marginal[1], 1e-12)
}

func TestRiskContributions_SumToVolatility(t *testing.T) {
	sigma := denseFromRows([][]float64{
		{0.04, 0.01, 0.005},
		{0.01, 0.09, 0.008},
		{0.005, 0.008, 0.06},
	})
	weights := []float64{0.3, 0.3, 0.4}

	contrib, err := RiskContributions(weights, sigma)
	require.NoError(t, err)

	vol, err := PortfolioVolatility(weights, sigma)
	require.NoError(t, err)

	sum := 0.0
	for _, rc := range contrib {
		sum += rc
	}
	// Euler decomposition: risk contributions sum to total volatility
	assert.InDelta(t, vol, sum, 1e-10)
}

func TestRiskContributions_DegenerateVolatility(t *testing.T) {
	sigma := denseFromRows([][]float64{
		{0.0, 0.0},
		{0.0, 0.0},
	})
	weights := []float64{0.5, 0.5}

	_, err := RiskContributions(weights, sigma)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrDegenerateInput)
}

func TestCovarianceToDense_RejectsZeroVarianceAsset(t *testing.T) {
	_, err := covarianceToDense([][]float64{
		{0.04, 0.0},
		{0.0, 0.0},
	}, 2)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrDegenerateInput)
}

func TestCovarianceToDense_RejectsNegativeVariance(t *testing.T) {
	_, err := covarianceToDense([][]float64{
		{-0.04, 0.0},
		{0.0, 0.09},
	}, 2)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNumeric)
}

func TestCovarianceToDense_RejectsShapeMismatch(t *testing.T) {
	_, err := covarianceToDense([][]float64{{0.04}}, 2)
	require.Error(t, err)
}
