package optimization

import (
	"math"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Three uncorrelated assets used across the mean-variance tests.
var (
	testMu  = []float64{0.08, 0.12, 0.10}
	testCov = [][]float64{
		{0.04, 0.0, 0.0},
		{0.0, 0.09, 0.0},
		{0.0, 0.0, 0.06},
	}
)

func testMarkowitz() *MarkowitzOptimizer {
	return NewMarkowitzOptimizer(testSolver(), zerolog.Nop())
}

func assertBudget(t *testing.T, weights []float64) {
	t.Helper()
	sum := 0.0
	for _, w := range weights {
		sum += w
	}
	assert.InDelta(t, 1.0, sum, 1e-6, "weights should sum to 1")
}

func assertLongOnly(t *testing.T, weights []float64) {
	t.Helper()
	for i, w := range weights {
		assert.GreaterOrEqual(t, w, -1e-6, "weight %d should be non-negative", i)
		assert.LessOrEqual(t, w, 1.0+1e-6, "weight %d should be <= 1", i)
	}
}

func TestMinVariance_TwoAssetClosedForm(t *testing.T) {
	// Equal variance, zero correlation: the MVP is the 50/50 split.
	mu := []float64{0.08, 0.12}
	cov := [][]float64{
		{0.04, 0.0},
		{0.0, 0.04},
	}

	weights, err := testMarkowitz().MinVariance(mu, cov, false)
	require.NoError(t, err)

	assert.InDelta(t, 0.5, weights[0], 1e-4)
	assert.InDelta(t, 0.5, weights[1], 1e-4)
	assertBudget(t, weights)
}

func TestMinVariance_InverseVarianceClosedForm(t *testing.T) {
	// Uncorrelated assets: MVP weights are proportional to 1/σ², here
	// (25, 100/9, 50/3) normalized.
	weights, err := testMarkowitz().MinVariance(testMu, testCov, false)
	require.NoError(t, err)

	assert.InDelta(t, 0.47368, weights[0], 1e-3)
	assert.InDelta(t, 0.21053, weights[1], 1e-3)
	assert.InDelta(t, 0.31579, weights[2], 1e-3)
	assertBudget(t, weights)
	assertLongOnly(t, weights)
}

func TestMinVariance_Optimality(t *testing.T) {
	mo := testMarkowitz()
	weights, err := mo.MinVariance(testMu, testCov, false)
	require.NoError(t, err)

	sigma, err := covarianceToDense(testCov, 3)
	require.NoError(t, err)

	mvpVol, err := PortfolioVolatility(weights, sigma)
	require.NoError(t, err)

	candidates := [][]float64{
		{1.0, 0.0, 0.0},
		{0.0, 1.0, 0.0},
		{0.0, 0.0, 1.0},
		{1.0 / 3.0, 1.0 / 3.0, 1.0 / 3.0},
		{0.5, 0.25, 0.25},
		{0.2, 0.5, 0.3},
	}
	for _, candidate := range candidates {
		vol, err := PortfolioVolatility(candidate, sigma)
		require.NoError(t, err)
		assert.LessOrEqual(t, mvpVol, vol+1e-6, "MVP should have minimal volatility")
	}
}

func TestMinVariance_Idempotent(t *testing.T) {
	mo := testMarkowitz()

	first, err := mo.MinVariance(testMu, testCov, false)
	require.NoError(t, err)
	second, err := mo.MinVariance(testMu, testCov, false)
	require.NoError(t, err)

	for i := range first {
		assert.Equal(t, first[i], second[i])
	}
}

func TestTangency_ClosedForm(t *testing.T) {
	// For uncorrelated assets the unconstrained tangency weights are
	// proportional to (μ_i - rf)/σ_i²; all positive here, so the long-only
	// solution matches: (1.5, 1.111, 1.333)/3.944.
	weights, err := testMarkowitz().Tangency(testMu, testCov, 0.02, false)
	require.NoError(t, err)

	assert.InDelta(t, 0.380, weights[0], 2e-2)
	assert.InDelta(t, 0.282, weights[1], 2e-2)
	assert.InDelta(t, 0.338, weights[2], 2e-2)
	assertBudget(t, weights)
	assertLongOnly(t, weights)
}

func TestTangency_BeatsOtherPortfolios(t *testing.T) {
	const rf = 0.02
	mo := testMarkowitz()

	weights, err := mo.Tangency(testMu, testCov, rf, false)
	require.NoError(t, err)

	sigma, err := covarianceToDense(testCov, 3)
	require.NoError(t, err)

	sharpe := func(w []float64) float64 {
		vol, volErr := PortfolioVolatility(w, sigma)
		require.NoError(t, volErr)
		return (PortfolioReturn(w, testMu) - rf) / vol
	}

	best := sharpe(weights)
	for _, candidate := range [][]float64{
		{1.0, 0.0, 0.0},
		{1.0 / 3.0, 1.0 / 3.0, 1.0 / 3.0},
		{0.45, 0.20, 0.35},
	} {
		assert.GreaterOrEqual(t, best, sharpe(candidate)-1e-6)
	}
}

func TestEfficientFrontier_DefaultGrid(t *testing.T) {
	mo := testMarkowitz()

	frontier, err := mo.EfficientFrontier(testMu, testCov, FrontierOptions{
		Points:       20,
		RiskFreeRate: 0.02,
	})
	require.NoError(t, err)
	require.Len(t, frontier, 20)

	// Grid is ascending
	for i := 1; i < len(frontier); i++ {
		assert.GreaterOrEqual(t, frontier[i].TargetReturn, frontier[i-1].TargetReturn)
	}

	// The derived range is bracketed by the MVP and tangency returns, and
	// every point inside it is feasible for this well-conditioned input.
	for _, point := range frontier {
		assert.True(t, point.Feasible, "point at %v should be feasible", point.TargetReturn)
		assert.Greater(t, point.Volatility, 0.0)
	}
}

func TestEfficientFrontier_VolatilityMonotonic(t *testing.T) {
	mo := testMarkowitz()

	mvp, err := mo.MinVariance(testMu, testCov, false)
	require.NoError(t, err)
	mvpReturn := PortfolioReturn(mvp, testMu)

	frontier, err := mo.EfficientFrontier(testMu, testCov, FrontierOptions{
		Points:       15,
		RiskFreeRate: 0.02,
	})
	require.NoError(t, err)

	prev := math.Inf(-1)
	prevVol := 0.0
	for _, point := range frontier {
		if !point.Feasible || point.TargetReturn < mvpReturn {
			continue
		}
		if prev != math.Inf(-1) {
			assert.GreaterOrEqual(t, point.Volatility+1e-9, prevVol,
				"volatility must be non-decreasing above the MVP return")
		}
		prev = point.TargetReturn
		prevVol = point.Volatility
	}
}

func TestEfficientFrontier_ExplicitGrid(t *testing.T) {
	mo := testMarkowitz()

	grid := []float64{0.09, 0.10, 0.11}
	frontier, err := mo.EfficientFrontier(testMu, testCov, FrontierOptions{ReturnGrid: grid})
	require.NoError(t, err)
	require.Len(t, frontier, 3)

	for i, point := range frontier {
		assert.Equal(t, grid[i], point.TargetReturn)
		assert.True(t, point.Feasible)
	}
}

func TestEfficientFrontier_InfeasibleTargetIsMissing(t *testing.T) {
	mo := testMarkowitz()

	// 50% annual return is unreachable long-only with these assets; the
	// point must come back missing, not abort the sweep.
	frontier, err := mo.EfficientFrontier(testMu, testCov, FrontierOptions{
		ReturnGrid: []float64{0.10, 0.50},
	})
	require.NoError(t, err)
	require.Len(t, frontier, 2)

	assert.True(t, frontier[0].Feasible)
	assert.False(t, frontier[1].Feasible)
}

func TestEfficientFrontier_SinglePoint(t *testing.T) {
	mo := testMarkowitz()

	frontier, err := mo.EfficientFrontier(testMu, testCov, FrontierOptions{
		Points:       1,
		RiskFreeRate: 0.02,
	})
	require.NoError(t, err)
	require.Len(t, frontier, 1)

	mvp, err := mo.MinVariance(testMu, testCov, false)
	require.NoError(t, err)
	assert.InDelta(t, PortfolioReturn(mvp, testMu), frontier[0].TargetReturn, 1e-9)
}

func TestEfficientFrontier_ParallelMatchesSequential(t *testing.T) {
	mo := testMarkowitz()
	opts := FrontierOptions{Points: 10, RiskFreeRate: 0.02}

	sequential, err := mo.EfficientFrontier(testMu, testCov, opts)
	require.NoError(t, err)

	opts.Workers = 4
	parallel, err := mo.EfficientFrontier(testMu, testCov, opts)
	require.NoError(t, err)

	require.Len(t, parallel, len(sequential))
	for i := range sequential {
		assert.Equal(t, sequential[i].TargetReturn, parallel[i].TargetReturn)
		assert.Equal(t, sequential[i].Feasible, parallel[i].Feasible)
		assert.InDelta(t, sequential[i].Volatility, parallel[i].Volatility, 1e-12)
	}
}

func TestLinspace(t *testing.T) {
	grid := linspace(0.0, 1.0, 5)
	require.Len(t, grid, 5)
	assert.Equal(t, 0.0, grid[0])
	assert.Equal(t, 1.0, grid[4])
	assert.InDelta(t, 0.25, grid[1], 1e-12)

	single := linspace(0.3, 0.9, 1)
	require.Len(t, single, 1)
	assert.Equal(t, 0.3, single[0])
}

func TestMinVariance_NoAssets(t *testing.T) {
	_, err := testMarkowitz().MinVariance(nil, nil, false)
	require.Error(t, err)
}
