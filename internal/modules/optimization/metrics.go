// Package optimization provides the constrained portfolio optimization core:
// minimum variance, tangency (max Sharpe), risk parity, maximum
// diversification, and the mean-variance efficient frontier sweep.
package optimization

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

const (
	// psdTolerance bounds how negative w'Σw may go before we treat the
	// covariance matrix as non-PSD instead of attributing it to rounding.
	psdTolerance = 1e-10

	// volEpsilon is the volatility below which ratio denominators are
	// considered degenerate.
	volEpsilon = 1e-9
)

// PortfolioReturn computes the expected portfolio return μ'w.
func PortfolioReturn(weights, mu []float64) float64 {
	var ret float64
	for i := range weights {
		ret += mu[i] * weights[i]
	}
	return ret
}

// PortfolioVolatility computes sqrt(w'Σw). A radicand more negative than the
// PSD tolerance means the covariance matrix is malformed upstream and is
// reported rather than clamped.
func PortfolioVolatility(weights []float64, sigma *mat.Dense) (float64, error) {
	variance := portfolioVariance(weights, sigma)
	if variance < -psdTolerance {
		return 0, fmt.Errorf("%w: covariance matrix is not positive semi-definite (w'Σw = %g)", ErrNumeric, variance)
	}
	if variance < 0 {
		variance = 0
	}
	return math.Sqrt(variance), nil
}

// MarginalRiskContributions computes the marginal risk vector Σw.
func MarginalRiskContributions(weights []float64, sigma *mat.Dense) []float64 {
	n := len(weights)
	marginal := make([]float64, n)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			marginal[i] += sigma.At(i, j) * weights[j]
		}
	}
	return marginal
}

// RiskContributions computes per-asset risk contributions
// RC_i = w_i * (Σw)_i / sqrt(w'Σw). A near-zero portfolio volatility makes
// the ratio undefined; that is detected before dividing.
func RiskContributions(weights []float64, sigma *mat.Dense) ([]float64, error) {
	vol, err := PortfolioVolatility(weights, sigma)
	if err != nil {
		return nil, err
	}
	if vol < volEpsilon {
		return nil, fmt.Errorf("%w: portfolio volatility %g is too close to zero for risk contributions", ErrDegenerateInput, vol)
	}

	marginal := MarginalRiskContributions(weights, sigma)
	contrib := make([]float64, len(weights))
	for i := range weights {
		contrib[i] = weights[i] * marginal[i] / vol
	}
	return contrib, nil
}

func portfolioVariance(weights []float64, sigma *mat.Dense) float64 {
	var variance float64
	n := len(weights)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			variance += weights[i] * weights[j] * sigma.At(i, j)
		}
	}
	return variance
}

// covarianceToDense validates the covariance matrix shape and copies it into
// a gonum matrix. Zero-variance assets are rejected up front because they
// make every ratio objective undefined.
func covarianceToDense(covMatrix [][]float64, n int) (*mat.Dense, error) {
	if len(covMatrix) != n {
		return nil, fmt.Errorf("covariance matrix size %d does not match asset count %d", len(covMatrix), n)
	}
	for i := range covMatrix {
		if len(covMatrix[i]) != n {
			return nil, fmt.Errorf("covariance matrix row %d has size %d, expected %d", i, len(covMatrix[i]), n)
		}
	}

	sigma := mat.NewDense(n, n, nil)
	for i := 0; i < n; i++ {
		if covMatrix[i][i] < 0 {
			return nil, fmt.Errorf("%w: negative variance %g for asset %d", ErrNumeric, covMatrix[i][i], i)
		}
		if covMatrix[i][i] < volEpsilon*volEpsilon {
			return nil, fmt.Errorf("%w: asset %d has (near-)zero variance", ErrDegenerateInput, i)
		}
		for j := 0; j < n; j++ {
			sigma.Set(i, j, covMatrix[i][j])
		}
	}
	return sigma, nil
}

// uniformWeights returns the 1/n vector used as the default initial guess.
func uniformWeights(n int) []float64 {
	w := make([]float64, n)
	for i := range w {
		w[i] = 1.0 / float64(n)
	}
	return w
}
