package optimization

import "errors"

// Error kinds surfaced by the optimization core. Callers discriminate with
// errors.Is; every error returned by this package wraps exactly one of these.
var (
	// ErrOptimizationFailed means the nonlinear solve did not reach a feasible
	// stationary point within its iteration budget. Recoverable: retry with a
	// different initial guess, relax bounds, or surface to the user.
	ErrOptimizationFailed = errors.New("optimization failed")

	// ErrDegenerateInput means a portfolio volatility (or other ratio
	// denominator) is numerically indistinguishable from zero, making
	// Sharpe/diversification/risk-contribution ratios undefined.
	ErrDegenerateInput = errors.New("degenerate input")

	// ErrNumeric means the covariance matrix violates the positive
	// semi-definiteness assumption (negative variance beyond tolerance).
	// Indicates malformed upstream statistics.
	ErrNumeric = errors.New("numeric error")
)
