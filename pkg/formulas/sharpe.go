package formulas

import "math"

// SharpeRatio calculates the Sharpe ratio from annualized figures.
//
// Sharpe Ratio Formula:
//
//	Sharpe = (Portfolio Return - Risk-free Rate) / Portfolio Volatility
//
// Args:
//
//	annualReturn: Annualized expected return (as decimal)
//	annualVol: Annualized volatility (as decimal)
//	riskFreeRate: Risk-free rate (annual, as decimal, e.g., 0.02 for 2%)
//
// Returns:
//
//	Sharpe ratio or nil when volatility is zero
func SharpeRatio(annualReturn, annualVol, riskFreeRate float64) *float64 {
	if annualVol == 0 {
		return nil
	}
	sharpe := (annualReturn - riskFreeRate) / annualVol
	return &sharpe
}

// CalculateSharpeRatio calculates the Sharpe ratio from periodic returns.
//
// Annualized: Sharpe × sqrt(periods per year) for periodic returns
//
// Args:
//
//	returns: Array of periodic returns (daily, monthly, etc.)
//	riskFreeRate: Risk-free rate (annual, as decimal)
//	periodsPerYear: Number of periods per year (252 for daily, 12 for monthly)
//
// Returns:
//
//	Sharpe ratio or nil if insufficient data
func CalculateSharpeRatio(returns []float64, riskFreeRate float64, periodsPerYear int) *float64 {
	if len(returns) < 2 {
		return nil
	}

	meanReturn := Mean(returns)

	stdDev := StdDev(returns)
	if stdDev == 0 {
		return nil
	}

	periodicRiskFree := riskFreeRate / float64(periodsPerYear)

	sharpe := (meanReturn - periodicRiskFree) / stdDev

	annualizedSharpe := sharpe * math.Sqrt(float64(periodsPerYear))

	return &annualizedSharpe
}
