// Package charts renders optimization results as PNG charts.
package charts

import (
	"fmt"

	"github.com/rs/zerolog"
	"github.com/vicanso/go-charts/v2"

	"github.com/aristath/frontier/internal/modules/optimization"
)

// Service renders chart images from optimization output.
type Service struct {
	log zerolog.Logger
}

// NewService creates a new charts service
func NewService(log zerolog.Logger) *Service {
	return &Service{
		log: log.With().Str("service", "charts").Logger(),
	}
}

// FrontierPNG renders the efficient frontier as a line chart: volatility per
// target return, feasible points only.
func (s *Service) FrontierPNG(frontier []optimization.FrontierPoint) ([]byte, error) {
	var xLabels []string
	var values []float64
	for _, point := range frontier {
		if !point.Feasible {
			continue
		}
		xLabels = append(xLabels, fmt.Sprintf("%.2f%%", point.TargetReturn*100))
		values = append(values, point.Volatility)
	}
	if len(values) == 0 {
		return nil, fmt.Errorf("frontier has no feasible points")
	}

	minVal, maxVal := values[0], values[0]
	for _, val := range values {
		if val < minVal {
			minVal = val
		}
		if val > maxVal {
			maxVal = val
		}
	}
	padding := (maxVal - minVal) * 0.05
	if padding == 0 {
		padding = maxVal * 0.05
	}
	yMin := minVal - padding
	yMax := maxVal + padding
	if yMin < 0 {
		yMin = 0
	}

	splitNum := len(xLabels) / 10
	if splitNum < 3 {
		splitNum = 3
	}

	p, err := charts.LineRender(
		[][]float64{values},
		charts.TitleTextOptionFunc("Efficient Frontier\nvolatility by target return"),
		charts.XAxisOptionFunc(charts.XAxisOption{
			Data:        xLabels,
			SplitNumber: splitNum,
			BoundaryGap: charts.FalseFlag(),
		}),
		charts.YAxisOptionFunc(charts.YAxisOption{
			Min:         &yMin,
			Max:         &yMax,
			DivideCount: 5,
		}),
		charts.ThemeOptionFunc(charts.ThemeLight),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to render chart: %w", err)
	}

	buf, err := p.Bytes()
	if err != nil {
		return nil, fmt.Errorf("failed to generate chart bytes: %w", err)
	}
	return buf, nil
}
