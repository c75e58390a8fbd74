package charts

import (
	"bytes"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/frontier/internal/modules/optimization"
)

var pngHeader = []byte{0x89, 'P', 'N', 'G'}

func testFrontier() []optimization.FrontierPoint {
	return []optimization.FrontierPoint{
		{TargetReturn: 0.08, Volatility: 0.12, Feasible: true},
		{TargetReturn: 0.09, Volatility: 0.13, Feasible: true},
		{TargetReturn: 0.10, Volatility: 0.15, Feasible: true},
		{TargetReturn: 0.11, Volatility: 0.18, Feasible: true},
	}
}

func TestFrontierPNG(t *testing.T) {
	svc := NewService(zerolog.Nop())

	png, err := svc.FrontierPNG(testFrontier())
	require.NoError(t, err)
	require.NotEmpty(t, png)
	assert.True(t, bytes.HasPrefix(png, pngHeader), "output should be a PNG image")
}

func TestFrontierPNG_SkipsInfeasiblePoints(t *testing.T) {
	svc := NewService(zerolog.Nop())

	frontier := append(testFrontier(), optimization.FrontierPoint{TargetReturn: 0.50})
	png, err := svc.FrontierPNG(frontier)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(png, pngHeader))
}

func TestFrontierPNG_NoFeasiblePoints(t *testing.T) {
	svc := NewService(zerolog.Nop())

	_, err := svc.FrontierPNG([]optimization.FrontierPoint{
		{TargetReturn: 0.4},
		{TargetReturn: 0.5},
	})
	require.Error(t, err)

	_, err = svc.FrontierPNG(nil)
	require.Error(t, err)
}

func TestFrontierPNG_SinglePoint(t *testing.T) {
	svc := NewService(zerolog.Nop())

	png, err := svc.FrontierPNG([]optimization.FrontierPoint{
		{TargetReturn: 0.09, Volatility: 0.15, Feasible: true},
	})
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(png, pngHeader))
}
