package bookmath

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestComputeBasicSpread(t *testing.T) {
	bids := []Level{{Price: 0.48, Size: 100}}
	asks := []Level{{Price: 0.52, Size: 100}}

	m := Compute(bids, asks)
	assert.Equal(t, 0.48, m.BestBid)
	assert.Equal(t, 0.52, m.BestAsk)
	assert.InDelta(t, 0.04, m.Spread, 1e-9)
	assert.InDelta(t, 0.50, m.Mid, 1e-9)
	assert.InDelta(t, 0.08, m.SpreadPct, 1e-9)
}

func TestComputeSkipsInvalidLevels(t *testing.T) {
	bids := []Level{{Price: 0, Size: 100}, {Price: 0.40, Size: 0}, {Price: 0.45, Size: 50}}
	asks := []Level{{Price: 0.55, Size: 20}}

	m := Compute(bids, asks)
	assert.Equal(t, 0.45, m.BestBid)
	assert.Equal(t, 0.55, m.BestAsk)
}

func TestDepthUnitCorrectness(t *testing.T) {
	// §8 scenario 6: bids [(0.50,100),(0.49,200)].
	bids := []Level{{Price: 0.50, Size: 100}, {Price: 0.49, Size: 200}}

	depth1 := DepthDollars(bids, 0.50, 0.01, true)
	assert.InDelta(t, 50.0, depth1, 1e-9)

	depth5 := DepthDollars(bids, 0.50, 0.05, true)
	assert.InDelta(t, 148.0, depth5, 1e-9)
}

func TestImbalanceBalancedWhenBothSidesEmpty(t *testing.T) {
	m := Compute(nil, nil)
	assert.Equal(t, 0.0, m.Imbalance)
	assert.False(t, m.HasBid)
	assert.False(t, m.HasAsk)
}

func TestImbalanceSign(t *testing.T) {
	bids := []Level{{Price: 0.50, Size: 1000}}
	asks := []Level{{Price: 0.51, Size: 10}}

	m := Compute(bids, asks)
	assert.Greater(t, m.Imbalance, 0.0)
}

func TestComputeSlippage(t *testing.T) {
	// §8 scenario 5: asks [(0.52,100),(0.53,200),(0.54,300)], buy $250.
	asks := []Level{
		{Price: 0.52, Size: 100},
		{Price: 0.53, Size: 200},
		{Price: 0.54, Size: 300},
	}

	s := ComputeSlippage(asks, 250)

	assert.InDelta(t, 250.0, s.FilledDollars, 1e-6)
	assert.InDelta(t, 470.37, s.FilledShares, 0.01)
	assert.InDelta(t, 0.5315, s.ExpectedPrice, 0.001)
	assert.InDelta(t, 0.022, s.SlippagePct, 0.002)
	assert.Equal(t, 3, s.LevelsConsumed)
	assert.InDelta(t, 0.0, s.UnfilledDollars, 1e-9)
}

func TestComputeSlippageRunsOutOfBook(t *testing.T) {
	asks := []Level{{Price: 0.50, Size: 10}}

	s := ComputeSlippage(asks, 100)

	assert.InDelta(t, 5.0, s.FilledDollars, 1e-9)
	assert.InDelta(t, 95.0, s.UnfilledDollars, 1e-9)
	assert.InDelta(t, 10.0, s.FilledShares, 1e-9)
}

func TestComputeSlippageZeroAmount(t *testing.T) {
	asks := []Level{{Price: 0.50, Size: 10}}
	s := ComputeSlippage(asks, 0)
	assert.Equal(t, 0.0, s.FilledDollars)
	assert.Equal(t, 0, s.LevelsConsumed)
}
