package scorer

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/marketlens/marketlens/internal/store"
)

func TestFreshnessPoints(t *testing.T) {
	assert.Equal(t, 30, freshnessPoints(5*time.Minute))
	assert.Equal(t, 20, freshnessPoints(20*time.Minute))
	assert.Equal(t, 0, freshnessPoints(time.Hour))
}

func TestLiquidityPoints(t *testing.T) {
	assert.Equal(t, 30, liquidityPoints(2500))
	assert.Equal(t, 20, liquidityPoints(600))
	assert.Equal(t, 0, liquidityPoints(100))
}

func TestSpreadPoints(t *testing.T) {
	assert.Equal(t, 20, spreadPoints(0.01))
	assert.Equal(t, 10, spreadPoints(0.04))
	assert.Equal(t, 0, spreadPoints(0.08))
}

func TestSignalPoints(t *testing.T) {
	assert.Equal(t, 20, signalPoints(3))
	assert.Equal(t, 10, signalPoints(1))
	assert.Equal(t, 0, signalPoints(0))
}

func TestMeetsProfileRequiresAllComponentsPositive(t *testing.T) {
	score := Score{
		Freshness: 30, Liquidity: 0, Spread: 20, SignalAlignment: 20,
		FreshnessAge: time.Minute, DepthUSD: 3000, SpreadPct: 0.01, SignalCount: 3,
	}
	assert.False(t, score.MeetsProfile(SafeProfile))
}

func TestMeetsProfileSafe(t *testing.T) {
	score := Score{
		Freshness: 30, Liquidity: 30, Spread: 20, SignalAlignment: 20,
		FreshnessAge: 10 * time.Minute, DepthUSD: 3000, SpreadPct: 0.01, SignalCount: 3,
	}
	assert.True(t, score.MeetsProfile(SafeProfile))
}

func TestMeetsProfileLearningRelaxesThresholds(t *testing.T) {
	score := Score{
		Freshness: 20, Liquidity: 20, Spread: 10, SignalAlignment: 10,
		FreshnessAge: 45 * time.Minute, DepthUSD: 350, SpreadPct: 0.06, SignalCount: 1,
	}
	assert.False(t, score.MeetsProfile(SafeProfile))
	assert.True(t, score.MeetsProfile(LearningProfile))
}

func TestSignalKindsByMarketUnionsDirectAndRelated(t *testing.T) {
	m1 := "m1"
	alerts := []store.Alert{
		{Kind: store.AlertVolumeSpike, MarketID: &m1, IsActive: true},
		{Kind: store.AlertSpread, MarketID: &m1, IsActive: true},
		{Kind: store.AlertArbitrage, RelatedMarketIDs: store.JSONSlice[string]{"m1", "m2"}, IsActive: true},
		{Kind: store.AlertArbitrage, RelatedMarketIDs: store.JSONSlice[string]{"m2"}, IsActive: true},
	}

	counts := signalKindsByMarket(alerts, []string{"m1", "m2", "m3"})
	assert.Equal(t, 3, counts["m1"]) // volume_spike, spread_alert, arbitrage
	assert.Equal(t, 1, counts["m2"])
	assert.Equal(t, 0, counts["m3"])
}

func TestAggregateTradesSeparatesBaselineAndRecent(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	trades := []store.Trade{
		{TokenID: "t1", Size: 10, Timestamp: now.Add(-2 * time.Hour)},
		{TokenID: "t1", Size: 5, Timestamp: now.Add(-30 * time.Minute)},
	}
	agg, latest := aggregateTrades(trades, now)
	assert.InDelta(t, 10, agg["t1"].baselineVol, 1e-9)
	assert.InDelta(t, 5, agg["t1"].recentVol, 1e-9)
	assert.Equal(t, now.Add(-30*time.Minute), latest["t1"])
}
