package analyzers

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/marketlens/marketlens/internal/store"
)

func TestPriceForSideUsesFreshSnapshot(t *testing.T) {
	now := time.Now()
	snap := &store.OrderBookSnapshot{
		Timestamp:     now.Add(-time.Minute),
		BestBid:       0.40,
		BestAsk:       0.42,
		AskDepth1Pct:  500,
		BidDepth1Pct:  450,
	}

	buy := PriceForSide(snap, 0.35, SideBuy, now)
	assert.Equal(t, 0.42, buy.Price)
	assert.Equal(t, SourceOrderBook, buy.Source)
	assert.True(t, buy.Fresh)

	sell := PriceForSide(snap, 0.35, SideSell, now)
	assert.Equal(t, 0.40, sell.Price)
	assert.Equal(t, SourceOrderBook, sell.Source)
}

func TestPriceForSideFallsBackWhenStale(t *testing.T) {
	now := time.Now()
	snap := &store.OrderBookSnapshot{
		Timestamp: now.Add(-time.Hour),
		BestAsk:   0.42,
	}

	quote := PriceForSide(snap, 0.35, SideBuy, now)
	assert.Equal(t, 0.35, quote.Price)
	assert.Equal(t, SourceCachedOutcome, quote.Source)
	assert.False(t, quote.Fresh)
}

func TestPriceForSideFallsBackWhenNilSnapshot(t *testing.T) {
	quote := PriceForSide(nil, 0.5, SideSell, time.Now())
	assert.Equal(t, 0.5, quote.Price)
	assert.Equal(t, SourceCachedOutcome, quote.Source)
}

func TestYesOutcomePrefersExactMatch(t *testing.T) {
	outcomes := []store.Outcome{
		{Name: "No", TokenID: "t1", Price: 0.6},
		{Name: "Yes", TokenID: "t2", Price: 0.4},
	}
	o, ok, assumed := YesOutcome(outcomes)
	assert.True(t, ok)
	assert.False(t, assumed)
	assert.Equal(t, "t2", o.TokenID)
}

func TestYesOutcomeFallsBackToFirst(t *testing.T) {
	outcomes := []store.Outcome{
		{Name: "Team A", TokenID: "t1", Price: 0.6},
		{Name: "Team B", TokenID: "t2", Price: 0.4},
	}
	o, ok, assumed := YesOutcome(outcomes)
	assert.True(t, ok)
	assert.True(t, assumed)
	assert.Equal(t, "t1", o.TokenID)
}

func TestYesOutcomeEmpty(t *testing.T) {
	_, ok, _ := YesOutcome(nil)
	assert.False(t, ok)
}
