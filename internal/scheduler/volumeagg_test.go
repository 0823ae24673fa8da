package scheduler

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/marketlens/marketlens/internal/store"
)

func sideOf(v string) *string { return &v }

func TestBucketStatsComputesOHLCAndVolume(t *testing.T) {
	periodStart := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	trades := []store.Trade{
		{TokenID: "t1", Price: 0.40, Size: 10, Side: sideOf("buy"), Timestamp: periodStart.Add(time.Minute)},
		{TokenID: "t1", Price: 0.45, Size: 20, Side: sideOf("sell"), Timestamp: periodStart.Add(2 * time.Minute)},
		{TokenID: "t1", Price: 0.38, Size: 5, Side: sideOf("buy"), Timestamp: periodStart.Add(3 * time.Minute)},
	}

	stats := bucketStats("t1", store.PeriodHour, periodStart, trades)

	assert.Equal(t, "t1", stats.TokenID)
	assert.Equal(t, 3, stats.TradeCount)
	assert.InDelta(t, 0.40, stats.OpenPrice, 1e-9)
	assert.InDelta(t, 0.38, stats.ClosePrice, 1e-9)
	assert.InDelta(t, 0.45, stats.HighPrice, 1e-9)
	assert.InDelta(t, 0.38, stats.LowPrice, 1e-9)
	assert.InDelta(t, 35, stats.Volume, 1e-9)
	assert.InDelta(t, 15, stats.BuyVolume, 1e-9)
	assert.InDelta(t, 20, stats.SellVolume, 1e-9)
	assert.InDelta(t, 35.0/3.0, stats.AvgSize, 1e-9)
}

func TestBucketStatsEmptyTrades(t *testing.T) {
	periodStart := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	stats := bucketStats("t1", store.PeriodHour, periodStart, nil)
	assert.Equal(t, 0, stats.TradeCount)
	assert.Zero(t, stats.Volume)
}
