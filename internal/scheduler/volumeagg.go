package scheduler

import (
	"context"
	"time"

	"github.com/marketlens/marketlens/internal/store"
)

// aggregateVolume recomputes one completed period's VolumeStats bucket
// per tracked token over [periodStart, periodStart+period), run hourly
// and, at UTC midnight, additionally for the completed prior day
// (§4.8).
func aggregateVolume(ctx context.Context, st *store.Store, periodType store.PeriodType, periodStart time.Time, period time.Duration) (int, error) {
	markets, err := st.ActiveMarkets(ctx)
	if err != nil {
		return 0, err
	}

	var tokens []string
	for _, m := range markets {
		for _, o := range m.Outcomes {
			if o.HasValidToken() {
				tokens = append(tokens, o.TokenID)
			}
		}
	}
	if len(tokens) == 0 {
		return 0, nil
	}

	trades, err := st.TradesSince(ctx, tokens, periodStart)
	if err != nil {
		return 0, err
	}

	periodEnd := periodStart.Add(period)
	byToken := make(map[string][]store.Trade)
	for _, t := range trades {
		if t.Timestamp.Before(periodEnd) {
			byToken[t.TokenID] = append(byToken[t.TokenID], t)
		}
	}

	stats := make([]store.VolumeStats, 0, len(byToken))
	for tokenID, bucket := range byToken {
		stats = append(stats, bucketStats(tokenID, periodType, periodStart, bucket))
	}

	if err := st.UpsertVolumeStats(ctx, stats); err != nil {
		return 0, err
	}
	return len(stats), nil
}

// bucketStats reduces a set of trades already known to fall within one
// window into the OHLC/volume summary row for that window. Trades
// arrive ordered oldest-first (TradesSince's contract), so the first
// and last entries give open/close directly.
func bucketStats(tokenID string, periodType store.PeriodType, periodStart time.Time, trades []store.Trade) store.VolumeStats {
	stats := store.VolumeStats{
		TokenID:     tokenID,
		PeriodType:  periodType,
		PeriodStart: periodStart,
		TradeCount:  len(trades),
	}
	if len(trades) == 0 {
		return stats
	}

	stats.OpenPrice = trades[0].Price
	stats.ClosePrice = trades[len(trades)-1].Price
	stats.HighPrice = trades[0].Price
	stats.LowPrice = trades[0].Price

	var totalSize float64
	for _, t := range trades {
		stats.Volume += t.Size
		totalSize += t.Size
		if t.Price > stats.HighPrice {
			stats.HighPrice = t.Price
		}
		if t.Price < stats.LowPrice {
			stats.LowPrice = t.Price
		}
		if t.Side != nil {
			switch *t.Side {
			case "buy":
				stats.BuyVolume += t.Size
			case "sell":
				stats.SellVolume += t.Size
			}
		}
	}
	stats.AvgSize = totalSize / float64(len(trades))
	return stats
}
