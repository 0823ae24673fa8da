package collectors

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/marketlens/marketlens/internal/bookmath"
	"github.com/marketlens/marketlens/internal/metrics"
	"github.com/marketlens/marketlens/internal/store"
	"github.com/marketlens/marketlens/internal/upstream"
)

// tokenMarketPair is one (token, market) unit of work for the order-book
// collector.
type tokenMarketPair struct {
	TokenID  string
	MarketID string
}

// OrderBookCollector fetches and records order-book ladders for every
// actively tradeable token, bounded by a shared semaphore (§4.3).
type OrderBookCollector struct {
	api         *upstream.API
	store       *store.Store
	logger      *zap.Logger
	metrics     *metrics.Metrics
	concurrency int
}

// NewOrderBookCollector constructs an OrderBookCollector with the
// configured fetch concurrency.
func NewOrderBookCollector(api *upstream.API, st *store.Store, logger *zap.Logger, m *metrics.Metrics, concurrency int) *OrderBookCollector {
	if concurrency <= 0 {
		concurrency = 5
	}
	return &OrderBookCollector{api: api, store: st, logger: logger, metrics: m, concurrency: concurrency}
}

// Run builds the active token/market pair list, fetches each book under
// the semaphore, computes metrics, and persists both the historical
// snapshot and the latest-raw ladder.
func (c *OrderBookCollector) Run(ctx context.Context) (int, error) {
	markets, err := c.store.ActiveOrderBookEnabledMarkets(ctx)
	if err != nil {
		return 0, err
	}

	var pairs []tokenMarketPair
	for _, m := range markets {
		for _, o := range m.Outcomes {
			if o.HasValidToken() {
				pairs = append(pairs, tokenMarketPair{TokenID: o.TokenID, MarketID: m.ID})
			}
		}
	}

	sem := make(chan struct{}, c.concurrency)
	var mu sync.Mutex
	var snapshots []store.OrderBookSnapshot
	var latestRaw []store.OrderBookLatestRaw
	var wg sync.WaitGroup

	for _, pair := range pairs {
		pair := pair
		wg.Add(1)
		go func() {
			defer wg.Done()
			select {
			case sem <- struct{}{}:
			case <-ctx.Done():
				return
			}
			defer func() { <-sem }()

			book, err := c.api.FetchOrderBook(ctx, pair.TokenID)
			if err != nil {
				c.logger.Warn("fetch order book failed", zap.String("token_id", pair.TokenID), zap.Error(err))
				return
			}

			bids := toMathLevels(book.Bids)
			asks := toMathLevels(book.Asks)
			metrics := bookmath.Compute(bids, asks)
			now := time.Now().UTC()

			mu.Lock()
			snapshots = append(snapshots, store.OrderBookSnapshot{
				TokenID:      pair.TokenID,
				MarketID:     pair.MarketID,
				Timestamp:    now,
				BestBid:      metrics.BestBid,
				BestAsk:      metrics.BestAsk,
				Spread:       metrics.Spread,
				SpreadPct:    metrics.SpreadPct,
				Mid:          metrics.Mid,
				BidDepth1Pct: metrics.BidDepth1Pct,
				AskDepth1Pct: metrics.AskDepth1Pct,
				BidDepth5Pct: metrics.BidDepth5Pct,
				AskDepth5Pct: metrics.AskDepth5Pct,
				Imbalance:    metrics.Imbalance,
			})
			latestRaw = append(latestRaw, store.OrderBookLatestRaw{
				TokenID:   pair.TokenID,
				MarketID:  pair.MarketID,
				Bids:      toStoreLevels(book.Bids),
				Asks:      toStoreLevels(book.Asks),
				Timestamp: now,
			})
			mu.Unlock()
		}()
	}
	wg.Wait()

	if err := c.store.AppendSnapshots(ctx, snapshots); err != nil {
		return 0, err
	}
	if err := c.store.UpsertLatestRaw(ctx, latestRaw); err != nil {
		return 0, err
	}

	c.metrics.CollectorItems.WithLabelValues("orderbooks", "fetched").Add(float64(len(snapshots)))
	if failed := len(pairs) - len(snapshots); failed > 0 {
		c.metrics.CollectorItems.WithLabelValues("orderbooks", "failed").Add(float64(failed))
	}
	c.logger.Info("order book collection complete", zap.Int("tokens", len(pairs)), zap.Int("collected", len(snapshots)))
	return len(snapshots), nil
}

func toMathLevels(levels []upstream.LevelDTO) []bookmath.Level {
	out := make([]bookmath.Level, 0, len(levels))
	for _, l := range levels {
		out = append(out, bookmath.Level{Price: l.ParsedPrice(), Size: l.ParsedSize()})
	}
	return out
}

func toStoreLevels(levels []upstream.LevelDTO) store.JSONSlice[store.Level] {
	out := make(store.JSONSlice[store.Level], 0, len(levels))
	for _, l := range levels {
		out = append(out, store.Level{Price: l.ParsedPrice(), Size: l.ParsedSize()})
	}
	return out
}
