// Package collectors fetches upstream state and persists it through the
// store, one collector per upstream concern (§4.3).
package collectors

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/marketlens/marketlens/internal/metrics"
	"github.com/marketlens/marketlens/internal/store"
	"github.com/marketlens/marketlens/internal/upstream"
)

// MarketCollector refreshes market metadata from the Gamma API.
type MarketCollector struct {
	api     *upstream.API
	store   *store.Store
	logger  *zap.Logger
	metrics *metrics.Metrics
}

// NewMarketCollector constructs a MarketCollector.
func NewMarketCollector(api *upstream.API, st *store.Store, logger *zap.Logger, m *metrics.Metrics) *MarketCollector {
	return &MarketCollector{api: api, store: st, logger: logger, metrics: m}
}

// Run fetches every active market, derives outcomes/order-book eligibility,
// and upserts the result, returning the number of markets processed (§4.3).
func (c *MarketCollector) Run(ctx context.Context) (int, error) {
	dtos, err := c.api.FetchAllMarkets(ctx)
	if err != nil {
		return 0, err
	}

	markets := make([]store.Market, 0, len(dtos))
	now := time.Now().UTC()
	for _, dto := range dtos {
		id := dto.ID
		if id == "" {
			id = dto.ConditionID
		}
		if id == "" {
			continue
		}

		outcomes := make(store.JSONSlice[store.Outcome], 0, len(dto.DeriveOutcomes()))
		for _, o := range dto.DeriveOutcomes() {
			if len(o.TokenID) < 10 {
				continue
			}
			outcomes = append(outcomes, store.Outcome{Name: o.Name, TokenID: o.TokenID, Price: o.Price})
		}

		hasValidTokens := len(outcomes) > 0
		active := upstream.BoolOr(dto.Active, true)
		closed := upstream.BoolOr(dto.Closed, false)
		acceptingOrders := upstream.BoolOr(dto.AcceptingOrders, true)
		upstreamEnableOB := upstream.BoolOr(dto.EnableOrderBook, true)

		enableOrderBook := hasValidTokens && upstreamEnableOB && acceptingOrders && !closed

		markets = append(markets, store.Market{
			ID:              id,
			Question:        dto.Question,
			EndDate:         dto.ParseEndDate(),
			Active:          active,
			EnableOrderBook: enableOrderBook,
			Volume:          dto.EffectiveVolume(),
			Liquidity:       dto.EffectiveLiquidity(),
			Category:        dto.Category,
			Outcomes:        outcomes,
			UpdatedAt:       now,
		})
	}

	if err := c.store.UpsertMarkets(ctx, markets); err != nil {
		return 0, err
	}

	c.metrics.CollectorItems.WithLabelValues("markets", "upserted").Add(float64(len(markets)))
	c.logger.Info("market sync complete", zap.Int("markets", len(markets)))
	return len(markets), nil
}
