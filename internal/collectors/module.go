package collectors

import (
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/marketlens/marketlens/internal/config"
	"github.com/marketlens/marketlens/internal/metrics"
	"github.com/marketlens/marketlens/internal/store"
	"github.com/marketlens/marketlens/internal/upstream"
)

// Module provides every collector, sized from Config.
var Module = fx.Options(
	fx.Provide(NewMarketCollector),
	fx.Provide(func(api *upstream.API, st *store.Store, logger *zap.Logger, m *metrics.Metrics, cfg *config.Config) *OrderBookCollector {
		return NewOrderBookCollector(api, st, logger, m, cfg.Upstream.OrderbookConcurrency)
	}),
	fx.Provide(func(api *upstream.API, st *store.Store, logger *zap.Logger, m *metrics.Metrics, cfg *config.Config) *TradeCollector {
		return NewTradeCollector(api, st, logger, m, cfg.Upstream.TradeLookback, cfg.Upstream.TradeDebugDumpDir)
	}),
)
