package analyzers

import (
	"context"
	"time"

	"go.uber.org/fx"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/marketlens/marketlens/internal/config"
	"github.com/marketlens/marketlens/internal/metrics"
	"github.com/marketlens/marketlens/internal/store"
)

// Module provides every analyzer and the Engine that fans out across them.
var Module = fx.Options(
	fx.Provide(func(st *store.Store, logger *zap.Logger, cfg *config.Config) *VolumeAnalyzer {
		return NewVolumeAnalyzer(st, logger, cfg.Analysis.VolumeSpikeThreshold)
	}),
	fx.Provide(func(st *store.Store, logger *zap.Logger, cfg *config.Config) *SpreadAnalyzer {
		return NewSpreadAnalyzer(st, logger, cfg.Analysis.SpreadAlertThreshold)
	}),
	fx.Provide(func(st *store.Store, logger *zap.Logger) *MMPullbackAnalyzer {
		return NewMMPullbackAnalyzer(st, logger, 0)
	}),
	fx.Provide(func(st *store.Store, logger *zap.Logger, cfg *config.Config) *IntraMarketAnalyzer {
		return NewIntraMarketAnalyzer(st, logger, cfg.Analysis.ArbitrageMinProfit)
	}),
	fx.Provide(func(st *store.Store, logger *zap.Logger, cfg *config.Config) *CrossMarketAnalyzer {
		return NewCrossMarketAnalyzer(st, logger, cfg.Analysis.ArbitrageMinProfit, cfg.Analysis.ArbMinLiquidity)
	}),
	fx.Provide(NewEngine),
)

// Engine runs every analyzer as part of one run_analysis job, isolating
// each analyzer's failure from the others (§4.8).
type Engine struct {
	volume      *VolumeAnalyzer
	spread      *SpreadAnalyzer
	mmPullback  *MMPullbackAnalyzer
	intraMarket *IntraMarketAnalyzer
	crossMarket *CrossMarketAnalyzer
	logger      *zap.Logger
	metrics     *metrics.Metrics
}

// NewEngine wires the five analyzers into one orchestrator.
func NewEngine(volume *VolumeAnalyzer, spread *SpreadAnalyzer, mmPullback *MMPullbackAnalyzer, intraMarket *IntraMarketAnalyzer, crossMarket *CrossMarketAnalyzer, logger *zap.Logger, m *metrics.Metrics) *Engine {
	return &Engine{
		volume:      volume,
		spread:      spread,
		mmPullback:  mmPullback,
		intraMarket: intraMarket,
		crossMarket: crossMarket,
		logger:      logger,
		metrics:     m,
	}
}

// Result reports per-analyzer outcome; a failing analyzer does not stop
// the others from running.
type Result struct {
	Name    string
	Created int
	Err     error
}

// RunAll runs every analyzer concurrently and returns one Result per
// analyzer, regardless of whether any of them failed.
func (e *Engine) RunAll(ctx context.Context, now time.Time) []Result {
	type job struct {
		name string
		run  func(context.Context, time.Time) (int, error)
	}
	jobs := []job{
		{"volume", e.volume.Run},
		{"spread", e.spread.Run},
		{"mm_pullback", e.mmPullback.Run},
		{"intra_market_arb", e.intraMarket.Run},
		{"cross_market_arb", e.crossMarket.Run},
	}

	results := make([]Result, len(jobs))
	g, gctx := errgroup.WithContext(ctx)
	for i, j := range jobs {
		i, j := i, j
		g.Go(func() error {
			created, err := j.run(gctx, now)
			results[i] = Result{Name: j.name, Created: created, Err: err}
			if err != nil {
				e.logger.Error("analyzer failed", zap.String("analyzer", j.name), zap.Error(err))
				return nil
			}
			if created > 0 {
				e.metrics.AnalyzerAlerts.WithLabelValues(j.name).Add(float64(created))
			}
			return nil
		})
	}
	_ = g.Wait()
	return results
}
