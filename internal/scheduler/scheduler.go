// Package scheduler runs the process's periodic jobs and startup
// one-shots on a small internal ticker registry. Built directly on the
// standard library's time.Ticker, coordinated by context cancellation
// the way the rest of the module's goroutines are.
package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/marketlens/marketlens/internal/analyzers"
	"github.com/marketlens/marketlens/internal/apperrors"
	"github.com/marketlens/marketlens/internal/collectors"
	"github.com/marketlens/marketlens/internal/config"
	"github.com/marketlens/marketlens/internal/metrics"
	"github.com/marketlens/marketlens/internal/retention"
	"github.com/marketlens/marketlens/internal/store"
)

// Job ids, matching the JobRun.job_id values the read API's health
// surface keys its staleness checks on (§4.8, §6).
const (
	JobCollectMarkets    = "collect_markets"
	JobCollectOrderBooks = "collect_orderbooks"
	JobCollectTrades     = "collect_trades"
	JobRunAnalysis       = "run_analysis"
	JobAggregateVolume   = "aggregate_volume"
	JobCleanupOldData    = "cleanup_old_data"
)

// job pairs a periodic job id with its interval and invocation.
type job struct {
	id       string
	interval time.Duration
	run      func(context.Context) (int, error)
}

// oneShot runs once, delay after scheduler start.
type oneShot struct {
	id    string
	delay time.Duration
	run   func(context.Context) (int, error)
}

// Scheduler owns every periodic job and startup one-shot for the
// process, gated entirely by Config.Scheduler.Enabled (§5: exactly one
// deployed process runs the scheduler; the rest serve reads only).
type Scheduler struct {
	store   *store.Store
	logger  *zap.Logger
	metrics *metrics.Metrics
	cfg     *config.Config

	jobs     []job
	oneShots []oneShot

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New wires every collector/analyzer/retention invocation into its job
// definition. The scheduler itself holds no business logic — it is
// purely the ticker registry and the JobRun bookkeeping wrapper.
func New(
	st *store.Store,
	logger *zap.Logger,
	m *metrics.Metrics,
	cfg *config.Config,
	marketCollector *collectors.MarketCollector,
	orderBookCollector *collectors.OrderBookCollector,
	tradeCollector *collectors.TradeCollector,
	engine *analyzers.Engine,
	sweeper *retention.Sweeper,
) *Scheduler {
	collectInterval := cfg.Scheduler.CollectInterval
	if collectInterval <= 0 {
		collectInterval = 15 * time.Minute
	}
	tradeInterval := cfg.Scheduler.TradeInterval
	if tradeInterval <= 0 {
		tradeInterval = 5 * time.Minute
	}
	analysisInterval := cfg.Scheduler.AnalysisInterval
	if analysisInterval <= 0 {
		analysisInterval = 15 * time.Minute
	}
	volumeAggInterval := cfg.Scheduler.VolumeAggInterval
	if volumeAggInterval <= 0 {
		volumeAggInterval = time.Hour
	}
	cleanupInterval := cfg.Scheduler.CleanupInterval
	if cleanupInterval <= 0 {
		cleanupInterval = 24 * time.Hour
	}

	s := &Scheduler{store: st, logger: logger, metrics: m, cfg: cfg}

	s.jobs = []job{
		{
			id:       JobCollectMarkets,
			interval: collectInterval,
			run:      func(ctx context.Context) (int, error) { return marketCollector.Run(ctx) },
		},
		{
			id:       JobCollectOrderBooks,
			interval: collectInterval,
			run:      func(ctx context.Context) (int, error) { return orderBookCollector.Run(ctx) },
		},
		{
			id:       JobCollectTrades,
			interval: tradeInterval,
			run: func(ctx context.Context) (int, error) {
				result, err := tradeCollector.Run(ctx)
				return result.Inserted, err
			},
		},
		{
			id:       JobRunAnalysis,
			interval: analysisInterval,
			run:      func(ctx context.Context) (int, error) { return runAnalysis(ctx, engine) },
		},
		{
			id:       JobAggregateVolume,
			interval: volumeAggInterval,
			run:      func(ctx context.Context) (int, error) { return runVolumeAggregation(ctx, st) },
		},
		{
			id:       JobCleanupOldData,
			interval: cleanupInterval,
			run:      func(ctx context.Context) (int, error) { return sweeper.Run(ctx, time.Now().UTC()) },
		},
	}

	s.oneShots = []oneShot{
		{id: JobCollectMarkets, delay: 5 * time.Second, run: s.jobs[0].run},
		{id: JobCollectOrderBooks, delay: 45 * time.Second, run: s.jobs[1].run},
		{id: JobCollectTrades, delay: 60 * time.Second, run: s.jobs[2].run},
	}

	return s
}

// Start launches every periodic job's ticker loop and every one-shot's
// delayed invocation. It is a no-op unless Config.Scheduler.Enabled,
// since only one deployed process should own the schedule (§5).
func (s *Scheduler) Start(ctx context.Context) {
	if !s.cfg.Scheduler.Enabled {
		s.logger.Info("scheduler disabled, not starting jobs")
		return
	}

	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	for _, j := range s.jobs {
		j := j
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.loop(runCtx, j)
		}()
	}
	for _, o := range s.oneShots {
		o := o
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			select {
			case <-time.After(o.delay):
				s.runJob(runCtx, o.id, o.run)
			case <-runCtx.Done():
			}
		}()
	}
}

// Stop cancels every running job loop. Shutdown is non-waiting: an
// in-flight job invocation completes or is abandoned, it is not
// awaited (§5 Cancellation/timeouts).
func (s *Scheduler) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
}

// loop ticks job.id at job.interval until ctx is cancelled.
func (s *Scheduler) loop(ctx context.Context, j job) {
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.runJob(ctx, j.id, j.run)
		}
	}
}

// runJob is the context manager every job invocation runs inside: it
// records a running JobRun, logs with the run id, and transitions the
// run to success or failed on completion (§4.8).
func (s *Scheduler) runJob(ctx context.Context, jobID string, run func(context.Context) (int, error)) {
	runID := uuid.NewString()
	started := time.Now().UTC()
	logger := s.logger.With(zap.String("job_id", jobID), zap.String("run_id", runID))

	if err := s.store.StartJobRun(ctx, store.JobRun{ID: runID, JobID: jobID, StartedAt: started}); err != nil {
		logger.Error("failed to record job run start", zap.Error(err))
	}
	logger.Info("job started")

	processed, err := run(ctx)
	completed := time.Now().UTC()
	s.metrics.JobDuration.WithLabelValues(jobID).Observe(completed.Sub(started).Seconds())

	if err != nil {
		msg := apperrors.Truncate(err.Error(), 500)
		if ferr := s.store.FailJobRun(ctx, runID, completed, msg); ferr != nil {
			logger.Error("failed to record job run failure", zap.Error(ferr))
		}
		s.metrics.JobRuns.WithLabelValues(jobID, "failed").Inc()
		logger.Error("job failed", zap.Error(err))
		return
	}

	if cerr := s.store.CompleteJobRun(ctx, runID, completed, processed); cerr != nil {
		logger.Error("failed to record job run completion", zap.Error(cerr))
	}
	s.metrics.JobRuns.WithLabelValues(jobID, "success").Inc()
	logger.Info("job completed", zap.Int("records_processed", processed))
}

// runAnalysis fans out across every analyzer and aggregates their
// created-alert counts; a per-analyzer failure is isolated and logged
// by Engine.RunAll, so this job is never marked failed because one
// analyzer errored (§4.8, §7).
func runAnalysis(ctx context.Context, engine *analyzers.Engine) (int, error) {
	results := engine.RunAll(ctx, time.Now().UTC())
	total := 0
	for _, r := range results {
		total += r.Created
	}
	return total, nil
}

// runVolumeAggregation recomputes the just-completed hourly bucket and,
// when the current tick lands at or just after UTC midnight,
// additionally recomputes the completed prior day's bucket (§4.8).
func runVolumeAggregation(ctx context.Context, st *store.Store) (int, error) {
	now := time.Now().UTC()
	hourStart := now.Truncate(time.Hour).Add(-time.Hour)

	total, err := aggregateVolume(ctx, st, store.PeriodHour, hourStart, time.Hour)
	if err != nil {
		return total, err
	}

	if now.Hour() == 0 {
		dayStart := time.Date(now.Year(), now.Month(), now.Day()-1, 0, 0, 0, 0, time.UTC)
		dayCount, err := aggregateVolume(ctx, st, store.PeriodDay, dayStart, 24*time.Hour)
		if err != nil {
			return total, err
		}
		total += dayCount
	}
	return total, nil
}
