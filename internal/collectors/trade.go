package collectors

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/klauspost/compress/gzip"
	"github.com/segmentio/ksuid"
	"go.uber.org/zap"

	"github.com/marketlens/marketlens/internal/metrics"
	"github.com/marketlens/marketlens/internal/store"
	"github.com/marketlens/marketlens/internal/upstream"
)

// TradeCollector pulls recent trades from the single upstream "recent
// trades" endpoint and persists the ones relevant to tracked tokens
// (§4.3).
type TradeCollector struct {
	api          *upstream.API
	store        *store.Store
	logger       *zap.Logger
	metrics      *metrics.Metrics
	lookback     time.Duration
	debugDumpDir string
}

// NewTradeCollector constructs a TradeCollector. debugDumpDir, when
// non-empty, enables a gzip-compressed dump of each raw recent-trades
// response for offline replay; it is off by default.
func NewTradeCollector(api *upstream.API, st *store.Store, logger *zap.Logger, m *metrics.Metrics, lookback time.Duration, debugDumpDir string) *TradeCollector {
	if lookback <= 0 {
		lookback = 10 * time.Minute
	}
	return &TradeCollector{api: api, store: st, logger: logger, metrics: m, lookback: lookback, debugDumpDir: debugDumpDir}
}

// Run fetches the recent-trades page set once, filters locally to the
// tracked token set / lookback window / validity predicate, deduplicates
// in-memory (generating a fallback id when the upstream omits one), and
// bulk-inserts the result.
func (c *TradeCollector) Run(ctx context.Context) (store.TradeInsertResult, error) {
	markets, err := c.store.ActiveMarkets(ctx)
	if err != nil {
		return store.TradeInsertResult{}, err
	}
	tracked := make(map[string]string, len(markets)) // token_id -> market_id
	for _, m := range markets {
		for _, o := range m.Outcomes {
			if o.HasValidToken() {
				tracked[o.TokenID] = m.ID
			}
		}
	}

	raw, err := c.api.FetchRecentTrades(ctx)
	if err != nil {
		return store.TradeInsertResult{}, err
	}

	runID := ksuid.New().String()
	c.dumpRawDebug(runID, raw)
	cutoff := time.Now().UTC().Add(-c.lookback)
	maxFuture := time.Now().UTC().Add(time.Hour)

	seen := make(map[string]bool, len(raw))
	trades := make([]store.Trade, 0, len(raw))

	for _, t := range raw {
		marketID, ok := tracked[t.TokenID()]
		if !ok {
			continue
		}
		ts := t.ParsedTimestamp()
		if ts.Before(cutoff) {
			continue
		}
		if !isValidTrade(t, ts, maxFuture) {
			continue
		}

		id := t.ID
		if id == "" {
			id = fallbackTradeID(t, ts)
		}
		if seen[id] {
			continue
		}
		seen[id] = true

		side := t.NormalizedSide()
		var sidePtr *string
		if side != "" {
			sidePtr = &side
		}
		var maker, taker *string
		if t.Maker != "" {
			maker = &t.Maker
		}
		if t.Taker != "" {
			taker = &t.Taker
		}

		trades = append(trades, store.Trade{
			ID:        id,
			TokenID:   t.TokenID(),
			MarketID:  marketID,
			Price:     t.ParsedPrice(),
			Size:      t.ParsedSize(),
			Side:      sidePtr,
			Timestamp: ts,
			Maker:     maker,
			Taker:     taker,
		})
	}

	result, err := c.store.InsertTrades(ctx, trades)
	if err != nil {
		return result, err
	}

	c.metrics.CollectorItems.WithLabelValues("trades", "inserted").Add(float64(result.Inserted))
	c.metrics.CollectorItems.WithLabelValues("trades", "duplicate").Add(float64(result.Duplicate))

	c.logger.Info("trade collection complete",
		zap.String("run_id", runID), zap.Int("inserted", result.Inserted), zap.Int("duplicate", result.Duplicate))
	return result, nil
}

// dumpRawDebug gzip-writes the raw recent-trades page set to debugDumpDir
// for offline replay, when configured. Best-effort: failures are logged,
// never propagated, since this path is off by default and never required
// for collection to succeed.
func (c *TradeCollector) dumpRawDebug(runID string, raw []upstream.TradeDTO) {
	if c.debugDumpDir == "" {
		return
	}
	payload, err := json.Marshal(raw)
	if err != nil {
		c.logger.Warn("trade debug dump marshal failed", zap.String("run_id", runID), zap.Error(err))
		return
	}

	path := filepath.Join(c.debugDumpDir, fmt.Sprintf("trades-%s.json.gz", runID))
	f, err := os.Create(path)
	if err != nil {
		c.logger.Warn("trade debug dump create failed", zap.String("run_id", runID), zap.Error(err))
		return
	}
	defer f.Close()

	gw := gzip.NewWriter(f)
	defer gw.Close()
	if _, err := gw.Write(payload); err != nil {
		c.logger.Warn("trade debug dump write failed", zap.String("run_id", runID), zap.Error(err))
	}
}

// isValidTrade implements the §3 Trade validity predicate: price in
// (0,1], size > 0, timestamp present and not more than one hour in the
// future, side null or in {buy, sell}.
func isValidTrade(t upstream.TradeDTO, ts time.Time, maxFuture time.Time) bool {
	price := t.ParsedPrice()
	if price <= 0 || price > 1 {
		return false
	}
	if t.ParsedSize() <= 0 {
		return false
	}
	if ts.IsZero() || ts.After(maxFuture) {
		return false
	}
	side := t.NormalizedSide()
	if side != "" && side != "buy" && side != "sell" {
		return false
	}
	return true
}

// fallbackTradeID generates a SHA-256 prefix id over (token, price, size,
// side, timestamp) for trades the upstream didn't assign an id to (§3).
func fallbackTradeID(t upstream.TradeDTO, ts time.Time) string {
	payload := fmt.Sprintf("%s|%f|%f|%s|%d", t.TokenID(), t.ParsedPrice(), t.ParsedSize(), t.NormalizedSide(), ts.UnixNano())
	sum := sha256.Sum256([]byte(payload))
	return hex.EncodeToString(sum[:])[:32]
}
