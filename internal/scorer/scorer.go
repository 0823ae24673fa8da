// Package scorer computes the 0-100 per-market safety score and the
// volume-ratio signal the read API surfaces alongside it (§4.7). The
// batch path composes exactly four queries regardless of how many
// markets are requested.
package scorer

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/marketlens/marketlens/internal/store"
)

// Profile names the threshold set a score is evaluated against. Safe is
// the strict default; Learning relaxes every threshold to surface
// fallback picks once the safe pool runs dry.
type Profile struct {
	Name         string
	FreshnessMax time.Duration
	DepthMin     float64
	SpreadMax    float64
	SignalsMin   int

	// RequireAllComponents additionally demands every score component be
	// above zero.
	RequireAllComponents bool
}

var (
	SafeProfile = Profile{
		Name: "safe", FreshnessMax: 30 * time.Minute, DepthMin: 500, SpreadMax: 0.05, SignalsMin: 2,
		RequireAllComponents: true,
	}
	LearningProfile = Profile{
		Name: "learning", FreshnessMax: 60 * time.Minute, DepthMin: 300, SpreadMax: 0.07, SignalsMin: 1,
	}
)

// Score is one market's computed safety score, its constituent
// components, and whether it clears a given profile's gates.
type Score struct {
	MarketID        string
	Total           int
	Freshness       int
	Liquidity       int
	Spread          int
	SignalAlignment int

	FreshnessAge time.Duration
	DepthUSD     float64
	SpreadPct    float64
	SignalCount  int

	VolumeRatio *float64
}

// MeetsProfile reports whether the underlying measurements clear the
// profile's explicit thresholds and, for a profile with
// RequireAllComponents (Safe), whether every component is above zero
// (§4.7 — all four components positive is necessary but not
// sufficient; the profile's own gates are checked independently).
func (s Score) MeetsProfile(p Profile) bool {
	if p.RequireAllComponents && (s.Freshness <= 0 || s.Liquidity <= 0 || s.Spread <= 0 || s.SignalAlignment <= 0) {
		return false
	}
	return s.FreshnessAge <= p.FreshnessMax &&
		s.DepthUSD >= p.DepthMin &&
		s.SpreadPct <= p.SpreadMax &&
		s.SignalCount >= p.SignalsMin
}

// Scorer computes Scores for a batch of markets.
type Scorer struct {
	store  *store.Store
	logger *zap.Logger
}

// NewScorer constructs a Scorer.
func NewScorer(st *store.Store, logger *zap.Logger) *Scorer {
	return &Scorer{store: st, logger: logger}
}

// ScoreMarkets computes Scores for the given markets as of now, in
// exactly four store queries: markets, latest order-book snapshots,
// recent trades (for freshness + volume ratio), and every active alert
// (for signal alignment, unioned in memory).
func (sc *Scorer) ScoreMarkets(ctx context.Context, marketIDs []string, now time.Time) ([]Score, error) {
	if len(marketIDs) == 0 {
		return nil, nil
	}

	markets, err := sc.store.MarketsByIDs(ctx, marketIDs) // query 1
	if err != nil {
		return nil, err
	}

	tokenToMarket := make(map[string]string)
	marketTokens := make(map[string][]string, len(markets))
	var tokens []string
	for _, m := range markets {
		for _, o := range m.Outcomes {
			if !o.HasValidToken() {
				continue
			}
			tokenToMarket[o.TokenID] = m.ID
			marketTokens[m.ID] = append(marketTokens[m.ID], o.TokenID)
			tokens = append(tokens, o.TokenID)
		}
	}

	snapshots, err := sc.store.LatestSnapshotsByToken(ctx, tokens) // query 2
	if err != nil {
		return nil, err
	}

	baselineStart := now.Add(-24 * time.Hour)
	trades, err := sc.store.TradesSince(ctx, tokens, baselineStart) // query 3
	if err != nil {
		return nil, err
	}
	tradeAgg, latestTradeTS := aggregateTrades(trades, now)

	activeAlerts, err := sc.store.AllActiveAlerts(ctx) // query 4
	if err != nil {
		return nil, err
	}
	signalKinds := signalKindsByMarket(activeAlerts, marketIDs)

	scores := make([]Score, 0, len(markets))
	for _, m := range markets {
		scores = append(scores, sc.scoreOne(m, marketTokens[m.ID], snapshots, tradeAgg, latestTradeTS, signalKinds[m.ID], now))
	}
	return scores, nil
}

// scoreOne combines one market's freshest snapshot across its tokens,
// its trade/volume aggregate, and its signal count into a Score.
func (sc *Scorer) scoreOne(
	m store.Market,
	tokens []string,
	snapshots map[string]store.OrderBookSnapshot,
	tradeAgg map[string]tradeBucket,
	latestTradeTS map[string]time.Time,
	signalCount int,
	now time.Time,
) Score {
	var snap store.OrderBookSnapshot
	haveSnap := false
	var snapTS, tradeTS time.Time

	for _, tok := range tokens {
		if s, ok := snapshots[tok]; ok && (!haveSnap || s.Timestamp.After(snap.Timestamp)) {
			snap = s
			haveSnap = true
		}
		if ts, ok := latestTradeTS[tok]; ok && ts.After(tradeTS) {
			tradeTS = ts
		}
	}
	if haveSnap {
		snapTS = snap.Timestamp
	}

	// Freshness is measured from whichever signal is more recent: a
	// market can be "fresh" off trade flow even between book polls.
	freshAt := snapTS
	if tradeTS.After(freshAt) {
		freshAt = tradeTS
	}

	var age time.Duration
	if freshAt.IsZero() {
		age = time.Duration(1<<63 - 1)
	} else {
		age = now.Sub(freshAt)
	}

	depth := snap.BidDepth1Pct + snap.AskDepth1Pct
	spread := snap.SpreadPct

	score := Score{
		MarketID:        m.ID,
		Freshness:       freshnessPoints(age),
		Liquidity:       liquidityPoints(depth),
		Spread:          spreadPoints(spread),
		SignalAlignment: signalPoints(signalCount),
		FreshnessAge:    age,
		DepthUSD:        depth,
		SpreadPct:       spread,
		SignalCount:     signalCount,
	}
	score.Total = score.Freshness + score.Liquidity + score.Spread + score.SignalAlignment

	baselineCount := 0
	var recentVol, baselineVol float64
	for _, tok := range tokens {
		agg, ok := tradeAgg[tok]
		if !ok {
			continue
		}
		recentVol += agg.recentVol
		baselineVol += agg.baselineVol
		baselineCount += agg.baselineCount
	}
	if baselineCount >= 10 {
		if hourlyAvg := baselineVol / 23.0; hourlyAvg > 0 {
			ratio := recentVol / hourlyAvg
			score.VolumeRatio = &ratio
		}
	}

	return score
}

func freshnessPoints(age time.Duration) int {
	switch {
	case age < 15*time.Minute:
		return 30
	case age < 30*time.Minute:
		return 20
	default:
		return 0
	}
}

func liquidityPoints(depthUSD float64) int {
	switch {
	case depthUSD >= 2000:
		return 30
	case depthUSD >= 500:
		return 20
	default:
		return 0
	}
}

func spreadPoints(spreadPct float64) int {
	switch {
	case spreadPct < 0.03:
		return 20
	case spreadPct < 0.05:
		return 10
	default:
		return 0
	}
}

func signalPoints(count int) int {
	switch {
	case count >= 2:
		return 20
	case count >= 1:
		return 10
	default:
		return 0
	}
}

// tradeBucket accumulates the baseline (prior 23h) and recent (last 1h)
// trade volume for one token, matching the volume analyzer's windows
// exactly (§4.4.a, §4.7).
type tradeBucket struct {
	baselineVol   float64
	baselineCount int
	recentVol     float64
}

// aggregateTrades buckets trades per token into baseline/recent windows
// and tracks the latest trade timestamp per token, reused both for the
// volume-ratio calculation and the freshness component.
func aggregateTrades(trades []store.Trade, now time.Time) (map[string]tradeBucket, map[string]time.Time) {
	agg := make(map[string]tradeBucket)
	latest := make(map[string]time.Time)
	recentStart := now.Add(-time.Hour)
	baselineEnd := recentStart

	for _, t := range trades {
		b := agg[t.TokenID]
		if t.Timestamp.Before(baselineEnd) {
			b.baselineVol += t.Size
			b.baselineCount++
		} else if !t.Timestamp.After(now) {
			b.recentVol += t.Size
		}
		agg[t.TokenID] = b

		if t.Timestamp.After(latest[t.TokenID]) {
			latest[t.TokenID] = t.Timestamp
		}
	}
	return agg, latest
}

// signalKindsByMarket unions, per requested market, every active
// alert's distinct kind where market_id matches or the market appears
// in related_market_ids, the in-memory equivalent of the jsonb
// containment union described in §4.7.
func signalKindsByMarket(alerts []store.Alert, marketIDs []string) map[string]int {
	wanted := make(map[string]bool, len(marketIDs))
	for _, id := range marketIDs {
		wanted[id] = true
	}

	kindSets := make(map[string]map[store.AlertKind]bool, len(marketIDs))
	touch := func(marketID string, kind store.AlertKind) {
		if !wanted[marketID] {
			return
		}
		set, ok := kindSets[marketID]
		if !ok {
			set = make(map[store.AlertKind]bool)
			kindSets[marketID] = set
		}
		set[kind] = true
	}

	for _, a := range alerts {
		if a.MarketID != nil {
			touch(*a.MarketID, a.Kind)
		}
		for _, related := range a.RelatedMarketIDs {
			touch(related, a.Kind)
		}
	}

	counts := make(map[string]int, len(kindSets))
	for marketID, set := range kindSets {
		counts[marketID] = len(set)
	}
	return counts
}
