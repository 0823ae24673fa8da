package analyzers

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/marketlens/marketlens/internal/store"
)

// IntraMarketAnalyzer flags binary markets where buying both outcomes
// costs less than $1 (§4.4.d).
type IntraMarketAnalyzer struct {
	store     *store.Store
	logger    *zap.Logger
	minProfit float64
}

// NewIntraMarketAnalyzer constructs an IntraMarketAnalyzer, minProfit
// defaulting to the spec's 0.02.
func NewIntraMarketAnalyzer(st *store.Store, logger *zap.Logger, minProfit float64) *IntraMarketAnalyzer {
	if minProfit <= 0 {
		minProfit = 0.02
	}
	return &IntraMarketAnalyzer{store: st, logger: logger, minProfit: minProfit}
}

// Run checks every binary market's two best-ask prices; a fresh snapshot
// on both sides is authoritative even when it shows no opportunity,
// matching the "fresh no-opportunity beats stale opportunity" decision.
func (a *IntraMarketAnalyzer) Run(ctx context.Context, now time.Time) (int, error) {
	markets, err := a.store.ActiveMarkets(ctx)
	if err != nil {
		return 0, err
	}

	var tokens []string
	for _, m := range markets {
		if !m.IsBinary() {
			continue
		}
		for _, o := range m.Outcomes {
			if o.HasValidToken() {
				tokens = append(tokens, o.TokenID)
			}
		}
	}
	if len(tokens) == 0 {
		return 0, nil
	}

	snapshots, err := a.store.LatestSnapshotsByToken(ctx, tokens)
	if err != nil {
		return 0, err
	}

	var candidates []Candidate
	for _, m := range markets {
		if !m.IsBinary() {
			continue
		}

		o1, o2 := m.Outcomes[0], m.Outcomes[1]
		snap1, ok1 := snapshots[o1.TokenID]
		snap2, ok2 := snapshots[o2.TokenID]

		var q1, q2 PriceQuote
		if ok1 {
			q1 = PriceForSide(&snap1, o1.Price, SideBuy, now)
		} else {
			q1 = PriceForSide(nil, o1.Price, SideBuy, now)
		}
		if ok2 {
			q2 = PriceForSide(&snap2, o2.Price, SideBuy, now)
		} else {
			q2 = PriceForSide(nil, o2.Price, SideBuy, now)
		}

		if q1.Price <= 0 || q2.Price <= 0 {
			continue
		}

		total := q1.Price + q2.Price
		profit := 1 - total
		if profit < a.minProfit {
			continue
		}

		marketID := m.ID
		data := store.ArbitrageData{
			Type:      "intra_market",
			Strategy:  "buy_both_outcomes",
			MarketIDs: []string{marketID},
			Profit:    profit,
			Total:     total,
			Legs: []store.ArbLeg{
				{MarketID: marketID, OutcomeName: o1.Name, Side: "buy", Price: q1.Price, Source: string(q1.Source)},
				{MarketID: marketID, OutcomeName: o2.Name, Side: "buy", Price: q2.Price, Source: string(q2.Source)},
			},
		}

		candidates = append(candidates, Candidate{
			Kind:        store.AlertArbitrage,
			Severity:    severityForArbitrageProfit(profit),
			Title:       fmt.Sprintf("Intra-market arbitrage on %s", marketID),
			Description: fmt.Sprintf("%s + %s = %.4f, profit %.4f", o1.Name, o2.Name, total, profit),
			MarketID:    &marketID,
			Data:        data,
			DedupKey:    "intra:" + marketID,
		})
	}

	return insertCandidates(ctx, a.store, a.logger, "intra_market_arb", candidates)
}
