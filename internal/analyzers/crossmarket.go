package analyzers

import (
	"context"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/marketlens/marketlens/internal/store"
)

// CrossMarketAnalyzer detects arbitrage across declared relationship
// edges: mutual exclusion, conditional, time-sequence, and subset
// strategies (§4.4.e).
type CrossMarketAnalyzer struct {
	store        *store.Store
	logger       *zap.Logger
	minProfit    float64
	minLiquidity float64
}

// NewCrossMarketAnalyzer constructs a CrossMarketAnalyzer.
func NewCrossMarketAnalyzer(st *store.Store, logger *zap.Logger, minProfit, minLiquidity float64) *CrossMarketAnalyzer {
	if minProfit <= 0 {
		minProfit = 0.02
	}
	if minLiquidity <= 0 {
		minLiquidity = 1000
	}
	return &CrossMarketAnalyzer{store: st, logger: logger, minProfit: minProfit, minLiquidity: minLiquidity}
}

const crossMarketAlertTTL = 30 * time.Minute

// yesLeg bundles everything an arbitrage leg needs about one market's YES
// outcome: its price quote and whether YES had to be assumed.
type yesLeg struct {
	market    store.Market
	outcome   store.Outcome
	assumed   bool
	buyQuote  PriceQuote
	sellQuote PriceQuote
}

func (a *CrossMarketAnalyzer) loadMarketIndex(ctx context.Context) (map[string]store.Market, map[string]store.OrderBookSnapshot, error) {
	markets, err := a.store.ActiveMarkets(ctx)
	if err != nil {
		return nil, nil, err
	}
	byID := make(map[string]store.Market, len(markets))
	var tokens []string
	for _, m := range markets {
		byID[m.ID] = m
		for _, o := range m.Outcomes {
			if o.HasValidToken() {
				tokens = append(tokens, o.TokenID)
			}
		}
	}
	snapshots, err := a.store.LatestSnapshotsByToken(ctx, tokens)
	if err != nil {
		return nil, nil, err
	}
	return byID, snapshots, nil
}

func (a *CrossMarketAnalyzer) yesLegFor(m store.Market, snapshots map[string]store.OrderBookSnapshot, now time.Time) (yesLeg, bool) {
	outcome, ok, assumed := YesOutcome(m.Outcomes)
	if !ok {
		return yesLeg{}, false
	}
	var snap *store.OrderBookSnapshot
	if s, found := snapshots[outcome.TokenID]; found {
		snap = &s
	}
	buy := PriceForSide(snap, outcome.Price, SideBuy, now)
	sell := PriceForSide(snap, outcome.Price, SideSell, now)
	return yesLeg{market: m, outcome: outcome, assumed: assumed, buyQuote: buy, sellQuote: sell}, true
}

// Run evaluates every declared relationship and emits arbitrage
// candidates that clear both min_profit and min_liquidity.
func (a *CrossMarketAnalyzer) Run(ctx context.Context, now time.Time) (int, error) {
	marketsByID, snapshots, err := a.loadMarketIndex(ctx)
	if err != nil {
		return 0, err
	}

	var candidates []Candidate
	candidates = append(candidates, a.mutuallyExclusiveCandidates(ctx, marketsByID, snapshots, now)...)
	candidates = append(candidates, a.pairwiseCandidates(ctx, marketsByID, snapshots, now, store.RelationConditional)...)
	candidates = append(candidates, a.pairwiseCandidates(ctx, marketsByID, snapshots, now, store.RelationTimeSequence)...)
	candidates = append(candidates, a.pairwiseCandidates(ctx, marketsByID, snapshots, now, store.RelationSubset)...)

	return insertCandidates(ctx, a.store, a.logger, "cross_market_arb", candidates)
}

func expiresAt(now time.Time) *time.Time {
	t := now.Add(crossMarketAlertTTL)
	return &t
}

func (a *CrossMarketAnalyzer) legacyGroupSuppressed(ctx context.Context, group string) bool {
	legacyKey := "exclusive-" + group
	active, err := a.store.ActiveAlerts(ctx, store.AlertArbitrage)
	if err != nil {
		return false
	}
	for _, al := range active {
		if al.DedupKey == legacyKey {
			return true
		}
	}
	return false
}

func (a *CrossMarketAnalyzer) mutuallyExclusiveCandidates(ctx context.Context, marketsByID map[string]store.Market, snapshots map[string]store.OrderBookSnapshot, now time.Time) []Candidate {
	edges, err := a.store.RelationshipsByKind(ctx, store.RelationMutuallyExclusive)
	if err != nil {
		a.logger.Error("load mutually_exclusive relationships failed", zap.Error(err))
		return nil
	}

	groups := make(map[string]map[string]struct{})
	for _, e := range edges {
		if e.GroupID == nil || *e.GroupID == "" {
			continue
		}
		g := *e.GroupID
		if groups[g] == nil {
			groups[g] = make(map[string]struct{})
		}
		groups[g][e.ParentMarketID] = struct{}{}
		groups[g][e.ChildMarketID] = struct{}{}
	}

	var candidates []Candidate
	for group, memberSet := range groups {
		if a.legacyGroupSuppressed(ctx, group) {
			continue
		}

		var legs []yesLeg
		var memberIDs []string
		for id := range memberSet {
			memberIDs = append(memberIDs, id)
			m, ok := marketsByID[id]
			if !ok {
				continue
			}
			leg, ok := a.yesLegFor(m, snapshots, now)
			if !ok {
				continue
			}
			legs = append(legs, leg)
		}
		if len(legs) < 2 {
			continue
		}
		sort.Strings(memberIDs)

		sumAsk, sumBid, minAskLiq, minBidLiq := 0.0, 0.0, -1.0, -1.0
		for _, leg := range legs {
			sumAsk += leg.buyQuote.Price
			sumBid += leg.sellQuote.Price
			if minAskLiq < 0 || leg.buyQuote.Liquidity < minAskLiq {
				minAskLiq = leg.buyQuote.Liquidity
			}
			if minBidLiq < 0 || leg.sellQuote.Liquidity < minBidLiq {
				minBidLiq = leg.sellQuote.Liquidity
			}
		}

		anyAssumed := false
		for _, leg := range legs {
			if leg.assumed {
				anyAssumed = true
				break
			}
		}

		if sumAsk < 1-a.minProfit && minAskLiq >= a.minLiquidity {
			profit := 1 - sumAsk
			candidates = append(candidates, a.buildRelationshipCandidate(
				"mutually_exclusive", "buy_all_outcomes", "exclusive-buy-"+group, group,
				memberIDs, profit, sumAsk, legsFromYes(legs, "buy", true), anyAssumed, now))
		}
		if sumBid > 1+a.minProfit && minBidLiq >= a.minLiquidity {
			profit := sumBid - 1
			candidates = append(candidates, a.buildRelationshipCandidate(
				"mutually_exclusive", "sell_all_outcomes", "exclusive-sell-"+group, group,
				memberIDs, profit, sumBid, legsFromYes(legs, "sell", false), anyAssumed, now))
		}
	}
	return candidates
}

func legsFromYes(legs []yesLeg, side string, useBuy bool) []store.ArbLeg {
	out := make([]store.ArbLeg, 0, len(legs))
	for _, l := range legs {
		q := l.sellQuote
		if useBuy {
			q = l.buyQuote
		}
		out = append(out, store.ArbLeg{
			MarketID:    l.market.ID,
			OutcomeName: l.outcome.Name,
			Side:        side,
			Price:       q.Price,
			Source:      string(q.Source),
		})
	}
	return out
}

func (a *CrossMarketAnalyzer) buildRelationshipCandidate(relType, strategy, dedupKey, group string, marketIDs []string, profit, total float64, legs []store.ArbLeg, assumed bool, now time.Time) Candidate {
	data := store.ArbitrageData{
		Type:              relType,
		Strategy:          strategy,
		MarketIDs:         marketIDs,
		GroupID:           group,
		Profit:            profit,
		Total:             total,
		Legs:              legs,
		AssumedYesOutcome: assumed,
	}
	return Candidate{
		Kind:        store.AlertArbitrage,
		Severity:    severityForArbitrageProfit(profit),
		Title:       fmt.Sprintf("%s arbitrage (%s)", strategy, group),
		Description: fmt.Sprintf("%s: total %.4f, profit %.4f across %d markets", strategy, total, profit, len(marketIDs)),
		RelatedIDs:  marketIDs,
		Data:        data,
		DedupKey:    dedupKey,
		ExpiresAt:   expiresAt(now),
	}
}

// pairwiseCandidates evaluates conditional, time_sequence, and subset
// relationships, each a directional (parent, child) comparison.
func (a *CrossMarketAnalyzer) pairwiseCandidates(ctx context.Context, marketsByID map[string]store.Market, snapshots map[string]store.OrderBookSnapshot, now time.Time, kind store.RelationshipKind) []Candidate {
	edges, err := a.store.RelationshipsByKind(ctx, kind)
	if err != nil {
		a.logger.Error("load relationships failed", zap.String("kind", string(kind)), zap.Error(err))
		return nil
	}

	var candidates []Candidate
	for _, e := range edges {
		parent, okP := marketsByID[e.ParentMarketID]
		child, okC := marketsByID[e.ChildMarketID]
		if !okP || !okC {
			continue
		}
		parentLeg, ok1 := a.yesLegFor(parent, snapshots, now)
		childLeg, ok2 := a.yesLegFor(child, snapshots, now)
		if !ok1 || !ok2 {
			continue
		}

		var c *Candidate
		switch kind {
		case store.RelationConditional:
			c = a.conditionalCandidate(parentLeg, childLeg, now)
		case store.RelationTimeSequence:
			c = a.timeSequenceCandidate(parentLeg, childLeg, now)
		case store.RelationSubset:
			c = a.subsetCandidate(parentLeg, childLeg, now)
		}
		if c != nil {
			candidates = append(candidates, *c)
		}
	}
	return candidates
}

func (a *CrossMarketAnalyzer) conditionalCandidate(parent, child yesLeg, now time.Time) *Candidate {
	// child_bid > parent_ask: buy parent, sell child.
	if child.sellQuote.Price <= parent.buyQuote.Price {
		return nil
	}
	profit := child.sellQuote.Price - parent.buyQuote.Price
	liq := minLiquidity(child.sellQuote.Liquidity, parent.buyQuote.Liquidity)
	if profit < a.minProfit || liq < a.minLiquidity {
		return nil
	}
	marketIDs := []string{parent.market.ID, child.market.ID}
	legs := []store.ArbLeg{
		{MarketID: parent.market.ID, OutcomeName: parent.outcome.Name, Side: "buy", Price: parent.buyQuote.Price, Source: string(parent.buyQuote.Source)},
		{MarketID: child.market.ID, OutcomeName: child.outcome.Name, Side: "sell", Price: child.sellQuote.Price, Source: string(child.sellQuote.Source)},
	}
	data := store.ArbitrageData{
		Type:              "conditional",
		Strategy:          "buy_parent_sell_child",
		MarketIDs:         marketIDs,
		Profit:            profit,
		Legs:              legs,
		AssumedYesOutcome: parent.assumed || child.assumed,
	}
	c := Candidate{
		Kind:        store.AlertArbitrage,
		Severity:    severityForArbitrageProfit(profit),
		Title:       fmt.Sprintf("Conditional arbitrage %s/%s", parent.market.ID, child.market.ID),
		Description: fmt.Sprintf("buy parent %s sell child %s, profit %.4f", parent.market.ID, child.market.ID, profit),
		RelatedIDs:  marketIDs,
		Data:        data,
		DedupKey:    fmt.Sprintf("conditional-%s-%s", parent.market.ID, child.market.ID),
		ExpiresAt:   expiresAt(now),
	}
	return &c
}

func (a *CrossMarketAnalyzer) timeSequenceCandidate(earlier, later yesLeg, now time.Time) *Candidate {
	// earlier_bid > later_ask: sell earlier, buy later.
	if earlier.sellQuote.Price <= later.buyQuote.Price {
		return nil
	}
	profit := earlier.sellQuote.Price - later.buyQuote.Price
	liq := minLiquidity(earlier.sellQuote.Liquidity, later.buyQuote.Liquidity)
	if profit < a.minProfit || liq < a.minLiquidity {
		return nil
	}
	marketIDs := []string{earlier.market.ID, later.market.ID}
	legs := []store.ArbLeg{
		{MarketID: earlier.market.ID, OutcomeName: earlier.outcome.Name, Side: "sell", Price: earlier.sellQuote.Price, Source: string(earlier.sellQuote.Source)},
		{MarketID: later.market.ID, OutcomeName: later.outcome.Name, Side: "buy", Price: later.buyQuote.Price, Source: string(later.buyQuote.Source)},
	}
	data := store.ArbitrageData{
		Type:              "time_sequence",
		Strategy:          "sell_earlier_buy_later",
		MarketIDs:         marketIDs,
		Profit:            profit,
		Legs:              legs,
		AssumedYesOutcome: earlier.assumed || later.assumed,
	}
	c := Candidate{
		Kind:        store.AlertArbitrage,
		Severity:    severityForArbitrageProfit(profit),
		Title:       fmt.Sprintf("Time-sequence arbitrage %s/%s", earlier.market.ID, later.market.ID),
		Description: fmt.Sprintf("sell earlier %s buy later %s, profit %.4f", earlier.market.ID, later.market.ID, profit),
		RelatedIDs:  marketIDs,
		Data:        data,
		DedupKey:    fmt.Sprintf("time-%s-%s", earlier.market.ID, later.market.ID),
		ExpiresAt:   expiresAt(now),
	}
	return &c
}

func (a *CrossMarketAnalyzer) subsetCandidate(general, specific yesLeg, now time.Time) *Candidate {
	// specific_bid > general_ask: sell specific, buy general.
	if specific.sellQuote.Price <= general.buyQuote.Price {
		return nil
	}
	profit := specific.sellQuote.Price - general.buyQuote.Price
	liq := minLiquidity(specific.sellQuote.Liquidity, general.buyQuote.Liquidity)
	if profit < a.minProfit || liq < a.minLiquidity {
		return nil
	}
	marketIDs := []string{general.market.ID, specific.market.ID}
	legs := []store.ArbLeg{
		{MarketID: specific.market.ID, OutcomeName: specific.outcome.Name, Side: "sell", Price: specific.sellQuote.Price, Source: string(specific.sellQuote.Source)},
		{MarketID: general.market.ID, OutcomeName: general.outcome.Name, Side: "buy", Price: general.buyQuote.Price, Source: string(general.buyQuote.Source)},
	}
	data := store.ArbitrageData{
		Type:              "subset",
		Strategy:          "sell_specific_buy_general",
		MarketIDs:         marketIDs,
		Profit:            profit,
		Legs:              legs,
		AssumedYesOutcome: general.assumed || specific.assumed,
	}
	c := Candidate{
		Kind:        store.AlertArbitrage,
		Severity:    severityForArbitrageProfit(profit),
		Title:       fmt.Sprintf("Subset arbitrage %s/%s", general.market.ID, specific.market.ID),
		Description: fmt.Sprintf("sell specific %s buy general %s, profit %.4f", specific.market.ID, general.market.ID, profit),
		RelatedIDs:  marketIDs,
		Data:        data,
		DedupKey:    fmt.Sprintf("subset-%s-%s", general.market.ID, specific.market.ID),
		ExpiresAt:   expiresAt(now),
	}
	return &c
}

func minLiquidity(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}
