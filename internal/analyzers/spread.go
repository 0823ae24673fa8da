package analyzers

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/marketlens/marketlens/internal/store"
)

// SpreadAnalyzer flags tokens whose newest order-book snapshot shows a
// wide spread (§4.4.b).
type SpreadAnalyzer struct {
	store     *store.Store
	logger    *zap.Logger
	threshold float64
}

// NewSpreadAnalyzer constructs a SpreadAnalyzer, threshold defaulting to
// the spec's 0.05 spread_pct gate.
func NewSpreadAnalyzer(st *store.Store, logger *zap.Logger, threshold float64) *SpreadAnalyzer {
	if threshold <= 0 {
		threshold = 0.05
	}
	return &SpreadAnalyzer{store: st, logger: logger, threshold: threshold}
}

const spreadStaleAfter = 30 * time.Minute

// Run fetches the newest snapshot per tracked token and alerts when
// spread_pct crosses the configured threshold.
func (a *SpreadAnalyzer) Run(ctx context.Context, now time.Time) (int, error) {
	markets, err := a.store.ActiveMarkets(ctx)
	if err != nil {
		return 0, err
	}

	tokenMarket := make(map[string]string)
	var tokens []string
	for _, m := range markets {
		for _, o := range m.Outcomes {
			if o.HasValidToken() {
				tokenMarket[o.TokenID] = m.ID
				tokens = append(tokens, o.TokenID)
			}
		}
	}
	if len(tokens) == 0 {
		return 0, nil
	}

	latest, err := a.store.LatestSnapshotsByToken(ctx, tokens)
	if err != nil {
		return 0, err
	}

	var candidates []Candidate
	for tokenID, snap := range latest {
		if now.Sub(snap.Timestamp) > spreadStaleAfter {
			continue
		}
		if snap.SpreadPct < a.threshold {
			continue
		}

		marketID := tokenMarket[tokenID]
		data := store.SpreadAlertData{
			TokenID:     tokenID,
			SpreadPct:   snap.SpreadPct,
			BestBid:     snap.BestBid,
			BestAsk:     snap.BestAsk,
			SnapshotAge: now.Sub(snap.Timestamp).Seconds(),
		}

		candidates = append(candidates, Candidate{
			Kind:        store.AlertSpread,
			Severity:    severityForSpread(snap.SpreadPct),
			Title:       fmt.Sprintf("Wide spread on %s", tokenID),
			Description: fmt.Sprintf("spread_pct %.4f exceeds threshold %.4f", snap.SpreadPct, a.threshold),
			MarketID:    &marketID,
			Data:        data,
			DedupKey:    marketID + ":" + tokenID,
		})
	}

	return insertCandidates(ctx, a.store, a.logger, "spread", candidates)
}
