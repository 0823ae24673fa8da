// Package analyzers implements the five opportunity/observability detectors
// that run inside run_analysis: volume, spread, mm-pullback, intra-market
// arbitrage, and cross-market arbitrage (§4.4). Every analyzer shares one
// contract — query a bounded batch, compute candidates, dedup against
// active alerts of its own kind, and insert survivors, letting the unique
// index on (kind, dedup_key) WHERE is_active settle any insertion race.
package analyzers

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/marketlens/marketlens/internal/store"
)

// newAlertID generates a fresh alert identity, matching the scheme job
// runs use for their own correlation ids.
func newAlertID() string {
	return uuid.NewString()
}

// Candidate is one alert an analyzer wants to create, prior to the
// dedup-by-unique-index insert.
type Candidate struct {
	Kind        store.AlertKind
	Severity    store.AlertSeverity
	Title       string
	Description string
	MarketID    *string
	RelatedIDs  []string
	Data        interface{}
	DedupKey    string
	ExpiresAt   *time.Time
}

// severityForSpread maps a spread fraction to alert severity: a spread at
// or past 10% is high, anything above the analyzer's own alert threshold
// but below that is medium (§7).
func severityForSpread(spreadPct float64) store.AlertSeverity {
	if spreadPct >= 0.10 {
		return store.SeverityHigh
	}
	return store.SeverityMedium
}

// severityForVolumeRatio maps a volume-spike ratio to alert severity: a
// ratio of 5x or more is high, anything in [3,5) is medium (§7).
func severityForVolumeRatio(ratio float64) store.AlertSeverity {
	if ratio >= 5 {
		return store.SeverityHigh
	}
	return store.SeverityMedium
}

// severityForArbitrageProfit maps an arbitrage profit fraction to alert
// severity: profit above 5% is high, otherwise medium (§7).
func severityForArbitrageProfit(profit float64) store.AlertSeverity {
	if profit > 0.05 {
		return store.SeverityHigh
	}
	return store.SeverityMedium
}

// insertCandidates converts and inserts each candidate, skipping
// dedup-suppressed duplicates and logging, without failing the batch,
// any candidate whose marshal or insert errors.
func insertCandidates(ctx context.Context, st *store.Store, logger *zap.Logger, analyzerName string, candidates []Candidate) (created int, err error) {
	for _, c := range candidates {
		data, marshalErr := store.MarshalAlertData(c.Data)
		if marshalErr != nil {
			logger.Error("marshal alert data failed", zap.String("analyzer", analyzerName), zap.Error(marshalErr))
			continue
		}

		alert := store.Alert{
			ID:               newAlertID(),
			Kind:             c.Kind,
			Severity:         c.Severity,
			Title:            c.Title,
			Description:      c.Description,
			MarketID:         c.MarketID,
			RelatedMarketIDs: c.RelatedIDs,
			Data:             data,
			DedupKey:         c.DedupKey,
			IsActive:         true,
			ExpiresAt:        c.ExpiresAt,
		}

		wasCreated, createErr := st.CreateAlert(ctx, alert)
		if createErr != nil {
			logger.Error("insert alert failed", zap.String("analyzer", analyzerName), zap.String("dedup_key", c.DedupKey), zap.Error(createErr))
			continue
		}
		if wasCreated {
			created++
		}
	}
	return created, nil
}
