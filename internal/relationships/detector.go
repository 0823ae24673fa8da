package relationships

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"time"

	cache "github.com/patrickmn/go-cache"
	"go.uber.org/zap"

	"github.com/marketlens/marketlens/internal/store"
)

// detectionCacheExpiration/CleanupInterval size the detector's short-TTL
// in-memory memoization — short enough that a stale active-market set
// doesn't linger past a few scheduler ticks.
const (
	detectionCacheExpiration       = 5 * time.Minute
	detectionCacheCleanupInterval  = 10 * time.Minute
)

// Candidate is one heuristically-proposed relationship edge, scored
// with a confidence in [0,1]. The detector never persists candidates;
// confirming one into a MarketRelationship row is a manual operation
// performed by calling Store.UpsertRelationship from outside (§4.5).
type Candidate struct {
	Kind           store.RelationshipKind
	ParentMarketID string
	ChildMarketID  string
	GroupID        *string
	Confidence     float64
	Notes          string
}

// Detector proposes candidate relationship edges over the active
// market set using question-text and category heuristics, memoizing
// one run's result per distinct active-market-id set so that multiple
// callers within one analysis cycle don't repeat the O(n^2) comparison
// (§4.5, SPEC_FULL.md Design Notes).
type Detector struct {
	store         *store.Store
	logger        *zap.Logger
	confidenceMin float64
	cache         *cache.Cache
}

// NewDetector constructs a Detector with the configured minimum
// confidence below which a candidate is dropped.
func NewDetector(st *store.Store, logger *zap.Logger, confidenceMin float64) *Detector {
	if confidenceMin <= 0 {
		confidenceMin = 0.6
	}
	return &Detector{
		store:         st,
		logger:        logger,
		confidenceMin: confidenceMin,
		cache:         cache.New(detectionCacheExpiration, detectionCacheCleanupInterval),
	}
}

// Detect loads the active market set and returns every candidate edge
// scoring at or above the configured confidence threshold.
func (d *Detector) Detect(ctx context.Context) ([]Candidate, error) {
	markets, err := d.store.ActiveMarkets(ctx)
	if err != nil {
		return nil, err
	}

	key := activeSetCacheKey(markets)
	if cached, found := d.cache.Get(key); found {
		return cached.([]Candidate), nil
	}

	declared, err := d.loadDeclaredKeys(ctx)
	if err != nil {
		return nil, err
	}

	var candidates []Candidate
	candidates = append(candidates, detectMutualExclusion(markets, declared)...)
	candidates = append(candidates, detectConditional(markets, declared)...)
	candidates = append(candidates, detectTimeSequence(markets, declared)...)
	candidates = append(candidates, detectSubset(markets, declared)...)

	filtered := candidates[:0]
	for _, c := range candidates {
		if c.Confidence >= d.confidenceMin {
			filtered = append(filtered, c)
		}
	}

	d.cache.Set(key, filtered, cache.DefaultExpiration)
	d.logger.Info("relationship detection complete",
		zap.Int("markets", len(markets)), zap.Int("candidates", len(filtered)))
	return filtered, nil
}

// declaredKeySet indexes already-declared/confirmed edges by
// (kind, parent, child) so the detector doesn't re-propose them.
type declaredKeySet map[store.RelationshipKind]map[[2]string]bool

func (d declaredKeySet) has(kind store.RelationshipKind, parent, child string) bool {
	byPair, ok := d[kind]
	if !ok {
		return false
	}
	return byPair[[2]string{parent, child}]
}

func (d *Detector) loadDeclaredKeys(ctx context.Context) (declaredKeySet, error) {
	out := make(declaredKeySet, 4)
	for _, kind := range []store.RelationshipKind{
		store.RelationMutuallyExclusive,
		store.RelationConditional,
		store.RelationTimeSequence,
		store.RelationSubset,
	} {
		rels, err := d.store.RelationshipsByKind(ctx, kind)
		if err != nil {
			return nil, err
		}
		byPair := make(map[[2]string]bool, len(rels))
		for _, r := range rels {
			byPair[[2]string{r.ParentMarketID, r.ChildMarketID}] = true
		}
		out[kind] = byPair
	}
	return out, nil
}

// activeSetCacheKey hashes the sorted active market id list so the
// memoization key is stable regardless of query return order.
func activeSetCacheKey(markets []store.Market) string {
	ids := make([]string, 0, len(markets))
	for _, m := range markets {
		ids = append(ids, m.ID)
	}
	sort.Strings(ids)

	h := sha256.New()
	for _, id := range ids {
		h.Write([]byte(id))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}

// hashString returns a short digest of s, used to derive stable group
// ids for a detected mutually-exclusive set.
func hashString(s string) []byte {
	sum := sha256.Sum256([]byte(s))
	return sum[:8]
}
