package analyzers

import (
	"strings"
	"time"

	"github.com/marketlens/marketlens/internal/store"
)

// Side selects which side of the book a price is quoted from.
type Side int

const (
	SideBuy Side = iota // pay the ask to acquire the outcome
	SideSell
)

// PriceSource records where a price_for_side lookup got its number from,
// so analyzers can report it and gate on freshness uniformly (Design
// Notes: "side-aware pricing duplicated across four detectors").
type PriceSource string

const (
	SourceOrderBook PriceSource = "orderbook"
	SourceCachedOutcome PriceSource = "cached_outcome"
)

// PriceQuote is the (price, liquidity, source) triple every detector
// consumes instead of re-deriving its own side logic.
type PriceQuote struct {
	Price     float64
	Liquidity float64
	Source    PriceSource
	Fresh     bool
}

const freshnessWindow = 15 * time.Minute

// PriceForSide returns the side-appropriate price for one token: best-ask
// (to buy) or best-bid (to sell), preferring a fresh order-book snapshot
// and falling back to the market's cached outcome price (§9 Design Notes).
func PriceForSide(snapshot *store.OrderBookSnapshot, cachedPrice float64, side Side, now time.Time) PriceQuote {
	if snapshot != nil && now.Sub(snapshot.Timestamp) <= freshnessWindow {
		switch side {
		case SideBuy:
			if snapshot.BestAsk > 0 {
				return PriceQuote{Price: snapshot.BestAsk, Liquidity: snapshot.AskDepth1Pct, Source: SourceOrderBook, Fresh: true}
			}
		case SideSell:
			if snapshot.BestBid > 0 {
				return PriceQuote{Price: snapshot.BestBid, Liquidity: snapshot.BidDepth1Pct, Source: SourceOrderBook, Fresh: true}
			}
		}
	}
	return PriceQuote{Price: cachedPrice, Source: SourceCachedOutcome, Fresh: false}
}

// YesOutcome selects the outcome to treat as the YES side: prefer one
// literally named "Yes" (case-insensitive), else the first outcome. The
// first bool reports whether any outcome exists; the second reports
// whether the fallback was used (§4.4.d/e "assumed_yes_outcome").
func YesOutcome(outcomes []store.Outcome) (store.Outcome, bool, bool) {
	for _, o := range outcomes {
		if strings.EqualFold(o.Name, "yes") {
			return o, true, false
		}
	}
	if len(outcomes) == 0 {
		return store.Outcome{}, false, false
	}
	return outcomes[0], true, true
}
