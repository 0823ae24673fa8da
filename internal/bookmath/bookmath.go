// Package bookmath computes order-book derived metrics from a ladder of
// price/size levels. Every function here is pure — no I/O, no logging —
// so the full metric surface is exhaustively unit-testable (§4.6, §8).
package bookmath

// Level is one price/size rung of an order book ladder.
type Level struct {
	Price float64
	Size  float64
}

// valid reports whether a level has a positive price and size.
func valid(l Level) bool {
	return l.Price > 0 && l.Size > 0
}

// firstValid returns the first level with positive price and size, and
// whether one was found.
func firstValid(levels []Level) (Level, bool) {
	for _, l := range levels {
		if valid(l) {
			return l, true
		}
	}
	return Level{}, false
}

// Metrics is the full set of derived order-book statistics for one token
// at one point in time (mirrors store.OrderBookSnapshot's numeric fields).
type Metrics struct {
	BestBid      float64
	BestAsk      float64
	HasBid       bool
	HasAsk       bool
	Spread       float64
	SpreadPct    float64
	Mid          float64
	BidDepth1Pct float64
	AskDepth1Pct float64
	BidDepth5Pct float64
	AskDepth5Pct float64
	Imbalance    float64
}

// Compute derives every metric from bids/asks ladders sorted best-first,
// per the §4.6 exact semantics.
func Compute(bids, asks []Level) Metrics {
	var m Metrics

	bestBid, hasBid := firstValid(bids)
	bestAsk, hasAsk := firstValid(asks)
	m.HasBid, m.HasAsk = hasBid, hasAsk
	if hasBid {
		m.BestBid = bestBid.Price
	}
	if hasAsk {
		m.BestAsk = bestAsk.Price
	}

	if hasBid && hasAsk {
		m.Spread = m.BestAsk - m.BestBid
		m.Mid = (m.BestBid + m.BestAsk) / 2
		if m.Mid > 0 {
			m.SpreadPct = m.Spread / m.Mid
		}
	}

	if hasBid {
		m.BidDepth1Pct = DepthDollars(bids, m.BestBid, 0.01, true)
		m.BidDepth5Pct = DepthDollars(bids, m.BestBid, 0.05, true)
	}
	if hasAsk {
		m.AskDepth1Pct = DepthDollars(asks, m.BestAsk, 0.01, false)
		m.AskDepth5Pct = DepthDollars(asks, m.BestAsk, 0.05, false)
	}

	total := m.BidDepth1Pct + m.AskDepth1Pct
	if total > 0 {
		m.Imbalance = (m.BidDepth1Pct - m.AskDepth1Pct) / total
	}

	return m
}

// DepthDollars sums price·size for every valid level within pct of
// bestPrice: for bids, price >= bestPrice*(1-pct); for asks,
// price <= bestPrice*(1+pct). Sizes are shares and must be converted to
// dollars by multiplying by price (§4.6).
func DepthDollars(levels []Level, bestPrice, pct float64, isBid bool) float64 {
	if bestPrice <= 0 {
		return 0
	}
	var threshold float64
	if isBid {
		threshold = bestPrice * (1 - pct)
	} else {
		threshold = bestPrice * (1 + pct)
	}

	var total float64
	for _, l := range levels {
		if !valid(l) {
			continue
		}
		if isBid && l.Price >= threshold {
			total += l.Price * l.Size
		} else if !isBid && l.Price <= threshold {
			total += l.Price * l.Size
		}
	}
	return total
}

// Slippage is the result of walking the asks ladder for a dollar-sized
// buy (§4.6).
type Slippage struct {
	ExpectedPrice  float64
	SlippagePct    float64
	FilledDollars  float64
	FilledShares   float64
	UnfilledDollars float64
	LevelsConsumed int
}

// ComputeSlippage walks asks best-first, spending dollarAmount, per the
// §4.6 four-step algorithm.
func ComputeSlippage(asks []Level, dollarAmount float64) Slippage {
	var result Slippage
	if dollarAmount <= 0 {
		return result
	}

	bestAsk, hasAsk := firstValid(asks)
	remaining := dollarAmount

	for _, l := range asks {
		if !valid(l) {
			continue
		}
		if remaining <= 0 {
			break
		}

		capacity := l.Price * l.Size
		result.LevelsConsumed++

		if remaining <= capacity {
			shares := remaining / l.Price
			result.FilledShares += shares
			result.FilledDollars += remaining
			remaining = 0
			break
		}

		result.FilledShares += l.Size
		result.FilledDollars += capacity
		remaining -= capacity
	}

	result.UnfilledDollars = remaining
	if result.FilledShares > 0 {
		result.ExpectedPrice = result.FilledDollars / result.FilledShares
	}
	if hasAsk && bestAsk.Price > 0 && result.ExpectedPrice > 0 {
		diff := result.ExpectedPrice - bestAsk.Price
		if diff < 0 {
			diff = -diff
		}
		result.SlippagePct = diff / bestAsk.Price
	}

	return result
}
