package store

import "encoding/json"

// Alert data is a tagged union: one struct per AlertKind, serialized into
// Alert.Data. Analyzers build the typed variant; the read API discriminates
// on Alert.Kind before unmarshaling (Design Notes: "JSON blob on alerts").

// VolumeSpikeData is the payload for AlertVolumeSpike.
type VolumeSpikeData struct {
	TokenID       string  `json:"token_id"`
	BaselineVol   float64 `json:"baseline_volume"`
	HourlyAvg     float64 `json:"hourly_avg"`
	RecentVol     float64 `json:"recent_volume"`
	FlashVol      float64 `json:"flash_volume"`
	Ratio         float64 `json:"ratio"`
	SpikeType     string  `json:"spike_type"` // "standard_spike" | "flash_spike"
}

// SpreadAlertData is the payload for AlertSpread.
type SpreadAlertData struct {
	TokenID     string  `json:"token_id"`
	SpreadPct   float64 `json:"spread_pct"`
	BestBid     float64 `json:"best_bid"`
	BestAsk     float64 `json:"best_ask"`
	SnapshotAge float64 `json:"snapshot_age_seconds"`
}

// MMPullbackData is the payload for AlertMMPullback.
type MMPullbackData struct {
	TokenID    string  `json:"token_id"`
	DepthLevel string  `json:"depth_level"` // "1%" | "5%" | "10%"
	Drop       float64 `json:"drop"`
	OldDepth   float64 `json:"old_depth"`
	NewDepth   float64 `json:"new_depth"`
}

// ArbitrageData is the payload for AlertArbitrage, covering both the
// intra-market detector and the four cross-market strategies.
type ArbitrageData struct {
	Type               string   `json:"type"` // "intra_market" | "mutually_exclusive" | "conditional" | "time_sequence" | "subset"
	Strategy           string   `json:"strategy"`
	MarketIDs          []string `json:"market_ids"`
	GroupID            string   `json:"group_id,omitempty"`
	Profit             float64  `json:"profit"`
	Total              float64  `json:"total,omitempty"`
	Legs               []ArbLeg `json:"legs"`
	AssumedYesOutcome  bool     `json:"assumed_yes_outcome,omitempty"`
}

// ArbLeg is one side of an arbitrage strategy.
type ArbLeg struct {
	MarketID    string  `json:"market_id"`
	OutcomeName string  `json:"outcome_name"`
	Side        string  `json:"side"` // "buy" | "sell"
	Price       float64 `json:"price"`
	Source      string  `json:"source"` // "orderbook" | "cached_outcome"
}

// MarshalAlertData serializes any of the typed variants into a JSONDoc.
func MarshalAlertData(v interface{}) (JSONDoc, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return JSONDoc{}, err
	}
	return JSONDoc{Raw: b}, nil
}
