package upstream

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"
)

// MarketDTO is the tolerant decoding target for one Gamma API market
// record. Numeric and boolean fields routinely arrive as either native
// JSON types or strings, so most fields are captured as json.RawMessage
// or string and coerced by the caller (§4.3 market sync).
type MarketDTO struct {
	ID              string          `json:"id"`
	ConditionID     string          `json:"condition_id"`
	Question        string          `json:"question"`
	Active          *bool           `json:"active"`
	Closed          *bool           `json:"closed"`
	AcceptingOrders *bool           `json:"accepting_orders"`
	EnableOrderBook *bool           `json:"enable_order_book"`
	Category        string          `json:"category"`
	Volume          json.RawMessage `json:"volume"`
	VolumeNum       json.RawMessage `json:"volumeNum"`
	Liquidity       json.RawMessage `json:"liquidity"`
	LiquidityNum    json.RawMessage `json:"liquidityNum"`
	Tokens          []TokenDTO      `json:"tokens"`
	ClobTokenIDs    json.RawMessage `json:"clobTokenIds"`
	Outcomes        json.RawMessage `json:"outcomes"`
	EndDate         json.RawMessage `json:"end_date"`
	EndDateAlt      json.RawMessage `json:"endDate"`
	ResolutionDate  json.RawMessage `json:"resolutionDate"`
}

// TokenDTO is one element of the preferred "tokens" array.
type TokenDTO struct {
	TokenID string          `json:"token_id"`
	Outcome string          `json:"outcome"`
	Price   json.RawMessage `json:"price"`
}

// ParsedOutcome is the normalized {name, token_id, price} triple produced
// by DeriveOutcomes, independent of which upstream shape supplied it.
type ParsedOutcome struct {
	Name    string
	TokenID string
	Price   float64
}

// DeriveOutcomes implements the §4.3 fallback chain: prefer the explicit
// "tokens" array; otherwise fall back to the parallel clobTokenIds /
// outcomes arrays, which may arrive as JSON-encoded strings and must be
// decoded before use.
func (m MarketDTO) DeriveOutcomes() []ParsedOutcome {
	if len(m.Tokens) > 0 {
		out := make([]ParsedOutcome, 0, len(m.Tokens))
		for _, t := range m.Tokens {
			out = append(out, ParsedOutcome{
				Name:    t.Outcome,
				TokenID: t.TokenID,
				Price:   parseFloatLoose(t.Price),
			})
		}
		return out
	}

	tokenIDs := decodeStringArray(m.ClobTokenIDs)
	if len(tokenIDs) == 0 {
		return nil
	}
	names := decodeStringArray(m.Outcomes)

	out := make([]ParsedOutcome, 0, len(tokenIDs))
	for i, tokenID := range tokenIDs {
		name := defaultOutcomeName(i)
		if i < len(names) && names[i] != "" {
			name = names[i]
		}
		out = append(out, ParsedOutcome{Name: name, TokenID: tokenID})
	}
	return out
}

func defaultOutcomeName(index int) string {
	switch index {
	case 0:
		return "Yes"
	case 1:
		return "No"
	default:
		return "Outcome " + strconv.Itoa(index+1)
	}
}

// decodeStringArray handles both a native JSON array and a JSON-encoded
// string containing an array, the shape clobTokenIds/outcomes arrive in
// from the upstream Gamma API.
func decodeStringArray(raw json.RawMessage) []string {
	if len(raw) == 0 {
		return nil
	}

	var direct []string
	if err := json.Unmarshal(raw, &direct); err == nil {
		return direct
	}

	var asString string
	if err := json.Unmarshal(raw, &asString); err == nil && asString != "" {
		var nested []string
		if err := json.Unmarshal([]byte(asString), &nested); err == nil {
			return nested
		}
	}
	return nil
}

// parseFloatLoose accepts a JSON number or a JSON string containing a
// number, returning 0 for anything else.
func parseFloatLoose(raw json.RawMessage) float64 {
	if len(raw) == 0 {
		return 0
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err == nil {
		return f
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if v, err := strconv.ParseFloat(strings.TrimSpace(s), 64); err == nil {
			return v
		}
	}
	return 0
}

// ParseEndDate parses end_date | endDate | resolutionDate, accepting ISO
// strings, Unix seconds, or Unix milliseconds (values > 1e12 are treated
// as milliseconds), per §4.3.
func (m MarketDTO) ParseEndDate() *time.Time {
	for _, raw := range []json.RawMessage{m.EndDate, m.EndDateAlt, m.ResolutionDate} {
		if t := parseFlexibleTime(raw); t != nil {
			return t
		}
	}
	return nil
}

func parseFlexibleTime(raw json.RawMessage) *time.Time {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}

	var asNumber float64
	if err := json.Unmarshal(raw, &asNumber); err == nil {
		return unixFlexible(asNumber)
	}

	var asString string
	if err := json.Unmarshal(raw, &asString); err == nil && asString != "" {
		if v, err := strconv.ParseFloat(asString, 64); err == nil {
			return unixFlexible(v)
		}
		for _, layout := range []string{time.RFC3339, time.RFC3339Nano, "2006-01-02T15:04:05", "2006-01-02"} {
			if t, err := time.Parse(layout, asString); err == nil {
				return &t
			}
		}
	}
	return nil
}

func unixFlexible(v float64) *time.Time {
	var t time.Time
	if v > 1e12 {
		t = time.UnixMilli(int64(v))
	} else {
		t = time.Unix(int64(v), 0)
	}
	t = t.UTC()
	return &t
}

// EffectiveVolume prefers "volume", falling back to "volumeNum".
func (m MarketDTO) EffectiveVolume() float64 {
	if v := parseFloatLoose(m.Volume); v != 0 {
		return v
	}
	return parseFloatLoose(m.VolumeNum)
}

// EffectiveLiquidity prefers "liquidity", falling back to "liquidityNum".
func (m MarketDTO) EffectiveLiquidity() float64 {
	if v := parseFloatLoose(m.Liquidity); v != 0 {
		return v
	}
	return parseFloatLoose(m.LiquidityNum)
}

// BoolOr returns *b if non-nil, otherwise def.
func BoolOr(b *bool, def bool) bool {
	if b == nil {
		return def
	}
	return *b
}

// OrderBookDTO is the CLOB API /book response shape.
type OrderBookDTO struct {
	Bids []LevelDTO `json:"bids"`
	Asks []LevelDTO `json:"asks"`
}

// LevelDTO is one price/size rung, tolerant of string-encoded numbers.
type LevelDTO struct {
	Price json.RawMessage `json:"price"`
	Size  json.RawMessage `json:"size"`
}

func (l LevelDTO) ParsedPrice() float64 { return parseFloatLoose(l.Price) }
func (l LevelDTO) ParsedSize() float64  { return parseFloatLoose(l.Size) }

// TradeDTO is one CLOB API /trades response record. The upstream public
// and authenticated trade endpoints disagree on the token-id field name
// (asset | asset_id | token_id), so all three are captured and resolved
// by TokenID() (§6 External Interfaces).
type TradeDTO struct {
	ID            string          `json:"id"`
	Asset         string          `json:"asset"`
	AssetID       string          `json:"asset_id"`
	TokenIDField  string          `json:"token_id"`
	Price         json.RawMessage `json:"price"`
	Size          json.RawMessage `json:"size"`
	Side          string          `json:"side"`
	Timestamp     json.RawMessage `json:"timestamp"`
	Maker         string          `json:"maker"`
	Taker         string          `json:"taker"`
}

func (t TradeDTO) ParsedPrice() float64 { return parseFloatLoose(t.Price) }
func (t TradeDTO) ParsedSize() float64  { return parseFloatLoose(t.Size) }

// TokenID resolves the upstream's inconsistent token-id field naming:
// prefers "asset", falls back to "asset_id" then "token_id" (§6).
func (t TradeDTO) TokenID() string {
	if t.Asset != "" {
		return t.Asset
	}
	if t.AssetID != "" {
		return t.AssetID
	}
	return t.TokenIDField
}

// ParsedTimestamp parses the trade timestamp with the same flexible rules
// as market end dates (ISO / unix seconds / unix millis).
func (t TradeDTO) ParsedTimestamp() time.Time {
	if parsed := parseFlexibleTime(t.Timestamp); parsed != nil {
		return *parsed
	}
	return time.Time{}
}

// NormalizedSide lowercases side for consistent storage (§9 Open
// Questions: side is lowercased on ingest).
func (t TradeDTO) NormalizedSide() string {
	return strings.ToLower(strings.TrimSpace(t.Side))
}
