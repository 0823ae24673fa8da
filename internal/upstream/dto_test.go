package upstream

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeriveOutcomesPrefersTokensArray(t *testing.T) {
	raw := []byte(`{
		"tokens": [
			{"token_id": "1234567890abcdef", "outcome": "Yes", "price": "0.40"},
			{"token_id": "abcdef1234567890", "outcome": "No", "price": 0.60}
		]
	}`)
	var dto MarketDTO
	require.NoError(t, json.Unmarshal(raw, &dto))

	outcomes := dto.DeriveOutcomes()
	require.Len(t, outcomes, 2)
	assert.Equal(t, "Yes", outcomes[0].Name)
	assert.InDelta(t, 0.40, outcomes[0].Price, 1e-9)
	assert.InDelta(t, 0.60, outcomes[1].Price, 1e-9)
}

func TestDeriveOutcomesFallsBackToClobTokenIDs(t *testing.T) {
	raw := []byte(`{
		"clobTokenIds": "[\"1234567890abcdef\", \"abcdef1234567890\"]",
		"outcomes": "[\"Yes\", \"No\"]"
	}`)
	var dto MarketDTO
	require.NoError(t, json.Unmarshal(raw, &dto))

	outcomes := dto.DeriveOutcomes()
	require.Len(t, outcomes, 2)
	assert.Equal(t, "1234567890abcdef", outcomes[0].TokenID)
	assert.Equal(t, "Yes", outcomes[0].Name)
	assert.Equal(t, "No", outcomes[1].Name)
}

func TestDeriveOutcomesDefaultNamesWithoutOutcomesArray(t *testing.T) {
	raw := []byte(`{"clobTokenIds": ["1234567890abcdef", "abcdef1234567890", "zzzzzzzzzzzzzzzz"]}`)
	var dto MarketDTO
	require.NoError(t, json.Unmarshal(raw, &dto))

	outcomes := dto.DeriveOutcomes()
	require.Len(t, outcomes, 3)
	assert.Equal(t, "Yes", outcomes[0].Name)
	assert.Equal(t, "No", outcomes[1].Name)
	assert.Equal(t, "Outcome 3", outcomes[2].Name)
}

func TestParseEndDateISOString(t *testing.T) {
	var dto MarketDTO
	require.NoError(t, json.Unmarshal([]byte(`{"end_date": "2026-01-15T00:00:00Z"}`), &dto))
	end := dto.ParseEndDate()
	require.NotNil(t, end)
	assert.Equal(t, 2026, end.Year())
}

func TestParseEndDateUnixSeconds(t *testing.T) {
	var dto MarketDTO
	require.NoError(t, json.Unmarshal([]byte(`{"endDate": 1700000000}`), &dto))
	end := dto.ParseEndDate()
	require.NotNil(t, end)
	assert.Equal(t, int64(1700000000), end.Unix())
}

func TestParseEndDateUnixMillis(t *testing.T) {
	var dto MarketDTO
	require.NoError(t, json.Unmarshal([]byte(`{"resolutionDate": 1700000000000}`), &dto))
	end := dto.ParseEndDate()
	require.NotNil(t, end)
	assert.Equal(t, int64(1700000000), end.Unix())
}

func TestParseEndDateMissing(t *testing.T) {
	var dto MarketDTO
	require.NoError(t, json.Unmarshal([]byte(`{}`), &dto))
	assert.Nil(t, dto.ParseEndDate())
}

func TestEffectiveVolumeFallsBackToVolumeNum(t *testing.T) {
	var dto MarketDTO
	require.NoError(t, json.Unmarshal([]byte(`{"volumeNum": 123.5}`), &dto))
	assert.InDelta(t, 123.5, dto.EffectiveVolume(), 1e-9)
}

func TestTradeNormalizedSideLowercased(t *testing.T) {
	trade := TradeDTO{Side: "BUY"}
	assert.Equal(t, "buy", trade.NormalizedSide())
}

func TestTradeParsedTimestampFlexible(t *testing.T) {
	var trade TradeDTO
	require.NoError(t, json.Unmarshal([]byte(`{"timestamp": 1700000000}`), &trade))
	assert.Equal(t, int64(1700000000), trade.ParsedTimestamp().Unix())
}

func TestTradeTokenIDPrefersAssetOverAssetIDAndTokenID(t *testing.T) {
	var trade TradeDTO
	require.NoError(t, json.Unmarshal([]byte(`{"asset": "a1", "asset_id": "a2", "token_id": "a3"}`), &trade))
	assert.Equal(t, "a1", trade.TokenID())
}

func TestTradeTokenIDFallsBackToAssetID(t *testing.T) {
	var trade TradeDTO
	require.NoError(t, json.Unmarshal([]byte(`{"asset_id": "a2", "token_id": "a3"}`), &trade))
	assert.Equal(t, "a2", trade.TokenID())
}

func TestTradeTokenIDFallsBackToTokenIDField(t *testing.T) {
	var trade TradeDTO
	require.NoError(t, json.Unmarshal([]byte(`{"token_id": "a3"}`), &trade))
	assert.Equal(t, "a3", trade.TokenID())
}
