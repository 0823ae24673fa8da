package collectors

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/marketlens/marketlens/internal/upstream"
)

func TestIsValidTradeRejectsZeroPrice(t *testing.T) {
	dto := upstream.TradeDTO{}
	assert.False(t, isValidTrade(dto, time.Now(), time.Now().Add(time.Hour)))
}

func TestIsValidTradeRejectsPriceAboveOne(t *testing.T) {
	raw := []byte(`{"price": 1.5, "size": 10, "side": "buy"}`)
	dto := mustTradeDTO(t, raw)
	assert.False(t, isValidTrade(dto, time.Now(), time.Now().Add(time.Hour)))
}

func TestIsValidTradeRejectsFarFutureTimestamp(t *testing.T) {
	raw := []byte(`{"price": 0.5, "size": 10, "side": "buy"}`)
	dto := mustTradeDTO(t, raw)
	assert.False(t, isValidTrade(dto, time.Now().Add(2*time.Hour), time.Now().Add(time.Hour)))
}

func TestIsValidTradeRejectsInvalidSide(t *testing.T) {
	raw := []byte(`{"price": 0.5, "size": 10, "side": "hold"}`)
	dto := mustTradeDTO(t, raw)
	assert.False(t, isValidTrade(dto, time.Now(), time.Now().Add(time.Hour)))
}

func TestIsValidTradeAcceptsNullSide(t *testing.T) {
	raw := []byte(`{"price": 0.5, "size": 10}`)
	dto := mustTradeDTO(t, raw)
	assert.True(t, isValidTrade(dto, time.Now(), time.Now().Add(time.Hour)))
}

func TestFallbackTradeIDDeterministic(t *testing.T) {
	raw := []byte(`{"token_id": "1234567890abcdef", "price": 0.5, "size": 10, "side": "buy"}`)
	dto := mustTradeDTO(t, raw)
	ts := time.Unix(1700000000, 0).UTC()

	id1 := fallbackTradeID(dto, ts)
	id2 := fallbackTradeID(dto, ts)
	assert.Equal(t, id1, id2)
	assert.Len(t, id1, 32)
}

func mustTradeDTO(t *testing.T, raw []byte) upstream.TradeDTO {
	t.Helper()
	var dto upstream.TradeDTO
	if err := json.Unmarshal(raw, &dto); err != nil {
		t.Fatalf("unmarshal trade dto: %v", err)
	}
	return dto
}
