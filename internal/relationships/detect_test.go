package relationships

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marketlens/marketlens/internal/store"
)

func market(id, question, category string) store.Market {
	return store.Market{ID: id, Question: question, Category: category}
}

func TestDetectMutualExclusionGroupsSharedEvent(t *testing.T) {
	markets := []store.Market{
		market("m1", "Will Alice win the presidential election?", "politics"),
		market("m2", "Will Bob win the presidential election?", "politics"),
		market("m3", "Will it rain tomorrow?", "weather"),
	}
	declared := declaredKeySet{}

	candidates := detectMutualExclusion(markets, declared)
	require.Len(t, candidates, 1)
	assert.Equal(t, store.RelationMutuallyExclusive, candidates[0].Kind)
	assert.Equal(t, "m1", candidates[0].ParentMarketID)
	assert.Equal(t, "m2", candidates[0].ChildMarketID)
	require.NotNil(t, candidates[0].GroupID)
	assert.InDelta(t, 0.8, candidates[0].Confidence, 1e-9)
}

func TestDetectMutualExclusionSkipsAlreadyDeclared(t *testing.T) {
	markets := []store.Market{
		market("m1", "Will Alice win the presidential election?", "politics"),
		market("m2", "Will Bob win the presidential election?", "politics"),
	}
	declared := declaredKeySet{
		store.RelationMutuallyExclusive: {{"m1", "m2"}: true},
	}

	candidates := detectMutualExclusion(markets, declared)
	assert.Empty(t, candidates)
}

func TestDetectConditionalOrdersByStage(t *testing.T) {
	markets := []store.Market{
		market("m1", "Will Alice win the nomination?", "politics"),
		market("m2", "Will Alice win the election?", "politics"),
	}
	declared := declaredKeySet{}

	candidates := detectConditional(markets, declared)
	require.Len(t, candidates, 1)
	assert.Equal(t, store.RelationConditional, candidates[0].Kind)
	assert.Equal(t, "m1", candidates[0].ParentMarketID)
	assert.Equal(t, "m2", candidates[0].ChildMarketID)
}

func TestDetectTimeSequenceOrdersByYear(t *testing.T) {
	markets := []store.Market{
		market("m1", "Will candidate X win by 2028?", "politics"),
		market("m2", "Will candidate X win by 2032?", "politics"),
	}
	declared := declaredKeySet{}

	candidates := detectTimeSequence(markets, declared)
	require.Len(t, candidates, 1)
	assert.Equal(t, store.RelationTimeSequence, candidates[0].Kind)
	assert.Equal(t, "m1", candidates[0].ParentMarketID)
	assert.Equal(t, "m2", candidates[0].ChildMarketID)
}

func TestDetectSubsetOrdersByThreshold(t *testing.T) {
	markets := []store.Market{
		market("m1", "Will the index gain over 5 percent?", "finance"),
		market("m2", "Will the index gain over 10 percent?", "finance"),
	}
	declared := declaredKeySet{}

	candidates := detectSubset(markets, declared)
	require.Len(t, candidates, 1)
	assert.Equal(t, store.RelationSubset, candidates[0].Kind)
	assert.Equal(t, "m1", candidates[0].ParentMarketID)
	assert.Equal(t, "m2", candidates[0].ChildMarketID)
}

func TestSignatureIgnoresStopWordsAndOrder(t *testing.T) {
	a := signature("Will Alice win the election?")
	b := signature("the election win will Alice")
	assert.Equal(t, a, b)
}
