package relationships

import (
	"fmt"
	"sort"

	"github.com/marketlens/marketlens/internal/store"
)

// detectMutualExclusion groups markets by their "will X win Y" event
// signature and proposes every pairing within a group as a
// mutually-exclusive edge sharing one group id (§4.5).
func detectMutualExclusion(markets []store.Market, declared declaredKeySet) []Candidate {
	groups := make(map[string][]store.Market)
	for _, m := range markets {
		event, ok := whoWinsEvent(m.Question)
		if !ok || event == "" {
			continue
		}
		key := m.Category + "|" + event
		groups[key] = append(groups[key], m)
	}

	var out []Candidate
	for key, group := range groups {
		if len(group) < 2 {
			continue
		}
		sort.Slice(group, func(i, j int) bool { return group[i].ID < group[j].ID })
		groupID := fmt.Sprintf("mutex-%x", hashString(key))

		// key already bundles category + event signature, so every
		// market in group shares a category: this is the strong case.
		confidence := 0.8

		for i := 0; i < len(group); i++ {
			for j := i + 1; j < len(group); j++ {
				parent, child := group[i].ID, group[j].ID
				if declared.has(store.RelationMutuallyExclusive, parent, child) {
					continue
				}
				out = append(out, Candidate{
					Kind:           store.RelationMutuallyExclusive,
					ParentMarketID: parent,
					ChildMarketID:  child,
					GroupID:        &groupID,
					Confidence:     confidence,
					Notes:          "who-wins pattern sharing event: " + key,
				})
			}
		}
	}
	return out
}

// detectConditional groups markets by base signature (stage keywords
// stripped) and proposes a conditional edge from the earlier stage to
// the later stage within each group (§4.5).
func detectConditional(markets []store.Market, declared declaredKeySet) []Candidate {
	type staged struct {
		market store.Market
		stage  int
	}
	groups := make(map[string][]staged)
	for _, m := range markets {
		stage := stageIndex(m.Question)
		if stage < 0 {
			continue
		}
		key := baseSignature(m.Question)
		if key == "" {
			continue
		}
		groups[key] = append(groups[key], staged{market: m, stage: stage})
	}

	var out []Candidate
	for key, group := range groups {
		if len(group) < 2 {
			continue
		}
		sort.Slice(group, func(i, j int) bool {
			if group[i].stage != group[j].stage {
				return group[i].stage < group[j].stage
			}
			return group[i].market.ID < group[j].market.ID
		})

		for i := 0; i < len(group); i++ {
			for j := i + 1; j < len(group); j++ {
				if group[i].stage == group[j].stage {
					continue
				}
				parent, child := group[i].market.ID, group[j].market.ID
				if declared.has(store.RelationConditional, parent, child) {
					continue
				}
				distance := group[j].stage - group[i].stage
				confidence := 0.8 - 0.1*float64(distance-1)
				if confidence < 0.5 {
					confidence = 0.5
				}
				out = append(out, Candidate{
					Kind:           store.RelationConditional,
					ParentMarketID: parent,
					ChildMarketID:  child,
					Confidence:     confidence,
					Notes:          "stage progression sharing base question: " + key,
				})
			}
		}
	}
	return out
}

// detectTimeSequence groups markets by base signature (time reference
// stripped) and proposes a time-sequence edge from the earlier-dated
// market to the later-dated one within each group (§4.5).
func detectTimeSequence(markets []store.Market, declared declaredKeySet) []Candidate {
	type dated struct {
		market store.Market
		year   int
	}
	groups := make(map[string][]dated)
	for _, m := range markets {
		year, ok := timeReferenceYear(m.Question)
		if !ok {
			continue
		}
		key := baseSignature(m.Question)
		if key == "" {
			continue
		}
		groups[key] = append(groups[key], dated{market: m, year: year})
	}

	var out []Candidate
	for key, group := range groups {
		if len(group) < 2 {
			continue
		}
		sort.Slice(group, func(i, j int) bool {
			if group[i].year != group[j].year {
				return group[i].year < group[j].year
			}
			return group[i].market.ID < group[j].market.ID
		})

		for i := 0; i+1 < len(group); i++ {
			if group[i].year == group[i+1].year {
				continue
			}
			parent, child := group[i].market.ID, group[i+1].market.ID
			if declared.has(store.RelationTimeSequence, parent, child) {
				continue
			}
			out = append(out, Candidate{
				Kind:           store.RelationTimeSequence,
				ParentMarketID: parent,
				ChildMarketID:  child,
				Confidence:     0.7,
				Notes:          "shared base question with ascending year reference: " + key,
			})
		}
	}
	return out
}

// detectSubset groups markets by base signature (subset qualifier
// stripped) and proposes a subset edge from the broader (lower
// threshold) market to the narrower (higher threshold) one within each
// group (§4.5).
func detectSubset(markets []store.Market, declared declaredKeySet) []Candidate {
	type qualified struct {
		market    store.Market
		threshold int
	}
	groups := make(map[string][]qualified)
	for _, m := range markets {
		threshold, ok := subsetThreshold(m.Question)
		if !ok {
			continue
		}
		key := baseSignature(m.Question)
		if key == "" {
			continue
		}
		groups[key] = append(groups[key], qualified{market: m, threshold: threshold})
	}

	var out []Candidate
	for key, group := range groups {
		if len(group) < 2 {
			continue
		}
		sort.Slice(group, func(i, j int) bool {
			if group[i].threshold != group[j].threshold {
				return group[i].threshold < group[j].threshold
			}
			return group[i].market.ID < group[j].market.ID
		})

		for i := 0; i+1 < len(group); i++ {
			if group[i].threshold == group[i+1].threshold {
				continue
			}
			parent, child := group[i].market.ID, group[i+1].market.ID
			if declared.has(store.RelationSubset, parent, child) {
				continue
			}
			out = append(out, Candidate{
				Kind:           store.RelationSubset,
				ParentMarketID: parent,
				ChildMarketID:  child,
				Confidence:     0.7,
				Notes:          "shared base question with ascending numeric qualifier: " + key,
			})
		}
	}
	return out
}
