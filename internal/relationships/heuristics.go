// Package relationships implements the heuristic relationship detector:
// it proposes candidate edges between active markets by comparing
// question text and category, without ever writing them — confirmation
// is a manual operation performed through the declared-relationship
// store methods (§4.5).
package relationships

import (
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// stopWords are filtered out of a question before building its
// signature, the way a search-relevance pipeline strips function words
// before comparing documents.
var stopWords = map[string]bool{
	"a": true, "an": true, "the": true, "will": true, "to": true, "of": true,
	"in": true, "on": true, "by": true, "who": true, "what": true, "is": true,
	"are": true, "be": true, "for": true, "or": true, "and": true, "this": true,
	"that": true, "win": true, "wins": true, "before": true, "than": true,
	"more": true, "over": true, "at": true, "with": true,
}

var nonWord = regexp.MustCompile(`[^a-z0-9\s]+`)

// tokenize lowercases, strips punctuation, and splits a question into
// words, dropping stop words and anything under three characters.
func tokenize(question string) []string {
	cleaned := nonWord.ReplaceAllString(strings.ToLower(question), " ")
	fields := strings.Fields(cleaned)
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		if len(f) < 3 || stopWords[f] {
			continue
		}
		out = append(out, f)
	}
	return out
}

// signature builds a stable, order-independent fingerprint for a
// question's significant tokens, used to cluster otherwise-unrelated
// markets that are really asking variations of the same question.
func signature(question string) string {
	tokens := tokenize(question)
	sort.Strings(tokens)
	return strings.Join(tokens, " ")
}

var whoWinsPattern = regexp.MustCompile(`(?i)^will\s+(.+?)\s+win\s+(.+?)\??$`)

// whoWinsEvent extracts the event half of a "will X win Y" question,
// the shared signature that groups its candidates into one
// mutually-exclusive set (§4.5).
func whoWinsEvent(question string) (event string, ok bool) {
	m := whoWinsPattern.FindStringSubmatch(strings.TrimSpace(question))
	if m == nil {
		return "", false
	}
	return signature(m[2]), true
}

// stageKeywords lists the stage-progression vocabulary in ascending
// order; a market mentioning an earlier stage is a candidate parent of
// one mentioning a later stage over the same base question (§4.5).
var stageKeywords = []string{"primary", "nomination", "nominee", "election", "runoff"}

// stageIndex returns the position of the first stage keyword found in
// question, or -1 if none match.
func stageIndex(question string) int {
	lower := strings.ToLower(question)
	for i, kw := range stageKeywords {
		if strings.Contains(lower, kw) {
			return i
		}
	}
	return -1
}

// baseSignature strips a question of known stage/time/subset qualifier
// phrases before computing its signature, so two markets differing
// only by stage, year, or threshold still cluster together.
func baseSignature(question string) string {
	stripped := question
	for _, kw := range stageKeywords {
		stripped = regexp.MustCompile(`(?i)`+kw).ReplaceAllString(stripped, "")
	}
	stripped = timeReferencePattern.ReplaceAllString(stripped, "")
	stripped = subsetQualifierPattern.ReplaceAllString(stripped, "")
	return signature(stripped)
}

var timeReferencePattern = regexp.MustCompile(`(?i)\b(?:by|in|before)\s+(\d{4})\b`)

// timeReferenceYear extracts the referenced year from a question, if
// any, for the time-sequence heuristic (§4.5).
func timeReferenceYear(question string) (int, bool) {
	m := timeReferencePattern.FindStringSubmatch(question)
	if m == nil {
		return 0, false
	}
	year, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, false
	}
	return year, true
}

var subsetQualifierPattern = regexp.MustCompile(`(?i)\b(?:by|over|more than)\s+(\d+)\+?\b`)

// subsetThreshold extracts the numeric qualifier from a question, if
// any ("by 50+", "over 10", "more than 5"), for the subset heuristic
// (§4.5).
func subsetThreshold(question string) (int, bool) {
	m := subsetQualifierPattern.FindStringSubmatch(question)
	if m == nil {
		return 0, false
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, false
	}
	return n, true
}
