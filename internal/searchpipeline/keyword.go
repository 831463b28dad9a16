package searchpipeline

import (
	"strings"

	"goa.design/capsearch/internal/vectorindex"
)

// keywordCandidate is one item scanned by the keyword fallback: a stable
// domain id paired with the searchable text built the same way its
// embedding document would be (name, description, capability/tool text).
type keywordCandidate struct {
	ID   int64
	Text string
}

// keywordScore scores a candidate by token overlap against the query,
// used in place of vector search when the relevant index is unavailable
// (spec.md §4.7 degraded mode). Bounded by maxCandidates so an outage
// cannot turn a search request into an unbounded full-table scan.
func keywordScore(query string, candidates []keywordCandidate, maxCandidates int) []vectorindex.Hit {
	if maxCandidates > 0 && len(candidates) > maxCandidates {
		candidates = candidates[:maxCandidates]
	}
	queryTokens := tokenSet(query)
	if len(queryTokens) == 0 {
		return nil
	}

	hits := make([]vectorindex.Hit, 0, len(candidates))
	for _, c := range candidates {
		score := tokenOverlap(queryTokens, tokenSet(c.Text))
		if score <= 0 {
			continue
		}
		hits = append(hits, vectorindex.Hit{ID: c.ID, Similarity: score})
	}
	return hits
}

func tokenSet(text string) map[string]struct{} {
	fields := strings.Fields(strings.ToLower(text))
	set := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		set[f] = struct{}{}
	}
	return set
}

// tokenOverlap returns the Jaccard-style overlap fraction between two token
// sets relative to the query's own size, so a full substring match of a
// short query scores higher than a partial match against a long one.
func tokenOverlap(query, candidate map[string]struct{}) float32 {
	if len(query) == 0 {
		return 0
	}
	var matched int
	for tok := range query {
		if _, ok := candidate[tok]; ok {
			matched++
		}
	}
	return float32(matched) / float32(len(query))
}
