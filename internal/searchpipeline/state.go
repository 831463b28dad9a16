package searchpipeline

// State names one step of a request's progress through the pipeline, or
// one of its terminal error states, per spec.md §4.7.
type State string

const (
	StateReceived   State = "received"
	StateAuthorized State = "authorized"
	StateCacheLookup State = "cache_lookup"
	StateCacheHit   State = "cache_hit"
	StateEmbedded   State = "embedded"
	StateSearched   State = "searched"
	StateEnriched   State = "enriched"
	StateFiltered   State = "filtered"
	StateRanked     State = "ranked"
	StateShaped     State = "shaped"
	StateResponded  State = "responded"

	StateRejectedAuth       State = "rejected_auth"
	StateRejectedValidation State = "rejected_validation"
	StateRejectedRateLimit  State = "rejected_rate_limit"
	StateFailedEmbedding    State = "failed_embedding"
	StateFailedIndex        State = "failed_index"
	StateFailedInternal     State = "failed_internal"
)

// Terminal reports whether a state ends the request's progression, either
// by responding or by failing.
func (s State) Terminal() bool {
	switch s {
	case StateResponded, StateRejectedAuth, StateRejectedValidation,
		StateRejectedRateLimit, StateFailedEmbedding, StateFailedIndex, StateFailedInternal:
		return true
	default:
		return false
	}
}
