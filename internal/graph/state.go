package graph

import "github.com/mohammad-safakhou/prosearch/models"

// State is the single record threaded through the research graph. Nodes
// receive an isolated snapshot and return a Delta; the engine merges deltas
// back using the per-field reducer table below, so no node ever mutates
// shared state directly.
type State struct {
	Messages           []models.Message
	SearchQueries      []string
	WebResearchResults []string
	SourcesGathered    []models.Source

	ResearchLoopCount  int
	IsSufficient       bool
	KnowledgeGap       string
	FollowUpQueries    []string
	NumberOfRanQueries int

	// Per-run parameters, set once at init and read-only afterward.
	LLMProvider             string
	ReasoningModel          string
	SearchProvider          string
	InitialSearchQueryCount int
	MaxResearchLoops        int
}

// Clone deep-copies the state so a node's snapshot cannot alias the shared
// slices.
func (s State) Clone() State {
	c := s
	c.Messages = append([]models.Message(nil), s.Messages...)
	c.SearchQueries = append([]string(nil), s.SearchQueries...)
	c.WebResearchResults = append([]string(nil), s.WebResearchResults...)
	c.SourcesGathered = append([]models.Source(nil), s.SourcesGathered...)
	c.FollowUpQueries = append([]string(nil), s.FollowUpQueries...)
	return c
}

// ApplyDefaults fills every unset field with its documented default so
// downstream nodes can assume all keys exist. It is idempotent.
func (s *State) ApplyDefaults(initialQueryCount, maxLoops int) {
	if s.Messages == nil {
		s.Messages = []models.Message{}
	}
	if s.SearchQueries == nil {
		s.SearchQueries = []string{}
	}
	if s.WebResearchResults == nil {
		s.WebResearchResults = []string{}
	}
	if s.SourcesGathered == nil {
		s.SourcesGathered = []models.Source{}
	}
	if s.FollowUpQueries == nil {
		s.FollowUpQueries = []string{}
	}
	if s.SearchProvider == "" {
		s.SearchProvider = "google"
	}
	if s.InitialSearchQueryCount == 0 {
		s.InitialSearchQueryCount = initialQueryCount
	}
	if s.MaxResearchLoops == 0 {
		s.MaxResearchLoops = maxLoops
	}
}

// Delta is a node's partial state update. Slice fields with an append policy
// carry only the node's own contribution; pointer fields distinguish "unset"
// from a written zero value for the replace policy.
type Delta struct {
	Messages           []models.Message // replace, finalize only
	SearchQueries      []string         // append; branch deltas only, generate_query's batch is dispatched
	WebResearchResults []string         // append
	Sources            []models.Source  // append; replace wholesale when ReplaceSources
	ReplaceSources     bool
	ResearchLoopCount  *int
	IsSufficient       *bool
	KnowledgeGap       *string
	FollowUpQueries    []string // replace when SetFollowUps
	SetFollowUps       bool
	NumberOfRanQueries *int
}

// reducer binds one state field to its merge operation. Keeping the policies
// in one table makes the merge semantics auditable in a single place and
// keeps node code free of merge logic.
type reducer struct {
	field string
	apply func(*State, Delta)
}

var reducers = []reducer{
	{"messages", func(s *State, d Delta) {
		if len(d.Messages) > 0 {
			s.Messages = d.Messages
		}
	}},
	{"search_query", func(s *State, d Delta) {
		s.SearchQueries = append(s.SearchQueries, d.SearchQueries...)
	}},
	{"web_research_result", func(s *State, d Delta) {
		s.WebResearchResults = append(s.WebResearchResults, d.WebResearchResults...)
	}},
	{"sources_gathered", func(s *State, d Delta) {
		if d.ReplaceSources {
			s.SourcesGathered = append([]models.Source{}, d.Sources...)
			return
		}
		s.SourcesGathered = append(s.SourcesGathered, d.Sources...)
	}},
	{"research_loop_count", func(s *State, d Delta) {
		if d.ResearchLoopCount != nil {
			s.ResearchLoopCount = *d.ResearchLoopCount
		}
	}},
	{"is_sufficient", func(s *State, d Delta) {
		if d.IsSufficient != nil {
			s.IsSufficient = *d.IsSufficient
		}
	}},
	{"knowledge_gap", func(s *State, d Delta) {
		if d.KnowledgeGap != nil {
			s.KnowledgeGap = *d.KnowledgeGap
		}
	}},
	{"follow_up_queries", func(s *State, d Delta) {
		if d.SetFollowUps {
			s.FollowUpQueries = append([]string{}, d.FollowUpQueries...)
		}
	}},
	{"number_of_ran_queries", func(s *State, d Delta) {
		if d.NumberOfRanQueries != nil {
			s.NumberOfRanQueries = *d.NumberOfRanQueries
		}
	}},
}

// Apply merges one delta into the shared state, field by field.
func Apply(s *State, d Delta) {
	for _, r := range reducers {
		r.apply(s, d)
	}
}

// Ptr is a small helper for the replace-policy pointer fields.
func Ptr[T any](v T) *T { return &v }
