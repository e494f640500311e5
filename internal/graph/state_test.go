package graph

import (
	"testing"

	"github.com/mohammad-safakhou/prosearch/models"
)

func TestApplyAppendPolicies(t *testing.T) {
	var s State
	s.ApplyDefaults(3, 2)

	Apply(&s, Delta{
		SearchQueries:      []string{"q1"},
		WebResearchResults: []string{"r1"},
		Sources:            []models.Source{{Label: "[1]", ShortURL: "[1]", URL: "https://a.com", Title: "A"}},
	})
	Apply(&s, Delta{
		SearchQueries:      []string{"q2"},
		WebResearchResults: []string{"r2"},
		Sources:            []models.Source{{Label: "[1]", ShortURL: "[1]", URL: "https://b.com", Title: "B"}},
	})

	if len(s.SearchQueries) != 2 || len(s.WebResearchResults) != 2 || len(s.SourcesGathered) != 2 {
		t.Fatalf("append policies not honored: %d queries, %d results, %d sources",
			len(s.SearchQueries), len(s.WebResearchResults), len(s.SourcesGathered))
	}
	if s.SearchQueries[0] != "q1" || s.SearchQueries[1] != "q2" {
		t.Fatalf("append order lost: %v", s.SearchQueries)
	}
}

func TestApplyReplacePolicies(t *testing.T) {
	var s State
	s.ApplyDefaults(3, 2)

	Apply(&s, Delta{
		ResearchLoopCount:  Ptr(1),
		IsSufficient:       Ptr(true),
		KnowledgeGap:       Ptr("gap"),
		FollowUpQueries:    []string{"f1"},
		SetFollowUps:       true,
		NumberOfRanQueries: Ptr(4),
	})
	if s.ResearchLoopCount != 1 || !s.IsSufficient || s.KnowledgeGap != "gap" || s.NumberOfRanQueries != 4 {
		t.Fatalf("replace policies not honored: %+v", s)
	}
	if len(s.FollowUpQueries) != 1 || s.FollowUpQueries[0] != "f1" {
		t.Fatalf("follow-ups not replaced: %v", s.FollowUpQueries)
	}

	// A reflection failure writes an empty follow-up list; it must still replace.
	Apply(&s, Delta{FollowUpQueries: nil, SetFollowUps: true})
	if len(s.FollowUpQueries) != 0 {
		t.Fatalf("empty follow-up replacement ignored: %v", s.FollowUpQueries)
	}

	// A delta without the flag leaves follow-ups alone.
	Apply(&s, Delta{})
	if s.FollowUpQueries == nil {
		t.Fatalf("unset delta cleared follow-ups")
	}
}

func TestApplyReplaceSourcesWholesale(t *testing.T) {
	var s State
	Apply(&s, Delta{Sources: []models.Source{
		{Label: "[1]", URL: "https://a.com"},
		{Label: "[2]", URL: "https://b.com"},
	}})
	Apply(&s, Delta{ReplaceSources: true, Sources: []models.Source{{Label: "[2]", URL: "https://b.com"}}})
	if len(s.SourcesGathered) != 1 || s.SourcesGathered[0].URL != "https://b.com" {
		t.Fatalf("wholesale replace failed: %+v", s.SourcesGathered)
	}

	Apply(&s, Delta{ReplaceSources: true})
	if len(s.SourcesGathered) != 0 {
		t.Fatalf("replace with empty set failed: %+v", s.SourcesGathered)
	}
}

func TestApplyDefaultsIdempotent(t *testing.T) {
	var s State
	s.ApplyDefaults(3, 2)
	if s.SearchProvider != "google" || s.InitialSearchQueryCount != 3 || s.MaxResearchLoops != 2 {
		t.Fatalf("defaults not applied: %+v", s)
	}

	s.SearchProvider = "tavily"
	s.ResearchLoopCount = 1
	s.ApplyDefaults(5, 9)
	if s.SearchProvider != "tavily" || s.InitialSearchQueryCount != 3 || s.MaxResearchLoops != 2 {
		t.Fatalf("second ApplyDefaults overwrote set fields: %+v", s)
	}
}

func TestCloneIsolation(t *testing.T) {
	s := State{SearchQueries: []string{"a"}, SourcesGathered: []models.Source{{URL: "https://a.com"}}}
	c := s.Clone()
	c.SearchQueries[0] = "changed"
	c.SourcesGathered[0].URL = "https://evil.com"
	if s.SearchQueries[0] != "a" || s.SourcesGathered[0].URL != "https://a.com" {
		t.Fatalf("clone aliases the original: %+v", s)
	}
}
