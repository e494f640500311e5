// Package graph implements the research orchestration engine: a fixed
// topology of computation nodes over a shared state, with scatter/gather
// fan-out for web research branches, declarative per-field merge policies and
// a bounded reflection loop.
package graph

import (
	"context"
	"fmt"
	"log"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
)

var tracer trace.Tracer = otel.Tracer("prosearch/internal/graph")

// NodeFunc is a graph node: snapshot in, delta out. Nodes absorb their own
// capability failures; a returned error is a programming bug, not a vendor
// outage, and aborts the run.
type NodeFunc func(ctx context.Context, s State) (Delta, error)

// WorkItem is the read-only branch slice handed to one scattered invocation:
// the query, a global sequential id and the provider to search with. Branches
// never see or mutate each other's items.
type WorkItem struct {
	Query          string
	ID             int
	SearchProvider string
}

// BranchFunc executes one scattered web research branch.
type BranchFunc func(ctx context.Context, item WorkItem) (Delta, error)

// DispatchFunc produces the initial scatter batch from the state and the
// queries emitted by generate_query. Must be pure.
type DispatchFunc func(s State, queries []string) []WorkItem

// Route is a routing decision: either proceed to the terminal node or run
// another scatter round.
type Route struct {
	Finalize bool
	Items    []WorkItem
}

// RouteFunc decides, after reflection, whether to loop or finalize. Must be
// pure: the engine may call it any number of times with the same state.
type RouteFunc func(s State) Route

// Graph is the fixed research topology:
//
//	init -> generate_query -> {scatter web_research} -> reflection
//	     -> evaluate -> (web_research loop | finalize_answer) -> done
type Graph struct {
	GenerateQuery NodeFunc
	Dispatch      DispatchFunc
	WebResearch   BranchFunc
	Reflect       NodeFunc
	Evaluate      RouteFunc
	Finalize      NodeFunc

	// Init defaults applied before the first node runs.
	InitialQueryCount int
	MaxLoops          int

	Logger                *log.Logger
	OnNode                func(node string, d time.Duration) // optional metrics hook
	MaxConcurrentBranches int
}

// Run executes the graph over an initial state and returns the final state.
func (g *Graph) Run(ctx context.Context, init State) (State, error) {
	ctx, span := tracer.Start(ctx, "graph.run")
	defer span.End()

	s := init
	s.ApplyDefaults(g.InitialQueryCount, g.MaxLoops)

	d, err := g.runNode(ctx, "generate_query", g.GenerateQuery, s)
	if err != nil {
		return s, err
	}
	// The generated queries are the dispatch batch, not a state contribution:
	// each branch records its own query, which keeps search_query and
	// web_research_result index-aligned after every gather.
	pending := d.SearchQueries
	d.SearchQueries = nil
	Apply(&s, d)

	items := g.Dispatch(s.Clone(), pending)
	for {
		if g.Logger != nil {
			g.Logger.Printf("scatter round: %d branches", len(items))
		}
		deltas, err := g.runScatter(ctx, items)
		if err != nil {
			return s, err
		}
		// Gather barrier: merge every branch delta, in dispatch order, before
		// reflection sees the state.
		for _, d := range deltas {
			Apply(&s, d)
		}

		d, err = g.runNode(ctx, "reflection", g.Reflect, s)
		if err != nil {
			return s, err
		}
		Apply(&s, d)

		route := g.Evaluate(s.Clone())
		if route.Finalize {
			if g.Logger != nil {
				g.Logger.Printf("research complete after loop %d, finalizing", s.ResearchLoopCount)
			}
			break
		}
		items = route.Items
	}

	d, err = g.runNode(ctx, "finalize_answer", g.Finalize, s)
	if err != nil {
		return s, err
	}
	Apply(&s, d)

	span.SetAttributes(
		attribute.Int("research.loops", s.ResearchLoopCount),
		attribute.Int("research.queries", len(s.SearchQueries)),
		attribute.Int("research.sources", len(s.SourcesGathered)),
	)
	return s, nil
}

func (g *Graph) runNode(ctx context.Context, name string, node NodeFunc, s State) (Delta, error) {
	ctx, span := tracer.Start(ctx, "graph.node."+name)
	defer span.End()

	start := time.Now()
	d, err := node(ctx, s.Clone())
	if g.OnNode != nil {
		g.OnNode(name, time.Since(start))
	}
	if err != nil {
		span.RecordError(err)
		return Delta{}, fmt.Errorf("node %s: %w", name, err)
	}
	return d, nil
}

// runScatter invokes the branch node once per work item, concurrently, and
// returns the deltas indexed by dispatch order. All branches run to
// completion before this returns: a branch failure never cancels its
// siblings, and the gather barrier never advances on partial results.
func (g *Graph) runScatter(ctx context.Context, items []WorkItem) ([]Delta, error) {
	ctx, span := tracer.Start(ctx, "graph.node.web_research",
		trace.WithAttributes(attribute.Int("scatter.branches", len(items))))
	defer span.End()

	start := time.Now()
	deltas := make([]Delta, len(items))

	// Plain errgroup.Group, deliberately not WithContext: sibling branches
	// keep running even if one returns an error.
	var eg errgroup.Group
	if g.MaxConcurrentBranches > 0 {
		eg.SetLimit(g.MaxConcurrentBranches)
	}
	for i, item := range items {
		eg.Go(func() error {
			d, err := g.WebResearch(ctx, item)
			if err != nil {
				return fmt.Errorf("branch %d (%q): %w", item.ID, item.Query, err)
			}
			deltas[i] = d
			return nil
		})
	}
	err := eg.Wait()
	if g.OnNode != nil {
		g.OnNode("web_research", time.Since(start))
	}
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	return deltas, nil
}
