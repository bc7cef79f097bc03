package orchestrator

import (
	"context"
	"fmt"
	"strings"

	"github.com/memohai/accelerator/internal/configdoc"
	"github.com/memohai/accelerator/internal/contracts"
)

// Searcher is the search skill as seen by the orchestrator.
type Searcher interface {
	Search(ctx context.Context, req contracts.SearchRequest) (contracts.SearchResponse, error)
}

// SearchAgent queries the search skill with the newest user utterance and,
// when the history holds one, the previous user utterance. The two result
// lists are combined by the configured merge strategy.
type SearchAgent struct {
	searcher Searcher
}

// NewSearchAgent creates a search agent.
func NewSearchAgent(searcher Searcher) *SearchAgent {
	return &SearchAgent{searcher: searcher}
}

// Name implements Agent.
func (a *SearchAgent) Name() string { return configdoc.AgentSearch }

// Run implements Agent. The request overrides are forwarded untouched so
// the skill resolves its own slot.
func (a *SearchAgent) Run(ctx context.Context, req Request) (Result, error) {
	query := req.LastUserUtterance()
	if query == "" {
		return Result{Steps: map[string]any{"skipped": "no user utterance"}}, nil
	}
	primary, err := a.search(ctx, req, query)
	if err != nil {
		return Result{}, err
	}
	queries := []string{query}
	lists := [][]contracts.SearchResult{primary.Results}

	strategy := req.Config.MergeStrategy()
	if earlier := req.earlierUserUtterances(); strategy != contracts.MergeReplace && len(earlier) > 0 {
		previous, err := a.search(ctx, req, earlier[0])
		if err != nil {
			return Result{}, err
		}
		queries = append(queries, earlier[0])
		lists = append(lists, previous.Results)
	}

	merged := Merge(strategy, primary.Top, lists...)
	res := Result{
		DataPoints: make([]string, 0, len(merged)),
		Steps: map[string]any{
			"index_name":     primary.IndexName,
			"config_version": primary.ConfigVersion,
			"top":            primary.Top,
			"merge_strategy": string(strategy),
			"queries":        queries,
			"result_count":   len(merged),
		},
	}
	titles := make([]string, 0, len(merged))
	for _, r := range merged {
		res.DataPoints = append(res.DataPoints, r.DataPoint())
		titles = append(titles, r.Title)
	}
	if len(merged) == 0 {
		res.Answer = fmt.Sprintf("No results for %q.", query)
	} else {
		res.Answer = fmt.Sprintf("Found %d results for %q: %s", len(merged), query, strings.Join(titles, "; "))
	}
	return res, nil
}

func (a *SearchAgent) search(ctx context.Context, req Request, query string) (contracts.SearchResponse, error) {
	return a.searcher.Search(ctx, contracts.SearchRequest{
		ConnectionID: req.Bot.ConnectionID,
		Query:        query,
		Locale:       req.Bot.Locale,
		Overrides:    req.Bot.Overrides,
	})
}

// Merge combines result lists by strategy, dropping repeated ids and
// keeping at most limit results when limit is positive. Replace keeps only
// the first list.
func Merge(strategy contracts.MergeStrategy, limit int, lists ...[]contracts.SearchResult) []contracts.SearchResult {
	if len(lists) == 0 {
		return []contracts.SearchResult{}
	}
	var ordered []contracts.SearchResult
	switch strategy {
	case contracts.MergeReplace:
		ordered = lists[0]
	case contracts.MergeInterleave:
		for i := 0; ; i++ {
			added := false
			for _, list := range lists {
				if i < len(list) {
					ordered = append(ordered, list[i])
					added = true
				}
			}
			if !added {
				break
			}
		}
	default:
		for _, list := range lists {
			ordered = append(ordered, list...)
		}
	}
	out := make([]contracts.SearchResult, 0, len(ordered))
	seen := map[string]struct{}{}
	for _, r := range ordered {
		if _, dup := seen[r.ID]; dup {
			continue
		}
		seen[r.ID] = struct{}{}
		out = append(out, r)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out
}
