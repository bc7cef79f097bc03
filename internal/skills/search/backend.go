// Package search implements the search skill: it resolves the effective
// SEARCH config for a request and queries an index backend with it.
package search

import (
	"context"
	"sort"
	"strings"
	"unicode"

	"github.com/memohai/accelerator/internal/contracts"
)

// Query is one backend lookup built from the effective config.
type Query struct {
	Index          string
	Text           string
	Top            int
	SemanticRanker bool
	VectorSearch   bool
	MinimumScore   float64
}

// Backend looks documents up in an index.
type Backend interface {
	Query(ctx context.Context, q Query) ([]contracts.SearchResult, error)
}

// Document is one indexed item.
type Document struct {
	ID      string   `yaml:"id" json:"id"`
	Index   string   `yaml:"index" json:"index"`
	Title   string   `yaml:"title" json:"title"`
	Content string   `yaml:"content" json:"content"`
	Tags    []string `yaml:"tags,omitempty" json:"tags,omitempty"`
}

func (d Document) text() string {
	return d.Title + " " + d.Content + " " + strings.Join(d.Tags, " ")
}

// tokenize lower-cases s and splits it on anything that is not a letter
// or digit.
func tokenize(s string) []string {
	return strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// score is the share of query terms found in text, with a bonus for terms
// found in the title. Keyword mode (vector off) requires every term.
func score(q Query, title, text string) (float64, bool) {
	terms := tokenize(q.Text)
	if len(terms) == 0 {
		return 0, false
	}
	words := map[string]struct{}{}
	for _, w := range tokenize(text) {
		words[w] = struct{}{}
	}
	titleWords := map[string]struct{}{}
	for _, w := range tokenize(title) {
		titleWords[w] = struct{}{}
	}
	var hits, titleHits int
	for _, term := range terms {
		if _, ok := words[term]; ok {
			hits++
		}
		if _, ok := titleWords[term]; ok {
			titleHits++
		}
	}
	if hits == 0 || (!q.VectorSearch && hits < len(terms)) {
		return 0, false
	}
	s := float64(hits) / float64(len(terms))
	if q.SemanticRanker {
		s += 0.5 * float64(titleHits) / float64(len(terms))
	}
	return s, s >= q.MinimumScore
}

// rank orders results by score when the semantic ranker is on and trims
// them to top.
func rank(q Query, results []contracts.SearchResult) []contracts.SearchResult {
	if q.SemanticRanker {
		sort.SliceStable(results, func(i, j int) bool {
			if results[i].Score != results[j].Score {
				return results[i].Score > results[j].Score
			}
			return results[i].ID < results[j].ID
		})
	}
	if q.Top > 0 && len(results) > q.Top {
		results = results[:q.Top]
	}
	return results
}
