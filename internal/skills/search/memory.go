package search

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/memohai/accelerator/internal/contracts"
)

// MemoryBackend serves queries from an in-process corpus.
type MemoryBackend struct {
	mu   sync.RWMutex
	docs []Document
}

// NewMemoryBackend creates a backend over docs, kept in the given order.
func NewMemoryBackend(docs ...Document) *MemoryBackend {
	b := &MemoryBackend{}
	b.Add(docs...)
	return b
}

// LoadCorpus reads a YAML (or JSON) list of documents.
func LoadCorpus(path string) ([]Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read corpus: %w", err)
	}
	var docs []Document
	if err := yaml.Unmarshal(data, &docs); err != nil {
		return nil, fmt.Errorf("parse corpus %s: %w", path, err)
	}
	for i, d := range docs {
		if strings.TrimSpace(d.ID) == "" || strings.TrimSpace(d.Index) == "" {
			return nil, fmt.Errorf("corpus %s: document %d needs id and index", path, i)
		}
	}
	return docs, nil
}

// Add appends documents to the corpus.
func (b *MemoryBackend) Add(docs ...Document) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.docs = append(b.docs, docs...)
}

// Query implements Backend.
func (b *MemoryBackend) Query(ctx context.Context, q Query) ([]contracts.SearchResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	results := []contracts.SearchResult{}
	for _, d := range b.docs {
		if d.Index != q.Index {
			continue
		}
		s, ok := score(q, d.Title, d.text())
		if !ok {
			continue
		}
		results = append(results, contracts.SearchResult{ID: d.ID, Title: d.Title, Content: d.Content, Score: s})
	}
	return rank(q, results), nil
}
