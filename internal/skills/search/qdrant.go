package search

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/qdrant/go-client/qdrant"

	"github.com/memohai/accelerator/internal/contracts"
)

// Payload fields read from indexed points.
const (
	qdrantTitleField   = "title"
	qdrantContentField = "content"
)

// QdrantBackend runs full-text queries against Qdrant collections, one
// collection per index name. Collections need a text index on content.
type QdrantBackend struct {
	client  *qdrant.Client
	timeout time.Duration
	logger  *slog.Logger
}

// NewQdrantBackend connects to the gRPC endpoint at baseURL.
func NewQdrantBackend(log *slog.Logger, baseURL, apiKey string, timeout time.Duration) (*QdrantBackend, error) {
	host, port, useTLS, err := parseQdrantEndpoint(baseURL)
	if err != nil {
		return nil, err
	}
	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   host,
		Port:   port,
		APIKey: apiKey,
		UseTLS: useTLS,
	})
	if err != nil {
		return nil, err
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &QdrantBackend{
		client:  client,
		timeout: timeout,
		logger:  log.With(slog.String("backend", "qdrant")),
	}, nil
}

// Query implements Backend. Qdrant scrolls matches unranked, so scores are
// computed locally from the returned payloads.
func (b *QdrantBackend) Query(ctx context.Context, q Query) ([]contracts.SearchResult, error) {
	ctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()

	points, err := b.client.Scroll(ctx, &qdrant.ScrollPoints{
		CollectionName: q.Index,
		Filter:         textFilter(q),
		Limit:          qdrant.PtrOf(uint32(scrollLimit(q))),
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, err
	}
	results := make([]contracts.SearchResult, 0, len(points))
	for _, point := range points {
		payload := point.GetPayload()
		title := payload[qdrantTitleField].GetStringValue()
		content := payload[qdrantContentField].GetStringValue()
		s, ok := score(q, title, title+" "+content)
		if !ok {
			continue
		}
		results = append(results, contracts.SearchResult{
			ID:      pointIDToString(point.GetId()),
			Title:   title,
			Content: content,
			Score:   s,
		})
	}
	return rank(q, results), nil
}

// Close releases the gRPC connection.
func (b *QdrantBackend) Close() error {
	return b.client.Close()
}

// textFilter matches all query terms in keyword mode and any term when
// vector search widens recall.
func textFilter(q Query) *qdrant.Filter {
	terms := tokenize(q.Text)
	if !q.VectorSearch || len(terms) < 2 {
		return &qdrant.Filter{Must: []*qdrant.Condition{qdrant.NewMatchText(qdrantContentField, q.Text)}}
	}
	should := make([]*qdrant.Condition, 0, len(terms)*2)
	for _, term := range terms {
		should = append(should,
			qdrant.NewMatchText(qdrantContentField, term),
			qdrant.NewMatchText(qdrantTitleField, term))
	}
	return &qdrant.Filter{Should: should}
}

// scrollLimit over-fetches when results are re-ranked locally.
func scrollLimit(q Query) int {
	if q.SemanticRanker {
		return q.Top * 3
	}
	return q.Top
}

func parseQdrantEndpoint(endpoint string) (string, int, bool, error) {
	if endpoint == "" {
		return "127.0.0.1", 6334, false, nil
	}
	if !strings.Contains(endpoint, "://") {
		endpoint = "http://" + endpoint
	}
	parsed, err := url.Parse(endpoint)
	if err != nil {
		return "", 0, false, err
	}
	host := parsed.Hostname()
	if host == "" {
		host = "127.0.0.1"
	}
	port := 6334
	if parsed.Port() != "" {
		port, err = strconv.Atoi(parsed.Port())
		if err != nil {
			return "", 0, false, fmt.Errorf("qdrant port: %w", err)
		}
	}
	return host, port, parsed.Scheme == "https", nil
}

func pointIDToString(id *qdrant.PointId) string {
	if id == nil {
		return ""
	}
	if uuid := id.GetUuid(); uuid != "" {
		return uuid
	}
	return strconv.FormatUint(id.GetNum(), 10)
}
