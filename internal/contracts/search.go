package contracts

import (
	"encoding/json"
	"strings"

	"github.com/memohai/accelerator/internal/apperr"
)

// SearchRequest is sent by the orchestrator to the search skill. Overrides
// is the envelope received by the orchestrator, forwarded as is.
type SearchRequest struct {
	ConnectionID string          `json:"connection_id,omitempty"`
	Query        string          `json:"query"`
	Locale       string          `json:"locale,omitempty"`
	Overrides    json.RawMessage `json:"overrides,omitempty"`
}

// ParseSearchRequest strictly decodes a search request and its overrides.
func ParseSearchRequest(data []byte) (SearchRequest, Overrides, error) {
	var req SearchRequest
	if err := DecodeStrict(data, &req); err != nil {
		return SearchRequest{}, Overrides{}, err
	}
	req.Query = strings.TrimSpace(req.Query)
	if req.Query == "" {
		return SearchRequest{}, Overrides{}, apperr.New(apperr.KindSchemaInvalid, "query is required")
	}
	ov, err := ParseOverrides(req.Overrides)
	if err != nil {
		return SearchRequest{}, Overrides{}, err
	}
	return req, ov, nil
}

// SearchResult is one matching document.
type SearchResult struct {
	ID      string  `json:"id"`
	Title   string  `json:"title"`
	Content string  `json:"content,omitempty"`
	Score   float64 `json:"score"`
}

// DataPoint renders the result as an answer data point.
func (r SearchResult) DataPoint() string {
	if r.Content == "" {
		return r.Title
	}
	return r.Title + ": " + r.Content
}

// SearchResponse reports the results together with the effective config
// they were produced with, or an error envelope.
type SearchResponse struct {
	ConnectionID  string         `json:"connection_id,omitempty"`
	IndexName     string         `json:"index_name,omitempty"`
	ConfigVersion string         `json:"config_version,omitempty"`
	Top           int            `json:"top,omitempty"`
	Results       []SearchResult `json:"results,omitempty"`
	Error         *Error         `json:"error,omitempty"`
}
