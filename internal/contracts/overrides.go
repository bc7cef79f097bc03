package contracts

import (
	"bytes"
	"encoding/json"

	"github.com/memohai/accelerator/internal/apperr"
)

// SessionManagerOverrides is the slot consumed only by the session manager.
type SessionManagerOverrides struct {
	ConfigVersion         string `json:"config_version,omitempty"`
	CheckSafeImageContent *bool  `json:"check_safe_image_content,omitempty"`
	CheckSafeTextContent  *bool  `json:"check_safe_text_content,omitempty"`
}

// OrchestratorOverrides is the slot consumed only by the orchestrator.
type OrchestratorOverrides struct {
	ConfigVersion              string         `json:"config_version,omitempty"`
	SearchResultsMergeStrategy *MergeStrategy `json:"search_results_merge_strategy,omitempty"`
	MaxHistoryTurns            *int           `json:"max_history_turns,omitempty"`
}

// SearchOverrides is the slot consumed only by the search skill.
type SearchOverrides struct {
	ConfigVersion  string `json:"config_version,omitempty"`
	SemanticRanker *bool  `json:"semantic_ranker,omitempty"`
	VectorSearch   *bool  `json:"vector_search,omitempty"`
	Top            *int   `json:"top,omitempty"`
}

// Overrides is the request-scoped override tree. In envelopes it travels
// as raw JSON (see ParseOverrides) so services forward it untouched.
type Overrides struct {
	SearchOverrides       *SearchOverrides         `json:"search_overrides,omitempty"`
	OrchestratorRuntime   *OrchestratorOverrides   `json:"orchestrator_runtime,omitempty"`
	SessionManagerRuntime *SessionManagerOverrides `json:"session_manager_runtime,omitempty"`
}

// ParseOverrides strictly decodes a raw overrides envelope. A missing or
// null envelope yields the zero value.
func ParseOverrides(raw json.RawMessage) (Overrides, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return Overrides{}, nil
	}
	var ov Overrides
	if err := DecodeStrict(trimmed, &ov); err != nil {
		return Overrides{}, err
	}
	if err := ov.Validate(); err != nil {
		return Overrides{}, err
	}
	return ov, nil
}

// Validate checks scalar ranges; enums are checked while decoding.
func (o Overrides) Validate() error {
	if s := o.SearchOverrides; s != nil && s.Top != nil && (*s.Top < 1 || *s.Top > 1000) {
		return apperr.New(apperr.KindSchemaInvalid, "search_overrides.top must be between 1 and 1000")
	}
	if r := o.OrchestratorRuntime; r != nil && r.MaxHistoryTurns != nil && *r.MaxHistoryTurns < 0 {
		return apperr.New(apperr.KindSchemaInvalid, "orchestrator_runtime.max_history_turns must not be negative")
	}
	return nil
}

// Raw encodes the overrides for embedding in an envelope.
func (o Overrides) Raw() (json.RawMessage, error) {
	if o.SearchOverrides == nil && o.OrchestratorRuntime == nil && o.SessionManagerRuntime == nil {
		return nil, nil
	}
	return json.Marshal(o)
}
