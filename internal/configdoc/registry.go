package configdoc

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/google/jsonschema-go/jsonschema"

	"github.com/memohai/accelerator/internal/apperr"
	"github.com/memohai/accelerator/internal/contracts"
)

// validator checks one raw body and returns its normalized encoding.
type validator func(raw json.RawMessage) (json.RawMessage, error)

// Registry maps configuration types to their body schemas. It must be
// created via NewRegistry or DefaultRegistry and passed to the components
// that need it.
type Registry struct {
	mu      sync.RWMutex
	entries map[Type]entry
}

type entry struct {
	schema   *jsonschema.Schema
	validate validator
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{entries: map[Type]entry{}}
}

// DefaultRegistry registers every built-in type. Extra agent prompt types
// must carry the AGENT_PROMPT prefix.
func DefaultRegistry(promptTypes ...Type) (*Registry, error) {
	r := NewRegistry()
	if err := Register[SessionManagerConfig](r, TypeSessionManager, nil); err != nil {
		return nil, err
	}
	if err := Register[OrchestratorConfig](r, TypeOrchestrator, tuneOrchestrator); err != nil {
		return nil, err
	}
	if err := Register[SearchConfig](r, TypeSearch, tuneSearch); err != nil {
		return nil, err
	}
	if err := Register[SystemConfig](r, TypeSystem, nil); err != nil {
		return nil, err
	}
	for _, t := range append([]Type{TypeAgentPrompt}, promptTypes...) {
		t = normalizeType(string(t))
		if !t.IsAgentPrompt() {
			return nil, fmt.Errorf("agent prompt type %q must start with %s", t, TypeAgentPrompt)
		}
		if _, exists := r.lookup(t); exists {
			continue
		}
		if err := Register[AgentPromptConfig](r, t, nil); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Register infers a JSON schema from T, lets tune adjust it, and stores the
// resolved result for t. T must implement Body.
func Register[T Body](r *Registry, t Type, tune func(*jsonschema.Schema)) error {
	t = normalizeType(string(t))
	if t == "" {
		return fmt.Errorf("config type is required")
	}
	schema, err := jsonschema.For[T](nil)
	if err != nil {
		return fmt.Errorf("infer schema for %s: %w", t, err)
	}
	if tune != nil {
		tune(schema)
	}
	resolved, err := schema.Resolve(nil)
	if err != nil {
		return fmt.Errorf("resolve schema for %s: %w", t, err)
	}

	validate := func(raw json.RawMessage) (json.RawMessage, error) {
		var instance any
		if err := json.Unmarshal(raw, &instance); err != nil {
			return nil, apperr.Wrap(apperr.KindSchemaInvalid, err, "%s body is not valid JSON", t)
		}
		if err := resolved.Validate(instance); err != nil {
			return nil, apperr.Wrap(apperr.KindSchemaInvalid, err, "%s body", t)
		}
		var body T
		if err := contracts.DecodeStrict(raw, &body); err != nil {
			return nil, err
		}
		if err := body.Validate(); err != nil {
			if apperr.IsKind(err, apperr.KindSchemaInvalid) {
				return nil, err
			}
			return nil, apperr.Wrap(apperr.KindSchemaInvalid, err, "%s body", t)
		}
		normalized, err := json.Marshal(body)
		if err != nil {
			return nil, apperr.Wrap(apperr.KindInternal, err, "encode %s body", t)
		}
		return normalized, nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.entries[t]; exists {
		return fmt.Errorf("config type already registered: %s", t)
	}
	r.entries[t] = entry{schema: schema, validate: validate}
	return nil
}

// ParseType normalizes raw and checks that it names a registered type.
func (r *Registry) ParseType(raw string) (Type, error) {
	t := normalizeType(raw)
	if t == "" {
		return "", apperr.New(apperr.KindUnknownConfigType, "config type is required")
	}
	if _, ok := r.lookup(t); !ok {
		return "", apperr.New(apperr.KindUnknownConfigType, "unknown config type %q", raw)
	}
	return t, nil
}

// Types returns all registered types in lexical order.
func (r *Registry) Types() []Type {
	r.mu.RLock()
	defer r.mu.RUnlock()
	items := make([]Type, 0, len(r.entries))
	for t := range r.entries {
		items = append(items, t)
	}
	sort.Slice(items, func(i, j int) bool { return items[i] < items[j] })
	return items
}

// Schema returns the inferred JSON schema for t.
func (r *Registry) Schema(t Type) (*jsonschema.Schema, bool) {
	e, ok := r.lookup(normalizeType(string(t)))
	if !ok {
		return nil, false
	}
	return e.schema, true
}

// Validate checks raw against the schema of t and returns the normalized
// body. Bodies must be JSON objects.
func (r *Registry) Validate(t Type, raw json.RawMessage) (json.RawMessage, error) {
	e, ok := r.lookup(normalizeType(string(t)))
	if !ok {
		return nil, apperr.New(apperr.KindUnknownConfigType, "unknown config type %q", t)
	}
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return nil, apperr.New(apperr.KindSchemaInvalid, "%s body must be a JSON object", t)
	}
	return e.validate(trimmed)
}

func (r *Registry) lookup(t Type) (entry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[t]
	return e, ok
}

func normalizeType(raw string) Type {
	return Type(strings.ToUpper(strings.TrimSpace(raw)))
}

func tuneOrchestrator(s *jsonschema.Schema) {
	if p := s.Properties["search_results_merge_strategy"]; p != nil {
		p.Enum = stringsToAny(contracts.MergeStrategies())
	}
	if p := s.Properties["agents"]; p != nil {
		p.MinItems = intPtr(1)
		if p.Items != nil {
			p.Items.Enum = stringsToAny(KnownAgents)
		}
	}
	if p := s.Properties["max_history_turns"]; p != nil {
		p.Minimum = floatPtr(0)
	}
}

func tuneSearch(s *jsonschema.Schema) {
	if p := s.Properties["top"]; p != nil {
		p.Minimum = floatPtr(1)
		p.Maximum = floatPtr(1000)
	}
	if p := s.Properties["index_name"]; p != nil {
		p.MinLength = intPtr(1)
	}
	if p := s.Properties["minimum_score"]; p != nil {
		p.Minimum = floatPtr(0)
	}
}

func stringsToAny(values []string) []any {
	out := make([]any, len(values))
	for i, v := range values {
		out[i] = v
	}
	return out
}

func floatPtr(v float64) *float64 { return &v }

func intPtr(v int) *int { return &v }
