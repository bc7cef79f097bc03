// Package configdoc models the typed configuration documents stored in the
// configuration hub and the schemas used to validate them.
package configdoc

import (
	"bytes"
	"encoding/json"
	"net/url"
	"strings"
	"time"

	"github.com/memohai/accelerator/internal/apperr"
	"github.com/memohai/accelerator/internal/contracts"
)

// Type identifies the kind of configuration a document holds.
type Type string

const (
	TypeSessionManager Type = "SESSION_MANAGER"
	TypeOrchestrator   Type = "ORCHESTRATOR"
	TypeSearch         Type = "SEARCH"
	TypeSystem         Type = "SYSTEM"
	// TypeAgentPrompt is the default agent prompt type. Deployments may
	// register more types sharing the AGENT_PROMPT prefix.
	TypeAgentPrompt Type = "AGENT_PROMPT"
)

// ActiveVersion is the pseudo version naming the active document of a type.
const ActiveVersion = "ACTIVE"

func (t Type) String() string { return string(t) }

// IsAgentPrompt reports whether t belongs to the agent prompt family.
func (t Type) IsAgentPrompt() bool {
	return strings.HasPrefix(string(t), string(TypeAgentPrompt))
}

// Document is one stored configuration version.
type Document struct {
	Type      Type            `json:"config_type"`
	Version   string          `json:"config_version"`
	Body      json.RawMessage `json:"config_body"`
	CreatedAt time.Time       `json:"created_at"`
	Active    bool            `json:"active"`
}

// Clone returns a copy whose body does not share memory with d.
func (d Document) Clone() Document {
	d.Body = bytes.Clone(d.Body)
	return d
}

// Ref names a document without its body.
type Ref struct {
	Type    Type   `json:"config_type"`
	Version string `json:"config_version"`
}

// Body is implemented by every typed configuration body.
type Body interface {
	Validate() error
}

// As strictly decodes the document body into T. Each call returns a fresh
// value, so callers may modify it freely.
func As[T any](doc Document) (T, error) {
	var out T
	if err := contracts.DecodeStrict(doc.Body, &out); err != nil {
		return out, err
	}
	return out, nil
}

// SessionManagerConfig configures the HTTP facing session manager.
type SessionManagerConfig struct {
	OrchestratorURI       string `json:"orchestrator_uri,omitempty"`
	StorageAccount        string `json:"storage_account,omitempty"`
	BlobContainer         string `json:"blob_container,omitempty"`
	ImageContainer        string `json:"image_container,omitempty"`
	CheckSafeImageContent bool   `json:"check_safe_image_content"`
	CheckSafeTextContent  bool   `json:"check_safe_text_content,omitempty"`
	ModeratorTimeoutMS    int    `json:"moderator_timeout_ms,omitempty"`
}

func (c SessionManagerConfig) Validate() error {
	if err := validateURI("orchestrator_uri", c.OrchestratorURI); err != nil {
		return err
	}
	if c.ModeratorTimeoutMS < 0 {
		return apperr.New(apperr.KindSchemaInvalid, "moderator_timeout_ms must not be negative")
	}
	return nil
}

// Agents understood by the default orchestrator plan.
const (
	AgentSearch = "search"
	AgentEcho   = "echo"
)

// KnownAgents lists the agent names accepted in orchestrator configs.
var KnownAgents = []string{AgentSearch, AgentEcho}

// OrchestratorConfig configures one sample's bot.
type OrchestratorConfig struct {
	BotName                    string                  `json:"bot_name"`
	Agents                     []string                `json:"agents"`
	SearchResultsMergeStrategy contracts.MergeStrategy `json:"search_results_merge_strategy,omitempty"`
	Prompts                    map[string]string       `json:"prompts,omitempty"`
	MaxHistoryTurns            int                     `json:"max_history_turns,omitempty"`
}

func (c OrchestratorConfig) Validate() error {
	if strings.TrimSpace(c.BotName) == "" {
		return apperr.New(apperr.KindSchemaInvalid, "bot_name is required")
	}
	if len(c.Agents) == 0 {
		return apperr.New(apperr.KindSchemaInvalid, "agents must list at least one agent")
	}
	for _, agent := range c.Agents {
		if !isKnownAgent(agent) {
			return apperr.New(apperr.KindSchemaInvalid, "unknown agent %q", agent)
		}
	}
	if c.MaxHistoryTurns < 0 {
		return apperr.New(apperr.KindSchemaInvalid, "max_history_turns must not be negative")
	}
	return nil
}

// MergeStrategy returns the configured strategy, defaulting to append.
func (c OrchestratorConfig) MergeStrategy() contracts.MergeStrategy {
	if c.SearchResultsMergeStrategy == "" {
		return contracts.MergeAppend
	}
	return c.SearchResultsMergeStrategy
}

// HasAgent reports whether name is enabled.
func (c OrchestratorConfig) HasAgent(name string) bool {
	for _, agent := range c.Agents {
		if agent == name {
			return true
		}
	}
	return false
}

func isKnownAgent(name string) bool {
	for _, known := range KnownAgents {
		if known == name {
			return true
		}
	}
	return false
}

// SearchConfig configures the search skill.
type SearchConfig struct {
	IndexName      string  `json:"index_name"`
	Top            int     `json:"top"`
	SemanticRanker bool    `json:"semantic_ranker,omitempty"`
	VectorSearch   bool    `json:"vector_search,omitempty"`
	MinimumScore   float64 `json:"minimum_score,omitempty"`
}

func (c SearchConfig) Validate() error {
	if strings.TrimSpace(c.IndexName) == "" {
		return apperr.New(apperr.KindSchemaInvalid, "index_name is required")
	}
	if c.Top < 1 || c.Top > 1000 {
		return apperr.New(apperr.KindSchemaInvalid, "top must be between 1 and 1000")
	}
	if c.MinimumScore < 0 {
		return apperr.New(apperr.KindSchemaInvalid, "minimum_score must not be negative")
	}
	return nil
}

// SystemConfig holds application level settings.
type SystemConfig struct {
	AppName     string            `json:"app_name"`
	Environment string            `json:"environment,omitempty"`
	Settings    map[string]string `json:"settings,omitempty"`
}

func (c SystemConfig) Validate() error {
	if strings.TrimSpace(c.AppName) == "" {
		return apperr.New(apperr.KindSchemaInvalid, "app_name is required")
	}
	return nil
}

// AgentPromptConfig is a named bundle of agent prompts.
type AgentPromptConfig struct {
	Prompts map[string]string `json:"prompts"`
	Locale  string            `json:"locale,omitempty"`
}

func (c AgentPromptConfig) Validate() error {
	if len(c.Prompts) == 0 {
		return apperr.New(apperr.KindSchemaInvalid, "prompts must not be empty")
	}
	for name := range c.Prompts {
		if strings.TrimSpace(name) == "" {
			return apperr.New(apperr.KindSchemaInvalid, "prompt names must not be blank")
		}
	}
	return nil
}

func validateURI(field, raw string) error {
	if raw == "" {
		return nil
	}
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return apperr.New(apperr.KindSchemaInvalid, "%s must be an absolute URL", field)
	}
	return nil
}
