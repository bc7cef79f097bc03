// Package overrides computes the effective configuration a service uses
// for one request: the pinned or active stored document with the
// request's slot toggles layered on top.
package overrides

import (
	"context"
	"strings"

	"github.com/memohai/accelerator/internal/apperr"
	"github.com/memohai/accelerator/internal/configdoc"
	"github.com/memohai/accelerator/internal/contracts"
)

// Loader fetches stored documents, usually through the config cache.
type Loader interface {
	Get(ctx context.Context, t configdoc.Type, version string) (configdoc.Document, error)
}

// Effective is a resolved configuration. Version is the stored version
// the config was derived from and Pinned reports whether the request
// chose it explicitly.
type Effective[T any] struct {
	Config  T
	Version string
	Pinned  bool
}

// SessionManager resolves the session manager config for a request.
func SessionManager(ctx context.Context, loader Loader, ov contracts.Overrides) (Effective[configdoc.SessionManagerConfig], error) {
	return SessionManagerWithDefault(ctx, loader, ov, nil)
}

// SessionManagerWithDefault is SessionManager, except that def stands in
// for the stored config when the type has no active version and the
// request pins none. Request toggles still apply on top of def.
func SessionManagerWithDefault(ctx context.Context, loader Loader, ov contracts.Overrides, def *configdoc.SessionManagerConfig) (Effective[configdoc.SessionManagerConfig], error) {
	slot := ov.SessionManagerRuntime
	var pin string
	if slot != nil {
		pin = slot.ConfigVersion
	}
	eff, err := resolve[configdoc.SessionManagerConfig](ctx, loader, configdoc.TypeSessionManager, pin)
	if def != nil && strings.TrimSpace(pin) == "" && apperr.IsKind(err, apperr.KindNoActive) {
		eff, err = Effective[configdoc.SessionManagerConfig]{Config: *def}, nil
	}
	if err != nil || slot == nil {
		return eff, err
	}
	if slot.CheckSafeImageContent != nil {
		eff.Config.CheckSafeImageContent = *slot.CheckSafeImageContent
	}
	if slot.CheckSafeTextContent != nil {
		eff.Config.CheckSafeTextContent = *slot.CheckSafeTextContent
	}
	return eff, nil
}

// Orchestrator resolves the orchestrator config for a request.
func Orchestrator(ctx context.Context, loader Loader, ov contracts.Overrides) (Effective[configdoc.OrchestratorConfig], error) {
	slot := ov.OrchestratorRuntime
	var pin string
	if slot != nil {
		pin = slot.ConfigVersion
	}
	eff, err := resolve[configdoc.OrchestratorConfig](ctx, loader, configdoc.TypeOrchestrator, pin)
	if err != nil || slot == nil {
		return eff, err
	}
	if slot.SearchResultsMergeStrategy != nil {
		eff.Config.SearchResultsMergeStrategy = *slot.SearchResultsMergeStrategy
	}
	if slot.MaxHistoryTurns != nil {
		eff.Config.MaxHistoryTurns = *slot.MaxHistoryTurns
	}
	return eff, nil
}

// Search resolves the search skill config for a request.
func Search(ctx context.Context, loader Loader, ov contracts.Overrides) (Effective[configdoc.SearchConfig], error) {
	slot := ov.SearchOverrides
	var pin string
	if slot != nil {
		pin = slot.ConfigVersion
	}
	eff, err := resolve[configdoc.SearchConfig](ctx, loader, configdoc.TypeSearch, pin)
	if err != nil || slot == nil {
		return eff, err
	}
	if slot.SemanticRanker != nil {
		eff.Config.SemanticRanker = *slot.SemanticRanker
	}
	if slot.VectorSearch != nil {
		eff.Config.VectorSearch = *slot.VectorSearch
	}
	if slot.Top != nil {
		eff.Config.Top = *slot.Top
	}
	return eff, nil
}

// resolve loads the pinned version, or the active one when pin is blank.
// A missing pin is an error; it never falls back to the active version.
func resolve[T configdoc.Body](ctx context.Context, loader Loader, t configdoc.Type, pin string) (Effective[T], error) {
	pin = strings.TrimSpace(pin)
	doc, err := loader.Get(ctx, t, pin)
	if err != nil {
		return Effective[T]{}, err
	}
	cfg, err := configdoc.As[T](doc)
	if err != nil {
		return Effective[T]{}, err
	}
	return Effective[T]{Config: cfg, Version: doc.Version, Pinned: pin != ""}, nil
}
