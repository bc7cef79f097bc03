package overrides

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/memohai/accelerator/internal/apperr"
	"github.com/memohai/accelerator/internal/configdoc"
	"github.com/memohai/accelerator/internal/contracts"
)

type staticLoader struct {
	active map[configdoc.Type]string
	docs   map[configdoc.Type]map[string]string
}

func (l staticLoader) Get(_ context.Context, t configdoc.Type, version string) (configdoc.Document, error) {
	if version == "" || version == configdoc.ActiveVersion {
		v, ok := l.active[t]
		if !ok {
			return configdoc.Document{}, apperr.New(apperr.KindNoActive, "no active version for %s", t)
		}
		version = v
	}
	body, ok := l.docs[t][version]
	if !ok {
		return configdoc.Document{}, apperr.New(apperr.KindConfigNotFound, "%s version %s not found", t, version)
	}
	return configdoc.Document{Type: t, Version: version, Body: json.RawMessage(body)}, nil
}

func testLoader() staticLoader {
	return staticLoader{
		active: map[configdoc.Type]string{
			configdoc.TypeSearch:         "v1",
			configdoc.TypeOrchestrator:   "v1",
			configdoc.TypeSessionManager: "v1",
		},
		docs: map[configdoc.Type]map[string]string{
			configdoc.TypeSearch: {
				"v1": `{"index_name":"products","top":5}`,
				"v2": `{"index_name":"products","top":10,"vector_search":true}`,
			},
			configdoc.TypeOrchestrator: {
				"v1": `{"bot_name":"shop","agents":["search"],"max_history_turns":4}`,
			},
			configdoc.TypeSessionManager: {
				"v1": `{"check_safe_image_content":true}`,
			},
		},
	}
}

func parse(t *testing.T, raw string) contracts.Overrides {
	t.Helper()
	ov, err := contracts.ParseOverrides(json.RawMessage(raw))
	require.NoError(t, err)
	return ov
}

func TestSearchResolution(t *testing.T) {
	loader := testLoader()
	ctx := context.Background()
	tests := []struct {
		name       string
		overrides  string
		wantTop    int
		wantVer    string
		wantPinned bool
		wantVector bool
	}{
		{"active", `{}`, 5, "v1", false, false},
		{"pinned", `{"search_overrides":{"config_version":"v2"}}`, 10, "v2", true, true},
		{"toggle over active", `{"search_overrides":{"top":7}}`, 7, "v1", false, false},
		{"toggle over pin", `{"search_overrides":{"config_version":"v2","vector_search":false,"top":3}}`, 3, "v2", true, false},
		{"other slots ignored", `{"orchestrator_runtime":{"config_version":"v9"}}`, 5, "v1", false, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			eff, err := Search(ctx, loader, parse(t, tt.overrides))
			require.NoError(t, err)
			assert.Equal(t, tt.wantTop, eff.Config.Top)
			assert.Equal(t, tt.wantVer, eff.Version)
			assert.Equal(t, tt.wantPinned, eff.Pinned)
			assert.Equal(t, tt.wantVector, eff.Config.VectorSearch)
		})
	}
}

func TestMissingPinDoesNotFallBack(t *testing.T) {
	_, err := Search(context.Background(), testLoader(), parse(t, `{"search_overrides":{"config_version":"v3"}}`))
	require.Error(t, err)
	assert.Equal(t, apperr.KindConfigNotFound, apperr.KindOf(err))
}

func TestNoActive(t *testing.T) {
	loader := testLoader()
	delete(loader.active, configdoc.TypeSearch)
	_, err := Search(context.Background(), loader, contracts.Overrides{})
	assert.Equal(t, apperr.KindNoActive, apperr.KindOf(err))
}

func TestSessionManagerAndOrchestratorToggles(t *testing.T) {
	loader := testLoader()
	ctx := context.Background()
	ov := parse(t, `{"session_manager_runtime":{"check_safe_image_content":false,"check_safe_text_content":true},"orchestrator_runtime":{"search_results_merge_strategy":"replace","max_history_turns":1}}`)

	sm, err := SessionManager(ctx, loader, ov)
	require.NoError(t, err)
	assert.False(t, sm.Config.CheckSafeImageContent)
	assert.True(t, sm.Config.CheckSafeTextContent)

	orch, err := Orchestrator(ctx, loader, ov)
	require.NoError(t, err)
	assert.Equal(t, contracts.MergeReplace, orch.Config.SearchResultsMergeStrategy)
	assert.Equal(t, 1, orch.Config.MaxHistoryTurns)
	assert.Equal(t, "shop", orch.Config.BotName)

	plain, err := Orchestrator(ctx, loader, contracts.Overrides{})
	require.NoError(t, err)
	assert.Equal(t, 4, plain.Config.MaxHistoryTurns)
}

func TestSessionManagerDefaultOnlyWithoutActive(t *testing.T) {
	loader := testLoader()
	delete(loader.active, configdoc.TypeSessionManager)
	ctx := context.Background()
	def := &configdoc.SessionManagerConfig{CheckSafeImageContent: true}

	eff, err := SessionManagerWithDefault(ctx, loader, contracts.Overrides{}, def)
	require.NoError(t, err)
	assert.True(t, eff.Config.CheckSafeImageContent)
	assert.Empty(t, eff.Version)

	toggled, err := SessionManagerWithDefault(ctx, loader, parse(t, `{"session_manager_runtime":{"check_safe_image_content":false}}`), def)
	require.NoError(t, err)
	assert.False(t, toggled.Config.CheckSafeImageContent)
	assert.True(t, def.CheckSafeImageContent)

	_, err = SessionManagerWithDefault(ctx, loader, parse(t, `{"session_manager_runtime":{"config_version":"v9"}}`), def)
	assert.Equal(t, apperr.KindConfigNotFound, apperr.KindOf(err))

	_, err = SessionManager(ctx, loader, contracts.Overrides{})
	assert.Equal(t, apperr.KindNoActive, apperr.KindOf(err))
}
