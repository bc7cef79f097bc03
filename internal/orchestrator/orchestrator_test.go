package orchestrator

import (
	"context"
	"encoding/json"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/memohai/accelerator/internal/apperr"
	"github.com/memohai/accelerator/internal/configdoc"
	"github.com/memohai/accelerator/internal/contracts"
	"github.com/memohai/accelerator/internal/hub"
	"github.com/memohai/accelerator/internal/hub/drivers"
)

type fakeSearcher struct {
	mu       sync.Mutex
	requests []contracts.SearchRequest
	results  map[string][]contracts.SearchResult
	err      error
}

func (f *fakeSearcher) Search(_ context.Context, req contracts.SearchRequest) (contracts.SearchResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req)
	if f.err != nil {
		return contracts.SearchResponse{}, f.err
	}
	return contracts.SearchResponse{IndexName: "products", ConfigVersion: "s1", Top: 3, Results: f.results[req.Query]}, nil
}

func newHub(t *testing.T, orchestrators map[string]string, active string) *hub.Service {
	t.Helper()
	registry, err := configdoc.DefaultRegistry()
	require.NoError(t, err)
	svc := hub.NewService(nil, drivers.NewMemoryStore(), registry, nil)
	ctx := context.Background()
	for version, body := range orchestrators {
		_, err := svc.Create(ctx, hub.CreateRequest{ConfigType: "ORCHESTRATOR", ConfigVersion: version, ConfigBody: json.RawMessage(body)})
		require.NoError(t, err)
	}
	if active != "" {
		require.NoError(t, svc.Activate(ctx, configdoc.TypeOrchestrator, active))
	}
	return svc
}

func botRequest(t *testing.T, overrides string, messages ...contracts.Message) []byte {
	t.Helper()
	req := contracts.BotRequest{
		ConnectionID:   "conn-1",
		UserID:         "anonymous",
		ConversationID: "c1",
		DialogID:       "d1",
		Messages:       messages,
		Locale:         "en-US",
	}
	if overrides != "" {
		req.Overrides = json.RawMessage(overrides)
	}
	data, err := json.Marshal(req)
	require.NoError(t, err)
	return data
}

func user(content string) contracts.Message {
	return contracts.Message{"role": "user", "content": content}
}

func assistant(content string) contracts.Message {
	return contracts.Message{"role": "assistant", "content": content}
}

func TestBotEcho(t *testing.T) {
	configs := newHub(t, map[string]string{"v1": `{"bot_name":"shop","agents":["echo"]}`}, "v1")
	svc := NewService(nil, configs, NewSequentialPlan(EchoAgent{}))

	resp := svc.Bot(context.Background(), botRequest(t, "", user("Hello")))
	require.NoError(t, resp.Validate())
	require.NotNil(t, resp.Answer)
	assert.Equal(t, "You said: Hello", resp.Answer.AnswerString)
	assert.Equal(t, "conn-1", resp.ConnectionID)
	assert.Equal(t, "anonymous", resp.UserID)
	assert.Equal(t, "en-US", resp.Answer.SpeakerLocale)
	assert.Equal(t, "v1", resp.Answer.StepsExecution["config_version"])
}

func TestBotSearchForwardsOverridesUnchanged(t *testing.T) {
	configs := newHub(t, map[string]string{"v1": `{"bot_name":"shop","agents":["search","echo"]}`}, "v1")
	searcher := &fakeSearcher{results: map[string][]contracts.SearchResult{
		"red shoes": {{ID: "1", Title: "Red shoes"}, {ID: "2", Title: "Red boots"}},
	}}
	svc := NewService(nil, configs, NewSequentialPlan(NewSearchAgent(searcher), EchoAgent{}))
	overrides := `{"search_overrides":{"config_version":"v2","top":10}}`

	resp := svc.Bot(context.Background(), botRequest(t, overrides, user("red shoes")))
	require.NotNil(t, resp.Answer)
	require.Len(t, searcher.requests, 1)
	assert.Equal(t, overrides, string(searcher.requests[0].Overrides))
	assert.Equal(t, "conn-1", searcher.requests[0].ConnectionID)
	assert.Equal(t, []string{"Red shoes", "Red boots"}, resp.Answer.DataPoints)
	assert.Contains(t, resp.Answer.AnswerString, "Found 2 results")
	assert.Contains(t, resp.Answer.AnswerString, "You said: red shoes")
	steps := resp.Answer.StepsExecution["search"].(map[string]any)
	assert.Equal(t, "s1", steps["config_version"])
	assert.Equal(t, 3, steps["top"])
}

func TestBotMergesPreviousQuery(t *testing.T) {
	configs := newHub(t, map[string]string{
		"v1": `{"bot_name":"shop","agents":["search"],"search_results_merge_strategy":"interleave"}`,
		"v2": `{"bot_name":"shop","agents":["search"],"search_results_merge_strategy":"replace"}`,
	}, "v1")
	searcher := &fakeSearcher{results: map[string][]contracts.SearchResult{
		"boots": {{ID: "b1", Title: "B1"}, {ID: "b2", Title: "B2"}},
		"shoes": {{ID: "s1", Title: "S1"}, {ID: "b2", Title: "B2"}},
	}}
	svc := NewService(nil, configs, NewSequentialPlan(NewSearchAgent(searcher)))
	history := []contracts.Message{user("shoes"), assistant("Found 2"), user("boots")}

	resp := svc.Bot(context.Background(), botRequest(t, "", history...))
	require.NotNil(t, resp.Answer)
	assert.Equal(t, []string{"B1", "S1", "B2"}, resp.Answer.DataPoints)

	pinned := svc.Bot(context.Background(), botRequest(t, `{"orchestrator_runtime":{"config_version":"v2"}}`, history...))
	require.NotNil(t, pinned.Answer)
	assert.Equal(t, []string{"B1", "B2"}, pinned.Answer.DataPoints)

	trimmed := svc.Bot(context.Background(), botRequest(t, `{"orchestrator_runtime":{"max_history_turns":1}}`, history...))
	require.NotNil(t, trimmed.Answer)
	assert.Equal(t, []string{"B1", "B2"}, trimmed.Answer.DataPoints)
	assert.Equal(t, 1, trimmed.Answer.StepsExecution["history_turns"])
}

func TestBotErrors(t *testing.T) {
	configs := newHub(t, map[string]string{"v1": `{"bot_name":"shop","agents":["search"]}`}, "v1")
	notFound := apperr.New(apperr.KindConfigNotFound, "SEARCH version v3 not found")
	svc := NewService(nil, configs, NewSequentialPlan(NewSearchAgent(&fakeSearcher{err: notFound})))

	resp := svc.Bot(context.Background(), botRequest(t, "", user("shoes")))
	require.NoError(t, resp.Validate())
	require.NotNil(t, resp.Error)
	assert.Equal(t, apperr.KindConfigNotFound, resp.Error.Kind)
	assert.Equal(t, 404, resp.Error.StatusCode)
	assert.Equal(t, "CONFIG_NOT_FOUND: SEARCH version v3 not found", resp.Error.ErrorStr)

	missingPin := svc.Bot(context.Background(), botRequest(t, `{"orchestrator_runtime":{"config_version":"v9"}}`, user("shoes")))
	require.NotNil(t, missingPin.Error)
	assert.Equal(t, apperr.KindConfigNotFound, missingPin.Error.Kind)

	noActive := NewService(nil, newHub(t, nil, ""), NewSequentialPlan(EchoAgent{}))
	resp = noActive.Bot(context.Background(), botRequest(t, "", user("hi")))
	require.NotNil(t, resp.Error)
	assert.Equal(t, apperr.KindNoActive, resp.Error.Kind)

	invalid := svc.Bot(context.Background(), []byte(`{"connection_id":"x"}`))
	require.NotNil(t, invalid.Error)
	assert.Equal(t, apperr.KindSchemaInvalid, invalid.Error.Kind)
}

func TestPlanMissingAgent(t *testing.T) {
	plan := NewSequentialPlan(EchoAgent{})
	_, err := plan.Execute(context.Background(), Request{Config: configdoc.OrchestratorConfig{BotName: "b", Agents: []string{"search"}}})
	assert.Equal(t, apperr.KindInternal, apperr.KindOf(err))
}

func TestMerge(t *testing.T) {
	a := []contracts.SearchResult{{ID: "1"}, {ID: "2"}, {ID: "3"}}
	b := []contracts.SearchResult{{ID: "4"}, {ID: "2"}}
	ids := func(rs []contracts.SearchResult) []string {
		out := []string{}
		for _, r := range rs {
			out = append(out, r.ID)
		}
		return out
	}
	tests := []struct {
		strategy contracts.MergeStrategy
		limit    int
		want     []string
	}{
		{contracts.MergeAppend, 0, []string{"1", "2", "3", "4"}},
		{contracts.MergeInterleave, 0, []string{"1", "4", "2", "3"}},
		{contracts.MergeReplace, 0, []string{"1", "2", "3"}},
		{contracts.MergeAppend, 2, []string{"1", "2"}},
		{"", 0, []string{"1", "2", "3", "4"}},
	}
	for _, tt := range tests {
		t.Run(string(tt.strategy), func(t *testing.T) {
			assert.Equal(t, tt.want, ids(Merge(tt.strategy, tt.limit, a, b)))
		})
	}
	assert.Empty(t, Merge(contracts.MergeAppend, 0))
}

func TestTrimHistory(t *testing.T) {
	msgs := []contracts.Message{user("a"), assistant("b"), user("c")}
	assert.Len(t, TrimHistory(msgs, 0), 3)
	assert.Len(t, TrimHistory(msgs, 5), 3)
	got := TrimHistory(msgs, 2)
	require.Len(t, got, 2)
	assert.Equal(t, "b", got[0]["content"])
}

func TestSummarize(t *testing.T) {
	svc := NewService(nil, nil, nil)
	data, err := json.Marshal(contracts.SummarizeRequest{
		ConversationID: "c1",
		Messages:       []contracts.Message{user("shoes"), assistant("Found 2"), user("boots"), assistant("Found 1")},
	})
	require.NoError(t, err)
	resp := svc.Summarize(context.Background(), data)
	require.Nil(t, resp.Error)
	assert.Equal(t, "4 messages. User asked: shoes; boots. Last answer: Found 1", resp.Summary)

	bad := svc.Summarize(context.Background(), []byte(`{"messages":[]}`))
	require.NotNil(t, bad.Error)
	assert.Equal(t, apperr.KindSchemaInvalid, bad.Error.Kind)

	assert.Equal(t, "Empty conversation.", Summarize(nil))
}
