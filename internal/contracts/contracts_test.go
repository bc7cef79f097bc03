package contracts

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/memohai/accelerator/internal/apperr"
)

func TestParseChatRequestNormalizesUserID(t *testing.T) {
	tests := []struct {
		name   string
		userID string
		want   string
	}{
		{"empty", `""`, AnonymousUserID},
		{"blank", `"   "`, AnonymousUserID},
		{"set", `"u-42"`, "u-42"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body := `{"conversation_id":"c1","dialog_id":"d1","user_id":` + tt.userID +
				`,"message":{"payload":[{"type":"text","value":"Hello"}]}}`
			req, _, err := ParseChatRequest([]byte(body))
			require.NoError(t, err)
			assert.Equal(t, tt.want, req.UserID)
			assert.Equal(t, ResponseModeJSON, req.ResponseMode)
		})
	}
}

func TestParseChatRequestMissingUserIDDefaults(t *testing.T) {
	req, _, err := ParseChatRequest([]byte(`{"conversation_id":"c1","dialog_id":"d1","message":{"payload":[{"type":"text","value":"hi"}]}}`))
	require.NoError(t, err)
	assert.Equal(t, AnonymousUserID, req.UserID)
}

func TestParseChatRequestRejections(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"unknown field", `{"conversation_id":"c1","dialog_id":"d1","message":{"payload":[{"type":"text","value":"hi"}]},"extra":1}`},
		{"unknown payload type", `{"conversation_id":"c1","dialog_id":"d1","message":{"payload":[{"type":"video","value":"hi"}]}}`},
		{"bad gender", `{"conversation_id":"c1","dialog_id":"d1","message":{"payload":[{"type":"text","value":"hi"}]},"user_profile":{"id":"p","user_name":"n","description":"","gender":"robot"}}`},
		{"bad response mode", `{"conversation_id":"c1","dialog_id":"d1","message":{"payload":[{"type":"text","value":"hi"}]},"response_mode":"xml"}`},
		{"missing conversation", `{"dialog_id":"d1","message":{"payload":[{"type":"text","value":"hi"}]}}`},
		{"empty payload", `{"conversation_id":"c1","dialog_id":"d1","message":{"payload":[]}}`},
		{"image not base64", `{"conversation_id":"c1","dialog_id":"d1","message":{"payload":[{"type":"image","value":"%%%"}]}}`},
		{"unknown override slot", `{"conversation_id":"c1","dialog_id":"d1","message":{"payload":[{"type":"text","value":"hi"}]},"overrides":{"tools":{}}}`},
		{"bad merge strategy", `{"conversation_id":"c1","dialog_id":"d1","message":{"payload":[{"type":"text","value":"hi"}]},"overrides":{"orchestrator_runtime":{"search_results_merge_strategy":"zip"}}}`},
		{"top out of range", `{"conversation_id":"c1","dialog_id":"d1","message":{"payload":[{"type":"text","value":"hi"}]},"overrides":{"search_overrides":{"top":0}}}`},
		{"trailing data", `{"conversation_id":"c1","dialog_id":"d1","message":{"payload":[{"type":"text","value":"hi"}]}} {}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := ParseChatRequest([]byte(tt.body))
			require.Error(t, err)
			assert.Equal(t, apperr.KindSchemaInvalid, apperr.KindOf(err))
		})
	}
}

func TestGenderParsesCaseInsensitively(t *testing.T) {
	var p UserProfile
	require.NoError(t, DecodeStrict([]byte(`{"id":"1","user_name":"a","description":"","gender":"male","role":"customer"}`), &p))
	assert.Equal(t, GenderMale, p.Gender)
	out, err := json.Marshal(p)
	require.NoError(t, err)
	assert.Contains(t, string(out), `"gender":"Male"`)
}

func TestEnvelopesRoundTrip(t *testing.T) {
	age := 31
	role := UserRoleAdvisor
	chat := ChatRequest{
		ConversationID: "c1",
		UserID:         "u1",
		DialogID:       "d1",
		Message: UserPrompt{Payload: []Payload{
			{Type: PayloadText, Value: "show me shoes", Locale: "en-US"},
			{Type: PayloadImage, Value: "aGVsbG8="},
			{Type: PayloadProduct, Value: "sku-1"},
		}},
		UserProfile:  &UserProfile{ID: "p1", UserName: "Ada", Gender: GenderFemale, Age: &age, Role: &role},
		Overrides:    json.RawMessage(`{"search_overrides":{"config_version":"v2","top":10}}`),
		ResponseMode: ResponseModeAdaptiveCard,
	}
	var chatBack ChatRequest
	roundTrip(t, chat, &chatBack)
	assert.Equal(t, chat, chatBack)

	bot := BotRequest{
		ConnectionID:   "conn",
		UserID:         "u1",
		ConversationID: "c1",
		DialogID:       "d1",
		Messages:       []Message{{"role": "user", "content": "hi", "custom": map[string]any{"k": "v"}}},
		Locale:         "en-US",
		Overrides:      json.RawMessage(`{"orchestrator_runtime":{"config_version":"v1"}}`),
	}
	var botBack BotRequest
	roundTrip(t, bot, &botBack)
	assert.Equal(t, bot, botBack)

	resp := ChatResponse{
		ConnectionID: "conn",
		DialogID:     "d1",
		Error:        &Error{Kind: apperr.KindTimeout, ErrorStr: "TIMEOUT: slow", Retry: true, StatusCode: 504},
	}
	var respBack ChatResponse
	roundTrip(t, resp, &respBack)
	assert.Equal(t, resp, respBack)

	answer := BotResponse{
		ConnectionID: "conn",
		Answer:       &Answer{AnswerString: "hello", DataPoints: []string{"a", "b"}, SpeakerLocale: "en-US"},
	}
	var answerBack BotResponse
	roundTrip(t, answer, &answerBack)
	assert.Equal(t, answer, answerBack)
}

func roundTrip(t *testing.T, in any, out any) {
	t.Helper()
	data, err := json.Marshal(in)
	require.NoError(t, err)
	require.NoError(t, DecodeStrict(data, out))
}

func TestBotRequestMessagesAreOpenEnded(t *testing.T) {
	body := `{"connection_id":"x","user_id":"u","conversation_id":"c","dialog_id":"d","messages":[{"role":"user","content":"hi","anything":{"goes":true}}]}`
	req, ov, err := ParseBotRequest([]byte(body))
	require.NoError(t, err)
	assert.Equal(t, Overrides{}, ov)
	assert.Equal(t, map[string]any{"goes": true}, req.Messages[0]["anything"])
}

func TestResponseExactlyOne(t *testing.T) {
	assert.Error(t, ChatResponse{}.Validate())
	assert.Error(t, ChatResponse{Answer: &Answer{}, Error: &Error{}}.Validate())
	assert.NoError(t, ChatResponse{Answer: &Answer{AnswerString: "x"}}.Validate())
	assert.NoError(t, BotResponse{Error: &Error{StatusCode: 500}}.Validate())
}

func TestErrorEnvelopeConversion(t *testing.T) {
	env := NewError(apperr.New(apperr.KindConfigNotFound, "SEARCH version v3 not found"))
	assert.Equal(t, apperr.KindConfigNotFound, env.Kind)
	assert.Equal(t, 404, env.StatusCode)
	assert.Contains(t, env.ErrorStr, "CONFIG_NOT_FOUND")

	back := env.Err()
	assert.Equal(t, apperr.KindConfigNotFound, back.Kind)
	assert.Equal(t, "CONFIG_NOT_FOUND: SEARCH version v3 not found", back.Error())

	passthrough := (&Error{Kind: apperr.KindUpstreamUnavailable, ErrorStr: "down", Retry: false, StatusCode: 502}).Err()
	assert.Equal(t, 502, passthrough.Status)
	assert.False(t, passthrough.Retry)
}

func TestUserPromptHelpers(t *testing.T) {
	p := UserPrompt{Payload: []Payload{
		{Type: PayloadText, Value: "red"},
		{Type: PayloadImage, Value: "aGk="},
		{Type: PayloadText, Value: "dress", Locale: "fr-FR"},
	}}
	assert.Equal(t, "red dress", p.Text())
	assert.Len(t, p.Images(), 1)
	assert.Len(t, p.Texts(), 2)
	assert.Equal(t, "fr-FR", p.Locale())

	clone := p.Clone()
	clone.Payload[0].Value = "blue"
	assert.Equal(t, "red", p.Payload[0].Value)
}

func TestParseOverridesNull(t *testing.T) {
	ov, err := ParseOverrides(json.RawMessage("null"))
	require.NoError(t, err)
	assert.Nil(t, ov.SearchOverrides)

	raw, err := Overrides{}.Raw()
	require.NoError(t, err)
	assert.Nil(t, raw)
}
