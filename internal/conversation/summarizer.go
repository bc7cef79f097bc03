package conversation

import (
	"context"

	"github.com/memohai/accelerator/internal/apperr"
	"github.com/memohai/accelerator/internal/contracts"
	"github.com/memohai/accelerator/internal/transport"
)

// RemoteSummarizer asks the orchestrator's /summarize endpoint to condense
// a transcript.
type RemoteSummarizer struct {
	url    string
	client *transport.Client
}

// NewRemoteSummarizer creates a summarizer posting to url.
func NewRemoteSummarizer(url string, client *transport.Client) *RemoteSummarizer {
	return &RemoteSummarizer{url: url, client: client}
}

// Summarize implements Summarizer.
func (s *RemoteSummarizer) Summarize(ctx context.Context, conversationID string, turns []Turn) (string, error) {
	req := contracts.SummarizeRequest{
		ConversationID: conversationID,
		Messages:       make([]contracts.Message, 0, len(turns)),
	}
	for _, t := range turns {
		req.Messages = append(req.Messages, t.Message())
	}
	var resp contracts.SummarizeResponse
	if _, err := s.client.PostJSON(ctx, s.url, req, &resp); err != nil {
		return "", err
	}
	if resp.Error != nil {
		return "", resp.Error.Err()
	}
	if resp.Summary == "" && len(turns) > 0 {
		return "", apperr.New(apperr.KindUpstreamUnavailable, "%s returned an empty summary", s.url)
	}
	return resp.Summary, nil
}
