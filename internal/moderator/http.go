package moderator

import (
	"context"
	"encoding/base64"
	"net/http"

	"github.com/memohai/accelerator/internal/apperr"
	"github.com/memohai/accelerator/internal/transport"
)

// HTTPModerator asks a content-safety endpoint. The endpoint receives
// {"kind","text"} or {"kind","image"} with base64 image bytes and answers
// {"safe": bool}.
type HTTPModerator struct {
	url    string
	client *transport.Client
}

type moderationRequest struct {
	Kind  Kind   `json:"kind"`
	Text  string `json:"text,omitempty"`
	Image string `json:"image,omitempty"`
}

type moderationResponse struct {
	Safe *bool `json:"safe"`
}

// NewHTTPModerator creates a moderator posting to url.
func NewHTTPModerator(url string, client *transport.Client) *HTTPModerator {
	return &HTTPModerator{url: url, client: client}
}

// IsSafe implements Moderator.
func (m *HTTPModerator) IsSafe(ctx context.Context, content Content) (bool, error) {
	req := moderationRequest{Kind: content.Kind, Text: content.Text}
	if content.Kind == KindImage {
		req.Image = base64.StdEncoding.EncodeToString(content.Image)
	}
	var resp moderationResponse
	status, err := m.client.PostJSON(ctx, m.url, req, &resp)
	if err != nil {
		return false, err
	}
	if status != http.StatusOK || resp.Safe == nil {
		return false, apperr.New(apperr.KindUpstreamUnavailable, "moderator responded %d without a verdict", status)
	}
	return *resp.Safe, nil
}
