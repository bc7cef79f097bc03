package search

import (
	"context"
	"encoding/json"

	"github.com/memohai/accelerator/internal/apperr"
	"github.com/memohai/accelerator/internal/contracts"
	"github.com/memohai/accelerator/internal/transport"
)

// Client calls a remote search skill.
type Client struct {
	url    string
	client *transport.Client
}

// NewClient creates a client posting to url.
func NewClient(url string, client *transport.Client) *Client {
	return &Client{url: url, client: client}
}

// Search posts req. An error envelope in the reply is returned as the
// classified error it describes, with kind, status and retry unchanged.
func (c *Client) Search(ctx context.Context, req contracts.SearchRequest) (contracts.SearchResponse, error) {
	var resp contracts.SearchResponse
	if _, err := c.client.PostJSON(ctx, c.url, req, &resp); err != nil {
		return contracts.SearchResponse{}, err
	}
	if resp.Error != nil {
		return contracts.SearchResponse{}, resp.Error.Err()
	}
	return resp, nil
}

// LocalClient calls a search service in the same process. Requests go
// through the same parsing as remote ones.
type LocalClient struct {
	service *Service
}

// NewLocalClient wraps service.
func NewLocalClient(service *Service) *LocalClient {
	return &LocalClient{service: service}
}

// Search runs req against the wrapped service.
func (c *LocalClient) Search(ctx context.Context, req contracts.SearchRequest) (contracts.SearchResponse, error) {
	data, err := json.Marshal(req)
	if err != nil {
		return contracts.SearchResponse{}, apperr.Wrap(apperr.KindInternal, err, "encode search request")
	}
	resp := c.service.Search(ctx, data)
	if resp.Error != nil {
		return contracts.SearchResponse{}, resp.Error.Err()
	}
	return resp, nil
}
