package hub

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"

	"github.com/memohai/accelerator/internal/apperr"
	"github.com/memohai/accelerator/internal/configdoc"
	"github.com/memohai/accelerator/internal/transport"
)

// Client talks to a remote hub over its HTTP API. It offers the same
// surface as Service.
type Client struct {
	baseURL string
	http    *transport.Client
}

// NewClient creates a hub client rooted at baseURL.
func NewClient(baseURL string, tc *transport.Client) *Client {
	return &Client{
		baseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		http:    tc,
	}
}

// Create posts a new document.
func (c *Client) Create(ctx context.Context, req CreateRequest) (configdoc.Ref, error) {
	status, data, err := c.http.Do(ctx, http.MethodPost, c.baseURL+"/config", req)
	if err != nil {
		return configdoc.Ref{}, err
	}
	var resp CreateResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return configdoc.Ref{}, transport.StatusError(c.baseURL+"/config", status, data)
	}
	if resp.Error != "" || status >= 300 {
		return configdoc.Ref{}, remoteError(status, resp.Kind, resp.Error)
	}
	return configdoc.Ref{Type: configdoc.Type(resp.ConfigType), Version: resp.ConfigVersion}, nil
}

// Get fetches one version, or the active version when version is empty.
func (c *Client) Get(ctx context.Context, t configdoc.Type, version string) (configdoc.Document, error) {
	path := c.typeURL(t) + "/active"
	if v := strings.TrimSpace(version); v != "" && !strings.EqualFold(v, configdoc.ActiveVersion) {
		if err := ValidateVersion(v); err != nil {
			return configdoc.Document{}, apperr.New(apperr.KindConfigNotFound, "%s version %s not found", t, v)
		}
		path = c.typeURL(t) + "/" + url.PathEscape(v)
	}
	var doc configdoc.Document
	if err := c.getJSON(ctx, path, &doc); err != nil {
		return configdoc.Document{}, err
	}
	return doc, nil
}

// List fetches every version of t, newest first.
func (c *Client) List(ctx context.Context, t configdoc.Type) ([]configdoc.Document, error) {
	var docs []configdoc.Document
	if err := c.getJSON(ctx, c.typeURL(t), &docs); err != nil {
		return nil, err
	}
	return docs, nil
}

// Activate moves the active pointer of t.
func (c *Client) Activate(ctx context.Context, t configdoc.Type, version string) error {
	target := c.typeURL(t) + "/" + url.PathEscape(strings.TrimSpace(version)) + "/activate"
	status, data, err := c.http.Do(ctx, http.MethodPost, target, nil)
	if err != nil {
		return err
	}
	if status >= 300 {
		return decodeError(target, status, data)
	}
	return nil
}

func (c *Client) getJSON(ctx context.Context, target string, out any) error {
	status, data, err := c.http.Do(ctx, http.MethodGet, target, nil)
	if err != nil {
		return err
	}
	if status >= 300 {
		return decodeError(target, status, data)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return apperr.Wrap(apperr.KindInternal, err, "decode %s", target)
	}
	return nil
}

func (c *Client) typeURL(t configdoc.Type) string {
	return c.baseURL + "/config/" + url.PathEscape(strings.TrimSpace(string(t)))
}

func decodeError(target string, status int, data []byte) error {
	var body ErrorResponse
	if err := json.Unmarshal(data, &body); err != nil || body.Kind == "" {
		return transport.StatusError(target, status, data)
	}
	return remoteError(status, body.Kind, body.Message)
}

// remoteError rebuilds a classified error from a hub response, keeping
// the status the hub reported.
func remoteError(status int, kind apperr.Kind, message string) error {
	if !kind.Valid() {
		kind = apperr.KindInternal
	}
	e := apperr.New(kind, "%s", strings.TrimPrefix(message, string(kind)+": "))
	if status >= 400 {
		e.Status = status
	}
	return e
}
