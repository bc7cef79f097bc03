// Package transport is the outbound JSON client shared by every service hop.
// It bounds each call with a deadline, injects W3C trace context and maps
// I/O failures onto the closed error kinds.
package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"golang.org/x/time/rate"

	"github.com/memohai/accelerator/internal/apperr"
)

// DefaultTimeout bounds calls when no timeout is configured.
const DefaultTimeout = 30 * time.Second

// DefaultMaxResponseBytes caps response bodies when no limit is configured.
const DefaultMaxResponseBytes = 8 << 20

const maxErrorBody = 4 << 10

// Client sends JSON requests to downstream services.
type Client struct {
	http    *http.Client
	timeout time.Duration
	header  http.Header
	limiter *rate.Limiter
	maxBody int64
	logger  *slog.Logger
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithHeader adds a header sent on every request.
func WithHeader(key, value string) Option {
	return func(c *Client) {
		if strings.TrimSpace(value) != "" {
			c.header.Set(key, value)
		}
	}
}

// WithBearerToken authenticates every request with token.
func WithBearerToken(token string) Option {
	return WithHeader(headerAuthorization, bearerPrefix+token)
}

// WithMaxResponseBytes caps how much of a response body is read.
func WithMaxResponseBytes(n int64) Option {
	return func(c *Client) {
		if n > 0 {
			c.maxBody = n
		}
	}
}

// WithRateLimit caps outbound calls at rps per second with the given burst.
// A non-positive rps leaves the client unlimited.
func WithRateLimit(rps float64, burst int) Option {
	return func(c *Client) {
		if rps <= 0 {
			return
		}
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

const (
	headerAuthorization = "Authorization"
	bearerPrefix        = "Bearer "
)

// NewClient creates a client whose calls are bounded by timeout.
func NewClient(log *slog.Logger, timeout time.Duration, opts ...Option) *Client {
	if log == nil {
		log = slog.Default()
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	c := &Client{
		http:    &http.Client{},
		timeout: timeout,
		header:  http.Header{},
		maxBody: DefaultMaxResponseBytes,
		logger:  log.With(slog.String("client", "transport")),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Timeout returns the per-call deadline.
func (c *Client) Timeout() time.Duration {
	return c.timeout
}

// Do sends in as a JSON body (nil sends none) and returns the status code
// and raw response body. Only transport failures are errors; callers decide
// what a status means.
func (c *Client) Do(ctx context.Context, method, url string, in any) (int, []byte, error) {
	var body io.Reader
	if in != nil {
		var payload []byte
		switch v := in.(type) {
		case json.RawMessage:
			payload = v
		case []byte:
			payload = v
		default:
			// Embedded raw overrides must reach the next hop unescaped.
			var buf bytes.Buffer
			enc := json.NewEncoder(&buf)
			enc.SetEscapeHTML(false)
			if err := enc.Encode(in); err != nil {
				return 0, nil, apperr.Wrap(apperr.KindInternal, err, "encode request")
			}
			payload = bytes.TrimRight(buf.Bytes(), "\n")
		}
		body = bytes.NewReader(payload)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return 0, nil, apperr.Wrap(apperr.KindTimeout, err, "%s %s: rate limit wait", method, url)
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return 0, nil, apperr.Wrap(apperr.KindInternal, err, "build request")
	}
	for key, values := range c.header {
		for _, v := range values {
			req.Header.Add(key, v)
		}
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(req.Header))

	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Warn("downstream call failed",
			slog.String("method", method),
			slog.String("url", url),
			slog.Any("error", err))
		return 0, nil, classify(ctx, method, url, err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBody+1))
	if err != nil {
		return resp.StatusCode, nil, classify(ctx, method, url, err)
	}
	if int64(len(data)) > c.maxBody {
		return resp.StatusCode, nil, apperr.New(apperr.KindUpstreamUnavailable, "%s %s: response exceeds %d bytes", method, url, c.maxBody)
	}
	return resp.StatusCode, data, nil
}

// PostJSON posts in and decodes the response body into out whatever the
// status, so error envelopes reach the caller intact. Bodies that do not
// decode are mapped by status: 5xx to UPSTREAM_UNAVAILABLE, others to
// INTERNAL.
func (c *Client) PostJSON(ctx context.Context, url string, in, out any) (int, error) {
	status, data, err := c.Do(ctx, http.MethodPost, url, in)
	if err != nil {
		return status, err
	}
	if out != nil && len(bytes.TrimSpace(data)) > 0 {
		if err := json.Unmarshal(data, out); err == nil {
			return status, nil
		}
	}
	if status >= 200 && status < 300 && out == nil {
		return status, nil
	}
	return status, StatusError(url, status, data)
}

// StatusError classifies a response that carried no usable body.
func StatusError(url string, status int, body []byte) *apperr.Error {
	snippet := strings.TrimSpace(string(truncate(body)))
	kind := apperr.KindInternal
	switch {
	case status >= 500 || status == http.StatusTooManyRequests:
		kind = apperr.KindUpstreamUnavailable
	case status == http.StatusRequestTimeout:
		kind = apperr.KindTimeout
	}
	e := apperr.New(kind, "%s responded %d %s", url, status, snippet)
	if kind == apperr.KindInternal {
		e.Retry = false
	}
	return e
}

func classify(ctx context.Context, method, url string, err error) error {
	var netErr net.Error
	switch {
	case errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded):
		return apperr.Wrap(apperr.KindTimeout, err, "%s %s", method, url)
	case errors.As(err, &netErr) && netErr.Timeout():
		return apperr.Wrap(apperr.KindTimeout, err, "%s %s", method, url)
	default:
		return apperr.Wrap(apperr.KindUpstreamUnavailable, err, "%s %s", method, url)
	}
}

func truncate(body []byte) []byte {
	if len(body) > maxErrorBody {
		return body[:maxErrorBody]
	}
	return body
}
