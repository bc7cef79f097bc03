package transport

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	"github.com/memohai/accelerator/internal/apperr"
)

type echoBody struct {
	Value string `json:"value"`
}

func TestPostJSONDecodesAnyStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		var in echoBody
		require.NoError(t, json.NewDecoder(r.Body).Decode(&in))
		w.WriteHeader(http.StatusNotFound)
		_ = json.NewEncoder(w).Encode(echoBody{Value: "got " + in.Value})
	}))
	defer srv.Close()

	c := NewClient(nil, time.Second, WithBearerToken("secret"))
	var out echoBody
	status, err := c.PostJSON(context.Background(), srv.URL, echoBody{Value: "x"}, &out)
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "got x", out.Value)
}

func TestPostJSONErrorMapping(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   apperr.Kind
	}{
		{"bad gateway without body", http.StatusBadGateway, "", apperr.KindUpstreamUnavailable},
		{"html error page", http.StatusServiceUnavailable, "<html>down</html>", apperr.KindUpstreamUnavailable},
		{"client error without json", http.StatusBadRequest, "nope", apperr.KindInternal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			var out echoBody
			_, err := NewClient(nil, time.Second).PostJSON(context.Background(), srv.URL, echoBody{}, &out)
			require.Error(t, err)
			assert.Equal(t, tt.want, apperr.KindOf(err))
		})
	}
}

func TestPostJSONTimeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	_, err := NewClient(nil, 50*time.Millisecond).PostJSON(context.Background(), srv.URL, echoBody{}, &echoBody{})
	require.Error(t, err)
	assert.Equal(t, apperr.KindTimeout, apperr.KindOf(err))
	assert.True(t, apperr.From(err).Retry)
}

func TestPostJSONUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := srv.URL
	srv.Close()

	_, err := NewClient(nil, time.Second).PostJSON(context.Background(), url, echoBody{}, &echoBody{})
	require.Error(t, err)
	assert.Equal(t, apperr.KindUpstreamUnavailable, apperr.KindOf(err))
}

func TestDoInjectsTraceContext(t *testing.T) {
	prev := otel.GetTextMapPropagator()
	otel.SetTextMapPropagator(propagation.TraceContext{})
	defer otel.SetTextMapPropagator(prev)

	var got string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Get("traceparent")
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	traceID, _ := trace.TraceIDFromHex("4bf92f3577b34da6a3ce929d0e0e4736")
	spanID, _ := trace.SpanIDFromHex("00f067aa0ba902b7")
	sc := trace.NewSpanContext(trace.SpanContextConfig{TraceID: traceID, SpanID: spanID, TraceFlags: trace.FlagsSampled})
	ctx := trace.ContextWithRemoteSpanContext(context.Background(), sc)

	status, _, err := NewClient(nil, time.Second).Do(ctx, http.MethodGet, srv.URL, nil)
	require.NoError(t, err)
	assert.Equal(t, http.StatusNoContent, status)
	assert.Equal(t, "00-4bf92f3577b34da6a3ce929d0e0e4736-00f067aa0ba902b7-01", got)
}

func TestRateLimitBoundsWaitByDeadline(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(echoBody{Value: "ok"})
	}))
	defer srv.Close()

	client := NewClient(nil, 100*time.Millisecond, WithRateLimit(0.5, 1))
	var out echoBody
	_, err := client.PostJSON(context.Background(), srv.URL, echoBody{}, &out)
	require.NoError(t, err)
	assert.Equal(t, "ok", out.Value)

	_, err = client.PostJSON(context.Background(), srv.URL, echoBody{}, &out)
	require.Error(t, err)
	assert.Equal(t, apperr.KindTimeout, apperr.KindOf(err))
}

func TestDoBoundsResponseBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(strings.Repeat("x", 64)))
	}))
	defer srv.Close()

	status, data, err := NewClient(nil, time.Second, WithMaxResponseBytes(64)).Do(context.Background(), http.MethodGet, srv.URL, nil)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, status)
	assert.Len(t, data, 64)

	_, _, err = NewClient(nil, time.Second, WithMaxResponseBytes(16)).Do(context.Background(), http.MethodGet, srv.URL, nil)
	require.Error(t, err)
	assert.Equal(t, apperr.KindUpstreamUnavailable, apperr.KindOf(err))
}
