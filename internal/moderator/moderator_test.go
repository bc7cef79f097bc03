package moderator

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/memohai/accelerator/internal/apperr"
	"github.com/memohai/accelerator/internal/transport"
)

func TestStatic(t *testing.T) {
	img := []byte("forbidden-bytes")
	sum := sha256.Sum256(img)
	m := Static{DenyKeywords: []string{"Weapon"}, DenyImageDigests: []string{hex.EncodeToString(sum[:])}}
	ctx := context.Background()

	tests := []struct {
		name    string
		content Content
		want    bool
	}{
		{"clean text", Text("red shoes"), true},
		{"flagged text", Text("buy a WEAPON now"), false},
		{"clean image", Image([]byte("cat")), true},
		{"flagged image", Image(img), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			safe, err := m.IsSafe(ctx, tt.content)
			require.NoError(t, err)
			assert.Equal(t, tt.want, safe)
		})
	}
}

func TestGuard(t *testing.T) {
	slow := Func(func(ctx context.Context, _ Content) (bool, error) {
		<-ctx.Done()
		return true, nil
	})
	failing := Func(func(context.Context, Content) (bool, error) {
		return false, errors.New("boom")
	})
	unsafe := Func(func(context.Context, Content) (bool, error) { return false, nil })
	safe := Func(func(context.Context, Content) (bool, error) { return true, nil })

	tests := []struct {
		name     string
		m        Moderator
		failOpen bool
		wantErr  bool
	}{
		{"safe", safe, false, false},
		{"unsafe", unsafe, false, true},
		{"unsafe ignores fail open", unsafe, true, true},
		{"timeout fails closed", slow, false, true},
		{"timeout fail open", slow, true, false},
		{"error fails closed", failing, false, true},
		{"error fail open", failing, true, false},
		{"missing moderator fails closed", nil, false, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := NewGuard(nil, tt.m, 20*time.Millisecond, tt.failOpen)
			err := g.Check(context.Background(), Image([]byte("x")))
			if !tt.wantErr {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Equal(t, apperr.KindContentFiltered, apperr.KindOf(err))
			assert.Equal(t, 451, apperr.From(err).Status)
		})
	}
}

func TestGuardDoesNotWaitForStuckModerator(t *testing.T) {
	stuck := Func(func(context.Context, Content) (bool, error) {
		time.Sleep(time.Second)
		return true, nil
	})
	start := time.Now()
	err := NewGuard(nil, stuck, 20*time.Millisecond, false).Check(context.Background(), Text("x"))
	assert.Error(t, err)
	assert.Less(t, time.Since(start), 500*time.Millisecond)
}

func TestHTTPModerator(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req moderationRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		safe := !(req.Kind == KindImage && req.Image == "YmFk")
		_ = json.NewEncoder(w).Encode(map[string]bool{"safe": safe})
	}))
	defer srv.Close()

	m := NewHTTPModerator(srv.URL, transport.NewClient(nil, time.Second))
	ok, err := m.IsSafe(context.Background(), Image([]byte("bad")))
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = m.IsSafe(context.Background(), Text("fine"))
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestHTTPModeratorWithoutVerdict(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	_, err := NewHTTPModerator(srv.URL, transport.NewClient(nil, time.Second)).IsSafe(context.Background(), Text("x"))
	assert.Equal(t, apperr.KindUpstreamUnavailable, apperr.KindOf(err))
}
