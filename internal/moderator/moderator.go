// Package moderator classifies user content as safe or unsafe before it
// reaches the orchestrator.
package moderator

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"strings"
	"time"

	"github.com/memohai/accelerator/internal/apperr"
)

// Kind is the content modality.
type Kind string

const (
	KindText  Kind = "text"
	KindImage Kind = "image"
)

// Content is one item to classify. Image content carries raw bytes.
type Content struct {
	Kind  Kind
	Text  string
	Image []byte
}

// Text returns text content.
func Text(s string) Content { return Content{Kind: KindText, Text: s} }

// Image returns image content.
func Image(b []byte) Content { return Content{Kind: KindImage, Image: b} }

// Moderator reports whether content is safe.
type Moderator interface {
	IsSafe(ctx context.Context, content Content) (bool, error)
}

// Func adapts a function to Moderator.
type Func func(ctx context.Context, content Content) (bool, error)

// IsSafe implements Moderator.
func (f Func) IsSafe(ctx context.Context, content Content) (bool, error) {
	return f(ctx, content)
}

// Static flags text containing any deny keyword (case-insensitive) and
// images whose SHA-256 digest is deny-listed.
type Static struct {
	DenyKeywords     []string
	DenyImageDigests []string
}

// IsSafe implements Moderator.
func (s Static) IsSafe(_ context.Context, content Content) (bool, error) {
	switch content.Kind {
	case KindText:
		text := strings.ToLower(content.Text)
		for _, kw := range s.DenyKeywords {
			if kw = strings.ToLower(strings.TrimSpace(kw)); kw != "" && strings.Contains(text, kw) {
				return false, nil
			}
		}
	case KindImage:
		sum := sha256.Sum256(content.Image)
		digest := hex.EncodeToString(sum[:])
		for _, d := range s.DenyImageDigests {
			if strings.EqualFold(strings.TrimSpace(d), digest) {
				return false, nil
			}
		}
	}
	return true, nil
}

// Guard bounds every check with a timeout. A moderator that errors or
// does not answer in time counts as unsafe unless FailOpen is set.
type Guard struct {
	moderator Moderator
	timeout   time.Duration
	failOpen  bool
	logger    *slog.Logger
}

// NewGuard wraps m. A nil m behaves like a moderator that never answers.
func NewGuard(log *slog.Logger, m Moderator, timeout time.Duration, failOpen bool) *Guard {
	if log == nil {
		log = slog.Default()
	}
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return &Guard{
		moderator: m,
		timeout:   timeout,
		failOpen:  failOpen,
		logger:    log.With(slog.String("component", "moderator")),
	}
}

// WithTimeout returns a copy of g using timeout when it is positive.
func (g *Guard) WithTimeout(timeout time.Duration) *Guard {
	if timeout <= 0 || timeout == g.timeout {
		return g
	}
	clone := *g
	clone.timeout = timeout
	return &clone
}

// Check classifies every item and returns CONTENT_FILTERED on the first
// unsafe one.
func (g *Guard) Check(ctx context.Context, contents ...Content) error {
	for _, content := range contents {
		safe, err := g.isSafe(ctx, content)
		if err != nil {
			if g.failOpen {
				g.logger.Warn("moderator unavailable, allowing content",
					slog.String("kind", string(content.Kind)), slog.Any("error", err))
				continue
			}
			g.logger.Warn("moderator unavailable, rejecting content",
				slog.String("kind", string(content.Kind)), slog.Any("error", err))
			return apperr.Wrap(apperr.KindContentFiltered, err, "%s content could not be moderated", content.Kind)
		}
		if !safe {
			return apperr.New(apperr.KindContentFiltered, "%s content flagged by moderator", content.Kind)
		}
	}
	return nil
}

func (g *Guard) isSafe(ctx context.Context, content Content) (bool, error) {
	if g.moderator == nil {
		return false, apperr.New(apperr.KindUpstreamUnavailable, "no moderator configured")
	}
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	type verdict struct {
		safe bool
		err  error
	}
	done := make(chan verdict, 1)
	go func() {
		safe, err := g.moderator.IsSafe(ctx, content)
		done <- verdict{safe: safe, err: err}
	}()
	select {
	case v := <-done:
		return v.safe, v.err
	case <-ctx.Done():
		return false, apperr.Wrap(apperr.KindTimeout, ctx.Err(), "moderator")
	}
}
