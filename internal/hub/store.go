// Package hub implements the configuration hub: versioned, typed config
// documents with one active version per type.
package hub

import (
	"context"
	"errors"

	"github.com/memohai/accelerator/internal/configdoc"
)

var (
	// ErrNotFound is returned when a (type, version) pair is not stored.
	ErrNotFound = errors.New("config document not found")
	// ErrExists is returned when inserting a (type, version) pair twice.
	ErrExists = errors.New("config document already exists")
	// ErrNoActive is returned when a type has no active version.
	ErrNoActive = errors.New("no active config version")
)

// Store persists documents and active pointers. Implementations must make
// SetActive atomic with respect to the existence check, so the active
// pointer never names a missing document.
type Store interface {
	// Insert stores doc. CreatedAt is assigned when zero.
	Insert(ctx context.Context, doc configdoc.Document) (configdoc.Document, error)
	Get(ctx context.Context, t configdoc.Type, version string) (configdoc.Document, error)
	// List returns documents of t, newest first.
	List(ctx context.Context, t configdoc.Type) ([]configdoc.Document, error)
	// Active returns the active version of t.
	Active(ctx context.Context, t configdoc.Type) (string, error)
	// SetActive points t at version and returns the previous active version.
	SetActive(ctx context.Context, t configdoc.Type, version string) (string, error)
	Close() error
}
