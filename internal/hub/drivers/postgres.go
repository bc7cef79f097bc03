package drivers

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/memohai/accelerator/internal/configdoc"
	"github.com/memohai/accelerator/internal/db"
	"github.com/memohai/accelerator/internal/hub"
)

const (
	insertDocumentSQL = `
INSERT INTO config_documents (config_type, config_version, config_body, created_at)
VALUES ($1, $2, $3, $4)
RETURNING created_at`

	getDocumentSQL = `
SELECT config_body, created_at
FROM config_documents
WHERE config_type = $1 AND config_version = $2`

	listDocumentsSQL = `
SELECT config_version, config_body, created_at
FROM config_documents
WHERE config_type = $1
ORDER BY id DESC`

	getActiveSQL = `
SELECT config_version FROM config_active WHERE config_type = $1`

	lockActiveSQL = `
SELECT config_version FROM config_active WHERE config_type = $1 FOR UPDATE`

	upsertActiveSQL = `
INSERT INTO config_active (config_type, config_version, updated_at)
VALUES ($1, $2, now())
ON CONFLICT (config_type) DO UPDATE
SET config_version = EXCLUDED.config_version, updated_at = EXCLUDED.updated_at`
)

// PostgresStore keeps documents in PostgreSQL. The active pointer carries a
// foreign key to its document, so the database itself refuses dangling
// pointers.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore wraps an open pool. The schema must be migrated first.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Insert implements hub.Store.
func (s *PostgresStore) Insert(ctx context.Context, doc configdoc.Document) (configdoc.Document, error) {
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = time.Now().UTC()
	}
	doc.Active = false
	var created time.Time
	err := s.pool.QueryRow(ctx, insertDocumentSQL, string(doc.Type), doc.Version, []byte(doc.Body), doc.CreatedAt).Scan(&created)
	if err != nil {
		if db.IsUniqueViolation(err) {
			return configdoc.Document{}, hub.ErrExists
		}
		return configdoc.Document{}, err
	}
	doc.CreatedAt = created.UTC()
	return doc.Clone(), nil
}

// Get implements hub.Store.
func (s *PostgresStore) Get(ctx context.Context, t configdoc.Type, version string) (configdoc.Document, error) {
	doc := configdoc.Document{Type: t, Version: version}
	var body []byte
	err := s.pool.QueryRow(ctx, getDocumentSQL, string(t), version).Scan(&body, &doc.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return configdoc.Document{}, hub.ErrNotFound
	}
	if err != nil {
		return configdoc.Document{}, err
	}
	doc.Body = body
	doc.CreatedAt = doc.CreatedAt.UTC()
	return doc, nil
}

// List implements hub.Store.
func (s *PostgresStore) List(ctx context.Context, t configdoc.Type) ([]configdoc.Document, error) {
	rows, err := s.pool.Query(ctx, listDocumentsSQL, string(t))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []configdoc.Document{}
	for rows.Next() {
		doc := configdoc.Document{Type: t}
		var body []byte
		if err := rows.Scan(&doc.Version, &body, &doc.CreatedAt); err != nil {
			return nil, err
		}
		doc.Body = body
		doc.CreatedAt = doc.CreatedAt.UTC()
		out = append(out, doc)
	}
	return out, rows.Err()
}

// Active implements hub.Store.
func (s *PostgresStore) Active(ctx context.Context, t configdoc.Type) (string, error) {
	var version string
	err := s.pool.QueryRow(ctx, getActiveSQL, string(t)).Scan(&version)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", hub.ErrNoActive
	}
	return version, err
}

// SetActive implements hub.Store.
func (s *PostgresStore) SetActive(ctx context.Context, t configdoc.Type, version string) (string, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return "", err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var previous string
	err = tx.QueryRow(ctx, lockActiveSQL, string(t)).Scan(&previous)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return "", err
	}
	if _, err := tx.Exec(ctx, upsertActiveSQL, string(t), version); err != nil {
		if db.IsForeignKeyViolation(err) {
			return "", hub.ErrNotFound
		}
		return "", err
	}
	if err := tx.Commit(ctx); err != nil {
		return "", err
	}
	return previous, nil
}

// Close implements hub.Store.
func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}
