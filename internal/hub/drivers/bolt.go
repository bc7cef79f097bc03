package drivers

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/memohai/accelerator/internal/configdoc"
	"github.com/memohai/accelerator/internal/hub"
)

var (
	bucketDocuments = []byte("documents")
	bucketOrder     = []byte("order")
	bucketActive    = []byte("active")
	bucketMeta      = []byte("meta")
	keySequence     = []byte("sequence")
)

// BoltStore keeps documents in a single bbolt file. Update transactions are
// serialized by bbolt, which makes activation atomic.
type BoltStore struct {
	db *bolt.DB
}

// storedDocument is the on-disk record; Seq fixes creation order.
type storedDocument struct {
	configdoc.Document
	Seq uint64 `json:"seq"`
}

// OpenBoltStore opens or creates the store at path.
func OpenBoltStore(path string) (*BoltStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: 2 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("open bolt store: %w", err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		for _, name := range [][]byte{bucketDocuments, bucketOrder, bucketActive, bucketMeta} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return &BoltStore{db: db}, nil
}

// Insert implements hub.Store.
func (s *BoltStore) Insert(_ context.Context, doc configdoc.Document) (configdoc.Document, error) {
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = time.Now().UTC()
	}
	doc.Active = false
	err := s.db.Update(func(tx *bolt.Tx) error {
		docs := tx.Bucket(bucketDocuments)
		key := docKey(doc.Type, doc.Version)
		if docs.Get(key) != nil {
			return hub.ErrExists
		}
		seq, err := nextSequence(tx.Bucket(bucketMeta))
		if err != nil {
			return err
		}
		enc, err := json.Marshal(storedDocument{Document: doc, Seq: seq})
		if err != nil {
			return err
		}
		if err := docs.Put(key, enc); err != nil {
			return err
		}
		return tx.Bucket(bucketOrder).Put(orderKey(doc.Type, seq), []byte(doc.Version))
	})
	if err != nil {
		return configdoc.Document{}, err
	}
	return doc.Clone(), nil
}

// Get implements hub.Store.
func (s *BoltStore) Get(_ context.Context, t configdoc.Type, version string) (configdoc.Document, error) {
	var doc configdoc.Document
	err := s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(bucketDocuments).Get(docKey(t, version))
		if v == nil {
			return hub.ErrNotFound
		}
		var rec storedDocument
		if err := json.Unmarshal(v, &rec); err != nil {
			return err
		}
		doc = rec.Document
		return nil
	})
	return doc, err
}

// List implements hub.Store.
func (s *BoltStore) List(_ context.Context, t configdoc.Type) ([]configdoc.Document, error) {
	var out []configdoc.Document
	prefix := typePrefix(t)
	err := s.db.View(func(tx *bolt.Tx) error {
		docs := tx.Bucket(bucketDocuments)
		var versions []string
		c := tx.Bucket(bucketOrder).Cursor()
		for k, v := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, v = c.Next() {
			versions = append(versions, string(v))
		}
		out = make([]configdoc.Document, 0, len(versions))
		for i := len(versions) - 1; i >= 0; i-- {
			raw := docs.Get(docKey(t, versions[i]))
			if raw == nil {
				continue
			}
			var rec storedDocument
			if err := json.Unmarshal(raw, &rec); err != nil {
				return err
			}
			out = append(out, rec.Document)
		}
		return nil
	})
	return out, err
}

// Active implements hub.Store.
func (s *BoltStore) Active(_ context.Context, t configdoc.Type) (string, error) {
	var version string
	err := s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(bucketActive).Get([]byte(t))
		if v == nil {
			return hub.ErrNoActive
		}
		version = string(v)
		return nil
	})
	return version, err
}

// SetActive implements hub.Store.
func (s *BoltStore) SetActive(_ context.Context, t configdoc.Type, version string) (string, error) {
	var previous string
	err := s.db.Update(func(tx *bolt.Tx) error {
		if tx.Bucket(bucketDocuments).Get(docKey(t, version)) == nil {
			return hub.ErrNotFound
		}
		active := tx.Bucket(bucketActive)
		if v := active.Get([]byte(t)); v != nil {
			previous = string(v)
		}
		return active.Put([]byte(t), []byte(version))
	})
	return previous, err
}

// Close implements hub.Store.
func (s *BoltStore) Close() error {
	return s.db.Close()
}

func nextSequence(meta *bolt.Bucket) (uint64, error) {
	var seq uint64
	if v := meta.Get(keySequence); len(v) == 8 {
		seq = binary.BigEndian.Uint64(v)
	}
	seq++
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, seq)
	return seq, meta.Put(keySequence, buf)
}

// Keys are "<type>\x00<version>" and "<type>\x00<seq>"; types never hold NUL.
func typePrefix(t configdoc.Type) []byte {
	return append([]byte(t), 0)
}

func docKey(t configdoc.Type, version string) []byte {
	return append(typePrefix(t), version...)
}

func orderKey(t configdoc.Type, seq uint64) []byte {
	key := typePrefix(t)
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, seq)
	return append(key, buf...)
}
