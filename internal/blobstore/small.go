package blobstore

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	bolt "go.etcd.io/bbolt"
)

// Blob is a whole-object binary record: images and videos small enough to
// skip the chunked path.
type Blob struct {
	ID       string    `json:"id"`
	Data     []byte    `json:"data"`
	Type     string    `json:"type,omitempty"`
	AuthorID string    `json:"authorId,omitempty"`
	StoredAt time.Time `json:"uploadTime"`
}

// SmallOption annotates a small-blob write.
type SmallOption func(*Blob)

// WithContentType records the blob's media type.
func WithContentType(t string) SmallOption {
	return func(b *Blob) { b.Type = t }
}

// WithAuthor records the owning user, maintained in the videos table's
// authorId index.
func WithAuthor(authorID string) SmallOption {
	return func(b *Blob) { b.AuthorID = authorID }
}

// StoreSmall upserts a whole-object blob into a table. Overwrites any
// existing record with the same id.
func (s *Store) StoreSmall(ctx context.Context, table, id string, data []byte, opts ...SmallOption) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	bucket, err := tableBucket(table)
	if err != nil {
		return err
	}

	blob := Blob{ID: id, Data: data, StoredAt: time.Now().UTC()}
	for _, opt := range opts {
		opt(&blob)
	}

	value, err := json.Marshal(&blob)
	if err != nil {
		return fmt.Errorf("marshal blob %s: %w", id, err)
	}

	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucket)
		if table == TableVideos {
			if err := s.dropVideoIndexEntries(tx, b, id); err != nil {
				return err
			}
			if err := s.putVideoIndexEntries(tx, id, blob.AuthorID, blob.StoredAt); err != nil {
				return err
			}
		}
		if err := b.Put([]byte(id), value); err != nil {
			return fmt.Errorf("store blob %s: %w", id, err)
		}
		return nil
	})
}

// GetSmall retrieves a whole-object blob. Returns ErrNotFound for absent
// ids and for ids that name a chunked manifest rather than a small blob.
func (s *Store) GetSmall(ctx context.Context, table, id string) (*Blob, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	bucket, err := tableBucket(table)
	if err != nil {
		return nil, err
	}

	var blob *Blob
	err = s.db.View(func(tx *bolt.Tx) error {
		value := tx.Bucket(bucket).Get([]byte(id))
		if value == nil {
			return ErrNotFound
		}

		var envelope struct {
			IsLarge bool `json:"isLarge"`
		}
		if err := json.Unmarshal(value, &envelope); err != nil {
			return fmt.Errorf("unmarshal blob %s: %w", id, err)
		}
		if envelope.IsLarge {
			return ErrNotFound
		}

		blob = &Blob{}
		return json.Unmarshal(value, blob)
	})
	if err != nil {
		return nil, err
	}
	return blob, nil
}

// DeleteSmall removes a whole-object blob and its index entries. Deleting
// an absent id is not an error.
func (s *Store) DeleteSmall(ctx context.Context, table, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	bucket, err := tableBucket(table)
	if err != nil {
		return err
	}

	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucket)
		if b.Get([]byte(id)) == nil {
			return nil
		}
		if table == TableVideos {
			if err := s.dropVideoIndexEntries(tx, b, id); err != nil {
				return err
			}
		}
		return b.Delete([]byte(id))
	})
}

// putVideoIndexEntries maintains the videos table's secondary indexes.
func (s *Store) putVideoIndexEntries(tx *bolt.Tx, id, authorID string, storedAt time.Time) error {
	if authorID != "" {
		if err := tx.Bucket(bucketVideosByAuthor).Put(indexKey(authorID, id), []byte(id)); err != nil {
			return fmt.Errorf("index author for %s: %w", id, err)
		}
	}
	stamp := storedAt.UTC().Format(time.RFC3339Nano)
	if err := tx.Bucket(bucketVideosByUpload).Put(indexKey(stamp, id), []byte(id)); err != nil {
		return fmt.Errorf("index upload time for %s: %w", id, err)
	}
	return nil
}

// dropVideoIndexEntries removes the index entries belonging to an existing
// videos-table record, reading the stored record to recover the indexed
// values.
func (s *Store) dropVideoIndexEntries(tx *bolt.Tx, b *bolt.Bucket, id string) error {
	value := b.Get([]byte(id))
	if value == nil {
		return nil
	}
	var old struct {
		AuthorID string    `json:"authorId"`
		StoredAt time.Time `json:"uploadTime"`
	}
	if err := json.Unmarshal(value, &old); err != nil {
		// Index entries for an unreadable record are swept later; do not
		// block the write.
		s.logger.Warn("unreadable record during index cleanup", "id", id, "error", err)
		return nil
	}
	if old.AuthorID != "" {
		if err := tx.Bucket(bucketVideosByAuthor).Delete(indexKey(old.AuthorID, id)); err != nil {
			return err
		}
	}
	stamp := old.StoredAt.UTC().Format(time.RFC3339Nano)
	return tx.Bucket(bucketVideosByUpload).Delete(indexKey(stamp, id))
}
