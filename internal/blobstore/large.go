package blobstore

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	bolt "go.etcd.io/bbolt"
)

// DefaultChunkSize splits large assets into 5 MiB fragments.
const DefaultChunkSize = 5 * 1024 * 1024

// Manifest describes a chunked large asset. ChunkIDs is append-only during
// an upload; once the upload completes it lists ceil(Size/chunkSize) chunks
// in index order.
type Manifest struct {
	ID         string    `json:"id"`
	IsLarge    bool      `json:"isLarge"`
	ChunkIDs   []string  `json:"chunkIds"`
	Size       int64     `json:"size"`
	Type       string    `json:"type,omitempty"`
	AuthorID   string    `json:"authorId,omitempty"`
	UploadTime time.Time `json:"uploadTime"`
}

// Chunk is one stored fragment of a large asset. Chunks are owned by their
// manifest and never shared.
type Chunk struct {
	ID      string
	LargeID string
	Index   int
	Size    int
	Data    []byte
}

// LargeBlob is a reassembled large asset.
type LargeBlob struct {
	ID   string
	Data []byte
	Type string
	Size int64
}

// Progress reports how far an upload has gotten, derived entirely from the
// manifest. Callers use it to decide between resuming and restarting.
type Progress struct {
	Exists         bool   `json:"exists"`
	UploadedChunks int    `json:"uploadedChunks"`
	TotalChunks    int    `json:"totalChunks"`
	Size           int64  `json:"size"`
	Type           string `json:"type,omitempty"`
}

// LargeOption annotates a manifest on creation.
type LargeOption func(*Manifest)

// WithLargeContentType records the asset's media type on the manifest.
func WithLargeContentType(t string) LargeOption {
	return func(m *Manifest) { m.Type = t }
}

// WithLargeAuthor records the owning user on the manifest.
func WithLargeAuthor(authorID string) LargeOption {
	return func(m *Manifest) { m.AuthorID = authorID }
}

func chunkID(largeID string, index int) string {
	return fmt.Sprintf("%s_chunk_%d", largeID, index)
}

// parseChunkID recovers (largeID, index) from a chunk key. The separator is
// matched at its last occurrence so large ids containing "_chunk_" still
// parse.
func parseChunkID(id string) (string, int, bool) {
	sep := strings.LastIndex(id, "_chunk_")
	if sep < 0 {
		return "", 0, false
	}
	index, err := strconv.Atoi(id[sep+len("_chunk_"):])
	if err != nil {
		return "", 0, false
	}
	return id[:sep], index, true
}

// StoreLarge writes a large asset as chunks plus a manifest. The operation
// is resumable and idempotent: chunks already listed and physically present
// are skipped, chunks present but unlisted are adopted into the manifest,
// and everything else is written chunk-first with the manifest persisted
// after each chunk. The chunk-then-manifest sequence is deliberately not
// atomic across steps; a crash leaves a valid prefix to resume from.
func (s *Store) StoreLarge(ctx context.Context, id string, data []byte, chunkSize int, opts ...LargeOption) error {
	if chunkSize <= 0 {
		return ErrInvalidChunkSize
	}

	manifest, err := s.getManifest(id)
	if err != nil && err != ErrNotFound {
		return err
	}
	if manifest == nil {
		manifest = &Manifest{
			ID:         id,
			IsLarge:    true,
			ChunkIDs:   []string{},
			Size:       int64(len(data)),
			UploadTime: time.Now().UTC(),
		}
		for _, opt := range opts {
			opt(manifest)
		}
		if err := s.putManifest(manifest); err != nil {
			return err
		}
	} else if manifest.Size != int64(len(data)) {
		s.logger.Warn("resuming upload with different source size",
			"id", id, "manifest", manifest.Size, "source", len(data))
	}

	total := len(data)
	chunks := (total + chunkSize - 1) / chunkSize

	listed := make(map[string]bool, len(manifest.ChunkIDs))
	for _, cid := range manifest.ChunkIDs {
		listed[cid] = true
	}

	for i := 0; i < chunks; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		cid := chunkID(id, i)
		present, err := s.chunkExists(cid)
		if err != nil {
			return err
		}

		if listed[cid] && present {
			continue
		}
		if present {
			// Physically there but unlisted: adopt into the manifest
			// instead of rewriting the bytes.
			manifest.ChunkIDs = append(manifest.ChunkIDs, cid)
			listed[cid] = true
			if err := s.putManifest(manifest); err != nil {
				return err
			}
			continue
		}

		start := i * chunkSize
		end := min(start+chunkSize, total)
		if err := s.writeChunk(id, cid, data[start:end]); err != nil {
			return err
		}

		if !listed[cid] {
			manifest.ChunkIDs = append(manifest.ChunkIDs, cid)
			listed[cid] = true
		}
		// Persist immediately so an interrupted upload stays resumable.
		if err := s.putManifest(manifest); err != nil {
			return err
		}
	}

	return nil
}

// GetLarge reads the manifest and reassembles the asset from its chunks in
// index order. Any listed-but-absent chunk fails the whole read with
// ErrMissingChunk.
func (s *Store) GetLarge(ctx context.Context, id string) (*LargeBlob, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	manifest, err := s.getManifest(id)
	if err != nil {
		return nil, err
	}

	data := make([]byte, 0, manifest.Size)
	err = s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketChunks)
		for _, cid := range manifest.ChunkIDs {
			chunk := b.Get([]byte(cid))
			if chunk == nil {
				return fmt.Errorf("%w: %s", ErrMissingChunk, cid)
			}
			s.chunkReads.Add(1)
			data = append(data, chunk...)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return &LargeBlob{ID: id, Data: data, Type: manifest.Type, Size: manifest.Size}, nil
}

// LargeProgress reports upload progress for an asset. A missing manifest
// reports Exists=false without error.
func (s *Store) LargeProgress(ctx context.Context, id string, chunkSize int) (Progress, error) {
	if err := ctx.Err(); err != nil {
		return Progress{}, err
	}
	if chunkSize <= 0 {
		return Progress{}, ErrInvalidChunkSize
	}

	manifest, err := s.getManifest(id)
	if err == ErrNotFound {
		return Progress{}, nil
	}
	if err != nil {
		return Progress{}, err
	}

	return Progress{
		Exists:         true,
		UploadedChunks: len(manifest.ChunkIDs),
		TotalChunks:    int((manifest.Size + int64(chunkSize) - 1) / int64(chunkSize)),
		Size:           manifest.Size,
		Type:           manifest.Type,
	}, nil
}

// DeleteLarge removes every listed chunk, then the manifest. Chunks go
// first so a crash leaves orphaned chunks (swept later) rather than a
// manifest pointing at nothing. Deleting an absent asset is not an error.
func (s *Store) DeleteLarge(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	manifest, err := s.getManifest(id)
	if err == ErrNotFound {
		return nil
	}
	if err != nil {
		return err
	}

	err = s.db.Update(func(tx *bolt.Tx) error {
		chunks := tx.Bucket(bucketChunks)
		index := tx.Bucket(bucketChunksByLarge)
		for _, cid := range manifest.ChunkIDs {
			if err := chunks.Delete([]byte(cid)); err != nil {
				return fmt.Errorf("delete chunk %s: %w", cid, err)
			}
			if err := index.Delete(indexKey(id, cid)); err != nil {
				return fmt.Errorf("unindex chunk %s: %w", cid, err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketVideos)
		if err := s.dropVideoIndexEntries(tx, b, id); err != nil {
			return err
		}
		return b.Delete([]byte(id))
	})
}

// ChunksByLarge returns the stored chunks belonging to a manifest via the
// largeId index, in index order.
func (s *Store) ChunksByLarge(ctx context.Context, largeID string) ([]*Chunk, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var result []*Chunk
	err := s.db.View(func(tx *bolt.Tx) error {
		chunks := tx.Bucket(bucketChunks)
		c := tx.Bucket(bucketChunksByLarge).Cursor()
		prefix := indexKey(largeID, "")
		for k, v := c.Seek(prefix); k != nil && strings.HasPrefix(string(k), string(prefix)); k, v = c.Next() {
			cid := string(v)
			data := chunks.Get(v)
			if data == nil {
				continue
			}
			_, idx, ok := parseChunkID(cid)
			if !ok {
				continue
			}
			result = append(result, &Chunk{
				ID:      cid,
				LargeID: largeID,
				Index:   idx,
				Size:    len(data),
				Data:    append([]byte(nil), data...),
			})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	// The cursor yields lexicographic key order, which diverges from numeric
	// chunk order past index 9.
	sort.Slice(result, func(i, j int) bool { return result[i].Index < result[j].Index })
	return result, nil
}

// ManifestsByAuthor returns all chunked manifests owned by a user via the
// authorId index.
func (s *Store) ManifestsByAuthor(ctx context.Context, authorID string) ([]*Manifest, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var result []*Manifest
	err := s.db.View(func(tx *bolt.Tx) error {
		videos := tx.Bucket(bucketVideos)
		c := tx.Bucket(bucketVideosByAuthor).Cursor()
		prefix := indexKey(authorID, "")
		for k, v := c.Seek(prefix); k != nil && strings.HasPrefix(string(k), string(prefix)); k, v = c.Next() {
			value := videos.Get(v)
			if value == nil {
				continue
			}
			var m Manifest
			if err := json.Unmarshal(value, &m); err != nil {
				return fmt.Errorf("unmarshal manifest %s: %w", v, err)
			}
			if !m.IsLarge {
				continue
			}
			result = append(result, &m)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *Store) getManifest(id string) (*Manifest, error) {
	var manifest *Manifest
	err := s.db.View(func(tx *bolt.Tx) error {
		value := tx.Bucket(bucketVideos).Get([]byte(id))
		if value == nil {
			return ErrNotFound
		}
		m := &Manifest{}
		if err := json.Unmarshal(value, m); err != nil {
			return fmt.Errorf("unmarshal manifest %s: %w", id, err)
		}
		if !m.IsLarge {
			return ErrNotFound
		}
		manifest = m
		return nil
	})
	if err != nil {
		return nil, err
	}
	return manifest, nil
}

func (s *Store) putManifest(m *Manifest) error {
	value, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("marshal manifest %s: %w", m.ID, err)
	}
	err = s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketVideos)
		if err := s.dropVideoIndexEntries(tx, b, m.ID); err != nil {
			return err
		}
		if err := s.putVideoIndexEntries(tx, m.ID, m.AuthorID, m.UploadTime); err != nil {
			return err
		}
		return b.Put([]byte(m.ID), value)
	})
	if err != nil {
		return fmt.Errorf("store manifest %s: %w", m.ID, err)
	}
	s.manifestWrites.Add(1)
	return nil
}

func (s *Store) chunkExists(cid string) (bool, error) {
	var exists bool
	err := s.db.View(func(tx *bolt.Tx) error {
		exists = tx.Bucket(bucketChunks).Get([]byte(cid)) != nil
		return nil
	})
	return exists, err
}

func (s *Store) writeChunk(largeID, cid string, data []byte) error {
	err := s.db.Update(func(tx *bolt.Tx) error {
		if err := tx.Bucket(bucketChunks).Put([]byte(cid), data); err != nil {
			return err
		}
		return tx.Bucket(bucketChunksByLarge).Put(indexKey(largeID, cid), []byte(cid))
	})
	if err != nil {
		return fmt.Errorf("write chunk %s: %w", cid, err)
	}
	s.chunkWrites.Add(1)
	return nil
}
