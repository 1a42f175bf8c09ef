// Package blobstore stores binary assets in an embedded bbolt database
// organized as named tables with secondary indexes: whole-object records for
// images and ordinary videos, and manifest+chunk records for large assets.
// Large writes are resumable: every chunk write is followed by a manifest
// update, so a crash mid-upload leaves a valid prefix to continue from.
package blobstore

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	bolt "go.etcd.io/bbolt"
)

// Table names. The videos table doubles as the manifest table for chunked
// assets, matching the layout the original client created.
const (
	TableVideos = "videos"
	TableImages = "images"
	TableChunks = "chunks"
)

// Bucket names. Index buckets hold composite keys "<value>\x00<primary>"
// mapping to the primary key, scanned by prefix.
var (
	bucketMeta           = []byte("meta")
	bucketVideos         = []byte("videos")
	bucketImages         = []byte("images")
	bucketChunks         = []byte("chunks")
	bucketVideosByAuthor = []byte("videos_authorId")
	bucketVideosByUpload = []byte("videos_uploadTime")
	bucketChunksByLarge  = []byte("chunks_largeId")
)

var keySchemaVersion = []byte("schema_version")

// schemaVersion is the current table layout. v1 carried videos and images;
// v2 added the chunks table and its largeId index.
const schemaVersion = 2

// Sentinel errors.
var (
	// ErrUnavailable wraps failures to open or upgrade the database;
	// callers degrade rather than retry.
	ErrUnavailable = errors.New("blobstore: storage unavailable")

	// ErrNotFound is returned for absent blobs and manifests.
	ErrNotFound = errors.New("blobstore: not found")

	// ErrMissingChunk signals a manifest listing a chunk that no longer
	// exists. Reads never return partial data.
	ErrMissingChunk = errors.New("blobstore: missing chunk")

	// ErrInvalidChunkSize is returned for non-positive chunk sizes.
	ErrInvalidChunkSize = errors.New("blobstore: chunk size must be positive")

	errUnknownTable = errors.New("blobstore: unknown table")
)

// Status reports whether the blob store can be used, for graceful
// degradation when the hosting environment has no usable database.
type Status struct {
	Supported   bool `json:"supported"`
	Initialized bool `json:"initialized"`
}

// Counters expose cumulative operation counts, mainly so tests and the
// stats command can observe resume behavior (skipped chunks never bump
// ChunkWrites).
type Counters struct {
	ChunkWrites    uint64
	ChunkReads     uint64
	ManifestWrites uint64
}

// Store is the blob store. Open with Open; safe for concurrent use.
type Store struct {
	db     *bolt.DB
	logger *slog.Logger

	chunkWrites    atomic.Uint64
	chunkReads     atomic.Uint64
	manifestWrites atomic.Uint64
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) { s.logger = l }
}

// Open opens or creates the blob database at dbPath and applies any pending
// schema upgrade. Failures wrap ErrUnavailable.
func Open(dbPath string, opts ...Option) (*Store, error) {
	dir := filepath.Dir(dbPath)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("%w: create directory: %w", ErrUnavailable, err)
		}
	}

	db, err := bolt.Open(dbPath, 0600, &bolt.Options{Timeout: 2 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("%w: open database: %w", ErrUnavailable, err)
	}

	s := &Store{db: db, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}

	if err := s.upgrade(); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	return s, nil
}

// upgrade brings the bucket layout to the current schema version, creating
// missing buckets without touching existing data. Runs at most once per
// version bump.
func (s *Store) upgrade() error {
	return s.db.Update(func(tx *bolt.Tx) error {
		meta, err := tx.CreateBucketIfNotExists(bucketMeta)
		if err != nil {
			return fmt.Errorf("create meta bucket: %w", err)
		}

		version := 0
		if v := meta.Get(keySchemaVersion); v != nil {
			version = int(binary.BigEndian.Uint32(v))
		}
		if version >= schemaVersion {
			return nil
		}

		if version < 1 {
			for _, name := range [][]byte{bucketVideos, bucketImages, bucketVideosByAuthor, bucketVideosByUpload} {
				if _, err := tx.CreateBucketIfNotExists(name); err != nil {
					return fmt.Errorf("create bucket %s: %w", name, err)
				}
			}
		}
		if version < 2 {
			for _, name := range [][]byte{bucketChunks, bucketChunksByLarge} {
				if _, err := tx.CreateBucketIfNotExists(name); err != nil {
					return fmt.Errorf("create bucket %s: %w", name, err)
				}
			}
		}

		var buf [4]byte
		binary.BigEndian.PutUint32(buf[:], uint32(schemaVersion))
		if err := meta.Put(keySchemaVersion, buf[:]); err != nil {
			return fmt.Errorf("write schema version: %w", err)
		}
		s.logger.Info("blob schema upgraded", "from", version, "to", schemaVersion)
		return nil
	})
}

// Close closes the database.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// SupportStatus reports availability. A nil Store (environment without a
// usable database) reports unsupported.
func (s *Store) SupportStatus() Status {
	if s == nil || s.db == nil {
		return Status{}
	}
	return Status{Supported: true, Initialized: true}
}

// Stats returns a snapshot of the operation counters.
func (s *Store) Stats() Counters {
	return Counters{
		ChunkWrites:    s.chunkWrites.Load(),
		ChunkReads:     s.chunkReads.Load(),
		ManifestWrites: s.manifestWrites.Load(),
	}
}

// Counts returns the number of records per table.
func (s *Store) Counts(_ context.Context) (map[string]int, error) {
	counts := make(map[string]int, 3)
	err := s.db.View(func(tx *bolt.Tx) error {
		counts[TableVideos] = tx.Bucket(bucketVideos).Stats().KeyN
		counts[TableImages] = tx.Bucket(bucketImages).Stats().KeyN
		counts[TableChunks] = tx.Bucket(bucketChunks).Stats().KeyN
		return nil
	})
	if err != nil {
		return nil, err
	}
	return counts, nil
}

func tableBucket(table string) ([]byte, error) {
	switch table {
	case TableVideos:
		return bucketVideos, nil
	case TableImages:
		return bucketImages, nil
	default:
		return nil, fmt.Errorf("%w: %s", errUnknownTable, table)
	}
}

// indexKey builds a composite secondary-index key.
func indexKey(value, primary string) []byte {
	k := make([]byte, 0, len(value)+1+len(primary))
	k = append(k, value...)
	k = append(k, 0)
	k = append(k, primary...)
	return k
}
