// Package platform is the domain façade over the document store and the
// blob store: accounts, videos, watch history, favorites, dynamic posts and
// search history, composed from store primitives.
//
// The document store rewrites whole collections per mutation with
// last-write-wins semantics, so the façade serializes every mutation behind
// one mutex. That is the application-layer write serialization the docstore
// contract requires.
package platform

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/streamflix/flixstore/internal/blobstore"
	"github.com/streamflix/flixstore/internal/config"
	"github.com/streamflix/flixstore/internal/docstore"
	"github.com/streamflix/flixstore/internal/kv"
)

// Sentinel errors.
var (
	ErrInvalidCredentials = errors.New("platform: invalid username or password")
	ErrUserExists         = errors.New("platform: username or email already taken")
	ErrUserNotFound       = errors.New("platform: user not found")
	ErrVideoNotFound      = errors.New("platform: video not found")
	ErrDynamicNotFound    = errors.New("platform: dynamic post not found")

	// ErrPersistFailed reports a collection write that the document store
	// rejected (quota or substrate failure).
	ErrPersistFailed = errors.New("platform: collection write failed")

	// ErrBlobsUnavailable is returned by binary operations when the blob
	// store could not be opened in this environment.
	ErrBlobsUnavailable = errors.New("platform: blob store unavailable")
)

// Platform bundles the two stores behind domain operations.
type Platform struct {
	docs   *docstore.Store
	blobs  *blobstore.Store // nil in degraded mode
	logger *slog.Logger

	chunkSize int

	mu sync.Mutex // serializes collection mutations
}

// Option configures a Platform.
type Option func(*Platform)

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(p *Platform) { p.logger = l }
}

// WithChunkSize overrides the large-asset chunk size.
func WithChunkSize(n int) Option {
	return func(p *Platform) { p.chunkSize = n }
}

// New assembles a platform from already-constructed stores. blobs may be
// nil; binary operations then fail with ErrBlobsUnavailable while document
// operations keep working.
func New(docs *docstore.Store, blobs *blobstore.Store, opts ...Option) *Platform {
	p := &Platform{
		docs:      docs,
		blobs:     blobs,
		logger:    slog.Default(),
		chunkSize: blobstore.DefaultChunkSize,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Open builds the full stack from configuration and waits for the document
// store bootstrap, bounded by the configured init timeout. A blob store
// that fails to open degrades rather than failing Open; a document store
// that cannot initialize is fatal.
func Open(ctx context.Context, cfg *config.Config, opts ...Option) (*Platform, error) {
	substrate, err := openSubstrate(cfg)
	if err != nil {
		return nil, fmt.Errorf("open substrate: %w", err)
	}

	p := New(nil, nil, opts...)
	p.chunkSize = cfg.ChunkSize

	p.docs = docstore.New(substrate, docstore.WithLogger(p.logger))

	blobs, err := blobstore.Open(cfg.BlobsPath(), blobstore.WithLogger(p.logger))
	if err != nil {
		// Degraded mode mirrors the original client running without a
		// usable object store.
		p.logger.Warn("blob store unavailable, running degraded", "error", err)
	} else {
		p.blobs = blobs
	}

	readyCtx, cancel := context.WithTimeout(ctx, time.Duration(cfg.InitTimeoutSecs)*time.Second)
	defer cancel()
	if err := p.docs.Ready(readyCtx); err != nil {
		p.Close()
		return nil, err
	}
	return p, nil
}

func openSubstrate(cfg *config.Config) (kv.Store, error) {
	kvOpts := kv.Options{MaxValueSize: cfg.MaxValueSize}
	if cfg.KVDriver == config.DriverBadger {
		return kv.NewBadgerStore(cfg.DocumentsPath(), kvOpts)
	}
	return kv.NewSQLiteStore(cfg.DocumentsPath(), kvOpts)
}

// Ready reports (or awaits) document-store initialization.
func (p *Platform) Ready(ctx context.Context) error {
	return p.docs.Ready(ctx)
}

// Docs exposes the raw document store for callers that need collection
// primitives directly.
func (p *Platform) Docs() *docstore.Store { return p.docs }

// Blobs exposes the raw blob store. May be nil in degraded mode.
func (p *Platform) Blobs() *blobstore.Store { return p.blobs }

// SupportStatus reports blob-store availability for graceful degradation.
func (p *Platform) SupportStatus() blobstore.Status {
	return p.blobs.SupportStatus()
}

// Close releases both stores.
func (p *Platform) Close() error {
	var firstErr error
	if p.blobs != nil {
		if err := p.blobs.Close(); err != nil {
			firstErr = err
		}
	}
	if p.docs != nil {
		if err := p.docs.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// newID builds a record id in the original client's shape:
// <prefix>_<millis>_<suffix>.
func newID(prefix string) string {
	return fmt.Sprintf("%s_%d_%s", prefix, time.Now().UnixMilli(), uuid.NewString()[:8])
}
