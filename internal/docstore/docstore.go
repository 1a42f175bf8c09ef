// Package docstore implements the document store: named collections of
// JSON records persisted on the flat kv substrate, plus advisory type
// indexes and the startup bootstrap (seed, repair, migrations).
//
// Each collection is serialized as a single substrate entry and rewritten
// whole on every mutation. Two logically concurrent writers to the same
// collection therefore race with last-write-wins semantics; callers that
// mutate concurrently must serialize at the application layer (the platform
// façade does). This is an accepted design limit, not a bug.
//
// Failure policy favors availability: an unparsable collection is read as
// its empty default and logged, never surfaced. Write failures (quota,
// substrate errors) report as boolean results, matching the contract the
// original client code was written against.
package docstore

import (
	"encoding/json"
	"errors"
	"log/slog"
	"sync"

	"github.com/streamflix/flixstore/internal/kv"
)

// Collection names. Case-sensitive, part of the stored-data format.
const (
	CollectionUsers    = "users"
	CollectionVideos   = "videos"
	CollectionHistory  = "history"
	CollectionMessages = "messages"
	CollectionDynamics = "dynamics"
	CollectionSearch   = "search"
)

// Index types.
const (
	IndexUser  = "user"
	IndexVideo = "video"
)

// DefaultKeyPrefix namespaces all substrate keys. Kept for compatibility
// with data written by the original client.
const DefaultKeyPrefix = "StreamFlix_data"

// Shape declares how a collection is stored.
type Shape int

const (
	// Mapping collections are keyed by record ID.
	Mapping Shape = iota
	// Sequence collections are ordered lists with no unique key; records
	// are matched by their "id" field or by composite fields.
	Sequence
)

var collectionShapes = map[string]Shape{
	CollectionUsers:    Mapping,
	CollectionVideos:   Mapping,
	CollectionHistory:  Sequence,
	CollectionMessages: Sequence,
	CollectionDynamics: Sequence,
	CollectionSearch:   Sequence,
}

// ErrUnknownCollection is returned for collection names outside the fixed
// set above.
var ErrUnknownCollection = errors.New("docstore: unknown collection")

// Record is one schemaless document.
type Record = map[string]any

// Records holds a collection's raw contents in its declared shape. Exactly
// one of Map or List is meaningful, selected by Shape.
type Records struct {
	Shape Shape
	Map   map[string]Record
	List  []Record
}

func emptyRecords(shape Shape) Records {
	if shape == Sequence {
		return Records{Shape: Sequence, List: []Record{}}
	}
	return Records{Shape: Mapping, Map: map[string]Record{}}
}

// Store is the document store. Create with New, then call Ready before use.
type Store struct {
	kv        kv.Store
	logger    *slog.Logger
	keyPrefix string

	attempts   int
	retryDelay retryDelayFunc

	initOnce sync.Once
	initErr  error
	state    State
	stateMu  sync.Mutex
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) { s.logger = l }
}

// WithKeyPrefix overrides the substrate key namespace.
func WithKeyPrefix(prefix string) Option {
	return func(s *Store) { s.keyPrefix = prefix }
}

// New creates a document store over the given substrate. The store is not
// usable until Ready has returned nil.
func New(substrate kv.Store, opts ...Option) *Store {
	s := &Store{
		kv:         substrate,
		logger:     slog.Default(),
		keyPrefix:  DefaultKeyPrefix,
		attempts:   defaultInitAttempts,
		retryDelay: defaultRetryDelay,
		state:      StateUninitialized,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) collectionKey(collection string) string {
	return s.keyPrefix + "/" + collection
}

func shapeOf(collection string) (Shape, error) {
	shape, ok := collectionShapes[collection]
	if !ok {
		return Mapping, ErrUnknownCollection
	}
	return shape, nil
}

// GetAll reads and deserializes an entire collection. Absent or corrupt
// collections read as the shape-correct empty default.
func (s *Store) GetAll(collection string) Records {
	shape, err := shapeOf(collection)
	if err != nil {
		s.logger.Warn("read of unknown collection", "collection", collection)
		return emptyRecords(shape)
	}

	raw, ok, err := s.kv.Get(s.collectionKey(collection))
	if err != nil {
		s.logger.Warn("collection read failed", "collection", collection, "error", err)
		return emptyRecords(shape)
	}
	if !ok {
		return emptyRecords(shape)
	}

	recs := emptyRecords(shape)
	if shape == Sequence {
		if err := json.Unmarshal([]byte(raw), &recs.List); err != nil {
			s.logger.Warn("collection unparsable, reading as empty",
				"collection", collection, "error", err)
			return emptyRecords(shape)
		}
		if recs.List == nil {
			recs.List = []Record{}
		}
	} else {
		if err := json.Unmarshal([]byte(raw), &recs.Map); err != nil {
			s.logger.Warn("collection unparsable, reading as empty",
				"collection", collection, "error", err)
			return emptyRecords(shape)
		}
		if recs.Map == nil {
			recs.Map = map[string]Record{}
		}
	}
	return recs
}

// Save serializes and overwrites an entire collection in a single substrate
// write. Returns false on serialization or storage failure (quota included).
func (s *Store) Save(collection string, recs Records) bool {
	if _, err := shapeOf(collection); err != nil {
		s.logger.Warn("save to unknown collection", "collection", collection)
		return false
	}

	var payload any
	if recs.Shape == Sequence {
		payload = recs.List
		if recs.List == nil {
			payload = []Record{}
		}
	} else {
		payload = recs.Map
		if recs.Map == nil {
			payload = map[string]Record{}
		}
	}

	data, err := json.Marshal(payload)
	if err != nil {
		s.logger.Warn("collection serialization failed", "collection", collection, "error", err)
		return false
	}
	if err := s.kv.Set(s.collectionKey(collection), string(data)); err != nil {
		s.logger.Warn("collection write failed", "collection", collection, "error", err)
		return false
	}
	return true
}

// GetItem returns the record with the given id, or nil. Mapping collections
// use keyed lookup; sequence collections scan by the "id" field.
func (s *Store) GetItem(collection, id string) Record {
	recs := s.GetAll(collection)
	if recs.Shape == Sequence {
		for _, rec := range recs.List {
			if recordID(rec) == id {
				return rec
			}
		}
		return nil
	}
	return recs.Map[id]
}

// SaveItem upserts a record: replace when a record with the id exists,
// append/insert otherwise. Returns the stored record, or nil on failure.
func (s *Store) SaveItem(collection, id string, rec Record) Record {
	recs := s.GetAll(collection)
	if recs.Shape == Sequence {
		replaced := false
		for i, existing := range recs.List {
			if recordID(existing) == id {
				recs.List[i] = rec
				replaced = true
				break
			}
		}
		if !replaced {
			recs.List = append(recs.List, rec)
		}
	} else {
		recs.Map[id] = rec
	}

	if !s.Save(collection, recs) {
		return nil
	}
	return rec
}

// DeleteItem removes the record with the given id. Returns whether any
// record was removed.
func (s *Store) DeleteItem(collection, id string) bool {
	recs := s.GetAll(collection)
	if recs.Shape == Sequence {
		kept := recs.List[:0]
		for _, rec := range recs.List {
			if recordID(rec) != id {
				kept = append(kept, rec)
			}
		}
		if len(kept) == len(recs.List) {
			return false
		}
		recs.List = kept
		return s.Save(collection, recs)
	}

	if _, ok := recs.Map[id]; !ok {
		return false
	}
	delete(recs.Map, id)
	return s.Save(collection, recs)
}

// GetAllItems returns a normalized array view of any collection, filtering
// out null entries.
func (s *Store) GetAllItems(collection string) []Record {
	recs := s.GetAll(collection)
	if recs.Shape == Sequence {
		items := make([]Record, 0, len(recs.List))
		for _, rec := range recs.List {
			if rec != nil {
				items = append(items, rec)
			}
		}
		return items
	}
	items := make([]Record, 0, len(recs.Map))
	for _, rec := range recs.Map {
		if rec != nil {
			items = append(items, rec)
		}
	}
	return items
}

// Close closes the underlying substrate.
func (s *Store) Close() error {
	return s.kv.Close()
}

func recordID(rec Record) string {
	if rec == nil {
		return ""
	}
	id, _ := rec["id"].(string)
	return id
}
