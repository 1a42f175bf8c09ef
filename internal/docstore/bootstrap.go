package docstore

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// State tracks bootstrap progress. Transitions are linear:
// Uninitialized → StorageReady → Seeded → Consistent → Ready,
// with Failed terminal after retry exhaustion.
type State int

const (
	StateUninitialized State = iota
	StateStorageReady
	StateSeeded
	StateConsistent
	StateReady
	StateFailed
)

func (st State) String() string {
	switch st {
	case StateUninitialized:
		return "uninitialized"
	case StateStorageReady:
		return "storage-ready"
	case StateSeeded:
		return "seeded"
	case StateConsistent:
		return "consistent"
	case StateReady:
		return "ready"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// ErrInitializationFailed is returned by Ready after the bounded retry
// sequence has been exhausted. Every waiter observes the same error.
var ErrInitializationFailed = errors.New("docstore: initialization failed")

const (
	defaultInitAttempts = 3
	initRetryDelay      = time.Second
)

type retryDelayFunc func(attempt int) time.Duration

func defaultRetryDelay(int) time.Duration { return initRetryDelay }

// Ready runs the bootstrap sequence on first call and memoizes the result:
// concurrent callers block on the same in-flight attempt and all observe the
// same outcome. The context bounds the total wait, including retry delays.
func (s *Store) Ready(ctx context.Context) error {
	s.initOnce.Do(func() {
		s.initErr = s.initialize(ctx)
	})
	return s.initErr
}

// State reports the current bootstrap state.
func (s *Store) State() State {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	return s.state
}

func (s *Store) setState(st State) {
	s.stateMu.Lock()
	s.state = st
	s.stateMu.Unlock()
	s.logger.Debug("bootstrap state", "state", st.String())
}

func (s *Store) initialize(ctx context.Context) error {
	var lastErr error
	for attempt := 1; attempt <= s.attempts; attempt++ {
		if err := s.runBootstrap(ctx); err != nil {
			lastErr = err
			s.logger.Warn("bootstrap attempt failed",
				"attempt", attempt, "max", s.attempts, "error", err)
			if attempt < s.attempts {
				select {
				case <-time.After(s.retryDelay(attempt)):
				case <-ctx.Done():
					s.setState(StateFailed)
					return fmt.Errorf("%w: %w", ErrInitializationFailed, ctx.Err())
				}
			}
			continue
		}
		s.setState(StateReady)
		return nil
	}
	s.setState(StateFailed)
	return fmt.Errorf("%w after %d attempts: %w", ErrInitializationFailed, s.attempts, lastErr)
}

func (s *Store) runBootstrap(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if err := s.ensureCollections(); err != nil {
		return fmt.Errorf("ensure collections: %w", err)
	}
	s.setState(StateStorageReady)

	if err := s.seedIfEmpty(); err != nil {
		return fmt.Errorf("seed default data: %w", err)
	}
	s.setState(StateSeeded)

	if err := s.Repair(); err != nil {
		return fmt.Errorf("repair pass: %w", err)
	}
	s.setState(StateConsistent)

	if err := s.runMigrations(); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	return nil
}

// ensureCollections creates every required collection and index entry with
// its shape-correct empty default, leaving existing data untouched.
func (s *Store) ensureCollections() error {
	for name, shape := range collectionShapes {
		key := s.collectionKey(name)
		if _, ok, err := s.kv.Get(key); err != nil {
			return fmt.Errorf("probe collection %s: %w", name, err)
		} else if ok {
			continue
		}
		empty := "{}"
		if shape == Sequence {
			empty = "[]"
		}
		if err := s.kv.Set(key, empty); err != nil {
			return fmt.Errorf("create collection %s: %w", name, err)
		}
		s.logger.Debug("created collection", "collection", name)
	}

	for _, indexType := range []string{IndexUser, IndexVideo} {
		key := s.indexKey(indexType)
		if _, ok, err := s.kv.Get(key); err != nil {
			return fmt.Errorf("probe index %s: %w", indexType, err)
		} else if ok {
			continue
		}
		if err := s.kv.Set(key, "[]"); err != nil {
			return fmt.Errorf("create index %s: %w", indexType, err)
		}
	}
	return nil
}
