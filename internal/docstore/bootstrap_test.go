package docstore

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/streamflix/flixstore/internal/kv"
)

// flakySubstrate fails every Set until failures runs out, then behaves
// normally. Gets always work so bootstrap failures land on the write path.
type flakySubstrate struct {
	kv.Store
	failures int
}

func (f *flakySubstrate) Set(key, value string) error {
	if f.failures > 0 {
		f.failures--
		return errors.New("substrate hiccup")
	}
	return f.Store.Set(key, value)
}

func TestReady_SeedsEmptyStore(t *testing.T) {
	s := newTestStore(t)

	assert.Equal(t, StateReady, s.State())

	users := s.GetAllItems(CollectionUsers)
	require.NotEmpty(t, users)
	assert.NotNil(t, s.GetItem(CollectionUsers, "user_1"))
	assert.NotNil(t, s.GetItem(CollectionVideos, "video_1"))

	// Seeded videos carry a reconciled category pair
	v := s.GetItem(CollectionVideos, "video_2")
	require.NotNil(t, v)
	assert.Equal(t, "technology", v["category"])
	assert.Equal(t, "科技", v["categoryName"])

	// Index entries follow the seed
	assert.Contains(t, s.GetAllIndex(IndexUser), "user_1")
	assert.Contains(t, s.GetAllIndex(IndexVideo), "video_3")
}

func TestReady_DoesNotReseed(t *testing.T) {
	substrate := kv.NewMemoryStore(kv.Options{})

	s := New(substrate)
	s.retryDelay = func(int) time.Duration { return 0 }
	require.NoError(t, s.Ready(context.Background()))
	require.True(t, s.DeleteItem(CollectionUsers, "user_2"))

	// A second store over the same substrate must not restore user_2
	s2 := New(substrate)
	s2.retryDelay = func(int) time.Duration { return 0 }
	require.NoError(t, s2.Ready(context.Background()))
	assert.Nil(t, s2.GetItem(CollectionUsers, "user_2"))
}

func TestReady_RetriesTransientFailure(t *testing.T) {
	substrate := &flakySubstrate{Store: kv.NewMemoryStore(kv.Options{}), failures: 2}

	s := New(substrate)
	s.retryDelay = func(int) time.Duration { return 0 }

	require.NoError(t, s.Ready(context.Background()))
	assert.Equal(t, StateReady, s.State())
}

func TestReady_FailsAfterExhaustedRetries(t *testing.T) {
	substrate := &flakySubstrate{Store: kv.NewMemoryStore(kv.Options{}), failures: 1000}

	s := New(substrate)
	s.retryDelay = func(int) time.Duration { return 0 }

	err := s.Ready(context.Background())
	require.ErrorIs(t, err, ErrInitializationFailed)
	assert.Equal(t, StateFailed, s.State())

	// The outcome is memoized: later callers see the same error without
	// another attempt sequence.
	substrate.failures = 0
	assert.ErrorIs(t, s.Ready(context.Background()), ErrInitializationFailed)
}

func TestReady_RespectsContext(t *testing.T) {
	substrate := &flakySubstrate{Store: kv.NewMemoryStore(kv.Options{}), failures: 1000}

	s := New(substrate)
	// Keep the real delay so cancellation lands inside the retry wait
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	err := s.Ready(ctx)
	require.ErrorIs(t, err, ErrInitializationFailed)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestEnsureCollections_PreservesExistingData(t *testing.T) {
	substrate := kv.NewMemoryStore(kv.Options{})
	s := New(substrate)
	s.retryDelay = func(int) time.Duration { return 0 }

	existing := `{"user_9":{"id":"user_9","username":"kept"}}`
	require.NoError(t, substrate.Set(s.collectionKey(CollectionUsers), existing))

	require.NoError(t, s.Ready(context.Background()))

	// Non-empty users collection suppresses the seed and survives intact
	assert.NotNil(t, s.GetItem(CollectionUsers, "user_9"))
	assert.Nil(t, s.GetItem(CollectionUsers, "user_1"))
}

// ==================== Migration Tests ====================

func TestMigrateLegacyDynamics(t *testing.T) {
	substrate := kv.NewMemoryStore(kv.Options{})
	s := New(substrate)
	s.retryDelay = func(int) time.Duration { return 0 }

	legacy := []Record{
		{"id": "d_old", "content": "from the legacy slot"},
		{"id": "d_dup", "content": "legacy copy"},
	}
	raw, err := json.Marshal(legacy)
	require.NoError(t, err)
	require.NoError(t, substrate.Set(legacyDynamicsKey, string(raw)))

	current := `[{"id":"d_dup","content":"current copy"}]`
	require.NoError(t, substrate.Set(s.collectionKey(CollectionDynamics), current))

	require.NoError(t, s.Ready(context.Background()))

	items := s.GetAllItems(CollectionDynamics)
	assert.Len(t, items, 2)

	// Existing record wins the id collision
	dup := s.GetItem(CollectionDynamics, "d_dup")
	assert.Equal(t, "current copy", dup["content"])
	assert.NotNil(t, s.GetItem(CollectionDynamics, "d_old"))

	// The legacy slot is gone
	_, ok, err := substrate.Get(legacyDynamicsKey)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMigrateLegacyDynamics_UnparsableSlot(t *testing.T) {
	substrate := kv.NewMemoryStore(kv.Options{})
	s := New(substrate)
	s.retryDelay = func(int) time.Duration { return 0 }

	require.NoError(t, substrate.Set(legacyDynamicsKey, "{broken"))
	require.NoError(t, s.Ready(context.Background()))

	_, ok, err := substrate.Get(legacyDynamicsKey)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMigrationsRunOnce(t *testing.T) {
	substrate := kv.NewMemoryStore(kv.Options{})

	s := New(substrate)
	s.retryDelay = func(int) time.Duration { return 0 }
	require.NoError(t, s.Ready(context.Background()))

	// Plant legacy data after the first bootstrap; a second bootstrap must
	// not pick it up because the marker is already recorded.
	require.NoError(t, substrate.Set(legacyDynamicsKey, `[{"id":"d_late"}]`))

	s2 := New(substrate)
	s2.retryDelay = func(int) time.Duration { return 0 }
	require.NoError(t, s2.Ready(context.Background()))

	assert.Nil(t, s2.GetItem(CollectionDynamics, "d_late"))
}

// Two façade-less writers to the same collection race with last-write-wins:
// the slower full-collection write clobbers the faster one. The platform
// façade serializes to avoid this; the store itself does not.
func TestConcurrentSaveLastWriteWins(t *testing.T) {
	s := newTestStore(t)

	recsA := s.GetAll(CollectionDynamics)
	recsB := s.GetAll(CollectionDynamics)

	recsA.List = append(recsA.List, Record{"id": "from_a"})
	recsB.List = append(recsB.List, Record{"id": "from_b"})

	require.True(t, s.Save(CollectionDynamics, recsA))
	require.True(t, s.Save(CollectionDynamics, recsB))

	// B's snapshot never saw A's record, so A's write is lost
	assert.Nil(t, s.GetItem(CollectionDynamics, "from_a"))
	assert.NotNil(t, s.GetItem(CollectionDynamics, "from_b"))
}
