package docstore

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/streamflix/flixstore/internal/kv"
	"github.com/streamflix/flixstore/internal/models"
)

// newTestStore creates a bootstrapped store over an in-memory substrate.
func newTestStore(t *testing.T) *Store {
	t.Helper()
	s := New(kv.NewMemoryStore(kv.Options{}))
	s.retryDelay = func(int) time.Duration { return 0 }
	require.NoError(t, s.Ready(context.Background()))
	return s
}

// ==================== Collection Tests ====================

func TestStore_SaveAndGetItem(t *testing.T) {
	s := newTestStore(t)

	rec := Record{"id": "user_x", "username": "tester", "followers": []any{}}
	stored := s.SaveItem(CollectionUsers, "user_x", rec)
	require.NotNil(t, stored)

	got := s.GetItem(CollectionUsers, "user_x")
	require.NotNil(t, got)
	assert.Equal(t, "tester", got["username"])

	assert.Nil(t, s.GetItem(CollectionUsers, "nope"))
}

func TestStore_SequenceUpsert(t *testing.T) {
	s := newTestStore(t)

	s.SaveItem(CollectionDynamics, "d1", Record{"id": "d1", "content": "first"})
	s.SaveItem(CollectionDynamics, "d2", Record{"id": "d2", "content": "second"})
	assert.Len(t, s.GetAllItems(CollectionDynamics), 2)

	// Upsert replaces in place, no duplicate
	s.SaveItem(CollectionDynamics, "d1", Record{"id": "d1", "content": "edited"})
	items := s.GetAllItems(CollectionDynamics)
	assert.Len(t, items, 2)

	got := s.GetItem(CollectionDynamics, "d1")
	require.NotNil(t, got)
	assert.Equal(t, "edited", got["content"])
}

func TestStore_DeleteItem(t *testing.T) {
	s := newTestStore(t)

	s.SaveItem(CollectionVideos, "v1", Record{"id": "v1"})
	assert.True(t, s.DeleteItem(CollectionVideos, "v1"))
	assert.Nil(t, s.GetItem(CollectionVideos, "v1"))

	// Deleting again reports nothing removed
	assert.False(t, s.DeleteItem(CollectionVideos, "v1"))
}

func TestStore_UnknownCollection(t *testing.T) {
	s := newTestStore(t)

	recs := s.GetAll("bogus")
	assert.Empty(t, recs.Map)
	assert.False(t, s.Save("bogus", recs))
}

func TestStore_CorruptCollectionReadsEmpty(t *testing.T) {
	substrate := kv.NewMemoryStore(kv.Options{})
	s := New(substrate)
	s.retryDelay = func(int) time.Duration { return 0 }
	require.NoError(t, s.Ready(context.Background()))

	require.NoError(t, substrate.Set(s.collectionKey(CollectionHistory), "{not json"))

	recs := s.GetAll(CollectionHistory)
	assert.Equal(t, Sequence, recs.Shape)
	assert.Empty(t, recs.List)

	// A save straight after recovers the slot
	assert.True(t, s.Save(CollectionHistory, recs))
}

func TestStore_QuotaFailureReportsFalse(t *testing.T) {
	substrate := kv.NewMemoryStore(kv.Options{MaxValueSize: 4096})
	s := New(substrate)
	s.retryDelay = func(int) time.Duration { return 0 }
	require.NoError(t, s.Ready(context.Background()))

	big := make([]byte, 8192)
	rec := Record{"id": "v_big", "cover": string(big)}
	assert.Nil(t, s.SaveItem(CollectionVideos, "v_big", rec))

	// The collection still holds its previous contents
	assert.Nil(t, s.GetItem(CollectionVideos, "v_big"))
}

// ==================== Index Tests ====================

func TestStore_IndexAddRemove(t *testing.T) {
	s := newTestStore(t)

	before := len(s.GetAllIndex(IndexUser))

	assert.True(t, s.AddIndex(IndexUser, "user_x"))
	// Re-adding is a no-op, not a duplicate
	assert.True(t, s.AddIndex(IndexUser, "user_x"))
	assert.Len(t, s.GetAllIndex(IndexUser), before+1)

	assert.True(t, s.RemoveIndex(IndexUser, "user_x"))
	assert.Len(t, s.GetAllIndex(IndexUser), before)
}

// ==================== Repair Tests ====================

func TestStore_RepairFillsMissingFields(t *testing.T) {
	s := newTestStore(t)

	s.SaveItem(CollectionUsers, "user_bare", Record{"id": "user_bare", "username": "bare"})
	s.SaveItem(CollectionVideos, "v_bare", Record{"id": "v_bare", "category": "life"})

	require.NoError(t, s.Repair())

	u := s.GetItem(CollectionUsers, "user_bare")
	assert.Equal(t, []any{}, u["followers"])
	assert.Equal(t, []any{}, u["favorites"])

	v := s.GetItem(CollectionVideos, "v_bare")
	assert.Equal(t, []any{}, v["likedBy"])
	assert.Equal(t, float64(0), v["views"])
	assert.Equal(t, "生活", v["categoryName"])
}

func TestStore_RepairLabelInCodeSlot(t *testing.T) {
	s := newTestStore(t)

	s.SaveItem(CollectionVideos, "v_cn", Record{"id": "v_cn", "category": "科技"})
	require.NoError(t, s.Repair())

	v := s.GetItem(CollectionVideos, "v_cn")
	assert.Equal(t, "technology", v["category"])
	assert.Equal(t, "科技", v["categoryName"])

	// Unknown categories pass through
	s.SaveItem(CollectionVideos, "v_odd", Record{"id": "v_odd", "category": "underwater"})
	require.NoError(t, s.Repair())
	v = s.GetItem(CollectionVideos, "v_odd")
	assert.Equal(t, "underwater", v["category"])
	assert.Equal(t, "underwater", v["categoryName"])
}

func TestStore_RepairIdempotent(t *testing.T) {
	s := newTestStore(t)
	s.SaveItem(CollectionVideos, "v", Record{"id": "v", "category": "舞蹈"})

	require.NoError(t, s.Repair())
	first := s.GetAll(CollectionVideos)

	require.NoError(t, s.Repair())
	second := s.GetAll(CollectionVideos)
	assert.Equal(t, first.Map, second.Map)
}

// ==================== Record Codec Tests ====================

func TestRecordRoundTrip(t *testing.T) {
	v := models.Video{ID: "v9", Title: "clip", Category: "music"}
	v.Normalize()

	rec, err := ToRecord(&v)
	require.NoError(t, err)
	assert.Equal(t, "音乐", rec["categoryName"])

	var out models.Video
	require.NoError(t, FromRecord(rec, &out))
	assert.Equal(t, v.ID, out.ID)
	assert.Equal(t, v.CategoryName, out.CategoryName)
}
