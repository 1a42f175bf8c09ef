package blobstore

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	bolt "go.etcd.io/bbolt"
)

// newTestBlobStore creates a blob store in a temp directory.
func newTestBlobStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "blobs.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func seq(n int) []byte {
	data := make([]byte, n)
	for i := range data {
		data[i] = byte(i % 251)
	}
	return data
}

// ==================== Small Blob Tests ====================

func TestStoreSmall_RoundTrip(t *testing.T) {
	ctx := context.Background()
	s := newTestBlobStore(t)

	data := seq(1024)
	require.NoError(t, s.StoreSmall(ctx, TableImages, "img_1", data,
		WithContentType("image/png"), WithAuthor("user_1")))

	blob, err := s.GetSmall(ctx, TableImages, "img_1")
	require.NoError(t, err)
	assert.Equal(t, data, blob.Data)
	assert.Equal(t, "image/png", blob.Type)
	assert.Equal(t, "user_1", blob.AuthorID)
}

func TestGetSmall_NotFound(t *testing.T) {
	ctx := context.Background()
	s := newTestBlobStore(t)

	_, err := s.GetSmall(ctx, TableVideos, "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	// A chunked manifest id is not a small blob
	require.NoError(t, s.StoreLarge(ctx, "big_1", seq(10), 4))
	_, err = s.GetSmall(ctx, TableVideos, "big_1")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDeleteSmall_Idempotent(t *testing.T) {
	ctx := context.Background()
	s := newTestBlobStore(t)

	require.NoError(t, s.StoreSmall(ctx, TableVideos, "v_1", seq(64), WithAuthor("user_1")))
	require.NoError(t, s.DeleteSmall(ctx, TableVideos, "v_1"))
	require.NoError(t, s.DeleteSmall(ctx, TableVideos, "v_1"))

	_, err := s.GetSmall(ctx, TableVideos, "v_1")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUnknownTable(t *testing.T) {
	ctx := context.Background()
	s := newTestBlobStore(t)

	err := s.StoreSmall(ctx, "bogus", "x", seq(8))
	assert.Error(t, err)
}

// ==================== Large Blob Tests ====================

func TestStoreLarge_RoundTrip(t *testing.T) {
	ctx := context.Background()
	s := newTestBlobStore(t)

	for _, size := range []int{0, 4, 5, 12} {
		data := seq(size)
		id := fmt.Sprintf("rt_%d", size)
		require.NoError(t, s.StoreLarge(ctx, id, data, 4, WithLargeContentType("video/mp4")))

		got, err := s.GetLarge(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, data, got.Data, "size %d", size)
		assert.Equal(t, int64(size), got.Size)
		assert.Equal(t, "video/mp4", got.Type)
	}
}

func TestStoreLarge_InvalidChunkSize(t *testing.T) {
	s := newTestBlobStore(t)
	err := s.StoreLarge(context.Background(), "x", seq(8), 0)
	assert.ErrorIs(t, err, ErrInvalidChunkSize)
}

func TestStoreLarge_ResumeSkipsStoredChunks(t *testing.T) {
	ctx := context.Background()
	s := newTestBlobStore(t)

	data := seq(20) // 5 chunks of 4
	require.NoError(t, s.StoreLarge(ctx, "resume_1", data, 4))
	assert.Equal(t, uint64(5), s.Stats().ChunkWrites)

	// Re-running the same upload writes nothing
	require.NoError(t, s.StoreLarge(ctx, "resume_1", data, 4))
	assert.Equal(t, uint64(5), s.Stats().ChunkWrites)

	got, err := s.GetLarge(ctx, "resume_1")
	require.NoError(t, err)
	assert.Equal(t, data, got.Data)
}

func TestStoreLarge_ResumesPartialUpload(t *testing.T) {
	ctx := context.Background()
	s := newTestBlobStore(t)

	data := seq(20)

	// Simulate an interrupted upload: manifest lists only the first two
	// chunks, and only those chunk records exist.
	require.NoError(t, s.putManifest(&Manifest{
		ID: "partial_1", IsLarge: true, Size: 20,
		ChunkIDs: []string{chunkID("partial_1", 0), chunkID("partial_1", 1)},
	}))
	require.NoError(t, s.writeChunk("partial_1", chunkID("partial_1", 0), data[0:4]))
	require.NoError(t, s.writeChunk("partial_1", chunkID("partial_1", 1), data[4:8]))

	writesBefore := s.Stats().ChunkWrites
	require.NoError(t, s.StoreLarge(ctx, "partial_1", data, 4))

	// Only the three missing chunks were written
	assert.Equal(t, writesBefore+3, s.Stats().ChunkWrites)

	got, err := s.GetLarge(ctx, "partial_1")
	require.NoError(t, err)
	assert.Equal(t, data, got.Data)
}

func TestStoreLarge_AdoptsUnlistedChunks(t *testing.T) {
	ctx := context.Background()
	s := newTestBlobStore(t)

	data := seq(12)

	// A crash after the chunk write but before the manifest update leaves a
	// present-but-unlisted chunk. Resume must adopt it, not rewrite it.
	require.NoError(t, s.putManifest(&Manifest{ID: "heal_1", IsLarge: true, Size: 12}))
	require.NoError(t, s.writeChunk("heal_1", chunkID("heal_1", 0), data[0:4]))

	writesBefore := s.Stats().ChunkWrites
	require.NoError(t, s.StoreLarge(ctx, "heal_1", data, 4))
	assert.Equal(t, writesBefore+2, s.Stats().ChunkWrites)

	got, err := s.GetLarge(ctx, "heal_1")
	require.NoError(t, err)
	assert.Equal(t, data, got.Data)
}

func TestGetLarge_MissingChunkFails(t *testing.T) {
	ctx := context.Background()
	s := newTestBlobStore(t)

	require.NoError(t, s.StoreLarge(ctx, "gap_1", seq(12), 4))

	// Knock out the middle chunk behind the store's back
	require.NoError(t, s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketChunks).Delete([]byte(chunkID("gap_1", 1)))
	}))

	_, err := s.GetLarge(ctx, "gap_1")
	assert.ErrorIs(t, err, ErrMissingChunk)
}

func TestLargeProgress(t *testing.T) {
	ctx := context.Background()
	s := newTestBlobStore(t)

	progress, err := s.LargeProgress(ctx, "nothing", 4)
	require.NoError(t, err)
	assert.False(t, progress.Exists)

	require.NoError(t, s.putManifest(&Manifest{
		ID: "p_1", IsLarge: true, Size: 20,
		ChunkIDs: []string{chunkID("p_1", 0), chunkID("p_1", 1)},
	}))

	progress, err = s.LargeProgress(ctx, "p_1", 4)
	require.NoError(t, err)
	assert.True(t, progress.Exists)
	assert.Equal(t, 2, progress.UploadedChunks)
	assert.Equal(t, 5, progress.TotalChunks)
}

func TestDeleteLarge_RemovesChunks(t *testing.T) {
	ctx := context.Background()
	s := newTestBlobStore(t)

	require.NoError(t, s.StoreLarge(ctx, "del_1", seq(12), 4, WithLargeAuthor("user_1")))
	require.NoError(t, s.DeleteLarge(ctx, "del_1"))

	_, err := s.GetLarge(ctx, "del_1")
	assert.ErrorIs(t, err, ErrNotFound)

	chunks, err := s.ChunksByLarge(ctx, "del_1")
	require.NoError(t, err)
	assert.Empty(t, chunks)

	// Absent asset deletes are a no-op
	assert.NoError(t, s.DeleteLarge(ctx, "del_1"))
}

func TestChunksByLarge_IndexOrder(t *testing.T) {
	ctx := context.Background()
	s := newTestBlobStore(t)

	// Past index 9 the chunk ids sort lexicographically ("_chunk_10" before
	// "_chunk_2"), so numeric order has to survive double-digit indexes.
	data := seq(48) // 12 chunks of 4
	require.NoError(t, s.StoreLarge(ctx, "ord_1", data, 4))

	chunks, err := s.ChunksByLarge(ctx, "ord_1")
	require.NoError(t, err)
	require.Len(t, chunks, 12)
	for i, c := range chunks {
		assert.Equal(t, i, c.Index)
		assert.Equal(t, data[i*4:(i+1)*4], c.Data)
	}
}

func TestManifestsByAuthor(t *testing.T) {
	ctx := context.Background()
	s := newTestBlobStore(t)

	require.NoError(t, s.StoreLarge(ctx, "a_1", seq(8), 4, WithLargeAuthor("user_1")))
	require.NoError(t, s.StoreLarge(ctx, "a_2", seq(8), 4, WithLargeAuthor("user_1")))
	require.NoError(t, s.StoreLarge(ctx, "b_1", seq(8), 4, WithLargeAuthor("user_2")))
	// A small blob by the same author shares the index but is not a manifest
	require.NoError(t, s.StoreSmall(ctx, TableVideos, "s_1", seq(8), WithAuthor("user_1")))

	manifests, err := s.ManifestsByAuthor(ctx, "user_1")
	require.NoError(t, err)
	assert.Len(t, manifests, 2)
}

// ==================== Sweep Tests ====================

func TestSweepOrphanChunks(t *testing.T) {
	ctx := context.Background()
	s := newTestBlobStore(t)

	require.NoError(t, s.StoreLarge(ctx, "keep_1", seq(8), 4))

	// Orphans: a chunk with no manifest, and a chunk its manifest no longer
	// lists.
	require.NoError(t, s.writeChunk("ghost_1", chunkID("ghost_1", 0), seq(4)))
	require.NoError(t, s.writeChunk("keep_1", chunkID("keep_1", 9), seq(4)))

	result, err := s.SweepOrphanChunks(ctx)
	require.NoError(t, err)
	assert.Equal(t, 4, result.ChunksScanned)
	assert.Equal(t, 2, result.ChunksDeleted)

	// The live asset is untouched
	got, err := s.GetLarge(ctx, "keep_1")
	require.NoError(t, err)
	assert.Equal(t, seq(8), got.Data)

	// A second sweep finds nothing
	result, err = s.SweepOrphanChunks(ctx)
	require.NoError(t, err)
	assert.Zero(t, result.ChunksDeleted)
}

// ==================== Schema Tests ====================

func TestOpen_UpgradesV1Layout(t *testing.T) {
	path := filepath.Join(t.TempDir(), "blobs.db")

	// Build a v1-era database by hand: videos and images only, no chunks.
	db, err := bolt.Open(path, 0600, nil)
	require.NoError(t, err)
	require.NoError(t, db.Update(func(tx *bolt.Tx) error {
		meta, err := tx.CreateBucketIfNotExists(bucketMeta)
		if err != nil {
			return err
		}
		var version [4]byte
		binary.BigEndian.PutUint32(version[:], 1)
		if err := meta.Put(keySchemaVersion, version[:]); err != nil {
			return err
		}
		for _, name := range [][]byte{bucketVideos, bucketImages, bucketVideosByAuthor, bucketVideosByUpload} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return err
			}
		}
		return tx.Bucket(bucketImages).Put([]byte("img_old"), []byte(`{"id":"img_old","data":"aGk=","uploadTime":"2024-01-01T00:00:00Z"}`))
	}))
	require.NoError(t, db.Close())

	s, err := Open(path)
	require.NoError(t, err)
	defer s.Close()

	// v1 data survives and the chunked path works
	ctx := context.Background()
	blob, err := s.GetSmall(ctx, TableImages, "img_old")
	require.NoError(t, err)
	assert.True(t, bytes.Equal([]byte("hi"), blob.Data))

	require.NoError(t, s.StoreLarge(ctx, "post_upgrade", seq(8), 4))
	got, err := s.GetLarge(ctx, "post_upgrade")
	require.NoError(t, err)
	assert.Equal(t, seq(8), got.Data)
}

func TestSupportStatus(t *testing.T) {
	var nilStore *Store
	assert.Equal(t, Status{}, nilStore.SupportStatus())

	s := newTestBlobStore(t)
	assert.Equal(t, Status{Supported: true, Initialized: true}, s.SupportStatus())
}
