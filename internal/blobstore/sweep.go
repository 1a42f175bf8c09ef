package blobstore

import (
	"context"
	"encoding/json"

	bolt "go.etcd.io/bbolt"
)

// SweepResult is the outcome of an orphan sweep.
type SweepResult struct {
	ChunksScanned int
	ChunksDeleted int
}

// SweepOrphanChunks deletes chunks whose manifest no longer exists or no
// longer lists them. Orphans arise from interrupted deletes (chunks are
// removed before the manifest) and from abandoned uploads; nothing collects
// them automatically, so this runs on demand.
func (s *Store) SweepOrphanChunks(ctx context.Context) (SweepResult, error) {
	var result SweepResult

	// listedBy caches each manifest's chunk set; nil marks a manifest
	// known to be absent.
	listedBy := make(map[string]map[string]bool)

	err := s.db.Update(func(tx *bolt.Tx) error {
		chunks := tx.Bucket(bucketChunks)
		index := tx.Bucket(bucketChunksByLarge)
		videos := tx.Bucket(bucketVideos)

		var orphans []string
		err := chunks.ForEach(func(k, _ []byte) error {
			if err := ctx.Err(); err != nil {
				return err
			}
			result.ChunksScanned++

			cid := string(k)
			largeID, _, ok := parseChunkID(cid)
			if !ok {
				orphans = append(orphans, cid)
				return nil
			}

			listed, cached := listedBy[largeID]
			if !cached {
				listed = manifestChunkSet(videos.Get([]byte(largeID)))
				listedBy[largeID] = listed
			}
			if listed == nil || !listed[cid] {
				orphans = append(orphans, cid)
			}
			return nil
		})
		if err != nil {
			return err
		}

		for _, cid := range orphans {
			if err := chunks.Delete([]byte(cid)); err != nil {
				return err
			}
			if largeID, _, ok := parseChunkID(cid); ok {
				if err := index.Delete(indexKey(largeID, cid)); err != nil {
					return err
				}
			}
			result.ChunksDeleted++
		}
		return nil
	})
	if err != nil {
		return result, err
	}

	if result.ChunksDeleted > 0 {
		s.logger.Info("orphan chunk sweep",
			"scanned", result.ChunksScanned, "deleted", result.ChunksDeleted)
	}
	return result, nil
}

// manifestChunkSet parses a stored manifest's chunk list. Returns nil when
// the value is absent, unreadable, or not a chunked manifest.
func manifestChunkSet(value []byte) map[string]bool {
	if value == nil {
		return nil
	}
	var m Manifest
	if err := json.Unmarshal(value, &m); err != nil || !m.IsLarge {
		return nil
	}
	set := make(map[string]bool, len(m.ChunkIDs))
	for _, cid := range m.ChunkIDs {
		set[cid] = true
	}
	return set
}
