package platform

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/streamflix/flixstore/internal/blobstore"
	"github.com/streamflix/flixstore/internal/docstore"
	"github.com/streamflix/flixstore/internal/models"
)

// Inline payloads (data: URLs) above this size get blanked by Maintain to
// keep collection values inside the substrate quota. Properly captured
// media lives in the blob store and is never touched.
const inlineDataLimit = 50 * 1024

// MaintainResult summarizes one maintenance pass.
type MaintainResult struct {
	HistoryExpired  int
	HistoryTrimmed  int
	InlineCompacted int
	Sweep           blobstore.SweepResult
}

// Maintain runs the storage housekeeping pass: expires old watch history,
// caps the history collection, blanks oversized inline payloads left by
// degraded-mode writes, and sweeps orphan chunks from the blob store.
func (p *Platform) Maintain(ctx context.Context) (MaintainResult, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	var result MaintainResult

	expired, trimmed, err := p.pruneHistory()
	if err != nil {
		return result, err
	}
	result.HistoryExpired = expired
	result.HistoryTrimmed = trimmed

	compacted, err := p.compactInlineData()
	if err != nil {
		return result, err
	}
	result.InlineCompacted = compacted

	if p.blobs != nil {
		sweep, err := p.blobs.SweepOrphanChunks(ctx)
		if err != nil {
			return result, err
		}
		result.Sweep = sweep
	}

	p.logger.Info("maintenance pass complete",
		"historyExpired", result.HistoryExpired,
		"historyTrimmed", result.HistoryTrimmed,
		"inlineCompacted", result.InlineCompacted,
		"chunksDeleted", result.Sweep.ChunksDeleted)
	return result, nil
}

// pruneHistory drops entries older than the retention window, then trims
// the collection to its entry cap, oldest first.
func (p *Platform) pruneHistory() (expired, trimmed int, err error) {
	recs := p.docs.GetAll(docstore.CollectionHistory)
	cutoff := time.Now().UTC().Add(-historyMaxAge)

	entries := make([]models.HistoryEntry, 0, len(recs.List))
	for _, rec := range recs.List {
		var e models.HistoryEntry
		if err := docstore.FromRecord(rec, &e); err != nil {
			// Unreadable rows count as expired.
			expired++
			continue
		}
		if e.WatchTime.Before(cutoff) {
			expired++
			continue
		}
		entries = append(entries, e)
	}

	if len(entries) > historyMaxEntries {
		sort.SliceStable(entries, func(i, j int) bool {
			return entries[i].WatchTime.After(entries[j].WatchTime)
		})
		trimmed = len(entries) - historyMaxEntries
		entries = entries[:historyMaxEntries]
	}

	if expired == 0 && trimmed == 0 {
		return 0, 0, nil
	}

	list := make([]docstore.Record, 0, len(entries))
	for i := range entries {
		rec, err := docstore.ToRecord(&entries[i])
		if err != nil {
			return expired, trimmed, err
		}
		list = append(list, rec)
	}
	recs.List = list
	if !p.docs.Save(docstore.CollectionHistory, recs) {
		return expired, trimmed, ErrPersistFailed
	}
	return expired, trimmed, nil
}

// compactInlineData blanks oversized data: URLs embedded directly in user
// and video records.
func (p *Platform) compactInlineData() (int, error) {
	compacted := 0

	users := p.docs.GetAll(docstore.CollectionUsers)
	changed := false
	for _, rec := range users.Map {
		if blankOversizedInline(rec, "avatar") {
			compacted++
			changed = true
		}
	}
	if changed && !p.docs.Save(docstore.CollectionUsers, users) {
		return compacted, ErrPersistFailed
	}

	videos := p.docs.GetAll(docstore.CollectionVideos)
	changed = false
	for _, rec := range videos.Map {
		if blankOversizedInline(rec, "cover") {
			compacted++
			changed = true
		}
	}
	if changed && !p.docs.Save(docstore.CollectionVideos, videos) {
		return compacted, ErrPersistFailed
	}

	return compacted, nil
}

func blankOversizedInline(rec docstore.Record, field string) bool {
	s, _ := rec[field].(string)
	if strings.HasPrefix(s, "data:") && len(s) > inlineDataLimit {
		rec[field] = ""
		return true
	}
	return false
}
