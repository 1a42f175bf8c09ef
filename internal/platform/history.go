package platform

import (
	"sort"
	"time"

	"github.com/streamflix/flixstore/internal/docstore"
	"github.com/streamflix/flixstore/internal/models"
)

// History retention limits, applied by Maintain.
const (
	historyMaxAge     = 30 * 24 * time.Hour
	historyMaxEntries = 1000
)

// AddHistory upserts a watch-history entry keyed by (userId, videoId). A
// repeat watch refreshes the existing entry instead of duplicating it.
func (p *Platform) AddHistory(entry models.HistoryEntry) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if entry.WatchTime.IsZero() {
		entry.WatchTime = time.Now().UTC()
	}

	recs := p.docs.GetAll(docstore.CollectionHistory)
	replaced := false
	for i, rec := range recs.List {
		if historyKeyMatches(rec, entry.UserID, entry.VideoID) {
			updated, err := docstore.ToRecord(&entry)
			if err != nil {
				return err
			}
			recs.List[i] = updated
			replaced = true
			break
		}
	}
	if !replaced {
		rec, err := docstore.ToRecord(&entry)
		if err != nil {
			return err
		}
		recs.List = append(recs.List, rec)
	}

	if !p.docs.Save(docstore.CollectionHistory, recs) {
		return ErrPersistFailed
	}
	return nil
}

// HistoryByUser returns a user's watch history, most recent first.
func (p *Platform) HistoryByUser(userID string) ([]models.HistoryEntry, error) {
	entries := make([]models.HistoryEntry, 0)
	for _, rec := range p.docs.GetAllItems(docstore.CollectionHistory) {
		var e models.HistoryEntry
		if err := docstore.FromRecord(rec, &e); err != nil {
			return nil, err
		}
		if e.UserID == userID {
			entries = append(entries, e)
		}
	}
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].WatchTime.After(entries[j].WatchTime)
	})
	return entries, nil
}

// RemoveHistory deletes one entry by its composite key. Returns whether an
// entry was removed.
func (p *Platform) RemoveHistory(userID, videoID string) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.filterHistory(func(rec docstore.Record) bool {
		return !historyKeyMatches(rec, userID, videoID)
	})
}

// ClearHistory removes all of a user's watch history.
func (p *Platform) ClearHistory(userID string) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.filterHistory(func(rec docstore.Record) bool {
		uid, _ := rec["userId"].(string)
		return uid != userID
	})
}

// RemoveHistoryByVideo drops every user's entries for a deleted video.
func (p *Platform) RemoveHistoryByVideo(videoID string) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.filterHistory(func(rec docstore.Record) bool {
		vid, _ := rec["videoId"].(string)
		return vid != videoID
	})
}

// filterHistory keeps only the records keep approves. Returns whether
// anything was dropped. Callers hold the mutation lock.
func (p *Platform) filterHistory(keep func(docstore.Record) bool) (bool, error) {
	recs := p.docs.GetAll(docstore.CollectionHistory)
	kept := recs.List[:0]
	for _, rec := range recs.List {
		if keep(rec) {
			kept = append(kept, rec)
		}
	}
	if len(kept) == len(recs.List) {
		return false, nil
	}
	recs.List = kept
	if !p.docs.Save(docstore.CollectionHistory, recs) {
		return false, ErrPersistFailed
	}
	return true, nil
}

func historyKeyMatches(rec docstore.Record, userID, videoID string) bool {
	uid, _ := rec["userId"].(string)
	vid, _ := rec["videoId"].(string)
	return uid == userID && vid == videoID
}
