package platform

import (
	"sort"
	"time"

	"github.com/streamflix/flixstore/internal/docstore"
	"github.com/streamflix/flixstore/internal/models"
)

// searchHistoryLimit caps remembered queries per user: newest kept, oldest
// dropped.
const searchHistoryLimit = 10

// SaveSearch remembers a search query. Logged-in users carry their history
// on the account record; an empty userID records into the anonymous search
// collection. Repeated queries move to the front instead of duplicating.
func (p *Platform) SaveSearch(userID, query string) error {
	if query == "" {
		return nil
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	entry := models.SearchEntry{Query: query, Timestamp: time.Now().UTC()}

	if userID == "" {
		return p.saveAnonymousSearch(entry)
	}

	u, err := p.UserByID(userID)
	if err != nil {
		return err
	}
	u.SearchHistory = pushSearchEntry(u.SearchHistory, entry)
	return p.saveUser(u)
}

// SearchHistory returns remembered queries, newest first. An empty userID
// reads the anonymous history.
func (p *Platform) SearchHistory(userID string) ([]models.SearchEntry, error) {
	if userID == "" {
		entries := make([]models.SearchEntry, 0)
		for _, rec := range p.docs.GetAllItems(docstore.CollectionSearch) {
			var e models.SearchEntry
			if err := docstore.FromRecord(rec, &e); err != nil {
				return nil, err
			}
			entries = append(entries, e)
		}
		sort.SliceStable(entries, func(i, j int) bool {
			return entries[i].Timestamp.After(entries[j].Timestamp)
		})
		return entries, nil
	}

	u, err := p.UserByID(userID)
	if err != nil {
		return nil, err
	}
	if u.SearchHistory == nil {
		return []models.SearchEntry{}, nil
	}
	return u.SearchHistory, nil
}

// ClearSearchHistory forgets remembered queries. An empty userID clears the
// anonymous history.
func (p *Platform) ClearSearchHistory(userID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if userID == "" {
		recs := docstore.Records{Shape: docstore.Sequence, List: []docstore.Record{}}
		if !p.docs.Save(docstore.CollectionSearch, recs) {
			return ErrPersistFailed
		}
		return nil
	}

	u, err := p.UserByID(userID)
	if err != nil {
		return err
	}
	u.SearchHistory = nil
	return p.saveUser(u)
}

func (p *Platform) saveAnonymousSearch(entry models.SearchEntry) error {
	recs := p.docs.GetAll(docstore.CollectionSearch)

	kept := recs.List[:0]
	for _, rec := range recs.List {
		if q, _ := rec["query"].(string); q != entry.Query {
			kept = append(kept, rec)
		}
	}

	rec, err := docstore.ToRecord(&entry)
	if err != nil {
		return err
	}
	recs.List = append([]docstore.Record{rec}, kept...)
	if len(recs.List) > searchHistoryLimit {
		recs.List = recs.List[:searchHistoryLimit]
	}

	if !p.docs.Save(docstore.CollectionSearch, recs) {
		return ErrPersistFailed
	}
	return nil
}

// pushSearchEntry prepends an entry, dropping any earlier occurrence of the
// same query and trimming to the history limit.
func pushSearchEntry(history []models.SearchEntry, entry models.SearchEntry) []models.SearchEntry {
	kept := make([]models.SearchEntry, 0, len(history)+1)
	kept = append(kept, entry)
	for _, e := range history {
		if e.Query != entry.Query {
			kept = append(kept, e)
		}
	}
	if len(kept) > searchHistoryLimit {
		kept = kept[:searchHistoryLimit]
	}
	return kept
}
