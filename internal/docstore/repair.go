package docstore

import "github.com/streamflix/flixstore/internal/models"

// Repair normalizes every stored record to the current schema invariants:
// missing optional arrays become empty, missing counters become zero, and
// the video category pair (code + localized label) is reconciled from
// whichever side the record holds. Operates on the raw record maps so that
// fields this version doesn't know about survive untouched. Idempotent: a
// second pass changes nothing.
func (s *Store) Repair() error {
	users := s.GetAll(CollectionUsers)
	usersChanged := false
	for _, rec := range users.Map {
		if repairUser(rec) {
			usersChanged = true
		}
	}
	if usersChanged && !s.Save(CollectionUsers, users) {
		s.logger.Warn("repair: user collection write failed")
	}

	videos := s.GetAll(CollectionVideos)
	videosChanged := false
	for _, rec := range videos.Map {
		if repairVideo(rec) {
			videosChanged = true
		}
	}
	if videosChanged && !s.Save(CollectionVideos, videos) {
		s.logger.Warn("repair: video collection write failed")
	}

	return nil
}

func repairUser(rec Record) bool {
	changed := false
	for _, field := range []string{"followers", "following", "favorites", "videos", "dynamic"} {
		if ensureArray(rec, field) {
			changed = true
		}
	}
	return changed
}

func repairVideo(rec Record) bool {
	changed := false
	for _, field := range []string{"likedBy", "comments", "tags"} {
		if ensureArray(rec, field) {
			changed = true
		}
	}
	for _, field := range []string{"views", "likes"} {
		if ensureNumber(rec, field) {
			changed = true
		}
	}

	category, _ := rec["category"].(string)
	if category == "" {
		return changed
	}
	name, _ := rec["categoryName"].(string)
	code, label := models.NormalizeCategory(category, name)
	if code != category {
		rec["category"] = code
		changed = true
	}
	if label != name {
		rec["categoryName"] = label
		changed = true
	}
	return changed
}

func ensureArray(rec Record, field string) bool {
	if _, ok := rec[field].([]any); ok {
		return false
	}
	rec[field] = []any{}
	return true
}

func ensureNumber(rec Record, field string) bool {
	if _, ok := rec[field].(float64); ok {
		return false
	}
	rec[field] = float64(0)
	return true
}
