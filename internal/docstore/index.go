package docstore

import "encoding/json"

// Type indexes are an enumeration aid carried over from the original data
// format: a flat list of record IDs per record type, stored as its own
// substrate entry. The collection itself remains the source of truth (read
// paths always scan the collection), so a stale index is tolerated and
// repaired additively rather than rebuilt.

func (s *Store) indexKey(indexType string) string {
	return s.keyPrefix + "/" + indexType + "_index"
}

func (s *Store) readIndex(indexType string) []string {
	raw, ok, err := s.kv.Get(s.indexKey(indexType))
	if err != nil {
		s.logger.Warn("index read failed", "type", indexType, "error", err)
		return []string{}
	}
	if !ok {
		return []string{}
	}
	var ids []string
	if err := json.Unmarshal([]byte(raw), &ids); err != nil {
		s.logger.Warn("index unparsable, reading as empty", "type", indexType, "error", err)
		return []string{}
	}
	return ids
}

func (s *Store) writeIndex(indexType string, ids []string) bool {
	data, err := json.Marshal(ids)
	if err != nil {
		return false
	}
	if err := s.kv.Set(s.indexKey(indexType), string(data)); err != nil {
		s.logger.Warn("index write failed", "type", indexType, "error", err)
		return false
	}
	return true
}

// AddIndex records an id under a type index. Idempotent: an id already
// present is not duplicated.
func (s *Store) AddIndex(indexType, id string) bool {
	ids := s.readIndex(indexType)
	for _, existing := range ids {
		if existing == id {
			return true
		}
	}
	return s.writeIndex(indexType, append(ids, id))
}

// RemoveIndex drops an id from a type index.
func (s *Store) RemoveIndex(indexType, id string) bool {
	ids := s.readIndex(indexType)
	kept := ids[:0]
	for _, existing := range ids {
		if existing != id {
			kept = append(kept, existing)
		}
	}
	return s.writeIndex(indexType, kept)
}

// GetAllIndex returns the ids recorded under a type index.
func (s *Store) GetAllIndex(indexType string) []string {
	return s.readIndex(indexType)
}
