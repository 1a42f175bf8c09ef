package docstore

import (
	"encoding/json"
	"fmt"
)

// Startup migrations. Each entry is idempotent and independent of the
// others; applied names are tracked in a substrate entry so a migration
// runs exactly once per store.

type migration struct {
	name string
	run  func(*Store) error
}

var migrations = []migration{
	{name: "legacy-dynamics", run: (*Store).migrateLegacyDynamics},
}

func (s *Store) migrationsKey() string {
	return s.keyPrefix + "/schema_migrations"
}

func (s *Store) appliedMigrations() (map[string]bool, error) {
	applied := make(map[string]bool)
	raw, ok, err := s.kv.Get(s.migrationsKey())
	if err != nil {
		return nil, err
	}
	if !ok {
		return applied, nil
	}
	var names []string
	if err := json.Unmarshal([]byte(raw), &names); err != nil {
		// A corrupt marker list is not fatal: migrations are idempotent,
		// so re-running them is safe.
		s.logger.Warn("migration markers unparsable, re-running migrations", "error", err)
		return applied, nil
	}
	for _, n := range names {
		applied[n] = true
	}
	return applied, nil
}

func (s *Store) runMigrations() error {
	applied, err := s.appliedMigrations()
	if err != nil {
		return fmt.Errorf("read migration markers: %w", err)
	}

	var names []string
	for n := range applied {
		names = append(names, n)
	}

	for _, m := range migrations {
		if applied[m.name] {
			continue
		}
		if err := m.run(s); err != nil {
			return fmt.Errorf("migration %s: %w", m.name, err)
		}
		s.logger.Info("applied migration", "name", m.name)
		names = append(names, m.name)
	}

	data, err := json.Marshal(names)
	if err != nil {
		return err
	}
	if err := s.kv.Set(s.migrationsKey(), string(data)); err != nil {
		return fmt.Errorf("write migration markers: %w", err)
	}
	return nil
}

// legacyDynamicsKey is the retired unprefixed slot older clients wrote
// dynamic posts to before dynamics became a proper collection.
const legacyDynamicsKey = "dynamics"

// migrateLegacyDynamics merges posts from the retired slot into the
// dynamics collection, keyed by id with existing records winning, then
// deletes the slot.
func (s *Store) migrateLegacyDynamics() error {
	raw, ok, err := s.kv.Get(legacyDynamicsKey)
	if err != nil {
		return fmt.Errorf("read legacy slot: %w", err)
	}
	if !ok || raw == "" {
		return nil
	}

	var legacy []Record
	if err := json.Unmarshal([]byte(raw), &legacy); err != nil {
		// Unreadable legacy data is dropped rather than blocking startup.
		s.logger.Warn("legacy dynamics unparsable, discarding slot", "error", err)
		return s.kv.Delete(legacyDynamicsKey)
	}
	if len(legacy) == 0 {
		return s.kv.Delete(legacyDynamicsKey)
	}

	recs := s.GetAll(CollectionDynamics)
	existing := make(map[string]bool, len(recs.List))
	for _, rec := range recs.List {
		if id := recordID(rec); id != "" {
			existing[id] = true
		}
	}

	merged := 0
	for _, rec := range legacy {
		id := recordID(rec)
		if id == "" || existing[id] {
			continue
		}
		recs.List = append(recs.List, rec)
		existing[id] = true
		merged++
	}

	if !s.Save(CollectionDynamics, recs) {
		return fmt.Errorf("write merged dynamics")
	}
	if err := s.kv.Delete(legacyDynamicsKey); err != nil {
		return fmt.Errorf("delete legacy slot: %w", err)
	}
	s.logger.Info("migrated legacy dynamics", "merged", merged, "skipped", len(legacy)-merged)
	return nil
}
