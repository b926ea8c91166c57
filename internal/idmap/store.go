// Package idmap is the idempotency layer of the migration: a durable
// mapping of legacy id to destination id per entity type. Already-imported
// work is filtered out before the importers run, which is what makes the
// pipeline safe to re-run without creating duplicates.
package idmap

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/tastebase/recipe-migrate/internal/atomicfile"
	"github.com/tastebase/recipe-migrate/internal/errors"
	"github.com/tastebase/recipe-migrate/internal/logging"
	"github.com/tastebase/recipe-migrate/internal/model"
)

// Mapping records the fate of one legacy record. Migrated becomes true only
// on confirmed success; entries are never deleted during a run.
type Mapping struct {
	LegacyID   int64      `json:"legacyId"`
	NewID      string     `json:"newUuid"`
	Label      string     `json:"displayLabel,omitempty"`
	Migrated   bool       `json:"migrated"`
	MigratedAt *time.Time `json:"migratedAt,omitempty"`
}

// Stats summarizes one entity type's mapping table.
type Stats struct {
	Total    int `json:"total"`
	Imported int `json:"imported"`
	Pending  int `json:"pending"`
}

// Store owns the mapping files exclusively; importers read and write only
// through its interface. Single writer, mutex guarded.
type Store struct {
	dir    string
	logger *slog.Logger

	mu     sync.RWMutex
	byKind map[model.RecordKind]map[int64]*Mapping
}

// NewStore creates a store rooted at dir. Call Load before use.
func NewStore(dir string) *Store {
	return &Store{
		dir:    dir,
		logger: logging.ForService("idmap"),
		byKind: make(map[model.RecordKind]map[int64]*Mapping),
	}
}

func (s *Store) jsonPath(kind model.RecordKind) string {
	return filepath.Join(s.dir, string(kind)+".json")
}

func (s *Store) csvPath(kind model.RecordKind) string {
	return filepath.Join(s.dir, string(kind)+".csv")
}

// Load reads the mapping files for all entity types. A missing file means a
// first run and is not an error; any other read error surfaces.
func (s *Store) Load() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, kind := range []model.RecordKind{model.KindUser, model.KindRecipe} {
		mappings, err := s.loadKind(kind)
		if err != nil {
			return err
		}
		s.byKind[kind] = mappings
		s.logger.Info("loaded id mappings",
			"kind", string(kind),
			"count", len(mappings))
	}
	return nil
}

func (s *Store) loadKind(kind model.RecordKind) (map[int64]*Mapping, error) {
	data, err := os.ReadFile(s.jsonPath(kind))
	if err != nil {
		if os.IsNotExist(err) {
			return make(map[int64]*Mapping), nil
		}
		return nil, errors.New(fmt.Errorf("reading mapping file for %s: %w", kind, err)).
			Component("idmap").
			Category(errors.CategoryMapping).
			Build()
	}

	var list []*Mapping
	if err := json.Unmarshal(data, &list); err != nil {
		return nil, errors.New(fmt.Errorf("parsing mapping file for %s: %w", kind, err)).
			Component("idmap").
			Category(errors.CategoryMapping).
			Build()
	}

	mappings := make(map[int64]*Mapping, len(list))
	for _, m := range list {
		mappings[m.LegacyID] = m
	}
	return mappings, nil
}

// Save rewrites every mapping file in full, atomically, and mirrors each to
// CSV for ad hoc inspection. Appending is deliberately avoided so a partial
// write can never corrupt the store.
func (s *Store) Save() error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for kind, mappings := range s.byKind {
		list := make([]*Mapping, 0, len(mappings))
		for _, m := range mappings {
			list = append(list, m)
		}
		sort.Slice(list, func(i, j int) bool { return list[i].LegacyID < list[j].LegacyID })

		data, err := json.MarshalIndent(list, "", "  ")
		if err != nil {
			return errors.New(fmt.Errorf("marshaling mappings for %s: %w", kind, err)).
				Component("idmap").
				Category(errors.CategoryMapping).
				Build()
		}
		if err := atomicfile.WriteFile(s.jsonPath(kind), data, 0o644); err != nil {
			return errors.New(fmt.Errorf("writing mapping file for %s: %w", kind, err)).
				Component("idmap").
				Category(errors.CategoryFileIO).
				Build()
		}

		if err := s.writeCSV(kind, list); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) writeCSV(kind model.RecordKind, list []*Mapping) error {
	f, err := os.Create(s.csvPath(kind))
	if err != nil {
		return errors.New(fmt.Errorf("creating csv mirror for %s: %w", kind, err)).
			Component("idmap").
			Category(errors.CategoryFileIO).
			Build()
	}
	defer func() { _ = f.Close() }()

	w := csv.NewWriter(f)
	if err := w.Write([]string{"legacy_id", "new_uuid", "label", "migrated", "migrated_at"}); err != nil {
		return fmt.Errorf("writing csv header: %w", err)
	}
	for _, m := range list {
		migratedAt := ""
		if m.MigratedAt != nil {
			migratedAt = m.MigratedAt.Format(time.RFC3339)
		}
		row := []string{
			strconv.FormatInt(m.LegacyID, 10),
			m.NewID,
			m.Label,
			strconv.FormatBool(m.Migrated),
			migratedAt,
		}
		if err := w.Write(row); err != nil {
			return fmt.Errorf("writing csv row: %w", err)
		}
	}
	w.Flush()
	return w.Error()
}

// IsImported reports whether the legacy id was already migrated.
func (s *Store) IsImported(kind model.RecordKind, legacyID int64) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	m, ok := s.byKind[kind][legacyID]
	return ok && m.Migrated
}

// AssignedID returns the destination id assigned to a legacy id, migrated
// or not. Reusing the id of a failed attempt keeps retries idempotent on
// the destination side.
func (s *Store) AssignedID(kind model.RecordKind, legacyID int64) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	m, ok := s.byKind[kind][legacyID]
	if !ok {
		return "", false
	}
	return m.NewID, true
}

// NewID returns the destination id mapped to a legacy id, if any.
func (s *Store) NewID(kind model.RecordKind, legacyID int64) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	m, ok := s.byKind[kind][legacyID]
	if !ok || !m.Migrated {
		return "", false
	}
	return m.NewID, true
}

// MarkAttempted creates the mapping entry for a first attempt without
// flagging it migrated. Existing entries keep their state.
func (s *Store) MarkAttempted(kind model.RecordKind, legacyID int64, newID, label string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.byKind[kind] == nil {
		s.byKind[kind] = make(map[int64]*Mapping)
	}
	if _, ok := s.byKind[kind][legacyID]; ok {
		return
	}
	s.byKind[kind][legacyID] = &Mapping{
		LegacyID: legacyID,
		NewID:    newID,
		Label:    label,
	}
}

// MarkImported records a confirmed success. At most one mapping exists per
// legacy id; repeated calls update the same entry.
func (s *Store) MarkImported(kind model.RecordKind, legacyID int64, newID, label string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.byKind[kind] == nil {
		s.byKind[kind] = make(map[int64]*Mapping)
	}
	now := time.Now().UTC()
	m, ok := s.byKind[kind][legacyID]
	if !ok {
		m = &Mapping{LegacyID: legacyID}
		s.byKind[kind][legacyID] = m
	}
	m.NewID = newID
	m.Label = label
	m.Migrated = true
	m.MigratedAt = &now
}

// FilterUnimported partitions items into those still to import and those
// already migrated. The two slices together always carry exactly the input
// legacy ids.
func (s *Store) FilterUnimported(kind model.RecordKind, items []model.Record) (unimported, skipped []model.Record) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, item := range items {
		m, ok := s.byKind[kind][item.GetLegacyID()]
		if ok && m.Migrated {
			skipped = append(skipped, item)
		} else {
			unimported = append(unimported, item)
		}
	}
	return unimported, skipped
}

// GetStats returns per-type counts of total, imported and pending mappings.
func (s *Store) GetStats(kind model.RecordKind) Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := Stats{}
	for _, m := range s.byKind[kind] {
		stats.Total++
		if m.Migrated {
			stats.Imported++
		} else {
			stats.Pending++
		}
	}
	return stats
}
