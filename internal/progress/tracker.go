// Package progress tracks per-phase migration counters and persists them as
// resumable checkpoints. A crash loses at most one checkpoint interval or
// one batch of work, whichever is smaller.
package progress

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/tastebase/recipe-migrate/internal/atomicfile"
	"github.com/tastebase/recipe-migrate/internal/errors"
	"github.com/tastebase/recipe-migrate/internal/logging"
)

// Phase names one stage of the pipeline.
type Phase string

const (
	PhaseUsers   Phase = "users"
	PhaseRecipes Phase = "recipes"
)

// Snapshot is the serializable counter block of a tracker. The invariant
// Processed == Succeeded+Failed holds at all times, and Processed never
// exceeds Total.
type Snapshot struct {
	MigrationID    string    `json:"migrationId"`
	Phase          Phase     `json:"phase"`
	StartTime      time.Time `json:"startTime"`
	LastCheckpoint time.Time `json:"lastCheckpoint"`
	TotalRecords   int       `json:"totalRecords"`
	Processed      int       `json:"processedRecords"`
	Succeeded      int       `json:"succeededRecords"`
	Failed         int       `json:"failedRecords"`
	Warned         int       `json:"warnedRecords"`
	Skipped        int       `json:"skippedRecords"`
	CurrentBatch   int       `json:"currentBatch"`
	TotalBatches   int       `json:"totalBatches"`
}

type checkpointFile struct {
	Progress     Snapshot `json:"progress"`
	ProcessedIDs []int64  `json:"processedIds"`
	FailedIDs    []int64  `json:"failedIds"`
}

// Tracker is the durable progress state of one (migrationID, phase) pair.
// Safe for concurrent use; commits are serialized behind one mutex.
type Tracker struct {
	mu        sync.Mutex
	snap      Snapshot
	processed map[int64]struct{}
	failed    map[int64]struct{}

	dir       string
	saveEvery time.Duration
	lastSave  time.Time
	logger    *slog.Logger
}

// NewTracker creates a fresh tracker for a phase. saveEvery bounds the
// auto-checkpoint interval; zero disables auto-saving.
func NewTracker(dir, migrationID string, phase Phase, saveEvery time.Duration) *Tracker {
	return &Tracker{
		snap: Snapshot{
			MigrationID: migrationID,
			Phase:       phase,
			StartTime:   time.Now().UTC(),
		},
		processed: make(map[int64]struct{}),
		failed:    make(map[int64]struct{}),
		dir:       dir,
		saveEvery: saveEvery,
		logger:    logging.ForService("progress"),
	}
}

func checkpointPath(dir, migrationID string, phase Phase) string {
	return filepath.Join(dir, fmt.Sprintf("%s-%s.checkpoint.json", migrationID, phase))
}

// LoadCheckpoint restores a tracker from its checkpoint file. It returns
// (nil, nil) when no checkpoint exists, so callers can distinguish a fresh
// start from a resume.
func LoadCheckpoint(dir, migrationID string, phase Phase, saveEvery time.Duration) (*Tracker, error) {
	data, err := os.ReadFile(checkpointPath(dir, migrationID, phase))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errors.New(fmt.Errorf("reading checkpoint for %s/%s: %w", migrationID, phase, err)).
			Component("progress").
			Category(errors.CategoryCheckpoint).
			Build()
	}

	var cp checkpointFile
	if err := json.Unmarshal(data, &cp); err != nil {
		return nil, errors.New(fmt.Errorf("parsing checkpoint for %s/%s: %w", migrationID, phase, err)).
			Component("progress").
			Category(errors.CategoryCheckpoint).
			Build()
	}

	t := NewTracker(dir, migrationID, phase, saveEvery)
	t.snap = cp.Progress
	for _, id := range cp.ProcessedIDs {
		t.processed[id] = struct{}{}
	}
	for _, id := range cp.FailedIDs {
		t.failed[id] = struct{}{}
	}
	t.logger.Info("resumed from checkpoint",
		"migration_id", migrationID,
		"phase", string(phase),
		"processed", t.snap.Processed,
		"total", t.snap.TotalRecords)
	return t, nil
}

// BeginRun aligns the tracker with the work set of the current run.
// Pending ids recorded by an earlier run (failed attempts, or successes
// whose mapping never reached disk) are cleared so their new outcomes
// are recorded afresh, and the phase total becomes the work already done
// plus the records still pending. Processed therefore never exceeds
// TotalRecords, on a fresh start or a resume.
func (t *Tracker) BeginRun(pendingIDs []int64, totalBatches int) {
	t.mu.Lock()
	defer t.mu.Unlock()

	for _, id := range pendingIDs {
		if _, seen := t.processed[id]; !seen {
			continue
		}
		delete(t.processed, id)
		t.snap.Processed--
		if _, failed := t.failed[id]; failed {
			delete(t.failed, id)
			t.snap.Failed--
		} else {
			t.snap.Succeeded--
		}
	}
	t.snap.TotalRecords = t.snap.Processed + len(pendingIDs)
	t.snap.TotalBatches = totalBatches
}

// RecordProcessed records the outcome of one record and auto-saves when the
// checkpoint interval has elapsed.
func (t *Tracker) RecordProcessed(legacyID int64, success, warned bool) error {
	t.mu.Lock()

	if _, seen := t.processed[legacyID]; !seen {
		t.processed[legacyID] = struct{}{}
		t.snap.Processed++
		if success {
			t.snap.Succeeded++
		} else {
			t.snap.Failed++
			t.failed[legacyID] = struct{}{}
		}
		if warned {
			t.snap.Warned++
		}
	}

	needSave := t.saveEvery > 0 && time.Since(t.lastSave) > t.saveEvery
	t.mu.Unlock()

	if needSave {
		return t.SaveCheckpoint()
	}
	return nil
}

// RecordSkipped counts records filtered out before import (already migrated
// in a previous run). Skipped records do not count as processed.
func (t *Tracker) RecordSkipped(count int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.snap.Skipped += count
}

// UpdateBatch records the batch currently being imported.
func (t *Tracker) UpdateBatch(n int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.snap.CurrentBatch = n
}

// SaveCheckpoint writes progress plus the processed and failed id sets to
// durable storage with an atomic rename.
func (t *Tracker) SaveCheckpoint() error {
	t.mu.Lock()

	t.snap.LastCheckpoint = time.Now().UTC()
	cp := checkpointFile{
		Progress:     t.snap,
		ProcessedIDs: make([]int64, 0, len(t.processed)),
		FailedIDs:    make([]int64, 0, len(t.failed)),
	}
	for id := range t.processed {
		cp.ProcessedIDs = append(cp.ProcessedIDs, id)
	}
	for id := range t.failed {
		cp.FailedIDs = append(cp.FailedIDs, id)
	}
	path := checkpointPath(t.dir, t.snap.MigrationID, t.snap.Phase)
	t.lastSave = time.Now()
	t.mu.Unlock()

	data, err := json.MarshalIndent(&cp, "", "  ")
	if err != nil {
		return errors.New(fmt.Errorf("marshaling checkpoint: %w", err)).
			Component("progress").
			Category(errors.CategoryCheckpoint).
			Build()
	}
	if err := atomicfile.WriteFile(path, data, 0o644); err != nil {
		return errors.New(fmt.Errorf("writing checkpoint: %w", err)).
			Component("progress").
			Category(errors.CategoryFileIO).
			Build()
	}
	return nil
}

// DeleteCheckpoint removes the checkpoint file. It refuses while the phase
// is incomplete so an operator cannot lose resumable state by accident.
func (t *Tracker) DeleteCheckpoint() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.snap.Processed < t.snap.TotalRecords {
		return errors.Newf("refusing to delete checkpoint: %d of %d records processed",
			t.snap.Processed, t.snap.TotalRecords).
			Component("progress").
			Category(errors.CategoryCheckpoint).
			Build()
	}

	path := checkpointPath(t.dir, t.snap.MigrationID, t.snap.Phase)
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return errors.New(fmt.Errorf("deleting checkpoint: %w", err)).
			Component("progress").
			Category(errors.CategoryFileIO).
			Build()
	}
	t.logger.Info("phase complete, checkpoint deleted",
		"migration_id", t.snap.MigrationID,
		"phase", string(t.snap.Phase))
	return nil
}

// IsProcessed reports whether a legacy id was already handled in this phase.
func (t *Tracker) IsProcessed(legacyID int64) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.processed[legacyID]
	return ok
}

// IsFailed reports whether a legacy id failed in this phase.
func (t *Tracker) IsFailed(legacyID int64) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.failed[legacyID]
	return ok
}

// Complete reports whether every record of the phase has been processed.
func (t *Tracker) Complete() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.snap.Processed >= t.snap.TotalRecords
}

// State returns a copy of the current counters.
func (t *Tracker) State() Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.snap
}
