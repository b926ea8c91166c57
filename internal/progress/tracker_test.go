package progress

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func idRange(from, to int64) []int64 {
	ids := make([]int64, 0, to-from+1)
	for i := from; i <= to; i++ {
		ids = append(ids, i)
	}
	return ids
}

func TestRecordProcessed_Invariant(t *testing.T) {
	tracker := NewTracker(t.TempDir(), "mig-1", PhaseRecipes, 0)
	tracker.BeginRun(idRange(1, 10), 1)

	require.NoError(t, tracker.RecordProcessed(1, true, false))
	require.NoError(t, tracker.RecordProcessed(2, false, false))
	require.NoError(t, tracker.RecordProcessed(3, true, true))

	snap := tracker.State()
	assert.Equal(t, 3, snap.Processed, "expected three processed")
	assert.Equal(t, 2, snap.Succeeded, "expected two successes")
	assert.Equal(t, 1, snap.Failed, "expected one failure")
	assert.Equal(t, 1, snap.Warned, "expected one warning")
	assert.Equal(t, snap.Processed, snap.Succeeded+snap.Failed, "processed must equal succeeded+failed")
}

func TestRecordProcessed_DuplicateIgnored(t *testing.T) {
	tracker := NewTracker(t.TempDir(), "mig-1", PhaseUsers, 0)
	tracker.BeginRun(idRange(1, 5), 1)

	require.NoError(t, tracker.RecordProcessed(1, true, false))
	require.NoError(t, tracker.RecordProcessed(1, true, false))

	assert.Equal(t, 1, tracker.State().Processed, "duplicate legacy id must not double count")
}

func TestCheckpointResume(t *testing.T) {
	dir := t.TempDir()
	tracker := NewTracker(dir, "mig-7", PhaseRecipes, 0)
	tracker.BeginRun(idRange(1, 150), 3)
	tracker.UpdateBatch(2)

	// Process 100 of 150, with every 10th failing.
	for i := int64(1); i <= 100; i++ {
		require.NoError(t, tracker.RecordProcessed(i, i%10 != 0, false))
	}
	require.NoError(t, tracker.SaveCheckpoint(), "checkpoint save failed")

	// Simulate a crash: discard the in-memory tracker and reload from disk.
	restored, err := LoadCheckpoint(dir, "mig-7", PhaseRecipes, 0)
	require.NoError(t, err, "load failed")
	require.NotNil(t, restored, "expected checkpoint to exist")

	snap := restored.State()
	assert.Equal(t, 100, snap.Processed, "expected processed count restored")
	assert.Equal(t, 90, snap.Succeeded, "expected succeeded count restored")
	assert.Equal(t, 10, snap.Failed, "expected failed count restored")
	assert.Equal(t, 150, snap.TotalRecords, "expected total restored")
	assert.Equal(t, 2, snap.CurrentBatch, "expected batch restored")

	for i := int64(1); i <= 100; i++ {
		assert.True(t, restored.IsProcessed(i), "id %d should be processed", i)
	}
	for i := int64(101); i <= 150; i++ {
		assert.False(t, restored.IsProcessed(i), "id %d should not be processed", i)
	}
	assert.True(t, restored.IsFailed(10), "expected failed id restored")
	assert.False(t, restored.IsFailed(11), "unexpected failed id")
}

func TestBeginRun_ResumeReconcilesCounters(t *testing.T) {
	dir := t.TempDir()
	tracker := NewTracker(dir, "mig-5", PhaseRecipes, 0)
	tracker.BeginRun(idRange(1, 150), 3)

	// First run: 100 of 150 processed, ids 91-100 failing.
	for i := int64(1); i <= 100; i++ {
		require.NoError(t, tracker.RecordProcessed(i, i <= 90, false))
	}
	require.NoError(t, tracker.SaveCheckpoint(), "checkpoint save failed")

	restored, err := LoadCheckpoint(dir, "mig-5", PhaseRecipes, 0)
	require.NoError(t, err, "load failed")
	require.NotNil(t, restored, "expected checkpoint to exist")

	// The resumed run re-attempts the 10 failures plus the 50 never tried.
	restored.BeginRun(idRange(91, 150), 2)

	snap := restored.State()
	assert.Equal(t, 90, snap.Processed, "ids about to be re-attempted must not count as processed")
	assert.Equal(t, 150, snap.TotalRecords, "total covers prior work plus pending records")
	assert.LessOrEqual(t, snap.Processed, snap.TotalRecords, "processed must not exceed total")
	assert.Zero(t, snap.Failed, "cleared failures must leave the failed counter")
	assert.False(t, restored.Complete(), "a resumed phase with pending records is not complete")
	assert.Error(t, restored.DeleteCheckpoint(), "incomplete resumed phase must keep its checkpoint")

	for i := int64(91); i <= 150; i++ {
		require.NoError(t, restored.RecordProcessed(i, true, false))
	}

	snap = restored.State()
	assert.Equal(t, 150, snap.Processed, "expected every record processed")
	assert.Equal(t, 150, snap.Succeeded, "retried failures must be recounted as successes")
	assert.Zero(t, snap.Failed, "no failures remain after successful retries")
	assert.True(t, restored.Complete(), "expected a complete phase")
	require.NoError(t, restored.DeleteCheckpoint(), "complete phase must delete cleanly")
}

func TestLoadCheckpoint_MissingReturnsNil(t *testing.T) {
	tracker, err := LoadCheckpoint(t.TempDir(), "nope", PhaseUsers, 0)
	require.NoError(t, err, "missing checkpoint is not an error")
	assert.Nil(t, tracker, "expected nil tracker for fresh start")
}

func TestDeleteCheckpoint_RefusesWhileIncomplete(t *testing.T) {
	dir := t.TempDir()
	tracker := NewTracker(dir, "mig-2", PhaseUsers, 0)
	tracker.BeginRun(idRange(1, 2), 1)
	require.NoError(t, tracker.RecordProcessed(1, true, false))
	require.NoError(t, tracker.SaveCheckpoint())

	assert.Error(t, tracker.DeleteCheckpoint(), "must refuse to delete an incomplete phase's checkpoint")

	require.NoError(t, tracker.RecordProcessed(2, true, false))
	require.NoError(t, tracker.DeleteCheckpoint(), "complete phase must delete cleanly")

	restored, err := LoadCheckpoint(dir, "mig-2", PhaseUsers, 0)
	require.NoError(t, err)
	assert.Nil(t, restored, "checkpoint file should be gone")
}

func TestAutoSave(t *testing.T) {
	dir := t.TempDir()
	tracker := NewTracker(dir, "mig-3", PhaseUsers, 10*time.Millisecond)
	tracker.BeginRun(idRange(1, 2), 1)

	require.NoError(t, tracker.RecordProcessed(1, true, false))
	time.Sleep(20 * time.Millisecond)
	// Interval elapsed: this record triggers an auto-save.
	require.NoError(t, tracker.RecordProcessed(2, true, false))

	restored, err := LoadCheckpoint(dir, "mig-3", PhaseUsers, 0)
	require.NoError(t, err)
	require.NotNil(t, restored, "expected auto-saved checkpoint on disk")
	assert.Equal(t, 2, restored.State().Processed, "expected auto-saved state")
}

func TestRecordSkipped(t *testing.T) {
	tracker := NewTracker(t.TempDir(), "mig-4", PhaseUsers, 0)
	tracker.BeginRun(idRange(1, 6), 1)

	tracker.RecordSkipped(4)

	snap := tracker.State()
	assert.Equal(t, 4, snap.Skipped, "expected skipped count")
	assert.Equal(t, 0, snap.Processed, "skipped records are not processed")
	assert.Equal(t, 6, snap.TotalRecords, "skipped records do not count toward the total")
}
