// Package importer drives transformed records through the destination
// write API in ordered batches, with bounded retry and inter-batch pacing.
package importer

import (
	"context"
	"log/slog"
	"time"

	"github.com/tastebase/recipe-migrate/internal/destination"
	"github.com/tastebase/recipe-migrate/internal/errors"
	"github.com/tastebase/recipe-migrate/internal/logging"
	"github.com/tastebase/recipe-migrate/internal/model"
	"github.com/tastebase/recipe-migrate/internal/validate"
)

// BatchConfig holds the knobs of the batch import loop.
type BatchConfig struct {
	BatchSize    int
	BatchDelay   time.Duration // pause between batches, skipped after the last
	StopOnError  bool          // abort remaining batches once a batch has a failure
	DryRun       bool          // structural checks only, no network calls
	MaxRetries   int
	RetryBackoff time.Duration
}

// ProgressFunc is invoked after each batch with the batch number (1-based),
// the total batch count and the batch's results.
type ProgressFunc func(batch, totalBatches int, results []model.ImportResult)

// Submitter is the slice of the destination client the batch importer
// needs. Satisfied by *destination.Client.
type Submitter interface {
	CreateUser(ctx context.Context, user *model.TransformedUser) (*destination.UserResponse, error)
	CreateRecipe(ctx context.Context, recipe *model.TransformedRecipe) (*destination.RecipeResponse, error)
}

// BatchImporter imports records one at a time within fixed-size ordered
// batches. It never persists mappings itself; the caller reacts to the
// returned results.
type BatchImporter struct {
	client Submitter
	cfg    BatchConfig
	logger *slog.Logger
}

// NewBatchImporter creates a batch importer for the given destination client.
func NewBatchImporter(client Submitter, cfg BatchConfig) *BatchImporter {
	return &BatchImporter{
		client: client,
		cfg:    cfg,
		logger: logging.ForService("importer"),
	}
}

// Partition splits records into fixed-size batches, preserving order within
// and across batches. The final batch carries the remainder.
func Partition(records []model.Record, size int) [][]model.Record {
	if size <= 0 || len(records) == 0 {
		return nil
	}
	batches := make([][]model.Record, 0, (len(records)+size-1)/size)
	for start := 0; start < len(records); start += size {
		end := min(start+size, len(records))
		batches = append(batches, records[start:end])
	}
	return batches
}

// Import runs the batch loop over records, returning one result per
// processed record. Per-item failures are isolated; the returned error is
// non-nil only for cancellation. With StopOnError set, the current batch
// finishes and the remaining batches are abandoned.
func (bi *BatchImporter) Import(ctx context.Context, records []model.Record, onBatch ProgressFunc) ([]model.ImportResult, error) {
	batches := Partition(records, bi.cfg.BatchSize)
	results := make([]model.ImportResult, 0, len(records))

	for i, batch := range batches {
		batchNum := i + 1
		batchResults := make([]model.ImportResult, 0, len(batch))
		batchFailed := false

		for _, rec := range batch {
			if err := ctx.Err(); err != nil {
				return results, errors.New(err).
					Component("importer").
					Category(errors.CategoryCancellation).
					Build()
			}

			result := bi.importRecord(ctx, rec)
			if !result.Success {
				batchFailed = true
				bi.logger.Warn("record import failed",
					"legacy_id", result.LegacyID,
					"kind", string(result.Kind),
					"error_type", string(result.ErrorKind),
					"error", result.Error)
			}
			batchResults = append(batchResults, result)
			results = append(results, result)
		}

		if onBatch != nil {
			onBatch(batchNum, len(batches), batchResults)
		}

		if bi.cfg.StopOnError && batchFailed {
			bi.logger.Warn("stopping on first error",
				"batch", batchNum,
				"remaining_batches", len(batches)-batchNum)
			return results, nil
		}

		// Pace between batches, but not after the final one.
		if batchNum < len(batches) && bi.cfg.BatchDelay > 0 {
			timer := time.NewTimer(bi.cfg.BatchDelay)
			select {
			case <-ctx.Done():
				timer.Stop()
				return results, errors.New(ctx.Err()).
					Component("importer").
					Category(errors.CategoryCancellation).
					Build()
			case <-timer.C:
			}
		}
	}

	return results, nil
}

// importRecord imports one record, retrying retryable failures. In dry-run
// mode it performs the same structural checks a live submission would need
// and uses the pre-generated id as the synthetic destination id.
func (bi *BatchImporter) importRecord(ctx context.Context, rec model.Record) model.ImportResult {
	if bi.cfg.DryRun {
		errs, warnings := validate.Validate(rec)
		if len(errs) > 0 {
			return model.Failed(rec, errors.Join(errs...), 0)
		}
		result := model.Succeeded(rec, rec.GetID(), 0)
		result.Warnings = warnings
		return result
	}

	var newID string
	retries, err := destination.Retry(ctx, func() error {
		switch r := rec.(type) {
		case *model.TransformedUser:
			resp, err := bi.client.CreateUser(ctx, r)
			if err != nil {
				return err
			}
			newID = resp.ID
			return nil
		case *model.TransformedRecipe:
			resp, err := bi.client.CreateRecipe(ctx, r)
			if err != nil {
				return err
			}
			newID = resp.ID
			return nil
		default:
			return errors.ValidationError("unknown record kind")
		}
	}, bi.cfg.MaxRetries, bi.cfg.RetryBackoff, nil)

	if err != nil {
		return model.Failed(rec, err, retries)
	}
	return model.Succeeded(rec, newID, retries)
}
