package migrate

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/tastebase/recipe-migrate/internal/conf"
	"github.com/tastebase/recipe-migrate/internal/datastore"
	"github.com/tastebase/recipe-migrate/internal/destination"
	"github.com/tastebase/recipe-migrate/internal/errors"
	"github.com/tastebase/recipe-migrate/internal/httpclient"
	"github.com/tastebase/recipe-migrate/internal/idmap"
	"github.com/tastebase/recipe-migrate/internal/importer"
	"github.com/tastebase/recipe-migrate/internal/logging"
	"github.com/tastebase/recipe-migrate/internal/model"
	"github.com/tastebase/recipe-migrate/internal/progress"
	"github.com/tastebase/recipe-migrate/internal/report"
	"github.com/tastebase/recipe-migrate/internal/transform"
)

// runMigration orchestrates the two phases. A fatal error leaves the
// phase's checkpoint intact and surfaces non-zero; a completed phase
// deletes its checkpoint.
func runMigration(ctx context.Context, settings *conf.Settings, migrationID string) error {
	logger := logging.ForService("migrate")
	start := time.Now()

	// Run details go to a rotating file under the data directory; the
	// console stays reserved for progress lines and the final summary.
	level := slog.LevelInfo
	if settings.Debug {
		level = slog.LevelDebug
	}
	logPath := filepath.Join(settings.DataDir, "logs", "migrate.log")
	if fileLogger, closeLog, err := logging.NewFileLogger(logPath, "migrate", level); err != nil {
		logger.Warn("file log unavailable", "path", logPath, "error", err)
	} else {
		logger = fileLogger
		defer func() { _ = closeLog() }()
	}

	store := idmap.NewStore(settings.DataDir)
	if err := store.Load(); err != nil {
		return err
	}

	legacy, err := datastore.OpenLegacy(&settings.Source, settings.Debug)
	if err != nil {
		return err
	}
	defer func() { _ = legacy.Close() }()
	extractor := transform.NewExtractor(legacy, store)

	httpClient := httpclient.New(&httpclient.Config{DefaultTimeout: settings.Destination.Timeout})
	client := destination.NewClient(destination.Config{
		BaseURL:   settings.Destination.BaseURL,
		AuthToken: settings.Destination.AuthToken,
	}, httpClient)
	defer client.Close()

	summary := report.NewSummary(migrationID, settings.Import.DryRun)
	var allResults []model.ImportResult

	userResults, err := runUserPhase(ctx, settings, migrationID, store, extractor, client, summary, logger)
	allResults = append(allResults, userResults...)
	if err != nil {
		writeReports(settings, summary, allResults, logger)
		return err
	}

	recipeResults, err := runRecipePhase(ctx, settings, migrationID, store, extractor, client, summary, start, logger)
	allResults = append(allResults, recipeResults...)

	writeReports(settings, summary, allResults, logger)
	if err != nil {
		return err
	}

	fmt.Printf("migration %s finished in %s\n", migrationID, time.Since(start).Round(time.Second))
	return nil
}

func runUserPhase(
	ctx context.Context,
	settings *conf.Settings,
	migrationID string,
	store *idmap.Store,
	extractor *transform.Extractor,
	client *destination.Client,
	summary *report.Summary,
	logger *slog.Logger,
) ([]model.ImportResult, error) {
	tracker, err := phaseTracker(settings, migrationID, progress.PhaseUsers)
	if err != nil {
		return nil, err
	}

	users, err := extractor.Users(ctx)
	if err != nil {
		return nil, err
	}
	logger.Info("user phase starting", "total", len(users), "dry_run", settings.Import.DryRun)

	ui := importer.NewUserImporter(client, store, importer.UserConfig{
		DryRun:       settings.Import.DryRun,
		ItemDelay:    settings.Import.ItemDelay,
		MaxRetries:   settings.Import.MaxRetries,
		RetryBackoff: settings.Import.RetryBackoff,
	})
	userSummary, results, err := ui.Import(ctx, users, tracker)
	summary.Add(results)
	summary.AddSkipped(model.KindUser, userSummary.Skipped)
	if err != nil {
		// Leave the checkpoint in place for the next run.
		if !settings.Import.DryRun {
			if saveErr := tracker.SaveCheckpoint(); saveErr != nil {
				logger.Error("checkpoint save failed", "error", saveErr)
			}
		}
		return results, err
	}

	logger.Info("user phase complete",
		"created", userSummary.Created,
		"existing", userSummary.Existing,
		"skipped", userSummary.Skipped,
		"failed", userSummary.Failed)

	if !settings.Import.DryRun && tracker.Complete() {
		if err := tracker.DeleteCheckpoint(); err != nil {
			logger.Warn("checkpoint cleanup failed", "error", err)
		}
	}
	return results, nil
}

func runRecipePhase(
	ctx context.Context,
	settings *conf.Settings,
	migrationID string,
	store *idmap.Store,
	extractor *transform.Extractor,
	client *destination.Client,
	summary *report.Summary,
	start time.Time,
	logger *slog.Logger,
) ([]model.ImportResult, error) {
	tracker, err := phaseTracker(settings, migrationID, progress.PhaseRecipes)
	if err != nil {
		return nil, err
	}

	recipes, err := extractor.Recipes(ctx)
	if err != nil {
		return nil, err
	}
	rewritten, unresolved := transform.RewriteAuthors(recipes, store)
	if unresolved > 0 {
		logger.Warn("recipes with unresolved authors will fail validation",
			"rewritten", rewritten, "unresolved", unresolved)
	}

	records := make([]model.Record, len(recipes))
	for i, r := range recipes {
		records[i] = r
	}
	unimported, skipped := store.FilterUnimported(model.KindRecipe, records)
	summary.AddSkipped(model.KindRecipe, len(skipped))
	tracker.RecordSkipped(len(skipped))

	totalBatches := 0
	if settings.Import.BatchSize > 0 {
		totalBatches = (len(unimported) + settings.Import.BatchSize - 1) / settings.Import.BatchSize
	}
	pending := make([]int64, len(unimported))
	for i, rec := range unimported {
		pending[i] = rec.GetLegacyID()
	}
	tracker.BeginRun(pending, totalBatches)
	logger.Info("recipe phase starting",
		"total", len(unimported),
		"skipped", len(skipped),
		"batches", totalBatches)

	// Persist the assigned ids before the first network call so an
	// interrupted run retries with the same destination ids.
	if !settings.Import.DryRun {
		for _, rec := range unimported {
			store.MarkAttempted(model.KindRecipe, rec.GetLegacyID(), rec.GetID(), rec.Label())
		}
		if err := store.Save(); err != nil {
			return nil, err
		}
	}

	bi := importer.NewBatchImporter(client, importer.BatchConfig{
		BatchSize:    settings.Import.BatchSize,
		BatchDelay:   settings.Import.BatchDelay,
		StopOnError:  settings.Import.StopOnError,
		DryRun:       settings.Import.DryRun,
		MaxRetries:   settings.Import.MaxRetries,
		RetryBackoff: settings.Import.RetryBackoff,
	})

	processed := 0
	results, err := bi.Import(ctx, unimported, func(batch, total int, batchResults []model.ImportResult) {
		tracker.UpdateBatch(batch)
		for _, res := range batchResults {
			if res.Success && !settings.Import.DryRun {
				store.MarkImported(model.KindRecipe, res.LegacyID, res.NewID, res.Label)
			}
			if trackErr := tracker.RecordProcessed(res.LegacyID, res.Success, len(res.Warnings) > 0); trackErr != nil {
				logger.Error("progress update failed", "error", trackErr)
			}
		}
		processed += len(batchResults)

		// Commit mapping and checkpoint state at the batch boundary.
		// Dry runs keep their counters in memory only.
		if !settings.Import.DryRun {
			if saveErr := store.Save(); saveErr != nil {
				logger.Error("mapping save failed", "error", saveErr)
			}
			if saveErr := tracker.SaveCheckpoint(); saveErr != nil {
				logger.Error("checkpoint save failed", "error", saveErr)
			}
		}

		fmt.Printf("batch %d/%d: %s\n", batch, total, progressLine(processed, len(unimported), start))
	})
	summary.Add(results)
	if err != nil {
		return results, err
	}

	if len(results) < len(unimported) {
		return results, errors.Newf("stopped after a failing batch, %d of %d recipes attempted",
			len(results), len(unimported)).
			Component("migrate").
			Category(errors.CategoryGeneric).
			Build()
	}

	if !settings.Import.DryRun && tracker.Complete() {
		if err := tracker.DeleteCheckpoint(); err != nil {
			logger.Warn("checkpoint cleanup failed", "error", err)
		}
	}
	return results, nil
}

// phaseTracker resumes a phase from its checkpoint, or starts fresh. Dry
// runs get an in-memory tracker with auto-save disabled: they must not
// create, consume or overwrite resumable state.
func phaseTracker(settings *conf.Settings, migrationID string, phase progress.Phase) (*progress.Tracker, error) {
	if settings.Import.DryRun {
		return progress.NewTracker(settings.DataDir, migrationID, phase, 0), nil
	}
	tracker, err := progress.LoadCheckpoint(settings.DataDir, migrationID, phase, settings.Import.CheckpointEvery)
	if err != nil {
		return nil, err
	}
	if tracker == nil {
		tracker = progress.NewTracker(settings.DataDir, migrationID, phase, settings.Import.CheckpointEvery)
	}
	return tracker, nil
}

// writeReports emits the run artifacts; report failures are logged, not
// fatal, so they never mask the import outcome.
func writeReports(settings *conf.Settings, summary *report.Summary, results []model.ImportResult, logger *slog.Logger) {
	summary.Finish()
	gen := report.NewGenerator(filepath.Join(settings.DataDir, "reports"))

	if _, err := gen.WriteSummary(summary); err != nil {
		logger.Error("summary report failed", "error", err)
	}
	if _, err := gen.WriteSuccesses(results); err != nil {
		logger.Error("success report failed", "error", err)
	}
	if _, _, err := gen.WriteErrors(results); err != nil {
		logger.Error("error report failed", "error", err)
	}
}
