package importer

import (
	"context"
	"log/slog"
	"time"

	"github.com/tastebase/recipe-migrate/internal/destination"
	"github.com/tastebase/recipe-migrate/internal/errors"
	"github.com/tastebase/recipe-migrate/internal/idmap"
	"github.com/tastebase/recipe-migrate/internal/logging"
	"github.com/tastebase/recipe-migrate/internal/model"
	"github.com/tastebase/recipe-migrate/internal/progress"
	"github.com/tastebase/recipe-migrate/internal/validate"
)

// UserConfig holds the knobs of the account import path. Accounts are not
// batched; they get a per-item delay instead.
type UserConfig struct {
	DryRun       bool
	ItemDelay    time.Duration
	MaxRetries   int
	RetryBackoff time.Duration
}

// UserImportSummary aggregates one account import pass. Created and
// Existing are both successes; the destination decides which via the
// existed flag, since email, not legacy id, is the relevant uniqueness
// constraint for people.
type UserImportSummary struct {
	Total    int `json:"total"`
	Created  int `json:"created"`
	Existing int `json:"existing"`
	Skipped  int `json:"skipped"`
	Failed   int `json:"failed"`
}

// UserImporter imports accounts with email-based deduplication and keeps
// the idempotency store current after every attempt.
type UserImporter struct {
	client Submitter
	store  *idmap.Store
	cfg    UserConfig
	logger *slog.Logger
}

// NewUserImporter creates an account importer writing mappings to store.
func NewUserImporter(client Submitter, store *idmap.Store, cfg UserConfig) *UserImporter {
	return &UserImporter{
		client: client,
		store:  store,
		cfg:    cfg,
		logger: logging.ForService("importer"),
	}
}

// Import runs the account pass. Users already marked migrated are skipped
// entirely. Mappings are persisted before returning.
func (ui *UserImporter) Import(ctx context.Context, users []*model.TransformedUser, tracker *progress.Tracker) (*UserImportSummary, []model.ImportResult, error) {
	summary := &UserImportSummary{Total: len(users)}

	records := make([]model.Record, len(users))
	for i, u := range users {
		records[i] = u
	}
	unimported, skipped := ui.store.FilterUnimported(model.KindUser, records)
	summary.Skipped = len(skipped)
	if tracker != nil {
		tracker.RecordSkipped(len(skipped))
		pending := make([]int64, len(unimported))
		for i, rec := range unimported {
			pending[i] = rec.GetLegacyID()
		}
		tracker.BeginRun(pending, 1)
	}

	results := make([]model.ImportResult, 0, len(unimported))
	for i, rec := range unimported {
		if err := ctx.Err(); err != nil {
			return summary, results, errors.New(err).
				Component("importer").
				Category(errors.CategoryCancellation).
				Build()
		}

		user := rec.(*model.TransformedUser)
		result, existed := ui.importUser(ctx, user)
		results = append(results, result)

		if result.Success {
			if existed {
				summary.Existing++
			} else {
				summary.Created++
			}
			if !ui.cfg.DryRun {
				ui.store.MarkImported(model.KindUser, user.LegacyID, result.NewID, user.Email)
			}
		} else {
			summary.Failed++
			ui.logger.Warn("user import failed",
				"legacy_id", user.LegacyID,
				"error_type", string(result.ErrorKind),
				"error", result.Error)
		}
		if tracker != nil {
			if err := tracker.RecordProcessed(user.LegacyID, result.Success, len(result.Warnings) > 0); err != nil {
				return summary, results, err
			}
		}

		if i < len(unimported)-1 && ui.cfg.ItemDelay > 0 {
			timer := time.NewTimer(ui.cfg.ItemDelay)
			select {
			case <-ctx.Done():
				timer.Stop()
				return summary, results, errors.New(ctx.Err()).
					Component("importer").
					Category(errors.CategoryCancellation).
					Build()
			case <-timer.C:
			}
		}
	}

	// Dry runs must leave the mapping files untouched.
	if !ui.cfg.DryRun {
		if err := ui.store.Save(); err != nil {
			return summary, results, err
		}
	}
	return summary, results, nil
}

// importUser attempts one account. The returned existed flag mirrors the
// destination's response and is meaningless when the result is a failure.
func (ui *UserImporter) importUser(ctx context.Context, user *model.TransformedUser) (model.ImportResult, bool) {
	if ui.cfg.DryRun {
		errs, warnings := validate.Validate(user)
		if len(errs) > 0 {
			return model.Failed(user, errors.Join(errs...), 0), false
		}
		result := model.Succeeded(user, user.ID, 0)
		result.Warnings = warnings
		return result, false
	}

	ui.store.MarkAttempted(model.KindUser, user.LegacyID, user.ID, user.Email)

	var resp *destination.UserResponse
	retries, err := destination.Retry(ctx, func() error {
		var opErr error
		resp, opErr = ui.client.CreateUser(ctx, user)
		return opErr
	}, ui.cfg.MaxRetries, ui.cfg.RetryBackoff, nil)

	if err != nil {
		return model.Failed(user, err, retries), false
	}
	return model.Succeeded(user, resp.ID, retries), resp.Existed
}
