// Package report renders migration run artifacts: a machine-readable
// summary, a success log, error logs in both JSON and human-readable
// form, and the dry-run validation report. Files are timestamp-named so
// repeated runs accumulate instead of overwriting.
package report

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/tastebase/recipe-migrate/internal/atomicfile"
	"github.com/tastebase/recipe-migrate/internal/errors"
	"github.com/tastebase/recipe-migrate/internal/logging"
	"github.com/tastebase/recipe-migrate/internal/model"
	"github.com/tastebase/recipe-migrate/internal/validate"
)

// KindStats summarizes one entity type in the run summary.
type KindStats struct {
	Total     int `json:"total"`
	Succeeded int `json:"succeeded"`
	Failed    int `json:"failed"`
	Skipped   int `json:"skipped"`
	Warned    int `json:"warned"`
}

// Summary is the top-level artifact of a migration run.
type Summary struct {
	MigrationID string                          `json:"migrationId"`
	DryRun      bool                            `json:"dryRun"`
	StartedAt   time.Time                       `json:"startedAt"`
	FinishedAt  time.Time                       `json:"finishedAt"`
	Duration    string                          `json:"duration"`
	Kinds       map[model.RecordKind]*KindStats `json:"kinds"`
}

// NewSummary creates a summary shell for a run starting now.
func NewSummary(migrationID string, dryRun bool) *Summary {
	return &Summary{
		MigrationID: migrationID,
		DryRun:      dryRun,
		StartedAt:   time.Now().UTC(),
		Kinds:       make(map[model.RecordKind]*KindStats),
	}
}

// Add folds a slice of results into the per-kind counters.
func (s *Summary) Add(results []model.ImportResult) {
	for _, res := range results {
		stats := s.Kinds[res.Kind]
		if stats == nil {
			stats = &KindStats{}
			s.Kinds[res.Kind] = stats
		}
		stats.Total++
		if res.Success {
			stats.Succeeded++
		} else {
			stats.Failed++
		}
		if len(res.Warnings) > 0 {
			stats.Warned++
		}
	}
}

// AddSkipped counts records filtered out before import.
func (s *Summary) AddSkipped(kind model.RecordKind, count int) {
	stats := s.Kinds[kind]
	if stats == nil {
		stats = &KindStats{}
		s.Kinds[kind] = stats
	}
	stats.Total += count
	stats.Skipped += count
}

// Finish stamps the end time and duration.
func (s *Summary) Finish() {
	s.FinishedAt = time.Now().UTC()
	s.Duration = s.FinishedAt.Sub(s.StartedAt).Round(time.Millisecond).String()
}

// Generator writes report files into a single directory.
type Generator struct {
	dir    string
	logger *slog.Logger
	now    func() time.Time
}

// NewGenerator creates a generator rooted at dir. The directory is created
// on first write.
func NewGenerator(dir string) *Generator {
	return &Generator{
		dir:    dir,
		logger: logging.ForService("report"),
		now:    time.Now,
	}
}

func (g *Generator) stamp() string {
	return g.now().UTC().Format("20060102-150405")
}

// WriteArtifact writes raw content under a timestamped name and returns the
// final path. Prefix names the artifact, ext is the extension without dot.
func (g *Generator) WriteArtifact(prefix, ext string, data []byte) (string, error) {
	if err := os.MkdirAll(g.dir, 0o755); err != nil {
		return "", errors.New(fmt.Errorf("creating report directory: %w", err)).
			Component("report").
			Category(errors.CategoryFileIO).
			Build()
	}
	path := filepath.Join(g.dir, fmt.Sprintf("%s-%s.%s", prefix, g.stamp(), ext))
	if err := atomicfile.WriteFile(path, data, 0o644); err != nil {
		return "", errors.New(fmt.Errorf("writing %s report: %w", prefix, err)).
			Component("report").
			Category(errors.CategoryFileIO).
			Build()
	}
	g.logger.Info("report written", "path", path)
	return path, nil
}

func (g *Generator) writeJSON(prefix string, v any) (string, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "", errors.New(fmt.Errorf("marshaling %s report: %w", prefix, err)).
			Component("report").
			Category(errors.CategoryReport).
			Build()
	}
	return g.WriteArtifact(prefix, "json", data)
}

// WriteSummary writes the run summary as JSON.
func (g *Generator) WriteSummary(s *Summary) (string, error) {
	return g.writeJSON("migration-summary", s)
}

// WriteSuccesses writes the successful results, mapping legacy ids to the
// destination ids they received.
func (g *Generator) WriteSuccesses(results []model.ImportResult) (string, error) {
	successes := make([]model.ImportResult, 0, len(results))
	for _, res := range results {
		if res.Success {
			successes = append(successes, res)
		}
	}
	return g.writeJSON("import-successes", successes)
}

// WriteErrors writes the failed results twice: JSON for machines and a
// plain-text digest for the operator triaging the run. Returns both paths.
func (g *Generator) WriteErrors(results []model.ImportResult) (jsonPath, textPath string, err error) {
	failures := make([]model.ImportResult, 0)
	for _, res := range results {
		if !res.Success {
			failures = append(failures, res)
		}
	}

	jsonPath, err = g.writeJSON("import-errors", failures)
	if err != nil {
		return "", "", err
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Import errors: %d\n\n", len(failures))
	for _, res := range failures {
		fmt.Fprintf(&b, "[%s] %s #%d (%s)\n", res.ErrorKind, res.Kind, res.LegacyID, res.Label)
		fmt.Fprintf(&b, "    %s\n", res.Error)
		if res.RetryCount > 0 {
			fmt.Fprintf(&b, "    retries: %d\n", res.RetryCount)
		}
	}
	textPath, err = g.WriteArtifact("import-errors", "txt", []byte(b.String()))
	if err != nil {
		return "", "", err
	}
	return jsonPath, textPath, nil
}

// WriteValidation writes a dry-run validation report as JSON.
func (g *Generator) WriteValidation(rep *validate.Report) (string, error) {
	return g.writeJSON("validation-report", rep)
}
