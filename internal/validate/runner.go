package validate

import (
	"strings"

	"github.com/tastebase/recipe-migrate/internal/model"
)

// KindSummary counts validation outcomes for one entity type.
type KindSummary struct {
	Valid        int `json:"valid"`
	Invalid      int `json:"invalid"`
	WithWarnings int `json:"withWarnings"`
}

// Report is the standalone "would-import" artifact of a dry-run validation
// pass over the whole dataset.
type Report struct {
	Summaries map[model.RecordKind]*KindSummary `json:"summaries"`
	Results   []model.ImportResult              `json:"results"`
}

// Runner validates records offline and accumulates a report. It emits the
// same ImportResult shape as a live run so the report generator needs no
// branching between modes.
type Runner struct {
	report Report
}

// NewRunner creates an empty validation runner.
func NewRunner() *Runner {
	return &Runner{
		report: Report{
			Summaries: make(map[model.RecordKind]*KindSummary),
		},
	}
}

// Check validates one record and records the outcome. The pre-generated
// destination id serves as the synthetic new id on success.
func (r *Runner) Check(rec model.Record) model.ImportResult {
	errs, warnings := Validate(rec)

	summary := r.report.Summaries[rec.Kind()]
	if summary == nil {
		summary = &KindSummary{}
		r.report.Summaries[rec.Kind()] = summary
	}

	var result model.ImportResult
	if len(errs) == 0 {
		summary.Valid++
		result = model.Succeeded(rec, rec.GetID(), 0)
	} else {
		summary.Invalid++
		result = model.Failed(rec, joinErrors(errs), 0)
	}
	if len(warnings) > 0 {
		summary.WithWarnings++
		result.Warnings = warnings
	}

	r.report.Results = append(r.report.Results, result)
	return result
}

// Report returns the accumulated validation report.
func (r *Runner) Report() *Report {
	return &r.report
}

type multiError struct {
	errs []error
}

func (m *multiError) Error() string {
	parts := make([]string, len(m.errs))
	for i, err := range m.errs {
		parts[i] = err.Error()
	}
	return strings.Join(parts, "; ")
}

func (m *multiError) Unwrap() []error { return m.errs }

func joinErrors(errs []error) error {
	if len(errs) == 1 {
		return errs[0]
	}
	return &multiError{errs: errs}
}
