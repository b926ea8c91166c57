// Package verify runs the post-migration checks: it compares the legacy
// and destination stores through read-only connections, using the
// persisted id mappings rather than re-deriving them, and rolls the
// outcome up into a single deployment-gating verdict.
package verify

import (
	"context"
	"log/slog"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/tastebase/recipe-migrate/internal/datastore"
	"github.com/tastebase/recipe-migrate/internal/idmap"
	"github.com/tastebase/recipe-migrate/internal/logging"
)

// Status is the verdict of one check, and of the run as a whole.
type Status string

const (
	StatusPass    Status = "pass"
	StatusWarning Status = "warning"
	StatusFail    Status = "fail"
)

// Severity grades one artifact finding.
type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// CountCheck compares one table's row counts across stores.
type CountCheck struct {
	Table  string  `json:"table"`
	Legacy int64   `json:"legacy"`
	Dest   int64   `json:"dest"`
	Ratio  float64 `json:"ratio"`
	Status Status  `json:"status"`
}

// SpotIssue is one discrepancy found while spot-checking a sampled recipe.
type SpotIssue struct {
	LegacyID int64  `json:"legacyId"`
	DestID   string `json:"destId,omitempty"`
	Field    string `json:"field"`
	Detail   string `json:"detail"`
}

// SpotResult aggregates the spot-check pass over the sample.
type SpotResult struct {
	Sampled int         `json:"sampled"`
	Flawed  int         `json:"flawed"` // sampled records with at least one issue
	Issues  []SpotIssue `json:"issues"`
	Status  Status      `json:"status"`
}

// FieldCheck reports one destination field's population rate.
type FieldCheck struct {
	Field    string  `json:"field"`
	Required bool    `json:"required"`
	Rate     float64 `json:"rate"`
	Status   Status  `json:"status"`
}

// ArtifactFinding is one text field carrying residual markup or
// mis-decoded byte sequences.
type ArtifactFinding struct {
	DestID   string   `json:"destId"`
	Field    string   `json:"field"`
	Count    int      `json:"count"`
	Severity Severity `json:"severity"`
	Sample   string   `json:"sample,omitempty"`
}

// ArtifactResult aggregates the artifact scan.
type ArtifactResult struct {
	Scanned  int               `json:"scanned"`
	Findings []ArtifactFinding `json:"findings"`
	Status   Status            `json:"status"`
}

// OrderingIssue is one positional mismatch in the leading ingredients or
// instructions of a sampled recipe.
type OrderingIssue struct {
	LegacyID int64  `json:"legacyId"`
	DestID   string `json:"destId"`
	Kind     string `json:"kind"` // "ingredient" or "instruction"
	Position int    `json:"position"`
	Legacy   string `json:"legacy"`
	Dest     string `json:"dest"`
}

// OrderingResult aggregates the ordering pass.
type OrderingResult struct {
	Checked int             `json:"checked"`
	Issues  []OrderingIssue `json:"issues"`
	Status  Status          `json:"status"`
}

// TagIssue is the tag set difference of one sampled recipe.
type TagIssue struct {
	LegacyID int64    `json:"legacyId"`
	DestID   string   `json:"destId"`
	Missing  []string `json:"missing,omitempty"`
	Extra    []string `json:"extra,omitempty"`
}

// TagResult aggregates the tag association pass.
type TagResult struct {
	Checked int        `json:"checked"`
	Issues  []TagIssue `json:"issues"`
	Status  Status     `json:"status"`
}

// OwnershipIssue flags a sampled recipe whose stored author does not match
// the author the id mapping predicts. MappingAbsent distinguishes a hole
// in the mapping from a present-but-wrong entry.
type OwnershipIssue struct {
	LegacyID      int64  `json:"legacyId"`
	DestID        string `json:"destId"`
	Expected      string `json:"expected,omitempty"`
	Actual        string `json:"actual"`
	MappingAbsent bool   `json:"mappingAbsent"`
}

// OwnershipResult aggregates the ownership pass.
type OwnershipResult struct {
	Checked int              `json:"checked"`
	Issues  []OwnershipIssue `json:"issues"`
	Status  Status           `json:"status"`
}

// Result is the full verification report.
type Result struct {
	RanAt      time.Time       `json:"ranAt"`
	SampleSize int             `json:"sampleSize"`
	Counts     []CountCheck    `json:"counts"`
	Spot       SpotResult      `json:"spotChecks"`
	Fields     []FieldCheck    `json:"fieldPopulation"`
	Artifacts  ArtifactResult  `json:"htmlArtifacts"`
	Ordering   OrderingResult  `json:"ordering"`
	Tags       TagResult       `json:"tagAssociations"`
	Ownership  OwnershipResult `json:"userOwnership"`
	Overall    Status          `json:"overall"`
}

// Statuses lists every check-level status feeding the rollup.
func (r *Result) Statuses() []Status {
	statuses := make([]Status, 0, len(r.Counts)+len(r.Fields)+5)
	for _, c := range r.Counts {
		statuses = append(statuses, c.Status)
	}
	for _, f := range r.Fields {
		statuses = append(statuses, f.Status)
	}
	statuses = append(statuses,
		r.Spot.Status, r.Artifacts.Status, r.Ordering.Status,
		r.Tags.Status, r.Ownership.Status)
	return statuses
}

// Rollup folds check statuses into the overall verdict: any failure wins,
// then any warning, otherwise pass. Downstream tooling gates deployments
// on this exact rule.
func Rollup(statuses []Status) Status {
	overall := StatusPass
	for _, s := range statuses {
		switch s {
		case StatusFail:
			return StatusFail
		case StatusWarning:
			overall = StatusWarning
		case StatusPass:
		}
	}
	return overall
}

// Verifier wires the two stores and the id mapping together.
type Verifier struct {
	legacy     *datastore.LegacyStore
	dest       *datastore.DestStore
	mappings   *idmap.Store
	sampleSize int
	logger     *slog.Logger

	// authorCache memoizes destination user lookups; sampled recipes
	// cluster heavily on a few prolific authors.
	authorCache *cache.Cache
}

// New creates a verifier sampling sampleSize recipes per sampled check.
func New(legacy *datastore.LegacyStore, dest *datastore.DestStore, mappings *idmap.Store, sampleSize int) *Verifier {
	return &Verifier{
		legacy:      legacy,
		dest:        dest,
		mappings:    mappings,
		sampleSize:  sampleSize,
		logger:      logging.ForService("verify"),
		authorCache: cache.New(5*time.Minute, 10*time.Minute),
	}
}

// Run executes all seven checks and computes the overall verdict. Query
// failures abort the run; a verification that cannot read either store
// has nothing trustworthy to report.
func (v *Verifier) Run(ctx context.Context) (*Result, error) {
	result := &Result{
		RanAt:      time.Now().UTC(),
		SampleSize: v.sampleSize,
	}

	counts, err := v.checkCounts(ctx)
	if err != nil {
		return nil, err
	}
	result.Counts = counts

	sample, err := v.legacy.SampleRecipes(ctx, v.sampleSize)
	if err != nil {
		return nil, err
	}

	if result.Spot, err = v.checkSpot(ctx, sample); err != nil {
		return nil, err
	}
	if result.Fields, err = v.checkFields(ctx); err != nil {
		return nil, err
	}
	if result.Artifacts, err = v.checkArtifacts(ctx, sample); err != nil {
		return nil, err
	}
	if result.Ordering, err = v.checkOrdering(ctx, sample); err != nil {
		return nil, err
	}
	if result.Tags, err = v.checkTags(ctx, sample); err != nil {
		return nil, err
	}
	if result.Ownership, err = v.checkOwnership(ctx, sample); err != nil {
		return nil, err
	}

	result.Overall = Rollup(result.Statuses())
	v.logger.Info("verification complete",
		"overall", string(result.Overall),
		"sampled", len(sample))
	return result, nil
}
