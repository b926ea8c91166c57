package verify

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/k3a/html2text"

	"github.com/tastebase/recipe-migrate/internal/datastore"
	"github.com/tastebase/recipe-migrate/internal/model"
)

// orderingDepth bounds how many leading ingredients and instructions the
// ordering check compares per recipe.
const orderingDepth = 3

var (
	tagPattern    = regexp.MustCompile(`</?[a-zA-Z][a-zA-Z0-9]*(?:\s[^<>]*)?/?>`)
	entityPattern = regexp.MustCompile(`&(?:amp|lt|gt|quot|apos|nbsp|#\d+);`)

	// UTF-8 text decoded as Latin-1 leaves these fingerprints behind.
	// Each entry is the multi-rune form one character takes after the
	// mis-decode: U+2019 (right single quote) encodes as three UTF-8
	// bytes, which Latin-1 reads as the runes U+00E2 U+20AC U+2122.
	// Kept as escapes so an editor cannot silently re-encode the table.
	mojibakeSequences = []string{
		"\u00e2\u20ac\u2122", // right single quote decoded as latin-1
		"\u00e2\u20ac\u0153", // left double quote
		"\u00e2\u20ac\u009d", // right double quote
		"\u00e2\u20ac\u201c", // en dash
		"\u00e2\u20ac\u201d", // em dash
		"\u00e2\u20ac\u00a6", // ellipsis
		"\u00c3\u00a9",        // e acute
		"\u00c3\u00a8",        // e grave
		"\u00c3\u00bc",        // u umlaut
		"\u00c3\u00b1",        // n tilde
		"\u00c3\u00a4",        // a umlaut
		"\u00c3\u00b6",        // o umlaut
		"\u00c2\u00b0",        // degree sign
		"\u00c2\u00bb",        // right angle quote
	}
)

// countArtifacts counts markup tags, escaped entities and mis-encoding
// fingerprints in one text field.
func countArtifacts(s string) int {
	n := len(tagPattern.FindAllString(s, -1))
	n += len(entityPattern.FindAllString(s, -1))
	for _, seq := range mojibakeSequences {
		n += strings.Count(s, seq)
	}
	return n
}

func severityFor(count int) Severity {
	switch {
	case count >= 4:
		return SeverityHigh
	case count >= 2:
		return SeverityMedium
	default:
		return SeverityLow
	}
}

// cleanExcerpt renders what the offending text should have looked like,
// bounded for report readability.
func cleanExcerpt(s string) string {
	clean := strings.TrimSpace(html2text.HTML2Text(s))
	if len(clean) > 80 {
		clean = clean[:80] + "..."
	}
	return clean
}

// normalizeText lowercases, strips markup and collapses whitespace so the
// ordering check compares content rather than formatting.
func normalizeText(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(html2text.HTML2Text(s))), " ")
}

// textMatches tolerates substring containment in either direction, since
// ingredient parsing may have reformatted the source text.
func textMatches(legacy, dest string) bool {
	a, b := normalizeText(legacy), normalizeText(dest)
	if a == "" || b == "" {
		return a == b
	}
	return strings.Contains(a, b) || strings.Contains(b, a)
}

func countStatus(ratio float64) Status {
	switch {
	case ratio >= 0.99:
		return StatusPass
	case ratio >= 0.90:
		return StatusWarning
	default:
		return StatusFail
	}
}

func (v *Verifier) checkCounts(ctx context.Context) ([]CountCheck, error) {
	type counter struct {
		table  string
		legacy func(context.Context) (int64, error)
		dest   func(context.Context) (int64, error)
	}
	counters := []counter{
		{"users", v.legacy.CountUsers, v.dest.CountUsers},
		{"recipes", v.legacy.CountRecipes, v.dest.CountRecipes},
	}

	checks := make([]CountCheck, 0, len(counters))
	for _, c := range counters {
		legacyN, err := c.legacy(ctx)
		if err != nil {
			return nil, err
		}
		destN, err := c.dest(ctx)
		if err != nil {
			return nil, err
		}

		ratio := 1.0
		if legacyN > 0 {
			ratio = float64(destN) / float64(legacyN)
		}
		checks = append(checks, CountCheck{
			Table:  c.table,
			Legacy: legacyN,
			Dest:   destN,
			Ratio:  ratio,
			Status: countStatus(ratio),
		})
	}
	return checks, nil
}

// mappedDest resolves a sampled legacy recipe to its destination row via
// the persisted mapping. A nil recipe with an empty issue detail means the
// caller should record its own issue.
func (v *Verifier) mappedDest(ctx context.Context, legacyID int64) (string, *datastore.DestRecipe, error) {
	destID, ok := v.mappings.NewID(model.KindRecipe, legacyID)
	if !ok {
		return "", nil, nil
	}
	recipe, err := v.dest.GetRecipe(ctx, destID)
	if err != nil {
		return "", nil, err
	}
	return destID, recipe, nil
}

func (v *Verifier) checkSpot(ctx context.Context, sample []datastore.LegacyRecipe) (SpotResult, error) {
	result := SpotResult{Sampled: len(sample)}

	for i := range sample {
		legacy := &sample[i]
		before := len(result.Issues)

		destID, destRecipe, err := v.mappedDest(ctx, legacy.ID)
		if err != nil {
			return result, err
		}
		switch {
		case destID == "":
			result.Issues = append(result.Issues, SpotIssue{
				LegacyID: legacy.ID, Field: "mapping",
				Detail: "no migrated mapping for sampled recipe",
			})
		case destRecipe == nil:
			result.Issues = append(result.Issues, SpotIssue{
				LegacyID: legacy.ID, DestID: destID, Field: "record",
				Detail: "mapped destination recipe does not exist",
			})
		default:
			issues, err := v.spotCompare(ctx, legacy, destRecipe)
			if err != nil {
				return result, err
			}
			result.Issues = append(result.Issues, issues...)
		}

		if len(result.Issues) > before {
			result.Flawed++
		}
	}

	// Spot checks are a sampling heuristic; they flag, the exhaustive
	// checks (counts, field population, ownership) fail.
	result.Status = StatusPass
	if result.Flawed > 0 {
		result.Status = StatusWarning
	}
	return result, nil
}

func (v *Verifier) spotCompare(ctx context.Context, legacy *datastore.LegacyRecipe, dest *datastore.DestRecipe) ([]SpotIssue, error) {
	var issues []SpotIssue
	add := func(field, detail string) {
		issues = append(issues, SpotIssue{
			LegacyID: legacy.ID, DestID: dest.ID, Field: field, Detail: detail,
		})
	}

	if legacy.Title != dest.Title {
		add("title", fmt.Sprintf("%q became %q", legacy.Title, dest.Title))
	}

	legacyIngredients, err := v.legacy.IngredientsFor(ctx, legacy.ID)
	if err != nil {
		return nil, err
	}
	destIngredients, err := v.dest.IngredientsFor(ctx, dest.ID)
	if err != nil {
		return nil, err
	}
	if len(legacyIngredients) != len(destIngredients) {
		add("ingredients", fmt.Sprintf("%d became %d", len(legacyIngredients), len(destIngredients)))
	}

	legacySteps, err := v.legacy.StepsFor(ctx, legacy.ID)
	if err != nil {
		return nil, err
	}
	destInstructions, err := v.dest.InstructionsFor(ctx, dest.ID)
	if err != nil {
		return nil, err
	}
	if len(legacySteps) != len(destInstructions) {
		add("instructions", fmt.Sprintf("%d became %d", len(legacySteps), len(destInstructions)))
	}

	if uuid.Validate(dest.AuthorID) != nil {
		add("author", fmt.Sprintf("author reference %q is not a valid uuid", dest.AuthorID))
	} else if found, err := v.lookupAuthor(ctx, dest.AuthorID); err != nil {
		return nil, err
	} else if !found {
		add("author", fmt.Sprintf("author %s does not exist in destination", dest.AuthorID))
	}

	legacyTags, err := v.legacy.TagsFor(ctx, legacy.ID)
	if err != nil {
		return nil, err
	}
	destTags, err := v.dest.TagsFor(ctx, dest.ID)
	if err != nil {
		return nil, err
	}
	if len(legacyTags) != len(destTags) {
		add("tags", fmt.Sprintf("%d became %d", len(legacyTags), len(destTags)))
	}

	if n := countArtifacts(dest.Title) + countArtifacts(dest.Description); n > 0 {
		add("text", fmt.Sprintf("%d markup or encoding artifacts", n))
	}

	return issues, nil
}

// lookupAuthor memoizes destination account existence checks.
func (v *Verifier) lookupAuthor(ctx context.Context, id string) (bool, error) {
	if found, ok := v.authorCache.Get(id); ok {
		return found.(bool), nil
	}
	user, err := v.dest.GetUser(ctx, id)
	if err != nil {
		return false, err
	}
	v.authorCache.SetDefault(id, user != nil)
	return user != nil, nil
}

func (v *Verifier) checkFields(ctx context.Context) ([]FieldCheck, error) {
	fc, err := v.dest.FieldCounts(ctx)
	if err != nil {
		return nil, err
	}

	rate := func(n int64) float64 {
		if fc.Total == 0 {
			return 1.0
		}
		return float64(n) / float64(fc.Total)
	}
	fieldStatus := func(r float64, required bool) Status {
		if required {
			if r >= 0.99 {
				return StatusPass
			}
			return StatusFail
		}
		if r >= 0.50 {
			return StatusPass
		}
		return StatusWarning
	}

	fields := []struct {
		name     string
		required bool
		n        int64
	}{
		{"title", true, fc.WithTitle},
		{"author", true, fc.WithAuthor},
		{"description", false, fc.WithDescription},
		{"image", false, fc.WithImage},
	}
	checks := make([]FieldCheck, 0, len(fields))
	for _, f := range fields {
		r := rate(f.n)
		checks = append(checks, FieldCheck{
			Field:    f.name,
			Required: f.required,
			Rate:     r,
			Status:   fieldStatus(r, f.required),
		})
	}
	return checks, nil
}

func (v *Verifier) checkArtifacts(ctx context.Context, sample []datastore.LegacyRecipe) (ArtifactResult, error) {
	result := ArtifactResult{}

	for i := range sample {
		_, destRecipe, err := v.mappedDest(ctx, sample[i].ID)
		if err != nil {
			return result, err
		}
		if destRecipe == nil {
			continue // spot check already reports the hole
		}
		result.Scanned++

		if n := countArtifacts(destRecipe.Description); n > 0 {
			result.Findings = append(result.Findings, ArtifactFinding{
				DestID:   destRecipe.ID,
				Field:    "description",
				Count:    n,
				Severity: severityFor(n),
				Sample:   cleanExcerpt(destRecipe.Description),
			})
		}

		instructions, err := v.dest.InstructionsFor(ctx, destRecipe.ID)
		if err != nil {
			return result, err
		}
		total := 0
		worst := ""
		for _, ins := range instructions {
			if n := countArtifacts(ins.Text); n > 0 {
				total += n
				if worst == "" {
					worst = ins.Text
				}
			}
		}
		if total > 0 {
			result.Findings = append(result.Findings, ArtifactFinding{
				DestID:   destRecipe.ID,
				Field:    "instructions",
				Count:    total,
				Severity: severityFor(total),
				Sample:   cleanExcerpt(worst),
			})
		}
	}

	result.Status = StatusPass
	for _, f := range result.Findings {
		if f.Severity == SeverityHigh {
			result.Status = StatusFail
			break
		}
		result.Status = StatusWarning
	}
	return result, nil
}

func (v *Verifier) checkOrdering(ctx context.Context, sample []datastore.LegacyRecipe) (OrderingResult, error) {
	result := OrderingResult{}

	for i := range sample {
		legacy := &sample[i]
		_, destRecipe, err := v.mappedDest(ctx, legacy.ID)
		if err != nil {
			return result, err
		}
		if destRecipe == nil {
			continue
		}
		result.Checked++

		legacyIngredients, err := v.legacy.IngredientsFor(ctx, legacy.ID)
		if err != nil {
			return result, err
		}
		destIngredients, err := v.dest.IngredientsFor(ctx, destRecipe.ID)
		if err != nil {
			return result, err
		}
		for pos := 0; pos < orderingDepth && pos < len(legacyIngredients) && pos < len(destIngredients); pos++ {
			if !textMatches(legacyIngredients[pos].Text, destIngredients[pos].Text) {
				result.Issues = append(result.Issues, OrderingIssue{
					LegacyID: legacy.ID,
					DestID:   destRecipe.ID,
					Kind:     "ingredient",
					Position: pos + 1,
					Legacy:   legacyIngredients[pos].Text,
					Dest:     destIngredients[pos].Text,
				})
			}
		}

		legacySteps, err := v.legacy.StepsFor(ctx, legacy.ID)
		if err != nil {
			return result, err
		}
		destInstructions, err := v.dest.InstructionsFor(ctx, destRecipe.ID)
		if err != nil {
			return result, err
		}
		for pos := 0; pos < orderingDepth && pos < len(legacySteps) && pos < len(destInstructions); pos++ {
			if !textMatches(legacySteps[pos].Instruction, destInstructions[pos].Text) {
				result.Issues = append(result.Issues, OrderingIssue{
					LegacyID: legacy.ID,
					DestID:   destRecipe.ID,
					Kind:     "instruction",
					Position: pos + 1,
					Legacy:   legacySteps[pos].Instruction,
					Dest:     destInstructions[pos].Text,
				})
			}
		}
	}

	result.Status = StatusPass
	if len(result.Issues) > 0 {
		result.Status = StatusWarning
	}
	return result, nil
}

func (v *Verifier) checkTags(ctx context.Context, sample []datastore.LegacyRecipe) (TagResult, error) {
	result := TagResult{}

	for i := range sample {
		legacy := &sample[i]
		_, destRecipe, err := v.mappedDest(ctx, legacy.ID)
		if err != nil {
			return result, err
		}
		if destRecipe == nil {
			continue
		}
		result.Checked++

		legacyTags, err := v.legacy.TagsFor(ctx, legacy.ID)
		if err != nil {
			return result, err
		}
		destTags, err := v.dest.TagsFor(ctx, destRecipe.ID)
		if err != nil {
			return result, err
		}

		missing, extra := setDiff(legacyTags, destTags)
		if len(missing) > 0 || len(extra) > 0 {
			result.Issues = append(result.Issues, TagIssue{
				LegacyID: legacy.ID,
				DestID:   destRecipe.ID,
				Missing:  missing,
				Extra:    extra,
			})
		}
	}

	result.Status = StatusPass
	if len(result.Issues) > 0 {
		result.Status = StatusWarning
	}
	return result, nil
}

// setDiff returns the tags present only in a (missing downstream) and only
// in b (extra downstream), both sorted.
func setDiff(a, b []string) (missing, extra []string) {
	inA := make(map[string]struct{}, len(a))
	for _, s := range a {
		inA[s] = struct{}{}
	}
	inB := make(map[string]struct{}, len(b))
	for _, s := range b {
		inB[s] = struct{}{}
	}
	for s := range inA {
		if _, ok := inB[s]; !ok {
			missing = append(missing, s)
		}
	}
	for s := range inB {
		if _, ok := inA[s]; !ok {
			extra = append(extra, s)
		}
	}
	sort.Strings(missing)
	sort.Strings(extra)
	return missing, extra
}

func (v *Verifier) checkOwnership(ctx context.Context, sample []datastore.LegacyRecipe) (OwnershipResult, error) {
	result := OwnershipResult{}
	mismatched := false

	for i := range sample {
		legacy := &sample[i]
		_, destRecipe, err := v.mappedDest(ctx, legacy.ID)
		if err != nil {
			return result, err
		}
		if destRecipe == nil {
			continue
		}
		result.Checked++

		expected, ok := v.mappings.NewID(model.KindUser, legacy.UserID)
		if !ok {
			result.Issues = append(result.Issues, OwnershipIssue{
				LegacyID:      legacy.ID,
				DestID:        destRecipe.ID,
				Actual:        destRecipe.AuthorID,
				MappingAbsent: true,
			})
			continue
		}
		if expected != destRecipe.AuthorID {
			mismatched = true
			result.Issues = append(result.Issues, OwnershipIssue{
				LegacyID: legacy.ID,
				DestID:   destRecipe.ID,
				Expected: expected,
				Actual:   destRecipe.AuthorID,
			})
		}
	}

	switch {
	case mismatched:
		result.Status = StatusFail
	case len(result.Issues) > 0:
		result.Status = StatusWarning
	default:
		result.Status = StatusPass
	}
	return result, nil
}
