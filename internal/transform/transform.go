// Package transform turns legacy store rows into importable records:
// cleans text, parses ingredient lines, assigns destination ids (reusing
// previously assigned ones so retried imports stay idempotent) and carries
// legacy author references for later rewriting.
package transform

import (
	"context"
	"regexp"
	"strconv"
	"strings"

	"github.com/tastebase/recipe-migrate/internal/datastore"
	"github.com/tastebase/recipe-migrate/internal/idmap"
	"github.com/tastebase/recipe-migrate/internal/model"
)

// quantityPattern matches ingredient lines of the form
// "<number> <unit> <name>" with an optional ", note" suffix.
var quantityPattern = regexp.MustCompile(`^(\d+(?:[.,]\d+)?(?:/\d+)?)\s+(\S+)\s+(.+)$`)

// ParseIngredient splits one raw ingredient line. Lines that do not fit
// the quantity-unit-name shape are kept verbatim in Raw so nothing is lost.
func ParseIngredient(position int, raw string) model.Ingredient {
	raw = strings.TrimSpace(raw)

	m := quantityPattern.FindStringSubmatch(raw)
	if m == nil {
		return model.Ingredient{Position: position, Raw: raw}
	}

	quantity, err := parseQuantity(m[1])
	if err != nil {
		return model.Ingredient{Position: position, Raw: raw}
	}

	name, note := m[3], ""
	if idx := strings.Index(name, ","); idx >= 0 {
		name, note = strings.TrimSpace(name[:idx]), strings.TrimSpace(name[idx+1:])
	}
	return model.Ingredient{
		Position: position,
		Quantity: quantity,
		Unit:     m[2],
		Name:     name,
		Note:     note,
	}
}

func parseQuantity(s string) (float64, error) {
	s = strings.ReplaceAll(s, ",", ".")
	if num, den, ok := strings.Cut(s, "/"); ok {
		n, err := strconv.ParseFloat(num, 64)
		if err != nil {
			return 0, err
		}
		d, err := strconv.ParseFloat(den, 64)
		if err != nil || d == 0 {
			return 0, err
		}
		return n / d, nil
	}
	return strconv.ParseFloat(s, 64)
}

// Extractor pulls legacy rows and produces importable records.
type Extractor struct {
	legacy *datastore.LegacyStore
	ids    *idmap.Store
}

// NewExtractor creates an extractor reading from legacy and reusing ids
// already assigned in the mapping store.
func NewExtractor(legacy *datastore.LegacyStore, ids *idmap.Store) *Extractor {
	return &Extractor{legacy: legacy, ids: ids}
}

func (e *Extractor) destinationID(kind model.RecordKind, legacyID int64) string {
	if id, ok := e.ids.AssignedID(kind, legacyID); ok {
		return id
	}
	return model.NewDestinationID()
}

// Users extracts every legacy account as an importable record.
func (e *Extractor) Users(ctx context.Context) ([]*model.TransformedUser, error) {
	rows, err := e.legacy.AllUsers(ctx)
	if err != nil {
		return nil, err
	}

	users := make([]*model.TransformedUser, 0, len(rows))
	for i := range rows {
		row := &rows[i]
		users = append(users, &model.TransformedUser{
			LegacyID:  row.ID,
			ID:        e.destinationID(model.KindUser, row.ID),
			Email:     strings.ToLower(strings.TrimSpace(row.Email)),
			Username:  strings.TrimSpace(row.Username),
			FullName:  strings.TrimSpace(row.DisplayName),
			AvatarURL: row.AvatarPath,
		})
	}
	return users, nil
}

// Recipes extracts every legacy recipe with its ingredients, steps and
// tags. AuthorID is left empty; the orchestrator rewrites it once the user
// phase has produced the author mapping.
func (e *Extractor) Recipes(ctx context.Context) ([]*model.TransformedRecipe, error) {
	rows, err := e.legacy.AllRecipes(ctx)
	if err != nil {
		return nil, err
	}

	recipes := make([]*model.TransformedRecipe, 0, len(rows))
	for i := range rows {
		row := &rows[i]
		recipe := &model.TransformedRecipe{
			LegacyID:     row.ID,
			ID:           e.destinationID(model.KindRecipe, row.ID),
			Title:        strings.TrimSpace(row.Title),
			Description:  strings.TrimSpace(row.Description),
			LegacyAuthor: row.UserID,
			Servings:     row.Servings,
			PrepMinutes:  row.PrepTime,
			CookMinutes:  row.CookTime,
			ImageURL:     row.ImagePath,
			SourceURL:    row.SourceURL,
		}

		ingredients, err := e.legacy.IngredientsFor(ctx, row.ID)
		if err != nil {
			return nil, err
		}
		for _, ing := range ingredients {
			recipe.Ingredients = append(recipe.Ingredients, ParseIngredient(ing.Position, ing.Text))
		}

		steps, err := e.legacy.StepsFor(ctx, row.ID)
		if err != nil {
			return nil, err
		}
		for _, step := range steps {
			recipe.Instructions = append(recipe.Instructions, model.Instruction{
				Position: step.Position,
				Text:     strings.TrimSpace(step.Instruction),
			})
		}

		tags, err := e.legacy.TagsFor(ctx, row.ID)
		if err != nil {
			return nil, err
		}
		recipe.Tags = tags

		recipes = append(recipes, recipe)
	}
	return recipes, nil
}

// RewriteAuthors resolves each recipe's destination author id through the
// user mapping. Recipes whose author has no migrated mapping keep an empty
// AuthorID and fail structural validation downstream instead of being
// silently attributed to nobody.
func RewriteAuthors(recipes []*model.TransformedRecipe, ids *idmap.Store) (rewritten, unresolved int) {
	for _, recipe := range recipes {
		if id, ok := ids.NewID(model.KindUser, recipe.LegacyAuthor); ok {
			recipe.AuthorID = id
			rewritten++
		} else {
			unresolved++
		}
	}
	return rewritten, unresolved
}
