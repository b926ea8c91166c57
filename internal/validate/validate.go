// Package validate performs the structural checks a real submission would
// require, without network calls. The live importer's dry-run mode calls
// the same functions, so no record can pass one path and fail the other.
package validate

import (
	"strings"

	"github.com/tastebase/recipe-migrate/internal/errors"
	"github.com/tastebase/recipe-migrate/internal/model"
)

const shortInstructionLength = 10

// ValidateRecipe returns the blocking structural errors for a recipe.
func ValidateRecipe(r *model.TransformedRecipe) []error {
	var errs []error
	if strings.TrimSpace(r.Title) == "" {
		errs = append(errs, errors.ValidationError("recipe title must not be empty"))
	}
	if len(r.Ingredients) == 0 {
		errs = append(errs, errors.ValidationError("recipe must have at least one ingredient"))
	}
	if len(r.Instructions) == 0 {
		errs = append(errs, errors.ValidationError("recipe must have at least one instruction"))
	}
	if strings.TrimSpace(r.AuthorID) == "" {
		errs = append(errs, errors.ValidationError("recipe must reference an author"))
	}
	return errs
}

// ValidateUser returns the blocking structural errors for a user.
func ValidateUser(u *model.TransformedUser) []error {
	var errs []error
	if strings.TrimSpace(u.Email) == "" {
		errs = append(errs, errors.ValidationError("user email must not be empty"))
	} else if !strings.Contains(u.Email, "@") {
		errs = append(errs, errors.ValidationError("user email is not an email address"))
	}
	if strings.TrimSpace(u.Username) == "" {
		errs = append(errs, errors.ValidationError("user must have a username"))
	}
	return errs
}

// RecipeWarnings returns non-blocking findings: missing optional fields,
// suspiciously short instructions, ingredients the parser could not split.
func RecipeWarnings(r *model.TransformedRecipe) []string {
	var warnings []string
	if strings.TrimSpace(r.Description) == "" {
		warnings = append(warnings, "missing description")
	}
	if r.ImageURL == "" {
		warnings = append(warnings, "missing image")
	}
	if len(r.Tags) == 0 {
		warnings = append(warnings, "no tags")
	}
	for _, ins := range r.Instructions {
		if len(strings.TrimSpace(ins.Text)) < shortInstructionLength {
			warnings = append(warnings, "suspiciously short instruction")
			break
		}
	}
	unparsed := 0
	for i := range r.Ingredients {
		if !r.Ingredients[i].Parsed() {
			unparsed++
		}
	}
	if unparsed > 0 {
		warnings = append(warnings, "unparsed ingredients")
	}
	return warnings
}

// UserWarnings returns non-blocking findings for a user.
func UserWarnings(u *model.TransformedUser) []string {
	var warnings []string
	if strings.TrimSpace(u.FullName) == "" {
		warnings = append(warnings, "missing full name")
	}
	return warnings
}

// Validate dispatches on the record kind.
func Validate(rec model.Record) (errs []error, warnings []string) {
	switch r := rec.(type) {
	case *model.TransformedUser:
		return ValidateUser(r), UserWarnings(r)
	case *model.TransformedRecipe:
		return ValidateRecipe(r), RecipeWarnings(r)
	default:
		return []error{errors.ValidationError("unknown record kind")}, nil
	}
}
