package report

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tastebase/recipe-migrate/internal/errors"
	"github.com/tastebase/recipe-migrate/internal/model"
)

func sampleResults() []model.ImportResult {
	recipe := &model.TransformedRecipe{LegacyID: 1, ID: model.NewDestinationID(), Title: "Soup"}
	failed := &model.TransformedRecipe{LegacyID: 2, ID: model.NewDestinationID(), Title: "Stew"}
	user := &model.TransformedUser{LegacyID: 3, ID: model.NewDestinationID(), Email: "a@example.com"}

	ok := model.Succeeded(recipe, recipe.ID, 0)
	ok.Warnings = []string{"missing image"}
	bad := model.Failed(failed, errors.ValidationError("no ingredients"), 0)
	okUser := model.Succeeded(user, user.ID, 1)

	return []model.ImportResult{ok, bad, okUser}
}

func TestSummary(t *testing.T) {
	s := NewSummary("mig-001", false)
	s.Add(sampleResults())
	s.AddSkipped(model.KindRecipe, 5)
	s.Finish()

	recipes := s.Kinds[model.KindRecipe]
	require.NotNil(t, recipes)
	assert.Equal(t, 7, recipes.Total, "skipped records count toward the total")
	assert.Equal(t, 1, recipes.Succeeded)
	assert.Equal(t, 1, recipes.Failed)
	assert.Equal(t, 5, recipes.Skipped)
	assert.Equal(t, 1, recipes.Warned)

	users := s.Kinds[model.KindUser]
	require.NotNil(t, users)
	assert.Equal(t, 1, users.Succeeded)
	assert.NotEmpty(t, s.Duration, "finish must stamp a duration")
}

func TestGenerator_WriteSummary(t *testing.T) {
	dir := t.TempDir()
	g := NewGenerator(filepath.Join(dir, "reports"))

	s := NewSummary("mig-002", true)
	s.Add(sampleResults())
	s.Finish()

	path, err := g.WriteSummary(s)
	require.NoError(t, err, "write failed")
	assert.Contains(t, filepath.Base(path), "migration-summary-")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var got Summary
	require.NoError(t, json.Unmarshal(data, &got), "summary must round-trip")
	assert.Equal(t, "mig-002", got.MigrationID)
	assert.True(t, got.DryRun)
}

func TestGenerator_WriteErrors(t *testing.T) {
	g := NewGenerator(t.TempDir())

	jsonPath, textPath, err := g.WriteErrors(sampleResults())
	require.NoError(t, err, "write failed")

	data, err := os.ReadFile(jsonPath)
	require.NoError(t, err)
	var failures []model.ImportResult
	require.NoError(t, json.Unmarshal(data, &failures))
	require.Len(t, failures, 1, "only failures belong in the error log")
	assert.Equal(t, int64(2), failures[0].LegacyID)
	assert.Equal(t, model.ErrorKindValidation, failures[0].ErrorKind)

	text, err := os.ReadFile(textPath)
	require.NoError(t, err)
	assert.Contains(t, string(text), "Import errors: 1")
	assert.Contains(t, string(text), "no ingredients")
}

func TestGenerator_WriteSuccesses(t *testing.T) {
	g := NewGenerator(t.TempDir())

	path, err := g.WriteSuccesses(sampleResults())
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var successes []model.ImportResult
	require.NoError(t, json.Unmarshal(data, &successes))
	assert.Len(t, successes, 2, "only successes belong in the success log")
}

func TestGenerator_RunsAccumulate(t *testing.T) {
	g := NewGenerator(t.TempDir())
	stamps := []string{"20260101-000000", "20260101-000001"}
	g.now = func() time.Time {
		ts, _ := time.Parse("20060102-150405", stamps[0])
		stamps = stamps[1:]
		return ts
	}

	first, err := g.WriteArtifact("migration-summary", "json", []byte("{}"))
	require.NoError(t, err)
	second, err := g.WriteArtifact("migration-summary", "json", []byte("{}"))
	require.NoError(t, err)
	assert.NotEqual(t, first, second, "repeated runs must not overwrite")
}
