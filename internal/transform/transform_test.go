package transform

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/tastebase/recipe-migrate/internal/datastore"
	"github.com/tastebase/recipe-migrate/internal/idmap"
	"github.com/tastebase/recipe-migrate/internal/model"
)

func TestParseIngredient(t *testing.T) {
	t.Run("quantity unit name", func(t *testing.T) {
		ing := ParseIngredient(1, "2 cups flour")
		assert.True(t, ing.Parsed(), "expected a parsed ingredient")
		assert.InDelta(t, 2.0, ing.Quantity, 0.001)
		assert.Equal(t, "cups", ing.Unit)
		assert.Equal(t, "flour", ing.Name)
	})

	t.Run("note split off after comma", func(t *testing.T) {
		ing := ParseIngredient(1, "2 tbsp butter, softened")
		assert.Equal(t, "butter", ing.Name)
		assert.Equal(t, "softened", ing.Note)
		assert.Equal(t, "tbsp", ing.Unit)
	})

	t.Run("fractional quantity", func(t *testing.T) {
		ing := ParseIngredient(1, "1/2 tsp salt")
		assert.True(t, ing.Parsed())
		assert.InDelta(t, 0.5, ing.Quantity, 0.001)
	})

	t.Run("decimal comma quantity", func(t *testing.T) {
		ing := ParseIngredient(1, "0,5 l milk")
		assert.True(t, ing.Parsed())
		assert.InDelta(t, 0.5, ing.Quantity, 0.001)
	})

	t.Run("unparseable line kept raw", func(t *testing.T) {
		ing := ParseIngredient(3, "a generous glug of olive oil")
		assert.False(t, ing.Parsed(), "freeform text must not pretend to be parsed")
		assert.Equal(t, "a generous glug of olive oil", ing.Raw)
		assert.Equal(t, 3, ing.Position)
	})
}

func seededExtractor(t *testing.T) (*Extractor, *idmap.Store) {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "legacy.db")), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&datastore.LegacyUser{}, &datastore.LegacyRecipe{},
		&datastore.LegacyIngredient{}, &datastore.LegacyStep{}, &datastore.LegacyTag{}))

	require.NoError(t, db.Create(&datastore.LegacyUser{
		ID: 1, Email: "  Ann@Example.COM ", Username: "ann", DisplayName: "Ann A",
	}).Error)
	require.NoError(t, db.Create(&datastore.LegacyRecipe{
		ID: 10, Title: " Soup ", UserID: 1, Servings: 4, PrepTime: 10, CookTime: 20,
	}).Error)
	require.NoError(t, db.Create(&datastore.LegacyIngredient{
		RecipeID: 10, Position: 1, Text: "2 cups stock",
	}).Error)
	require.NoError(t, db.Create(&datastore.LegacyStep{
		RecipeID: 10, Position: 1, Instruction: "Simmer everything.",
	}).Error)
	require.NoError(t, db.Create(&datastore.LegacyTag{RecipeID: 10, Name: "soup"}).Error)

	ids := idmap.NewStore(t.TempDir())
	require.NoError(t, ids.Load())
	return NewExtractor(datastore.NewLegacyStore(db), ids), ids
}

func TestExtractor_Users(t *testing.T) {
	e, _ := seededExtractor(t)

	users, err := e.Users(context.Background())
	require.NoError(t, err)
	require.Len(t, users, 1)
	assert.Equal(t, "ann@example.com", users[0].Email, "email must be lowercased and trimmed")
	assert.NotEmpty(t, users[0].ID, "destination id must be pre-generated")
}

func TestExtractor_Recipes(t *testing.T) {
	e, _ := seededExtractor(t)

	recipes, err := e.Recipes(context.Background())
	require.NoError(t, err)
	require.Len(t, recipes, 1)

	r := recipes[0]
	assert.Equal(t, "Soup", r.Title, "title must be trimmed")
	assert.Equal(t, int64(1), r.LegacyAuthor)
	assert.Empty(t, r.AuthorID, "author resolves only after the user phase")
	require.Len(t, r.Ingredients, 1)
	assert.True(t, r.Ingredients[0].Parsed())
	require.Len(t, r.Instructions, 1)
	assert.Equal(t, []string{"soup"}, r.Tags)
	assert.Equal(t, 10, r.PrepMinutes)
}

func TestExtractor_ReusesAssignedIDs(t *testing.T) {
	e, ids := seededExtractor(t)

	// A previous failed attempt left a pending mapping behind.
	ids.MarkAttempted(model.KindRecipe, 10, "11111111-2222-3333-4444-555555555555", "Soup")

	recipes, err := e.Recipes(context.Background())
	require.NoError(t, err)
	require.Len(t, recipes, 1)
	assert.Equal(t, "11111111-2222-3333-4444-555555555555", recipes[0].ID,
		"retried import must reuse the assigned destination id")
}

func TestRewriteAuthors(t *testing.T) {
	ids := idmap.NewStore(t.TempDir())
	require.NoError(t, ids.Load())
	ids.MarkImported(model.KindUser, 1, "aaaa-bbbb", "ann@example.com")

	recipes := []*model.TransformedRecipe{
		{LegacyID: 10, LegacyAuthor: 1},
		{LegacyID: 11, LegacyAuthor: 99},
	}
	rewritten, unresolved := RewriteAuthors(recipes, ids)

	assert.Equal(t, 1, rewritten)
	assert.Equal(t, 1, unresolved)
	assert.Equal(t, "aaaa-bbbb", recipes[0].AuthorID)
	assert.Empty(t, recipes[1].AuthorID, "unresolved author must stay empty and fail validation later")
}
