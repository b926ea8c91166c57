package datastore

import (
	"context"
	"fmt"

	"gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/tastebase/recipe-migrate/internal/conf"
	"github.com/tastebase/recipe-migrate/internal/errors"
)

// DestUser maps the destination application's users table.
type DestUser struct {
	ID        string `gorm:"column:id;primaryKey"`
	Email     string `gorm:"column:email"`
	Username  string `gorm:"column:username"`
	FullName  string `gorm:"column:full_name"`
	AvatarURL string `gorm:"column:avatar_url"`
}

func (DestUser) TableName() string { return "users" }

// DestRecipe maps the destination application's recipes table.
type DestRecipe struct {
	ID          string `gorm:"column:id;primaryKey"`
	Title       string `gorm:"column:title"`
	Description string `gorm:"column:description"`
	AuthorID    string `gorm:"column:author_id"`
	Servings    int    `gorm:"column:servings"`
	PrepMinutes int    `gorm:"column:prep_minutes"`
	CookMinutes int    `gorm:"column:cook_minutes"`
	ImageURL    string `gorm:"column:image_url"`
	SourceURL   string `gorm:"column:source_url"`
}

func (DestRecipe) TableName() string { return "recipes" }

// DestInstruction maps one row of the destination recipe_instructions table.
type DestInstruction struct {
	RecipeID string `gorm:"column:recipe_id"`
	Position int    `gorm:"column:position"`
	Text     string `gorm:"column:text"`
}

func (DestInstruction) TableName() string { return "recipe_instructions" }

// DestIngredient maps one row of the destination recipe_ingredients table.
type DestIngredient struct {
	RecipeID string `gorm:"column:recipe_id"`
	Position int    `gorm:"column:position"`
	Text     string `gorm:"column:text"`
}

func (DestIngredient) TableName() string { return "recipe_ingredients" }

// DestTag maps one row of the destination recipe_tags table.
type DestTag struct {
	RecipeID string `gorm:"column:recipe_id"`
	Name     string `gorm:"column:name"`
}

func (DestTag) TableName() string { return "recipe_tags" }

// FieldCounts carries the population counters the field completeness
// check works from.
type FieldCounts struct {
	Total           int64
	WithTitle       int64
	WithAuthor      int64
	WithDescription int64
	WithImage       int64
}

// DestStore reads the destination database. Like the legacy store it is
// strictly read-only; writes belong to the HTTP API.
type DestStore struct {
	db *gorm.DB
}

// OpenDest connects to the destination database, SQLite or MySQL depending
// on the configured driver.
func OpenDest(cfg *conf.DestDBSettings, debug bool) (*DestStore, error) {
	gormCfg := &gorm.Config{Logger: createGormLogger(debug)}

	var db *gorm.DB
	var err error
	switch cfg.Driver {
	case "sqlite":
		db, err = gorm.Open(sqlite.Open(cfg.Path), gormCfg)
	case "mysql":
		dsn := fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=True&loc=Local",
			cfg.Username, cfg.Password, cfg.Host, cfg.Port, cfg.Database)
		db, err = gorm.Open(mysql.Open(dsn), gormCfg)
	default:
		return nil, errors.Newf("unsupported destination driver %q", cfg.Driver).
			Component("datastore").
			Category(errors.CategoryConfiguration).
			Build()
	}
	if err != nil {
		return nil, errors.New(fmt.Errorf("opening destination database: %w", err)).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Build()
	}
	return &DestStore{db: db}, nil
}

// NewDestStore wraps an existing connection. Used by tests.
func NewDestStore(db *gorm.DB) *DestStore {
	return &DestStore{db: db}
}

// Close releases the underlying connection pool.
func (s *DestStore) Close() error { return closeDB(s.db) }

// CountUsers returns the number of accounts in the destination.
func (s *DestStore) CountUsers(ctx context.Context) (int64, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&DestUser{}).Count(&n).Error
	return n, wrapQueryErr(err, "counting destination users")
}

// CountRecipes returns the number of recipes in the destination.
func (s *DestStore) CountRecipes(ctx context.Context) (int64, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&DestRecipe{}).Count(&n).Error
	return n, wrapQueryErr(err, "counting destination recipes")
}

// GetRecipe fetches one recipe by destination id. Returns (nil, nil) when
// the recipe does not exist, so spot checks can report absence distinctly
// from query failure.
func (s *DestStore) GetRecipe(ctx context.Context, id string) (*DestRecipe, error) {
	var recipe DestRecipe
	err := s.db.WithContext(ctx).First(&recipe, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, wrapQueryErr(err, fmt.Sprintf("fetching destination recipe %s", id))
	}
	return &recipe, nil
}

// GetUser fetches one account by destination id, (nil, nil) when missing.
func (s *DestStore) GetUser(ctx context.Context, id string) (*DestUser, error) {
	var user DestUser
	err := s.db.WithContext(ctx).First(&user, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, wrapQueryErr(err, fmt.Sprintf("fetching destination user %s", id))
	}
	return &user, nil
}

// InstructionsFor returns a recipe's instructions in position order.
func (s *DestStore) InstructionsFor(ctx context.Context, recipeID string) ([]DestInstruction, error) {
	var instructions []DestInstruction
	err := s.db.WithContext(ctx).
		Where("recipe_id = ?", recipeID).
		Order("position ASC").
		Find(&instructions).Error
	return instructions, wrapQueryErr(err, fmt.Sprintf("fetching instructions of destination recipe %s", recipeID))
}

// IngredientsFor returns a recipe's ingredients in position order.
func (s *DestStore) IngredientsFor(ctx context.Context, recipeID string) ([]DestIngredient, error) {
	var ingredients []DestIngredient
	err := s.db.WithContext(ctx).
		Where("recipe_id = ?", recipeID).
		Order("position ASC").
		Find(&ingredients).Error
	return ingredients, wrapQueryErr(err, fmt.Sprintf("fetching ingredients of destination recipe %s", recipeID))
}

// TagsFor returns a recipe's tag names, unordered.
func (s *DestStore) TagsFor(ctx context.Context, recipeID string) ([]string, error) {
	var tags []DestTag
	err := s.db.WithContext(ctx).Where("recipe_id = ?", recipeID).Find(&tags).Error
	if err != nil {
		return nil, wrapQueryErr(err, fmt.Sprintf("fetching tags of destination recipe %s", recipeID))
	}
	names := make([]string, len(tags))
	for i, t := range tags {
		names[i] = t.Name
	}
	return names, nil
}

// FieldCounts computes population counts over all destination recipes.
func (s *DestStore) FieldCounts(ctx context.Context) (*FieldCounts, error) {
	fc := &FieldCounts{}

	queries := []struct {
		dst  *int64
		cond string
	}{
		{&fc.Total, ""},
		{&fc.WithTitle, "title <> ''"},
		{&fc.WithAuthor, "author_id <> ''"},
		{&fc.WithDescription, "description <> ''"},
		{&fc.WithImage, "image_url <> ''"},
	}
	for _, q := range queries {
		tx := s.db.WithContext(ctx).Model(&DestRecipe{})
		if q.cond != "" {
			tx = tx.Where(q.cond)
		}
		if err := tx.Count(q.dst).Error; err != nil {
			return nil, wrapQueryErr(err, "counting destination recipe fields")
		}
	}
	return fc, nil
}
