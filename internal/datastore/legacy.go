package datastore

import (
	"context"
	"fmt"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"

	"github.com/tastebase/recipe-migrate/internal/conf"
	"github.com/tastebase/recipe-migrate/internal/errors"
)

// LegacyUser maps the legacy site's users table.
type LegacyUser struct {
	ID          int64  `gorm:"column:id;primaryKey"`
	Email       string `gorm:"column:email"`
	Username    string `gorm:"column:username"`
	DisplayName string `gorm:"column:display_name"`
	AvatarPath  string `gorm:"column:avatar_path"`
}

func (LegacyUser) TableName() string { return "users" }

// LegacyRecipe maps the legacy site's recipes table.
type LegacyRecipe struct {
	ID          int64  `gorm:"column:id;primaryKey"`
	Title       string `gorm:"column:title"`
	Description string `gorm:"column:description"`
	UserID      int64  `gorm:"column:user_id"`
	Servings    int    `gorm:"column:servings"`
	PrepTime    int    `gorm:"column:prep_time"`
	CookTime    int    `gorm:"column:cook_time"`
	ImagePath   string `gorm:"column:image_path"`
	SourceURL   string `gorm:"column:source_url"`
}

func (LegacyRecipe) TableName() string { return "recipes" }

// LegacyIngredient maps one row of the legacy recipe_ingredients table.
type LegacyIngredient struct {
	RecipeID int64  `gorm:"column:recipe_id"`
	Position int    `gorm:"column:position"`
	Text     string `gorm:"column:text"`
}

func (LegacyIngredient) TableName() string { return "recipe_ingredients" }

// LegacyStep maps one row of the legacy recipe_steps table.
type LegacyStep struct {
	RecipeID    int64  `gorm:"column:recipe_id"`
	Position    int    `gorm:"column:position"`
	Instruction string `gorm:"column:instruction"`
}

func (LegacyStep) TableName() string { return "recipe_steps" }

// LegacyTag maps one row of the legacy recipe_tags table.
type LegacyTag struct {
	RecipeID int64  `gorm:"column:recipe_id"`
	Name     string `gorm:"column:name"`
}

func (LegacyTag) TableName() string { return "recipe_tags" }

// LegacyStore reads the legacy database. It is strictly read-only.
type LegacyStore struct {
	db *gorm.DB
}

// OpenLegacy connects to the legacy MySQL database.
func OpenLegacy(cfg *conf.LegacyDBSettings, debug bool) (*LegacyStore, error) {
	dsn := fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=True&loc=Local",
		cfg.Username, cfg.Password, cfg.Host, cfg.Port, cfg.Database)

	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{Logger: createGormLogger(debug)})
	if err != nil {
		return nil, errors.New(fmt.Errorf("opening legacy database: %w", err)).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Build()
	}
	return &LegacyStore{db: db}, nil
}

// NewLegacyStore wraps an existing connection. Used by tests to run the
// store against SQLite.
func NewLegacyStore(db *gorm.DB) *LegacyStore {
	return &LegacyStore{db: db}
}

// Close releases the underlying connection pool.
func (s *LegacyStore) Close() error { return closeDB(s.db) }

// CountUsers returns the number of accounts in the legacy database.
func (s *LegacyStore) CountUsers(ctx context.Context) (int64, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&LegacyUser{}).Count(&n).Error
	return n, wrapQueryErr(err, "counting legacy users")
}

// CountRecipes returns the number of recipes in the legacy database.
func (s *LegacyStore) CountRecipes(ctx context.Context) (int64, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&LegacyRecipe{}).Count(&n).Error
	return n, wrapQueryErr(err, "counting legacy recipes")
}

// AllUsers returns every account, in id order.
func (s *LegacyStore) AllUsers(ctx context.Context) ([]LegacyUser, error) {
	var users []LegacyUser
	err := s.db.WithContext(ctx).Order("id ASC").Find(&users).Error
	return users, wrapQueryErr(err, "fetching legacy users")
}

// AllRecipes returns every recipe, in id order.
func (s *LegacyStore) AllRecipes(ctx context.Context) ([]LegacyRecipe, error) {
	var recipes []LegacyRecipe
	err := s.db.WithContext(ctx).Order("id ASC").Find(&recipes).Error
	return recipes, wrapQueryErr(err, "fetching legacy recipes")
}

// SampleRecipes returns up to n randomly chosen recipes.
func (s *LegacyStore) SampleRecipes(ctx context.Context, n int) ([]LegacyRecipe, error) {
	var recipes []LegacyRecipe
	err := s.db.WithContext(ctx).Order(randomOrder(s.db)).Limit(n).Find(&recipes).Error
	return recipes, wrapQueryErr(err, "sampling legacy recipes")
}

// GetRecipe fetches one recipe by legacy id.
func (s *LegacyStore) GetRecipe(ctx context.Context, id int64) (*LegacyRecipe, error) {
	var recipe LegacyRecipe
	err := s.db.WithContext(ctx).First(&recipe, "id = ?", id).Error
	if err != nil {
		return nil, wrapQueryErr(err, fmt.Sprintf("fetching legacy recipe %d", id))
	}
	return &recipe, nil
}

// GetUser fetches one account by legacy id.
func (s *LegacyStore) GetUser(ctx context.Context, id int64) (*LegacyUser, error) {
	var user LegacyUser
	err := s.db.WithContext(ctx).First(&user, "id = ?", id).Error
	if err != nil {
		return nil, wrapQueryErr(err, fmt.Sprintf("fetching legacy user %d", id))
	}
	return &user, nil
}

// StepsFor returns a recipe's instructions in position order.
func (s *LegacyStore) StepsFor(ctx context.Context, recipeID int64) ([]LegacyStep, error) {
	var steps []LegacyStep
	err := s.db.WithContext(ctx).
		Where("recipe_id = ?", recipeID).
		Order("position ASC").
		Find(&steps).Error
	return steps, wrapQueryErr(err, fmt.Sprintf("fetching steps of legacy recipe %d", recipeID))
}

// IngredientsFor returns a recipe's ingredients in position order.
func (s *LegacyStore) IngredientsFor(ctx context.Context, recipeID int64) ([]LegacyIngredient, error) {
	var ingredients []LegacyIngredient
	err := s.db.WithContext(ctx).
		Where("recipe_id = ?", recipeID).
		Order("position ASC").
		Find(&ingredients).Error
	return ingredients, wrapQueryErr(err, fmt.Sprintf("fetching ingredients of legacy recipe %d", recipeID))
}

// TagsFor returns a recipe's tag names, unordered.
func (s *LegacyStore) TagsFor(ctx context.Context, recipeID int64) ([]string, error) {
	var tags []LegacyTag
	err := s.db.WithContext(ctx).Where("recipe_id = ?", recipeID).Find(&tags).Error
	if err != nil {
		return nil, wrapQueryErr(err, fmt.Sprintf("fetching tags of legacy recipe %d", recipeID))
	}
	names := make([]string, len(tags))
	for i, t := range tags {
		names[i] = t.Name
	}
	return names, nil
}

// randomOrder picks the dialect's random-sort expression. MySQL and SQLite
// disagree on the function name.
func randomOrder(db *gorm.DB) string {
	if db.Dialector.Name() == "mysql" {
		return "RAND()"
	}
	return "RANDOM()"
}

func wrapQueryErr(err error, op string) error {
	if err == nil {
		return nil
	}
	return errors.New(fmt.Errorf("%s: %w", op, err)).
		Component("datastore").
		Category(errors.CategoryDatabase).
		Build()
}
