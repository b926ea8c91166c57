// Package model defines the records flowing through the migration pipeline.
// All business fields arrive already normalized by the upstream transform
// stage; this package only carries them.
package model

import (
	"github.com/google/uuid"
)

// RecordKind identifies the entity type of an importable record. It keys
// the per-type mapping files and checkpoint phases.
type RecordKind string

const (
	KindUser   RecordKind = "users"
	KindRecipe RecordKind = "recipes"
)

// Record is any entity submitted for migration. The legacy id is the
// source of truth for deduplication and reporting; the destination id is
// pre-generated before the first network call so retries are idempotent
// at the destination too.
type Record interface {
	Kind() RecordKind
	GetLegacyID() int64
	GetID() string
	// Label returns a short human-readable identifier for mapping files
	// and error logs (email for users, title for recipes).
	Label() string
}

// Ingredient is a single parsed ingredient line of a recipe.
type Ingredient struct {
	Position int     `json:"position"`
	Quantity float64 `json:"quantity,omitempty"`
	Unit     string  `json:"unit,omitempty"`
	Name     string  `json:"name"`
	Note     string  `json:"note,omitempty"`
	// Raw preserves the original text when parsing could not split it.
	Raw string `json:"raw,omitempty"`
}

// Parsed reports whether the upstream transform managed to split the
// ingredient into quantity/unit/name.
func (i *Ingredient) Parsed() bool {
	return i.Name != "" && i.Raw == ""
}

// Instruction is a single ordered preparation step.
type Instruction struct {
	Position int    `json:"position"`
	Text     string `json:"text"`
}

// TransformedUser is an account ready for import.
type TransformedUser struct {
	LegacyID  int64  `json:"legacyId"`
	ID        string `json:"id"`
	Email     string `json:"email"`
	Username  string `json:"username"`
	FullName  string `json:"fullName,omitempty"`
	AvatarURL string `json:"avatarUrl,omitempty"`
}

func (u *TransformedUser) Kind() RecordKind  { return KindUser }
func (u *TransformedUser) GetLegacyID() int64 { return u.LegacyID }
func (u *TransformedUser) GetID() string      { return u.ID }
func (u *TransformedUser) Label() string      { return u.Email }

// TransformedRecipe is a recipe ready for import, with nested ingredients,
// instructions, tags and media references.
type TransformedRecipe struct {
	LegacyID     int64         `json:"legacyId"`
	ID           string        `json:"id"`
	Title        string        `json:"title"`
	Description  string        `json:"description,omitempty"`
	AuthorID     string        `json:"authorId"`
	LegacyAuthor int64         `json:"legacyAuthorId"`
	Servings     int           `json:"servings,omitempty"`
	PrepMinutes  int           `json:"prepMinutes,omitempty"`
	CookMinutes  int           `json:"cookMinutes,omitempty"`
	Ingredients  []Ingredient  `json:"ingredients"`
	Instructions []Instruction `json:"instructions"`
	Tags         []string      `json:"tags,omitempty"`
	ImageURL     string        `json:"imageUrl,omitempty"`
	SourceURL    string        `json:"sourceUrl,omitempty"`
}

func (r *TransformedRecipe) Kind() RecordKind  { return KindRecipe }
func (r *TransformedRecipe) GetLegacyID() int64 { return r.LegacyID }
func (r *TransformedRecipe) GetID() string      { return r.ID }
func (r *TransformedRecipe) Label() string      { return r.Title }

// NewDestinationID pre-generates a destination-shaped identifier.
func NewDestinationID() string {
	return uuid.NewString()
}
