package drinks

import (
	"encoding/json"
	"fmt"
	"strings"
)

const maxTitleLength = 80

// Ingredient is a single recipe entry. Parts is a relative mixing ratio.
type Ingredient struct {
	Name  string `json:"name"`
	Color string `json:"color"`
	Parts int64  `json:"parts"`
}

// Recipe is the ordered ingredient list of a drink.
type Recipe []Ingredient

// Drink models the persisted drink row. The recipe is stored as an encoded JSON blob
// and decoded on every read.
type Drink struct {
	ID         int64  `gorm:"column:id;primaryKey;autoIncrement"`
	Title      string `gorm:"column:title;size:80;not null;uniqueIndex:idx_drinks_title"`
	TitleKey   string `gorm:"column:title_key;size:80;not null;uniqueIndex:idx_drinks_title_key"`
	RecipeJSON string `gorm:"column:recipe;type:text;not null"`
}

// TableName provides the explicit table binding for GORM.
func (Drink) TableName() string {
	return "drinks"
}

// TitleKey returns the case-insensitive comparison key for a title.
func TitleKey(title string) string {
	return strings.ToLower(strings.TrimSpace(title))
}

// Recipe decodes the stored ingredient list.
func (d Drink) Recipe() (Recipe, error) {
	var recipe Recipe
	if err := json.Unmarshal([]byte(d.RecipeJSON), &recipe); err != nil {
		return nil, fmt.Errorf("drinks: decode recipe for drink %d: %w", d.ID, err)
	}
	return recipe, nil
}

func encodeRecipe(recipe Recipe) (string, error) {
	encoded, err := json.Marshal(recipe)
	if err != nil {
		return "", err
	}
	return string(encoded), nil
}

// ShortIngredient is the public ingredient view without the name.
type ShortIngredient struct {
	Color string `json:"color"`
	Parts int64  `json:"parts"`
}

// ShortView is the anonymous projection of a drink.
type ShortView struct {
	ID     int64             `json:"id"`
	Title  string            `json:"title"`
	Recipe []ShortIngredient `json:"recipe"`
}

// LongView is the detailed projection of a drink.
type LongView struct {
	ID     int64        `json:"id"`
	Title  string       `json:"title"`
	Recipe []Ingredient `json:"recipe"`
}

// Short projects the drink without ingredient names.
func (d Drink) Short() (ShortView, error) {
	recipe, err := d.Recipe()
	if err != nil {
		return ShortView{}, err
	}
	ingredients := make([]ShortIngredient, 0, len(recipe))
	for _, ingredient := range recipe {
		ingredients = append(ingredients, ShortIngredient{Color: ingredient.Color, Parts: ingredient.Parts})
	}
	return ShortView{ID: d.ID, Title: d.Title, Recipe: ingredients}, nil
}

// Long projects the drink with every ingredient field, order preserved.
func (d Drink) Long() (LongView, error) {
	recipe, err := d.Recipe()
	if err != nil {
		return LongView{}, err
	}
	ingredients := make([]Ingredient, len(recipe))
	copy(ingredients, recipe)
	return LongView{ID: d.ID, Title: d.Title, Recipe: ingredients}, nil
}
