package database

import (
	"context"
	"encoding/json"

	"github.com/MarcoPoloResearchLab/coffeeshop/internal/drinks"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// DemoDrink is the single row written by ResetWithDemo.
var DemoDrink = struct {
	Title  string
	Recipe drinks.Recipe
}{
	Title:  "water",
	Recipe: drinks.Recipe{{Name: "water", Color: "blue", Parts: 1}},
}

// ResetWithDemo drops every drink, recreates the table and inserts the demo drink.
func ResetWithDemo(ctx context.Context, db *gorm.DB, logger *zap.Logger) (drinks.Drink, error) {
	recipeJSON, err := json.Marshal(DemoDrink.Recipe)
	if err != nil {
		return drinks.Drink{}, err
	}

	conn := db.WithContext(ctx)
	if err := conn.Migrator().DropTable(&drinks.Drink{}); err != nil {
		return drinks.Drink{}, err
	}
	if err := conn.AutoMigrate(&drinks.Drink{}); err != nil {
		return drinks.Drink{}, err
	}

	demo := drinks.Drink{
		Title:      DemoDrink.Title,
		TitleKey:   drinks.TitleKey(DemoDrink.Title),
		RecipeJSON: string(recipeJSON),
	}
	if err := conn.Create(&demo).Error; err != nil {
		return drinks.Drink{}, err
	}

	loggerOrNop(logger).Info("database reset with demo drink", zap.Int64("drink_id", demo.ID))
	return demo, nil
}
