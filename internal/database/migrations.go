package database

import (
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/MarcoPoloResearchLab/coffeeshop/internal/drinks"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	migrationImportLegacyDrinkTable = "2026-10-01_import_legacy_drink_table"
	legacyDrinkTable                = "drink"
)

type migrationRecord struct {
	Name             string `gorm:"column:name;primaryKey;size:190;not null"`
	AppliedAtSeconds int64  `gorm:"column:applied_at_s;not null"`
}

func (migrationRecord) TableName() string {
	return "db_migrations"
}

type migrationDefinition struct {
	name  string
	apply func(*gorm.DB, *zap.Logger) error
}

func applyMigrations(db *gorm.DB, logger *zap.Logger) error {
	logger = loggerOrNop(logger)
	migrations := []migrationDefinition{
		{name: migrationImportLegacyDrinkTable, apply: importLegacyDrinkTable},
	}

	for _, migration := range migrations {
		var record migrationRecord
		err := db.Where("name = ?", migration.name).Take(&record).Error
		if err == nil {
			continue
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		if err := migration.apply(db, logger); err != nil {
			return err
		}
		appliedAt := time.Now().UTC().Unix()
		if err := db.Create(&migrationRecord{Name: migration.name, AppliedAtSeconds: appliedAt}).Error; err != nil {
			return err
		}
		logger.Info("database migration applied", zap.String("migration", migration.name))
	}
	return nil
}

type legacyDrink struct {
	ID     int64
	Title  *string
	Recipe *string
}

// importLegacyDrinkTable copies rows from the singular "drink" table used by earlier
// deployments. Rows whose id or title already exist are left alone.
func importLegacyDrinkTable(db *gorm.DB, logger *zap.Logger) error {
	if !db.Migrator().HasTable(legacyDrinkTable) {
		return nil
	}

	var rows []legacyDrink
	if err := db.Table(legacyDrinkTable).Select("id, title, recipe").Order("id ASC").Find(&rows).Error; err != nil {
		return err
	}

	return db.Transaction(func(tx *gorm.DB) error {
		imported := 0
		for _, row := range rows {
			drink, ok := convertLegacyDrink(row)
			if !ok {
				logger.Warn("legacy drink skipped", zap.Int64("drink_id", row.ID), zap.String("reason", "unreadable_row"))
				continue
			}

			var count int64
			if err := tx.Model(&drinks.Drink{}).Where("id = ? OR title_key = ?", drink.ID, drink.TitleKey).Count(&count).Error; err != nil {
				return err
			}
			if count > 0 {
				logger.Warn("legacy drink skipped", zap.Int64("drink_id", row.ID), zap.String("reason", "already_present"))
				continue
			}
			if err := tx.Create(&drink).Error; err != nil {
				return err
			}
			imported++
		}

		if imported > 0 && tx.Dialector.Name() == DriverPostgres {
			if err := tx.Exec("SELECT setval(pg_get_serial_sequence('drinks', 'id'), (SELECT MAX(id) FROM drinks))").Error; err != nil {
				return err
			}
		}
		logger.Info("legacy drinks imported", zap.Int("count", imported), zap.Int("seen", len(rows)))
		return nil
	})
}

func convertLegacyDrink(row legacyDrink) (drinks.Drink, bool) {
	if row.Title == nil || row.Recipe == nil {
		return drinks.Drink{}, false
	}
	title := strings.TrimSpace(*row.Title)
	if title == "" {
		return drinks.Drink{}, false
	}

	var recipe drinks.Recipe
	if err := json.Unmarshal([]byte(*row.Recipe), &recipe); err != nil || len(recipe) == 0 {
		return drinks.Drink{}, false
	}
	normalized, err := json.Marshal(recipe)
	if err != nil {
		return drinks.Drink{}, false
	}

	return drinks.Drink{
		ID:         row.ID,
		Title:      title,
		TitleKey:   drinks.TitleKey(title),
		RecipeJSON: string(normalized),
	}, true
}
