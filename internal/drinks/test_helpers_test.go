package drinks

import (
	"strings"
	"testing"

	sqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

func newTestService(t *testing.T) (*Service, *gorm.DB) {
	t.Helper()
	dsn := "file:" + strings.NewReplacer("/", "_", " ", "_").Replace(t.Name()) + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("failed to access sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() {
		_ = sqlDB.Close()
	})
	if err := db.AutoMigrate(&Drink{}); err != nil {
		t.Fatalf("failed to migrate drinks: %v", err)
	}

	service, err := NewService(ServiceConfig{Database: db})
	if err != nil {
		t.Fatalf("failed to build service: %v", err)
	}
	return service, db
}

func mustDraft(t *testing.T, payload map[string]any, partial bool) Draft {
	t.Helper()
	draft, err := ValidatePayload(payload, partial)
	if err != nil {
		t.Fatalf("unexpected validation error: %v", err)
	}
	return draft
}

func icedTeaPayload() map[string]any {
	return map[string]any{
		"title": "Iced Tea",
		"recipe": []any{
			map[string]any{"name": "Tea", "color": "#8B4513", "parts": float64(3)},
			map[string]any{"name": "Water", "color": "clear", "parts": float64(1)},
		},
	}
}
