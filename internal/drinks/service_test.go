package drinks

import (
	"context"
	"errors"
	"testing"
)

func TestServiceCreateThenFindReturnsNormalizedDrink(t *testing.T) {
	service, _ := newTestService(t)
	ctx := context.Background()
	draft := mustDraft(t, icedTeaPayload(), false)

	created, err := service.CreateDrink(ctx, *draft.Title, draft.Recipe)
	if err != nil {
		t.Fatalf("unexpected create error: %v", err)
	}
	if created.ID == 0 {
		t.Fatalf("expected id to be assigned")
	}

	found, err := service.FindDrink(ctx, created.ID)
	if err != nil {
		t.Fatalf("unexpected find error: %v", err)
	}
	long, err := found.Long()
	if err != nil {
		t.Fatalf("unexpected projection error: %v", err)
	}
	if long.Title != "Iced Tea" {
		t.Fatalf("unexpected title %q", long.Title)
	}
	expected := []Ingredient{
		{Name: "Tea", Color: "#8B4513", Parts: 3},
		{Name: "Water", Color: "clear", Parts: 1},
	}
	if len(long.Recipe) != len(expected) {
		t.Fatalf("unexpected recipe length %d", len(long.Recipe))
	}
	for index := range expected {
		if long.Recipe[index] != expected[index] {
			t.Fatalf("ingredient %d: got %#v want %#v", index, long.Recipe[index], expected[index])
		}
	}
}

func TestServiceRejectsDuplicateTitleIgnoringCase(t *testing.T) {
	service, db := newTestService(t)
	ctx := context.Background()
	draft := mustDraft(t, icedTeaPayload(), false)

	if _, err := service.CreateDrink(ctx, "Iced Tea", draft.Recipe); err != nil {
		t.Fatalf("unexpected create error: %v", err)
	}

	unique, err := service.IsTitleUnique(ctx, "ICED TEA", "")
	if err != nil {
		t.Fatalf("unexpected uniqueness error: %v", err)
	}
	if unique {
		t.Fatalf("expected case-insensitive collision")
	}

	_, err = service.CreateDrink(ctx, "iced tea", draft.Recipe)
	if !errors.Is(err, ErrDuplicateTitle) {
		t.Fatalf("expected duplicate title error, got %v", err)
	}

	var count int64
	if err := db.Model(&Drink{}).Count(&count).Error; err != nil {
		t.Fatalf("failed to count drinks: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected exactly one stored drink, got %d", count)
	}
}

func TestServiceUniqueIndexBacksUpApplicationCheck(t *testing.T) {
	_, db := newTestService(t)
	first := Drink{Title: "Cortado", TitleKey: "cortado", RecipeJSON: `[]`}
	if err := db.Create(&first).Error; err != nil {
		t.Fatalf("failed to insert drink: %v", err)
	}
	second := Drink{Title: "CORTADO", TitleKey: "cortado", RecipeJSON: `[]`}
	err := db.Create(&second).Error
	if err == nil {
		t.Fatalf("expected unique index violation")
	}
	if !isUniqueViolation(err) {
		t.Fatalf("expected error to be recognised as unique violation: %v", err)
	}
}

func TestServiceUpdateKeepsOwnTitle(t *testing.T) {
	service, _ := newTestService(t)
	ctx := context.Background()
	draft := mustDraft(t, icedTeaPayload(), false)
	created, err := service.CreateDrink(ctx, *draft.Title, draft.Recipe)
	if err != nil {
		t.Fatalf("unexpected create error: %v", err)
	}

	unique, err := service.IsTitleUnique(ctx, "iced TEA", created.Title)
	if err != nil {
		t.Fatalf("unexpected uniqueness error: %v", err)
	}
	if !unique {
		t.Fatalf("expected own title to be excluded from the collision check")
	}

	renamed := mustDraft(t, map[string]any{"title": "iced tea"}, true)
	updated, err := service.UpdateDrink(ctx, created.ID, renamed)
	if err != nil {
		t.Fatalf("unexpected update error: %v", err)
	}
	if updated.Title != "iced tea" {
		t.Fatalf("expected title to change case, got %q", updated.Title)
	}
	recipe, err := updated.Recipe()
	if err != nil {
		t.Fatalf("unexpected recipe error: %v", err)
	}
	if len(recipe) != 2 {
		t.Fatalf("expected recipe to be untouched, got %#v", recipe)
	}
}

func TestServiceUpdateAppliesOnlySuppliedFields(t *testing.T) {
	service, _ := newTestService(t)
	ctx := context.Background()
	draft := mustDraft(t, icedTeaPayload(), false)
	created, err := service.CreateDrink(ctx, *draft.Title, draft.Recipe)
	if err != nil {
		t.Fatalf("unexpected create error: %v", err)
	}

	recipeOnly := mustDraft(t, map[string]any{
		"recipe": []any{map[string]any{"name": "Lemon", "color": "yellow", "parts": float64(1)}},
	}, true)
	if _, err := service.UpdateDrink(ctx, created.ID, recipeOnly); err != nil {
		t.Fatalf("unexpected update error: %v", err)
	}

	stored, err := service.FindDrink(ctx, created.ID)
	if err != nil {
		t.Fatalf("unexpected find error: %v", err)
	}
	if stored.Title != "Iced Tea" {
		t.Fatalf("expected title to be preserved, got %q", stored.Title)
	}
	recipe, err := stored.Recipe()
	if err != nil {
		t.Fatalf("unexpected recipe error: %v", err)
	}
	if len(recipe) != 1 || recipe[0].Name != "Lemon" {
		t.Fatalf("expected recipe to be replaced, got %#v", recipe)
	}
}

func TestServiceUpdateRejectsCollisionWithOtherDrink(t *testing.T) {
	service, _ := newTestService(t)
	ctx := context.Background()
	draft := mustDraft(t, icedTeaPayload(), false)
	if _, err := service.CreateDrink(ctx, "Iced Tea", draft.Recipe); err != nil {
		t.Fatalf("unexpected create error: %v", err)
	}
	other, err := service.CreateDrink(ctx, "Lemonade", draft.Recipe)
	if err != nil {
		t.Fatalf("unexpected create error: %v", err)
	}

	rename := mustDraft(t, map[string]any{"title": "ICED tea"}, true)
	_, err = service.UpdateDrink(ctx, other.ID, rename)
	if !errors.Is(err, ErrDuplicateTitle) {
		t.Fatalf("expected duplicate title error, got %v", err)
	}

	stored, err := service.FindDrink(ctx, other.ID)
	if err != nil {
		t.Fatalf("unexpected find error: %v", err)
	}
	if stored.Title != "Lemonade" {
		t.Fatalf("expected rollback to keep title, got %q", stored.Title)
	}
}

func TestServiceMissingDrinks(t *testing.T) {
	service, _ := newTestService(t)
	ctx := context.Background()

	if _, err := service.FindDrink(ctx, 42); !errors.Is(err, ErrDrinkNotFound) {
		t.Fatalf("expected not found on find, got %v", err)
	}
	if _, err := service.UpdateDrink(ctx, 42, Draft{}); !errors.Is(err, ErrDrinkNotFound) {
		t.Fatalf("expected not found on update, got %v", err)
	}
	if err := service.DeleteDrink(ctx, 42); !errors.Is(err, ErrDrinkNotFound) {
		t.Fatalf("expected not found on delete, got %v", err)
	}
}

func TestServiceDeleteRemovesRow(t *testing.T) {
	service, _ := newTestService(t)
	ctx := context.Background()
	draft := mustDraft(t, icedTeaPayload(), false)
	created, err := service.CreateDrink(ctx, *draft.Title, draft.Recipe)
	if err != nil {
		t.Fatalf("unexpected create error: %v", err)
	}

	if err := service.DeleteDrink(ctx, created.ID); err != nil {
		t.Fatalf("unexpected delete error: %v", err)
	}
	drinks, err := service.ListDrinks(ctx)
	if err != nil {
		t.Fatalf("unexpected list error: %v", err)
	}
	if len(drinks) != 0 {
		t.Fatalf("expected no drinks after delete, got %d", len(drinks))
	}
}

func TestNewServiceRequiresDatabase(t *testing.T) {
	_, err := NewService(ServiceConfig{})
	var serviceErr *ServiceError
	if !errors.As(err, &serviceErr) {
		t.Fatalf("expected service error, got %v", err)
	}
	if serviceErr.Code() != "drinks.service.new.missing_database" {
		t.Fatalf("unexpected error code %s", serviceErr.Code())
	}
}

func TestZeroServiceReportsMissingDatabase(t *testing.T) {
	service := &Service{}
	_, err := service.ListDrinks(context.Background())
	var serviceErr *ServiceError
	if !errors.As(err, &serviceErr) {
		t.Fatalf("expected service error, got %v", err)
	}
	if serviceErr.Code() != "drinks.list.missing_database" {
		t.Fatalf("unexpected error code %s", serviceErr.Code())
	}
}
