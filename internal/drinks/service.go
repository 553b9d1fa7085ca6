package drinks

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	// ErrDrinkNotFound indicates that no drink exists for the requested id.
	ErrDrinkNotFound = errors.New("drinks: drink not found")
	// ErrDuplicateTitle indicates that another drink already uses the title, ignoring case.
	ErrDuplicateTitle = errors.New("drinks: title already exists")

	errMissingDatabase = errors.New("database handle is required")
	noOpLogger         = zap.NewNop()
)

// ServiceError wraps storage failures with a stable dotted code.
type ServiceError struct {
	code string
	err  error
}

func (e *ServiceError) Error() string {
	if e.err == nil {
		return e.code
	}
	return fmt.Sprintf("%s: %v", e.code, e.err)
}

func (e *ServiceError) Unwrap() error {
	return e.err
}

func (e *ServiceError) Code() string {
	return e.code
}

const (
	opServiceNew   = "drinks.service.new"
	opListDrinks   = "drinks.list"
	opFindDrink    = "drinks.find"
	opTitleUnique  = "drinks.title_unique"
	opCreateDrink  = "drinks.create"
	opUpdateDrink  = "drinks.update"
	opDeleteDrink  = "drinks.delete"
	uniqueViolated = "UNIQUE constraint failed"
)

func newServiceError(operation, reason string, cause error) error {
	code := fmt.Sprintf("%s.%s", operation, reason)
	return &ServiceError{code: code, err: cause}
}

type ServiceConfig struct {
	Database *gorm.DB
	Logger   *zap.Logger
}

// Service persists drinks. Every mutating call runs in its own transaction and either
// commits fully or rolls back.
type Service struct {
	db     *gorm.DB
	logger *zap.Logger
}

func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Database == nil {
		return nil, newServiceError(opServiceNew, "missing_database", errMissingDatabase)
	}

	logger := cfg.Logger
	if logger == nil {
		logger = noOpLogger
	}

	return &Service{
		db:     cfg.Database,
		logger: logger,
	}, nil
}

// ListDrinks returns every stored drink in storage order.
func (s *Service) ListDrinks(ctx context.Context) ([]Drink, error) {
	if s.db == nil {
		s.logError(opListDrinks, "missing_database", errMissingDatabase)
		return nil, newServiceError(opListDrinks, "missing_database", errMissingDatabase)
	}

	var drinks []Drink
	if err := s.db.WithContext(ctx).Order("id ASC").Find(&drinks).Error; err != nil {
		s.logError(opListDrinks, "query_failed", err)
		return nil, newServiceError(opListDrinks, "query_failed", err)
	}
	return drinks, nil
}

// FindDrink loads a drink by id and returns ErrDrinkNotFound when absent.
func (s *Service) FindDrink(ctx context.Context, id int64) (Drink, error) {
	if s.db == nil {
		s.logError(opFindDrink, "missing_database", errMissingDatabase)
		return Drink{}, newServiceError(opFindDrink, "missing_database", errMissingDatabase)
	}
	return s.findDrink(s.db.WithContext(ctx), id)
}

func (s *Service) findDrink(tx *gorm.DB, id int64) (Drink, error) {
	var drink Drink
	err := tx.Where("id = ?", id).Take(&drink).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Drink{}, ErrDrinkNotFound
	}
	if err != nil {
		s.logError(opFindDrink, "query_failed", err, zap.Int64("drink_id", id))
		return Drink{}, newServiceError(opFindDrink, "query_failed", err)
	}
	return drink, nil
}

// IsTitleUnique reports whether candidate collides with no stored title, ignoring case.
// A non-empty excludeCurrent names the drink's own title, which never counts as a collision.
func (s *Service) IsTitleUnique(ctx context.Context, candidate, excludeCurrent string) (bool, error) {
	if s.db == nil {
		s.logError(opTitleUnique, "missing_database", errMissingDatabase)
		return false, newServiceError(opTitleUnique, "missing_database", errMissingDatabase)
	}
	return s.titleUnique(s.db.WithContext(ctx), candidate, excludeCurrent)
}

func (s *Service) titleUnique(tx *gorm.DB, candidate, excludeCurrent string) (bool, error) {
	candidateKey := TitleKey(candidate)
	if strings.TrimSpace(excludeCurrent) != "" && candidateKey == TitleKey(excludeCurrent) {
		return true, nil
	}

	query := tx.Model(&Drink{}).Where("title_key = ?", candidateKey)
	if strings.TrimSpace(excludeCurrent) != "" {
		query = query.Where("title_key <> ?", TitleKey(excludeCurrent))
	}
	var count int64
	if err := query.Count(&count).Error; err != nil {
		s.logError(opTitleUnique, "query_failed", err, zap.String("title", candidate))
		return false, newServiceError(opTitleUnique, "query_failed", err)
	}
	return count == 0, nil
}

// CreateDrink assigns an id and persists a validated drink.
func (s *Service) CreateDrink(ctx context.Context, title string, recipe Recipe) (Drink, error) {
	if s.db == nil {
		s.logError(opCreateDrink, "missing_database", errMissingDatabase)
		return Drink{}, newServiceError(opCreateDrink, "missing_database", errMissingDatabase)
	}

	recipeJSON, err := encodeRecipe(recipe)
	if err != nil {
		s.logError(opCreateDrink, "encode_failed", err)
		return Drink{}, newServiceError(opCreateDrink, "encode_failed", err)
	}

	drink := Drink{
		Title:      strings.TrimSpace(title),
		TitleKey:   TitleKey(title),
		RecipeJSON: recipeJSON,
	}
	txErr := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		unique, err := s.titleUnique(tx, drink.Title, "")
		if err != nil {
			return err
		}
		if !unique {
			return ErrDuplicateTitle
		}
		if err := tx.Create(&drink).Error; err != nil {
			if isUniqueViolation(err) {
				return ErrDuplicateTitle
			}
			s.logError(opCreateDrink, "insert_failed", err, zap.String("title", drink.Title))
			return newServiceError(opCreateDrink, "insert_failed", err)
		}
		return nil
	})
	if txErr != nil {
		return Drink{}, txErr
	}
	return drink, nil
}

// UpdateDrink applies only the fields carried by the draft to the drink with the given id.
func (s *Service) UpdateDrink(ctx context.Context, id int64, draft Draft) (Drink, error) {
	if s.db == nil {
		s.logError(opUpdateDrink, "missing_database", errMissingDatabase)
		return Drink{}, newServiceError(opUpdateDrink, "missing_database", errMissingDatabase)
	}

	var updated Drink
	txErr := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		current, err := s.findDrink(tx, id)
		if err != nil {
			return err
		}

		changes := map[string]any{}
		if draft.HasTitle() {
			title := strings.TrimSpace(*draft.Title)
			unique, err := s.titleUnique(tx, title, current.Title)
			if err != nil {
				return err
			}
			if !unique {
				return ErrDuplicateTitle
			}
			changes["title"] = title
			changes["title_key"] = TitleKey(title)
			current.Title = title
			current.TitleKey = TitleKey(title)
		}
		if draft.HasRecipe() {
			recipeJSON, err := encodeRecipe(draft.Recipe)
			if err != nil {
				s.logError(opUpdateDrink, "encode_failed", err, zap.Int64("drink_id", id))
				return newServiceError(opUpdateDrink, "encode_failed", err)
			}
			changes["recipe"] = recipeJSON
			current.RecipeJSON = recipeJSON
		}

		if len(changes) > 0 {
			if err := tx.Model(&Drink{}).Where("id = ?", id).Updates(changes).Error; err != nil {
				if isUniqueViolation(err) {
					return ErrDuplicateTitle
				}
				s.logError(opUpdateDrink, "update_failed", err, zap.Int64("drink_id", id))
				return newServiceError(opUpdateDrink, "update_failed", err)
			}
		}
		updated = current
		return nil
	})
	if txErr != nil {
		return Drink{}, txErr
	}
	return updated, nil
}

// DeleteDrink removes the drink row and returns ErrDrinkNotFound when nothing was deleted.
func (s *Service) DeleteDrink(ctx context.Context, id int64) error {
	if s.db == nil {
		s.logError(opDeleteDrink, "missing_database", errMissingDatabase)
		return newServiceError(opDeleteDrink, "missing_database", errMissingDatabase)
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Where("id = ?", id).Delete(&Drink{})
		if result.Error != nil {
			s.logError(opDeleteDrink, "delete_failed", result.Error, zap.Int64("drink_id", id))
			return newServiceError(opDeleteDrink, "delete_failed", result.Error)
		}
		if result.RowsAffected == 0 {
			return ErrDrinkNotFound
		}
		return nil
	})
}

func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	return strings.Contains(err.Error(), uniqueViolated)
}

func (s *Service) loggerOrDefault() *zap.Logger {
	if s == nil {
		return noOpLogger
	}
	if s.logger == nil {
		return noOpLogger
	}
	return s.logger
}

func (s *Service) logError(operation, reason string, err error, fields ...zap.Field) {
	attrs := []zap.Field{
		zap.String("operation", operation),
		zap.String("reason", reason),
	}
	if err != nil {
		attrs = append(attrs, zap.Error(err))
	}
	attrs = append(attrs, fields...)
	s.loggerOrDefault().Error("drinks service error", attrs...)
}
