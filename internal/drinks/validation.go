package drinks

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode/utf8"
)

// ErrInvalidDrink indicates a drink payload failed structural or semantic validation.
var ErrInvalidDrink = errors.New("drinks: invalid drink payload")

// Draft is a validated, normalized drink payload. A nil Title or Recipe means the field
// was not supplied (only possible for partial updates).
type Draft struct {
	Title  *string
	Recipe Recipe
}

// HasTitle reports whether the draft carries a title.
func (d Draft) HasTitle() bool {
	return d.Title != nil
}

// HasRecipe reports whether the draft carries a recipe.
func (d Draft) HasRecipe() bool {
	return d.Recipe != nil
}

// ValidatePayload validates a decoded JSON object. Full creates require both title and
// recipe; partial updates validate only the fields that are present. The payload itself
// is never modified.
func ValidatePayload(payload map[string]any, partial bool) (Draft, error) {
	if payload == nil {
		return Draft{}, invalid("payload must be a JSON object")
	}

	rawTitle, titlePresent := presentField(payload, "title")
	rawRecipe, recipePresent := presentField(payload, "recipe")

	if !partial && (!titlePresent || !recipePresent) {
		return Draft{}, invalid("title and recipe are required")
	}

	draft := Draft{}
	if titlePresent {
		title, err := validateTitle(rawTitle)
		if err != nil {
			return Draft{}, err
		}
		draft.Title = &title
	}
	if recipePresent {
		recipe, err := validateRecipe(rawRecipe)
		if err != nil {
			return Draft{}, err
		}
		draft.Recipe = recipe
	}
	return draft, nil
}

func presentField(payload map[string]any, key string) (any, bool) {
	value, ok := payload[key]
	if !ok || value == nil {
		return nil, false
	}
	return value, true
}

func validateTitle(raw any) (string, error) {
	title, ok := raw.(string)
	if !ok {
		return "", invalid("title must be a string")
	}
	title = strings.TrimSpace(title)
	if title == "" {
		return "", invalid("title is empty")
	}
	if utf8.RuneCountInString(title) > maxTitleLength {
		return "", invalid(fmt.Sprintf("title exceeds %d characters", maxTitleLength))
	}
	return title, nil
}

func validateRecipe(raw any) (Recipe, error) {
	entries, ok := raw.([]any)
	if !ok {
		return nil, invalid("recipe must be a list")
	}
	if len(entries) == 0 {
		return nil, invalid("recipe is empty")
	}

	recipe := make(Recipe, 0, len(entries))
	for index, entry := range entries {
		fields, ok := entry.(map[string]any)
		if !ok {
			return nil, invalid(fmt.Sprintf("ingredient %d must be an object", index))
		}
		rawParts, hasParts := fields["parts"]
		rawColor, hasColor := fields["color"]
		rawName, hasName := fields["name"]
		if !hasParts || !hasColor || !hasName {
			return nil, invalid(fmt.Sprintf("ingredient %d requires parts, color and name", index))
		}

		color, err := requireTrimmedString(rawColor)
		if err != nil {
			return nil, invalid(fmt.Sprintf("ingredient %d color: %v", index, err))
		}
		name, err := requireTrimmedString(rawName)
		if err != nil {
			return nil, invalid(fmt.Sprintf("ingredient %d name: %v", index, err))
		}
		parts, err := coerceParts(rawParts)
		if err != nil {
			return nil, invalid(fmt.Sprintf("ingredient %d parts: %v", index, err))
		}

		recipe = append(recipe, Ingredient{Name: name, Color: color, Parts: parts})
	}
	return recipe, nil
}

func requireTrimmedString(raw any) (string, error) {
	value, ok := raw.(string)
	if !ok {
		return "", errors.New("not a string")
	}
	value = strings.TrimSpace(value)
	if value == "" {
		return "", errors.New("empty")
	}
	return value, nil
}

// coerceParts accepts integers, booleans (as 0 or 1), finite numbers (truncated toward zero)
// and strings holding a base-10 integer. Sign is not constrained; values must fit in int64.
func coerceParts(raw any) (int64, error) {
	switch value := raw.(type) {
	case json.Number:
		if parsed, err := value.Int64(); err == nil {
			return parsed, nil
		}
		floatValue, err := value.Float64()
		if err != nil {
			return 0, fmt.Errorf("not an integer: %q", value.String())
		}
		return truncateFloat(floatValue)
	case float64:
		return truncateFloat(value)
	case int:
		return int64(value), nil
	case int64:
		return value, nil
	case bool:
		if value {
			return 1, nil
		}
		return 0, nil
	case string:
		parsed, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64)
		if err != nil {
			return 0, fmt.Errorf("not an integer: %q", value)
		}
		return parsed, nil
	default:
		return 0, fmt.Errorf("unsupported type %T", raw)
	}
}

func truncateFloat(value float64) (int64, error) {
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return 0, errors.New("not a finite number")
	}
	truncated := math.Trunc(value)
	if truncated < math.MinInt64 || truncated >= math.MaxInt64 {
		return 0, errors.New("out of range")
	}
	return int64(truncated), nil
}

func invalid(reason string) error {
	return fmt.Errorf("%w: %s", ErrInvalidDrink, reason)
}
