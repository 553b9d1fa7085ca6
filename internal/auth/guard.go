package auth

import (
	"context"
	"errors"
)

var errMissingClaimsValidator = errors.New("auth: claims validator required")

// ClaimsValidator turns a raw bearer token into verified claims.
type ClaimsValidator interface {
	Validate(ctx context.Context, rawToken string) (Claims, error)
}

// Guard authorizes a request by running header extraction, token validation and the
// permission check in that order. The first failing stage ends the request.
type Guard struct {
	validator ClaimsValidator
}

// NewGuard constructs a Guard around the provided validator.
func NewGuard(validator ClaimsValidator) (*Guard, error) {
	if validator == nil {
		return nil, errMissingClaimsValidator
	}
	return &Guard{validator: validator}, nil
}

// Authorize returns the verified claims when the Authorization header grants permission.
func (g *Guard) Authorize(ctx context.Context, authorizationHeader, permission string) (Claims, error) {
	token, err := ExtractBearerToken(authorizationHeader)
	if err != nil {
		return Claims{}, err
	}
	claims, err := g.validator.Validate(ctx, token)
	if err != nil {
		return Claims{}, err
	}
	if err := CheckPermission(permission, claims); err != nil {
		return Claims{}, err
	}
	return claims, nil
}
