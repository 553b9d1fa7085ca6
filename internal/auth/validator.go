package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrInvalidValidatorConfig reports a TokenValidator configuration problem.
	ErrInvalidValidatorConfig = errors.New("auth: invalid token validator config")

	errMissingIssuer      = errors.New("issuer configuration required")
	errMissingAudience    = errors.New("audience configuration required")
	errMissingKeyProvider = errors.New("key provider required")
	errNoAlgorithms       = errors.New("no allowed signing algorithms configured")
	errMissingKeyID       = errors.New("token header missing key identifier")
)

// Claims is the decoded payload of a verified bearer token.
type Claims struct {
	Permissions []string `json:"permissions,omitempty"`
	jwt.RegisteredClaims
}

// HasPermissionsClaim reports whether the token carried a permissions list at all.
func (c Claims) HasPermissionsClaim() bool {
	return c.Permissions != nil
}

// TokenValidatorConfig describes the issuer whose tokens are accepted.
type TokenValidatorConfig struct {
	Issuer     string
	Audience   string
	Algorithms []string
	Keys       KeyProvider
	Clock      func() time.Time
}

// TokenValidator verifies bearer tokens against the issuer's published signing keys.
type TokenValidator struct {
	issuer     string
	audience   string
	algorithms []string
	keys       KeyProvider
	clock      func() time.Time
}

// NewTokenValidator constructs a validator with validated configuration.
func NewTokenValidator(cfg TokenValidatorConfig) (*TokenValidator, error) {
	issuer := strings.TrimSpace(cfg.Issuer)
	if issuer == "" {
		return nil, fmt.Errorf("%w: %v", ErrInvalidValidatorConfig, errMissingIssuer)
	}
	audience := strings.TrimSpace(cfg.Audience)
	if audience == "" {
		return nil, fmt.Errorf("%w: %v", ErrInvalidValidatorConfig, errMissingAudience)
	}
	if cfg.Keys == nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidValidatorConfig, errMissingKeyProvider)
	}

	algorithms := make([]string, 0, len(cfg.Algorithms))
	for _, algorithm := range cfg.Algorithms {
		normalized := strings.ToUpper(strings.TrimSpace(algorithm))
		if normalized == "" {
			continue
		}
		algorithms = append(algorithms, normalized)
	}
	if len(cfg.Algorithms) == 0 {
		algorithms = []string{jwt.SigningMethodRS256.Alg()}
	}
	if len(algorithms) == 0 {
		return nil, fmt.Errorf("%w: %v", ErrInvalidValidatorConfig, errNoAlgorithms)
	}

	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}

	return &TokenValidator{
		issuer:     issuer,
		audience:   audience,
		algorithms: algorithms,
		keys:       cfg.Keys,
		clock:      clock,
	}, nil
}

// Validate verifies signature, issuer, audience and expiry and returns the decoded claims.
// Failures are *Error values except for key-set retrieval problems, which are returned as is.
func (v *TokenValidator) Validate(ctx context.Context, rawToken string) (Claims, error) {
	unverified, _, err := jwt.NewParser().ParseUnverified(rawToken, &Claims{})
	if err != nil {
		return Claims{}, errUnparseable(err)
	}
	keyID, _ := unverified.Header["kid"].(string)
	if keyID == "" {
		return Claims{}, errMalformedHeader(errMissingKeyID)
	}

	key, err := v.keys.SigningKey(ctx, keyID)
	if errors.Is(err, ErrKeyNotFound) {
		return Claims{}, errKeyMissing(err)
	}
	if err != nil {
		return Claims{}, fmt.Errorf("auth: resolve signing key: %w", err)
	}

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(
		rawToken,
		claims,
		func(*jwt.Token) (interface{}, error) {
			return key, nil
		},
		jwt.WithValidMethods(v.algorithms),
		jwt.WithAudience(v.audience),
		jwt.WithIssuer(v.issuer),
		jwt.WithTimeFunc(v.clock),
	)
	if err != nil {
		return Claims{}, classifyParseError(err)
	}
	if token == nil || !token.Valid {
		return Claims{}, errUnparseable(errors.New("token signature invalid"))
	}
	return *claims, nil
}

func classifyParseError(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return errExpired(err)
	case errors.Is(err, jwt.ErrTokenInvalidAudience),
		errors.Is(err, jwt.ErrTokenInvalidIssuer),
		errors.Is(err, jwt.ErrTokenNotValidYet),
		errors.Is(err, jwt.ErrTokenUsedBeforeIssued),
		errors.Is(err, jwt.ErrTokenRequiredClaimMissing):
		return errClaims(err)
	default:
		return errUnparseable(err)
	}
}
