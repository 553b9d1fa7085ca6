package auth

import (
	"context"
	"crypto/rsa"
	"net/http"
	"testing"
)

type countingValidator struct {
	inner *TokenValidator
	calls int
}

func (v *countingValidator) Validate(ctx context.Context, rawToken string) (Claims, error) {
	v.calls++
	return v.inner.Validate(ctx, rawToken)
}

func TestGuardAuthorizeStages(t *testing.T) {
	privateKey := generateKey(t)
	validator := &countingValidator{
		inner: newTestValidator(t, staticKeyProvider{keys: map[string]*rsa.PublicKey{testKeyID: &privateKey.PublicKey}}),
	}
	guard, err := NewGuard(validator)
	if err != nil {
		t.Fatalf("unexpected guard error: %v", err)
	}

	token := signToken(t, privateKey, testKeyID, baseClaims())

	claims, err := guard.Authorize(context.Background(), "Bearer "+token, "post:drinks")
	if err != nil {
		t.Fatalf("expected authorization to succeed: %v", err)
	}
	if claims.Subject != "auth0|manager" {
		t.Fatalf("unexpected subject %s", claims.Subject)
	}

	_, err = guard.Authorize(context.Background(), "Bearer "+token, "delete:drinks")
	authErr, ok := AsError(err)
	if !ok || authErr.Status != http.StatusForbidden {
		t.Fatalf("expected 403 for missing permission, got %v", err)
	}

	callsBefore := validator.calls
	_, err = guard.Authorize(context.Background(), "", "post:drinks")
	authErr, ok = AsError(err)
	if !ok || authErr.Code != CodeAuthorizationHeaderMissing {
		t.Fatalf("expected missing header failure, got %v", err)
	}
	if validator.calls != callsBefore {
		t.Fatalf("validator must not run when the header is missing")
	}
}

func TestGuardChecksPermissionsAfterValidation(t *testing.T) {
	privateKey := generateKey(t)
	guard, err := NewGuard(newTestValidator(t, staticKeyProvider{keys: map[string]*rsa.PublicKey{testKeyID: &privateKey.PublicKey}}))
	if err != nil {
		t.Fatalf("unexpected guard error: %v", err)
	}

	claims := baseClaims()
	delete(claims, "permissions")
	_, err = guard.Authorize(context.Background(), "Bearer "+signToken(t, privateKey, testKeyID, claims), "post:drinks")
	authErr, ok := AsError(err)
	if !ok || authErr.Code != CodeInvalidPayload || authErr.Status != http.StatusUnauthorized {
		t.Fatalf("expected invalid_payload 401, got %v", err)
	}
}

func TestNewGuardRequiresValidator(t *testing.T) {
	if _, err := NewGuard(nil); err == nil {
		t.Fatalf("expected error for missing validator")
	}
}
