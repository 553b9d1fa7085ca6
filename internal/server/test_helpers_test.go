package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/MarcoPoloResearchLab/coffeeshop/internal/auth"
	"github.com/MarcoPoloResearchLab/coffeeshop/internal/database"
	"github.com/MarcoPoloResearchLab/coffeeshop/internal/drinks"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const icedTeaBody = `{"title":"Iced Tea","recipe":[{"name":"Tea","color":"#8B4513","parts":3},{"name":"Water","color":"clear","parts":1}]}`

func newTestDrinksService(t *testing.T) (*drinks.Service, *gorm.DB) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	dsn := "file:" + strings.NewReplacer("/", "_", " ", "_").Replace(t.Name()) + "?mode=memory&cache=shared"
	db, err := database.OpenSQLite(dsn, zap.NewNop())
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("failed to access sql db: %v", err)
	}
	t.Cleanup(func() {
		_ = sqlDB.Close()
	})

	service, err := drinks.NewService(drinks.ServiceConfig{Database: db})
	if err != nil {
		t.Fatalf("failed to build drinks service: %v", err)
	}
	return service, db
}

// stubAuthorizer grants every permission listed in granted and fails with err otherwise.
type stubAuthorizer struct {
	granted map[string]bool
	err     error
}

func (s stubAuthorizer) Authorize(_ context.Context, _ string, permission string) (auth.Claims, error) {
	if s.err != nil {
		return auth.Claims{}, s.err
	}
	if !s.granted[permission] {
		return auth.Claims{}, &auth.Error{Code: auth.CodeAccessDenied, Description: "Access denied.", Status: http.StatusForbidden}
	}
	claims := auth.Claims{Permissions: []string{permission}}
	claims.Subject = "auth0|manager"
	return claims, nil
}

func grantAll() stubAuthorizer {
	return stubAuthorizer{granted: map[string]bool{
		PermissionGetDrinksDetail: true,
		PermissionPostDrinks:      true,
		PermissionPatchDrinks:     true,
		PermissionDeleteDrinks:    true,
	}}
}

func newTestRouter(t *testing.T, authorizer Authorizer, logger *zap.Logger) (http.Handler, *drinks.Service) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	service, _ := newTestDrinksService(t)
	handler, err := NewHTTPHandler(Dependencies{
		Authorizer:     authorizer,
		DrinksService:  service,
		Logger:         logger,
		AllowedOrigins: []string{"*"},
	})
	if err != nil {
		t.Fatalf("failed to build router: %v", err)
	}
	return handler, service
}

func performRequest(handler http.Handler, method, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	var request *http.Request
	if body == "" {
		request = httptest.NewRequest(method, path, http.NoBody)
	} else {
		request = httptest.NewRequest(method, path, strings.NewReader(body))
		request.Header.Set("Content-Type", "application/json")
	}
	for key, value := range headers {
		request.Header.Set(key, value)
	}
	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, request)
	return recorder
}

func decodeEnvelope(t *testing.T, recorder *httptest.ResponseRecorder) errorEnvelope {
	t.Helper()
	var envelope errorEnvelope
	if err := json.Unmarshal(recorder.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("failed to decode error envelope %q: %v", recorder.Body.String(), err)
	}
	return envelope
}

func expectError(t *testing.T, recorder *httptest.ResponseRecorder, status int, message string) errorEnvelope {
	t.Helper()
	if recorder.Code != status {
		t.Fatalf("unexpected status: got %d, want %d (body %s)", recorder.Code, status, recorder.Body.String())
	}
	envelope := decodeEnvelope(t, recorder)
	if envelope.Success || envelope.Error != status {
		t.Fatalf("unexpected envelope %+v", envelope)
	}
	if message != "" && envelope.Message != message {
		t.Fatalf("unexpected message: got %q, want %q", envelope.Message, message)
	}
	return envelope
}
