package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/MarcoPoloResearchLab/coffeeshop/internal/auth"
	"github.com/MarcoPoloResearchLab/coffeeshop/internal/drinks"
	"github.com/MarcoPoloResearchLab/coffeeshop/internal/logging"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Permissions required by the protected routes.
const (
	PermissionGetDrinksDetail = "get:drinks-detail"
	PermissionPostDrinks      = "post:drinks"
	PermissionPatchDrinks     = "patch:drinks"
	PermissionDeleteDrinks    = "delete:drinks"
)

var (
	errMissingAuthorizer    = errors.New("authorizer dependency required")
	errMissingDrinksService = errors.New("drinks service dependency required")
)

// Authorizer runs the bearer-token checks for one required permission.
type Authorizer interface {
	Authorize(ctx context.Context, authorizationHeader, permission string) (auth.Claims, error)
}

type Dependencies struct {
	Authorizer     Authorizer
	DrinksService  *drinks.Service
	Logger         *zap.Logger
	AllowedOrigins []string
}

func NewHTTPHandler(deps Dependencies) (http.Handler, error) {
	if deps.Authorizer == nil {
		return nil, errMissingAuthorizer
	}
	if deps.DrinksService == nil {
		return nil, errMissingDrinksService
	}

	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	handler := &httpHandler{
		authorizer:    deps.Authorizer,
		drinksService: deps.DrinksService,
		logger:        logger,
	}

	router := gin.New()
	router.HandleMethodNotAllowed = true
	router.Use(logging.RequestMiddleware(logger))
	router.Use(gin.CustomRecovery(handler.recoverPanic))
	router.Use(corsMiddleware(deps.AllowedOrigins))

	router.NoRoute(func(c *gin.Context) {
		respondError(c, http.StatusNotFound, messageNotFound)
	})
	router.NoMethod(func(c *gin.Context) {
		respondError(c, http.StatusMethodNotAllowed, messageMethodNotAllowed)
	})

	router.GET("/drinks", handler.handleListDrinks)
	router.GET("/drinks-detail", handler.requirePermission(PermissionGetDrinksDetail), handler.handleListDrinkDetails)
	router.POST("/drinks", handler.requirePermission(PermissionPostDrinks), handler.handleCreateDrink)
	router.PATCH("/drinks/:id", handler.requirePermission(PermissionPatchDrinks), handler.handleUpdateDrink)
	router.DELETE("/drinks/:id", handler.requirePermission(PermissionDeleteDrinks), handler.handleDeleteDrink)

	return router, nil
}

func corsMiddleware(allowedOrigins []string) gin.HandlerFunc {
	config := cors.Config{
		AllowMethods: []string{
			http.MethodGet,
			http.MethodPost,
			http.MethodPatch,
			http.MethodDelete,
			http.MethodOptions,
		},
		AllowHeaders:  []string{"Authorization", "Content-Type"},
		ExposeHeaders: []string{logging.RequestIDHeader},
		MaxAge:        12 * time.Hour,
	}

	origins := make([]string, 0, len(allowedOrigins))
	for _, origin := range allowedOrigins {
		if origin == "*" {
			config.AllowAllOrigins = true
			origins = nil
			break
		}
		origins = append(origins, origin)
	}
	if len(allowedOrigins) == 0 {
		config.AllowAllOrigins = true
	}
	if !config.AllowAllOrigins {
		config.AllowOrigins = origins
	}

	return cors.New(config)
}

type httpHandler struct {
	authorizer    Authorizer
	drinksService *drinks.Service
	logger        *zap.Logger
}

func (h *httpHandler) recoverPanic(c *gin.Context, recovered any) {
	logging.FromContext(c, h.logger).Error("panic recovered", zap.Any("panic", recovered))
	respondError(c, http.StatusInternalServerError, messageInternal)
}
