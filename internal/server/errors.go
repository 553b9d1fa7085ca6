package server

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/MarcoPoloResearchLab/coffeeshop/internal/auth"
	"github.com/MarcoPoloResearchLab/coffeeshop/internal/drinks"
	"github.com/gin-gonic/gin"
)

const (
	messageInvalidRequest   = "Invalid request"
	messageDuplicateTitle   = "This drink title already exists."
	messageNotFound         = "entity not found"
	messageMethodNotAllowed = "method not allowed"
	messageInternal         = "Internal server error"
	messageCreateFailed     = "Server error. New drink could not be created."
	messageUpdateFailedFmt  = "Server error. Drink id:%d could not be updated."
	messageDeleteFailedFmt  = "Server error. Drink id:%d could not be deleted."
)

type errorEnvelope struct {
	Success     bool   `json:"success"`
	Error       int    `json:"error"`
	Message     string `json:"message"`
	MessageCode string `json:"message_code,omitempty"`
}

func respondError(c *gin.Context, status int, message string) {
	c.AbortWithStatusJSON(status, errorEnvelope{
		Success: false,
		Error:   status,
		Message: message,
	})
}

func respondAuthError(c *gin.Context, authErr *auth.Error) {
	c.AbortWithStatusJSON(authErr.Status, errorEnvelope{
		Success:     false,
		Error:       authErr.Status,
		Message:     authErr.Description,
		MessageCode: authErr.Code,
	})
}

// writeFailure maps the domain sentinels onto the envelope. storageMessage is used for
// any failure that is not a client error.
func writeFailure(c *gin.Context, err error, storageMessage string) {
	switch {
	case errors.Is(err, drinks.ErrDrinkNotFound):
		respondError(c, http.StatusNotFound, messageNotFound)
	case errors.Is(err, drinks.ErrDuplicateTitle):
		respondError(c, http.StatusBadRequest, messageDuplicateTitle)
	case errors.Is(err, drinks.ErrInvalidDrink):
		respondError(c, http.StatusBadRequest, messageInvalidRequest)
	default:
		respondError(c, http.StatusInternalServerError, storageMessage)
	}
}

func updateFailedMessage(id int64) string {
	return fmt.Sprintf(messageUpdateFailedFmt, id)
}

func deleteFailedMessage(id int64) string {
	return fmt.Sprintf(messageDeleteFailedFmt, id)
}
