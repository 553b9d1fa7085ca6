package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/MarcoPoloResearchLab/coffeeshop/internal/drinks"
	"github.com/MarcoPoloResearchLab/coffeeshop/internal/logging"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const maxRequestBodyBytes = 1 << 20

var (
	errPayloadNotObject = errors.New("request body must be a json object")
	errTrailingPayload  = errors.New("request body has trailing data")
)

type shortListResponse struct {
	Success bool               `json:"success"`
	Drinks  []drinks.ShortView `json:"drinks"`
}

type longListResponse struct {
	Success bool              `json:"success"`
	Drinks  []drinks.LongView `json:"drinks"`
}

type deleteResponse struct {
	Success bool  `json:"success"`
	Delete  int64 `json:"delete"`
}

func (h *httpHandler) handleListDrinks(c *gin.Context) {
	stored, err := h.drinksService.ListDrinks(c.Request.Context())
	if err != nil {
		respondError(c, http.StatusInternalServerError, messageInternal)
		return
	}

	views := make([]drinks.ShortView, 0, len(stored))
	for _, drink := range stored {
		view, err := drink.Short()
		if err != nil {
			logging.FromContext(c, h.logger).Error("failed to project drink", zap.Int64("drink_id", drink.ID), zap.Error(err))
			respondError(c, http.StatusInternalServerError, messageInternal)
			return
		}
		views = append(views, view)
	}

	c.JSON(http.StatusOK, shortListResponse{Success: true, Drinks: views})
}

func (h *httpHandler) handleListDrinkDetails(c *gin.Context) {
	stored, err := h.drinksService.ListDrinks(c.Request.Context())
	if err != nil {
		respondError(c, http.StatusInternalServerError, messageInternal)
		return
	}

	views := make([]drinks.LongView, 0, len(stored))
	for _, drink := range stored {
		view, err := drink.Long()
		if err != nil {
			logging.FromContext(c, h.logger).Error("failed to project drink", zap.Int64("drink_id", drink.ID), zap.Error(err))
			respondError(c, http.StatusInternalServerError, messageInternal)
			return
		}
		views = append(views, view)
	}

	c.JSON(http.StatusOK, longListResponse{Success: true, Drinks: views})
}

func (h *httpHandler) handleCreateDrink(c *gin.Context) {
	payload, err := decodeDrinkPayload(c)
	if err != nil {
		respondError(c, http.StatusBadRequest, messageInvalidRequest)
		return
	}
	draft, err := drinks.ValidatePayload(payload, false)
	if err != nil {
		respondError(c, http.StatusBadRequest, messageInvalidRequest)
		return
	}

	created, err := h.drinksService.CreateDrink(c.Request.Context(), *draft.Title, draft.Recipe)
	if err != nil {
		writeFailure(c, err, messageCreateFailed)
		return
	}

	h.respondWithDrink(c, created)
	h.logMutation(c, "drink created", created.ID)
}

func (h *httpHandler) handleUpdateDrink(c *gin.Context) {
	id, ok := parseDrinkID(c)
	if !ok {
		respondError(c, http.StatusNotFound, messageNotFound)
		return
	}

	if _, err := h.drinksService.FindDrink(c.Request.Context(), id); err != nil {
		writeFailure(c, err, messageInternal)
		return
	}

	payload, err := decodeDrinkPayload(c)
	if err != nil {
		respondError(c, http.StatusBadRequest, messageInvalidRequest)
		return
	}
	draft, err := drinks.ValidatePayload(payload, true)
	if err != nil {
		respondError(c, http.StatusBadRequest, messageInvalidRequest)
		return
	}

	updated, err := h.drinksService.UpdateDrink(c.Request.Context(), id, draft)
	if err != nil {
		writeFailure(c, err, updateFailedMessage(id))
		return
	}

	h.respondWithDrink(c, updated)
	h.logMutation(c, "drink updated", updated.ID)
}

func (h *httpHandler) handleDeleteDrink(c *gin.Context) {
	id, ok := parseDrinkID(c)
	if !ok {
		respondError(c, http.StatusNotFound, messageNotFound)
		return
	}

	if err := h.drinksService.DeleteDrink(c.Request.Context(), id); err != nil {
		writeFailure(c, err, deleteFailedMessage(id))
		return
	}

	c.JSON(http.StatusOK, deleteResponse{Success: true, Delete: id})
	h.logMutation(c, "drink deleted", id)
}

func (h *httpHandler) respondWithDrink(c *gin.Context, drink drinks.Drink) {
	view, err := drink.Long()
	if err != nil {
		logging.FromContext(c, h.logger).Error("failed to project drink", zap.Int64("drink_id", drink.ID), zap.Error(err))
		respondError(c, http.StatusInternalServerError, messageInternal)
		return
	}
	c.JSON(http.StatusOK, longListResponse{Success: true, Drinks: []drinks.LongView{view}})
}

func (h *httpHandler) logMutation(c *gin.Context, message string, id int64) {
	fields := []zap.Field{zap.Int64("drink_id", id)}
	if claims, ok := claimsFromContext(c); ok {
		fields = append(fields, zap.String("subject", claims.Subject))
	}
	logging.FromContext(c, h.logger).Info(message, fields...)
}

func parseDrinkID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

// decodeDrinkPayload reads a single JSON object, keeping numbers as json.Number so
// ingredient parts can be coerced without float rounding.
func decodeDrinkPayload(c *gin.Context) (map[string]any, error) {
	decoder := json.NewDecoder(http.MaxBytesReader(c.Writer, c.Request.Body, maxRequestBodyBytes))
	decoder.UseNumber()

	var payload map[string]any
	if err := decoder.Decode(&payload); err != nil {
		return nil, err
	}
	if payload == nil {
		return nil, errPayloadNotObject
	}
	if _, err := decoder.Token(); !errors.Is(err, io.EOF) {
		return nil, errTrailingPayload
	}
	return payload, nil
}
