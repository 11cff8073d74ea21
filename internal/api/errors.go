package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"fitshare/fitness-api/internal/apperr"
	"fitshare/fitness-api/internal/composition"
)

// Helper to return JSON error response and abort request
func abortWithError(c *gin.Context, code int, message string) {
	c.AbortWithStatusJSON(code, gin.H{"error": message})
}

func statusOf(err error) int {
	switch {
	case errors.Is(err, apperr.ErrUnauthenticated):
		return http.StatusUnauthorized
	case errors.Is(err, apperr.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, apperr.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, apperr.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, apperr.ErrValidation):
		return http.StatusUnprocessableEntity
	}
	return http.StatusInternalServerError
}

// respondError writes the status for err's kind. Messages of unexpected
// errors are logged, never sent.
func respondError(c *gin.Context, err error) {
	code := statusOf(err)
	if code == http.StatusInternalServerError {
		requestLogger(c).Error("request failed",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Error(err),
		)
		c.JSON(code, gin.H{"error": "internal server error"})
		return
	}

	body := gin.H{"error": apperr.Message(err)}
	var perr *composition.PositionError
	if errors.As(err, &perr) {
		if len(perr.Missing) > 0 {
			body["missing"] = perr.Missing
		}
		if len(perr.Duplicates) > 0 {
			body["duplicates"] = perr.Duplicates
		}
		if len(perr.OutOfRange) > 0 {
			body["outOfRange"] = perr.OutOfRange
		}
	}
	c.JSON(code, body)
}

func badRequest(c *gin.Context, err error) {
	abortWithError(c, http.StatusBadRequest, "validation error: "+err.Error())
}
