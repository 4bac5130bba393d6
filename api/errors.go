package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"claimflow/apperr"
)

func errorStatus(err error) int {
	switch apperr.KindOf(err) {
	case apperr.ErrValidation:
		return http.StatusBadRequest
	case apperr.ErrNotFound:
		return http.StatusNotFound
	case apperr.ErrConflict:
		return http.StatusConflict
	case apperr.ErrPrecondition:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// respondError writes {"error": ...}. Internal errors are logged by the request
// middleware and answered with a generic message.
func respondError(c *gin.Context, err error) {
	status := errorStatus(err)
	_ = c.Error(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		msg = "internal error"
	}
	c.AbortWithStatusJSON(status, gin.H{"error": msg})
}

func bindJSON(c *gin.Context, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		respondError(c, apperr.Wrap(apperr.ErrValidation, "invalid request body", err))
		return false
	}
	return true
}

func isKind(err, kind error) bool {
	return errors.Is(err, kind)
}
