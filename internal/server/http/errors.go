package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/dmitrijs2005/gophauth/internal/common"
)

// respondError maps service errors to a status and a safe message. Anything
// unrecognised is a 500 with no detail.
func respondError(c *gin.Context, err error) {
	status, msg := http.StatusInternalServerError, common.ErrorInternal.Error()

	switch {
	case errors.Is(err, common.ErrInvalidCredentials):
		status, msg = http.StatusUnauthorized, common.ErrInvalidCredentials.Error()
	case errors.Is(err, common.ErrInvalidToken):
		status, msg = http.StatusUnauthorized, common.ErrInvalidToken.Error()
	case errors.Is(err, common.ErrorUnauthorized):
		status, msg = http.StatusUnauthorized, common.ErrorUnauthorized.Error()
	case errors.Is(err, common.ErrDuplicateIdentity):
		status, msg = http.StatusConflict, common.ErrDuplicateIdentity.Error()
	case errors.Is(err, common.ErrInvalidInput):
		status, msg = http.StatusBadRequest, common.ErrInvalidInput.Error()
	case errors.Is(err, common.ErrorNotFound):
		status, msg = http.StatusNotFound, common.ErrorNotFound.Error()
	}

	c.AbortWithStatusJSON(status, gin.H{"error": msg})
}

func respondBadRequest(c *gin.Context) {
	c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
}
