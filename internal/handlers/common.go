// internal/handlers/common.go
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/agritrace/agritrace-backend/internal/services"
	"github.com/agritrace/agritrace-backend/internal/utils"
)

// handleServiceError maps business-rule rejections to HTTP statuses.
// Anything without a code is an infrastructure failure and becomes a 500.
func handleServiceError(c *gin.Context, err error) {
	code := services.CodeOf(err)

	switch code {
	case services.CodeUnauthorized:
		utils.ErrorResponse(c, http.StatusForbidden, string(code), err.Error(), nil)
	case services.CodeNotFound:
		utils.ErrorResponse(c, http.StatusNotFound, string(code), err.Error(), nil)
	case services.CodeConflict:
		utils.ErrorResponse(c, http.StatusConflict, string(code), err.Error(), nil)
	case services.CodeInvalidTransition:
		utils.ErrorResponse(c, http.StatusUnprocessableEntity, string(code), err.Error(), nil)
	case services.CodeValidationFailed:
		utils.ErrorResponse(c, http.StatusBadRequest, string(code), err.Error(), nil)
	case services.CodeExpired:
		utils.ErrorResponse(c, http.StatusGone, string(code), err.Error(), nil)
	default:
		logrus.WithError(err).Error("Internal error")
		utils.InternalErrorResponse(c, "")
	}
}
