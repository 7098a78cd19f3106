package middleware

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	apperrors "budgetwise/internal/errors"
	"budgetwise/internal/logger"
)

// abortWithError writes the standard error envelope and stops the chain.
func abortWithError(c *gin.Context, status int, code, message string) {
	c.AbortWithStatusJSON(status, gin.H{
		"success": false,
		"error":   gin.H{"code": code, "message": message},
	})
}

// ErrorHandler turns the last error recorded on the context into the JSON
// error envelope. Errors that are not AppErrors or bind failures are logged
// and reported as INTERNAL_ERROR without details.
func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 {
			return
		}

		last := c.Errors.Last()
		log := logger.Named("http").With(
			"path", c.Request.URL.Path,
			"method", c.Request.Method,
			"request_id", c.GetString(requestIDKey),
		)

		var appErr *apperrors.AppError
		switch {
		case errors.As(last.Err, &appErr):
			if appErr.Internal != nil {
				log.Errorw("app error", "code", appErr.Code, "message", appErr.Message, "internal", appErr.Internal.Error())
			}
			abortWithError(c, appErr.StatusCode, appErr.Code, appErr.Message)

		case last.IsType(gin.ErrorTypeBind):
			abortWithError(c, apperrors.ErrInvalidInput.StatusCode, apperrors.ErrInvalidInput.Code, last.Err.Error())

		default:
			log.Errorw("unexpected error", "error", last.Err.Error())
			abortWithError(c, apperrors.ErrInternalServer.StatusCode, apperrors.ErrInternalServer.Code, apperrors.ErrInternalServer.Message)
		}
	}
}

// NotFound answers unknown routes with the JSON error envelope.
func NotFound() gin.HandlerFunc {
	return func(c *gin.Context) {
		abortWithError(c, http.StatusNotFound, "ROUTE_NOT_FOUND", "No route for "+c.Request.Method+" "+c.Request.URL.Path)
	}
}
