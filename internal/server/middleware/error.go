package middleware

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/nulzo/model-hub/internal/core/domain"
	"github.com/nulzo/model-hub/pkg/api"
)

// ErrorHandler renders every error attached by a handler. Classified core
// errors carry their own status mapping; everything else is a 500.
func ErrorHandler(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 {
			return
		}
		if c.Writer.Written() {
			// A streaming handler already owns the response body
			return
		}

		err := c.Errors.Last().Err

		if problem, ok := err.(*api.Problem); ok {
			if problem.Log != nil {
				logger.Error("Internal error", zap.Error(problem.Log))
			}
			// RFC 9457 dictates the json is at the root
			c.JSON(problem.Status, problem)
			c.Abort()
			return
		}

		var domErr *domain.Error
		if errors.As(err, &domErr) {
			c.JSON(domErr.HTTPStatus(), api.FromDomainError(domErr))
			c.Abort()
			return
		}

		logger.Error("Unhandled error", zap.Error(err))
		c.JSON(http.StatusInternalServerError, api.NewProblem(
			http.StatusInternalServerError,
			"Internal Server Error",
			"An unexpected error occurred.",
		))
		c.Abort()
	}
}
