package middleware

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/guttosm/stockpulse/internal/domain/dto"
	"github.com/guttosm/stockpulse/internal/logger"
)

// ErrorHandler renders errors attached with c.Error() once the handler chain
// has finished, unless a response was already written.
//
// A deadline exceeded on the request context becomes 504; anything else 500.
func ErrorHandler(c *gin.Context) {
	c.Next()

	if len(c.Errors) == 0 {
		return
	}
	last := c.Errors.Last().Err
	rid, _ := c.Get(RequestIDKey)
	logger.L().Error().Str("request_id", toString(rid)).Err(last).Msg("request failed")

	if c.Writer.Written() {
		return
	}
	status := http.StatusInternalServerError
	if errors.Is(last, context.DeadlineExceeded) {
		status = http.StatusGatewayTimeout
	}
	c.JSON(status, dto.NewErrorResponse(http.StatusText(status), last))
}

// AbortWithError stops the chain and writes a standardized error body.
func AbortWithError(c *gin.Context, status int, message string, err error) {
	if err != nil {
		_ = c.Error(err)
	}
	c.AbortWithStatusJSON(status, dto.NewErrorResponse(message, err))
}

// Timeout attaches a deadline to every request context.
func Timeout(d time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), d)
		defer cancel()
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}
