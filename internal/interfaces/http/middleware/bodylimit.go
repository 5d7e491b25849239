package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/magesync/backend/internal/interfaces/http/dto"
)

// BodyLimit rejects bodies larger than maxBytes. Triggers take their
// parameters from the query string, so the limit is small.
func BodyLimit(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.ContentLength > maxBytes {
			c.AbortWithStatusJSON(http.StatusRequestEntityTooLarge, dto.NewErrorResponseWithRequestID(
				dto.ErrCodeRequestTooLarge,
				"Request body exceeds maximum allowed size",
				GetRequestID(c),
			))
			return
		}

		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}
