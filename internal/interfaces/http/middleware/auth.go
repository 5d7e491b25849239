package middleware

import (
	"crypto/subtle"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/magesync/backend/internal/interfaces/http/dto"
)

// InternalTokenHeader is the header the trigger routes expect
const InternalTokenHeader = "X-Internal-Token"

// InternalToken rejects requests whose X-Internal-Token does not match
// token. An empty token disables the check.
func InternalToken(token string) gin.HandlerFunc {
	expected := []byte(token)
	return func(c *gin.Context) {
		if len(expected) == 0 {
			c.Next()
			return
		}
		got := []byte(c.GetHeader(InternalTokenHeader))
		if subtle.ConstantTimeCompare(got, expected) != 1 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, dto.NewErrorResponseWithRequestID(
				dto.ErrCodeUnauthorized,
				"missing or invalid internal token",
				GetRequestID(c),
			))
			return
		}
		c.Next()
	}
}
