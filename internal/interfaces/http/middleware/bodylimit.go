package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/omkarjtg/ecomm/internal/interfaces/http/dto"
)

// MsgBodyTooLarge is the error message of a rejected oversized request
const MsgBodyTooLarge = "Request body exceeds maximum allowed size"

// BodyLimit caps request bodies at maxBytes; zero or less disables the cap.
// Product forms carry an image, so the limit must leave room for one upload.
// A declared length over the cap is refused up front, a body that streams
// past it fails on read with *http.MaxBytesError.
func BodyLimit(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if maxBytes <= 0 || c.Request.Body == nil || c.Request.Body == http.NoBody {
			c.Next()
			return
		}
		if c.Request.ContentLength > maxBytes {
			c.AbortWithStatusJSON(http.StatusRequestEntityTooLarge, dto.NewErrorResponseWithRequestID(
				dto.ErrCodeRequestTooLarge, MsgBodyTooLarge, c.GetString(RequestIDKey),
			))
			return
		}
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}
