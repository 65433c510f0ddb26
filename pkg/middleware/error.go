package middleware

import (
	"errors"
	"net/http"

	"incentive-engine/pkg/errutil"

	"github.com/gin-gonic/gin"
)

// Error maps domain errors attached via c.Error onto HTTP responses. Errors
// outside the errutil taxonomy become an opaque 500; the core never relies
// on this fallback to hide a failure.
func Error() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		last := c.Errors.Last()
		if last == nil || c.Writer.Written() {
			return
		}

		var be errutil.BaseError
		if errors.As(last.Err, &be) {
			c.JSON(be.Code.HTTPStatus(), be.JSON())
			return
		}

		c.JSON(http.StatusInternalServerError, gin.H{
			"error": gin.H{
				"code":    errutil.StatusInternal,
				"message": "internal server error",
			},
		})
	}
}
