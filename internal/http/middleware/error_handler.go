package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/krishiconnect/backend/internal/logger"
	"github.com/krishiconnect/backend/internal/pkg/apperror"
)

// ErrorHandler turns errors attached to the context into uniform JSON
// responses. Untyped errors are masked as internal so no raw failure
// text ever reaches a client.
func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Writer.Written() || len(c.Errors) == 0 {
			return
		}

		err := c.Errors.Last().Err
		appErr := apperror.From(err)

		if logger.Log != nil {
			entry := logger.Log.WithFields(logrus.Fields{
				"code":   appErr.Code,
				"path":   c.Request.URL.Path,
				"method": c.Request.Method,
			})
			if appErr.Code == apperror.ErrCodeInternal {
				entry.WithError(err).Error("request failed")
			} else {
				entry.Info("request rejected")
			}
		}

		body := gin.H{
			"error": appErr.Message,
			"code":  appErr.Code,
		}
		if appErr.AttemptsRemaining != nil {
			body["attempts_remaining"] = *appErr.AttemptsRemaining
		}
		c.JSON(appErr.HTTPStatus, body)
	}
}
