package common

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/krishiconnect/backend/internal/http/middleware"
	"github.com/krishiconnect/backend/internal/pkg/apperror"
)

// ErrUserNotInContext is returned when no authenticated user is attached
// to the request context.
var ErrUserNotInContext = errors.New("user not found in context")

// CurrentUserID extracts the authenticated user ID from the gin context.
func CurrentUserID(c *gin.Context) (uuid.UUID, error) {
	raw, exists := c.Get(middleware.ContextUserIDKey)
	if !exists {
		return uuid.Nil, ErrUserNotInContext
	}

	userID, ok := raw.(uuid.UUID)
	if !ok {
		return uuid.Nil, ErrUserNotInContext
	}

	return userID, nil
}

// RespondAppError writes the JSON body for a service error: the mapped
// status, the stable code, and attempts_remaining when present.
func RespondAppError(c *gin.Context, err error) {
	appErr := apperror.From(err)

	// Attach for request logging.
	_ = c.Error(err)

	body := gin.H{
		"error": appErr.Message,
		"code":  appErr.Code,
	}
	if appErr.AttemptsRemaining != nil {
		body["attempts_remaining"] = *appErr.AttemptsRemaining
	}
	c.JSON(appErr.HTTPStatus, body)
}

// RespondError sends a plain error response.
func RespondError(c *gin.Context, statusCode int, message string) {
	c.JSON(statusCode, gin.H{"error": message})
}

// RespondBadRequest sends a 400 Bad Request response.
func RespondBadRequest(c *gin.Context, message string) {
	if message == "" {
		message = "invalid request"
	}
	RespondError(c, http.StatusBadRequest, message)
}

// RespondUnauthorized sends a 401 Unauthorized response.
func RespondUnauthorized(c *gin.Context, message string) {
	if message == "" {
		message = "authorization required"
	}
	RespondError(c, http.StatusUnauthorized, message)
}
