package handler

import (
	"errors"
	"net/http"

	"event-checkin/internal/model"
	"event-checkin/internal/service"
	apperrors "event-checkin/pkg/app_errors"
	"event-checkin/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const userContextKey = "auth_user"

func BindJson(c *gin.Context, obj interface{}) error {
	if err := c.ShouldBindJSON(obj); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid request format",
		})
		return err
	}
	return nil
}

func BindQuery(c *gin.Context, obj interface{}) error {
	if err := c.ShouldBindQuery(obj); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid request format",
		})
		return err
	}
	return nil
}

// BindUUID parses a path parameter. On failure it writes the 400 response.
func BindUUID(c *gin.Context, param string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(param))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid " + param})
		return uuid.Nil, false
	}
	return id, true
}

// CurrentUser returns the caller stored by the authenticator.
func CurrentUser(c *gin.Context) *model.AuthUser {
	if v, ok := c.Get(userContextKey); ok {
		if user, ok := v.(*model.AuthUser); ok {
			return user
		}
	}
	return nil
}

// handleError maps service errors onto HTTP responses.
func handleError(c *gin.Context, err error, operation string) {
	log := logger.WithComponent("handler").With(zap.String("operation", operation), zap.Error(err))

	var importErr *service.ImportError
	switch {
	case errors.As(err, &importErr):
		log.Warn("Guest import rejected")
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid guest list", "rows": importErr.Rows})
	case errors.Is(err, apperrors.ErrInvalidInput),
		errors.Is(err, apperrors.ErrBundleTooLarge),
		errors.Is(err, apperrors.ErrNoPhoneNumber),
		errors.Is(err, apperrors.ErrInvalidPayload):
		log.Warn("Invalid input")
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, apperrors.ErrUnauthorized):
		log.Warn("Unauthorized")
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
	case errors.Is(err, apperrors.ErrNotEventOwner):
		log.Warn("Not event owner")
		c.JSON(http.StatusForbidden, gin.H{"error": "You do not have access to this event"})
	case errors.Is(err, apperrors.ErrEventNotFound):
		log.Warn("Event not found")
		c.JSON(http.StatusNotFound, gin.H{"error": "Event not found"})
	case errors.Is(err, apperrors.ErrGuestNotFound):
		log.Warn("Guest not found")
		c.JSON(http.StatusNotFound, gin.H{"error": "Guest not found"})
	case errors.Is(err, apperrors.ErrSessionNotFound):
		log.Warn("Scanner session not found")
		c.JSON(http.StatusNotFound, gin.H{"error": "Scanner session not found"})
	case errors.Is(err, apperrors.ErrDuplicateCode):
		log.Warn("Duplicate unique code")
		c.JSON(http.StatusConflict, gin.H{"error": "Unique code already exists for this event"})
	case errors.Is(err, apperrors.ErrScannerBusy):
		c.JSON(http.StatusConflict, gin.H{"error": "Scan already in progress"})
	case errors.Is(err, apperrors.ErrScanCooldown):
		c.JSON(http.StatusTooManyRequests, gin.H{"error": "Code was rejected moments ago"})
	case errors.Is(err, apperrors.ErrMessagingUnavailable):
		log.Warn("Messaging not configured")
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Messaging service is not configured"})
	case errors.Is(err, apperrors.ErrStorageUnavailable):
		log.Warn("Storage not configured")
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Photo storage is not configured"})
	default:
		log.Error("Unexpected error")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
	}
}
