package middleware

import (
	"context"
	"errors"
	"net/http"

	"github.com/easexpo/marketplace-backend/internal/models"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// AccountLookup loads the account behind a token
type AccountLookup interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
}

// RequireActiveAccount rejects tokens whose account was deactivated or deleted
// after the token was issued. Must be used after AuthMiddleware.
func RequireActiveAccount(users AccountLookup, logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		userCtx, exists := GetUserContext(c)
		if !exists {
			abortUnauthorized(c, "unauthorized", "User context not found", "MISSING_USER_CONTEXT")
			return
		}

		user, err := users.GetByID(c.Request.Context(), userCtx.UserID)
		if err != nil {
			if errors.Is(err, models.ErrNotFound) {
				abortUnauthorized(c, "unauthorized", "Account no longer exists", "ACCOUNT_INACTIVE")
				return
			}
			logger.WithError(err).WithField("user_id", userCtx.UserID).Error("failed to check account status")
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
				"error":   "database_error",
				"message": "Failed to verify account status",
			})
			return
		}

		if !user.IsActive {
			abortUnauthorized(c, "unauthorized", "Your account has been deactivated", "ACCOUNT_INACTIVE")
			return
		}

		c.Next()
	}
}
