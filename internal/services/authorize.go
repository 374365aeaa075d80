package services

import (
	"fmt"
	"time"

	"github.com/easexpo/marketplace-backend/internal/models"
	"github.com/google/uuid"
)

// Caller is the authenticated principal an operation runs for
type Caller struct {
	ID    uuid.UUID
	Email string
	Roles []string
}

// IsAdmin reports whether the caller carries the admin role
func (c Caller) IsAdmin() bool {
	return models.HasRole(c.Roles, models.RoleAdmin)
}

// Authorize allows admins and the owner of the resource
func Authorize(caller Caller, resourceOwnerID uuid.UUID) error {
	if caller.IsAdmin() || caller.ID == resourceOwnerID {
		return nil
	}
	return fmt.Errorf("%w: caller %s does not own this resource", models.ErrForbidden, caller.ID)
}

// Clock returns the current time; replaced in tests
type Clock func() time.Time

func (c Clock) today() time.Time {
	if c == nil {
		return models.DateOnly(time.Now())
	}
	return models.DateOnly(c())
}

func (c Clock) now() time.Time {
	if c == nil {
		return time.Now()
	}
	return c()
}
