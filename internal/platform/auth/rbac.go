package auth

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
)

// Roles known to the system.
const (
	RolePatient = "patient"
	RoleDoctor  = "doctor"
	RoleAdmin   = "admin"
)

// Action identifies an operation being authorized against a resource.
type Action string

const (
	ActionCreate       Action = "create"
	ActionRead         Action = "read"
	ActionUpdateStatus Action = "update_status"
	ActionCancel       Action = "cancel"
	ActionReschedule   Action = "reschedule"
)

// Authorize decides whether an actor may perform an action on a resource
// owned by resourceOwnerID. It is pure and never errors: unknown roles and
// actions deny.
//
// Admins may do anything. Doctors may read and update the status of
// appointments assigned to them, and nothing else; in particular a doctor
// cannot create an appointment on behalf of a patient. Patients may create
// appointments for themselves and read, cancel or reschedule only their own.
func Authorize(actorRole, actorID string, action Action, resourceOwnerID string) bool {
	switch actorRole {
	case RoleAdmin:
		return true
	case RoleDoctor:
		switch action {
		case ActionRead, ActionUpdateStatus:
			return actorID == resourceOwnerID
		}
		return false
	case RolePatient:
		switch action {
		case ActionCreate, ActionRead, ActionCancel, ActionReschedule:
			return actorID == resourceOwnerID
		}
		return false
	}
	return false
}

// RequireRole returns middleware that checks if the user has one of the
// specified roles. Admins pass every role check.
func RequireRole(roles ...string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			role := RoleFromContext(c.Request().Context())
			if role == RoleAdmin {
				return next(c)
			}
			for _, required := range roles {
				if role == required {
					return next(c)
				}
			}
			return echo.NewHTTPError(http.StatusForbidden,
				fmt.Sprintf("required role: %s", strings.Join(roles, " or ")))
		}
	}
}
