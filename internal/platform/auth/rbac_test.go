package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
)

func TestAuthorize_AdminAllowsEverything(t *testing.T) {
	actions := []Action{ActionCreate, ActionRead, ActionUpdateStatus, ActionCancel, ActionReschedule}
	for _, action := range actions {
		if !Authorize(RoleAdmin, "admin-1", action, "someone-else") {
			t.Errorf("admin should be allowed %s on any resource", action)
		}
	}
}

func TestAuthorize_DoctorOwnAppointments(t *testing.T) {
	if !Authorize(RoleDoctor, "doc-1", ActionRead, "doc-1") {
		t.Error("doctor should read own-assigned appointments")
	}
	if !Authorize(RoleDoctor, "doc-1", ActionUpdateStatus, "doc-1") {
		t.Error("doctor should update status of own-assigned appointments")
	}
	if Authorize(RoleDoctor, "doc-1", ActionRead, "doc-2") {
		t.Error("doctor must not read another doctor's appointments")
	}
	if Authorize(RoleDoctor, "doc-1", ActionUpdateStatus, "doc-2") {
		t.Error("doctor must not update another doctor's appointments")
	}
}

func TestAuthorize_DoctorCannotCreate(t *testing.T) {
	if Authorize(RoleDoctor, "doc-1", ActionCreate, "patient-1") {
		t.Error("doctor must not create appointments on behalf of a patient")
	}
	if Authorize(RoleDoctor, "doc-1", ActionCreate, "doc-1") {
		t.Error("doctor must not create appointments at all")
	}
	if Authorize(RoleDoctor, "doc-1", ActionCancel, "doc-1") {
		t.Error("doctor must not cancel appointments")
	}
	if Authorize(RoleDoctor, "doc-1", ActionReschedule, "doc-1") {
		t.Error("doctor must not reschedule appointments")
	}
}

func TestAuthorize_PatientOwnResources(t *testing.T) {
	allowed := []Action{ActionCreate, ActionRead, ActionCancel, ActionReschedule}
	for _, action := range allowed {
		if !Authorize(RolePatient, "pat-1", action, "pat-1") {
			t.Errorf("patient should be allowed %s on own resources", action)
		}
	}
}

func TestAuthorize_PatientDeniedCrossAccess(t *testing.T) {
	actions := []Action{ActionCreate, ActionRead, ActionCancel, ActionReschedule, ActionUpdateStatus}
	for _, action := range actions {
		if Authorize(RolePatient, "pat-1", action, "pat-2") {
			t.Errorf("patient must not %s another patient's resources", action)
		}
	}
}

func TestAuthorize_PatientDeniedUpdateStatus(t *testing.T) {
	if Authorize(RolePatient, "pat-1", ActionUpdateStatus, "pat-1") {
		t.Error("patient must not update appointment status directly")
	}
}

func TestAuthorize_UnknownRoleDenied(t *testing.T) {
	if Authorize("nurse", "n-1", ActionRead, "n-1") {
		t.Error("unknown role must be denied")
	}
	if Authorize("", "x", ActionRead, "x") {
		t.Error("empty role must be denied")
	}
}

func TestRequireRole_Allows(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	ctx := context.WithValue(req.Context(), UserRoleKey, RoleDoctor)
	req = req.WithContext(ctx)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	handler := func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	}
	h := RequireRole(RoleDoctor)(handler)
	if err := h(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestRequireRole_AdminOverride(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	ctx := context.WithValue(req.Context(), UserRoleKey, RoleAdmin)
	req = req.WithContext(ctx)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	handler := func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	}
	h := RequireRole(RoleDoctor)(handler)
	if err := h(c); err != nil {
		t.Fatalf("admin should pass any role check, got: %v", err)
	}
}

func TestRequireRole_Forbids(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	ctx := context.WithValue(req.Context(), UserRoleKey, RolePatient)
	req = req.WithContext(ctx)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	handler := func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	}
	h := RequireRole(RoleDoctor)(handler)
	err := h(c)
	if err == nil {
		t.Fatal("expected forbidden error")
	}
	httpErr, ok := err.(*echo.HTTPError)
	if !ok {
		t.Fatalf("expected echo.HTTPError, got %T", err)
	}
	if httpErr.Code != http.StatusForbidden {
		t.Errorf("expected 403, got %d", httpErr.Code)
	}
}
