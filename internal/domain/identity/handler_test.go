package identity

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/mediconnect/api/internal/platform/auth"
)

func newTestServer(svc *Service) *echo.Echo {
	e := echo.New()
	h := NewHandler(svc)
	h.RegisterPublicRoutes(e.Group(""))
	h.RegisterRoutes(e.Group(""))
	return e
}

func request(e *echo.Echo, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func requestAs(e *echo.Echo, actorID uuid.UUID, role, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)

	ctx := req.Context()
	ctx = context.WithValue(ctx, auth.UserIDKey, actorID.String())
	ctx = context.WithValue(ctx, auth.UserRoleKey, role)
	req = req.WithContext(ctx)

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestHandlerRegister(t *testing.T) {
	svc, _, _ := newTestService()
	e := newTestServer(svc)

	rec := request(e, http.MethodPost, "/auth/register",
		`{"email":"ana@example.com","password":"patient-password","first_name":"Ana","last_name":"Silva"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}

	var u User
	if err := json.Unmarshal(rec.Body.Bytes(), &u); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if u.Role != auth.RolePatient {
		t.Errorf("self-registration must yield a patient, got %s", u.Role)
	}
	if strings.Contains(rec.Body.String(), "password") {
		t.Error("response must not expose the password hash")
	}
}

func TestHandlerRegister_RoleIgnored(t *testing.T) {
	svc, _, _ := newTestService()
	e := newTestServer(svc)

	// Role in the public payload is discarded, not honored
	rec := request(e, http.MethodPost, "/auth/register",
		`{"email":"ana@example.com","password":"patient-password","first_name":"Ana","last_name":"Silva","role":"admin"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	var u User
	if err := json.Unmarshal(rec.Body.Bytes(), &u); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if u.Role != auth.RolePatient {
		t.Errorf("expected patient, got %s", u.Role)
	}
}

func TestHandlerLogin(t *testing.T) {
	svc, _, _ := newTestService()
	registerPatient(t, svc, "ana@example.com")
	e := newTestServer(svc)

	rec := request(e, http.MethodPost, "/auth/login",
		`{"email":"ana@example.com","password":"patient-password"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		User   *User      `json:"user"`
		Tokens *TokenPair `json:"tokens"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Tokens == nil || resp.Tokens.AccessToken == "" {
		t.Error("expected an access token")
	}

	rec = request(e, http.MethodPost, "/auth/login",
		`{"email":"ana@example.com","password":"wrong"}`)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("expected 401 for bad credentials, got %d", rec.Code)
	}
}

func TestHandlerRefresh(t *testing.T) {
	svc, _, _ := newTestService()
	registerPatient(t, svc, "ana@example.com")
	_, tokens, err := svc.Login(context.Background(), "ana@example.com", "patient-password")
	if err != nil {
		t.Fatalf("Login() error: %v", err)
	}
	e := newTestServer(svc)

	rec := request(e, http.MethodPost, "/auth/refresh",
		fmt.Sprintf(`{"refresh_token":%q}`, tokens.RefreshToken))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	rec = request(e, http.MethodPost, "/auth/refresh",
		fmt.Sprintf(`{"refresh_token":%q}`, tokens.AccessToken))
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("expected 401 for access token, got %d", rec.Code)
	}
}

func TestHandlerMe(t *testing.T) {
	svc, _, _ := newTestService()
	u := registerPatient(t, svc, "ana@example.com")
	e := newTestServer(svc)

	rec := requestAs(e, u.ID, auth.RolePatient, http.MethodGet, "/users/me", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var got User
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if got.ID != u.ID {
		t.Errorf("expected own profile, got %s", got.ID)
	}
}

func TestHandlerGetUser_CrossAccess(t *testing.T) {
	svc, _, _ := newTestService()
	a := registerPatient(t, svc, "ana@example.com")
	b := registerPatient(t, svc, "joao@example.com")
	e := newTestServer(svc)

	rec := requestAs(e, a.ID, auth.RolePatient, http.MethodGet, "/users/"+b.ID.String(), "")
	if rec.Code != http.StatusForbidden {
		t.Errorf("expected 403, got %d", rec.Code)
	}

	rec = requestAs(e, uuid.New(), auth.RoleAdmin, http.MethodGet, "/users/"+b.ID.String(), "")
	if rec.Code != http.StatusOK {
		t.Errorf("admin read expected 200, got %d", rec.Code)
	}

	rec = requestAs(e, uuid.New(), auth.RoleAdmin, http.MethodGet, "/users/"+uuid.NewString(), "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404 for unknown user, got %d", rec.Code)
	}
}

func TestHandlerAdminRoutes_RequireRole(t *testing.T) {
	svc, _, _ := newTestService()
	u := registerPatient(t, svc, "ana@example.com")
	e := newTestServer(svc)

	// Patients cannot reach admin endpoints
	rec := requestAs(e, u.ID, auth.RolePatient, http.MethodPost, "/users/"+u.ID.String()+"/deactivate", "")
	if rec.Code != http.StatusForbidden {
		t.Errorf("expected 403, got %d", rec.Code)
	}
	rec = requestAs(e, u.ID, auth.RolePatient, http.MethodGet, "/users/search?q=ana", "")
	if rec.Code != http.StatusForbidden {
		t.Errorf("expected 403, got %d", rec.Code)
	}

	rec = requestAs(e, uuid.New(), auth.RoleAdmin, http.MethodPost, "/users/"+u.ID.String()+"/deactivate", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var got User
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if got.Active {
		t.Error("expected account to be deactivated")
	}
}

func TestHandlerCreateUser_Admin(t *testing.T) {
	svc, _, _ := newTestService()
	e := newTestServer(svc)

	body := `{"email":"doc@example.com","password":"doctor-password","first_name":"Carlos","last_name":"Mendes","role":"doctor","specialty":"cardiology","license_number":"CRM-1"}`
	rec := requestAs(e, uuid.New(), auth.RoleAdmin, http.MethodPost, "/admin/users", body)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}

	var u User
	if err := json.Unmarshal(rec.Body.Bytes(), &u); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if u.Role != auth.RoleDoctor {
		t.Errorf("expected doctor, got %s", u.Role)
	}
}

func TestHandlerListDoctors(t *testing.T) {
	svc, _, _ := newTestService()
	_, err := svc.Register(context.Background(), auth.RoleAdmin, RegisterInput{
		Email: "doc@example.com", Password: "doctor-password",
		FirstName: "Carlos", LastName: "Mendes", Role: auth.RoleDoctor,
		Specialty: strPtr("cardiology"), LicenseNumber: strPtr("CRM-1"),
	})
	if err != nil {
		t.Fatalf("register doctor: %v", err)
	}
	pat := registerPatient(t, svc, "ana@example.com")
	e := newTestServer(svc)

	rec := requestAs(e, pat.ID, auth.RolePatient, http.MethodGet, "/doctors?specialty=cardiology", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		Data  []*User `json:"data"`
		Total int     `json:"total"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Total != 1 {
		t.Errorf("expected 1 doctor, got %d", resp.Total)
	}
}

func TestHandlerChangePassword(t *testing.T) {
	svc, _, _ := newTestService()
	u := registerPatient(t, svc, "ana@example.com")
	e := newTestServer(svc)

	rec := requestAs(e, u.ID, auth.RolePatient, http.MethodPost, "/auth/change-password",
		`{"current_password":"patient-password","new_password":"brand-new-password"}`)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d: %s", rec.Code, rec.Body.String())
	}

	rec = requestAs(e, u.ID, auth.RolePatient, http.MethodPost, "/auth/change-password",
		`{"current_password":"patient-password","new_password":"x"}`)
	if rec.Code != http.StatusForbidden {
		t.Errorf("expected 403 for stale current password, got %d", rec.Code)
	}
}
