package identity

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/mediconnect/api/internal/apperr"
	"github.com/mediconnect/api/internal/domain/activity"
	"github.com/mediconnect/api/internal/platform/auth"
)

var emailPattern = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)

type Service struct {
	repo     Repository
	issuer   *auth.TokenIssuer
	activity activity.Recorder
	logger   zerolog.Logger
}

func NewService(repo Repository, issuer *auth.TokenIssuer, rec activity.Recorder, logger zerolog.Logger) *Service {
	return &Service{repo: repo, issuer: issuer, activity: rec, logger: logger}
}

type RegisterInput struct {
	Email         string     `json:"email"`
	Password      string     `json:"password"`
	FirstName     string     `json:"first_name"`
	LastName      string     `json:"last_name"`
	Role          string     `json:"role"`
	DateOfBirth   *time.Time `json:"date_of_birth"`
	Phone         *string    `json:"phone"`
	Address       *string    `json:"address"`
	Specialty     *string    `json:"specialty"`
	LicenseNumber *string    `json:"license_number"`
}

// Register creates a new user account. Anyone may register as a patient;
// doctor and admin accounts can only be created by an admin actor.
func (s *Service) Register(ctx context.Context, actorRole string, in RegisterInput) (*User, error) {
	in.Email = strings.TrimSpace(strings.ToLower(in.Email))
	if !emailPattern.MatchString(in.Email) {
		return nil, apperr.Validationf("invalid email address")
	}
	if strings.TrimSpace(in.FirstName) == "" || strings.TrimSpace(in.LastName) == "" {
		return nil, apperr.Validationf("first and last name are required")
	}

	role := in.Role
	if role == "" {
		role = auth.RolePatient
	}
	switch role {
	case auth.RolePatient:
	case auth.RoleDoctor, auth.RoleAdmin:
		if actorRole != auth.RoleAdmin {
			return nil, fmt.Errorf("%w: only admins may create %s accounts", apperr.ErrPermissionDenied, role)
		}
	default:
		return nil, apperr.Validationf("unknown role %q", role)
	}

	if role == auth.RoleDoctor {
		if in.Specialty == nil || *in.Specialty == "" {
			return nil, apperr.Validationf("specialty is required for doctors")
		}
		if in.LicenseNumber == nil || *in.LicenseNumber == "" {
			return nil, apperr.Validationf("license_number is required for doctors")
		}
	}

	hash, err := auth.HashPassword(in.Password)
	if err != nil {
		return nil, apperr.Validationf("%v", err)
	}

	u := &User{
		Email:         in.Email,
		PasswordHash:  hash,
		FirstName:     strings.TrimSpace(in.FirstName),
		LastName:      strings.TrimSpace(in.LastName),
		Role:          role,
		DateOfBirth:   in.DateOfBirth,
		Phone:         in.Phone,
		Address:       in.Address,
		Specialty:     in.Specialty,
		LicenseNumber: in.LicenseNumber,
		Active:        true,
	}
	if err := s.repo.Create(ctx, u); err != nil {
		return nil, err
	}

	s.record(ctx, u.ID, "user.registered", "role="+role)
	return u, nil
}

// Login verifies credentials and issues a token pair. Deactivated accounts
// are refused even with correct credentials.
func (s *Service) Login(ctx context.Context, email, password string) (*User, *TokenPair, error) {
	u, err := s.repo.GetByEmail(ctx, strings.TrimSpace(strings.ToLower(email)))
	if err != nil {
		return nil, nil, fmt.Errorf("%w: invalid credentials", apperr.ErrPermissionDenied)
	}
	if !auth.CheckPassword(u.PasswordHash, password) {
		return nil, nil, fmt.Errorf("%w: invalid credentials", apperr.ErrPermissionDenied)
	}
	if !u.Active {
		return nil, nil, fmt.Errorf("%w: account is deactivated", apperr.ErrPermissionDenied)
	}

	pair, err := s.issueTokens(u)
	if err != nil {
		return nil, nil, err
	}

	s.record(ctx, u.ID, "user.login", "")
	return u, pair, nil
}

// RefreshTokens exchanges a valid refresh token for a new token pair. The
// account must still be active.
func (s *Service) RefreshTokens(ctx context.Context, refreshToken string) (*TokenPair, error) {
	access, refresh, err := s.issuer.Refresh(refreshToken)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid refresh token", apperr.ErrPermissionDenied)
	}

	claims, err := s.issuer.Verify(access)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid refresh token", apperr.ErrPermissionDenied)
	}
	userID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid refresh token", apperr.ErrPermissionDenied)
	}
	u, err := s.repo.GetByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("%w: account no longer exists", apperr.ErrPermissionDenied)
	}
	if !u.Active {
		return nil, fmt.Errorf("%w: account is deactivated", apperr.ErrPermissionDenied)
	}

	return &TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}

func (s *Service) ChangePassword(ctx context.Context, userID uuid.UUID, current, newPassword string) error {
	u, err := s.repo.GetByID(ctx, userID)
	if err != nil {
		return err
	}
	if !auth.CheckPassword(u.PasswordHash, current) {
		return fmt.Errorf("%w: current password is incorrect", apperr.ErrPermissionDenied)
	}
	hash, err := auth.HashPassword(newPassword)
	if err != nil {
		return apperr.Validationf("%v", err)
	}
	u.PasswordHash = hash
	if err := s.repo.Update(ctx, u); err != nil {
		return err
	}
	s.record(ctx, u.ID, "user.password_changed", "")
	return nil
}

// Get returns a user profile. Users see themselves; doctors may look up
// patient profiles; admins see everyone.
func (s *Service) Get(ctx context.Context, actorID uuid.UUID, actorRole string, id uuid.UUID) (*User, error) {
	u, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if actorRole == auth.RoleAdmin || actorID == id {
		return u, nil
	}
	if actorRole == auth.RoleDoctor && u.Role == auth.RolePatient {
		return u, nil
	}
	return nil, fmt.Errorf("%w: cannot view this profile", apperr.ErrPermissionDenied)
}

type UpdateInput struct {
	FirstName     *string    `json:"first_name"`
	LastName      *string    `json:"last_name"`
	DateOfBirth   *time.Time `json:"date_of_birth"`
	Phone         *string    `json:"phone"`
	Address       *string    `json:"address"`
	Specialty     *string    `json:"specialty"`
	LicenseNumber *string    `json:"license_number"`
}

// Update changes profile fields. Role and email are immutable; only the
// user themselves or an admin may update a profile.
func (s *Service) Update(ctx context.Context, actorID uuid.UUID, actorRole string, id uuid.UUID, in UpdateInput) (*User, error) {
	if actorRole != auth.RoleAdmin && actorID != id {
		return nil, fmt.Errorf("%w: cannot update this profile", apperr.ErrPermissionDenied)
	}

	u, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if in.FirstName != nil {
		if strings.TrimSpace(*in.FirstName) == "" {
			return nil, apperr.Validationf("first_name cannot be empty")
		}
		u.FirstName = strings.TrimSpace(*in.FirstName)
	}
	if in.LastName != nil {
		if strings.TrimSpace(*in.LastName) == "" {
			return nil, apperr.Validationf("last_name cannot be empty")
		}
		u.LastName = strings.TrimSpace(*in.LastName)
	}
	if in.DateOfBirth != nil {
		u.DateOfBirth = in.DateOfBirth
	}
	if in.Phone != nil {
		u.Phone = in.Phone
	}
	if in.Address != nil {
		u.Address = in.Address
	}
	if u.Role == auth.RoleDoctor {
		if in.Specialty != nil {
			u.Specialty = in.Specialty
		}
		if in.LicenseNumber != nil {
			u.LicenseNumber = in.LicenseNumber
		}
	}

	if err := s.repo.Update(ctx, u); err != nil {
		return nil, err
	}
	s.record(ctx, u.ID, "user.updated", "")
	return u, nil
}

// SetActive activates or deactivates an account. Admin only. Deactivation is
// the only way to retire an account; users are never deleted.
func (s *Service) SetActive(ctx context.Context, actorRole string, id uuid.UUID, active bool) (*User, error) {
	if actorRole != auth.RoleAdmin {
		return nil, fmt.Errorf("%w: only admins may change account status", apperr.ErrPermissionDenied)
	}
	u, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	u.Active = active
	if err := s.repo.Update(ctx, u); err != nil {
		return nil, err
	}
	action := "user.deactivated"
	if active {
		action = "user.activated"
	}
	s.record(ctx, u.ID, action, "")
	return u, nil
}

func (s *Service) ListDoctors(ctx context.Context, specialty string, limit, offset int) ([]*User, int, error) {
	return s.repo.ListDoctors(ctx, specialty, limit, offset)
}

func (s *Service) Search(ctx context.Context, actorRole, query string, limit, offset int) ([]*User, int, error) {
	if actorRole != auth.RoleAdmin {
		return nil, 0, fmt.Errorf("%w: only admins may search users", apperr.ErrPermissionDenied)
	}
	if strings.TrimSpace(query) == "" {
		return nil, 0, apperr.Validationf("search query is required")
	}
	return s.repo.Search(ctx, query, limit, offset)
}

func (s *Service) CountByRole(ctx context.Context) (map[string]int, error) {
	return s.repo.CountByRole(ctx)
}

// IsActiveDoctor reports whether id refers to an active doctor account.
func (s *Service) IsActiveDoctor(ctx context.Context, id uuid.UUID) (bool, error) {
	u, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return false, err
	}
	return u.Active && u.Role == auth.RoleDoctor, nil
}

// IsActivePatient reports whether id refers to an active patient account.
func (s *Service) IsActivePatient(ctx context.Context, id uuid.UUID) (bool, error) {
	u, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return false, err
	}
	return u.Active && u.Role == auth.RolePatient, nil
}

func (s *Service) issueTokens(u *User) (*TokenPair, error) {
	access, err := s.issuer.IssueAccess(u.ID.String(), u.Role, u.Email)
	if err != nil {
		return nil, err
	}
	refresh, err := s.issuer.IssueRefresh(u.ID.String(), u.Role, u.Email)
	if err != nil {
		return nil, err
	}
	return &TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}

func (s *Service) record(ctx context.Context, userID uuid.UUID, action, details string) {
	if s.activity == nil {
		return
	}
	e := &activity.Entry{SubjectKind: activity.SubjectUser, SubjectID: userID, Action: action, Details: details}
	if err := s.activity.Record(ctx, e); err != nil {
		s.logger.Warn().Err(err).Str("action", action).Msg("failed to record activity")
	}
}
