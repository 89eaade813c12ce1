package identity

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/clinicore/clinicore/internal/platform/auth"
	"github.com/clinicore/clinicore/internal/platform/cache"
)

type Service struct {
	patients    PatientRepository
	doctors     DoctorRepository
	admins      AdminRepository
	superAdmins SuperAdminRepository
	issuer      *auth.Issuer
	lockout     cache.FailureTracker
}

func NewService(patients PatientRepository, doctors DoctorRepository, admins AdminRepository,
	superAdmins SuperAdminRepository, issuer *auth.Issuer, lockout cache.FailureTracker) *Service {
	return &Service{
		patients:    patients,
		doctors:     doctors,
		admins:      admins,
		superAdmins: superAdmins,
		issuer:      issuer,
		lockout:     lockout,
	}
}

// LoginResult carries the issued session back to the handler.
type LoginResult struct {
	Token     string `json:"token"`
	UserID    string `json:"user_id"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	Role      string `json:"role"`
	ExpiresIn int64  `json:"expires_in"`
}

// account is the role-independent view of a credentialed record. standing
// is non-nil when the account exists but may not log in (unapproved
// doctor, deactivated patient); it is only reported after the password
// checks out, so standing cannot be probed without credentials.
type account struct {
	id           uuid.UUID
	name         string
	role         string
	passwordHash string
	permissions  []string
	standing     error
}

// Login authenticates an email against every account table, highest
// privilege first, and issues a token for the first match. A bad-standing
// account with the right password fails without counting as a credential
// failure.
func (s *Service) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return nil, fmt.Errorf("email and password are required")
	}

	locked, remaining, err := s.lockout.IsLocked(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("check lockout: %w", err)
	}
	if locked {
		return nil, fmt.Errorf("%w: retry in %s", ErrLocked, remaining.Round(time.Second))
	}

	acct, err := s.findAccount(ctx, email)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			// Unknown emails count toward the window so the lockout
			// cannot be used to probe which emails exist.
			if recErr := s.lockout.RecordFailure(ctx, email); recErr != nil {
				return nil, fmt.Errorf("record login failure: %w", recErr)
			}
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	if bcrypt.CompareHashAndPassword([]byte(acct.passwordHash), []byte(password)) != nil {
		if recErr := s.lockout.RecordFailure(ctx, email); recErr != nil {
			return nil, fmt.Errorf("record login failure: %w", recErr)
		}
		return nil, ErrInvalidCredentials
	}

	if err := s.lockout.Reset(ctx, email); err != nil {
		return nil, fmt.Errorf("reset login failures: %w", err)
	}

	if acct.standing != nil {
		return nil, acct.standing
	}

	token, err := s.issuer.Issue(acct.id.String(), email, acct.role, acct.permissions)
	if err != nil {
		return nil, fmt.Errorf("issue token: %w", err)
	}

	return &LoginResult{
		Token:     token,
		UserID:    acct.id.String(),
		Name:      acct.name,
		Email:     email,
		Role:      acct.role,
		ExpiresIn: int64(auth.TokenTTL(acct.role).Seconds()),
	}, nil
}

// findAccount resolves an email to an account, trying roles in privilege
// order. Credentials are not checked here; bad standing is recorded on the
// account rather than returned, so the caller verifies the password first.
func (s *Service) findAccount(ctx context.Context, email string) (*account, error) {
	if sa, err := s.superAdmins.GetByEmail(ctx, email); err == nil {
		return &account{id: sa.ID, name: sa.Name, role: auth.RoleSuperAdmin, passwordHash: sa.PasswordHash}, nil
	} else if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	if a, err := s.admins.GetByEmail(ctx, email); err == nil {
		return &account{id: a.ID, name: a.Name, role: auth.RoleAdmin, passwordHash: a.PasswordHash, permissions: a.Permissions}, nil
	} else if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	if d, err := s.doctors.GetByEmail(ctx, email); err == nil {
		acct := &account{id: d.ID, name: d.Name, role: auth.RoleDoctor, passwordHash: d.PasswordHash}
		if !d.IsApproved {
			acct.standing = ErrUnapproved
		}
		return acct, nil
	} else if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	if p, err := s.patients.GetByEmail(ctx, email); err == nil {
		acct := &account{id: p.ID, name: p.Name, role: auth.RolePatient, passwordHash: p.PasswordHash}
		if !p.IsActive {
			acct.standing = ErrInactive
		}
		return acct, nil
	} else if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	return nil, ErrNotFound
}

func hashPassword(password string) (string, error) {
	if len(password) < 8 {
		return "", fmt.Errorf("password must be at least 8 characters")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

// RegisterPatient creates an active patient account.
func (s *Service) RegisterPatient(ctx context.Context, p *Patient, password string) error {
	p.Email = strings.ToLower(strings.TrimSpace(p.Email))
	if p.Name == "" {
		return fmt.Errorf("name is required")
	}
	if p.Email == "" {
		return fmt.Errorf("email is required")
	}
	if _, err := s.patients.GetByEmail(ctx, p.Email); err == nil {
		return ErrEmailTaken
	} else if !errors.Is(err, ErrNotFound) {
		return err
	}

	hash, err := hashPassword(password)
	if err != nil {
		return err
	}
	p.PasswordHash = hash
	p.IsActive = true
	return s.patients.Create(ctx, p)
}

// RegisterDoctor creates a doctor account that stays unapproved until an
// admin signs off on the profile.
func (s *Service) RegisterDoctor(ctx context.Context, d *Doctor, password string) error {
	d.Email = strings.ToLower(strings.TrimSpace(d.Email))
	if d.Name == "" {
		return fmt.Errorf("name is required")
	}
	if d.Email == "" {
		return fmt.Errorf("email is required")
	}
	if _, err := s.doctors.GetByEmail(ctx, d.Email); err == nil {
		return ErrEmailTaken
	} else if !errors.Is(err, ErrNotFound) {
		return err
	}

	hash, err := hashPassword(password)
	if err != nil {
		return err
	}
	d.PasswordHash = hash
	d.IsApproved = false
	d.Available = true
	return s.doctors.Create(ctx, d)
}

// CreateAdmin provisions an admin account. Exposed through the CLI rather
// than the HTTP API; the first admin has to come from somewhere.
func (s *Service) CreateAdmin(ctx context.Context, a *Admin, password string) error {
	a.Email = strings.ToLower(strings.TrimSpace(a.Email))
	if a.Name == "" {
		return fmt.Errorf("name is required")
	}
	if a.Email == "" {
		return fmt.Errorf("email is required")
	}
	if _, err := s.admins.GetByEmail(ctx, a.Email); err == nil {
		return ErrEmailTaken
	} else if !errors.Is(err, ErrNotFound) {
		return err
	}

	hash, err := hashPassword(password)
	if err != nil {
		return err
	}
	a.PasswordHash = hash
	return s.admins.Create(ctx, a)
}

// ApproveDoctor validates the full profile and flips is_approved. The
// checks run on the stored row, so a forced is_approved on a sparse
// profile still fails.
func (s *Service) ApproveDoctor(ctx context.Context, id uuid.UUID) error {
	d, err := s.doctors.GetByID(ctx, id)
	if err != nil {
		return err
	}

	var missing []string
	if d.Name == "" {
		missing = append(missing, "name")
	}
	if d.Specialization == nil || *d.Specialization == "" {
		missing = append(missing, "specialization")
	}
	if d.Phone == nil || *d.Phone == "" {
		missing = append(missing, "phone")
	}
	if d.Address == nil || *d.Address == "" {
		missing = append(missing, "address")
	}
	if d.LicenseNumber == nil || *d.LicenseNumber == "" {
		missing = append(missing, "license_number")
	}
	if d.Experience == nil || *d.Experience <= 0 {
		missing = append(missing, "experience")
	}
	if len(missing) > 0 {
		return fmt.Errorf("cannot approve doctor, incomplete profile: %s", strings.Join(missing, ", "))
	}

	return s.doctors.SetApproval(ctx, id, true)
}

// RejectDoctor revokes or denies approval.
func (s *Service) RejectDoctor(ctx context.Context, id uuid.UUID) error {
	if _, err := s.doctors.GetByID(ctx, id); err != nil {
		return err
	}
	return s.doctors.SetApproval(ctx, id, false)
}

func (s *Service) GetDoctor(ctx context.Context, id uuid.UUID) (*Doctor, error) {
	return s.doctors.GetByID(ctx, id)
}

func (s *Service) GetPatient(ctx context.Context, id uuid.UUID) (*Patient, error) {
	return s.patients.GetByID(ctx, id)
}

func (s *Service) ListPatients(ctx context.Context, limit, offset int) ([]*Patient, int, error) {
	return s.patients.List(ctx, limit, offset)
}

// UpdatePatientProfile updates the contact fields a patient manages.
// Email, credentials and activation are carried over from the stored row.
func (s *Service) UpdatePatientProfile(ctx context.Context, p *Patient) error {
	if p.Name == "" {
		return fmt.Errorf("name is required")
	}
	current, err := s.patients.GetByID(ctx, p.ID)
	if err != nil {
		return err
	}
	p.Email = current.Email
	p.PasswordHash = current.PasswordHash
	p.IsActive = current.IsActive
	return s.patients.Update(ctx, p)
}

func (s *Service) ListDoctors(ctx context.Context, onlyApproved bool, limit, offset int) ([]*Doctor, int, error) {
	return s.doctors.List(ctx, onlyApproved, limit, offset)
}

func (s *Service) UpdateDoctorAvailability(ctx context.Context, id uuid.UUID, available bool) error {
	return s.doctors.SetAvailability(ctx, id, available)
}

// UpdateDoctorProfile updates the profile fields a doctor fills in before
// requesting approval.
func (s *Service) UpdateDoctorProfile(ctx context.Context, d *Doctor) error {
	if d.Name == "" {
		return fmt.Errorf("name is required")
	}
	current, err := s.doctors.GetByID(ctx, d.ID)
	if err != nil {
		return err
	}
	d.Available = current.Available
	return s.doctors.Update(ctx, d)
}
