package identity

import (
	"context"

	"github.com/google/uuid"
)

type PatientRepository interface {
	Create(ctx context.Context, p *Patient) error
	GetByID(ctx context.Context, id uuid.UUID) (*Patient, error)
	GetByEmail(ctx context.Context, email string) (*Patient, error)
	Update(ctx context.Context, p *Patient) error
	List(ctx context.Context, limit, offset int) ([]*Patient, int, error)
}

type DoctorRepository interface {
	Create(ctx context.Context, d *Doctor) error
	GetByID(ctx context.Context, id uuid.UUID) (*Doctor, error)
	GetByEmail(ctx context.Context, email string) (*Doctor, error)
	Update(ctx context.Context, d *Doctor) error
	List(ctx context.Context, onlyApproved bool, limit, offset int) ([]*Doctor, int, error)
	SetApproval(ctx context.Context, id uuid.UUID, approved bool) error
	SetAvailability(ctx context.Context, id uuid.UUID, available bool) error
}

// Admin and super admin accounts are provisioned out of band (CLI or
// seed data), so their repositories only need email lookup for login
// plus creation for the CLI.
type AdminRepository interface {
	Create(ctx context.Context, a *Admin) error
	GetByEmail(ctx context.Context, email string) (*Admin, error)
}

type SuperAdminRepository interface {
	GetByEmail(ctx context.Context, email string) (*SuperAdmin, error)
}
