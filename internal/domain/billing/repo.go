package billing

import (
	"context"

	"github.com/google/uuid"
)

type PaymentRepository interface {
	Create(ctx context.Context, p *Payment) error
	GetByID(ctx context.Context, id uuid.UUID) (*Payment, error)
	ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Payment, int, error)

	// UpdateStatus applies a conditional update matching the id and the
	// expected current status. Returns ErrNotFound when the row does not
	// exist or ErrInvalidTransition when it has moved since the read.
	UpdateStatus(ctx context.Context, id uuid.UUID, from, to string) error
}

type InvoiceRepository interface {
	Create(ctx context.Context, inv *Invoice) error
	GetByID(ctx context.Context, id uuid.UUID) (*Invoice, error)
	ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Invoice, int, error)

	// ApplyPayment atomically decrements amount_due by the given amount
	// and recomputes the status, flipping to paid when the balance hits
	// zero. The decrement only matches open invoices with enough balance;
	// a miss on an existing row returns ErrInvoiceClosed or
	// ErrInvalidAmount depending on its state.
	ApplyPayment(ctx context.Context, id uuid.UUID, amount float64) (*Invoice, error)

	Cancel(ctx context.Context, id uuid.UUID) error
}

type ClaimRepository interface {
	Create(ctx context.Context, c *Claim) error
	GetByID(ctx context.Context, id uuid.UUID) (*Claim, error)
	ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Claim, int, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, from, to string, reason *string) error
}
