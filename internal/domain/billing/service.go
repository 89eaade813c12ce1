package billing

import (
	"context"
	"fmt"
	"math"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const (
	creditCardFeeRate = 0.029
	bankTransferFee   = 1.00
)

type Service struct {
	payments PaymentRepository
	invoices InvoiceRepository
	claims   ClaimRepository
	log      zerolog.Logger
}

func NewService(payments PaymentRepository, invoices InvoiceRepository, claims ClaimRepository, log zerolog.Logger) *Service {
	return &Service{
		payments: payments,
		invoices: invoices,
		claims:   claims,
		log:      log.With().Str("component", "billing").Logger(),
	}
}

// CalculateFees returns the amount with the processing fee for the given
// method added, rounded to cents. Credit cards charge a percentage, bank
// transfers a flat fee and cash nothing.
func CalculateFees(amount float64, method string) float64 {
	switch method {
	case MethodCreditCard:
		amount += amount * creditCardFeeRate
	case MethodBankTransfer:
		amount += bankTransferFee
	}
	return math.Round(amount*100) / 100
}

// ProcessPayment validates the payment, adds the method fee and records
// it in pending.
func (s *Service) ProcessPayment(ctx context.Context, p *Payment) error {
	if p.PatientID == uuid.Nil {
		return fmt.Errorf("patient_id is required")
	}
	if p.Amount <= 0 {
		return fmt.Errorf("%w: amount must be positive", ErrInvalidAmount)
	}
	if !validCurrencies[p.Currency] {
		return fmt.Errorf("unsupported currency %q", p.Currency)
	}
	if !validMethods[p.Method] {
		return fmt.Errorf("unsupported payment method %q", p.Method)
	}

	p.Amount = CalculateFees(p.Amount, p.Method)
	if err := s.payments.Create(ctx, p); err != nil {
		return err
	}
	s.log.Info().
		Str("payment_id", p.ID.String()).
		Str("method", p.Method).
		Float64("amount", p.Amount).
		Msg("payment recorded")
	return nil
}

// CreateAppointmentPayment records the pending cash payment raised when
// an appointment is confirmed with a price. Satisfies the scheduling
// package's payment hook.
func (s *Service) CreateAppointmentPayment(ctx context.Context, patientID, appointmentID uuid.UUID, amount float64) error {
	desc := "appointment fee"
	p := &Payment{
		PatientID:     patientID,
		AppointmentID: &appointmentID,
		Amount:        amount,
		Currency:      "USD",
		Method:        MethodCash,
		Description:   &desc,
	}
	return s.ProcessPayment(ctx, p)
}

// UpdatePaymentStatus moves a payment through the status machine. The
// current status is read first so the conditional update only succeeds
// when the row has not moved underneath.
func (s *Service) UpdatePaymentStatus(ctx context.Context, id uuid.UUID, to string) error {
	p, err := s.payments.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if !CanTransitionPayment(p.Status, to) {
		return fmt.Errorf("%w: %s to %s", ErrInvalidTransition, p.Status, to)
	}
	return s.payments.UpdateStatus(ctx, id, p.Status, to)
}

func (s *Service) GetPayment(ctx context.Context, id uuid.UUID) (*Payment, error) {
	return s.payments.GetByID(ctx, id)
}

func (s *Service) ListPaymentsByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Payment, int, error) {
	return s.payments.ListByPatient(ctx, patientID, limit, offset)
}

// CreateInvoice issues an invoice with the full amount outstanding.
func (s *Service) CreateInvoice(ctx context.Context, inv *Invoice) error {
	if inv.PatientID == uuid.Nil {
		return fmt.Errorf("patient_id is required")
	}
	if inv.Amount <= 0 {
		return fmt.Errorf("%w: amount must be positive", ErrInvalidAmount)
	}
	inv.Amount = math.Round(inv.Amount*100) / 100
	return s.invoices.Create(ctx, inv)
}

func (s *Service) GetInvoice(ctx context.Context, id uuid.UUID) (*Invoice, error) {
	return s.invoices.GetByID(ctx, id)
}

func (s *Service) ListInvoicesByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Invoice, int, error) {
	return s.invoices.ListByPatient(ctx, patientID, limit, offset)
}

// ProcessPartialPayment pays down an invoice. The balance never goes
// negative and a fully paid invoice flips to paid.
func (s *Service) ProcessPartialPayment(ctx context.Context, id uuid.UUID, amount float64) (*Invoice, error) {
	if amount <= 0 {
		return nil, fmt.Errorf("%w: amount must be positive", ErrInvalidAmount)
	}
	amount = math.Round(amount*100) / 100

	inv, err := s.invoices.ApplyPayment(ctx, id, amount)
	if err != nil {
		return nil, err
	}
	s.log.Info().
		Str("invoice_id", id.String()).
		Float64("amount", amount).
		Float64("amount_due", inv.AmountDue).
		Str("status", inv.Status).
		Msg("partial payment applied")
	return inv, nil
}

func (s *Service) CancelInvoice(ctx context.Context, id uuid.UUID) error {
	return s.invoices.Cancel(ctx, id)
}

// SubmitClaim files an insurance claim in submitted.
func (s *Service) SubmitClaim(ctx context.Context, c *Claim) error {
	if c.PatientID == uuid.Nil {
		return fmt.Errorf("patient_id is required")
	}
	if c.Amount <= 0 {
		return fmt.Errorf("%w: amount must be positive", ErrInvalidAmount)
	}
	return s.claims.Create(ctx, c)
}

func (s *Service) GetClaim(ctx context.Context, id uuid.UUID) (*Claim, error) {
	return s.claims.GetByID(ctx, id)
}

func (s *Service) ListClaimsByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Claim, int, error) {
	return s.claims.ListByPatient(ctx, patientID, limit, offset)
}

// ReviewClaim moves a submitted claim into review.
func (s *Service) ReviewClaim(ctx context.Context, id uuid.UUID) error {
	return s.transitionClaim(ctx, id, ClaimInReview, nil)
}

// ApproveClaim approves a claim under review.
func (s *Service) ApproveClaim(ctx context.Context, id uuid.UUID) error {
	return s.transitionClaim(ctx, id, ClaimApproved, nil)
}

// RejectClaim rejects a claim under review, recording the reason.
func (s *Service) RejectClaim(ctx context.Context, id uuid.UUID, reason string) error {
	if reason == "" {
		return fmt.Errorf("rejection reason is required")
	}
	return s.transitionClaim(ctx, id, ClaimRejected, &reason)
}

func (s *Service) transitionClaim(ctx context.Context, id uuid.UUID, to string, reason *string) error {
	c, err := s.claims.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if !CanTransitionClaim(c.Status, to) {
		return fmt.Errorf("%w: %s to %s", ErrInvalidTransition, c.Status, to)
	}
	return s.claims.UpdateStatus(ctx, id, c.Status, to, reason)
}
