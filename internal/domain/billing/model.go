package billing

import (
	"time"

	"github.com/google/uuid"
)

// Payment statuses.
const (
	PaymentPending    = "pending"
	PaymentProcessing = "processing"
	PaymentCompleted  = "completed"
	PaymentFailed     = "failed"
	PaymentCancelled  = "cancelled"
	PaymentRefunded   = "refunded"
)

// Payment methods.
const (
	MethodCreditCard   = "credit_card"
	MethodBankTransfer = "bank_transfer"
	MethodCash         = "cash"
)

var validCurrencies = map[string]bool{
	"USD": true,
	"EUR": true,
	"GBP": true,
}

var validMethods = map[string]bool{
	MethodCreditCard:   true,
	MethodBankTransfer: true,
	MethodCash:         true,
}

// Payment maps to the payment table. Amount includes the method fee.
type Payment struct {
	ID            uuid.UUID  `db:"id" json:"id"`
	PatientID     uuid.UUID  `db:"patient_id" json:"patient_id"`
	AppointmentID *uuid.UUID `db:"appointment_id" json:"appointment_id,omitempty"`
	Amount        float64    `db:"amount" json:"amount"`
	Currency      string     `db:"currency" json:"currency"`
	Method        string     `db:"method" json:"method"`
	Status        string     `db:"status" json:"status"`
	Description   *string    `db:"description" json:"description,omitempty"`
	CreatedAt     time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time  `db:"updated_at" json:"updated_at"`
}

// paymentTransitions is the payment status machine. Failed and cancelled
// payments may be retried, and completed payments may be refunded or
// flagged failed after settlement.
var paymentTransitions = map[string][]string{
	PaymentPending:    {PaymentProcessing, PaymentCompleted, PaymentCancelled},
	PaymentProcessing: {PaymentCompleted, PaymentFailed, PaymentCancelled},
	PaymentCompleted:  {PaymentRefunded, PaymentFailed},
	PaymentFailed:     {PaymentPending, PaymentProcessing},
	PaymentCancelled:  {PaymentPending},
	PaymentRefunded:   {PaymentCompleted},
}

// CanTransitionPayment reports whether a payment may move between the
// two statuses.
func CanTransitionPayment(from, to string) bool {
	for _, t := range paymentTransitions[from] {
		if t == to {
			return true
		}
	}
	return false
}

// Invoice statuses.
const (
	InvoiceIssued        = "issued"
	InvoicePartiallyPaid = "partially_paid"
	InvoicePaid          = "paid"
	InvoiceCancelled     = "cancelled"
)

// Invoice maps to the invoice table. AmountDue tracks the outstanding
// balance and drives the status.
type Invoice struct {
	ID            uuid.UUID  `db:"id" json:"id"`
	PatientID     uuid.UUID  `db:"patient_id" json:"patient_id"`
	AppointmentID *uuid.UUID `db:"appointment_id" json:"appointment_id,omitempty"`
	Amount        float64    `db:"amount" json:"amount"`
	AmountDue     float64    `db:"amount_due" json:"amount_due"`
	Status        string     `db:"status" json:"status"`
	DueDate       *time.Time `db:"due_date" json:"due_date,omitempty"`
	CreatedAt     time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time  `db:"updated_at" json:"updated_at"`
}

// Claim statuses.
const (
	ClaimSubmitted = "submitted"
	ClaimInReview  = "in_review"
	ClaimApproved  = "approved"
	ClaimRejected  = "rejected"
)

// Claim maps to the claim table.
type Claim struct {
	ID        uuid.UUID  `db:"id" json:"id"`
	PatientID uuid.UUID  `db:"patient_id" json:"patient_id"`
	InvoiceID *uuid.UUID `db:"invoice_id" json:"invoice_id,omitempty"`
	Amount    float64    `db:"amount" json:"amount"`
	Status    string     `db:"status" json:"status"`
	Reason    *string    `db:"reason" json:"reason,omitempty"`
	CreatedAt time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt time.Time  `db:"updated_at" json:"updated_at"`
}

// claimTransitions gates claim review. Approval and rejection require a
// prior review step.
var claimTransitions = map[string][]string{
	ClaimSubmitted: {ClaimInReview},
	ClaimInReview:  {ClaimApproved, ClaimRejected},
	ClaimApproved:  {},
	ClaimRejected:  {},
}

// CanTransitionClaim reports whether a claim may move between the two
// statuses.
func CanTransitionClaim(from, to string) bool {
	for _, t := range claimTransitions[from] {
		if t == to {
			return true
		}
	}
	return false
}
