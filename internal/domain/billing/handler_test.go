package billing

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

func newTestHandler() (*Handler, *billingTestEnv) {
	env := newBillingTestEnv()
	return NewHandler(env.svc), env
}

func jsonRequest(method, target, body string) *http.Request {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	return req
}

func TestHandler_CreatePayment(t *testing.T) {
	h, env := newTestHandler()

	body := fmt.Sprintf(`{"patient_id":%q,"amount":100,"currency":"USD","method":"credit_card"}`, uuid.New())

	e := echo.New()
	req := jsonRequest(http.MethodPost, "/payments", body)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if err := h.CreatePayment(c); err != nil {
		t.Fatalf("CreatePayment() error: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Errorf("expected 201, got %d", rec.Code)
	}

	var got Payment
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if got.Amount != 102.90 {
		t.Errorf("amount = %v, want 102.90 with card fee", got.Amount)
	}
	if got.Status != PaymentPending {
		t.Errorf("status = %q, want pending", got.Status)
	}
	if _, ok := env.payments.payments[got.ID]; !ok {
		t.Error("payment not persisted")
	}
}

func TestHandler_CreatePayment_BadCurrency(t *testing.T) {
	h, _ := newTestHandler()

	body := fmt.Sprintf(`{"patient_id":%q,"amount":100,"currency":"JPY","method":"cash"}`, uuid.New())

	e := echo.New()
	req := jsonRequest(http.MethodPost, "/payments", body)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	err := h.CreatePayment(c)
	httpErr, ok := err.(*echo.HTTPError)
	if !ok {
		t.Fatalf("expected echo.HTTPError, got %T", err)
	}
	if httpErr.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", httpErr.Code)
	}
}

func TestHandler_UpdatePaymentStatus(t *testing.T) {
	h, env := newTestHandler()
	p := env.seedPayment(t, PaymentPending)

	e := echo.New()
	req := jsonRequest(http.MethodPut, "/payments/"+p.ID.String()+"/status", `{"status":"processing"}`)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues(p.ID.String())

	if err := h.UpdatePaymentStatus(c); err != nil {
		t.Fatalf("UpdatePaymentStatus() error: %v", err)
	}
	if got := env.payments.payments[p.ID].Status; got != PaymentProcessing {
		t.Errorf("status = %q, want processing", got)
	}
}

func TestHandler_UpdatePaymentStatus_Invalid(t *testing.T) {
	h, env := newTestHandler()
	p := env.seedPayment(t, PaymentRefunded)

	e := echo.New()
	req := jsonRequest(http.MethodPut, "/payments/"+p.ID.String()+"/status", `{"status":"pending"}`)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues(p.ID.String())

	err := h.UpdatePaymentStatus(c)
	httpErr, ok := err.(*echo.HTTPError)
	if !ok {
		t.Fatalf("expected echo.HTTPError, got %T", err)
	}
	if httpErr.Code != http.StatusConflict {
		t.Errorf("expected 409, got %d", httpErr.Code)
	}
}

func TestHandler_PartialPayment(t *testing.T) {
	h, env := newTestHandler()

	inv := &Invoice{PatientID: uuid.New(), Amount: 100}
	env.invoices.Create(nil, inv)

	e := echo.New()
	req := jsonRequest(http.MethodPost, "/invoices/"+inv.ID.String()+"/partial-payment", `{"amount":40}`)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues(inv.ID.String())

	if err := h.PartialPayment(c); err != nil {
		t.Fatalf("PartialPayment() error: %v", err)
	}

	var got Invoice
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if got.AmountDue != 60 {
		t.Errorf("amount_due = %v, want 60", got.AmountDue)
	}
	if got.Status != InvoicePartiallyPaid {
		t.Errorf("status = %q, want partially_paid", got.Status)
	}
}

func TestHandler_PartialPayment_Overpay(t *testing.T) {
	h, env := newTestHandler()

	inv := &Invoice{PatientID: uuid.New(), Amount: 30}
	env.invoices.Create(nil, inv)

	e := echo.New()
	req := jsonRequest(http.MethodPost, "/invoices/"+inv.ID.String()+"/partial-payment", `{"amount":50}`)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues(inv.ID.String())

	err := h.PartialPayment(c)
	httpErr, ok := err.(*echo.HTTPError)
	if !ok {
		t.Fatalf("expected echo.HTTPError, got %T", err)
	}
	if httpErr.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", httpErr.Code)
	}
}

func TestHandler_GetInvoice_NotFound(t *testing.T) {
	h, _ := newTestHandler()

	id := uuid.New()
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/invoices/"+id.String(), nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues(id.String())

	err := h.GetInvoice(c)
	httpErr, ok := err.(*echo.HTTPError)
	if !ok {
		t.Fatalf("expected echo.HTTPError, got %T", err)
	}
	if httpErr.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", httpErr.Code)
	}
}

func TestHandler_ListPayments_RequiresPatient(t *testing.T) {
	h, _ := newTestHandler()

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/payments", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	err := h.ListPayments(c)
	httpErr, ok := err.(*echo.HTTPError)
	if !ok {
		t.Fatalf("expected echo.HTTPError, got %T", err)
	}
	if httpErr.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", httpErr.Code)
	}
}

func TestHandler_ClaimReject(t *testing.T) {
	h, env := newTestHandler()

	cl := &Claim{PatientID: uuid.New(), Amount: 200}
	env.claims.Create(nil, cl)
	env.claims.claims[cl.ID].Status = ClaimInReview

	e := echo.New()
	req := jsonRequest(http.MethodPost, "/claims/"+cl.ID.String()+"/reject", `{"reason":"duplicate claim"}`)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues(cl.ID.String())

	if err := h.RejectClaim(c); err != nil {
		t.Fatalf("RejectClaim() error: %v", err)
	}

	got := env.claims.claims[cl.ID]
	if got.Status != ClaimRejected {
		t.Errorf("status = %q, want rejected", got.Status)
	}
	if got.Reason == nil || *got.Reason != "duplicate claim" {
		t.Errorf("reason = %v, want recorded", got.Reason)
	}
}
