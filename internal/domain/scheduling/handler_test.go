package scheduling

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
)

func newTestHandler() (*Handler, *schedTestEnv) {
	env := newSchedTestEnv()
	return NewHandler(env.svc), env
}

func jsonRequest(method, target, body string) *http.Request {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	return req
}

func TestHandler_Book(t *testing.T) {
	h, env := newTestHandler()

	body := fmt.Sprintf(`{"patient_id":%q,"doctor_id":%q,"start_time":"2026-09-15T09:00:00Z"}`,
		uuid.New(), uuid.New())

	e := echo.New()
	req := jsonRequest(http.MethodPost, "/appointments", body)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if err := h.Book(c); err != nil {
		t.Fatalf("Book() error: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Errorf("expected 201, got %d", rec.Code)
	}

	var got Appointment
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if got.Status != StatusPending {
		t.Errorf("expected status pending, got %s", got.Status)
	}
	if _, ok := env.repo.appointments[got.ID]; !ok {
		t.Error("appointment not persisted")
	}
}

func TestHandler_Book_MissingDoctor(t *testing.T) {
	h, _ := newTestHandler()

	body := fmt.Sprintf(`{"patient_id":%q,"start_time":"2026-09-15T09:00:00Z"}`, uuid.New())

	e := echo.New()
	req := jsonRequest(http.MethodPost, "/appointments", body)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	err := h.Book(c)
	httpErr, ok := err.(*echo.HTTPError)
	if !ok {
		t.Fatalf("expected echo.HTTPError, got %T", err)
	}
	if httpErr.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", httpErr.Code)
	}
}

func TestHandler_Get_InvalidID(t *testing.T) {
	h, _ := newTestHandler()

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/appointments/not-a-uuid", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues("not-a-uuid")

	err := h.Get(c)
	httpErr, ok := err.(*echo.HTTPError)
	if !ok {
		t.Fatalf("expected echo.HTTPError, got %T", err)
	}
	if httpErr.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", httpErr.Code)
	}
}

func TestHandler_Get_NotFound(t *testing.T) {
	h, _ := newTestHandler()

	id := uuid.New()
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/appointments/"+id.String(), nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues(id.String())

	err := h.Get(c)
	httpErr, ok := err.(*echo.HTTPError)
	if !ok {
		t.Fatalf("expected echo.HTTPError, got %T", err)
	}
	if httpErr.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", httpErr.Code)
	}
}

func TestHandler_List_ByPatient(t *testing.T) {
	h, env := newTestHandler()

	patientID := uuid.New()
	for i := 0; i < 2; i++ {
		a := &Appointment{ID: uuid.New(), PatientID: patientID, DoctorID: uuid.New(), Status: StatusPending}
		env.repo.appointments[a.ID] = a
	}
	other := &Appointment{ID: uuid.New(), PatientID: uuid.New(), DoctorID: uuid.New(), Status: StatusPending}
	env.repo.appointments[other.ID] = other

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/appointments?patient_id="+patientID.String(), nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if err := h.List(c); err != nil {
		t.Fatalf("List() error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}

	var resp struct {
		Data  []*Appointment `json:"data"`
		Total int            `json:"total"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if resp.Total != 2 || len(resp.Data) != 2 {
		t.Errorf("expected 2 appointments, got total=%d len=%d", resp.Total, len(resp.Data))
	}
}

func TestHandler_List_MissingFilter(t *testing.T) {
	h, _ := newTestHandler()

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/appointments", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	err := h.List(c)
	httpErr, ok := err.(*echo.HTTPError)
	if !ok {
		t.Fatalf("expected echo.HTTPError, got %T", err)
	}
	if httpErr.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", httpErr.Code)
	}
}

func TestHandler_Confirm(t *testing.T) {
	h, env := newTestHandler()
	a := env.seed(t, StatusPending)

	e := echo.New()
	req := jsonRequest(http.MethodPut, "/appointments/"+a.ID.String()+"/confirm", `{"price":99.95}`)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues(a.ID.String())

	if err := h.Confirm(c); err != nil {
		t.Fatalf("Confirm() error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
	if got := env.repo.appointments[a.ID].Status; got != StatusConfirmed {
		t.Errorf("status = %q, want %q", got, StatusConfirmed)
	}
	if len(env.payments.calls) != 1 {
		t.Errorf("payment calls = %d, want 1", len(env.payments.calls))
	}
}

func TestHandler_Confirm_InvalidTransition(t *testing.T) {
	h, env := newTestHandler()
	a := env.seed(t, StatusCompleted)

	e := echo.New()
	req := jsonRequest(http.MethodPut, "/appointments/"+a.ID.String()+"/confirm", `{}`)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues(a.ID.String())

	err := h.Confirm(c)
	httpErr, ok := err.(*echo.HTTPError)
	if !ok {
		t.Fatalf("expected echo.HTTPError, got %T", err)
	}
	if httpErr.Code != http.StatusConflict {
		t.Errorf("expected 409, got %d", httpErr.Code)
	}
}

func TestHandler_Cancel(t *testing.T) {
	h, env := newTestHandler()
	a := env.seed(t, StatusConfirmed)

	e := echo.New()
	req := jsonRequest(http.MethodPut, "/appointments/"+a.ID.String()+"/cancel", `{"reason":"patient request"}`)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues(a.ID.String())

	if err := h.Cancel(c); err != nil {
		t.Fatalf("Cancel() error: %v", err)
	}
	got := env.repo.appointments[a.ID]
	if got.Status != StatusCancelled {
		t.Errorf("status = %q, want %q", got.Status, StatusCancelled)
	}
	if got.Notes == nil || !strings.Contains(*got.Notes, "patient request") {
		t.Errorf("notes = %v, want cancellation reason recorded", got.Notes)
	}
}

func TestHandler_DoctorSchedule_BadDate(t *testing.T) {
	h, _ := newTestHandler()

	id := uuid.New()
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/doctors/"+id.String()+"/schedule?date=15-09-2026", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues(id.String())

	err := h.DoctorSchedule(c)
	httpErr, ok := err.(*echo.HTTPError)
	if !ok {
		t.Fatalf("expected echo.HTTPError, got %T", err)
	}
	if httpErr.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", httpErr.Code)
	}
}

func TestHandler_Delete(t *testing.T) {
	h, env := newTestHandler()
	a := env.seed(t, StatusPending)

	e := echo.New()
	req := httptest.NewRequest(http.MethodDelete, "/appointments/"+a.ID.String(), nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues(a.ID.String())

	if err := h.Delete(c); err != nil {
		t.Fatalf("Delete() error: %v", err)
	}
	if rec.Code != http.StatusNoContent {
		t.Errorf("expected 204, got %d", rec.Code)
	}
	if _, err := env.svc.GetByID(context.Background(), a.ID); err == nil {
		t.Error("expected appointment to be deleted")
	}
}
