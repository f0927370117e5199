package patient

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/ehr/phr/internal/platform/apperr"
	"github.com/ehr/phr/internal/platform/auth"
)

func userRequest(method, target, body, user string) *http.Request {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	if user != "" {
		req = req.WithContext(auth.WithUser(req.Context(), user, []string{auth.RoleUser}))
	}
	return req
}

func TestHandler_CreatePatient(t *testing.T) {
	svc, _ := newTestService()
	h := NewHandler(svc)
	e := echo.New()

	rec := httptest.NewRecorder()
	c := e.NewContext(userRequest(http.MethodPost, "/api/v1/patients", `{"first_name":"Jane","last_name":"Doe"}`, userID), rec)
	if err := h.CreatePatient(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Errorf("expected 201, got %d", rec.Code)
	}
	var p Patient
	json.Unmarshal(rec.Body.Bytes(), &p)
	if !p.IsPrimary || p.UserID != userID {
		t.Errorf("unexpected patient: %s", rec.Body.String())
	}
}

func TestHandler_RequiresUser(t *testing.T) {
	svc, _ := newTestService()
	h := NewHandler(svc)
	c := echo.New().NewContext(userRequest(http.MethodGet, "/", "", ""), httptest.NewRecorder())
	if err := h.ListPatients(c); !errors.Is(err, apperr.ErrUnauthorized) {
		t.Errorf("expected unauthorized, got %v", err)
	}
}

func TestScope_UsesPrimaryByDefault(t *testing.T) {
	svc, _ := newTestService()
	jane := mustCreate(t, svc, userID, "Jane", false)
	e := echo.New()

	var scoped uuid.UUID
	next := func(c echo.Context) error {
		scoped, _ = auth.PatientIDFromContext(c.Request().Context())
		return c.NoContent(http.StatusOK)
	}
	c := e.NewContext(userRequest(http.MethodGet, "/", "", userID), httptest.NewRecorder())
	if err := Scope(svc)(next)(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if scoped != jane.ID {
		t.Errorf("expected primary patient %s, got %s", jane.ID, scoped)
	}
}

func TestScope_Header(t *testing.T) {
	svc, _ := newTestService()
	mustCreate(t, svc, userID, "Jane", false)
	sam := mustCreate(t, svc, userID, "Sam", false)
	stranger := mustCreate(t, svc, "other-user", "Alex", false)
	e := echo.New()

	var scoped uuid.UUID
	next := func(c echo.Context) error {
		scoped, _ = auth.PatientIDFromContext(c.Request().Context())
		return nil
	}

	req := userRequest(http.MethodGet, "/", "", userID)
	req.Header.Set(PatientHeader, sam.ID.String())
	if err := Scope(svc)(next)(e.NewContext(req, httptest.NewRecorder())); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if scoped != sam.ID {
		t.Errorf("expected header patient %s, got %s", sam.ID, scoped)
	}

	req = userRequest(http.MethodGet, "/", "", userID)
	req.Header.Set(PatientHeader, stranger.ID.String())
	err := Scope(svc)(next)(e.NewContext(req, httptest.NewRecorder()))
	if !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("expected not found for another user's patient, got %v", err)
	}
}

func TestScope_NoPatient(t *testing.T) {
	svc, _ := newTestService()
	called := false
	next := func(c echo.Context) error { called = true; return nil }

	err := Scope(svc)(next)(echo.New().NewContext(userRequest(http.MethodGet, "/", "", "fresh-user"), httptest.NewRecorder()))
	if !errors.Is(err, apperr.ErrNotFound) || called {
		t.Errorf("expected not found before the handler, got %v (called=%v)", err, called)
	}
}

func TestHandler_GetActivePatient(t *testing.T) {
	svc, _ := newTestService()
	jane := mustCreate(t, svc, userID, "Jane", false)
	h := NewHandler(svc)

	rec := httptest.NewRecorder()
	c := echo.New().NewContext(userRequest(http.MethodGet, "/api/v1/patients/me", "", userID), rec)
	if err := Scope(svc)(h.GetActivePatient)(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(rec.Body.String(), jane.ID.String()) {
		t.Errorf("expected the primary patient, got %s", rec.Body.String())
	}
}
