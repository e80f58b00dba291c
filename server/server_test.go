package server

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
)

type stubHandlers struct{ hit string }

func (s *stubHandlers) record(name string) echo.HandlerFunc {
	return func(c echo.Context) error {
		s.hit = name + ":" + c.Param("id")
		return c.NoContent(http.StatusNoContent)
	}
}

func (s *stubHandlers) Link(c echo.Context) error                { return s.record("link")(c) }
func (s *stubHandlers) PhoneChanged(c echo.Context) error        { return s.record("phone")(c) }
func (s *stubHandlers) ListCoupons(c echo.Context) error         { return s.record("coupons")(c) }
func (s *stubHandlers) GetSavings(c echo.Context) error          { return s.record("savings")(c) }
func (s *stubHandlers) HandleStripeWebhook(c echo.Context) error { return s.record("webhook")(c) }

func TestRoutes(t *testing.T) {
	stub := &stubHandlers{}
	handler := NewServer(stub, stub, stub).Handler()

	tests := []struct {
		method, path, want string
	}{
		{http.MethodPost, "/identity/link", "link:"},
		{http.MethodPost, "/identity/phone-changed", "phone:"},
		{http.MethodGet, "/users/u1/coupons", "coupons:u1"},
		{http.MethodGet, "/users/u1/savings", "savings:u1"},
		{http.MethodPost, "/webhook/stripe", "webhook:"},
	}

	for _, tt := range tests {
		stub.hit = ""
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(tt.method, tt.path, nil))
		if rec.Code != http.StatusNoContent || stub.hit != tt.want {
			t.Fatalf("%s %s: expected %q, got %d %q", tt.method, tt.path, tt.want, rec.Code, stub.hit)
		}
	}

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected healthz 200, got %d", rec.Code)
	}
}
