package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"

	"goflare.io/loyalty/apperr"
	"goflare.io/loyalty/models"
	"goflare.io/loyalty/models/enum"
)

type fakeLoyalty struct {
	outcome    models.LinkOutcome
	coupons    []*models.CouponDefinition
	stats      models.SavingsStats
	webhookErr error
	publishErr error

	linkedWith []any
	published  []string
	signature  string
}

func (f *fakeLoyalty) ResolveAndLink(_ context.Context, userID, phone string, phoneChanged bool) models.LinkOutcome {
	f.linkedWith = []any{userID, phone, phoneChanged}
	return f.outcome
}

func (f *fakeLoyalty) AggregateCoupons(context.Context, string) []*models.CouponDefinition {
	return f.coupons
}

func (f *fakeLoyalty) ComputeSavingsStats(context.Context, string) models.SavingsStats {
	return f.stats
}

func (f *fakeLoyalty) PublishPhoneChanged(_ context.Context, userID, phone string) error {
	f.published = []string{userID, phone}
	return f.publishErr
}

func (f *fakeLoyalty) HandleStripeWebhook(_ context.Context, _ []byte, signature string) error {
	f.signature = signature
	return f.webhookErr
}

func (f *fakeLoyalty) SyncCouponCatalog(context.Context) (int, error) { return 0, nil }

func (f *fakeLoyalty) Close() {}

func newContext(method, body string) (echo.Context, *httptest.ResponseRecorder) {
	e := echo.New()
	req := httptest.NewRequest(method, "/", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}

func TestLinkReturnsOutcome(t *testing.T) {
	fake := &fakeLoyalty{outcome: models.LinkOutcome{State: enum.LinkStateLinked, CustomerID: "c1", Message: "Linked."}}
	c, rec := newContext(http.MethodPost, `{"user_id":"u1","phone":"+1 555-0100","phone_changed":true}`)

	if err := NewIdentityHandler(fake).Link(c); err != nil {
		t.Fatalf("link: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var got models.LinkOutcome
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.State != enum.LinkStateLinked || got.CustomerID != "c1" {
		t.Fatalf("unexpected outcome %+v", got)
	}
	if fake.linkedWith[0] != "u1" || fake.linkedWith[1] != "+1 555-0100" || fake.linkedWith[2] != true {
		t.Fatalf("unexpected arguments %v", fake.linkedWith)
	}
}

func TestLinkMapsErrorKinds(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"invalid input", apperr.Invalid("customers", "empty user id"), http.StatusBadRequest},
		{"source unavailable", apperr.Unavailable("customers", "u1", errors.New("down")), http.StatusServiceUnavailable},
		{"not found is still a result", apperr.New(apperr.NotFound, "customers", "u1", errors.New("gone")), http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake := &fakeLoyalty{outcome: models.LinkOutcome{State: enum.LinkStateUnlinked, Err: tt.err}}
			c, rec := newContext(http.MethodPost, `{"user_id":"u1"}`)

			if err := NewIdentityHandler(fake).Link(c); err != nil {
				t.Fatalf("link: %v", err)
			}
			if rec.Code != tt.want {
				t.Fatalf("expected %d, got %d", tt.want, rec.Code)
			}
		})
	}
}

func TestPhoneChanged(t *testing.T) {
	fake := &fakeLoyalty{}
	c, rec := newContext(http.MethodPost, `{"user_id":"u1","phone":"5550199"}`)

	if err := NewIdentityHandler(fake).PhoneChanged(c); err != nil {
		t.Fatalf("phone changed: %v", err)
	}
	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", rec.Code)
	}
	if fake.published[0] != "u1" || fake.published[1] != "5550199" {
		t.Fatalf("unexpected publish %v", fake.published)
	}

	c, rec = newContext(http.MethodPost, `{"phone":"5550199"}`)
	_ = NewIdentityHandler(fake).PhoneChanged(c)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 without user, got %d", rec.Code)
	}
}

func TestListCoupons(t *testing.T) {
	fake := &fakeLoyalty{coupons: []*models.CouponDefinition{{ID: "k1", Active: true}}}
	c, rec := newContext(http.MethodGet, "")
	c.SetParamNames("id")
	c.SetParamValues("u1")

	if err := NewUserHandler(fake).ListCoupons(c); err != nil {
		t.Fatalf("list coupons: %v", err)
	}

	var body struct {
		Coupons []models.CouponDefinition `json:"coupons"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if rec.Code != http.StatusOK || len(body.Coupons) != 1 || body.Coupons[0].ID != "k1" {
		t.Fatalf("unexpected response %d %s", rec.Code, rec.Body.String())
	}
}

func TestGetSavings(t *testing.T) {
	fake := &fakeLoyalty{stats: models.SavingsStats{TotalSaved: 12.5, GoalProgress: 40}}
	c, rec := newContext(http.MethodGet, "")
	c.SetParamNames("id")
	c.SetParamValues("u1")

	if err := NewUserHandler(fake).GetSavings(c); err != nil {
		t.Fatalf("get savings: %v", err)
	}
	if !strings.Contains(rec.Body.String(), `"total_saved":12.5`) {
		t.Fatalf("unexpected body %s", rec.Body.String())
	}
}

func TestWebhookStatusCodes(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"ok", nil, http.StatusOK},
		{"bad signature", apperr.New(apperr.InvalidInput, "stripe", "", errors.New("bad")), http.StatusBadRequest},
		{"processing failure", errors.New("store down"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake := &fakeLoyalty{webhookErr: tt.err}
			c, rec := newContext(http.MethodPost, `{}`)
			c.Request().Header.Set("Stripe-Signature", "t=1,v1=abc")

			if err := NewWebhookHandler(fake).HandleStripeWebhook(c); err != nil {
				t.Fatalf("webhook: %v", err)
			}
			if rec.Code != tt.want {
				t.Fatalf("expected %d, got %d", tt.want, rec.Code)
			}
			if fake.signature != "t=1,v1=abc" {
				t.Fatalf("expected signature to be forwarded, got %q", fake.signature)
			}
		})
	}
}
