package controllers

import (
	"context"
	"encoding/json"
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JonasWeigert/PawTrack/internal/pkg/payments"
	"github.com/JonasWeigert/PawTrack/internal/pkg/usercontext"
)

// fakeBillingService records the last request per operation and returns
// canned results.
type fakeBillingService struct {
	historyReq    *payments.HistoryRequest
	historyResult *payments.HistoryResult
	historyErr    error

	retryReq    *payments.RetryRequest
	retryResult *payments.RetryResult
	retryErr    error

	refundReq    *payments.RefundRequest
	refundResult *payments.RefundResult
	refundErr    error
}

func (f *fakeBillingService) History(ctx context.Context, req payments.HistoryRequest) (*payments.HistoryResult, error) {
	f.historyReq = &req
	if f.historyErr != nil {
		return nil, f.historyErr
	}
	if f.historyResult != nil {
		return f.historyResult, nil
	}
	return &payments.HistoryResult{PaymentHistory: []payments.PaymentEvent{}}, nil
}

func (f *fakeBillingService) RetryPayment(ctx context.Context, req payments.RetryRequest) (*payments.RetryResult, error) {
	f.retryReq = &req
	if f.retryErr != nil {
		return nil, f.retryErr
	}
	if f.retryResult != nil {
		return f.retryResult, nil
	}
	return &payments.RetryResult{SubscriptionID: req.SubscriptionID}, nil
}

func (f *fakeBillingService) ProcessRefund(ctx context.Context, req payments.RefundRequest) (*payments.RefundResult, error) {
	f.refundReq = &req
	if f.refundErr != nil {
		return nil, f.refundErr
	}
	if f.refundResult != nil {
		return f.refundResult, nil
	}
	return &payments.RefundResult{Success: true}, nil
}

// newBillingTestApp wires the billing routes behind a stub auth middleware
// that injects the given user context.
func newBillingTestApp(svc billingService, uc usercontext.UserContext) *fiber.App {
	billingSvc = svc
	app := fiber.New()
	app.Use(func(c *fiber.Ctx) error {
		c.Locals(usercontext.KeyUserContext, uc)
		return c.Next()
	})
	app.Get("/billing/payment-history", HandleAdminPaymentHistory)
	app.Post("/billing/retry-payment", HandleAdminRetryPayment)
	app.Post("/billing/refund", HandleAdminProcessRefund)
	return app
}

func adminContext() usercontext.UserContext {
	return usercontext.UserContext{UserID: 7, Username: "ops-admin", IsLoggedIn: true, IsAdmin: true}
}

func postJSON(t *testing.T, app *fiber.App, path, body string) (int, map[string]any) {
	t.Helper()
	req := httptest.NewRequest("POST", path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	raw, _ := io.ReadAll(resp.Body)
	var parsed map[string]any
	_ = json.Unmarshal(raw, &parsed)
	return resp.StatusCode, parsed
}

func TestHandleAdminRetryPaymentMissingSubscriptionID(t *testing.T) {
	svc := &fakeBillingService{}
	app := newBillingTestApp(svc, adminContext())

	status, body := postJSON(t, app, "/billing/retry-payment", `{}`)
	assert.Equal(t, fiber.StatusBadRequest, status)
	assert.Equal(t, "bad_request", body["error"])
	assert.Nil(t, svc.retryReq, "the service must not be called on validation failure")
}

func TestHandleAdminRetryPaymentInvalidJSON(t *testing.T) {
	svc := &fakeBillingService{}
	app := newBillingTestApp(svc, adminContext())

	status, body := postJSON(t, app, "/billing/retry-payment", `{"subscription_id":`)
	assert.Equal(t, fiber.StatusBadRequest, status)
	assert.Equal(t, "bad_request", body["error"])
}

func TestHandleAdminRetryPaymentForwardsActor(t *testing.T) {
	svc := &fakeBillingService{}
	app := newBillingTestApp(svc, adminContext())

	status, _ := postJSON(t, app, "/billing/retry-payment", `{"subscription_id": 42}`)
	require.Equal(t, fiber.StatusOK, status)
	require.NotNil(t, svc.retryReq)
	assert.Equal(t, uint(42), svc.retryReq.SubscriptionID)
	assert.Equal(t, payments.Actor{ID: 7, IsAdmin: true}, svc.retryReq.Actor)
}

func TestHandleAdminRetryPaymentDeclineIsStillOK(t *testing.T) {
	svc := &fakeBillingService{
		retryResult: &payments.RetryResult{
			SubscriptionID:     42,
			SubscriptionStatus: "past_due",
			Result: payments.RetryOutcome{
				Type:        payments.RetryTypeInvoicePayment,
				Status:      payments.RetryStatusPaymentFailed,
				Error:       "Your card has insufficient funds.",
				DeclineCode: "insufficient_funds",
			},
		},
	}
	app := newBillingTestApp(svc, adminContext())

	status, body := postJSON(t, app, "/billing/retry-payment", `{"subscription_id": 42}`)
	assert.Equal(t, fiber.StatusOK, status, "a gateway decline is a business outcome, not an HTTP error")
	result, ok := body["result"].(map[string]any)
	require.True(t, ok, "response must carry the outcome payload: %v", body)
	assert.Equal(t, "payment_failed", result["status"])
	assert.Equal(t, "insufficient_funds", result["decline_code"])
}

func TestBillingErrorStatusMapping(t *testing.T) {
	cases := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"unauthorized", payments.ErrUnauthorized, fiber.StatusUnauthorized, "unauthorized"},
		{"forbidden", payments.ErrForbidden, fiber.StatusForbidden, "forbidden"},
		{"bad request", payments.ErrBadRequest, fiber.StatusBadRequest, "bad_request"},
		{"not found", payments.ErrNotFound, fiber.StatusNotFound, "not_found"},
		{"invalid state", payments.ErrInvalidState, fiber.StatusConflict, "invalid_state"},
		{"upstream", payments.ErrUpstream, fiber.StatusBadGateway, "upstream_error"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			svc := &fakeBillingService{retryErr: tc.err}
			app := newBillingTestApp(svc, adminContext())

			status, body := postJSON(t, app, "/billing/retry-payment", `{"subscription_id": 42}`)
			assert.Equal(t, tc.wantStatus, status)
			assert.Equal(t, tc.wantCode, body["error"])
		})
	}
}

func TestHandleAdminPaymentHistoryQueryParams(t *testing.T) {
	svc := &fakeBillingService{}
	app := newBillingTestApp(svc, adminContext())

	req := httptest.NewRequest("GET", "/billing/payment-history?subscription_id=42&limit=5&starting_after=pi_9", nil)
	resp, err := app.Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	require.NotNil(t, svc.historyReq)
	assert.Equal(t, uint(42), svc.historyReq.SubscriptionID)
	assert.Equal(t, 5, svc.historyReq.Limit)
	assert.Equal(t, "pi_9", svc.historyReq.StartingAfter)
}

func TestHandleAdminPaymentHistoryRejectsBadSubscriptionID(t *testing.T) {
	svc := &fakeBillingService{}
	app := newBillingTestApp(svc, adminContext())

	req := httptest.NewRequest("GET", "/billing/payment-history?subscription_id=abc", nil)
	resp, err := app.Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	assert.Nil(t, svc.historyReq)
}

func TestHandleAdminProcessRefundValidation(t *testing.T) {
	cases := []struct {
		name string
		body string
	}{
		{"missing subscription id", `{"refund_amount": 10}`},
		{"zero refund amount", `{"subscription_id": 42, "refund_amount": 0}`},
		{"negative refund amount", `{"subscription_id": 42, "refund_amount": -5}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			svc := &fakeBillingService{}
			app := newBillingTestApp(svc, adminContext())

			status, _ := postJSON(t, app, "/billing/refund", tc.body)
			assert.Equal(t, fiber.StatusBadRequest, status)
			assert.Nil(t, svc.refundReq)
		})
	}
}

func TestHandleAdminProcessRefundForwardsBody(t *testing.T) {
	svc := &fakeBillingService{}
	app := newBillingTestApp(svc, adminContext())

	status, _ := postJSON(t, app, "/billing/refund",
		`{"subscription_id": 42, "refund_amount": 25.5, "reason": "duplicate", "notify_customer": true}`)
	require.Equal(t, fiber.StatusOK, status)
	require.NotNil(t, svc.refundReq)
	assert.Equal(t, uint(42), svc.refundReq.SubscriptionID)
	require.NotNil(t, svc.refundReq.Amount)
	assert.Equal(t, 25.5, *svc.refundReq.Amount)
	assert.Equal(t, "duplicate", svc.refundReq.Reason)
	assert.True(t, svc.refundReq.NotifyCustomer)
}

func TestAnonymousActorForwardedAsZero(t *testing.T) {
	svc := &fakeBillingService{historyErr: payments.ErrUnauthorized}
	app := newBillingTestApp(svc, usercontext.UserContext{})

	req := httptest.NewRequest("GET", "/billing/payment-history?customer_id=cus_1", nil)
	resp, err := app.Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
	require.NotNil(t, svc.historyReq)
	assert.Equal(t, payments.Actor{}, svc.historyReq.Actor)
}
