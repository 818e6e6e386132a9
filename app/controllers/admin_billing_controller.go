package controllers

import (
	"context"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/JonasWeigert/PawTrack/internal/pkg/audit"
	"github.com/JonasWeigert/PawTrack/internal/pkg/payments"
	"github.com/JonasWeigert/PawTrack/internal/pkg/usercontext"
)

// billingService is the slice of the payments core the admin endpoints use.
type billingService interface {
	History(ctx context.Context, req payments.HistoryRequest) (*payments.HistoryResult, error)
	RetryPayment(ctx context.Context, req payments.RetryRequest) (*payments.RetryResult, error)
	ProcessRefund(ctx context.Context, req payments.RefundRequest) (*payments.RefundResult, error)
}

var (
	billingSvc      billingService
	billingAudit    *audit.GormSink
	billingValidate = validator.New()
)

// InitializeBillingController wires the billing endpoints to the payments
// core and the audit sink.
func InitializeBillingController(svc billingService, sink *audit.GormSink) {
	billingSvc = svc
	billingAudit = sink
}

// HandlePing is a liveness probe for the API.
func HandlePing(c *fiber.Ctx) error {
	return c.Status(fiber.StatusOK).JSON(fiber.Map{"ping": "pong"})
}

// HandleAdminPaymentHistory returns the unified payment timeline for a
// customer, addressed by subscription id or gateway customer id.
func HandleAdminPaymentHistory(c *fiber.Ctx) error {
	req := payments.HistoryRequest{
		Actor:         actorFromCtx(c),
		CustomerID:    c.Query("customer_id"),
		Limit:         c.QueryInt("limit", 0),
		StartingAfter: c.Query("starting_after"),
	}
	if raw := c.Query("subscription_id"); raw != "" {
		id, err := strconv.ParseUint(raw, 10, 32)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": "subscription_id must be a positive integer"})
		}
		req.SubscriptionID = uint(id)
	}

	result, err := billingSvc.History(c.UserContext(), req)
	if err != nil {
		return respondBillingError(c, err)
	}
	return c.JSON(result)
}

type retryPaymentRequest struct {
	SubscriptionID uint `json:"subscription_id" validate:"required"`
}

// HandleAdminRetryPayment attempts the state-appropriate remedial action on
// a stalled subscription. Declined payments come back as 200 with failure
// detail; only structural problems map to error statuses.
func HandleAdminRetryPayment(c *fiber.Ctx) error {
	var body retryPaymentRequest
	if err := c.BodyParser(&body); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": "Invalid JSON body"})
	}
	if err := billingValidate.Struct(body); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": "subscription_id is required"})
	}

	result, err := billingSvc.RetryPayment(c.UserContext(), payments.RetryRequest{
		Actor:          actorFromCtx(c),
		SubscriptionID: body.SubscriptionID,
	})
	if err != nil {
		return respondBillingError(c, err)
	}
	return c.JSON(result)
}

type processRefundRequest struct {
	SubscriptionID uint     `json:"subscription_id" validate:"required"`
	RefundAmount   *float64 `json:"refund_amount" validate:"omitempty,gt=0"`
	Reason         string   `json:"reason" validate:"max=500"`
	NotifyCustomer bool     `json:"notify_customer"`
}

// HandleAdminProcessRefund refunds the customer's most recent unrefunded
// successful charge.
func HandleAdminProcessRefund(c *fiber.Ctx) error {
	var body processRefundRequest
	if err := c.BodyParser(&body); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": "Invalid JSON body"})
	}
	if err := billingValidate.Struct(body); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": err.Error()})
	}

	result, err := billingSvc.ProcessRefund(c.UserContext(), payments.RefundRequest{
		Actor:          actorFromCtx(c),
		SubscriptionID: body.SubscriptionID,
		Amount:         body.RefundAmount,
		Reason:         body.Reason,
		NotifyCustomer: body.NotifyCustomer,
	})
	if err != nil {
		return respondBillingError(c, err)
	}
	return c.JSON(result)
}

// HandleAdminBillingAudit lists the newest billing audit entries.
func HandleAdminBillingAudit(c *fiber.Ctx) error {
	events, err := billingAudit.Recent(c.UserContext(), c.QueryInt("limit", 50))
	if err != nil {
		return respondBillingError(c, err)
	}
	return c.JSON(fiber.Map{"audit_events": events})
}

func actorFromCtx(c *fiber.Ctx) payments.Actor {
	uc := usercontext.GetUserContext(c)
	if !uc.IsLoggedIn {
		return payments.Actor{}
	}
	return payments.Actor{ID: uc.UserID, IsAdmin: uc.IsAdmin}
}
