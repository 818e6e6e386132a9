package payments

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/JonasWeigert/PawTrack/app/models"
	"github.com/JonasWeigert/PawTrack/internal/pkg/audit"
	stripe "github.com/stripe/stripe-go"
	"gorm.io/gorm"
)

// RetryPayment inspects a stalled subscription and attempts the remedial
// action for its failure state: pay the newest open invoice for past_due,
// confirm the newest payment intent for incomplete. A declined payment is
// an expected outcome reported in the result payload; only structural
// problems (missing ids, wrong state, nothing to retry) surface as errors.
func (s *Service) RetryPayment(ctx context.Context, req RetryRequest) (result *RetryResult, err error) {
	defer func() {
		s.recordRetryAudit(ctx, req, result, err)
	}()

	if authErr := req.Actor.authorize(); authErr != nil {
		return nil, authErr
	}
	if req.SubscriptionID == 0 {
		return nil, fmt.Errorf("%w: subscription_id is required", ErrBadRequest)
	}

	release, lockErr := s.lockSubscription(ctx, req.SubscriptionID)
	if lockErr != nil {
		return nil, lockErr
	}
	defer release()

	sub, loadErr := s.subs.GetByID(req.SubscriptionID)
	if loadErr != nil {
		if errors.Is(loadErr, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: subscription %d", ErrNotFound, req.SubscriptionID)
		}
		return nil, fmt.Errorf("load subscription %d: %w", req.SubscriptionID, loadErr)
	}
	if sub.StripeSubscriptionID == "" || sub.StripePaymentMethodID == "" {
		return nil, fmt.Errorf("%w: subscription %d is missing gateway identifiers", ErrInvalidState, sub.ID)
	}

	// State guard before any gateway call: only stalled subscriptions are
	// retryable.
	if !sub.IsRetryEligible() {
		return nil, fmt.Errorf("%w: subscription status %q is not retryable (must be %q or %q)",
			ErrInvalidState, sub.Status, models.SubscriptionStatusPastDue, models.SubscriptionStatusIncomplete)
	}

	if _, gwErr := s.gw.GetSubscription(ctx, sub.StripeSubscriptionID); gwErr != nil {
		if isStripeNotFound(gwErr) {
			return nil, fmt.Errorf("%w: gateway subscription %s", ErrNotFound, sub.StripeSubscriptionID)
		}
		return nil, fmt.Errorf("%w: %v", ErrUpstream, gwErr)
	}

	var outcome RetryOutcome
	switch sub.Status {
	case models.SubscriptionStatusPastDue:
		outcome, err = s.retryOpenInvoice(ctx, sub)
	case models.SubscriptionStatusIncomplete:
		outcome, err = s.retryPaymentIntent(ctx, sub)
	}
	if err != nil {
		return nil, err
	}

	status := sub.Status
	if outcome.Succeeded() {
		status = models.SubscriptionStatusActive
		// The gateway already confirmed the payment; a failed local write
		// here is an accepted inconsistency window that webhook ingestion
		// reconciles. Setting active twice is harmless.
		if updateErr := s.subs.UpdateStatus(sub.ID, models.SubscriptionStatusActive); updateErr != nil {
			log.Printf("retry payment: failed to persist active status for subscription %d: %v", sub.ID, updateErr)
		}
	}

	return &RetryResult{
		SubscriptionID:     sub.ID,
		SubscriptionStatus: status,
		Result:             outcome,
		NextSteps:          retryNextSteps(outcome),
	}, nil
}

// retryOpenInvoice settles the single most recent open invoice with the
// stored payment method.
func (s *Service) retryOpenInvoice(ctx context.Context, sub *models.Subscription) (RetryOutcome, error) {
	invoices, err := s.gw.ListOpenInvoices(ctx, sub.StripeSubscriptionID, 1)
	if err != nil {
		return RetryOutcome{}, fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	if len(invoices) == 0 {
		return RetryOutcome{}, fmt.Errorf("%w: nothing to retry, no open invoice for subscription %d", ErrBadRequest, sub.ID)
	}
	inv := invoices[0]

	paid, payErr := s.gw.PayInvoice(ctx, inv.ID, sub.StripePaymentMethodID)
	if payErr != nil {
		msg, code := declineDetail(payErr)
		return RetryOutcome{
			Type:        RetryTypeInvoicePayment,
			Status:      RetryStatusPaymentFailed,
			InvoiceID:   inv.ID,
			Error:       msg,
			DeclineCode: code,
		}, nil
	}
	if paid.Status != stripe.InvoiceStatusPaid {
		return RetryOutcome{
			Type:      RetryTypeInvoicePayment,
			Status:    RetryStatusPaymentFailed,
			InvoiceID: paid.ID,
			Error:     fmt.Sprintf("invoice status is %s after payment attempt", paid.Status),
		}, nil
	}
	return RetryOutcome{
		Type:       RetryTypeInvoicePayment,
		Status:     RetryStatusPaid,
		AmountPaid: paid.AmountPaid,
		InvoiceID:  paid.ID,
	}, nil
}

// retryPaymentIntent confirms the customer's most recent payment intent
// with the stored payment method.
func (s *Service) retryPaymentIntent(ctx context.Context, sub *models.Subscription) (RetryOutcome, error) {
	if sub.StripeCustomerID == "" {
		return RetryOutcome{}, fmt.Errorf("%w: subscription %d has no gateway customer", ErrInvalidState, sub.ID)
	}
	intents, _, err := s.gw.ListPaymentIntents(ctx, sub.StripeCustomerID, ListOptions{Limit: 1})
	if err != nil {
		return RetryOutcome{}, fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	if len(intents) == 0 {
		return RetryOutcome{}, fmt.Errorf("%w: nothing to retry, no payment intent for subscription %d", ErrBadRequest, sub.ID)
	}
	pi := intents[0]

	confirmed, confirmErr := s.gw.ConfirmPaymentIntent(ctx, pi.ID, sub.StripePaymentMethodID)
	if confirmErr != nil {
		msg, code := declineDetail(confirmErr)
		return RetryOutcome{
			Type:            RetryTypeIntentConfirm,
			Status:          RetryStatusPaymentFailed,
			PaymentIntentID: pi.ID,
			Error:           msg,
			DeclineCode:     code,
		}, nil
	}
	if confirmed.Status != stripe.PaymentIntentStatusSucceeded {
		return RetryOutcome{
			Type:            RetryTypeIntentConfirm,
			Status:          RetryStatusPaymentFailed,
			PaymentIntentID: confirmed.ID,
			Error:           fmt.Sprintf("payment intent status is %s after confirmation", confirmed.Status),
		}, nil
	}
	return RetryOutcome{
		Type:            RetryTypeIntentConfirm,
		Status:          RetryStatusSucceeded,
		AmountPaid:      confirmed.Amount,
		PaymentIntentID: confirmed.ID,
	}, nil
}

func retryNextSteps(o RetryOutcome) string {
	if o.Succeeded() {
		return "Payment settled and the subscription is active again. No further action required."
	}
	if o.DeclineCode != "" {
		return fmt.Sprintf("The payment was declined (%s). Ask the customer to update their payment method, then retry.", o.DeclineCode)
	}
	return "The payment attempt did not settle. Check the gateway dashboard and ask the customer to update their payment method."
}

// recordRetryAudit writes the single audit entry every retry invocation
// produces, covering success, decline and structural error alike.
func (s *Service) recordRetryAudit(ctx context.Context, req RetryRequest, result *RetryResult, err error) {
	meta := map[string]any{
		audit.MetaActorID:    req.Actor.ID,
		audit.MetaAction:     "billing.retry_payment",
		audit.MetaTargetType: "subscription",
		audit.MetaTargetID:   req.SubscriptionID,
	}
	switch {
	case err != nil:
		meta["error"] = err.Error()
		s.audit.Record(ctx, models.AuditSeverityError, "payment retry rejected", meta)
	case result != nil && result.Result.Succeeded():
		meta["outcome"] = result.Result
		s.audit.Record(ctx, models.AuditSeverityInfo, "payment retry succeeded", meta)
	default:
		if result != nil {
			meta["outcome"] = result.Result
		}
		s.audit.Record(ctx, models.AuditSeverityInfo, "payment retry declined by gateway", meta)
	}
}

// declineDetail extracts the human message and decline code from a gateway
// payment error.
func declineDetail(err error) (string, string) {
	var sErr *stripe.Error
	if errors.As(err, &sErr) {
		msg := sErr.Msg
		if msg == "" {
			msg = sErr.Error()
		}
		return msg, string(sErr.DeclineCode)
	}
	return err.Error(), ""
}

// isStripeNotFound reports whether a gateway error is a missing-resource
// response rather than a transport or server failure.
func isStripeNotFound(err error) bool {
	var sErr *stripe.Error
	if errors.As(err, &sErr) {
		return sErr.HTTPStatusCode == 404 || sErr.Code == stripe.ErrorCodeResourceMissing
	}
	return false
}
