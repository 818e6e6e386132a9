package payments

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"strconv"

	"github.com/JonasWeigert/PawTrack/app/models"
	"github.com/JonasWeigert/PawTrack/internal/pkg/audit"
	"github.com/JonasWeigert/PawTrack/internal/pkg/mail"
	"github.com/google/uuid"
	stripe "github.com/stripe/stripe-go"
	"gorm.io/gorm"
)

// refundLookbackIntents is how many recent payment intents are inspected
// when locating the charge to refund.
const refundLookbackIntents = 10

// ProcessRefund refunds the customer's most recent unrefunded successful
// charge, capped at the charge's remaining refundable amount. The refund
// call must complete before the notification attempt, and the notification
// attempt must complete before the final audit entry so the entry reflects
// whether the email was actually sent. A notification failure never fails
// the refund.
func (s *Service) ProcessRefund(ctx context.Context, req RefundRequest) (*RefundResult, error) {
	if err := req.Actor.authorize(); err != nil {
		return nil, err
	}
	if req.SubscriptionID == 0 {
		return nil, fmt.Errorf("%w: subscription_id is required", ErrBadRequest)
	}

	release, lockErr := s.lockSubscription(ctx, req.SubscriptionID)
	if lockErr != nil {
		return nil, lockErr
	}
	defer release()

	sub, err := s.subs.GetByID(req.SubscriptionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: subscription %d", ErrNotFound, req.SubscriptionID)
		}
		return nil, fmt.Errorf("load subscription %d: %w", req.SubscriptionID, err)
	}
	if sub.StripeCustomerID == "" {
		return nil, fmt.Errorf("%w: subscription %d has no gateway customer", ErrInvalidState, sub.ID)
	}

	intents, _, err := s.gw.ListPaymentIntents(ctx, sub.StripeCustomerID, ListOptions{Limit: refundLookbackIntents})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUpstream, err)
	}

	pi, ch := selectRefundableCharge(intents)
	if pi == nil || ch == nil {
		return nil, fmt.Errorf("%w: no recent successful payments found", ErrBadRequest)
	}
	if ch.ID == "" {
		return nil, fmt.Errorf("%w: payment intent %s carries an invalid charge", ErrBadRequest, pi.ID)
	}

	remaining := ch.Amount - ch.AmountRefunded
	amount := remaining
	if req.Amount != nil {
		requested := int64(math.Round(*req.Amount * 100))
		if requested < amount {
			amount = requested
		}
	}
	if amount <= 0 {
		return nil, fmt.Errorf("%w: nothing available to refund on charge %s", ErrBadRequest, ch.ID)
	}

	rf, err := s.gw.CreateRefund(ctx, RefundInput{
		ChargeID: ch.ID,
		Amount:   amount,
		Reason:   gatewayRefundReason(req.Reason),
		Metadata: map[string]string{
			"admin_user_id":   strconv.FormatUint(uint64(req.Actor.ID), 10),
			"subscription_id": strconv.FormatUint(uint64(sub.ID), 10),
			"reason":          req.Reason,
		},
		IdempotencyKey: uuid.NewString(),
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUpstream, err)
	}

	emailSent := false
	emailID := ""
	if req.NotifyCustomer {
		msgID, mailErr := s.sendRefundEmail(ctx, sub, rf, amount)
		if mailErr != nil {
			s.audit.Record(ctx, models.AuditSeverityWarning, "refund notification email failed", map[string]any{
				audit.MetaActorID:    req.Actor.ID,
				audit.MetaAction:     "billing.refund_email",
				audit.MetaTargetType: "subscription",
				audit.MetaTargetID:   sub.ID,
				"refund_id":          rf.ID,
				"error":              mailErr.Error(),
			})
		} else {
			emailSent = true
			emailID = msgID
		}
	}

	if rf.Status == stripe.RefundStatusSucceeded {
		// Hook point for future state tracking; a refund does not by itself
		// change the subscription's billing status.
		if touchErr := s.subs.TouchUpdatedAt(sub.ID); touchErr != nil {
			log.Printf("refund: failed to touch subscription %d: %v", sub.ID, touchErr)
		}
	}

	details := RefundDetails{
		ID:              rf.ID,
		ChargeID:        ch.ID,
		PaymentIntentID: pi.ID,
		Amount:          float64(amount) / 100,
		Currency:        string(rf.Currency),
		Status:          string(rf.Status),
		Reason:          string(rf.Reason),
		ReceiptNumber:   rf.ReceiptNumber,
	}

	s.audit.Record(ctx, models.AuditSeverityInfo, "refund processed", map[string]any{
		audit.MetaActorID:    req.Actor.ID,
		audit.MetaAction:     "billing.refund",
		audit.MetaTargetType: "subscription",
		audit.MetaTargetID:   sub.ID,
		"refund_id":          rf.ID,
		"charge_id":          ch.ID,
		"payment_intent_id":  pi.ID,
		"amount_cents":       amount,
		"currency":           details.Currency,
		"status":             details.Status,
		"requested_reason":   req.Reason,
		"email_sent":         emailSent,
		"email_id":           emailID,
	})

	return &RefundResult{
		Success:   true,
		Refund:    details,
		EmailSent: emailSent,
		NextSteps: refundNextSteps(details.Status, req.NotifyCustomer, emailSent),
	}, nil
}

// selectRefundableCharge returns the newest succeeded payment intent that
// still carries a paid, not fully refunded charge, along with that charge.
func selectRefundableCharge(intents []*stripe.PaymentIntent) (*stripe.PaymentIntent, *stripe.Charge) {
	for _, pi := range intents {
		if pi == nil || pi.Status != stripe.PaymentIntentStatusSucceeded || pi.Charges == nil {
			continue
		}
		for _, ch := range pi.Charges.Data {
			if ch != nil && ch.Paid && !ch.Refunded {
				return pi, ch
			}
		}
	}
	return nil, nil
}

func (s *Service) sendRefundEmail(ctx context.Context, sub *models.Subscription, rf *stripe.Refund, amount int64) (string, error) {
	user := sub.User
	if user == nil || user.Email == "" {
		loaded, err := s.users.GetByID(sub.UserID)
		if err != nil {
			return "", fmt.Errorf("resolve refund recipient: %w", err)
		}
		user = loaded
	}
	return s.mailer.SendRefundNotification(ctx, user.Email, mail.RefundNotification{
		CustomerName:  user.Name,
		AmountDisplay: fmt.Sprintf("%.2f", float64(amount)/100),
		Currency:      string(rf.Currency),
		RefundID:      rf.ID,
		Status:        string(rf.Status),
		Reason:        string(rf.Reason),
		ReceiptNumber: rf.ReceiptNumber,
	})
}

// gatewayRefundReason maps a free-text admin reason onto the gateway's
// closed reason vocabulary; anything else travels in metadata instead.
func gatewayRefundReason(reason string) string {
	switch reason {
	case string(stripe.RefundReasonDuplicate),
		string(stripe.RefundReasonFraudulent),
		string(stripe.RefundReasonRequestedByCustomer):
		return reason
	default:
		return string(stripe.RefundReasonRequestedByCustomer)
	}
}

func refundNextSteps(status string, notifyRequested, emailSent bool) string {
	switch {
	case status == string(stripe.RefundStatusSucceeded) && emailSent:
		return "Refund completed and the customer was notified by email."
	case status == string(stripe.RefundStatusSucceeded) && notifyRequested:
		return "Refund completed, but the notification email failed. Contact the customer manually."
	case status == string(stripe.RefundStatusSucceeded):
		return "Refund completed. Notify the customer manually if needed."
	case notifyRequested && !emailSent:
		return "Refund is pending at the gateway and the notification email failed. Check back later and contact the customer manually."
	default:
		return "Refund is pending at the gateway. It settles to the customer's payment method automatically."
	}
}
