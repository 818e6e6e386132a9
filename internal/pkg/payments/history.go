package payments

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/JonasWeigert/PawTrack/app/models"
	"github.com/JonasWeigert/PawTrack/internal/pkg/audit"
	stripe "github.com/stripe/stripe-go"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

const (
	historyDefaultLimit = 20
	historyMaxLimit     = 100
)

// History builds the unified, deduplicated payment timeline for one
// customer. Four overlapping gateway streams (payment intents, charges,
// invoices, refunds) are fetched concurrently, merged, deduplicated and
// sorted newest-first.
func (s *Service) History(ctx context.Context, req HistoryRequest) (*HistoryResult, error) {
	if err := req.Actor.authorize(); err != nil {
		return nil, err
	}

	customerID := strings.TrimSpace(req.CustomerID)
	if customerID == "" && req.SubscriptionID == 0 {
		return nil, fmt.Errorf("%w: subscription_id or customer_id is required", ErrBadRequest)
	}

	if customerID == "" {
		sub, err := s.subs.GetByID(req.SubscriptionID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, fmt.Errorf("%w: subscription %d", ErrNotFound, req.SubscriptionID)
			}
			return nil, fmt.Errorf("load subscription %d: %w", req.SubscriptionID, err)
		}
		if sub.StripeCustomerID == "" {
			return nil, fmt.Errorf("%w: subscription %d has no gateway customer", ErrInvalidState, req.SubscriptionID)
		}
		customerID = sub.StripeCustomerID
	}

	limit := req.Limit
	if limit <= 0 {
		limit = historyDefaultLimit
	}
	if limit > historyMaxLimit {
		limit = historyMaxLimit
	}
	opts := ListOptions{Limit: int64(limit), StartingAfter: req.StartingAfter}

	var (
		intents  []*stripe.PaymentIntent
		charges  []*stripe.Charge
		invoices []*stripe.Invoice
		refunds  []*stripe.Refund

		moreIntents  bool
		moreCharges  bool
		moreInvoices bool
		moreRefunds  bool
	)

	// Fan out the four list calls; sequential fetches would multiply the
	// user-visible latency by four.
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		intents, moreIntents, err = s.gw.ListPaymentIntents(gctx, customerID, opts)
		return err
	})
	g.Go(func() error {
		var err error
		charges, moreCharges, err = s.gw.ListCharges(gctx, customerID, opts)
		return err
	})
	g.Go(func() error {
		var err error
		invoices, moreInvoices, err = s.gw.ListInvoices(gctx, customerID, opts)
		return err
	})
	g.Go(func() error {
		var err error
		refunds, moreRefunds, err = s.gw.ListRefunds(gctx, opts)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUpstream, err)
	}

	// Refunds cannot be filtered by customer at the gateway; keep only those
	// whose charge came back in the charge list just fetched.
	fetchedCharges := make(map[string]struct{}, len(charges))
	for _, ch := range charges {
		fetchedCharges[ch.ID] = struct{}{}
	}
	scopedRefunds := refunds[:0]
	for _, rf := range refunds {
		if rf.Charge == nil {
			continue
		}
		if _, ok := fetchedCharges[rf.Charge.ID]; ok {
			scopedRefunds = append(scopedRefunds, rf)
		}
	}

	// A charge already represented by a fetched payment intent must not
	// appear twice.
	containedCharges := make(map[string]struct{})
	for _, pi := range intents {
		if pi.Charges == nil {
			continue
		}
		for _, ch := range pi.Charges.Data {
			if ch != nil {
				containedCharges[ch.ID] = struct{}{}
			}
		}
	}

	events := make([]PaymentEvent, 0, len(intents)+len(charges)+len(invoices)+len(scopedRefunds))
	for _, pi := range intents {
		events = append(events, eventFromPaymentIntent(pi))
	}
	for _, ch := range charges {
		if _, ok := containedCharges[ch.ID]; ok {
			continue
		}
		events = append(events, eventFromCharge(ch))
	}
	for _, inv := range invoices {
		events = append(events, eventFromInvoice(inv))
	}
	for _, rf := range scopedRefunds {
		events = append(events, eventFromRefund(rf))
	}

	// Newest first; ties keep insertion order (intents, charges, invoices,
	// refunds).
	sort.SliceStable(events, func(i, j int) bool {
		return events[i].CreatedAt.After(events[j].CreatedAt)
	})

	hasMore := moreIntents || moreCharges || moreInvoices || moreRefunds
	if len(events) > limit {
		events = events[:limit]
		hasMore = true
	}

	result := &HistoryResult{
		PaymentHistory: events,
		Summary:        summarizeEvents(events),
		Pagination:     Pagination{HasMore: hasMore, Limit: limit},
	}
	if hasMore && len(events) > 0 {
		result.Pagination.NextCursor = events[len(events)-1].ID
	}

	// Customer profile is decoration; a lookup failure never fails the call.
	if cust, err := s.gw.GetCustomer(ctx, customerID); err == nil && cust != nil {
		info := &CustomerInfo{ID: cust.ID, Email: cust.Email, Name: cust.Name}
		if cust.InvoiceSettings != nil && cust.InvoiceSettings.DefaultPaymentMethod != nil {
			info.DefaultPaymentMethod = cust.InvoiceSettings.DefaultPaymentMethod.ID
		}
		result.Customer = info
	}

	s.audit.Record(ctx, models.AuditSeverityInfo, "payment history accessed", map[string]any{
		audit.MetaActorID:    req.Actor.ID,
		audit.MetaAction:     "billing.payment_history",
		audit.MetaTargetType: "customer",
		audit.MetaTargetID:   customerID,
		"subscription_id":    req.SubscriptionID,
		"event_count":        len(events),
		"has_more":           hasMore,
	})

	return result, nil
}

func eventFromPaymentIntent(pi *stripe.PaymentIntent) PaymentEvent {
	ev := PaymentEvent{
		ID:          pi.ID,
		Kind:        EventKindPaymentIntent,
		Amount:      pi.Amount,
		Currency:    pi.Currency,
		Status:      string(pi.Status),
		Description: pi.Description,
		CreatedAt:   time.Unix(pi.Created, 0).UTC(),
	}
	if pi.LastPaymentError != nil {
		ev.FailureMessage = pi.LastPaymentError.Msg
		ev.FailureCode = string(pi.LastPaymentError.Code)
	}
	if pi.Charges != nil && len(pi.Charges.Data) > 0 && pi.Charges.Data[0] != nil {
		ev.ChargeID = pi.Charges.Data[0].ID
		ev.ReceiptURL = pi.Charges.Data[0].ReceiptURL
	}
	return ev
}

func eventFromCharge(ch *stripe.Charge) PaymentEvent {
	ev := PaymentEvent{
		ID:             ch.ID,
		Kind:           EventKindCharge,
		Amount:         ch.Amount,
		Currency:       string(ch.Currency),
		Status:         ch.Status,
		Description:    ch.Description,
		CreatedAt:      time.Unix(ch.Created, 0).UTC(),
		ReceiptURL:     ch.ReceiptURL,
		FailureMessage: ch.FailureMessage,
		FailureCode:    ch.FailureCode,
	}
	if ch.PaymentIntent != "" {
		ev.PaymentIntentID = ch.PaymentIntent
	}
	return ev
}

func eventFromInvoice(inv *stripe.Invoice) PaymentEvent {
	return PaymentEvent{
		ID:               inv.ID,
		Kind:             EventKindInvoice,
		Amount:           inv.Total,
		Currency:         string(inv.Currency),
		Status:           string(inv.Status),
		Description:      inv.Description,
		CreatedAt:        time.Unix(inv.Created, 0).UTC(),
		InvoiceNumber:    inv.Number,
		HostedInvoiceURL: inv.HostedInvoiceURL,
		InvoicePDF:       inv.InvoicePDF,
	}
}

func eventFromRefund(rf *stripe.Refund) PaymentEvent {
	ev := PaymentEvent{
		ID:            rf.ID,
		Kind:          EventKindRefund,
		Amount:        -rf.Amount,
		Currency:      string(rf.Currency),
		Status:        string(rf.Status),
		Description:   "Refund",
		CreatedAt:     time.Unix(rf.Created, 0).UTC(),
		ReceiptNumber: rf.ReceiptNumber,
	}
	if rf.Charge != nil {
		ev.ChargeID = rf.Charge.ID
	}
	return ev
}

func summarizeEvents(events []PaymentEvent) HistorySummary {
	var sum HistorySummary
	if len(events) > 0 {
		sum.Currency = events[0].Currency
	}
	// Only payment intents and charges count toward the payment tallies. A
	// paid invoice shows the same money as its succeeded payment intent, so
	// counting invoices would double-count every subscription payment.
	for _, ev := range events {
		switch ev.Kind {
		case EventKindRefund:
			sum.RefundCount++
			sum.RefundTotal += -ev.Amount
		case EventKindPaymentIntent, EventKindCharge:
			switch ev.Status {
			case "succeeded":
				sum.SucceededCount++
				sum.SucceededTotal += ev.Amount
			case "failed", "requires_payment_method":
				sum.FailedCount++
			}
		}
	}
	return sum
}
