package payments

import (
	"context"

	stripe "github.com/stripe/stripe-go"
	"github.com/stripe/stripe-go/charge"
	"github.com/stripe/stripe-go/customer"
	"github.com/stripe/stripe-go/invoice"
	"github.com/stripe/stripe-go/paymentintent"
	"github.com/stripe/stripe-go/refund"
	"github.com/stripe/stripe-go/sub"
)

// SetStripeKey configures the Stripe SDK key once during bootstrap.
func SetStripeKey(key string) { stripe.Key = key }

// stripeGateway is the Stripe SDK-backed implementation of Gateway.
type stripeGateway struct{}

// NewStripeGateway returns a Gateway backed by the official Stripe SDK.
func NewStripeGateway() Gateway { return stripeGateway{} }

func listParams(ctx context.Context, opts ListOptions) stripe.ListParams {
	lp := stripe.ListParams{Context: ctx}
	if opts.Limit > 0 {
		lp.Limit = stripe.Int64(opts.Limit)
	}
	if opts.StartingAfter != "" {
		lp.StartingAfter = stripe.String(opts.StartingAfter)
	}
	return lp
}

func (stripeGateway) ListPaymentIntents(ctx context.Context, customerID string, opts ListOptions) ([]*stripe.PaymentIntent, bool, error) {
	params := &stripe.PaymentIntentListParams{Customer: stripe.String(customerID)}
	params.ListParams = listParams(ctx, opts)
	params.AddExpand("data.charges")

	it := paymentintent.List(params)
	var out []*stripe.PaymentIntent
	for it.Next() {
		out = append(out, it.PaymentIntent())
	}
	if err := it.Err(); err != nil {
		return nil, false, err
	}
	return out, it.Meta().HasMore, nil
}

func (stripeGateway) ListCharges(ctx context.Context, customerID string, opts ListOptions) ([]*stripe.Charge, bool, error) {
	params := &stripe.ChargeListParams{Customer: stripe.String(customerID)}
	params.ListParams = listParams(ctx, opts)

	it := charge.List(params)
	var out []*stripe.Charge
	for it.Next() {
		out = append(out, it.Charge())
	}
	if err := it.Err(); err != nil {
		return nil, false, err
	}
	return out, it.Meta().HasMore, nil
}

func (stripeGateway) ListInvoices(ctx context.Context, customerID string, opts ListOptions) ([]*stripe.Invoice, bool, error) {
	params := &stripe.InvoiceListParams{Customer: stripe.String(customerID)}
	params.ListParams = listParams(ctx, opts)

	it := invoice.List(params)
	var out []*stripe.Invoice
	for it.Next() {
		out = append(out, it.Invoice())
	}
	if err := it.Err(); err != nil {
		return nil, false, err
	}
	return out, it.Meta().HasMore, nil
}

func (stripeGateway) ListRefunds(ctx context.Context, opts ListOptions) ([]*stripe.Refund, bool, error) {
	params := &stripe.RefundListParams{}
	params.ListParams = listParams(ctx, opts)
	params.AddExpand("data.charge")

	it := refund.List(params)
	var out []*stripe.Refund
	for it.Next() {
		out = append(out, it.Refund())
	}
	if err := it.Err(); err != nil {
		return nil, false, err
	}
	return out, it.Meta().HasMore, nil
}

func (stripeGateway) ListOpenInvoices(ctx context.Context, subscriptionID string, limit int64) ([]*stripe.Invoice, error) {
	params := &stripe.InvoiceListParams{
		Subscription: stripe.String(subscriptionID),
		Status:       stripe.String(string(stripe.InvoiceStatusOpen)),
	}
	params.ListParams = listParams(ctx, ListOptions{Limit: limit})

	it := invoice.List(params)
	var out []*stripe.Invoice
	for it.Next() {
		out = append(out, it.Invoice())
	}
	if err := it.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func (stripeGateway) GetSubscription(ctx context.Context, id string) (*stripe.Subscription, error) {
	params := &stripe.SubscriptionParams{}
	params.Context = ctx
	return sub.Get(id, params)
}

func (stripeGateway) GetCustomer(ctx context.Context, id string) (*stripe.Customer, error) {
	params := &stripe.CustomerParams{}
	params.Context = ctx
	return customer.Get(id, params)
}

func (stripeGateway) PayInvoice(ctx context.Context, invoiceID, paymentMethodID string) (*stripe.Invoice, error) {
	params := &stripe.InvoicePayParams{PaymentMethod: stripe.String(paymentMethodID)}
	params.Context = ctx
	return invoice.Pay(invoiceID, params)
}

func (stripeGateway) ConfirmPaymentIntent(ctx context.Context, paymentIntentID, paymentMethodID string) (*stripe.PaymentIntent, error) {
	params := &stripe.PaymentIntentConfirmParams{PaymentMethod: stripe.String(paymentMethodID)}
	params.Context = ctx
	return paymentintent.Confirm(paymentIntentID, params)
}

func (stripeGateway) CreateRefund(ctx context.Context, in RefundInput) (*stripe.Refund, error) {
	params := &stripe.RefundParams{Charge: stripe.String(in.ChargeID)}
	params.Context = ctx
	if in.Amount > 0 {
		params.Amount = stripe.Int64(in.Amount)
	}
	if in.Reason != "" {
		params.Reason = stripe.String(in.Reason)
	}
	for k, v := range in.Metadata {
		params.AddMetadata(k, v)
	}
	if in.IdempotencyKey != "" {
		params.SetIdempotencyKey(in.IdempotencyKey)
	}
	return refund.New(params)
}
