package payments

import (
	"context"

	stripe "github.com/stripe/stripe-go"
)

// ListOptions bounds a gateway list call. StartingAfter is the gateway's
// opaque pagination cursor and is forwarded verbatim.
type ListOptions struct {
	Limit         int64
	StartingAfter string
}

// RefundInput describes one refund to execute against the gateway.
type RefundInput struct {
	ChargeID       string
	Amount         int64
	Reason         string
	Metadata       map[string]string
	IdempotencyKey string
}

// Gateway abstracts the payment gateway operations needed by the billing
// core. The SDK-backed implementation lives in this package; tests swap in
// fakes.
type Gateway interface {
	// ListPaymentIntents returns the customer's most recent payment intents,
	// expanded with their associated charges, plus a has-more flag.
	ListPaymentIntents(ctx context.Context, customerID string, opts ListOptions) ([]*stripe.PaymentIntent, bool, error)
	ListCharges(ctx context.Context, customerID string, opts ListOptions) ([]*stripe.Charge, bool, error)
	ListInvoices(ctx context.Context, customerID string, opts ListOptions) ([]*stripe.Invoice, bool, error)
	// ListRefunds is not customer-scoped at the gateway; callers filter by
	// charge ownership.
	ListRefunds(ctx context.Context, opts ListOptions) ([]*stripe.Refund, bool, error)
	// ListOpenInvoices returns the newest open invoices for a gateway
	// subscription.
	ListOpenInvoices(ctx context.Context, subscriptionID string, limit int64) ([]*stripe.Invoice, error)
	GetSubscription(ctx context.Context, id string) (*stripe.Subscription, error)
	GetCustomer(ctx context.Context, id string) (*stripe.Customer, error)
	PayInvoice(ctx context.Context, invoiceID, paymentMethodID string) (*stripe.Invoice, error)
	ConfirmPaymentIntent(ctx context.Context, paymentIntentID, paymentMethodID string) (*stripe.PaymentIntent, error)
	CreateRefund(ctx context.Context, in RefundInput) (*stripe.Refund, error)
}
