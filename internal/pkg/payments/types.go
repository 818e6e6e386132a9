package payments

import (
	"fmt"
	"time"
)

// EventKind identifies which gateway object a PaymentEvent was built from.
type EventKind string

const (
	EventKindPaymentIntent EventKind = "payment_intent"
	EventKindCharge        EventKind = "charge"
	EventKindInvoice       EventKind = "invoice"
	EventKindRefund        EventKind = "refund"
)

// PaymentEvent is a normalized view of one gateway-side financial event.
// Events are reconstructed on every aggregation call and never persisted.
// Refund amounts are negative; every other kind is non-negative.
type PaymentEvent struct {
	ID               string    `json:"id"`
	Kind             EventKind `json:"kind"`
	Amount           int64     `json:"amount"`
	Currency         string    `json:"currency"`
	Status           string    `json:"status"`
	Description      string    `json:"description,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
	ReceiptURL       string    `json:"receipt_url,omitempty"`
	FailureMessage   string    `json:"failure_message,omitempty"`
	FailureCode      string    `json:"failure_code,omitempty"`
	ChargeID         string    `json:"charge_id,omitempty"`
	PaymentIntentID  string    `json:"payment_intent_id,omitempty"`
	InvoiceNumber    string    `json:"invoice_number,omitempty"`
	HostedInvoiceURL string    `json:"hosted_invoice_url,omitempty"`
	InvoicePDF       string    `json:"invoice_pdf,omitempty"`
	ReceiptNumber    string    `json:"receipt_number,omitempty"`
}

// HistorySummary aggregates the returned page of events. The currency is
// taken from the first event and is best-effort, not authoritative.
type HistorySummary struct {
	SucceededCount int    `json:"succeeded_count"`
	SucceededTotal int64  `json:"succeeded_total"`
	RefundCount    int    `json:"refund_count"`
	RefundTotal    int64  `json:"refund_total"`
	FailedCount    int    `json:"failed_count"`
	Currency       string `json:"currency,omitempty"`
}

// CustomerInfo is the best-effort gateway customer profile attached to a
// history response.
type CustomerInfo struct {
	ID                   string `json:"id"`
	Email                string `json:"email,omitempty"`
	Name                 string `json:"name,omitempty"`
	DefaultPaymentMethod string `json:"default_payment_method,omitempty"`
}

// Pagination carries the has-more signal and the cursor for the next page.
type Pagination struct {
	HasMore    bool   `json:"has_more"`
	Limit      int    `json:"limit"`
	NextCursor string `json:"next_cursor,omitempty"`
}

// Actor identifies the administrator performing a billing action.
type Actor struct {
	ID      uint
	IsAdmin bool
}

func (a Actor) authorize() error {
	if a.ID == 0 {
		return fmt.Errorf("%w: missing actor identity", ErrUnauthorized)
	}
	if !a.IsAdmin {
		return fmt.Errorf("%w: admin capability required", ErrForbidden)
	}
	return nil
}

// HistoryRequest asks for the unified payment timeline of one customer,
// addressed either by local subscription id or by gateway customer id.
type HistoryRequest struct {
	Actor          Actor
	SubscriptionID uint
	CustomerID     string
	Limit          int
	StartingAfter  string
}

// HistoryResult is the aggregated, deduplicated, time-descending ledger page.
type HistoryResult struct {
	PaymentHistory []PaymentEvent `json:"payment_history"`
	Summary        HistorySummary `json:"summary"`
	Pagination     Pagination     `json:"pagination"`
	Customer       *CustomerInfo  `json:"customer,omitempty"`
}

// RetryRequest asks to drive one stalled subscription back to active.
type RetryRequest struct {
	Actor          Actor
	SubscriptionID uint
}

// Retry outcome type and status values. A declined payment is an expected
// business outcome encoded here, never an error.
const (
	RetryTypeInvoicePayment  = "invoice_payment"
	RetryTypeIntentConfirm   = "payment_intent_confirmation"
	RetryStatusPaid          = "paid"
	RetryStatusSucceeded     = "succeeded"
	RetryStatusPaymentFailed = "payment_failed"
)

// RetryOutcome reports what the gateway did with the remedial action.
type RetryOutcome struct {
	Type            string `json:"type"`
	Status          string `json:"status"`
	AmountPaid      int64  `json:"amount_paid,omitempty"`
	InvoiceID       string `json:"invoice_id,omitempty"`
	PaymentIntentID string `json:"payment_intent_id,omitempty"`
	Error           string `json:"error,omitempty"`
	DeclineCode     string `json:"decline_code,omitempty"`
}

// Succeeded reports whether the remedial action settled the payment.
func (o RetryOutcome) Succeeded() bool {
	return o.Status == RetryStatusPaid || o.Status == RetryStatusSucceeded
}

// RetryResult is the full response of one retry invocation.
type RetryResult struct {
	SubscriptionID     uint         `json:"subscription_id"`
	SubscriptionStatus string       `json:"subscription_status"`
	Result             RetryOutcome `json:"result"`
	NextSteps          string       `json:"next_steps"`
}

// RefundRequest asks to refund the customer's most recent unrefunded
// successful charge. Amount is in major currency units; nil means refund the
// full remaining refundable amount.
type RefundRequest struct {
	Actor          Actor
	SubscriptionID uint
	Amount         *float64
	Reason         string
	NotifyCustomer bool
}

// RefundDetails mirrors the gateway's refund record, with the amount
// converted back to major units for display.
type RefundDetails struct {
	ID              string  `json:"id"`
	ChargeID        string  `json:"charge_id"`
	PaymentIntentID string  `json:"payment_intent_id,omitempty"`
	Amount          float64 `json:"amount"`
	Currency        string  `json:"currency"`
	Status          string  `json:"status"`
	Reason          string  `json:"reason,omitempty"`
	ReceiptNumber   string  `json:"receipt_number,omitempty"`
}

// RefundResult is the full response of one refund invocation.
type RefundResult struct {
	Success   bool          `json:"success"`
	Refund    RefundDetails `json:"refund"`
	EmailSent bool          `json:"email_sent"`
	NextSteps string        `json:"next_steps"`
}
