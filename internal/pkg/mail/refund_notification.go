package mail

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// RefundNotification carries the customer-facing details of a processed
// refund. Amounts are preformatted by the caller.
type RefundNotification struct {
	CustomerName  string
	AmountDisplay string
	Currency      string
	RefundID      string
	Status        string
	Reason        string
	ReceiptNumber string
}

// Mailer sends transactional billing emails over SMTP.
type Mailer struct{}

// NewMailer creates the SMTP-backed mailer.
func NewMailer() *Mailer {
	return &Mailer{}
}

// SendRefundNotification emails the customer that a refund was issued and
// returns a message id for audit purposes.
func (m *Mailer) SendRefundNotification(ctx context.Context, to string, n RefundNotification) (string, error) {
	_ = ctx
	subject := fmt.Sprintf("Your PawTrack refund of %s %s", n.AmountDisplay, strings.ToUpper(n.Currency))
	if err := SendMail(to, subject, buildRefundBody(n)); err != nil {
		return "", err
	}
	return uuid.NewString(), nil
}

func buildRefundBody(n RefundNotification) string {
	name := n.CustomerName
	if name == "" {
		name = "there"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "<p>Hi %s,</p>", name)
	fmt.Fprintf(&b, "<p>We have issued a refund of <strong>%s %s</strong> to your original payment method.</p>",
		n.AmountDisplay, strings.ToUpper(n.Currency))
	b.WriteString("<ul>")
	fmt.Fprintf(&b, "<li>Refund reference: %s</li>", n.RefundID)
	if n.ReceiptNumber != "" {
		fmt.Fprintf(&b, "<li>Receipt number: %s</li>", n.ReceiptNumber)
	}
	if n.Reason != "" {
		fmt.Fprintf(&b, "<li>Reason: %s</li>", n.Reason)
	}
	fmt.Fprintf(&b, "<li>Status: %s</li>", n.Status)
	b.WriteString("</ul>")
	if n.Status != "succeeded" {
		b.WriteString("<p>Depending on your bank, it can take 5-10 business days for the refund to appear on your statement.</p>")
	}
	b.WriteString("<p>Your PawTrack team</p>")
	return b.String()
}
