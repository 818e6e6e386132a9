package payments

import (
	"context"
	"errors"
	"fmt"

	"github.com/JonasWeigert/PawTrack/app/models"
	"github.com/JonasWeigert/PawTrack/internal/pkg/mail"
	stripe "github.com/stripe/stripe-go"
	"gorm.io/gorm"
)

// fakeGateway is an in-memory Gateway capturing calls and returning canned
// gateway state.
type fakeGateway struct {
	intents      []*stripe.PaymentIntent
	charges      []*stripe.Charge
	invoices     []*stripe.Invoice
	refunds      []*stripe.Refund
	openInvoices []*stripe.Invoice

	moreIntents  bool
	moreCharges  bool
	moreInvoices bool
	moreRefunds  bool

	intentsErr  error
	chargesErr  error
	invoicesErr error
	refundsErr  error

	subscription       *stripe.Subscription
	getSubscriptionErr error
	customer           *stripe.Customer
	customerErr        error

	payInvoiceResult *stripe.Invoice
	payInvoiceErr    error
	confirmResult    *stripe.PaymentIntent
	confirmErr       error
	refundResult     *stripe.Refund
	refundErr        error

	lastRefundInput RefundInput
	lastListRefunds ListOptions
	calls           int
}

func (g *fakeGateway) ListPaymentIntents(ctx context.Context, customerID string, opts ListOptions) ([]*stripe.PaymentIntent, bool, error) {
	g.calls++
	if g.intentsErr != nil {
		return nil, false, g.intentsErr
	}
	return g.intents, g.moreIntents, nil
}

func (g *fakeGateway) ListCharges(ctx context.Context, customerID string, opts ListOptions) ([]*stripe.Charge, bool, error) {
	g.calls++
	if g.chargesErr != nil {
		return nil, false, g.chargesErr
	}
	return g.charges, g.moreCharges, nil
}

func (g *fakeGateway) ListInvoices(ctx context.Context, customerID string, opts ListOptions) ([]*stripe.Invoice, bool, error) {
	g.calls++
	if g.invoicesErr != nil {
		return nil, false, g.invoicesErr
	}
	return g.invoices, g.moreInvoices, nil
}

func (g *fakeGateway) ListRefunds(ctx context.Context, opts ListOptions) ([]*stripe.Refund, bool, error) {
	g.calls++
	g.lastListRefunds = opts
	if g.refundsErr != nil {
		return nil, false, g.refundsErr
	}
	return g.refunds, g.moreRefunds, nil
}

func (g *fakeGateway) ListOpenInvoices(ctx context.Context, subscriptionID string, limit int64) ([]*stripe.Invoice, error) {
	g.calls++
	return g.openInvoices, nil
}

func (g *fakeGateway) GetSubscription(ctx context.Context, id string) (*stripe.Subscription, error) {
	g.calls++
	if g.getSubscriptionErr != nil {
		return nil, g.getSubscriptionErr
	}
	if g.subscription != nil {
		return g.subscription, nil
	}
	return &stripe.Subscription{ID: id}, nil
}

func (g *fakeGateway) GetCustomer(ctx context.Context, id string) (*stripe.Customer, error) {
	g.calls++
	if g.customerErr != nil {
		return nil, g.customerErr
	}
	if g.customer != nil {
		return g.customer, nil
	}
	return &stripe.Customer{ID: id}, nil
}

func (g *fakeGateway) PayInvoice(ctx context.Context, invoiceID, paymentMethodID string) (*stripe.Invoice, error) {
	g.calls++
	if g.payInvoiceErr != nil {
		return nil, g.payInvoiceErr
	}
	return g.payInvoiceResult, nil
}

func (g *fakeGateway) ConfirmPaymentIntent(ctx context.Context, paymentIntentID, paymentMethodID string) (*stripe.PaymentIntent, error) {
	g.calls++
	if g.confirmErr != nil {
		return nil, g.confirmErr
	}
	return g.confirmResult, nil
}

func (g *fakeGateway) CreateRefund(ctx context.Context, in RefundInput) (*stripe.Refund, error) {
	g.calls++
	g.lastRefundInput = in
	if g.refundErr != nil {
		return nil, g.refundErr
	}
	return g.refundResult, nil
}

// fakeSubscriptionRepo keeps subscriptions in a map and records writes.
type fakeSubscriptionRepo struct {
	subs          map[uint]*models.Subscription
	statusUpdates []string
	touched       int
}

func (r *fakeSubscriptionRepo) Create(sub *models.Subscription) error {
	r.subs[sub.ID] = sub
	return nil
}

func (r *fakeSubscriptionRepo) GetByID(id uint) (*models.Subscription, error) {
	if sub, ok := r.subs[id]; ok {
		return sub, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *fakeSubscriptionRepo) GetByStripeSubscriptionID(stripeSubID string) (*models.Subscription, error) {
	for _, sub := range r.subs {
		if sub.StripeSubscriptionID == stripeSubID {
			return sub, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *fakeSubscriptionRepo) ListByUserID(userID uint) ([]models.Subscription, error) {
	var out []models.Subscription
	for _, sub := range r.subs {
		if sub.UserID == userID {
			out = append(out, *sub)
		}
	}
	return out, nil
}

func (r *fakeSubscriptionRepo) UpdateStatus(id uint, status string) error {
	r.statusUpdates = append(r.statusUpdates, status)
	if sub, ok := r.subs[id]; ok {
		sub.Status = status
	}
	return nil
}

func (r *fakeSubscriptionRepo) TouchUpdatedAt(id uint) error {
	r.touched++
	return nil
}

// fakeUserRepo resolves refund recipients.
type fakeUserRepo struct {
	users map[uint]*models.User
}

func (r *fakeUserRepo) Create(user *models.User) error { return nil }
func (r *fakeUserRepo) Update(user *models.User) error { return nil }

func (r *fakeUserRepo) GetByEmail(string) (*models.User, error) {
	return nil, gorm.ErrRecordNotFound
}
func (r *fakeUserRepo) GetByAPIKeyHash(string) (*models.User, error) {
	return nil, gorm.ErrRecordNotFound
}

func (r *fakeUserRepo) GetByID(id uint) (*models.User, error) {
	if u, ok := r.users[id]; ok {
		return u, nil
	}
	return nil, gorm.ErrRecordNotFound
}

// fakeSink records audit entries in order.
type recordedEntry struct {
	severity string
	message  string
	meta     map[string]any
}

type fakeSink struct {
	entries []recordedEntry
}

func (s *fakeSink) Record(ctx context.Context, severity, message string, metadata map[string]any) {
	s.entries = append(s.entries, recordedEntry{severity: severity, message: message, meta: metadata})
}

func (s *fakeSink) bySeverity(severity string) []recordedEntry {
	var out []recordedEntry
	for _, e := range s.entries {
		if e.severity == severity {
			out = append(out, e)
		}
	}
	return out
}

// fakeMailer optionally fails every send.
type fakeMailer struct {
	fail  bool
	sent  []mail.RefundNotification
	to    []string
	msgID string
}

func (m *fakeMailer) SendRefundNotification(ctx context.Context, to string, n mail.RefundNotification) (string, error) {
	if m.fail {
		return "", errors.New("smtp connection refused")
	}
	m.sent = append(m.sent, n)
	m.to = append(m.to, to)
	if m.msgID != "" {
		return m.msgID, nil
	}
	return "msg-1", nil
}

// fakeLocker counts acquisitions and can simulate a busy lock.
type fakeLocker struct {
	busy     bool
	acquired []string
	released int
}

func (l *fakeLocker) Acquire(ctx context.Context, key string) (func(), error) {
	if l.busy {
		return nil, fmt.Errorf("lock %s is held", key)
	}
	l.acquired = append(l.acquired, key)
	return func() { l.released++ }, nil
}

const (
	testAdminID    = uint(7)
	testCustomerID = "cus_123"
)

func adminActor() Actor {
	return Actor{ID: testAdminID, IsAdmin: true}
}

func testService(gw *fakeGateway, subs *fakeSubscriptionRepo, users *fakeUserRepo, sink *fakeSink, mailer *fakeMailer, locker LockManager) *Service {
	if subs == nil {
		subs = &fakeSubscriptionRepo{subs: map[uint]*models.Subscription{}}
	}
	if users == nil {
		users = &fakeUserRepo{users: map[uint]*models.User{}}
	}
	return NewService(subs, users, gw, sink, mailer, locker)
}
