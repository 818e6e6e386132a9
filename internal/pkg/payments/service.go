package payments

import (
	"context"
	"fmt"

	"github.com/JonasWeigert/PawTrack/app/repository"
	"github.com/JonasWeigert/PawTrack/internal/pkg/audit"
	"github.com/JonasWeigert/PawTrack/internal/pkg/mail"
)

// NotificationSender delivers transactional customer emails. Failures must
// be catchable and never roll back the financial operation they follow.
type NotificationSender interface {
	SendRefundNotification(ctx context.Context, to string, n mail.RefundNotification) (string, error)
}

// LockManager hands out per-key mutual exclusion around read-decide-write
// sequences. A nil LockManager disables locking.
type LockManager interface {
	Acquire(ctx context.Context, key string) (release func(), err error)
}

// Service implements the subscription payment lifecycle reconciliation
// core: payment history aggregation, payment retry orchestration, and
// refund processing.
type Service struct {
	subs   repository.SubscriptionRepository
	users  repository.UserRepository
	gw     Gateway
	audit  audit.Sink
	mailer NotificationSender
	locks  LockManager
}

// NewService wires the billing core from its collaborators.
func NewService(
	subs repository.SubscriptionRepository,
	users repository.UserRepository,
	gw Gateway,
	sink audit.Sink,
	mailer NotificationSender,
	locks LockManager,
) *Service {
	return &Service{
		subs:   subs,
		users:  users,
		gw:     gw,
		audit:  sink,
		mailer: mailer,
		locks:  locks,
	}
}

func subscriptionLockKey(id uint) string {
	return fmt.Sprintf("billing:sub:%d", id)
}

// lockSubscription guards the read-decide-write sequence of a mutating
// billing action. Two concurrent retries or refunds against the same
// subscription must not both proceed past the state read.
func (s *Service) lockSubscription(ctx context.Context, id uint) (func(), error) {
	if s.locks == nil {
		return func() {}, nil
	}
	release, err := s.locks.Acquire(ctx, subscriptionLockKey(id))
	if err != nil {
		return nil, fmt.Errorf("%w: another billing operation is already running for this subscription", ErrBadRequest)
	}
	return release, nil
}
