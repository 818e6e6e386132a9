package repository

import (
	"time"

	"github.com/JonasWeigert/PawTrack/app/models"
	"gorm.io/gorm"
)

// subscriptionRepository implements the SubscriptionRepository interface
type subscriptionRepository struct {
	db *gorm.DB
}

// NewSubscriptionRepository creates a new subscription repository instance
func NewSubscriptionRepository(db *gorm.DB) SubscriptionRepository {
	return &subscriptionRepository{db: db}
}

// Create creates a new subscription record
func (r *subscriptionRepository) Create(sub *models.Subscription) error {
	return r.db.Create(sub).Error
}

// GetByID retrieves a subscription by its local ID
func (r *subscriptionRepository) GetByID(id uint) (*models.Subscription, error) {
	var sub models.Subscription
	err := r.db.Preload("User").First(&sub, id).Error
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

// GetByStripeSubscriptionID retrieves a subscription by its gateway id
func (r *subscriptionRepository) GetByStripeSubscriptionID(stripeSubID string) (*models.Subscription, error) {
	var sub models.Subscription
	err := r.db.Preload("User").Where("stripe_subscription_id = ?", stripeSubID).First(&sub).Error
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

// ListByUserID retrieves all subscriptions owned by a user
func (r *subscriptionRepository) ListByUserID(userID uint) ([]models.Subscription, error) {
	var subs []models.Subscription
	err := r.db.Where("user_id = ?", userID).Find(&subs).Error
	return subs, err
}

// UpdateStatus sets the locally mirrored billing status. Writing the same
// status twice is harmless, which keeps the gateway-then-store sequence
// safe to repeat after a crash.
func (r *subscriptionRepository) UpdateStatus(id uint, status string) error {
	return r.db.Model(&models.Subscription{}).
		Where("id = ?", id).
		Updates(map[string]any{"status": status, "updated_at": time.Now()}).Error
}

// TouchUpdatedAt bumps the updated_at timestamp without changing status
func (r *subscriptionRepository) TouchUpdatedAt(id uint) error {
	return r.db.Model(&models.Subscription{}).
		Where("id = ?", id).
		Update("updated_at", time.Now()).Error
}
