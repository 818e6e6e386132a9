package repository

import (
	"github.com/JonasWeigert/PawTrack/app/models"
	"gorm.io/gorm"
)

// UserRepository defines the interface for user-related database operations
type UserRepository interface {
	Create(user *models.User) error
	GetByID(id uint) (*models.User, error)
	GetByEmail(email string) (*models.User, error)
	GetByAPIKeyHash(hash string) (*models.User, error)
	Update(user *models.User) error
}

// SubscriptionRepository defines the interface for subscription-related
// database operations
type SubscriptionRepository interface {
	Create(sub *models.Subscription) error
	GetByID(id uint) (*models.Subscription, error)
	GetByStripeSubscriptionID(stripeSubID string) (*models.Subscription, error)
	ListByUserID(userID uint) ([]models.Subscription, error)
	UpdateStatus(id uint, status string) error
	TouchUpdatedAt(id uint) error
}

// Repositories struct holds all repository instances
type Repositories struct {
	User         UserRepository
	Subscription SubscriptionRepository
}

// NewRepositories creates a new instance of all repositories
func NewRepositories(db *gorm.DB) *Repositories {
	return &Repositories{
		User:         NewUserRepository(db),
		Subscription: NewSubscriptionRepository(db),
	}
}
