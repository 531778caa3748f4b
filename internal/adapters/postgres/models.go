package postgres

import (
	"time"

	"github.com/google/uuid"
)

type subscriberModel struct {
	SubscriberID   uuid.UUID  `gorm:"column:subscriber_id;type:uuid;default:gen_random_uuid();primaryKey"`
	Email          string     `gorm:"column:email"`
	PasswordHash   string     `gorm:"column:password_hash"`
	FirstName      string     `gorm:"column:first_name"`
	LastName       string     `gorm:"column:last_name"`
	SubscriptionID *string    `gorm:"column:subscription_id"`
	Plan           *string    `gorm:"column:plan"`
	Status         string     `gorm:"column:status"`
	SubscribedAt   *time.Time `gorm:"column:subscribed_at"`
	LastEventAt    *time.Time `gorm:"column:last_event_at"`
	Version        int64      `gorm:"column:version"`
	CreatedAt      time.Time  `gorm:"column:created_at"`
	UpdatedAt      time.Time  `gorm:"column:updated_at"`
}

func (subscriberModel) TableName() string { return "subscribers" }

type subscriptionEventModel struct {
	EventID        string    `gorm:"column:event_id;primaryKey"`
	EventType      string    `gorm:"column:event_type"`
	Email          string    `gorm:"column:email"`
	SubscriptionID *string   `gorm:"column:subscription_id"`
	OccurredAt     time.Time `gorm:"column:occurred_at"`
	Outcome        string    `gorm:"column:outcome"`
	RecordedAt     time.Time `gorm:"column:recorded_at"`
}

func (subscriptionEventModel) TableName() string { return "subscription_events" }
