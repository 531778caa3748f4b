package postgres

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/orbitacademy/subscription-service/internal/domain"
	"github.com/orbitacademy/subscription-service/internal/ports"
	"gorm.io/gorm"
)

type subscriberRepository struct {
	db *gorm.DB
}

func (r *subscriberRepository) GetByEmail(ctx context.Context, email string) (domain.Subscriber, error) {
	var rec subscriberModel
	if err := r.db.WithContext(ctx).Where("email = ?", email).Take(&rec).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.Subscriber{}, domain.ErrNotFound
		}
		return domain.Subscriber{}, err
	}
	return toDomainSubscriber(rec), nil
}

func (r *subscriberRepository) GetBySubscriptionID(ctx context.Context, subscriptionID string) (domain.Subscriber, error) {
	var rec subscriberModel
	if err := r.db.WithContext(ctx).Where("subscription_id = ?", subscriptionID).Take(&rec).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.Subscriber{}, domain.ErrNotFound
		}
		return domain.Subscriber{}, err
	}
	return toDomainSubscriber(rec), nil
}

func (r *subscriberRepository) UpsertPending(ctx context.Context, params ports.UpsertPendingParams) (domain.Subscriber, error) {
	rec := subscriberModel{
		Email:        params.Email,
		PasswordHash: params.PasswordHash,
		FirstName:    params.FirstName,
		LastName:     params.LastName,
		Status:       string(domain.StatusNone),
		Version:      1,
		CreatedAt:    params.Now,
		UpdatedAt:    params.Now,
	}
	if err := r.db.WithContext(ctx).Create(&rec).Error; err != nil {
		if !isUniqueViolation(err) {
			return domain.Subscriber{}, err
		}
		// Lost the insert race or the account already existed; either way the
		// stored row wins untouched.
		return r.GetByEmail(ctx, params.Email)
	}
	return toDomainSubscriber(rec), nil
}

func (r *subscriberRepository) Create(ctx context.Context, sub domain.Subscriber) error {
	rec := subscriberModel{
		SubscriberID:   sub.SubscriberID,
		Email:          sub.Email,
		PasswordHash:   sub.PasswordHash,
		FirstName:      sub.FirstName,
		LastName:       sub.LastName,
		SubscriptionID: sub.SubscriptionID,
		Plan:           sub.Plan,
		Status:         string(sub.Status),
		SubscribedAt:   sub.SubscribedAt,
		LastEventAt:    sub.LastEventAt,
		Version:        sub.Version,
		CreatedAt:      sub.CreatedAt,
		UpdatedAt:      sub.UpdatedAt,
	}
	if err := r.db.WithContext(ctx).Create(&rec).Error; err != nil {
		if isUniqueViolation(err) {
			return domain.ErrConflict
		}
		return err
	}
	return nil
}

// CompareAndSet is a single conditional UPDATE keyed on the version the
// caller read. Zero rows affected means another writer got there first.
func (r *subscriberRepository) CompareAndSet(ctx context.Context, subscriberID uuid.UUID, expectedVersion int64, change ports.SubscriberChange) error {
	res := r.db.WithContext(ctx).
		Model(&subscriberModel{}).
		Where("subscriber_id = ? AND version = ?", subscriberID, expectedVersion).
		Updates(map[string]any{
			"status":          string(change.Status),
			"subscription_id": change.SubscriptionID,
			"plan":            change.Plan,
			"subscribed_at":   change.SubscribedAt,
			"last_event_at":   change.LastEventAt,
			"version":         expectedVersion + 1,
			"updated_at":      change.UpdatedAt,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domain.ErrVersionConflict
	}
	return nil
}
