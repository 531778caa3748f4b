package postgres

import (
	"errors"

	"github.com/orbitacademy/subscription-service/internal/domain"
	"gorm.io/gorm"
)

func toDomainSubscriber(row subscriberModel) domain.Subscriber {
	return domain.Subscriber{
		SubscriberID:   row.SubscriberID,
		Email:          row.Email,
		PasswordHash:   row.PasswordHash,
		FirstName:      row.FirstName,
		LastName:       row.LastName,
		SubscriptionID: row.SubscriptionID,
		Plan:           row.Plan,
		Status:         domain.SubscriptionStatus(row.Status),
		SubscribedAt:   row.SubscribedAt,
		LastEventAt:    row.LastEventAt,
		Version:        row.Version,
		CreatedAt:      row.CreatedAt,
		UpdatedAt:      row.UpdatedAt,
	}
}

func isUniqueViolation(err error) bool {
	return errors.Is(err, gorm.ErrDuplicatedKey)
}
