package postgres

import (
	"context"
	"time"

	"github.com/orbitacademy/subscription-service/internal/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type eventLogRepository struct {
	db *gorm.DB
}

// Record inserts the audit row for a provider event id. Redeliveries hit the
// primary key and are dropped; first-writer-wins is all the audit trail needs.
func (r *eventLogRepository) Record(ctx context.Context, ev domain.CanonicalEvent, outcome string, at time.Time) error {
	rec := subscriptionEventModel{
		EventID:        ev.EventID,
		EventType:      string(ev.Type),
		Email:          ev.Email,
		SubscriptionID: ev.SubscriptionID,
		OccurredAt:     ev.OccurredAt,
		Outcome:        outcome,
		RecordedAt:     at,
	}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&rec).Error
}
