package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/orbitacademy/subscription-service/internal/domain"
	"github.com/orbitacademy/subscription-service/internal/ports"
)

// Repositories backs the memory runtime mode and the test suites. The
// implementations honor the same contracts as the Postgres adapter, including
// compare-and-set semantics, so engine behavior is identical across modes.
type Repositories struct {
	Subscribers *SubscriberRepository
	EventLog    *EventLogRepository
}

func NewRepositories() *Repositories {
	return &Repositories{
		Subscribers: &SubscriberRepository{rows: map[uuid.UUID]domain.Subscriber{}},
		EventLog:    &EventLogRepository{rows: map[string]EventRecord{}},
	}
}

type SubscriberRepository struct {
	mu   sync.Mutex
	rows map[uuid.UUID]domain.Subscriber
}

func (r *SubscriberRepository) GetByEmail(_ context.Context, email string) (domain.Subscriber, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, sub := range r.rows {
		if sub.Email == email {
			return sub, nil
		}
	}
	return domain.Subscriber{}, domain.ErrNotFound
}

func (r *SubscriberRepository) GetBySubscriptionID(_ context.Context, subscriptionID string) (domain.Subscriber, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, sub := range r.rows {
		if sub.SubscriptionID != nil && *sub.SubscriptionID == subscriptionID {
			return sub, nil
		}
	}
	return domain.Subscriber{}, domain.ErrNotFound
}

func (r *SubscriberRepository) UpsertPending(_ context.Context, params ports.UpsertPendingParams) (domain.Subscriber, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, sub := range r.rows {
		if sub.Email == params.Email {
			return sub, nil
		}
	}
	sub := domain.Subscriber{
		SubscriberID: uuid.New(),
		Email:        params.Email,
		PasswordHash: params.PasswordHash,
		FirstName:    params.FirstName,
		LastName:     params.LastName,
		Status:       domain.StatusNone,
		Version:      1,
		CreatedAt:    params.Now,
		UpdatedAt:    params.Now,
	}
	r.rows[sub.SubscriberID] = sub
	return sub, nil
}

func (r *SubscriberRepository) Create(_ context.Context, sub domain.Subscriber) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.rows {
		if existing.Email == sub.Email {
			return domain.ErrConflict
		}
	}
	if _, ok := r.rows[sub.SubscriberID]; ok {
		return domain.ErrConflict
	}
	r.rows[sub.SubscriberID] = sub
	return nil
}

func (r *SubscriberRepository) CompareAndSet(_ context.Context, subscriberID uuid.UUID, expectedVersion int64, change ports.SubscriberChange) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	sub, ok := r.rows[subscriberID]
	if !ok || sub.Version != expectedVersion {
		return domain.ErrVersionConflict
	}
	sub.Status = change.Status
	sub.SubscriptionID = change.SubscriptionID
	sub.Plan = change.Plan
	sub.SubscribedAt = change.SubscribedAt
	sub.LastEventAt = change.LastEventAt
	sub.UpdatedAt = change.UpdatedAt
	sub.Version = expectedVersion + 1
	r.rows[subscriberID] = sub
	return nil
}

type EventRecord struct {
	Event      domain.CanonicalEvent
	Outcome    string
	RecordedAt time.Time
}

type EventLogRepository struct {
	mu   sync.Mutex
	rows map[string]EventRecord
}

func (r *EventLogRepository) Record(_ context.Context, ev domain.CanonicalEvent, outcome string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.rows[ev.EventID]; ok {
		return nil
	}
	r.rows[ev.EventID] = EventRecord{Event: ev, Outcome: outcome, RecordedAt: at}
	return nil
}

// Outcomes returns recorded outcomes keyed by event id, for assertions.
func (r *EventLogRepository) Outcomes() map[string]string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string]string, len(r.rows))
	for id, rec := range r.rows {
		out[id] = rec.Outcome
	}
	return out
}
