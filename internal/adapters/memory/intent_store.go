package memory

import (
	"context"
	"sync"
	"time"

	"github.com/orbitacademy/subscription-service/internal/domain"
)

// IntentStore is the in-process stand-in for the Redis intent store.
type IntentStore struct {
	mu    sync.Mutex
	rows  map[string]domain.CheckoutIntent
	nowFn func() time.Time
}

func NewIntentStore() *IntentStore {
	return &IntentStore{
		rows:  map[string]domain.CheckoutIntent{},
		nowFn: func() time.Time { return time.Now().UTC() },
	}
}

func intentKey(email, plan string) string {
	return email + ":" + plan
}

func (s *IntentStore) PutIfAbsent(_ context.Context, intent domain.CheckoutIntent, _ time.Duration) (domain.CheckoutIntent, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := intentKey(intent.Email, intent.Plan)
	if existing, ok := s.rows[key]; ok && existing.Live(s.nowFn()) {
		return existing, false, nil
	}
	s.rows[key] = intent
	return intent, true, nil
}

func (s *IntentStore) GetLive(_ context.Context, email, plan string) (*domain.CheckoutIntent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.rows[intentKey(email, plan)]
	if !ok || !existing.Live(s.nowFn()) {
		return nil, nil
	}
	cp := existing
	return &cp, nil
}
