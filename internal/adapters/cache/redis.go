package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/orbitacademy/subscription-service/internal/domain"
	"github.com/redis/go-redis/v9"
)

func Connect(_ context.Context, redisURL string) (*redis.Client, error) {
	if strings.HasPrefix(redisURL, "redis://") {
		opt, parseErr := redis.ParseURL(redisURL)
		if parseErr != nil {
			return nil, fmt.Errorf("parse redis url: %w", parseErr)
		}
		return redis.NewClient(opt), nil
	}
	return redis.NewClient(&redis.Options{Addr: redisURL}), nil
}

// RedisIntentStore keeps live checkout intents under
// billing:intent:{email}:{plan}. SETNX + TTL gives the atomic claim that
// enforces at most one live intent per key without any application lock.
type RedisIntentStore struct {
	client *redis.Client
}

func NewRedisIntentStore(client *redis.Client) *RedisIntentStore {
	return &RedisIntentStore{client: client}
}

func intentKey(email, plan string) string {
	return "billing:intent:" + email + ":" + plan
}

func (s *RedisIntentStore) PutIfAbsent(ctx context.Context, intent domain.CheckoutIntent, ttl time.Duration) (domain.CheckoutIntent, bool, error) {
	raw, err := json.Marshal(intent)
	if err != nil {
		return domain.CheckoutIntent{}, false, fmt.Errorf("marshal intent: %w", err)
	}

	key := intentKey(intent.Email, intent.Plan)
	claimed, err := s.client.SetNX(ctx, key, raw, ttl).Result()
	if err != nil {
		return domain.CheckoutIntent{}, false, err
	}
	if claimed {
		return intent, true, nil
	}

	stored, err := s.GetLive(ctx, intent.Email, intent.Plan)
	if err != nil {
		return domain.CheckoutIntent{}, false, err
	}
	if stored == nil {
		// The competing intent expired between SETNX and GET; claim again.
		return s.PutIfAbsent(ctx, intent, ttl)
	}
	return *stored, false, nil
}

func (s *RedisIntentStore) GetLive(ctx context.Context, email, plan string) (*domain.CheckoutIntent, error) {
	raw, err := s.client.Get(ctx, intentKey(email, plan)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, err
	}
	var intent domain.CheckoutIntent
	if err := json.Unmarshal([]byte(raw), &intent); err != nil {
		return nil, fmt.Errorf("unmarshal intent: %w", err)
	}
	return &intent, nil
}
