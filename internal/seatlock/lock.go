package seatlock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"ms-booking/internal/logger"

	"github.com/go-redis/redis/v8"
)

var ErrLockUnavailable = errors.New("seat is locked by another session")

// Manager holds short-lived exclusive claims on seats (or tier capacity)
// while a customer is mid-checkout. Locks live in redis with a native TTL,
// so an abandoned browser session releases its claims without any sweeper.
// This layer is a UX guard only; booking correctness comes from the
// reservation engine's transactional capacity counters.
type Manager struct {
	Client *redis.Client
	TTL    time.Duration
	Logger *logger.Logger
}

func NewManager(client *redis.Client, ttl time.Duration, log *logger.Logger) *Manager {
	return &Manager{Client: client, TTL: ttl, Logger: log}
}

func lockKey(scheduleID, seatOrTierKey string) string {
	return fmt.Sprintf("seat_lock:%s:%s", scheduleID, seatOrTierKey)
}

// Acquire claims a single seat for holderID. Compare-and-set via SETNX:
// it succeeds only if no live lock exists for that key.
func (m *Manager) Acquire(scheduleID, seatOrTierKey, holderID string) (bool, error) {
	key := lockKey(scheduleID, seatOrTierKey)
	ok, err := m.Client.SetNX(context.Background(), key, holderID, m.TTL).Result()
	if err != nil {
		return false, err
	}
	return ok, nil
}

// Renew extends the TTL while the holder is still interacting. Only the
// lock's owner may renew.
func (m *Manager) Renew(scheduleID, seatOrTierKey, holderID string) error {
	ctx := context.Background()
	key := lockKey(scheduleID, seatOrTierKey)

	val, err := m.Client.Get(ctx, key).Result()
	if err == redis.Nil {
		return ErrLockUnavailable
	}
	if err != nil {
		return err
	}
	if val != holderID {
		return ErrLockUnavailable
	}
	return m.Client.Expire(ctx, key, m.TTL).Err()
}

// Release deletes the lock immediately if holderID owns it. Releasing a
// lock that already expired or belongs to someone else is a no-op.
func (m *Manager) Release(scheduleID, seatOrTierKey, holderID string) error {
	ctx := context.Background()
	key := lockKey(scheduleID, seatOrTierKey)

	val, err := m.Client.Get(ctx, key).Result()
	if err == redis.Nil {
		return nil
	}
	if err != nil {
		return err
	}
	if val == holderID {
		return m.Client.Del(ctx, key).Err()
	}
	return nil
}

// AcquireAll locks every key or none. On a partial failure the already
// acquired locks are rolled back.
func (m *Manager) AcquireAll(scheduleID string, keys []string, holderID string) (bool, error) {
	acquired := []string{}
	for _, k := range keys {
		ok, err := m.Acquire(scheduleID, k, holderID)
		if err != nil {
			for _, a := range acquired {
				_ = m.Release(scheduleID, a, holderID)
			}
			return false, err
		}
		if !ok {
			for _, a := range acquired {
				_ = m.Release(scheduleID, a, holderID)
			}
			return false, nil
		}
		acquired = append(acquired, k)
	}
	return true, nil
}

// ReleaseAll releases every key, returning the first error seen.
func (m *Manager) ReleaseAll(scheduleID string, keys []string, holderID string) error {
	var firstErr error
	for _, k := range keys {
		if err := m.Release(scheduleID, k, holderID); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
