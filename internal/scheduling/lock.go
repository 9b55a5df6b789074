package scheduling

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrTutorBusy is returned when another writer holds the tutor's calendar
// lock for the whole retry window.
var ErrTutorBusy = errors.New("tutor calendar is locked by another request")

// RedisTutorLock serializes check-and-create on one tutor's calendar across
// API instances. The lock is keyed by tutor id, owned by a random token, and
// expires on its own so a crashed holder cannot wedge the calendar.
type RedisTutorLock struct {
	client *redis.Client
	ttl    time.Duration
	retry  time.Duration
	tries  int
}

// NewRedisTutorLock builds a locker with the given lease TTL.
func NewRedisTutorLock(client *redis.Client, ttl time.Duration) *RedisTutorLock {
	if ttl <= 0 {
		ttl = 10 * time.Second
	}
	return &RedisTutorLock{
		client: client,
		ttl:    ttl,
		retry:  100 * time.Millisecond,
		tries:  20,
	}
}

// WithTutorLock runs fn while holding the tutor's lock.
func (l *RedisTutorLock) WithTutorLock(ctx context.Context, tutorID string, fn func(ctx context.Context) error) error {
	key := "classmatch:lock:tutor:" + tutorID
	token := uuid.NewString()

	acquired := false
	for i := 0; i < l.tries; i++ {
		ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
		if err != nil {
			return fmt.Errorf("acquire tutor lock: %w", err)
		}
		if ok {
			acquired = true
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(l.retry):
		}
	}
	if !acquired {
		return ErrTutorBusy
	}
	defer l.release(key, token)

	return fn(ctx)
}

// release deletes the key only when this holder still owns it.
func (l *RedisTutorLock) release(key, token string) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	const script = `if redis.call("get", KEYS[1]) == ARGV[1] then return redis.call("del", KEYS[1]) else return 0 end`
	_ = l.client.Eval(ctx, script, []string{key}, token).Err()
}

// LocalTutorLock is an in-process locker for single-instance deployments and
// tests.
type LocalTutorLock struct {
	sem chan struct{}
}

// NewLocalTutorLock creates a process-wide mutex locker.
func NewLocalTutorLock() *LocalTutorLock {
	return &LocalTutorLock{sem: make(chan struct{}, 1)}
}

// WithTutorLock runs fn under the process mutex.
func (l *LocalTutorLock) WithTutorLock(ctx context.Context, tutorID string, fn func(ctx context.Context) error) error {
	select {
	case l.sem <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}
	defer func() { <-l.sem }()
	return fn(ctx)
}
