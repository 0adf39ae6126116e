package cache

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/leadcrm/backend/internal/domain/shared"
)

var _ shared.IdempotencyStore = (*InMemoryIdempotencyStore)(nil)

// sweepInterval is how often expired keys are dropped. Lookups ignore expired
// keys regardless, so this only bounds memory.
const sweepInterval = 5 * time.Minute

type storedKey struct {
	record    shared.IdempotencyRecord
	expiresAt time.Time
}

func (k storedKey) liveAt(now time.Time) bool {
	return now.Before(k.expiresAt)
}

// InMemoryIdempotencyStore keeps idempotency keys in process memory. Keys do
// not survive a restart and are not shared between replicas, so it is only
// accepted outside production.
type InMemoryIdempotencyStore struct {
	mu   sync.RWMutex
	keys map[string]storedKey

	stop      context.CancelFunc
	done      chan struct{}
	closeOnce sync.Once
}

// NewInMemoryIdempotencyStore starts a background sweeper; Close stops it.
func NewInMemoryIdempotencyStore() *InMemoryIdempotencyStore {
	ctx, cancel := context.WithCancel(context.Background())
	s := &InMemoryIdempotencyStore{
		keys: make(map[string]storedKey),
		stop: cancel,
		done: make(chan struct{}),
	}
	go s.sweepUntil(ctx)
	return s
}

// Reserve claims key unless a live record, in flight or completed, holds it.
func (s *InMemoryIdempotencyStore) Reserve(_ context.Context, key string, ttl time.Duration) (bool, error) {
	now := time.Now()
	s.mu.Lock()
	defer s.mu.Unlock()

	if k, ok := s.keys[key]; ok && k.liveAt(now) {
		return false, nil
	}
	s.keys[key] = storedKey{
		record:    shared.IdempotencyRecord{State: shared.IdempotencyInFlight},
		expiresAt: now.Add(ttl),
	}
	return true, nil
}

// Lookup returns a copy, so callers may keep the body after the key expires.
func (s *InMemoryIdempotencyStore) Lookup(_ context.Context, key string) (*shared.IdempotencyRecord, error) {
	s.mu.RLock()
	k, ok := s.keys[key]
	s.mu.RUnlock()

	if !ok || !k.liveAt(time.Now()) {
		return nil, nil
	}
	rec := k.record
	rec.Body = slices.Clone(k.record.Body)
	return &rec, nil
}

// Complete replaces the reservation with the response to replay, for ttl.
func (s *InMemoryIdempotencyStore) Complete(_ context.Context, key string, statusCode int, body []byte, ttl time.Duration) error {
	k := storedKey{
		record: shared.IdempotencyRecord{
			State:      shared.IdempotencyCompleted,
			StatusCode: statusCode,
			Body:       slices.Clone(body),
		},
		expiresAt: time.Now().Add(ttl),
	}
	s.mu.Lock()
	s.keys[key] = k
	s.mu.Unlock()
	return nil
}

func (s *InMemoryIdempotencyStore) Release(_ context.Context, key string) error {
	s.mu.Lock()
	delete(s.keys, key)
	s.mu.Unlock()
	return nil
}

// Close stops the sweeper and waits for it. It is safe to call more than once.
func (s *InMemoryIdempotencyStore) Close() error {
	s.closeOnce.Do(func() {
		s.stop()
		<-s.done
	})
	return nil
}

// Size counts stored keys, expired ones included until the next sweep.
func (s *InMemoryIdempotencyStore) Size() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.keys)
}

func (s *InMemoryIdempotencyStore) sweepUntil(ctx context.Context) {
	defer close(s.done)
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweep()
		}
	}
}

func (s *InMemoryIdempotencyStore) sweep() {
	now := time.Now()
	s.mu.Lock()
	defer s.mu.Unlock()
	for key, k := range s.keys {
		if !k.liveAt(now) {
			delete(s.keys, key)
		}
	}
}
