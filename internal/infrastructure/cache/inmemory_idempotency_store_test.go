package cache

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/leadcrm/backend/internal/domain/shared"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInMemoryIdempotencyStore_Reserve(t *testing.T) {
	store := NewInMemoryIdempotencyStore()
	defer store.Close()

	ctx := context.Background()

	t.Run("claims a new key", func(t *testing.T) {
		ok, err := store.Reserve(ctx, "key-1", time.Hour)
		require.NoError(t, err)
		assert.True(t, ok, "new key should be claimed")

		record, err := store.Lookup(ctx, "key-1")
		require.NoError(t, err)
		require.NotNil(t, record)
		assert.Equal(t, shared.IdempotencyInFlight, record.State)
	})

	t.Run("rejects a key that is already held", func(t *testing.T) {
		ok, err := store.Reserve(ctx, "key-2", time.Hour)
		require.NoError(t, err)
		assert.True(t, ok)

		ok, err = store.Reserve(ctx, "key-2", time.Hour)
		require.NoError(t, err)
		assert.False(t, ok, "held key should not be claimed twice")
	})

	t.Run("allows reuse after expiration", func(t *testing.T) {
		ok, err := store.Reserve(ctx, "key-3", 10*time.Millisecond)
		require.NoError(t, err)
		assert.True(t, ok)

		time.Sleep(20 * time.Millisecond)

		ok, err = store.Reserve(ctx, "key-3", time.Hour)
		require.NoError(t, err)
		assert.True(t, ok, "expired key should be claimable")
	})
}

func TestInMemoryIdempotencyStore_CompleteAndLookup(t *testing.T) {
	store := NewInMemoryIdempotencyStore()
	defer store.Close()

	ctx := context.Background()

	t.Run("unknown key", func(t *testing.T) {
		record, err := store.Lookup(ctx, "unknown")
		require.NoError(t, err)
		assert.Nil(t, record)
	})

	t.Run("completed response is replayable", func(t *testing.T) {
		_, err := store.Reserve(ctx, "pay-1", time.Hour)
		require.NoError(t, err)

		body := []byte(`{"success":true}`)
		require.NoError(t, store.Complete(ctx, "pay-1", http.StatusCreated, body, time.Hour))
		body[0] = 'x'

		record, err := store.Lookup(ctx, "pay-1")
		require.NoError(t, err)
		require.NotNil(t, record)
		assert.Equal(t, shared.IdempotencyCompleted, record.State)
		assert.Equal(t, http.StatusCreated, record.StatusCode)
		assert.JSONEq(t, `{"success":true}`, string(record.Body))

		ok, err := store.Reserve(ctx, "pay-1", time.Hour)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("expired response is gone", func(t *testing.T) {
		require.NoError(t, store.Complete(ctx, "short", http.StatusOK, nil, 10*time.Millisecond))
		time.Sleep(20 * time.Millisecond)

		record, err := store.Lookup(ctx, "short")
		require.NoError(t, err)
		assert.Nil(t, record)
	})

	t.Run("release frees the key", func(t *testing.T) {
		_, err := store.Reserve(ctx, "failed", time.Hour)
		require.NoError(t, err)
		require.NoError(t, store.Release(ctx, "failed"))

		ok, err := store.Reserve(ctx, "failed", time.Hour)
		require.NoError(t, err)
		assert.True(t, ok)
	})
}

func TestInMemoryIdempotencyStore_Cleanup(t *testing.T) {
	store := NewInMemoryIdempotencyStore()
	defer store.Close()

	ctx := context.Background()

	store.Reserve(ctx, "short-lived-1", 10*time.Millisecond)
	store.Reserve(ctx, "short-lived-2", 10*time.Millisecond)
	store.Reserve(ctx, "long-lived", time.Hour)

	assert.Equal(t, 3, store.Size())

	time.Sleep(20 * time.Millisecond)
	store.sweep()

	assert.Equal(t, 1, store.Size())

	record, err := store.Lookup(ctx, "long-lived")
	require.NoError(t, err)
	assert.NotNil(t, record)
}

func TestInMemoryIdempotencyStore_ConcurrentAccess(t *testing.T) {
	store := NewInMemoryIdempotencyStore()
	defer store.Close()

	ctx := context.Background()
	const numGoroutines = 100
	const key = "concurrent-key"

	results := make(chan bool, numGoroutines)

	for i := 0; i < numGoroutines; i++ {
		go func() {
			ok, err := store.Reserve(ctx, key, time.Hour)
			results <- err == nil && ok
		}()
	}

	claimed := 0
	for i := 0; i < numGoroutines; i++ {
		if <-results {
			claimed++
		}
	}

	assert.Equal(t, 1, claimed, "exactly one goroutine should claim the key")
}

func TestInMemoryIdempotencyStore_Close(t *testing.T) {
	store := NewInMemoryIdempotencyStore()

	err := store.Close()
	assert.NoError(t, err)

	err = store.Close()
	assert.NoError(t, err)
}
