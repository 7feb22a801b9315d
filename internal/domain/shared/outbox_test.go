package shared

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testEvent struct {
	BaseDomainEvent
}

func TestNewOutboxEntry(t *testing.T) {
	tenantID := uuid.New()
	aggID := uuid.New()
	evt := &testEvent{BaseDomainEvent: NewBaseDomainEvent("MetalConsumed", "MetalAccount", aggID, tenantID)}

	entry := NewOutboxEntry(evt, []byte(`{}`))

	assert.Equal(t, tenantID, entry.TenantID)
	assert.Equal(t, evt.EventID(), entry.EventID)
	assert.Equal(t, "MetalConsumed", entry.EventType)
	assert.Equal(t, aggID, entry.AggregateID)
	assert.Equal(t, OutboxStatusPending, entry.Status)
	assert.Equal(t, DefaultMaxRetries, entry.MaxRetries)
}

func TestOutboxEntry_MarkFailed(t *testing.T) {
	t.Run("schedules retry with backoff", func(t *testing.T) {
		entry := &OutboxEntry{Status: OutboxStatusProcessing, MaxRetries: 3}
		entry.MarkFailed("boom")

		assert.Equal(t, OutboxStatusFailed, entry.Status)
		assert.Equal(t, 1, entry.RetryCount)
		require.NotNil(t, entry.NextRetryAt)
		assert.True(t, entry.NextRetryAt.After(time.Now()))
		assert.True(t, entry.CanRetry())
	})

	t.Run("becomes dead after max retries", func(t *testing.T) {
		entry := &OutboxEntry{Status: OutboxStatusProcessing, RetryCount: 2, MaxRetries: 3}
		entry.MarkFailed("boom")

		assert.True(t, entry.IsDead())
		assert.Nil(t, entry.NextRetryAt)
		assert.False(t, entry.CanRetry())
	})
}

func TestOutboxEntry_MarkProcessing(t *testing.T) {
	entry := &OutboxEntry{Status: OutboxStatusSent}
	err := entry.MarkProcessing()
	assert.True(t, errors.Is(err, ErrInvalidState))

	entry.Status = OutboxStatusFailed
	require.NoError(t, entry.MarkProcessing())
	assert.Equal(t, OutboxStatusProcessing, entry.Status)
}

func TestOutboxEntry_ResetForRetry(t *testing.T) {
	t.Run("resets dead letter entry", func(t *testing.T) {
		entry := &OutboxEntry{Status: OutboxStatusDead, RetryCount: 5, MaxRetries: 5, LastError: "x"}

		require.NoError(t, entry.ResetForRetry())
		assert.Equal(t, OutboxStatusPending, entry.Status)
		assert.Zero(t, entry.RetryCount)
		assert.Empty(t, entry.LastError)
	})

	t.Run("rejects non-dead entries", func(t *testing.T) {
		for _, status := range []OutboxStatus{OutboxStatusPending, OutboxStatusProcessing, OutboxStatusSent, OutboxStatusFailed} {
			entry := &OutboxEntry{Status: status}
			assert.ErrorIs(t, entry.ResetForRetry(), ErrInvalidState)
		}
	})
}
