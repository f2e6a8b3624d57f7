package broadcast

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"slothold/internal/models"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type capturePublisher struct {
	mu       sync.Mutex
	channels []string
	payloads [][]byte
	fail     error
}

func (p *capturePublisher) Publish(ctx context.Context, channel string, payload []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.fail != nil {
		return p.fail
	}
	p.channels = append(p.channels, channel)
	p.payloads = append(p.payloads, payload)
	return nil
}

func TestSlotUpdate(t *testing.T) {
	slot := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	logger := zerolog.Nop()

	t.Run("PublishesOnSlotUpdatesChannel", func(t *testing.T) {
		pub := &capturePublisher{}
		tracker := NewTracker()
		tracker.Track("sess-1", slot, models.ServiceStandardNotary)
		tracker.Track("sess-2", slot, models.ServiceStandardNotary)

		bc := New(pub, tracker, &logger)
		bc.SlotUpdate(context.Background(), slot, models.ServiceStandardNotary, false, "res_1")

		require.Len(t, pub.payloads, 1)
		assert.Equal(t, models.SlotUpdatesChannel, pub.channels[0])

		var update models.SlotUpdate
		require.NoError(t, json.Unmarshal(pub.payloads[0], &update))
		assert.True(t, update.Datetime.Equal(slot))
		assert.Equal(t, models.ServiceStandardNotary, update.ServiceType)
		assert.False(t, update.Available)
		assert.Equal(t, "res_1", update.ReservationID)
		assert.Equal(t, 2, update.ViewerCount)
		assert.False(t, update.Timestamp.IsZero())
	})

	t.Run("NilPresenceCountsZero", func(t *testing.T) {
		pub := &capturePublisher{}
		bc := New(pub, nil, &logger)
		bc.SlotUpdate(context.Background(), slot, models.ServiceQuickStampLocal, true, "")

		require.Len(t, pub.payloads, 1)
		var update models.SlotUpdate
		require.NoError(t, json.Unmarshal(pub.payloads[0], &update))
		assert.Zero(t, update.ViewerCount)
		assert.True(t, update.Available)
	})

	t.Run("PublishFailureIsSwallowed", func(t *testing.T) {
		pub := &capturePublisher{fail: errors.New("broker down")}
		bc := New(pub, nil, &logger)

		// Must not panic or surface the error to the caller.
		bc.SlotUpdate(context.Background(), slot, models.ServiceStandardNotary, true, "res_1")
		assert.Empty(t, pub.payloads)
	})
}

func TestTracker(t *testing.T) {
	slot := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	other := slot.Add(time.Hour)

	tracker := NewTracker()
	assert.Zero(t, tracker.ViewerCount(slot, models.ServiceStandardNotary))

	tracker.Track("a", slot, models.ServiceStandardNotary)
	tracker.Track("b", slot, models.ServiceStandardNotary)
	tracker.Track("a", slot, models.ServiceStandardNotary) // duplicate session
	tracker.Track("a", other, models.ServiceStandardNotary)

	assert.Equal(t, 2, tracker.ViewerCount(slot, models.ServiceStandardNotary))
	assert.Equal(t, 1, tracker.ViewerCount(other, models.ServiceStandardNotary))
	// Same datetime, different service type is a different slot.
	assert.Zero(t, tracker.ViewerCount(slot, models.ServiceLoanSigning))

	tracker.Untrack("a", slot, models.ServiceStandardNotary)
	assert.Equal(t, 1, tracker.ViewerCount(slot, models.ServiceStandardNotary))

	// Untracking an unknown session is a no-op.
	tracker.Untrack("ghost", slot, models.ServiceStandardNotary)
	assert.Equal(t, 1, tracker.ViewerCount(slot, models.ServiceStandardNotary))

	tracker.Untrack("b", slot, models.ServiceStandardNotary)
	assert.Zero(t, tracker.ViewerCount(slot, models.ServiceStandardNotary))
}
