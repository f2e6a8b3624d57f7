package worker

import (
	"context"
	"sync"
	"testing"
	"time"

	"slothold/internal/keys"
	"slothold/internal/models"
	"slothold/internal/store"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sweepEvent struct {
	datetime    time.Time
	serviceType string
	available   bool
}

type recordingBroadcaster struct {
	mu     sync.Mutex
	events []sweepEvent
}

func (b *recordingBroadcaster) SlotUpdate(ctx context.Context, datetime time.Time, serviceType string, available bool, reservationID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, sweepEvent{datetime, serviceType, available})
}

func (b *recordingBroadcaster) all() []sweepEvent {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]sweepEvent(nil), b.events...)
}

func TestSweeperBroadcastsExpiredHolds(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemory()
	bc := &recordingBroadcaster{}
	logger := zerolog.Nop()
	sweeper := NewSweeper(mem, bc, time.Minute, &logger)

	slotA := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	slotB := slotA.Add(30 * time.Minute)
	keyA := keys.Slot(slotA, models.ServiceStandardNotary)
	keyB := keys.Slot(slotB, models.ServiceStandardNotary)

	require.NoError(t, mem.Set(ctx, keyA, "u1", time.Hour))
	require.NoError(t, mem.Set(ctx, keyB, "u2", time.Hour))

	// First pass establishes the baseline and must not broadcast.
	expired, err := sweeper.Sweep(ctx)
	require.NoError(t, err)
	assert.Zero(t, expired)
	assert.Empty(t, bc.all())

	// Nothing changed: still silent.
	expired, err = sweeper.Sweep(ctx)
	require.NoError(t, err)
	assert.Zero(t, expired)

	// Slot A lapses between passes.
	require.NoError(t, mem.Delete(ctx, keyA))

	expired, err = sweeper.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, expired)

	events := bc.all()
	require.Len(t, events, 1)
	assert.True(t, events[0].datetime.Equal(slotA))
	assert.Equal(t, models.ServiceStandardNotary, events[0].serviceType)
	assert.True(t, events[0].available)

	// The expired key is only reported once.
	expired, err = sweeper.Sweep(ctx)
	require.NoError(t, err)
	assert.Zero(t, expired)
	assert.Len(t, bc.all(), 1)
}

func TestSweeperSkipsUnparseableKeys(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemory()
	bc := &recordingBroadcaster{}
	logger := zerolog.Nop()
	sweeper := NewSweeper(mem, bc, time.Minute, &logger)

	require.NoError(t, mem.Set(ctx, "slot_hold:garbage", "x", time.Hour))

	_, err := sweeper.Sweep(ctx)
	require.NoError(t, err)

	require.NoError(t, mem.Delete(ctx, "slot_hold:garbage"))

	expired, err := sweeper.Sweep(ctx)
	require.NoError(t, err)
	assert.Zero(t, expired)
	assert.Empty(t, bc.all())
}

func TestSweeperRediscoversReclaimedSlot(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemory()
	bc := &recordingBroadcaster{}
	logger := zerolog.Nop()
	sweeper := NewSweeper(mem, bc, time.Minute, &logger)

	slot := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	key := keys.Slot(slot, models.ServiceStandardNotary)

	require.NoError(t, mem.Set(ctx, key, "u1", time.Hour))
	_, err := sweeper.Sweep(ctx)
	require.NoError(t, err)

	// Expire, then a new hold lands before the next pass completes its diff.
	require.NoError(t, mem.Delete(ctx, key))
	expired, err := sweeper.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, expired)

	require.NoError(t, mem.Set(ctx, key, "u2", time.Hour))
	require.NoError(t, mem.Delete(ctx, key))

	expired, err = sweeper.Sweep(ctx)
	require.NoError(t, err)
	assert.Zero(t, expired, "key was absent at both scans, nothing new to report")
}

func TestSweeperRunStopsOnCancel(t *testing.T) {
	mem := store.NewMemory()
	bc := &recordingBroadcaster{}
	logger := zerolog.Nop()
	sweeper := NewSweeper(mem, bc, 10*time.Millisecond, &logger)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		sweeper.Run(ctx)
		close(done)
	}()

	time.Sleep(30 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("sweeper did not stop after context cancellation")
	}
}
