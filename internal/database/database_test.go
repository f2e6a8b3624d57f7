package database

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"slothold/internal/models"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestDB(t *testing.T) *DB {
	t.Helper()
	logger := zerolog.Nop()
	db, err := NewDB(filepath.Join(t.TempDir(), "data", "test.db"), &logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func sampleRecord(bookingID string, convertedAt time.Time) *models.BookingRecord {
	return &models.BookingRecord{
		BookingID:     bookingID,
		ReservationID: "res_" + bookingID,
		Datetime:      time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC),
		ServiceType:   models.ServiceStandardNotary,
		Holder:        "u1",
		ConvertedAt:   convertedAt,
	}
}

func TestRecordBooking(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	rec := sampleRecord("bk_1", time.Date(2025, 6, 1, 8, 50, 0, 0, time.UTC))
	require.NoError(t, db.RecordBooking(ctx, rec))

	got, err := db.GetBookingRecord(ctx, "bk_1")
	require.NoError(t, err)
	assert.Equal(t, rec.BookingID, got.BookingID)
	assert.Equal(t, rec.ReservationID, got.ReservationID)
	assert.True(t, got.Datetime.Equal(rec.Datetime))
	assert.Equal(t, rec.ServiceType, got.ServiceType)
	assert.Equal(t, "u1", got.Holder)
	assert.True(t, got.ConvertedAt.Equal(rec.ConvertedAt))
}

func TestRecordBookingUpsert(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	first := sampleRecord("bk_1", time.Date(2025, 6, 1, 8, 50, 0, 0, time.UTC))
	require.NoError(t, db.RecordBooking(ctx, first))

	// Replaying the same booking id with a new reservation must not error and
	// must overwrite the mutable columns.
	replay := sampleRecord("bk_1", time.Date(2025, 6, 1, 8, 55, 0, 0, time.UTC))
	replay.ReservationID = "res_replayed"
	require.NoError(t, db.RecordBooking(ctx, replay))

	got, err := db.GetBookingRecord(ctx, "bk_1")
	require.NoError(t, err)
	assert.Equal(t, "res_replayed", got.ReservationID)
	assert.True(t, got.ConvertedAt.Equal(replay.ConvertedAt))

	records, err := db.ListRecentBookings(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, records, 1)
}

func TestGetBookingRecordNotFound(t *testing.T) {
	db := newTestDB(t)

	_, err := db.GetBookingRecord(context.Background(), "bk_ghost")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestListRecentBookings(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	base := time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		rec := sampleRecord(fmt.Sprintf("bk_%d", i), base.Add(time.Duration(i)*time.Minute))
		require.NoError(t, db.RecordBooking(ctx, rec))
	}

	records, err := db.ListRecentBookings(ctx, 3)
	require.NoError(t, err)
	require.Len(t, records, 3)

	// Newest conversion first.
	assert.Equal(t, "bk_4", records[0].BookingID)
	assert.Equal(t, "bk_3", records[1].BookingID)
	assert.Equal(t, "bk_2", records[2].BookingID)

	all, err := db.ListRecentBookings(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, all, 5, "non-positive limit falls back to the default")
}
