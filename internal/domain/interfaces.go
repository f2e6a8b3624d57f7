package domain

import (
	"context"
	"time"

	"slothold/internal/models"
)

// Op is a single write inside a batched Store pipeline. When Delete is set
// the key is removed, otherwise it is written with the given TTL.
type Op struct {
	Key    string
	Value  string
	TTL    time.Duration
	Delete bool
}

// Store is the networked TTL-capable key/value substrate the engine
// coordinates through. SetIfAbsent is the only operation the engine relies on
// for mutual exclusion; Pipeline is batching, not a transaction.
type Store interface {
	// SetIfAbsent atomically claims key with value and ttl. Returns false when
	// the key already exists.
	SetIfAbsent(ctx context.Context, key, value string, ttl time.Duration) (bool, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	// Get returns the value and whether the key exists.
	Get(ctx context.Context, key string) (string, bool, error)
	Delete(ctx context.Context, keys ...string) error
	// TTL returns the remaining lifetime, or a negative duration when the key
	// does not exist or carries no expiry.
	TTL(ctx context.Context, key string) (time.Duration, error)
	Pipeline(ctx context.Context, ops []Op) error
	ScanKeys(ctx context.Context, pattern string) ([]string, error)
	Publish(ctx context.Context, channel string, payload []byte) error
	// Subscribe delivers raw payloads published on channel until the returned
	// cancel function is called.
	Subscribe(ctx context.Context, channel string) (<-chan []byte, func(), error)
	Ping(ctx context.Context) error
	Close() error
}

// Broadcaster pushes slot availability changes to connected clients.
// Delivery is fire-and-forget; the lock state remains the source of truth.
type Broadcaster interface {
	SlotUpdate(ctx context.Context, datetime time.Time, serviceType string, available bool, reservationID string)
}

// Presence reports how many clients are currently viewing a slot. Backed by
// the realtime layer, which lives outside this subsystem.
type Presence interface {
	ViewerCount(datetime time.Time, serviceType string) int
}

// BookingRecorder persists the durable record of a finalized conversion.
type BookingRecorder interface {
	RecordBooking(ctx context.Context, rec *models.BookingRecord) error
}

// ReservationEngine owns all reservation state transitions. Every operation is
// exception-free at this boundary: failures come back as result values.
type ReservationEngine interface {
	Reserve(ctx context.Context, req *models.ReservationRequest) *models.ReservationResult
	Extend(ctx context.Context, req *models.ExtensionRequest) *models.ReservationResult
	Status(ctx context.Context, reservationID string) *models.ReservationStatus
	ConvertToBooking(ctx context.Context, reservationID, bookingID string) bool
	Release(ctx context.Context, reservationID string) bool
	IsSlotAvailable(ctx context.Context, datetime time.Time, serviceType string) bool
	UserReservation(ctx context.Context, userID string) (*models.SlotReservation, error)
	ReservationByEmail(ctx context.Context, email string) (*models.SlotReservation, error)
}
