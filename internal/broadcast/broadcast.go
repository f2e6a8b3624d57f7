// Package broadcast pushes slot availability changes to the realtime layer.
// Delivery is best-effort: a lost broadcast only delays a UI refresh, the slot
// lock in the store stays authoritative.
package broadcast

import (
	"context"
	"encoding/json"
	"time"

	"slothold/internal/domain"
	"slothold/internal/metrics"
	"slothold/internal/models"

	"github.com/rs/zerolog"
)

// Publisher is the slice of the store the broadcaster needs.
type Publisher interface {
	Publish(ctx context.Context, channel string, payload []byte) error
}

type Broadcaster struct {
	pub      Publisher
	presence domain.Presence
	logger   *zerolog.Logger
}

func New(pub Publisher, presence domain.Presence, logger *zerolog.Logger) *Broadcaster {
	return &Broadcaster{
		pub:      pub,
		presence: presence,
		logger:   logger,
	}
}

// SlotUpdate publishes the availability change for a slot. Publish failures
// are logged and swallowed so reservation operations never fail on them.
func (b *Broadcaster) SlotUpdate(ctx context.Context, datetime time.Time, serviceType string, available bool, reservationID string) {
	viewerCount := 0
	if b.presence != nil {
		viewerCount = b.presence.ViewerCount(datetime, serviceType)
	}

	update := models.SlotUpdate{
		Datetime:      datetime,
		ServiceType:   serviceType,
		Available:     available,
		ReservationID: reservationID,
		ViewerCount:   viewerCount,
		Timestamp:     time.Now().UTC(),
	}

	payload, err := json.Marshal(update)
	if err != nil {
		b.logger.Error().Err(err).Str("service_type", serviceType).Msg("encode slot update")
		return
	}

	if err := b.pub.Publish(ctx, models.SlotUpdatesChannel, payload); err != nil {
		b.logger.Error().Err(err).
			Time("datetime", datetime).
			Str("service_type", serviceType).
			Bool("available", available).
			Msg("publish slot update")
		return
	}

	metrics.IncBroadcast(available)
}
