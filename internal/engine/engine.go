// Package engine implements the slot reservation hold mechanism: short-lived
// exclusive claims on appointment slots while a customer completes checkout.
//
// All coordination goes through the key-value store. The only operation the
// engine relies on for mutual exclusion is the atomic set-if-absent on the
// slot lock key; everything else is bookkeeping with matching TTLs.
package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"slothold/internal/config"
	"slothold/internal/domain"
	"slothold/internal/keys"
	"slothold/internal/metrics"
	"slothold/internal/models"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const (
	outcomeSuccess  = "success"
	outcomeConflict = "conflict"
	outcomeInvalid  = "invalid"
	outcomeDenied   = "denied"
	outcomeError    = "error"
)

const (
	msgSlotTaken     = "This time slot was just booked by another customer. Please select a different time."
	msgReserveFailed = "Unable to reserve slot. Please try again."
	msgExtendFailed  = "Unable to extend reservation. Please try again."
	msgNotFound      = "Reservation not found or has expired"
	msgMaxExtensions = "Maximum extensions reached. Please complete your booking soon."
	msgNotOwner      = "You can only extend your own reservations"
)

// Engine is constructed once at process start and shared by request handlers.
// It holds no reservation state in memory; every call round-trips the store.
type Engine struct {
	store       domain.Store
	broadcaster domain.Broadcaster
	recorder    domain.BookingRecorder
	cfg         config.ReservationConfig
	logger      *zerolog.Logger
}

// New wires the engine with its collaborators. recorder may be nil when no
// durable booking persistence is configured.
func New(store domain.Store, broadcaster domain.Broadcaster, recorder domain.BookingRecorder, cfg config.ReservationConfig, logger *zerolog.Logger) *Engine {
	if cfg.HoldDuration <= 0 {
		cfg.HoldDuration = 15 * 60
	}
	if cfg.ExtensionDuration <= 0 {
		cfg.ExtensionDuration = 5 * 60
	}
	if cfg.MaxExtensions <= 0 {
		cfg.MaxExtensions = 1
	}
	if cfg.WarningThreshold <= 0 {
		cfg.WarningThreshold = 5 * 60
	}
	return &Engine{
		store:       store,
		broadcaster: broadcaster,
		recorder:    recorder,
		cfg:         cfg,
		logger:      logger,
	}
}

// Reserve claims a slot for the requesting identity. The preliminary read
// exists only to produce a friendly conflict message; the set-if-absent on the
// slot key is what actually decides the winner among concurrent requests.
func (e *Engine) Reserve(ctx context.Context, req *models.ReservationRequest) *models.ReservationResult {
	if err := req.Validate(); err != nil {
		e.logger.Warn().Err(err).
			Str("service_type", req.ServiceType).
			Str("customer_email", models.MaskEmail(req.CustomerEmail)).
			Msg("invalid reservation request")
		metrics.IncReservation(outcomeInvalid)
		return &models.ReservationResult{Success: false, Message: err.Error()}
	}

	slotKey := keys.Slot(req.Datetime, req.ServiceType)
	identity := identityToken(req.UserID, req.CustomerEmail)

	holder, held, err := e.store.Get(ctx, slotKey)
	if err != nil {
		return e.reserveStoreFailure(req, err)
	}
	if held && (identity == "" || holder != identity) {
		metrics.IncReservation(outcomeConflict)
		return &models.ReservationResult{
			Success:                false,
			Message:                msgSlotTaken,
			ConflictingReservation: holder,
		}
	}

	// An identity holds at most one reservation; starting a new hold
	// supersedes any previous one, including one on this very slot.
	if err := e.releasePrior(ctx, req.UserID, req.CustomerEmail); err != nil {
		return e.reserveStoreFailure(req, err)
	}

	now := time.Now().UTC()
	hold := e.cfg.Hold()
	reservation := &models.SlotReservation{
		ID:                "res_" + uuid.NewString(),
		Datetime:          req.Datetime,
		ServiceType:       req.ServiceType,
		UserID:            req.UserID,
		CustomerEmail:     req.CustomerEmail,
		EstimatedDuration: req.EstimatedDuration,
		ReservedAt:        now,
		ExpiresAt:         now.Add(hold),
		Metadata:          req.Metadata,
	}

	claimed, err := e.store.SetIfAbsent(ctx, slotKey, reservation.HolderToken(), hold)
	if err != nil {
		return e.reserveStoreFailure(req, err)
	}
	if !claimed {
		// Lost the race after the pre-check passed.
		holder, _, _ = e.store.Get(ctx, slotKey)
		metrics.IncReservation(outcomeConflict)
		return &models.ReservationResult{
			Success:                false,
			Message:                msgSlotTaken,
			ConflictingReservation: holder,
		}
	}

	if err := e.writeReservation(ctx, reservation, hold); err != nil {
		// The slot key is claimed but the record write failed. The hold's own
		// TTL clears the inconsistency within the hold duration.
		return e.reserveStoreFailure(req, err)
	}

	e.broadcaster.SlotUpdate(ctx, req.Datetime, req.ServiceType, false, reservation.ID)

	e.logger.Info().
		Str("reservation_id", reservation.ID).
		Time("datetime", req.Datetime).
		Str("service_type", req.ServiceType).
		Str("user_id", req.UserID).
		Str("customer_email", models.MaskEmail(req.CustomerEmail)).
		Msg("slot reserved")
	metrics.IncReservation(outcomeSuccess)

	return &models.ReservationResult{
		Success:       true,
		Reservation:   reservation,
		Message:       fmt.Sprintf("Slot reserved for %d minutes while you complete booking", int(hold.Minutes())),
		TimeRemaining: int(hold.Seconds()),
	}
}

// Extend replaces the remaining hold time with the (shorter) extension
// duration. This is a final countdown, not a top-up.
func (e *Engine) Extend(ctx context.Context, req *models.ExtensionRequest) *models.ReservationResult {
	if err := req.Validate(); err != nil {
		e.logger.Warn().Err(err).
			Str("reservation_id", req.ReservationID).
			Msg("invalid extension request")
		metrics.IncExtension(outcomeInvalid)
		return &models.ReservationResult{Success: false, Message: err.Error()}
	}

	reservation, err := e.getReservation(ctx, req.ReservationID)
	if err != nil {
		e.logger.Error().Err(err).Str("reservation_id", req.ReservationID).Msg("extension failed")
		metrics.IncExtension(outcomeError)
		return &models.ReservationResult{Success: false, Message: msgExtendFailed}
	}
	if reservation == nil {
		metrics.IncExtension(outcomeConflict)
		return &models.ReservationResult{Success: false, Message: msgNotFound}
	}
	if reservation.ExtensionCount >= e.cfg.MaxExtensions {
		metrics.IncExtension(outcomeConflict)
		return &models.ReservationResult{Success: false, Message: msgMaxExtensions}
	}
	if !reservation.OwnedBy(req.UserID, req.CustomerEmail) {
		// Deliberately vague: no hint about the actual holder.
		metrics.IncExtension(outcomeDenied)
		return &models.ReservationResult{Success: false, Message: msgNotOwner}
	}

	now := time.Now().UTC()
	extension := e.cfg.Extension()
	reservation.ExpiresAt = now.Add(extension)
	reservation.Extended = true
	reservation.ExtensionCount++
	if reservation.Metadata == nil {
		reservation.Metadata = make(map[string]any)
	}
	if req.Reason != "" {
		reservation.Metadata["extension_reason"] = req.Reason
	}
	reservation.Metadata["extended_at"] = now.Format(time.RFC3339)

	if err := e.writeReservation(ctx, reservation, extension); err != nil {
		e.logger.Error().Err(err).Str("reservation_id", req.ReservationID).Msg("extension failed")
		metrics.IncExtension(outcomeError)
		return &models.ReservationResult{Success: false, Message: msgExtendFailed}
	}

	e.logger.Info().
		Str("reservation_id", reservation.ID).
		Int("extension_count", reservation.ExtensionCount).
		Time("new_expires_at", reservation.ExpiresAt).
		Msg("reservation extended")
	metrics.IncExtension(outcomeSuccess)

	return &models.ReservationResult{
		Success:       true,
		Reservation:   reservation,
		Message:       fmt.Sprintf("Reservation extended for %d more minutes", int(extension.Minutes())),
		TimeRemaining: int(extension.Seconds()),
	}
}

// Status is the polling primitive behind countdown UIs. A missing or errored
// lookup reads as inactive rather than failing.
func (e *Engine) Status(ctx context.Context, reservationID string) *models.ReservationStatus {
	reservation, err := e.getReservation(ctx, reservationID)
	if err != nil {
		e.logger.Error().Err(err).Str("reservation_id", reservationID).Msg("status lookup failed")
		return &models.ReservationStatus{}
	}
	if reservation == nil {
		return &models.ReservationStatus{}
	}

	remaining := int(time.Until(reservation.ExpiresAt).Seconds())
	if remaining < 0 {
		remaining = 0
	}
	active := remaining > 0

	status := &models.ReservationStatus{
		Active:        active,
		TimeRemaining: remaining,
		WarningZone:   time.Duration(remaining)*time.Second <= e.cfg.Warning(),
		CanExtend:     active && reservation.ExtensionCount < e.cfg.MaxExtensions,
	}
	if active {
		status.Reservation = reservation
	}
	return status
}

// ConvertToBooking attaches a booking id to a live reservation without
// touching its remaining TTL. A lapsed reservation is a recoverable
// inconsistency for the caller, not a fatal error.
func (e *Engine) ConvertToBooking(ctx context.Context, reservationID, bookingID string) bool {
	reservation, err := e.getReservation(ctx, reservationID)
	if err != nil {
		e.logger.Error().Err(err).Str("reservation_id", reservationID).Msg("conversion failed")
		return false
	}
	if reservation == nil {
		e.logger.Warn().
			Str("reservation_id", reservationID).
			Str("booking_id", bookingID).
			Msg("attempted to convert non-existent reservation")
		return false
	}

	now := time.Now().UTC()
	reservation.BookingID = bookingID
	if reservation.Metadata == nil {
		reservation.Metadata = make(map[string]any)
	}
	reservation.Metadata["converted_at"] = now.Format(time.RFC3339)

	recordKey := keys.Reservation(reservationID)
	ttl, err := e.store.TTL(ctx, recordKey)
	if err != nil {
		e.logger.Error().Err(err).Str("reservation_id", reservationID).Msg("conversion failed")
		return false
	}
	if ttl > 0 {
		data, err := json.Marshal(reservation)
		if err != nil {
			e.logger.Error().Err(err).Str("reservation_id", reservationID).Msg("encode reservation")
			return false
		}
		if err := e.store.Set(ctx, recordKey, string(data), ttl); err != nil {
			e.logger.Error().Err(err).Str("reservation_id", reservationID).Msg("conversion failed")
			return false
		}
	}

	if e.recorder != nil {
		record := &models.BookingRecord{
			BookingID:     bookingID,
			ReservationID: reservationID,
			Datetime:      reservation.Datetime,
			ServiceType:   reservation.ServiceType,
			Holder:        reservation.HolderToken(),
			ConvertedAt:   now,
		}
		if err := e.recorder.RecordBooking(ctx, record); err != nil {
			// The lock state stays authoritative; the durable row can be
			// backfilled from the booking workflow.
			e.logger.Warn().Err(err).Str("booking_id", bookingID).Msg("record booking")
		}
	}

	e.logger.Info().
		Str("reservation_id", reservationID).
		Str("booking_id", bookingID).
		Msg("reservation converted to booking")
	metrics.IncConversion()
	return true
}

// Release frees the slot and drops all reservation keys. Releasing a
// reservation that no longer exists is a no-op success.
func (e *Engine) Release(ctx context.Context, reservationID string) bool {
	reservation, err := e.getReservation(ctx, reservationID)
	if err != nil {
		e.logger.Error().Err(err).Str("reservation_id", reservationID).Msg("release failed")
		return false
	}
	if reservation == nil {
		return true
	}

	toDelete := []string{
		keys.Slot(reservation.Datetime, reservation.ServiceType),
		keys.Reservation(reservationID),
	}
	if reservation.UserID != "" {
		toDelete = append(toDelete, keys.User(reservation.UserID))
	}
	if reservation.CustomerEmail != "" {
		toDelete = append(toDelete, keys.Email(reservation.CustomerEmail))
	}

	if err := e.store.Delete(ctx, toDelete...); err != nil {
		e.logger.Error().Err(err).Str("reservation_id", reservationID).Msg("release failed")
		return false
	}

	e.broadcaster.SlotUpdate(ctx, reservation.Datetime, reservation.ServiceType, true, reservationID)

	e.logger.Info().Str("reservation_id", reservationID).Msg("reservation released")
	metrics.IncRelease()
	return true
}

// IsSlotAvailable is a point-in-time read: a true result is no guarantee a
// subsequent Reserve will win.
func (e *Engine) IsSlotAvailable(ctx context.Context, datetime time.Time, serviceType string) bool {
	_, held, err := e.store.Get(ctx, keys.Slot(datetime, serviceType))
	if err != nil {
		e.logger.Error().Err(err).
			Time("datetime", datetime).
			Str("service_type", serviceType).
			Msg("availability check failed")
		return false
	}
	return !held
}

// UserReservation returns the user's current reservation, if any.
func (e *Engine) UserReservation(ctx context.Context, userID string) (*models.SlotReservation, error) {
	return e.reservationByIndex(ctx, keys.User(userID))
}

// ReservationByEmail returns the guest reservation tracked under an email.
func (e *Engine) ReservationByEmail(ctx context.Context, email string) (*models.SlotReservation, error) {
	return e.reservationByIndex(ctx, keys.Email(email))
}

func (e *Engine) reservationByIndex(ctx context.Context, indexKey string) (*models.SlotReservation, error) {
	reservationID, found, err := e.store.Get(ctx, indexKey)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, nil
	}
	return e.getReservation(ctx, reservationID)
}

func (e *Engine) getReservation(ctx context.Context, reservationID string) (*models.SlotReservation, error) {
	data, found, err := e.store.Get(ctx, keys.Reservation(reservationID))
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, nil
	}
	var reservation models.SlotReservation
	if err := json.Unmarshal([]byte(data), &reservation); err != nil {
		return nil, fmt.Errorf("failed to unmarshal reservation %s: %w", reservationID, err)
	}
	return &reservation, nil
}

// releasePrior drops any existing reservation owned by the identity before a
// new hold is claimed.
func (e *Engine) releasePrior(ctx context.Context, userID, customerEmail string) error {
	seen := make(map[string]struct{}, 2)
	for _, indexKey := range identityKeys(userID, customerEmail) {
		priorID, found, err := e.store.Get(ctx, indexKey)
		if err != nil {
			return err
		}
		if !found {
			continue
		}
		if _, done := seen[priorID]; done {
			continue
		}
		seen[priorID] = struct{}{}
		if !e.Release(ctx, priorID) {
			return fmt.Errorf("failed to release prior reservation %s", priorID)
		}
	}
	return nil
}

func (e *Engine) writeReservation(ctx context.Context, reservation *models.SlotReservation, ttl time.Duration) error {
	data, err := json.Marshal(reservation)
	if err != nil {
		return fmt.Errorf("failed to marshal reservation: %w", err)
	}

	ops := []domain.Op{
		{Key: keys.Slot(reservation.Datetime, reservation.ServiceType), Value: reservation.HolderToken(), TTL: ttl},
		{Key: keys.Reservation(reservation.ID), Value: string(data), TTL: ttl},
	}
	if reservation.UserID != "" {
		ops = append(ops, domain.Op{Key: keys.User(reservation.UserID), Value: reservation.ID, TTL: ttl})
	}
	if reservation.CustomerEmail != "" {
		ops = append(ops, domain.Op{Key: keys.Email(reservation.CustomerEmail), Value: reservation.ID, TTL: ttl})
	}
	return e.store.Pipeline(ctx, ops)
}

func (e *Engine) reserveStoreFailure(req *models.ReservationRequest, err error) *models.ReservationResult {
	e.logger.Error().Err(err).
		Time("datetime", req.Datetime).
		Str("service_type", req.ServiceType).
		Str("user_id", req.UserID).
		Str("customer_email", models.MaskEmail(req.CustomerEmail)).
		Msg("slot reservation failed")
	metrics.IncReservation(outcomeError)
	return &models.ReservationResult{Success: false, Message: msgReserveFailed}
}

func identityToken(userID, customerEmail string) string {
	if userID != "" {
		return userID
	}
	return customerEmail
}

func identityKeys(userID, customerEmail string) []string {
	var out []string
	if userID != "" {
		out = append(out, keys.User(userID))
	}
	if customerEmail != "" {
		out = append(out, keys.Email(customerEmail))
	}
	return out
}
