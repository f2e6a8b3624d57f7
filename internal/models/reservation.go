package models

import (
	"strings"
	"time"
)

// SlotReservation is the durable record of a short-lived hold on a slot.
// It lives in the key-value store under a TTL matching the slot lock key.
type SlotReservation struct {
	ID                string         `json:"id"`
	Datetime          time.Time      `json:"datetime"`
	ServiceType       string         `json:"service_type"`
	UserID            string         `json:"user_id,omitempty"`
	CustomerEmail     string         `json:"customer_email,omitempty"`
	EstimatedDuration int            `json:"estimated_duration"`
	ReservedAt        time.Time      `json:"reserved_at"`
	ExpiresAt         time.Time      `json:"expires_at"`
	Extended          bool           `json:"extended"`
	ExtensionCount    int            `json:"extension_count"`
	BookingID         string         `json:"booking_id,omitempty"`
	Metadata          map[string]any `json:"metadata,omitempty"`
}

// HolderToken returns the opaque value stored under the slot lock key.
// Preference order: user id, then email, then the reservation id itself.
func (r *SlotReservation) HolderToken() string {
	if r.UserID != "" {
		return r.UserID
	}
	if r.CustomerEmail != "" {
		return r.CustomerEmail
	}
	return r.ID
}

// OwnedBy reports whether the given identity matches the reservation holder.
// Ownership requires an exact match on user id or email; empty fields never match.
func (r *SlotReservation) OwnedBy(userID, customerEmail string) bool {
	if userID != "" && r.UserID == userID {
		return true
	}
	if customerEmail != "" && r.CustomerEmail == customerEmail {
		return true
	}
	return false
}

// ReservationRequest описывает запрос на удержание слота
type ReservationRequest struct {
	Datetime          time.Time      `json:"datetime"`
	ServiceType       string         `json:"service_type"`
	UserID            string         `json:"user_id,omitempty"`
	CustomerEmail     string         `json:"customer_email,omitempty"`
	EstimatedDuration int            `json:"estimated_duration,omitempty"`
	Metadata          map[string]any `json:"metadata,omitempty"`
}

// ExtensionRequest описывает запрос на продление удержания
type ExtensionRequest struct {
	ReservationID string `json:"reservation_id"`
	UserID        string `json:"user_id,omitempty"`
	CustomerEmail string `json:"customer_email,omitempty"`
	Reason        string `json:"reason,omitempty"`
}

// ReservationResult is returned by reserve and extend. Success=false carries a
// user-facing message; infrastructure details stay in server logs.
type ReservationResult struct {
	Success                bool             `json:"success"`
	Reservation            *SlotReservation `json:"reservation,omitempty"`
	Message                string           `json:"message"`
	TimeRemaining          int              `json:"time_remaining,omitempty"`
	ConflictingReservation string           `json:"conflicting_reservation,omitempty"`
}

// ReservationStatus is the polling primitive behind countdown UIs.
type ReservationStatus struct {
	Active        bool             `json:"active"`
	TimeRemaining int              `json:"time_remaining"`
	WarningZone   bool             `json:"warning_zone"`
	CanExtend     bool             `json:"can_extend"`
	Reservation   *SlotReservation `json:"reservation,omitempty"`
}

// SlotUpdate is the availability broadcast payload published on SlotUpdatesChannel.
type SlotUpdate struct {
	Datetime      time.Time `json:"datetime"`
	ServiceType   string    `json:"service_type"`
	Available     bool      `json:"available"`
	ReservationID string    `json:"reservation_id,omitempty"`
	ViewerCount   int       `json:"viewer_count"`
	Timestamp     time.Time `json:"timestamp"`
}

// BookingRecord is the durable row written once a reservation is converted
// into a confirmed booking.
type BookingRecord struct {
	BookingID     string    `json:"booking_id"`
	ReservationID string    `json:"reservation_id"`
	Datetime      time.Time `json:"datetime"`
	ServiceType   string    `json:"service_type"`
	Holder        string    `json:"holder"`
	ConvertedAt   time.Time `json:"converted_at"`
}

// MaskEmail hides the local part of an email for log output: "jo***@example.com".
func MaskEmail(email string) string {
	if email == "" {
		return ""
	}
	at := strings.IndexByte(email, '@')
	if at <= 0 {
		return "***"
	}
	local := email[:at]
	if len(local) > 2 {
		local = local[:2]
	}
	return local + "***" + email[at:]
}
