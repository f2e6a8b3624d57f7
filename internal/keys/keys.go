// Package keys defines the canonical key scheme for the reservation subsystem.
// All functions are pure: equal inputs always map to identical keys, which is
// what makes the slot lock collision-free across request handlers.
package keys

import (
	"strings"
	"time"
)

const (
	slotPrefix        = "slot_hold:"
	reservationPrefix = "slot_reservation:"
	userPrefix        = "user_reservation:id:"
	emailPrefix       = "user_reservation:email:"
)

// SlotHoldPattern matches every slot lock key. Used by the reconciliation sweep.
const SlotHoldPattern = slotPrefix + "*"

// Slot returns the lock key for a (datetime, service type) pair. The instant
// is normalized to UTC so callers in different zones contend on the same key.
func Slot(datetime time.Time, serviceType string) string {
	return slotPrefix + datetime.UTC().Format(time.RFC3339) + ":" + serviceType
}

// Reservation returns the record key for a reservation id.
func Reservation(reservationID string) string {
	return reservationPrefix + reservationID
}

// User returns the ownership-index key for an authenticated user id.
func User(userID string) string {
	return userPrefix + userID
}

// Email returns the ownership-index key for a guest email. The namespace is
// disjoint from User so coinciding string values can never collide.
func Email(email string) string {
	return emailPrefix + email
}

// ParseSlot inverts Slot. The datetime itself contains ':' so the service type
// is taken after the last separator; UTC keys never carry a zone offset colon.
func ParseSlot(key string) (datetime time.Time, serviceType string, ok bool) {
	rest, found := strings.CutPrefix(key, slotPrefix)
	if !found {
		return time.Time{}, "", false
	}
	i := strings.LastIndexByte(rest, ':')
	if i <= 0 || i == len(rest)-1 {
		return time.Time{}, "", false
	}
	t, err := time.Parse(time.RFC3339, rest[:i])
	if err != nil {
		return time.Time{}, "", false
	}
	return t, rest[i+1:], true
}
