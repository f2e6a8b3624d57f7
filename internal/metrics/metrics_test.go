package metrics

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMetrics(t *testing.T) {
	// Register should be safe to call multiple times
	Register()
	Register()

	// Increment helpers should not panic
	assert.NotPanics(t, func() {
		IncReservation("success")
		IncExtension("conflict")
		IncRelease()
		IncConversion()
		IncBroadcast(true)
		IncBroadcast(false)
		IncSweeperExpiry()
		IncHTTP("/api/v1/reservations")
	})
}
