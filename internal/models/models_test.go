package models

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReservationRequestValidate(t *testing.T) {
	valid := func() *ReservationRequest {
		return &ReservationRequest{
			Datetime:      time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC),
			ServiceType:   ServiceStandardNotary,
			CustomerEmail: "customer@example.com",
		}
	}

	t.Run("Valid", func(t *testing.T) {
		req := valid()
		require.NoError(t, req.Validate())
		assert.Equal(t, DefaultEstimatedDuration, req.EstimatedDuration)
	})

	t.Run("MissingDatetime", func(t *testing.T) {
		req := valid()
		req.Datetime = time.Time{}
		err := req.Validate()
		require.Error(t, err)

		var ve *ValidationError
		require.True(t, errors.As(err, &ve))
		assert.Equal(t, "datetime", ve.Fields[0].Field)
	})

	t.Run("UnknownServiceType", func(t *testing.T) {
		req := valid()
		req.ServiceType = "HOT_AIR_BALLOON"
		assert.Error(t, req.Validate())
	})

	t.Run("BadEmail", func(t *testing.T) {
		req := valid()
		req.CustomerEmail = "not-an-email"
		assert.Error(t, req.Validate())
	})

	t.Run("DurationOutOfRange", func(t *testing.T) {
		for _, d := range []int{5, 14, 181, 500} {
			req := valid()
			req.EstimatedDuration = d
			assert.Error(t, req.Validate(), "duration %d", d)
		}
		for _, d := range []int{15, 60, 180} {
			req := valid()
			req.EstimatedDuration = d
			assert.NoError(t, req.Validate(), "duration %d", d)
		}
	})

	t.Run("CollectsMultipleFields", func(t *testing.T) {
		req := &ReservationRequest{ServiceType: "NOPE", CustomerEmail: "bad"}
		err := req.Validate()
		require.Error(t, err)

		var ve *ValidationError
		require.True(t, errors.As(err, &ve))
		assert.Len(t, ve.Fields, 3)
	})
}

func TestExtensionRequestValidate(t *testing.T) {
	t.Run("Valid", func(t *testing.T) {
		req := &ExtensionRequest{ReservationID: "res_1", Reason: "still filling out forms"}
		assert.NoError(t, req.Validate())
	})

	t.Run("MissingID", func(t *testing.T) {
		req := &ExtensionRequest{}
		assert.Error(t, req.Validate())
	})

	t.Run("ReasonTooLong", func(t *testing.T) {
		long := make([]byte, MaxExtensionReasonLen+1)
		for i := range long {
			long[i] = 'x'
		}
		req := &ExtensionRequest{ReservationID: "res_1", Reason: string(long)}
		assert.Error(t, req.Validate())
	})
}

func TestOwnership(t *testing.T) {
	res := &SlotReservation{ID: "res_1", UserID: "u1", CustomerEmail: "a@example.com"}

	assert.True(t, res.OwnedBy("u1", ""))
	assert.True(t, res.OwnedBy("", "a@example.com"))
	assert.True(t, res.OwnedBy("u1", "other@example.com"))
	assert.False(t, res.OwnedBy("u2", ""))
	assert.False(t, res.OwnedBy("", "other@example.com"))
	assert.False(t, res.OwnedBy("", ""))

	guest := &SlotReservation{ID: "res_2", CustomerEmail: "g@example.com"}
	assert.False(t, guest.OwnedBy("", ""))
}

func TestHolderToken(t *testing.T) {
	assert.Equal(t, "u1", (&SlotReservation{ID: "r", UserID: "u1", CustomerEmail: "e@x.com"}).HolderToken())
	assert.Equal(t, "e@x.com", (&SlotReservation{ID: "r", CustomerEmail: "e@x.com"}).HolderToken())
	assert.Equal(t, "r", (&SlotReservation{ID: "r"}).HolderToken())
}

func TestMaskEmail(t *testing.T) {
	assert.Equal(t, "jo***@example.com", MaskEmail("john@example.com"))
	assert.Equal(t, "a***@example.com", MaskEmail("a@example.com"))
	assert.Equal(t, "***", MaskEmail("no-at-sign"))
	assert.Equal(t, "", MaskEmail(""))
}

func TestIsServiceType(t *testing.T) {
	for _, s := range ServiceTypes() {
		assert.True(t, IsServiceType(s))
	}
	assert.False(t, IsServiceType("standard_notary"))
	assert.False(t, IsServiceType(""))
}
