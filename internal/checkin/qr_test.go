package checkin

import (
	"encoding/json"
	"testing"

	"ms-booking/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCredentialRoundTrip(t *testing.T) {
	q := NewQRGenerator("test-secret")

	payload, err := json.Marshal(qrPayload{
		TicketReference: "BT-7GKP2Q",
		PassengerName:   "Adaeze Obi",
		ScheduleID:      "sched-1",
	})
	require.NoError(t, err)

	credential, err := encryptAES(payload, q.secret)
	require.NoError(t, err)

	reference, err := q.DecodeCredential(credential)
	require.NoError(t, err)
	assert.Equal(t, "BT-7GKP2Q", reference)
}

func TestDecodeCredential_WrongKey(t *testing.T) {
	q := NewQRGenerator("test-secret")
	other := NewQRGenerator("different-secret")

	payload, err := json.Marshal(qrPayload{TicketReference: "BT-7GKP2Q"})
	require.NoError(t, err)

	credential, err := encryptAES(payload, q.secret)
	require.NoError(t, err)

	// Decrypting with the wrong key yields garbage, never a valid payload.
	_, err = other.DecodeCredential(credential)
	assert.Error(t, err)
}

func TestDecodeCredential_NotBase64(t *testing.T) {
	q := NewQRGenerator("test-secret")

	_, err := q.DecodeCredential("definitely not a credential!!")
	assert.Error(t, err)
}

func TestGenerateBoardingQR(t *testing.T) {
	q := NewQRGenerator("test-secret")

	png, err := q.GenerateBoardingQR(models.BookingItem{
		TicketReference: "BT-7GKP2Q",
		PassengerName:   "Adaeze Obi",
		ScheduleID:      "sched-1",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, png)
	// PNG magic bytes.
	assert.Equal(t, []byte{0x89, 'P', 'N', 'G'}, png[:4])
}
