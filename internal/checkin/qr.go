package checkin

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"

	"ms-booking/internal/models"

	"github.com/skip2/go-qrcode"
)

// qrPayload is what actually travels inside the boarding QR. Only the
// reference is needed to resolve the booking item; the rest lets gate staff
// eyeball the scan result against the passenger.
type qrPayload struct {
	TicketReference string `json:"ticket_reference"`
	PassengerName   string `json:"passenger_name"`
	ScheduleID      string `json:"schedule_id"`
}

type QRGenerator struct {
	secret []byte
}

func NewQRGenerator(secret string) *QRGenerator {
	hashed := sha256.Sum256([]byte(secret)) // normalize to 32 bytes
	return &QRGenerator{secret: hashed[:]}
}

// GenerateBoardingQR renders an encrypted QR image for one booking item.
func (q *QRGenerator) GenerateBoardingQR(item models.BookingItem) ([]byte, error) {
	data, err := json.Marshal(qrPayload{
		TicketReference: item.TicketReference,
		PassengerName:   item.PassengerName,
		ScheduleID:      item.ScheduleID,
	})
	if err != nil {
		return nil, err
	}

	encrypted, err := encryptAES(data, q.secret)
	if err != nil {
		return nil, err
	}

	return qrcode.Encode(encrypted, qrcode.Medium, 256)
}

// DecodeCredential recovers the ticket reference from a scanned QR string.
func (q *QRGenerator) DecodeCredential(credential string) (string, error) {
	plaintext, err := decryptAES(credential, q.secret)
	if err != nil {
		return "", err
	}
	var payload qrPayload
	if err := json.Unmarshal(plaintext, &payload); err != nil {
		return "", err
	}
	if payload.TicketReference == "" {
		return "", errors.New("credential has no ticket reference")
	}
	return payload.TicketReference, nil
}

func encryptAES(data []byte, key []byte) (string, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return "", err
	}

	ciphertext := make([]byte, aes.BlockSize+len(data))
	iv := ciphertext[:aes.BlockSize]

	if _, err := io.ReadFull(rand.Reader, iv); err != nil {
		return "", err
	}

	stream := cipher.NewCFBEncrypter(block, iv)
	stream.XORKeyStream(ciphertext[aes.BlockSize:], data)

	return base64.URLEncoding.EncodeToString(ciphertext), nil
}

func decryptAES(encoded string, key []byte) ([]byte, error) {
	ciphertext, err := base64.URLEncoding.DecodeString(encoded)
	if err != nil {
		return nil, err
	}
	if len(ciphertext) < aes.BlockSize {
		return nil, errors.New("ciphertext too short")
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}

	iv := ciphertext[:aes.BlockSize]
	data := make([]byte, len(ciphertext)-aes.BlockSize)

	stream := cipher.NewCFBDecrypter(block, iv)
	stream.XORKeyStream(data, ciphertext[aes.BlockSize:])

	return data, nil
}
