package utils

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"time"
)

const referenceAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

// GenerateTicketReference creates a short human-readable boarding reference,
// e.g. BT-7KQ2M9. Ambiguous characters (0/O, 1/I) are excluded.
func GenerateTicketReference() string {
	ref := make([]byte, 6)
	for i := range ref {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(len(referenceAlphabet))))
		if err != nil {
			return fmt.Sprintf("BT-%d", time.Now().UnixNano()%1000000)
		}
		ref[i] = referenceAlphabet[n.Int64()]
	}
	return "BT-" + string(ref)
}

func GeneratePaymentID() string {
	timestamp := time.Now().Unix()
	randomNum, _ := rand.Int(rand.Reader, big.NewInt(999999))
	return fmt.Sprintf("pay_%d_%06d", timestamp, randomNum.Int64())
}
