package utils

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"time"
)

// GenerateTransferID builds a journal id for token movements. The
// timestamp prefix keeps ids roughly sortable without a DB round trip.
func GenerateTransferID() string {
	timestamp := time.Now().Unix()
	randomNum, _ := rand.Int(rand.Reader, big.NewInt(999999999))
	return fmt.Sprintf("xfer_%d_%09d", timestamp, randomNum.Int64())
}
