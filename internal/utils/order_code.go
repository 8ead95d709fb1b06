package utils

import (
	"crypto/rand"
	"fmt"
	"math/big"
)

const (
	orderCodeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	OrderCodeLength   = 8
)

// GenerateOrderCode returns an 8 character uppercase alphanumeric code
// (36^8 possibilities).
func GenerateOrderCode() (string, error) {
	max := big.NewInt(int64(len(orderCodeAlphabet)))
	b := make([]byte, OrderCodeLength)
	for i := range b {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("generate order code: %w", err)
		}
		b[i] = orderCodeAlphabet[n.Int64()]
	}
	return string(b), nil
}
