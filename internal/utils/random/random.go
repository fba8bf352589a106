package random

import (
	"crypto/rand"
	"fmt"
	"math/big"
)

// Alphanumeric is the alphabet of one-time hand-off tokens.
const Alphanumeric = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

// String returns n characters drawn uniformly from alphabet using crypto/rand.
func String(n int, alphabet string) (string, error) {
	if len(alphabet) == 0 {
		return "", fmt.Errorf("empty alphabet")
	}
	max := big.NewInt(int64(len(alphabet)))
	b := make([]byte, n)
	for i := range b {
		idx, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("failed to generate random number: %w", err)
		}
		b[i] = alphabet[idx.Int64()]
	}
	return string(b), nil
}
