package security

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"
)

// RandomSecret returns a hex string built from n random bytes.
func RandomSecret(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := io.ReadFull(rand.Reader, buf); err != nil {
		return "", fmt.Errorf("generate secret: %w", err)
	}
	return hex.EncodeToString(buf), nil
}
