package idempotency

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Key builds a fixed-length deterministic key from parts.
func Key(parts ...any) string {
	h := sha256.New()
	for _, part := range parts {
		fmt.Fprintf(h, "%v:", part)
	}

	return hex.EncodeToString(h.Sum(nil))[:32]
}
