package engine

import (
	"crypto/rand"
	"time"
)

// nowTimestamp mirrors the teacher's server-side handshake timestamp: current
// Unix time in milliseconds truncated to 32 bits.
func nowTimestamp() uint32 {
	return uint32(time.Now().UnixMilli() & 0xFFFFFFFF)
}

// randFill fills b with cryptographically random bytes, matching the
// teacher's S1 random-field construction.
func randFill(b []byte) error {
	_, err := rand.Read(b)
	return err
}
