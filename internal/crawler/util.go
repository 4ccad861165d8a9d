package crawler

import (
	"crypto/sha256"
	"time"

	"github.com/google/uuid"
)

func hashURL(url string) []byte {
	sum := sha256.Sum256([]byte(url))
	return sum[:8]
}

// UUIDGenerator implements IDGenerator with random UUIDs.
type UUIDGenerator struct{}

// NewID returns a new random UUID string.
func (UUIDGenerator) NewID() (string, error) { return uuid.NewString(), nil }

// SystemClock implements Clock with the real wall clock.
type SystemClock struct{}

// Now returns the current UTC time.
func (SystemClock) Now() time.Time { return time.Now().UTC() }
