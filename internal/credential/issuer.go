// Package credential mints the opaque single-use values behind the QR codes
// handed to approved registrants.
package credential

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"

	"github.com/google/uuid"
)

// Issuer produces opaque credential values. Persisting the association to a
// registration is the caller's responsibility.
type Issuer interface {
	Issue(registrationID uuid.UUID) (string, error)
}

// Generator issues URL-safe random values. 32 bytes of entropy keeps the
// collision probability negligible platform-wide, not just per event, so a
// value is globally auditable.
type Generator struct{}

// NewGenerator creates a credential generator.
func NewGenerator() *Generator {
	return &Generator{}
}

// Issue returns a fresh opaque credential value.
func (g *Generator) Issue(uuid.UUID) (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("read random: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
