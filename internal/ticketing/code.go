package ticketing

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"

	"github.com/google/uuid"
)

// NewTicketCode mints the opaque QR payload for one ticket: the hex
// SHA-256 of a fresh UUID concatenated with 16 random bytes.  The
// UUID alone would already be unique; the random salt and hash keep
// the payload opaque so codes cannot be enumerated or correlated.
// A uniqueness constraint on tickets.code backstops the generator.
func NewTicketCode() (string, error) {
	salt := make([]byte, 16)
	if _, err := rand.Read(salt); err != nil {
		return "", err
	}
	h := sha256.New()
	h.Write([]byte(uuid.NewString()))
	h.Write(salt)
	return hex.EncodeToString(h.Sum(nil)), nil
}
