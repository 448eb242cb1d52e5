package crypto

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"pairchat/internal/domain"
)

// ErrInvalidIdentity is returned for strings that are not an encoded public key.
var ErrInvalidIdentity = errors.New("invalid identity")

// B64 returns standard base64 encoding without newlines.
func B64(b []byte) string { return base64.StdEncoding.EncodeToString(b) }

// IdentityFromPublic encodes pub as an identity.
func IdentityFromPublic(pub domain.X25519Public) domain.Identity {
	return domain.Identity(base64.RawURLEncoding.EncodeToString(pub[:]))
}

// ParseIdentity decodes an identity back into its public key.
func ParseIdentity(id domain.Identity) (domain.X25519Public, error) {
	var pub domain.X25519Public
	raw, err := base64.RawURLEncoding.DecodeString(strings.TrimSpace(id.String()))
	if err != nil {
		return pub, fmt.Errorf("%w: %v", ErrInvalidIdentity, err)
	}
	if len(raw) != len(pub) {
		return pub, fmt.Errorf("%w: want %d bytes, got %d", ErrInvalidIdentity, len(pub), len(raw))
	}
	copy(pub[:], raw)
	return pub, nil
}
