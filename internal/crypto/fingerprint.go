package crypto

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"pairchat/internal/domain"
)

// Fingerprint returns a short hex fingerprint of a public key.
//
// It hashes with SHA-256 and truncates to 10 bytes (20 hex chars).
func Fingerprint(pub []byte) string {
	sum := sha256.Sum256(pub)
	return hex.EncodeToString(sum[:10])
}

// FingerprintIdentity fingerprints the key behind an identity.
func FingerprintIdentity(id domain.Identity) (domain.Fingerprint, error) {
	pub, err := ParseIdentity(id)
	if err != nil {
		return "", err
	}
	return domain.Fingerprint(Fingerprint(pub[:])), nil
}

// FormatFingerprint groups a fingerprint in blocks of four for reading aloud.
func FormatFingerprint(fp domain.Fingerprint) string {
	s := string(fp)
	var b strings.Builder
	for i := 0; i < len(s); i += 4 {
		if i > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(s[i:min(i+4, len(s))])
	}
	return b.String()
}
