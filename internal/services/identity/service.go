package identity

import (
	"fmt"
	"unicode"

	"pairchat/internal/crypto"
	"pairchat/internal/domain"
)

const (
	// minPassphraseLength defines the minimum number of characters required for a passphrase.
	minPassphraseLength = 12
)

var (
	// ErrWeakPassphrase is returned when the passphrase fails the strength policy.
	ErrWeakPassphrase = fmt.Errorf(
		"passphrase is too weak (must be at least %d characters and include upper, lower, "+
			"number, and symbol)",
		minPassphraseLength,
	)
)

// Service manages identity key creation and access using a backing store.
//
// The identity is a single X25519 key pair. Its public key, base64url
// encoded, is the identity other users address; the pair secret that
// encrypts a conversation is derived from it.
type Service struct {
	store domain.IdentityStore
}

// New returns an identity service backed by the given store.
func New(s domain.IdentityStore) *Service { return &Service{store: s} }

// GenerateIdentity creates a new identity, saves it encrypted with the passphrase,
// and returns the identity plus a short fingerprint of its public key.
func (s *Service) GenerateIdentity(
	passphrase string,
) (domain.Identity, domain.Fingerprint, error) {
	if !isSecurePassphrase(passphrase) {
		return "", "", ErrWeakPassphrase
	}

	keys, err := crypto.NewKeyPair()
	if err != nil {
		return "", "", fmt.Errorf("generate key pair: %w", err)
	}
	if err := s.store.SaveIdentity(passphrase, keys); err != nil {
		return "", "", err
	}
	return crypto.IdentityFromPublic(keys.Public), domain.Fingerprint(crypto.Fingerprint(keys.Public.Slice())), nil
}

// LoadIdentity decrypts the local key pair and returns it with its identity.
func (s *Service) LoadIdentity(passphrase string) (domain.KeyPair, domain.Identity, error) {
	keys, err := s.store.LoadIdentity(passphrase)
	if err != nil {
		return domain.KeyPair{}, "", err
	}
	return keys, crypto.IdentityFromPublic(keys.Public), nil
}

// FingerprintIdentity returns a short fingerprint of the local public key.
func (s *Service) FingerprintIdentity(passphrase string) (domain.Fingerprint, error) {
	keys, err := s.store.LoadIdentity(passphrase)
	if err != nil {
		return "", err
	}
	return domain.Fingerprint(crypto.Fingerprint(keys.Public.Slice())), nil
}

// isSecurePassphrase enforces a basic strength policy.
func isSecurePassphrase(passphrase string) bool {
	var hasUpper, hasLower, hasDigit, hasSymbol bool
	if len(passphrase) < minPassphraseLength {
		return false
	}
	for _, r := range passphrase {
		switch {
		case unicode.IsUpper(r):
			hasUpper = true
		case unicode.IsLower(r):
			hasLower = true
		case unicode.IsDigit(r):
			hasDigit = true
		case unicode.IsPunct(r), unicode.IsSymbol(r):
			hasSymbol = true
		}
	}
	return hasUpper && hasLower && hasDigit && hasSymbol
}

// Compile-time assertion that Service implements domain.IdentityService.
var _ domain.IdentityService = (*Service)(nil)
