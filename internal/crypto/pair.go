package crypto

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"

	"pairchat/internal/domain"
	"pairchat/internal/util/memzero"
)

// EnvelopePrefix marks ciphertext produced by PairCipher.
const EnvelopePrefix = "pc1."

var pairInfo = []byte("pairchat/v1 conversation key")

var (
	// ErrMalformedEnvelope is returned when an envelope cannot be decoded.
	ErrMalformedEnvelope = errors.New("malformed envelope")
	// ErrDecrypt is returned when an envelope fails authentication.
	ErrDecrypt = errors.New("cannot decrypt envelope")
)

// PairCipher encrypts conversation content with a key shared by exactly two
// identities: HKDF-SHA256 over their X25519 secret, salted with the pair id.
// Either side derives the same key, so a sender can read back its own
// messages by naming the other party as peer.
//
// PairCipher is safe for concurrent use.
type PairCipher struct {
	keys domain.KeyPair
	self domain.Identity

	mu    sync.Mutex
	cache map[domain.Identity][]byte
}

// NewPairCipher returns a cipher for the local key pair.
func NewPairCipher(keys domain.KeyPair) *PairCipher {
	return &PairCipher{
		keys:  keys,
		self:  IdentityFromPublic(keys.Public),
		cache: make(map[domain.Identity][]byte),
	}
}

// IsEnvelope reports whether payload looks like PairCipher output.
func IsEnvelope(payload string) bool { return strings.HasPrefix(payload, EnvelopePrefix) }

// Encrypt seals plaintext for the pair (self, peer).
func (c *PairCipher) Encrypt(plaintext string, peer domain.Identity) (string, error) {
	key, err := c.key(peer)
	if err != nil {
		return "", err
	}
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return "", err
	}
	nonce := make([]byte, aead.NonceSize(), aead.NonceSize()+len(plaintext)+aead.Overhead())
	if _, err := rand.Read(nonce); err != nil {
		return "", err
	}
	sealed := aead.Seal(nonce, nonce, []byte(plaintext), []byte(domain.NewPairID(c.self, peer)))
	return EnvelopePrefix + base64.RawURLEncoding.EncodeToString(sealed), nil
}

// Decrypt opens an envelope for the pair (self, peer). Anything that is not
// an envelope is returned unchanged.
func (c *PairCipher) Decrypt(payload string, peer domain.Identity) (string, error) {
	if !IsEnvelope(payload) {
		return payload, nil
	}
	raw, err := base64.RawURLEncoding.DecodeString(strings.TrimPrefix(payload, EnvelopePrefix))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrMalformedEnvelope, err)
	}
	key, err := c.key(peer)
	if err != nil {
		return "", err
	}
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return "", err
	}
	if len(raw) < aead.NonceSize()+aead.Overhead() {
		return "", ErrMalformedEnvelope
	}
	nonce, ct := raw[:aead.NonceSize()], raw[aead.NonceSize():]
	pt, err := aead.Open(nil, nonce, ct, []byte(domain.NewPairID(c.self, peer)))
	if err != nil {
		return "", ErrDecrypt
	}
	return string(pt), nil
}

func (c *PairCipher) key(peer domain.Identity) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if k, ok := c.cache[peer]; ok {
		return k, nil
	}

	peerPub, err := ParseIdentity(peer)
	if err != nil {
		return nil, err
	}
	secret, err := DH(c.keys.Private, peerPub)
	if err != nil {
		return nil, err
	}
	defer memzero.Zero32(&secret)

	key := make([]byte, chacha20poly1305.KeySize)
	r := hkdf.New(sha256.New, secret[:], []byte(domain.NewPairID(c.self, peer)), pairInfo)
	if _, err := io.ReadFull(r, key); err != nil {
		return nil, err
	}
	c.cache[peer] = key
	return key, nil
}

var _ domain.Cipher = (*PairCipher)(nil)
