package types

import (
	"sort"
	"strings"
)

// Identity is a participant's public identity: the unpadded base64url
// encoding of their X25519 public key.
type Identity string

// String returns the string form of the identity.
func (id Identity) String() string { return string(id) }

// Short returns a truncated form for display and logging.
func (id Identity) Short() string {
	if len(id) <= 8 {
		return string(id)
	}
	return string(id[:8])
}

// Fingerprint is a short identifier for public keys presented to users.
type Fingerprint string

// String returns the string form of the fingerprint.
func (f Fingerprint) String() string { return string(f) }

// PairID identifies the relationship between two identities regardless of
// which side computes it.
type PairID string

// String returns the string form of the pair identifier.
func (p PairID) String() string { return string(p) }

// NewPairID returns the order-independent id for a and b.
func NewPairID(a, b Identity) PairID {
	ids := []string{string(a), string(b)}
	sort.Strings(ids)
	return PairID(strings.Join(ids, "_"))
}

// SessionID names the active message stream of a pair.
type SessionID string

// String returns the string form of the session identifier.
func (s SessionID) String() string { return string(s) }

// IsZero reports whether no session has been resolved.
func (s SessionID) IsZero() bool { return s == "" }
