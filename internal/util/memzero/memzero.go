// Package memzero wipes key material from memory once it is no longer needed.
package memzero

import "crypto/subtle"

// Zero overwrites b with zeros in a constant-time friendly way.
func Zero(b []byte) {
	if len(b) == 0 {
		return
	}
	zero := make([]byte, len(b))
	subtle.ConstantTimeCopy(1, b, zero)
}

// Zero32 wipes a fixed-size key or shared secret.
func Zero32(k *[32]byte) {
	if k == nil {
		return
	}
	Zero(k[:])
}
