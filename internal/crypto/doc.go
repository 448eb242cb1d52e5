// Package crypto exposes the minimal primitives used by pairchat.
//
// Contents
//
//   - X25519 key generation, clamping and Diffie–Hellman (GenerateX25519,
//     NewKeyPair, DH)
//   - Identity encoding: an identity is the unpadded base64url form of an
//     X25519 public key (IdentityFromPublic, ParseIdentity)
//   - PairCipher, the per-pair content cipher (XChaCha20-Poly1305 under an
//     HKDF key salted with the pair id)
//   - Short public-key fingerprints for display/logging (Fingerprint)
//
// # Notes
//
// Decrypt is backward compatible: input without the envelope prefix is
// treated as plaintext written by an older client and returned as is.
package crypto
