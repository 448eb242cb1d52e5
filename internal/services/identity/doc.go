// Package identity manages creation, encryption and loading of the local identity.
//
// It enforces passphrase policy, generates the X25519 key pair whose public
// half is the user's identity, and persists it via the domain.IdentityStore.
package identity
