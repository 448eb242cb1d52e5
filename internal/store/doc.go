// Package store provides file-based persistence for a pairchat client.
//
// It contains concrete implementations of the domain storage interfaces,
// serialising data as JSON on disk. All methods are concurrency-safe via
// internal locking. Stored files live under the user's configured home
// directory.
//
// The package includes stores for:
//   - Identity keys, sealed with the passphrase (IdentityFileStore)
//   - Contact aliases (AliasFileStore)
//   - Last notification time per pair (MarkFileStore)
package store
