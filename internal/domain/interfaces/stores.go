package interfaces

import (
	"time"

	domaintypes "pairchat/internal/domain/types"
)

// IdentityStore persists your long-term identity keys.
type IdentityStore interface {
	SaveIdentity(passphrase string, keys domaintypes.KeyPair) error
	LoadIdentity(passphrase string) (domaintypes.KeyPair, error)
}

// MarkStore remembers, per pair, the newest message time the user has been
// notified about.
type MarkStore interface {
	LastNotified(pair domaintypes.PairID) (time.Time, bool, error)
	MarkNotified(pair domaintypes.PairID, at time.Time) error
}

// AliasStore maps local nicknames to identities.
type AliasStore interface {
	SaveAlias(name string, id domaintypes.Identity) error
	ResolveAlias(name string) (domaintypes.Identity, bool, error)
	ListAliases() (map[string]domaintypes.Identity, error)
}
