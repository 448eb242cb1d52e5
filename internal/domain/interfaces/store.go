package interfaces

import domaintypes "pairchat/internal/domain/types"

// Unsubscribe detaches a listener. Calling it more than once is harmless.
type Unsubscribe func()

// Listener receives a value and the key it was found under. Value is nil
// when the path holds nothing.
type Listener func(value domaintypes.Value, key string)

// Store is the replicated graph shared by all clients. It offers no
// transactions, no ordering across paths, and at-least-once delivery.
type Store interface {
	Get(key string) Node
}

// Node is a handle on one path of the graph.
type Node interface {
	// Get composes a child path.
	Get(key string) Node
	// On replays the current value, if any, then every later write.
	On(cb Listener) Unsubscribe
	// Once reads the current value exactly once; cb may run asynchronously.
	Once(cb Listener)
	// Map addresses every child of this node.
	Map() Collection
	// Put merges value into the path field by field. ack may be nil.
	Put(value domaintypes.Value, ack func(error))
}

// Collection subscribes to all children of a node.
type Collection interface {
	// On replays existing children then every later change, one call per
	// child with the child's key.
	On(cb Listener) Unsubscribe
}

// Cipher is the pair encryption collaborator. Decrypt must return
// non-envelope input unchanged.
type Cipher interface {
	Encrypt(plaintext string, peer domaintypes.Identity) (string, error)
	Decrypt(payload string, peer domaintypes.Identity) (string, error)
}
