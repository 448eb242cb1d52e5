// Package session resolves the single active session id of a contact pair.
//
// The pointer lives at ACTIVE_SESSIONS/{pairId}/sessionId in a store with no
// transactions, so "create if absent" is optimistic: an empty pointer arms a
// short debounce, and when it fires the pointer is read once more before a
// new id is written. Most create races end in the reconfirm read seeing the
// other side's write; the rest converge because every client follows the
// subscription to whatever write the store settles on.
//
// All controller state lives on the event loop. Every callback carries the
// generation it was started under and does nothing once that generation has
// been superseded by Resolve or Close.
package session
