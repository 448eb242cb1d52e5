// Package presence publishes the local heartbeat and watches contacts'.
//
// A Publisher owns PRESENCE/{self} and is its only writer. A Coordinator
// follows CONTACTS/{self}, watches PRESENCE/{contact} for every contact the
// caller may see, and reports each offline to reachable transition once.
// Records are classified by heartbeat age and gated by sequence number per
// source process, so replays and reordered writes cannot move a contact
// backwards.
package presence
