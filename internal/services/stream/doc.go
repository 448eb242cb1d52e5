// Package stream follows the message, nudge and typing feeds of one resolved
// session.
//
// Records arrive in any order, possibly more than once, and replays of old
// history look exactly like new traffic. The controller normalizes each
// record, decrypts chat content off the loop, tags it legacy or live against
// a boundary time, and folds it into a conversation.State. Nudge and typing
// signals are single overwritten records, so they are deduplicated by
// timestamp rather than by id.
//
// Attaching a different session, or detaching, bumps the generation and
// calls every unsubscribe handle of the old session. Decrypts that finish
// after that are dropped when they reach the loop.
package stream
