// Package message writes outgoing traffic into a session of the shared graph.
//
// Chat content is sealed for the pair before it leaves the process; nudges
// and game events are written as plaintext records. Every send also bumps
// the session pointer's lastActivity so other clients can tell a live
// session from an abandoned one.
package message
