package types

// Top-level keys of the shared graph. These must stay stable: every client
// of a pair reads and writes the same layout.
const (
	ActiveSessionsKey = "ACTIVE_SESSIONS"
	PresenceKey       = "PRESENCE"
	ContactsKey       = "CONTACTS"

	SessionIDField    = "sessionId"
	LastActivityField = "lastActivity"

	nudgePrefix  = "NUDGE_"
	typingPrefix = "TYPING_"
)

// NudgeKey is the key of a session's nudge signal.
func NudgeKey(s SessionID) string { return nudgePrefix + string(s) }

// TypingKey is the key of a session's typing signal.
func TypingKey(s SessionID) string { return typingPrefix + string(s) }

// MessagesKey is the key whose children are a session's messages.
func MessagesKey(s SessionID) string { return string(s) }
