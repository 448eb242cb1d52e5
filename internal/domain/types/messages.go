package types

// MessageType distinguishes chat traffic from protocol side events carried in
// the same stream.
type MessageType string

const (
	MessageChat        MessageType = "chat"
	MessageNudge       MessageType = "nudge"
	MessageGameInvite  MessageType = "gameinvite"
	MessageGameAccept  MessageType = "gameaccept"
	MessageGameDecline MessageType = "gamedecline"
)

// IsGame reports whether t belongs to the game protocol. Game payloads are
// plaintext on the wire.
func (t MessageType) IsGame() bool {
	switch t {
	case MessageGameInvite, MessageGameAccept, MessageGameDecline:
		return true
	}
	return false
}

// Message is one normalized entry of a session's stream.
type Message struct {
	ID      string      `json:"id"`
	Sender  Identity    `json:"sender"`
	Content string      `json:"content"`
	TimeRef int64       `json:"timeRef"` // epoch milliseconds
	Type    MessageType `json:"type"`

	// IsLegacy is derived locally: the message predates the viewer's last
	// known notification point.
	IsLegacy bool `json:"-"`
}

// Less orders messages by (TimeRef, ID).
func (m Message) Less(o Message) bool {
	if m.TimeRef != o.TimeRef {
		return m.TimeRef < o.TimeRef
	}
	return m.ID < o.ID
}

// SessionPointer is the record stored at ACTIVE_SESSIONS/{pairId}.
type SessionPointer struct {
	SessionID    SessionID `json:"sessionId"`
	LastActivity int64     `json:"lastActivity"`
}

// NudgeSignal is the single overwritten record at NUDGE_{sessionId}.
type NudgeSignal struct {
	From Identity `json:"from"`
	Time int64    `json:"time"`
}

// TypingSignal is the single overwritten record at TYPING_{sessionId}.
type TypingSignal struct {
	From   Identity `json:"from"`
	Typing bool     `json:"typing"`
	At     int64    `json:"at"`
}
