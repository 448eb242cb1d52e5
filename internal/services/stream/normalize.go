package stream

import "pairchat/internal/domain"

const (
	// LegacySentinel is what some old writers stored instead of content.
	LegacySentinel = "[object Object]"
	// DecryptFailedText replaces content that could not be decrypted.
	DecryptFailedText = "[unable to decrypt message]"
)

// Record fields of a message in the graph.
const (
	fieldID      = "id"
	fieldSender  = "sender"
	fieldContent = "content"
	fieldTimeRef = "timeRef"
	fieldType    = "type"
)

// reserved are graph metadata keys that can show up as children.
var reserved = map[string]bool{"_": true, "#": true, ">": true}

// disposition says what a normalized record still needs.
type disposition int

const (
	drop disposition = iota
	ready
	needsDecrypt
)

// normalize turns a raw child of the messages node into a Message. key is the
// child key, used when the record carries no id of its own. receivedAt is the
// local receipt time in epoch milliseconds.
func normalize(v domain.Value, key string, receivedAt int64) (domain.Message, disposition) {
	rec, ok := domain.AsRecord(v)
	if !ok {
		return domain.Message{}, drop
	}
	id := rec.String(fieldID)
	if id == "" {
		id = key
	}
	if id == "" || reserved[id] {
		return domain.Message{}, drop
	}
	sender := domain.Identity(rec.String(fieldSender))
	if sender == "" {
		return domain.Message{}, drop
	}

	ts, ok := rec.Int64(fieldTimeRef)
	if !ok || ts <= 0 {
		ts = receivedAt
	}
	m := domain.Message{
		ID:      id,
		Sender:  sender,
		TimeRef: ts,
		Type:    domain.MessageType(rec.String(fieldType)),
	}
	if m.Type == "" {
		m.Type = domain.MessageChat
	}

	switch {
	case m.Type == domain.MessageNudge:
		return m, ready
	case m.Type.IsGame():
		m.Content, _ = rec[fieldContent].(string)
		return m, ready
	}
	content, _ := rec[fieldContent].(string)
	if content == "" || content == LegacySentinel {
		return domain.Message{}, drop
	}
	m.Content = content
	return m, needsDecrypt
}

// MessageRecord is the graph form of m, as written by senders.
func MessageRecord(m domain.Message) domain.Record {
	return domain.Record{
		fieldID:      m.ID,
		fieldSender:  m.Sender.String(),
		fieldContent: m.Content,
		fieldTimeRef: m.TimeRef,
		fieldType:    string(m.Type),
	}
}
