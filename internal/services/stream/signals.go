package stream

import "pairchat/internal/domain"

const (
	fieldFrom   = "from"
	fieldTime   = "time"
	fieldTyping = "typing"
	fieldAt     = "at"
)

// NudgeRecord is the graph form of a nudge signal.
func NudgeRecord(s domain.NudgeSignal) domain.Record {
	return domain.Record{fieldFrom: s.From.String(), fieldTime: s.Time}
}

// TypingRecord is the graph form of a typing signal.
func TypingRecord(s domain.TypingSignal) domain.Record {
	return domain.Record{fieldFrom: s.From.String(), fieldTyping: s.Typing, fieldAt: s.At}
}

func parseNudge(v domain.Value) (domain.NudgeSignal, bool) {
	rec, ok := domain.AsRecord(v)
	if !ok {
		return domain.NudgeSignal{}, false
	}
	at, ok := rec.Int64(fieldTime)
	if !ok {
		return domain.NudgeSignal{}, false
	}
	return domain.NudgeSignal{From: domain.Identity(rec.String(fieldFrom)), Time: at}, true
}

func parseTyping(v domain.Value) (domain.TypingSignal, bool) {
	rec, ok := domain.AsRecord(v)
	if !ok {
		return domain.TypingSignal{}, false
	}
	at, _ := rec.Int64(fieldAt)
	return domain.TypingSignal{
		From:   domain.Identity(rec.String(fieldFrom)),
		Typing: rec.Bool(fieldTyping),
		At:     at,
	}, true
}
