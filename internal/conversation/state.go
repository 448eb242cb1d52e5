// Package conversation holds the in-memory message set of one session.
//
// State is a value: Reduce never mutates its input. An id is written at most
// once; later deliveries of the same id (replays, duplicates, a slower
// decrypt of the same record) are ignored.
package conversation

import (
	"sort"

	"pairchat/internal/domain"
)

// ActionKind selects what Reduce does.
type ActionKind int

const (
	// Reset clears the state.
	Reset ActionKind = iota
	// UpsertMessage inserts Message unless its id is already present.
	UpsertMessage
)

// Action is a reducer input.
type Action struct {
	Kind    ActionKind
	Message domain.Message
}

// ResetAction clears the conversation.
func ResetAction() Action { return Action{Kind: Reset} }

// Upsert wraps m in an UpsertMessage action.
func Upsert(m domain.Message) Action { return Action{Kind: UpsertMessage, Message: m} }

// State is a deduplicated, sorted message set.
type State struct {
	byID     map[string]domain.Message
	messages []domain.Message
}

// Len reports how many messages the state holds.
func (s State) Len() int { return len(s.messages) }

// Has reports whether id is present.
func (s State) Has(id string) bool {
	_, ok := s.byID[id]
	return ok
}

// Get returns the message stored under id.
func (s State) Get(id string) (domain.Message, bool) {
	m, ok := s.byID[id]
	return m, ok
}

// Messages returns the messages ordered by (TimeRef, ID). The slice is a
// copy.
func (s State) Messages() []domain.Message {
	return append([]domain.Message(nil), s.messages...)
}

// NonLegacyCount counts messages not tagged as legacy.
func (s State) NonLegacyCount() int {
	n := 0
	for _, m := range s.messages {
		if !m.IsLegacy {
			n++
		}
	}
	return n
}

// Reduce applies a to s.
func Reduce(s State, a Action) State {
	switch a.Kind {
	case Reset:
		return State{}
	case UpsertMessage:
		if a.Message.ID == "" || s.Has(a.Message.ID) {
			return s
		}
		byID := make(map[string]domain.Message, len(s.byID)+1)
		for id, m := range s.byID {
			byID[id] = m
		}
		byID[a.Message.ID] = a.Message
		return State{byID: byID, messages: sorted(byID)}
	}
	return s
}

func sorted(byID map[string]domain.Message) []domain.Message {
	out := make([]domain.Message, 0, len(byID))
	for _, m := range byID {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Less(out[j]) })
	return out
}
