// Package graphtest provides a scripted domain.Store for controller tests.
//
// Nothing is replayed automatically: tests decide exactly which values reach
// subscribers (including nulls, empties, duplicates and stale writes) with
// Emit and EmitChild, and answer Once reads with ResolveOnce. Puts are
// recorded and acknowledged immediately.
package graphtest

import (
	"sort"
	"strings"

	"pairchat/internal/domain"
)

// Put is one recorded write.
type Put struct {
	Path  string
	Value domain.Value
}

// Store is not safe for concurrent use.
type Store struct {
	Puts []Put

	subs    map[string]map[int]domain.Listener
	mapSubs map[string]map[int]domain.Listener
	once    map[string][]domain.Listener
	nextID  int
}

// New returns an empty scripted store.
func New() *Store {
	return &Store{
		subs:    make(map[string]map[int]domain.Listener),
		mapSubs: make(map[string]map[int]domain.Listener),
		once:    make(map[string][]domain.Listener),
	}
}

// Path joins keys the way the store reports them.
func Path(keys ...string) string { return strings.Join(keys, "/") }

// Get returns a handle on key.
func (s *Store) Get(key string) domain.Node { return &node{s: s, path: []string{key}} }

// Emit delivers v to every On subscriber at path.
func (s *Store) Emit(path string, v domain.Value) {
	key := path[strings.LastIndex(path, "/")+1:]
	for _, cb := range snapshot(s.subs[path]) {
		cb(v, key)
	}
}

// EmitChild delivers v under childKey to every Map subscriber at path.
func (s *Store) EmitChild(path, childKey string, v domain.Value) {
	for _, cb := range snapshot(s.mapSubs[path]) {
		cb(v, childKey)
	}
}

// ResolveOnce answers every pending Once read at path with v and reports how
// many were answered.
func (s *Store) ResolveOnce(path string, v domain.Value) int {
	pending := s.once[path]
	delete(s.once, path)
	key := path[strings.LastIndex(path, "/")+1:]
	for _, cb := range pending {
		cb(v, key)
	}
	return len(pending)
}

// PendingOnce reports unanswered Once reads at path.
func (s *Store) PendingOnce(path string) int { return len(s.once[path]) }

// Subscribers reports live On subscribers at path.
func (s *Store) Subscribers(path string) int { return len(s.subs[path]) }

// MapSubscribers reports live Map subscribers at path.
func (s *Store) MapSubscribers(path string) int { return len(s.mapSubs[path]) }

// TotalSubscribers counts every live subscription.
func (s *Store) TotalSubscribers() int {
	n := 0
	for _, m := range s.subs {
		n += len(m)
	}
	for _, m := range s.mapSubs {
		n += len(m)
	}
	return n
}

// PutsAt returns the recorded writes to path.
func (s *Store) PutsAt(path string) []Put {
	var out []Put
	for _, p := range s.Puts {
		if p.Path == path {
			out = append(out, p)
		}
	}
	return out
}

func (s *Store) add(table map[string]map[int]domain.Listener, path string, cb domain.Listener) domain.Unsubscribe {
	s.nextID++
	id := s.nextID
	if table[path] == nil {
		table[path] = make(map[int]domain.Listener)
	}
	table[path][id] = cb
	return func() {
		delete(table[path], id)
		if len(table[path]) == 0 {
			delete(table, path)
		}
	}
}

func snapshot(m map[int]domain.Listener) []domain.Listener {
	ids := make([]int, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	sort.Ints(ids) // subscription order
	out := make([]domain.Listener, 0, len(ids))
	for _, id := range ids {
		out = append(out, m[id])
	}
	return out
}

type node struct {
	s    *Store
	path []string
}

func (n *node) key() string { return Path(n.path...) }

func (n *node) Get(key string) domain.Node {
	return &node{s: n.s, path: append(append([]string(nil), n.path...), key)}
}

func (n *node) On(cb domain.Listener) domain.Unsubscribe { return n.s.add(n.s.subs, n.key(), cb) }

func (n *node) Once(cb domain.Listener) { n.s.once[n.key()] = append(n.s.once[n.key()], cb) }

func (n *node) Map() domain.Collection { return &collection{n: n} }

func (n *node) Put(v domain.Value, ack func(error)) {
	n.s.Puts = append(n.s.Puts, Put{Path: n.key(), Value: v})
	if ack != nil {
		ack(nil)
	}
}

type collection struct{ n *node }

func (c *collection) On(cb domain.Listener) domain.Unsubscribe {
	return c.n.s.add(c.n.s.mapSubs, c.n.key(), cb)
}

var _ domain.Store = (*Store)(nil)
