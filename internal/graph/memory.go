package graph

import (
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"

	"pairchat/internal/domain"
)

// Journal persists whole nodes after every write.
type Journal interface {
	SaveNode(path []string, node domain.Record) error
	LoadNodes(fn func(path []string, node domain.Record)) error
}

// Memory is an in-process graph. It is safe for concurrent use; callbacks
// run on the writer's goroutine after the graph lock is released.
type Memory struct {
	log     *zap.Logger
	journal Journal

	mu       sync.Mutex
	nodes    map[string]domain.Record
	children map[string]map[string]struct{}
	subs     map[string]map[uint64]domain.Listener
	mapSubs  map[string]map[uint64]domain.Listener
	nextID   uint64
}

// Option configures a Memory.
type Option func(*Memory)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(m *Memory) {
		if l != nil {
			m.log = l
		}
	}
}

// WithJournal persists every written node to j.
func WithJournal(j Journal) Option {
	return func(m *Memory) { m.journal = j }
}

// NewMemory returns an empty graph, restored from the journal when one is
// configured.
func NewMemory(opts ...Option) (*Memory, error) {
	m := &Memory{
		log:      zap.NewNop(),
		nodes:    make(map[string]domain.Record),
		children: make(map[string]map[string]struct{}),
		subs:     make(map[string]map[uint64]domain.Listener),
		mapSubs:  make(map[string]map[uint64]domain.Listener),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.journal != nil {
		err := m.journal.LoadNodes(func(path []string, node domain.Record) {
			m.nodes[pathKey(path)] = node.Clone()
			m.link(path)
		})
		if err != nil {
			return nil, err
		}
		m.log.Debug("graph restored", zap.Int("nodes", len(m.nodes)))
	}
	return m, nil
}

// Get returns a handle on the top-level key.
func (m *Memory) Get(key string) domain.Node {
	return &node{g: m, path: []string{key}}
}

type delivery struct {
	cb    domain.Listener
	value domain.Value
	key   string
}

// valueAt returns what an On subscriber at path sees. Caller holds mu.
func (m *Memory) valueAt(path []string) domain.Value {
	if rec, ok := m.nodes[pathKey(path)]; ok {
		return rec.Clone()
	}
	if len(path) < 2 {
		return nil
	}
	parent, ok := m.nodes[pathKey(path[:len(path)-1])]
	if !ok {
		return nil
	}
	return parent[path[len(path)-1]]
}

// childrenOf lists (key, value) pairs under path in key order. Caller holds mu.
func (m *Memory) childrenOf(path []string) []delivery {
	key := pathKey(path)
	seen := make(map[string]domain.Value)
	if rec, ok := m.nodes[key]; ok {
		for k, v := range rec {
			seen[k] = v
		}
	}
	for child := range m.children[key] {
		seen[child] = m.nodes[pathKey(append(clonePath(path), child))].Clone()
	}
	keys := make([]string, 0, len(seen))
	for k := range seen {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]delivery, 0, len(keys))
	for _, k := range keys {
		out = append(out, delivery{value: seen[k], key: k})
	}
	return out
}

func (m *Memory) subscribe(path []string, cb domain.Listener, collection bool) domain.Unsubscribe {
	key := pathKey(path)

	m.mu.Lock()
	m.nextID++
	id := m.nextID
	table := m.subs
	if collection {
		table = m.mapSubs
	}
	if table[key] == nil {
		table[key] = make(map[uint64]domain.Listener)
	}
	table[key][id] = cb

	var replay []delivery
	if collection {
		replay = m.childrenOf(path)
	} else if v := m.valueAt(path); v != nil {
		replay = []delivery{{value: v, key: path[len(path)-1]}}
	}
	m.mu.Unlock()

	for _, d := range replay {
		cb(d.value, d.key)
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			m.mu.Lock()
			delete(table[key], id)
			if len(table[key]) == 0 {
				delete(table, key)
			}
			m.mu.Unlock()
		})
	}
}

func (m *Memory) once(path []string, cb domain.Listener) {
	m.mu.Lock()
	v := m.valueAt(path)
	m.mu.Unlock()
	cb(v, path[len(path)-1])
}

func (m *Memory) put(path []string, value domain.Value) error {
	m.mu.Lock()
	var (
		out     []delivery
		touched = make(map[string][]string)
	)
	if rec, ok := domain.AsRecord(value); ok {
		m.putRecord(path, rec, &out, touched)
	} else {
		m.putField(path, value, &out, touched)
	}
	var saveErr error
	if m.journal != nil {
		for _, p := range touched {
			if err := m.journal.SaveNode(p, m.nodes[pathKey(p)].Clone()); err != nil && saveErr == nil {
				saveErr = err
			}
		}
	}
	m.mu.Unlock()

	for _, d := range out {
		d.cb(d.value, d.key)
	}
	if saveErr != nil {
		m.log.Warn("graph journal write failed", zap.Error(saveErr))
	}
	return saveErr
}

// putRecord merges rec into the node at path. Nested records become child
// nodes. Caller holds mu.
func (m *Memory) putRecord(path []string, rec domain.Record, out *[]delivery, touched map[string][]string) {
	key := pathKey(path)
	node, ok := m.nodes[key]
	if !ok {
		node = make(domain.Record)
		m.nodes[key] = node
	}
	m.link(path)
	touched[key] = clonePath(path)

	fields := make([]string, 0, len(rec))
	for k := range rec {
		fields = append(fields, k)
	}
	sort.Strings(fields)
	for _, k := range fields {
		v := rec[k]
		if nested, ok := domain.AsRecord(v); ok {
			m.putRecord(append(clonePath(path), k), nested, out, touched)
			continue
		}
		node[k] = v
		m.collect(m.subs[pathKey(append(clonePath(path), k))], v, k, out)
		m.collect(m.mapSubs[key], v, k, out)
	}

	last := path[len(path)-1]
	m.collect(m.subs[key], node.Clone(), last, out)
	if len(path) > 1 {
		m.collect(m.mapSubs[pathKey(path[:len(path)-1])], node.Clone(), last, out)
	}
}

// putField stores a scalar as a field of the parent node. Caller holds mu.
func (m *Memory) putField(path []string, value domain.Value, out *[]delivery, touched map[string][]string) {
	last := path[len(path)-1]
	if len(path) == 1 {
		// A scalar at the root has nowhere to live; keep it as a
		// single-field node so subscribers still see it.
		m.putRecord(path, domain.Record{last: value}, out, touched)
		return
	}
	parentPath := path[:len(path)-1]
	parentKey := pathKey(parentPath)
	parent, ok := m.nodes[parentKey]
	if !ok {
		parent = make(domain.Record)
		m.nodes[parentKey] = parent
	}
	m.link(parentPath)
	parent[last] = value
	touched[parentKey] = clonePath(parentPath)

	m.collect(m.subs[pathKey(path)], value, last, out)
	m.collect(m.mapSubs[parentKey], value, last, out)
	m.collect(m.subs[parentKey], parent.Clone(), parentPath[len(parentPath)-1], out)
	if len(parentPath) > 1 {
		m.collect(m.mapSubs[pathKey(parentPath[:len(parentPath)-1])], parent.Clone(), parentPath[len(parentPath)-1], out)
	}
}

func (m *Memory) collect(subs map[uint64]domain.Listener, v domain.Value, key string, out *[]delivery) {
	if len(subs) == 0 {
		return
	}
	ids := make([]uint64, 0, len(subs))
	for id := range subs {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	for _, id := range ids {
		*out = append(*out, delivery{cb: subs[id], value: v, key: key})
	}
}

// link records every ancestor edge of path. Caller holds mu.
func (m *Memory) link(path []string) {
	for i := 1; i < len(path); i++ {
		parent := pathKey(path[:i])
		if m.children[parent] == nil {
			m.children[parent] = make(map[string]struct{})
		}
		m.children[parent][path[i]] = struct{}{}
	}
}

type node struct {
	g    *Memory
	path []string
}

func (n *node) Get(key string) domain.Node {
	return &node{g: n.g, path: append(clonePath(n.path), key)}
}

func (n *node) On(cb domain.Listener) domain.Unsubscribe { return n.g.subscribe(n.path, cb, false) }

func (n *node) Once(cb domain.Listener) { n.g.once(n.path, cb) }

func (n *node) Map() domain.Collection { return &collection{g: n.g, path: n.path} }

func (n *node) Put(value domain.Value, ack func(error)) {
	err := n.g.put(n.path, value)
	if ack != nil {
		ack(err)
	}
}

type collection struct {
	g    *Memory
	path []string
}

func (c *collection) On(cb domain.Listener) domain.Unsubscribe {
	return c.g.subscribe(c.path, cb, true)
}

const pathSep = "\x1f"

func pathKey(path []string) string { return strings.Join(path, pathSep) }

func splitPathKey(key string) []string { return strings.Split(key, pathSep) }

func clonePath(p []string) []string { return append([]string(nil), p...) }

var _ domain.Store = (*Memory)(nil)
