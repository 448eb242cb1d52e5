package presence

import (
	"sort"
	"time"

	"go.uber.org/zap"

	"pairchat/internal/domain"
	"pairchat/internal/eventloop"
)

// Events receives coordinator output on the loop. Nil fields are skipped.
type Events struct {
	// Reachable runs once per offline to reachable transition of a contact.
	Reachable func(domain.PresenceSnapshot)
	// Changed runs whenever a contact's classified status changes.
	Changed func(domain.PresenceSnapshot)
	// Removed runs when a contact stops being eligible and its presence is
	// discarded.
	Removed func(domain.Identity)
}

// Coordinator tracks the presence of every eligible contact of self.
type Coordinator struct {
	store   domain.Store
	loop    eventloop.Scheduler
	log     *zap.Logger
	events  Events
	self    domain.Identity
	timeout time.Duration

	generation uint64
	contacts   domain.Unsubscribe
	listed     map[domain.Identity]*listing
	watched    map[domain.Identity]*watch
}

// listing is a contact self has accepted. Its presence is watched unless the
// contact's own list blocks self.
type listing struct {
	contact    domain.Identity
	blockedBy  bool
	unsubEntry domain.Unsubscribe
}

type watch struct {
	contact domain.Identity
	unsub   domain.Unsubscribe
	gate    SeqGate
	record  domain.PresenceRecord
	status  domain.PresenceStatus
	seen    bool
	expiry  eventloop.Timer
}

// CoordinatorOption configures a Coordinator.
type CoordinatorOption func(*Coordinator)

// WithCoordinatorLogger sets the logger.
func WithCoordinatorLogger(l *zap.Logger) CoordinatorOption {
	return func(c *Coordinator) {
		if l != nil {
			c.log = l
		}
	}
}

// WithHeartbeatTimeout overrides DefaultHeartbeatTimeout.
func WithHeartbeatTimeout(d time.Duration) CoordinatorOption {
	return func(c *Coordinator) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// NewCoordinator returns a stopped Coordinator for self.
func NewCoordinator(store domain.Store, loop eventloop.Scheduler, self domain.Identity, events Events, opts ...CoordinatorOption) *Coordinator {
	c := &Coordinator{
		store:   store,
		loop:    loop,
		log:     zap.NewNop(),
		events:  events,
		self:    self,
		timeout: DefaultHeartbeatTimeout,
		listed:  make(map[domain.Identity]*listing),
		watched: make(map[domain.Identity]*watch),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Start subscribes to the contact list. Starting again restarts from scratch.
func (c *Coordinator) Start() {
	c.loop.Post(c.start)
}

// Stop detaches every subscription and discards all presence.
func (c *Coordinator) Stop() {
	c.loop.Post(c.stop)
}

// Snapshots returns the watched contacts ordered by identity. Call it on the
// loop.
func (c *Coordinator) Snapshots() []domain.PresenceSnapshot {
	out := make([]domain.PresenceSnapshot, 0, len(c.watched))
	for _, w := range c.watched {
		out = append(out, w.snapshot())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Contact < out[j].Contact })
	return out
}

// Snapshot returns one contact's presence. Call it on the loop.
func (c *Coordinator) Snapshot(contact domain.Identity) (domain.PresenceSnapshot, bool) {
	w, ok := c.watched[contact]
	if !ok {
		return domain.PresenceSnapshot{}, false
	}
	return w.snapshot(), true
}

func (c *Coordinator) start() {
	c.stop()
	gen := c.generation
	c.contacts = c.store.Get(domain.ContactsKey).Get(c.self.String()).Map().On(func(v domain.Value, key string) {
		c.loop.Post(func() { c.onContact(gen, v, key) })
	})
	c.log.Debug("presence coordinator started", zap.String("self", c.self.Short()), zap.Uint64("generation", gen))
}

func (c *Coordinator) stop() {
	c.generation++
	if c.contacts != nil {
		c.contacts()
		c.contacts = nil
	}
	for id, l := range c.listed {
		l.close()
		delete(c.listed, id)
	}
	for id, w := range c.watched {
		w.close()
		delete(c.watched, id)
	}
}

func (c *Coordinator) onContact(gen uint64, v domain.Value, key string) {
	if gen != c.generation {
		return
	}
	contact := domain.Identity(key)
	if contact == "" || contact == c.self {
		return
	}
	entry, ok := domain.ContactEntryFrom(contact, v)
	accepted := ok && entry.PresenceEligible()

	l, listed := c.listed[contact]
	switch {
	case accepted && !listed:
		c.list(gen, contact)
	case !accepted && listed:
		l.close()
		delete(c.listed, contact)
	}
	c.reconcile(gen, contact)
}

// list follows the contact's entry for self, CONTACTS/{contact}/{self}.
func (c *Coordinator) list(gen uint64, contact domain.Identity) {
	l := &listing{contact: contact}
	c.listed[contact] = l
	l.unsubEntry = c.store.Get(domain.ContactsKey).Get(contact.String()).Get(c.self.String()).On(func(v domain.Value, _ string) {
		c.loop.Post(func() { c.onTheirEntry(gen, l, v) })
	})
}

func (c *Coordinator) onTheirEntry(gen uint64, l *listing, v domain.Value) {
	if gen != c.generation || c.listed[l.contact] != l {
		return
	}
	entry, ok := domain.ContactEntryFrom(c.self, v)
	blocked := ok && entry.Blocked
	if blocked == l.blockedBy {
		return
	}
	l.blockedBy = blocked
	c.log.Debug("contact changed their entry for self",
		zap.String("contact", l.contact.Short()), zap.Bool("blocked", blocked))
	c.reconcile(gen, l.contact)
}

// reconcile watches contact when self accepted it and it has not blocked
// self, and discards its presence otherwise.
func (c *Coordinator) reconcile(gen uint64, contact domain.Identity) {
	l, listed := c.listed[contact]
	eligible := listed && !l.blockedBy

	w, watching := c.watched[contact]
	switch {
	case eligible && !watching:
		c.watch(gen, contact)
	case !eligible && watching:
		w.close()
		delete(c.watched, contact)
		c.log.Debug("presence discarded", zap.String("contact", contact.Short()))
		if c.events.Removed != nil {
			c.events.Removed(contact)
		}
	}
}

func (c *Coordinator) watch(gen uint64, contact domain.Identity) {
	w := &watch{contact: contact, status: domain.StatusOffline}
	c.watched[contact] = w
	w.unsub = c.store.Get(domain.PresenceKey).Get(contact.String()).On(func(v domain.Value, _ string) {
		c.loop.Post(func() { c.onPresence(gen, w, v) })
	})
}

// current reports whether w is still the live watch of its generation. A
// contact that went ineligible and back gets a fresh watch.
func (c *Coordinator) current(gen uint64, w *watch) bool {
	return gen == c.generation && c.watched[w.contact] == w
}

func (c *Coordinator) onPresence(gen uint64, w *watch, v domain.Value) {
	if !c.current(gen, w) {
		return
	}
	rec, ok := domain.PresenceRecordFrom(v)
	if !ok {
		return
	}
	if !w.gate.Accept(rec) {
		c.log.Debug("stale presence ignored",
			zap.String("contact", w.contact.Short()),
			zap.Int64("seq", rec.HeartbeatSeq),
			zap.String("source", rec.SessionID))
		return
	}
	w.record = rec
	c.update(w, Classify(rec, c.loop.Now(), c.timeout))
	c.armExpiry(gen, w)
}

// armExpiry schedules the demotion of a reachable contact whose heartbeat
// stops arriving.
func (c *Coordinator) armExpiry(gen uint64, w *watch) {
	w.stopExpiry()
	if !w.status.Reachable() {
		return
	}
	wait := ExpiresAt(w.record, c.timeout).Sub(c.loop.Now())
	w.expiry = c.loop.AfterFunc(wait, func() { c.expire(gen, w) })
}

func (c *Coordinator) expire(gen uint64, w *watch) {
	if !c.current(gen, w) {
		return
	}
	w.expiry = nil
	c.update(w, Classify(w.record, c.loop.Now(), c.timeout))
	c.armExpiry(gen, w)
}

func (c *Coordinator) update(w *watch, status domain.PresenceStatus) {
	prev := w.status
	first := !w.seen
	w.seen = true
	w.status = status
	if !first && prev == status {
		return
	}
	snap := w.snapshot()
	if c.events.Changed != nil {
		c.events.Changed(snap)
	}
	if first || prev.Reachable() || !status.Reachable() {
		return
	}
	c.log.Debug("contact reachable", zap.String("contact", w.contact.Short()), zap.String("status", string(status)))
	if c.events.Reachable != nil {
		c.events.Reachable(snap)
	}
}

func (w *watch) snapshot() domain.PresenceSnapshot {
	return domain.PresenceSnapshot{Contact: w.contact, Status: w.status, Record: w.record}
}

func (w *watch) stopExpiry() {
	if w.expiry != nil {
		w.expiry.Stop()
		w.expiry = nil
	}
}

func (l *listing) close() {
	if l.unsubEntry != nil {
		l.unsubEntry()
		l.unsubEntry = nil
	}
}

func (w *watch) close() {
	w.stopExpiry()
	if w.unsub != nil {
		w.unsub()
		w.unsub = nil
	}
}
