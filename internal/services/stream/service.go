package stream

import (
	"time"

	"go.uber.org/zap"

	"pairchat/internal/conversation"
	"pairchat/internal/domain"
	"pairchat/internal/eventloop"
)

const (
	// DefaultTypingFreshness is how old a typing-on signal may be on receipt
	// and still be shown.
	DefaultTypingFreshness = 4 * time.Second
	// DefaultTypingIdle clears the indicator after this much silence.
	DefaultTypingIdle = 3 * time.Second

	notifiedSlack = 2000 // ms subtracted from the last notification time
	attachSlack   = 1000 // ms subtracted from the attach time
)

// Registry keys of the per-session subscriptions.
const (
	subMessages = "messages"
	subNudge    = "nudge"
	subTyping   = "typing"
)

// Events receives controller output on the loop. Nil fields are skipped.
type Events struct {
	// Messages runs after every change of the conversation.
	Messages func(session domain.SessionID, state conversation.State)
	// Nudge runs once per new nudge from the peer.
	Nudge func(session domain.SessionID, n domain.NudgeSignal)
	// Typing runs when the peer's typing indicator changes.
	Typing func(session domain.SessionID, typing bool)
}

// Controller streams one session of the pair (self, peer) at a time.
type Controller struct {
	store  domain.Store
	loop   eventloop.Scheduler
	cipher domain.Cipher
	marks  domain.MarkStore
	log    *zap.Logger
	events Events

	self, peer      domain.Identity
	typingFreshness time.Duration
	typingIdle      time.Duration

	generation  uint64
	session     domain.SessionID
	boundary    int64
	state       conversation.State
	decrypting  map[string]bool
	subs        map[string]domain.Unsubscribe
	lastNudgeAt int64
	typing      bool
	typingTimer eventloop.Timer
}

// Option configures a Controller.
type Option func(*Controller)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *Controller) {
		if l != nil {
			c.log = l
		}
	}
}

// WithMarks supplies the last-notification times used for the legacy
// boundary.
func WithMarks(m domain.MarkStore) Option {
	return func(c *Controller) { c.marks = m }
}

// WithTypingTimeouts overrides DefaultTypingFreshness and DefaultTypingIdle.
// Zero keeps the default.
func WithTypingTimeouts(freshness, idle time.Duration) Option {
	return func(c *Controller) {
		if freshness > 0 {
			c.typingFreshness = freshness
		}
		if idle > 0 {
			c.typingIdle = idle
		}
	}
}

// New returns a detached Controller for the pair (self, peer).
func New(
	store domain.Store,
	loop eventloop.Scheduler,
	cipher domain.Cipher,
	self, peer domain.Identity,
	events Events,
	opts ...Option,
) *Controller {
	c := &Controller{
		store:           store,
		loop:            loop,
		cipher:          cipher,
		log:             zap.NewNop(),
		events:          events,
		self:            self,
		peer:            peer,
		typingFreshness: DefaultTypingFreshness,
		typingIdle:      DefaultTypingIdle,
		subs:            make(map[string]domain.Unsubscribe),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Attach switches the controller to session. Attaching the session that is
// already attached does nothing.
func (c *Controller) Attach(session domain.SessionID) {
	c.loop.Post(func() { c.attach(session) })
}

// Detach stops streaming.
func (c *Controller) Detach() {
	c.loop.Post(c.detach)
}

// Session returns the attached session. Call it on the loop.
func (c *Controller) Session() domain.SessionID { return c.session }

// State returns the current conversation. Call it on the loop.
func (c *Controller) State() conversation.State { return c.state }

// Boundary returns the legacy boundary in epoch milliseconds. Call it on the
// loop.
func (c *Controller) Boundary() int64 { return c.boundary }

// Typing reports whether the peer is shown as typing. Call it on the loop.
func (c *Controller) Typing() bool { return c.typing }

// Generation returns the current generation. Call it on the loop.
func (c *Controller) Generation() uint64 { return c.generation }

// Subscriptions reports how many store subscriptions are live. Call it on
// the loop.
func (c *Controller) Subscriptions() int { return len(c.subs) }

func (c *Controller) attach(session domain.SessionID) {
	if session == c.session && !session.IsZero() {
		return
	}
	c.detach()
	if session.IsZero() {
		return
	}

	gen := c.generation
	c.session = session
	c.boundary, c.lastNudgeAt = c.boundaries()
	c.log.Debug("attaching stream",
		zap.String("session", session.String()),
		zap.Uint64("generation", gen),
		zap.Int64("boundary", c.boundary))

	c.subs[subMessages] = c.store.Get(domain.MessagesKey(session)).Map().On(func(v domain.Value, key string) {
		c.loop.Post(func() { c.onRecord(gen, v, key) })
	})
	c.subs[subNudge] = c.store.Get(domain.NudgeKey(session)).On(func(v domain.Value, _ string) {
		c.loop.Post(func() { c.onNudge(gen, v) })
	})
	c.subs[subTyping] = c.store.Get(domain.TypingKey(session)).On(func(v domain.Value, _ string) {
		c.loop.Post(func() { c.onTyping(gen, v) })
	})
	c.emitMessages()
}

func (c *Controller) detach() {
	c.generation++
	for key, unsub := range c.subs {
		unsub()
		delete(c.subs, key)
	}
	c.stopTypingTimer()
	wasTyping := c.typing
	prev := c.session

	c.session = ""
	c.boundary = 0
	c.lastNudgeAt = 0
	c.typing = false
	c.decrypting = make(map[string]bool)
	c.state = conversation.Reduce(c.state, conversation.ResetAction())

	if wasTyping && c.events.Typing != nil {
		c.events.Typing(prev, false)
	}
}

// boundaries returns the legacy boundary and the nudge floor. Nudges at or
// before the last notification were already shown, so the floor is the mark
// itself without the legacy slack.
func (c *Controller) boundaries() (legacy, nudge int64) {
	now := c.loop.Now().UnixMilli()
	if c.marks == nil {
		return now - attachSlack, now - attachSlack
	}
	at, ok, err := c.marks.LastNotified(domain.NewPairID(c.self, c.peer))
	if err != nil {
		c.log.Debug("notification mark unavailable", zap.Error(err))
		return now - attachSlack, now - attachSlack
	}
	if !ok {
		return now - attachSlack, now - attachSlack
	}
	return at.UnixMilli() - notifiedSlack, at.UnixMilli()
}

func (c *Controller) onRecord(gen uint64, v domain.Value, key string) {
	if gen != c.generation {
		return
	}
	m, disp := normalize(v, key, c.loop.Now().UnixMilli())
	if disp == drop {
		c.log.Debug("dropping malformed record", zap.String("key", key))
		return
	}
	if c.state.Has(m.ID) || c.decrypting[m.ID] {
		return
	}
	m.IsLegacy = m.TimeRef < c.boundary
	if disp == ready {
		c.apply(gen, m)
		return
	}

	c.decrypting[m.ID] = true
	cipher, peer, log := c.cipher, c.peer, c.log
	c.loop.Go(func() {
		plain, err := cipher.Decrypt(m.Content, peer)
		if err != nil {
			log.Debug("decrypt failed", zap.String("id", m.ID), zap.Error(err))
			plain = DecryptFailedText
		}
		m.Content = plain
		c.loop.Post(func() { c.apply(gen, m) })
	})
}

func (c *Controller) apply(gen uint64, m domain.Message) {
	if gen != c.generation {
		return
	}
	delete(c.decrypting, m.ID)
	next := conversation.Reduce(c.state, conversation.Upsert(m))
	if next.Len() == c.state.Len() {
		return
	}
	c.state = next
	c.emitMessages()
}

func (c *Controller) emitMessages() {
	if c.events.Messages != nil {
		c.events.Messages(c.session, c.state)
	}
}

func (c *Controller) onNudge(gen uint64, v domain.Value) {
	if gen != c.generation {
		return
	}
	n, ok := parseNudge(v)
	if !ok || n.From != c.peer || n.Time <= c.lastNudgeAt {
		return
	}
	c.lastNudgeAt = n.Time
	c.log.Debug("nudge", zap.String("session", c.session.String()), zap.Int64("time", n.Time))
	if c.events.Nudge != nil {
		c.events.Nudge(c.session, n)
	}
}

func (c *Controller) onTyping(gen uint64, v domain.Value) {
	if gen != c.generation {
		return
	}
	sig, ok := parseTyping(v)
	if !ok || sig.From != c.peer {
		return
	}
	if !sig.Typing {
		c.setTyping(false)
		return
	}
	age := time.Duration(c.loop.Now().UnixMilli()-sig.At) * time.Millisecond
	if age < 0 {
		age = -age
	}
	if age > c.typingFreshness {
		return
	}
	c.setTyping(true)
	c.stopTypingTimer()
	c.typingTimer = c.loop.AfterFunc(c.typingIdle, func() {
		if gen != c.generation {
			return
		}
		c.typingTimer = nil
		c.setTyping(false)
	})
}

func (c *Controller) setTyping(on bool) {
	if !on {
		c.stopTypingTimer()
	}
	if on == c.typing {
		return
	}
	c.typing = on
	if c.events.Typing != nil {
		c.events.Typing(c.session, on)
	}
}

func (c *Controller) stopTypingTimer() {
	if c.typingTimer != nil {
		c.typingTimer.Stop()
		c.typingTimer = nil
	}
}
