package session

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"pairchat/internal/domain"
	"pairchat/internal/eventloop"
)

// DefaultCreateDebounce is how long an empty pointer must stay empty before
// this client tries to create a session.
const DefaultCreateDebounce = 800 * time.Millisecond

// Controller resolves and tracks the current session id for one pair at a
// time.
type Controller struct {
	store    domain.Store
	loop     eventloop.Scheduler
	log      *zap.Logger
	debounce time.Duration

	generation uint64
	pair       domain.PairID
	current    domain.SessionID
	timer      eventloop.Timer
	armed      bool // create timer armed or confirm read outstanding
	wrote      bool // create-write issued
	unsub      domain.Unsubscribe
	onChange   func(domain.SessionID)
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

// WithCreateDebounce overrides DefaultCreateDebounce.
func WithCreateDebounce(d time.Duration) Option {
	return func(c *Controller) {
		if d > 0 {
			c.debounce = d
		}
	}
}

// New returns an idle Controller.
func New(store domain.Store, loop eventloop.Scheduler, opts ...Option) *Controller {
	c := &Controller{
		store:    store,
		loop:     loop,
		log:      zap.NewNop(),
		debounce: DefaultCreateDebounce,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Resolve starts resolving the session of (self, peer), abandoning any
// resolution in progress. onChange runs on the loop once per distinct id.
func (c *Controller) Resolve(self, peer domain.Identity, onChange func(domain.SessionID)) {
	c.loop.Post(func() { c.start(self, peer, onChange) })
}

// Close stops tracking. Callbacks already in flight become no-ops.
func (c *Controller) Close() {
	c.loop.Post(c.teardown)
}

// Current returns the adopted session id. Call it on the loop.
func (c *Controller) Current() domain.SessionID { return c.current }

// Generation returns the current generation. Call it on the loop.
func (c *Controller) Generation() uint64 { return c.generation }

func (c *Controller) start(self, peer domain.Identity, onChange func(domain.SessionID)) {
	c.teardown()

	gen := c.generation
	c.pair = domain.NewPairID(self, peer)
	c.onChange = onChange
	c.log.Debug("resolving session", zap.String("pair", c.pair.String()), zap.Uint64("generation", gen))

	field := c.field()
	c.unsub = field.On(func(v domain.Value, _ string) {
		c.loop.Post(func() { c.observe(gen, v) })
	})
	// A subscription on a path nobody has written yet can stay silent for
	// a while; the direct read makes sure the empty case is seen.
	field.Once(func(v domain.Value, _ string) {
		c.loop.Post(func() { c.observe(gen, v) })
	})
}

func (c *Controller) teardown() {
	c.generation++
	c.stopTimer()
	if c.unsub != nil {
		c.unsub()
		c.unsub = nil
	}
	c.current = ""
	c.armed = false
	c.wrote = false
	c.onChange = nil
}

func (c *Controller) observe(gen uint64, v domain.Value) {
	if gen != c.generation {
		return
	}
	if id := parseSessionID(v); id != "" {
		c.adopt(id)
		return
	}
	if c.current != "" || c.armed || c.wrote {
		return
	}
	c.armed = true
	c.timer = c.loop.AfterFunc(c.debounce, func() { c.fire(gen) })
}

func (c *Controller) fire(gen uint64) {
	if gen != c.generation || c.current != "" {
		return
	}
	c.timer = nil
	c.field().Once(func(v domain.Value, _ string) {
		c.loop.Post(func() { c.confirm(gen, v) })
	})
}

func (c *Controller) confirm(gen uint64, v domain.Value) {
	if gen != c.generation || c.current != "" {
		return
	}
	c.armed = false
	if id := parseSessionID(v); id != "" {
		c.adopt(id)
		return
	}
	if c.wrote {
		return
	}
	c.wrote = true

	now := c.loop.Now().UnixMilli()
	id := domain.SessionID(fmt.Sprintf("%s_%d", c.pair, now))
	pair := c.pair
	c.pointer().Put(domain.Record{
		domain.SessionIDField:    id.String(),
		domain.LastActivityField: now,
	}, func(err error) {
		if err != nil {
			c.log.Warn("session create write failed", zap.String("pair", pair.String()), zap.Error(err))
		}
	})
	c.log.Info("created session", zap.String("pair", pair.String()), zap.String("session", id.String()))
	c.adopt(id)
}

func (c *Controller) adopt(id domain.SessionID) {
	c.stopTimer()
	if id == c.current {
		return
	}
	prev := c.current
	c.current = id
	c.log.Debug("session adopted",
		zap.String("pair", c.pair.String()),
		zap.String("session", id.String()),
		zap.String("previous", prev.String()))
	if c.onChange != nil {
		c.onChange(id)
	}
}

func (c *Controller) stopTimer() {
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
}

func (c *Controller) pointer() domain.Node {
	return c.store.Get(domain.ActiveSessionsKey).Get(c.pair.String())
}

func (c *Controller) field() domain.Node {
	return c.pointer().Get(domain.SessionIDField)
}

func parseSessionID(v domain.Value) domain.SessionID {
	if rec, ok := domain.AsRecord(v); ok {
		return domain.SessionID(rec.String(domain.SessionIDField))
	}
	return domain.SessionID(domain.AsString(v))
}
