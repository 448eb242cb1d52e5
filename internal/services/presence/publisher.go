package presence

import (
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"pairchat/internal/domain"
	"pairchat/internal/eventloop"
)

// Publisher writes the local heartbeat to PRESENCE/{self}.
type Publisher struct {
	store    domain.Store
	loop     eventloop.Scheduler
	log      *zap.Logger
	self     domain.Identity
	interval time.Duration
	source   string

	seq     int64
	status  domain.PresenceStatus
	running bool
	timer   eventloop.Timer
}

// PublisherOption configures a Publisher.
type PublisherOption func(*Publisher)

// WithPublisherLogger sets the logger.
func WithPublisherLogger(l *zap.Logger) PublisherOption {
	return func(p *Publisher) {
		if l != nil {
			p.log = l
		}
	}
}

// WithHeartbeatInterval overrides DefaultHeartbeatInterval.
func WithHeartbeatInterval(d time.Duration) PublisherOption {
	return func(p *Publisher) {
		if d > 0 {
			p.interval = d
		}
	}
}

// WithSource fixes the source id instead of generating one.
func WithSource(id string) PublisherOption {
	return func(p *Publisher) {
		if id != "" {
			p.source = id
		}
	}
}

// NewPublisher returns a stopped Publisher. Every Publisher is its own
// heartbeat source with a fresh sequence.
func NewPublisher(store domain.Store, loop eventloop.Scheduler, self domain.Identity, opts ...PublisherOption) *Publisher {
	p := &Publisher{
		store:    store,
		loop:     loop,
		log:      zap.NewNop(),
		self:     self,
		interval: DefaultHeartbeatInterval,
		source:   uuid.NewString(),
		status:   domain.StatusOnline,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Source returns the id that tags every record of this Publisher.
func (p *Publisher) Source() string { return p.source }

// Start writes a heartbeat now and then every interval.
func (p *Publisher) Start() {
	p.loop.Post(func() {
		if p.running {
			return
		}
		p.running = true
		p.beat()
	})
}

// SetStatus changes the published status and writes it at once. Setting
// offline is allowed; heartbeats keep the record fresh either way.
func (p *Publisher) SetStatus(s domain.PresenceStatus) {
	p.loop.Post(func() {
		p.status = s
		if p.running {
			p.stopTimer()
			p.beat()
		}
	})
}

// Close stops heartbeats and writes a final offline record. ack, if not nil,
// receives the result of that write.
func (p *Publisher) Close(ack func(error)) {
	p.loop.Post(func() {
		if !p.running {
			if ack != nil {
				ack(nil)
			}
			return
		}
		p.running = false
		p.stopTimer()
		p.write(domain.StatusOffline, ack)
	})
}

func (p *Publisher) beat() {
	p.write(p.status, nil)
	p.timer = p.loop.AfterFunc(p.interval, func() {
		if !p.running {
			return
		}
		p.beat()
	})
}

func (p *Publisher) write(status domain.PresenceStatus, ack func(error)) {
	p.seq++
	now := p.loop.Now().UnixMilli()
	rec := domain.PresenceRecord{
		Status:       status,
		LastSeen:     now,
		HeartbeatAt:  now,
		HeartbeatSeq: p.seq,
		SessionID:    p.source,
	}
	seq := p.seq
	p.store.Get(domain.PresenceKey).Get(p.self.String()).Put(rec.Record(), func(err error) {
		if err != nil {
			p.log.Warn("presence write failed", zap.Int64("seq", seq), zap.Error(err))
		}
		if ack != nil {
			ack(err)
		}
	})
}

func (p *Publisher) stopTimer() {
	if p.timer != nil {
		p.timer.Stop()
		p.timer = nil
	}
}
