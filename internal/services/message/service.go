package message

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"pairchat/internal/domain"
	"pairchat/internal/graph"
	"pairchat/internal/services/stream"
)

var (
	// ErrNoSession is returned when sending before a session was resolved.
	ErrNoSession = errors.New("no session with peer yet")
	// ErrEmptyMessage is returned for blank text.
	ErrEmptyMessage = errors.New("message is empty")
	// ErrNotGame is returned by SendGame for non-game message types.
	ErrNotGame = errors.New("not a game message type")
)

// Service sends messages from self to peer.
type Service struct {
	store  domain.Store
	cipher domain.Cipher
	log    *zap.Logger
	self   domain.Identity
	peer   domain.Identity
	now    func() time.Time
	newID  func() string
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.log = l
		}
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithIDs replaces the message id generator.
func WithIDs(newID func() string) Option {
	return func(s *Service) { s.newID = newID }
}

// New constructs a Message Service for the pair (self, peer).
func New(store domain.Store, cipher domain.Cipher, self, peer domain.Identity, opts ...Option) *Service {
	s := &Service{
		store:  store,
		cipher: cipher,
		log:    zap.NewNop(),
		self:   self,
		peer:   peer,
		now:    time.Now,
		newID:  uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SendText encrypts text for the peer and appends it to session. The
// returned message carries the plaintext.
func (s *Service) SendText(ctx context.Context, session domain.SessionID, text string) (domain.Message, error) {
	if strings.TrimSpace(text) == "" {
		return domain.Message{}, ErrEmptyMessage
	}
	sealed, err := s.cipher.Encrypt(text, s.peer)
	if err != nil {
		return domain.Message{}, fmt.Errorf("encrypt: %w", err)
	}
	m, err := s.append(ctx, session, domain.MessageChat, sealed)
	if err != nil {
		return domain.Message{}, err
	}
	m.Content = text
	return m, nil
}

// SendNudge appends a nudge message and overwrites the session's nudge
// signal, which is what the peer reacts to.
func (s *Service) SendNudge(ctx context.Context, session domain.SessionID) (domain.Message, error) {
	m, err := s.append(ctx, session, domain.MessageNudge, "")
	if err != nil {
		return domain.Message{}, err
	}
	sig := stream.NudgeRecord(domain.NudgeSignal{From: s.self, Time: m.TimeRef})
	if err := graph.PutWait(ctx, s.store.Get(domain.NudgeKey(session)), sig); err != nil {
		return m, fmt.Errorf("write nudge signal: %w", err)
	}
	return m, nil
}

// SendGame appends a plaintext game protocol event.
func (s *Service) SendGame(ctx context.Context, session domain.SessionID, kind domain.MessageType, payload string) (domain.Message, error) {
	if !kind.IsGame() {
		return domain.Message{}, fmt.Errorf("%w: %q", ErrNotGame, kind)
	}
	return s.append(ctx, session, kind, payload)
}

// SetTyping publishes the typing indicator without waiting for the store.
func (s *Service) SetTyping(session domain.SessionID, typing bool) {
	if session.IsZero() {
		return
	}
	sig := stream.TypingRecord(domain.TypingSignal{From: s.self, Typing: typing, At: s.now().UnixMilli()})
	s.store.Get(domain.TypingKey(session)).Put(sig, func(err error) {
		if err != nil {
			s.log.Debug("typing write failed", zap.String("session", session.String()), zap.Error(err))
		}
	})
}

func (s *Service) append(ctx context.Context, session domain.SessionID, kind domain.MessageType, content string) (domain.Message, error) {
	if session.IsZero() {
		return domain.Message{}, ErrNoSession
	}
	m := domain.Message{
		ID:      s.newID(),
		Sender:  s.self,
		Content: content,
		TimeRef: s.now().UnixMilli(),
		Type:    kind,
	}
	node := s.store.Get(domain.MessagesKey(session)).Get(m.ID)
	if err := graph.PutWait(ctx, node, stream.MessageRecord(m)); err != nil {
		return domain.Message{}, fmt.Errorf("write message: %w", err)
	}
	s.touch(m.TimeRef)
	s.log.Debug("message sent",
		zap.String("session", session.String()),
		zap.String("id", m.ID),
		zap.String("type", string(kind)))
	return m, nil
}

// touch bumps lastActivity on the pair's session pointer. Only that field is
// written, so a concurrent change of sessionId is never overwritten.
func (s *Service) touch(at int64) {
	pair := domain.NewPairID(s.self, s.peer)
	s.store.Get(domain.ActiveSessionsKey).Get(pair.String()).Put(domain.Record{
		domain.LastActivityField: at,
	}, func(err error) {
		if err != nil {
			s.log.Warn("lastActivity write failed", zap.String("pair", pair.String()), zap.Error(err))
		}
	})
}

// Compile-time assertion that Service implements domain.MessageService.
var _ domain.MessageService = (*Service)(nil)
