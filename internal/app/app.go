package app

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"

	"pairchat/internal/crypto"
	"pairchat/internal/domain"
	"pairchat/internal/services/contacts"
	"pairchat/internal/services/message"
	"pairchat/internal/services/presence"
	"pairchat/internal/services/session"
	"pairchat/internal/services/stream"
)

// Account is the unlocked identity and everything that needs it.
type Account struct {
	w *Wire

	Keys     domain.KeyPair
	Self     domain.Identity
	Cipher   *crypto.PairCipher
	Contacts *contacts.Service
}

// Unlock loads the identity with passphrase.
func (w *Wire) Unlock(passphrase string) (*Account, error) {
	keys, self, err := w.Identity.LoadIdentity(passphrase)
	if err != nil {
		return nil, err
	}
	return &Account{
		w:        w,
		Keys:     keys,
		Self:     self,
		Cipher:   crypto.NewPairCipher(keys),
		Contacts: contacts.New(w.Graph, self, contacts.WithLogger(w.Log.Named("contacts"))),
	}, nil
}

// Lookup turns an alias or a raw identity into an identity.
func (a *Account) Lookup(name string) (domain.Identity, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", contacts.ErrEmptyContact
	}
	if id, ok, err := a.w.Aliases.ResolveAlias(name); err != nil {
		return "", err
	} else if ok {
		return id, nil
	}
	id := domain.Identity(name)
	if _, err := crypto.ParseIdentity(id); err != nil {
		return "", fmt.Errorf("%q is neither an alias nor an identity: %w", name, err)
	}
	return id, nil
}

// Publisher returns a presence publisher for this account. Start it once the
// loop runs.
func (a *Account) Publisher() *presence.Publisher {
	return presence.NewPublisher(a.w.Graph, a.w.Loop, a.Self,
		presence.WithPublisherLogger(a.w.Log.Named("presence")),
		presence.WithHeartbeatInterval(a.w.Timings.HeartbeatInterval),
	)
}

// Coordinator returns a contact presence coordinator for this account.
func (a *Account) Coordinator(events presence.Events) *presence.Coordinator {
	return presence.NewCoordinator(a.w.Graph, a.w.Loop, a.Self, events,
		presence.WithCoordinatorLogger(a.w.Log.Named("presence")),
		presence.WithHeartbeatTimeout(a.w.Timings.HeartbeatTimeout),
	)
}

// Conversation ties session resolution, streaming and sending together for
// one peer.
type Conversation struct {
	Self, Peer domain.Identity
	Sessions   *session.Controller
	Stream     *stream.Controller
	Messages   *message.Service

	log   *zap.Logger
	mu    sync.Mutex
	sid   domain.SessionID
	ready chan struct{}
}

// Conversation builds a conversation with peer. events receive the stream
// output on the loop.
func (a *Account) Conversation(peer domain.Identity, events stream.Events) *Conversation {
	w := a.w
	log := w.Log.Named("chat").With(zap.String("pair", domain.NewPairID(a.Self, peer).String()))
	return &Conversation{
		Self: a.Self,
		Peer: peer,
		Sessions: session.New(w.Graph, w.Loop,
			session.WithLogger(log),
			session.WithCreateDebounce(w.Timings.CreateDebounce),
		),
		Stream: stream.New(w.Graph, w.Loop, a.Cipher, a.Self, peer, events,
			stream.WithLogger(log),
			stream.WithMarks(w.Marks),
			stream.WithTypingTimeouts(w.Timings.TypingFreshness, w.Timings.TypingIdle),
		),
		Messages: message.New(w.Graph, a.Cipher, a.Self, peer, message.WithLogger(log)),
		log:      log,
		ready:    make(chan struct{}),
	}
}

// Open starts resolving the session and streams whichever session wins.
func (c *Conversation) Open() {
	c.Sessions.Resolve(c.Self, c.Peer, func(sid domain.SessionID) {
		c.log.Debug("session adopted", zap.String("session", string(sid)))
		c.mu.Lock()
		first := c.sid == ""
		c.sid = sid
		c.mu.Unlock()
		if first {
			close(c.ready)
		}
		c.Stream.Attach(sid)
	})
}

// Close stops resolution and streaming.
func (c *Conversation) Close() {
	c.Sessions.Close()
	c.Stream.Detach()
}

// Session returns the adopted session, or "" before one is known.
func (c *Conversation) Session() domain.SessionID {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sid
}

// WaitSession blocks until a session has been adopted.
func (c *Conversation) WaitSession(ctx context.Context) (domain.SessionID, error) {
	select {
	case <-c.ready:
		return c.Session(), nil
	case <-ctx.Done():
		return "", fmt.Errorf("waiting for session: %w", ctx.Err())
	}
}
