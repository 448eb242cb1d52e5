package contacts

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"pairchat/internal/domain"
	"pairchat/internal/graph"
)

// DefaultListQuiet is how long List waits for more entries before returning.
const DefaultListQuiet = 300 * time.Millisecond

var (
	// ErrSelf is returned when adding yourself as a contact.
	ErrSelf = errors.New("cannot add yourself as a contact")
	// ErrEmptyContact is returned for an empty identity.
	ErrEmptyContact = errors.New("contact identity is empty")
	// ErrUnknownContact is returned when editing a contact that was never added.
	ErrUnknownContact = errors.New("unknown contact")
)

// Service edits CONTACTS/{self}.
type Service struct {
	store domain.Store
	self  domain.Identity
	log   *zap.Logger
	quiet time.Duration
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

// WithListQuiet overrides DefaultListQuiet.
func WithListQuiet(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.quiet = d
		}
	}
}

// New returns a contacts service for self.
func New(store domain.Store, self domain.Identity, opts ...Option) *Service {
	s := &Service{store: store, self: self, log: zap.NewNop(), quiet: DefaultListQuiet}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Add lists contact. The entry is accepted right away when contact already
// lists self and has not blocked it, pending otherwise. Re-adding keeps an
// existing accepted state and clears a block.
func (s *Service) Add(ctx context.Context, contact domain.Identity) error {
	if err := s.check(contact); err != nil {
		return err
	}
	theirs, ok, err := s.entryOf(ctx, contact, s.self)
	if err != nil {
		return err
	}
	mine, _, err := s.Entry(ctx, contact)
	if err != nil {
		return err
	}

	state := domain.ContactPending
	if mine.State == domain.ContactAccepted || (ok && !theirs.Blocked) {
		state = domain.ContactAccepted
	}
	return s.write(ctx, domain.ContactEntry{Contact: contact, State: state, Hidden: mine.Hidden})
}

// Accept marks contact accepted and unblocked.
func (s *Service) Accept(ctx context.Context, contact domain.Identity) error {
	if err := s.check(contact); err != nil {
		return err
	}
	mine, _, err := s.Entry(ctx, contact)
	if err != nil {
		return err
	}
	return s.write(ctx, domain.ContactEntry{Contact: contact, State: domain.ContactAccepted, Hidden: mine.Hidden})
}

// Block marks contact blocked. Blocked contacts never see presence.
func (s *Service) Block(ctx context.Context, contact domain.Identity) error {
	if err := s.check(contact); err != nil {
		return err
	}
	mine, _, err := s.Entry(ctx, contact)
	if err != nil {
		return err
	}
	return s.write(ctx, domain.ContactEntry{Contact: contact, State: domain.ContactBlocked, Blocked: true, Hidden: mine.Hidden})
}

// Hide sets whether contact is hidden from presence.
func (s *Service) Hide(ctx context.Context, contact domain.Identity, hidden bool) error {
	if err := s.check(contact); err != nil {
		return err
	}
	mine, ok, err := s.Entry(ctx, contact)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownContact, contact.Short())
	}
	mine.Hidden = hidden
	return s.write(ctx, mine)
}

// Entry reads self's entry for contact.
func (s *Service) Entry(ctx context.Context, contact domain.Identity) (domain.ContactEntry, bool, error) {
	return s.entryOf(ctx, s.self, contact)
}

// List returns every entry of self's contact list ordered by identity.
func (s *Service) List(ctx context.Context) ([]domain.ContactEntry, error) {
	children, err := graph.CollectWait(ctx, s.list().Map(), s.quiet)
	if err != nil {
		return nil, fmt.Errorf("list contacts: %w", err)
	}
	out := make([]domain.ContactEntry, 0, len(children))
	for key, v := range children {
		if e, ok := domain.ContactEntryFrom(domain.Identity(key), v); ok {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Contact < out[j].Contact })
	return out, nil
}

func (s *Service) entryOf(ctx context.Context, owner, contact domain.Identity) (domain.ContactEntry, bool, error) {
	v, err := graph.OnceWait(ctx, s.store.Get(domain.ContactsKey).Get(owner.String()).Get(contact.String()))
	if err != nil {
		return domain.ContactEntry{}, false, fmt.Errorf("read contact: %w", err)
	}
	e, ok := domain.ContactEntryFrom(contact, v)
	if !ok {
		return domain.ContactEntry{Contact: contact}, false, nil
	}
	return e, true, nil
}

func (s *Service) write(ctx context.Context, e domain.ContactEntry) error {
	if err := graph.PutWait(ctx, s.list().Get(e.Contact.String()), e.Record()); err != nil {
		return fmt.Errorf("write contact: %w", err)
	}
	s.log.Debug("contact updated",
		zap.String("contact", e.Contact.Short()),
		zap.String("state", string(e.State)),
		zap.Bool("hidden", e.Hidden))
	return nil
}

func (s *Service) list() domain.Node {
	return s.store.Get(domain.ContactsKey).Get(s.self.String())
}

func (s *Service) check(contact domain.Identity) error {
	switch {
	case contact == "":
		return ErrEmptyContact
	case contact == s.self:
		return ErrSelf
	}
	return nil
}

// Compile-time assertion that Service implements domain.ContactService.
var _ domain.ContactService = (*Service)(nil)
