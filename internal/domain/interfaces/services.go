package interfaces

import (
	"context"

	domaintypes "pairchat/internal/domain/types"
)

// IdentityService creates, retrieves, and inspects your identity keys.
type IdentityService interface {
	GenerateIdentity(passphrase string) (
		domaintypes.Identity,
		domaintypes.Fingerprint,
		error,
	)
	LoadIdentity(passphrase string) (domaintypes.KeyPair, domaintypes.Identity, error)
	FingerprintIdentity(passphrase string) (domaintypes.Fingerprint, error)
}

// MessageService writes outgoing traffic for a resolved session.
type MessageService interface {
	SendText(ctx context.Context, session domaintypes.SessionID, text string) (domaintypes.Message, error)
	SendNudge(ctx context.Context, session domaintypes.SessionID) (domaintypes.Message, error)
	SendGame(ctx context.Context, session domaintypes.SessionID, kind domaintypes.MessageType, payload string) (domaintypes.Message, error)
	SetTyping(session domaintypes.SessionID, typing bool)
}

// ContactService edits the caller's contact list in the shared graph.
type ContactService interface {
	Add(ctx context.Context, contact domaintypes.Identity) error
	Accept(ctx context.Context, contact domaintypes.Identity) error
	Block(ctx context.Context, contact domaintypes.Identity) error
	Hide(ctx context.Context, contact domaintypes.Identity, hidden bool) error
}
