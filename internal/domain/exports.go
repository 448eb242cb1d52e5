package domain

import (
	interfaces "pairchat/internal/domain/interfaces"
	types "pairchat/internal/domain/types"
)

// Type aliases expose domain types from the types subpackage for compact imports.
type (
	Identity         = types.Identity
	Fingerprint      = types.Fingerprint
	PairID           = types.PairID
	SessionID        = types.SessionID
	X25519Public     = types.X25519Public
	X25519Private    = types.X25519Private
	KeyPair          = types.KeyPair
	MessageType      = types.MessageType
	Message          = types.Message
	SessionPointer   = types.SessionPointer
	NudgeSignal      = types.NudgeSignal
	TypingSignal     = types.TypingSignal
	PresenceStatus   = types.PresenceStatus
	PresenceRecord   = types.PresenceRecord
	PresenceSnapshot = types.PresenceSnapshot
	ContactState     = types.ContactState
	ContactEntry     = types.ContactEntry
	Value            = types.Value
	Record           = types.Record
)

// Interface aliases expose domain interfaces from the interfaces subpackage.
type (
	Store           = interfaces.Store
	Node            = interfaces.Node
	Collection      = interfaces.Collection
	Listener        = interfaces.Listener
	Unsubscribe     = interfaces.Unsubscribe
	Cipher          = interfaces.Cipher
	IdentityStore   = interfaces.IdentityStore
	MarkStore       = interfaces.MarkStore
	AliasStore      = interfaces.AliasStore
	IdentityService = interfaces.IdentityService
	MessageService  = interfaces.MessageService
	ContactService  = interfaces.ContactService
)

// Re-exported constants and helpers.
const (
	MessageChat        = types.MessageChat
	MessageNudge       = types.MessageNudge
	MessageGameInvite  = types.MessageGameInvite
	MessageGameAccept  = types.MessageGameAccept
	MessageGameDecline = types.MessageGameDecline

	StatusOnline  = types.StatusOnline
	StatusAway    = types.StatusAway
	StatusBusy    = types.StatusBusy
	StatusOffline = types.StatusOffline

	ContactPending  = types.ContactPending
	ContactAccepted = types.ContactAccepted
	ContactBlocked  = types.ContactBlocked

	ActiveSessionsKey = types.ActiveSessionsKey
	PresenceKey       = types.PresenceKey
	ContactsKey       = types.ContactsKey
	SessionIDField    = types.SessionIDField
	LastActivityField = types.LastActivityField
)

var (
	NewPairID   = types.NewPairID
	NudgeKey    = types.NudgeKey
	TypingKey   = types.TypingKey
	MessagesKey = types.MessagesKey
	AsRecord    = types.AsRecord
	AsString    = types.AsString
	AsInt64     = types.AsInt64

	PresenceRecordFrom = types.PresenceRecordFrom
	ContactEntryFrom   = types.ContactEntryFrom
)
