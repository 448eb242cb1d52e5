package message_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"pairchat/internal/conversation"
	"pairchat/internal/crypto"
	"pairchat/internal/domain"
	"pairchat/internal/graph"
	"pairchat/internal/services/message"
	"pairchat/internal/services/stream"
	"pairchat/internal/testutil/looptest"
)

type party struct {
	keys   domain.KeyPair
	id     domain.Identity
	cipher *crypto.PairCipher
}

func newParty(t *testing.T) party {
	t.Helper()
	keys, err := crypto.NewKeyPair()
	require.NoError(t, err)
	return party{keys: keys, id: crypto.IdentityFromPublic(keys.Public), cipher: crypto.NewPairCipher(keys)}
}

func counter() func() string {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("m%03d", n)
	}
}

func TestSendText_ReadableByPeerOnly(t *testing.T) {
	ctx := context.Background()
	g, err := graph.NewMemory()
	require.NoError(t, err)
	loop := looptest.New()
	alice, bob := newParty(t), newParty(t)
	session := domain.SessionID(domain.NewPairID(alice.id, bob.id).String() + "_1")
	clock := func() time.Time { return looptest.Epoch }

	var last conversation.State
	var nudges []domain.NudgeSignal
	var typing []bool
	bobView := stream.New(g, loop, bob.cipher, bob.id, alice.id, stream.Events{
		Messages: func(_ domain.SessionID, st conversation.State) { last = st },
		Nudge:    func(_ domain.SessionID, n domain.NudgeSignal) { nudges = append(nudges, n) },
		Typing:   func(_ domain.SessionID, on bool) { typing = append(typing, on) },
	})
	bobView.Attach(session)

	send := message.New(g, alice.cipher, alice.id, bob.id, message.WithClock(clock), message.WithIDs(counter()))
	sent, err := send.SendText(ctx, session, "hello bob")
	require.NoError(t, err)
	require.Equal(t, "hello bob", sent.Content)

	// On the wire the content is an envelope.
	raw, err := graph.OnceWait(ctx, g.Get(session.String()).Get(sent.ID))
	require.NoError(t, err)
	rec, ok := domain.AsRecord(raw)
	require.True(t, ok)
	require.True(t, crypto.IsEnvelope(rec.String("content")))

	got, ok := last.Get(sent.ID)
	require.True(t, ok)
	require.Equal(t, "hello bob", got.Content)
	require.Equal(t, alice.id, got.Sender)
	require.False(t, got.IsLegacy)

	// Alice reads her own message back with bob as the peer.
	own, err := alice.cipher.Decrypt(rec.String("content"), bob.id)
	require.NoError(t, err)
	require.Equal(t, "hello bob", own)

	// The pointer's lastActivity moved without touching sessionId.
	ptr, err := graph.OnceWait(ctx, g.Get(domain.ActiveSessionsKey).Get(domain.NewPairID(alice.id, bob.id).String()))
	require.NoError(t, err)
	ptrRec, _ := domain.AsRecord(ptr)
	at, _ := ptrRec.Int64(domain.LastActivityField)
	require.Equal(t, clock().UnixMilli(), at)
	require.Empty(t, ptrRec.String(domain.SessionIDField))

	send.SetTyping(session, true)
	_, err = send.SendNudge(ctx, session)
	require.NoError(t, err)
	require.Len(t, nudges, 1)
	require.Equal(t, alice.id, nudges[0].From)
	require.Equal(t, []bool{true}, typing)
	require.Equal(t, 2, last.Len())
}

func TestSend_Errors(t *testing.T) {
	ctx := context.Background()
	g, err := graph.NewMemory()
	require.NoError(t, err)
	alice, bob := newParty(t), newParty(t)
	send := message.New(g, alice.cipher, alice.id, bob.id)

	_, err = send.SendText(ctx, "", "hi")
	require.ErrorIs(t, err, message.ErrNoSession)

	_, err = send.SendText(ctx, "s", "   ")
	require.ErrorIs(t, err, message.ErrEmptyMessage)

	_, err = send.SendGame(ctx, "s", domain.MessageChat, "x")
	require.ErrorIs(t, err, message.ErrNotGame)

	m, err := send.SendGame(ctx, "s", domain.MessageGameInvite, `{"game":"ttt"}`)
	require.NoError(t, err)
	require.Equal(t, `{"game":"ttt"}`, m.Content)
}

// stuckStore never acknowledges writes.
type stuckStore struct{}

func (stuckStore) Get(string) domain.Node { return stuckNode{} }

type stuckNode struct{}

func (stuckNode) Get(string) domain.Node                { return stuckNode{} }
func (stuckNode) On(domain.Listener) domain.Unsubscribe { return func() {} }
func (stuckNode) Once(domain.Listener)                  {}
func (stuckNode) Map() domain.Collection                { return nil }
func (stuckNode) Put(domain.Value, func(error))         {}

func TestSend_HonoursContext(t *testing.T) {
	alice, bob := newParty(t), newParty(t)
	send := message.New(stuckStore{}, alice.cipher, alice.id, bob.id)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := send.SendText(ctx, "s", "hi")
	require.True(t, errors.Is(err, context.DeadlineExceeded), "got %v", err)
}
