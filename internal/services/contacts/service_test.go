package contacts_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"pairchat/internal/domain"
	"pairchat/internal/graph"
	"pairchat/internal/services/contacts"
)

func TestAdd_AcceptsWhenMutual(t *testing.T) {
	ctx := context.Background()
	g, err := graph.NewMemory()
	require.NoError(t, err)
	alice := contacts.New(g, "alice")
	bob := contacts.New(g, "bob")

	require.NoError(t, alice.Add(ctx, "bob"))
	e, ok, err := alice.Entry(ctx, "bob")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, domain.ContactPending, e.State)
	require.False(t, e.PresenceEligible())

	require.NoError(t, bob.Add(ctx, "alice"))
	e, _, err = bob.Entry(ctx, "alice")
	require.NoError(t, err)
	require.Equal(t, domain.ContactAccepted, e.State)

	require.NoError(t, alice.Accept(ctx, "bob"))
	e, _, err = alice.Entry(ctx, "bob")
	require.NoError(t, err)
	require.True(t, e.PresenceEligible())
}

func TestAdd_AgainAfterPeerAddsBack(t *testing.T) {
	ctx := context.Background()
	g, err := graph.NewMemory()
	require.NoError(t, err)
	alice := contacts.New(g, "alice")
	bob := contacts.New(g, "bob")

	require.NoError(t, alice.Add(ctx, "bob"))
	require.NoError(t, bob.Add(ctx, "alice"))
	e, _, err := alice.Entry(ctx, "bob")
	require.NoError(t, err)
	require.Equal(t, domain.ContactPending, e.State, "adding back does not touch the other list")

	require.NoError(t, alice.Add(ctx, "bob"))
	e, _, err = alice.Entry(ctx, "bob")
	require.NoError(t, err)
	require.Equal(t, domain.ContactAccepted, e.State)

	require.NoError(t, bob.Block(ctx, "alice"))
	require.NoError(t, alice.Hide(ctx, "bob", true))
	require.NoError(t, alice.Add(ctx, "bob"))
	e, _, err = alice.Entry(ctx, "bob")
	require.NoError(t, err)
	require.Equal(t, domain.ContactAccepted, e.State, "an accepted entry stays accepted")
	require.True(t, e.Hidden)
}

func TestBlockAndHide(t *testing.T) {
	ctx := context.Background()
	g, err := graph.NewMemory()
	require.NoError(t, err)
	alice := contacts.New(g, "alice", contacts.WithListQuiet(10*time.Millisecond))

	require.ErrorIs(t, alice.Add(ctx, "alice"), contacts.ErrSelf)
	require.ErrorIs(t, alice.Add(ctx, ""), contacts.ErrEmptyContact)
	require.ErrorIs(t, alice.Hide(ctx, "nobody", true), contacts.ErrUnknownContact)

	require.NoError(t, alice.Accept(ctx, "bob"))
	require.NoError(t, alice.Hide(ctx, "bob", true))
	e, _, err := alice.Entry(ctx, "bob")
	require.NoError(t, err)
	require.Equal(t, domain.ContactAccepted, e.State)
	require.True(t, e.Hidden)
	require.False(t, e.PresenceEligible())

	require.NoError(t, alice.Accept(ctx, "carol"))
	require.NoError(t, alice.Block(ctx, "carol"))

	list, err := alice.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	require.Equal(t, domain.Identity("bob"), list[0].Contact)
	require.True(t, list[0].Hidden)
	require.Equal(t, domain.Identity("carol"), list[1].Contact)
	require.True(t, list[1].Blocked)
	require.Equal(t, domain.ContactBlocked, list[1].State)
}
