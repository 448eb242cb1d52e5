package session_test

import (
	"strings"
	"testing"
	"time"

	"pairchat/internal/domain"
	"pairchat/internal/graph"
	"pairchat/internal/services/session"
	"pairchat/internal/testutil/graphtest"
	"pairchat/internal/testutil/looptest"
)

const (
	alice domain.Identity = "alice"
	bob   domain.Identity = "bob"
)

var (
	pair      = domain.NewPairID(alice, bob)
	fieldPath = graphtest.Path(domain.ActiveSessionsKey, pair.String(), domain.SessionIDField)
	nodePath  = graphtest.Path(domain.ActiveSessionsKey, pair.String())
)

type recorder struct{ ids []domain.SessionID }

func (r *recorder) onChange(id domain.SessionID) { r.ids = append(r.ids, id) }

func setup(t *testing.T) (*graphtest.Store, *looptest.Loop, *session.Controller, *recorder) {
	t.Helper()
	store := graphtest.New()
	loop := looptest.New()
	c := session.New(store, loop)
	rec := &recorder{}
	c.Resolve(alice, bob, rec.onChange)
	return store, loop, c, rec
}

func TestPairID_OrderIndependent(t *testing.T) {
	ids := []domain.Identity{"a", "b", "zz", "Q-_x", ""}
	for _, a := range ids {
		for _, b := range ids {
			if domain.NewPairID(a, b) != domain.NewPairID(b, a) {
				t.Fatalf("pairId(%q,%q) != pairId(%q,%q)", a, b, b, a)
			}
		}
	}
}

func TestResolve_TransientEmptiesThenValue(t *testing.T) {
	store, loop, c, rec := setup(t)

	store.Emit(fieldPath, nil)
	store.ResolveOnce(fieldPath, nil)
	store.Emit(fieldPath, "")
	loop.Advance(500 * time.Millisecond) // still inside the debounce
	store.Emit(fieldPath, "S1")
	loop.Advance(5 * session.DefaultCreateDebounce)

	if n := len(store.Puts); n != 0 {
		t.Fatalf("create-writes = %d, want 0", n)
	}
	if c.Current() != "S1" {
		t.Fatalf("current = %q, want S1", c.Current())
	}
	if len(rec.ids) != 1 || rec.ids[0] != "S1" {
		t.Fatalf("reported %v, want [S1]", rec.ids)
	}
	if loop.PendingTimers() != 0 {
		t.Fatal("create timer still armed after adopting")
	}
}

func TestResolve_SilencePastDebounceCreatesOnce(t *testing.T) {
	store, loop, c, rec := setup(t)

	store.Emit(fieldPath, nil)
	store.Emit(fieldPath, nil)
	loop.Advance(session.DefaultCreateDebounce)

	// The debounce fired; its confirm read is outstanding alongside the
	// initial read.
	if store.PendingOnce(fieldPath) != 2 {
		t.Fatalf("pending reads = %d, want 2", store.PendingOnce(fieldPath))
	}
	store.ResolveOnce(fieldPath, nil)

	puts := store.PutsAt(nodePath)
	if len(puts) != 1 {
		t.Fatalf("create-writes = %d, want 1", len(puts))
	}
	rec0, ok := domain.AsRecord(puts[0].Value)
	if !ok {
		t.Fatalf("put value %T, want record", puts[0].Value)
	}
	id := rec0.String(domain.SessionIDField)
	if !strings.HasPrefix(id, pair.String()+"_") {
		t.Fatalf("synthesized id %q does not derive from the pair id", id)
	}
	if _, ok := rec0.Int64(domain.LastActivityField); !ok {
		t.Fatal("create-write lacks lastActivity")
	}
	if c.Current() != domain.SessionID(id) || len(rec.ids) != 1 {
		t.Fatalf("current = %q reported = %v", c.Current(), rec.ids)
	}

	// Our own write echoing back, more empties, more time: nothing new.
	store.Emit(fieldPath, id)
	store.Emit(fieldPath, nil)
	loop.Advance(10 * session.DefaultCreateDebounce)
	store.ResolveOnce(fieldPath, nil)
	if len(store.Puts) != 1 || len(rec.ids) != 1 {
		t.Fatalf("puts = %d reports = %d after echo, want 1/1", len(store.Puts), len(rec.ids))
	}
}

func TestResolve_ReconfirmAdoptsInsteadOfCreating(t *testing.T) {
	store, loop, c, rec := setup(t)

	store.ResolveOnce(fieldPath, nil)
	loop.Advance(session.DefaultCreateDebounce)
	store.ResolveOnce(fieldPath, "S-theirs")

	if len(store.Puts) != 0 {
		t.Fatalf("create-writes = %d, want 0", len(store.Puts))
	}
	if c.Current() != "S-theirs" || len(rec.ids) != 1 {
		t.Fatalf("current = %q reported = %v", c.Current(), rec.ids)
	}
}

func TestClose_CancelsPendingCreate(t *testing.T) {
	store, loop, c, rec := setup(t)

	store.ResolveOnce(fieldPath, nil)
	c.Close()
	loop.Advance(10 * session.DefaultCreateDebounce)
	store.ResolveOnce(fieldPath, nil)
	store.Emit(fieldPath, "late")

	if len(store.Puts) != 0 || len(rec.ids) != 0 {
		t.Fatalf("puts = %d reports = %v after close", len(store.Puts), rec.ids)
	}
	if store.TotalSubscribers() != 0 {
		t.Fatalf("subscriptions left after close: %d", store.TotalSubscribers())
	}
}

func TestResolve_ResubscribeInvalidatesOldGeneration(t *testing.T) {
	store, loop, c, _ := setup(t)
	first := c.Generation()

	// A read from the first resolution is still outstanding when the
	// consumer resubscribes.
	second := &recorder{}
	c.Resolve(alice, bob, second.onChange)
	if c.Generation() == first {
		t.Fatal("generation not bumped on resubscribe")
	}
	if store.Subscribers(fieldPath) != 1 {
		t.Fatalf("subscribers = %d, want 1", store.Subscribers(fieldPath))
	}

	// Both outstanding reads answer empty; only the live generation may arm.
	store.ResolveOnce(fieldPath, nil)
	loop.Advance(session.DefaultCreateDebounce)
	store.ResolveOnce(fieldPath, nil)

	if n := len(store.PutsAt(nodePath)); n != 1 {
		t.Fatalf("create-writes = %d, want 1", n)
	}
	if len(second.ids) != 1 {
		t.Fatalf("live consumer reports = %v", second.ids)
	}
}

func TestResolve_RepeatsReportedOnceAndChangesFollowed(t *testing.T) {
	store, _, c, rec := setup(t)

	store.Emit(fieldPath, "S1")
	store.Emit(fieldPath, "S1")
	store.ResolveOnce(fieldPath, "S1")
	store.Emit(fieldPath, "S2")

	if c.Current() != "S2" {
		t.Fatalf("current = %q, want S2", c.Current())
	}
	if len(rec.ids) != 2 || rec.ids[0] != "S1" || rec.ids[1] != "S2" {
		t.Fatalf("reported %v, want [S1 S2]", rec.ids)
	}
}

func TestResolve_SimultaneousCreatesConverge(t *testing.T) {
	store := graphtest.New()
	loop := looptest.New()
	a := session.New(store, loop)
	b := session.New(store, loop, session.WithCreateDebounce(session.DefaultCreateDebounce+100*time.Millisecond))
	ra, rb := &recorder{}, &recorder{}
	a.Resolve(alice, bob, ra.onChange)
	b.Resolve(bob, alice, rb.onChange)
	store.ResolveOnce(fieldPath, nil)

	// Neither write replicates before the other client's confirm read.
	loop.Advance(session.DefaultCreateDebounce)
	store.ResolveOnce(fieldPath, nil)
	loop.Advance(100 * time.Millisecond)
	store.ResolveOnce(fieldPath, nil)

	puts := store.PutsAt(nodePath)
	if len(puts) != 2 {
		t.Fatalf("create-writes = %d, want one per client", len(puts))
	}
	if a.Current() == b.Current() {
		t.Fatalf("both clients synthesized %q; want distinct ids", a.Current())
	}

	// The store settles on the last write and replicates it to both.
	rec, _ := domain.AsRecord(puts[1].Value)
	winner := domain.SessionID(rec.String(domain.SessionIDField))
	store.Emit(fieldPath, winner.String())

	if a.Current() != winner || b.Current() != winner {
		t.Fatalf("clients diverged: a=%q b=%q winner=%q", a.Current(), b.Current(), winner)
	}
	if len(ra.ids) != 2 || ra.ids[1] != winner {
		t.Fatalf("loser reports = %v, want re-adoption of %q", ra.ids, winner)
	}
	if len(rb.ids) != 1 {
		t.Fatalf("winner reports = %v, want 1", rb.ids)
	}
}

func TestResolve_TwoClientsOnSharedGraph(t *testing.T) {
	g, err := graph.NewMemory()
	if err != nil {
		t.Fatalf("NewMemory: %v", err)
	}
	loop := looptest.New()
	a := session.New(g, loop)
	b := session.New(g, loop)
	a.Resolve(alice, bob, nil)
	b.Resolve(bob, alice, nil)

	loop.Advance(2 * session.DefaultCreateDebounce)

	if a.Current() == "" || a.Current() != b.Current() {
		t.Fatalf("a=%q b=%q", a.Current(), b.Current())
	}

	var stored domain.Value
	g.Get(domain.ActiveSessionsKey).Get(pair.String()).Get(domain.SessionIDField).Once(func(v domain.Value, _ string) {
		stored = v
	})
	if stored != a.Current().String() {
		t.Fatalf("stored pointer %v, want %q", stored, a.Current())
	}
}
