package presence_test

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"pairchat/internal/domain"
	"pairchat/internal/graph"
	"pairchat/internal/services/presence"
	"pairchat/internal/testutil/graphtest"
	"pairchat/internal/testutil/looptest"
)

const (
	self  domain.Identity = "self"
	alice domain.Identity = "alice"
	bob   domain.Identity = "bob"
)

var now = looptest.Epoch.UnixMilli()

func hb(status domain.PresenceStatus, seq, at int64) domain.Record {
	return domain.PresenceRecord{
		Status:       status,
		LastSeen:     at,
		HeartbeatAt:  at,
		HeartbeatSeq: seq,
		SessionID:    "src-1",
	}.Record()
}

func accepted() domain.Record {
	return domain.ContactEntry{State: domain.ContactAccepted}.Record()
}

type events struct {
	reachable []domain.Identity
	changes   []domain.PresenceStatus
	removed   []domain.Identity
}

func (e *events) hooks() presence.Events {
	return presence.Events{
		Reachable: func(s domain.PresenceSnapshot) { e.reachable = append(e.reachable, s.Contact) },
		Changed:   func(s domain.PresenceSnapshot) { e.changes = append(e.changes, s.Status) },
		Removed:   func(id domain.Identity) { e.removed = append(e.removed, id) },
	}
}

func start(t *testing.T) (*graphtest.Store, *looptest.Loop, *presence.Coordinator, *events) {
	t.Helper()
	store := graphtest.New()
	loop := looptest.New()
	ev := &events{}
	c := presence.NewCoordinator(store, loop, self, ev.hooks())
	c.Start()
	return store, loop, c, ev
}

var (
	contactsPath = graphtest.Path(domain.ContactsKey, self.String())
	alicePath    = graphtest.Path(domain.PresenceKey, alice.String())
)

func TestClassify(t *testing.T) {
	at := time.UnixMilli(now)
	cases := []struct {
		name string
		rec  domain.PresenceRecord
		want domain.PresenceStatus
	}{
		{"fresh online", domain.PresenceRecord{Status: domain.StatusOnline, HeartbeatAt: now - 1000}, domain.StatusOnline},
		{"fresh busy", domain.PresenceRecord{Status: domain.StatusBusy, HeartbeatAt: now}, domain.StatusBusy},
		{"at the limit", domain.PresenceRecord{Status: domain.StatusAway, HeartbeatAt: now - 45_000}, domain.StatusAway},
		{"aged out", domain.PresenceRecord{Status: domain.StatusOnline, HeartbeatAt: now - 45_001}, domain.StatusOffline},
		{"no heartbeat", domain.PresenceRecord{Status: domain.StatusOnline}, domain.StatusOffline},
		{"explicit offline", domain.PresenceRecord{Status: domain.StatusOffline, HeartbeatAt: now}, domain.StatusOffline},
		{"unknown status", domain.PresenceRecord{Status: "dancing", HeartbeatAt: now}, domain.StatusOffline},
	}
	for _, tc := range cases {
		if got := presence.Classify(tc.rec, at, presence.DefaultHeartbeatTimeout); got != tc.want {
			t.Fatalf("%s: got %s, want %s", tc.name, got, tc.want)
		}
	}
}

func TestSeqGate(t *testing.T) {
	var g presence.SeqGate
	rec := func(src string, seq, at int64) domain.PresenceRecord {
		return domain.PresenceRecord{Status: domain.StatusOnline, SessionID: src, HeartbeatSeq: seq, HeartbeatAt: at}
	}
	steps := []struct {
		rec  domain.PresenceRecord
		want bool
	}{
		{rec("a", 3, 100), true},
		{rec("a", 3, 200), false}, // same seq
		{rec("a", 2, 300), false}, // older seq
		{rec("a", 4, 150), true},
		{rec("b", 1, 400), true}, // restarted source
		{rec("c", 9, 50), false}, // unknown source, older than what we have
		{rec("a", 5, 500), true},
	}
	for i, s := range steps {
		if got := g.Accept(s.rec); got != s.want {
			t.Fatalf("step %d: Accept = %v, want %v", i, got, s.want)
		}
	}
	g.Reset()
	if !g.Accept(rec("a", 1, 1)) {
		t.Fatal("reset gate rejected a record")
	}
}

func TestCoordinator_ReplayedSeqCannotDemote(t *testing.T) {
	store, _, c, ev := start(t)
	store.EmitChild(contactsPath, alice.String(), accepted())

	store.Emit(alicePath, hb(domain.StatusOffline, 3, now))
	store.Emit(alicePath, hb(domain.StatusOnline, 5, now))
	store.Emit(alicePath, hb(domain.StatusOffline, 4, now))

	snap, ok := c.Snapshot(alice)
	if !ok || snap.Status != domain.StatusOnline {
		t.Fatalf("alice = %+v (watched=%v), want online", snap, ok)
	}
	if diff := cmp.Diff([]domain.Identity{alice}, ev.reachable); diff != "" {
		t.Fatalf("reachable (-want +got):\n%s", diff)
	}
}

func TestCoordinator_FirstObservationIsBaseline(t *testing.T) {
	store, _, _, ev := start(t)
	store.EmitChild(contactsPath, alice.String(), accepted())

	store.Emit(alicePath, hb(domain.StatusOnline, 1, now))
	store.Emit(alicePath, hb(domain.StatusAway, 2, now))
	store.Emit(alicePath, hb(domain.StatusBusy, 3, now))
	store.Emit(alicePath, hb(domain.StatusBusy, 3, now)) // duplicate delivery

	if len(ev.reachable) != 0 {
		t.Fatalf("reachable fired %v for reachable-to-reachable changes", ev.reachable)
	}
	want := []domain.PresenceStatus{domain.StatusOnline, domain.StatusAway, domain.StatusBusy}
	if diff := cmp.Diff(want, ev.changes); diff != "" {
		t.Fatalf("changes (-want +got):\n%s", diff)
	}
}

func TestCoordinator_OncePerTransition(t *testing.T) {
	store, _, _, ev := start(t)
	store.EmitChild(contactsPath, alice.String(), accepted())

	store.Emit(alicePath, hb(domain.StatusOffline, 1, now))
	store.Emit(alicePath, hb(domain.StatusOnline, 2, now))
	store.Emit(alicePath, hb(domain.StatusOnline, 2, now))
	store.Emit(alicePath, hb(domain.StatusAway, 3, now))
	store.Emit(alicePath, hb(domain.StatusOffline, 4, now))
	store.Emit(alicePath, hb(domain.StatusOnline, 5, now))

	if len(ev.reachable) != 2 {
		t.Fatalf("reachable fired %d times, want 2", len(ev.reachable))
	}
}

func TestCoordinator_HeartbeatAgesOut(t *testing.T) {
	store, loop, c, ev := start(t)
	store.EmitChild(contactsPath, alice.String(), accepted())
	store.Emit(alicePath, hb(domain.StatusOnline, 1, now))

	loop.Advance(presence.DefaultHeartbeatTimeout - time.Second)
	if s, _ := c.Snapshot(alice); s.Status != domain.StatusOnline {
		t.Fatalf("status = %s before timeout", s.Status)
	}
	loop.Advance(2 * time.Second)
	if s, _ := c.Snapshot(alice); s.Status != domain.StatusOffline {
		t.Fatalf("status = %s after timeout, want offline", s.Status)
	}

	// A fresh heartbeat after aging out is a real transition.
	store.Emit(alicePath, hb(domain.StatusOnline, 2, loop.Now().UnixMilli()))
	if diff := cmp.Diff([]domain.Identity{alice}, ev.reachable); diff != "" {
		t.Fatalf("reachable (-want +got):\n%s", diff)
	}
}

func TestCoordinator_EligibilityDiscardsPresence(t *testing.T) {
	store, _, c, ev := start(t)

	store.EmitChild(contactsPath, bob.String(), domain.ContactEntry{State: domain.ContactPending}.Record())
	store.EmitChild(contactsPath, self.String(), accepted())
	if store.TotalSubscribers() != 1 {
		t.Fatalf("subscriptions = %d, want only the contact list", store.TotalSubscribers())
	}

	store.EmitChild(contactsPath, alice.String(), accepted())
	store.Emit(alicePath, hb(domain.StatusOnline, 7, now))
	if store.Subscribers(alicePath) != 1 {
		t.Fatal("eligible contact not watched")
	}

	store.EmitChild(contactsPath, alice.String(), domain.ContactEntry{State: domain.ContactAccepted, Hidden: true}.Record())
	if store.Subscribers(alicePath) != 0 {
		t.Fatal("hidden contact still watched")
	}
	if _, ok := c.Snapshot(alice); ok {
		t.Fatal("cached presence kept for an ineligible contact")
	}
	if diff := cmp.Diff([]domain.Identity{alice}, ev.removed); diff != "" {
		t.Fatalf("removed (-want +got):\n%s", diff)
	}

	// Eligible again: no stale data, the sequence gate starts over, and the
	// next record is a baseline.
	store.EmitChild(contactsPath, alice.String(), accepted())
	if s, ok := c.Snapshot(alice); !ok || s.Status != domain.StatusOffline || s.Record.HeartbeatSeq != 0 {
		t.Fatalf("re-watched alice = %+v", s)
	}
	store.Emit(alicePath, hb(domain.StatusOnline, 1, now))
	if s, _ := c.Snapshot(alice); s.Status != domain.StatusOnline {
		t.Fatalf("fresh source rejected after re-watch: %s", s.Status)
	}
	if len(ev.reachable) != 0 {
		t.Fatalf("reachable fired for a baseline: %v", ev.reachable)
	}

	store.EmitChild(contactsPath, alice.String(), domain.ContactEntry{State: domain.ContactBlocked}.Record())
	store.EmitChild(contactsPath, alice.String(), nil)
	if store.Subscribers(alicePath) != 0 {
		t.Fatal("blocked contact still watched")
	}
}

func TestCoordinator_ContactBlockingSelfDiscardsPresence(t *testing.T) {
	store, _, c, ev := start(t)
	theirEntry := graphtest.Path(domain.ContactsKey, alice.String(), self.String())

	store.EmitChild(contactsPath, alice.String(), accepted())
	if store.Subscribers(theirEntry) != 1 {
		t.Fatal("alice's entry for self not followed")
	}
	store.Emit(theirEntry, accepted())
	store.Emit(alicePath, hb(domain.StatusOnline, 1, now))
	if s, _ := c.Snapshot(alice); s.Status != domain.StatusOnline {
		t.Fatalf("alice = %s, want online", s.Status)
	}

	store.Emit(theirEntry, domain.ContactEntry{State: domain.ContactBlocked, Blocked: true}.Record())
	if store.Subscribers(alicePath) != 0 {
		t.Fatal("presence still watched after alice blocked self")
	}
	if _, ok := c.Snapshot(alice); ok {
		t.Fatal("cached presence kept after alice blocked self")
	}
	if diff := cmp.Diff([]domain.Identity{alice}, ev.removed); diff != "" {
		t.Fatalf("removed (-want +got):\n%s", diff)
	}
	if store.Subscribers(theirEntry) != 1 {
		t.Fatal("stopped following alice's entry; an unblock would be missed")
	}

	// Unblocking starts over from a baseline.
	store.Emit(theirEntry, accepted())
	if s, ok := c.Snapshot(alice); !ok || s.Status != domain.StatusOffline {
		t.Fatalf("alice after unblock = %+v (watched=%v)", s, ok)
	}

	// Dropping alice from self's list also drops the follow.
	store.EmitChild(contactsPath, alice.String(), nil)
	if store.Subscribers(theirEntry) != 0 || store.Subscribers(alicePath) != 0 {
		t.Fatal("subscriptions left for a removed contact")
	}
}

func TestCoordinator_BlockOnSharedGraph(t *testing.T) {
	g, err := graph.NewMemory()
	if err != nil {
		t.Fatalf("NewMemory: %v", err)
	}
	loop := looptest.New()
	g.Get(domain.ContactsKey).Get(self.String()).Get(alice.String()).Put(accepted(), nil)
	g.Get(domain.ContactsKey).Get(alice.String()).Get(self.String()).Put(accepted(), nil)

	c := presence.NewCoordinator(g, loop, self, (&events{}).hooks())
	c.Start()
	g.Get(domain.ContactsKey).Get(alice.String()).Get(self.String()).
		Put(domain.ContactEntry{State: domain.ContactBlocked, Blocked: true}.Record(), nil)

	pub := presence.NewPublisher(g, loop, alice)
	pub.Start()
	if s, ok := c.Snapshot(alice); ok {
		t.Fatalf("self still watches alice after being blocked: %+v", s)
	}
}

func TestCoordinator_StopDetachesEverything(t *testing.T) {
	store, loop, c, ev := start(t)
	store.EmitChild(contactsPath, alice.String(), accepted())
	store.Emit(alicePath, hb(domain.StatusOnline, 1, now))

	c.Stop()
	if store.TotalSubscribers() != 0 {
		t.Fatalf("subscriptions after stop: %d", store.TotalSubscribers())
	}
	if loop.PendingTimers() != 0 {
		t.Fatalf("timers after stop: %d", loop.PendingTimers())
	}
	if len(c.Snapshots()) != 0 || len(ev.changes) != 1 {
		t.Fatalf("snapshots=%d changes=%v", len(c.Snapshots()), ev.changes)
	}
}

func TestPublisherAndCoordinatorOnSharedGraph(t *testing.T) {
	g, err := graph.NewMemory()
	if err != nil {
		t.Fatalf("NewMemory: %v", err)
	}
	loop := looptest.New()

	// self lists alice as an accepted contact.
	g.Get(domain.ContactsKey).Get(self.String()).Get(alice.String()).Put(accepted(), nil)

	ev := &events{}
	c := presence.NewCoordinator(g, loop, self, ev.hooks())
	c.Start()

	pub := presence.NewPublisher(g, loop, alice, presence.WithSource("alice-proc"))
	pub.Start()
	if s, _ := c.Snapshot(alice); s.Status != domain.StatusOnline {
		t.Fatalf("first heartbeat: %s", s.Status)
	}

	loop.Advance(presence.DefaultHeartbeatInterval)
	s, _ := c.Snapshot(alice)
	if s.Record.HeartbeatSeq != 2 || s.Record.SessionID != "alice-proc" {
		t.Fatalf("after one interval: %+v", s.Record)
	}

	pub.SetStatus(domain.StatusBusy)
	var closeErr error = errNotCalled
	pub.Close(func(err error) { closeErr = err })
	if closeErr != nil {
		t.Fatalf("close ack: %v", closeErr)
	}
	if s, _ := c.Snapshot(alice); s.Status != domain.StatusOffline || s.Record.HeartbeatSeq != 4 {
		t.Fatalf("after close: %+v", s)
	}

	// Coming back is a new source starting at seq 1.
	again := presence.NewPublisher(g, loop, alice)
	again.Start()
	if s, _ := c.Snapshot(alice); s.Status != domain.StatusOnline {
		t.Fatalf("restart not accepted: %+v", s)
	}
	if diff := cmp.Diff([]domain.Identity{alice}, ev.reachable); diff != "" {
		t.Fatalf("reachable (-want +got):\n%s", diff)
	}
	loop.Advance(time.Hour)
	if s, _ := c.Snapshot(alice); s.Status != domain.StatusOnline || s.Record.SessionID != again.Source() {
		t.Fatalf("after an hour of heartbeats: %+v", s)
	}
	// The live publisher's heartbeat and the coordinator's expiry; the
	// closed publisher scheduled nothing more.
	if loop.PendingTimers() != 2 {
		t.Fatalf("pending timers = %d, want 2", loop.PendingTimers())
	}
}

type sentinelErr string

func (e sentinelErr) Error() string { return string(e) }

const errNotCalled = sentinelErr("ack not called")
