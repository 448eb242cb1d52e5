package store_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"pairchat/internal/domain"
	"pairchat/internal/store"
)

// cheap keeps scrypt fast in tests.
var cheap = store.ScryptParams{N: 1 << 10, R: 8, P: 1}

func TestIdentity_SaveLoad_OK(t *testing.T) {
	home := t.TempDir()
	pass := "pass"

	var ids domain.IdentityStore = store.NewIdentityFileStore(home).WithScryptParams(cheap)

	keys := domain.KeyPair{
		Public:  domain.X25519Public{1},
		Private: domain.X25519Private{2},
	}

	if err := ids.SaveIdentity(pass, keys); err != nil {
		t.Fatalf("save identity: %v", err)
	}

	got, err := ids.LoadIdentity(pass)
	if err != nil {
		t.Fatalf("load identity: %v", err)
	}
	if got != keys {
		t.Fatalf("mismatch after load")
	}

	info, err := os.Stat(filepath.Join(home, "identity.json.enc"))
	if err != nil {
		t.Fatalf("stat identity: %v", err)
	}
	if info.Mode().Perm() != 0o600 {
		t.Fatalf("identity mode = %v, want 0600", info.Mode().Perm())
	}
}

func TestIdentity_WrongPassphrase_Fails(t *testing.T) {
	home := t.TempDir()
	ids := store.NewIdentityFileStore(home).WithScryptParams(cheap)

	keys := domain.KeyPair{Public: domain.X25519Public{1}, Private: domain.X25519Private{2}}

	if err := ids.SaveIdentity("correct", keys); err != nil {
		t.Fatalf("save identity: %v", err)
	}
	if _, err := ids.LoadIdentity("wrong"); !errors.Is(err, store.ErrWrongPassphrase) {
		t.Fatalf("wrong passphrase: got %v, want ErrWrongPassphrase", err)
	}
}

func TestIdentity_Missing(t *testing.T) {
	ids := store.NewIdentityFileStore(filepath.Join(t.TempDir(), "nested"))
	if ids.Exists() {
		t.Fatal("Exists on empty home")
	}
	if _, err := ids.LoadIdentity("x"); !errors.Is(err, store.ErrNoIdentity) {
		t.Fatalf("got %v, want ErrNoIdentity", err)
	}
	// Saving creates the missing directory.
	if err := ids.WithScryptParams(cheap).SaveIdentity("x", domain.KeyPair{}); err != nil {
		t.Fatalf("save into new dir: %v", err)
	}
	if !ids.Exists() {
		t.Fatal("identity not written")
	}
}

func TestAliases(t *testing.T) {
	s := store.NewAliasFileStore(t.TempDir())

	if _, ok, err := s.ResolveAlias("bob"); err != nil || ok {
		t.Fatalf("empty store: ok=%v err=%v", ok, err)
	}
	if err := s.SaveAlias("  ", "x"); !errors.Is(err, store.ErrEmptyAlias) {
		t.Fatalf("blank alias: %v", err)
	}
	if err := s.SaveAlias("Bob", "bob-id"); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := s.SaveAlias("carol", "carol-id"); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := s.SaveAlias("BOB", "bob-id-2"); err != nil {
		t.Fatalf("replace: %v", err)
	}

	id, ok, err := s.ResolveAlias("bob")
	if err != nil || !ok || id != "bob-id-2" {
		t.Fatalf("resolve bob = %q ok=%v err=%v", id, ok, err)
	}
	all, err := s.ListAliases()
	if err != nil || len(all) != 2 {
		t.Fatalf("list = %v err=%v", all, err)
	}
}

func TestMarks_OnlyMoveForward(t *testing.T) {
	s := store.NewMarkFileStore(t.TempDir())
	pair := domain.NewPairID("a", "b")

	if _, ok, err := s.LastNotified(pair); err != nil || ok {
		t.Fatalf("empty store: ok=%v err=%v", ok, err)
	}

	t1 := time.UnixMilli(1_700_000_000_000)
	if err := s.MarkNotified(pair, t1); err != nil {
		t.Fatalf("mark: %v", err)
	}
	if err := s.MarkNotified(pair, t1.Add(-time.Minute)); err != nil {
		t.Fatalf("mark earlier: %v", err)
	}
	got, ok, err := s.LastNotified(domain.NewPairID("b", "a"))
	if err != nil || !ok || !got.Equal(t1) {
		t.Fatalf("last = %v ok=%v err=%v, want %v", got, ok, err, t1)
	}

	t2 := t1.Add(time.Second)
	if err := s.MarkNotified(pair, t2); err != nil {
		t.Fatalf("mark later: %v", err)
	}
	if got, _, _ := s.LastNotified(pair); !got.Equal(t2) {
		t.Fatalf("last = %v, want %v", got, t2)
	}
}

func TestCorruptFileIsAnError(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "notified.json"), []byte("{"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, _, err := store.NewMarkFileStore(dir).LastNotified("p"); err == nil {
		t.Fatal("corrupt marks file read without error")
	}
}
