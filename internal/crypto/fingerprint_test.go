package crypto_test

import (
	"testing"

	"pairchat/internal/crypto"
	"pairchat/internal/domain"
)

func TestFingerprintIdentity(t *testing.T) {
	keys, err := crypto.NewKeyPair()
	if err != nil {
		t.Fatalf("keypair: %v", err)
	}
	id := crypto.IdentityFromPublic(keys.Public)
	fp, err := crypto.FingerprintIdentity(id)
	if err != nil {
		t.Fatalf("fingerprint: %v", err)
	}
	if len(fp) != 20 || string(fp) != crypto.Fingerprint(keys.Public[:]) {
		t.Fatalf("fingerprint %q does not match the public key", fp)
	}
	if _, err := crypto.FingerprintIdentity("???"); err == nil {
		t.Fatal("garbage identity fingerprinted")
	}
}

func TestFormatFingerprint(t *testing.T) {
	cases := map[domain.Fingerprint]string{
		"":                     "",
		"abc":                  "abc",
		"abcd1234":             "abcd 1234",
		"0123456789abcdef0123": "0123 4567 89ab cdef 0123",
	}
	for in, want := range cases {
		if got := crypto.FormatFingerprint(in); got != want {
			t.Fatalf("FormatFingerprint(%q) = %q, want %q", in, got, want)
		}
	}
}
