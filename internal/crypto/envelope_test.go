package crypto

import (
	"encoding/base64"
	"testing"
)

func TestSealOpenRoundTrip(t *testing.T) {
	keys := map[string][]byte{
		"k1": mustKey(t, "AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA="),
	}
	k, err := NewKeyring("k1", keys)
	if err != nil {
		t.Fatalf("new keyring: %v", err)
	}

	raw, err := k.SealString("sk-vault-secret")
	if err != nil {
		t.Fatalf("seal: %v", err)
	}
	out, err := k.OpenString(raw)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if out != "sk-vault-secret" {
		t.Fatalf("expected original secret, got %q", out)
	}
}

func TestRotationOpensOldSealsNew(t *testing.T) {
	oldKey := mustKey(t, "AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA=")
	newKey := mustKey(t, "AQEBAQEBAQEBAQEBAQEBAQEBAQEBAQEBAQEBAQEBAQE=")

	oldRing, err := NewKeyring("old", map[string][]byte{"old": oldKey})
	if err != nil {
		t.Fatalf("old keyring: %v", err)
	}
	oldCipher, err := oldRing.SealString("legacy")
	if err != nil {
		t.Fatalf("old seal: %v", err)
	}

	rotated, err := NewKeyring("new", map[string][]byte{
		"old": oldKey,
		"new": newKey,
	})
	if err != nil {
		t.Fatalf("rotated keyring: %v", err)
	}

	plain, err := rotated.OpenString(oldCipher)
	if err != nil {
		t.Fatalf("open with old key failed: %v", err)
	}
	if plain != "legacy" {
		t.Fatalf("unexpected plaintext: %q", plain)
	}

	resealed, err := rotated.Reseal(oldCipher)
	if err != nil {
		t.Fatalf("reseal: %v", err)
	}
	fresh, err := rotated.OpenString(resealed)
	if err != nil {
		t.Fatalf("open resealed: %v", err)
	}
	if fresh != "legacy" {
		t.Fatalf("unexpected resealed plaintext: %q", fresh)
	}
}

func TestMask(t *testing.T) {
	if got := Mask("sk-abcdef123456"); got != "sk-a****" {
		t.Fatalf("unexpected mask: %q", got)
	}
	if got := Mask("ab"); got != "****" {
		t.Fatalf("expected short secrets fully masked, got %q", got)
	}
}

func mustKey(t *testing.T, b64 string) []byte {
	t.Helper()
	k, err := base64.StdEncoding.DecodeString(b64)
	if err != nil {
		t.Fatalf("decode key: %v", err)
	}
	if len(k) != 32 {
		t.Fatalf("expected 32-byte key, got %d", len(k))
	}
	return k
}
