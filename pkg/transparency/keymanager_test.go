// Copyright 2025 Certen Protocol

package transparency

import (
	"crypto/ed25519"
	"path/filepath"
	"testing"
)

func TestKeyManager_GeneratesAndPersistsKey(t *testing.T) {
	dir := t.TempDir()
	keyPath := filepath.Join(dir, "nested", "transparency.key")

	km := NewKeyManager(keyPath)
	if err := km.LoadOrGenerate(); err != nil {
		t.Fatalf("LoadOrGenerate: %v", err)
	}
	if len(km.PublicKey()) == 0 {
		t.Fatalf("expected a non-empty public key")
	}

	km2 := NewKeyManager(keyPath)
	if err := km2.LoadOrGenerate(); err != nil {
		t.Fatalf("LoadOrGenerate (reload): %v", err)
	}
	if km.PublicKeyBase64() != km2.PublicKeyBase64() {
		t.Fatalf("reloaded key does not match the persisted one")
	}
}

func TestKeyManager_SignIsVerifiableWithPublicKey(t *testing.T) {
	km := NewKeyManager("")
	if err := km.LoadOrGenerate(); err != nil {
		t.Fatalf("LoadOrGenerate: %v", err)
	}
	msg := []byte("hello watchtower")
	sig := km.Sign(msg)
	if !ed25519.Verify(km.PublicKey(), msg, sig) {
		t.Fatalf("expected signature to verify against the manager's public key")
	}
}
