// Copyright 2025 Certen Protocol
//
// KeyManager handles Ed25519 signing-key load/generate/save: load an
// existing key file if present, otherwise generate and persist a new
// one under a restrictive-permission directory.

package transparency

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
)

// KeyManager owns one Ed25519 key pair used to sign transparency leaves.
type KeyManager struct {
	keyPath    string
	privateKey ed25519.PrivateKey
	publicKey  ed25519.PublicKey
}

// NewKeyManager creates a key manager rooted at keyPath. An empty
// keyPath means the key is never persisted.
func NewKeyManager(keyPath string) *KeyManager {
	return &KeyManager{keyPath: keyPath}
}

// LoadOrGenerate loads the key at keyPath if it exists, else generates
// and (if keyPath is set) saves a new one.
func (km *KeyManager) LoadOrGenerate() error {
	if km.keyPath != "" {
		if _, err := os.Stat(km.keyPath); err == nil {
			return km.Load()
		}
	}
	return km.generateAndSave()
}

// Load reads a hex-encoded Ed25519 seed from keyPath.
func (km *KeyManager) Load() error {
	if km.keyPath == "" {
		return fmt.Errorf("transparency: no key path specified")
	}
	data, err := os.ReadFile(km.keyPath)
	if err != nil {
		return fmt.Errorf("transparency: read key file: %w", err)
	}
	seed, err := hex.DecodeString(string(data))
	if err != nil {
		return fmt.Errorf("transparency: decode key hex: %w", err)
	}
	if len(seed) != ed25519.SeedSize {
		return fmt.Errorf("transparency: key file has %d bytes, want %d", len(seed), ed25519.SeedSize)
	}
	km.privateKey = ed25519.NewKeyFromSeed(seed)
	km.publicKey = km.privateKey.Public().(ed25519.PublicKey)
	return nil
}

func (km *KeyManager) generateAndSave() error {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return fmt.Errorf("transparency: generate key pair: %w", err)
	}
	km.privateKey = priv
	km.publicKey = pub

	if km.keyPath == "" {
		return nil
	}
	return km.save()
}

func (km *KeyManager) save() error {
	dir := filepath.Dir(km.keyPath)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("transparency: create key directory: %w", err)
	}
	seed := km.privateKey.Seed()
	if err := os.WriteFile(km.keyPath, []byte(hex.EncodeToString(seed)), 0o600); err != nil {
		return fmt.Errorf("transparency: write key file: %w", err)
	}
	return nil
}

// PublicKey returns the loaded/generated Ed25519 public key.
func (km *KeyManager) PublicKey() ed25519.PublicKey { return km.publicKey }

// PublicKeyBase64 returns the public key, base64-encoded, for config
// or display surfaces.
func (km *KeyManager) PublicKeyBase64() string {
	return base64.StdEncoding.EncodeToString(km.publicKey)
}

// Sign signs message with the loaded private key.
func (km *KeyManager) Sign(message []byte) []byte {
	return ed25519.Sign(km.privateKey, message)
}
