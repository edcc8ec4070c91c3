// Copyright 2025 Certen Protocol

package signer

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ethereum/go-ethereum/crypto"

	"github.com/certen-labs/watchtower/pkg/config"
)

func newTestRemote(t *testing.T, serverURL string) *Remote {
	t.Helper()
	key, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	addr := crypto.PubkeyToAddress(key.PublicKey)

	s, err := New(Config{
		Type:          config.SignerAgentPasskey,
		RemoteURL:     serverURL,
		RemoteAddress: addr.Hex(),
		RemoteAPIKey:  "test-key",
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return s.(*Remote)
}

func TestRemote_SignMessagePostsAndDecodesSignature(t *testing.T) {
	fakeSig := make([]byte, 65)
	for i := range fakeSig {
		fakeSig[i] = byte(i)
	}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/passkey/sign" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer test-key" {
			t.Errorf("missing bearer auth header")
		}
		var req remoteSignRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if req.Kind != "message" {
			t.Errorf("unexpected kind %s", req.Kind)
		}
		json.NewEncoder(w).Encode(remoteSignResponse{Signature: hex.EncodeToString(fakeSig)})
	}))
	defer server.Close()

	r := newTestRemote(t, server.URL)
	sig, err := r.SignMessage(context.Background(), []byte("hello"))
	if err != nil {
		t.Fatalf("SignMessage: %v", err)
	}
	if hex.EncodeToString(sig) != hex.EncodeToString(fakeSig) {
		t.Fatalf("signature mismatch")
	}
}

func TestRemote_SignMessagePropagatesServiceError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		json.NewEncoder(w).Encode(remoteSignResponse{Error: "hsm unavailable"})
	}))
	defer server.Close()

	r := newTestRemote(t, server.URL)
	if _, err := r.SignMessage(context.Background(), []byte("hello")); err == nil {
		t.Fatalf("expected an error when the remote service returns 500")
	}
}

func TestRemote_IsHealthyReflectsHealthzStatus(t *testing.T) {
	healthy := true
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/healthz" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if healthy {
			w.WriteHeader(http.StatusOK)
		} else {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
	}))
	defer server.Close()

	r := newTestRemote(t, server.URL)
	if !r.IsHealthy(context.Background()) {
		t.Fatalf("expected healthy")
	}
	healthy = false
	if r.IsHealthy(context.Background()) {
		t.Fatalf("expected unhealthy")
	}
}

func TestRemote_GetTypeMatchesBackend(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer server.Close()

	key, _ := crypto.GenerateKey()
	addr := crypto.PubkeyToAddress(key.PublicKey)

	s, err := New(Config{Type: config.SignerGCPKMS, RemoteURL: server.URL, RemoteAddress: addr.Hex()})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if s.GetType() != config.SignerGCPKMS {
		t.Fatalf("unexpected type %s", s.GetType())
	}
}

func TestNew_RejectsUnknownSignerType(t *testing.T) {
	if _, err := New(Config{Type: config.SignerType("bogus")}); err == nil {
		t.Fatalf("expected an error for an unknown signer type")
	}
}
