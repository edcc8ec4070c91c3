// Copyright 2025 Certen Protocol

package identity

import (
	"bytes"
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
)

func resolveTo(ip string) func(ctx context.Context, host string) ([]net.IP, error) {
	return func(ctx context.Context, host string) ([]net.IP, error) {
		return []net.IP{net.ParseIP(ip)}, nil
	}
}

func TestFetchAgentCard_BlocksPrivateIPWithoutRequest(t *testing.T) {
	called := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	defer srv.Close()

	cfg := CardFetchConfig{resolveHost: resolveTo("192.168.1.1")}
	res := FetchAgentCard(context.Background(), cfg, "https://internal.example/card")

	if res.Status != FetchSSRFBlocked {
		t.Fatalf("expected SSRF_BLOCKED, got %+v", res)
	}
	if called {
		t.Fatalf("expected no outbound HTTP request to be issued")
	}
}

func TestFetchAgentCard_RejectsDisallowedScheme(t *testing.T) {
	cfg := CardFetchConfig{resolveHost: resolveTo("8.8.8.8")}
	res := FetchAgentCard(context.Background(), cfg, "file:///etc/passwd")
	if res.Status != FetchSSRFBlocked {
		t.Fatalf("expected SSRF_BLOCKED for file: scheme, got %+v", res)
	}
}

func TestFetchAgentCard_LoopbackServerIsBlockedByDefault(t *testing.T) {
	card := map[string]string{"agentId": "agent-1", "name": "Test Agent"}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(card)
	}))
	defer srv.Close()

	cfg := CardFetchConfig{AllowHTTP: true}
	res := FetchAgentCard(context.Background(), cfg, srv.URL)

	if res.Status != FetchSSRFBlocked {
		t.Fatalf("expected loopback to be blocked by real DNS resolution, got %+v", res)
	}
}

func TestFetchAgentCard_ValidCardReturnsOK(t *testing.T) {
	card := map[string]string{"agentId": "agent-1", "name": "Test Agent"}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(card)
	}))
	defer srv.Close()

	// The SSRF pre-check is faked to treat the host as public; the
	// underlying request still dials the real (loopback) test server.
	cfg := CardFetchConfig{resolveHost: resolveTo("8.8.8.8"), AllowHTTP: true}
	res := FetchAgentCard(context.Background(), cfg, srv.URL)

	if res.Status != FetchOK {
		t.Fatalf("expected OK, got %+v", res)
	}
	if res.CardHash == "" {
		t.Errorf("expected a non-empty card hash")
	}
}

func TestFetchAgentCard_InvalidSchemaRejected(t *testing.T) {
	body := []byte(`{"description":"missing required fields"}`)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(body)
	}))
	defer srv.Close()

	if err := validateAgentCardSchema(body); err == nil {
		t.Fatalf("expected schema validation to reject a card missing agentId/name")
	}
}

func TestFetchAgentCard_CapsResponseSize(t *testing.T) {
	big := bytes.Repeat([]byte("x"), 100)
	if _, err := readCapped(bytes.NewReader(big), 10); err == nil {
		t.Fatalf("expected readCapped to reject a body over its cap")
	}
}
