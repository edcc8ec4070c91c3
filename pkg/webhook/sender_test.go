// Copyright 2025 Certen Protocol

package webhook

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
)

func TestSender_SendSignsAndDeliversOnce(t *testing.T) {
	secret := "a-secret-at-least-32-bytes-long!"
	var received atomic.Int32

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		received.Add(1)
		body := make([]byte, r.ContentLength)
		r.Body.Read(body)

		header := r.Header.Get("X-Watchtower-Signature")
		v := NewVerifier(secret)
		if err := v.Verify(header, body); err != nil {
			t.Errorf("server-side verification failed: %v", err)
		}
		if r.Header.Get("X-Watchtower-Event") != "alert.raised" {
			t.Errorf("unexpected event header: %s", r.Header.Get("X-Watchtower-Event"))
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	sender := NewSender(Config{URL: server.URL, Secret: secret, TimeoutMs: 2000, MaxRetries: 2, RetryDelayMs: 10}, func() string { return "delivery-1" })
	if err := sender.Send(context.Background(), EventAlertRaised, map[string]string{"agentId": "agent-1"}); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if received.Load() != 1 {
		t.Fatalf("expected exactly one delivery, got %d", received.Load())
	}
}

func TestSender_SendRetriesOn5xxThenSucceeds(t *testing.T) {
	secret := "a-secret-at-least-32-bytes-long!"
	var attempts atomic.Int32

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if attempts.Add(1) < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	sender := NewSender(Config{URL: server.URL, Secret: secret, TimeoutMs: 2000, MaxRetries: 3, RetryDelayMs: 5}, nil)
	if err := sender.Send(context.Background(), EventAlertRaised, nil); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if attempts.Load() != 3 {
		t.Fatalf("expected 3 attempts before success, got %d", attempts.Load())
	}
}

func TestSender_SendDoesNotRetryOn4xx(t *testing.T) {
	secret := "a-secret-at-least-32-bytes-long!"
	var attempts atomic.Int32

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer server.Close()

	sender := NewSender(Config{URL: server.URL, Secret: secret, TimeoutMs: 2000, MaxRetries: 3, RetryDelayMs: 5}, nil)
	if err := sender.Send(context.Background(), EventAlertRaised, nil); err == nil {
		t.Fatalf("expected Send to return an error for a 400 response")
	}
	if attempts.Load() != 1 {
		t.Fatalf("expected exactly one attempt for a non-retryable response, got %d", attempts.Load())
	}
}
