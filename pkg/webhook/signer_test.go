// Copyright 2025 Certen Protocol

package webhook

import (
	"testing"
	"time"
)

func TestSignThenVerifyRoundTrips(t *testing.T) {
	secret := "a-secret-at-least-32-bytes-long!"
	body := []byte(`{"event":"ALERT_RAISED"}`)
	now := time.Now()

	header := Sign(secret, now.Unix(), body)
	v := &Verifier{Secret: secret, MaxAgeSeconds: DefaultMaxAgeSeconds, Now: func() time.Time { return now }}
	if err := v.Verify(header, body); err != nil {
		t.Fatalf("Verify: %v", err)
	}
}

func TestVerifyRejectsTamperedBody(t *testing.T) {
	secret := "a-secret-at-least-32-bytes-long!"
	now := time.Now()
	header := Sign(secret, now.Unix(), []byte(`{"event":"A"}`))

	v := &Verifier{Secret: secret, Now: func() time.Time { return now }}
	if err := v.Verify(header, []byte(`{"event":"B"}`)); err == nil {
		t.Fatalf("expected a tampered body to fail verification")
	}
}

func TestVerifyRejectsStaleTimestamp(t *testing.T) {
	secret := "a-secret-at-least-32-bytes-long!"
	signedAt := time.Now().Add(-10 * time.Minute)
	body := []byte(`{"event":"A"}`)
	header := Sign(secret, signedAt.Unix(), body)

	v := &Verifier{Secret: secret, MaxAgeSeconds: 300, Now: time.Now}
	if err := v.Verify(header, body); err == nil {
		t.Fatalf("expected a 10-minute-old signature to be rejected at a 300s window")
	}
}

func TestVerifyRejectsFarFutureTimestamp(t *testing.T) {
	secret := "a-secret-at-least-32-bytes-long!"
	signedAt := time.Now().Add(5 * time.Minute)
	body := []byte(`{"event":"A"}`)
	header := Sign(secret, signedAt.Unix(), body)

	v := &Verifier{Secret: secret, Now: time.Now}
	if err := v.Verify(header, body); err == nil {
		t.Fatalf("expected a signature 5 minutes in the future to be rejected")
	}
}

func TestVerifyAllowsSmallFutureSkew(t *testing.T) {
	secret := "a-secret-at-least-32-bytes-long!"
	signedAt := time.Now().Add(30 * time.Second)
	body := []byte(`{"event":"A"}`)
	header := Sign(secret, signedAt.Unix(), body)

	v := &Verifier{Secret: secret, Now: time.Now}
	if err := v.Verify(header, body); err != nil {
		t.Fatalf("expected a 30s future skew to be tolerated, got %v", err)
	}
}

func TestVerifyRejectsMalformedHeader(t *testing.T) {
	v := &Verifier{Secret: "x", Now: time.Now}
	if err := v.Verify("not-a-valid-header", []byte("body")); err == nil {
		t.Fatalf("expected a malformed header to be rejected")
	}
}
