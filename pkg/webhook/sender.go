// Copyright 2025 Certen Protocol
//
// Sender posts signed event deliveries to a single configured
// endpoint, retrying transient failures through pkg/resilience, and
// optionally emitting a periodic heartbeat.

package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/certen-labs/watchtower/pkg/resilience"
)

// Event types emitted by the watchtower.
const (
	EventAlertRaised   = "alert.raised"
	EventAlertResolved = "alert.resolved"
	EventActionTaken   = "action.taken"
	EventHeartbeat     = "heartbeat"
)

// Envelope is the JSON body posted to the webhook endpoint.
type Envelope struct {
	Event      string      `json:"event"`
	DeliveryID string      `json:"deliveryId"`
	Timestamp  time.Time   `json:"timestamp"`
	Data       interface{} `json:"data"`
}

// Config configures a Sender.
type Config struct {
	URL                 string
	Secret              string
	TimeoutMs           int64
	MaxRetries          int
	RetryDelayMs        int64
	SendHeartbeat       bool
	HeartbeatIntervalMs int64
}

// Sender posts signed Envelopes to Config.URL.
type Sender struct {
	cfg        Config
	httpClient *http.Client
	logger     *log.Logger
	newID      func() string
	now        func() time.Time
}

// NewSender builds a Sender from cfg. newID generates delivery ids
// (e.g. uuid.NewString); if nil, a clock-derived id is used.
func NewSender(cfg Config, newID func() string) *Sender {
	if newID == nil {
		newID = func() string { return fmt.Sprintf("delivery-%d", time.Now().UnixNano()) }
	}
	return &Sender{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: time.Duration(cfg.TimeoutMs) * time.Millisecond},
		logger:     log.New(log.Writer(), "[webhook] ", log.LstdFlags),
		newID:      newID,
		now:        time.Now,
	}
}

// Send delivers one event with data as its payload, retrying
// transient HTTP/network failures up to cfg.MaxRetries times.
func (s *Sender) Send(ctx context.Context, event string, data interface{}) error {
	envelope := Envelope{
		Event:      event,
		DeliveryID: s.newID(),
		Timestamp:  s.now().UTC(),
		Data:       data,
	}
	body, err := json.Marshal(envelope)
	if err != nil {
		return fmt.Errorf("webhook: marshal envelope: %w", err)
	}

	result := resilience.WithRetry(ctx, resilience.RetryConfig{
		MaxRetries:  s.cfg.MaxRetries,
		BaseDelayMs: s.cfg.RetryDelayMs,
		MaxDelayMs:  s.cfg.RetryDelayMs * 10,
		IsRetryable: resilience.DefaultIsRetryable,
		OnRetry: func(attempt int, err error, delay time.Duration) {
			s.logger.Printf("delivery %s attempt %d failed: %v (retrying in %s)", envelope.DeliveryID, attempt, err, delay)
		},
	}, func(ctx context.Context) (interface{}, error) {
		return nil, s.deliver(ctx, envelope, body)
	})
	if !result.Success {
		return fmt.Errorf("webhook: deliver %s after %d attempts: %w", envelope.DeliveryID, result.Attempts, result.Err)
	}
	return nil
}

func (s *Sender) deliver(ctx context.Context, envelope Envelope, body []byte) error {
	ts := s.now().Unix()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.cfg.URL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Watchtower-Signature", Sign(s.cfg.Secret, ts, body))
	req.Header.Set("X-Watchtower-Delivery-Id", envelope.DeliveryID)
	req.Header.Set("X-Watchtower-Event", envelope.Event)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("network error: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= 500 {
		return fmt.Errorf("5xx response: %d", resp.StatusCode)
	}
	if resp.StatusCode >= 400 {
		return fmt.Errorf("webhook: client error response %d", resp.StatusCode)
	}
	return nil
}

// RunHeartbeat blocks, sending an EventHeartbeat every
// HeartbeatIntervalMs until ctx is canceled. Callers should run this
// in its own goroutine when cfg.SendHeartbeat is true.
func (s *Sender) RunHeartbeat(ctx context.Context) {
	if !s.cfg.SendHeartbeat || s.cfg.HeartbeatIntervalMs <= 0 {
		return
	}
	ticker := time.NewTicker(time.Duration(s.cfg.HeartbeatIntervalMs) * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.Send(ctx, EventHeartbeat, map[string]string{"status": "alive"}); err != nil {
				s.logger.Printf("heartbeat delivery failed: %v", err)
			}
		}
	}
}
