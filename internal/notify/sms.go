package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/krishiconnect/backend/internal/logger"
)

// SMSSender delivers a short text message to a phone number.
type SMSSender interface {
	Send(ctx context.Context, phone, message string) error
}

// GatewaySMSSender posts messages to an HTTP SMS gateway.
type GatewaySMSSender struct {
	url      string
	apiKey   string
	senderID string
	client   *http.Client
}

// NewGatewaySMSSender creates a sender for the configured gateway.
func NewGatewaySMSSender(url, apiKey, senderID string) *GatewaySMSSender {
	return &GatewaySMSSender{
		url:      url,
		apiKey:   apiKey,
		senderID: senderID,
		client:   &http.Client{Timeout: 10 * time.Second},
	}
}

type gatewayRequest struct {
	To       string `json:"to"`
	Message  string `json:"message"`
	SenderID string `json:"sender_id"`
}

func (s *GatewaySMSSender) Send(ctx context.Context, phone, message string) error {
	body, err := json.Marshal(gatewayRequest{To: phone, Message: message, SenderID: s.senderID})
	if err != nil {
		return fmt.Errorf("sms gateway: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("sms gateway: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.apiKey)

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("sms gateway: send: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("sms gateway: unexpected status %d", resp.StatusCode)
	}
	return nil
}

// LogSMSSender logs messages instead of sending them. Used in development
// when no gateway is configured.
type LogSMSSender struct{}

func (LogSMSSender) Send(ctx context.Context, phone, message string) error {
	logger.Log.WithField("phone", maskPhone(phone)).WithField("message", message).Info("sms (dev mode, not sent)")
	return nil
}

// maskPhone keeps only the last four digits.
func maskPhone(phone string) string {
	if len(phone) <= 4 {
		return "******"
	}
	return "******" + phone[len(phone)-4:]
}
