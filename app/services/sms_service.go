package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/waxal-io/waxal/config"
)

// SMSGatewayClient sends single SMS messages through the HTTP gateway
type SMSGatewayClient struct {
	config *config.SMSConfig
	client *http.Client
}

// smsGatewayRequest represents the request payload for the SMS gateway API
type smsGatewayRequest struct {
	SrcNum     string `json:"srcNum"`
	Recipient  string `json:"recipient"`
	Body       string `json:"body"`
	RetryCount int    `json:"retryCount"`
	Type       int    `json:"type"` // Always 1
}

// smsGatewayResponse represents one message result from the SMS gateway API
type smsGatewayResponse struct {
	MessageID  int64  `json:"messageId"`
	Recipient  string `json:"recipient"`
	Status     string `json:"status"`
	StatusCode int    `json:"statusCode"`
}

// NewSMSGatewayClient creates a new SMS gateway client
func NewSMSGatewayClient(cfg *config.SMSConfig) *SMSGatewayClient {
	return &SMSGatewayClient{
		config: cfg,
		client: &http.Client{
			Timeout: cfg.Timeout,
		},
	}
}

// SendSMS sends one SMS message and reports the gateway outcome
func (s *SMSGatewayClient) SendSMS(ctx context.Context, sender, receiver, body string) SendResult {
	if sender == "" {
		sender = s.config.SourceNumber
	}

	payload := smsGatewayRequest{
		SrcNum:     sender,
		Recipient:  receiver,
		Body:       body,
		RetryCount: s.config.RetryCount,
		Type:       1,
	}

	requestBody, err := json.Marshal([]smsGatewayRequest{payload})
	if err != nil {
		return failure(fmt.Errorf("failed to marshal SMS request: %w", err))
	}

	url := fmt.Sprintf("https://%s/api/v3.0.1/send", s.config.ProviderDomain)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(requestBody))
	if err != nil {
		return failure(fmt.Errorf("failed to create HTTP request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", s.config.APIKey)

	resp, err := s.client.Do(req)
	if err != nil {
		return failure(fmt.Errorf("failed to send SMS request: %w", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return failure(fmt.Errorf("SMS gateway http status: %d", resp.StatusCode))
	}

	var results []smsGatewayResponse
	if err := json.NewDecoder(resp.Body).Decode(&results); err != nil {
		return failure(fmt.Errorf("failed to decode SMS gateway response: %w", err))
	}
	if len(results) == 0 {
		return failure(fmt.Errorf("empty SMS gateway response"))
	}

	r := results[0]
	if r.StatusCode != 200 || r.Status != "ACCEPTED" {
		return SendResult{Success: false, Error: fmt.Sprintf("%s (%d)", r.Status, r.StatusCode)}
	}
	return SendResult{Success: true, MessageID: fmt.Sprintf("%d", r.MessageID)}
}

// SendWhatsApp is not supported by the SMS gateway
func (s *SMSGatewayClient) SendWhatsApp(ctx context.Context, receiver, templateName string, variables []string, ownerLogin string) SendResult {
	return failure(fmt.Errorf("whatsapp is not supported by the SMS gateway"))
}
