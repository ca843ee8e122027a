// Package services provides external service integrations and technical concerns like transports and tokens
package services

import "context"

// SendResult is the outcome of one transport call for one recipient
type SendResult struct {
	Success   bool   `json:"success"`
	MessageID string `json:"message_id,omitempty"`
	Error     string `json:"error,omitempty"`
}

// TransportAdapter abstracts sending one message to one recipient. Callers
// bound each call with a context deadline; a timeout is a delivery failure,
// never a hang.
type TransportAdapter interface {
	SendSMS(ctx context.Context, sender, receiver, body string) SendResult
	SendWhatsApp(ctx context.Context, receiver, templateName string, variables []string, ownerLogin string) SendResult
}

func failure(err error) SendResult {
	return SendResult{Success: false, Error: err.Error()}
}
