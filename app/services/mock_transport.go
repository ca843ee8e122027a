package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/waxal-io/waxal/utils"
)

// MockTransport implements TransportAdapter for testing
type MockTransport struct {
	mu        sync.Mutex
	sent      []MockSentMessage
	nextID    int
	FailFor   map[string]string // receiver -> error message
	Delay     time.Duration
	FailError string // when set, every send fails with this reason
}

// MockSentMessage represents one recorded transport call
type MockSentMessage struct {
	Receiver  string
	Body      string
	Template  string
	Variables []string
	Channel   string
	SentAt    time.Time
}

// NewMockTransport creates a new mock transport
func NewMockTransport() *MockTransport {
	return &MockTransport{
		FailFor: make(map[string]string),
	}
}

func (m *MockTransport) send(ctx context.Context, receiver, body, template string, variables []string, channel string) SendResult {
	if m.Delay > 0 {
		select {
		case <-time.After(m.Delay):
		case <-ctx.Done():
			return failure(ctx.Err())
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.FailError != "" {
		return SendResult{Success: false, Error: m.FailError}
	}
	if reason, ok := m.FailFor[receiver]; ok {
		return SendResult{Success: false, Error: reason}
	}

	m.nextID++
	m.sent = append(m.sent, MockSentMessage{
		Receiver:  receiver,
		Body:      body,
		Template:  template,
		Variables: append([]string(nil), variables...),
		Channel:   channel,
		SentAt:    utils.UTCNow(),
	})
	return SendResult{Success: true, MessageID: fmt.Sprintf("mock-%d", m.nextID)}
}

// SendSMS records a mock SMS send
func (m *MockTransport) SendSMS(ctx context.Context, sender, receiver, body string) SendResult {
	return m.send(ctx, receiver, body, "", nil, "SMS")
}

// SendWhatsApp records a mock WhatsApp send
func (m *MockTransport) SendWhatsApp(ctx context.Context, receiver, templateName string, variables []string, ownerLogin string) SendResult {
	return m.send(ctx, receiver, "", templateName, variables, "WHATSAPP")
}

// SentMessages returns all recorded sends
func (m *MockTransport) SentMessages() []MockSentMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]MockSentMessage, len(m.sent))
	copy(out, m.sent)
	return out
}

// SentCount returns the number of recorded sends
func (m *MockTransport) SentCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sent)
}

// ClearSentMessages clears the recorded sends
func (m *MockTransport) ClearSentMessages() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = nil
}
