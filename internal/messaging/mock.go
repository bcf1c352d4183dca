package messaging

import (
	"context"
	"sync"
)

// SentMessage records one delivery made through a MockSender.
type SentMessage struct {
	To      string
	Subject string
	Body    string
}

// MockSender is a Sender that records messages instead of delivering them.
// Used in tests and in dry-run deployments.
type MockSender struct {
	mu       sync.Mutex
	Err      error // returned by every Send when non-nil
	Messages []SentMessage
}

// NewMockSender creates an empty MockSender.
func NewMockSender() *MockSender {
	return &MockSender{}
}

// Send records the message and returns the configured error, if any.
func (m *MockSender) Send(ctx context.Context, recipient, subject, body string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	m.Messages = append(m.Messages, SentMessage{To: recipient, Subject: subject, Body: body})
	return nil
}

// Sent returns a copy of the recorded messages.
func (m *MockSender) Sent() []SentMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]SentMessage, len(m.Messages))
	copy(out, m.Messages)
	return out
}
