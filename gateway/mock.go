package gateway

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// MockSender implements Sender for testing
type MockSender struct {
	mu       sync.Mutex
	Sent     []Message
	Provider string
	Cost     float64
	FailWith error
}

func NewMockSender(provider string) *MockSender {
	return &MockSender{Provider: provider}
}

func (m *MockSender) Send(ctx context.Context, msg Message) (*SendResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.FailWith != nil {
		return nil, m.FailWith
	}

	m.Sent = append(m.Sent, msg)
	id := msg.MessageID
	if id == "" {
		id = fmt.Sprintf("mock-%d-%d", len(m.Sent), time.Now().UnixNano())
	}
	return &SendResult{MessageID: id, Provider: m.Provider, Cost: m.Cost}, nil
}

// SentMessages returns a copy of everything sent so far
func (m *MockSender) SentMessages() []Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Message, len(m.Sent))
	copy(out, m.Sent)
	return out
}
