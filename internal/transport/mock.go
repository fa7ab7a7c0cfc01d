package transport

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"

	domainErrors "github.com/rafaelcosta/dunning/internal/domain/errors"
)

// MockTransport simulates a gateway for development and tests. Deliveries
// are recorded so tests can assert on what went out.
type MockTransport struct {
	mu          sync.Mutex
	name        string
	failureRate float64 // 0.0 to 1.0
	latency     time.Duration
	sent        []SentMessage
}

type SentMessage struct {
	Phone string
	Body  string
}

type MockTransportOption func(*MockTransport)

func WithFailureRate(rate float64) MockTransportOption {
	return func(t *MockTransport) { t.failureRate = rate }
}

func WithLatency(d time.Duration) MockTransportOption {
	return func(t *MockTransport) { t.latency = d }
}

func NewMockTransport(opts ...MockTransportOption) *MockTransport {
	t := &MockTransport{
		name:    "mock",
		latency: 10 * time.Millisecond,
	}
	for _, o := range opts {
		o(t)
	}
	return t
}

func (t *MockTransport) Name() string { return t.name }

func (t *MockTransport) SendText(ctx context.Context, phone, body string) (*Result, error) {
	select {
	case <-time.After(t.latency):
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	if rand.Float64() < t.failureRate {
		return nil, fmt.Errorf("%w: simulated gateway failure", domainErrors.ErrTransportUnavailable)
	}

	t.mu.Lock()
	t.sent = append(t.sent, SentMessage{Phone: phone, Body: body})
	t.mu.Unlock()

	return &Result{
		MessageID: fmt.Sprintf("mock_%s", uuid.New().String()[:8]),
		Status:    "sent",
	}, nil
}

// Sent returns a copy of everything delivered so far.
func (t *MockTransport) Sent() []SentMessage {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]SentMessage, len(t.sent))
	copy(out, t.sent)
	return out
}
