package transport

import (
	"context"
)

// Result reports the outcome of one delivery attempt
type Result struct {
	MessageID string
	Status    string // "sent", "failed"
	Detail    string
}

// Transport delivers a text message to a phone number
type Transport interface {
	// Name returns the transport name.
	Name() string
	// SendText delivers body to the normalized phone number.
	SendText(ctx context.Context, phone, body string) (*Result, error)
}
