package push

import (
	"context"
	"fmt"
	"strings"
)

// Sender delivers one message to one device.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// Message is a push notification addressed to a single device token.
type Message struct {
	Token    string            `json:"token"`
	Platform string            `json:"platform,omitempty"`
	Title    string            `json:"title"`
	Body     string            `json:"body"`
	Data     map[string]string `json:"data,omitempty"`
}

// Validate checks the token and that there is something to show.
func (m Message) Validate() error {
	if strings.TrimSpace(m.Token) == "" {
		return fmt.Errorf("%w: Token is required", ErrInvalidMessage)
	}
	if m.Title == "" && m.Body == "" {
		return fmt.Errorf("%w: Title or Body is required", ErrInvalidMessage)
	}
	return nil
}
