package sms

import (
	"context"
	"fmt"
	"regexp"
	"strings"
)

// Sender delivers a single text message.
type Sender interface {
	SendSMS(ctx context.Context, msg Message) error
}

// Message is one outbound text.
type Message struct {
	To   string `json:"to"`
	Body string `json:"body"`
}

var e164 = regexp.MustCompile(`^\+[1-9][0-9]{6,14}$`)

// NormalizePhone strips spaces, dashes, dots and parentheses.
func NormalizePhone(s string) string {
	return strings.NewReplacer(" ", "", "-", "", "(", "", ")", "", ".", "").Replace(strings.TrimSpace(s))
}

// IsValidPhone reports whether s is an E.164 number after normalization.
func IsValidPhone(s string) bool {
	return e164.MatchString(NormalizePhone(s))
}

// Validate checks the destination number and body.
func (m Message) Validate() error {
	if m.To == "" {
		return fmt.Errorf("%w: To is required", ErrInvalidMessage)
	}
	if !IsValidPhone(m.To) {
		return fmt.Errorf("%w: To must be an E.164 phone number", ErrInvalidMessage)
	}
	if strings.TrimSpace(m.Body) == "" {
		return fmt.Errorf("%w: Body is required", ErrInvalidMessage)
	}
	return nil
}
