package notifications

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Contact is what the user directory knows about a user. Empty fields mean
// "not on file".
type Contact struct {
	Email    string
	Phone    string
	FullName string
}

// ContactDirectory looks users up in the HR staff records.
type ContactDirectory interface {
	// GetUserContact returns ErrUserNotFound for unknown users.
	GetUserContact(ctx context.Context, userID int64) (Contact, error)
}

// RecipientResolver turns (user, channel) into a Recipient. It only reads
// from the directory and the device store.
type RecipientResolver struct {
	directory ContactDirectory
	devices   DeviceStore
}

// NewRecipientResolver creates a resolver.
func NewRecipientResolver(directory ContactDirectory, devices DeviceStore) *RecipientResolver {
	return &RecipientResolver{directory: directory, devices: devices}
}

// Resolve returns ErrRecipientNotFound when the user cannot be reached on ch.
// Zero active devices is a valid push recipient.
func (r *RecipientResolver) Resolve(ctx context.Context, userID int64, ch Channel) (Recipient, error) {
	switch ch {
	case ChannelEmail:
		c, err := r.contact(ctx, userID)
		if err != nil {
			return nil, err
		}
		if strings.TrimSpace(c.Email) == "" {
			return nil, fmt.Errorf("%w: user %d has no email", ErrRecipientNotFound, userID)
		}
		return EmailRecipient{Email: c.Email, FullName: c.FullName}, nil

	case ChannelSMS:
		c, err := r.contact(ctx, userID)
		if err != nil {
			return nil, err
		}
		if strings.TrimSpace(c.Phone) == "" {
			return nil, fmt.Errorf("%w: user %d has no phone", ErrRecipientNotFound, userID)
		}
		return SMSRecipient{Phone: c.Phone}, nil

	case ChannelPush:
		devices, err := r.devices.ActiveDevices(ctx, userID)
		if err != nil {
			return nil, fmt.Errorf("load devices: %w", err)
		}
		rcpt := PushRecipient{
			Tokens:    make([]string, 0, len(devices)),
			Platforms: make([]string, 0, len(devices)),
		}
		for _, d := range devices {
			rcpt.Tokens = append(rcpt.Tokens, d.Token)
			rcpt.Platforms = append(rcpt.Platforms, d.Platform)
		}
		return rcpt, nil

	case ChannelInApp:
		return InAppRecipient{UserID: userID}, nil
	}

	return nil, fmt.Errorf("%w: %q", ErrUnknownChannel, ch)
}

func (r *RecipientResolver) contact(ctx context.Context, userID int64) (Contact, error) {
	c, err := r.directory.GetUserContact(ctx, userID)
	if errors.Is(err, ErrUserNotFound) {
		return Contact{}, errors.Join(ErrRecipientNotFound, err)
	}
	if err != nil {
		return Contact{}, fmt.Errorf("load contact: %w", err)
	}
	return c, nil
}
