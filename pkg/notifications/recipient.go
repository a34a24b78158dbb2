package notifications

import (
	"encoding/json"
	"fmt"
)

// Recipient is the resolved delivery target of a queue item. The concrete type
// matches the item's channel.
type Recipient interface {
	Channel() Channel
}

// EmailRecipient targets the email channel.
type EmailRecipient struct {
	Email    string `json:"email"`
	FullName string `json:"full_name,omitempty"`
}

// PushRecipient holds the user's active device tokens at queue time.
// Platforms[i] belongs to Tokens[i].
type PushRecipient struct {
	Tokens    []string `json:"device_tokens"`
	Platforms []string `json:"platforms"`
}

// SMSRecipient targets the sms channel.
type SMSRecipient struct {
	Phone string `json:"phone"`
}

// InAppRecipient targets the user's in-app inbox.
type InAppRecipient struct {
	UserID int64 `json:"user_id"`
}

func (EmailRecipient) Channel() Channel { return ChannelEmail }
func (PushRecipient) Channel() Channel  { return ChannelPush }
func (SMSRecipient) Channel() Channel   { return ChannelSMS }
func (InAppRecipient) Channel() Channel { return ChannelInApp }

// MarshalRecipient serializes r for storage.
func MarshalRecipient(r Recipient) ([]byte, error) {
	if r == nil {
		return []byte("null"), nil
	}
	return json.Marshal(r)
}

// UnmarshalRecipient decodes data stored for channel ch.
func UnmarshalRecipient(ch Channel, data []byte) (Recipient, error) {
	if len(data) == 0 || string(data) == "null" {
		return nil, nil
	}

	var (
		r   Recipient
		err error
	)
	switch ch {
	case ChannelEmail:
		var v EmailRecipient
		err = json.Unmarshal(data, &v)
		r = v
	case ChannelPush:
		var v PushRecipient
		err = json.Unmarshal(data, &v)
		r = v
	case ChannelSMS:
		var v SMSRecipient
		err = json.Unmarshal(data, &v)
		r = v
	case ChannelInApp:
		var v InAppRecipient
		err = json.Unmarshal(data, &v)
		r = v
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownChannel, ch)
	}
	if err != nil {
		return nil, fmt.Errorf("decode %s recipient: %w", ch, err)
	}
	return r, nil
}
