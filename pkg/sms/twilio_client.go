package sms

import (
	"context"
	"errors"
	"fmt"

	"github.com/twilio/twilio-go"
	twilioApi "github.com/twilio/twilio-go/rest/api/v2010"
)

// messageCreator is the part of the Twilio API used here.
type messageCreator interface {
	CreateMessage(params *twilioApi.CreateMessageParams) (*twilioApi.ApiV2010Message, error)
}

type twilioClient struct {
	api  messageCreator
	from string
}

// NewTwilioClient creates a Twilio backed Sender.
func NewTwilioClient(cfg Config) (Sender, error) {
	if cfg.TwilioAccountSID == "" {
		return nil, fmt.Errorf("%w: TwilioAccountSID is required", ErrInvalidConfig)
	}
	if cfg.TwilioAuthToken == "" {
		return nil, fmt.Errorf("%w: TwilioAuthToken is required", ErrInvalidConfig)
	}
	if !IsValidPhone(cfg.FromNumber) {
		return nil, fmt.Errorf("%w: FromNumber must be an E.164 phone number", ErrInvalidConfig)
	}

	client := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: cfg.TwilioAccountSID,
		Password: cfg.TwilioAuthToken,
	})

	return newTwilioClient(client.Api, NormalizePhone(cfg.FromNumber)), nil
}

func newTwilioClient(api messageCreator, from string) *twilioClient {
	return &twilioClient{api: api, from: from}
}

// SendSMS creates a message through the Twilio REST API. The SDK call does
// not take a context, so cancellation is only checked before the request.
func (c *twilioClient) SendSMS(ctx context.Context, msg Message) error {
	if err := msg.Validate(); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return errors.Join(ErrFailedToSendSMS, err)
	}

	params := &twilioApi.CreateMessageParams{}
	params.SetTo(NormalizePhone(msg.To))
	params.SetFrom(c.from)
	params.SetBody(msg.Body)

	resp, err := c.api.CreateMessage(params)
	if err != nil {
		return errors.Join(ErrFailedToSendSMS, err)
	}
	if resp != nil && resp.ErrorCode != nil && *resp.ErrorCode != 0 {
		msg := ""
		if resp.ErrorMessage != nil {
			msg = *resp.ErrorMessage
		}
		return errors.Join(ErrFailedToSendSMS, fmt.Errorf("twilio error: %d - %s", *resp.ErrorCode, msg))
	}
	return nil
}
