package push

import "errors"

var (
	ErrFailedToSend   = errors.New("push: failed to send message")
	ErrInvalidToken   = errors.New("push: device token is not registered with the provider")
	ErrInvalidConfig  = errors.New("push: invalid config")
	ErrInvalidMessage = errors.New("push: invalid message")
)
