// Package push delivers push notifications to a single device token.
//
// Three transports implement Sender:
//   - FCMClient posts to the Firebase Cloud Messaging HTTP v1 API using a
//     service account token source from golang.org/x/oauth2/google
//   - AMQPRelay publishes the message to a RabbitMQ exchange for a separate
//     push gateway to deliver
//   - LogSender logs the message, for development
//
// A token rejected by the provider is reported as ErrInvalidToken so callers
// can deactivate the device.
package push
