// Package notifications is a template driven, multi-channel notification
// engine with a durable queue and a recurring dispatcher.
//
// Producers call Service.Queue with a template name and a payload. The service
// loads the template, applies the user's preference for that notification
// type, renders the {placeholder} variables and enqueues one pending item per
// channel (email, push, sms, in_app). A channel whose recipient cannot be
// resolved is skipped without affecting the others; a disabled preference
// queues nothing.
//
// The Dispatcher selects due items by priority and schedule, reserves each one
// with an atomic conditional update and hands it to the Sender registered for
// its channel. Failures are retried until the item's attempt limit, after
// which the item is terminally failed and reported by Service.FailedDeliveries.
//
// # Basic Usage
//
//	storage := notifications.NewMemoryStorage()
//	svc := notifications.NewService(storage, directory)
//
//	n, err := svc.Queue(ctx, 42, "leave_approved", map[string]any{
//	    "leave_type": "Annual",
//	    "start":      "2026-02-01",
//	    "end":        "2026-02-05",
//	})
//
//	d := notifications.NewDispatcher(storage, []notifications.Sender{
//	    notifications.NewEmailSender(mailer),
//	    notifications.NewPushSender(pushClient, notifications.WithDeviceCleanup(storage)),
//	    notifications.NewSMSSender(smsClient),
//	    notifications.NewInAppSender(storage),
//	}, notifications.WithInterval(5*time.Minute))
//
//	g.Go(d.Run(ctx))
//
// # Storage
//
// MemoryStorage is suitable for development and tests. The pgstore
// subpackage implements Storage on PostgreSQL.
package notifications
