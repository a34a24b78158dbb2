package notifications_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/hrnotify/pkg/circuitbreaker"
	"github.com/dmitrymomot/hrnotify/pkg/email"
	"github.com/dmitrymomot/hrnotify/pkg/notifications"
	"github.com/dmitrymomot/hrnotify/pkg/push"
	"github.com/dmitrymomot/hrnotify/pkg/sms"
)

type mockMailer struct {
	mock.Mock
}

func (m *mockMailer) SendEmail(ctx context.Context, params email.SendEmailParams) error {
	args := m.Called(ctx, params)
	return args.Error(0)
}

type mockSMS struct {
	mock.Mock
}

func (m *mockSMS) SendSMS(ctx context.Context, msg sms.Message) error {
	args := m.Called(ctx, msg)
	return args.Error(0)
}

// fakePush fails tokens listed in errs.
type fakePush struct {
	errs map[string]error

	mu   sync.Mutex
	msgs []push.Message
}

func (f *fakePush) Send(_ context.Context, msg push.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.msgs = append(f.msgs, msg)
	return f.errs[msg.Token]
}

func TestEmailSender(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	item := notifications.QueueItem{
		ID:               uuid.New(),
		NotificationType: "leave_approved",
		Title:            "Annual leave approved",
		Message:          "Enjoy <your> time off",
		Channel:          notifications.ChannelEmail,
		Recipient:        notifications.EmailRecipient{Email: "jane@example.com"},
	}

	t.Run("renders html and falls back to title as subject", func(t *testing.T) {
		t.Parallel()

		mailer := new(mockMailer)
		defer mailer.AssertExpectations(t)
		mailer.On("SendEmail", mock.Anything, email.SendEmailParams{
			SendTo:   "jane@example.com",
			Subject:  "Annual leave approved",
			BodyHTML: "<h2>Annual leave approved</h2><p>Enjoy &lt;your&gt; time off</p>",
			Tag:      "leave_approved",
		}).Return(nil)

		sender := notifications.NewEmailSender(mailer)
		assert.Equal(t, notifications.ChannelEmail, sender.Channel())
		require.NoError(t, sender.Send(ctx, item))
	})

	t.Run("uses subject when rendered", func(t *testing.T) {
		t.Parallel()

		mailer := new(mockMailer)
		defer mailer.AssertExpectations(t)
		mailer.On("SendEmail", mock.Anything, mock.MatchedBy(func(p email.SendEmailParams) bool {
			return p.Subject == "Leave request"
		})).Return(nil)

		withSubject := item
		withSubject.Subject = "Leave request"
		require.NoError(t, notifications.NewEmailSender(mailer).Send(ctx, withSubject))
	})

	t.Run("transport error is returned", func(t *testing.T) {
		t.Parallel()

		mailer := new(mockMailer)
		mailer.On("SendEmail", mock.Anything, mock.Anything).Return(email.ErrFailedToSendEmail)

		err := notifications.NewEmailSender(mailer).Send(ctx, item)
		assert.ErrorIs(t, err, email.ErrFailedToSendEmail)
	})

	t.Run("missing address", func(t *testing.T) {
		t.Parallel()

		mailer := new(mockMailer)
		noAddress := item
		noAddress.Recipient = notifications.EmailRecipient{}

		err := notifications.NewEmailSender(mailer).Send(ctx, noAddress)
		assert.ErrorIs(t, err, notifications.ErrRecipientNotFound)
		mailer.AssertNotCalled(t, "SendEmail", mock.Anything, mock.Anything)
	})
}

func TestPushSender(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	newItem := func(tokens ...string) notifications.QueueItem {
		platforms := make([]string, len(tokens))
		for i := range platforms {
			platforms[i] = "android"
		}
		return notifications.QueueItem{
			ID:               uuid.New(),
			UserID:           7,
			NotificationType: "leave_approved",
			Title:            "T",
			Message:          "M",
			Channel:          notifications.ChannelPush,
			Recipient:        notifications.PushRecipient{Tokens: tokens, Platforms: platforms},
		}
	}

	t.Run("zero tokens is nothing to deliver", func(t *testing.T) {
		t.Parallel()

		transport := &fakePush{}
		err := notifications.NewPushSender(transport).Send(ctx, newItem())
		assert.ErrorIs(t, err, notifications.ErrNothingToDeliver)
		assert.Empty(t, transport.msgs)
	})

	t.Run("partial delivery succeeds and invalid tokens are deactivated", func(t *testing.T) {
		t.Parallel()

		storage := notifications.NewMemoryStorage()
		registry := notifications.NewDeviceRegistry(storage, discardLogger())
		for _, tok := range []string{"a", "b", "c"} {
			_, err := registry.Register(ctx, notifications.Device{UserID: 7, Token: tok, DeviceType: "mobile", Platform: "android"})
			require.NoError(t, err)
		}

		transport := &fakePush{errs: map[string]error{
			"b": push.ErrInvalidToken,
			"c": push.ErrFailedToSend,
		}}
		sender := notifications.NewPushSender(transport,
			notifications.WithDeviceCleanup(storage),
			notifications.WithPushLogger(discardLogger()))

		require.NoError(t, sender.Send(ctx, newItem("a", "b", "c")))
		require.Len(t, transport.msgs, 3)
		assert.Equal(t, "android", transport.msgs[0].Platform)
		assert.Equal(t, "leave_approved", transport.msgs[0].Data["notification_type"])

		active, err := storage.ActiveDevices(ctx, 7)
		require.NoError(t, err)
		var tokens []string
		for _, d := range active {
			tokens = append(tokens, d.Token)
		}
		assert.ElementsMatch(t, []string{"a", "c"}, tokens)
	})

	t.Run("only invalid tokens is nothing to deliver", func(t *testing.T) {
		t.Parallel()

		transport := &fakePush{errs: map[string]error{"x": push.ErrInvalidToken}}
		err := notifications.NewPushSender(transport, notifications.WithPushLogger(discardLogger())).Send(ctx, newItem("x"))
		assert.ErrorIs(t, err, notifications.ErrNothingToDeliver)
		assert.ErrorIs(t, err, push.ErrInvalidToken)
	})

	t.Run("all transport failures fail the item", func(t *testing.T) {
		t.Parallel()

		transport := &fakePush{errs: map[string]error{"x": push.ErrFailedToSend, "y": push.ErrInvalidToken}}
		err := notifications.NewPushSender(transport, notifications.WithPushLogger(discardLogger())).Send(ctx, newItem("x", "y"))
		assert.ErrorIs(t, err, push.ErrFailedToSend)
		assert.NotErrorIs(t, err, notifications.ErrNothingToDeliver)
	})
}

func TestSMSSender(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("sends title and message", func(t *testing.T) {
		t.Parallel()

		transport := new(mockSMS)
		defer transport.AssertExpectations(t)
		transport.On("SendSMS", mock.Anything, sms.Message{To: "+15551234567", Body: "Payslip ready: March payslip is available"}).Return(nil)

		err := notifications.NewSMSSender(transport).Send(ctx, notifications.QueueItem{
			Title:     "Payslip ready",
			Message:   "March payslip is available",
			Channel:   notifications.ChannelSMS,
			Recipient: notifications.SMSRecipient{Phone: "+1 (555) 123-4567"},
		})
		require.NoError(t, err)
	})

	t.Run("missing phone is rechecked", func(t *testing.T) {
		t.Parallel()

		transport := new(mockSMS)
		err := notifications.NewSMSSender(transport).Send(ctx, notifications.QueueItem{
			Channel:   notifications.ChannelSMS,
			Recipient: notifications.SMSRecipient{Phone: " "},
		})
		assert.ErrorIs(t, err, notifications.ErrRecipientNotFound)
		transport.AssertNotCalled(t, "SendSMS", mock.Anything, mock.Anything)
	})
}

func TestInAppSender(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	storage := notifications.NewMemoryStorage()
	sender := notifications.NewInAppSender(storage)

	item := notifications.QueueItem{
		ID:               uuid.New(),
		UserID:           9,
		NotificationType: "policy_update",
		Title:            "Policy updated",
		Message:          "Read the new remote work policy",
		Channel:          notifications.ChannelInApp,
		Recipient:        notifications.InAppRecipient{UserID: 9},
		Payload:          map[string]any{"policy": "remote"},
	}

	require.NoError(t, sender.Send(ctx, item))
	require.NoError(t, sender.Send(ctx, item))

	entries, err := storage.ListInbox(ctx, 9, notifications.ListOptions{})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "Policy updated", entries[0].Title)
	assert.Equal(t, item.ID, entries[0].QueueItemID)
	assert.Equal(t, "remote", entries[0].Data["policy"])
	assert.False(t, entries[0].Read())
}

func TestWithCircuitBreaker(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	cfg := circuitbreaker.Config{FailureThreshold: 2, Timeout: time.Minute}

	t.Run("opens after consecutive failures", func(t *testing.T) {
		t.Parallel()

		inner := &recordingSender{ch: notifications.ChannelEmail, err: errors.New("postmark down")}
		sender := notifications.WithCircuitBreaker(inner, circuitbreaker.New("email", cfg, discardLogger()))
		assert.Equal(t, notifications.ChannelEmail, sender.Channel())

		for range 2 {
			assert.ErrorContains(t, sender.Send(ctx, notifications.QueueItem{}), "postmark down")
		}
		err := sender.Send(ctx, notifications.QueueItem{})
		assert.ErrorIs(t, err, gobreaker.ErrOpenState)
		assert.True(t, circuitbreaker.IsOpen(err))
		assert.Len(t, inner.sent(), 2)
	})

	t.Run("nothing to deliver does not trip", func(t *testing.T) {
		t.Parallel()

		inner := &recordingSender{ch: notifications.ChannelPush, err: notifications.ErrNothingToDeliver}
		sender := notifications.WithCircuitBreaker(inner, circuitbreaker.New("push", cfg, discardLogger()))

		for range 5 {
			assert.ErrorIs(t, sender.Send(ctx, notifications.QueueItem{}), notifications.ErrNothingToDeliver)
		}
		assert.Len(t, inner.sent(), 5)
	})

	t.Run("nil breaker returns the sender", func(t *testing.T) {
		t.Parallel()

		inner := &recordingSender{ch: notifications.ChannelSMS}
		assert.Same(t, inner, notifications.WithCircuitBreaker(inner, nil))
	})
}
