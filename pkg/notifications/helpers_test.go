package notifications_test

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/hrnotify/pkg/notifications"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fixture struct {
	storage   *notifications.MemoryStorage
	directory *notifications.MemoryDirectory
	service   *notifications.Service
}

func newFixture(t *testing.T, opts ...notifications.ServiceOption) fixture {
	t.Helper()

	storage := notifications.NewMemoryStorage()
	directory := notifications.NewMemoryDirectory()
	opts = append([]notifications.ServiceOption{notifications.WithLogger(discardLogger())}, opts...)

	return fixture{
		storage:   storage,
		directory: directory,
		service:   notifications.NewService(storage, directory, opts...),
	}
}

func (f fixture) saveTemplate(t *testing.T, tmpl notifications.Template) notifications.Template {
	t.Helper()

	saved, err := f.storage.SaveTemplate(context.Background(), tmpl)
	require.NoError(t, err)
	return saved
}

func leaveApprovedTemplate() notifications.Template {
	return notifications.Template{
		Name:            "leave_approved",
		TitleTemplate:   "{leave_type} leave approved",
		BodyTemplate:    "Your {leave_type} leave from {start} to {end} has been approved.",
		SubjectTemplate: "Leave request: {leave_type}",
		DefaultChannel:  notifications.ChannelEmail,
		Variables:       []string{"leave_type", "start", "end"},
		Enabled:         true,
	}
}

func leavePayload() map[string]any {
	return map[string]any{
		"leave_type": "Annual",
		"start":      "2026-02-01",
		"end":        "2026-02-05",
	}
}
