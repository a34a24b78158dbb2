package templates_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/hrnotify/pkg/email/templates"
)

func TestNotification(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		title   string
		message string
		want    string
	}{
		{
			name:    "plain",
			title:   "Leave approved",
			message: "Your Annual leave was approved",
			want:    "<h2>Leave approved</h2><p>Your Annual leave was approved</p>",
		},
		{
			name:    "escapes html",
			title:   "<b>Hi</b>",
			message: "a & b",
			want:    "<h2>&lt;b&gt;Hi&lt;/b&gt;</h2><p>a &amp; b</p>",
		},
		{
			name:    "line breaks",
			title:   "T",
			message: "line one\nline two",
			want:    "<h2>T</h2><p>line one<br>line two</p>",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := templates.Render(context.Background(), templates.Notification(tt.title, tt.message))
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
