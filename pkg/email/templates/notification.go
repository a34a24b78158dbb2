package templates

import (
	"context"
	"io"
	"strings"

	"github.com/a-h/templ"
)

// Notification is the HTML body used for every notification email:
// <h2>title</h2><p>message</p>. Both values are HTML escaped and line breaks
// in message become <br>.
func Notification(title, message string) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		var sb strings.Builder
		sb.WriteString("<h2>")
		sb.WriteString(templ.EscapeString(title))
		sb.WriteString("</h2><p>")
		for i, line := range strings.Split(message, "\n") {
			if i > 0 {
				sb.WriteString("<br>")
			}
			sb.WriteString(templ.EscapeString(line))
		}
		sb.WriteString("</p>")
		_, err := io.WriteString(w, sb.String())
		return err
	})
}
