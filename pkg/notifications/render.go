package notifications

import (
	"fmt"
	"regexp"
	"time"
)

// placeholderRe matches {name} where name is letters, digits or underscore.
var placeholderRe = regexp.MustCompile(`\{([A-Za-z0-9_]+)\}`)

// Content is the rendered text of one notification.
type Content struct {
	Title   string `json:"title"`
	Message string `json:"message"`
	Subject string `json:"subject,omitempty"`
}

// Render substitutes payload values into the template's title, body and
// subject. Placeholders without a payload value (or with a nil value) are
// kept verbatim. Render is pure: identical inputs give identical output.
func Render(t Template, payload map[string]any) Content {
	return Content{
		Title:   RenderString(t.TitleTemplate, payload),
		Message: RenderString(t.BodyTemplate, payload),
		Subject: RenderString(t.SubjectTemplate, payload),
	}
}

// RenderString replaces every {name} in pattern that has a value in payload.
func RenderString(pattern string, payload map[string]any) string {
	if pattern == "" || len(payload) == 0 {
		return pattern
	}
	return placeholderRe.ReplaceAllStringFunc(pattern, func(m string) string {
		v, ok := payload[m[1:len(m)-1]]
		if !ok || v == nil {
			return m
		}
		return formatValue(v)
	})
}

// Placeholders returns the distinct placeholder names in pattern, in order of
// first appearance.
func Placeholders(pattern string) []string {
	matches := placeholderRe.FindAllStringSubmatch(pattern, -1)
	seen := make(map[string]struct{}, len(matches))
	names := make([]string, 0, len(matches))
	for _, m := range matches {
		if _, ok := seen[m[1]]; ok {
			continue
		}
		seen[m[1]] = struct{}{}
		names = append(names, m[1])
	}
	return names
}

// MissingVariables lists the template placeholders that payload does not cover.
func MissingVariables(t Template, payload map[string]any) []string {
	var missing []string
	seen := make(map[string]struct{})
	for _, pattern := range []string{t.TitleTemplate, t.BodyTemplate, t.SubjectTemplate} {
		for _, name := range Placeholders(pattern) {
			if _, ok := seen[name]; ok {
				continue
			}
			seen[name] = struct{}{}
			if v, ok := payload[name]; !ok || v == nil {
				missing = append(missing, name)
			}
		}
	}
	return missing
}

func formatValue(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case time.Time:
		if val.Hour() == 0 && val.Minute() == 0 && val.Second() == 0 && val.Nanosecond() == 0 {
			return val.Format(time.DateOnly)
		}
		return val.Format(time.RFC3339)
	case fmt.Stringer:
		return val.String()
	default:
		return fmt.Sprint(val)
	}
}
