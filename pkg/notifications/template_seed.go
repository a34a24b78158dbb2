package notifications

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

type templateSeed struct {
	Title          string   `yaml:"title"`
	Body           string   `yaml:"body"`
	Subject        string   `yaml:"subject"`
	DefaultChannel string   `yaml:"default_channel"`
	Variables      []string `yaml:"variables"`
	Enabled        *bool    `yaml:"enabled"`
}

// LoadTemplates decodes a YAML document mapping template names to their
// definitions:
//
//	leave_approved:
//	  title: "Leave approved"
//	  body: "Your {leave_type} leave from {start} to {end} was approved."
//	  default_channel: email
//
// Templates are enabled unless "enabled: false" is set. When variables is
// omitted it is derived from the placeholders.
func LoadTemplates(r io.Reader) ([]Template, error) {
	var doc map[string]templateSeed
	if err := yaml.NewDecoder(r).Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidTemplate, err)
	}

	templates := make([]Template, 0, len(doc))
	for name, s := range doc {
		ch := Channel(s.DefaultChannel)
		if ch == "" {
			ch = ChannelInApp
		}
		t := Template{
			Name:            name,
			TitleTemplate:   s.Title,
			BodyTemplate:    s.Body,
			SubjectTemplate: s.Subject,
			DefaultChannel:  ch,
			Variables:       s.Variables,
			Enabled:         s.Enabled == nil || *s.Enabled,
		}
		if len(t.Variables) == 0 {
			t.Variables = templateVariables(t)
		}
		if err := t.Validate(); err != nil {
			return nil, fmt.Errorf("template %q: %w", name, err)
		}
		templates = append(templates, t)
	}
	return templates, nil
}

// LoadTemplatesFile reads templates from a YAML file.
func LoadTemplatesFile(path string) ([]Template, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open templates file: %w", err)
	}
	defer f.Close()

	return LoadTemplates(f)
}

// SeedTemplates upserts every template into store.
func SeedTemplates(ctx context.Context, store TemplateStore, templates []Template) (int, error) {
	for i, t := range templates {
		if _, err := store.SaveTemplate(ctx, t); err != nil {
			return i, fmt.Errorf("seed template %q: %w", t.Name, err)
		}
	}
	return len(templates), nil
}

func templateVariables(t Template) []string {
	seen := make(map[string]bool)
	var vars []string
	for _, pattern := range []string{t.TitleTemplate, t.BodyTemplate, t.SubjectTemplate} {
		for _, name := range Placeholders(pattern) {
			if !seen[name] {
				seen[name] = true
				vars = append(vars, name)
			}
		}
	}
	return vars
}
