// Package content renders authored step content for delivery. Steps
// whose settings mark their content as markdown are converted to HTML
// when a published payload is served; everything else passes through
// untouched.
package content

import (
	"bytes"
	"fmt"

	"github.com/yuin/goldmark"
	highlighting "github.com/yuin/goldmark-highlighting/v2"
	"github.com/yuin/goldmark/extension"

	"github.com/hausmatch/leadflow/internal/schema"
)

var md = goldmark.New(
	goldmark.WithExtensions(
		extension.GFM,
		highlighting.NewHighlighting(
			highlighting.WithStyle("github"),
		),
	),
)

// ToHTML converts markdown source to HTML.
func ToHTML(source string) (string, error) {
	var buf bytes.Buffer
	if err := md.Convert([]byte(source), &buf); err != nil {
		return "", fmt.Errorf("rendering markdown: %w", err)
	}
	return buf.String(), nil
}

// RenderSteps returns a copy of the payload with markdown step content
// rendered to HTML. The input payload is never mutated: a fetched
// payload is an immutable value within a session.
func RenderSteps(payload *schema.FlowPayload) (*schema.FlowPayload, error) {
	rendered := *payload
	rendered.Steps = make([]schema.Step, len(payload.Steps))
	copy(rendered.Steps, payload.Steps)

	for i := range rendered.Steps {
		step := &rendered.Steps[i]
		if step.Content == "" || !schema.BoolSetting(step.Settings, schema.SettingMarkdown, false) {
			continue
		}
		html, err := ToHTML(step.Content)
		if err != nil {
			return nil, fmt.Errorf("step %s: %w", step.ID, err)
		}
		step.Content = html
	}
	return &rendered, nil
}
