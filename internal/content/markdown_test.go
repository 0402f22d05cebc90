package content

import (
	"strings"
	"testing"

	"github.com/hausmatch/leadflow/internal/schema"
)

func TestToHTML(t *testing.T) {
	html, err := ToHTML("# Welcome\n\nGet your **free** quote.")
	if err != nil {
		t.Fatalf("ToHTML: %v", err)
	}
	if !strings.Contains(html, "<h1") {
		t.Errorf("missing heading in %q", html)
	}
	if !strings.Contains(html, "<strong>free</strong>") {
		t.Errorf("missing emphasis in %q", html)
	}
}

func TestToHTMLTables(t *testing.T) {
	html, err := ToHTML("| Plan | Price |\n|------|-------|\n| Basic | $10 |")
	if err != nil {
		t.Fatalf("ToHTML: %v", err)
	}
	if !strings.Contains(html, "<table>") {
		t.Errorf("GFM table not rendered: %q", html)
	}
}

func TestRenderSteps(t *testing.T) {
	payload := &schema.FlowPayload{
		Steps: []schema.Step{
			{
				ID:       "md",
				StepType: schema.StepContent,
				Content:  "*hello*",
				Settings: map[string]any{schema.SettingMarkdown: true},
			},
			{
				ID:       "plain",
				StepType: schema.StepContent,
				Content:  "*hello*",
				Settings: map[string]any{},
			},
		},
	}

	rendered, err := RenderSteps(payload)
	if err != nil {
		t.Fatalf("RenderSteps: %v", err)
	}

	if !strings.Contains(rendered.Steps[0].Content, "<em>hello</em>") {
		t.Errorf("markdown step not rendered: %q", rendered.Steps[0].Content)
	}
	if rendered.Steps[1].Content != "*hello*" {
		t.Errorf("non-markdown step changed: %q", rendered.Steps[1].Content)
	}

	// Input payload is untouched.
	if payload.Steps[0].Content != "*hello*" {
		t.Error("RenderSteps mutated its input")
	}
}
