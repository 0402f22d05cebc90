package stepper

import (
	"context"
	"fmt"

	"github.com/hausmatch/leadflow/internal/schema"
)

// RenderRequest is everything a renderer needs to present one step.
type RenderRequest struct {
	Step      schema.Step
	Values    map[string]any
	Style     schema.StyleConfig
	AllowBack bool
}

// Renderer presents one step to the end user and returns the partial
// response mapping collected from it. Implemented by the UI layer.
type Renderer interface {
	Render(ctx context.Context, req RenderRequest) (map[string]any, error)
}

// RenderFunc adapts a function to the Renderer interface.
type RenderFunc func(ctx context.Context, req RenderRequest) (map[string]any, error)

func (f RenderFunc) Render(ctx context.Context, req RenderRequest) (map[string]any, error) {
	return f(ctx, req)
}

// Renderers maps each step type to its renderer. The step type set is
// closed, so dispatch is a switch rather than a runtime registry; the
// Fallback renderer, if set, handles types the caller chose not to
// implement individually.
type Renderers struct {
	Form        Renderer
	Content     Renderer
	Quiz        Renderer
	Survey      Renderer
	Conditional Renderer
	ThankYou    Renderer
	Landing     Renderer
	Gallery     Renderer
	Video       Renderer
	FileUpload  Renderer
	Rating      Renderer
	Testimonial Renderer
	Countdown   Renderer
	Fallback    Renderer
}

// For returns the renderer for a step type, or the fallback.
func (r Renderers) For(t schema.StepType) Renderer {
	var chosen Renderer
	switch t {
	case schema.StepForm:
		chosen = r.Form
	case schema.StepContent:
		chosen = r.Content
	case schema.StepQuiz:
		chosen = r.Quiz
	case schema.StepSurvey:
		chosen = r.Survey
	case schema.StepConditional:
		chosen = r.Conditional
	case schema.StepThankYou:
		chosen = r.ThankYou
	case schema.StepLanding:
		chosen = r.Landing
	case schema.StepGallery:
		chosen = r.Gallery
	case schema.StepVideo:
		chosen = r.Video
	case schema.StepFileUpload:
		chosen = r.FileUpload
	case schema.StepRating:
		chosen = r.Rating
	case schema.StepTestimonial:
		chosen = r.Testimonial
	case schema.StepCountdown:
		chosen = r.Countdown
	}
	if chosen == nil {
		chosen = r.Fallback
	}
	return chosen
}

// Run drives the session to completion, rendering each visible step in
// turn and feeding its responses back into the session. onComplete is
// invoked exactly once with the final response bag.
func (s *Session) Run(ctx context.Context, renderers Renderers, onComplete func(map[string]any) error) error {
	for !s.completed {
		if err := ctx.Err(); err != nil {
			return err
		}

		step := s.Current()
		renderer := renderers.For(step.StepType)
		if renderer == nil {
			return fmt.Errorf("no renderer for step type %q", step.StepType)
		}

		responses, err := renderer.Render(ctx, RenderRequest{
			Step:      *step,
			Values:    s.Responses(),
			Style:     s.payload.Style,
			AllowBack: schema.BoolSetting(s.payload.Settings, schema.SettingAllowBack, false),
		})
		if err != nil {
			return fmt.Errorf("rendering step %s: %w", step.ID, err)
		}

		s.Advance(responses)
	}

	if onComplete != nil {
		if err := onComplete(s.Responses()); err != nil {
			return fmt.Errorf("completing flow: %w", err)
		}
	}
	return nil
}
