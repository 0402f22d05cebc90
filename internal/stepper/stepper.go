// Package stepper drives end-user traversal of a validated flow
// payload: current step tracking, response accumulation, and
// logic-driven step visibility. The payload itself is treated as an
// immutable value; the session only mutates its own derived state.
package stepper

import (
	"github.com/hausmatch/leadflow/internal/logic"
	"github.com/hausmatch/leadflow/internal/schema"
)

// Session is one end-user traversal of a flow. Sessions are not safe
// for concurrent use; each belongs to a single interaction context.
type Session struct {
	payload   *schema.FlowPayload
	index     int
	responses map[string]any
	result    logic.Result
	completed bool
}

// State is a snapshot of the session after a transition. Step is nil
// once the flow is complete.
type State struct {
	Step      *schema.Step
	Completed bool
	Progress  float64
}

// NewSession starts a traversal at the first visible step of the
// payload. A payload with no steps is immediately complete.
func NewSession(payload *schema.FlowPayload) *Session {
	s := &Session{
		payload:   payload,
		responses: map[string]any{},
	}
	s.result = logic.Evaluate(payload.Logic, s.responses)

	s.index = s.nextVisible(-1)
	if s.index < 0 {
		s.completed = true
	}
	return s
}

// Current returns the step the session is on, or nil when complete.
func (s *Session) Current() *schema.Step {
	if s.completed || s.index < 0 || s.index >= len(s.payload.Steps) {
		return nil
	}
	return &s.payload.Steps[s.index]
}

// Responses returns a copy of the accumulated response bag.
func (s *Session) Responses() map[string]any {
	out := make(map[string]any, len(s.responses))
	for k, v := range s.responses {
		out[k] = v
	}
	return out
}

// Completed reports whether the traversal has finished.
func (s *Session) Completed() bool { return s.completed }

// Advance merges the step's responses, re-evaluates logic, and moves to
// the next visible step, skipping hidden ones. Once the flow is
// complete, further Advance calls are idempotent no-ops that keep
// returning the completed state.
func (s *Session) Advance(stepResponses map[string]any) State {
	if s.completed {
		return s.state()
	}

	for k, v := range stepResponses {
		s.responses[k] = v
	}
	s.result = logic.Evaluate(s.payload.Logic, s.responses)

	next := s.nextVisible(s.index)
	if next < 0 {
		s.completed = true
		return s.state()
	}
	s.index = next
	return s.state()
}

// Retreat moves to the previous visible step. It is a no-op when the
// flow disallows going back, when the session is complete, or when the
// session is already on the first visible step.
func (s *Session) Retreat() State {
	if s.completed || !schema.BoolSetting(s.payload.Settings, schema.SettingAllowBack, false) {
		return s.state()
	}
	prev := s.prevVisible(s.index)
	if prev >= 0 {
		s.index = prev
	}
	return s.state()
}

// Progress returns traversal progress in [0,1]. The denominator counts
// only currently visible steps, so hiding a step never makes the
// progress bar jump backward.
func (s *Session) Progress() float64 {
	total := 0
	position := 0
	for i := range s.payload.Steps {
		if s.result.StepHidden(s.payload.Steps[i].ID) {
			continue
		}
		total++
		if !s.completed && i <= s.index {
			position++
		}
	}
	if total == 0 || s.completed {
		return 1
	}
	return float64(position) / float64(total)
}

func (s *Session) state() State {
	return State{Step: s.Current(), Completed: s.completed, Progress: s.Progress()}
}

func (s *Session) nextVisible(after int) int {
	for i := after + 1; i < len(s.payload.Steps); i++ {
		if !s.result.StepHidden(s.payload.Steps[i].ID) {
			return i
		}
	}
	return -1
}

func (s *Session) prevVisible(before int) int {
	for i := before - 1; i >= 0; i-- {
		if !s.result.StepHidden(s.payload.Steps[i].ID) {
			return i
		}
	}
	return -1
}
