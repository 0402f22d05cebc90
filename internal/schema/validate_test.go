package schema

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

func validPayload() *FlowPayload {
	return &FlowPayload{
		Name: "Solar Quote",
		Slug: "solar-quote",
		Steps: []Step{
			{
				ID:        "step-1",
				StepOrder: 0,
				StepType:  StepForm,
				Title:     "About your home",
				Fields: []Field{
					{ID: "f-owner", FieldType: FieldRadio, FieldName: "home_owner", Options: []Option{
						{Label: "Yes", Value: "yes"},
						{Label: "No", Value: "no"},
					}},
					{ID: "f-zip", FieldType: FieldZip, FieldName: "zip"},
				},
			},
			{
				ID:        "step-2",
				StepOrder: 1,
				StepType:  StepForm,
				Title:     "Contact",
				Fields: []Field{
					{ID: "f-email", FieldType: FieldEmail, FieldName: "email"},
				},
			},
			{
				ID:        "step-3",
				StepOrder: 2,
				StepType:  StepThankYou,
			},
		},
		Logic: []LogicRule{
			{
				Target: Target{Scope: ScopeStep, ID: "step-2"},
				Action: ActionShow,
				Join:   JoinAnd,
				Conditions: []Condition{
					{SourceID: "home_owner", Operator: OpEquals, Value: "yes"},
				},
			},
		},
	}
}

func violations(t *testing.T, err error) []Violation {
	t.Helper()
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected *ValidationError, got %T: %v", err, err)
	}
	return verr.Violations
}

func hasViolation(vs []Violation, path string) bool {
	for _, v := range vs {
		if v.Path == path {
			return true
		}
	}
	return false
}

func TestValidateAcceptsWellFormedPayload(t *testing.T) {
	got, err := Validate(validPayload())
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if got.Status != StatusDraft {
		t.Errorf("expected default status draft, got %q", got.Status)
	}
	if got.Settings == nil || got.Metadata == nil || got.GoogleAds == nil {
		t.Error("expected absent maps to be filled with empty maps")
	}
	for i, step := range got.Steps {
		if step.StepOrder != i {
			t.Errorf("steps[%d].step_order = %d, want %d", i, step.StepOrder, i)
		}
		if step.Settings == nil {
			t.Errorf("steps[%d].settings not defaulted", i)
		}
	}
}

func TestValidateDoesNotMutateInput(t *testing.T) {
	in := validPayload()
	in.Status = ""
	if _, err := Validate(in); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if in.Status != "" {
		t.Error("input payload was mutated")
	}
	if in.Settings != nil {
		t.Error("input settings map was created in place")
	}
}

func TestValidateNormalizesIDFormLogicSources(t *testing.T) {
	in := validPayload()
	in.Logic[0].Conditions[0].SourceID = "f-owner"

	got, err := Validate(in)
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if src := got.Logic[0].Conditions[0].SourceID; src != "home_owner" {
		t.Errorf("sourceId = %q, want field name %q", src, "home_owner")
	}
	if in.Logic[0].Conditions[0].SourceID != "f-owner" {
		t.Error("input payload was mutated")
	}
}

func TestValidateFromMap(t *testing.T) {
	candidate := map[string]any{
		"name": "Window Quote",
		"slug": "window-quote",
		"steps": []any{
			map[string]any{
				"id":         "s1",
				"step_order": 0,
				"step_type":  "form",
				"fields": []any{
					map[string]any{"id": "f1", "field_type": "text", "field_name": "city"},
				},
			},
		},
	}
	got, err := Validate(candidate)
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if got.Steps[0].Fields[0].FieldName != "city" {
		t.Errorf("decoded field_name = %q", got.Steps[0].Fields[0].FieldName)
	}
}

func TestValidateFromJSON(t *testing.T) {
	raw := `{"name":"Roof Quote","slug":"roof-quote","steps":[{"id":"s1","step_order":0,"step_type":"content","content":"hi"}]}`
	got, err := Validate(raw)
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if got.Slug != "roof-quote" {
		t.Errorf("slug = %q", got.Slug)
	}
}

func TestValidateCollectsAllViolations(t *testing.T) {
	p := validPayload()
	p.Name = ""
	p.Slug = "Not A Slug"
	p.Steps[0].Fields[0].Options = nil
	p.Steps[1].StepType = "teleport"

	_, err := Validate(p)
	vs := violations(t, err)

	for _, path := range []string{
		"name",
		"slug",
		"steps[0].fields[0].options",
		"steps[1].step_type",
	} {
		if !hasViolation(vs, path) {
			t.Errorf("missing violation at %q, got %v", path, vs)
		}
	}
}

func TestValidateRejections(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*FlowPayload)
		path   string
	}{
		{
			name:   "duplicate step id",
			mutate: func(p *FlowPayload) { p.Steps[1].ID = "step-1" },
			path:   "steps[1].id",
		},
		{
			name:   "duplicate step order",
			mutate: func(p *FlowPayload) { p.Steps[1].StepOrder = 0 },
			path:   "steps[1].step_order",
		},
		{
			name:   "duplicate field id",
			mutate: func(p *FlowPayload) { p.Steps[1].Fields[0].ID = "f-zip" },
			path:   "steps[1].fields[0].id",
		},
		{
			name:   "duplicate field name across steps",
			mutate: func(p *FlowPayload) { p.Steps[1].Fields[0].FieldName = "zip" },
			path:   "steps[1].fields[0].field_name",
		},
		{
			name:   "negative redirect delay",
			mutate: func(p *FlowPayload) { p.Steps[2].RedirectDelay = -1 },
			path:   "steps[2].redirect_delay",
		},
		{
			name:   "logic target does not exist",
			mutate: func(p *FlowPayload) { p.Logic[0].Target.ID = "step-99" },
			path:   "logic[0].target.id",
		},
		{
			name:   "logic source does not exist",
			mutate: func(p *FlowPayload) { p.Logic[0].Conditions[0].SourceID = "nope" },
			path:   "logic[0].conditions[0].sourceId",
		},
		{
			name: "logic source collected after target",
			mutate: func(p *FlowPayload) {
				p.Logic[0].Conditions[0].SourceID = "email"
			},
			path: "logic[0].conditions[0].sourceId",
		},
		{
			name:   "rule without conditions",
			mutate: func(p *FlowPayload) { p.Logic[0].Conditions = nil },
			path:   "logic[0].conditions",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := validPayload()
			tt.mutate(p)
			_, err := Validate(p)
			if err == nil {
				t.Fatal("expected validation failure")
			}
			if vs := violations(t, err); !hasViolation(vs, tt.path) {
				t.Errorf("missing violation at %q, got %v", tt.path, vs)
			}
		})
	}
}

func TestValidateDuplicateFieldNameMessageNamesDuplicate(t *testing.T) {
	p := validPayload()
	p.Steps[1].Fields[0].FieldName = "home_owner"

	_, err := Validate(p)
	vs := violations(t, err)
	found := false
	for _, v := range vs {
		if v.Path == "steps[1].fields[0].field_name" {
			found = true
			if want := `duplicate field_name "home_owner"`; len(v.Message) < len(want) || v.Message[:len(want)] != want {
				t.Errorf("message %q does not name the duplicate", v.Message)
			}
		}
	}
	if !found {
		t.Fatalf("no violation for duplicated field_name, got %v", vs)
	}
}

func TestValidateNormalizesSparseStepOrder(t *testing.T) {
	p := validPayload()
	p.Logic = nil
	p.Steps[0].StepOrder = 10
	p.Steps[1].StepOrder = 3
	p.Steps[2].StepOrder = 40

	got, err := Validate(p)
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	wantIDs := []string{"step-2", "step-1", "step-3"}
	for i, id := range wantIDs {
		if got.Steps[i].ID != id {
			t.Errorf("steps[%d].id = %q, want %q", i, got.Steps[i].ID, id)
		}
		if got.Steps[i].StepOrder != i {
			t.Errorf("steps[%d].step_order = %d, want %d", i, got.Steps[i].StepOrder, i)
		}
	}
}

func TestValidateNilPayload(t *testing.T) {
	_, err := Validate(nil)
	if vs := violations(t, err); !hasViolation(vs, "") {
		t.Errorf("expected top-level violation, got %v", vs)
	}
}

func TestSlugFormatProperty(t *testing.T) {
	params := gopter.DefaultTestParameters()
	params.MinSuccessfulTests = 200

	properties := gopter.NewProperties(params)

	properties.Property("lowercase alnum slugs always pass", prop.ForAll(
		func(parts []string) bool {
			slug := ""
			for i, part := range parts {
				if i > 0 {
					slug += "-"
				}
				slug += part
			}
			p := validPayload()
			p.Slug = slug
			_, err := Validate(p)
			return err == nil
		},
		gen.SliceOfN(3, gen.RegexMatch("[a-z0-9]{1,8}")),
	))

	properties.Property("uppercase slugs always fail", prop.ForAll(
		func(word string) bool {
			p := validPayload()
			p.Slug = word
			_, err := Validate(p)
			return err != nil
		},
		gen.RegexMatch("[A-Z][A-Za-z0-9]{0,8}"),
	))

	properties.TestingRun(t)
}

func TestStepOrderNormalizationProperty(t *testing.T) {
	params := gopter.DefaultTestParameters()
	params.MinSuccessfulTests = 100

	properties := gopter.NewProperties(params)

	properties.Property("orders are contiguous from zero after validation", prop.ForAll(
		func(orders []int) bool {
			seen := map[int]bool{}
			p := &FlowPayload{Name: "n", Slug: "n"}
			for i, o := range orders {
				if o < 0 || seen[o] {
					return true // duplicate or negative orders are rejected elsewhere
				}
				seen[o] = true
				p.Steps = append(p.Steps, Step{
					ID:        fmt.Sprintf("s%d", i),
					StepOrder: o,
					StepType:  StepContent,
				})
			}
			got, err := Validate(p)
			if err != nil {
				return false
			}
			for i := range got.Steps {
				if got.Steps[i].StepOrder != i {
					return false
				}
			}
			return true
		},
		gen.SliceOf(gen.IntRange(0, 50)),
	))

	properties.TestingRun(t)
}

func TestValidateRoundTripProperty(t *testing.T) {
	params := gopter.DefaultTestParameters()
	params.MinSuccessfulTests = 100

	properties := gopter.NewProperties(params)

	properties.Property("validated payloads survive a marshal cycle", prop.ForAll(
		func(slug string, title string, steps int, withField bool) bool {
			p := &FlowPayload{Name: "Round Trip", Slug: "rt-" + slug}
			for i := 0; i < steps; i++ {
				p.Steps = append(p.Steps, Step{
					ID:        fmt.Sprintf("s%d", i),
					StepOrder: i,
					StepType:  StepContent,
					Title:     title,
				})
			}
			if withField {
				p.Steps = append(p.Steps, Step{
					ID:        fmt.Sprintf("s%d", steps),
					StepOrder: steps,
					StepType:  StepForm,
					Fields: []Field{
						{ID: "f0", FieldType: FieldText, FieldName: "city"},
					},
				})
			}

			first, err := Validate(p)
			if err != nil {
				return false
			}
			raw, err := json.Marshal(first)
			if err != nil {
				return false
			}
			second, err := Validate(raw)
			if err != nil {
				return false
			}
			return reflect.DeepEqual(first, second)
		},
		gen.RegexMatch("[a-z0-9]{1,10}"),
		gen.AlphaString(),
		gen.IntRange(0, 5),
		gen.Bool(),
	))

	properties.TestingRun(t)
}
