package schema

import (
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/mitchellh/mapstructure"
)

// Violation is one violated constraint, addressed by a JSON-ish path
// into the candidate payload ("steps[2].fields[0].field_name").
type Violation struct {
	Path    string `json:"path"`
	Message string `json:"message"`
}

// ValidationError carries every violation found in a candidate payload.
// All constraints are checked in one pass so authors can fix a form in
// one round trip.
type ValidationError struct {
	Violations []Violation `json:"violations"`
}

func (e *ValidationError) Error() string {
	if len(e.Violations) == 1 {
		return fmt.Sprintf("invalid flow payload: %s: %s", e.Violations[0].Path, e.Violations[0].Message)
	}
	return fmt.Sprintf("invalid flow payload: %d violations", len(e.Violations))
}

func (e *ValidationError) add(path, message string) {
	e.Violations = append(e.Violations, Violation{Path: path, Message: message})
}

// Package-level validator instance.
var validate *validator.Validate

var slugPattern = regexp.MustCompile(`^[a-z0-9]+(?:-[a-z0-9]+)*$`)

func init() {
	validate = validator.New()
	validate.RegisterValidation("slug_format", func(fl validator.FieldLevel) bool {
		return slugPattern.MatchString(fl.Field().String())
	})
}

// Validate structurally checks an arbitrary candidate against the flow
// payload contract. On success it returns a fully typed payload with
// schema defaults applied and step orders renormalized to 0..N-1. On
// failure it returns a *ValidationError listing every violation.
//
// Accepted candidate shapes: *FlowPayload, FlowPayload, map[string]any,
// []byte / json.RawMessage / string containing JSON. The input is never
// mutated.
func Validate(candidate any) (*FlowPayload, error) {
	verr := &ValidationError{}

	payload, ok := decode(candidate, verr)
	if !ok {
		return nil, verr
	}

	if err := defaults.Set(payload); err != nil {
		return nil, fmt.Errorf("applying schema defaults: %w", err)
	}
	fillDefaults(payload)

	if err := validate.Struct(payload); err != nil {
		fieldErrs, isFieldErrs := err.(validator.ValidationErrors)
		if !isFieldErrs {
			return nil, fmt.Errorf("validating payload: %w", err)
		}
		for _, fe := range fieldErrs {
			verr.add(namespaceToPath(fe.Namespace()), violationMessage(fe))
		}
	}

	checkSteps(payload, verr)
	checkLogic(payload, verr)

	if len(verr.Violations) > 0 {
		return nil, verr
	}

	normalizeOrder(payload)
	return payload, nil
}

// decode turns the candidate into a *FlowPayload copy, recording decode
// failures as violations.
func decode(candidate any, verr *ValidationError) (*FlowPayload, bool) {
	switch c := candidate.(type) {
	case nil:
		verr.add("", "payload is required")
		return nil, false
	case *FlowPayload:
		if c == nil {
			verr.add("", "payload is required")
			return nil, false
		}
		return clonePayload(c), true
	case FlowPayload:
		return clonePayload(&c), true
	case json.RawMessage:
		return decodeJSON([]byte(c), verr)
	case []byte:
		return decodeJSON(c, verr)
	case string:
		return decodeJSON([]byte(c), verr)
	default:
		return decodeAny(candidate, verr)
	}
}

func decodeJSON(raw []byte, verr *ValidationError) (*FlowPayload, bool) {
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		verr.add("", "payload must be a JSON object")
		return nil, false
	}
	return decodeAny(m, verr)
}

func decodeAny(candidate any, verr *ValidationError) (*FlowPayload, bool) {
	payload := &FlowPayload{}
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "json",
		Result:           payload,
		WeaklyTypedInput: true,
	})
	if err != nil {
		verr.add("", err.Error())
		return nil, false
	}
	if err := dec.Decode(candidate); err != nil {
		if merr, isMulti := err.(*mapstructure.Error); isMulti {
			for _, e := range merr.Errors {
				verr.add("", e)
			}
		} else {
			verr.add("", err.Error())
		}
		return nil, false
	}
	return payload, true
}

// clonePayload copies the payload deeply enough that filling defaults
// and renumbering never write through to the caller's value. Map values
// are shared; validation only reads them.
func clonePayload(p *FlowPayload) *FlowPayload {
	clone := *p
	clone.Steps = append([]Step(nil), p.Steps...)
	for i := range clone.Steps {
		clone.Steps[i].Fields = append([]Field(nil), p.Steps[i].Fields...)
	}
	clone.Logic = append([]LogicRule(nil), p.Logic...)
	for i := range clone.Logic {
		clone.Logic[i].Conditions = append([]Condition(nil), p.Logic[i].Conditions...)
	}
	return &clone
}

// fillDefaults covers the defaults the `default` struct tag cannot
// express: absent open maps become empty maps, absent sequences become
// empty sequences.
func fillDefaults(p *FlowPayload) {
	if p.Settings == nil {
		p.Settings = map[string]any{}
	}
	if p.GoogleAds == nil {
		p.GoogleAds = map[string]any{}
	}
	if p.Metadata == nil {
		p.Metadata = map[string]any{}
	}
	if p.Steps == nil {
		p.Steps = []Step{}
	}
	if p.Logic == nil {
		p.Logic = []LogicRule{}
	}
	for i := range p.Steps {
		if p.Steps[i].Settings == nil {
			p.Steps[i].Settings = map[string]any{}
		}
		if p.Steps[i].Fields == nil {
			p.Steps[i].Fields = []Field{}
		}
	}
	for i := range p.Logic {
		p.Logic[i].Join = Join(strings.ToLower(string(p.Logic[i].Join)))
	}
}

// checkSteps enforces the cross-step invariants: unique step ids,
// unique step_order values, unique field ids, and flow-wide unique
// field_name values (so the flat response bag has no collisions).
func checkSteps(p *FlowPayload, verr *ValidationError) {
	stepIDs := map[string]int{}
	orders := map[int]int{}
	fieldIDs := map[string]string{}
	fieldNames := map[string]string{}

	for i, step := range p.Steps {
		if prev, dup := stepIDs[step.ID]; dup && step.ID != "" {
			verr.add(fmt.Sprintf("steps[%d].id", i), fmt.Sprintf("duplicate step id %q (also used by steps[%d])", step.ID, prev))
		} else {
			stepIDs[step.ID] = i
		}

		if prev, dup := orders[step.StepOrder]; dup {
			verr.add(fmt.Sprintf("steps[%d].step_order", i), fmt.Sprintf("duplicate step_order %d (also used by steps[%d])", step.StepOrder, prev))
		} else {
			orders[step.StepOrder] = i
		}

		for j, field := range step.Fields {
			if owner, dup := fieldIDs[field.ID]; dup && field.ID != "" {
				verr.add(fmt.Sprintf("steps[%d].fields[%d].id", i, j), fmt.Sprintf("duplicate field id %q (also used in step %q)", field.ID, owner))
			} else {
				fieldIDs[field.ID] = step.ID
			}

			if owner, dup := fieldNames[field.FieldName]; dup && field.FieldName != "" {
				verr.add(fmt.Sprintf("steps[%d].fields[%d].field_name", i, j), fmt.Sprintf("duplicate field_name %q (also used in step %q)", field.FieldName, owner))
			} else {
				fieldNames[field.FieldName] = step.ID
			}

			needsOptions := field.FieldType == FieldSelect || field.FieldType == FieldRadio || field.FieldType == FieldCheckbox
			if needsOptions && len(field.Options) == 0 {
				verr.add(fmt.Sprintf("steps[%d].fields[%d].options", i, j), fmt.Sprintf("field_type %q requires at least one option", field.FieldType))
			}
		}
	}
}

// checkLogic enforces that every rule targets an existing step or field
// and that every condition sources a field collected strictly before
// the rule's target. Source ordering is rejected at validation time
// rather than left as an authoring convention. A sourceId given as a
// field id is rewritten to the field's field_name, the key the response
// bag uses at evaluation time.
func checkLogic(p *FlowPayload, verr *ValidationError) {
	for i, rule := range p.Logic {
		targetOrder, targetOK := resolveTargetOrder(p, rule.Target)
		if !targetOK {
			verr.add(fmt.Sprintf("logic[%d].target.id", i), fmt.Sprintf("unknown %s %q", rule.Target.Scope, rule.Target.ID))
		}

		for j, cond := range rule.Conditions {
			_, sourceOrder, sourceOK := p.FieldByName(cond.SourceID)
			if !sourceOK {
				var field *Field
				if field, sourceOrder, sourceOK = p.FieldByID(cond.SourceID); sourceOK {
					p.Logic[i].Conditions[j].SourceID = field.FieldName
				}
			}
			if !sourceOK {
				verr.add(fmt.Sprintf("logic[%d].conditions[%d].sourceId", i, j), fmt.Sprintf("unknown source field %q", cond.SourceID))
				continue
			}
			if targetOK && sourceOrder >= targetOrder {
				verr.add(fmt.Sprintf("logic[%d].conditions[%d].sourceId", i, j),
					fmt.Sprintf("source field %q must be collected in a step before the rule's target", cond.SourceID))
			}
		}
	}
}

func resolveTargetOrder(p *FlowPayload, target Target) (int, bool) {
	switch target.Scope {
	case ScopeStep:
		if step := p.StepByID(target.ID); step != nil {
			return step.StepOrder, true
		}
	case ScopeField:
		if _, order, ok := p.FieldByID(target.ID); ok {
			return order, true
		}
	}
	return 0, false
}

// normalizeOrder sorts steps by step_order (stable, so authoring order
// breaks ties) and renumbers them contiguously from zero.
func normalizeOrder(p *FlowPayload) {
	sort.SliceStable(p.Steps, func(a, b int) bool {
		return p.Steps[a].StepOrder < p.Steps[b].StepOrder
	})
	for i := range p.Steps {
		p.Steps[i].StepOrder = i
	}
}

// camelBoundary matches lower/digit followed by upper, the boundary a
// snake_case underscore goes on.
var camelBoundary = regexp.MustCompile(`([a-z0-9])([A-Z])`)

// pathNames maps Go field names whose JSON tag is not a plain
// snake_case conversion of the name.
var pathNames = map[string]string{
	"GoogleAds":       "google_ads_config",
	"Style":           "style_config",
	"Validation":      "validation_rules",
	"Default":         "default_value",
	"SourceID":        "sourceId",
	"BackgroundImage": "background_image_url",
}

// namespaceToPath converts a validator namespace such as
// "FlowPayload.Steps[1].Fields[0].FieldName" into the JSON path
// "steps[1].fields[0].field_name" reported to authors.
func namespaceToPath(namespace string) string {
	segments := strings.Split(namespace, ".")
	if len(segments) > 0 {
		segments = segments[1:] // drop the root type name
	}
	for i, seg := range segments {
		name, index := seg, ""
		if bracket := strings.IndexByte(seg, '['); bracket >= 0 {
			name, index = seg[:bracket], seg[bracket:]
		}
		if mapped, ok := pathNames[name]; ok {
			name = mapped
		} else {
			name = strings.ToLower(camelBoundary.ReplaceAllString(name, "${1}_${2}"))
		}
		segments[i] = name + index
	}
	return strings.Join(segments, ".")
}

// violationMessage renders a validator field error as a human message.
func violationMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "oneof":
		return fmt.Sprintf("must be one of: %s", strings.ReplaceAll(fe.Param(), " ", ", "))
	case "gte":
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "min":
		return fmt.Sprintf("must contain at least %s entry", fe.Param())
	case "slug_format":
		return "must be a lowercase URL-safe slug (letters, digits, hyphens)"
	default:
		return fmt.Sprintf("failed %q constraint", fe.Tag())
	}
}
