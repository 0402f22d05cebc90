package schema

// FieldType identifies the kind of input a field renders.
type FieldType string

const (
	FieldText     FieldType = "text"
	FieldEmail    FieldType = "email"
	FieldPhone    FieldType = "phone"
	FieldSelect   FieldType = "select"
	FieldRadio    FieldType = "radio"
	FieldCheckbox FieldType = "checkbox"
	FieldTextarea FieldType = "textarea"
	FieldDate     FieldType = "date"
	FieldNumber   FieldType = "number"
	FieldZip      FieldType = "zip"
	FieldHidden   FieldType = "hidden"
)

// StepType identifies the kind of page a step renders.
type StepType string

const (
	StepForm        StepType = "form"
	StepContent     StepType = "content"
	StepQuiz        StepType = "quiz"
	StepSurvey      StepType = "survey"
	StepConditional StepType = "conditional"
	StepThankYou    StepType = "thank_you"
	StepLanding     StepType = "single_page_landing"
	StepGallery     StepType = "image_gallery"
	StepVideo       StepType = "video"
	StepFileUpload  StepType = "file_upload"
	StepRating      StepType = "rating"
	StepTestimonial StepType = "testimonial"
	StepCountdown   StepType = "countdown"
)

// FlowStatus is the lifecycle state of a flow record.
type FlowStatus string

const (
	StatusDraft    FlowStatus = "draft"
	StatusActive   FlowStatus = "active"
	StatusPaused   FlowStatus = "paused"
	StatusArchived FlowStatus = "archived"
)

// Operator is a logic condition comparison.
type Operator string

const (
	OpEquals    Operator = "equals"
	OpNotEquals Operator = "not_equals"
	OpContains  Operator = "contains"
	OpGreater   Operator = "gt"
	OpLess      Operator = "lt"
	OpIn        Operator = "in"
)

// Action is what a logic rule does to its target when its conditions hold.
type Action string

const (
	ActionShow    Action = "show"
	ActionHide    Action = "hide"
	ActionEnable  Action = "enable"
	ActionDisable Action = "disable"
)

// TargetScope says whether a logic rule targets a step or a field.
type TargetScope string

const (
	ScopeStep  TargetScope = "step"
	ScopeField TargetScope = "field"
)

// Recognized keys in FlowPayload.Settings. Settings is an open map;
// these are the keys the engine itself reads.
const (
	SettingAllowBack      = "allowBack"
	SettingShowProgress   = "showProgress"
	SettingSaveProgress   = "saveProgress"
	SettingRequireAuth    = "requireAuth"
	SettingCaptureUTM     = "captureUtm"
	SettingTrackAnalytics = "trackAnalytics"
)

// SettingMarkdown on a step marks its content as markdown to be rendered
// to HTML when the published payload is served.
const SettingMarkdown = "markdown"

// Option is one selectable choice for select/radio/checkbox fields.
type Option struct {
	Label string `json:"label"`
	Value string `json:"value" validate:"required"`
}

// Field is one input unit within a step.
type Field struct {
	ID          string         `json:"id" validate:"required"`
	FieldType   FieldType      `json:"field_type" validate:"required,oneof=text email phone select radio checkbox textarea date number zip hidden"`
	FieldName   string         `json:"field_name" validate:"required"`
	Label       string         `json:"label,omitempty"`
	Placeholder string         `json:"placeholder,omitempty"`
	HelpText    string         `json:"help_text,omitempty"`
	IsRequired  bool           `json:"is_required"`
	Validation  map[string]any `json:"validation_rules,omitempty"`
	Options     []Option       `json:"options,omitempty" validate:"dive"`
	Default     any            `json:"default_value,omitempty"`

	// Deprecated legacy embedded rule. Accepted only by the migration
	// adapter, which rewrites it as a flow-level logic rule.
	ConditionalLogic *LegacyCondition `json:"conditional_logic,omitempty"`
}

// Step is one page of a flow.
type Step struct {
	ID            string         `json:"id" validate:"required"`
	StepOrder     int            `json:"step_order" validate:"gte=0"`
	StepType      StepType       `json:"step_type" validate:"required,oneof=form content quiz survey conditional thank_you single_page_landing image_gallery video file_upload rating testimonial countdown"`
	Title         string         `json:"title,omitempty"`
	Subtitle      string         `json:"subtitle,omitempty"`
	Content       string         `json:"content,omitempty"`
	ButtonText    string         `json:"button_text,omitempty"`
	IsRequired    bool           `json:"is_required"`
	Settings      map[string]any `json:"settings"`
	RedirectURL   string         `json:"redirect_url,omitempty"`
	RedirectDelay int            `json:"redirect_delay,omitempty" validate:"gte=0"`
	Fields        []Field        `json:"fields" validate:"dive"`

	// Deprecated legacy per-step branching, superseded by flow-level logic.
	SkipLogic *LegacyCondition `json:"skip_logic,omitempty"`
}

// LegacyCondition is the old embedded conditional shape carried by steps
// and fields before flow-level logic rules existed. Only the migration
// adapter consumes it.
type LegacyCondition struct {
	Action     Action   `json:"action"`
	SourceName string   `json:"source"`
	Operator   Operator `json:"operator"`
	Value      any      `json:"value"`
}

// StyleConfig is the presentation value object for a flow.
type StyleConfig struct {
	PrimaryColor    string `json:"primary_color,omitempty"`
	BackgroundColor string `json:"background_color,omitempty"`
	ButtonShape     string `json:"button_shape,omitempty" validate:"omitempty,oneof=rounded square pill"`
	Layout          string `json:"layout,omitempty" validate:"omitempty,oneof=centered split full"`
	FontFamily      string `json:"font_family,omitempty"`
	LogoURL         string `json:"logo_url,omitempty"`
	HeroImageURL    string `json:"hero_image_url,omitempty"`
	BackgroundImage string `json:"background_image_url,omitempty"`
}

// Target identifies the step or field a logic rule acts on.
type Target struct {
	Scope TargetScope `json:"scope" validate:"required,oneof=step field"`
	ID    string      `json:"id" validate:"required"`
}

// Condition is a single comparison against a previously collected response.
type Condition struct {
	SourceID string   `json:"sourceId" validate:"required"`
	Operator Operator `json:"operator" validate:"required,oneof=equals not_equals contains gt lt in"`
	Value    any      `json:"value"`
}

// Join says how a rule's conditions combine.
type Join string

const (
	JoinAnd Join = "and"
	JoinOr  Join = "or"
)

// LogicRule shows, hides, enables or disables its target when its
// conditions hold against the response bag.
type LogicRule struct {
	Target     Target      `json:"target"`
	Action     Action      `json:"action" validate:"required,oneof=show hide enable disable"`
	Conditions []Condition `json:"conditions" validate:"min=1,dive"`
	Join       Join        `json:"join" validate:"required,oneof=and or"`
}

// FlowPayload is the versioned aggregate root: everything needed to
// render and drive one lead-capture funnel.
type FlowPayload struct {
	ID          string         `json:"id,omitempty"`
	Name        string         `json:"name" validate:"required"`
	Slug        string         `json:"slug" validate:"required,slug_format"`
	Description string         `json:"description,omitempty"`
	Status      FlowStatus     `json:"status" default:"draft" validate:"required,oneof=draft active paused archived"`
	Settings    map[string]any `json:"settings"`
	GoogleAds   map[string]any `json:"google_ads_config"`
	Style       StyleConfig    `json:"style_config"`
	Steps       []Step         `json:"steps" validate:"dive"`
	Logic       []LogicRule    `json:"logic" validate:"dive"`
	Metadata    map[string]any `json:"metadata"`
}

// StepByID returns the step with the given id, or nil.
func (p *FlowPayload) StepByID(id string) *Step {
	for i := range p.Steps {
		if p.Steps[i].ID == id {
			return &p.Steps[i]
		}
	}
	return nil
}

// FieldByID returns the field with the given id and the order of the
// step holding it. ok is false if no such field exists.
func (p *FlowPayload) FieldByID(id string) (field *Field, stepOrder int, ok bool) {
	for i := range p.Steps {
		for j := range p.Steps[i].Fields {
			if p.Steps[i].Fields[j].ID == id {
				return &p.Steps[i].Fields[j], p.Steps[i].StepOrder, true
			}
		}
	}
	return nil, 0, false
}

// FieldByName returns the field stored under the given response key and
// the order of the step holding it.
func (p *FlowPayload) FieldByName(name string) (field *Field, stepOrder int, ok bool) {
	for i := range p.Steps {
		for j := range p.Steps[i].Fields {
			if p.Steps[i].Fields[j].FieldName == name {
				return &p.Steps[i].Fields[j], p.Steps[i].StepOrder, true
			}
		}
	}
	return nil, 0, false
}

// BoolSetting reads a boolean from an open settings map. Missing or
// non-boolean values return the fallback.
func BoolSetting(settings map[string]any, key string, fallback bool) bool {
	v, ok := settings[key]
	if !ok {
		return fallback
	}
	b, ok := v.(bool)
	if !ok {
		return fallback
	}
	return b
}
