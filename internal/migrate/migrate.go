// Package migrate converts the legacy relational flow representation
// (separate step and field tables) into versioned flow payload
// documents. Migration is all-or-nothing per flow and idempotent:
// re-running it over an already-migrated flow is a reported no-op.
package migrate

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/hausmatch/leadflow/internal/audit"
	"github.com/hausmatch/leadflow/internal/db"
	"github.com/hausmatch/leadflow/internal/flows"
	"github.com/hausmatch/leadflow/internal/progress"
	"github.com/hausmatch/leadflow/internal/schema"
)

// Error reports a legacy flow that cannot be migrated, naming the
// offending record.
type Error struct {
	LegacyID string
	Reason   string
	Err      error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("migrating legacy flow %s: %s: %v", e.LegacyID, e.Reason, e.Err)
	}
	return fmt.Sprintf("migrating legacy flow %s: %s", e.LegacyID, e.Reason)
}

func (e *Error) Unwrap() error { return e.Err }

// Result is the outcome of migrating a single legacy flow.
type Result struct {
	LegacyID  string `json:"legacy_id"`
	Migrated  bool   `json:"migrated"`
	Skipped   bool   `json:"skipped"`
	Version   int    `json:"version,omitempty"`
	Published bool   `json:"published"`
}

// BulkResult aggregates a MigrateAll run.
type BulkResult struct {
	Results  []Result `json:"results"`
	Migrated int      `json:"migrated"`
	Skipped  int      `json:"skipped"`
	Failed   int      `json:"failed"`
	Errors   []string `json:"errors,omitempty"`
}

// Adapter reads the legacy tables and writes payload versions through
// the flows store.
type Adapter struct {
	db    *db.DB
	store *flows.Store
	audit *audit.Store
}

// NewAdapter creates a migration adapter.
func NewAdapter(d *db.DB, store *flows.Store, auditStore *audit.Store) *Adapter {
	return &Adapter{db: d, store: store, audit: auditStore}
}

// Migrate converts one legacy flow. An already-migrated flow (any
// payload version exists under its id) is reported as skipped, not an
// error and not a new version. A missing or malformed legacy flow is a
// *Error. Nothing is written unless the constructed payload validates.
func (a *Adapter) Migrate(ctx context.Context, legacyID string) (Result, error) {
	migrated, err := a.store.HasVersions(ctx, legacyID)
	if err != nil {
		return Result{}, fmt.Errorf("checking migration state: %w", err)
	}
	if migrated {
		return Result{LegacyID: legacyID, Skipped: true}, nil
	}

	legacy, err := a.readLegacyFlow(ctx, legacyID)
	if err != nil {
		return Result{}, err
	}

	payload, err := a.buildPayload(ctx, legacy)
	if err != nil {
		return Result{}, err
	}

	validated, err := schema.Validate(payload)
	if err != nil {
		return Result{}, &Error{LegacyID: legacyID, Reason: "constructed payload failed validation", Err: err}
	}

	if err := a.store.EnsureFlow(ctx, legacyID, validated); err != nil {
		return Result{}, fmt.Errorf("creating flow record: %w", err)
	}
	draft, err := a.store.SaveDraft(ctx, legacyID, validated)
	if err != nil {
		return Result{}, fmt.Errorf("saving migrated draft: %w", err)
	}

	result := Result{LegacyID: legacyID, Migrated: true, Version: draft.Version}

	if legacy.status == string(schema.StatusActive) {
		if _, err := a.store.Publish(ctx, legacyID); err != nil {
			return Result{}, fmt.Errorf("publishing migrated flow: %w", err)
		}
		result.Published = true
	}

	if a.audit != nil {
		err := a.audit.Log(ctx, audit.Entry{
			FlowID: legacyID,
			Action: audit.ActionMigrate,
			Meta:   map[string]any{"version": draft.Version, "published": result.Published},
		})
		if err != nil {
			return Result{}, fmt.Errorf("recording migration audit entry: %w", err)
		}
	}

	return result, nil
}

// MigrateAll migrates every legacy flow, continuing past individual
// failures and collecting them alongside the success count.
func (a *Adapter) MigrateAll(ctx context.Context, reporter progress.Reporter) (BulkResult, error) {
	if reporter == nil {
		reporter = progress.Silent{}
	}

	ids, err := a.legacyFlowIDs(ctx)
	if err != nil {
		return BulkResult{}, err
	}

	var bulk BulkResult
	reporter.Start(len(ids))
	for i, id := range ids {
		reporter.Update(i+1, fmt.Sprintf("migrating %s", id))

		result, err := a.Migrate(ctx, id)
		if err != nil {
			bulk.Failed++
			bulk.Errors = append(bulk.Errors, err.Error())
			bulk.Results = append(bulk.Results, Result{LegacyID: id})
			continue
		}
		if result.Skipped {
			bulk.Skipped++
		} else {
			bulk.Migrated++
		}
		bulk.Results = append(bulk.Results, result)
	}
	reporter.Finish()

	return bulk, nil
}

type legacyFlow struct {
	id          string
	name        string
	slug        string
	description string
	status      string
	settings    string
	style       string
}

func (a *Adapter) readLegacyFlow(ctx context.Context, legacyID string) (*legacyFlow, error) {
	var lf legacyFlow
	err := a.db.QueryRowContext(ctx, `
		SELECT id, name, slug, description, status, settings, style_config
		FROM legacy_flows WHERE id = ?`, legacyID,
	).Scan(&lf.id, &lf.name, &lf.slug, &lf.description, &lf.status, &lf.settings, &lf.style)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &Error{LegacyID: legacyID, Reason: "legacy flow not found"}
	}
	if err != nil {
		return nil, fmt.Errorf("reading legacy flow: %w", err)
	}
	return &lf, nil
}

func (a *Adapter) legacyFlowIDs(ctx context.Context) ([]string, error) {
	rows, err := a.db.QueryContext(ctx, `SELECT id FROM legacy_flows ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("listing legacy flows: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scanning legacy flow id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// buildPayload maps the legacy rows 1:1 onto a payload document.
// Embedded per-step and per-field conditions are rewritten as
// flow-level logic rules so only one evaluator exists going forward.
func (a *Adapter) buildPayload(ctx context.Context, legacy *legacyFlow) (*schema.FlowPayload, error) {
	payload := &schema.FlowPayload{
		Name:        legacy.name,
		Slug:        legacy.slug,
		Description: legacy.description,
	}
	if legacy.status == string(schema.StatusActive) {
		payload.Status = schema.StatusActive
	}

	if err := unmarshalMap(legacy.settings, &payload.Settings); err != nil {
		return nil, &Error{LegacyID: legacy.id, Reason: "malformed settings JSON", Err: err}
	}
	if legacy.style != "" {
		if err := json.Unmarshal([]byte(legacy.style), &payload.Style); err != nil {
			return nil, &Error{LegacyID: legacy.id, Reason: "malformed style_config JSON", Err: err}
		}
	}

	steps, rules, err := a.readLegacySteps(ctx, legacy.id)
	if err != nil {
		return nil, err
	}
	// Legacy data may carry duplicate or gapped step_order values; ties
	// break by insertion order. Renumber before validation.
	for i := range steps {
		steps[i].StepOrder = i
	}
	payload.Steps = steps
	payload.Logic = rules

	return payload, nil
}

func (a *Adapter) readLegacySteps(ctx context.Context, legacyID string) ([]schema.Step, []schema.LogicRule, error) {
	rows, err := a.db.QueryContext(ctx, `
		SELECT id, step_order, step_type, title, subtitle, content, button_text,
		       is_required, skip_logic, settings, redirect_url, redirect_delay
		FROM flow_steps WHERE flow_id = ? ORDER BY step_order, rowid`, legacyID)
	if err != nil {
		return nil, nil, fmt.Errorf("reading legacy steps: %w", err)
	}
	defer rows.Close()

	var (
		steps []schema.Step
		rules []schema.LogicRule
	)
	for rows.Next() {
		var (
			step       schema.Step
			required   int
			skipLogic  sql.NullString
			settings   string
		)
		err := rows.Scan(&step.ID, &step.StepOrder, &step.StepType, &step.Title,
			&step.Subtitle, &step.Content, &step.ButtonText, &required,
			&skipLogic, &settings, &step.RedirectURL, &step.RedirectDelay)
		if err != nil {
			return nil, nil, fmt.Errorf("scanning legacy step: %w", err)
		}
		step.IsRequired = required != 0

		if err := unmarshalMap(settings, &step.Settings); err != nil {
			return nil, nil, &Error{LegacyID: legacyID, Reason: fmt.Sprintf("step %s: malformed settings JSON", step.ID), Err: err}
		}

		if skipLogic.Valid && skipLogic.String != "" && skipLogic.String != "null" {
			rule, err := legacyRule(skipLogic.String, schema.Target{Scope: schema.ScopeStep, ID: step.ID})
			if err != nil {
				return nil, nil, &Error{LegacyID: legacyID, Reason: fmt.Sprintf("step %s: malformed skip_logic", step.ID), Err: err}
			}
			rules = append(rules, rule)
		}

		fields, fieldRules, err := a.readLegacyFields(ctx, legacyID, step.ID)
		if err != nil {
			return nil, nil, err
		}
		step.Fields = fields
		rules = append(rules, fieldRules...)

		steps = append(steps, step)
	}
	return steps, rules, rows.Err()
}

func (a *Adapter) readLegacyFields(ctx context.Context, legacyID, stepID string) ([]schema.Field, []schema.LogicRule, error) {
	rows, err := a.db.QueryContext(ctx, `
		SELECT id, field_type, field_name, label, placeholder, help_text,
		       is_required, validation_rules, options, default_value, conditional_logic
		FROM flow_fields WHERE step_id = ? ORDER BY field_order, rowid`, stepID)
	if err != nil {
		return nil, nil, fmt.Errorf("reading legacy fields: %w", err)
	}
	defer rows.Close()

	var (
		fields []schema.Field
		rules  []schema.LogicRule
	)
	for rows.Next() {
		var (
			field        schema.Field
			required     int
			validation   string
			options      string
			defaultValue sql.NullString
			conditional  sql.NullString
		)
		err := rows.Scan(&field.ID, &field.FieldType, &field.FieldName, &field.Label,
			&field.Placeholder, &field.HelpText, &required, &validation,
			&options, &defaultValue, &conditional)
		if err != nil {
			return nil, nil, fmt.Errorf("scanning legacy field: %w", err)
		}
		field.IsRequired = required != 0

		if err := unmarshalMap(validation, &field.Validation); err != nil {
			return nil, nil, &Error{LegacyID: legacyID, Reason: fmt.Sprintf("field %s: malformed validation_rules JSON", field.ID), Err: err}
		}
		if options != "" && options != "[]" {
			if err := json.Unmarshal([]byte(options), &field.Options); err != nil {
				return nil, nil, &Error{LegacyID: legacyID, Reason: fmt.Sprintf("field %s: malformed options JSON", field.ID), Err: err}
			}
		}
		if defaultValue.Valid && defaultValue.String != "" {
			field.Default = defaultValue.String
		}

		if conditional.Valid && conditional.String != "" && conditional.String != "null" {
			rule, err := legacyRule(conditional.String, schema.Target{Scope: schema.ScopeField, ID: field.ID})
			if err != nil {
				return nil, nil, &Error{LegacyID: legacyID, Reason: fmt.Sprintf("field %s: malformed conditional_logic", field.ID), Err: err}
			}
			rules = append(rules, rule)
		}

		fields = append(fields, field)
	}
	return fields, rules, rows.Err()
}

// legacyRule translates one embedded legacy condition into an
// equivalent flow-level rule.
func legacyRule(raw string, target schema.Target) (schema.LogicRule, error) {
	var legacy schema.LegacyCondition
	if err := json.Unmarshal([]byte(raw), &legacy); err != nil {
		return schema.LogicRule{}, err
	}
	if legacy.SourceName == "" {
		return schema.LogicRule{}, fmt.Errorf("missing source field")
	}

	action := legacy.Action
	if action == "" {
		action = schema.ActionShow
	}
	operator := legacy.Operator
	if operator == "" {
		operator = schema.OpEquals
	}

	return schema.LogicRule{
		Target: target,
		Action: action,
		Join:   schema.JoinAnd,
		Conditions: []schema.Condition{{
			SourceID: legacy.SourceName,
			Operator: operator,
			Value:    legacy.Value,
		}},
	}, nil
}

func unmarshalMap(raw string, dst *map[string]any) error {
	if raw == "" || raw == "null" {
		*dst = map[string]any{}
		return nil
	}
	return json.Unmarshal([]byte(raw), dst)
}
