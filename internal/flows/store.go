package flows

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hausmatch/leadflow/internal/audit"
	"github.com/hausmatch/leadflow/internal/db"
	"github.com/hausmatch/leadflow/internal/schema"
)

// Store is the persistence boundary for flows and their versions.
// Versions are append-only: SaveDraft always inserts a new row and
// Publish only flips a status, so prior versions are never lost.
type Store struct {
	db    *db.DB
	audit *audit.Store
}

// NewStore creates a flows store. The audit store receives an entry for
// every publish.
func NewStore(d *db.DB, auditStore *audit.Store) *Store {
	return &Store{db: d, audit: auditStore}
}

// GetPublishedBySlug returns the highest published version for the
// slug, or ErrNotFound when no published version exists. Archived flows
// are never served; their slug may already belong to a successor.
// Callers must treat ErrNotFound as a normal outcome (render a 404),
// not a failure.
func (s *Store) GetPublishedBySlug(ctx context.Context, slug string) (*Published, error) {
	var (
		flowID      string
		version     int
		payloadJSON string
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT v.flow_id, v.version, v.payload FROM flow_versions v
		JOIN flows f ON f.id = v.flow_id
		WHERE v.slug = ? AND v.status = 'published' AND f.status != 'archived'
		ORDER BY v.version DESC LIMIT 1`, slug,
	).Scan(&flowID, &version, &payloadJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("published flow %q: %w", slug, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("getting published flow: %w", err)
	}

	payload, err := unmarshalPayload(payloadJSON)
	if err != nil {
		return nil, err
	}
	return &Published{FlowID: flowID, Version: version, Payload: payload}, nil
}

// GetDraftVersion returns the highest draft for the flow id, or
// ErrNotFound when no draft exists.
func (s *Store) GetDraftVersion(ctx context.Context, flowID string) (*schema.FlowPayload, int, error) {
	var (
		version     int
		payloadJSON string
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT version, payload FROM flow_versions
		WHERE flow_id = ? AND status = 'draft'
		ORDER BY version DESC LIMIT 1`, flowID,
	).Scan(&version, &payloadJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, 0, fmt.Errorf("draft for flow %s: %w", flowID, ErrNotFound)
	}
	if err != nil {
		return nil, 0, fmt.Errorf("getting draft version: %w", err)
	}

	payload, err := unmarshalPayload(payloadJSON)
	if err != nil {
		return nil, 0, err
	}
	return payload, version, nil
}

// SaveDraft validates the candidate payload and appends it as the next
// draft version. An empty flowID creates the flow record first, seeding
// its summary from the payload itself. The payload's slug must not
// belong to another live (non-archived) flow; a taken slug is reported
// as a *schema.ValidationError on the slug path. The next version
// number is max+1 computed inside an immediate transaction; if a
// concurrent save still wins the race, the (flow_id, version)
// constraint turns the insert into a *ConflictError and the caller
// retries.
func (s *Store) SaveDraft(ctx context.Context, flowID string, candidate any) (Draft, error) {
	payload, err := schema.Validate(candidate)
	if err != nil {
		return Draft{}, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Draft{}, fmt.Errorf("beginning save transaction: %w", err)
	}
	defer tx.Rollback()

	if flowID == "" {
		flowID = uuid.NewString()
		if err := checkSlugFree(ctx, tx, payload.Slug, flowID); err != nil {
			return Draft{}, err
		}
		if err := insertFlowRecord(ctx, tx, flowID, payload); err != nil {
			if isConstraintViolation(err) {
				return Draft{}, slugConflict(payload.Slug, "")
			}
			return Draft{}, err
		}
	} else {
		var exists int
		err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM flows WHERE id = ?`, flowID).Scan(&exists)
		if err != nil {
			return Draft{}, fmt.Errorf("checking flow record: %w", err)
		}
		if exists == 0 {
			return Draft{}, fmt.Errorf("flow %s: %w", flowID, ErrNotFound)
		}
		if err := checkSlugFree(ctx, tx, payload.Slug, flowID); err != nil {
			return Draft{}, err
		}
	}

	var maxVersion int
	err = tx.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(version), 0) FROM flow_versions WHERE flow_id = ?`, flowID,
	).Scan(&maxVersion)
	if err != nil {
		return Draft{}, fmt.Errorf("reading current max version: %w", err)
	}
	version := maxVersion + 1

	payload.ID = flowID
	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		return Draft{}, fmt.Errorf("marshalling payload: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO flow_versions (flow_id, version, slug, status, payload)
		VALUES (?, ?, ?, 'draft', ?)`,
		flowID, version, payload.Slug, string(payloadJSON),
	)
	if err != nil {
		if isConstraintViolation(err) {
			return Draft{}, &ConflictError{FlowID: flowID, Version: version}
		}
		return Draft{}, fmt.Errorf("inserting draft version: %w", err)
	}

	if err := tx.Commit(); err != nil {
		if isConstraintViolation(err) {
			return Draft{}, &ConflictError{FlowID: flowID, Version: version}
		}
		return Draft{}, fmt.Errorf("committing draft: %w", err)
	}

	return Draft{FlowID: flowID, Version: version}, nil
}

// Publish flips the latest draft to published and refreshes the flow
// record's denormalized summary. The prior published version is
// superseded implicitly: lookups always pick the highest published
// version, old rows stay untouched. Returns ErrNoDraft when the latest
// version is not a draft.
func (s *Store) Publish(ctx context.Context, flowID string) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("beginning publish transaction: %w", err)
	}
	defer tx.Rollback()

	var (
		version     int
		status      string
		payloadJSON string
	)
	err = tx.QueryRowContext(ctx, `
		SELECT version, status, payload FROM flow_versions
		WHERE flow_id = ? ORDER BY version DESC LIMIT 1`, flowID,
	).Scan(&version, &status, &payloadJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("flow %s: %w", flowID, ErrNoDraft)
	}
	if err != nil {
		return 0, fmt.Errorf("reading latest version: %w", err)
	}
	if status != "draft" {
		return 0, fmt.Errorf("flow %s latest version %d already published: %w", flowID, version, ErrNoDraft)
	}

	payload, err := unmarshalPayload(payloadJSON)
	if err != nil {
		return 0, err
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE flow_versions SET status = 'published'
		WHERE flow_id = ? AND version = ?`, flowID, version,
	)
	if err != nil {
		return 0, fmt.Errorf("publishing version: %w", err)
	}

	if err := updateFlowRecord(ctx, tx, flowID, payload, schema.StatusActive); err != nil {
		return 0, err
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("committing publish: %w", err)
	}

	if s.audit != nil {
		err := s.audit.Log(ctx, audit.Entry{
			FlowID: flowID,
			Action: audit.ActionPublish,
			Meta:   map[string]any{"version": version, "slug": payload.Slug},
		})
		if err != nil {
			return 0, fmt.Errorf("recording publish audit entry: %w", err)
		}
	}

	return version, nil
}

// GetFlow returns the denormalized flow record.
func (s *Store) GetFlow(ctx context.Context, flowID string) (*Record, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, slug, description, status, settings, style_config, google_ads_config, created_at, updated_at
		FROM flows WHERE id = ?`, flowID)
	return scanRecord(row)
}

// GetFlowBySlug returns the denormalized flow record for a slug,
// preferring non-archived flows (slug uniqueness is only enforced among
// active flows).
func (s *Store) GetFlowBySlug(ctx context.Context, slug string) (*Record, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, slug, description, status, settings, style_config, google_ads_config, created_at, updated_at
		FROM flows WHERE slug = ?
		ORDER BY CASE status WHEN 'archived' THEN 1 ELSE 0 END, updated_at DESC
		LIMIT 1`, slug)
	return scanRecord(row)
}

// ListFlows returns all flow records, newest first.
func (s *Store) ListFlows(ctx context.Context) ([]Record, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, slug, description, status, settings, style_config, google_ads_config, created_at, updated_at
		FROM flows ORDER BY updated_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("listing flows: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, *rec)
	}
	return records, rows.Err()
}

// ListVersions returns every stored version for a flow, oldest first.
func (s *Store) ListVersions(ctx context.Context, flowID string) ([]VersionInfo, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT version, status, created_at FROM flow_versions
		WHERE flow_id = ? ORDER BY version`, flowID)
	if err != nil {
		return nil, fmt.Errorf("listing versions: %w", err)
	}
	defer rows.Close()

	var versions []VersionInfo
	for rows.Next() {
		var (
			v  VersionInfo
			ts string
		)
		if err := rows.Scan(&v.Version, &v.Status, &ts); err != nil {
			return nil, fmt.Errorf("scanning version: %w", err)
		}
		if t, parseErr := time.Parse(time.DateTime, ts); parseErr == nil {
			v.CreatedAt = t
		}
		versions = append(versions, v)
	}
	return versions, rows.Err()
}

// SetStatus transitions the flow-level status (pause, archive,
// reactivate). Version rows are untouched; archiving is a flow-level
// operation. Reactivating fails when another live flow has taken the
// slug in the meantime.
func (s *Store) SetStatus(ctx context.Context, flowID string, status schema.FlowStatus) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE flows SET status = ?, updated_at = datetime('now') WHERE id = ?`,
		string(status), flowID,
	)
	if err != nil {
		if isConstraintViolation(err) {
			return fmt.Errorf("flow %s: slug is already used by another live flow", flowID)
		}
		return fmt.Errorf("setting flow status: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("flow %s: %w", flowID, ErrNotFound)
	}

	if status == schema.StatusArchived && s.audit != nil {
		if err := s.audit.Log(ctx, audit.Entry{FlowID: flowID, Action: audit.ActionArchive}); err != nil {
			return fmt.Errorf("recording archive audit entry: %w", err)
		}
	}
	return nil
}

// Delete removes the flow and, via cascade, every stored version.
func (s *Store) Delete(ctx context.Context, flowID string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM flows WHERE id = ?`, flowID)
	if err != nil {
		return fmt.Errorf("deleting flow: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("flow %s: %w", flowID, ErrNotFound)
	}
	if s.audit != nil {
		if err := s.audit.Log(ctx, audit.Entry{FlowID: flowID, Action: audit.ActionDelete}); err != nil {
			return fmt.Errorf("recording delete audit entry: %w", err)
		}
	}
	return nil
}

// EnsureFlow inserts a flow record with a caller-chosen id if none
// exists yet. The migration adapter uses it to keep legacy flow ids
// stable across the move to payload versions.
func (s *Store) EnsureFlow(ctx context.Context, flowID string, payload *schema.FlowPayload) error {
	var exists int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM flows WHERE id = ?`, flowID).Scan(&exists)
	if err != nil {
		return fmt.Errorf("checking flow record: %w", err)
	}
	if exists > 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning ensure transaction: %w", err)
	}
	defer tx.Rollback()

	if err := insertFlowRecord(ctx, tx, flowID, payload); err != nil {
		if isConstraintViolation(err) {
			return slugConflict(payload.Slug, "")
		}
		return err
	}
	return tx.Commit()
}

// HasVersions reports whether any version exists for the flow id. The
// migration adapter uses it for its idempotence check.
func (s *Store) HasVersions(ctx context.Context, flowID string) (bool, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM flow_versions WHERE flow_id = ?`, flowID,
	).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("counting versions: %w", err)
	}
	return count > 0, nil
}

// checkSlugFree reports a validation violation when another live flow
// already owns the slug. The partial unique index on flows(slug) is the
// backstop for concurrent inserts this read cannot see.
func checkSlugFree(ctx context.Context, tx *sql.Tx, slug, selfID string) error {
	var owner string
	err := tx.QueryRowContext(ctx, `
		SELECT id FROM flows WHERE slug = ? AND status != 'archived' AND id != ? LIMIT 1`,
		slug, selfID,
	).Scan(&owner)
	if errors.Is(err, sql.ErrNoRows) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("checking slug availability: %w", err)
	}
	return slugConflict(slug, owner)
}

func slugConflict(slug, owner string) error {
	message := fmt.Sprintf("slug %q is already used by another live flow", slug)
	if owner != "" {
		message = fmt.Sprintf("slug %q is already used by flow %s", slug, owner)
	}
	return &schema.ValidationError{Violations: []schema.Violation{{Path: "slug", Message: message}}}
}

func insertFlowRecord(ctx context.Context, tx *sql.Tx, flowID string, payload *schema.FlowPayload) error {
	settings, err := json.Marshal(payload.Settings)
	if err != nil {
		return fmt.Errorf("marshalling settings: %w", err)
	}
	style, err := json.Marshal(payload.Style)
	if err != nil {
		return fmt.Errorf("marshalling style config: %w", err)
	}
	ads, err := json.Marshal(payload.GoogleAds)
	if err != nil {
		return fmt.Errorf("marshalling google ads config: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO flows (id, name, slug, description, status, settings, style_config, google_ads_config)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		flowID, payload.Name, payload.Slug, payload.Description,
		string(payload.Status), string(settings), string(style), string(ads),
	)
	if err != nil {
		return fmt.Errorf("creating flow record: %w", err)
	}
	return nil
}

func updateFlowRecord(ctx context.Context, tx *sql.Tx, flowID string, payload *schema.FlowPayload, status schema.FlowStatus) error {
	settings, err := json.Marshal(payload.Settings)
	if err != nil {
		return fmt.Errorf("marshalling settings: %w", err)
	}
	style, err := json.Marshal(payload.Style)
	if err != nil {
		return fmt.Errorf("marshalling style config: %w", err)
	}
	ads, err := json.Marshal(payload.GoogleAds)
	if err != nil {
		return fmt.Errorf("marshalling google ads config: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE flows
		SET name = ?, slug = ?, description = ?, status = ?, settings = ?,
		    style_config = ?, google_ads_config = ?, updated_at = datetime('now')
		WHERE id = ?`,
		payload.Name, payload.Slug, payload.Description, string(status),
		string(settings), string(style), string(ads), flowID,
	)
	if err != nil {
		return fmt.Errorf("updating flow record: %w", err)
	}
	return nil
}

func scanRecord(row interface{ Scan(...any) error }) (*Record, error) {
	var (
		rec                  Record
		status               string
		settings, style, ads string
		created, updated     string
	)
	err := row.Scan(&rec.ID, &rec.Name, &rec.Slug, &rec.Description, &status,
		&settings, &style, &ads, &created, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scanning flow record: %w", err)
	}

	rec.Status = schema.FlowStatus(status)
	if err := json.Unmarshal([]byte(settings), &rec.Settings); err != nil {
		rec.Settings = map[string]any{}
	}
	if err := json.Unmarshal([]byte(style), &rec.Style); err != nil {
		rec.Style = schema.StyleConfig{}
	}
	if err := json.Unmarshal([]byte(ads), &rec.GoogleAds); err != nil {
		rec.GoogleAds = map[string]any{}
	}
	if t, parseErr := time.Parse(time.DateTime, created); parseErr == nil {
		rec.CreatedAt = t
	}
	if t, parseErr := time.Parse(time.DateTime, updated); parseErr == nil {
		rec.UpdatedAt = t
	}
	return &rec, nil
}

func unmarshalPayload(payloadJSON string) (*schema.FlowPayload, error) {
	var payload schema.FlowPayload
	if err := json.Unmarshal([]byte(payloadJSON), &payload); err != nil {
		return nil, fmt.Errorf("unmarshalling stored payload: %w", err)
	}
	return &payload, nil
}

// isConstraintViolation detects SQLite unique/primary-key violations so
// the store can report them as retryable conflicts.
func isConstraintViolation(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "constraint failed")
}
