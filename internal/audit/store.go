package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hausmatch/leadflow/internal/db"
)

// Store provides append and query operations for the flow audit log.
type Store struct {
	db *db.DB
}

// NewStore creates a Store backed by the given database.
func NewStore(database *db.DB) *Store {
	return &Store{db: database}
}

// Log inserts a new audit entry. If entry.ID is empty a UUID is generated.
func (s *Store) Log(ctx context.Context, entry Entry) error {
	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}
	if entry.Meta == nil {
		entry.Meta = map[string]any{}
	}

	meta, err := json.Marshal(entry.Meta)
	if err != nil {
		return fmt.Errorf("marshalling audit meta: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO flow_audit (id, flow_id, action, meta)
		VALUES (?, ?, ?, ?)`,
		entry.ID, entry.FlowID, string(entry.Action), string(meta),
	)
	if err != nil {
		return fmt.Errorf("inserting audit entry: %w", err)
	}
	return nil
}

// QueryFilter controls which audit entries Query returns.
type QueryFilter struct {
	FlowID string
	Action Action
	Since  *time.Time
	Until  *time.Time
	Limit  int
	Offset int
}

// Query returns audit entries matching the filter, newest first.
func (s *Store) Query(ctx context.Context, filter QueryFilter) ([]Entry, error) {
	var (
		clauses []string
		args    []any
	)

	if filter.FlowID != "" {
		clauses = append(clauses, "flow_id = ?")
		args = append(args, filter.FlowID)
	}
	if filter.Action != "" {
		clauses = append(clauses, "action = ?")
		args = append(args, string(filter.Action))
	}
	if filter.Since != nil {
		clauses = append(clauses, "created_at >= ?")
		args = append(args, filter.Since.UTC().Format(time.DateTime))
	}
	if filter.Until != nil {
		clauses = append(clauses, "created_at <= ?")
		args = append(args, filter.Until.UTC().Format(time.DateTime))
	}

	query := "SELECT id, flow_id, action, meta, created_at FROM flow_audit"
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += " ORDER BY created_at DESC, id"

	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", filter.Limit)
	}
	if filter.Offset > 0 {
		query += fmt.Sprintf(" OFFSET %d", filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying audit entries: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, *e)
	}
	return entries, rows.Err()
}

func scanEntry(rows *sql.Rows) (*Entry, error) {
	var (
		e        Entry
		action   string
		metaJSON string
		ts       string
	)

	if err := rows.Scan(&e.ID, &e.FlowID, &action, &metaJSON, &ts); err != nil {
		return nil, fmt.Errorf("scanning audit entry: %w", err)
	}

	e.Action = Action(action)

	if t, parseErr := time.Parse(time.DateTime, ts); parseErr == nil {
		e.CreatedAt = t
	} else if t, parseErr := time.Parse(time.RFC3339, ts); parseErr == nil {
		e.CreatedAt = t
	}

	if err := json.Unmarshal([]byte(metaJSON), &e.Meta); err != nil {
		e.Meta = map[string]any{}
	}

	return &e, nil
}
