package audit

import "time"

// Action describes what was done to a flow.
type Action string

const (
	ActionPublish  Action = "publish"
	ActionMigrate  Action = "migrate"
	ActionImport   Action = "import"
	ActionArchive  Action = "archive"
	ActionDelete   Action = "delete"
)

// Entry is a single append-only audit record for a flow.
type Entry struct {
	ID        string         `json:"id"`
	FlowID    string         `json:"flow_id"`
	Action    Action         `json:"action"`
	Meta      map[string]any `json:"meta"`
	CreatedAt time.Time      `json:"created_at"`
}
