package flows

import (
	"errors"
	"fmt"
)

// ErrNotFound marks lookups for flows, drafts, or published versions
// that do not exist. Read paths report absence with it; callers map it
// to a normal "not found" outcome rather than a failure.
var ErrNotFound = errors.New("not found")

// ErrNoDraft is returned by Publish when the flow has no draft to
// publish. It wraps ErrNotFound.
var ErrNoDraft = fmt.Errorf("no draft version to publish: %w", ErrNotFound)

// ConflictError reports a version-number collision: two concurrent
// SaveDraft calls computed the same next version and the second insert
// hit the (flow_id, version) constraint. Retrying SaveDraft is safe; it
// re-reads the max version.
type ConflictError struct {
	FlowID  string
	Version int
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("version %d for flow %s already exists, retry the save", e.Version, e.FlowID)
}
