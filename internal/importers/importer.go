// Package importers loads flow definition files (YAML or JSON) from
// disk and saves them as draft versions, optionally publishing them.
// Used by `leadflow import` to seed a site from checked-in flow files.
package importers

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/bmatcuk/doublestar/v4"
	"gopkg.in/yaml.v3"

	"github.com/hausmatch/leadflow/internal/audit"
	"github.com/hausmatch/leadflow/internal/flows"
	"github.com/hausmatch/leadflow/internal/progress"
)

// FileResult is the outcome of importing one definition file.
type FileResult struct {
	Path      string `json:"path"`
	FlowID    string `json:"flow_id,omitempty"`
	Version   int    `json:"version,omitempty"`
	Published bool   `json:"published"`
	Err       string `json:"error,omitempty"`
}

// Summary aggregates an import run. Individual file failures do not
// abort the batch.
type Summary struct {
	Imported int          `json:"imported"`
	Failed   int          `json:"failed"`
	Results  []FileResult `json:"results"`
}

// Importer wires definition files into the flows store.
type Importer struct {
	store *flows.Store
	audit *audit.Store
}

// New creates an Importer.
func New(store *flows.Store, auditStore *audit.Store) *Importer {
	return &Importer{store: store, audit: auditStore}
}

// ImportGlob imports every file under root matching the doublestar
// pattern. Files whose slug matches an existing flow become a new draft
// version of it; unknown slugs create a new flow.
func (im *Importer) ImportGlob(ctx context.Context, root, pattern string, publish bool, reporter progress.Reporter) (Summary, error) {
	if reporter == nil {
		reporter = progress.Silent{}
	}

	matches, err := doublestar.Glob(os.DirFS(root), pattern)
	if err != nil {
		return Summary{}, fmt.Errorf("matching pattern %q: %w", pattern, err)
	}

	var summary Summary
	reporter.Start(len(matches))
	for i, match := range matches {
		reporter.Update(i+1, match)

		result := im.importFile(ctx, filepath.Join(root, match), publish)
		result.Path = match
		if result.Err != "" {
			summary.Failed++
		} else {
			summary.Imported++
		}
		summary.Results = append(summary.Results, result)
	}
	reporter.Finish()

	return summary, nil
}

// ImportFile imports a single definition file.
func (im *Importer) ImportFile(ctx context.Context, path string, publish bool) (FileResult, error) {
	result := im.importFile(ctx, path, publish)
	result.Path = path
	if result.Err != "" {
		return result, errors.New(result.Err)
	}
	return result, nil
}

func (im *Importer) importFile(ctx context.Context, path string, publish bool) FileResult {
	candidate, err := readDefinition(path)
	if err != nil {
		return FileResult{Err: err.Error()}
	}

	// Reuse the flow when a flow with this slug already exists, so
	// re-importing a file appends a version instead of duplicating the
	// flow.
	flowID := ""
	if slug, ok := candidate["slug"].(string); ok && slug != "" {
		if rec, err := im.store.GetFlowBySlug(ctx, slug); err == nil {
			flowID = rec.ID
		} else if !errors.Is(err, flows.ErrNotFound) {
			return FileResult{Err: err.Error()}
		}
	}

	draft, err := im.store.SaveDraft(ctx, flowID, candidate)
	if err != nil {
		return FileResult{Err: err.Error()}
	}

	result := FileResult{FlowID: draft.FlowID, Version: draft.Version}

	if publish {
		if _, err := im.store.Publish(ctx, draft.FlowID); err != nil {
			result.Err = fmt.Sprintf("saved draft but publish failed: %v", err)
			return result
		}
		result.Published = true
	}

	if im.audit != nil {
		err := im.audit.Log(ctx, audit.Entry{
			FlowID: draft.FlowID,
			Action: audit.ActionImport,
			Meta:   map[string]any{"version": draft.Version, "published": result.Published},
		})
		if err != nil {
			result.Err = err.Error()
		}
	}

	return result
}

// readDefinition parses a YAML or JSON flow definition into the open
// shape the schema validator accepts. YAML is a superset of JSON, so
// one parser covers both.
func readDefinition(path string) (map[string]any, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("definition file %s does not exist", path)
		}
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	var candidate map[string]any
	if err := yaml.Unmarshal(raw, &candidate); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	if candidate == nil {
		return nil, fmt.Errorf("definition file %s is empty", path)
	}
	return candidate, nil
}
