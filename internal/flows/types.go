package flows

import (
	"time"

	"github.com/hausmatch/leadflow/internal/schema"
)

// Record is the denormalized flow row: one per flow, carrying the
// summary of the most recently published version.
type Record struct {
	ID          string             `json:"id"`
	Name        string             `json:"name"`
	Slug        string             `json:"slug"`
	Description string             `json:"description"`
	Status      schema.FlowStatus  `json:"status"`
	Settings    map[string]any     `json:"settings"`
	Style       schema.StyleConfig `json:"style_config"`
	GoogleAds   map[string]any     `json:"google_ads_config"`
	CreatedAt   time.Time          `json:"created_at"`
	UpdatedAt   time.Time          `json:"updated_at"`
}

// Published pairs a published payload with its owning flow.
type Published struct {
	FlowID  string              `json:"flow_id"`
	Version int                 `json:"version"`
	Payload *schema.FlowPayload `json:"payload"`
}

// Draft identifies a saved draft version.
type Draft struct {
	FlowID  string `json:"flow_id"`
	Version int    `json:"version"`
}

// VersionInfo summarizes one stored version for listings.
type VersionInfo struct {
	Version   int       `json:"version"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
}
