package store

import "reqtrack/api/internal/review"

// Timestamps are server-assigned strings with second precision.
const TimeLayout = "2006-01-02 15:04:05"

// Attachment is file metadata carried on a requirement. The bytes themselves
// live in object storage under Key.
type Attachment struct {
	Name string `json:"name"`
	Key  string `json:"key"`
	Size int64  `json:"size"`
}

type Requirement struct {
	ID           string         `json:"id"`
	Title        string         `json:"title"`
	Type         string         `json:"type"`
	Status       string         `json:"status"`
	Priority     string         `json:"priority"`
	Description  string         `json:"description"`
	Tags         []string       `json:"tags"`
	Attachments  []Attachment   `json:"attachments"`
	ReviewLevels []review.Level `json:"reviewLevels"`
	CreatedAt    string         `json:"createdAt"`
	UpdatedAt    string         `json:"updatedAt"`
}

type Version struct {
	ID            string `json:"id"`
	Platform      string `json:"platform"`
	VersionNumber string `json:"versionNumber"`
	ReleaseDate   string `json:"releaseDate"`
	CreatedAt     string `json:"createdAt"`
	UpdatedAt     string `json:"updatedAt"`
}

type Comment struct {
	ID            string `json:"id"`
	RequirementID string `json:"requirementId"`
	Author        string `json:"author"`
	Body          string `json:"body"`
	CreatedAt     string `json:"createdAt"`
	UpdatedAt     string `json:"updatedAt"`
}

// Patch types use nil to mean "leave unchanged". Update performs a shallow
// merge: set fields replace the existing value wholesale, including Tags and
// ReviewLevels.
type RequirementPatch struct {
	Title        *string         `json:"title,omitempty"`
	Type         *string         `json:"type,omitempty"`
	Status       *string         `json:"status,omitempty"`
	Priority     *string         `json:"priority,omitempty"`
	Description  *string         `json:"description,omitempty"`
	Tags         *[]string       `json:"tags,omitempty"`
	Attachments  *[]Attachment   `json:"attachments,omitempty"`
	ReviewLevels *[]review.Level `json:"reviewLevels,omitempty"`
}

type VersionPatch struct {
	Platform      *string `json:"platform,omitempty"`
	VersionNumber *string `json:"versionNumber,omitempty"`
	ReleaseDate   *string `json:"releaseDate,omitempty"`
}

type CommentPatch struct {
	Body *string `json:"body,omitempty"`
}

// snapshot is the persisted blob layout: a schema version tag plus the full
// domain state. A persisted version older than schemaVersion is discarded and
// reseeded; there is no field-level migration.
type snapshot struct {
	Version int           `json:"version"`
	State   snapshotState `json:"state"`
}

type snapshotState struct {
	Requirements []Requirement `json:"requirements"`
	Versions     []Version     `json:"versions"`
	Comments     []Comment     `json:"comments"`
}
