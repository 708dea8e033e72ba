package store

import (
	"encoding/json"
	"time"
)

// AppConfig is the single app-level settings record.
type AppConfig struct {
	LastProjectPath string
	FontFamily      string
	UpdatedAt       time.Time
}

type Project struct {
	ID              string
	Path            string
	Title           string
	Author          string
	ExportDir       string
	FontFamily      string
	ActiveChapterID *int
	// Styles and PageSettings are opaque JSON at this layer; the style
	// and page packages own their shapes.
	Styles       json.RawMessage
	PageSettings json.RawMessage
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Chapter is one chapter's metadata row. Content lives in the project's
// git repository, keyed by ChapterID.
type Chapter struct {
	ProjectID string
	ChapterID int
	Title     string
	Position  int
	UpdatedAt time.Time
}

// ProjectPatch carries a partial metadata update. Nil fields are left
// untouched by the save.
type ProjectPatch struct {
	Title           *string
	Author          *string
	ExportDir       *string
	FontFamily      *string
	ActiveChapterID *int
	Styles          json.RawMessage
	PageSettings    json.RawMessage
}

// CommitInfo describes one save in a project's content history.
type CommitInfo struct {
	Hash      string
	Message   string
	Author    string
	CreatedAt time.Time
}

// ChapterText is the plain-text mirror of one chapter, kept for the
// Postgres full-text search fallback.
type ChapterText struct {
	ProjectID string
	ChapterID int
	Title     string
	Body      string
	UpdatedAt time.Time
}
