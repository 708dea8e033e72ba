package search

import "fmt"

// Result is a single chapter hit returned to the caller.
type Result struct {
	ProjectID string `json:"projectId"`
	ChapterID int    `json:"chapterId"`
	Title     string `json:"title"`
	Snippet   string `json:"snippet"`
}

// Query describes a search request. ProjectID narrows the search to one
// project; empty searches everything.
type Query struct {
	Text      string
	ProjectID string
	Limit     int
	Offset    int
}

// Response is the envelope returned by the search endpoint.
type Response struct {
	Results []Result `json:"results"`
	Total   int      `json:"total"`
	Query   string   `json:"query"`
}

// Searcher can execute a full-text search over chapters.
type Searcher interface {
	Search(q Query) ([]Result, int, error)
	Healthy() bool
}

// ChapterRecord is the data we index for a chapter.
type ChapterRecord struct {
	ID        string `json:"id"`
	ProjectID string `json:"projectId"`
	ChapterID int    `json:"chapterId"`
	Title     string `json:"title"`
	Body      string `json:"body"`
}

// RecordID builds the index document ID for a chapter.
func RecordID(projectID string, chapterID int) string {
	return fmt.Sprintf("%s-%d", projectID, chapterID)
}
