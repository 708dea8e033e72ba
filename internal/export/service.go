package export

import (
	"context"
	"fmt"
	"html/template"
	"strings"

	"inkwell/api/internal/doc"
	"inkwell/api/internal/page"
	"inkwell/api/internal/styles"
)

// DataStore defines the interface for data access
type DataStore interface {
	GetProjectInfo(ctx context.Context, projectID string) (ProjectInfo, error)
	ListChapterInfos(ctx context.Context, projectID string) ([]ChapterInfo, error)
	GetChapterContent(ctx context.Context, projectID string, chapterID int) (doc.Node, error)
}

// ProjectInfo holds the project metadata an export needs.
type ProjectInfo struct {
	ID           string
	Title        string
	Author       string
	FontFamily   string
	Styles       styles.Sheet
	PageSettings page.Settings
}

// ChapterInfo holds one chapter's metadata in manuscript order.
type ChapterInfo struct {
	ID    int
	Title string
}

// Service provides manuscript export functionality
type Service struct {
	store DataStore
}

// NewService creates a new export service
func NewService(store DataStore) *Service {
	return &Service{store: store}
}

// Export generates an export in the requested format.
func (s *Service) Export(ctx context.Context, req Request) (*Result, error) {
	project, err := s.store.GetProjectInfo(ctx, req.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("get project: %w", err)
	}

	chapters, err := s.loadChapters(ctx, req)
	if err != nil {
		return nil, err
	}

	switch req.Format {
	case FormatPDF:
		html, err := s.renderHTML(project, chapters)
		if err != nil {
			return nil, err
		}
		return exportPDF(html, project.Title, project.PageSettings)
	case FormatRTF:
		data := exportRTF(project, chapters)
		return &Result{
			Data:     data,
			Filename: sanitizeFilename(project.Title) + ".rtf",
			MimeType: "application/rtf",
		}, nil
	case FormatHTML:
		html, err := s.renderHTML(project, chapters)
		if err != nil {
			return nil, err
		}
		return &Result{
			Data:     []byte(html),
			Filename: sanitizeFilename(project.Title) + ".html",
			MimeType: "text/html; charset=utf-8",
		}, nil
	default:
		return nil, fmt.Errorf("unsupported format: %s", req.Format)
	}
}

// chapterContent pairs a chapter's metadata with its document tree.
type chapterContent struct {
	Info ChapterInfo
	Doc  doc.Node
}

func (s *Service) loadChapters(ctx context.Context, req Request) ([]chapterContent, error) {
	infos, err := s.store.ListChapterInfos(ctx, req.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("list chapters: %w", err)
	}

	var out []chapterContent
	for _, info := range infos {
		if req.ChapterID != 0 && info.ID != req.ChapterID {
			continue
		}
		content, err := s.store.GetChapterContent(ctx, req.ProjectID, info.ID)
		if err != nil {
			return nil, fmt.Errorf("%w: chapter %d: %v", ErrContentUnavailable, info.ID, err)
		}
		out = append(out, chapterContent{Info: info, Doc: content})
	}
	if len(out) == 0 {
		return nil, ErrContentUnavailable
	}
	return out, nil
}

func (s *Service) renderHTML(project ProjectInfo, chapters []chapterContent) (string, error) {
	var body strings.Builder
	for i, ch := range chapters {
		if i > 0 {
			body.WriteString(`<div class="chapter-break"></div>` + "\n")
		}
		fmt.Fprintf(&body, "<h1>%s</h1>\n", template.HTMLEscapeString(ch.Info.Title))
		body.WriteString(doc.RenderHTML(ch.Doc))
	}

	resolved := styles.Resolve(project.Styles)
	geometry := page.Resolve(project.PageSettings)

	data := TemplateData{
		Title:       project.Title,
		Author:      project.Author,
		FontFamily:  project.FontFamily,
		StyleCSS:    template.CSS(styles.Rules(resolved)),
		Geometry:    geometry,
		ContentHTML: template.HTML(body.String()),
	}
	return RenderManuscriptHTML(data)
}
