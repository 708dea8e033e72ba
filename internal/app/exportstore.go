package app

import (
	"context"

	"inkwell/api/internal/doc"
	"inkwell/api/internal/export"
	"inkwell/api/internal/gitrepo"
	"inkwell/api/internal/store"
)

// ExportStore adapts the metadata and content stores to the export
// service's read model.
type ExportStore struct {
	meta metadataStore
	git  contentStore
}

func NewExportStore(meta *store.PostgresStore, git *gitrepo.Service) *ExportStore {
	return &ExportStore{meta: meta, git: git}
}

func (e *ExportStore) GetProjectInfo(ctx context.Context, projectID string) (export.ProjectInfo, error) {
	p, err := e.meta.GetProject(ctx, projectID)
	if err != nil {
		return export.ProjectInfo{}, err
	}
	return export.ProjectInfo{
		ID:           p.ID,
		Title:        p.Title,
		Author:       p.Author,
		FontFamily:   p.FontFamily,
		Styles:       projectStyles(p),
		PageSettings: projectPage(p),
	}, nil
}

func (e *ExportStore) ListChapterInfos(ctx context.Context, projectID string) ([]export.ChapterInfo, error) {
	chapters, err := e.meta.ListChapters(ctx, projectID)
	if err != nil {
		return nil, err
	}
	infos := make([]export.ChapterInfo, 0, len(chapters))
	for _, c := range chapters {
		infos = append(infos, export.ChapterInfo{ID: c.ChapterID, Title: c.Title})
	}
	return infos, nil
}

func (e *ExportStore) GetChapterContent(ctx context.Context, projectID string, chapterID int) (doc.Node, error) {
	return e.git.LoadChapter(projectID, chapterID)
}
