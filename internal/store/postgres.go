package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
)

type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) DB() *sql.DB {
	return s.db
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// GetAppConfig reads the single app settings row, creating it on first
// access.
func (s *PostgresStore) GetAppConfig(ctx context.Context) (AppConfig, error) {
	var cfg AppConfig
	err := s.db.QueryRowContext(ctx, `
		SELECT last_project_path, font_family, updated_at
		FROM app_config WHERE id = 1
	`).Scan(&cfg.LastProjectPath, &cfg.FontFamily, &cfg.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		if _, err := s.db.ExecContext(ctx, `
			INSERT INTO app_config (id) VALUES (1) ON CONFLICT (id) DO NOTHING
		`); err != nil {
			return AppConfig{}, fmt.Errorf("init app config: %w", err)
		}
		return AppConfig{}, nil
	}
	if err != nil {
		return AppConfig{}, fmt.Errorf("read app config: %w", err)
	}
	return cfg, nil
}

// SetLastProjectPath remembers the most recently opened project so the
// next launch can reopen it.
func (s *PostgresStore) SetLastProjectPath(ctx context.Context, path string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO app_config (id, last_project_path)
		VALUES (1, $1)
		ON CONFLICT (id) DO UPDATE SET last_project_path = EXCLUDED.last_project_path, updated_at = NOW()
	`, path)
	if err != nil {
		return fmt.Errorf("set last project path: %w", err)
	}
	return nil
}

// SetAppFontFamily stores the app-wide default font.
func (s *PostgresStore) SetAppFontFamily(ctx context.Context, family string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO app_config (id, font_family)
		VALUES (1, $1)
		ON CONFLICT (id) DO UPDATE SET font_family = EXCLUDED.font_family, updated_at = NOW()
	`, family)
	if err != nil {
		return fmt.Errorf("set app font: %w", err)
	}
	return nil
}

func (s *PostgresStore) CreateProject(ctx context.Context, p Project) (Project, error) {
	styles := p.Styles
	if len(styles) == 0 {
		styles = json.RawMessage(`{}`)
	}
	pageSettings := p.PageSettings
	if len(pageSettings) == 0 {
		pageSettings = json.RawMessage(`{}`)
	}
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO projects (id, path, title, author, export_dir, font_family, styles, page_settings)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING created_at, updated_at
	`, p.ID, p.Path, p.Title, p.Author, p.ExportDir, p.FontFamily, styles, pageSettings).
		Scan(&p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return Project{}, fmt.Errorf("insert project: %w", err)
	}
	p.Styles = styles
	p.PageSettings = pageSettings
	return p, nil
}

const projectColumns = `id, path, title, author, export_dir, font_family, active_chapter_id, styles, page_settings, created_at, updated_at`

func scanProject(row *sql.Row) (Project, error) {
	var p Project
	err := row.Scan(&p.ID, &p.Path, &p.Title, &p.Author, &p.ExportDir, &p.FontFamily,
		&p.ActiveChapterID, &p.Styles, &p.PageSettings, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return Project{}, err
	}
	return p, nil
}

func (s *PostgresStore) GetProject(ctx context.Context, id string) (Project, error) {
	p, err := scanProject(s.db.QueryRowContext(ctx,
		`SELECT `+projectColumns+` FROM projects WHERE id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return Project{}, err
	}
	if err != nil {
		return Project{}, fmt.Errorf("get project: %w", err)
	}
	return p, nil
}

func (s *PostgresStore) GetProjectByPath(ctx context.Context, path string) (Project, error) {
	p, err := scanProject(s.db.QueryRowContext(ctx,
		`SELECT `+projectColumns+` FROM projects WHERE path = $1`, path))
	if errors.Is(err, sql.ErrNoRows) {
		return Project{}, err
	}
	if err != nil {
		return Project{}, fmt.Errorf("get project by path: %w", err)
	}
	return p, nil
}

func (s *PostgresStore) ListProjects(ctx context.Context) ([]Project, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+projectColumns+` FROM projects ORDER BY updated_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	defer rows.Close()

	items := make([]Project, 0)
	for rows.Next() {
		var p Project
		if err := rows.Scan(&p.ID, &p.Path, &p.Title, &p.Author, &p.ExportDir, &p.FontFamily,
			&p.ActiveChapterID, &p.Styles, &p.PageSettings, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan project: %w", err)
		}
		items = append(items, p)
	}
	return items, rows.Err()
}

// SaveProjectMetadata merges the patch into the project row. Nil fields
// never clobber stored values.
func (s *PostgresStore) SaveProjectMetadata(ctx context.Context, id string, patch ProjectPatch) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE projects SET
			title             = COALESCE($2, title),
			author            = COALESCE($3, author),
			export_dir        = COALESCE($4, export_dir),
			font_family       = COALESCE($5, font_family),
			active_chapter_id = COALESCE($6, active_chapter_id),
			styles            = COALESCE($7, styles),
			page_settings     = COALESCE($8, page_settings),
			updated_at        = NOW()
		WHERE id = $1
	`, id, patch.Title, patch.Author, patch.ExportDir, patch.FontFamily,
		patch.ActiveChapterID, nullableJSON(patch.Styles), nullableJSON(patch.PageSettings))
	if err != nil {
		return fmt.Errorf("save project metadata: %w", err)
	}
	n, err := res.RowsAffected()
	if err == nil && n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func nullableJSON(raw json.RawMessage) any {
	if len(raw) == 0 {
		return nil
	}
	return []byte(raw)
}

// ClearActiveChapter sets active_chapter_id to NULL, for when the last
// chapter of a project is deleted.
func (s *PostgresStore) ClearActiveChapter(ctx context.Context, projectID string) error {
	if _, err := s.db.ExecContext(ctx,
		`UPDATE projects SET active_chapter_id = NULL, updated_at = NOW() WHERE id = $1`, projectID); err != nil {
		return fmt.Errorf("clear active chapter: %w", err)
	}
	return nil
}

func (s *PostgresStore) DeleteProject(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM projects WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete project: %w", err)
	}
	return nil
}

// ListChapters returns a project's chapters ordered by position.
func (s *PostgresStore) ListChapters(ctx context.Context, projectID string) ([]Chapter, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT project_id, chapter_id, title, position, updated_at
		FROM project_chapters
		WHERE project_id = $1
		ORDER BY position ASC
	`, projectID)
	if err != nil {
		return nil, fmt.Errorf("list chapters: %w", err)
	}
	defer rows.Close()

	items := make([]Chapter, 0)
	for rows.Next() {
		var c Chapter
		if err := rows.Scan(&c.ProjectID, &c.ChapterID, &c.Title, &c.Position, &c.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan chapter: %w", err)
		}
		items = append(items, c)
	}
	return items, rows.Err()
}

// NextChapterID returns max(chapter_id)+1 for a project. Deleted IDs are
// never reused because the max is computed over live rows plus the
// project's recorded high-water mark.
func (s *PostgresStore) NextChapterID(ctx context.Context, projectID string) (int, error) {
	var next int
	err := s.db.QueryRowContext(ctx, `
		SELECT GREATEST(
			COALESCE((SELECT MAX(chapter_id) FROM project_chapters WHERE project_id = $1), 0),
			COALESCE((SELECT max_chapter_id FROM projects WHERE id = $1), 0)
		) + 1
	`, projectID).Scan(&next)
	if err != nil {
		return 0, fmt.Errorf("next chapter id: %w", err)
	}
	return next, nil
}

// InsertChapter appends a chapter at the end of the order and bumps the
// project's high-water mark.
func (s *PostgresStore) InsertChapter(ctx context.Context, c Chapter) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin insert chapter: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO project_chapters (project_id, chapter_id, title, position)
		VALUES ($1, $2, $3,
			COALESCE((SELECT MAX(position) + 1 FROM project_chapters WHERE project_id = $1), 0))
	`, c.ProjectID, c.ChapterID, c.Title); err != nil {
		return fmt.Errorf("insert chapter: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE projects SET max_chapter_id = GREATEST(max_chapter_id, $2), updated_at = NOW()
		WHERE id = $1
	`, c.ProjectID, c.ChapterID); err != nil {
		return fmt.Errorf("bump chapter high-water mark: %w", err)
	}

	return tx.Commit()
}

func (s *PostgresStore) RenameChapter(ctx context.Context, projectID string, chapterID int, title string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE project_chapters SET title = $3, updated_at = NOW()
		WHERE project_id = $1 AND chapter_id = $2
	`, projectID, chapterID, title)
	if err != nil {
		return fmt.Errorf("rename chapter: %w", err)
	}
	n, err := res.RowsAffected()
	if err == nil && n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func (s *PostgresStore) DeleteChapter(ctx context.Context, projectID string, chapterID int) error {
	if _, err := s.db.ExecContext(ctx, `
		DELETE FROM project_chapters WHERE project_id = $1 AND chapter_id = $2
	`, projectID, chapterID); err != nil {
		return fmt.Errorf("delete chapter: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, `
		DELETE FROM chapter_texts WHERE project_id = $1 AND chapter_id = $2
	`, projectID, chapterID); err != nil {
		return fmt.Errorf("delete chapter text: %w", err)
	}
	return nil
}

// SaveChapterOrder persists a full reorder in one transaction. The order
// slice must contain exactly the project's chapter IDs.
func (s *PostgresStore) SaveChapterOrder(ctx context.Context, projectID string, order []int) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin reorder: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for pos, chapterID := range order {
		if _, err := tx.ExecContext(ctx, `
			UPDATE project_chapters SET position = $3, updated_at = NOW()
			WHERE project_id = $1 AND chapter_id = $2
		`, projectID, chapterID, pos); err != nil {
			return fmt.Errorf("reorder chapter %d: %w", chapterID, err)
		}
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE projects SET updated_at = NOW() WHERE id = $1`, projectID); err != nil {
		return fmt.Errorf("touch project: %w", err)
	}

	return tx.Commit()
}

// UpsertChapterText refreshes the plain-text mirror used by the Postgres
// search fallback. Called after every successful content save.
func (s *PostgresStore) UpsertChapterText(ctx context.Context, t ChapterText) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO chapter_texts (project_id, chapter_id, title, body)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (project_id, chapter_id)
		DO UPDATE SET title = EXCLUDED.title, body = EXCLUDED.body, updated_at = NOW()
	`, t.ProjectID, t.ChapterID, t.Title, t.Body)
	if err != nil {
		return fmt.Errorf("upsert chapter text: %w", err)
	}
	return nil
}

// ListChapterTexts returns every text mirror row, for full reindexing.
func (s *PostgresStore) ListChapterTexts(ctx context.Context) ([]ChapterText, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT project_id, chapter_id, title, body, updated_at FROM chapter_texts
	`)
	if err != nil {
		return nil, fmt.Errorf("list chapter texts: %w", err)
	}
	defer rows.Close()

	items := make([]ChapterText, 0)
	for rows.Next() {
		var t ChapterText
		if err := rows.Scan(&t.ProjectID, &t.ChapterID, &t.Title, &t.Body, &t.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan chapter text: %w", err)
		}
		items = append(items, t)
	}
	return items, rows.Err()
}
