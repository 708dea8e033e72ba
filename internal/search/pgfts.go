package search

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// PgFTS implements Searcher using PostgreSQL full-text search over the
// chapter_texts mirror, as a fallback when Meilisearch is down.
type PgFTS struct {
	db *sql.DB
}

// NewPgFTS creates a PostgreSQL FTS searcher.
func NewPgFTS(db *sql.DB) *PgFTS {
	return &PgFTS{db: db}
}

// Healthy always returns true. If Postgres is down, the whole app is down.
func (p *PgFTS) Healthy() bool {
	return true
}

// Search runs plainto_tsquery with ts_rank ordering and ts_headline
// snippets over the chapter text mirror.
func (p *PgFTS) Search(q Query) ([]Result, int, error) {
	if strings.TrimSpace(q.Text) == "" {
		return nil, 0, nil
	}

	limit := q.Limit
	if limit <= 0 {
		limit = 20
	}
	offset := q.Offset
	if offset < 0 {
		offset = 0
	}

	where := "ct.fts @@ plainto_tsquery('english', $1)"
	args := []any{q.Text}
	if q.ProjectID != "" {
		where += " AND ct.project_id = $2"
		args = append(args, q.ProjectID)
	}

	ctx := context.Background()

	var total int
	countSQL := "SELECT count(*) FROM chapter_texts ct WHERE " + where
	if err := p.db.QueryRowContext(ctx, countSQL, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("pgfts count: %w", err)
	}

	dataSQL := fmt.Sprintf(`
		SELECT ct.project_id, ct.chapter_id, ct.title,
			ts_headline('english', ct.body, plainto_tsquery('english', $1), 'MaxFragments=1,MaxWords=30') AS snippet
		FROM chapter_texts ct
		WHERE %s
		ORDER BY ts_rank(ct.fts, plainto_tsquery('english', $1)) DESC
		LIMIT %d OFFSET %d`, where, limit, offset)

	rows, err := p.db.QueryContext(ctx, dataSQL, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("pgfts query: %w", err)
	}
	defer rows.Close()

	var results []Result
	for rows.Next() {
		var r Result
		if err := rows.Scan(&r.ProjectID, &r.ChapterID, &r.Title, &r.Snippet); err != nil {
			return nil, 0, fmt.Errorf("pgfts scan: %w", err)
		}
		results = append(results, r)
	}

	return results, total, rows.Err()
}

// LoadAllRecords returns every chapter text row for full reindexing.
func (p *PgFTS) LoadAllRecords(ctx context.Context) ([]ChapterRecord, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT project_id, chapter_id, title, body FROM chapter_texts
	`)
	if err != nil {
		return nil, fmt.Errorf("load chapter texts: %w", err)
	}
	defer rows.Close()

	records := make([]ChapterRecord, 0)
	for rows.Next() {
		var rec ChapterRecord
		if err := rows.Scan(&rec.ProjectID, &rec.ChapterID, &rec.Title, &rec.Body); err != nil {
			return nil, fmt.Errorf("scan chapter text: %w", err)
		}
		rec.ID = RecordID(rec.ProjectID, rec.ChapterID)
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate chapter texts: %w", err)
	}

	return records, nil
}
