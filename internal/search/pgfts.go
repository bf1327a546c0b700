package search

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// PgFTS implements Searcher over conversation_metadata as a fallback.
type PgFTS struct {
	db *sql.DB
}

func NewPgFTS(db *sql.DB) *PgFTS {
	return &PgFTS{db: db}
}

// Healthy always returns true; without Postgres nothing else works either.
func (p *PgFTS) Healthy() bool {
	return true
}

// Search matches titles with plainto_tsquery, plus a substring match so that
// partial words still hit. Results are newest first.
func (p *PgFTS) Search(ctx context.Context, q Query) ([]Result, int, error) {
	text := strings.TrimSpace(q.Text)
	if text == "" {
		return nil, 0, nil
	}
	limit := normalizeLimit(q.Limit)
	offset := q.Offset
	if offset < 0 {
		offset = 0
	}

	const where = `
		FROM conversation_metadata
		WHERE user_id = $1
			AND (to_tsvector('simple', title) @@ plainto_tsquery('simple', $2)
				OR title ILIKE '%' || $3 || '%' ESCAPE '\')`
	args := []any{q.UserID, text, escapeLike(text)}

	var total int
	if err := p.db.QueryRowContext(ctx, `SELECT count(*)`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("pgfts count: %w", err)
	}

	rows, err := p.db.QueryContext(ctx, fmt.Sprintf(`
		SELECT conversation_id, title,
			ts_headline('simple', title, plainto_tsquery('simple', $2), 'StartSel=<mark>,StopSel=</mark>') AS snippet,
			coalesce(selected_repository, '')
		%s
		ORDER BY created_at DESC
		LIMIT %d OFFSET %d`, where, limit, offset), args...)
	if err != nil {
		return nil, 0, fmt.Errorf("pgfts query: %w", err)
	}
	defer rows.Close()

	results := make([]Result, 0)
	for rows.Next() {
		var r Result
		if err := rows.Scan(&r.ConversationID, &r.Title, &r.Snippet, &r.SelectedRepository); err != nil {
			return nil, 0, fmt.Errorf("pgfts scan: %w", err)
		}
		results = append(results, r)
	}
	return results, total, rows.Err()
}

// LoadAllRecords returns every conversation for full reindexing.
func (p *PgFTS) LoadAllRecords(ctx context.Context) ([]ConversationRecord, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT conversation_id, user_id, title, coalesce(selected_repository, ''), created_at
		FROM conversation_metadata
	`)
	if err != nil {
		return nil, fmt.Errorf("load conversations: %w", err)
	}
	defer rows.Close()

	records := make([]ConversationRecord, 0)
	for rows.Next() {
		var r ConversationRecord
		var createdAt sql.NullTime
		if err := rows.Scan(&r.ID, &r.UserID, &r.Title, &r.SelectedRepository, &createdAt); err != nil {
			return nil, fmt.Errorf("scan conversation: %w", err)
		}
		if createdAt.Valid {
			r.CreatedAt = createdAt.Time.Unix()
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate conversations: %w", err)
	}
	return records, nil
}

func escapeLike(value string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(value)
}
