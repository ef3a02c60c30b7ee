package search

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// PgFTS implements Searcher over the generated search_vector column.
type PgFTS struct {
	db *sql.DB
}

func NewPgFTS(db *sql.DB) *PgFTS {
	return &PgFTS{db: db}
}

// Healthy always returns true: if Postgres is down, the whole app is down.
func (p *PgFTS) Healthy() bool {
	return true
}

const pgftsFrom = `
	FROM complaints c
	LEFT JOIN LATERAL (
		SELECT te.status FROM timeline_events te
		WHERE te.complaint_id = c.id
		ORDER BY te.occurred_at DESC
		LIMIT 1
	) latest ON TRUE
	WHERE c.search_vector @@ plainto_tsquery('simple', $1)
		AND ($2 = '' OR c.department = $2)
		AND ($3 = '' OR COALESCE(latest.status, 'SUBMITTED') = $3)`

func (p *PgFTS) Search(ctx context.Context, q Query) ([]Result, int, error) {
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
	args := []any{q.Text, q.Department, q.Status}

	var total int
	if err := p.db.QueryRowContext(ctx, `SELECT count(*)`+pgftsFrom, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("pgfts count: %w", err)
	}

	rows, err := p.db.QueryContext(ctx, `
		SELECT c.id, c.title,
			ts_headline('simple', c.description, plainto_tsquery('simple', $1), 'MaxFragments=1,MaxWords=30,StartSel=<mark>,StopSel=</mark>'),
			c.department, c.priority, COALESCE(latest.status, 'SUBMITTED')`+pgftsFrom+`
		ORDER BY ts_rank(c.search_vector, plainto_tsquery('simple', $1)) DESC, c.created_at DESC
		LIMIT $4 OFFSET $5`, append(args, limit, offset)...)
	if err != nil {
		return nil, 0, fmt.Errorf("pgfts query: %w", err)
	}
	defer rows.Close()

	var results []Result
	for rows.Next() {
		var r Result
		if err := rows.Scan(&r.ID, &r.Title, &r.Snippet, &r.Department, &r.Priority, &r.Status); err != nil {
			return nil, 0, fmt.Errorf("pgfts scan: %w", err)
		}
		results = append(results, r)
	}
	return results, total, rows.Err()
}

// LoadAllRecords returns every grievance for full reindexing.
func (p *PgFTS) LoadAllRecords(ctx context.Context) ([]GrievanceRecord, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT c.id, c.title, c.description, c.location, c.category, c.department, c.priority,
			COALESCE(latest.status, 'SUBMITTED'), COALESCE(c.assigned_officer_id, ''), EXTRACT(EPOCH FROM c.created_at)::bigint
		FROM complaints c
		LEFT JOIN LATERAL (
			SELECT te.status FROM timeline_events te
			WHERE te.complaint_id = c.id
			ORDER BY te.occurred_at DESC
			LIMIT 1
		) latest ON TRUE
	`)
	if err != nil {
		return nil, fmt.Errorf("load grievances: %w", err)
	}
	defer rows.Close()

	records := make([]GrievanceRecord, 0)
	for rows.Next() {
		var r GrievanceRecord
		if err := rows.Scan(&r.ID, &r.Title, &r.Description, &r.Location, &r.Category, &r.Department,
			&r.Priority, &r.Status, &r.OfficerID, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan grievance record: %w", err)
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate grievance records: %w", err)
	}
	return records, nil
}
