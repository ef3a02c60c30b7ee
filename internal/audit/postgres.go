package audit

import (
	"context"
	"database/sql"
	"fmt"
	"iter"
	"strings"
	"time"

	"github.com/rohzyy/govai/internal/util"
)

const defaultPageSize = 200

// QueryRower is satisfied by *sql.DB and *sql.Tx.
type QueryRower interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// PostgresLog reads and appends assignment_audit rows. Update and delete are
// blocked by triggers in the schema.
type PostgresLog struct {
	db       *sql.DB
	pageSize int
}

func NewPostgresLog(db *sql.DB) *PostgresLog {
	return &PostgresLog{db: db, pageSize: defaultPageSize}
}

func (l *PostgresLog) Append(ctx context.Context, record Record) (Record, error) {
	return Insert(ctx, l.db, record)
}

// Insert validates and writes one record. The stored timestamp is bumped past
// the latest record of the same grievance so per-grievance order is strict.
func Insert(ctx context.Context, q QueryRower, record Record) (Record, error) {
	record.Reason = strings.TrimSpace(record.Reason)
	if err := Validate(record); err != nil {
		return Record{}, err
	}
	if record.ID == "" {
		record.ID = util.NewSortableID()
	}
	if record.Timestamp.IsZero() {
		record.Timestamp = time.Now().UTC()
	}

	err := q.QueryRowContext(ctx, `
		INSERT INTO assignment_audit (id, complaint_id, kind, from_officer_id, to_officer_id, priority, reason, actor_id, occurred_at)
		VALUES ($1, $2, $3, NULLIF($4, ''), $5, $6, NULLIF($7, ''), $8,
			GREATEST($9::timestamptz, (SELECT max(occurred_at) + interval '1 microsecond' FROM assignment_audit WHERE complaint_id = $2)))
		RETURNING seq, occurred_at
	`, record.ID, record.GrievanceID, string(record.Kind), record.FromOfficerID, record.ToOfficerID,
		record.Priority, record.Reason, record.ActorID, record.Timestamp).Scan(&record.Seq, &record.Timestamp)
	if err != nil {
		return Record{}, fmt.Errorf("insert assignment audit: %w", err)
	}
	return record, nil
}

func (l *PostgresLog) Query(ctx context.Context, filter Filter) iter.Seq2[Record, error] {
	return func(yield func(Record, error) bool) {
		var (
			afterTime *time.Time
			afterSeq  int64
		)
		for {
			page, err := l.page(ctx, filter, afterTime, afterSeq)
			if err != nil {
				yield(Record{}, err)
				return
			}
			for _, record := range page {
				if !yield(record, nil) {
					return
				}
			}
			if len(page) < l.pageSize {
				return
			}
			last := page[len(page)-1]
			ts := last.Timestamp
			afterTime = &ts
			afterSeq = last.Seq
		}
	}
}

func (l *PostgresLog) page(ctx context.Context, filter Filter, afterTime *time.Time, afterSeq int64) ([]Record, error) {
	rows, err := l.db.QueryContext(ctx, `
		SELECT seq, id, complaint_id, kind, COALESCE(from_officer_id, ''), to_officer_id, priority, COALESCE(reason, ''), actor_id, occurred_at
		FROM assignment_audit
		WHERE ($1 = '' OR complaint_id = $1)
		  AND ($2 = '' OR actor_id = $2)
		  AND ($3 = '' OR kind = $3)
		  AND ($4::timestamptz IS NULL OR (occurred_at, seq) > ($4::timestamptz, $5))
		ORDER BY occurred_at ASC, seq ASC
		LIMIT $6
	`, filter.GrievanceID, filter.ActorID, string(filter.Kind), afterTime, afterSeq, l.pageSize)
	if err != nil {
		return nil, fmt.Errorf("query assignment audit: %w", err)
	}
	defer rows.Close()

	items := make([]Record, 0)
	for rows.Next() {
		var item Record
		var kind string
		if err := rows.Scan(
			&item.Seq,
			&item.ID,
			&item.GrievanceID,
			&kind,
			&item.FromOfficerID,
			&item.ToOfficerID,
			&item.Priority,
			&item.Reason,
			&item.ActorID,
			&item.Timestamp,
		); err != nil {
			return nil, fmt.Errorf("scan assignment audit: %w", err)
		}
		item.Kind = Kind(kind)
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate assignment audit: %w", err)
	}
	return items, nil
}
