package audit

import (
	"context"
	"iter"
	"strings"
	"sync"
	"time"

	"github.com/rohzyy/govai/internal/util"
)

// MemoryLog keeps records in append order, which is also timestamp order
// because Append forces timestamps to be strictly increasing.
type MemoryLog struct {
	mu      sync.RWMutex
	records []Record
	seq     int64
	now     func() time.Time
}

func NewMemoryLog() *MemoryLog {
	return &MemoryLog{now: time.Now}
}

// NewMemoryLogWithClock is used by tests that pin time.
func NewMemoryLogWithClock(now func() time.Time) *MemoryLog {
	return &MemoryLog{now: now}
}

func (l *MemoryLog) Append(ctx context.Context, record Record) (Record, error) {
	if err := ctx.Err(); err != nil {
		return Record{}, err
	}
	record.Reason = strings.TrimSpace(record.Reason)
	if err := Validate(record); err != nil {
		return Record{}, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if record.ID == "" {
		record.ID = util.NewSortableID()
	}
	if record.Timestamp.IsZero() {
		record.Timestamp = l.now()
	}
	if n := len(l.records); n > 0 {
		last := l.records[n-1].Timestamp
		if !record.Timestamp.After(last) {
			record.Timestamp = last.Add(time.Microsecond)
		}
	}
	l.seq++
	record.Seq = l.seq
	l.records = append(l.records, record)
	return record, nil
}

func (l *MemoryLog) Query(ctx context.Context, filter Filter) iter.Seq2[Record, error] {
	return func(yield func(Record, error) bool) {
		l.mu.RLock()
		n := len(l.records)
		l.mu.RUnlock()

		for i := 0; i < n; i++ {
			if err := ctx.Err(); err != nil {
				yield(Record{}, err)
				return
			}
			l.mu.RLock()
			record := l.records[i]
			l.mu.RUnlock()
			if !filter.Matches(record) {
				continue
			}
			if !yield(record, nil) {
				return
			}
		}
	}
}

// Len reports how many records have been appended.
func (l *MemoryLog) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.records)
}
