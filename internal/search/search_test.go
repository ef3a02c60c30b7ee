package search

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/go-cmp/cmp"
	meili "github.com/meilisearch/meilisearch-go"
)

type fakeEngine struct {
	healthy  bool
	searchFn func(ctx context.Context, q Query) ([]Result, int, error)
	indexed  [][]GrievanceRecord
}

func (f *fakeEngine) Healthy() bool { return f.healthy }

func (f *fakeEngine) Search(ctx context.Context, q Query) ([]Result, int, error) {
	return f.searchFn(ctx, q)
}

func (f *fakeEngine) IndexGrievances(records []GrievanceRecord) error {
	f.indexed = append(f.indexed, records)
	return nil
}

func hits(ids ...string) []Result {
	out := make([]Result, 0, len(ids))
	for _, id := range ids {
		out = append(out, Result{ID: id})
	}
	return out
}

func TestServicePrefersHealthyPrimary(t *testing.T) {
	primary := &fakeEngine{healthy: true, searchFn: func(context.Context, Query) ([]Result, int, error) {
		return hits("g-1"), 1, nil
	}}
	fallback := &fakeEngine{healthy: true, searchFn: func(context.Context, Query) ([]Result, int, error) {
		t.Fatalf("fallback must not run")
		return nil, 0, nil
	}}
	svc := &Service{primary: primary, fallback: fallback}

	resp := svc.Search(context.Background(), Query{Text: "leak"})
	if resp.Engine != EngineMeili || !resp.Healthy || resp.Total != 1 {
		t.Fatalf("unexpected response: %+v", resp)
	}
}

func TestServiceFallsBackAndReportsDegraded(t *testing.T) {
	tests := []struct {
		name    string
		primary *fakeEngine
	}{
		{"unhealthy", &fakeEngine{healthy: false}},
		{"error", &fakeEngine{healthy: true, searchFn: func(context.Context, Query) ([]Result, int, error) {
			return nil, 0, errors.New("boom")
		}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fallback := &fakeEngine{healthy: true, searchFn: func(context.Context, Query) ([]Result, int, error) {
				return hits("g-2", "g-3"), 2, nil
			}}
			svc := &Service{primary: tt.primary, fallback: fallback}
			resp := svc.Search(context.Background(), Query{Text: "pothole"})
			if resp.Engine != EnginePostgres || resp.Healthy || len(resp.Hits) != 2 {
				t.Fatalf("unexpected response: %+v", resp)
			}
		})
	}
}

func TestServiceNeverReturnsNilHits(t *testing.T) {
	fallback := &fakeEngine{searchFn: func(context.Context, Query) ([]Result, int, error) {
		return nil, 0, errors.New("db down")
	}}
	svc := NewService(nil, nil)
	svc.fallback = fallback
	resp := svc.Search(context.Background(), Query{Text: "x"})
	if resp.Hits == nil || len(resp.Hits) != 0 {
		t.Fatalf("expected empty hits, got %#v", resp.Hits)
	}
}

func TestReindexFromPGSkipsWhenPrimaryDown(t *testing.T) {
	primary := &fakeEngine{healthy: false}
	svc := &Service{primary: primary}
	svc.ReindexFromPG(context.Background(), func(context.Context) ([]GrievanceRecord, error) {
		t.Fatalf("load must not run")
		return nil, nil
	})

	primary.healthy = true
	svc.ReindexFromPG(context.Background(), func(context.Context) ([]GrievanceRecord, error) {
		return []GrievanceRecord{{ID: "g-1"}, {ID: "g-2"}}, nil
	})
	if len(primary.indexed) != 1 || len(primary.indexed[0]) != 2 {
		t.Fatalf("expected one bulk index call, got %+v", primary.indexed)
	}
}

func TestHitToResultPrefersFormattedFields(t *testing.T) {
	hit := meili.Hit{
		"id":          json.RawMessage(`"g-7"`),
		"title":       json.RawMessage(`"Broken streetlight"`),
		"description": json.RawMessage(`"The lamp post near ward 3 is dark"`),
		"department":  json.RawMessage(`"Department of Street Lighting"`),
		"priority":    json.RawMessage(`"High"`),
		"status":      json.RawMessage(`"ASSIGNED"`),
		"_formatted":  json.RawMessage(`{"title":"Broken <mark>streetlight</mark>","createdAt":1700000000}`),
	}
	want := Result{
		ID:         "g-7",
		Title:      "Broken <mark>streetlight</mark>",
		Snippet:    "The lamp post near ward 3 is dark",
		Department: "Department of Street Lighting",
		Priority:   "High",
		Status:     "ASSIGNED",
	}
	if diff := cmp.Diff(want, hitToResult(hit)); diff != "" {
		t.Fatalf("result mismatch (-want +got):\n%s", diff)
	}
}

func TestSearchRequestFilters(t *testing.T) {
	sr := searchRequest(Query{Text: "leak", Department: "Water Supply & Sewerage Board", Status: "ASSIGNED"})
	want := []string{`department = "Water Supply & Sewerage Board"`, `status = "ASSIGNED"`}
	if diff := cmp.Diff(want, sr.Filter); diff != "" {
		t.Fatalf("filter mismatch (-want +got):\n%s", diff)
	}
	if sr.Limit != 20 || sr.Query != "leak" {
		t.Fatalf("unexpected request: %+v", sr)
	}
}

func TestPgFTSSearch(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	mock.ExpectQuery("SELECT count").WithArgs("leak", "", "").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectQuery("ts_headline").WithArgs("leak", "", "", 20, 0).
		WillReturnRows(sqlmock.NewRows([]string{"id", "title", "snippet", "department", "priority", "status"}).
			AddRow("g-1", "Leak", "pipe <mark>leak</mark>", "Water Supply & Sewerage Board", "High", "SUBMITTED"))

	results, total, err := NewPgFTS(db).Search(context.Background(), Query{Text: "leak"})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if total != 1 || len(results) != 1 || results[0].Snippet != "pipe <mark>leak</mark>" {
		t.Fatalf("unexpected results: %d %+v", total, results)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestPgFTSBlankQuerySkipsDatabase(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	results, total, err := NewPgFTS(db).Search(context.Background(), Query{Text: "   "})
	if err != nil || total != 0 || results != nil {
		t.Fatalf("unexpected: %v %d %v", results, total, err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}
