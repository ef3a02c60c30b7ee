package search

import (
	"context"
	"log"
)

// Indexer pushes grievances into the primary engine.
type Indexer interface {
	IndexGrievances(records []GrievanceRecord) error
}

type primaryEngine interface {
	Searcher
	Indexer
}

// Service is the facade that tries Meilisearch first and falls back to PG FTS.
type Service struct {
	primary  primaryEngine
	fallback Searcher
}

// NewService creates a search service. meili may be nil if Meilisearch is not configured.
func NewService(meili *Meili, pgfts *PgFTS) *Service {
	s := &Service{fallback: pgfts}
	if meili != nil {
		s.primary = meili
	}
	return s
}

// Search tries Meilisearch if healthy, otherwise falls back to PG FTS.
func (s *Service) Search(ctx context.Context, q Query) Response {
	if s.primary != nil && s.primary.Healthy() {
		results, total, err := s.primary.Search(ctx, q)
		if err == nil {
			return Response{Hits: nonNil(results), Total: total, Query: q.Text, Engine: EngineMeili, Healthy: true}
		}
		log.Printf("search: meilisearch error, falling back to pgfts: %v", err)
	}

	resp := Response{Hits: []Result{}, Query: q.Text, Engine: EnginePostgres}
	results, total, err := s.fallback.Search(ctx, q)
	if err != nil {
		log.Printf("search: pgfts error: %v", err)
		return resp
	}
	resp.Hits, resp.Total = nonNil(results), total
	return resp
}

// IndexGrievance upserts one grievance (fire-and-forget to Meilisearch).
func (s *Service) IndexGrievance(rec GrievanceRecord) {
	if s.primary == nil || !s.primary.Healthy() {
		return
	}
	go func() {
		if err := s.primary.IndexGrievances([]GrievanceRecord{rec}); err != nil {
			log.Printf("search: index grievance %s: %v", rec.ID, err)
		}
	}()
}

// ReindexFromPG pushes every grievance load returns into Meilisearch.
func (s *Service) ReindexFromPG(ctx context.Context, load func(ctx context.Context) ([]GrievanceRecord, error)) {
	if s.primary == nil || !s.primary.Healthy() {
		return
	}
	records, err := load(ctx)
	if err != nil {
		log.Printf("search: reindex load failed: %v", err)
		return
	}
	if len(records) == 0 {
		return
	}
	if err := s.primary.IndexGrievances(records); err != nil {
		log.Printf("search: reindex grievances: %v", err)
	}
}

func nonNil(r []Result) []Result {
	if r == nil {
		return []Result{}
	}
	return r
}
