// Package search finds grievances by free text. Meilisearch is preferred;
// Postgres full-text search answers whenever Meilisearch cannot.
package search

import "context"

const (
	EngineMeili    = "meilisearch"
	EnginePostgres = "postgres"
)

// Result is a single search hit returned to the caller.
type Result struct {
	ID         string `json:"id"`
	Title      string `json:"title"`
	Snippet    string `json:"snippet"`
	Department string `json:"department"`
	Priority   string `json:"priority"`
	Status     string `json:"status"`
}

// Query describes a search request. Empty filters match everything.
type Query struct {
	Text       string
	Department string
	Status     string
	Limit      int
	Offset     int
}

// Response is what the admin search endpoint returns. Healthy is false when
// the fallback engine answered.
type Response struct {
	Hits    []Result `json:"hits"`
	Total   int      `json:"total"`
	Query   string   `json:"query"`
	Engine  string   `json:"engine"`
	Healthy bool     `json:"-"`
}

// Searcher can execute a full-text search.
type Searcher interface {
	Search(ctx context.Context, q Query) ([]Result, int, error)
	Healthy() bool
}

// GrievanceRecord is the data we index for a grievance.
type GrievanceRecord struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Location    string `json:"location"`
	Category    string `json:"category"`
	Department  string `json:"department"`
	Priority    string `json:"priority"`
	Status      string `json:"status"`
	OfficerID   string `json:"officerId"`
	CreatedAt   int64  `json:"createdAt"`
}
