package search

import (
	"context"
	"log"
	"sort"
	"strings"
)

// Scanner is the fallback source of records when Meilisearch is unavailable.
// The repository satisfies it.
type Scanner interface {
	SearchRecords(ctx context.Context) []RequirementRecord
}

// Service is the facade that tries Meilisearch first and falls back to a
// linear scan over the repository.
type Service struct {
	meili   *Meili
	scanner Scanner
}

// NewService creates a search service. meili may be nil if Meilisearch is not
// configured.
func NewService(meili *Meili, scanner Scanner) *Service {
	return &Service{meili: meili, scanner: scanner}
}

// Search tries Meilisearch if healthy, otherwise scans the repository.
func (s *Service) Search(ctx context.Context, q Query) Response {
	if s.meili != nil && s.meili.Healthy() {
		results, total, err := s.meili.Search(q)
		if err == nil {
			return Response{Results: nonNil(results), Total: total, Query: q.Text}
		}
		log.Printf("search: meilisearch error, falling back to scan: %v", err)
	}

	results := s.scan(ctx, q)
	return Response{Results: nonNil(results), Total: len(results), Query: q.Text}
}

func (s *Service) scan(ctx context.Context, q Query) []Result {
	needle := strings.ToLower(strings.TrimSpace(q.Text))
	limit := q.Limit
	if limit == 0 {
		limit = 20
	}

	var results []Result
	for _, record := range s.scanner.SearchRecords(ctx) {
		if q.Status != "" && record.Status != q.Status {
			continue
		}
		if needle != "" && !matches(record, needle) {
			continue
		}
		results = append(results, Result{
			ID:       record.ID,
			Title:    record.Title,
			Snippet:  snippet(record.Description),
			Status:   record.Status,
			Priority: record.Priority,
		})
	}

	sort.Slice(results, func(i, j int) bool { return results[i].Title < results[j].Title })
	if len(results) > limit {
		results = results[:limit]
	}
	return results
}

func matches(record RequirementRecord, needle string) bool {
	if strings.Contains(strings.ToLower(record.Title), needle) {
		return true
	}
	if strings.Contains(strings.ToLower(record.Description), needle) {
		return true
	}
	for _, tag := range record.Tags {
		if strings.Contains(strings.ToLower(tag), needle) {
			return true
		}
	}
	return false
}

func snippet(description string) string {
	const max = 160
	if len(description) <= max {
		return description
	}
	return description[:max] + "…"
}

// IndexRequirement indexes a requirement (fire-and-forget to Meilisearch).
func (s *Service) IndexRequirement(record RequirementRecord) {
	if s.meili == nil || !s.meili.Healthy() {
		return
	}
	go func() {
		if err := s.meili.IndexRequirement(record); err != nil {
			log.Printf("search: index requirement %s: %v", record.ID, err)
		}
	}()
}

// DeleteRequirement removes a requirement from the index (fire-and-forget).
func (s *Service) DeleteRequirement(id string) {
	if s.meili == nil || !s.meili.Healthy() {
		return
	}
	go func() {
		if err := s.meili.DeleteRequirement(id); err != nil {
			log.Printf("search: delete requirement %s: %v", id, err)
		}
	}()
}

// ReindexAll pushes the full record set to Meilisearch. Called at startup
// when Meilisearch is configured.
func (s *Service) ReindexAll(ctx context.Context) {
	if s.meili == nil || !s.meili.Healthy() {
		return
	}
	records := s.scanner.SearchRecords(ctx)
	if err := s.meili.IndexRequirements(records); err != nil {
		log.Printf("search: reindex requirements: %v", err)
	}
}

func nonNil(r []Result) []Result {
	if r == nil {
		return []Result{}
	}
	return r
}
