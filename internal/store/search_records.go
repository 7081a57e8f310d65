package store

import (
	"context"

	"reqtrack/api/internal/search"
)

// SearchRecords projects every requirement into its search form. It backs the
// in-process fallback scan when the search engine is down.
func (r *Repository) SearchRecords(ctx context.Context) []search.RequirementRecord {
	records := r.ListRequirements(ctx)
	out := make([]search.RequirementRecord, 0, len(records))
	for _, record := range records {
		out = append(out, search.RequirementRecord{
			ID:          record.ID,
			Title:       record.Title,
			Description: record.Description,
			Status:      record.Status,
			Priority:    record.Priority,
			Tags:        record.Tags,
		})
	}
	return out
}
