package store

import (
	"reqtrack/api/internal/review"
	"reqtrack/api/internal/util"
)

// seedState builds the built-in defaults used when no usable snapshot exists.
func seedState() snapshotState {
	const seededAt = "2026-01-05 09:00:00"

	newLevels := func(statuses ...string) []review.Level {
		levels := review.DefaultLevels()
		for i := range levels {
			if i < len(statuses) {
				levels[i].Status = statuses[i]
			}
		}
		return levels
	}

	requirements := []Requirement{
		{
			ID:           util.NewID("req"),
			Title:        "Unified login across platforms",
			Type:         "feature",
			Status:       "in_progress",
			Priority:     "p0",
			Description:  "Single sign-on entry point shared by the web and mobile clients.",
			Tags:         []string{"auth", "cross-platform"},
			Attachments:  []Attachment{},
			ReviewLevels: newLevels(review.StatusApproved, review.StatusPending, review.StatusPending),
			CreatedAt:    seededAt,
			UpdatedAt:    seededAt,
		},
		{
			ID:           util.NewID("req"),
			Title:        "Export board to CSV",
			Type:         "improvement",
			Status:       "open",
			Priority:     "p2",
			Description:  "Allow admins to export the current board view.",
			Tags:         []string{"export"},
			Attachments:  []Attachment{},
			ReviewLevels: newLevels(),
			CreatedAt:    seededAt,
			UpdatedAt:    seededAt,
		},
	}

	versions := []Version{
		{
			ID:            util.NewID("ver"),
			Platform:      "web",
			VersionNumber: "2.4.0",
			ReleaseDate:   "2026-03-27",
			CreatedAt:     seededAt,
			UpdatedAt:     seededAt,
		},
	}

	return snapshotState{
		Requirements: requirements,
		Versions:     versions,
		Comments:     []Comment{},
	}
}
