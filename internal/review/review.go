// Package review models the ordered, multi-level approval workflow embedded
// in each requirement.
package review

import (
	"fmt"
	"sort"
)

const (
	StatusPending  = "pending"
	StatusApproved = "approved"
	StatusRejected = "rejected"
)

// Level is one stage of the approval sequence. Levels are numbered
// contiguously starting at 1.
type Level struct {
	Level      int    `json:"level"`
	Name       string `json:"name"`
	Status     string `json:"status"`
	Reviewer   string `json:"reviewer,omitempty"`
	ReviewedAt string `json:"reviewedAt,omitempty"`
	Opinion    string `json:"opinion,omitempty"`
}

// DefaultLevels returns the built-in three-stage workflow with every level
// pending.
func DefaultLevels() []Level {
	return []Level{
		{Level: 1, Name: "Product Review", Status: StatusPending},
		{Level: 2, Name: "Tech Review", Status: StatusPending},
		{Level: 3, Name: "Final Review", Status: StatusPending},
	}
}

// DeriveOverallStatus computes the aggregate status from the ordered levels.
// It is recomputed on every read and never stored, so it cannot drift from
// the underlying levels. Walking levels in ascending order, the first level
// not approved decides the result:
//
//	no levels, or level 1 pending  -> "pending"
//	level k rejected               -> "level{k}_rejected"
//	level k pending (k > 1)        -> "level{k-1}_approved"
//	all levels approved            -> "approved"
func DeriveOverallStatus(levels []Level) string {
	ordered := make([]Level, len(levels))
	copy(ordered, levels)
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].Level < ordered[j].Level })

	for i, level := range ordered {
		switch level.Status {
		case StatusApproved:
			continue
		case StatusRejected:
			return fmt.Sprintf("level%d_rejected", level.Level)
		default:
			if i == 0 {
				return StatusPending
			}
			return fmt.Sprintf("level%d_approved", ordered[i-1].Level)
		}
	}
	if len(ordered) == 0 {
		return StatusPending
	}
	return StatusApproved
}

// BlockedBy returns the lower-numbered levels that must be approved before a
// decision on target can be recorded. Empty means the decision is allowed.
func BlockedBy(levels []Level, target int) []int {
	var blockers []int
	for _, level := range levels {
		if level.Level < target && level.Status != StatusApproved {
			blockers = append(blockers, level.Level)
		}
	}
	sort.Ints(blockers)
	return blockers
}

// ValidStatus reports whether status is one of the three level states.
func ValidStatus(status string) bool {
	switch status {
	case StatusPending, StatusApproved, StatusRejected:
		return true
	}
	return false
}
