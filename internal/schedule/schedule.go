// Package schedule derives phase date windows for a release by chaining
// backward from the release date.
package schedule

import "time"

// Nominal phase durations in workdays. The test window has no other anchor in
// the data model, so it is bounded at a fixed nominal length.
const (
	PRDDays       = 3
	PrototypeDays = 5
	DevDays       = 10
	TestDays      = 5
)

type Window struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Schedule holds the four contiguous, non-overlapping phase windows leading
// up to a release. Windows are ordered PRD -> prototype -> development ->
// test; test ends on the last workday on or before the release date.
type Schedule struct {
	PRD       Window `json:"prd"`
	Prototype Window `json:"prototype"`
	Dev       Window `json:"dev"`
	Test      Window `json:"test"`
}

// Calculate computes the phase windows for a release date. Weekends are
// skipped: every window boundary lands on a workday and durations count
// workdays only. The same function serves interactive preview and persisted
// computation so the two cannot disagree.
func Calculate(release time.Time) Schedule {
	release = truncateToDay(release)

	testEnd := lastWorkdayOnOrBefore(release)
	testStart := backWorkdays(testEnd, TestDays-1)

	devEnd := prevWorkday(testStart)
	devStart := backWorkdays(devEnd, DevDays-1)

	protoEnd := prevWorkday(devStart)
	protoStart := backWorkdays(protoEnd, PrototypeDays-1)

	prdEnd := prevWorkday(protoStart)
	prdStart := backWorkdays(prdEnd, PRDDays-1)

	return Schedule{
		PRD:       Window{Start: prdStart, End: prdEnd},
		Prototype: Window{Start: protoStart, End: protoEnd},
		Dev:       Window{Start: devStart, End: devEnd},
		Test:      Window{Start: testStart, End: testEnd},
	}
}

func truncateToDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

func isWorkday(t time.Time) bool {
	switch t.Weekday() {
	case time.Saturday, time.Sunday:
		return false
	}
	return true
}

func lastWorkdayOnOrBefore(t time.Time) time.Time {
	for !isWorkday(t) {
		t = t.AddDate(0, 0, -1)
	}
	return t
}

func prevWorkday(t time.Time) time.Time {
	return lastWorkdayOnOrBefore(t.AddDate(0, 0, -1))
}

// backWorkdays walks n workdays backward from a workday, returning the start
// of a window that spans n+1 workdays inclusive.
func backWorkdays(t time.Time, n int) time.Time {
	for i := 0; i < n; i++ {
		t = prevWorkday(t)
	}
	return t
}
