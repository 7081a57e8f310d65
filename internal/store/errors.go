package store

import "fmt"

// EntityNotFoundError is returned when an update targets a nonexistent
// record. It is the one storage error that propagates to the caller: silent
// success would misrepresent state.
type EntityNotFoundError struct {
	Entity string
	ID     string
}

func (e *EntityNotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Entity, e.ID)
}
