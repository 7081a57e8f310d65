// Package kvstore provides fail-safe structured storage over a fallible
// key-value medium. Reads degrade to caller defaults and writes report
// success as a boolean; the medium never surfaces errors past this package.
package kvstore

import "context"

// Medium is the raw storage backend. Read reports presence separately from
// failure so an absent key is not confused with an unavailable medium.
type Medium interface {
	Read(ctx context.Context, key string) (value string, found bool, err error)
	Write(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
	Keys(ctx context.Context, prefix string) ([]string, error)
}
