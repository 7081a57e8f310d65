package kvstore

import (
	"context"
	"encoding/json"
	"log"
)

// Store layers JSON serialization, write verification and structural
// validation over a Medium. All keys are namespaced with a fixed prefix so
// Clear cannot touch entries owned by another application.
type Store struct {
	medium Medium
	prefix string
}

func New(medium Medium, prefix string) *Store {
	return &Store{medium: medium, prefix: prefix}
}

func (s *Store) key(name string) string {
	return s.prefix + name
}

// Get reads the value under key into dest and reports whether dest was
// populated. It returns false — leaving dest untouched, so the caller keeps
// its default — when the medium is unavailable, the key is absent, the stored
// text is not valid JSON, or validate rejects the parsed shape. A corrupt
// entry is deleted so it cannot degrade subsequent reads.
func (s *Store) Get(ctx context.Context, key string, dest any, validate Validator) bool {
	raw, found, err := s.medium.Read(ctx, s.key(key))
	if err != nil {
		log.Printf("kvstore: get %s: medium unavailable: %v", key, err)
		return false
	}
	if !found {
		return false
	}

	var parsed any
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
		log.Printf("kvstore: get %s: corrupt entry, removing: %v", key, err)
		if delErr := s.medium.Delete(ctx, s.key(key)); delErr != nil {
			log.Printf("kvstore: get %s: remove corrupt entry: %v", key, delErr)
		}
		return false
	}

	if validate != nil && !validate(parsed) {
		log.Printf("kvstore: get %s: stored value failed validation", key)
		return false
	}

	if err := json.Unmarshal([]byte(raw), dest); err != nil {
		log.Printf("kvstore: get %s: decode into destination: %v", key, err)
		return false
	}
	return true
}

// Set serializes value, writes it, then reads the key back and compares
// against the serialized form to confirm the write landed intact. Returns
// false on serialization error, write error (quota included) or verification
// mismatch.
func (s *Store) Set(ctx context.Context, key string, value any) bool {
	serialized, err := json.Marshal(value)
	if err != nil {
		log.Printf("kvstore: set %s: marshal: %v", key, err)
		return false
	}

	if err := s.medium.Write(ctx, s.key(key), string(serialized)); err != nil {
		log.Printf("kvstore: set %s: write: %v", key, err)
		return false
	}

	written, found, err := s.medium.Read(ctx, s.key(key))
	if err != nil || !found || written != string(serialized) {
		log.Printf("kvstore: set %s: write verification failed (found=%v err=%v)", key, found, err)
		return false
	}
	return true
}

// Remove deletes the key. Removing an absent key is not an error.
func (s *Store) Remove(ctx context.Context, key string) {
	if err := s.medium.Delete(ctx, s.key(key)); err != nil {
		log.Printf("kvstore: remove %s: %v", key, err)
	}
}

// Clear removes every key in this store's namespace and returns the number
// of keys removed.
func (s *Store) Clear(ctx context.Context) int {
	return s.clearPrefix(ctx, s.prefix)
}

// ClearByPrefix removes every key whose name starts with prefix. Individual
// delete failures do not abort the sweep.
func (s *Store) ClearByPrefix(ctx context.Context, prefix string) int {
	return s.clearPrefix(ctx, s.prefix+prefix)
}

func (s *Store) clearPrefix(ctx context.Context, fullPrefix string) int {
	keys, err := s.medium.Keys(ctx, fullPrefix)
	if err != nil {
		log.Printf("kvstore: clear %s: enumerate keys: %v", fullPrefix, err)
		return 0
	}

	removed := 0
	for _, key := range keys {
		if err := s.medium.Delete(ctx, key); err != nil {
			log.Printf("kvstore: clear %s: delete %s: %v", fullPrefix, key, err)
			continue
		}
		removed++
	}
	return removed
}
