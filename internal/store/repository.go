// Package store owns the domain records. The Repository is the single writer
// of record state and of UpdatedAt; consumers receive it by injection rather
// than through package-level globals.
package store

import (
	"context"
	"log"
	"sync"
	"time"

	"reqtrack/api/internal/kvstore"
	"reqtrack/api/internal/review"
	"reqtrack/api/internal/util"
)

const (
	snapshotKey   = "repository"
	schemaVersion = 2
)

// Repository keeps the full record collections in memory and persists them as
// one versioned snapshot blob through the key-value store. Persistence is
// best-effort: a failed write degrades durability, not the in-memory state.
type Repository struct {
	mu    sync.Mutex
	kv    *kvstore.Store
	state snapshotState
	now   func() time.Time
}

func NewRepository(kv *kvstore.Store) *Repository {
	return &Repository{kv: kv, now: time.Now}
}

// Load reads the persisted snapshot. An absent, corrupt or
// schema-version-mismatched snapshot is discarded and replaced with seeded
// defaults.
func (r *Repository) Load(ctx context.Context) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var snap snapshot
	if !r.kv.Get(ctx, snapshotKey, &snap, kvstore.IsObjectWithKeys("version", "state")) {
		log.Printf("store: no usable snapshot, seeding defaults")
		r.state = seedState()
		r.persist(ctx)
		return
	}
	if snap.Version != schemaVersion {
		log.Printf("store: snapshot schema version %d != %d, discarding and reseeding", snap.Version, schemaVersion)
		r.state = seedState()
		r.persist(ctx)
		return
	}
	r.state = snap.State
}

// persist writes the whole snapshot. Callers hold r.mu.
func (r *Repository) persist(ctx context.Context) {
	if !r.kv.Set(ctx, snapshotKey, snapshot{Version: schemaVersion, State: r.state}) {
		log.Printf("store: snapshot persist failed, in-memory state retained")
	}
}

func (r *Repository) stamp() string {
	return r.now().Format(TimeLayout)
}

// --- Requirements ---

type CreateRequirementInput struct {
	Title       string
	Type        string
	Status      string
	Priority    string
	Description string
	Tags        []string
}

func (r *Repository) CreateRequirement(ctx context.Context, input CreateRequirementInput) Requirement {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.stamp()
	record := Requirement{
		ID:           util.NewID("req"),
		Title:        input.Title,
		Type:         input.Type,
		Status:       input.Status,
		Priority:     input.Priority,
		Description:  input.Description,
		Tags:         append([]string{}, input.Tags...),
		Attachments:  []Attachment{},
		ReviewLevels: review.DefaultLevels(),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	r.state.Requirements = append(r.state.Requirements, record)
	r.persist(ctx)
	return record
}

func (r *Repository) GetRequirement(_ context.Context, id string) (Requirement, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, record := range r.state.Requirements {
		if record.ID == id {
			return record, true
		}
	}
	return Requirement{}, false
}

func (r *Repository) ListRequirements(_ context.Context) []Requirement {
	r.mu.Lock()
	defer r.mu.Unlock()

	records := make([]Requirement, len(r.state.Requirements))
	copy(records, r.state.Requirements)
	return records
}

// UpdateRequirement shallow-merges the patch over the stored record and
// restamps UpdatedAt. There is no version check: concurrent updates apply
// last-write-wins over the merged record.
func (r *Repository) UpdateRequirement(ctx context.Context, id string, patch RequirementPatch) (Requirement, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i, record := range r.state.Requirements {
		if record.ID != id {
			continue
		}
		if patch.Title != nil {
			record.Title = *patch.Title
		}
		if patch.Type != nil {
			record.Type = *patch.Type
		}
		if patch.Status != nil {
			record.Status = *patch.Status
		}
		if patch.Priority != nil {
			record.Priority = *patch.Priority
		}
		if patch.Description != nil {
			record.Description = *patch.Description
		}
		if patch.Tags != nil {
			record.Tags = append([]string{}, (*patch.Tags)...)
		}
		if patch.Attachments != nil {
			record.Attachments = append([]Attachment{}, (*patch.Attachments)...)
		}
		if patch.ReviewLevels != nil {
			record.ReviewLevels = append([]review.Level{}, (*patch.ReviewLevels)...)
		}
		record.UpdatedAt = r.stamp()
		r.state.Requirements[i] = record
		r.persist(ctx)
		return record, nil
	}
	return Requirement{}, &EntityNotFoundError{Entity: "requirement", ID: id}
}

// DeleteRequirement removes the record and its comments. Deleting an absent
// id is a no-op.
func (r *Repository) DeleteRequirement(ctx context.Context, id string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	kept := r.state.Requirements[:0]
	removed := false
	for _, record := range r.state.Requirements {
		if record.ID == id {
			removed = true
			continue
		}
		kept = append(kept, record)
	}
	if !removed {
		return
	}
	r.state.Requirements = kept

	comments := r.state.Comments[:0]
	for _, comment := range r.state.Comments {
		if comment.RequirementID == id {
			continue
		}
		comments = append(comments, comment)
	}
	r.state.Comments = comments
	r.persist(ctx)
}

// RestoreRequirement re-inserts a previously deleted record verbatim,
// timestamps included. Used as the compensation step of optimistic batch
// deletes; inserting over an existing id is a no-op.
func (r *Repository) RestoreRequirement(ctx context.Context, record Requirement) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.state.Requirements {
		if existing.ID == record.ID {
			return
		}
	}
	r.state.Requirements = append(r.state.Requirements, record)
	r.persist(ctx)
}

// --- Versions ---

type CreateVersionInput struct {
	Platform      string
	VersionNumber string
	ReleaseDate   string
}

func (r *Repository) CreateVersion(ctx context.Context, input CreateVersionInput) Version {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.stamp()
	record := Version{
		ID:            util.NewID("ver"),
		Platform:      input.Platform,
		VersionNumber: input.VersionNumber,
		ReleaseDate:   input.ReleaseDate,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	r.state.Versions = append(r.state.Versions, record)
	r.persist(ctx)
	return record
}

func (r *Repository) GetVersion(_ context.Context, id string) (Version, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, record := range r.state.Versions {
		if record.ID == id {
			return record, true
		}
	}
	return Version{}, false
}

func (r *Repository) ListVersions(_ context.Context) []Version {
	r.mu.Lock()
	defer r.mu.Unlock()

	records := make([]Version, len(r.state.Versions))
	copy(records, r.state.Versions)
	return records
}

func (r *Repository) UpdateVersion(ctx context.Context, id string, patch VersionPatch) (Version, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i, record := range r.state.Versions {
		if record.ID != id {
			continue
		}
		if patch.Platform != nil {
			record.Platform = *patch.Platform
		}
		if patch.VersionNumber != nil {
			record.VersionNumber = *patch.VersionNumber
		}
		if patch.ReleaseDate != nil {
			record.ReleaseDate = *patch.ReleaseDate
		}
		record.UpdatedAt = r.stamp()
		r.state.Versions[i] = record
		r.persist(ctx)
		return record, nil
	}
	return Version{}, &EntityNotFoundError{Entity: "version", ID: id}
}

func (r *Repository) DeleteVersion(ctx context.Context, id string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	kept := r.state.Versions[:0]
	removed := false
	for _, record := range r.state.Versions {
		if record.ID == id {
			removed = true
			continue
		}
		kept = append(kept, record)
	}
	if !removed {
		return
	}
	r.state.Versions = kept
	r.persist(ctx)
}

// --- Comments ---

type CreateCommentInput struct {
	RequirementID string
	Author        string
	Body          string
}

func (r *Repository) CreateComment(ctx context.Context, input CreateCommentInput) Comment {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.stamp()
	record := Comment{
		ID:            util.NewID("cmt"),
		RequirementID: input.RequirementID,
		Author:        input.Author,
		Body:          input.Body,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	r.state.Comments = append(r.state.Comments, record)
	r.persist(ctx)
	return record
}

func (r *Repository) ListComments(_ context.Context, requirementID string) []Comment {
	r.mu.Lock()
	defer r.mu.Unlock()

	var records []Comment
	for _, comment := range r.state.Comments {
		if comment.RequirementID == requirementID {
			records = append(records, comment)
		}
	}
	return records
}

func (r *Repository) UpdateComment(ctx context.Context, id string, patch CommentPatch) (Comment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i, record := range r.state.Comments {
		if record.ID != id {
			continue
		}
		if patch.Body != nil {
			record.Body = *patch.Body
		}
		record.UpdatedAt = r.stamp()
		r.state.Comments[i] = record
		r.persist(ctx)
		return record, nil
	}
	return Comment{}, &EntityNotFoundError{Entity: "comment", ID: id}
}

func (r *Repository) DeleteComment(ctx context.Context, id string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	kept := r.state.Comments[:0]
	removed := false
	for _, record := range r.state.Comments {
		if record.ID == id {
			removed = true
			continue
		}
		kept = append(kept, record)
	}
	if !removed {
		return
	}
	r.state.Comments = kept
	r.persist(ctx)
}
