package app

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"reqtrack/api/internal/attachment"
	"reqtrack/api/internal/batch"
	"reqtrack/api/internal/notify"
	"reqtrack/api/internal/review"
	"reqtrack/api/internal/schedule"
	"reqtrack/api/internal/search"
	"reqtrack/api/internal/store"
)

const releaseDateLayout = "2006-01-02"

var allowedRequirementTypes = []any{"feature", "improvement", "bug", "task"}

var allowedRequirementStatuses = []any{"open", "in_progress", "testing", "closed", "rejected"}

var allowedPriorities = []any{"p0", "p1", "p2", "p3"}

// repository is the narrow surface the service needs from the entity store.
type repository interface {
	CreateRequirement(ctx context.Context, input store.CreateRequirementInput) store.Requirement
	GetRequirement(ctx context.Context, id string) (store.Requirement, bool)
	ListRequirements(ctx context.Context) []store.Requirement
	UpdateRequirement(ctx context.Context, id string, patch store.RequirementPatch) (store.Requirement, error)
	DeleteRequirement(ctx context.Context, id string)
	RestoreRequirement(ctx context.Context, record store.Requirement)

	CreateVersion(ctx context.Context, input store.CreateVersionInput) store.Version
	GetVersion(ctx context.Context, id string) (store.Version, bool)
	ListVersions(ctx context.Context) []store.Version
	UpdateVersion(ctx context.Context, id string, patch store.VersionPatch) (store.Version, error)
	DeleteVersion(ctx context.Context, id string)

	CreateComment(ctx context.Context, input store.CreateCommentInput) store.Comment
	ListComments(ctx context.Context, requirementID string) []store.Comment
	DeleteComment(ctx context.Context, id string)
}

type Service struct {
	repo          repository
	search        *search.Service
	attachments   *attachment.Service
	notifier      notify.Notifier
	batchMaxItems int
	ping          func(ctx context.Context) error
}

func New(repo repository, searcher *search.Service, attachments *attachment.Service, notifier notify.Notifier, batchMaxItems int) *Service {
	if notifier == nil {
		notifier = notify.LogNotifier{}
	}
	if batchMaxItems <= 0 {
		batchMaxItems = batch.DefaultMaxItems
	}
	return &Service{
		repo:          repo,
		search:        searcher,
		attachments:   attachments,
		notifier:      notifier,
		batchMaxItems: batchMaxItems,
	}
}

// SetPinger installs the readiness probe for the storage medium.
func (s *Service) SetPinger(ping func(ctx context.Context) error) {
	s.ping = ping
}

func (s *Service) Ping(ctx context.Context) error {
	if s.ping == nil {
		return nil
	}
	return s.ping(ctx)
}

// RequirementView is a requirement plus its derived overall review status.
// The status is recomputed on every read and never stored.
type RequirementView struct {
	store.Requirement
	OverallStatus string `json:"overallStatus"`
}

func toView(record store.Requirement) RequirementView {
	return RequirementView{
		Requirement:   record,
		OverallStatus: review.DeriveOverallStatus(record.ReviewLevels),
	}
}

// VersionView is a version plus its derived phase schedule.
type VersionView struct {
	store.Version
	Schedule *schedule.Schedule `json:"schedule,omitempty"`
}

func toVersionView(record store.Version) VersionView {
	view := VersionView{Version: record}
	if release, err := time.Parse(releaseDateLayout, record.ReleaseDate); err == nil {
		s := schedule.Calculate(release)
		view.Schedule = &s
	}
	return view
}

// --- Requirements ---

type CreateRequirementInput struct {
	Title       string   `json:"title"`
	Type        string   `json:"type"`
	Status      string   `json:"status"`
	Priority    string   `json:"priority"`
	Description string   `json:"description"`
	Tags        []string `json:"tags"`
}

func (input CreateRequirementInput) Validate() error {
	return validation.ValidateStruct(&input,
		validation.Field(&input.Title, validation.Required, validation.Length(1, 256)),
		validation.Field(&input.Type, validation.Required, validation.In(allowedRequirementTypes...)),
		validation.Field(&input.Status, validation.In(allowedRequirementStatuses...)),
		validation.Field(&input.Priority, validation.In(allowedPriorities...)),
		validation.Field(&input.Description, validation.Length(0, 10000)),
	)
}

type UpdateRequirementInput struct {
	Title       *string   `json:"title"`
	Type        *string   `json:"type"`
	Status      *string   `json:"status"`
	Priority    *string   `json:"priority"`
	Description *string   `json:"description"`
	Tags        *[]string `json:"tags"`
}

func (input UpdateRequirementInput) Validate() error {
	return validation.ValidateStruct(&input,
		validation.Field(&input.Title, validation.NilOrNotEmpty, validation.Length(1, 256)),
		validation.Field(&input.Type, validation.In(allowedRequirementTypes...)),
		validation.Field(&input.Status, validation.In(allowedRequirementStatuses...)),
		validation.Field(&input.Priority, validation.In(allowedPriorities...)),
	)
}

func (s *Service) ListRequirements(ctx context.Context) []RequirementView {
	records := s.repo.ListRequirements(ctx)
	views := make([]RequirementView, 0, len(records))
	for _, record := range records {
		views = append(views, toView(record))
	}
	return views
}

func (s *Service) GetRequirement(ctx context.Context, id string) (RequirementView, error) {
	record, found := s.repo.GetRequirement(ctx, id)
	if !found {
		return RequirementView{}, domainError(http.StatusNotFound, "NOT_FOUND", "requirement not found", nil)
	}
	return toView(record), nil
}

func (s *Service) CreateRequirement(ctx context.Context, input CreateRequirementInput) (RequirementView, error) {
	if err := input.Validate(); err != nil {
		return RequirementView{}, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", err.Error(), nil)
	}
	if input.Status == "" {
		input.Status = "open"
	}
	if input.Priority == "" {
		input.Priority = "p2"
	}
	record := s.repo.CreateRequirement(ctx, store.CreateRequirementInput{
		Title:       input.Title,
		Type:        input.Type,
		Status:      input.Status,
		Priority:    input.Priority,
		Description: input.Description,
		Tags:        input.Tags,
	})
	s.indexRequirement(record)
	return toView(record), nil
}

func (s *Service) UpdateRequirement(ctx context.Context, id string, input UpdateRequirementInput) (RequirementView, error) {
	if err := input.Validate(); err != nil {
		return RequirementView{}, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", err.Error(), nil)
	}
	record, err := s.repo.UpdateRequirement(ctx, id, store.RequirementPatch{
		Title:       input.Title,
		Type:        input.Type,
		Status:      input.Status,
		Priority:    input.Priority,
		Description: input.Description,
		Tags:        input.Tags,
	})
	if err != nil {
		return RequirementView{}, err
	}
	s.indexRequirement(record)
	return toView(record), nil
}

func (s *Service) DeleteRequirement(ctx context.Context, id string) {
	record, found := s.repo.GetRequirement(ctx, id)
	s.repo.DeleteRequirement(ctx, id)
	if !found {
		return
	}
	if s.search != nil {
		s.search.DeleteRequirement(id)
	}
	s.removeAttachmentObjects(ctx, record.Attachments)
}

func (s *Service) indexRequirement(record store.Requirement) {
	if s.search == nil {
		return
	}
	s.search.IndexRequirement(search.RequirementRecord{
		ID:          record.ID,
		Title:       record.Title,
		Description: record.Description,
		Status:      record.Status,
		Priority:    record.Priority,
		Tags:        record.Tags,
	})
}

func (s *Service) removeAttachmentObjects(ctx context.Context, attachments []store.Attachment) {
	if s.attachments == nil {
		return
	}
	for _, item := range attachments {
		// Best-effort: the record is already gone, orphaned objects are
		// preferable to a failed delete.
		_ = s.attachments.Remove(ctx, item.Key)
	}
}

// --- Review workflow ---

type ReviewDecisionInput struct {
	Level    int    `json:"level"`
	Status   string `json:"status"`
	Reviewer string `json:"reviewer"`
	Opinion  string `json:"opinion"`
}

func (input ReviewDecisionInput) Validate() error {
	return validation.ValidateStruct(&input,
		validation.Field(&input.Level, validation.Required, validation.Min(1)),
		validation.Field(&input.Status, validation.Required, validation.In(review.StatusApproved, review.StatusRejected)),
		validation.Field(&input.Reviewer, validation.Required, validation.Length(1, 128)),
		validation.Field(&input.Opinion, validation.Length(0, 2000)),
	)
}

// SubmitReviewDecision records an approve/reject decision on one level. The
// current record is re-read and the whole levels slice replaced in a single
// update, so a stale caller cannot clobber other fields. A decision on level
// k is blocked until every lower level is approved.
func (s *Service) SubmitReviewDecision(ctx context.Context, requirementID string, input ReviewDecisionInput) (RequirementView, error) {
	if err := input.Validate(); err != nil {
		return RequirementView{}, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", err.Error(), nil)
	}

	record, found := s.repo.GetRequirement(ctx, requirementID)
	if !found {
		return RequirementView{}, domainError(http.StatusNotFound, "NOT_FOUND", "requirement not found", nil)
	}

	levels := append([]review.Level{}, record.ReviewLevels...)
	target := -1
	for i, level := range levels {
		if level.Level == input.Level {
			target = i
			break
		}
	}
	if target < 0 {
		return RequirementView{}, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR",
			fmt.Sprintf("requirement has no review level %d", input.Level), nil)
	}

	if blockers := review.BlockedBy(levels, input.Level); len(blockers) > 0 {
		return RequirementView{}, domainError(http.StatusConflict, "REVIEW_ORDER_BLOCKED",
			"review order is blocked by unmet prerequisites", map[string]any{
				"level":    input.Level,
				"blockers": blockers,
			})
	}

	levels[target].Status = input.Status
	levels[target].Reviewer = input.Reviewer
	levels[target].Opinion = input.Opinion
	levels[target].ReviewedAt = time.Now().Format(store.TimeLayout)

	updated, err := s.repo.UpdateRequirement(ctx, requirementID, store.RequirementPatch{ReviewLevels: &levels})
	if err != nil {
		return RequirementView{}, err
	}
	return toView(updated), nil
}

// --- Batch operations ---

func (s *Service) batchOptions(label string) batch.Options {
	return batch.Options{
		MaxItems: s.batchMaxItems,
		Notifier: s.notifier,
		Label:    label,
	}
}

func (s *Service) BatchUpdateStatus(ctx context.Context, ids []string, status string) (batch.Result, error) {
	if err := validation.Validate(status, validation.Required, validation.In(allowedRequirementStatuses...)); err != nil {
		return batch.Result{}, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "status: "+err.Error(), nil)
	}
	return batch.Execute(ctx, ids, func(ctx context.Context, id string) error {
		record, err := s.repo.UpdateRequirement(ctx, id, store.RequirementPatch{Status: &status})
		if err != nil {
			return err
		}
		s.indexRequirement(record)
		return nil
	}, s.batchOptions("update status")), nil
}

func (s *Service) BatchUpdatePriority(ctx context.Context, ids []string, priority string) (batch.Result, error) {
	if err := validation.Validate(priority, validation.Required, validation.In(allowedPriorities...)); err != nil {
		return batch.Result{}, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "priority: "+err.Error(), nil)
	}
	return batch.Execute(ctx, ids, func(ctx context.Context, id string) error {
		record, err := s.repo.UpdateRequirement(ctx, id, store.RequirementPatch{Priority: &priority})
		if err != nil {
			return err
		}
		s.indexRequirement(record)
		return nil
	}, s.batchOptions("update priority")), nil
}

func (s *Service) BatchAddTag(ctx context.Context, ids []string, tag string) (batch.Result, error) {
	if err := validation.Validate(tag, validation.Required, validation.Length(1, 64)); err != nil {
		return batch.Result{}, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "tag: "+err.Error(), nil)
	}
	return batch.Execute(ctx, ids, func(ctx context.Context, id string) error {
		record, found := s.repo.GetRequirement(ctx, id)
		if !found {
			return &store.EntityNotFoundError{Entity: "requirement", ID: id}
		}
		for _, existing := range record.Tags {
			if existing == tag {
				return nil
			}
		}
		tags := append(append([]string{}, record.Tags...), tag)
		updated, err := s.repo.UpdateRequirement(ctx, id, store.RequirementPatch{Tags: &tags})
		if err != nil {
			return err
		}
		s.indexRequirement(updated)
		return nil
	}, s.batchOptions("add tag")), nil
}

// BatchDeleteRequirements removes records optimistically: each record leaves
// the repository up front so the UI reflects the delete immediately, then the
// durable cleanup (attachment objects, search index) runs per item. Items
// whose cleanup fails are restored.
func (s *Service) BatchDeleteRequirements(ctx context.Context, ids []string) batch.Result {
	snapshots := make(map[string]store.Requirement, len(ids))
	for _, id := range ids {
		if record, found := s.repo.GetRequirement(ctx, id); found {
			snapshots[id] = record
		}
	}

	return batch.ExecuteOptimistic(ctx, ids,
		func(ctx context.Context, id string) error {
			record, found := snapshots[id]
			if !found {
				return &store.EntityNotFoundError{Entity: "requirement", ID: id}
			}
			if s.attachments != nil {
				for _, item := range record.Attachments {
					if err := s.attachments.Remove(ctx, item.Key); err != nil {
						return err
					}
				}
			}
			if s.search != nil {
				s.search.DeleteRequirement(id)
			}
			return nil
		},
		batch.OptimisticHooks{
			Apply: func(id string) {
				s.repo.DeleteRequirement(ctx, id)
			},
			Rollback: func(id string) error {
				record, found := snapshots[id]
				if !found {
					return nil
				}
				s.repo.RestoreRequirement(ctx, record)
				s.indexRequirement(record)
				return nil
			},
			RollbackRetries: 1,
		},
		s.batchOptions("delete requirements"),
	)
}

// --- Versions & schedule ---

type VersionInput struct {
	Platform      string `json:"platform"`
	VersionNumber string `json:"versionNumber"`
	ReleaseDate   string `json:"releaseDate"`
}

func (input VersionInput) Validate() error {
	return validation.ValidateStruct(&input,
		validation.Field(&input.Platform, validation.Required, validation.In("web", "ios", "android", "desktop")),
		validation.Field(&input.VersionNumber, validation.Required, validation.Length(1, 32)),
		validation.Field(&input.ReleaseDate, validation.Required, validation.Date(releaseDateLayout)),
	)
}

func (s *Service) ListVersions(ctx context.Context) []VersionView {
	records := s.repo.ListVersions(ctx)
	views := make([]VersionView, 0, len(records))
	for _, record := range records {
		views = append(views, toVersionView(record))
	}
	return views
}

func (s *Service) CreateVersion(ctx context.Context, input VersionInput) (VersionView, error) {
	if err := input.Validate(); err != nil {
		return VersionView{}, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", err.Error(), nil)
	}
	record := s.repo.CreateVersion(ctx, store.CreateVersionInput{
		Platform:      input.Platform,
		VersionNumber: input.VersionNumber,
		ReleaseDate:   input.ReleaseDate,
	})
	return toVersionView(record), nil
}

func (s *Service) UpdateVersion(ctx context.Context, id string, input VersionInput) (VersionView, error) {
	if err := input.Validate(); err != nil {
		return VersionView{}, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", err.Error(), nil)
	}
	record, err := s.repo.UpdateVersion(ctx, id, store.VersionPatch{
		Platform:      &input.Platform,
		VersionNumber: &input.VersionNumber,
		ReleaseDate:   &input.ReleaseDate,
	})
	if err != nil {
		return VersionView{}, err
	}
	return toVersionView(record), nil
}

func (s *Service) DeleteVersion(ctx context.Context, id string) {
	s.repo.DeleteVersion(ctx, id)
}

// SchedulePreview computes the phase windows for an arbitrary release date.
// It runs through the same calculator as persisted versions.
func (s *Service) SchedulePreview(releaseDate string) (schedule.Schedule, error) {
	release, err := time.Parse(releaseDateLayout, releaseDate)
	if err != nil {
		return schedule.Schedule{}, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR",
			"release must be a date in the form "+releaseDateLayout, nil)
	}
	return schedule.Calculate(release), nil
}

// --- Comments ---

type CreateCommentInput struct {
	Author string `json:"author"`
	Body   string `json:"body"`
}

func (input CreateCommentInput) Validate() error {
	return validation.ValidateStruct(&input,
		validation.Field(&input.Author, validation.Required, validation.Length(1, 128)),
		validation.Field(&input.Body, validation.Required, validation.Length(1, 5000)),
	)
}

func (s *Service) ListComments(ctx context.Context, requirementID string) ([]store.Comment, error) {
	if _, found := s.repo.GetRequirement(ctx, requirementID); !found {
		return nil, domainError(http.StatusNotFound, "NOT_FOUND", "requirement not found", nil)
	}
	comments := s.repo.ListComments(ctx, requirementID)
	if comments == nil {
		comments = []store.Comment{}
	}
	return comments, nil
}

func (s *Service) CreateComment(ctx context.Context, requirementID string, input CreateCommentInput) (store.Comment, error) {
	if err := input.Validate(); err != nil {
		return store.Comment{}, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", err.Error(), nil)
	}
	if _, found := s.repo.GetRequirement(ctx, requirementID); !found {
		return store.Comment{}, domainError(http.StatusNotFound, "NOT_FOUND", "requirement not found", nil)
	}
	return s.repo.CreateComment(ctx, store.CreateCommentInput{
		RequirementID: requirementID,
		Author:        input.Author,
		Body:          input.Body,
	}), nil
}

func (s *Service) DeleteComment(ctx context.Context, id string) {
	s.repo.DeleteComment(ctx, id)
}

// --- Search ---

func (s *Service) Search(ctx context.Context, q search.Query) search.Response {
	if s.search == nil {
		return search.Response{Results: []search.Result{}, Query: q.Text}
	}
	return s.search.Search(ctx, q)
}

// --- Attachments ---

func (s *Service) UploadAttachment(ctx context.Context, requirementID, filename string, body io.Reader, size int64, contentType string) (RequirementView, error) {
	if s.attachments == nil {
		return RequirementView{}, domainError(http.StatusNotImplemented, "ATTACHMENTS_DISABLED", "object storage is not configured", nil)
	}
	if err := validation.Validate(filename, validation.Required, validation.Length(1, 255)); err != nil {
		return RequirementView{}, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "filename: "+err.Error(), nil)
	}

	record, found := s.repo.GetRequirement(ctx, requirementID)
	if !found {
		return RequirementView{}, domainError(http.StatusNotFound, "NOT_FOUND", "requirement not found", nil)
	}

	key, err := s.attachments.Put(ctx, requirementID, filename, body, size, contentType)
	if err != nil {
		return RequirementView{}, fmt.Errorf("upload attachment: %w", err)
	}

	attachments := append(append([]store.Attachment{}, record.Attachments...), store.Attachment{
		Name: filename,
		Key:  key,
		Size: size,
	})
	updated, err := s.repo.UpdateRequirement(ctx, requirementID, store.RequirementPatch{Attachments: &attachments})
	if err != nil {
		return RequirementView{}, err
	}
	return toView(updated), nil
}

func (s *Service) AttachmentURL(ctx context.Context, requirementID, key string) (string, error) {
	if s.attachments == nil {
		return "", domainError(http.StatusNotImplemented, "ATTACHMENTS_DISABLED", "object storage is not configured", nil)
	}
	record, found := s.repo.GetRequirement(ctx, requirementID)
	if !found {
		return "", domainError(http.StatusNotFound, "NOT_FOUND", "requirement not found", nil)
	}
	for _, item := range record.Attachments {
		if item.Key == key {
			return s.attachments.PresignedGet(ctx, key, 15*time.Minute)
		}
	}
	return "", domainError(http.StatusNotFound, "NOT_FOUND", "attachment not found", nil)
}
