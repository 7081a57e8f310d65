package app

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"reqtrack/api/internal/review"
	"reqtrack/api/internal/store"
)

type fakeRepo struct {
	createRequirementFn func(context.Context, store.CreateRequirementInput) store.Requirement
	getRequirementFn    func(context.Context, string) (store.Requirement, bool)
	listRequirementsFn  func(context.Context) []store.Requirement
	updateRequirementFn func(context.Context, string, store.RequirementPatch) (store.Requirement, error)
	deleteRequirementFn func(context.Context, string)
	restoreFn           func(context.Context, store.Requirement)
	createVersionFn     func(context.Context, store.CreateVersionInput) store.Version
	updateVersionFn     func(context.Context, string, store.VersionPatch) (store.Version, error)
	createCommentFn     func(context.Context, store.CreateCommentInput) store.Comment
	listCommentsFn      func(context.Context, string) []store.Comment
}

func (f *fakeRepo) CreateRequirement(ctx context.Context, input store.CreateRequirementInput) store.Requirement {
	if f.createRequirementFn != nil {
		return f.createRequirementFn(ctx, input)
	}
	return store.Requirement{ID: "req_new", Title: input.Title, ReviewLevels: review.DefaultLevels()}
}

func (f *fakeRepo) GetRequirement(ctx context.Context, id string) (store.Requirement, bool) {
	if f.getRequirementFn != nil {
		return f.getRequirementFn(ctx, id)
	}
	return store.Requirement{}, false
}

func (f *fakeRepo) ListRequirements(ctx context.Context) []store.Requirement {
	if f.listRequirementsFn != nil {
		return f.listRequirementsFn(ctx)
	}
	return nil
}

func (f *fakeRepo) UpdateRequirement(ctx context.Context, id string, patch store.RequirementPatch) (store.Requirement, error) {
	if f.updateRequirementFn != nil {
		return f.updateRequirementFn(ctx, id, patch)
	}
	return store.Requirement{}, &store.EntityNotFoundError{Entity: "requirement", ID: id}
}

func (f *fakeRepo) DeleteRequirement(ctx context.Context, id string) {
	if f.deleteRequirementFn != nil {
		f.deleteRequirementFn(ctx, id)
	}
}

func (f *fakeRepo) RestoreRequirement(ctx context.Context, record store.Requirement) {
	if f.restoreFn != nil {
		f.restoreFn(ctx, record)
	}
}

func (f *fakeRepo) CreateVersion(ctx context.Context, input store.CreateVersionInput) store.Version {
	if f.createVersionFn != nil {
		return f.createVersionFn(ctx, input)
	}
	return store.Version{ID: "ver_new", Platform: input.Platform, VersionNumber: input.VersionNumber, ReleaseDate: input.ReleaseDate}
}

func (f *fakeRepo) GetVersion(context.Context, string) (store.Version, bool) {
	return store.Version{}, false
}
func (f *fakeRepo) ListVersions(context.Context) []store.Version { return nil }

func (f *fakeRepo) UpdateVersion(ctx context.Context, id string, patch store.VersionPatch) (store.Version, error) {
	if f.updateVersionFn != nil {
		return f.updateVersionFn(ctx, id, patch)
	}
	return store.Version{}, &store.EntityNotFoundError{Entity: "version", ID: id}
}

func (f *fakeRepo) DeleteVersion(context.Context, string) {}

func (f *fakeRepo) CreateComment(ctx context.Context, input store.CreateCommentInput) store.Comment {
	if f.createCommentFn != nil {
		return f.createCommentFn(ctx, input)
	}
	return store.Comment{ID: "cmt_new", RequirementID: input.RequirementID, Author: input.Author, Body: input.Body}
}

func (f *fakeRepo) ListComments(ctx context.Context, requirementID string) []store.Comment {
	if f.listCommentsFn != nil {
		return f.listCommentsFn(ctx, requirementID)
	}
	return nil
}

func (f *fakeRepo) DeleteComment(context.Context, string) {}

func newTestService(repo *fakeRepo) *Service {
	return New(repo, nil, nil, nil, 10)
}

func domainStatus(t *testing.T, err error) int {
	t.Helper()
	var domain *DomainError
	if !errors.As(err, &domain) {
		t.Fatalf("expected DomainError, got %v", err)
	}
	return domain.Status
}

func requirementWithLevels(levels []review.Level) store.Requirement {
	return store.Requirement{
		ID:           "req_1",
		Title:        "Tracked",
		Status:       "open",
		ReviewLevels: levels,
	}
}

func TestCreateRequirementValidation(t *testing.T) {
	service := newTestService(&fakeRepo{})
	ctx := context.Background()

	cases := []struct {
		name  string
		input CreateRequirementInput
	}{
		{"missing title", CreateRequirementInput{Type: "feature"}},
		{"unknown type", CreateRequirementInput{Title: "x", Type: "wish"}},
		{"unknown status", CreateRequirementInput{Title: "x", Type: "bug", Status: "limbo"}},
		{"unknown priority", CreateRequirementInput{Title: "x", Type: "bug", Priority: "p9"}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := service.CreateRequirement(ctx, tc.input)
			if got := domainStatus(t, err); got != http.StatusUnprocessableEntity {
				t.Errorf("status = %d, want 422", got)
			}
		})
	}
}

func TestCreateRequirementDefaults(t *testing.T) {
	var captured store.CreateRequirementInput
	service := newTestService(&fakeRepo{
		createRequirementFn: func(_ context.Context, input store.CreateRequirementInput) store.Requirement {
			captured = input
			return store.Requirement{ID: "req_new", ReviewLevels: review.DefaultLevels()}
		},
	})

	view, err := service.CreateRequirement(context.Background(), CreateRequirementInput{
		Title: "Dark mode", Type: "feature",
	})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if captured.Status != "open" || captured.Priority != "p2" {
		t.Errorf("defaults not applied: status=%q priority=%q", captured.Status, captured.Priority)
	}
	if view.OverallStatus != review.StatusPending {
		t.Errorf("OverallStatus = %q, want pending", view.OverallStatus)
	}
}

func TestGetRequirementDerivesOverallStatus(t *testing.T) {
	service := newTestService(&fakeRepo{
		getRequirementFn: func(context.Context, string) (store.Requirement, bool) {
			return requirementWithLevels([]review.Level{
				{Level: 1, Status: review.StatusApproved},
				{Level: 2, Status: review.StatusPending},
			}), true
		},
	})

	view, err := service.GetRequirement(context.Background(), "req_1")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if view.OverallStatus != "level1_approved" {
		t.Errorf("OverallStatus = %q, want level1_approved", view.OverallStatus)
	}
}

func TestGetRequirementNotFound(t *testing.T) {
	service := newTestService(&fakeRepo{})

	_, err := service.GetRequirement(context.Background(), "missing")
	if got := domainStatus(t, err); got != http.StatusNotFound {
		t.Errorf("status = %d, want 404", got)
	}
}

func TestSubmitReviewDecisionApproves(t *testing.T) {
	var patched store.RequirementPatch
	service := newTestService(&fakeRepo{
		getRequirementFn: func(context.Context, string) (store.Requirement, bool) {
			return requirementWithLevels(review.DefaultLevels()), true
		},
		updateRequirementFn: func(_ context.Context, _ string, patch store.RequirementPatch) (store.Requirement, error) {
			patched = patch
			record := requirementWithLevels(*patch.ReviewLevels)
			return record, nil
		},
	})

	view, err := service.SubmitReviewDecision(context.Background(), "req_1", ReviewDecisionInput{
		Level: 1, Status: review.StatusApproved, Reviewer: "dana", Opinion: "ship it",
	})
	if err != nil {
		t.Fatalf("decision failed: %v", err)
	}

	if patched.ReviewLevels == nil {
		t.Fatal("expected a full levels replacement")
	}
	level := (*patched.ReviewLevels)[0]
	if level.Status != review.StatusApproved || level.Reviewer != "dana" || level.Opinion != "ship it" {
		t.Errorf("level = %#v", level)
	}
	if level.ReviewedAt == "" {
		t.Error("ReviewedAt must be stamped")
	}
	if view.OverallStatus != "level1_approved" {
		t.Errorf("OverallStatus = %q", view.OverallStatus)
	}
}

func TestSubmitReviewDecisionBlockedByLowerLevels(t *testing.T) {
	updates := 0
	service := newTestService(&fakeRepo{
		getRequirementFn: func(context.Context, string) (store.Requirement, bool) {
			return requirementWithLevels(review.DefaultLevels()), true
		},
		updateRequirementFn: func(_ context.Context, id string, _ store.RequirementPatch) (store.Requirement, error) {
			updates++
			return store.Requirement{}, nil
		},
	})

	_, err := service.SubmitReviewDecision(context.Background(), "req_1", ReviewDecisionInput{
		Level: 2, Status: review.StatusApproved, Reviewer: "dana",
	})
	if got := domainStatus(t, err); got != http.StatusConflict {
		t.Errorf("status = %d, want 409", got)
	}
	if updates != 0 {
		t.Error("blocked decision must not write")
	}
}

func TestSubmitReviewDecisionUnknownLevel(t *testing.T) {
	service := newTestService(&fakeRepo{
		getRequirementFn: func(context.Context, string) (store.Requirement, bool) {
			return requirementWithLevels(review.DefaultLevels()), true
		},
	})

	_, err := service.SubmitReviewDecision(context.Background(), "req_1", ReviewDecisionInput{
		Level: 9, Status: review.StatusApproved, Reviewer: "dana",
	})
	if got := domainStatus(t, err); got != http.StatusUnprocessableEntity {
		t.Errorf("status = %d, want 422", got)
	}
}

func TestSubmitReviewDecisionRejectsPendingStatus(t *testing.T) {
	service := newTestService(&fakeRepo{})

	_, err := service.SubmitReviewDecision(context.Background(), "req_1", ReviewDecisionInput{
		Level: 1, Status: review.StatusPending, Reviewer: "dana",
	})
	if got := domainStatus(t, err); got != http.StatusUnprocessableEntity {
		t.Errorf("status = %d, want 422", got)
	}
}

func TestBatchUpdateStatus(t *testing.T) {
	var updatedIDs []string
	service := newTestService(&fakeRepo{
		updateRequirementFn: func(_ context.Context, id string, patch store.RequirementPatch) (store.Requirement, error) {
			if id == "req_missing" {
				return store.Requirement{}, &store.EntityNotFoundError{Entity: "requirement", ID: id}
			}
			updatedIDs = append(updatedIDs, id)
			if patch.Status == nil || *patch.Status != "closed" {
				t.Errorf("patch = %#v", patch)
			}
			return store.Requirement{ID: id}, nil
		},
	})

	result, err := service.BatchUpdateStatus(context.Background(), []string{"req_1", "req_missing", "req_2"}, "closed")
	if err != nil {
		t.Fatalf("batch failed: %v", err)
	}
	if result.Success {
		t.Error("expected partial failure")
	}
	if len(result.SuccessIDs) != 2 || len(result.Failures) != 1 {
		t.Errorf("result = %#v", result)
	}
	if result.Failures[0].ID != "req_missing" {
		t.Errorf("failed id = %s", result.Failures[0].ID)
	}
}

func TestBatchUpdateStatusRejectsUnknownStatus(t *testing.T) {
	service := newTestService(&fakeRepo{})

	_, err := service.BatchUpdateStatus(context.Background(), []string{"req_1"}, "limbo")
	if got := domainStatus(t, err); got != http.StatusUnprocessableEntity {
		t.Errorf("status = %d, want 422", got)
	}
}

func TestBatchAddTagSkipsDuplicates(t *testing.T) {
	updates := 0
	service := newTestService(&fakeRepo{
		getRequirementFn: func(_ context.Context, id string) (store.Requirement, bool) {
			return store.Requirement{ID: id, Tags: []string{"auth"}}, true
		},
		updateRequirementFn: func(_ context.Context, id string, _ store.RequirementPatch) (store.Requirement, error) {
			updates++
			return store.Requirement{ID: id}, nil
		},
	})

	result, err := service.BatchAddTag(context.Background(), []string{"req_1"}, "auth")
	if err != nil {
		t.Fatalf("batch failed: %v", err)
	}
	if !result.Success {
		t.Error("duplicate tag must count as success")
	}
	if updates != 0 {
		t.Error("duplicate tag must not rewrite the record")
	}
}

func TestBatchDeleteRestoresOnCleanupFailure(t *testing.T) {
	deleted := map[string]bool{}
	restored := map[string]bool{}
	records := map[string]store.Requirement{
		"req_1": {ID: "req_1", Title: "One"},
		"req_2": {ID: "req_2", Title: "Two"},
	}

	service := newTestService(&fakeRepo{
		getRequirementFn: func(_ context.Context, id string) (store.Requirement, bool) {
			record, found := records[id]
			return record, found
		},
		deleteRequirementFn: func(_ context.Context, id string) { deleted[id] = true },
		restoreFn:           func(_ context.Context, record store.Requirement) { restored[record.ID] = true },
	})

	// req_missing never existed: its delete fails and there is nothing to
	// restore. The two real records delete cleanly.
	result := service.BatchDeleteRequirements(context.Background(), []string{"req_1", "req_missing", "req_2"})

	if result.Success {
		t.Error("expected partial failure")
	}
	if !deleted["req_1"] || !deleted["req_2"] {
		t.Error("optimistic delete must run for every id")
	}
	if restored["req_1"] || restored["req_2"] {
		t.Error("successful deletes must not be restored")
	}
	if len(result.Failures) != 1 || result.Failures[0].ID != "req_missing" {
		t.Errorf("failures = %#v", result.Failures)
	}
}

func TestCreateVersionValidation(t *testing.T) {
	service := newTestService(&fakeRepo{})
	ctx := context.Background()

	cases := []struct {
		name  string
		input VersionInput
	}{
		{"missing platform", VersionInput{VersionNumber: "1.0.0", ReleaseDate: "2026-04-10"}},
		{"unknown platform", VersionInput{Platform: "vr", VersionNumber: "1.0.0", ReleaseDate: "2026-04-10"}},
		{"bad date", VersionInput{Platform: "web", VersionNumber: "1.0.0", ReleaseDate: "soon"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := service.CreateVersion(ctx, tc.input)
			if got := domainStatus(t, err); got != http.StatusUnprocessableEntity {
				t.Errorf("status = %d, want 422", got)
			}
		})
	}
}

func TestCreateVersionDerivesSchedule(t *testing.T) {
	service := newTestService(&fakeRepo{})

	view, err := service.CreateVersion(context.Background(), VersionInput{
		Platform: "web", VersionNumber: "2.0.0", ReleaseDate: "2026-03-27",
	})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if view.Schedule == nil {
		t.Fatal("expected a derived schedule")
	}
	if view.Schedule.Test.End.Format("2006-01-02") != "2026-03-27" {
		t.Errorf("test end = %v", view.Schedule.Test.End)
	}
}

func TestSchedulePreviewMatchesVersionSchedule(t *testing.T) {
	service := newTestService(&fakeRepo{})

	preview, err := service.SchedulePreview("2026-03-27")
	if err != nil {
		t.Fatalf("preview failed: %v", err)
	}
	view, err := service.CreateVersion(context.Background(), VersionInput{
		Platform: "web", VersionNumber: "2.0.0", ReleaseDate: "2026-03-27",
	})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if !preview.PRD.Start.Equal(view.Schedule.PRD.Start) || !preview.Test.End.Equal(view.Schedule.Test.End) {
		t.Error("preview and persisted schedule must agree")
	}
}

func TestCreateCommentRequiresExistingRequirement(t *testing.T) {
	service := newTestService(&fakeRepo{})

	_, err := service.CreateComment(context.Background(), "missing", CreateCommentInput{
		Author: "dana", Body: "hello",
	})
	if got := domainStatus(t, err); got != http.StatusNotFound {
		t.Errorf("status = %d, want 404", got)
	}
}
