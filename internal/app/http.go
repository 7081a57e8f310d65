package app

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"reqtrack/api/internal/search"
	"reqtrack/api/internal/store"
)

const maxAttachmentBytes = 32 << 20 // 32 MiB

type HTTPServer struct {
	service    *Service
	corsOrigin string
}

func NewHTTPServer(service *Service, corsOrigin string) *HTTPServer {
	return &HTTPServer{service: service, corsOrigin: corsOrigin}
}

func (s *HTTPServer) Handler() http.Handler {
	return s.withMiddleware(http.HandlerFunc(s.handle))
}

func (s *HTTPServer) handle(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodOptions {
		writeJSON(w, http.StatusNoContent, map[string]any{})
		return
	}

	if (r.Method == http.MethodGet || r.Method == http.MethodHead) && r.URL.Path == "/api/health" {
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
		return
	}

	if (r.Method == http.MethodGet || r.Method == http.MethodHead) && r.URL.Path == "/api/ready" {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		status := "ready"
		statusCode := http.StatusOK
		checks := map[string]any{
			"storage": map[string]any{"status": "ok"},
		}

		if err := s.service.Ping(ctx); err != nil {
			status = "not_ready"
			statusCode = http.StatusServiceUnavailable
			checks["storage"] = map[string]any{
				"status": "error",
				"error":  err.Error(),
			}
		}

		writeJSON(w, statusCode, map[string]any{
			"ok":     status == "ready",
			"status": status,
			"checks": checks,
		})
		return
	}

	if r.Method == http.MethodGet && r.URL.Path == "/api/search" {
		s.handleSearch(w, r)
		return
	}

	if r.Method == http.MethodGet && r.URL.Path == "/api/schedule" {
		s.handleSchedulePreview(w, r)
		return
	}

	parts := splitPath(r.URL.Path)
	if len(parts) < 2 || parts[0] != "api" {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Unknown route", nil)
		return
	}

	switch parts[1] {
	case "requirements":
		s.handleRequirements(w, r, parts[2:])
	case "versions":
		s.handleVersions(w, r, parts[2:])
	case "comments":
		s.handleComments(w, r, parts[2:])
	default:
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Unknown route", nil)
	}
}

func (s *HTTPServer) handleRequirements(w http.ResponseWriter, r *http.Request, rest []string) {
	ctx := r.Context()

	switch {
	case len(rest) == 0 && r.Method == http.MethodGet:
		writeJSON(w, http.StatusOK, map[string]any{"requirements": s.service.ListRequirements(ctx)})

	case len(rest) == 0 && r.Method == http.MethodPost:
		var input CreateRequirementInput
		if err := decodeBody(r, &input); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		view, err := s.service.CreateRequirement(ctx, input)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, view)

	case len(rest) == 2 && rest[0] == "batch":
		s.handleBatch(w, r, rest[1])

	case len(rest) == 1 && r.Method == http.MethodGet:
		view, err := s.service.GetRequirement(ctx, rest[0])
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, view)

	case len(rest) == 1 && r.Method == http.MethodPut:
		var input UpdateRequirementInput
		if err := decodeBody(r, &input); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		view, err := s.service.UpdateRequirement(ctx, rest[0], input)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, view)

	case len(rest) == 1 && r.Method == http.MethodDelete:
		s.service.DeleteRequirement(ctx, rest[0])
		writeJSON(w, http.StatusOK, map[string]any{"deleted": true})

	case len(rest) == 2 && rest[1] == "review" && r.Method == http.MethodPost:
		var input ReviewDecisionInput
		if err := decodeBody(r, &input); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		view, err := s.service.SubmitReviewDecision(ctx, rest[0], input)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, view)

	case len(rest) == 2 && rest[1] == "comments" && r.Method == http.MethodGet:
		comments, err := s.service.ListComments(ctx, rest[0])
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"comments": comments})

	case len(rest) == 2 && rest[1] == "comments" && r.Method == http.MethodPost:
		var input CreateCommentInput
		if err := decodeBody(r, &input); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		comment, err := s.service.CreateComment(ctx, rest[0], input)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, comment)

	case len(rest) == 2 && rest[1] == "attachments" && r.Method == http.MethodPost:
		s.handleAttachmentUpload(w, r, rest[0])

	case len(rest) == 3 && rest[1] == "attachments" && rest[2] == "url" && r.Method == http.MethodGet:
		url, err := s.service.AttachmentURL(ctx, rest[0], r.URL.Query().Get("key"))
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"url": url})

	default:
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Unknown route", nil)
	}
}

func (s *HTTPServer) handleBatch(w http.ResponseWriter, r *http.Request, action string) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "POST required", nil)
		return
	}

	var body struct {
		IDs      []string `json:"ids"`
		Status   string   `json:"status"`
		Priority string   `json:"priority"`
		Tag      string   `json:"tag"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}

	ctx := r.Context()
	switch action {
	case "status":
		result, err := s.service.BatchUpdateStatus(ctx, body.IDs, body.Status)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, result)
	case "priority":
		result, err := s.service.BatchUpdatePriority(ctx, body.IDs, body.Priority)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, result)
	case "tags":
		result, err := s.service.BatchAddTag(ctx, body.IDs, body.Tag)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, result)
	case "delete":
		writeJSON(w, http.StatusOK, s.service.BatchDeleteRequirements(ctx, body.IDs))
	default:
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Unknown batch action", nil)
	}
}

func (s *HTTPServer) handleVersions(w http.ResponseWriter, r *http.Request, rest []string) {
	ctx := r.Context()

	switch {
	case len(rest) == 0 && r.Method == http.MethodGet:
		writeJSON(w, http.StatusOK, map[string]any{"versions": s.service.ListVersions(ctx)})

	case len(rest) == 0 && r.Method == http.MethodPost:
		var input VersionInput
		if err := decodeBody(r, &input); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		view, err := s.service.CreateVersion(ctx, input)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, view)

	case len(rest) == 1 && r.Method == http.MethodPut:
		var input VersionInput
		if err := decodeBody(r, &input); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		view, err := s.service.UpdateVersion(ctx, rest[0], input)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, view)

	case len(rest) == 1 && r.Method == http.MethodDelete:
		s.service.DeleteVersion(ctx, rest[0])
		writeJSON(w, http.StatusOK, map[string]any{"deleted": true})

	default:
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Unknown route", nil)
	}
}

func (s *HTTPServer) handleComments(w http.ResponseWriter, r *http.Request, rest []string) {
	if len(rest) == 1 && r.Method == http.MethodDelete {
		s.service.DeleteComment(r.Context(), rest[0])
		writeJSON(w, http.StatusOK, map[string]any{"deleted": true})
		return
	}
	writeError(w, http.StatusNotFound, "NOT_FOUND", "Unknown route", nil)
}

func (s *HTTPServer) handleSearch(w http.ResponseWriter, r *http.Request) {
	query := search.Query{
		Text:   strings.TrimSpace(r.URL.Query().Get("q")),
		Status: strings.TrimSpace(r.URL.Query().Get("status")),
	}
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if limit, err := strconv.Atoi(raw); err == nil && limit > 0 {
			query.Limit = limit
		}
	}
	writeJSON(w, http.StatusOK, s.service.Search(r.Context(), query))
}

func (s *HTTPServer) handleSchedulePreview(w http.ResponseWriter, r *http.Request) {
	result, err := s.service.SchedulePreview(r.URL.Query().Get("release"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *HTTPServer) handleAttachmentUpload(w http.ResponseWriter, r *http.Request, requirementID string) {
	if err := r.ParseMultipartForm(maxAttachmentBytes); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", "multipart form required", nil)
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", "file field required", nil)
		return
	}
	defer file.Close()

	view, err := s.service.UploadAttachment(r.Context(), requirementID, header.Filename,
		file, header.Size, header.Header.Get("Content-Type"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (s *HTTPServer) withMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = randomRequestID()
		}
		ctx := context.WithValue(r.Context(), requestIDKey{}, requestID)
		r = r.WithContext(ctx)

		started := time.Now()
		writer := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		setCORSHeaders(writer.Header(), s.corsOrigin)
		writer.Header().Set("X-Request-ID", requestID)

		next.ServeHTTP(writer, r)

		log.Printf(`{"request_id":"%s","method":"%s","path":"%s","status":%d,"duration_ms":%d}`,
			requestID,
			r.Method,
			r.URL.Path,
			writer.status,
			time.Since(started).Milliseconds(),
		)
	})
}

type requestIDKey struct{}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func randomRequestID() string {
	buf := make([]byte, 8)
	_, _ = rand.Read(buf)
	return hex.EncodeToString(buf)
}

func setCORSHeaders(header http.Header, corsOrigin string) {
	header.Set("Access-Control-Allow-Origin", corsOrigin)
	header.Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Request-ID")
	header.Set("Access-Control-Allow-Methods", "GET,POST,PUT,DELETE,OPTIONS")
	header.Set("Cache-Control", "no-store")
	header.Set("Content-Type", "application/json")
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, code, message string, details any) {
	response := map[string]any{
		"code":  code,
		"error": message,
	}
	if details != nil {
		response["details"] = details
	}
	writeJSON(w, status, response)
}

// writeServiceError maps service errors onto HTTP responses. Raw error text
// only crosses the boundary for typed domain errors; everything else becomes
// an opaque 500.
func writeServiceError(w http.ResponseWriter, err error) {
	var domain *DomainError
	if errors.As(err, &domain) {
		writeError(w, domain.Status, domain.Code, domain.Message, domain.Details)
		return
	}
	var notFound *store.EntityNotFoundError
	if errors.As(err, &notFound) {
		writeError(w, http.StatusNotFound, "NOT_FOUND", notFound.Error(), nil)
		return
	}
	log.Printf("http: internal error: %v", err)
	writeError(w, http.StatusInternalServerError, "INTERNAL", "Internal error", nil)
}

func decodeBody(r *http.Request, target any) error {
	if r.Body == nil {
		return nil
	}
	defer r.Body.Close()
	decoder := json.NewDecoder(r.Body)
	if err := decoder.Decode(target); err != nil {
		if errors.Is(err, http.ErrBodyReadAfterClose) {
			return nil
		}
		return fmt.Errorf("invalid JSON body")
	}
	return nil
}

func splitPath(path string) []string {
	trimmed := strings.Trim(path, "/")
	if trimmed == "" {
		return nil
	}
	return strings.Split(trimmed, "/")
}
