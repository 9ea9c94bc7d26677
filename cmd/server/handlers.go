package main

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/brunobiangulo/gooutline"
)

type handler struct {
	engine    gooutline.Engine
	uploadDir string
}

func newHandler(e gooutline.Engine, uploadDir string) *handler {
	return &handler{engine: e, uploadDir: uploadDir}
}

// POST /extract
// Accepts multipart file upload or JSON with file path.
func (h *handler) handleExtract(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Minute)
	defer cancel()

	// Try multipart upload first
	if err := r.ParseMultipartForm(100 << 20); err == nil { // 100MB max
		file, header, err := r.FormFile("file")
		if err == nil {
			defer file.Close()

			// Sanitise filename to prevent path traversal.
			safeName := filepath.Base(header.Filename)
			if safeName == "." || safeName == string(filepath.Separator) {
				writeError(w, http.StatusBadRequest, "invalid file name")
				return
			}
			path, err := h.saveUpload(file, safeName)
			if err != nil {
				writeError(w, http.StatusInternalServerError, "failed to save file")
				slog.Error("saving uploaded file", "error", err, "request_id", requestID(ctx))
				return
			}

			var opts []gooutline.ExtractOption
			if r.FormValue("force") == "true" {
				opts = append(opts, gooutline.WithForce())
			}
			ext, err := h.engine.Extract(ctx, path, opts...)
			if err != nil {
				writeEngineError(w, ctx, "extraction failed", err)
				return
			}
			writeJSON(w, http.StatusOK, ext)
			return
		}
	}

	// Try JSON body with path
	var req struct {
		Path   string `json:"path"`
		Force  bool   `json:"force,omitempty"`
		Format string `json:"format,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request: expected multipart file or JSON with 'path'")
		return
	}
	if req.Path == "" {
		writeError(w, http.StatusBadRequest, "path is required")
		return
	}

	absPath, ok := existingFile(req.Path)
	if !ok {
		writeError(w, http.StatusBadRequest, "path must be an existing file")
		return
	}

	var opts []gooutline.ExtractOption
	if req.Force {
		opts = append(opts, gooutline.WithForce())
	}
	if req.Format != "" {
		opts = append(opts, gooutline.WithFormat(req.Format))
	}

	ext, err := h.engine.Extract(ctx, absPath, opts...)
	if err != nil {
		writeEngineError(w, ctx, "extraction failed", err)
		return
	}
	writeJSON(w, http.StatusOK, ext)
}

// batchItem is one entry of a batch response.
type batchItem struct {
	Path       string                `json:"path"`
	Extraction *gooutline.Extraction `json:"extraction,omitempty"`
	Error      string                `json:"error,omitempty"`
}

func toBatchItems(results []gooutline.BatchResult) []batchItem {
	items := make([]batchItem, len(results))
	for i, r := range results {
		items[i] = batchItem{Path: r.Path, Extraction: r.Extraction}
		if r.Err != nil {
			items[i].Error = r.Err.Error()
		}
	}
	return items
}

// POST /extract-batch
func (h *handler) handleExtractBatch(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 30*time.Minute)
	defer cancel()

	var req struct {
		Paths []string `json:"paths"`
		Force bool     `json:"force,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if len(req.Paths) == 0 {
		writeError(w, http.StatusBadRequest, "paths is required")
		return
	}

	var opts []gooutline.ExtractOption
	if req.Force {
		opts = append(opts, gooutline.WithForce())
	}

	results := h.engine.ExtractAll(ctx, req.Paths, opts...)
	writeJSON(w, http.StatusOK, map[string]any{
		"results": toBatchItems(results),
	})
}

// POST /refresh
func (h *handler) handleRefresh(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 30*time.Minute)
	defer cancel()

	results, err := h.engine.Refresh(ctx)
	if err != nil {
		writeEngineError(w, ctx, "refresh failed", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"results": toBatchItems(results),
	})
}

// GET /documents/{id}/outline
func (h *handler) handleGetOutline(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid document id")
		return
	}

	res, err := h.engine.Outline(r.Context(), id)
	if err != nil {
		writeEngineError(w, r.Context(), "failed to load outline", err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// DELETE /documents/{id}
func (h *handler) handleDeleteDocument(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid document id")
		return
	}

	if err := h.engine.Delete(r.Context(), id); err != nil {
		writeEngineError(w, r.Context(), "delete failed", err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// GET /documents
func (h *handler) handleListDocuments(w http.ResponseWriter, r *http.Request) {
	docs, err := h.engine.ListDocuments(r.Context())
	if err != nil {
		writeEngineError(w, r.Context(), "failed to list documents", err)
		return
	}
	if docs == nil {
		docs = []gooutline.Document{}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"documents": docs,
	})
}

// GET /search?q=term&limit=n
func (h *handler) handleSearch(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	if q == "" {
		writeError(w, http.StatusBadRequest, "q is required")
		return
	}
	limit := 0
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 0 || n > 500 {
			writeError(w, http.StatusBadRequest, "limit must be between 0 and 500")
			return
		}
		limit = n
	}

	matches, err := h.engine.SearchHeadings(r.Context(), q, limit)
	if err != nil {
		writeEngineError(w, r.Context(), "search failed", err)
		return
	}
	if matches == nil {
		matches = []gooutline.HeadingMatch{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"query":   q,
		"matches": matches,
	})
}

// GET /health
func (h *handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"formats": h.engine.Formats(),
	})
}

// saveUpload stores an uploaded file under uploadDir. Uploads keep their
// name so a re-upload of identical content is served from the catalogue.
func (h *handler) saveUpload(src io.Reader, name string) (string, error) {
	if err := os.MkdirAll(h.uploadDir, 0755); err != nil {
		return "", err
	}
	tmp, err := os.CreateTemp(h.uploadDir, ".upload-*")
	if err != nil {
		return "", err
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, src); err != nil {
		tmp.Close()
		return "", err
	}
	if err := tmp.Close(); err != nil {
		return "", err
	}
	path := filepath.Join(h.uploadDir, name)
	if err := os.Rename(tmp.Name(), path); err != nil {
		return "", err
	}
	return path, nil
}

// existingFile resolves path and reports whether it names a regular file.
func existingFile(path string) (string, bool) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return "", false
	}
	info, err := os.Stat(absPath)
	if err != nil || info.IsDir() {
		return "", false
	}
	return absPath, true
}

// statusFor maps engine errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, gooutline.ErrDocumentNotFound):
		return http.StatusNotFound
	case errors.Is(err, gooutline.ErrUnsupportedFormat):
		return http.StatusUnsupportedMediaType
	case errors.Is(err, gooutline.ErrExtractionFailed), errors.Is(err, gooutline.ErrInvalidOutput):
		return http.StatusUnprocessableEntity
	case errors.Is(err, gooutline.ErrNotReady):
		return http.StatusConflict
	case errors.Is(err, gooutline.ErrStoreDisabled):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func writeEngineError(w http.ResponseWriter, ctx context.Context, msg string, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		slog.Error(msg, "error", err, "request_id", requestID(ctx))
		writeError(w, status, msg)
		return
	}
	slog.Warn(msg, "error", err, "request_id", requestID(ctx))
	writeError(w, status, err.Error())
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
