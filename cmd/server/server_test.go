package main

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/brunobiangulo/gooutline"
)

const dump = `{"pages": [[
	{"text": "Annual", "size": 24, "fontname": "Helvetica-Bold", "x0": 72, "x1": 144, "top": 60, "bottom": 84},
	{"text": "Report", "size": 24, "fontname": "Helvetica-Bold", "x0": 147, "x1": 219, "top": 60, "bottom": 84},
	{"text": "plain", "size": 10, "fontname": "Helvetica", "x0": 72, "x1": 97, "top": 120, "bottom": 130},
	{"text": "body", "size": 10, "fontname": "Helvetica", "x0": 100, "x1": 120, "top": 120, "bottom": 130},
	{"text": "text", "size": 10, "fontname": "Helvetica", "x0": 123, "x1": 143, "top": 120, "bottom": 130},
	{"text": "goes", "size": 10, "fontname": "Helvetica", "x0": 146, "x1": 166, "top": 120, "bottom": 130},
	{"text": "here", "size": 10, "fontname": "Helvetica", "x0": 169, "x1": 189, "top": 120, "bottom": 130}
]]}`

func newTestServer(t *testing.T, apiKey string) (http.Handler, string) {
	t.Helper()
	cfg := gooutline.DefaultConfig()
	cfg.SkipStore = true
	e, err := gooutline.New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { e.Close() })

	dir := t.TempDir()
	return newRouter(newHandler(e, filepath.Join(dir, "uploads")), apiKey, "https://app.example"), dir
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decoding %q: %v", rec.Body.String(), err)
	}
	return out
}

func TestHealth(t *testing.T) {
	h, _ := newTestServer(t, "secret")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if decode(t, rec)["status"] != "ok" {
		t.Errorf("body = %s", rec.Body)
	}
	if rec.Header().Get(requestIDHeader) == "" {
		t.Error("missing request id header")
	}
}

func TestExtractByPath(t *testing.T) {
	h, dir := newTestServer(t, "")
	path := filepath.Join(dir, "report.json")
	os.WriteFile(path, []byte(dump), 0644)

	body, _ := json.Marshal(map[string]any{"path": path})
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/extract", bytes.NewReader(body)))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body)
	}
	result := decode(t, rec)["result"].(map[string]any)
	if result["title"] != "Annual Report" {
		t.Errorf("result = %v", result)
	}
}

func TestExtractUpload(t *testing.T) {
	h, dir := newTestServer(t, "")

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, _ := mw.CreateFormFile("file", "../../escape/report.json")
	fw.Write([]byte(dump))
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/extract", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body)
	}
	out := decode(t, rec)
	if got := out["path"].(string); got != filepath.Join(dir, "uploads", "report.json") {
		t.Errorf("upload saved to %s", got)
	}
	if out["result"].(map[string]any)["title"] != "Annual Report" {
		t.Errorf("body = %s", rec.Body)
	}
}

func TestExtractErrors(t *testing.T) {
	h, dir := newTestServer(t, "")
	txt := filepath.Join(dir, "notes.txt")
	os.WriteFile(txt, []byte("hi"), 0644)
	broken := filepath.Join(dir, "broken.json")
	os.WriteFile(broken, []byte("{"), 0644)

	tests := []struct {
		name string
		body string
		want int
	}{
		{"bad json", "{", http.StatusBadRequest},
		{"no path", `{}`, http.StatusBadRequest},
		{"missing file", `{"path": "` + filepath.Join(dir, "nope.json") + `"}`, http.StatusBadRequest},
		{"unsupported", `{"path": "` + txt + `"}`, http.StatusUnsupportedMediaType},
		{"extraction fault", `{"path": "` + broken + `"}`, http.StatusUnprocessableEntity},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/extract", strings.NewReader(tt.body)))
			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d: %s", rec.Code, tt.want, rec.Body)
			}
		})
	}
}

func TestExtractBatch(t *testing.T) {
	h, dir := newTestServer(t, "")
	good := filepath.Join(dir, "good.json")
	os.WriteFile(good, []byte(dump), 0644)

	body, _ := json.Marshal(map[string]any{"paths": []string{good, filepath.Join(dir, "missing.json")}})
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/extract-batch", bytes.NewReader(body)))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body)
	}
	results := decode(t, rec)["results"].([]any)
	if len(results) != 2 {
		t.Fatalf("results = %v", results)
	}
	first, second := results[0].(map[string]any), results[1].(map[string]any)
	if first["error"] != nil || first["extraction"] == nil {
		t.Errorf("first = %v", first)
	}
	if second["error"] == nil {
		t.Errorf("second = %v", second)
	}
}

func TestCatalogueRoutesWithoutStore(t *testing.T) {
	h, _ := newTestServer(t, "")
	for _, target := range []string{"/documents", "/documents/1/outline", "/search?q=intro"} {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
		if rec.Code != http.StatusServiceUnavailable {
			t.Errorf("%s: status = %d", target, rec.Code)
		}
	}

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/documents/abc/outline", nil))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("bad id: status = %d", rec.Code)
	}
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/search", nil))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("missing q: status = %d", rec.Code)
	}
}

func TestAuthMiddleware(t *testing.T) {
	h, _ := newTestServer(t, "secret")

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/documents", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("no key: status = %d", rec.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/documents", nil)
	req.Header.Set("Authorization", "Bearer secret")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code == http.StatusUnauthorized {
		t.Error("valid key rejected")
	}
}

func TestCORSMiddleware(t *testing.T) {
	h, _ := newTestServer(t, "")

	req := httptest.NewRequest(http.MethodOptions, "/extract", nil)
	req.Header.Set("Origin", "https://app.example")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusNoContent {
		t.Errorf("preflight status = %d", rec.Code)
	}
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "https://app.example" {
		t.Errorf("allow origin = %q", got)
	}

	req = httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "https://evil.example")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Errorf("unexpected allow origin %q", got)
	}
}

func TestRequestIDPropagation(t *testing.T) {
	var seen string
	h := logMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = requestID(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(requestIDHeader, "abc-123")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if seen != "abc-123" || rec.Header().Get(requestIDHeader) != "abc-123" {
		t.Errorf("seen = %q, header = %q", seen, rec.Header().Get(requestIDHeader))
	}
}

func TestRecoveryMiddleware(t *testing.T) {
	h := recoveryMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d", rec.Code)
	}
}
