package gooutline

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// BatchResult reports the outcome of one document in a batch.
type BatchResult struct {
	Path       string      `json:"path"`
	Extraction *Extraction `json:"extraction,omitempty"`
	Err        error       `json:"-"`
}

// ExtractAll extracts paths with at most Config.Concurrency documents in
// flight. Documents share no state, so each failure stays with its own result.
func (e *engine) ExtractAll(ctx context.Context, paths []string, opts ...ExtractOption) []BatchResult {
	results := make([]BatchResult, len(paths))
	if len(paths) == 0 {
		return results
	}

	runID := uuid.NewString()
	slog.Info("batch: starting", "run_id", runID, "documents", len(paths), "concurrency", e.cfg.Concurrency)

	var (
		mu         sync.Mutex
		wg         sync.WaitGroup
		sem        = make(chan struct{}, e.cfg.Concurrency)
		completed  int
		failed     int
		batchStart = time.Now()
	)

	for i, path := range paths {
		results[i].Path = path
		wg.Add(1)
		go func(i int, path string) {
			defer wg.Done()

			select {
			case sem <- struct{}{}:
				defer func() { <-sem }()
			case <-ctx.Done():
				results[i].Err = ctx.Err()
				mu.Lock()
				failed++
				mu.Unlock()
				return
			}

			ext, err := e.Extract(ctx, path, opts...)
			results[i].Extraction = ext
			results[i].Err = err

			mu.Lock()
			completed++
			if err != nil {
				failed++
			}
			n := completed
			mu.Unlock()
			slog.Debug("batch: document done",
				"run_id", runID, "progress", fmt.Sprintf("%d/%d", n, len(paths)),
				"file", filepath.Base(path), "ok", err == nil)
		}(i, path)
	}

	wg.Wait()

	slog.Info("batch: complete",
		"run_id", runID, "succeeded", len(paths)-failed, "failed", failed,
		"elapsed", time.Since(batchStart).Round(time.Millisecond))
	return results
}

// Refresh re-checks every catalogued document. Unchanged files are served
// from the store; changed ones are extracted again. Files that no longer
// exist are reported as errors and left in the catalogue.
func (e *engine) Refresh(ctx context.Context) ([]BatchResult, error) {
	docs, err := e.ListDocuments(ctx)
	if err != nil {
		return nil, err
	}
	paths := make([]string, len(docs))
	for i, d := range docs {
		paths[i] = d.Path
	}
	return e.ExtractAll(ctx, paths), nil
}

// FindDocuments lists the files directly inside dir whose extension is one
// of formats, sorted by name. Hidden files are ignored.
func FindDocuments(dir string, formats []string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading input directory: %w", err)
	}

	want := make(map[string]bool, len(formats))
	for _, f := range formats {
		want[strings.ToLower(f)] = true
	}

	var paths []string
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || strings.HasPrefix(name, ".") {
			continue
		}
		ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(name), "."))
		if want[ext] {
			paths = append(paths, filepath.Join(dir, name))
		}
	}
	sort.Strings(paths)
	return paths, nil
}
