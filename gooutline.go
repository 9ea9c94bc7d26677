// Package gooutline derives document outlines (title plus H1-H3 headings
// with page numbers) from positioned text and keeps them in a local catalogue.
package gooutline

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/brunobiangulo/gooutline/outline"
	"github.com/brunobiangulo/gooutline/parser"
	"github.com/brunobiangulo/gooutline/report"
	"github.com/brunobiangulo/gooutline/store"
)

// Engine is the main entry point for outline extraction.
type Engine interface {
	// Extract builds the outline of one document, stores it and writes the
	// configured output files. Skips extraction if the content hash is
	// unchanged since the last successful run.
	Extract(ctx context.Context, path string, opts ...ExtractOption) (*Extraction, error)

	// ExtractAll runs Extract over paths concurrently. Results are returned
	// in input order; one failure never stops the others.
	ExtractAll(ctx context.Context, paths []string, opts ...ExtractOption) []BatchResult

	// Refresh re-extracts every catalogued document whose file changed.
	Refresh(ctx context.Context) ([]BatchResult, error)

	// Outline returns the stored outline of a document.
	Outline(ctx context.Context, documentID int64) (*outline.Result, error)

	// ListDocuments returns all catalogued documents.
	ListDocuments(ctx context.Context) ([]Document, error)

	// Delete removes a document and its headings.
	Delete(ctx context.Context, documentID int64) error

	// SearchHeadings finds stored headings containing query.
	SearchHeadings(ctx context.Context, query string, limit int) ([]HeadingMatch, error)

	// Formats lists the input formats the engine can read.
	Formats() []string

	// Store returns the underlying store, or nil when SkipStore is set.
	Store() *store.Store

	// Close cleanly shuts down the engine.
	Close() error
}

// Extraction is the outcome of extracting one document.
type Extraction struct {
	DocumentID int64           `json:"document_id,omitempty"`
	Path       string          `json:"path"`
	Result     *outline.Result `json:"result"`
	Cached     bool            `json:"cached"`
	Outputs    []string        `json:"outputs,omitempty"`
}

// Document represents a catalogued document.
type Document struct {
	ID          int64             `json:"id"`
	Path        string            `json:"path"`
	Filename    string            `json:"filename"`
	Format      string            `json:"format"`
	ContentHash string            `json:"content_hash"`
	Status      string            `json:"status"`
	Title       string            `json:"title,omitempty"`
	TotalPages  int               `json:"total_pages,omitempty"`
	AvgFontSize float64           `json:"avg_font_size,omitempty"`
	Error       string            `json:"error,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`
	CreatedAt   string            `json:"created_at"`
	UpdatedAt   string            `json:"updated_at"`
}

// HeadingMatch is a stored heading returned by SearchHeadings.
type HeadingMatch = store.HeadingMatch

// ExtractOption configures extraction behavior.
type ExtractOption func(*extractOptions)

type extractOptions struct {
	force    bool
	format   string
	metadata map[string]string
}

// WithForce re-extracts even if the hash hasn't changed.
func WithForce() ExtractOption {
	return func(o *extractOptions) { o.force = true }
}

// WithFormat overrides format detection from the file extension.
func WithFormat(format string) ExtractOption {
	return func(o *extractOptions) { o.format = strings.ToLower(format) }
}

// WithMetadata attaches custom metadata to the catalogued document.
func WithMetadata(metadata map[string]string) ExtractOption {
	return func(o *extractOptions) { o.metadata = metadata }
}

// engine is the concrete implementation of Engine.
type engine struct {
	cfg     Config
	store   *store.Store
	parsers *parser.Registry
	builder *outline.Builder
	formats []report.Format
}

// New creates an outline engine with the given configuration.
func New(cfg Config) (Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.Concurrency == 0 {
		cfg.Concurrency = 4
	}

	var s *store.Store
	if !cfg.SkipStore {
		var err error
		s, err = store.New(cfg.resolveDBPath())
		if err != nil {
			return nil, fmt.Errorf("opening store: %w", err)
		}
	}

	return &engine{
		cfg:     cfg,
		store:   s,
		parsers: parser.NewRegistry(),
		builder: outline.NewBuilder(outline.Options{MaxXGap: cfg.MaxXGap, MaxYGap: cfg.MaxYGap}),
		formats: cfg.outputFormats(),
	}, nil
}

// Extract runs one document through parsing, heading inference, storage and
// output.
func (e *engine) Extract(ctx context.Context, path string, opts ...ExtractOption) (*Extraction, error) {
	options := &extractOptions{}
	for _, o := range opts {
		o(options)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolving path: %w", err)
	}

	format := options.format
	if format == "" {
		format = strings.ToLower(strings.TrimPrefix(filepath.Ext(absPath), "."))
	}
	p, err := e.parsers.Get(format)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, format)
	}

	hash, err := fileHash(absPath)
	if err != nil {
		return nil, fmt.Errorf("hashing file: %w", err)
	}

	filename := filepath.Base(absPath)
	if e.store != nil && !options.force {
		if ext, ok := e.cached(ctx, absPath, hash); ok {
			slog.Info("extract: unchanged, using stored outline", "file", filename, "doc_id", ext.DocumentID)
			if ext.Outputs, err = e.writeOutputs(absPath, ext.Result); err != nil {
				return nil, err
			}
			return ext, nil
		}
	}

	var docID int64
	if e.store != nil {
		var metadataJSON string
		if options.metadata != nil {
			data, _ := json.Marshal(options.metadata)
			metadataJSON = string(data)
		}
		docID, err = e.store.UpsertDocument(ctx, store.Document{
			Path:        absPath,
			Filename:    filename,
			Format:      format,
			ContentHash: hash,
			Status:      store.StatusProcessing,
			Metadata:    metadataJSON,
		})
		if err != nil {
			return nil, fmt.Errorf("upserting document: %w", err)
		}
	}

	slog.Info("extract: reading document", "file", filename, "format", format, "doc_id", docID)
	start := time.Now()

	res, err := e.build(ctx, p, absPath)
	if err != nil {
		e.fail(ctx, docID, err)
		return nil, err
	}

	if e.cfg.ValidateOutput {
		if err := report.Validate(res); err != nil {
			err = fmt.Errorf("%w: %v", ErrInvalidOutput, err)
			e.fail(ctx, docID, err)
			return nil, err
		}
	}

	if e.store != nil {
		if err := e.store.SaveOutline(ctx, docID, res); err != nil {
			err = fmt.Errorf("saving outline: %w", err)
			e.fail(ctx, docID, err)
			return nil, err
		}
	}

	outputs, err := e.writeOutputs(absPath, res)
	if err != nil {
		return nil, err
	}

	slog.Info("extract: document ready",
		"file", filename, "doc_id", docID, "title", res.Title,
		"pages", res.Metadata.TotalPages, "headings", len(res.Outline),
		"elapsed", time.Since(start).Round(time.Millisecond))

	return &Extraction{
		DocumentID: docID,
		Path:       absPath,
		Result:     res,
		Outputs:    outputs,
	}, nil
}

// build opens the document and runs heading inference over it.
func (e *engine) build(ctx context.Context, p parser.Parser, path string) (*outline.Result, error) {
	doc, err := p.Open(ctx, path)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: %w", ErrExtractionFailed, err)
	}
	defer doc.Close()

	res, err := e.builder.Build(doc)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrExtractionFailed, err)
	}
	return res, nil
}

// cached returns the stored outline when path was already extracted with
// the same content hash.
func (e *engine) cached(ctx context.Context, path, hash string) (*Extraction, bool) {
	existing, err := e.store.GetDocumentByPath(ctx, path)
	if err != nil || existing.ContentHash != hash || existing.Status != store.StatusReady {
		return nil, false
	}
	res, err := e.store.GetOutline(ctx, existing.ID)
	if err != nil {
		slog.Warn("extract: stored outline unreadable, re-extracting", "doc_id", existing.ID, "error", err)
		return nil, false
	}
	return &Extraction{DocumentID: existing.ID, Path: path, Result: res, Cached: true}, true
}

func (e *engine) fail(ctx context.Context, docID int64, cause error) {
	slog.Warn("extract: document failed", "doc_id", docID, "error", cause)
	if e.store == nil || docID == 0 {
		return
	}
	// The caller's context may already be done; the failure is still recorded.
	if err := e.store.MarkFailed(context.WithoutCancel(ctx), docID, cause.Error()); err != nil {
		slog.Error("extract: recording failure", "doc_id", docID, "error", err)
	}
}

// writeOutputs writes one file per configured format into OutputDir.
func (e *engine) writeOutputs(source string, res *outline.Result) ([]string, error) {
	if e.cfg.OutputDir == "" {
		return nil, nil
	}
	var written []string
	for _, f := range e.formats {
		out := report.OutputPath(e.cfg.OutputDir, source, f)
		if abs, err := filepath.Abs(out); err == nil && abs == source {
			slog.Warn("extract: output would overwrite input, skipping", "file", out)
			continue
		}
		if err := report.WriteFile(out, f, res); err != nil {
			return written, fmt.Errorf("writing %s: %w", out, err)
		}
		written = append(written, out)
	}
	return written, nil
}

// Outline loads the stored outline of a ready document.
func (e *engine) Outline(ctx context.Context, documentID int64) (*outline.Result, error) {
	if e.store == nil {
		return nil, ErrStoreDisabled
	}
	doc, err := e.store.GetDocument(ctx, documentID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %d", ErrDocumentNotFound, documentID)
	}
	if err != nil {
		return nil, err
	}
	if doc.Status != store.StatusReady {
		if doc.Error != "" {
			return nil, fmt.Errorf("%w: %s (%s)", ErrNotReady, doc.Status, doc.Error)
		}
		return nil, fmt.Errorf("%w: %s", ErrNotReady, doc.Status)
	}
	return e.store.GetOutline(ctx, documentID)
}

// Delete removes a document and its headings.
func (e *engine) Delete(ctx context.Context, documentID int64) error {
	if e.store == nil {
		return ErrStoreDisabled
	}
	err := e.store.DeleteDocument(ctx, documentID)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: %d", ErrDocumentNotFound, documentID)
	}
	return err
}

// ListDocuments returns all catalogued documents.
func (e *engine) ListDocuments(ctx context.Context) ([]Document, error) {
	if e.store == nil {
		return nil, ErrStoreDisabled
	}
	docs, err := e.store.ListDocuments(ctx)
	if err != nil {
		return nil, err
	}

	result := make([]Document, len(docs))
	for i, d := range docs {
		result[i] = Document{
			ID:          d.ID,
			Path:        d.Path,
			Filename:    d.Filename,
			Format:      d.Format,
			ContentHash: d.ContentHash,
			Status:      d.Status,
			Title:       d.Title,
			TotalPages:  d.TotalPages,
			AvgFontSize: d.AvgFontSize,
			Error:       d.Error,
			CreatedAt:   d.CreatedAt,
			UpdatedAt:   d.UpdatedAt,
		}
		if d.Metadata != "" {
			_ = json.Unmarshal([]byte(d.Metadata), &result[i].Metadata)
		}
	}
	return result, nil
}

// SearchHeadings finds stored headings containing query.
func (e *engine) SearchHeadings(ctx context.Context, query string, limit int) ([]HeadingMatch, error) {
	if e.store == nil {
		return nil, ErrStoreDisabled
	}
	return e.store.SearchHeadings(ctx, query, limit)
}

func (e *engine) Formats() []string {
	return e.parsers.Formats()
}

// Store returns the underlying store for diagnostic access.
func (e *engine) Store() *store.Store {
	return e.store
}

// Close cleanly shuts down the engine.
func (e *engine) Close() error {
	if e.store == nil {
		return nil
	}
	return e.store.Close()
}

// fileHash computes the SHA-256 hash of a file's content.
func fileHash(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
