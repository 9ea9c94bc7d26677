package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/mattn/go-sqlite3"

	"github.com/brunobiangulo/gooutline/outline"
)

// Document statuses.
const (
	StatusProcessing = "processing"
	StatusReady      = "ready"
	StatusError      = "error"
)

// Document represents a row in the documents table.
type Document struct {
	ID          int64   `json:"id"`
	Path        string  `json:"path"`
	Filename    string  `json:"filename"`
	Format      string  `json:"format"`
	ContentHash string  `json:"content_hash"`
	Status      string  `json:"status"`
	Title       string  `json:"title,omitempty"`
	AvgFontSize float64 `json:"avg_font_size,omitempty"`
	TotalPages  int     `json:"total_pages,omitempty"`
	Error       string  `json:"error,omitempty"`
	Metadata    string  `json:"metadata,omitempty"`
	CreatedAt   string  `json:"created_at"`
	UpdatedAt   string  `json:"updated_at"`
}

// HeadingMatch is a heading found by SearchHeadings.
type HeadingMatch struct {
	DocumentID int64  `json:"document_id"`
	Filename   string `json:"filename"`
	outline.Heading
}

// Store wraps the SQLite database for outline persistence.
type Store struct {
	db       *sql.DB
	attempts uint
}

// New opens (or creates) a SQLite database at the given path and
// initialises the schema.
func New(dbPath string) (*Store, error) {
	dir := filepath.Dir(dbPath)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("creating db directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_foreign_keys=on&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(30 * time.Minute)

	s := &Store{db: db, attempts: 5}

	if err := s.Migrate(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB returns the underlying *sql.DB for advanced queries.
func (s *Store) DB() *sql.DB {
	return s.db
}

// --- Document operations ---

// UpsertDocument inserts or updates a document record keyed by path.
// Returns the document ID.
func (s *Store) UpsertDocument(ctx context.Context, doc Document) (int64, error) {
	var id int64
	err := s.withRetry(ctx, func() error {
		return s.db.QueryRowContext(ctx, `
			INSERT INTO documents (path, filename, format, content_hash, status, metadata)
			VALUES (?, ?, ?, ?, ?, ?)
			ON CONFLICT(path) DO UPDATE SET
				filename = excluded.filename,
				format = excluded.format,
				content_hash = excluded.content_hash,
				status = excluded.status,
				metadata = COALESCE(excluded.metadata, documents.metadata),
				error = NULL,
				updated_at = CURRENT_TIMESTAMP
			RETURNING id
		`, doc.Path, doc.Filename, doc.Format, doc.ContentHash, doc.Status, nullString(doc.Metadata)).Scan(&id)
	})
	if err != nil {
		return 0, err
	}
	return id, nil
}

const documentColumns = `id, path, filename, format, content_hash, status, title,
	avg_font_size, total_pages, error, metadata, created_at, updated_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanDocument(row scanner) (*Document, error) {
	var (
		d                   Document
		title, errMsg, meta sql.NullString
		avg                 sql.NullFloat64
		pages               sql.NullInt64
	)
	if err := row.Scan(&d.ID, &d.Path, &d.Filename, &d.Format, &d.ContentHash, &d.Status,
		&title, &avg, &pages, &errMsg, &meta, &d.CreatedAt, &d.UpdatedAt); err != nil {
		return nil, err
	}
	d.Title = title.String
	d.AvgFontSize = avg.Float64
	d.TotalPages = int(pages.Int64)
	d.Error = errMsg.String
	d.Metadata = meta.String
	return &d, nil
}

// GetDocumentByPath retrieves a document by its file path.
func (s *Store) GetDocumentByPath(ctx context.Context, path string) (*Document, error) {
	return scanDocument(s.db.QueryRowContext(ctx,
		"SELECT "+documentColumns+" FROM documents WHERE path = ?", path))
}

// GetDocument retrieves a document by ID.
func (s *Store) GetDocument(ctx context.Context, id int64) (*Document, error) {
	return scanDocument(s.db.QueryRowContext(ctx,
		"SELECT "+documentColumns+" FROM documents WHERE id = ?", id))
}

// ListDocuments returns all documents, most recently updated first.
func (s *Store) ListDocuments(ctx context.Context) ([]Document, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+documentColumns+" FROM documents ORDER BY updated_at DESC, id DESC")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var docs []Document
	for rows.Next() {
		d, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		docs = append(docs, *d)
	}
	return docs, rows.Err()
}

// MarkFailed records a failed extraction. Previously stored headings are
// removed so a failed document never exposes a stale outline.
func (s *Store) MarkFailed(ctx context.Context, id int64, reason string) error {
	return s.withRetry(ctx, func() error {
		return s.inTx(ctx, func(tx *sql.Tx) error {
			if _, err := tx.ExecContext(ctx, "DELETE FROM headings WHERE document_id = ?", id); err != nil {
				return err
			}
			_, err := tx.ExecContext(ctx, `
				UPDATE documents SET status = ?, error = ?, title = NULL,
					avg_font_size = NULL, total_pages = NULL, updated_at = CURRENT_TIMESTAMP
				WHERE id = ?`, StatusError, reason, id)
			return err
		})
	})
}

// DeleteDocument removes a document; headings cascade.
func (s *Store) DeleteDocument(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM documents WHERE id = ?", id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// --- Outline operations ---

// SaveOutline replaces the stored outline of a document and marks it ready.
func (s *Store) SaveOutline(ctx context.Context, docID int64, res *outline.Result) error {
	return s.withRetry(ctx, func() error {
		return s.inTx(ctx, func(tx *sql.Tx) error {
			if _, err := tx.ExecContext(ctx, "DELETE FROM headings WHERE document_id = ?", docID); err != nil {
				return err
			}

			stmt, err := tx.PrepareContext(ctx, `
				INSERT INTO headings (document_id, position, level, text, page, language, font_size)
				VALUES (?, ?, ?, ?, ?, ?, ?)
			`)
			if err != nil {
				return err
			}
			defer stmt.Close()

			for i, h := range res.Outline {
				if _, err := stmt.ExecContext(ctx, docID, i, string(h.Level), h.Text,
					h.Page, string(h.Language), h.FontSize); err != nil {
					return fmt.Errorf("inserting heading %d: %w", i, err)
				}
			}

			_, err = tx.ExecContext(ctx, `
				UPDATE documents SET status = ?, title = ?, avg_font_size = ?, total_pages = ?,
					error = NULL, updated_at = CURRENT_TIMESTAMP
				WHERE id = ?`,
				StatusReady, res.Title, res.Metadata.AvgFontSize, res.Metadata.TotalPages, docID)
			return err
		})
	})
}

// GetOutline loads the stored outline of a ready document.
func (s *Store) GetOutline(ctx context.Context, docID int64) (*outline.Result, error) {
	doc, err := s.GetDocument(ctx, docID)
	if err != nil {
		return nil, err
	}
	if doc.Status != StatusReady {
		return nil, fmt.Errorf("document %d is %s", docID, doc.Status)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT level, text, page, language, font_size
		FROM headings WHERE document_id = ? ORDER BY position
	`, docID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	res := &outline.Result{
		Title:    doc.Title,
		Outline:  make([]outline.Heading, 0),
		Metadata: outline.Metadata{AvgFontSize: doc.AvgFontSize, TotalPages: doc.TotalPages},
	}
	for rows.Next() {
		var (
			h               outline.Heading
			level, language string
		)
		if err := rows.Scan(&level, &h.Text, &h.Page, &language, &h.FontSize); err != nil {
			return nil, err
		}
		h.Level = outline.Level(level)
		h.Language = outline.Script(language)
		res.Outline = append(res.Outline, h)
	}
	return res, rows.Err()
}

// SearchHeadings finds headings whose text contains query, case-insensitively
// for ASCII. Results are ordered by document then position.
func (s *Store) SearchHeadings(ctx context.Context, query string, limit int) ([]HeadingMatch, error) {
	if limit <= 0 {
		limit = 50
	}
	pattern := "%" + likeEscaper.Replace(query) + "%"

	rows, err := s.db.QueryContext(ctx, `
		SELECT h.document_id, d.filename, h.level, h.text, h.page, h.language, h.font_size
		FROM headings h
		JOIN documents d ON d.id = h.document_id
		WHERE h.text LIKE ? ESCAPE '\'
		ORDER BY h.document_id, h.position
		LIMIT ?
	`, pattern, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var matches []HeadingMatch
	for rows.Next() {
		var (
			m               HeadingMatch
			level, language string
		)
		if err := rows.Scan(&m.DocumentID, &m.Filename, &level, &m.Text, &m.Page, &language, &m.FontSize); err != nil {
			return nil, err
		}
		m.Level = outline.Level(level)
		m.Language = outline.Script(language)
		matches = append(matches, m)
	}
	return matches, rows.Err()
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// --- helpers ---

func (s *Store) inTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}

// withRetry retries writes that lost a lock race with a concurrent writer.
func (s *Store) withRetry(ctx context.Context, fn func() error) error {
	return retry.Do(fn,
		retry.Context(ctx),
		retry.Attempts(s.attempts),
		retry.Delay(50*time.Millisecond),
		retry.RetryIf(isBusy),
		retry.LastErrorOnly(true),
	)
}

func isBusy(err error) bool {
	var se sqlite3.Error
	if errors.As(err, &se) {
		return se.Code == sqlite3.ErrBusy || se.Code == sqlite3.ErrLocked
	}
	return false
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
