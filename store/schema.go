package store

// schemaSQL is the base DDL. Later changes go through migrations.
const schemaSQL = `
-- Document registry with hash-based change detection
CREATE TABLE IF NOT EXISTS documents (
    id INTEGER PRIMARY KEY,
    path TEXT NOT NULL UNIQUE,
    filename TEXT NOT NULL,
    format TEXT NOT NULL,
    content_hash TEXT NOT NULL,
    status TEXT DEFAULT 'pending',
    title TEXT,
    avg_font_size REAL,
    total_pages INTEGER,
    error TEXT,
    metadata JSON,
    created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
    updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
);

-- Outline entries in reading order
CREATE TABLE IF NOT EXISTS headings (
    id INTEGER PRIMARY KEY,
    document_id INTEGER NOT NULL REFERENCES documents(id) ON DELETE CASCADE,
    position INTEGER NOT NULL,
    level TEXT NOT NULL CHECK (level IN ('H1', 'H2', 'H3')),
    text TEXT NOT NULL,
    page INTEGER NOT NULL CHECK (page >= 1),
    language TEXT NOT NULL,
    font_size REAL NOT NULL,
    UNIQUE(document_id, position)
);

CREATE INDEX IF NOT EXISTS idx_headings_document ON headings(document_id);
CREATE INDEX IF NOT EXISTS idx_documents_hash ON documents(content_hash);
`
