package parser

import (
	"context"

	"github.com/brunobiangulo/gooutline/outline"
)

// Document is an opened source document whose pages yield positioned words.
type Document interface {
	outline.Document
	Close() error
}

// Parser opens documents of a specific format.
type Parser interface {
	Open(ctx context.Context, path string) (Document, error)
	SupportedFormats() []string
}
