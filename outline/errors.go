package outline

import (
	"errors"
	"fmt"
)

// ErrPageOutOfRange is returned by Pages for a page number outside 1..NumPages.
var ErrPageOutOfRange = errors.New("outline: page out of range")

// PageError reports a token fetch failure for one page. A PageError fails the
// whole document; the assembler never returns a partial outline.
type PageError struct {
	Page int
	Err  error
}

func (e *PageError) Error() string {
	return fmt.Sprintf("outline: page %d: %v", e.Page, e.Err)
}

func (e *PageError) Unwrap() error { return e.Err }
