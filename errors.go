package testlens

import (
	"errors"

	"github.com/jward/testlens/internal/analysis"
	"github.com/jward/testlens/internal/pyast"
	"github.com/jward/testlens/internal/store"
)

// ErrInvalidArguments reports a call missing a required input, such as an
// associations run without a path.
var ErrInvalidArguments = errors.New("testlens: invalid arguments")

// SyntaxError is returned for source that is not valid Python, including
// sources that are not UTF-8 or exceed the size limit.
type SyntaxError = pyast.SyntaxError

// ReadError is returned when a source file cannot be read.
type ReadError = pyast.ReadError

var (
	// ErrMalformedTree reports a parse tree whose parent structure is broken.
	ErrMalformedTree = analysis.ErrMalformedTree

	// ErrNoSnapshot reports that no snapshot exists for a workspace.
	ErrNoSnapshot = store.ErrNoSnapshot
)

// IsSourceError reports whether err came from unreadable or unparseable
// source rather than from the tool itself.
func IsSourceError(err error) bool {
	var se *SyntaxError
	var re *ReadError
	return errors.As(err, &se) || errors.As(err, &re)
}
