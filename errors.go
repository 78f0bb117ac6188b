package arbor

import "errors"

// Grammar resolution errors.
var (
	// ErrUnknownExtension is returned when a filename's extension is not
	// mapped to any grammar.
	ErrUnknownExtension = errors.New("unknown file extension")

	// ErrUnknownGrammar is returned when a grammar identifier is not loaded.
	ErrUnknownGrammar = errors.New("unknown grammar")

	// ErrParse is returned when the parser could not produce a tree, for
	// example because the context was cancelled.
	ErrParse = errors.New("parse failed")
)

// Navigation errors.
var (
	// ErrOutOfRange is returned when a byte offset lies at or beyond the end
	// of the source buffer.
	ErrOutOfRange = errors.New("byte offset out of range")

	// ErrOutOfBounds is returned when a node's byte range does not fit in
	// the source buffer it claims to cover.
	ErrOutOfBounds = errors.New("byte range out of bounds")
)

// ErrNoSnapshot is returned when a file has never been snapshotted.
var ErrNoSnapshot = errors.New("no snapshot")

// Argument and lifecycle errors.
var (
	ErrInvalidArgument = errors.New("invalid argument")
	ErrInvalidQuery    = errors.New("invalid query")
	ErrTreeClosed      = errors.New("tree is closed")
)
