package logging

// Field name constants for structured logging.
const (
	FieldError    = "error"
	FieldPath     = "path"
	FieldGrammar  = "grammar"
	FieldHash     = "hash"
	FieldDuration = "duration"

	// Snapshot pipeline.
	FieldFiles    = "files"
	FieldSkipped  = "skipped"
	FieldWorkers  = "workers"
	FieldSnapshot = "snapshot"
	FieldNodes    = "nodes"
	FieldErrors   = "errors"
	FieldSubtrees = "subtrees"

	// Scripts and the language server.
	FieldScript = "script"
	FieldURI    = "uri"
)
