package schema

import "errors"

// Sentinel errors for the schema registry.
var (
	ErrSchemaNotFound = errors.New("no active schema for import type")
	ErrInvalidSchema  = errors.New("invalid schema definition")

	// ErrConcurrentPublish means another publish for the same pair won the
	// race for the next version.
	ErrConcurrentPublish = errors.New("concurrent schema publish")
)
