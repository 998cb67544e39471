package document

import "errors"

// Document errors.
var (
	// ErrDocumentNotFound indicates a document is not open in the manager.
	ErrDocumentNotFound = errors.New("document not found")

	// ErrDocumentAlreadyOpen indicates another document already has the path.
	ErrDocumentAlreadyOpen = errors.New("document already open")

	// ErrIsDirectory indicates a directory was given where a file was expected.
	ErrIsDirectory = errors.New("path is a directory")

	// ErrEmptyPath indicates an empty path was given.
	ErrEmptyPath = errors.New("empty path")
)
