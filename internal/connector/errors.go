package connector

import "errors"

var (
	// ErrNoSubjectColumn signals a schema without a recognizable subject column.
	ErrNoSubjectColumn = errors.New("no subject column resolved")
	// ErrPreviewNotFound signals a source without cached preview rows.
	ErrPreviewNotFound = errors.New("no cached preview for source")
)
