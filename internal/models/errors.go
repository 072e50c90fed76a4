package models

import "errors"

var (
	// ErrDocumentNotFound means no document exists with the given ID.
	ErrDocumentNotFound = errors.New("document not found")

	// ErrInvalidDocumentStatus means a status transition is not allowed.
	ErrInvalidDocumentStatus = errors.New("invalid document status")
)
