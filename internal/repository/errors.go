package repository

import "errors"

var (
	// ErrHistoryItemNotFound indicates no history record has the requested id
	ErrHistoryItemNotFound = errors.New("history item not found")

	// ErrEmptyExport indicates there is nothing to export
	ErrEmptyExport = errors.New("nothing to export")
)
