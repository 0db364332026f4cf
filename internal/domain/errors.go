package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrDatasetNotFound indicates the transaction dataset could not be opened.
	ErrDatasetNotFound = errors.New("dataset not found")
	// ErrEmptyDataset indicates a snapshot was requested for zero rows.
	ErrEmptyDataset = errors.New("dataset is empty")
	// ErrCommunitiesNotFound indicates the community source has no data.
	ErrCommunitiesNotFound = errors.New("communities not found")
	// ErrNoSnapshot indicates no dataset has been published yet.
	ErrNoSnapshot = errors.New("no snapshot loaded")
)

// ValidationError reports a caller supplied value that cannot be evaluated.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}
