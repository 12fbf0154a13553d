package reports

import "errors"

var (
	ErrNotFound     = errors.New("report not found")
	ErrConflict     = errors.New("report already exists for analysis")
	ErrInvalidInput = errors.New("invalid input")
)
