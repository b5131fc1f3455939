package storage

import "errors"

// Common storage errors
var (
	ErrInvalidInput = errors.New("invalid input")
)
