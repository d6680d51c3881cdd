package domain

import "errors"

var (
	ErrInvalidID     = errors.New("invalid_id")
	ErrInvalidFilter = errors.New("invalid_filter")
	ErrNotFound      = errors.New("not_found")
)
