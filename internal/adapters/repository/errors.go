package repository

import "errors"

// Sentinel kinds for store errors.
var (
	ErrNotFound   = errors.New("record not found")
	ErrDuplicate  = errors.New("duplicate submission")
	ErrStaleState = errors.New("stale flow state")
)
